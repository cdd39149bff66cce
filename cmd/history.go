package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/config"
	"webchat-cli/cmd/utils"
	"webchat-cli/internal/history"
	"webchat-cli/internal/session"
	"webchat-cli/internal/storage"
)

var (
	historyJSON  bool
	historyClear bool
	historyFull  bool
)

// historyPreviewWidth cuts long bodies in the plain listing.
const historyPreviewWidth = 100

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print or clear the stored conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := resolveDataDir()
		if err != nil {
			return err
		}
		return runHistory(appConfig, dataDir, utils.Stdout())
	},
}

// runHistory prints or clears the log stored under dataDir. Unlike chat it
// does not fall back to memory storage: a locked or unreadable store is an
// error, never an empty log.
func runHistory(cfg *config.WebchatConfig, dataDir string, w io.Writer) error {
	if err := utils.EnsureDir(dataDir); err != nil {
		return err
	}
	store, err := storage.Open(storage.Kind(cfg.Storage), dataDir)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage, err)
	}
	defer store.Close()

	hist := history.NewStore(store, utils.Logger().Named("history"))
	hist.Load()
	if historyClear {
		if err := hist.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		utils.OutputSuccess("Conversation cleared\n")
		return nil
	}
	width := historyPreviewWidth
	if historyFull {
		width = 0
	}
	return printHistory(w, hist.Messages(), historyJSON, width, time.Now())
}

// printHistory lists msgs. In plain mode a width > 0 shows only a one-line
// preview of each body.
func printHistory(w io.Writer, msgs []history.Message, asJSON bool, width int, now time.Time) error {
	if asJSON {
		if msgs == nil {
			msgs = []history.Message{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return nil
	}
	for _, m := range msgs {
		body := m.Body
		if width > 0 {
			body = utils.Preview(body, width)
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", utils.FormatAge(m.Time(), now), speaker(m), body)
	}
	return nil
}

// speaker names the author of m for plain-text output.
func speaker(m history.Message) string {
	switch m.Kind {
	case history.KindUser:
		return "you"
	case history.KindAssistant:
		if m.ModelLabel != "" {
			return session.ModelName(m.ModelLabel)
		}
		return "assistant"
	case history.KindThinking:
		return "thinking"
	case history.KindSystem:
		return "system"
	}
	return string(m.Kind)
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the stored messages as JSON")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the stored conversation")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "Print whole message bodies instead of one-line previews")
	rootCmd.AddCommand(historyCmd)
}
