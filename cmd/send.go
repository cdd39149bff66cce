package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/utils"
	"webchat-cli/internal/conn"
	"webchat-cli/internal/history"
	"webchat-cli/internal/session"
)

type sendOptions struct {
	Text    string
	Model   string
	Files   []string
	Timeout time.Duration
}

var sendOpts sendOptions

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and print the reply",
	Long: `Send one chat message and print the backend's reply.

Examples:
  webchat send "Summarize this" --file ./notes.md
  webchat send "Explain closures" --model pro-2.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAppFromFlags()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		a.serveMetrics(ctx)

		opts := sendOpts
		opts.Text = args[0]
		return runSend(ctx, a, opts, utils.Stdout())
	},
}

var errNotSent = errors.New("message was not sent: connection is not open")

// runSend connects, applies the model and files, sends the message and
// prints every message that arrives until the reply is complete.
func runSend(ctx context.Context, a *app, opts sendOptions, w io.Writer) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if opts.Model != "" {
		if err := session.ValidateModel(opts.Model); err != nil {
			return err
		}
	}

	changed := make(chan struct{}, 1)
	a.session.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	a.manager.Start()

	if err := waitConnected(ctx, a.session, changed); err != nil {
		return err
	}

	if len(opts.Files) > 0 {
		files, err := uploadAttachments(ctx, a.client, opts.Files)
		if err != nil {
			return fmt.Errorf("failed to upload files: %w", err)
		}
		a.session.Attach(files)
	}
	if opts.Model != "" && opts.Model != a.session.Snapshot().Model {
		if err := a.session.SwitchModel(opts.Model); err != nil {
			return err
		}
	}

	a.session.ClearError()
	printed := len(a.session.Snapshot().Messages)
	if !a.session.SendChat(opts.Text) {
		return errNotSent
	}
	// Skip the echo of our own message.
	printed++

	gotReply := false
	for {
		snap := a.session.Snapshot()
		for ; printed < len(snap.Messages); printed++ {
			m := snap.Messages[printed]
			printMessage(w, m)
			if m.Kind == history.KindAssistant {
				gotReply = true
			}
		}
		if snap.Err != "" {
			return fmt.Errorf("backend error: %s", snap.Err)
		}
		if gotReply && !snap.Loading {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no reply: %w", ctx.Err())
		case <-changed:
		}
	}
}

func waitConnected(ctx context.Context, s *session.Session, changed <-chan struct{}) error {
	for {
		snap := s.Snapshot()
		switch snap.Connection {
		case conn.StateConnected:
			return nil
		case conn.StateError:
			return fmt.Errorf("cannot connect: %s", snap.Err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("cannot connect: %w", ctx.Err())
		case <-changed:
		}
	}
}

func printMessage(w io.Writer, m history.Message) {
	switch m.Kind {
	case history.KindAssistant:
		fmt.Fprintln(w, m.Body)
	case history.KindUser:
		fmt.Fprintf(w, "you: %s\n", m.Body)
	default:
		fmt.Fprintf(w, "%s: %s\n", speaker(m), m.Body)
	}
}

func init() {
	sendCmd.Flags().StringVarP(&sendOpts.Model, "model", "m", "", "Model to use for this message")
	sendCmd.Flags().StringSliceVarP(&sendOpts.Files, "file", "f", nil, "Text file to attach as context (repeatable)")
	sendCmd.Flags().DurationVar(&sendOpts.Timeout, "timeout", 2*time.Minute, "How long to wait for the reply")
	rootCmd.AddCommand(sendCmd)
}
