package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/utils"
	"webchat-cli/internal/session"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the backend can switch between",
	RunE: func(cmd *cobra.Command, args []string) error {
		listModels(utils.Stdout(), appConfig.DefaultModel)
		return nil
	},
}

func listModels(w io.Writer, current string) {
	if session.ValidateModel(current) != nil {
		current = session.DefaultModel
	}
	for _, m := range session.Models {
		mark := " "
		if m.ID == current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-10s %s\n", mark, m.ID, m.Name)
	}
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
