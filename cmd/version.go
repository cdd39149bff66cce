package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/utils"
	"webchat-cli/cmd/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the webchat client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(utils.Stdout(), version.Current(), versionJSON)
	},
}

func printVersion(w io.Writer, info version.Info, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	_, err := fmt.Fprintln(w, info.String())
	return err
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build details as JSON")
	rootCmd.AddCommand(versionCmd)
}
