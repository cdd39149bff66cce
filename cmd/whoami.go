package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/utils"
	"webchat-cli/internal/identity"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the client id sent with every message",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := resolveDataDir()
		if err != nil {
			return err
		}
		log := utils.Logger()
		store := openStorage(appConfig, dataDir, log)
		defer store.Close()
		fmt.Fprintln(utils.Stdout(), identity.Resolve(store, log.Named("identity")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
