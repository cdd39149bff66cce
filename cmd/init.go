package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"webchat-cli/cmd/config"
	"webchat-cli/cmd/utils"
)

var initForce bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a webchat.yaml with the current settings",
	Long: `Write a webchat.yaml into the working directory (or dir) holding the
effective settings, so they can be edited instead of passed as flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := utils.GetEffectiveCWD()
		if len(args) > 0 {
			dir = args[0]
		}
		path, err := writeInitConfig(dir, appConfig, initForce)
		if err != nil {
			return err
		}
		utils.OutputSuccess("Wrote %s\n", path)
		utils.OutputInfoPlain("  server_url: %s\n  storage:    %s\n", appConfig.ServerURL, appConfig.Storage)
		utils.OutputInfo("Edit it to point at your backend, then run webchat.\n")
		return nil
	},
}

// writeInitConfig saves cfg as dir/webchat.yaml. An existing webchat.*
// file is only replaced with force.
func writeInitConfig(dir string, cfg *config.WebchatConfig, force bool) (string, error) {
	if existing, err := config.FindConfigFile(dir); err == nil && !force {
		return "", fmt.Errorf("config already exists (found %s); use --force to overwrite", existing)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, config.SupportedConfigFiles[0])
	if err := config.SaveConfig(cfg, path); err != nil {
		return "", err
	}
	return path, nil
}

// configCmd prints the effective configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		if appConfig.Path != "" {
			fmt.Fprintf(utils.Stdout(), "# from %s\n", appConfig.Path)
		}
		_, err = utils.Stdout().Write(data)
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}
