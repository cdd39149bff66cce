package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/config"
	"webchat-cli/cmd/utils"
)

var (
	debug           bool
	serverURLFlag   string
	dataDirFlag     string
	storageFlag     string
	metricsAddrFlag string
	overrideCwd     string
	noEmoji         bool

	// appConfig is resolved once flags are parsed.
	appConfig *config.WebchatConfig
)

var rootCmd = &cobra.Command{
	Use:   "webchat",
	Short: "Terminal client for the web chat backend",
	Long: `webchat talks to a chat backend over a WebSocket. It keeps the
conversation on disk, reconnects on its own when the socket drops and lets
you attach text files as context for the model.

Getting started:
  # Open the interactive chat
  webchat

  # Ask a single question and print the reply
  webchat send "What does this log mean?" --file ./server.log

  # Check that the backend is up
  webchat health`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		utils.OverrideCwd = overrideCwd
		if noEmoji {
			utils.SetEmojiEnabled(false)
		}
		if debug {
			if err := utils.InitDebugLogger("", true); err != nil {
				utils.OutputWarning("failed to initialize debug logger: %v\n", err)
			}
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg
		if cfg.Path != "" {
			utils.LogDebug(fmt.Sprintf("config loaded from %s", cfg.Path))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utils.CloseDebugLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		utils.OutputError("%v\n", err)
		utils.CloseDebugLogger()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&serverURLFlag, "server-url", "", "Chat backend URL (default: "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory for stored chat state (default: $"+utils.DataDirEnv+" or ~/.webchat)")
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "", "Storage backend: file, pebble or memory")
	rootCmd.PersistentFlags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	rootCmd.PersistentFlags().BoolVar(&noEmoji, "no-emoji", false, "Print status messages without emoji")
	rootCmd.PersistentFlags().StringVar(&overrideCwd, "cwd", "", "Override the working directory used to find webchat.yaml and .env")
}

// resolveDataDir applies --data-dir over the environment default.
func resolveDataDir() (string, error) {
	if dataDirFlag != "" {
		return dataDirFlag, nil
	}
	return utils.GetDataDir()
}

// loadConfig reads webchat.{yaml,yml,toml,json} from the working directory,
// then the data dir, applies .env and WEBCHAT_* overrides and finally the
// global flags.
func loadConfig() (*config.WebchatConfig, error) {
	cwd := utils.GetEffectiveCWD()
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cwd, cwd, dataDir)
	if err != nil {
		return nil, err
	}
	return applyFlags(cfg)
}

// reloadConfig re-reads path after an edit, keeping the startup precedence:
// flags, then the environment, then the file.
func reloadConfig(path string) (*config.WebchatConfig, error) {
	cfg, err := config.LoadFrom(path, utils.GetEffectiveCWD())
	if err != nil {
		return nil, err
	}
	return applyFlags(cfg)
}

// applyFlags overlays the global flags on cfg and validates the result.
func applyFlags(cfg *config.WebchatConfig) (*config.WebchatConfig, error) {
	if serverURLFlag != "" {
		cfg.ServerURL = serverURLFlag
	}
	if storageFlag != "" {
		cfg.Storage = storageFlag
	}
	if metricsAddrFlag != "" {
		cfg.MetricsAddr = metricsAddrFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
