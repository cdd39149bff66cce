package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webchat-cli/cmd/config"
	"webchat-cli/cmd/utils"
	"webchat-cli/internal/backend"
)

// chatCmd represents the `webchat chat` command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Open the interactive chat. This is also what plain "webchat" does.

Type /help inside the chat for commands. The conversation is kept in the
data dir and restored the next time you start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// runChat wires the app and runs the TUI until the user quits.
func runChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newAppFromFlags()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.serveMetrics(ctx)

	m := newChatModel(ctx, a.session, a.manager, a.client, a.cfg.ServerURL)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	utils.SetTUIMode(p)
	defer utils.ClearTUIMode()

	watchConfig(ctx, a, p)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	if fm, ok := final.(chatModel); ok && fm.status != "" {
		fmt.Fprintln(utils.Stdout(), fm.status)
	}
	return nil
}

// watchConfig follows the loaded config file, or webchat.* in the working
// directory when none was found, and retargets the connection on change.
func watchConfig(ctx context.Context, a *app, p *tea.Program) {
	dir := utils.GetEffectiveCWD()
	if a.cfg.Path != "" {
		dir = filepath.Dir(a.cfg.Path)
	}
	err := config.Watch(ctx, dir, reloadConfig, func(cfg *config.WebchatConfig) {
		msg, err := applyConfig(a, cfg)
		if err != nil {
			p.Send(configErrorMsg{err: err})
			return
		}
		p.Send(msg)
	}, func(err error) {
		p.Send(configErrorMsg{err: err})
	})
	if err != nil {
		a.log.Warn("config watcher disabled", zap.Error(err))
	}
}

// applyConfig points the client and the manager at cfg's endpoints. The
// new URL and delay take effect on the next connect.
func applyConfig(a *app, cfg *config.WebchatConfig) (configChangedMsg, error) {
	ep, err := backend.NewEndpoints(cfg.ServerURL, backend.Override{
		Health: cfg.HealthURL,
		Upload: cfg.UploadURL,
		Socket: cfg.SocketURL,
	})
	if err != nil {
		return configChangedMsg{}, err
	}
	old := a.client.Endpoints()
	a.client.SetEndpoints(ep)
	a.manager.SetURL(ep.Socket)
	a.manager.SetReconnectDelay(cfg.ReconnectDelayDuration())
	a.log.Info("config reloaded", zap.String("socket", ep.Socket), zap.Duration("reconnect_delay", cfg.ReconnectDelayDuration()))
	return configChangedMsg{serverURL: cfg.ServerURL, urlChanged: old.Socket != ep.Socket}, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
