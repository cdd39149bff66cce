package cmd

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"webchat-cli/cmd/config"
	"webchat-cli/cmd/utils"
	"webchat-cli/cmd/version"
	"webchat-cli/internal/backend"
	"webchat-cli/internal/conn"
	"webchat-cli/internal/history"
	"webchat-cli/internal/identity"
	"webchat-cli/internal/metrics"
	"webchat-cli/internal/session"
	"webchat-cli/internal/storage"
)

// app is the wired client: storage, identity, the backend client, the
// connection manager and the session on top.
type app struct {
	cfg      *config.WebchatConfig
	log      *zap.Logger
	store    storage.Backend
	history  *history.Store
	clientID string
	client   *backend.Client
	manager  *conn.Manager
	session  *session.Session
	metrics  *metrics.Metrics
}

// openStorage opens the configured backend under dataDir. When that fails
// the client keeps running on memory-only storage.
func openStorage(cfg *config.WebchatConfig, dataDir string, log *zap.Logger) storage.Backend {
	if err := utils.EnsureDir(dataDir); err != nil {
		log.Warn("data dir unavailable, using memory storage", zap.Error(err))
		utils.OutputWarning("Chat history will not be saved: %v\n", err)
		return storage.NewMemoryBackend()
	}
	b, err := storage.Open(storage.Kind(cfg.Storage), dataDir)
	if err != nil {
		log.Warn("storage unavailable, using memory storage", zap.String("kind", cfg.Storage), zap.Error(err))
		utils.OutputWarning("Chat history will not be saved: %v\n", err)
		return storage.NewMemoryBackend()
	}
	return b
}

// newBackendClient builds the HTTP client for health and upload.
func newBackendClient(cfg *config.WebchatConfig, log *zap.Logger) (*backend.Client, error) {
	ep, err := backend.NewEndpoints(cfg.ServerURL, backend.Override{
		Health: cfg.HealthURL,
		Upload: cfg.UploadURL,
		Socket: cfg.SocketURL,
	})
	if err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeoutDuration()
	return backend.NewClient(ep, utils.GetHTTPClientWithTimeout(timeout), utils.NewStdHTTPClient(timeout), log.Named("backend")), nil
}

func userAgent() string {
	return "webchat-cli/" + version.Current().Version
}

// newApp wires every component. The manager is not started.
func newApp(cfg *config.WebchatConfig, dataDir string) (*app, error) {
	log := utils.Logger()
	client, err := newBackendClient(cfg, log)
	if err != nil {
		return nil, err
	}

	store := openStorage(cfg, dataDir, log)
	hist := history.NewStore(store, log.Named("history"))
	hist.Load()
	clientID := identity.Resolve(store, log.Named("identity"))
	met := metrics.New()

	mgr := conn.NewManager(conn.Options{
		URL: client.Endpoints().Socket,
		Dialer: conn.WebsocketDialer{
			HandshakeTimeout: cfg.HandshakeTimeoutDuration(),
			Header:           http.Header{"User-Agent": {userAgent()}},
		},
		Prober:         client,
		ReconnectDelay: cfg.ReconnectDelayDuration(),
		Logger:         log.Named("conn"),
		Metrics:        met,
	})
	sess := session.New(hist, mgr, clientID, session.Options{
		Logger:  log.Named("session"),
		Metrics: met,
		Model:   cfg.DefaultModel,
	})
	mgr.SetHandler(sess)
	mgr.Subscribe(sess.OnStatus)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		history:  hist,
		clientID: clientID,
		client:   client,
		manager:  mgr,
		session:  sess,
		metrics:  met,
	}, nil
}

// newAppFromFlags wires the app for the resolved global configuration.
func newAppFromFlags() (*app, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	return newApp(appConfig, dataDir)
}

// serveMetrics exposes the Prometheus handler when an address is configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := a.metrics.Serve(ctx, a.cfg.MetricsAddr, a.log.Named("metrics")); err != nil {
			utils.OutputWarning("metrics server stopped: %v\n", err)
		}
	}()
}

// Close stops the connection and closes storage.
func (a *app) Close() error {
	_ = a.manager.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}

// uploadAttachments uploads paths and converts the result to attachments.
func uploadAttachments(ctx context.Context, up uploader, paths []string) ([]session.Attachment, error) {
	files, err := up.Upload(ctx, paths)
	if err != nil {
		return nil, err
	}
	out := make([]session.Attachment, len(files))
	for i, f := range files {
		out[i] = session.Attachment{Name: f.Name, Body: f.Content, Size: f.Size}
	}
	return out, nil
}

// uploader is the part of backend.Client the commands need for files.
type uploader interface {
	Upload(ctx context.Context, paths []string) ([]backend.UploadedFile, error)
}
