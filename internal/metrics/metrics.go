// Package metrics exposes client-side Prometheus counters for the chat
// connection.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var connectionStates = []string{"connecting", "connected", "disconnected", "error"}

// Metrics holds the client's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived      *prometheus.CounterVec
	CommandsSent        *prometheus.CounterVec
	CommandsDropped     *prometheus.CounterVec
	ReconnectsScheduled prometheus.Counter
	State               *prometheus.GaugeVec
}

// New creates the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FramesReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webchat_frames_received_total",
				Help: "Inbound frames by type",
			},
			[]string{"type"},
		),
		CommandsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webchat_commands_sent_total",
				Help: "Outbound commands written to the socket",
			},
			[]string{"type"},
		),
		CommandsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webchat_commands_dropped_total",
				Help: "Outbound commands dropped because the socket was not open",
			},
			[]string{"type"},
		),
		ReconnectsScheduled: f.NewCounter(
			prometheus.CounterOpts{
				Name: "webchat_reconnects_scheduled_total",
				Help: "Reconnect timers scheduled after a close",
			},
		),
		State: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "webchat_connection_state",
				Help: "1 for the current connection state, 0 otherwise",
			},
			[]string{"state"},
		),
	}
}

func (m *Metrics) FrameReceived(frameType string) {
	m.FramesReceived.WithLabelValues(frameType).Inc()
}

func (m *Metrics) CommandSent(commandType string) {
	m.CommandsSent.WithLabelValues(commandType).Inc()
}

func (m *Metrics) CommandDropped(commandType string) {
	m.CommandsDropped.WithLabelValues(commandType).Inc()
}

func (m *Metrics) ReconnectScheduled() {
	m.ReconnectsScheduled.Inc()
}

// ConnectionState marks state as current.
func (m *Metrics) ConnectionState(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
