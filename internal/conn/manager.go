// Package conn owns the single live socket to the chat backend. It probes
// health before connecting, reconnects after a close, and hands inbound
// frames to a handler in the order they arrived.
package conn

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"webchat-cli/internal/wire"
)

// DefaultReconnectDelay is the pause between a close and the next probe.
const DefaultReconnectDelay = 3 * time.Second

// Status is what observers see after each transition.
type Status struct {
	State State
	Err   string
}

// FrameHandler receives decoded inbound frames, one at a time, in transport
// order.
type FrameHandler interface {
	HandleFrame(ev wire.Event)
}

// Metrics is the subset of instrumentation the manager reports to.
type Metrics interface {
	FrameReceived(frameType string)
	ReconnectScheduled()
	ConnectionState(state string)
}

// Options configures a Manager. Dialer, Prober and URL are required.
type Options struct {
	URL            string
	Dialer         Dialer
	Prober         Prober
	Handler        FrameHandler
	ReconnectDelay time.Duration
	Clock          Clock
	Logger         *zap.Logger
	Metrics        Metrics

	// spawn runs probes and dials. Tests replace it to run them inline.
	spawn func(func())
}

// Manager drives the connection lifecycle.
type Manager struct {
	mu    sync.Mutex
	mc    machine
	url   string
	delay time.Duration
	sock  Socket
	timer Timer

	// pending holds notifications not yet delivered. One caller at a time
	// drains it, without holding mu, so observers may call back in.
	pending   []notice
	draining  bool
	observers []func(Status)

	writeMu sync.Mutex

	dialer  Dialer
	prober  Prober
	handler FrameHandler
	clock   Clock
	log     *zap.Logger
	metrics Metrics
	spawn   func(func())

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type notice struct {
	prev   State
	status Status
}

// NewManager builds a manager in the connecting state. Nothing happens until Start.
func NewManager(opts Options) *Manager {
	m := &Manager{
		url:     opts.URL,
		delay:   opts.ReconnectDelay,
		dialer:  opts.Dialer,
		prober:  opts.Prober,
		handler: opts.Handler,
		clock:   opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
		spawn:   opts.spawn,
	}
	if m.delay <= 0 {
		m.delay = DefaultReconnectDelay
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.spawn == nil {
		m.spawn = func(f func()) { go f() }
	}
	m.mc.state = StateConnecting
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Subscribe registers fn to be called after every transition.
func (m *Manager) Subscribe(fn func(Status)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// SetHandler replaces the frame handler. It must be called before Start.
func (m *Manager) SetHandler(h FrameHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// SetURL changes the socket URL used by the next dial.
func (m *Manager) SetURL(url string) {
	m.mu.Lock()
	m.url = url
	m.mu.Unlock()
}

// SetReconnectDelay changes the delay used by the next scheduled reconnect.
func (m *Manager) SetReconnectDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultReconnectDelay
	}
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// Start probes the backend and connects if it is healthy.
func (m *Manager) Start() { m.apply(evStart{}) }

// Reconnect re-probes and connects. It is a no-op while a probe or dial is
// in flight or the socket is open.
func (m *Manager) Reconnect() { m.apply(evReconnect{}) }

// Close cancels the pending timer, closes the socket and waits for the
// manager's goroutines. Do not call it from a FrameHandler or an observer.
func (m *Manager) Close() error {
	m.apply(evStop{})
	m.cancel()
	m.wg.Wait()
	return nil
}

// Status returns the current state and error text.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.mc.state, Err: m.mc.errText}
}

// IsConnected reports whether the state is connected.
func (m *Manager) IsConnected() bool {
	return m.Status().State == StateConnected
}

// Send writes one frame if the socket is open. It returns false when the
// frame was dropped.
func (m *Manager) Send(data []byte) bool {
	m.mu.Lock()
	sock := m.sock
	open := m.mc.open
	m.mu.Unlock()
	if !open || sock == nil {
		return false
	}

	m.writeMu.Lock()
	err := sock.WriteMessage(data)
	m.writeMu.Unlock()
	if err != nil {
		m.log.Warn("socket write failed", zap.Error(err))
		return false
	}
	return true
}

// apply runs one transition and performs its effects.
func (m *Manager) apply(ev event) {
	m.mu.Lock()
	prev := m.mc.state
	next, effs := step(m.mc, ev)
	m.mc = next

	var (
		toClose Socket
		notify  bool
		async   []func()
	)
	for _, eff := range effs {
		switch e := eff.(type) {
		case effProbe:
			phase := e.phase
			async = append(async, func() { m.probe(phase) })
		case effDial:
			gen, url := e.gen, m.url
			async = append(async, func() { m.dial(gen, url) })
		case effCancelTimer:
			if m.timer != nil {
				m.timer.Stop()
				m.timer = nil
			}
		case effScheduleTimer:
			seq := e.seq
			m.timer = m.clock.AfterFunc(m.delay, func() { m.apply(evTimerFired{seq: seq}) })
			m.log.Debug("reconnect scheduled", zap.Duration("delay", m.delay))
			if m.metrics != nil {
				m.metrics.ReconnectScheduled()
			}
		case effCloseSocket:
			toClose, m.sock = m.sock, nil
		case effNotify:
			notify = true
		}
	}
	drain := false
	if notify {
		m.pending = append(m.pending, notice{prev: prev, status: Status{State: m.mc.state, Err: m.mc.errText}})
		if !m.draining {
			m.draining, drain = true, true
		}
	}
	if m.mc.stopped {
		async = nil
	}
	// Counted under mu so Close never waits while a goroutine is being added.
	m.wg.Add(len(async))
	m.mu.Unlock()

	if drain {
		m.deliver()
	}
	if toClose != nil {
		if err := toClose.Close(); err != nil {
			m.log.Debug("socket close", zap.Error(err))
		}
	}
	for _, f := range async {
		m.spawn(func() {
			defer m.wg.Done()
			f()
		})
	}
}

// deliver hands queued notifications to the observers in transition order.
func (m *Manager) deliver() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		n := m.pending[0]
		m.pending = m.pending[1:]
		observers := m.observers
		m.mu.Unlock()

		if n.status.State != n.prev {
			m.log.Debug("connection state", zap.Stringer("from", n.prev), zap.Stringer("to", n.status.State), zap.String("err", n.status.Err))
		}
		if m.metrics != nil {
			m.metrics.ConnectionState(n.status.State.String())
		}
		for _, fn := range observers {
			fn(n.status)
		}
	}
}

func (m *Manager) probe(phase probePhase) {
	ok := m.prober.Probe(m.ctx)
	m.log.Debug("health probe", zap.Stringer("phase", phase), zap.Bool("healthy", ok))
	m.apply(evProbeResult{ok: ok, phase: phase})
}

func (m *Manager) dial(gen uint64, url string) {
	sock, err := m.dialer.Dial(m.ctx, url)
	if err != nil {
		m.log.Warn("socket dial failed", zap.String("url", url), zap.Error(err))
		m.apply(evSocketError{gen: gen})
		m.apply(evClosed{gen: gen})
		return
	}

	m.mu.Lock()
	stale := m.mc.stopped || m.mc.gen != gen || !m.mc.connecting
	if !stale {
		m.sock = sock
		m.wg.Add(1)
	}
	handler := m.handler
	m.mu.Unlock()
	if stale {
		sock.Close()
		return
	}

	m.log.Debug("socket open", zap.String("url", url))
	m.apply(evOpened{gen: gen})
	go m.readLoop(gen, sock, handler)
}

func (m *Manager) readLoop(gen uint64, sock Socket, handler FrameHandler) {
	defer m.wg.Done()
	for {
		data, err := sock.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.log.Warn("socket read failed", zap.Error(err))
				m.apply(evSocketError{gen: gen})
			}
			m.apply(evClosed{gen: gen})
			return
		}

		ev := wire.Decode(data)
		if m.metrics != nil {
			m.metrics.FrameReceived(frameLabel(ev))
		}
		if ev.Unknown {
			m.log.Debug("ignoring frame", zap.String("type", string(ev.Type)))
			continue
		}
		if handler != nil {
			handler.HandleFrame(ev)
		}
	}
}

func frameLabel(ev wire.Event) string {
	switch {
	case ev.Legacy:
		return "legacy"
	case ev.Unknown:
		return "unknown"
	default:
		return string(ev.Type)
	}
}
