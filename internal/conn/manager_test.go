package conn

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"webchat-cli/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs every pending timer.
func (c *fakeClock) Fire() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type fakeSocket struct {
	in      chan []byte
	done    chan struct{}
	failErr chan error
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:      make(chan []byte, 16),
		done:    make(chan struct{}),
		failErr: make(chan error, 1),
	}
}

func (s *fakeSocket) ReadMessage() ([]byte, error) {
	select {
	case data := <-s.in:
		return data, nil
	case err := <-s.failErr:
		return nil, err
	case <-s.done:
		return nil, io.EOF
	}
}

func (s *fakeSocket) WriteMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, data)
	return nil
}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSocket) Written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.written...)
}

type fakeDialer struct {
	mu      sync.Mutex
	sockets []*fakeSocket
	urls    []string
	fail    bool
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail {
		return nil, errors.New("connection refused")
	}
	s := newFakeSocket()
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) Last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[len(d.sockets)-1]
}

type fakeProber struct {
	mu      sync.Mutex
	healthy bool
	calls   int
}

func (p *fakeProber) Probe(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.healthy
}

func (p *fakeProber) Set(healthy bool) {
	p.mu.Lock()
	p.healthy = healthy
	p.mu.Unlock()
}

func (p *fakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type frameRecorder struct {
	frames chan wire.Event
}

func (r *frameRecorder) HandleFrame(ev wire.Event) { r.frames <- ev }

type harness struct {
	m      *Manager
	clock  *fakeClock
	dialer *fakeDialer
	prober *fakeProber
	frames *frameRecorder

	mu       sync.Mutex
	statuses []Status
}

func newHarness(t *testing.T, healthy bool) *harness {
	t.Helper()
	h := &harness{
		clock:  &fakeClock{},
		dialer: &fakeDialer{},
		prober: &fakeProber{healthy: healthy},
		frames: &frameRecorder{frames: make(chan wire.Event, 16)},
	}
	h.m = NewManager(Options{
		URL:     "ws://backend/ws",
		Dialer:  h.dialer,
		Prober:  h.prober,
		Handler: h.frames,
		Clock:   h.clock,
		spawn:   func(f func()) { f() },
	})
	h.m.Subscribe(func(s Status) {
		h.mu.Lock()
		h.statuses = append(h.statuses, s)
		h.mu.Unlock()
	})
	t.Cleanup(func() { h.m.Close() })
	return h
}

func (h *harness) lastStatus() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statuses[len(h.statuses)-1]
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Status().State == want },
		time.Second, 5*time.Millisecond, "state never became %s (is %s)", want, m.Status().State)
}

func TestManagerConnectsWhenHealthy(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()

	assert.Equal(t, StateConnected, h.m.Status().State)
	assert.True(t, h.m.IsConnected())
	assert.Equal(t, []string{"ws://backend/ws"}, h.dialer.urls)
	assert.Equal(t, Status{State: StateConnected}, h.lastStatus())
}

func TestManagerInitialProbeFailure(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start()

	assert.Equal(t, Status{State: StateError, Err: ErrTextUnreachable}, h.m.Status())
	assert.Equal(t, 0, h.dialer.Dials())
	assert.Equal(t, 0, h.clock.Pending())
	assert.False(t, h.m.IsConnected())
}

func TestManagerCloseThenFailedProbeLeavesNoTimer(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()
	require.True(t, h.m.IsConnected())

	h.prober.Set(false)
	h.dialer.Last().Close()
	waitForState(t, h.m, StateDisconnected)
	require.Equal(t, 1, h.clock.Pending())
	assert.Equal(t, DefaultReconnectDelay, h.clock.delays[0])

	h.clock.Fire()
	assert.Equal(t, Status{State: StateError, Err: ErrTextNotResponding}, h.m.Status())
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 1, h.dialer.Dials())
}

func TestManagerCloseThenHealthyProbeReconnectsOnce(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()

	h.dialer.Last().Close()
	waitForState(t, h.m, StateDisconnected)

	h.clock.Fire()
	assert.Equal(t, StateConnected, h.m.Status().State)
	assert.Equal(t, 2, h.dialer.Dials())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestManagerRepeatedClosesCancelPriorTimer(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()

	h.m.mu.Lock()
	gen := h.m.mc.gen
	h.m.mu.Unlock()
	h.dialer.Last().Close()
	waitForState(t, h.m, StateDisconnected)
	require.Equal(t, 1, h.clock.Pending())

	// a second close notification for the same socket replaces the timer
	h.m.apply(evClosed{gen: gen})
	assert.Equal(t, 1, h.clock.Pending())
	assert.Len(t, h.clock.timers, 2)
	assert.True(t, h.clock.timers[0].stopped)

	h.clock.Fire()
	assert.Equal(t, 2, h.dialer.Dials(), "exactly one reconnect")
	assert.Equal(t, StateConnected, h.m.Status().State)
}

func TestManagerSocketErrorThenClose(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()

	h.dialer.Last().failErr <- errors.New("connection reset by peer")
	waitForState(t, h.m, StateDisconnected)
	assert.Equal(t, ErrTextSocketFailed, h.m.Status().Err)
	assert.Equal(t, 1, h.clock.Pending())

	var sawError bool
	h.mu.Lock()
	for _, s := range h.statuses {
		if s.State == StateError && s.Err == ErrTextSocketFailed {
			sawError = true
		}
	}
	h.mu.Unlock()
	assert.True(t, sawError)
}

func TestManagerDialFailureSchedulesReconnect(t *testing.T) {
	h := newHarness(t, true)
	h.dialer.fail = true
	h.m.Start()

	assert.Equal(t, Status{State: StateDisconnected, Err: ErrTextSocketFailed}, h.m.Status())
	assert.Equal(t, 1, h.clock.Pending())

	h.dialer.fail = false
	h.clock.Fire()
	assert.Equal(t, Status{State: StateConnected}, h.m.Status())
}

func TestManagerSendOnlyWhileOpen(t *testing.T) {
	h := newHarness(t, false)
	assert.False(t, h.m.Send([]byte(`{"type":"chat"}`)), "not started")

	h.m.Start()
	assert.False(t, h.m.Send([]byte(`{"type":"chat"}`)), "backend down")

	h.prober.Set(true)
	h.m.Reconnect()
	require.True(t, h.m.IsConnected())
	assert.True(t, h.m.Send([]byte(`{"type":"chat"}`)))
	assert.Equal(t, [][]byte{[]byte(`{"type":"chat"}`)}, h.dialer.Last().Written())

	h.dialer.Last().Close()
	waitForState(t, h.m, StateDisconnected)
	assert.False(t, h.m.Send([]byte(`{"type":"chat"}`)))
}

func TestManagerDeliversFramesInOrder(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()

	sock := h.dialer.Last()
	sock.in <- []byte(`{"type":"loading","data":{"is_loading":true}}`)
	sock.in <- []byte(`{"type":"history","data":{}}`)
	sock.in <- []byte(`{"type":"thinking","data":{"content":"a"}}`)
	sock.in <- []byte(`Hello`)
	sock.in <- []byte(`{"type":"response","data":{"content":"Hi","model":"flash"}}`)

	want := []wire.Event{
		{Type: wire.EventLoading, Loading: true},
		{Type: wire.EventThinking, Content: "a"},
		{Type: wire.EventResponse, Content: "Hello", Legacy: true},
		{Type: wire.EventResponse, Content: "Hi", Model: "flash"},
	}
	for i, w := range want {
		select {
		case got := <-h.frames.frames:
			assert.Equal(t, w, got, "frame %d", i)
		case <-time.After(time.Second):
			t.Fatalf("frame %d never arrived", i)
		}
	}
}

func TestManagerReconnectGuard(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()
	calls := h.prober.Calls()

	h.m.Reconnect()
	assert.Equal(t, calls, h.prober.Calls(), "reconnect while open is a no-op")
	assert.Equal(t, 1, h.dialer.Dials())
}

func TestManagerCloseTearsDown(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()
	sock := h.dialer.Last()

	sock.Close()
	waitForState(t, h.m, StateDisconnected)
	require.Equal(t, 1, h.clock.Pending())

	require.NoError(t, h.m.Close())
	assert.Equal(t, 0, h.clock.Pending())

	// late timer and reconnect requests do nothing
	h.clock.Fire()
	h.m.Reconnect()
	assert.Equal(t, 1, h.dialer.Dials())
}

func TestManagerUsesUpdatedURLAndDelay(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start()

	h.m.SetURL("ws://other/ws")
	h.m.SetReconnectDelay(500 * time.Millisecond)
	h.dialer.Last().Close()
	waitForState(t, h.m, StateDisconnected)
	assert.Equal(t, 500*time.Millisecond, h.clock.delays[0])

	h.clock.Fire()
	assert.Equal(t, []string{"ws://backend/ws", "ws://other/ws"}, h.dialer.urls)
}

func TestManagerSpawnsNothingAfterClose(t *testing.T) {
	h := newHarness(t, true)
	var spawned int
	h.m.spawn = func(f func()) {
		spawned++
		f()
	}
	h.m.Start()
	require.Equal(t, 2, spawned, "probe then dial")

	h.dialer.Last().Close()
	waitForState(t, h.m, StateDisconnected)
	require.Equal(t, 1, h.clock.Pending())
	fire := h.clock.timers[0].f

	require.NoError(t, h.m.Close())
	// a timer callback already running when Close stopped it
	fire()
	assert.Equal(t, 2, spawned)
	assert.Equal(t, 1, h.prober.Calls())
}

func TestManagerObserverMaySendDuringClose(t *testing.T) {
	clock := &fakeClock{}
	dialer := &fakeDialer{}
	m := NewManager(Options{
		URL:    "ws://backend/ws",
		Dialer: dialer,
		Prober: &fakeProber{healthy: true},
		Clock:  clock,
	})
	opened := make(chan struct{})
	m.Subscribe(func(s Status) {
		if s.State == StateConnected {
			close(opened)
			time.Sleep(50 * time.Millisecond)
			m.Send([]byte(`{"type":"switch_model"}`))
		}
	})
	m.Start()
	<-opened

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close never returned")
	}
	assert.Equal(t, StateDisconnected, m.Status().State)
}
