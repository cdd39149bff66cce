package conn

// State is the connection state shown to the user.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Error texts reported alongside StateError.
const (
	ErrTextUnreachable   = "backend unreachable"
	ErrTextNotResponding = "backend not responding"
	ErrTextSocketFailed  = "connection failed"
)

type probePhase int

const (
	probeInitial probePhase = iota
	probeRetry
	probeManual
)

func (p probePhase) String() string {
	switch p {
	case probeInitial:
		return "initial"
	case probeRetry:
		return "retry"
	default:
		return "manual"
	}
}

// machine is the complete transition state. It is a value so step stays pure.
type machine struct {
	state   State
	errText string

	started bool
	stopped bool

	probing    bool
	connecting bool // a dial is in flight
	open       bool

	// gen identifies the current socket attempt; events from older attempts
	// are dropped.
	gen uint64
	// timerSeq identifies the pending reconnect timer.
	timerSeq     uint64
	timerPending bool
}

type event interface{ isEvent() }

type (
	evStart       struct{}
	evStop        struct{}
	evReconnect   struct{}
	evProbeResult struct {
		ok    bool
		phase probePhase
	}
	evOpened      struct{ gen uint64 }
	evSocketError struct{ gen uint64 }
	evClosed      struct{ gen uint64 }
	evTimerFired  struct{ seq uint64 }
)

func (evStart) isEvent()       {}
func (evStop) isEvent()        {}
func (evReconnect) isEvent()   {}
func (evProbeResult) isEvent() {}
func (evOpened) isEvent()      {}
func (evSocketError) isEvent() {}
func (evClosed) isEvent()      {}
func (evTimerFired) isEvent()  {}

type effect interface{ isEffect() }

type (
	effProbe         struct{ phase probePhase }
	effDial          struct{ gen uint64 }
	effScheduleTimer struct{ seq uint64 }
	effCancelTimer   struct{}
	effCloseSocket   struct{}
	effNotify        struct{}
)

func (effProbe) isEffect()         {}
func (effDial) isEffect()          {}
func (effScheduleTimer) isEffect() {}
func (effCancelTimer) isEffect()   {}
func (effCloseSocket) isEffect()   {}
func (effNotify) isEffect()        {}

// step computes the next machine and the effects the caller must perform.
func step(m machine, ev event) (machine, []effect) {
	if m.stopped {
		return m, nil
	}

	switch e := ev.(type) {
	case evStart:
		if m.started {
			return m, nil
		}
		m.started = true
		m.probing = true
		m.state = StateConnecting
		m.errText = ""
		return m, []effect{effNotify{}, effProbe{phase: probeInitial}}

	case evProbeResult:
		if !m.probing {
			return m, nil
		}
		m.probing = false
		if !e.ok {
			m.state = StateError
			if e.phase == probeRetry {
				m.errText = ErrTextNotResponding
			} else {
				m.errText = ErrTextUnreachable
			}
			return m, []effect{effNotify{}}
		}
		return connect(m)

	case evOpened:
		if e.gen != m.gen || !m.connecting {
			return m, nil
		}
		m.connecting = false
		m.open = true
		m.state = StateConnected
		m.errText = ""
		return m, []effect{effNotify{}}

	case evSocketError:
		if e.gen != m.gen {
			return m, nil
		}
		m.connecting = false
		m.state = StateError
		m.errText = ErrTextSocketFailed
		return m, []effect{effNotify{}}

	case evClosed:
		if e.gen != m.gen {
			return m, nil
		}
		m.connecting = false
		m.open = false
		m.state = StateDisconnected
		m.timerSeq++
		m.timerPending = true
		return m, []effect{
			effCloseSocket{},
			effCancelTimer{},
			effScheduleTimer{seq: m.timerSeq},
			effNotify{},
		}

	case evTimerFired:
		if !m.timerPending || e.seq != m.timerSeq {
			return m, nil
		}
		m.timerPending = false
		m.probing = true
		return m, []effect{effProbe{phase: probeRetry}}

	case evReconnect:
		if !m.started || m.probing || m.connecting || m.open {
			return m, nil
		}
		var effs []effect
		if m.timerPending {
			m.timerPending = false
			effs = append(effs, effCancelTimer{})
		}
		m.probing = true
		m.state = StateConnecting
		m.errText = ""
		return m, append(effs, effNotify{}, effProbe{phase: probeManual})

	case evStop:
		m.stopped = true
		m.probing = false
		m.connecting = false
		m.open = false
		m.timerPending = false
		m.state = StateDisconnected
		return m, []effect{effCancelTimer{}, effCloseSocket{}, effNotify{}}
	}
	return m, nil
}

// connect starts a dial unless one is already in flight or a socket is open.
func connect(m machine) (machine, []effect) {
	if m.connecting || m.open {
		return m, nil
	}
	m.connecting = true
	m.gen++
	m.state = StateConnecting
	m.errText = ""
	return m, []effect{effNotify{}, effDial{gen: m.gen}}
}
