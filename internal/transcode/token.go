package transcode

import "sync/atomic"

// State is the lifecycle of the job slot.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// Token is the shared cancellation flag of a job. Workers read it before each
// pop; a cancel request moves it to Cancelling; the supervisor returns it to
// Idle once every worker has stopped.
type Token struct {
	state atomic.Int32
}

// NewToken creates an idle token.
func NewToken() *Token {
	return &Token{}
}

// State returns the current state.
func (t *Token) State() State {
	return State(t.state.Load())
}

// Running reports whether workers may pop another path.
func (t *Token) Running() bool {
	return t.State() == StateRunning
}

// TryStart moves Idle to Running. It fails while a job is running or cancelling.
func (t *Token) TryStart() bool {
	return t.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
}

// Cancel moves Running to Cancelling. It reports false when no job is running.
func (t *Token) Cancel() bool {
	return t.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling))
}

// Finish returns the token to Idle.
func (t *Token) Finish() {
	t.state.Store(int32(StateIdle))
}
