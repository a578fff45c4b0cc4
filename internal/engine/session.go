package engine

import (
	"sync"

	"github.com/Jas0nOW/Vox-Voice/internal/trace"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// State is the lifecycle phase of a session. Transitions are linear
// (listening → transcribing → reasoning → speaking → ended) with cancelling
// reachable from any live phase.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateReasoning    State = "reasoning"
	StateSpeaking     State = "speaking"
	StateCancelling   State = "cancelling"
	StateEnded        State = "ended"
)

// Session is one wake-to-speak interaction. At most one session is live at
// any time; the engine enforces that on StartSim.
type Session struct {
	ID          string
	StartedAtMS int64

	// Cancel is the shared latch between the command handler and the
	// pipeline goroutine. Stage loops poll it at chunk boundaries.
	Cancel *types.CancelToken

	trace *trace.Recorder

	mu           sync.Mutex
	state        State
	endedAtMS    int64
	cancelReason string
	cancelDone   bool
	failed       bool
}

func newSession() *Session {
	return &Session{
		ID:          types.NewID(),
		StartedAtMS: types.NowUnixMS(),
		Cancel:      types.NewCancelToken(),
		trace:       trace.NewRecorder(1),
		state:       StateListening,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Live reports whether the session still occupies the single live slot.
func (s *Session) Live() bool {
	return s.State() != StateEnded
}

// RequestCancel sets the latch. The first reason wins; later calls only
// re-assert the latch.
func (s *Session) RequestCancel(reason string) {
	s.mu.Lock()
	if s.cancelReason == "" {
		s.cancelReason = reason
	}
	s.mu.Unlock()
	s.Cancel.Cancel()
}

// CancelReason returns the reason recorded by the first RequestCancel.
func (s *Session) CancelReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelReason
}

// markCancelDone returns true exactly once per session, so cancel_done is
// broadcast a single time no matter how many boundaries observe the latch.
func (s *Session) markCancelDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelDone {
		return false
	}
	s.cancelDone = true
	return true
}

func (s *Session) markFailed() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
}

// Failed reports whether an adapter or storage error was raised during the
// session.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *Session) end() {
	s.mu.Lock()
	s.state = StateEnded
	s.endedAtMS = types.NowUnixMS()
	s.mu.Unlock()
}

// EndedAtMS returns the wall-clock end time, or 0 while the session is live.
func (s *Session) EndedAtMS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAtMS
}
