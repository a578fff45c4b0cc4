// Package engine implements the session orchestrator: the state machine
// that drives one wake-to-speak interaction through its pipeline stages
// (wake, VAD, STT, routing, LLM, TTS), broadcasts every observable step as
// an envelope on the event bus, and persists run artifacts when the session
// ends.
//
// The engine owns all runtime selections (LLM backend and profile, STT
// profile, TTS voice, VAD profile, dev context) and mutates them only
// through [Engine.HandleCommand]. A running session works on a snapshot of
// the selections taken at start, so mid-session commands affect the next
// session, not the current one.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Jas0nOW/Vox-Voice/internal/bus"
	"github.com/Jas0nOW/Vox-Voice/internal/cas"
	"github.com/Jas0nOW/Vox-Voice/internal/config"
	"github.com/Jas0nOW/Vox-Voice/internal/observe"
	"github.com/Jas0nOW/Vox-Voice/internal/router"
	"github.com/Jas0nOW/Vox-Voice/internal/run"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
	llmsim "github.com/Jas0nOW/Vox-Voice/pkg/provider/llm/sim"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/stt"
	sttsim "github.com/Jas0nOW/Vox-Voice/pkg/provider/stt/sim"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts"
	ttssim "github.com/Jas0nOW/Vox-Voice/pkg/provider/tts/sim"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// Option configures an [Engine].
type Option func(*Engine)

// WithBus replaces the engine-owned event bus.
func WithBus(b *bus.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithMetrics replaces the default metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStepDelay sets the pause between simulated pipeline steps. Tests use
// zero for instant runs; interactive demos use tens of milliseconds so the
// event cadence resembles a real conversation.
func WithStepDelay(d time.Duration) Option {
	return func(e *Engine) { e.stepDelay = d }
}

// WithRunsDir sets the root directory for per-session run artifacts.
func WithRunsDir(dir string) Option {
	return func(e *Engine) { e.runs = run.NewWriter(dir) }
}

// WithCASDir sets the root directory of the content-addressed store.
func WithCASDir(dir string) Option {
	return func(e *Engine) { e.cas = cas.New(dir) }
}

// WithSTT replaces the transcription adapter.
func WithSTT(a stt.Adapter) Option {
	return func(e *Engine) { e.stt = a }
}

// WithTTS replaces the synthesis adapter.
func WithTTS(a tts.Adapter) Option {
	return func(e *Engine) { e.tts = a }
}

// WithLLM registers the reasoning adapter for one backend. Backends without
// a registered adapter fall back to the simulator.
func WithLLM(backend config.LLMBackend, a llm.Adapter) Option {
	return func(e *Engine) { e.llms[backend] = a }
}

// WithRouter replaces the utterance router.
func WithRouter(r *router.Router) Option {
	return func(e *Engine) { e.router = r }
}

// Engine is the session orchestrator. Safe for concurrent use: command
// dispatch, the pipeline goroutine, and gateway reads may overlap freely.
type Engine struct {
	cfg     *config.Config
	bus     *bus.Bus
	cas     *cas.Store
	runs    *run.Writer
	metrics *observe.Metrics
	router  *router.Router
	log     *slog.Logger

	stt    stt.Adapter
	tts    tts.Adapter
	llms   map[config.LLMBackend]llm.Adapter
	simLLM llm.Adapter

	stepDelay time.Duration

	mu      sync.Mutex
	session *Session

	// Runtime selections, mutable via commands between sessions.
	llmBackend  config.LLMBackend
	llmProfile  string
	sttProfile  string
	ttsVoice    string
	vadProfile  string
	ollamaModel string
	consoleMode string

	devText       string
	devMode       string
	devAutoAttach bool
}

// New returns an engine initialised from cfg. Unless overridden by options
// it owns a fresh bus, simulator adapters, and the default metric set.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:         cfg,
		metrics:     observe.DefaultMetrics(),
		router:      router.New(),
		log:         slog.Default().With("component", "engine"),
		stt:         sttsim.New(),
		tts:         ttssim.New(),
		llms:        map[config.LLMBackend]llm.Adapter{},
		simLLM:      llmsim.New(),
		runs:        run.NewWriter("runs"),
		cas:         cas.New("cas"),
		llmBackend:  cfg.LLM.Backend,
		llmProfile:  cfg.LLM.ActiveProfile,
		sttProfile:  cfg.STT.ActiveProfile,
		ttsVoice:    cfg.TTS.DefaultVoice,
		vadProfile:  "chat",
		ollamaModel: cfg.LLM.Ollama.Model,
		consoleMode: "normal",
	}
	for _, o := range opts {
		o(e)
	}
	if e.bus == nil {
		e.bus = bus.New(bus.WithMetrics(e.metrics))
	}
	return e
}

// Bus exposes the event bus for gateway subscriptions.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// CurrentSessionID returns the live session's id, or "" when idle.
func (e *Engine) CurrentSessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil && e.session.Live() {
		return e.session.ID
	}
	return ""
}

// emit publishes one envelope on the bus.
func (e *Engine) emit(sessionID, component, typ string, payload map[string]any) {
	e.bus.Publish(types.NewEnvelope(sessionID, component, typ, payload))
}

// eventSessionID returns the live session id if one exists, otherwise a
// fresh id so out-of-session events still carry a valid reference.
func (e *Engine) eventSessionID() string {
	if sid := e.CurrentSessionID(); sid != "" {
		return sid
	}
	return types.NewID()
}

// selection is the frozen view of config and runtime state one session runs
// with. Captured under the engine lock at StartSim.
type selection struct {
	backend    config.LLMBackend
	llmProfile string
	profileCfg config.LLMProfile
	model      string

	sttProfile string
	ttsVoice   string
	vadProfile string
	vadCfg     config.VADProfile

	wakeWords []string

	devText   string
	devMode   string
	devAttach bool

	snapshot *config.Snapshot
}

func (e *Engine) selectionLocked() (selection, error) {
	snap, err := config.NewSnapshot(e.cfg)
	if err != nil {
		return selection{}, err
	}
	model := e.cfg.LLM.Profiles[e.llmProfile].Model
	if e.llmBackend == config.BackendOllama {
		model = e.ollamaModel
	}
	return selection{
		backend:    e.llmBackend,
		llmProfile: e.llmProfile,
		profileCfg: e.cfg.LLM.Profiles[e.llmProfile],
		model:      model,
		sttProfile: e.sttProfile,
		ttsVoice:   e.ttsVoice,
		vadProfile: e.vadProfile,
		vadCfg:     e.cfg.VAD.Profiles[e.vadProfile],
		wakeWords:  append([]string(nil), e.cfg.WakeWord.Words...),
		devText:    e.devText,
		devMode:    e.devMode,
		devAttach:  e.devAutoAttach && e.devText != "",
		snapshot:   snap,
	}, nil
}

// StartSim reserves the single live-session slot and launches the simulated
// pipeline in the background. When another session is live it broadcasts
// session_busy instead and reports started=false.
func (e *Engine) StartSim(ctx context.Context) (sessionID string, started bool) {
	e.mu.Lock()
	if e.session != nil && e.session.Live() {
		active := e.session.ID
		e.mu.Unlock()
		e.emit(active, types.ComponentSystem, "session_busy", map[string]any{
			"active_session_id": active,
		})
		return "", false
	}

	s := newSession()
	sel, err := e.selectionLocked()
	if err != nil {
		e.mu.Unlock()
		e.log.Error("config snapshot failed", "error", err)
		e.emit(s.ID, types.ComponentSystem, "error_raised", map[string]any{
			"component": "system",
			"code":      "SNAPSHOT_ERROR",
			"message":   err.Error(),
		})
		return "", false
	}
	e.session = s
	e.mu.Unlock()

	go e.runSession(context.WithoutCancel(ctx), s, sel)
	return s.ID, true
}

// pause sleeps one simulated step, waking early on cancellation.
func (e *Engine) pause(s *Session) {
	if e.stepDelay <= 0 {
		return
	}
	select {
	case <-time.After(e.stepDelay):
	case <-s.Cancel.Done():
	}
}

// clearDevContextOnce drops a "once" dev context after the session that
// consumed it.
func (e *Engine) clearDevContextOnce(sel selection) {
	if !sel.devAttach || sel.devMode != "once" {
		return
	}
	e.mu.Lock()
	e.devText = ""
	e.devAutoAttach = false
	e.mu.Unlock()
}
