// Package relay is the reduced stand-in for the full gateway: the same two
// WebSocket endpoints, but no orchestrator behind them. Commands are mapped
// to canned events through a static table, so UI shells and wiring tests
// can exercise the protocol without running a pipeline.
package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/Jas0nOW/Vox-Voice/internal/bus"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// commandEvents maps a command type to the event types it fakes, in order.
// The command's payload is merged over each event's base payload.
var commandEvents = map[string][]string{
	"start_sim": {"session_start", "vad_start"},
	"stop":      {"tts_stop", "session_end"},
	"mute":      {"muted"},
	"sleep":     {"sleep_ack", "session_end"},
	"ptt_start": {"vad_start"},
	"ptt_stop":  {"stt_final"},
}

// basePayloads holds default payload fields for faked events.
var basePayloads = map[string]map[string]any{
	"stt_final": {"text": "", "confidence": 1.0},
	"tts_stop":  {"reason": "cancel"},
	"muted":     {"reason": "user_mute"},
}

// passthrough lists command types that are re-broadcast verbatim as an
// event of the same type.
var passthrough = map[string]struct{}{
	"set_routing_mode":    {},
	"set_console_mode":    {},
	"set_llm_backend":     {},
	"set_llm_profile":     {},
	"set_wake_words":      {},
	"set_skill_allowlist": {},
	"watchdog_restart":    {},
	"mark_golden":         {},
	"cancel_request":      {},
}

// eventComponents tags faked events with their pipeline component.
var eventComponents = map[string]string{
	"session_start": types.ComponentSystem,
	"session_end":   types.ComponentSystem,
	"sleep_ack":     types.ComponentSystem,
	"vad_start":     types.ComponentVAD,
	"stt_final":     types.ComponentSTT,
	"tts_stop":      types.ComponentTTS,
	"muted":         types.ComponentAudio,
}

// Option configures a [Relay].
type Option func(*Relay)

// WithBus replaces the relay-owned fan-out bus.
func WithBus(b *bus.Bus) Option {
	return func(r *Relay) { r.bus = b }
}

// Relay serves the gateway protocol from the static table.
type Relay struct {
	bus       *bus.Bus
	log       *slog.Logger
	sessionID string
}

// New returns a relay with a fresh fake session id.
func New(opts ...Option) *Relay {
	r := &Relay{
		log:       slog.Default().With("component", "relay"),
		sessionID: types.NewID(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.bus == nil {
		r.bus = bus.New()
	}
	return r
}

// Bus exposes the fan-out bus, mainly for tests.
func (r *Relay) Bus() *bus.Bus { return r.bus }

// Handler returns the HTTP handler serving both WebSocket endpoints.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/events", r.serveEvents)
	mux.HandleFunc("GET /ws/command", r.serveCommand)
	mux.HandleFunc("/ws/", r.rejectUnknown)
	return mux
}

// dispatch fans out the events faked for one command.
func (r *Relay) dispatch(cmd types.Command) types.Ack {
	for _, evType := range commandEvents[cmd.Type] {
		payload := map[string]any{}
		for k, v := range basePayloads[evType] {
			payload[k] = v
		}
		for k, v := range cmd.Payload {
			payload[k] = v
		}
		r.bus.Publish(types.NewEnvelope(r.sessionID, r.component(evType), evType, payload))
	}

	if _, ok := passthrough[cmd.Type]; ok {
		r.bus.Publish(types.NewEnvelope(r.sessionID, types.ComponentSystem, cmd.Type, cmd.Payload))
	}

	return types.Ack{OK: true, Type: cmd.Type}
}

func (r *Relay) component(evType string) string {
	if c, ok := eventComponents[evType]; ok {
		return c
	}
	return types.ComponentSystem
}

func (r *Relay) serveEvents(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		r.log.Warn("events accept failed", "error", err)
		return
	}

	sub, err := r.bus.Subscribe()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "event bus closed")
		return
	}
	defer r.bus.Unsubscribe(sub)

	ctx := conn.CloseRead(req.Context())
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "event bus closed")
				return
			}
			data, err := ev.MarshalText()
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		}
	}
}

func (r *Relay) serveCommand(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		r.log.Warn("command accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx := req.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		cmd, err := types.ParseCommand(data)
		var ack types.Ack
		if err != nil {
			ack = types.Ack{OK: false}
		} else {
			ack = r.dispatch(cmd)
		}

		out, err := json.Marshal(ack)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}

func (r *Relay) rejectUnknown(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	conn.Close(websocket.StatusPolicyViolation, "unknown websocket path: "+req.URL.Path)
}
