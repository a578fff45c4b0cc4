// Package types defines the shared types used across all Vox-Voice packages.
//
// These types form the lingua franca between the orchestrator, the event bus,
// the WebSocket gateway, and the artifact store. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import "encoding/json"

// SchemaVersion is the wire schema version stamped on every envelope.
const SchemaVersion = "1.0"

// Component tags identify which pipeline stage emitted an event.
const (
	ComponentSystem = "system"
	ComponentAudio  = "audio"
	ComponentDSP    = "dsp"
	ComponentWake   = "wake"
	ComponentVAD    = "vad"
	ComponentSTT    = "stt"
	ComponentRouter = "router"
	ComponentLLM    = "llm"
	ComponentTTS    = "tts"
	ComponentDevCtx = "devctx"
	ComponentOrb    = "orb"
)

// Envelope is the immutable record of one observable event. Envelopes are
// created by the orchestrator or command handler, fanned out through the
// event bus, and serialized verbatim onto the /ws/events wire.
//
// Within one session, TsUnixMS is monotonically non-decreasing per component.
type Envelope struct {
	// SchemaVersion is fixed at "1.0" for this wire generation.
	SchemaVersion string `json:"schema_version"`

	// EventID is a sortable unique identifier assigned at creation.
	EventID string `json:"event_id"`

	// SessionID identifies the session this event belongs to.
	SessionID string `json:"session_id"`

	// TsUnixMS is the wall-clock emission time in milliseconds.
	TsUnixMS int64 `json:"ts_unix_ms"`

	// Component is the short tag of the emitting pipeline stage.
	Component string `json:"component"`

	// Type is a dot-free event identifier, e.g. "vad_start" or "stt_final".
	Type string `json:"type"`

	// Payload carries event-specific key/value pairs. Free-form by design so
	// new fields can ship without a schema bump.
	Payload map[string]any `json:"payload"`
}

// NewEnvelope stamps a fresh envelope with the current schema version, a new
// event id, and the current wall time. A nil payload becomes an empty map so
// the wire form is always an object.
func NewEnvelope(sessionID, component, typ string, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		SchemaVersion: SchemaVersion,
		EventID:       NewID(),
		SessionID:     sessionID,
		TsUnixMS:      NowUnixMS(),
		Component:     component,
		Type:          typ,
		Payload:       payload,
	}
}

// MarshalJSON serializes the envelope as a plain JSON object. Without it,
// json.Marshal would select MarshalText and string-encode the frame, and
// MarshalText's own json.Marshal call would recurse forever.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	return json.Marshal(plain(e))
}

// MarshalText returns the single-frame JSON serialization of the envelope.
func (e Envelope) MarshalText() ([]byte, error) {
	return json.Marshal(e)
}

// Command is an inbound control message from a /ws/command client.
// Commands are transient: they are parsed, dispatched, acknowledged, and
// never persisted.
type Command struct {
	// Type identifies the command (e.g. "start_sim", "stop", "set_llm_backend").
	Type string `json:"type"`

	// SessionID optionally targets a specific session. Most commands apply to
	// the current session and leave this empty.
	SessionID string `json:"session_id,omitempty"`

	// Payload carries command-specific arguments.
	Payload map[string]any `json:"payload"`
}

// ParseCommand decodes a command from one JSON text frame.
func ParseCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, err
	}
	if c.Payload == nil {
		c.Payload = map[string]any{}
	}
	return c, nil
}

// Ack is the per-frame acknowledgement sent back to a command client.
// Unknown command types are acknowledged too; only transport errors go
// unanswered.
type Ack struct {
	OK   bool   `json:"ok"`
	Type string `json:"type"`
}

// String extracts a string value from a payload map. Returns "" if the key is
// absent or holds a non-string value.
func (c Command) String(key string) string {
	v, ok := c.Payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Strings extracts a list of strings from a payload map, skipping empty and
// non-string elements.
func (c Command) Strings(key string) []string {
	v, ok := c.Payload[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Bool extracts a boolean value from a payload map, returning def when the
// key is absent or not a bool.
func (c Command) Bool(key string, def bool) bool {
	v, ok := c.Payload[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
