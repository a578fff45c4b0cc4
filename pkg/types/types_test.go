package types_test

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// ── IDs ──────────────────────────────────────────────────────────────────────

func TestNewIDLength(t *testing.T) {
	id := types.NewID()
	if len(id) != 26 {
		t.Fatalf("NewID() length = %d, want 26 (%q)", len(id), id)
	}
}

func TestNewIDSortsByCreationOrder(t *testing.T) {
	const n = 1000
	ids := make([]string, n)
	for i := range ids {
		ids[i] = types.NewID()
	}
	sorted := make([]string, n)
	copy(sorted, ids)
	sort.Strings(sorted)
	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("ids not in creation order at index %d: %q vs %q", i, ids[i], sorted[i])
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := types.NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

// ── Envelope ─────────────────────────────────────────────────────────────────

func TestNewEnvelopeDefaults(t *testing.T) {
	ev := types.NewEnvelope("sess-1", types.ComponentSTT, "stt_final", nil)

	if ev.SchemaVersion != "1.0" {
		t.Errorf("SchemaVersion = %q, want 1.0", ev.SchemaVersion)
	}
	if ev.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", ev.SessionID)
	}
	if len(ev.EventID) != 26 {
		t.Errorf("EventID length = %d, want 26", len(ev.EventID))
	}
	if ev.TsUnixMS == 0 {
		t.Error("TsUnixMS not stamped")
	}
	if ev.Payload == nil {
		t.Error("nil payload not replaced with empty map")
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	ev := types.NewEnvelope("s", types.ComponentVAD, "vad_start", map[string]any{"source": "ptt"})
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"schema_version", "event_id", "session_id", "ts_unix_ms", "component", "type", "payload"} {
		if _, ok := m[key]; !ok {
			t.Errorf("wire frame missing key %q", key)
		}
	}
	payload := m["payload"].(map[string]any)
	if payload["source"] != "ptt" {
		t.Errorf("payload.source = %v", payload["source"])
	}
}

// ── Command ──────────────────────────────────────────────────────────────────

func TestParseCommand(t *testing.T) {
	cmd, err := types.ParseCommand([]byte(`{"type":"set_wake_words","payload":{"words":["alpha","beta"]}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Type != "set_wake_words" {
		t.Errorf("Type = %q", cmd.Type)
	}
	words := cmd.Strings("words")
	if len(words) != 2 || words[0] != "alpha" || words[1] != "beta" {
		t.Errorf("Strings(words) = %v", words)
	}
}

func TestParseCommandNilPayload(t *testing.T) {
	cmd, err := types.ParseCommand([]byte(`{"type":"stop"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Payload == nil {
		t.Fatal("payload should default to empty map")
	}
}

func TestParseCommandMalformed(t *testing.T) {
	if _, err := types.ParseCommand([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}

func TestCommandAccessors(t *testing.T) {
	cmd := types.Command{Payload: map[string]any{
		"mode":        "persistent",
		"auto_attach": false,
		"words":       []any{"vox", 7, ""},
	}}
	if got := cmd.String("mode"); got != "persistent" {
		t.Errorf("String(mode) = %q", got)
	}
	if got := cmd.String("missing"); got != "" {
		t.Errorf("String(missing) = %q", got)
	}
	if got := cmd.Bool("auto_attach", true); got {
		t.Error("Bool(auto_attach) should be false")
	}
	if got := cmd.Bool("missing", true); !got {
		t.Error("Bool default not honoured")
	}
	if got := cmd.Strings("words"); len(got) != 1 || got[0] != "vox" {
		t.Errorf("Strings(words) = %v, want [vox]", got)
	}
}

// ── CancelToken ──────────────────────────────────────────────────────────────

func TestCancelTokenLatch(t *testing.T) {
	tok := types.NewCancelToken()
	if tok.IsCancelled() {
		t.Fatal("fresh token already cancelled")
	}
	select {
	case <-tok.Done():
		t.Fatal("Done closed before Cancel")
	default:
	}

	tok.Cancel()
	tok.Cancel() // idempotent

	if !tok.IsCancelled() {
		t.Fatal("token not cancelled after Cancel")
	}
	select {
	case <-tok.Done():
	default:
		t.Fatal("Done not closed after Cancel")
	}
}
