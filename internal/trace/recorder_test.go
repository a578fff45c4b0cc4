package trace_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Jas0nOW/Vox-Voice/internal/trace"
)

func TestThreadIDsInsertionOrdered(t *testing.T) {
	r := trace.NewRecorder(1)
	r.SpanBegin("system", "session", nil)
	r.SpanBegin("wake", "wakeword", nil)
	r.SpanEnd("wake", "wakeword", nil)
	r.SpanBegin("vad", "vad", nil)
	r.SpanEnd("vad", "vad", nil)
	r.SpanEnd("system", "session", nil)

	evs := r.Events()
	wantTids := map[string]int{"session": 1, "wakeword": 2, "vad": 3}
	for _, ev := range evs {
		if got := wantTids[ev.Name]; ev.Tid != got {
			t.Errorf("event %q tid = %d, want %d", ev.Name, ev.Tid, got)
		}
		if ev.Pid != 1 {
			t.Errorf("event %q pid = %d, want 1", ev.Name, ev.Pid)
		}
	}
}

func TestBeginEndAlternateStrictly(t *testing.T) {
	r := trace.NewRecorder(1)
	r.SpanBegin("llm", "llm", nil)
	r.SpanBegin("llm", "llm", nil) // same-name nesting: dropped
	r.SpanEnd("llm", "llm", nil)
	r.SpanEnd("llm", "llm", nil) // unbalanced end: dropped

	evs := r.Events()
	if len(evs) != 2 {
		t.Fatalf("recorded %d events, want 2", len(evs))
	}
	if evs[0].Ph != trace.PhaseBegin || evs[1].Ph != trace.PhaseEnd {
		t.Fatalf("phases = %s,%s, want B,E", evs[0].Ph, evs[1].Ph)
	}
}

func TestDistinctNamesMayNest(t *testing.T) {
	r := trace.NewRecorder(1)
	r.SpanBegin("system", "session", nil)
	r.SpanBegin("system", "setup", nil)
	r.SpanEnd("system", "setup", nil)
	r.SpanEnd("system", "session", nil)

	if got := len(r.Events()); got != 4 {
		t.Fatalf("recorded %d events, want 4", got)
	}
}

func TestCounterMergesValueIntoArgs(t *testing.T) {
	r := trace.NewRecorder(1)
	r.Counter("audio", "rms", 0.25, map[string]any{"channel": "in"})

	evs := r.Events()
	if len(evs) != 1 {
		t.Fatalf("recorded %d events, want 1", len(evs))
	}
	ev := evs[0]
	if ev.Ph != trace.PhaseCounter {
		t.Errorf("ph = %q, want C", ev.Ph)
	}
	if ev.Args["value"] != 0.25 {
		t.Errorf("args.value = %v", ev.Args["value"])
	}
	if ev.Args["channel"] != "in" {
		t.Errorf("args.channel = %v", ev.Args["channel"])
	}
}

func TestTimestampsMonotonic(t *testing.T) {
	r := trace.NewRecorder(1)
	for i := 0; i < 50; i++ {
		r.SpanBegin("stt", "stt", nil)
		r.SpanEnd("stt", "stt", nil)
	}
	evs := r.Events()
	for i := 1; i < len(evs); i++ {
		if evs[i].Ts < evs[i-1].Ts {
			t.Fatalf("timestamp regression at %d: %d < %d", i, evs[i].Ts, evs[i-1].Ts)
		}
	}
}

func TestExportFile(t *testing.T) {
	r := trace.NewRecorder(1)
	r.SpanBegin("tts", "tts", map[string]any{"voice": "seraphina"})
	r.SpanEnd("tts", "tts", nil)

	path := filepath.Join(t.TempDir(), "nested", "trace.json")
	if err := r.ExportFile(path); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evs []map[string]any
	if err := json.Unmarshal(data, &evs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("exported %d events, want 2", len(evs))
	}
	for _, key := range []string{"name", "ph", "ts", "pid", "tid"} {
		if _, ok := evs[0][key]; !ok {
			t.Errorf("exported event missing %q", key)
		}
	}
	if _, ok := evs[1]["args"]; ok {
		t.Error("empty args should be omitted")
	}
}

func TestEmptyExportIsArray(t *testing.T) {
	r := trace.NewRecorder(1)
	data, err := r.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("empty export = %s, want []", data)
	}
}
