// Package trace records a per-session span timeline in the Chrome
// trace-event format.
//
// The recorder assigns each pipeline component a stable thread id on first
// use so that viewers (Perfetto, chrome://tracing) render one lane per
// component. Begin/End events for the same (component, name) pair must
// alternate strictly — the viewers' nesting rules reject same-name overlap
// on one lane, so [Recorder.SpanBegin] refuses to open a span that is
// already open.
package trace

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// Phases of a trace event.
const (
	PhaseBegin   = "B"
	PhaseEnd     = "E"
	PhaseCounter = "C"
)

// Event is one entry of the exported timeline.
type Event struct {
	Name string         `json:"name"`
	Ph   string         `json:"ph"`
	Ts   int64          `json:"ts"`
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Dur  *int64         `json:"dur,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// Recorder accumulates trace events for one session. Safe for concurrent use.
type Recorder struct {
	pid int

	mu      sync.Mutex
	events  []Event
	tids    map[string]int
	tidNext int
	open    map[[2]string]bool // (component, name) pairs with an unclosed B
}

// NewRecorder creates a Recorder reporting the given process id (the
// orchestrator uses pid 1 for the engine process).
func NewRecorder(pid int) *Recorder {
	return &Recorder{
		pid:     pid,
		tids:    make(map[string]int),
		tidNext: 1,
		open:    make(map[[2]string]bool),
	}
}

// tid returns the thread id for component, assigning the next id on first
// use. Caller must hold mu.
func (r *Recorder) tid(component string) int {
	id, ok := r.tids[component]
	if !ok {
		id = r.tidNext
		r.tidNext++
		r.tids[component] = id
	}
	return id
}

// SpanBegin opens a span for (component, name). Opening a span that is
// already open is a programming error; the call is dropped with a warning to
// keep the export well-formed.
func (r *Recorder) SpanBegin(component, name string, args map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{component, name}
	if r.open[key] {
		slog.Warn("trace: span already open, dropping begin", "component", component, "name", name)
		return
	}
	r.open[key] = true
	r.events = append(r.events, Event{
		Name: name, Ph: PhaseBegin, Ts: types.NowUnixUS(),
		Pid: r.pid, Tid: r.tid(component), Args: args,
	})
}

// SpanEnd closes the span for (component, name). Ending a span that is not
// open is dropped with a warning.
func (r *Recorder) SpanEnd(component, name string, args map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{component, name}
	if !r.open[key] {
		slog.Warn("trace: span not open, dropping end", "component", component, "name", name)
		return
	}
	delete(r.open, key)
	r.events = append(r.events, Event{
		Name: name, Ph: PhaseEnd, Ts: types.NowUnixUS(),
		Pid: r.pid, Tid: r.tid(component), Args: args,
	})
}

// Counter records an instantaneous counter sample on the component's lane.
func (r *Recorder) Counter(component, name string, value float64, args map[string]any) {
	merged := map[string]any{"value": value}
	for k, v := range args {
		merged[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		Name: name, Ph: PhaseCounter, Ts: types.NowUnixUS(),
		Pid: r.pid, Tid: r.tid(component), Args: merged,
	})
}

// Events returns a copy of the recorded timeline.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Export serializes the timeline as a JSON array of trace events.
func (r *Recorder) Export() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		return json.Marshal([]Event{})
	}
	return json.Marshal(r.events)
}

// ExportFile writes the JSON export to path, creating parent directories.
func (r *Recorder) ExportFile(path string) error {
	data, err := r.Export()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
