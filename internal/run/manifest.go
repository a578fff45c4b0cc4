// Package run persists per-session run artifacts: the dated run directory
// and the manifest that references every artifact by its CAS digest.
//
// Layout on disk:
//
//	<runs>/YYYY-MM-DD/<session_id>/manifest.json
//	<runs>/YYYY-MM-DD/<session_id>/trace.json
//
// Manifests carry timing, profile selections, and digests — never artifact
// content and never the dev-context text.
package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest is the JSON record written once at session end.
type Manifest struct {
	SchemaVersion string `json:"schema_version"`
	SessionID     string `json:"session_id"`
	StartedAtMS   int64  `json:"started_at_unix_ms"`
	EndedAtMS     int64  `json:"ended_at_unix_ms"`
	Mode          string `json:"mode"`
	Failed        bool   `json:"failed,omitempty"`

	LLM        LLMSelection      `json:"llm"`
	DevContext DevContextMarker  `json:"dev_context"`
	Artifacts  map[string]string `json:"artifacts"`
}

// LLMSelection records which backend and profile served the session.
type LLMSelection struct {
	Backend    string         `json:"backend"`
	Profile    string         `json:"profile"`
	ProfileCfg map[string]any `json:"profile_cfg,omitempty"`
}

// DevContextMarker records whether an untrusted dev-context blob was
// attached. Only the marker ships; the content never leaves process memory.
type DevContextMarker struct {
	Attached bool   `json:"attached"`
	Mode     string `json:"mode"`
}

// Writer places run directories under a root, one per session per day.
type Writer struct {
	root string
	// now is swappable for tests that pin the date.
	now func() time.Time
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{root: dir, now: time.Now}
}

// SessionDir returns (and creates) the dated directory for sessionID.
func (w *Writer) SessionDir(sessionID string) (string, error) {
	dir := filepath.Join(w.root, w.now().Format("2006-01-02"), sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("run: mkdir %q: %w", dir, err)
	}
	return dir, nil
}

// WriteManifest writes m as manifest.json into the session's run directory
// and returns the manifest path.
func (w *Writer) WriteManifest(m Manifest) (string, error) {
	dir, err := w.SessionDir(m.SessionID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("run: marshal manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("run: write manifest: %w", err)
	}
	return path, nil
}
