package run_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Jas0nOW/Vox-Voice/internal/run"
)

func TestWriteManifestLayout(t *testing.T) {
	root := t.TempDir()
	w := run.NewWriter(root)

	m := run.Manifest{
		SchemaVersion: "1.0",
		SessionID:     "01JABCDEFGHJKMNPQRSTVWXYZ0",
		StartedAtMS:   1000,
		EndedAtMS:     2000,
		Mode:          "sim",
		LLM:           run.LLMSelection{Backend: "gemini_cli", Profile: "fast"},
		DevContext:    run.DevContextMarker{Attached: false, Mode: "once"},
		Artifacts: map[string]string{
			"transcripts_json_sha256": strings.Repeat("a", 64),
			"trace_json_sha256":       strings.Repeat("b", 64),
			"config_json_sha256":      strings.Repeat("c", 64),
		},
	}

	path, err := w.WriteManifest(m)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	date := time.Now().Format("2006-01-02")
	want := filepath.Join(root, date, m.SessionID, "manifest.json")
	if path != want {
		t.Fatalf("manifest path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded run.Manifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.SessionID != m.SessionID {
		t.Errorf("session id = %q", decoded.SessionID)
	}
	if decoded.Artifacts["trace_json_sha256"] != strings.Repeat("b", 64) {
		t.Errorf("trace digest = %q", decoded.Artifacts["trace_json_sha256"])
	}
	if decoded.Failed {
		t.Error("failed flag should be absent for a clean run")
	}
}

func TestManifestOmitsFailedWhenFalse(t *testing.T) {
	data, err := json.Marshal(run.Manifest{SchemaVersion: "1.0", SessionID: "s"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "failed") {
		t.Errorf("clean manifest serializes failed flag: %s", data)
	}
}

func TestSessionDirCreated(t *testing.T) {
	w := run.NewWriter(t.TempDir())
	dir, err := w.SessionDir("sess-1")
	if err != nil {
		t.Fatalf("session dir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("session dir not created: %v", err)
	}
}
