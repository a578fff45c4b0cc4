package config_test

import (
	"strings"
	"testing"

	"github.com/Jas0nOW/Vox-Voice/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	yml := `
llm:
  backend: ollama
  active_profile: reasoning
  ollama:
    base_url: http://10.0.0.5:11434
    model: qwen3
wakeword:
  threshold: 0.7
  words: [vox, wanda]
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Backend != config.BackendOllama {
		t.Errorf("backend = %q", cfg.LLM.Backend)
	}
	if cfg.LLM.Ollama.Model != "qwen3" {
		t.Errorf("ollama model = %q", cfg.LLM.Ollama.Model)
	}
	if got := cfg.LLM.Profiles["reasoning"].Model; got != "gemini-3-pro-preview" {
		t.Errorf("reasoning profile lost its default model, got %q", got)
	}
	if len(cfg.WakeWord.Words) != 2 {
		t.Errorf("wake words = %v", cfg.WakeWord.Words)
	}
	// Untouched sections keep defaults.
	if cfg.Audio.SampleRateHz != 48000 {
		t.Errorf("sample rate = %d", cfg.Audio.SampleRateHz)
	}
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("llm:\n  backnd: ollama\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Backend = "claude"
	cfg.LLM.ActiveProfile = "missing"
	cfg.WakeWord.Words = nil
	cfg.DSP.Mode = "studio"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"llm.backend", "llm.active_profile", "wakeword.words", "dsp.mode"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir() + "/nope.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Backend != config.BackendGeminiCLI {
		t.Errorf("backend = %q", cfg.LLM.Backend)
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	a, err := config.NewSnapshot(config.Default())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	b, err := config.NewSnapshot(config.Default())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if a.SHA256() != b.SHA256() {
		t.Errorf("equal configs produced different digests: %s vs %s", a.SHA256(), b.SHA256())
	}
	if len(a.SHA256()) != 64 {
		t.Errorf("digest length = %d", len(a.SHA256()))
	}
	if !strings.Contains(string(a.JSON()), `"schema_version"`) {
		t.Error("snapshot JSON missing schema_version key")
	}
}

func TestSnapshotChangesWithConfig(t *testing.T) {
	base, _ := config.NewSnapshot(config.Default())
	cfg := config.Default()
	cfg.LLM.Backend = config.BackendOllama
	other, _ := config.NewSnapshot(cfg)
	if base.SHA256() == other.SHA256() {
		t.Error("different configs produced the same digest")
	}
}

func TestRegistry(t *testing.T) {
	reg := config.NewRegistry[string]("stt")
	reg.Register("sim", func(cfg *config.Config) (string, error) {
		return "sim:" + cfg.STT.ActiveProfile, nil
	})

	got, err := reg.New("sim", config.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got != "sim:fast" {
		t.Errorf("built %q", got)
	}
	if _, err := reg.New("nope", config.Default()); err == nil {
		t.Error("expected error for unknown adapter")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "sim" {
		t.Errorf("names = %v", names)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg := config.NewRegistry[int]("tts")
	f := func(cfg *config.Config) (int, error) { return 0, nil }
	reg.Register("sim", f)
	reg.Register("sim", f)
}
