package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a YAML configuration file. Values not present in
// the file keep their [Default] value. A missing file is not an error; the
// defaults are returned unchanged.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Unknown keys are rejected so typos surface at startup rather than
// as silently ignored settings.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency. All problems
// are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if !c.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level: unknown level %q", c.Server.LogLevel))
	}
	if c.Audio.SampleRateHz <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate_hz: must be positive, got %d", c.Audio.SampleRateHz))
	}
	if m := c.DSP.Mode; m != "headset" && m != "speakers" {
		errs = append(errs, fmt.Errorf("dsp.mode: must be \"headset\" or \"speakers\", got %q", m))
	}
	if t := c.WakeWord.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("wakeword.threshold: must be within [0,1], got %v", t))
	}
	if len(c.WakeWord.Words) == 0 {
		errs = append(errs, errors.New("wakeword.words: at least one wake word required"))
	}
	for name, p := range c.VAD.Profiles {
		if p.MinSpeechMS <= 0 || p.EndSilenceMS <= 0 {
			errs = append(errs, fmt.Errorf("vad.profiles.%s: min_speech_ms and end_silence_ms must be positive", name))
		}
	}

	if !c.LLM.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("llm.backend: unknown backend %q", c.LLM.Backend))
	}
	if _, ok := c.LLM.Profiles[c.LLM.ActiveProfile]; !ok {
		errs = append(errs, fmt.Errorf("llm.active_profile: profile %q not defined", c.LLM.ActiveProfile))
	}
	for name, p := range c.LLM.Profiles {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("llm.profiles.%s: model must be set", name))
		}
	}
	if c.LLM.Backend == BackendGeminiCLI && c.LLM.GeminiCLI.Cmd == "" {
		errs = append(errs, errors.New("llm.gemini_cli.cmd: must be set for the gemini_cli backend"))
	}
	if c.LLM.Backend == BackendOllama && c.LLM.Ollama.BaseURL == "" {
		errs = append(errs, errors.New("llm.ollama.base_url: must be set for the ollama backend"))
	}

	if _, ok := c.STT.Profiles[c.STT.ActiveProfile]; !ok {
		errs = append(errs, fmt.Errorf("stt.active_profile: profile %q not defined", c.STT.ActiveProfile))
	}
	if c.TTS.DefaultVoice == "" {
		errs = append(errs, errors.New("tts.default_voice: must be set"))
	}
	if c.Logging.MaxRuns < 0 {
		errs = append(errs, fmt.Errorf("logging.max_runs: must not be negative, got %d", c.Logging.MaxRuns))
	}

	return errors.Join(errs...)
}
