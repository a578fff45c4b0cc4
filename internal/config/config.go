// Package config provides the configuration schema, loader, immutable
// session snapshot, and adapter registry for the Vox-Voice engine.
package config

// LogLevel controls log verbosity for the Vox server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LLMBackend selects which language-model bridge serves a session.
type LLMBackend string

const (
	// BackendGeminiCLI drives a persistent gemini CLI subprocess.
	BackendGeminiCLI LLMBackend = "gemini_cli"

	// BackendOllama talks to a local Ollama server.
	BackendOllama LLMBackend = "ollama"
)

// IsValid reports whether b is a recognised LLM backend.
func (b LLMBackend) IsValid() bool {
	return b == BackendGeminiCLI || b == BackendOllama
}

// Config is the root configuration structure for Vox-Voice. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader]; the json tags
// shape the per-session config snapshot artifact.
type Config struct {
	SchemaVersion string         `yaml:"schema_version" json:"schema_version"`
	Server        ServerConfig   `yaml:"server" json:"server"`
	Audio         AudioConfig    `yaml:"audio" json:"audio"`
	DSP           DSPConfig      `yaml:"dsp" json:"dsp"`
	WakeWord      WakeWordConfig `yaml:"wakeword" json:"wakeword"`
	VAD           VADConfig      `yaml:"vad" json:"vad"`
	LLM           LLMConfig      `yaml:"llm" json:"llm"`
	STT           STTConfig      `yaml:"stt" json:"stt"`
	TTS           TTSConfig      `yaml:"tts" json:"tts"`
	Skills        SkillsConfig   `yaml:"skills" json:"skills"`
	Logging       LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level" json:"log_level"`
}

// AudioConfig describes the audio transport the pipeline observes. The core
// never opens devices itself; these values feed the session's informational
// snapshot events.
type AudioConfig struct {
	Backend        string `yaml:"backend" json:"backend"`
	SampleRateHz   int    `yaml:"sample_rate_hz" json:"sample_rate_hz"`
	ChannelsIn     int    `yaml:"channels_in" json:"channels_in"`
	ChannelsOut    int    `yaml:"channels_out" json:"channels_out"`
	PreRollSeconds int    `yaml:"pre_roll_seconds" json:"pre_roll_seconds"`
}

// DSPConfig mirrors the external DSP chain state (AEC/NS/AGC).
type DSPConfig struct {
	// Mode is "headset" or "speakers".
	Mode string `yaml:"mode" json:"mode"`
	AEC  DSPAEC `yaml:"aec" json:"aec"`
	NS   DSPNS  `yaml:"ns" json:"ns"`
	AGC  DSPAGC `yaml:"agc" json:"agc"`
}

// DSPAEC configures acoustic echo cancellation reporting.
type DSPAEC struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Method         string `yaml:"method" json:"method"`
	Aggressiveness string `yaml:"aggressiveness" json:"aggressiveness"`
}

// DSPNS configures noise-suppression reporting.
type DSPNS struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   int    `yaml:"level" json:"level"`
	Profile string `yaml:"profile" json:"profile"`
}

// DSPAGC configures automatic gain control reporting.
type DSPAGC struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Mode            string `yaml:"mode" json:"mode"`
	TargetLevelDBFS int    `yaml:"target_level_dbfs" json:"target_level_dbfs"`
}

// WakeWordConfig holds the wake-word engine selection and the active words.
type WakeWordConfig struct {
	Engine    string   `yaml:"engine" json:"engine"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Words     []string `yaml:"words" json:"words"`
}

// VADProfile tunes voice-activity detection for one interaction style.
type VADProfile struct {
	MinSpeechMS      int `yaml:"min_speech_ms" json:"min_speech_ms"`
	EndSilenceMS     int `yaml:"end_silence_ms" json:"end_silence_ms"`
	ContinueWindowMS int `yaml:"continue_window_ms" json:"continue_window_ms"`
}

// VADConfig maps profile names ("command", "chat", …) to their tuning.
type VADConfig struct {
	Profiles map[string]VADProfile `yaml:"profiles" json:"profiles"`
}

// LLMProfile names a model selection within a backend.
type LLMProfile struct {
	Model         string `yaml:"model" json:"model"`
	AutoReasoning bool   `yaml:"auto_reasoning" json:"auto_reasoning"`
}

// GeminiCLIConfig configures the persistent gemini CLI subprocess bridge.
type GeminiCLIConfig struct {
	// Cmd is the base command line; model flags are appended per profile.
	Cmd string `yaml:"cmd" json:"cmd"`

	// Cwd is the working directory for the subprocess.
	Cwd string `yaml:"cwd" json:"cwd"`

	// IsolatedHome is a runtime-owned directory the child's HOME is pointed
	// at, so vendor state never leaks into the user's real home.
	IsolatedHome string `yaml:"isolated_home" json:"isolated_home"`

	// RulesFile is an optional plain-text header prepended to every prompt.
	RulesFile string `yaml:"rules_file" json:"rules_file"`

	// RestartOnExit re-spawns the subprocess when it dies.
	RestartOnExit bool `yaml:"restart_on_exit" json:"restart_on_exit"`
}

// OllamaConfig configures the Ollama HTTP bridge.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
	Stream  bool   `yaml:"stream" json:"stream"`
}

// LLMConfig selects the backend and its profiles.
type LLMConfig struct {
	Backend       LLMBackend            `yaml:"backend" json:"backend"`
	Profiles      map[string]LLMProfile `yaml:"profiles" json:"profiles"`
	ActiveProfile string                `yaml:"active_profile" json:"active_profile"`
	GeminiCLI     GeminiCLIConfig       `yaml:"gemini_cli" json:"gemini_cli"`
	Ollama        OllamaConfig          `yaml:"ollama" json:"ollama"`
}

// STTProfile selects a transcription adapter and model.
type STTProfile struct {
	Adapter string `yaml:"adapter" json:"adapter"`
	Model   string `yaml:"model" json:"model"`
}

// STTConfig selects the transcription adapter and its profiles.
type STTConfig struct {
	Adapter       string                `yaml:"adapter" json:"adapter"`
	Profiles      map[string]STTProfile `yaml:"profiles" json:"profiles"`
	ActiveProfile string                `yaml:"active_profile" json:"active_profile"`

	// WhisperURL is the base URL of a whisper-server instance, used when the
	// adapter is "whisper_server".
	WhisperURL string `yaml:"whisper_url" json:"whisper_url"`
}

// TTSConfig selects the synthesis voice.
type TTSConfig struct {
	DefaultVoice string `yaml:"default_voice" json:"default_voice"`

	// CoquiURL is the base URL of a Coqui-style TTS server, used when a real
	// synthesis backend is wired in.
	CoquiURL string `yaml:"coqui_url" json:"coqui_url"`
	Language string `yaml:"language" json:"language"`
}

// SkillsConfig holds the skill allow-list and per-skill permissions. The
// core tracks and broadcasts this state; it never executes skills itself.
type SkillsConfig struct {
	Allowlist   []string          `yaml:"allowlist" json:"allowlist"`
	Permissions map[string]string `yaml:"permissions" json:"permissions"`
}

// LoggingConfig tunes artifact retention.
type LoggingConfig struct {
	Redaction     bool `yaml:"redaction" json:"redaction"`
	RetentionDays int  `yaml:"retention_days" json:"retention_days"`
	MaxRuns       int  `yaml:"max_runs" json:"max_runs"`
}

// Default returns a Config carrying the same defaults the reference
// deployment ships with. [LoadFromReader] decodes user YAML over it.
func Default() *Config {
	return &Config{
		SchemaVersion: "1.0",
		Server:        ServerConfig{LogLevel: LogInfo},
		Audio: AudioConfig{
			Backend:        "pipewire",
			SampleRateHz:   48000,
			ChannelsIn:     1,
			ChannelsOut:    1,
			PreRollSeconds: 3,
		},
		DSP: DSPConfig{
			Mode: "speakers",
			AEC:  DSPAEC{Enabled: true, Method: "pipewire-module-echo-cancel", Aggressiveness: "medium"},
			NS:   DSPNS{Enabled: true, Level: 2, Profile: "balanced"},
			AGC:  DSPAGC{Enabled: false, Mode: "adaptive", TargetLevelDBFS: -18},
		},
		WakeWord: WakeWordConfig{
			Engine:    "openWakeWord",
			Threshold: 0.5,
			Words:     []string{"vox"},
		},
		VAD: VADConfig{
			Profiles: map[string]VADProfile{
				"command": {MinSpeechMS: 120, EndSilenceMS: 350, ContinueWindowMS: 800},
				"chat":    {MinSpeechMS: 160, EndSilenceMS: 650, ContinueWindowMS: 1100},
			},
		},
		LLM: LLMConfig{
			Backend: BackendGeminiCLI,
			Profiles: map[string]LLMProfile{
				"fast":      {Model: "gemini-3-flash-preview"},
				"reasoning": {Model: "gemini-3-pro-preview"},
				"auto":      {Model: "auto", AutoReasoning: true},
			},
			ActiveProfile: "fast",
			GeminiCLI: GeminiCLIConfig{
				Cmd:           "gemini",
				Cwd:           ".",
				IsolatedHome:  ".runtime/gemini_home",
				RestartOnExit: true,
			},
			Ollama: OllamaConfig{
				BaseURL: "http://127.0.0.1:11434",
				Model:   "llama3",
				Stream:  true,
			},
		},
		STT: STTConfig{
			Adapter: "whisper_server",
			Profiles: map[string]STTProfile{
				"fast":  {Adapter: "whisper_server", Model: "small"},
				"final": {Adapter: "whisper_server", Model: "medium"},
			},
			ActiveProfile: "fast",
			WhisperURL:    "http://127.0.0.1:8178",
		},
		TTS: TTSConfig{
			DefaultVoice: "de-DE-SeraphinaNeural",
			Language:     "de",
		},
		Skills: SkillsConfig{
			Allowlist:   []string{},
			Permissions: map[string]string{},
		},
		Logging: LoggingConfig{
			Redaction:     true,
			RetentionDays: 14,
			MaxRuns:       500,
		},
	}
}
