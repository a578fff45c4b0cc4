package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Jas0nOW/Vox-Voice/internal/config"
	"github.com/Jas0nOW/Vox-Voice/internal/observe"
	"github.com/Jas0nOW/Vox-Voice/internal/router"
	"github.com/Jas0nOW/Vox-Voice/internal/run"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

const (
	// vadFrames is the number of 20 ms capture frames per simulated
	// utterance; vadFrameBytes is one frame of 48 kHz mono 16-bit PCM.
	vadFrames     = 20
	vadFrameBytes = 48_000 / 1000 * 20 * 2

	// simSpeechMS is the speech length reported by the simulated vad_end.
	simSpeechMS = 420
)

// runSession drives one session through the full pipeline. It always
// terminates with session_end and a manifest, including on cancellation and
// on adapter failure.
func (e *Engine) runSession(ctx context.Context, s *Session, sel selection) {
	start := time.Now()
	ctx, span := observe.StartSession(ctx, s.ID)
	defer span.End()
	e.metrics.ActiveSessions.Add(ctx, 1)
	defer e.metrics.ActiveSessions.Add(ctx, -1)

	emit := func(component, typ string, payload map[string]any) {
		e.emit(s.ID, component, typ, payload)
	}

	emit(types.ComponentSystem, "session_start", map[string]any{
		"llm_backend": string(sel.backend),
		"llm_profile": sel.llmProfile,
		"wake_words":  sel.wakeWords,
	})
	emit(types.ComponentAudio, "audio_device_changed", map[string]any{
		"input":          "default",
		"output":         "default",
		"backend":        e.cfg.Audio.Backend,
		"sample_rate_hz": e.cfg.Audio.SampleRateHz,
	})
	emit(types.ComponentDSP, "dsp_state", e.dspStatePayload())
	emit(types.ComponentVAD, "vad_state", map[string]any{
		"profile":            sel.vadProfile,
		"min_speech_ms":      sel.vadCfg.MinSpeechMS,
		"end_silence_ms":     sel.vadCfg.EndSilenceMS,
		"continue_window_ms": sel.vadCfg.ContinueWindowMS,
	})
	if sel.devAttach {
		emit(types.ComponentDevCtx, "dev_context_attached", map[string]any{
			"mode":  sel.devMode,
			"bytes": len(sel.devText),
		})
	}

	s.trace.SpanBegin("system", "session", map[string]any{"session_id": s.ID})

	var userText, assistantText string
	userConfidence := 0.0

	// Wake.
	e.stage(ctx, s, "wake", func() {
		word := ""
		if len(sel.wakeWords) > 0 {
			word = sel.wakeWords[0]
		}
		emit(types.ComponentWake, "wake_detected", map[string]any{
			"word":       word,
			"confidence": 0.92,
		})
		e.pause(s)
	})

	// Capture: VAD frames feed the transcription stream.
	audio := make(chan []byte, vadFrames)
	if !s.Cancel.IsCancelled() {
		e.stage(ctx, s, "vad", func() {
			emit(types.ComponentVAD, "vad_start", map[string]any{"profile": sel.vadProfile})
			for i := 0; i < vadFrames; i++ {
				if s.Cancel.IsCancelled() {
					break
				}
				audio <- make([]byte, vadFrameBytes)
				emit(types.ComponentAudio, "audio_level", map[string]any{
					"rms": 0.05 + float64(i)*0.01,
				})
				e.pause(s)
			}
			emit(types.ComponentVAD, "vad_end", map[string]any{"speech_ms": simSpeechMS})
		})
	}
	close(audio)

	// Transcription.
	if !s.Cancel.IsCancelled() {
		s.setState(StateTranscribing)
		e.stage(ctx, s, "stt", func() {
			userText, userConfidence = e.transcribe(ctx, s, sel, audio)
		})
	}

	// Routing.
	var decision router.Decision
	if !s.Cancel.IsCancelled() && !s.Failed() {
		decision = e.route(ctx, s, userText)
	}

	// Reasoning. Utterances routed to the command lane skip the language
	// model; the decision event already told subscribers why.
	if !s.Cancel.IsCancelled() && !s.Failed() && decision.Mode == router.ModeChat {
		s.setState(StateReasoning)
		e.stage(ctx, s, "llm", func() {
			assistantText = e.reason(ctx, s, sel, userText)
		})
	}

	// Speaking.
	if !s.Cancel.IsCancelled() && !s.Failed() && assistantText != "" {
		s.setState(StateSpeaking)
		e.stage(ctx, s, "tts", func() {
			e.speak(ctx, s, sel, assistantText)
		})
	}

	if s.Cancel.IsCancelled() {
		s.setState(StateCancelling)
		if s.markCancelDone() {
			emit(types.ComponentSystem, "cancel_done", map[string]any{
				"reason": s.CancelReason(),
			})
		}
	}

	s.end()
	emit(types.ComponentSystem, "session_end", map[string]any{})
	s.trace.SpanEnd("system", "session", nil)

	e.writeArtifacts(ctx, s, sel, userText, userConfidence, assistantText)
	e.clearDevContextOnce(sel)

	e.metrics.SessionDuration.Record(ctx, time.Since(start).Seconds())
	observe.Logger(ctx).Info("session ended",
		"session_id", s.ID,
		"cancelled", s.Cancel.IsCancelled(),
		"failed", s.Failed(),
	)
}

// stage wraps one pipeline stage in a trace span and a latency measurement.
// Stage names double as trace components; only the wake stage uses a
// distinct span name.
func (e *Engine) stage(ctx context.Context, s *Session, name string, fn func()) {
	spanName := name
	if name == "wake" {
		spanName = "wakeword"
	}

	start := time.Now()
	s.trace.SpanBegin(name, spanName, nil)
	fn()
	s.trace.SpanEnd(name, spanName, nil)
	e.metrics.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", name)))
}

func (e *Engine) dspStatePayload() map[string]any {
	e.mu.Lock()
	dsp := e.cfg.DSP
	e.mu.Unlock()

	agcMode := "off"
	if dsp.AGC.Enabled {
		agcMode = dsp.AGC.Mode
	}
	return map[string]any{
		"aec_on":          dsp.AEC.Enabled,
		"ns_level":        dsp.NS.Level,
		"agc_mode":        agcMode,
		"echo_likelihood": 0.12,
	}
}

// transcribe streams the captured audio through the STT adapter and returns
// the final utterance text with its confidence.
func (e *Engine) transcribe(ctx context.Context, s *Session, sel selection, audio <-chan []byte) (string, float64) {
	sttCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.Cancel.Done():
			cancel()
		case <-sttCtx.Done():
		}
	}()

	results, err := e.stt.TranscribeStream(sttCtx, audio)
	if err != nil {
		e.raiseAdapterError(ctx, s, types.ComponentSTT, "STT_STREAM", err)
		return "", 0
	}

	var text string
	var confidence float64
	for r := range results {
		if s.Cancel.IsCancelled() {
			break
		}
		if r.Final {
			text, confidence = r.Text, r.Confidence
			e.emit(s.ID, types.ComponentSTT, "stt_final", map[string]any{
				"text":       r.Text,
				"confidence": r.Confidence,
				"profile":    sel.sttProfile,
			})
			continue
		}
		e.emit(s.ID, types.ComponentSTT, "stt_partial", map[string]any{
			"text":    r.Text,
			"profile": sel.sttProfile,
		})
	}
	return text, confidence
}

// route classifies the utterance and broadcasts the decision.
func (e *Engine) route(ctx context.Context, s *Session, userText string) router.Decision {
	var d router.Decision
	e.stage(ctx, s, "router", func() {
		d = e.router.Decide(userText)
		e.emit(s.ID, types.ComponentRouter, "router_decision", map[string]any{
			"mode": d.Mode,
			"why":  d.Why,
		})
	})
	return d
}

// reason streams the language-model reply and returns the accumulated text.
func (e *Engine) reason(ctx context.Context, s *Session, sel selection, userText string) string {
	adapter := e.llmAdapter(sel.backend)

	req := llm.Request{
		SessionID: s.ID,
		Prompt:    userText,
		Model:     sel.model,
	}
	if sel.devAttach {
		req.DevContext = sel.devText
	}

	chunks, err := adapter.Generate(ctx, req)
	if err != nil {
		e.raiseAdapterError(ctx, s, types.ComponentLLM, "LLM_GENERATE", err)
		return ""
	}

	var reply strings.Builder
	for c := range chunks {
		if s.Cancel.IsCancelled() {
			adapter.Cancel(s.ID)
			break
		}
		if c.Err != nil {
			e.raiseAdapterError(ctx, s, types.ComponentLLM, "LLM_STREAM", c.Err)
			return reply.String()
		}
		reply.WriteString(c.Text)
		e.emit(s.ID, types.ComponentLLM, "llm_stream_chunk", map[string]any{
			"text": c.Text,
		})
		e.pause(s)
	}

	if !s.Cancel.IsCancelled() {
		e.emit(s.ID, types.ComponentLLM, "llm_done", map[string]any{
			"tokens":  len(strings.Fields(reply.String())),
			"backend": string(sel.backend),
			"profile": sel.llmProfile,
		})
	}
	return reply.String()
}

// llmAdapter resolves the adapter for a backend, falling back to the
// simulator when none is registered.
func (e *Engine) llmAdapter(backend config.LLMBackend) llm.Adapter {
	if a, ok := e.llms[backend]; ok {
		return a
	}
	return e.simLLM
}

// speak renders the reply through the TTS adapter, chunk by chunk.
func (e *Engine) speak(ctx context.Context, s *Session, sel selection, reply string) {
	text := make(chan string, 1)
	text <- reply
	close(text)

	out, err := e.tts.SynthesizeStream(ctx, text)
	if err != nil {
		e.raiseAdapterError(ctx, s, types.ComponentTTS, "TTS_STREAM", err)
		return
	}

	e.emit(s.ID, types.ComponentTTS, "tts_start", map[string]any{"voice": sel.ttsVoice})

	reason := "done"
	i := 0
	for blob := range out {
		if s.Cancel.IsCancelled() {
			e.tts.Stop()
			reason = "cancel"
			break
		}
		e.emit(s.ID, types.ComponentTTS, "tts_chunk", map[string]any{
			"pcm_ms": len(blob) / (48_000 / 1000 * 2),
		})
		e.emit(s.ID, types.ComponentAudio, "audio_level_out", map[string]any{
			"rms": 0.06 + float64(i%5)*0.01,
		})
		i++
		e.pause(s)
	}
	if s.Cancel.IsCancelled() {
		reason = "cancel"
	}

	e.emit(s.ID, types.ComponentTTS, "tts_stop", map[string]any{"reason": reason})
}

// raiseAdapterError broadcasts error_raised for a failing stage and marks
// the session failed. The pipeline then falls through to session_end.
func (e *Engine) raiseAdapterError(ctx context.Context, s *Session, component, code string, err error) {
	s.markFailed()
	e.metrics.AdapterErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", component)))
	e.log.Warn("adapter error", "component", component, "code", code, "error", err)
	e.emit(s.ID, types.ComponentSystem, "error_raised", map[string]any{
		"component": component,
		"code":      code,
		"stack":     stackAbstract(),
	})
}

// raiseStorageError broadcasts error_raised for a CAS or manifest failure.
// Storage errors carry the cause in payload.message.
func (e *Engine) raiseStorageError(ctx context.Context, s *Session, err error) {
	s.markFailed()
	e.metrics.AdapterErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", "system")))
	e.log.Error("artifact write failed", "session_id", s.ID, "error", err)
	e.emit(s.ID, types.ComponentSystem, "error_raised", map[string]any{
		"component": "system",
		"code":      "STORAGE",
		"message":   err.Error(),
	})
}

// stackAbstract returns a truncated goroutine stack for error events. Full
// stacks stay in the process log.
func stackAbstract() string {
	stack := string(debug.Stack())
	lines := strings.Split(stack, "\n")
	if len(lines) > 12 {
		lines = lines[:12]
	}
	return strings.Join(lines, "\n")
}

// writeArtifacts persists transcripts, the trace export, and the config
// snapshot through CAS, then writes the manifest referencing their digests.
func (e *Engine) writeArtifacts(ctx context.Context, s *Session, sel selection, userText string, userConfidence float64, assistantText string) {
	artifacts := map[string]string{}

	transcript, err := json.Marshal(map[string]any{
		"user":            userText,
		"user_confidence": userConfidence,
		"assistant":       assistantText,
	})
	if err == nil {
		var digest string
		digest, err = e.cas.Put(transcript)
		artifacts["transcripts_json_sha256"] = digest
	}
	if err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}

	dir, err := e.runs.SessionDir(s.ID)
	if err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}
	if err := s.trace.ExportFile(filepath.Join(dir, "trace.json")); err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}
	traceData, err := s.trace.Export()
	if err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}
	traceDigest, err := e.cas.Put(traceData)
	if err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}
	artifacts["trace_json_sha256"] = traceDigest

	configDigest, err := e.cas.Put(sel.snapshot.JSON())
	if err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}
	artifacts["config_json_sha256"] = configDigest

	manifest := run.Manifest{
		SchemaVersion: types.SchemaVersion,
		SessionID:     s.ID,
		StartedAtMS:   s.StartedAtMS,
		EndedAtMS:     s.EndedAtMS(),
		Mode:          "sim",
		Failed:        s.Failed(),
		LLM: run.LLMSelection{
			Backend: string(sel.backend),
			Profile: sel.llmProfile,
			ProfileCfg: map[string]any{
				"model":          sel.model,
				"auto_reasoning": sel.profileCfg.AutoReasoning,
			},
		},
		DevContext: run.DevContextMarker{
			Attached: sel.devAttach,
			Mode:     sel.devMode,
		},
		Artifacts: artifacts,
	}
	path, err := e.runs.WriteManifest(manifest)
	if err != nil {
		e.raiseStorageError(ctx, s, err)
		return
	}

	e.emit(s.ID, types.ComponentSystem, "run_manifest_written", map[string]any{
		"path":         path,
		"trace_sha256": traceDigest,
	})
}
