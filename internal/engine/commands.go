package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Jas0nOW/Vox-Voice/internal/config"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// HandleCommand dispatches one inbound command and returns its
// acknowledgement. Every command is acknowledged with {ok: true}, unknown
// types included; invalid arguments drop the semantic effect but still ack.
func (e *Engine) HandleCommand(ctx context.Context, cmd types.Command) types.Ack {
	e.metrics.CommandsHandled.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", cmd.Type)))

	switch cmd.Type {
	case "start_sim":
		e.StartSim(ctx)

	case "stop", "cancel":
		e.requestCancel("user_stop")

	case "mute":
		sid := e.requestCancel("user_mute")
		e.emit(sid, types.ComponentAudio, "muted", map[string]any{"reason": "user_mute"})

	case "sleep":
		sid := e.requestCancel("sleep")
		e.emit(sid, types.ComponentSystem, "sleep_ack", nil)
		e.emit(sid, types.ComponentSystem, "session_end", nil)

	case "test_barge_in":
		e.testBargeIn()

	case "ptt_start":
		e.mu.Lock()
		profile := e.vadProfile
		e.mu.Unlock()
		e.emit(e.eventSessionID(), types.ComponentVAD, "vad_start", map[string]any{
			"profile": profile,
			"source":  "ptt",
		})

	case "ptt_stop":
		e.mu.Lock()
		profile := e.sttProfile
		e.mu.Unlock()
		sid := e.eventSessionID()
		e.emit(sid, types.ComponentVAD, "vad_end", map[string]any{
			"speech_ms": 0,
			"source":    "ptt",
		})
		e.emit(sid, types.ComponentSTT, "stt_final", map[string]any{
			"text":       "",
			"confidence": 1.0,
			"profile":    profile,
		})

	case "set_llm_backend":
		if b := config.LLMBackend(cmd.String("backend")); b.IsValid() {
			e.mu.Lock()
			e.llmBackend = b
			e.mu.Unlock()
		}

	case "set_llm_profile":
		if p := cmd.String("profile"); p != "" {
			e.mu.Lock()
			if _, ok := e.cfg.LLM.Profiles[p]; ok {
				e.llmProfile = p
			}
			e.mu.Unlock()
		}

	case "set_stt_profile":
		if p := cmd.String("profile"); p != "" {
			e.mu.Lock()
			if _, ok := e.cfg.STT.Profiles[p]; ok {
				e.sttProfile = p
			}
			e.mu.Unlock()
		}

	case "set_ollama_model":
		if m := cmd.String("model"); m != "" {
			e.mu.Lock()
			e.ollamaModel = m
			e.mu.Unlock()
		}

	case "set_tts_voice":
		if v := cmd.String("voice"); v != "" {
			e.mu.Lock()
			e.ttsVoice = v
			e.mu.Unlock()
		}

	case "set_vad_profile":
		e.setVADProfile(cmd.String("profile"))

	case "set_dsp_mode":
		e.setDSPMode(cmd.String("mode"))

	case "set_wake_words":
		if words := cmd.Strings("words"); len(words) > 0 {
			e.mu.Lock()
			e.cfg.WakeWord.Words = words
			e.mu.Unlock()
			e.emit(e.eventSessionID(), types.ComponentWake, "wake_words_updated", map[string]any{
				"words": words,
			})
		}

	case "set_skill_allowlist":
		e.setSkillAllowlist(cmd)

	case "set_routing_mode":
		if mode := cmd.String("mode"); e.router.SetMode(mode) == nil {
			e.emit(e.eventSessionID(), types.ComponentRouter, "set_routing_mode", map[string]any{
				"mode": mode,
			})
		}

	case "set_console_mode":
		if mode := cmd.String("mode"); mode != "" {
			e.mu.Lock()
			e.consoleMode = mode
			e.mu.Unlock()
			e.emit(e.eventSessionID(), types.ComponentSystem, "set_console_mode", map[string]any{
				"mode": mode,
			})
		}

	case "set_dev_context":
		e.setDevContext(cmd)

	case "raise_error":
		e.emit(e.eventSessionID(), types.ComponentSystem, "error_raised", map[string]any{
			"component": "system",
			"code":      "SIM_ERROR",
			"stack":     stackAbstract(),
		})

	case "watchdog_restart":
		component := cmd.String("component")
		if component == "" {
			component = "llm_bridge"
		}
		reason := cmd.String("reason")
		if reason == "" {
			reason = "manual"
		}
		e.emit(e.eventSessionID(), types.ComponentSystem, "watchdog_restart", map[string]any{
			"component": component,
			"reason":    reason,
		})

	case "mark_golden":
		sid := e.eventSessionID()
		e.emit(sid, types.ComponentSystem, "golden_marked", map[string]any{
			"session_id": sid,
		})

	case "orb_frame_stats":
		e.emit(e.eventSessionID(), types.ComponentOrb, "orb_frame_stats", cmd.Payload)

	default:
		e.log.Debug("unknown command", "type", cmd.Type)
	}

	return types.Ack{OK: true, Type: cmd.Type}
}

// requestCancel latches the live session (if any), broadcasts
// cancel_request, and returns the session id the events were stamped with.
func (e *Engine) requestCancel(reason string) string {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	sid := types.NewID()
	if s != nil && s.Live() {
		s.RequestCancel(reason)
		sid = s.ID
	}
	e.emit(sid, types.ComponentSystem, "cancel_request", map[string]any{"reason": reason})
	return sid
}

// testBargeIn exercises the cancel path end to end. With a live session the
// pipeline goroutine observes the latch at its next boundary; the immediate
// cancel_done here is suppressed in that case so it is broadcast once.
func (e *Engine) testBargeIn() {
	const reason = "barge_in_test"

	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s != nil && s.Live() {
		s.RequestCancel(reason)
		e.emit(s.ID, types.ComponentSystem, "cancel_request", map[string]any{"reason": reason})
		if s.markCancelDone() {
			e.emit(s.ID, types.ComponentSystem, "cancel_done", map[string]any{"reason": reason})
		}
		return
	}

	sid := types.NewID()
	e.emit(sid, types.ComponentSystem, "cancel_request", map[string]any{"reason": reason})
	e.emit(sid, types.ComponentSystem, "cancel_done", map[string]any{"reason": reason})
}

func (e *Engine) setVADProfile(profile string) {
	if profile == "" {
		return
	}
	e.mu.Lock()
	cfg, ok := e.cfg.VAD.Profiles[profile]
	if ok {
		e.vadProfile = profile
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	e.emit(e.eventSessionID(), types.ComponentVAD, "vad_state", map[string]any{
		"profile":            profile,
		"min_speech_ms":      cfg.MinSpeechMS,
		"end_silence_ms":     cfg.EndSilenceMS,
		"continue_window_ms": cfg.ContinueWindowMS,
	})
}

func (e *Engine) setDSPMode(mode string) {
	if mode != "headset" && mode != "speakers" {
		return
	}
	e.mu.Lock()
	e.cfg.DSP.Mode = mode
	e.mu.Unlock()

	payload := e.dspStatePayload()
	payload["mode"] = mode
	e.emit(e.eventSessionID(), types.ComponentDSP, "dsp_state", payload)
}

func (e *Engine) setSkillAllowlist(cmd types.Command) {
	allowlist := cmd.Strings("allowlist")

	permissions := map[string]string{}
	if raw, ok := cmd.Payload["permissions"].(map[string]any); ok {
		for skill, v := range raw {
			if s, ok := v.(string); ok {
				permissions[skill] = s
			}
		}
	}

	e.mu.Lock()
	e.cfg.Skills.Allowlist = allowlist
	e.cfg.Skills.Permissions = permissions
	e.mu.Unlock()

	e.emit(e.eventSessionID(), types.ComponentSystem, "skill_allowlist_updated", map[string]any{
		"allowlist":   allowlist,
		"permissions": permissions,
	})
}

// setDevContext stores the dev-context blob. Only its length ever appears
// in events or manifests; the text stays in process memory.
func (e *Engine) setDevContext(cmd types.Command) {
	mode := cmd.String("mode")
	if mode != "once" && mode != "persistent" {
		mode = "once"
	}
	e.mu.Lock()
	e.devText = cmd.String("text")
	e.devMode = mode
	e.devAutoAttach = cmd.Bool("auto_attach", true)
	e.mu.Unlock()
}
