// Command vox is the voice-assistant orchestration server. It hosts the
// session engine, the event bus, and the WebSocket gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Jas0nOW/Vox-Voice/internal/config"
	"github.com/Jas0nOW/Vox-Voice/internal/engine"
	"github.com/Jas0nOW/Vox-Voice/internal/gateway"
	"github.com/Jas0nOW/Vox-Voice/internal/health"
	"github.com/Jas0nOW/Vox-Voice/internal/observe"
	"github.com/Jas0nOW/Vox-Voice/internal/resilience"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm/anyllm"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm/geminicli"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/stt"
	sttsim "github.com/Jas0nOW/Vox-Voice/pkg/provider/stt/sim"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/stt/whisperserver"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts/coqui"
	ttssim "github.com/Jas0nOW/Vox-Voice/pkg/provider/tts/sim"
)

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.String("mode", "sim", "pipeline mode: sim (deterministic adapters) or live (real backends)")
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	wsHost := flag.String("ws-host", "127.0.0.1", "gateway listen host")
	wsPort := flag.Int("ws-port", 7777, "gateway listen port")
	runsDir := flag.String("runs-dir", "runs", "root directory for per-session run artifacts")
	casDir := flag.String("cas-dir", "cas", "root directory for the content-addressed store")
	autostart := flag.Bool("autostart", false, "run one session when the first events subscriber connects")
	flag.Parse()

	if *mode != "sim" && *mode != "live" {
		fmt.Fprintf(os.Stderr, "vox: unknown mode %q\n", *mode)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vox: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	addr := net.JoinHostPort(*wsHost, strconv.Itoa(*wsPort))
	slog.Info("vox starting",
		"mode", *mode,
		"config", *configPath,
		"listen_addr", addr,
		"runs_dir", *runsDir,
		"cas_dir", *casDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "vox"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	opts := []engine.Option{
		engine.WithRunsDir(*runsDir),
		engine.WithCASDir(*casDir),
	}
	var checkers []health.Checker
	if *mode == "live" {
		liveOpts, liveCheckers, err := buildLiveAdapters(cfg)
		if err != nil {
			slog.Error("adapter wiring failed", "err", err)
			return 1
		}
		opts = append(opts, liveOpts...)
		checkers = liveCheckers
	} else {
		// Simulated sessions pace their events like a real conversation.
		opts = append(opts, engine.WithStepDelay(30*time.Millisecond))
	}

	eng := engine.New(cfg, opts...)
	defer eng.Bus().Close()

	gw := gateway.New(eng,
		gateway.WithAutostart(*autostart),
		gateway.WithHealth(health.New(checkers...)),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// healthchecker is implemented by adapters that can probe their backend.
type healthchecker interface {
	Healthcheck(ctx context.Context) bool
}

// newSTTRegistry lists the compiled-in transcription adapters.
func newSTTRegistry() *config.Registry[stt.Adapter] {
	reg := config.NewRegistry[stt.Adapter]("stt")
	reg.Register("whisper_server", func(cfg *config.Config) (stt.Adapter, error) {
		return whisperserver.New(cfg.STT.WhisperURL, whisperserver.WithLanguage(cfg.TTS.Language)), nil
	})
	reg.Register("sim", func(*config.Config) (stt.Adapter, error) {
		return sttsim.New(), nil
	})
	return reg
}

// newTTSRegistry lists the compiled-in synthesis adapters.
func newTTSRegistry() *config.Registry[tts.Adapter] {
	reg := config.NewRegistry[tts.Adapter]("tts")
	reg.Register("coqui", func(cfg *config.Config) (tts.Adapter, error) {
		return coqui.New(cfg.TTS.CoquiURL,
			coqui.WithVoice(cfg.TTS.DefaultVoice),
			coqui.WithLanguage(cfg.TTS.Language),
		), nil
	})
	reg.Register("sim", func(*config.Config) (tts.Adapter, error) {
		return ttssim.New(), nil
	})
	return reg
}

// buildLiveAdapters wires the real backends named in cfg: the whisper-server
// transcriber, the Coqui synthesizer, the gemini CLI subprocess bridge (with
// a circuit breaker guarding its spawns), and the Ollama HTTP bridge.
func buildLiveAdapters(cfg *config.Config) ([]engine.Option, []health.Checker, error) {
	var opts []engine.Option
	var checkers []health.Checker

	sttAdapter, err := newSTTRegistry().New(cfg.STT.Adapter, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, engine.WithSTT(sttAdapter))
	if hc, ok := sttAdapter.(healthchecker); ok {
		checkers = append(checkers, health.AdapterChecker("stt", hc.Healthcheck))
	}

	ttsName := "sim"
	if cfg.TTS.CoquiURL != "" {
		ttsName = "coqui"
	}
	ttsAdapter, err := newTTSRegistry().New(ttsName, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, engine.WithTTS(ttsAdapter))
	if hc, ok := ttsAdapter.(healthchecker); ok {
		checkers = append(checkers, health.AdapterChecker("tts", hc.Healthcheck))
	}

	gemini := buildGeminiBridge(cfg)
	opts = append(opts, engine.WithLLM(config.BackendGeminiCLI, gemini))
	checkers = append(checkers, health.AdapterChecker("llm", gemini.Healthcheck))

	ollama, err := anyllm.NewOllama(cfg.LLM.Ollama.Model, cfg.LLM.Ollama.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("ollama bridge: %w", err)
	}
	opts = append(opts, engine.WithLLM(config.BackendOllama, ollama))

	return opts, checkers, nil
}

// buildGeminiBridge assembles the subprocess supervisor. Spawns run through
// a circuit breaker so a crash-looping binary backs off instead of
// restarting in a tight loop.
func buildGeminiBridge(cfg *config.Config) llm.Adapter {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "gemini_cli_spawn",
		MaxFailures:  3,
		ResetTimeout: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("spawn breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return geminicli.New(geminicli.Config{
		Cmd:           cfg.LLM.GeminiCLI.Cmd,
		Cwd:           cfg.LLM.GeminiCLI.Cwd,
		IsolatedHome:  cfg.LLM.GeminiCLI.IsolatedHome,
		RulesFile:     cfg.LLM.GeminiCLI.RulesFile,
		RestartOnExit: cfg.LLM.GeminiCLI.RestartOnExit,
	}, geminicli.WithSpawnGuard(breaker.Execute))
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
