// Package geminicli drives a persistent gemini CLI subprocess as a
// language-model backend.
//
// The subprocess is owned by a single [Supervisor]: it is spawned lazily,
// respawned when it exits (if configured), and restarted whenever the model
// selection changes the command line. The child's HOME points at a
// runtime-owned directory so vendor state never touches the user's real
// home.
//
// Wire protocol: a request is the prompt followed by a blank line; the CLI
// streams reply lines and terminates the reply with a blank line. The CLI
// is an untrusted boundary; only the engine acts on its output.
package geminicli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
)

// Config holds the subprocess settings.
type Config struct {
	// Cmd is the base command line ("gemini"); "--model <m>" is appended
	// for any model other than "auto".
	Cmd string

	// Cwd is the child's working directory.
	Cwd string

	// IsolatedHome is created on demand and exported as the child's HOME.
	IsolatedHome string

	// RulesFile, when set, is read per request and prepended to the prompt.
	RulesFile string

	// RestartOnExit respawns a dead child on the next request.
	RestartOnExit bool
}

// Option configures a [Supervisor].
type Option func(*Supervisor)

// WithSpawnGuard wraps every subprocess launch. The host installs a circuit
// breaker here so a crash-looping binary cannot turn restart-on-exit into a
// restart storm.
func WithSpawnGuard(guard func(spawn func() error) error) Option {
	return func(s *Supervisor) {
		s.spawnGuard = guard
	}
}

// Supervisor implements [llm.Adapter] over the CLI subprocess. Requests are
// serialized; the CLI handles one prompt at a time.
type Supervisor struct {
	cfg        Config
	spawnGuard func(spawn func() error) error
	cancels    *llm.Cancels

	mu      sync.Mutex
	proc    *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	cmdline []string
	exited  chan struct{}
}

var _ llm.Adapter = (*Supervisor)(nil)

// New returns a Supervisor. The subprocess is not started until the first
// request or healthcheck.
func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.Cmd == "" {
		cfg.Cmd = "gemini"
	}
	s := &Supervisor{
		cfg:        cfg,
		spawnGuard: func(spawn func() error) error { return spawn() },
		cancels:    llm.NewCancels(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// buildCmdline derives the argv for a model selection. "auto" and the empty
// string run the bare base command.
func (s *Supervisor) buildCmdline(model string) []string {
	base := strings.Fields(s.cfg.Cmd)
	if len(base) == 0 {
		base = []string{"gemini"}
	}
	if model != "" && model != "auto" {
		return append(base, "--model", model)
	}
	return base
}

// running reports whether the child is alive. Caller must hold s.mu.
func (s *Supervisor) running() bool {
	if s.proc == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// EnsureRunning starts the subprocess for the given model, restarting it
// when the model selection changed the command line or the previous child
// died with restart-on-exit enabled.
func (s *Supervisor) EnsureRunning(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(model)
}

// ensureLocked is EnsureRunning with s.mu already held.
func (s *Supervisor) ensureLocked(model string) error {
	desired := s.buildCmdline(model)
	if s.running() && equal(s.cmdline, desired) {
		return nil
	}
	if s.proc != nil && !s.running() && !s.cfg.RestartOnExit {
		return fmt.Errorf("geminicli: subprocess exited and restart_on_exit is disabled")
	}
	s.stopLocked()

	return s.spawnGuard(func() error {
		home, err := filepath.Abs(s.cfg.IsolatedHome)
		if err != nil {
			return fmt.Errorf("geminicli: resolve isolated home: %w", err)
		}
		if err := os.MkdirAll(home, 0o755); err != nil {
			return fmt.Errorf("geminicli: create isolated home: %w", err)
		}

		cmd := exec.Command(desired[0], desired[1:]...)
		cmd.Dir = s.cfg.Cwd
		cmd.Env = append(os.Environ(), "HOME="+home)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("geminicli: stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("geminicli: stdout pipe: %w", err)
		}
		cmd.Stderr = cmd.Stdout

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("geminicli: start %v: %w", desired, err)
		}

		exited := make(chan struct{})
		go func() {
			_ = cmd.Wait()
			close(exited)
		}()

		s.proc = cmd
		s.stdin = stdin
		s.stdout = bufio.NewReader(stdout)
		s.cmdline = desired
		s.exited = exited
		return nil
	})
}

// stopLocked terminates the child if alive. Caller must hold s.mu.
func (s *Supervisor) stopLocked() {
	if s.proc != nil && s.running() {
		_ = s.proc.Process.Kill()
		<-s.exited
	}
	s.proc = nil
	s.stdin = nil
	s.stdout = nil
	s.cmdline = nil
}

// Stop terminates the subprocess.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Name implements [llm.Adapter].
func (s *Supervisor) Name() string { return "gemini_cli" }

// Healthcheck implements [llm.Adapter]. A healthy backend is a live child
// process (spawned with the bare command line if none is running).
func (s *Supervisor) Healthcheck(ctx context.Context) bool {
	done := make(chan bool, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		done <- s.ensureLocked("auto") == nil && s.running()
	}()
	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

// buildPrompt composes the request payload: rules header, dev context, then
// the utterance. The dev-context blob must not be logged here.
func (s *Supervisor) buildPrompt(req llm.Request) string {
	var b strings.Builder
	if s.cfg.RulesFile != "" {
		if rules, err := os.ReadFile(s.cfg.RulesFile); err == nil {
			b.WriteString(strings.TrimSpace(string(rules)))
			b.WriteString("\n\n")
		}
	}
	if req.System != "" {
		b.WriteString(strings.TrimSpace(req.System))
		b.WriteString("\n\n")
	}
	if req.DevContext != "" {
		b.WriteString(strings.TrimSpace(req.DevContext))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(req.Prompt))
	b.WriteString("\n\n")
	return b.String()
}

// Generate implements [llm.Adapter]. The supervisor lock is held for the
// duration of the stream; the CLI answers one prompt at a time.
func (s *Supervisor) Generate(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	s.mu.Lock()
	if err := s.ensureLocked(req.Model); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	stdin, stdout, exited := s.stdin, s.stdout, s.exited

	ctx, cancel := context.WithCancel(ctx)
	s.cancels.Track(req.SessionID, cancel)

	ch := make(chan llm.Chunk, 8)
	go func() {
		defer s.mu.Unlock()
		defer close(ch)
		defer s.cancels.Release(req.SessionID)

		if _, err := io.WriteString(stdin, s.buildPrompt(req)); err != nil {
			ch <- llm.Chunk{Err: fmt.Errorf("geminicli: write prompt: %w", err)}
			return
		}

		lines := make(chan string)
		readErr := make(chan error, 1)
		go func() {
			defer close(lines)
			for {
				line, err := stdout.ReadString('\n')
				if line != "" {
					lines <- line
				}
				if err != nil {
					readErr <- err
					return
				}
				if strings.TrimRight(line, "\r\n") == "" {
					readErr <- nil
					return
				}
			}
		}()

		// abort kills the child so stdout cannot be left mid-reply; the next
		// request respawns it. The dangling reader drains to EOF.
		abort := func() {
			s.stopLocked()
			go func() {
				for range lines {
				}
				<-readErr
			}()
		}

	recv:
		for {
			select {
			case line, ok := <-lines:
				if !ok || strings.TrimRight(line, "\r\n") == "" {
					break recv
				}
				select {
				case ch <- llm.Chunk{Text: line}:
				case <-ctx.Done():
					abort()
					return
				}
			case <-ctx.Done():
				abort()
				return
			case <-exited:
				ch <- llm.Chunk{Err: fmt.Errorf("geminicli: subprocess exited mid-reply")}
				abort()
				return
			}
		}
		if err := <-readErr; err != nil && err != io.EOF && ctx.Err() == nil {
			ch <- llm.Chunk{Err: fmt.Errorf("geminicli: read reply: %w", err)}
		}
	}()
	return ch, nil
}

// Cancel implements [llm.Adapter].
func (s *Supervisor) Cancel(sessionID string) {
	s.cancels.Cancel(sessionID)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
