package geminicli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
)

func TestBuildCmdline(t *testing.T) {
	s := New(Config{Cmd: "gemini --yolo"})

	if got := s.buildCmdline("auto"); strings.Join(got, " ") != "gemini --yolo" {
		t.Errorf("auto cmdline = %v", got)
	}
	if got := s.buildCmdline(""); strings.Join(got, " ") != "gemini --yolo" {
		t.Errorf("empty cmdline = %v", got)
	}
	want := "gemini --yolo --model gemini-3-pro-preview"
	if got := s.buildCmdline("gemini-3-pro-preview"); strings.Join(got, " ") != want {
		t.Errorf("model cmdline = %v", got)
	}
}

func TestBuildPromptOrder(t *testing.T) {
	s := New(Config{})
	got := s.buildPrompt(llm.Request{
		Prompt:     "wie geht es dir",
		System:     "antworte kurz",
		DevContext: "secret-context",
	})
	sys := strings.Index(got, "antworte kurz")
	dev := strings.Index(got, "secret-context")
	usr := strings.Index(got, "wie geht es dir")
	if sys < 0 || dev < 0 || usr < 0 || !(sys < dev && dev < usr) {
		t.Errorf("prompt order wrong: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("prompt missing blank-line terminator: %q", got)
	}
}

// cat echoes the request, so the prompt line comes back as the reply and the
// blank-line terminator closes the stream.
func TestGenerateRoundTripThroughCat(t *testing.T) {
	s := New(Config{Cmd: "cat", Cwd: ".", IsolatedHome: t.TempDir(), RestartOnExit: true})
	defer s.Stop()

	ch, err := s.Generate(context.Background(), llm.Request{SessionID: "s1", Prompt: "hallo"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var reply []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				if len(reply) != 1 || strings.TrimSpace(reply[0]) != "hallo" {
					t.Fatalf("reply = %q", reply)
				}
				return
			}
			if c.Err != nil {
				t.Fatalf("chunk error: %v", c.Err)
			}
			reply = append(reply, c.Text)
		case <-timeout:
			t.Fatal("stream did not terminate")
		}
	}
}

func TestGenerateReusesLiveProcess(t *testing.T) {
	s := New(Config{Cmd: "cat", Cwd: ".", IsolatedHome: t.TempDir(), RestartOnExit: true})
	defer s.Stop()

	var spawns int
	s.spawnGuard = func(spawn func() error) error {
		spawns++
		return spawn()
	}

	for i := 0; i < 2; i++ {
		ch, err := s.Generate(context.Background(), llm.Request{SessionID: "s1", Prompt: "ping"})
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		for range ch {
		}
	}
	if spawns != 1 {
		t.Errorf("spawned %d times for an unchanged model, want 1", spawns)
	}
}

func TestModelChangeRestarts(t *testing.T) {
	s := New(Config{Cmd: "cat", IsolatedHome: t.TempDir(), RestartOnExit: true})
	defer s.Stop()

	var spawns int
	s.spawnGuard = func(spawn func() error) error {
		spawns++
		return spawn()
	}

	if err := s.EnsureRunning("auto"); err != nil {
		t.Fatalf("ensure auto: %v", err)
	}
	if err := s.EnsureRunning("auto"); err != nil {
		t.Fatalf("ensure auto again: %v", err)
	}
	// A different model changes the cmdline and must respawn.
	if err := s.EnsureRunning("other-model"); err != nil {
		t.Fatalf("ensure other-model: %v", err)
	}
	if spawns != 2 {
		t.Errorf("spawned %d times, want 2", spawns)
	}
}

func TestHealthcheck(t *testing.T) {
	s := New(Config{Cmd: "cat", IsolatedHome: t.TempDir(), RestartOnExit: true})
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !s.Healthcheck(ctx) {
		t.Error("live subprocess reported unhealthy")
	}
}

func TestSpawnGuardErrorsPropagate(t *testing.T) {
	s := New(Config{Cmd: "cat", IsolatedHome: t.TempDir()})
	s.spawnGuard = func(func() error) error { return context.DeadlineExceeded }

	if err := s.EnsureRunning("auto"); err == nil {
		t.Error("expected guard error")
	}
}
