package sim_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm/sim"
)

func TestScriptedReply(t *testing.T) {
	a := sim.New()
	ch, err := a.Generate(context.Background(), llm.Request{SessionID: "s1", Prompt: "wie geht es dir"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var parts []string
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("chunk error: %v", c.Err)
		}
		parts = append(parts, c.Text)
	}
	if len(parts) != 3 {
		t.Fatalf("streamed %d chunks, want 3", len(parts))
	}
	if got := strings.Join(parts, ""); got != "Mir geht es gut. Was brauchst du?" {
		t.Errorf("reply = %q", got)
	}
}

func TestCancelStopsStream(t *testing.T) {
	a := sim.New(sim.WithChunkDelay(50 * time.Millisecond))
	ch, err := a.Generate(context.Background(), llm.Request{SessionID: "s1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	a.Cancel("s1")

	var n int
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if n >= 3 {
					t.Errorf("received all %d chunks despite cancel", n)
				}
				return
			}
			n++
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestCancelUnknownSessionIsNoop(t *testing.T) {
	sim.New().Cancel("nope")
}

func TestHealthcheck(t *testing.T) {
	if !sim.New().Healthcheck(context.Background()) {
		t.Error("simulator should always be healthy")
	}
}
