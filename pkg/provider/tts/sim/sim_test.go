package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts/sim"
)

func TestEmitsFixedChunkCount(t *testing.T) {
	text := make(chan string, 3)
	text <- "Mir geht"
	text <- " es gut."
	text <- " Was brauchst du?"
	close(text)

	ch, err := sim.New().SynthesizeStream(context.Background(), text)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	var n int
	for blob := range ch {
		n++
		// 40 ms of 48 kHz mono 16-bit PCM.
		if len(blob) != 3840 {
			t.Errorf("chunk %d size = %d", n, len(blob))
		}
	}
	if n != 15 {
		t.Errorf("emitted %d chunks, want 15", n)
	}
}

func TestStopTerminatesStream(t *testing.T) {
	a := sim.New(sim.WithChunkDelay(50 * time.Millisecond))
	text := make(chan string)
	close(text)

	ch, err := a.SynthesizeStream(context.Background(), text)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	a.Stop()

	var n int
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if n >= 15 {
					t.Errorf("received all %d chunks despite stop", n)
				}
				return
			}
			n++
		case <-deadline:
			t.Fatal("stream did not close after stop")
		}
	}
}

func TestChunkCountOption(t *testing.T) {
	text := make(chan string)
	close(text)
	ch, err := sim.New(sim.WithChunkCount(3)).SynthesizeStream(context.Background(), text)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	var n int
	for range ch {
		n++
	}
	if n != 3 {
		t.Errorf("emitted %d chunks, want 3", n)
	}
}
