// Package sim provides the deterministic language-model backend used by
// simulated sessions. It replays a scripted answer so the whole pipeline
// can run without audio hardware or a live model.
package sim

import (
	"context"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
)

// script is the canned reply to the simulated utterance "wie geht es dir",
// split the way a live backend streams it.
var script = []string{"Mir geht", " es gut.", " Was brauchst du?"}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithChunkDelay inserts a pause before each chunk to mimic model latency.
// Default: no delay.
func WithChunkDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.chunkDelay = d
	}
}

// WithScript replaces the default reply.
func WithScript(chunks []string) Option {
	return func(a *Adapter) {
		a.script = chunks
	}
}

// Adapter implements [llm.Adapter] with a scripted reply.
type Adapter struct {
	chunkDelay time.Duration
	script     []string
	cancels    *llm.Cancels
}

var _ llm.Adapter = (*Adapter)(nil)

// New returns a simulator adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{script: script, cancels: llm.NewCancels()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name implements [llm.Adapter].
func (a *Adapter) Name() string { return "sim" }

// Healthcheck implements [llm.Adapter]. The simulator is always healthy.
func (a *Adapter) Healthcheck(_ context.Context) bool { return true }

// Generate implements [llm.Adapter].
func (a *Adapter) Generate(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancels.Track(req.SessionID, cancel)

	ch := make(chan llm.Chunk, len(a.script))
	go func() {
		defer close(ch)
		defer a.cancels.Release(req.SessionID)

		for _, text := range a.script {
			if a.chunkDelay > 0 {
				select {
				case <-time.After(a.chunkDelay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- llm.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Cancel implements [llm.Adapter].
func (a *Adapter) Cancel(sessionID string) {
	a.cancels.Cancel(sessionID)
}
