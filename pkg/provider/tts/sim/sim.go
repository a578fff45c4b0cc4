// Package sim provides the deterministic synthesis backend used by
// simulated sessions. It emits a fixed number of silent PCM blobs per
// stream so downstream consumers see a realistic chunk cadence without a
// real vocoder.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts"
)

const (
	// defaultChunks approximates 600 ms of speech at 40 ms per chunk.
	defaultChunks = 15

	// chunkBytes is 40 ms of 48 kHz mono 16-bit PCM.
	chunkBytes = 48_000 / 1000 * 40 * 2
)

// ChunkMS is the audio duration each emitted blob represents.
const ChunkMS = 40

// Option configures an [Adapter].
type Option func(*Adapter)

// WithChunkCount overrides the number of blobs per stream.
func WithChunkCount(n int) Option {
	return func(a *Adapter) {
		a.chunks = n
	}
}

// WithChunkDelay inserts a pause before each blob. Default: no delay.
func WithChunkDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.chunkDelay = d
	}
}

// Adapter implements [tts.Adapter] with silent PCM.
type Adapter struct {
	chunks     int
	chunkDelay time.Duration

	mu   sync.Mutex
	stop context.CancelFunc
}

var _ tts.Adapter = (*Adapter)(nil)

// New returns a simulator adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{chunks: defaultChunks}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name implements [tts.Adapter].
func (a *Adapter) Name() string { return "sim" }

// SynthesizeStream implements [tts.Adapter]. The text channel is drained;
// audio volume is independent of it.
func (a *Adapter) SynthesizeStream(ctx context.Context, text <-chan string) (<-chan []byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.stop != nil {
		a.stop()
	}
	a.stop = cancel
	a.mu.Unlock()

	ch := make(chan []byte, a.chunks)
	go func() {
		defer close(ch)

		go func() {
			for range text {
			}
		}()

		for i := 0; i < a.chunks; i++ {
			if a.chunkDelay > 0 {
				select {
				case <-time.After(a.chunkDelay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- make([]byte, chunkBytes):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// SynthesizeText implements [tts.Adapter].
func (a *Adapter) SynthesizeText(_ context.Context, _ string) ([]byte, error) {
	return make([]byte, a.chunks*chunkBytes), nil
}

// Stop implements [tts.Adapter].
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
}
