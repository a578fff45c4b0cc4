// Package sim provides the deterministic speech-to-text backend used by
// simulated sessions. It ignores the audio payload and replays the scripted
// utterance with two partials and one final.
package sim

import (
	"context"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/stt"
)

// The scripted recognition of the simulated utterance.
var (
	partials = []string{"wie", "wie geht"}

	final = stt.Result{
		Text:       "wie geht es dir",
		Confidence: 0.86,
		Final:      true,
		Language:   "de",
	}
)

// Option configures an [Adapter].
type Option func(*Adapter)

// WithResultDelay inserts a pause before each result. Default: no delay.
func WithResultDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.resultDelay = d
	}
}

// Adapter implements [stt.Adapter] with scripted results.
type Adapter struct {
	resultDelay time.Duration
}

var _ stt.Adapter = (*Adapter)(nil)

// New returns a simulator adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name implements [stt.Adapter].
func (a *Adapter) Name() string { return "sim" }

// TranscribeStream implements [stt.Adapter]. The audio channel is drained
// so upstream producers never block, but its content is ignored.
func (a *Adapter) TranscribeStream(ctx context.Context, audio <-chan []byte) (<-chan stt.Result, error) {
	ch := make(chan stt.Result, len(partials)+1)
	go func() {
		defer close(ch)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for range audio {
			}
		}()

		for _, text := range partials {
			if !a.pause(ctx) {
				return
			}
			select {
			case ch <- stt.Result{Text: text, Confidence: 0.5, Language: "de"}:
			case <-ctx.Done():
				return
			}
		}
		if !a.pause(ctx) {
			return
		}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// TranscribeBlob implements [stt.Adapter].
func (a *Adapter) TranscribeBlob(_ context.Context, _ []byte) (stt.Result, error) {
	return final, nil
}

// pause waits the configured delay; false means the context ended first.
func (a *Adapter) pause(ctx context.Context) bool {
	if a.resultDelay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(a.resultDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
