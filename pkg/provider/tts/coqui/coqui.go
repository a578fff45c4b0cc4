// Package coqui adapts a Coqui-style TTS HTTP server to the [tts.Adapter]
// contract. Streaming buffers text until a sentence boundary and renders
// sentence by sentence, so the first audio arrives before the language
// model has finished its reply.
package coqui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts"
)

// Option configures an [Adapter].
type Option func(*Adapter)

// WithVoice selects the speaker voice.
func WithVoice(voice string) Option {
	return func(a *Adapter) {
		a.voice = voice
	}
}

// WithLanguage sets the synthesis language. Default: "de".
func WithLanguage(lang string) Option {
	return func(a *Adapter) {
		a.language = lang
	}
}

// WithHTTPClient replaces the default client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		a.client = c
	}
}

// Adapter implements [tts.Adapter] against a Coqui server.
type Adapter struct {
	baseURL  string
	voice    string
	language string
	client   *http.Client

	mu   sync.Mutex
	stop context.CancelFunc
}

var _ tts.Adapter = (*Adapter)(nil)

// New returns an adapter for the server at baseURL.
func New(baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		language: "de",
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name implements [tts.Adapter].
func (a *Adapter) Name() string { return "coqui" }

// SynthesizeStream implements [tts.Adapter].
func (a *Adapter) SynthesizeStream(ctx context.Context, text <-chan string) (<-chan []byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.stop != nil {
		a.stop()
	}
	a.stop = cancel
	a.mu.Unlock()

	ch := make(chan []byte, 4)
	go func() {
		defer close(ch)

		var pending strings.Builder
		flush := func() bool {
			t := strings.TrimSpace(pending.String())
			pending.Reset()
			if t == "" {
				return true
			}
			audio, err := a.SynthesizeText(ctx, t)
			if err != nil || len(audio) == 0 {
				return err == nil
			}
			select {
			case ch <- audio:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case chunk, ok := <-text:
				if !ok {
					flush()
					return
				}
				pending.WriteString(chunk)
				if strings.ContainsAny(chunk, ".!?\n") {
					if !flush() {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// SynthesizeText implements [tts.Adapter] via GET /api/tts.
func (a *Adapter) SynthesizeText(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("text", text)
	q.Set("language_id", a.language)
	if a.voice != "" {
		q.Set("speaker_id", a.voice)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coqui: synthesize: status %d: %s", resp.StatusCode, msg)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	return audio, nil
}

// Healthcheck reports whether the server answers within two seconds.
func (a *Adapter) Healthcheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
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
