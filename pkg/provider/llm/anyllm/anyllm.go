// Package anyllm adapts github.com/mozilla-ai/any-llm-go, a unified
// multi-provider client, to the [llm.Adapter] contract. It serves the
// "ollama" backend against a local server and doubles as the bridge to
// hosted APIs (Gemini, OpenAI, Anthropic, …) when one is configured.
//
// Usage:
//
//	a, err := anyllm.NewOllama("llama3", anyllmlib.WithBaseURL("http://127.0.0.1:11434"))
//	a, err := anyllm.New("gemini", "gemini-3-flash-preview")
package anyllm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/llm"
)

// Option configures an [Adapter] beyond the backend options.
type Option func(*Adapter)

// WithHealthURL sets an HTTP endpoint probed by Healthcheck (e.g. Ollama's
// /api/tags). Without one the adapter reports healthy unconditionally.
func WithHealthURL(url string) Option {
	return func(a *Adapter) {
		a.healthURL = url
	}
}

// Adapter implements [llm.Adapter] by wrapping an any-llm-go provider.
type Adapter struct {
	name      string
	backend   anyllmlib.Provider
	model     string
	healthURL string
	cancels   *llm.Cancels
	client    *http.Client
}

var _ llm.Adapter = (*Adapter)(nil)

// New creates an Adapter for the named provider. providerName is one of
// "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
// "llamacpp", "llamafile". Backend credentials fall back to the provider's
// usual environment variable when no option supplies them.
func New(providerName, model string, opts []anyllmlib.Option, adapterOpts ...Option) (*Adapter, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	a := &Adapter{
		name:    providerName,
		backend: backend,
		model:   model,
		cancels: llm.NewCancels(),
		client:  &http.Client{Timeout: 2 * time.Second},
	}
	for _, o := range adapterOpts {
		o(a)
	}
	return a, nil
}

// NewOllama creates an Adapter for a local Ollama server, probing
// <baseURL>/api/tags for health when baseURL is non-empty.
func NewOllama(model, baseURL string) (*Adapter, error) {
	var libOpts []anyllmlib.Option
	var adapterOpts []Option
	if baseURL != "" {
		libOpts = append(libOpts, anyllmlib.WithBaseURL(baseURL))
		adapterOpts = append(adapterOpts, WithHealthURL(strings.TrimSuffix(baseURL, "/")+"/api/tags"))
	}
	return New("ollama", model, libOpts, adapterOpts...)
}

// createBackend constructs the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Name implements [llm.Adapter].
func (a *Adapter) Name() string { return a.name }

// Healthcheck implements [llm.Adapter]. With a health URL configured it
// probes the endpoint; otherwise the backend is assumed reachable and any
// failure surfaces on the first Generate.
func (a *Adapter) Healthcheck(ctx context.Context) bool {
	if a.healthURL == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.healthURL, nil)
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

// Generate implements [llm.Adapter].
func (a *Adapter) Generate(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancels.Track(req.SessionID, cancel)

	backendChunks, backendErrs := a.backend.CompletionStream(ctx, a.buildParams(req))

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer a.cancels.Release(req.SessionID)

		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			select {
			case ch <- llm.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}

		if err := <-backendErrs; err != nil && ctx.Err() == nil {
			select {
			case ch <- llm.Chunk{Err: fmt.Errorf("anyllm: stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// Cancel implements [llm.Adapter].
func (a *Adapter) Cancel(sessionID string) {
	a.cancels.Cancel(sessionID)
}

// buildParams converts a request into any-llm-go completion parameters. The
// dev-context blob rides along as a system message and is never logged.
func (a *Adapter) buildParams(req llm.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.System != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.System,
		})
	}
	if req.DevContext != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.DevContext,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: req.Prompt,
	})

	model := a.model
	if req.Model != "" {
		model = req.Model
	}
	return anyllmlib.CompletionParams{Model: model, Messages: messages}
}
