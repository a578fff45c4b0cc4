// Package llm defines the Adapter interface for language-model backends.
//
// An adapter wraps one reasoning backend (the persistent gemini CLI
// subprocess, a local Ollama server, or the built-in simulator) behind a
// uniform streaming interface for the session orchestrator.
//
// Implementors must be safe for concurrent use. The channel returned by
// Generate is closed by the implementation when the stream ends, errors, or
// the supplied context is cancelled.
package llm

import "context"

// Request carries everything a backend needs to answer one utterance.
type Request struct {
	// SessionID identifies the session for later Cancel calls.
	SessionID string

	// Prompt is the user's transcribed utterance.
	Prompt string

	// System is an optional instruction header (e.g. the rules file of the
	// CLI backend).
	System string

	// DevContext is untrusted developer-supplied context. Adapters may feed
	// it to the model but must never log or persist its content.
	DevContext string

	// Model overrides the adapter's default model when non-empty.
	Model string
}

// Chunk is one streamed fragment of a response. A non-nil Err terminates the
// stream; the channel is closed right after.
type Chunk struct {
	Text string
	Err  error
}

// Adapter is a language-model backend.
type Adapter interface {
	// Name identifies the backend ("sim", "gemini_cli", "ollama", …) in
	// events and manifests.
	Name() string

	// Healthcheck reports whether the backend can serve requests. It must
	// return within two seconds, using ctx for early cancellation.
	Healthcheck(ctx context.Context) bool

	// Generate streams the response to req. The returned channel is closed
	// when the response is complete, the context is cancelled, or the
	// session is cancelled via Cancel.
	Generate(ctx context.Context, req Request) (<-chan Chunk, error)

	// Cancel stops the stream of the given session within bounded time.
	// Unknown session ids are ignored.
	Cancel(sessionID string)
}
