// Package tts defines the Adapter interface for speech-synthesis backends.
//
// Implementors must be safe for concurrent use. The audio channel returned
// by SynthesizeStream is closed by the implementation when the input text
// channel closes and all audio is flushed, when the context is cancelled,
// or when Stop is called.
package tts

import "context"

// Adapter is a speech-synthesis backend.
type Adapter interface {
	// Name identifies the backend ("sim", "coqui", …).
	Name() string

	// SynthesizeStream consumes text chunks and streams synthesized audio.
	// Implementations may buffer text until a sentence boundary before
	// emitting audio.
	SynthesizeStream(ctx context.Context, text <-chan string) (<-chan []byte, error)

	// SynthesizeText renders a complete text in one shot.
	SynthesizeText(ctx context.Context, text string) ([]byte, error)

	// Stop terminates the current stream promptly (barge-in).
	Stop()
}
