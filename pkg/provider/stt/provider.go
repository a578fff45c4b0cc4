// Package stt defines the Adapter interface for speech-to-text backends.
//
// Implementors must be safe for concurrent use. The result channel returned
// by TranscribeStream is closed by the implementation when the utterance is
// fully transcribed or the context is cancelled; exactly one Final result is
// emitted per closed utterance.
package stt

import "context"

// Result is one transcription update. Partial results refine the running
// hypothesis; the Final result closes the utterance.
type Result struct {
	Text       string
	Confidence float64
	Final      bool

	// Language is the detected ISO language code, empty when unknown.
	Language string

	// StartMS and EndMS bound the transcribed span within the utterance,
	// zero when the backend does not report timing.
	StartMS int64
	EndMS   int64
}

// Adapter is a speech-to-text backend.
type Adapter interface {
	// Name identifies the backend ("sim", "whisper_server", …).
	Name() string

	// TranscribeStream consumes audio frames from audio and streams
	// transcription updates. The returned channel carries zero or more
	// partials followed by exactly one Final, then closes.
	TranscribeStream(ctx context.Context, audio <-chan []byte) (<-chan Result, error)

	// TranscribeBlob transcribes a complete audio buffer in one shot.
	TranscribeBlob(ctx context.Context, audio []byte) (Result, error)
}
