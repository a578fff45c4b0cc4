// Package whisperserver adapts a running whisper-server instance (the HTTP
// front end of whisper.cpp) to the [stt.Adapter] contract.
//
// Streaming is chunk-accumulating: whisper has no native partial results,
// so frames are buffered until the audio channel closes and transcribed in
// one request. The engine slices utterances by VAD, so a stream is one
// utterance.
package whisperserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/stt"
)

// Option configures an [Adapter].
type Option func(*Adapter)

// WithLanguage pins the transcription language. Default: "de".
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

// Adapter implements [stt.Adapter] against a whisper-server endpoint.
type Adapter struct {
	baseURL  string
	language string
	client   *http.Client
}

var _ stt.Adapter = (*Adapter)(nil)

// New returns an adapter for the server at baseURL (e.g.
// "http://127.0.0.1:8178").
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

// Name implements [stt.Adapter].
func (a *Adapter) Name() string { return "whisper_server" }

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

// TranscribeStream implements [stt.Adapter] by accumulating the utterance
// and transcribing it when the audio channel closes.
func (a *Adapter) TranscribeStream(ctx context.Context, audio <-chan []byte) (<-chan stt.Result, error) {
	ch := make(chan stt.Result, 1)
	go func() {
		defer close(ch)

		var buf bytes.Buffer
		for {
			select {
			case frame, ok := <-audio:
				if !ok {
					res, err := a.TranscribeBlob(ctx, buf.Bytes())
					if err != nil || ctx.Err() != nil {
						return
					}
					ch <- res
					return
				}
				buf.Write(frame)
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// inferenceResponse is the subset of the whisper-server reply we use.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// TranscribeBlob implements [stt.Adapter] via POST /inference.
func (a *Adapter) TranscribeBlob(ctx context.Context, audio []byte) (stt.Result, error) {
	if len(audio) == 0 {
		return stt.Result{Final: true, Confidence: 1.0, Language: a.language}, nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: build request: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: build request: %w", err)
	}
	if err := mw.WriteField("language", a.language); err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: build request: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/inference", &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: inference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Result{}, fmt.Errorf("whisperserver: inference: status %d: %s", resp.StatusCode, msg)
	}

	var decoded inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return stt.Result{}, fmt.Errorf("whisperserver: decode response: %w", err)
	}

	lang := decoded.Language
	if lang == "" {
		lang = a.language
	}
	return stt.Result{
		Text: strings.TrimSpace(decoded.Text),
		// whisper-server reports no utterance-level confidence.
		Confidence: 1.0,
		Final:      true,
		Language:   lang,
	}, nil
}
