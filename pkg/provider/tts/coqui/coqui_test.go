package coqui_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jas0nOW/Vox-Voice/pkg/provider/tts/coqui"
)

func TestSentenceBoundaryFlush(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("text"))
		w.Write([]byte("RIFFpcm"))
	}))
	defer srv.Close()

	text := make(chan string, 3)
	text <- "Mir geht"
	text <- " es gut."
	text <- " Was brauchst du?"
	close(text)

	ch, err := coqui.New(srv.URL).SynthesizeStream(context.Background(), text)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	var blobs int
	for range ch {
		blobs++
	}

	if blobs != 2 {
		t.Fatalf("emitted %d blobs, want 2 (one per sentence)", blobs)
	}
	if len(requests) != 2 {
		t.Fatalf("server saw %d requests: %v", len(requests), requests)
	}
	if requests[0] != "Mir geht es gut." {
		t.Errorf("first sentence = %q", requests[0])
	}
	if requests[1] != "Was brauchst du?" {
		t.Errorf("second sentence = %q", requests[1])
	}
}

func TestQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("language_id") != "de" {
			t.Errorf("language_id = %q", q.Get("language_id"))
		}
		if q.Get("speaker_id") != "seraphina" {
			t.Errorf("speaker_id = %q", q.Get("speaker_id"))
		}
		w.Write([]byte("pcm"))
	}))
	defer srv.Close()

	a := coqui.New(srv.URL, coqui.WithVoice("seraphina"))
	if _, err := a.SynthesizeText(context.Background(), "hallo"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
}

func TestStopCancelsStream(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
		w.Write([]byte("pcm"))
	}))
	defer srv.Close()
	defer close(block)

	a := coqui.New(srv.URL)
	text := make(chan string, 1)
	text <- "Eins."
	ch, err := a.SynthesizeStream(context.Background(), text)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	a.Stop()
	close(text)

	for range ch {
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no model", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := coqui.New(srv.URL).SynthesizeText(context.Background(), "hallo"); err == nil {
		t.Error("expected error for 500 response")
	}
}
