// Package gateway exposes the orchestrator over two WebSocket endpoints:
//
//	/ws/events   broadcast-only; every bus envelope as one JSON text frame
//	/ws/command  ingest-only; one command per text frame, one ack per frame
//
// Any number of subscribers and controllers may connect concurrently. The
// gateway never interprets events; it serializes whatever the bus fans out.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/Jas0nOW/Vox-Voice/internal/engine"
	"github.com/Jas0nOW/Vox-Voice/internal/health"
	"github.com/Jas0nOW/Vox-Voice/internal/observe"
	"github.com/Jas0nOW/Vox-Voice/pkg/types"
)

// Option configures a [Gateway].
type Option func(*Gateway)

// WithAutostart launches one simulated session when the first events
// subscriber connects.
func WithAutostart(on bool) Option {
	return func(g *Gateway) { g.autostart = on }
}

// WithHealth mounts the given health handler's endpoints on the gateway mux.
func WithHealth(h *health.Handler) Option {
	return func(g *Gateway) { g.health = h }
}

// Gateway bridges WebSocket clients and the engine.
type Gateway struct {
	engine    *engine.Engine
	health    *health.Handler
	log       *slog.Logger
	autostart bool
	startOnce sync.Once
}

// New returns a gateway for e.
func New(e *engine.Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine: e,
		log:    slog.Default().With("component", "gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Handler returns the HTTP handler serving both WebSocket endpoints, the
// Prometheus scrape endpoint, and, when configured, the health endpoints.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/events", g.serveEvents)
	mux.HandleFunc("GET /ws/command", g.serveCommand)
	mux.HandleFunc("/ws/", g.rejectUnknown)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	if g.health != nil {
		g.health.Register(mux)
	}
	return mux
}

// serveEvents streams every bus envelope to the client until the client
// disconnects or the bus closes.
func (g *Gateway) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Warn("events accept failed", "error", err)
		return
	}

	sub, err := g.engine.Bus().Subscribe()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "event bus closed")
		return
	}
	defer g.engine.Bus().Unsubscribe(sub)

	// The client never sends frames on this endpoint; CloseRead surfaces
	// its disconnect as context cancellation.
	ctx := conn.CloseRead(r.Context())

	if g.autostart {
		g.startOnce.Do(func() { g.engine.StartSim(ctx) })
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "event bus closed")
				return
			}
			data, err := ev.MarshalText()
			if err != nil {
				g.log.Error("marshal envelope", "type", ev.Type, "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		}
	}
}

// serveCommand reads command frames and answers each with an ack frame.
// Malformed frames are answered with a not-ok ack; transport errors end the
// connection.
func (g *Gateway) serveCommand(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Warn("command accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		cmd, err := types.ParseCommand(data)
		var ack types.Ack
		if err != nil {
			g.log.Warn("unparseable command frame", "error", err)
			ack = types.Ack{OK: false}
		} else {
			ack = g.engine.HandleCommand(ctx, cmd)
		}

		if err := g.writeAck(ctx, conn, ack); err != nil {
			return
		}
	}
}

func (g *Gateway) writeAck(ctx context.Context, conn *websocket.Conn, ack types.Ack) error {
	data, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// rejectUnknown completes the handshake, then closes with a policy
// violation so clients see the reason instead of a bare HTTP error.
func (g *Gateway) rejectUnknown(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	conn.Close(websocket.StatusPolicyViolation, "unknown websocket path: "+r.URL.Path)
}
