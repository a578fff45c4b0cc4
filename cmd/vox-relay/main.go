// Command vox-relay serves the gateway WebSocket protocol from a static
// command-to-events table, with no orchestrator behind it. It exists for UI
// development and wiring tests: dashboards connect to the same endpoints
// they would use against the real server and see plausible event traffic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Jas0nOW/Vox-Voice/internal/relay"
)

func main() {
	os.Exit(run())
}

func run() int {
	wsHost := flag.String("ws-host", "127.0.0.1", "listen host")
	wsPort := flag.Int("ws-port", 7777, "listen port")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	r := relay.New()
	defer r.Bus().Close()

	addr := net.JoinHostPort(*wsHost, strconv.Itoa(*wsPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("relay listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "vox-relay: %v\n", err)
		return 1
	}
	return 0
}
