// Copyright 2026 The IPEngine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command ipengined wires the engine package to a process: it loads
// configuration, starts one HTTP server serving /metrics and the mgmt API, and runs
// the single event-loop goroutine that drives the engine (§5:
// "single-threaded cooperative event-driven" — the engine itself holds
// no goroutine; this is the external scheduler the spec assumes).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/netlayer/ipengine/internal/config"
	"github.com/netlayer/ipengine/internal/engine"
	"github.com/netlayer/ipengine/internal/log"
	"github.com/netlayer/ipengine/internal/mgmtapi"
)

// event is one unit of work for the engine's event loop: an ingress
// frame, an HL send request, or an ARP resolution reply. A real
// deployment would populate this channel from live sockets; this
// skeleton only demonstrates the wiring and the loop shape.
type event func(e *engine.Engine)

func main() {
	cfgPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	if err := realMain(*cfgPath); err != nil {
		log.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func realMain(cfgPath string) error {
	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.LoadFile(cfgPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	} else {
		cfg.InitDefaults()
	}

	if err := log.Setup(cfg.Logging.Level, cfg.Logging.Format == "json"); err != nil {
		return err
	}
	defer log.HandlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	collab, ifaces := buildCollaborators(metrics)
	eng := engine.New(cfg.Router.Options(), collab)
	if err := eng.Up(); err != nil {
		return err
	}

	events := make(chan event, 256)

	g.Go(func() error {
		defer log.HandlePanic()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		api := &mgmtapi.Server{Engine: eng, Interfaces: ifaces, Metrics: metrics}
		mux.Handle("/", api.Handler())
		return serveHTTP(gctx, cfg.Metrics.Address, mux)
	})

	g.Go(func() error {
		defer log.HandlePanic()
		return runEventLoop(gctx, eng, events)
	})

	<-gctx.Done()
	eng.Down()
	return g.Wait()
}

// runEventLoop is the single goroutine that ever calls into the engine,
// satisfying §5's single-threaded event-driven scheduling model: events
// are processed strictly one at a time, in arrival order.
func runEventLoop(ctx context.Context, eng *engine.Engine, events <-chan event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			ev(eng)
		}
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildCollaborators is a placeholder wiring point: a real deployment
// would populate the interface/routing/ARP tables from the host's
// configuration and network stack instead of leaving them empty.
func buildCollaborators(metrics *engine.Metrics) (engine.Collaborators, engine.InterfaceTable) {
	ifaces := newEmptyInterfaceTable()
	return engine.Collaborators{
		Interfaces: ifaces,
		Routes:     newEmptyRoutingTable(),
		ARP:        newEmptyARP(),
		ICMP:       newEmptyICMP(),
		Sink:       newEmptySink(),
		Metrics:    metrics,
	}, ifaces
}
