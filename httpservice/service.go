/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package httpservice is the composition root: the one explicit, non-global
// value that threads every shared sub-structure a running server needs
// (route tables, the response cache, the monitor hub, the config
// collaborator) through the accept loop, per spec.md §9's "model as an
// explicit value a caller constructs ... not process-global state" and
// SPEC_FULL.md §2's HttpService package note. Grounded on the shape of the
// teacher's httpserver.Server/httpserver.Config pair
// (nabbar-golib/httpserver/{server,config}.go): an exported Config struct
// carrying everything needed to build a server, a constructor that
// validates and defaults it, and a lifecycle type with Serve/Shutdown.
package httpservice

import (
	"crypto/tls"
	"errors"
	"time"

	"github.com/nabbar/httpcore/cache"
	"github.com/nabbar/httpcore/coreconfig"
	"github.com/nabbar/httpcore/corelog"
	"github.com/nabbar/httpcore/monitor"
	"github.com/nabbar/httpcore/router"
	"github.com/nabbar/httpcore/stream"
)

// ErrNoRouter is returned by New when Config.Router is nil; a service with
// no hosts/routes can never match a request, so this is a config error, not
// a degraded-but-running state.
var ErrNoRouter = errors.New("httpservice: config has no router")

// Config is everything New needs to build a Service, mirroring the
// teacher's ServerConfig: the listener identity plus every shared
// collaborator the pipeline-assembly code will reach for per request.
type Config struct {
	// Name identifies this service in logs, mirroring ServerConfig.Name.
	Name string

	// TLS, if non-nil, is handed to the listener the caller wraps with
	// tls.NewListener before calling Serve — TLS termination itself is an
	// external collaborator per spec.md §6 ("TLS is provided by an external
	// collaborator"); this core only needs to know a connection may already
	// be encrypted when deciding ALPN-driven protocol selection.
	TLS *tls.Config

	// Router owns the virtual host / route table this service matches
	// every request against (spec.md §4.10). Required.
	Router *router.Router

	// Cache backs every route that enables response caching (spec.md
	// §4.8). Defaults to cache.NewMemoryStore() if nil.
	Cache cache.Store

	// Hub holds the per-address counters, threshold monitors, and defenses
	// (spec.md §4.9). Defaults to a fresh, empty monitor.NewHub() if nil —
	// an empty Hub still tracks ActiveConnections/Requests/Errors even
	// with no monitors/defenses registered, so ban/delay wiring has
	// somewhere to read from regardless.
	Hub *monitor.Hub

	// Config is the registerParser/loadConfig/addRouteSet collaborator
	// (spec.md §6). Optional: a service that builds its routes entirely in
	// Go code never needs to load JSON config.
	Config *coreconfig.Registry

	// Limits is the default per-stream limit set applied to every new
	// stream (spec.md §4.4/§5); routes may narrow it via RouteLimits.
	Limits stream.Limits

	// Log is the structured logger every accepted connection and stream
	// derives its own correlation-tagged Logger from. Defaults to
	// corelog.Discard.
	Log corelog.Logger

	// MaxHeaderReadTimeout bounds how long the accept loop will wait for a
	// connection's request line and headers to arrive before abandoning it,
	// grounded on spec.md §5's requestParseTimeout budget. Defaults to 30s.
	MaxHeaderReadTimeout time.Duration
}

// Service is a running composition of the core's packages: one Router, one
// cache.Store, one monitor.Hub, serving accepted connections. Construct with
// New; drive with Serve on each net.Listener the caller wants it to own (a
// Service may Serve more than one listener concurrently, e.g. plaintext and
// TLS on different ports, mirroring the teacher's PoolServer multiplexing
// several Server instances — here, one Service instance handles all of
// them since the state it shares is the whole point).
type Service struct {
	cfg Config

	router *router.Router
	store  cache.Store
	hub    *monitor.Hub
	config *coreconfig.Registry
	log    corelog.Logger
	limits stream.Limits

	headerTimeout time.Duration
}

// New validates cfg and builds a Service, defaulting every optional
// collaborator exactly once (mirroring httpserver.New's "validate then
// default" order).
func New(cfg Config) (*Service, error) {
	if cfg.Router == nil {
		return nil, ErrNoRouter
	}

	s := &Service{
		cfg:           cfg,
		router:        cfg.Router,
		store:         cfg.Cache,
		hub:           cfg.Hub,
		config:        cfg.Config,
		log:           cfg.Log,
		limits:        cfg.Limits,
		headerTimeout: cfg.MaxHeaderReadTimeout,
	}
	if s.store == nil {
		s.store = cache.NewMemoryStore()
	}
	if s.hub == nil {
		s.hub = monitor.NewHub()
	}
	if s.log == nil {
		s.log = corelog.Discard
	}
	if s.limits == (stream.Limits{}) {
		s.limits = stream.DefaultLimits()
	}
	if s.headerTimeout <= 0 {
		s.headerTimeout = 30 * time.Second
	}
	return s, nil
}

// Hub exposes the service's monitor hub so the caller can register
// monitors/defenses (monitor.NewMonitor/NewDefense) before calling Serve, or
// inspect counters while running.
func (s *Service) Hub() *monitor.Hub { return s.hub }

// Store exposes the service's response cache store.
func (s *Service) Store() cache.Store { return s.store }

// Router exposes the service's route table, e.g. for a coreconfig.Registry
// to populate at startup via RegisterDefaults + LoadConfig against each
// host's default route.
func (s *Service) Router() *router.Router { return s.router }

// Close stops every monitor running against the service's hub. Listeners
// themselves are the caller's to close (Serve returns once its listener's
// Accept loop ends).
func (s *Service) Close() error {
	s.hub.Stop()
	return nil
}
