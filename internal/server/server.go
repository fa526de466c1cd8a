// Package server wires the static resolver and middleware into an HTTP
// server for a content root.
//
// A Server moves from not listening to listening exactly once. Listen binds
// the socket, Serve dispatches requests until the context is cancelled, and
// Shutdown drains in-flight requests.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/docsite/internal/config"
	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/livereload"
	"github.com/conneroisu/docsite/internal/logging"
	"github.com/conneroisu/docsite/internal/middleware"
	"github.com/conneroisu/docsite/internal/static"
	"github.com/conneroisu/docsite/internal/watcher"
	"golang.org/x/net/netutil"
)

const (
	// HealthPath answers with the server's HealthStatus.
	HealthPath = "/__health"

	defaultShutdownTimeout = 5 * time.Second

	// maxLoggedPaths caps the paths named in one reload log line.
	maxLoggedPaths = 5
)

// Server serves one content root.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	root     string
	resolver *static.Resolver
	hub      *livereload.Hub
	handler  http.Handler

	mutex        sync.Mutex
	listener     net.Listener
	httpServer   *http.Server
	watcher      *watcher.FileWatcher
	shutdownOnce sync.Once
}

// New resolves the content root and builds the request pipeline. Nothing is
// bound until Listen.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	root, err := cfg.ResolveContentRoot()
	if err != nil {
		return nil, err
	}

	mimeTypes := make(map[string]string, len(cfg.Content.MimeTypes))
	for _, m := range cfg.Content.MimeTypes {
		mimeTypes[m.Ext] = m.Type
	}

	resolver, err := static.New(root, static.Options{
		IndexFile:     cfg.Content.IndexFile,
		AllowDotfiles: cfg.Content.AllowDotfiles,
		MimeTypes:     mimeTypes,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger.WithComponent("server"),
		root:     root,
		resolver: resolver,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, s.handleHealth)
	if cfg.Development.LiveReload {
		s.hub = livereload.NewHub(logger)
		s.hub.Register(mux)
	}
	mux.Handle("/", resolver)

	s.handler = s.pipeline().Apply(mux)
	return s, nil
}

// pipeline returns the middleware stages, outermost first.
func (s *Server) pipeline() *middleware.Chain {
	onError := middleware.DefaultErrorHandler(s.logger)

	chain := middleware.NewChain(
		middleware.RequestID(),
		middleware.AccessLog(s.logger),
		middleware.Recover(onError),
		middleware.Isolation(s.cfg.Isolation.Headers()...),
	)
	if s.hub != nil {
		// outside NotFound so the fallback page gets the script too
		chain.AddMiddleware(livereload.Inject)
	}
	chain.AddMiddleware(middleware.NotFound(s.resolver.FS(), s.cfg.Content.NotFoundPage, onError))
	return chain
}

// Handler returns the full request pipeline.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Root returns the absolute content root.
func (s *Server) Root() string {
	return s.root
}

// Resolver returns the resolver serving the content root.
func (s *Server) Resolver() *static.Resolver {
	return s.resolver
}

// Listen binds the configured address. It fails with ErrAlreadyListening
// on any call after the first successful one.
func (s *Server) Listen(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return docerrors.ErrAlreadyListening
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Addr(), err)
	}
	if s.cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConnections)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the base URL of the bound listener, or "" before Listen.
func (s *Server) URL() string {
	addr, ok := s.Addr().(*net.TCPAddr)
	if !ok {
		return ""
	}
	host := "localhost"
	if addr.IP != nil && !addr.IP.IsUnspecified() {
		host = addr.IP.String()
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(addr.Port))
}

// Serve handles requests until ctx is cancelled, then shuts down within the
// configured timeout. It binds first if Listen was not called.
func (s *Server) Serve(ctx context.Context) error {
	s.mutex.Lock()
	bound := s.listener != nil
	s.mutex.Unlock()
	if !bound {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}

	if s.hub != nil {
		go s.hub.Run(ctx)
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "live reload disabled: cannot watch content root")
		}
	}

	s.mutex.Lock()
	srv, ln := s.httpServer, s.listener
	s.mutex.Unlock()

	s.logger.Info(ctx, "serving content",
		"root", s.root,
		"addr", ln.Addr().String(),
		"live_reload", s.hub != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.cfg.Development.WatchDebounce, s.logger)
	if err != nil {
		return err
	}
	if !s.cfg.Content.AllowDotfiles {
		fw.AddFilter(watcher.NoDotfileFilter(s.root))
	}
	fw.AddFilter(watcher.NoTempFileFilter)
	if ignore := s.cfg.Development.WatchIgnore; len(ignore) > 0 {
		fw.AddFilter(watcher.GlobFilter(s.root, ignore))
	}
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		paths := watcher.Paths(events)
		if len(paths) > maxLoggedPaths {
			paths = append(paths[:maxLoggedPaths], fmt.Sprintf("(+%d more)", len(events)-maxLoggedPaths))
		}
		s.logger.Info(ctx, "content changed, reloading browsers",
			"changes", len(events),
			"paths", paths,
			"clients", s.hub.ClientCount(),
		)
		s.hub.Reload()
		return nil
	})

	if err := fw.AddRecursive(s.root); err != nil {
		_ = fw.Stop()
		return err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}

	s.mutex.Lock()
	s.watcher = fw
	s.mutex.Unlock()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mutex.Lock()
		srv, fw := s.httpServer, s.watcher
		s.mutex.Unlock()

		if fw != nil {
			_ = fw.Stop()
		}
		if srv != nil {
			s.logger.Info(ctx, "shutting down")
			err = srv.Shutdown(ctx)
		}
	})
	return err
}
