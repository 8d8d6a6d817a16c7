// Package server binds the TCP listener and serves an http.Handler on it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/hello-server/internal/platform/logging"
)

// Port is the fixed listening port. It is not configurable.
const Port = 3001

// DefaultAddr listens on Port on every interface.
var DefaultAddr = ":" + strconv.Itoa(Port)

const (
	readTimeout       = 5 * time.Second
	readHeaderTimeout = 2 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	maxHeaderBytes    = 64 << 10 // 64 KB
)

// Server is a running HTTP server bound to a listener.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	errc chan error
}

// New returns an http.Server for addr with the standard timeouts and limits applied.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}

// Start binds addr and serves handler in the background. The bind happens before
// Start returns, so an address already in use or a permission failure is reported
// here. There is no retry and no fallback port.
func Start(ctx context.Context, handler http.Handler, addr string) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &Server{
		srv:  New(addr, handler),
		ln:   ln,
		errc: make(chan error, 1),
	}
	applog.LogInfo(ctx, "server is running",
		zap.String("addr", ln.Addr().String()),
		zap.Int("port", portOf(ln.Addr())),
	)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
		close(s.errc)
	}()
	return s, nil
}

// Addr reports the bound address, useful when started on port 0.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Err delivers a serve failure, if any. It is closed once serving stops.
func (s *Server) Err() <-chan error {
	return s.errc
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
