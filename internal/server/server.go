// Package server accepts TCP connections and runs one session per
// connection on a bounded worker pool.
//
// Sessions share nothing but the dispatcher (and, behind it, the storage
// lane). When every worker is busy a new connection is told "Server busy"
// and closed instead of queueing. Shutdown stops the accept loop, cancels
// live sessions and waits for them to finish.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-tcp/internal/session"
)

const (
	respBusy = "Server busy"

	// busyWriteTimeout bounds the courtesy write to a rejected client.
	busyWriteTimeout = time.Second
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Options configures a Server.
type Options struct {
	// Addr is the TCP listen address (host:port).
	Addr string
	// MaxConnections sizes the session worker pool.
	MaxConnections int
	// Session is applied to every session.
	Session session.Options
	Logger  zerolog.Logger
}

// Server is the TCP front end.
type Server struct {
	opts Options
	d    session.Dispatcher
	log  zerolog.Logger
	pool *ants.Pool

	mu       sync.Mutex
	ln       net.Listener
	cancel   context.CancelFunc
	shutdown bool

	wg     sync.WaitGroup
	active atomic.Int64
}

// New builds a Server. It does not listen yet.
func New(d session.Dispatcher, opts Options) (*Server, error) {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 1
	}
	s := &Server{
		opts: opts,
		d:    d,
		log:  opts.Logger.With().Str("component", "server").Logger(),
	}
	pool, err := ants.NewPool(opts.MaxConnections,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v interface{}) {
			s.log.Error().Interface("panic", v).Msg("session panicked")
		}),
	)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Listen binds the listen address. Serve calls it when needed; calling it
// first lets callers learn the bound address (see Addr).
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return ErrServerClosed
	}
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveSessions reports sessions currently running.
func (s *Server) ActiveSessions() int64 { return s.active.Load() }

// Serve accepts connections until ctx is cancelled or Shutdown is called,
// then returns ErrServerClosed. Transient accept failures (timeouts, fd
// exhaustion, aborted handshakes) are retried with backoff; any other accept
// failure is returned as is.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrServerClosed
	}
	ln := s.ln
	s.cancel = cancel
	s.mu.Unlock()

	stop := context.AfterFunc(sctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Int("max_connections", s.opts.MaxConnections).Msg("listening")

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if sctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			if temporary(err) {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := time.Second; tempDelay > max {
					tempDelay = max
				}
				s.log.Warn().Err(err).Dur("retry_in", tempDelay).Msg("accept failed")
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		s.dispatch(sctx, conn)
	}
}

// temporary reports whether an accept error should be retried.
func temporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	sess := session.New(conn, s.d, s.opts.Session)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.active.Add(1)
		sessionsActive.Inc()
		sessionsTotal.Inc()
		defer func() {
			s.active.Add(-1)
			sessionsActive.Dec()
		}()

		if err := sess.Serve(ctx); err != nil {
			s.log.Debug().Err(err).Str("session_id", sess.ID()).Msg("session ended with error")
		}
	})
	if err != nil {
		s.wg.Done()
		s.reject(conn, err)
	}
}

// reject tells the client the server is full and hangs up.
func (s *Server) reject(conn net.Conn, err error) {
	sessionsRejected.Inc()
	s.log.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("connection rejected")
	_ = conn.SetWriteDeadline(time.Now().Add(busyWriteTimeout))
	_, _ = io.WriteString(conn, respBusy+"\n")
	_ = conn.Close()
}

// Shutdown stops accepting, cancels every session and waits for them to
// return or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.pool.Release()
		s.log.Info().Msg("server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
