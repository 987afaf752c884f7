// Package session runs the request/response protocol on one client
// connection.
//
// A Session reads one newline-terminated request, dispatches it, waits for
// the storage lane when the command needs it, writes exactly one response
// line and only then reads the next request. There is no pipelining: a
// client that sends several lines at once is answered in order, one line at
// a time.
//
// Read errors, EOF, idle timeouts and shutdown end the session. They are
// logged and never escalated beyond the connection.
package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-chat-tcp/internal/command"
)

// State is a session's position in the request cycle.
type State uint32

const (
	StateAwaitingRequest State = iota
	StateDispatching
	StateAwaitingStorage
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting_request"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingStorage:
		return "awaiting_storage"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Dispatcher turns a request line into a runnable call. *command.Dispatcher
// satisfies it.
type Dispatcher interface {
	Prepare(line string) (*command.Call, command.Response)
}

// Options configures a Session.
type Options struct {
	// IdleTimeout bounds the wait for the next request (0 disables).
	IdleTimeout time.Duration
	// WriteTimeout bounds writing one response (0 disables).
	WriteTimeout time.Duration
	// MaxLineBytes caps a request line, terminator included.
	MaxLineBytes int
	// RateRPS and RateBurst shape the per-session command rate. Excess
	// requests wait for a token. RateRPS <= 0 disables limiting.
	RateRPS   float64
	RateBurst int

	Logger zerolog.Logger
}

const (
	defaultMaxLineBytes = 64 << 10

	respTooLong = "Request too long"
)

// Session owns one client connection for its whole life.
type Session struct {
	id      string
	conn    net.Conn
	d       Dispatcher
	opts    Options
	log     zerolog.Logger
	limiter *rate.Limiter
	reader  *bufio.Reader
	state   atomic.Uint32
	served  atomic.Uint64
}

// New wraps conn. The session takes ownership of conn and closes it when
// Serve returns.
func New(conn net.Conn, d Dispatcher, opts Options) *Session {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	id := uuid.NewString()
	s := &Session{
		id:   id,
		conn: conn,
		d:    d,
		opts: opts,
		log: opts.Logger.With().
			Str("session_id", id).
			Str("remote_addr", remoteAddr(conn)).
			Logger(),
		reader: bufio.NewReaderSize(conn, opts.MaxLineBytes),
	}
	if opts.RateRPS > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateRPS), burst)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Served returns the number of responses written.
func (s *Session) Served() uint64 { return s.served.Load() }

func (s *Session) setState(st State) { s.state.Store(uint32(st)) }

// Serve runs the request cycle until the client leaves, an I/O error occurs
// or ctx is cancelled. Cancelling ctx closes the connection, which unblocks
// any pending read or write. Serve returns nil for ordinary endings (EOF,
// quit, idle timeout, shutdown) and the I/O error otherwise.
func (s *Session) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer s.close()

	ctx = s.log.WithContext(ctx)
	s.log.Debug().Msg("session started")

	for {
		s.setState(StateAwaitingRequest)
		line, err := s.readLine()
		if err != nil {
			return s.readFailed(ctx, err)
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				s.log.Debug().Err(err).Msg("session cancelled while throttled")
				return nil
			}
		}

		s.setState(StateDispatching)
		s.log.Debug().Str("request", command.Redact(line)).Msg("request")
		call, resp := s.d.Prepare(line)
		if call != nil {
			if call.UsesStorage() {
				s.setState(StateAwaitingStorage)
			}
			resp = call.Run(ctx)
		}

		s.setState(StateResponding)
		if err := s.writeLine(resp.Text); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("write failed")
			return err
		}
		s.served.Add(1)

		if resp.Close {
			s.log.Debug().Msg("client quit")
			return nil
		}
	}
}

func (s *Session) close() {
	s.setState(StateClosed)
	_ = s.conn.Close()
	s.log.Debug().Uint64("responses", s.Served()).Msg("session closed")
}

// readLine returns the next request without its terminator. Invalid UTF-8 is
// replaced with U+FFFD.
func (s *Session) readLine() (string, error) {
	if s.opts.IdleTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout)); err != nil {
			return "", err
		}
	}
	b, err := s.reader.ReadSlice('\n')
	if err != nil {
		return "", err
	}
	line := string(b[:len(b)-1])
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		if clean, derr := xunicode.UTF8.NewDecoder().String(line); derr == nil {
			line = clean
		}
	}
	return line, nil
}

func (s *Session) readFailed(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		s.log.Warn().Int("max_line_bytes", s.opts.MaxLineBytes).Msg("request too long")
		s.setState(StateResponding)
		if werr := s.writeLine(respTooLong); werr != nil {
			s.log.Debug().Err(werr).Msg("write failed")
		}
		return nil
	case errors.Is(err, io.EOF):
		s.log.Debug().Msg("client disconnected")
		return nil
	case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
		s.log.Debug().Msg("session shut down")
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		s.log.Info().Dur("idle_timeout", s.opts.IdleTimeout).Msg("idle timeout")
		return nil
	default:
		s.log.Warn().Err(err).Msg("read failed")
		return err
	}
}

func (s *Session) writeLine(text string) error {
	if s.opts.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(s.conn, text+"\n")
	return err
}

func remoteAddr(c net.Conn) string {
	if a := c.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
