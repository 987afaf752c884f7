package command

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tbourn/go-chat-tcp/internal/command"

// Dispatcher runs request lines against a Storage. It holds no per-request
// state and is safe for concurrent use.
type Dispatcher struct {
	store  Storage
	tracer trace.Tracer
}

// NewDispatcher returns a Dispatcher backed by s. Spans go to the global
// tracer provider, which is a no-op unless tracing was set up.
func NewDispatcher(s Storage) *Dispatcher {
	return &Dispatcher{store: s, tracer: otel.Tracer(tracerName)}
}

// Call is a parsed request bound to its command, ready to run once.
type Call struct {
	d     *Dispatcher
	c     *command
	req   *Request
	start time.Time
}

// Name returns the command name.
func (c *Call) Name() string { return c.c.name }

// UsesStorage reports whether running the call performs a storage operation.
func (c *Call) UsesStorage() bool { return !c.c.local }

// Prepare parses line. When the line cannot be dispatched it returns a nil
// Call and the response to send; no storage is touched in that case.
func (d *Dispatcher) Prepare(line string) (*Call, Response) {
	start := time.Now()

	req, c, err := parse(line)
	if err != nil {
		var ue *UsageError
		if errors.As(err, &ue) {
			cmdTotal.WithLabelValues(ue.Command, outcomeMalformed).Inc()
			return nil, Response{Text: "Malformed request: " + ue.Error()}
		}
		cmdTotal.WithLabelValues(outcomeUnknown, outcomeUnknown).Inc()
		return nil, Response{Text: "Unknown command"}
	}
	return &Call{d: d, c: c, req: req, start: start}, Response{}
}

// Run performs the call's storage operation, if any, and returns the
// response. Storage failures are answered with the command's error phrase
// and logged through the logger attached to ctx (zerolog.Ctx).
func (c *Call) Run(ctx context.Context) Response {
	ctx, span := c.d.tracer.Start(ctx, "command "+c.c.name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("chat.command", c.c.name)),
	)
	defer span.End()

	resp, err := c.c.run(ctx, c.d.store, c.req)

	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zerolog.Ctx(ctx).Warn().Err(err).Str("command", c.c.name).Msg("command failed")
	}
	cmdTotal.WithLabelValues(c.c.name, outcome).Inc()
	cmdLat.WithLabelValues(c.c.name).Observe(time.Since(c.start).Seconds())
	return resp
}
