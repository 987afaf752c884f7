package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-tcp/internal/domain"
)

// TimeLayout is the text format of every timestamp the lane writes. It is
// fixed width so SQLite's text comparison orders values chronologically.
const TimeLayout = "2006-01-02 15:04:05.000000"

// renderTimeLayout is used for DATETIME values the driver hands back as
// time.Time; rows written with CURRENT_TIMESTAMP keep their second precision.
const renderTimeLayout = "2006-01-02 15:04:05.999999"

const defaultQueueCapacity = 1024

// nowArg is a statement argument the lane replaces with its own clock reading
// when the statement runs, so timestamps follow execution order rather than
// submission order.
type nowArg struct{}

// Now may be passed as a statement argument to bind the lane's execution
// timestamp (formatted with TimeLayout).
var Now = nowArg{}

type kind uint8

const (
	kindExec kind = iota
	kindQuery
)

func (k kind) String() string {
	if k == kindQuery {
		return "query"
	}
	return "exec"
}

// Result is the completion of one lane operation.
type Result struct {
	Rows         domain.Rows
	RowsAffected int64
	Err          error
}

// Future delivers exactly one Result. The channel is buffered, so the lane
// never blocks on a caller that stopped waiting.
type Future struct {
	op string
	ch <-chan Result
}

// Wait blocks until the operation completes or ctx is done. A cancelled wait
// does not cancel the operation: once admitted it runs to completion. The
// caller then gets an *Error wrapping ctx.Err().
func (f Future) Wait(ctx context.Context) Result {
	select {
	case r := <-f.ch:
		return r
	case <-ctx.Done():
		return Result{Err: &Error{Op: f.op, Err: ctx.Err()}}
	}
}

type job struct {
	ctx      context.Context
	op       string
	kind     kind
	stmt     string
	args     []any
	done     chan Result
	admitted time.Time
}

// Options tunes an Engine.
type Options struct {
	// QueueCapacity bounds operations admitted but not yet started. Submitters
	// block (honouring their context) while the queue is full.
	QueueCapacity int
	Logger        zerolog.Logger
}

// Engine serializes every statement against one *gorm.DB. All Execute and
// Query calls, from any goroutine, enter one FIFO queue and run one at a time
// on a dedicated worker goroutine. Nothing else touches the handle.
//
// Engine is safe for concurrent use.
type Engine struct {
	db  *gorm.DB
	log zerolog.Logger

	jobs   chan *job
	mu     sync.RWMutex // guards closed against concurrent sends
	closed bool
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	depth     atomic.Int64
	processed atomic.Uint64

	// lane-owned
	clock func() time.Time
	last  time.Time
	hook  func(op string) // test seam, runs on the lane before each statement
}

// New starts the lane worker over db. The Engine owns db from here on and
// closes it in Close.
func New(db *gorm.DB, opts Options) *Engine {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	e := &Engine{
		db:    db,
		log:   opts.Logger.With().Str("component", "storage").Logger(),
		jobs:  make(chan *job, capacity),
		done:  make(chan struct{}),
		clock: time.Now,
	}
	go e.run()
	return e
}

// Execute admits a mutating statement. Parameters are bound to the "?"
// placeholders in stmt; they are never spliced into the statement text.
func (e *Engine) Execute(ctx context.Context, op, stmt string, args ...any) Future {
	return e.submit(ctx, op, kindExec, stmt, args)
}

// Query admits a row-returning statement. Every column value is rendered as
// text and SQL NULL becomes domain.NullText.
func (e *Engine) Query(ctx context.Context, op, stmt string, args ...any) Future {
	return e.submit(ctx, op, kindQuery, stmt, args)
}

// QueueDepth reports operations admitted but not yet started.
func (e *Engine) QueueDepth() int64 { return e.depth.Load() }

// Processed reports operations the lane has completed.
func (e *Engine) Processed() uint64 { return e.processed.Load() }

func (e *Engine) submit(ctx context.Context, op string, k kind, stmt string, args []any) Future {
	ch := make(chan Result, 1)
	f := Future{op: op, ch: ch}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		ch <- Result{Err: &Error{Op: op, Err: ErrClosed}}
		return f
	}

	j := &job{ctx: ctx, op: op, kind: k, stmt: stmt, args: args, done: ch, admitted: time.Now()}
	select {
	case e.jobs <- j:
		e.depth.Add(1)
		queueDepth.Inc()
	case <-ctx.Done():
		ch <- Result{Err: &Error{Op: op, Err: ctx.Err()}}
	}
	return f
}

// Close stops admitting operations, waits for the queued ones to finish and
// closes the database. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.jobs)
		e.mu.Unlock()

		<-e.done

		sqlDB, err := e.db.DB()
		if err != nil {
			e.closeErr = err
			return
		}
		e.closeErr = sqlDB.Close()
	})
	return e.closeErr
}

func (e *Engine) run() {
	defer close(e.done)
	for j := range e.jobs {
		e.depth.Add(-1)
		queueDepth.Dec()
		storageWait.Observe(time.Since(j.admitted).Seconds())

		res := e.runJob(j)
		e.processed.Add(1)
		j.done <- res
	}
}

func (e *Engine) runJob(j *job) (res Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Err: fmt.Errorf("panic: %v", rec)}
		}
		if res.Err != nil {
			res.Err = &Error{Op: j.op, Err: res.Err}
			e.log.Debug().Err(res.Err).Str("op", j.op).Stringer("kind", j.kind).Msg("storage operation failed")
		}
		storageOps.WithLabelValues(j.op, outcome(res.Err)).Inc()
		storageLat.WithLabelValues(j.op).Observe(time.Since(start).Seconds())
	}()

	if e.hook != nil {
		e.hook(j.op)
	}

	// Admitted operations run to completion; only the trace survives.
	ctx := context.WithoutCancel(j.ctx)
	args := e.bindNow(j.args)

	switch j.kind {
	case kindQuery:
		res.Rows, res.Err = e.query(ctx, j.stmt, args)
	default:
		tx := e.db.WithContext(ctx).Exec(j.stmt, args...)
		res.RowsAffected, res.Err = tx.RowsAffected, tx.Error
	}
	return res
}

func (e *Engine) query(ctx context.Context, stmt string, args []any) (domain.Rows, error) {
	rows, err := e.db.WithContext(ctx).Raw(stmt, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := domain.Rows{}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(domain.Row, len(cols))
		for i, v := range vals {
			row[i] = renderValue(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// bindNow replaces every Now argument with a single lane timestamp.
func (e *Engine) bindNow(args []any) []any {
	var stamp string
	out := args
	for i, a := range args {
		if _, ok := a.(nowArg); !ok {
			continue
		}
		if stamp == "" {
			stamp = e.stamp()
			out = append([]any(nil), args...)
		}
		out[i] = stamp
	}
	return out
}

// stamp returns the lane clock, forced strictly past the previous stamp so
// two statements never share a timestamp.
func (e *Engine) stamp() string {
	t := e.clock().UTC().Truncate(time.Microsecond)
	if !t.After(e.last) {
		t = e.last.Add(time.Microsecond)
	}
	e.last = t
	return t.Format(TimeLayout)
}

// renderValue converts a driver value to its text form.
func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return domain.NullText
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format(renderTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}
