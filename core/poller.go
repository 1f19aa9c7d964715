package core

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit   = 10
	DefaultTimeout = 0
)

var _ Receiver = (*Poller)(nil)

// Poller drives the retrieve, dispatch, advance cycle. The cursor is only
// touched by the goroutine running Start or Poll.
type Poller struct {
	transport Transport
	handler   Handler
	logger    *slog.Logger

	limit          int
	timeout        int
	handlerTimeout time.Duration
	retryDelay     time.Duration

	cursor *int64
}

// Option configures a Poller.
type Option func(*Poller)

// WithLimit sets the maximum number of updates per retrieval.
func WithLimit(n int) Option {
	return func(p *Poller) { p.limit = n }
}

// WithTimeout sets the long-poll timeout in seconds.
func WithTimeout(seconds int) Option {
	return func(p *Poller) { p.timeout = seconds }
}

// WithHandlerTimeout bounds the context handed to each handler. Zero leaves
// handlers unbounded. The poller still waits for every handler to return.
func WithHandlerTimeout(d time.Duration) Option {
	return func(p *Poller) { p.handlerTimeout = d }
}

// WithRetryDelay pauses after a retrieval that produced no data.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Poller) { p.retryDelay = d }
}

// WithLogger sets the logger used by the poller.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// NewPoller creates a Poller that feeds every update to handler.
func NewPoller(transport Transport, handler Handler, opts ...Option) *Poller {
	p := &Poller{
		transport: transport,
		handler:   handler,
		logger:    slog.Default(),
		limit:     DefaultLimit,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start polls until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("poller started", "limit", p.limit, "timeout", p.timeout)
	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopped")
			return nil
		}
		p.Poll(ctx)
	}
}

// Poll runs a single iteration and returns the batch size. ok is false when
// the transport had no data, in which case the cursor is left alone.
func (p *Poller) Poll(ctx context.Context) (n int, ok bool) {
	updates, ok := p.transport.FetchUpdates(ctx, p.cursor, p.limit, p.timeout)
	if !ok {
		p.wait(ctx)
		return 0, false
	}
	if len(updates) == 0 {
		return 0, true
	}

	logger := p.logger.With("batch_id", uuid.NewString())
	logger.Debug("dispatching batch", "size", len(updates))

	ids := p.dispatch(ctx, updates)
	p.advance(ids)

	if cursor, set := p.Cursor(); set {
		logger.Debug("batch done", "cursor", cursor)
	}
	return len(updates), true
}

// dispatch runs the handler and the id extraction for every update and
// returns once all of them have finished.
func (p *Poller) dispatch(ctx context.Context, updates []Update) []int64 {
	ids := make([]int64, len(updates))

	var wg sync.WaitGroup
	for i, u := range updates {
		i, u := i, u
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.handle(ctx, u)
		}()
		go func() {
			defer wg.Done()
			ids[i] = u.ID()
		}()
	}
	wg.Wait()

	return ids
}

func (p *Poller) handle(ctx context.Context, u Update) {
	if p.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.handlerTimeout)
		defer cancel()
	}
	p.handler.OnMessage(ctx, u)
}

// advance moves the cursor to the highest id of the batch. Updates without
// an id never move it, and it never goes backwards.
func (p *Poller) advance(ids []int64) {
	next := slices.Max(ids)
	if next < 0 {
		return
	}
	if p.cursor != nil && *p.cursor >= next {
		return
	}
	p.cursor = &next
}

func (p *Poller) wait(ctx context.Context) {
	if p.retryDelay <= 0 {
		return
	}
	select {
	case <-time.After(p.retryDelay):
	case <-ctx.Done():
	}
}

// Cursor returns the last update_id seen. set is false before the first
// non-empty batch.
func (p *Poller) Cursor() (cursor int64, set bool) {
	if p.cursor == nil {
		return 0, false
	}
	return *p.cursor, true
}

// SendReply forwards r to the transport.
func (p *Poller) SendReply(ctx context.Context, r Reply) bool {
	return p.transport.SendReply(ctx, r)
}
