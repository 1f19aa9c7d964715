package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- test helpers ---

type fetchResult struct {
	updates []Update
	ok      bool
}

type fetchCall struct {
	cursor  *int64
	limit   int
	timeout int
}

type fakeTransport struct {
	mu      sync.Mutex
	results []fetchResult
	calls   []fetchCall
	replies []Reply
	sendOK  bool
}

func (f *fakeTransport) FetchUpdates(ctx context.Context, cursor *int64, limit, timeout int) ([]Update, bool) {
	f.mu.Lock()
	call := fetchCall{limit: limit, timeout: timeout}
	if cursor != nil {
		c := *cursor
		call.cursor = &c
	}
	f.calls = append(f.calls, call)

	if len(f.results) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, false
	}
	next := f.results[0]
	f.results = f.results[1:]
	f.mu.Unlock()
	return next.updates, next.ok
}

func (f *fakeTransport) SendReply(_ context.Context, r Reply) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
	return f.sendOK
}

func (f *fakeTransport) fetchCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func batch(ids ...int64) fetchResult {
	updates := make([]Update, len(ids))
	for i, id := range ids {
		updates[i] = update(id)
	}
	return fetchResult{updates: updates, ok: true}
}

func update(id int64) Update {
	return Update{
		UpdateID: &id,
		Message: &Message{
			MessageID: id * 10,
			From:      &User{ID: 100},
			Text:      "hi",
		},
	}
}

type countingHandler struct {
	calls atomic.Int32
}

func (h *countingHandler) OnMessage(context.Context, Update) { h.calls.Add(1) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPoller(ft *fakeTransport, h Handler, opts ...Option) *Poller {
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	return NewPoller(ft, h, opts...)
}

// --- tests ---

func TestPollAdvancesCursorToBatchMax(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(5, 9, 7)}}
	h := &countingHandler{}
	p := newTestPoller(ft, h)

	n, ok := p.Poll(context.Background())
	if !ok || n != 3 {
		t.Fatalf("Poll = (%d, %v), want (3, true)", n, ok)
	}

	cursor, set := p.Cursor()
	if !set || cursor != 9 {
		t.Errorf("cursor = (%d, %v), want (9, true)", cursor, set)
	}
}

func TestPollCursorNeverDecreases(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(9), batch(3, 4), batch(12)}}
	p := newTestPoller(ft, &countingHandler{})

	want := []int64{9, 9, 12}
	for i, w := range want {
		p.Poll(context.Background())
		cursor, _ := p.Cursor()
		if cursor != w {
			t.Errorf("after batch %d cursor = %d, want %d", i, cursor, w)
		}
	}
}

func TestPollEmptyBatch(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(41), {updates: []Update{}, ok: true}}}
	h := &countingHandler{}
	p := newTestPoller(ft, h)

	p.Poll(context.Background())
	n, ok := p.Poll(context.Background())
	if !ok || n != 0 {
		t.Fatalf("Poll = (%d, %v), want (0, true)", n, ok)
	}

	if cursor, _ := p.Cursor(); cursor != 41 {
		t.Errorf("cursor = %d, want 41", cursor)
	}
	if got := h.calls.Load(); got != 1 {
		t.Errorf("handler calls = %d, want 1", got)
	}
}

func TestPollEmptyFirstBatchLeavesCursorUnset(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{{updates: nil, ok: true}}}
	h := &countingHandler{}
	p := newTestPoller(ft, h)

	p.Poll(context.Background())

	if _, set := p.Cursor(); set {
		t.Error("cursor set after empty batch")
	}
	if got := h.calls.Load(); got != 0 {
		t.Errorf("handler calls = %d, want 0", got)
	}
}

func TestPollNoData(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(7), {ok: false}}}
	h := &countingHandler{}
	p := newTestPoller(ft, h)

	p.Poll(context.Background())
	n, ok := p.Poll(context.Background())
	if ok || n != 0 {
		t.Fatalf("Poll = (%d, %v), want (0, false)", n, ok)
	}
	if cursor, _ := p.Cursor(); cursor != 7 {
		t.Errorf("cursor = %d, want 7", cursor)
	}
	if got := h.calls.Load(); got != 1 {
		t.Errorf("handler calls = %d, want 1", got)
	}
}

func TestPollPassesCursorToTransport(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(40, 41), batch(42)}}
	p := newTestPoller(ft, &countingHandler{}, WithLimit(25), WithTimeout(30))

	p.Poll(context.Background())
	p.Poll(context.Background())

	calls := ft.fetchCalls()
	if len(calls) != 2 {
		t.Fatalf("fetch calls = %d, want 2", len(calls))
	}
	if calls[0].cursor != nil {
		t.Errorf("first cursor = %d, want unset", *calls[0].cursor)
	}
	if calls[1].cursor == nil || *calls[1].cursor != 41 {
		t.Errorf("second cursor = %v, want 41", calls[1].cursor)
	}
	if calls[1].limit != 25 || calls[1].timeout != 30 {
		t.Errorf("limit/timeout = %d/%d, want 25/30", calls[1].limit, calls[1].timeout)
	}
}

func TestPollDefaults(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(1)}}
	p := newTestPoller(ft, &countingHandler{})

	p.Poll(context.Background())

	call := ft.fetchCalls()[0]
	if call.limit != DefaultLimit || call.timeout != DefaultTimeout {
		t.Errorf("limit/timeout = %d/%d, want %d/%d", call.limit, call.timeout, DefaultLimit, DefaultTimeout)
	}
}

func TestPollDispatchesConcurrentlyAndWaits(t *testing.T) {
	const n = 5
	ft := &fakeTransport{results: []fetchResult{batch(1, 2, 3, 4, 5)}}

	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	var finished atomic.Int32
	h := HandlerFunc(func(_ context.Context, u Update) {
		started.Done()
		// Every handler blocks until all of them are running, which only
		// happens when they are dispatched concurrently.
		select {
		case <-allStarted:
		case <-time.After(2 * time.Second):
			t.Errorf("update %d: handlers not running concurrently", u.ID())
		}
		time.Sleep(time.Duration(u.ID()) * 5 * time.Millisecond)
		finished.Add(1)
	})
	p := newTestPoller(ft, h)

	p.Poll(context.Background())

	if got := finished.Load(); got != n {
		t.Errorf("finished handlers at advance = %d, want %d", got, n)
	}
	if cursor, _ := p.Cursor(); cursor != 5 {
		t.Errorf("cursor = %d, want 5", cursor)
	}
}

func TestPollAdvancesAfterSlowHandler(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(1, 2)}}

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	h := HandlerFunc(func(_ context.Context, u Update) {
		if u.ID() == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		record("handled")
	})
	p := newTestPoller(ft, h)

	p.Poll(context.Background())
	record("advanced")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 || events[2] != "advanced" {
		t.Errorf("events = %v, want advance after both handlers", events)
	}
}

func TestPollMalformedUpdateStillDispatched(t *testing.T) {
	malformed := ParseUpdate([]byte(`"not an object"`))
	good := update(3)
	ft := &fakeTransport{results: []fetchResult{{updates: []Update{malformed, good}, ok: true}}}

	var mu sync.Mutex
	var seen []int64
	h := HandlerFunc(func(_ context.Context, u Update) {
		mu.Lock()
		seen = append(seen, u.ID())
		mu.Unlock()
	})
	p := newTestPoller(ft, h)

	p.Poll(context.Background())

	if len(seen) != 2 {
		t.Fatalf("dispatched %d updates, want 2", len(seen))
	}
	if cursor, _ := p.Cursor(); cursor != 3 {
		t.Errorf("cursor = %d, want 3", cursor)
	}
}

func TestPollBatchWithoutIDsLeavesCursorUnset(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{{updates: []Update{{}, {}}, ok: true}}}
	h := &countingHandler{}
	p := newTestPoller(ft, h)

	p.Poll(context.Background())

	if _, set := p.Cursor(); set {
		t.Error("cursor set from updates without update_id")
	}
	if got := h.calls.Load(); got != 2 {
		t.Errorf("handler calls = %d, want 2", got)
	}
}

func TestHandlerTimeout(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(1)}}

	var hasDeadline atomic.Bool
	h := HandlerFunc(func(ctx context.Context, _ Update) {
		_, ok := ctx.Deadline()
		hasDeadline.Store(ok)
		<-ctx.Done()
	})
	p := newTestPoller(ft, h, WithHandlerTimeout(20*time.Millisecond))

	done := make(chan struct{})
	go func() {
		p.Poll(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not return after handler timeout")
	}
	if !hasDeadline.Load() {
		t.Error("handler context has no deadline")
	}
}

func TestHandlerUnboundedByDefault(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(1)}}

	var hasDeadline atomic.Bool
	h := HandlerFunc(func(ctx context.Context, _ Update) {
		_, ok := ctx.Deadline()
		hasDeadline.Store(ok)
	})
	p := newTestPoller(ft, h)

	p.Poll(context.Background())

	if hasDeadline.Load() {
		t.Error("handler context has a deadline without WithHandlerTimeout")
	}
}

func TestRetryDelayAfterNoData(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{{ok: false}}}
	p := newTestPoller(ft, &countingHandler{}, WithRetryDelay(50*time.Millisecond))

	start := time.Now()
	p.Poll(context.Background())

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Poll returned after %s, want at least 50ms", elapsed)
	}
}

func TestStartLoopsUntilCancelled(t *testing.T) {
	ft := &fakeTransport{results: []fetchResult{batch(1), {ok: false}, batch(2, 3)}}
	h := &countingHandler{}
	p := newTestPoller(ft, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(ft.fetchCalls()) < 4 {
		select {
		case <-deadline:
			t.Fatal("poller did not reach the fourth retrieval")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}

	if got := h.calls.Load(); got != 3 {
		t.Errorf("handler calls = %d, want 3", got)
	}
	calls := ft.fetchCalls()
	if c := calls[3].cursor; c == nil || *c != 3 {
		t.Errorf("fourth cursor = %v, want 3", c)
	}
}

func TestSendReplyDelegates(t *testing.T) {
	ft := &fakeTransport{sendOK: true}
	p := newTestPoller(ft, &countingHandler{})

	r := Reply{ChatID: 100, MessageID: 7, Text: "ok", Threaded: true}
	if !p.SendReply(context.Background(), r) {
		t.Fatal("SendReply = false, want true")
	}
	if len(ft.replies) != 1 || ft.replies[0] != r {
		t.Errorf("replies = %+v, want [%+v]", ft.replies, r)
	}
}
