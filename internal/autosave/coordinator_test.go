package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/bookable/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0         = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	errBackend = errors.New("backend unavailable")
)

type saveRecorder struct {
	mu    sync.Mutex
	docs  []Document
	ctxs  []context.Context
	failN int // calls left to fail; negative fails every call
}

func (r *saveRecorder) save(ctx context.Context, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	r.ctxs = append(r.ctxs, ctx)
	if r.failN < 0 {
		return errBackend
	}
	if r.failN > 0 {
		r.failN--
		return errBackend
	}
	return nil
}

func (r *saveRecorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func syncRunner(f func()) { f() }

func draft(name string) Document {
	return Document{InternalName: name, Slug: "salon", ServiceTree: testutil.NewTestRoot()}
}

func newTestCoordinator(rec *saveRecorder, opts ...Option) (*Coordinator, *testutil.FakeClock) {
	clk := testutil.NewFakeClock(t0)
	cfg := Config{Debounce: 2 * time.Second, MaxRetries: 3, RetryBaseDelay: time.Second}
	opts = append([]Option{WithClock(clk), WithRunner(syncRunner)}, opts...)
	return New(rec.save, cfg, opts...), clk
}

func TestCoordinator_FirstObservationSeedsBaseline(t *testing.T) {
	rec := &saveRecorder{}
	c, clk := newTestCoordinator(rec)

	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v0")))

	st := c.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.False(t, st.IsDirty)
	assert.Zero(t, clk.PendingTimers())

	clk.Advance(time.Minute)
	assert.Zero(t, rec.calls())
}

func TestCoordinator_DebounceCollapsesRapidChanges(t *testing.T) {
	rec := &saveRecorder{}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))

	require.NoError(t, c.Observe(draft("v1")))
	clk.Advance(500 * time.Millisecond)
	require.NoError(t, c.Observe(draft("v2")))
	clk.Advance(500 * time.Millisecond)
	require.NoError(t, c.Observe(draft("v3")))

	assert.Equal(t, StatusDirty, c.State().Status)
	clk.Advance(1999 * time.Millisecond)
	assert.Zero(t, rec.calls(), "debounce restarts on each change")

	clk.Advance(time.Millisecond)
	require.Equal(t, 1, rec.calls())
	assert.Equal(t, "v3", rec.docs[0].InternalName)

	st := c.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.False(t, st.IsDirty)
	assert.Equal(t, t0.Add(3*time.Second), st.LastSaved)
}

func TestCoordinator_RevertToSavedContentIsClean(t *testing.T) {
	rec := &saveRecorder{}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))

	require.NoError(t, c.Observe(draft("v1")))
	require.NoError(t, c.Observe(draft("v0")))

	assert.Equal(t, StatusIdle, c.State().Status)
	assert.Zero(t, clk.PendingTimers())
}

func TestCoordinator_RetryBound(t *testing.T) {
	rec := &saveRecorder{failN: -1}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))

	clk.Advance(2 * time.Second)
	require.Equal(t, 1, rec.calls())

	for i, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		next, ok := clk.NextDeadline()
		require.True(t, ok, "retry %d should be scheduled", i+1)
		assert.Equal(t, clk.Now().Add(delay), next)
		assert.Equal(t, i+1, c.State().RetryCount)

		clk.Advance(delay)
		assert.Equal(t, i+2, rec.calls())
	}

	assert.Zero(t, clk.PendingTimers(), "no retry after the bound")
	clk.Advance(time.Hour)
	assert.Equal(t, 4, rec.calls())

	st := c.State()
	assert.Equal(t, StatusError, st.Status)
	assert.ErrorIs(t, st.Err, errBackend)
	assert.Equal(t, 3, st.RetryCount)
	assert.True(t, st.IsDirty)
}

func TestCoordinator_RetrySucceeds(t *testing.T) {
	rec := &saveRecorder{failN: 1}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))

	clk.Advance(2 * time.Second)
	assert.Equal(t, StatusError, c.State().Status)

	clk.Advance(time.Second)
	st := c.State()
	assert.Equal(t, 2, rec.calls())
	assert.Equal(t, StatusIdle, st.Status)
	assert.NoError(t, st.Err)
	assert.Zero(t, st.RetryCount)
}

func TestCoordinator_ChangeCancelsPendingRetry(t *testing.T) {
	rec := &saveRecorder{failN: 1}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))
	clk.Advance(2 * time.Second)
	require.Equal(t, 1, c.State().RetryCount)

	require.NoError(t, c.Observe(draft("v2")))

	assert.Zero(t, c.State().RetryCount)
	assert.Equal(t, 1, clk.PendingTimers(), "only the new debounce remains")
	next, _ := clk.NextDeadline()
	assert.Equal(t, clk.Now().Add(2*time.Second), next)

	clk.Advance(2 * time.Second)
	assert.Equal(t, 2, rec.calls())
	assert.Equal(t, "v2", rec.docs[1].InternalName)
}

func TestCoordinator_SaveNowNeverRetries(t *testing.T) {
	rec := &saveRecorder{failN: -1}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))

	err := c.SaveNow(context.Background())

	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, rec.calls())
	assert.Zero(t, clk.PendingTimers(), "debounce cancelled and no retry scheduled")
	assert.Equal(t, StatusError, c.State().Status)
}

func TestCoordinator_SaveNowUnchangedContent(t *testing.T) {
	rec := &saveRecorder{}
	c, _ := newTestCoordinator(rec)

	assert.ErrorIs(t, c.SaveNow(context.Background()), ErrNoDocument)
	assert.Zero(t, rec.calls())

	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.SaveNow(context.Background()))
	assert.Equal(t, 1, rec.calls())
	assert.Equal(t, StatusIdle, c.State().Status)
}

func TestCoordinator_SupersededSaveIsIgnored(t *testing.T) {
	var jobs []func()
	queue := func(f func()) { jobs = append(jobs, f) }
	var mu sync.Mutex
	var cancelled []bool
	save := func(ctx context.Context, doc Document) error {
		mu.Lock()
		cancelled = append(cancelled, ctx.Err() != nil)
		mu.Unlock()
		if doc.InternalName == "v1" {
			return errBackend
		}
		return nil
	}
	clk := testutil.NewFakeClock(t0)
	c := New(save, Config{Debounce: 2 * time.Second, MaxRetries: 3, RetryBaseDelay: time.Second},
		WithClock(clk), WithRunner(queue))

	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))
	clk.Advance(2 * time.Second)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusSaving, c.State().Status)

	require.NoError(t, c.Observe(draft("v2")))
	clk.Advance(2 * time.Second)
	require.Len(t, jobs, 2)

	jobs[1]()
	assert.Equal(t, StatusIdle, c.State().Status)

	jobs[0]()
	st := c.State()
	assert.Equal(t, StatusIdle, st.Status, "stale failure must not overwrite newer state")
	assert.NoError(t, st.Err)
	assert.Zero(t, clk.PendingTimers(), "stale failure must not schedule a retry")
	assert.Equal(t, []bool{false, true}, cancelled, "the older attempt's context is cancelled")
}

func TestCoordinator_SaveGate(t *testing.T) {
	rec := &saveRecorder{}
	allow := false
	c, clk := newTestCoordinator(rec, WithGate(func(Document) bool { return allow }))
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))

	clk.Advance(2 * time.Second)
	assert.Zero(t, rec.calls())
	st := c.State()
	assert.Equal(t, StatusDirty, st.Status)
	assert.ErrorIs(t, st.Err, ErrSaveBlocked)
	assert.ErrorIs(t, c.SaveNow(context.Background()), ErrSaveBlocked)

	allow = true
	require.NoError(t, c.SaveNow(context.Background()))
	assert.Equal(t, 1, rec.calls())
}

func TestCoordinator_MarkCleanAndDirty(t *testing.T) {
	rec := &saveRecorder{}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))

	c.MarkClean()
	assert.Equal(t, StatusIdle, c.State().Status)
	assert.Zero(t, clk.PendingTimers())

	c.MarkDirty()
	assert.Equal(t, StatusDirty, c.State().Status)
	clk.Advance(2 * time.Second)
	require.Equal(t, 1, rec.calls())
	assert.Equal(t, "v1", rec.docs[0].InternalName)
}

func TestCoordinator_ClearError(t *testing.T) {
	rec := &saveRecorder{failN: -1}
	c, _ := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))
	require.Error(t, c.SaveNow(context.Background()))

	c.ClearError()

	st := c.State()
	assert.NoError(t, st.Err)
	assert.Equal(t, StatusDirty, st.Status)
}

func TestCoordinator_Subscribe(t *testing.T) {
	rec := &saveRecorder{}
	c, clk := newTestCoordinator(rec)
	var seen []Status
	unsub := c.Subscribe(func(s State) { seen = append(seen, s.Status) })

	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))
	clk.Advance(2 * time.Second)
	unsub()
	require.NoError(t, c.Observe(draft("v2")))

	assert.Equal(t, []Status{StatusDirty, StatusSaving, StatusIdle}, seen)
}

func TestCoordinator_Close(t *testing.T) {
	rec := &saveRecorder{}
	c, clk := newTestCoordinator(rec)
	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))

	c.Close()

	assert.Zero(t, clk.PendingTimers())
	assert.ErrorIs(t, c.Observe(draft("v2")), ErrClosed)
	assert.ErrorIs(t, c.SaveNow(context.Background()), ErrClosed)
	clk.Advance(time.Minute)
	assert.Zero(t, rec.calls())
}

func TestCoordinator_BackgroundGoroutine(t *testing.T) {
	done := make(chan Document, 1)
	save := func(_ context.Context, doc Document) error {
		done <- doc
		return nil
	}
	clk := testutil.NewFakeClock(t0)
	c := New(save, Config{Debounce: time.Second}, WithClock(clk))

	require.NoError(t, c.Observe(draft("v0")))
	require.NoError(t, c.Observe(draft("v1")))
	clk.Advance(time.Second)

	select {
	case doc := <-done:
		assert.Equal(t, "v1", doc.InternalName)
	case <-time.After(2 * time.Second):
		t.Fatal("save was not called")
	}
	assert.Eventually(t, func() bool { return c.State().Status == StatusIdle }, time.Second, 5*time.Millisecond)
}

func TestHash_StableAndSensitive(t *testing.T) {
	a, err := Hash(draft("v1"))
	require.NoError(t, err)
	b, err := Hash(draft("v1"))
	require.NoError(t, err)
	c, err := Hash(draft("v2"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
