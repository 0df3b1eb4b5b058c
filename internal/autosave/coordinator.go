// Package autosave persists an edited document in the background: changes
// are debounced, failed background saves are retried with exponential
// backoff, and a manual save is available that never retries.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexanderramin/bookable/internal/clock"
	"github.com/alexanderramin/bookable/internal/events"
)

var (
	ErrNoDocument  = errors.New("autosave: no document observed yet")
	ErrClosed      = errors.New("autosave: coordinator closed")
	ErrSaveBlocked = errors.New("autosave: save blocked for this document")
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusDirty  Status = "dirty"
	StatusSaving Status = "saving"
	StatusError  Status = "error"
)

// SaveFunc persists a document. It must return an error on any failure and
// should honour ctx cancellation.
type SaveFunc func(ctx context.Context, doc Document) error

// Gate decides whether a document may be saved at all. It runs with the
// coordinator's lock held and must not call back into it.
type Gate func(doc Document) bool

type Config struct {
	Debounce       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultConfig returns a 2s debounce with three retries starting at 1s.
func DefaultConfig() Config {
	return Config{
		Debounce:       2 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// State is a snapshot of the coordinator.
type State struct {
	Status     Status
	IsDirty    bool
	LastSaved  time.Time
	Err        error
	RetryCount int
}

type Option func(*Coordinator)

func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clk = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// WithGate installs a save gate consulted before every save.
func WithGate(g Gate) Option {
	return func(co *Coordinator) { co.gate = g }
}

// WithRunner overrides how background saves are started. The default runs
// each save on its own goroutine.
func WithRunner(run func(func())) Option {
	return func(co *Coordinator) { co.run = run }
}

type Coordinator struct {
	save   SaveFunc
	cfg    Config
	clk    clock.Clock
	logger *slog.Logger
	gate   Gate
	run    func(func())

	mu         sync.Mutex
	doc        Document
	observed   bool
	hash       string
	savedHash  string
	status     Status
	err        error
	retryCount int
	lastSaved  time.Time
	closed     bool

	debounce      clock.Timer
	debounceToken uint64
	retry         clock.Timer
	retryToken    uint64

	gen    uint64
	cancel context.CancelFunc

	bus events.Bus[State]
}

// New creates a coordinator. Zero fields in cfg take their DefaultConfig
// value; a negative MaxRetries disables retries.
func New(save SaveFunc, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Coordinator{
		save:   save,
		cfg:    cfg,
		clk:    clock.Real(),
		logger: slog.New(slog.DiscardHandler),
		run:    func(f func()) { go f() },
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe records the current document. The first call only seeds the
// saved baseline. Later calls with changed content mark the coordinator
// dirty, restart the debounce timer and cancel any pending retry.
func (c *Coordinator) Observe(doc Document) error {
	h, err := Hash(doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prev := c.hash
	c.doc = doc
	c.hash = h

	if !c.observed {
		c.observed = true
		c.savedHash = h
		c.mu.Unlock()
		c.logger.Debug("autosave baseline seeded", "hash", short(h))
		return nil
	}
	if h == prev {
		c.mu.Unlock()
		return nil
	}

	c.stopRetryLocked()
	c.retryCount = 0
	if h == c.savedHash {
		c.stopDebounceLocked()
		c.err = nil
		if c.status != StatusSaving {
			c.status = StatusIdle
		}
	} else {
		if c.status != StatusSaving {
			c.status = StatusDirty
		}
		c.scheduleDebounceLocked()
	}
	st := c.stateLocked()
	c.mu.Unlock()

	c.bus.Publish(st)
	return nil
}

// SaveNow cancels pending timers and saves the current document
// unconditionally. Failures are returned and never retried.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.observed {
		c.mu.Unlock()
		return ErrNoDocument
	}
	c.stopDebounceLocked()
	c.stopRetryLocked()
	c.retryCount = 0

	doc, hash := c.doc, c.hash
	if c.gate != nil && !c.gate(doc) {
		c.err = ErrSaveBlocked
		st := c.stateLocked()
		c.mu.Unlock()
		c.bus.Publish(st)
		return ErrSaveBlocked
	}
	saveCtx, gen := c.beginLocked(ctx)
	st := c.stateLocked()
	c.mu.Unlock()
	c.bus.Publish(st)

	err := c.save(saveCtx, doc)
	c.finish(gen, hash, err, false)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// ClearError drops the recorded error. A pending retry stays scheduled.
func (c *Coordinator) ClearError() {
	c.mu.Lock()
	c.err = nil
	if c.status == StatusError {
		c.status = c.restingStatusLocked()
	}
	st := c.stateLocked()
	c.mu.Unlock()
	c.bus.Publish(st)
}

// MarkClean treats the current document as saved, for callers that
// persisted or replaced it outside the coordinator.
func (c *Coordinator) MarkClean() {
	c.mu.Lock()
	c.stopDebounceLocked()
	c.stopRetryLocked()
	c.savedHash = c.hash
	c.retryCount = 0
	c.err = nil
	if c.status != StatusSaving {
		c.status = StatusIdle
	}
	st := c.stateLocked()
	c.mu.Unlock()
	c.bus.Publish(st)
}

// MarkDirty forces the current document to be saved on the next debounce.
func (c *Coordinator) MarkDirty() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.savedHash = ""
	if c.status != StatusSaving {
		c.status = StatusDirty
	}
	if c.observed {
		c.scheduleDebounceLocked()
	}
	st := c.stateLocked()
	c.mu.Unlock()
	c.bus.Publish(st)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Subscribe registers fn for every state change.
func (c *Coordinator) Subscribe(fn func(State)) (unsubscribe func()) {
	return c.bus.Subscribe(fn)
}

// Close stops all timers and cancels any in-flight save. Results arriving
// after Close are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopDebounceLocked()
	c.stopRetryLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

func (c *Coordinator) scheduleDebounceLocked() {
	c.stopDebounceLocked()
	c.debounceToken++
	token := c.debounceToken
	c.debounce = c.clk.AfterFunc(c.cfg.Debounce, func() { c.onDebounce(token) })
}

func (c *Coordinator) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceToken++
}

func (c *Coordinator) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.retryToken++
}

func (c *Coordinator) onDebounce(token uint64) {
	c.mu.Lock()
	if c.closed || token != c.debounceToken {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	c.startBackgroundLocked("debounce")
}

func (c *Coordinator) onRetry(token uint64) {
	c.mu.Lock()
	if c.closed || token != c.retryToken {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.startBackgroundLocked("retry")
}

// startBackgroundLocked is entered with mu held and releases it.
func (c *Coordinator) startBackgroundLocked(trigger string) {
	if c.hash == c.savedHash {
		if c.status != StatusSaving {
			c.status = StatusIdle
		}
		st := c.stateLocked()
		c.mu.Unlock()
		c.bus.Publish(st)
		return
	}

	doc, hash := c.doc, c.hash
	if c.gate != nil && !c.gate(doc) {
		c.err = ErrSaveBlocked
		c.status = StatusDirty
		st := c.stateLocked()
		c.mu.Unlock()
		c.logger.Info("autosave skipped by save gate", "trigger", trigger)
		c.bus.Publish(st)
		return
	}

	ctx, gen := c.beginLocked(context.Background())
	st := c.stateLocked()
	c.mu.Unlock()

	c.logger.Debug("autosave started", "trigger", trigger, "generation", gen, "hash", short(hash))
	c.bus.Publish(st)
	c.run(func() {
		err := c.save(ctx, doc)
		c.finish(gen, hash, err, true)
	})
}

// beginLocked supersedes any in-flight save and returns the context and
// generation for a new attempt.
func (c *Coordinator) beginLocked(parent context.Context) (context.Context, uint64) {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.status = StatusSaving
	return ctx, c.gen
}

func (c *Coordinator) finish(gen uint64, hash string, saveErr error, background bool) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("autosave result ignored", "generation", gen, "superseded", true)
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if saveErr == nil {
		c.savedHash = hash
		c.err = nil
		c.retryCount = 0
		c.lastSaved = c.clk.Now()
		c.status = c.restingStatusLocked()
		st := c.stateLocked()
		c.mu.Unlock()
		c.logger.Debug("autosave succeeded", "generation", gen)
		c.bus.Publish(st)
		return
	}

	c.err = saveErr
	c.status = StatusError
	retrying := false
	if background && c.retryCount < c.cfg.MaxRetries {
		c.retryCount++
		delay := c.cfg.RetryBaseDelay << (c.retryCount - 1)
		c.stopRetryLocked()
		token := c.retryToken
		c.retry = c.clk.AfterFunc(delay, func() { c.onRetry(token) })
		retrying = true
	}
	attempt := c.retryCount
	st := c.stateLocked()
	c.mu.Unlock()

	if retrying {
		c.logger.Warn("autosave failed, retrying", "error", saveErr, "retry", attempt, "max_retries", c.cfg.MaxRetries)
	} else {
		c.logger.Error("autosave failed", "error", saveErr, "background", background)
	}
	c.bus.Publish(st)
}

func (c *Coordinator) restingStatusLocked() Status {
	if c.observed && c.hash != c.savedHash {
		return StatusDirty
	}
	return StatusIdle
}

func (c *Coordinator) stateLocked() State {
	return State{
		Status:     c.status,
		IsDirty:    c.observed && c.hash != c.savedHash,
		LastSaved:  c.lastSaved,
		Err:        c.err,
		RetryCount: c.retryCount,
	}
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
