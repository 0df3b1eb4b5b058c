// Package optimistic applies local edits to a normalized document ahead of
// server confirmation and reconciles them with fresh server snapshots.
package optimistic

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alexanderramin/bookable/internal/clock"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/events"
	"github.com/alexanderramin/bookable/internal/normalize"
)

var (
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrDuplicateOperation = errors.New("operation id already pending")
	ErrIntegrity          = errors.New("merged document failed integrity check")
)

// Mutation edits a private copy of the document in place. Returning an error
// discards the copy.
type Mutation func(doc *domain.NormalizedDocument) error

// MergeFunc reconciles a base, a local and a server document. Inputs are
// private copies and may be modified.
type MergeFunc func(base, local, server *domain.NormalizedDocument) (*domain.NormalizedDocument, error)

// Operation identifies a local edit. An empty ID is generated.
type Operation struct {
	ID   string
	Kind string
}

// PendingOperation is an applied but unconfirmed edit and the document as it
// was just before it.
type PendingOperation struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Prior     *domain.NormalizedDocument

	mutate Mutation
}

type EventKind string

const (
	EventApplied    EventKind = "applied"
	EventRolledBack EventKind = "rolled_back"
	EventConfirmed  EventKind = "confirmed"
	EventSynced     EventKind = "synced"
)

type Event struct {
	Kind    EventKind
	OpID    string
	Pending int
	Merged  bool
}

type Option func(*Manager)

func WithIDs(g domain.IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMergeFunc replaces the default three-way merge.
func WithMergeFunc(fn MergeFunc) Option {
	return func(m *Manager) { m.merge = fn }
}

// Manager owns the local document. Documents it hands out or stores are
// never modified afterwards; every change works on a clone.
type Manager struct {
	ids    domain.IDGenerator
	clk    clock.Clock
	logger *slog.Logger
	merge  MergeFunc

	mu      sync.Mutex
	doc     *domain.NormalizedDocument
	base    *domain.NormalizedDocument
	pending []PendingOperation

	bus events.Bus[Event]
}

// NewManager starts from initial, which also becomes the merge base.
func NewManager(initial *domain.NormalizedDocument, opts ...Option) *Manager {
	m := &Manager{
		ids:    domain.UUIDGenerator{},
		clk:    clock.Real(),
		logger: slog.New(slog.DiscardHandler),
		merge:  ThreeWayMerge,
		doc:    normalize.Clone(initial),
		base:   normalize.Clone(initial),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Document returns a copy of the current local document.
func (m *Manager) Document() *domain.NormalizedDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return normalize.Clone(m.doc)
}

// Base returns a copy of the last applied server snapshot.
func (m *Manager) Base() *domain.NormalizedDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return normalize.Clone(m.base)
}

// Pending returns the unconfirmed operations, oldest first.
func (m *Manager) Pending() []PendingOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingOperation, len(m.pending))
	copy(out, m.pending)
	return out
}

func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.bus.Subscribe(fn)
}

// Apply runs mutate against a copy of the document and, if it succeeds,
// makes the copy current and records the prior state. It returns the
// operation id.
func (m *Manager) Apply(op Operation, mutate Mutation) (string, error) {
	m.mu.Lock()
	id := op.ID
	if id == "" {
		id = m.ids.NewID()
	}
	for _, p := range m.pending {
		if p.ID == id {
			m.mu.Unlock()
			return "", fmt.Errorf("%s: %w", id, ErrDuplicateOperation)
		}
	}

	next := normalize.Clone(m.doc)
	if err := mutate(next); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("%s %s: %w", op.Kind, id, err)
	}
	next.IsDirty = true

	m.pending = append(m.pending, PendingOperation{
		ID:        id,
		Kind:      op.Kind,
		Timestamp: m.clk.Now(),
		Prior:     m.doc,
		mutate:    mutate,
	})
	m.doc = next
	ev := Event{Kind: EventApplied, OpID: id, Pending: len(m.pending)}
	m.mu.Unlock()

	m.logger.Debug("optimistic update applied", "op", id, "kind", op.Kind)
	m.bus.Publish(ev)
	return id, nil
}

// Rollback restores the state from before opID and replays every later
// pending operation on top of it. Later operations that no longer apply are
// dropped.
func (m *Manager) Rollback(opID string) error {
	m.mu.Lock()
	idx := m.indexLocked(opID)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", opID, ErrUnknownOperation)
	}

	cur := m.pending[idx].Prior
	kept := append([]PendingOperation(nil), m.pending[:idx]...)
	var dropped []string
	for _, p := range m.pending[idx+1:] {
		next := normalize.Clone(cur)
		if err := p.mutate(next); err != nil {
			dropped = append(dropped, p.ID)
			continue
		}
		next.IsDirty = true
		p.Prior = cur
		kept = append(kept, p)
		cur = next
	}
	m.doc = cur
	m.pending = kept
	ev := Event{Kind: EventRolledBack, OpID: opID, Pending: len(kept)}
	m.mu.Unlock()

	if len(dropped) > 0 {
		m.logger.Warn("operations dropped during rollback replay", "op", opID, "dropped", strings.Join(dropped, ","))
	}
	m.bus.Publish(ev)
	return nil
}

// Confirm forgets a pending operation whose effect the server has accepted.
// The local document is unchanged.
func (m *Manager) Confirm(opID string) error {
	m.mu.Lock()
	idx := m.indexLocked(opID)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", opID, ErrUnknownOperation)
	}
	m.pending = append(m.pending[:idx:idx], m.pending[idx+1:]...)
	ev := Event{Kind: EventConfirmed, OpID: opID, Pending: len(m.pending)}
	m.mu.Unlock()

	m.bus.Publish(ev)
	return nil
}

// SyncWithServer folds a server snapshot into the local document. Without
// pending operations the snapshot replaces the document. Otherwise the merge
// func reconciles base, local and server, the result must pass the integrity
// check, and all pending operations are cleared. The server snapshot becomes
// the new base either way.
func (m *Manager) SyncWithServer(server *domain.NormalizedDocument) (*domain.NormalizedDocument, error) {
	if server == nil {
		return nil, errors.New("server snapshot is nil")
	}

	m.mu.Lock()
	if len(m.pending) == 0 {
		m.doc = normalize.Clone(server)
		m.doc.IsDirty = false
		m.base = normalize.Clone(server)
		out := normalize.Clone(m.doc)
		m.mu.Unlock()

		m.bus.Publish(Event{Kind: EventSynced})
		return out, nil
	}

	merged, err := m.merge(normalize.Clone(m.base), normalize.Clone(m.doc), normalize.Clone(server))
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("merging server snapshot: %w", err)
	}
	if report := normalize.CheckIntegrity(merged); !report.IsValid {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIntegrity, strings.Join(report.Errors, "; "))
	}

	cleared := len(m.pending)
	merged.IsDirty = true
	m.doc = merged
	m.base = normalize.Clone(server)
	m.pending = nil
	out := normalize.Clone(merged)
	m.mu.Unlock()

	m.logger.Info("server snapshot merged", "pending_cleared", cleared)
	m.bus.Publish(Event{Kind: EventSynced, Merged: true})
	return out, nil
}

// Acknowledge records that the server now holds snapshot, typically because
// this client just saved it. The snapshot becomes the merge base so a later
// sync does not treat the client's own writes as remote changes. The local
// document and pending operations are unchanged.
func (m *Manager) Acknowledge(snapshot *domain.NormalizedDocument) {
	m.mu.Lock()
	m.base = normalize.Clone(snapshot)
	m.mu.Unlock()
}

func (m *Manager) indexLocked(opID string) int {
	for i, p := range m.pending {
		if p.ID == opID {
			return i
		}
	}
	return -1
}
