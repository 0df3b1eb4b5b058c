package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/clock"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/normalize"
	"github.com/alexanderramin/bookable/internal/optimistic"
	"github.com/alexanderramin/bookable/internal/tree"
	"github.com/alexanderramin/bookable/internal/validation"
)

var (
	ErrMaxDepth          = errors.New("group nesting limit reached")
	ErrNotService        = errors.New("node is not a service")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrDuplicateQuestion = errors.New("question id is not unique")
)

// DefaultMaxDepth is how deeply groups may nest below the root.
const DefaultMaxDepth = 3

// Edit identifies an applied editor operation and the entity it created or
// changed.
type Edit struct {
	OpID string
	ID   string
}

// MetadataPatch is a partial update of the form-level fields. Nil fields are
// left untouched.
type MetadataPatch struct {
	Name         *string
	Slug         *string
	Theme        *domain.Theme
	PrimaryColor *string
}

type editorOptions struct {
	autosave     autosave.Config
	autosaveOpts []autosave.Option
	maxDepth     int
	ids          domain.IDGenerator
	clk          clock.Clock
	logger       *slog.Logger
}

type EditorOption func(*editorOptions)

func WithAutosaveConfig(cfg autosave.Config) EditorOption {
	return func(o *editorOptions) { o.autosave = cfg }
}

// WithAutosaveOptions passes extra options to the session's coordinator.
func WithAutosaveOptions(opts ...autosave.Option) EditorOption {
	return func(o *editorOptions) { o.autosaveOpts = append(o.autosaveOpts, opts...) }
}

func WithMaxDepth(n int) EditorOption {
	return func(o *editorOptions) { o.maxDepth = n }
}

func WithEditorIDs(g domain.IDGenerator) EditorOption {
	return func(o *editorOptions) { o.ids = g }
}

func WithEditorClock(c clock.Clock) EditorOption {
	return func(o *editorOptions) { o.clk = c }
}

func WithEditorLogger(l *slog.Logger) EditorOption {
	return func(o *editorOptions) { o.logger = l }
}

// EditorSession edits one form. The optimistic manager holds the only copy
// of the document; every edit and every server sync goes through it, and the
// autosave coordinator watches the result.
type EditorSession struct {
	forms    FormService
	formID   string
	maxDepth int
	ids      domain.IDGenerator
	logger   *slog.Logger

	manager  *optimistic.Manager
	autosave *autosave.Coordinator
	enabled  atomic.Bool

	// editMu serializes edits and syncs with their autosave observation.
	editMu sync.Mutex

	mu        sync.Mutex
	version   int
	opsByHash map[string][]string
	// inflight counts saves of each content hash still waiting on the
	// store; savedHash is the content of the last successful save.
	inflight  map[string]int
	savedHash string
}

// OpenEditor loads the form named by ref and starts a session on it.
func OpenEditor(ctx context.Context, forms FormService, ref string, opts ...EditorOption) (*EditorSession, error) {
	o := editorOptions{
		autosave: autosave.DefaultConfig(),
		maxDepth: DefaultMaxDepth,
		ids:      domain.UUIDGenerator{},
		clk:      clock.Real(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	form, err := forms.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	s := &EditorSession{
		forms:     forms,
		formID:    form.ID,
		maxDepth:  o.maxDepth,
		ids:       o.ids,
		logger:    o.logger.With("form_id", form.ID),
		version:   form.Version,
		opsByHash: make(map[string][]string),
		inflight:  make(map[string]int),
	}
	s.enabled.Store(form.IsEnabled)
	s.manager = optimistic.NewManager(normalizeForm(form),
		optimistic.WithIDs(o.ids),
		optimistic.WithClock(o.clk),
		optimistic.WithLogger(s.logger),
	)
	autosaveOpts := append([]autosave.Option{
		autosave.WithClock(o.clk),
		autosave.WithLogger(s.logger),
		autosave.WithGate(s.canSave),
	}, o.autosaveOpts...)
	s.autosave = autosave.New(s.save, o.autosave, autosaveOpts...)

	if err := s.observe(); err != nil {
		return nil, err
	}
	return s, nil
}

func normalizeForm(f *domain.FormConfig) *domain.NormalizedDocument {
	return normalize.FromForm(f, normalize.WithQuestionIDs(normalize.StableQuestionIDs))
}

func (s *EditorSession) FormID() string { return s.formID }

// Form returns the current local form.
func (s *EditorSession) Form() (*domain.FormConfig, error) {
	f, err := normalize.ToForm(s.manager.Document())
	if err != nil {
		return nil, err
	}
	f.IsEnabled = s.enabled.Load()
	s.mu.Lock()
	f.Version = s.version
	s.mu.Unlock()
	return f, nil
}

// Document returns a copy of the current normalized document.
func (s *EditorSession) Document() *domain.NormalizedDocument {
	return s.manager.Document()
}

func (s *EditorSession) Validate() (validation.Result, error) {
	f, err := s.Form()
	if err != nil {
		return validation.Result{}, err
	}
	return validation.Validate(f), nil
}

func (s *EditorSession) AutosaveState() autosave.State { return s.autosave.State() }

func (s *EditorSession) Pending() []optimistic.PendingOperation { return s.manager.Pending() }

func (s *EditorSession) SubscribeAutosave(fn func(autosave.State)) (unsubscribe func()) {
	return s.autosave.Subscribe(fn)
}

func (s *EditorSession) SubscribeChanges(fn func(optimistic.Event)) (unsubscribe func()) {
	return s.manager.Subscribe(fn)
}

// SaveNow saves the current document immediately.
func (s *EditorSession) SaveNow(ctx context.Context) error {
	return s.autosave.SaveNow(ctx)
}

// Close stops autosave timers and cancels an in-flight save.
func (s *EditorSession) Close() {
	s.autosave.Close()
}

// Tree edits

func (s *EditorSession) AddGroup(parentID, label string) (Edit, error) {
	id := s.ids.NewID()
	group := &domain.Node{ID: id, Kind: domain.NodeGroup, Label: label, Children: []*domain.Node{}}
	return s.editTree("add-group", id, func(root *domain.Node) (*domain.Node, error) {
		depth, ok := tree.GetNodeDepth(root, parentID)
		if !ok {
			return nil, fmt.Errorf("add group to %q: %w", parentID, tree.ErrNodeNotFound)
		}
		if depth+1 > s.maxDepth {
			return nil, fmt.Errorf("add group to %q at depth %d (max %d): %w", parentID, depth+1, s.maxDepth, ErrMaxDepth)
		}
		return tree.AddChild(root, parentID, group)
	})
}

func (s *EditorSession) AddService(parentID, label string, details domain.ServiceDetails) (Edit, error) {
	id := s.ids.NewID()
	svc := &domain.Node{ID: id, Kind: domain.NodeService, Label: label, ServiceDetails: details}
	return s.editTree("add-service", id, func(root *domain.Node) (*domain.Node, error) {
		return tree.AddChild(root, parentID, svc)
	})
}

func (s *EditorSession) UpdateNode(id string, patch domain.NodePatch) (Edit, error) {
	return s.editTree("update-node", id, func(root *domain.Node) (*domain.Node, error) {
		return tree.UpdateNode(root, id, patch)
	})
}

func (s *EditorSession) Rename(id, label string) (Edit, error) {
	return s.UpdateNode(id, domain.NodePatch{Label: &label})
}

func (s *EditorSession) RemoveNode(id string) (Edit, error) {
	return s.editTree("remove-node", id, func(root *domain.Node) (*domain.Node, error) {
		return tree.RemoveNode(root, id)
	})
}

func (s *EditorSession) MoveNode(id, newParentID string) (Edit, error) {
	return s.editTree("move-node", id, func(root *domain.Node) (*domain.Node, error) {
		node := tree.FindByID(root, id)
		depth, ok := tree.GetNodeDepth(root, newParentID)
		if node != nil && ok && depth+groupHeight(node) > s.maxDepth {
			return nil, fmt.Errorf("move %q under %q: %w", id, newParentID, ErrMaxDepth)
		}
		return tree.MoveNode(root, id, newParentID)
	})
}

func (s *EditorSession) ReorderChildren(parentID string, childIDs []string) (Edit, error) {
	ids := slices.Clone(childIDs)
	return s.editTree("reorder-children", parentID, func(root *domain.Node) (*domain.Node, error) {
		return tree.ReorderChildIDs(root, parentID, ids)
	})
}

// groupHeight counts the group levels in n's subtree, n included.
func groupHeight(n *domain.Node) int {
	if n.Kind != domain.NodeGroup {
		return 0
	}
	deepest := 0
	for _, c := range n.Children {
		deepest = max(deepest, groupHeight(c))
	}
	return deepest + 1
}

// Question edits

func (s *EditorSession) AddQuestion(serviceID string, q domain.Question) (Edit, error) {
	if q.ID == "" {
		q.ID = s.ids.NewID()
	}
	return s.editQuestions("add-question", serviceID, q.ID, func(qs []domain.Question) ([]domain.Question, error) {
		if slices.ContainsFunc(qs, func(x domain.Question) bool { return x.ID == q.ID }) {
			return nil, fmt.Errorf("question %q: %w", q.ID, ErrDuplicateQuestion)
		}
		return append(slices.Clone(qs), q), nil
	})
}

func (s *EditorSession) UpdateQuestion(serviceID string, q domain.Question) (Edit, error) {
	return s.editQuestions("update-question", serviceID, q.ID, func(qs []domain.Question) ([]domain.Question, error) {
		i, err := questionIndex(qs, q.ID)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(qs)
		out[i] = q
		return out, nil
	})
}

func (s *EditorSession) RemoveQuestion(serviceID, questionID string) (Edit, error) {
	return s.editQuestions("remove-question", serviceID, questionID, func(qs []domain.Question) ([]domain.Question, error) {
		i, err := questionIndex(qs, questionID)
		if err != nil {
			return nil, err
		}
		return slices.Delete(slices.Clone(qs), i, i+1), nil
	})
}

// questionIndex finds the single question with id. Ids shared by several
// questions are refused rather than guessed.
func questionIndex(qs []domain.Question, id string) (int, error) {
	i := slices.IndexFunc(qs, func(x domain.Question) bool { return x.ID == id })
	switch {
	case i < 0:
		return -1, fmt.Errorf("question %q: %w", id, ErrQuestionNotFound)
	case slices.ContainsFunc(qs[i+1:], func(x domain.Question) bool { return x.ID == id }):
		return -1, fmt.Errorf("question %q: %w", id, ErrDuplicateQuestion)
	}
	return i, nil
}

// SetBaseQuestions replaces the form-wide questions. Questions without an id
// get one.
func (s *EditorSession) SetBaseQuestions(qs []domain.Question) (Edit, error) {
	next := slices.Clone(qs)
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = s.ids.NewID()
		}
	}
	return s.apply("set-base-questions", "", func(doc *domain.NormalizedDocument) error {
		doc.BaseQuestions = slices.Clone(next)
		return nil
	})
}

func (s *EditorSession) UpdateMetadata(p MetadataPatch) (Edit, error) {
	return s.apply("update-metadata", "", func(doc *domain.NormalizedDocument) error {
		if p.Name != nil {
			doc.Name = *p.Name
		}
		if p.Slug != nil {
			doc.Slug = *p.Slug
		}
		if p.Theme != nil {
			doc.Theme = *p.Theme
		}
		if p.PrimaryColor != nil {
			doc.PrimaryColor = *p.PrimaryColor
		}
		return nil
	})
}

// Undo rolls back one pending operation, replaying the ones after it.
func (s *EditorSession) Undo(opID string) error {
	s.editMu.Lock()
	defer s.editMu.Unlock()
	if err := s.manager.Rollback(opID); err != nil {
		return err
	}
	return s.observe()
}

// Sync folds a server copy of the form into the session. Copies at or below
// the version the session already knows are ignored. A copy holding content
// this session is saving or has just saved is its own write coming back: it
// becomes the merge base without touching the local document.
func (s *EditorSession) Sync(_ context.Context, server *domain.FormConfig) error {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	s.mu.Lock()
	known := s.version
	s.mu.Unlock()
	if server.Version <= known {
		return nil
	}

	hash, err := autosave.Hash(autosave.DocumentFromForm(server))
	if err != nil {
		return err
	}
	s.mu.Lock()
	own := s.inflight[hash] > 0 || hash == s.savedHash
	if own {
		s.version = max(s.version, server.Version)
	}
	s.mu.Unlock()
	if own {
		s.manager.Acknowledge(normalizeForm(server))
		s.enabled.Store(server.IsEnabled)
		s.logger.Debug("own save echoed by server", "version", server.Version)
		return nil
	}

	merged, err := s.manager.SyncWithServer(normalizeForm(server))
	if err != nil {
		return err
	}
	s.enabled.Store(server.IsEnabled)
	s.mu.Lock()
	s.version = server.Version
	clear(s.opsByHash)
	s.mu.Unlock()

	if err := s.observe(); err != nil {
		return err
	}
	local, err := documentOf(merged)
	if err != nil {
		return err
	}
	if sameContent(local, autosave.DocumentFromForm(server)) {
		s.autosave.MarkClean()
	}
	s.logger.Info("server copy applied", "version", server.Version)
	return nil
}

// Fetcher returns a Fetcher for this session's form.
func (s *EditorSession) Fetcher() Fetcher {
	return FetcherFunc(func(ctx context.Context) (*domain.FormConfig, error) {
		return s.forms.Get(ctx, s.formID)
	})
}

func (s *EditorSession) editTree(kind, id string, edit func(root *domain.Node) (*domain.Node, error)) (Edit, error) {
	return s.apply(kind, id, func(doc *domain.NormalizedDocument) error {
		root, err := normalize.ToNested(doc)
		if err != nil {
			return err
		}
		next, err := edit(root)
		if err != nil {
			return err
		}
		replaceTree(doc, next)
		return nil
	})
}

func (s *EditorSession) editQuestions(kind, serviceID, questionID string, edit func([]domain.Question) ([]domain.Question, error)) (Edit, error) {
	e, err := s.editTree(kind, serviceID, func(root *domain.Node) (*domain.Node, error) {
		n := tree.FindByID(root, serviceID)
		if n == nil {
			return nil, fmt.Errorf("service %q: %w", serviceID, tree.ErrNodeNotFound)
		}
		if n.Kind != domain.NodeService {
			return nil, fmt.Errorf("%q is a %s: %w", serviceID, n.Kind, ErrNotService)
		}
		qs, err := edit(n.AdditionalQuestions)
		if err != nil {
			return nil, err
		}
		return tree.UpdateNode(root, serviceID, domain.NodePatch{AdditionalQuestions: &qs})
	})
	e.ID = questionID
	return e, err
}

func (s *EditorSession) apply(kind, id string, mutate optimistic.Mutation) (Edit, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	opID, err := s.manager.Apply(optimistic.Operation{Kind: kind}, mutate)
	if err != nil {
		return Edit{}, err
	}
	if err := s.observe(); err != nil {
		return Edit{OpID: opID, ID: id}, err
	}
	return Edit{OpID: opID, ID: id}, nil
}

// replaceTree swaps the document's node and question tables for those of
// root, keeping form-level fields.
func replaceTree(doc *domain.NormalizedDocument, root *domain.Node) {
	fresh := normalize.ToNormalized(root, doc.BaseQuestions, doc.Metadata(),
		normalize.WithQuestionIDs(normalize.StableQuestionIDs))
	doc.RootID = fresh.RootID
	doc.Nodes = fresh.Nodes
	doc.Questions = fresh.Questions
}

// observe hands the current document to autosave and remembers which
// pending operations it contains. Callers hold editMu.
func (s *EditorSession) observe() error {
	doc, err := documentOf(s.manager.Document())
	if err != nil {
		return err
	}
	hash, err := autosave.Hash(doc)
	if err != nil {
		return err
	}
	var ids []string
	for _, p := range s.manager.Pending() {
		ids = append(ids, p.ID)
	}
	s.mu.Lock()
	if len(ids) > 0 {
		s.opsByHash[hash] = ids
	}
	s.mu.Unlock()
	return s.autosave.Observe(doc)
}

// canSave is the autosave gate: enabled forms must stay valid.
func (s *EditorSession) canSave(doc autosave.Document) bool {
	f := &domain.FormConfig{}
	doc.Apply(f)
	return validation.CanSaveForm(s.enabled.Load(), validation.Validate(f))
}

// save is the autosave persistence target. A successful save moves the
// merge base forward and confirms the operations the saved content held.
func (s *EditorSession) save(ctx context.Context, doc autosave.Document) error {
	hash, err := autosave.Hash(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.inflight[hash]++
	s.mu.Unlock()

	saved, err := s.forms.SaveDocument(ctx, s.formID, doc)

	s.mu.Lock()
	if s.inflight[hash]--; s.inflight[hash] <= 0 {
		delete(s.inflight, hash)
	}
	if err == nil {
		s.savedHash = hash
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.manager.Acknowledge(normalizeForm(saved))

	s.mu.Lock()
	s.version = max(s.version, saved.Version)
	confirmed := s.opsByHash[hash]
	delete(s.opsByHash, hash)
	for h, ids := range s.opsByHash {
		rest := slices.DeleteFunc(ids, func(id string) bool { return slices.Contains(confirmed, id) })
		if len(rest) == 0 {
			delete(s.opsByHash, h)
		} else {
			s.opsByHash[h] = rest
		}
	}
	s.mu.Unlock()

	for _, id := range confirmed {
		if err := s.manager.Confirm(id); err != nil && !errors.Is(err, optimistic.ErrUnknownOperation) {
			return err
		}
	}
	s.logger.Debug("form saved", "version", saved.Version, "confirmed", len(confirmed))
	return nil
}

func documentOf(doc *domain.NormalizedDocument) (autosave.Document, error) {
	f, err := normalize.ToForm(doc)
	if err != nil {
		return autosave.Document{}, err
	}
	return autosave.DocumentFromForm(f), nil
}

func sameContent(a, b autosave.Document) bool {
	ha, errA := autosave.Hash(a)
	hb, errB := autosave.Hash(b)
	return errA == nil && errB == nil && ha == hb
}
