// Package normalize converts between the nested service tree used by the
// editor and the flat, id-indexed document used by alternate consumers.
package normalize

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrQuestionNotFound = errors.New("question not found")
)

// QuestionIDFunc assigns the wrapper id of a service-scoped question.
type QuestionIDFunc func(serviceID string, q domain.Question) string

// RandomQuestionIDs gives every question wrapper a fresh uuid.
func RandomQuestionIDs(string, domain.Question) string {
	return uuid.New().String()
}

// StableQuestionIDs derives the wrapper id from the owning service and the
// question's own id, so repeated conversions of the same tree agree on
// question identity. Questions without an id fall back to a fresh uuid.
func StableQuestionIDs(serviceID string, q domain.Question) string {
	if q.ID == "" {
		return uuid.New().String()
	}
	return serviceID + "/" + q.ID
}

type options struct {
	questionID QuestionIDFunc
}

type Option func(*options)

// WithQuestionIDs overrides how question wrapper ids are assigned.
func WithQuestionIDs(fn QuestionIDFunc) Option {
	return func(o *options) {
		o.questionID = fn
	}
}

// ToNormalized walks the tree once, depth-first, and produces the flat
// document. Question order is a single counter shared across the walk.
func ToNormalized(root *domain.Node, baseQuestions []domain.Question, meta domain.Metadata, opts ...Option) *domain.NormalizedDocument {
	o := options{questionID: RandomQuestionIDs}
	for _, opt := range opts {
		opt(&o)
	}

	doc := &domain.NormalizedDocument{
		ID:            meta.ID,
		Name:          meta.Name,
		Slug:          meta.Slug,
		Theme:         meta.Theme,
		PrimaryColor:  meta.PrimaryColor,
		BaseQuestions: baseQuestions,
		Nodes:         make(map[string]*domain.NormalizedNode),
		Questions:     make(map[string]*domain.QuestionRecord),
		IsDirty:       false,
	}
	if root == nil {
		return doc
	}
	doc.RootID = root.ID

	order := 0
	var visit func(n *domain.Node, parentID *string)
	visit = func(n *domain.Node, parentID *string) {
		rec := &domain.NormalizedNode{
			ID:             n.ID,
			Kind:           n.Kind,
			ParentID:       parentID,
			Label:          n.Label,
			Description:    n.Description,
			ServiceDetails: n.ServiceDetails,
		}
		doc.Nodes[n.ID] = rec

		if n.Kind.IsContainer() {
			rec.ChildIDs = make([]string, 0, len(n.Children))
			id := n.ID
			for _, c := range n.Children {
				visit(c, &id)
				rec.ChildIDs = append(rec.ChildIDs, c.ID)
			}
		}

		if n.Kind == domain.NodeService {
			rec.QuestionIDs = make([]string, 0, len(n.AdditionalQuestions))
			for _, q := range n.AdditionalQuestions {
				qid := freeQuestionKey(doc.Questions, o.questionID(n.ID, q))
				doc.Questions[qid] = &domain.QuestionRecord{
					ID:        qid,
					ServiceID: n.ID,
					Order:     order,
					Config:    q,
				}
				order++
				rec.QuestionIDs = append(rec.QuestionIDs, qid)
			}
		}
	}
	visit(root, nil)

	return doc
}

// freeQuestionKey returns key, or key with the first free "~N" suffix when
// another wrapper already holds it. The suffix depends only on walk order, so
// stable ids stay stable.
func freeQuestionKey(taken map[string]*domain.QuestionRecord, key string) string {
	if _, ok := taken[key]; !ok {
		return key
	}
	for i := 2; ; i++ {
		k := fmt.Sprintf("%s~%d", key, i)
		if _, ok := taken[k]; !ok {
			return k
		}
	}
}

// ToNested rebuilds the tree from RootID. A missing root, child or question
// reference means the document is corrupt and is reported as an error.
func ToNested(doc *domain.NormalizedDocument) (*domain.Node, error) {
	byService := make(map[string][]*domain.QuestionRecord)
	for _, q := range doc.Questions {
		byService[q.ServiceID] = append(byService[q.ServiceID], q)
	}
	for _, qs := range byService {
		sort.SliceStable(qs, func(i, j int) bool {
			if qs[i].Order == qs[j].Order {
				return qs[i].ID < qs[j].ID
			}
			return qs[i].Order < qs[j].Order
		})
	}

	var build func(id string) (*domain.Node, error)
	build = func(id string) (*domain.Node, error) {
		rec, ok := doc.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
		}
		n := &domain.Node{
			ID:          rec.ID,
			Kind:        rec.Kind,
			Label:       rec.Label,
			Description: rec.Description,
		}
		switch {
		case rec.Kind.IsContainer():
			n.Children = make([]*domain.Node, 0, len(rec.ChildIDs))
			for _, cid := range rec.ChildIDs {
				child, err := build(cid)
				if err != nil {
					return nil, err
				}
				n.Children = append(n.Children, child)
			}
		case rec.Kind == domain.NodeService:
			n.ServiceDetails = rec.ServiceDetails
			for _, qid := range rec.QuestionIDs {
				if _, ok := doc.Questions[qid]; !ok {
					return nil, fmt.Errorf("question %q of service %q: %w", qid, rec.ID, ErrQuestionNotFound)
				}
			}
			for _, q := range byService[rec.ID] {
				n.AdditionalQuestions = append(n.AdditionalQuestions, q.Config)
			}
		}
		return n, nil
	}

	if doc.RootID == "" {
		return nil, fmt.Errorf("root: %w", ErrNodeNotFound)
	}
	return build(doc.RootID)
}

// ToForm rebuilds a FormConfig from the document's metadata and tree.
func ToForm(doc *domain.NormalizedDocument) (*domain.FormConfig, error) {
	root, err := ToNested(doc)
	if err != nil {
		return nil, err
	}
	return &domain.FormConfig{
		ID:            doc.ID,
		InternalName:  doc.Name,
		Slug:          doc.Slug,
		ServiceTree:   root,
		BaseQuestions: doc.BaseQuestions,
		Theme:         doc.Theme,
		PrimaryColor:  doc.PrimaryColor,
	}, nil
}

// FromForm normalizes a FormConfig.
func FromForm(f *domain.FormConfig, opts ...Option) *domain.NormalizedDocument {
	return ToNormalized(f.ServiceTree, f.BaseQuestions, f.Metadata(), opts...)
}

// Clone deep-copies the document's maps and records. Question configs and
// service attributes are treated as immutable values and shared.
func Clone(doc *domain.NormalizedDocument) *domain.NormalizedDocument {
	if doc == nil {
		return nil
	}
	cp := *doc
	cp.Nodes = make(map[string]*domain.NormalizedNode, len(doc.Nodes))
	for id, n := range doc.Nodes {
		nc := *n
		nc.ChildIDs = cloneStrings(n.ChildIDs)
		nc.QuestionIDs = cloneStrings(n.QuestionIDs)
		if n.ParentID != nil {
			pid := *n.ParentID
			nc.ParentID = &pid
		}
		cp.Nodes[id] = &nc
	}
	cp.Questions = make(map[string]*domain.QuestionRecord, len(doc.Questions))
	for id, q := range doc.Questions {
		qc := *q
		cp.Questions[id] = &qc
	}
	if doc.BaseQuestions != nil {
		cp.BaseQuestions = append([]domain.Question(nil), doc.BaseQuestions...)
	}
	if doc.LastSaved != nil {
		ts := *doc.LastSaved
		cp.LastSaved = &ts
	}
	return &cp
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
