package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/tree"
)

// Convert transforms a validated FormImport into a FormConfig ready for
// persistence. Nodes and questions without ids get one from ids. The input
// is not modified. Call ValidateFormImport first; Convert still rejects a
// tree that fails the structural check.
func Convert(schema *FormImport, ids domain.IDGenerator) (*domain.FormConfig, error) {
	now := time.Now().UTC()

	root := assignIDs(schema.ServiceTree, ids)
	if root.Kind == "" {
		root.Kind = domain.NodeRoot
	}
	if root.Label == "" {
		root.Label = "Services"
	}
	if report := tree.ValidateTree(root); !report.IsValid {
		return nil, fmt.Errorf("invalid service tree: %s", strings.Join(report.Errors, "; "))
	}

	return &domain.FormConfig{
		ID:            ids.NewID(),
		InternalName:  schema.InternalName,
		Slug:          schema.Slug,
		ServiceTree:   root,
		BaseQuestions: assignQuestionIDs(schema.BaseQuestions, ids),
		Theme:         schema.Theme,
		PrimaryColor:  schema.PrimaryColor,
		IsEnabled:     schema.IsEnabled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func assignIDs(n *domain.Node, ids domain.IDGenerator) *domain.Node {
	cp := *n
	if cp.ID == "" {
		cp.ID = ids.NewID()
	}
	cp.AdditionalQuestions = assignQuestionIDs(n.AdditionalQuestions, ids)
	if n.Children != nil {
		cp.Children = make([]*domain.Node, 0, len(n.Children))
		for _, c := range n.Children {
			cp.Children = append(cp.Children, assignIDs(c, ids))
		}
	} else if cp.Kind.IsContainer() {
		cp.Children = []*domain.Node{}
	}
	return &cp
}

func assignQuestionIDs(qs []domain.Question, ids domain.IDGenerator) []domain.Question {
	if qs == nil {
		return nil
	}
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			q.ID = ids.NewID()
		}
		out[i] = q
	}
	return out
}
