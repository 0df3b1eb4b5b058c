package normalize

import (
	"fmt"
	"sort"

	"github.com/alexanderramin/bookable/internal/domain"
)

// Report is the outcome of CheckIntegrity.
type Report struct {
	IsValid bool
	Errors  []string
}

// CheckIntegrity verifies the back-reference symmetry of a normalized
// document: parent/child links agree in both directions, every service's
// question ids resolve to questions that point back, and every question is
// listed by exactly one service. All violations are reported, in a stable
// order.
func CheckIntegrity(doc *domain.NormalizedDocument) Report {
	var errs []string

	root, ok := doc.Nodes[doc.RootID]
	switch {
	case doc.RootID == "":
		errs = append(errs, "rootId is empty")
	case !ok:
		errs = append(errs, fmt.Sprintf("root node %q does not exist", doc.RootID))
	case root.ParentID != nil:
		errs = append(errs, fmt.Sprintf("root node %q has parent %q", doc.RootID, *root.ParentID))
	}

	nodeIDs := sortedKeys(doc.Nodes)
	listedBy := make(map[string][]string)

	for _, id := range nodeIDs {
		n := doc.Nodes[id]
		if n.ID != id {
			errs = append(errs, fmt.Sprintf("node key %q holds node with id %q", id, n.ID))
		}

		if n.ParentID != nil {
			parent, ok := doc.Nodes[*n.ParentID]
			if !ok {
				errs = append(errs, fmt.Sprintf("node %q: parent %q does not exist", id, *n.ParentID))
			} else if !contains(parent.ChildIDs, id) {
				errs = append(errs, fmt.Sprintf("node %q: parent %q does not list it as a child", id, *n.ParentID))
			}
		} else if id != doc.RootID {
			errs = append(errs, fmt.Sprintf("node %q has no parent and is not the root", id))
		}

		seenChild := make(map[string]bool, len(n.ChildIDs))
		for _, cid := range n.ChildIDs {
			if seenChild[cid] {
				errs = append(errs, fmt.Sprintf("node %q lists child %q more than once", id, cid))
				continue
			}
			seenChild[cid] = true
			child, ok := doc.Nodes[cid]
			if !ok {
				errs = append(errs, fmt.Sprintf("node %q: child %q does not exist", id, cid))
				continue
			}
			if child.ParentID == nil || *child.ParentID != id {
				errs = append(errs, fmt.Sprintf("node %q: child %q does not point back", id, cid))
			}
		}
		if len(n.ChildIDs) > 0 && !n.Kind.IsContainer() {
			errs = append(errs, fmt.Sprintf("node %q of kind %s has children", id, n.Kind))
		}

		if n.Kind != domain.NodeService && len(n.QuestionIDs) > 0 {
			errs = append(errs, fmt.Sprintf("node %q of kind %s has questions", id, n.Kind))
		}
		for _, qid := range n.QuestionIDs {
			listedBy[qid] = append(listedBy[qid], id)
			q, ok := doc.Questions[qid]
			if !ok {
				errs = append(errs, fmt.Sprintf("service %q: question %q does not exist", id, qid))
				continue
			}
			if q.ServiceID != id {
				errs = append(errs, fmt.Sprintf("service %q: question %q belongs to %q", id, qid, q.ServiceID))
			}
		}
	}

	for _, qid := range sortedKeys(doc.Questions) {
		q := doc.Questions[qid]
		if q.ID != qid {
			errs = append(errs, fmt.Sprintf("question key %q holds question with id %q", qid, q.ID))
		}
		owner, ok := doc.Nodes[q.ServiceID]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("question %q: service %q does not exist", qid, q.ServiceID))
		case owner.Kind != domain.NodeService:
			errs = append(errs, fmt.Sprintf("question %q: owner %q is a %s, not a service", qid, q.ServiceID, owner.Kind))
		case !contains(owner.QuestionIDs, qid):
			errs = append(errs, fmt.Sprintf("question %q: service %q does not list it", qid, q.ServiceID))
		}
		if n := len(listedBy[qid]); n > 1 {
			errs = append(errs, fmt.Sprintf("question %q is listed by %d services", qid, n))
		}
	}

	return Report{IsValid: len(errs) == 0, Errors: errs}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
