package tree

import (
	"fmt"

	"github.com/alexanderramin/bookable/internal/domain"
)

// GetPath returns the labels from root to the node with the given id,
// inclusive. It returns nil when the id is absent.
func GetPath(root *domain.Node, id string) []string {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return []string{root.Label}
	}
	for _, c := range root.Children {
		if sub := GetPath(c, id); sub != nil {
			return append([]string{root.Label}, sub...)
		}
	}
	return nil
}

// GetAllNodes returns every node in pre-order, root first.
func GetAllNodes(root *domain.Node) []*domain.Node {
	var out []*domain.Node
	Walk(root, func(n *domain.Node, _ int) {
		out = append(out, n)
	})
	return out
}

// GetNodesByKind returns the nodes of the given kind in pre-order.
func GetNodesByKind(root *domain.Node, kind domain.NodeKind) []*domain.Node {
	var out []*domain.Node
	Walk(root, func(n *domain.Node, _ int) {
		if n.Kind == kind {
			out = append(out, n)
		}
	})
	return out
}

// GetLeafNodes returns the nodes that have no children, in pre-order.
func GetLeafNodes(root *domain.Node) []*domain.Node {
	var out []*domain.Node
	Walk(root, func(n *domain.Node, _ int) {
		if len(n.Children) == 0 {
			out = append(out, n)
		}
	})
	return out
}

// GetNodeDepth returns the 0-based depth of the node (root is 0).
func GetNodeDepth(root *domain.Node, id string) (int, bool) {
	path := GetPath(root, id)
	if path == nil {
		return 0, false
	}
	return len(path) - 1, true
}

// Walk visits every node in pre-order with its depth.
func Walk(root *domain.Node, fn func(n *domain.Node, depth int)) {
	var visit func(n *domain.Node, depth int)
	visit = func(n *domain.Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	if root != nil {
		visit(root, 0)
	}
}

// Report is the outcome of ValidateTree.
type Report struct {
	IsValid bool
	Errors  []string
}

// ValidateTree checks structural well-formedness only: every node has an id,
// a label and a kind, and ids are unique. Business rules live in the
// validation package.
func ValidateTree(root *domain.Node) Report {
	var errs []string
	if root == nil {
		return Report{IsValid: false, Errors: []string{"tree is empty"}}
	}
	seen := make(map[string]bool)
	Walk(root, func(n *domain.Node, depth int) {
		where := n.ID
		if where == "" {
			where = fmt.Sprintf("<unnamed at depth %d>", depth)
		}
		if n.ID == "" {
			errs = append(errs, fmt.Sprintf("node at depth %d is missing an id", depth))
		} else if seen[n.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
		if n.Label == "" {
			errs = append(errs, fmt.Sprintf("node %s is missing a label", where))
		}
		if n.Kind == "" {
			errs = append(errs, fmt.Sprintf("node %s is missing a kind", where))
		}
	})
	return Report{IsValid: len(errs) == 0, Errors: errs}
}
