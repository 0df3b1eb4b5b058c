// Package tree implements pure operations over the nested service tree.
//
// Mutators never modify their input. They return a new root that shares every
// subtree not on the path to the edited node. When the target is missing they
// return the input root unchanged together with ErrNodeNotFound, so callers
// that want a soft no-op can ignore the error.
package tree

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/bookable/internal/domain"
)

var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrNotContainer   = errors.New("node cannot hold children")
	ErrRootImmutable  = errors.New("root node cannot be removed or moved")
	ErrNotPermutation = errors.New("new order is not a permutation of the existing children")
	ErrCycle          = errors.New("node cannot be moved into its own subtree")
)

// FindByID returns the first node with the given id in pre-order, or nil.
func FindByID(root *domain.Node, id string) *domain.Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, c := range root.Children {
		if n := FindByID(c, id); n != nil {
			return n
		}
	}
	return nil
}

// FindParent returns the node whose immediate children contain childID, or nil.
func FindParent(root *domain.Node, childID string) *domain.Node {
	if root == nil {
		return nil
	}
	for _, c := range root.Children {
		if c.ID == childID {
			return root
		}
	}
	for _, c := range root.Children {
		if p := FindParent(c, childID); p != nil {
			return p
		}
	}
	return nil
}

// rewrite copies the path from root to the node with the given id and
// replaces that node with fn's result. ok is false when id is absent.
func rewrite(n *domain.Node, id string, fn func(*domain.Node) *domain.Node) (*domain.Node, bool) {
	if n.ID == id {
		return fn(n), true
	}
	for i, c := range n.Children {
		replaced, ok := rewrite(c, id, fn)
		if !ok {
			continue
		}
		children := make([]*domain.Node, len(n.Children))
		copy(children, n.Children)
		children[i] = replaced
		cp := *n
		cp.Children = children
		return &cp, true
	}
	return n, false
}

// UpdateNode applies patch to the node with the given id.
func UpdateNode(root *domain.Node, id string, patch domain.NodePatch) (*domain.Node, error) {
	if root == nil {
		return root, fmt.Errorf("update %q: %w", id, ErrNodeNotFound)
	}
	updated, ok := rewrite(root, id, patch.Apply)
	if !ok {
		return root, fmt.Errorf("update %q: %w", id, ErrNodeNotFound)
	}
	return updated, nil
}

// AddChild appends child to the end of the parent's children.
func AddChild(root *domain.Node, parentID string, child *domain.Node) (*domain.Node, error) {
	parent := FindByID(root, parentID)
	if parent == nil {
		return root, fmt.Errorf("add child to %q: %w", parentID, ErrNodeNotFound)
	}
	if !parent.Kind.IsContainer() {
		return root, fmt.Errorf("add child to %q (%s): %w", parentID, parent.Kind, ErrNotContainer)
	}
	updated, _ := rewrite(root, parentID, func(p *domain.Node) *domain.Node {
		children := make([]*domain.Node, len(p.Children), len(p.Children)+1)
		copy(children, p.Children)
		cp := *p
		cp.Children = append(children, child)
		return &cp
	})
	return updated, nil
}

// RemoveNode detaches the node with the given id, along with its subtree.
func RemoveNode(root *domain.Node, id string) (*domain.Node, error) {
	if root == nil {
		return root, fmt.Errorf("remove %q: %w", id, ErrNodeNotFound)
	}
	if root.ID == id {
		return root, ErrRootImmutable
	}
	parent := FindParent(root, id)
	if parent == nil {
		return root, fmt.Errorf("remove %q: %w", id, ErrNodeNotFound)
	}
	updated, _ := rewrite(root, parent.ID, func(p *domain.Node) *domain.Node {
		children := make([]*domain.Node, 0, len(p.Children)-1)
		for _, c := range p.Children {
			if c.ID != id {
				children = append(children, c)
			}
		}
		cp := *p
		cp.Children = children
		return &cp
	})
	return updated, nil
}

// ReorderChildren replaces the parent's children with ordered, which must be
// a permutation of the current children (compared by id).
func ReorderChildren(root *domain.Node, parentID string, ordered []*domain.Node) (*domain.Node, error) {
	parent := FindByID(root, parentID)
	if parent == nil {
		return root, fmt.Errorf("reorder %q: %w", parentID, ErrNodeNotFound)
	}
	if err := checkPermutation(parent.Children, ordered); err != nil {
		return root, fmt.Errorf("reorder %q: %w", parentID, err)
	}
	updated, _ := rewrite(root, parentID, func(p *domain.Node) *domain.Node {
		children := make([]*domain.Node, len(ordered))
		copy(children, ordered)
		cp := *p
		cp.Children = children
		return &cp
	})
	return updated, nil
}

func checkPermutation(current, ordered []*domain.Node) error {
	if len(current) != len(ordered) {
		return ErrNotPermutation
	}
	want := make(map[string]int, len(current))
	for _, c := range current {
		want[c.ID]++
	}
	for _, c := range ordered {
		if c == nil || want[c.ID] == 0 {
			return ErrNotPermutation
		}
		want[c.ID]--
	}
	return nil
}

// ReorderChildIDs is ReorderChildren keyed by child id.
func ReorderChildIDs(root *domain.Node, parentID string, ids []string) (*domain.Node, error) {
	parent := FindByID(root, parentID)
	if parent == nil {
		return root, fmt.Errorf("reorder %q: %w", parentID, ErrNodeNotFound)
	}
	byID := make(map[string]*domain.Node, len(parent.Children))
	for _, c := range parent.Children {
		byID[c.ID] = c
	}
	ordered := make([]*domain.Node, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return root, fmt.Errorf("reorder %q: unknown child %q: %w", parentID, id, ErrNotPermutation)
		}
		ordered = append(ordered, c)
	}
	return ReorderChildren(root, parentID, ordered)
}

// MoveNode detaches the node and appends it to newParentID's children.
func MoveNode(root *domain.Node, id, newParentID string) (*domain.Node, error) {
	if root != nil && root.ID == id {
		return root, ErrRootImmutable
	}
	node := FindByID(root, id)
	if node == nil {
		return root, fmt.Errorf("move %q: %w", id, ErrNodeNotFound)
	}
	newParent := FindByID(root, newParentID)
	if newParent == nil {
		return root, fmt.Errorf("move %q to %q: %w", id, newParentID, ErrNodeNotFound)
	}
	if FindByID(node, newParentID) != nil {
		return root, fmt.Errorf("move %q to %q: %w", id, newParentID, ErrCycle)
	}
	if !newParent.Kind.IsContainer() {
		return root, fmt.Errorf("move %q to %q (%s): %w", id, newParentID, newParent.Kind, ErrNotContainer)
	}
	detached, err := RemoveNode(root, id)
	if err != nil {
		return root, err
	}
	return AddChild(detached, newParentID, node)
}
