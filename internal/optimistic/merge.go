package optimistic

import (
	"reflect"
	"sort"

	"github.com/alexanderramin/bookable/internal/domain"
)

// pick is the field-level three-way rule: a field the server left as it was
// in base keeps the local value, otherwise the server wins.
func pick[T any](base, local, server T) T {
	if reflect.DeepEqual(base, server) {
		return local
	}
	return server
}

// ThreeWayMerge is the default merge policy.
//
// Metadata, node fields and question fields are merged with pick. Entities
// added only locally are kept, entities the server deleted are dropped, and
// local deletions stand when the server did not change the entity since
// base. Child and question lists are then rebuilt so every back-reference
// is symmetric, and anything no longer reachable from the root is removed.
func ThreeWayMerge(base, local, server *domain.NormalizedDocument) (*domain.NormalizedDocument, error) {
	out := &domain.NormalizedDocument{
		ID:            server.ID,
		RootID:        server.RootID,
		Name:          pick(base.Name, local.Name, server.Name),
		Slug:          pick(base.Slug, local.Slug, server.Slug),
		Theme:         pick(base.Theme, local.Theme, server.Theme),
		PrimaryColor:  pick(base.PrimaryColor, local.PrimaryColor, server.PrimaryColor),
		BaseQuestions: pick(base.BaseQuestions, local.BaseQuestions, server.BaseQuestions),
		LastSaved:     server.LastSaved,
		Nodes:         make(map[string]*domain.NormalizedNode),
		Questions:     make(map[string]*domain.QuestionRecord),
	}

	localParent := mergeNodes(out, base, local, server)
	mergeQuestions(out, base, local, server)
	breakCycles(out, server, localParent)
	rebuildChildren(out, base, local, server)
	prune(out)
	rebuildQuestionLists(out, base, local, server)

	return out, nil
}

// mergeNodes fills out.Nodes and reports which nodes took their parent from
// the local side.
func mergeNodes(out, base, local, server *domain.NormalizedDocument) map[string]bool {
	localParent := make(map[string]bool)

	for id, s := range server.Nodes {
		l, inLocal := local.Nodes[id]
		b, inBase := base.Nodes[id]
		switch {
		case !inLocal && inBase && reflect.DeepEqual(b, s):
			// deleted locally, untouched on the server
			continue
		case !inLocal || !inBase:
			n := *s
			out.Nodes[id] = &n
		default:
			n := mergeNode(b, l, s)
			if !reflect.DeepEqual(b.ParentID, l.ParentID) && reflect.DeepEqual(b.ParentID, s.ParentID) {
				localParent[id] = true
			}
			out.Nodes[id] = n
		}
	}

	for id, l := range local.Nodes {
		if _, inServer := server.Nodes[id]; inServer {
			continue
		}
		if _, inBase := base.Nodes[id]; inBase {
			continue
		}
		n := *l
		out.Nodes[id] = &n
		localParent[id] = true
	}
	return localParent
}

func mergeNode(b, l, s *domain.NormalizedNode) *domain.NormalizedNode {
	n := &domain.NormalizedNode{
		ID:          s.ID,
		Kind:        s.Kind,
		ParentID:    pick(b.ParentID, l.ParentID, s.ParentID),
		Label:       pick(b.Label, l.Label, s.Label),
		Description: pick(b.Description, l.Description, s.Description),
	}
	bd, ld, sd := b.ServiceDetails, l.ServiceDetails, s.ServiceDetails
	n.ServiceDetails = domain.ServiceDetails{
		Duration:            pick(bd.Duration, ld.Duration, sd.Duration),
		Price:               pick(bd.Price, ld.Price, sd.Price),
		BufferTime:          pick(bd.BufferTime, ld.BufferTime, sd.BufferTime),
		Interval:            pick(bd.Interval, ld.Interval, sd.Interval),
		SchedulingWindow:    pick(bd.SchedulingWindow, ld.SchedulingWindow, sd.SchedulingWindow),
		MinimumNotice:       pick(bd.MinimumNotice, ld.MinimumNotice, sd.MinimumNotice),
		AvailabilityRules:   pick(bd.AvailabilityRules, ld.AvailabilityRules, sd.AvailabilityRules),
		BlockedTimes:        pick(bd.BlockedTimes, ld.BlockedTimes, sd.BlockedTimes),
		UnavailableDates:    pick(bd.UnavailableDates, ld.UnavailableDates, sd.UnavailableDates),
		AssignedEmployeeIDs: pick(bd.AssignedEmployeeIDs, ld.AssignedEmployeeIDs, sd.AssignedEmployeeIDs),
		DefaultEmployeeID:   pick(bd.DefaultEmployeeID, ld.DefaultEmployeeID, sd.DefaultEmployeeID),
	}
	return n
}

func mergeQuestions(out, base, local, server *domain.NormalizedDocument) {
	for id, s := range server.Questions {
		l, inLocal := local.Questions[id]
		b, inBase := base.Questions[id]
		switch {
		case !inLocal && inBase && reflect.DeepEqual(b, s):
			continue
		case !inLocal || !inBase:
			q := *s
			out.Questions[id] = &q
		default:
			out.Questions[id] = &domain.QuestionRecord{
				ID:        s.ID,
				ServiceID: pick(b.ServiceID, l.ServiceID, s.ServiceID),
				Order:     pick(b.Order, l.Order, s.Order),
				Config:    pick(b.Config, l.Config, s.Config),
			}
		}
	}
	for id, l := range local.Questions {
		if _, inServer := server.Questions[id]; inServer {
			continue
		}
		if _, inBase := base.Questions[id]; inBase {
			continue
		}
		q := *l
		out.Questions[id] = &q
	}
}

// breakCycles reverts local parent choices that would make a node its own
// ancestor, which can happen when local and server moved nodes into each
// other.
func breakCycles(out, server *domain.NormalizedDocument, localParent map[string]bool) {
	for _, id := range sortedKeys(localParent) {
		if !inCycle(out, id) {
			continue
		}
		if s, ok := server.Nodes[id]; ok {
			out.Nodes[id].ParentID = s.ParentID
		} else {
			out.Nodes[id].ParentID = nil
		}
	}
}

func inCycle(doc *domain.NormalizedDocument, id string) bool {
	cur := doc.Nodes[id]
	for steps := 0; cur != nil && cur.ParentID != nil && steps <= len(doc.Nodes); steps++ {
		if *cur.ParentID == id {
			return true
		}
		cur = doc.Nodes[*cur.ParentID]
	}
	return false
}

// chooseOrder picks the list to order by: local when only local reordered,
// server otherwise, local when the entity is new locally.
func chooseOrder(b, l, s []string, inBase, inLocal, inServer bool) []string {
	switch {
	case !inServer:
		return l
	case !inLocal || !inBase:
		return s
	}
	return pick(b, l, s)
}

func rebuildChildren(out, base, local, server *domain.NormalizedDocument) {
	children := make(map[string][]string)
	for _, id := range sortedKeys(out.Nodes) {
		n := out.Nodes[id]
		if n.ParentID != nil {
			children[*n.ParentID] = append(children[*n.ParentID], id)
		}
	}

	for _, id := range sortedKeys(out.Nodes) {
		n := out.Nodes[id]
		if !n.Kind.IsContainer() {
			n.ChildIDs = nil
			continue
		}
		b, inBase := base.Nodes[id]
		l, inLocal := local.Nodes[id]
		s, inServer := server.Nodes[id]
		order := chooseOrder(childIDs(b), childIDs(l), childIDs(s), inBase, inLocal, inServer)

		n.ChildIDs = arrange(children[id], order, childIDs(l))
	}
}

func rebuildQuestionLists(out, base, local, server *domain.NormalizedDocument) {
	owned := make(map[string][]string)
	for _, qid := range sortedKeys(out.Questions) {
		q := out.Questions[qid]
		owner, ok := out.Nodes[q.ServiceID]
		if !ok || owner.Kind != domain.NodeService {
			delete(out.Questions, qid)
			continue
		}
		owned[q.ServiceID] = append(owned[q.ServiceID], qid)
	}

	for _, id := range sortedKeys(out.Nodes) {
		n := out.Nodes[id]
		if n.Kind != domain.NodeService {
			n.QuestionIDs = nil
			continue
		}
		b, inBase := base.Nodes[id]
		l, inLocal := local.Nodes[id]
		s, inServer := server.Nodes[id]
		order := chooseOrder(questionIDs(b), questionIDs(l), questionIDs(s), inBase, inLocal, inServer)

		extra := owned[id]
		sort.SliceStable(extra, func(i, j int) bool {
			return out.Questions[extra[i]].Order < out.Questions[extra[j]].Order
		})
		n.QuestionIDs = arrange(extra, order, questionIDs(l))
	}
}

// arrange returns the members of set ordered by primary, then by secondary,
// then in the order given in set. Ids outside set are dropped.
func arrange(set, primary, secondary []string) []string {
	want := make(map[string]bool, len(set))
	for _, id := range set {
		want[id] = true
	}
	out := make([]string, 0, len(set))
	take := func(list []string) {
		for _, id := range list {
			if want[id] {
				out = append(out, id)
				delete(want, id)
			}
		}
	}
	take(primary)
	take(secondary)
	take(set)
	return out
}

// prune removes nodes that are no longer reachable from the root.
func prune(doc *domain.NormalizedDocument) {
	reachable := make(map[string]bool, len(doc.Nodes))
	var walk func(id string)
	walk = func(id string) {
		if reachable[id] {
			return
		}
		n, ok := doc.Nodes[id]
		if !ok {
			return
		}
		reachable[id] = true
		for _, c := range n.ChildIDs {
			walk(c)
		}
	}
	if root, ok := doc.Nodes[doc.RootID]; ok {
		root.ParentID = nil
		walk(doc.RootID)
	}
	for id := range doc.Nodes {
		if !reachable[id] {
			delete(doc.Nodes, id)
		}
	}
}

func childIDs(n *domain.NormalizedNode) []string {
	if n == nil {
		return nil
	}
	return n.ChildIDs
}

func questionIDs(n *domain.NormalizedNode) []string {
	if n == nil {
		return nil
	}
	return n.QuestionIDs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
