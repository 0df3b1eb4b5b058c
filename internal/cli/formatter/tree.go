package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeBlank  = "   "
)

// TreeOptions controls RenderServiceTree.
type TreeOptions struct {
	ShowIDs bool
	// Flagged node ids are marked, typically those with validation issues.
	Flagged map[string]bool
}

type treeLine struct {
	content string
	badge   string
}

// RenderServiceTree draws the tree with box-drawing connectors. Services get
// a right-aligned badge with their duration, price and question count.
func RenderServiceTree(root *domain.Node, opts TreeOptions) string {
	if root == nil {
		return Dim("(no service tree)") + "\n"
	}
	var lines []treeLine
	lines = append(lines, treeLine{content: nodeTitle(root, opts)})
	var walk func(n *domain.Node, prefix string)
	walk = func(n *domain.Node, prefix string) {
		for i, c := range n.Children {
			last := i == len(n.Children)-1
			connector, next := treeBranch, prefix+treePipe
			if last {
				connector, next = treeCorner, prefix+treeBlank
			}
			lines = append(lines, treeLine{
				content: StyleDim.Render(prefix+connector) + nodeTitle(c, opts),
				badge:   serviceBadge(c),
			})
			walk(c, next)
		}
	}
	walk(root, "")

	width := 0
	for _, l := range lines {
		width = max(width, lipgloss.Width(l.content))
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.content)
		if l.badge != "" {
			b.WriteString(strings.Repeat(" ", width-lipgloss.Width(l.content)+2))
			b.WriteString(l.badge)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func nodeTitle(n *domain.Node, opts TreeOptions) string {
	label := n.Label
	if strings.TrimSpace(label) == "" {
		label = "(unnamed)"
	}
	var title string
	switch n.Kind {
	case domain.NodeRoot:
		title = StyleHeader.Render(label)
	case domain.NodeGroup:
		title = StylePurple.Render("▸ " + label)
	default:
		title = StyleFg.Render(label)
	}
	if opts.Flagged[n.ID] {
		title = StyleRed.Render("✗ ") + title
	}
	if opts.ShowIDs {
		title += " " + Dim(n.ID)
	}
	return title
}

func serviceBadge(n *domain.Node) string {
	if n.Kind != domain.NodeService {
		return ""
	}
	parts := []string{FormatDuration(n.Duration)}
	if n.Price != nil {
		parts = append(parts, FormatPrice(*n.Price))
	}
	if buf := domain.IntOr(0, n.BufferTime); buf > 0 {
		parts = append(parts, fmt.Sprintf("+%dm", buf))
	}
	if q := len(n.AdditionalQuestions); q > 0 {
		parts = append(parts, fmt.Sprintf("%dq", q))
	}
	return StyleBlue.Render("[ " + strings.Join(parts, " · ") + " ]")
}
