package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/repository"
	"github.com/alexanderramin/bookable/internal/validation"
)

// FormatFormList renders the form summaries as a table.
func FormatFormList(forms []repository.FormSummary) string {
	if len(forms) == 0 {
		return Dim("No forms. Import one with `bookable form import FILE`.") + "\n"
	}
	rows := make([][]string, 0, len(forms))
	for _, f := range forms {
		rows = append(rows, []string{
			TruncID(f.ID),
			f.Slug,
			f.InternalName,
			EnabledPill(f.IsEnabled),
			fmt.Sprintf("v%d", f.Version),
			HumanTimestamp(f.UpdatedAt),
		})
	}
	return RenderTable([]string{"ID", "SLUG", "NAME", "STATUS", "VERSION", "UPDATED"}, rows)
}

// FormatFormDetail renders a form's metadata, its tree and a validation
// summary in a box.
func FormatFormDetail(f *domain.FormConfig, res validation.Result, showIDs bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\n", Bold(f.InternalName), EnabledPill(f.IsEnabled))
	field := func(label, value string) {
		fmt.Fprintf(&b, "  %s  %s\n", Dim(fmt.Sprintf("%-8s", label)), value)
	}
	field("ID", f.ID)
	field("SLUG", f.Slug)
	field("VERSION", fmt.Sprintf("%d", f.Version))
	if f.Theme != "" || f.PrimaryColor != "" {
		field("THEME", strings.TrimSpace(string(f.Theme)+" "+f.PrimaryColor))
	}
	if f.PublishedAt != nil {
		field("PUBLISHED", HumanTimestamp(*f.PublishedAt))
	}
	field("UPDATED", HumanTimestamp(f.UpdatedAt))

	b.WriteString("\n" + Header("Services") + "\n")
	b.WriteString(RenderServiceTree(f.ServiceTree, TreeOptions{ShowIDs: showIDs, Flagged: flaggedNodes(res)}))

	if len(f.BaseQuestions) > 0 {
		b.WriteString("\n" + Header("Questions") + "\n")
		for _, q := range f.BaseQuestions {
			req := ""
			if q.Required {
				req = StyleYellow.Render(" *")
			}
			fmt.Fprintf(&b, "  %s%s  %s\n", q.Label, req, Dim(string(q.Type)))
		}
	}

	b.WriteString("\n" + ValidationSummary(res))
	return RenderBox("Form", b.String())
}

func flaggedNodes(res validation.Result) map[string]bool {
	out := make(map[string]bool)
	for _, i := range res.Issues {
		if i.NodeID != "" {
			out[i.NodeID] = true
		}
	}
	return out
}

// FormatRevisions lists a form's saved versions, newest first.
func FormatRevisions(revs []*domain.FormRevision) string {
	if len(revs) == 0 {
		return Dim("No revisions.") + "\n"
	}
	rows := make([][]string, 0, len(revs))
	for _, r := range revs {
		name := ""
		if r.Form != nil {
			name = r.Form.InternalName
		}
		rows = append(rows, []string{
			fmt.Sprintf("v%d", r.Version),
			name,
			Dim(r.Hash[:min(12, len(r.Hash))]),
			HumanTimestamp(r.CreatedAt),
		})
	}
	return RenderTable([]string{"VERSION", "NAME", "HASH", "SAVED"}, rows)
}
