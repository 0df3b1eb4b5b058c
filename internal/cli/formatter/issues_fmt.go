package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/bookable/internal/normalize"
	"github.com/alexanderramin/bookable/internal/validation"
	"github.com/charmbracelet/lipgloss"
)

// ValidationSummary is the one-line verdict plus per-section error counts.
func ValidationSummary(res validation.Result) string {
	var b strings.Builder
	switch {
	case res.IsValid && len(res.Warnings) == 0:
		b.WriteString(StyleGreen.Render("✔ Ready to publish") + "\n")
	case res.IsValid:
		b.WriteString(StyleGreen.Render("✔ Ready to publish") + Dim(fmt.Sprintf(" (%d warnings)", len(res.Warnings))) + "\n")
	default:
		b.WriteString(StyleRed.Render(fmt.Sprintf("✗ %d errors", len(res.Issues))) + "\n")
		for _, s := range validation.AllSections {
			if sum := res.Sections[s]; sum.HasErrors {
				fmt.Fprintf(&b, "  %s %d\n", Dim(fmt.Sprintf("%-10s", s)), sum.ErrorCount)
			}
		}
	}
	return b.String()
}

// FormatValidation lists every issue and warning with the editing surface
// it navigates to.
func FormatValidation(res validation.Result) string {
	var b strings.Builder
	b.WriteString(ValidationSummary(res))
	if len(res.Issues) > 0 {
		b.WriteString("\n" + Header("Errors") + "\n")
		writeIssues(&b, res.Issues, StyleRed)
	}
	if len(res.Warnings) > 0 {
		b.WriteString("\n" + Header("Warnings") + "\n")
		writeIssues(&b, res.Warnings, StyleYellow)
	}
	return b.String()
}

func writeIssues(b *strings.Builder, issues []validation.Issue, style lipgloss.Style) {
	for _, i := range issues {
		fmt.Fprintf(b, "  %s %s\n", style.Render(string(i.Code)), i.Message)
		if i.Path != "" {
			fmt.Fprintf(b, "    %s %s\n", Dim("at"), i.Path)
		}
		target := validation.IssueNavigationPath(i)
		dest := string(target.Level)
		if target.NodeID != "" {
			dest += " " + target.NodeID
		}
		fmt.Fprintf(b, "    %s %s\n", Dim("fix in"), dest)
	}
}

// FormatIntegrity renders a normalized document integrity report.
func FormatIntegrity(r normalize.Report) string {
	if r.IsValid {
		return StyleGreen.Render("✔ Document is consistent") + "\n"
	}
	var b strings.Builder
	b.WriteString(StyleRed.Render(fmt.Sprintf("✗ %d integrity errors", len(r.Errors))) + "\n")
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	return b.String()
}
