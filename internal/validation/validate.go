// Package validation checks a form against the business rules that decide
// whether it can go live. Issues are returned as data, never as errors.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alexanderramin/bookable/internal/domain"
)

var (
	slugChars  = regexp.MustCompile(`^[a-z0-9-]+$`)
	hexColor   = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	validTheme = map[domain.Theme]bool{domain.ThemeLight: true, domain.ThemeDark: true}
	validUnits = map[domain.NoticeUnit]bool{domain.NoticeMinutes: true, domain.NoticeHours: true, domain.NoticeDays: true}
)

const (
	slugMinLen = 3
	slugMaxLen = 50

	pathSeparator = " > "
)

// Issue is a single rule violation.
type Issue struct {
	Code    Code    `json:"code"`
	Message string  `json:"message"`
	Section Section `json:"section"`
	Path    string  `json:"path,omitempty"`
	NodeID  string  `json:"nodeId,omitempty"`
}

// SectionSummary aggregates the errors that landed in one section.
type SectionSummary struct {
	HasErrors  bool `json:"hasErrors"`
	ErrorCount int  `json:"errorCount"`
}

// Result is the outcome of Validate. Warnings never affect IsValid or
// CanPublish and are not counted in Sections.
type Result struct {
	IsValid    bool                       `json:"isValid"`
	CanPublish bool                       `json:"canPublish"`
	Issues     []Issue                    `json:"issues"`
	Warnings   []Issue                    `json:"warnings"`
	Sections   map[Section]SectionSummary `json:"sections"`
}

type collector struct {
	issues   []Issue
	warnings []Issue
}

func (c *collector) add(i Issue) { c.issues = append(c.issues, i) }

func (c *collector) warn(i Issue) { c.warnings = append(c.warnings, i) }

// Validate runs every rule against the form: metadata, tree structure and
// nodes, base questions, then branding. The order of the returned issues is
// fixed for a given input.
func Validate(form *domain.FormConfig) Result {
	c := &collector{}
	if form == nil {
		c.add(Issue{Code: CodeTreeMissing, Message: "form is empty", Section: SectionServices})
		return c.result()
	}

	validateMetadata(c, form.InternalName, form.Slug)
	validateTree(c, form.ServiceTree)
	validateQuestions(c, form.BaseQuestions, SectionQuestions, "", "")
	validateBranding(c, form.Theme, form.PrimaryColor)

	return c.result()
}

// CanSaveForm reports whether a form may be persisted. Drafts can always be
// saved; live forms only when they are valid.
func CanSaveForm(isEnabled bool, result Result) bool {
	return !isEnabled || result.IsValid
}

func (c *collector) result() Result {
	sections := make(map[Section]SectionSummary, len(AllSections))
	for _, s := range AllSections {
		sections[s] = SectionSummary{}
	}
	for _, i := range c.issues {
		sum := sections[i.Section]
		sum.ErrorCount++
		sum.HasErrors = true
		sections[i.Section] = sum
	}
	ok := len(c.issues) == 0
	return Result{
		IsValid:    ok,
		CanPublish: ok,
		Issues:     c.issues,
		Warnings:   c.warnings,
		Sections:   sections,
	}
}

func validateMetadata(c *collector, name, slug string) {
	if strings.TrimSpace(name) == "" {
		c.add(Issue{Code: CodeNameRequired, Message: "internal name is required", Section: SectionMetadata})
	}

	if strings.TrimSpace(slug) == "" {
		c.add(Issue{Code: CodeSlugRequired, Message: "slug is required", Section: SectionMetadata})
		return
	}
	if !slugChars.MatchString(slug) {
		c.add(Issue{Code: CodeSlugInvalidChars, Message: fmt.Sprintf("slug %q may only contain lowercase letters, digits and hyphens", slug), Section: SectionMetadata})
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		c.add(Issue{Code: CodeSlugEdgeHyphen, Message: "slug cannot start or end with a hyphen", Section: SectionMetadata})
	}
	if strings.Contains(slug, "--") {
		c.add(Issue{Code: CodeSlugDoubleHyphen, Message: "slug cannot contain consecutive hyphens", Section: SectionMetadata})
	}
	if n := len(slug); n < slugMinLen || n > slugMaxLen {
		c.add(Issue{Code: CodeSlugLength, Message: fmt.Sprintf("slug must be between %d and %d characters", slugMinLen, slugMaxLen), Section: SectionMetadata})
	}
}

func validateTree(c *collector, root *domain.Node) {
	if root == nil {
		c.add(Issue{Code: CodeTreeMissing, Message: "service tree is missing", Section: SectionServices})
		return
	}
	if !hasService(root) {
		c.add(Issue{Code: CodeTreeNoServices, Message: "add at least one service", Section: SectionServices})
	}

	seen := map[string]bool{root.ID: true}
	for _, child := range root.Children {
		validateNode(c, child, nil, seen)
	}
}

func hasService(n *domain.Node) bool {
	if n.Kind == domain.NodeService {
		return true
	}
	for _, c := range n.Children {
		if hasService(c) {
			return true
		}
	}
	return false
}

// validateNode walks one subtree. ancestors holds the display labels of the
// non-root nodes above n; seen is shared across the whole walk so the second
// occurrence of an id is the one reported.
func validateNode(c *collector, n *domain.Node, ancestors []string, seen map[string]bool) {
	path := append(append([]string(nil), ancestors...), displayLabel(n))
	p := strings.Join(path, pathSeparator)

	if n.ID != "" {
		if seen[n.ID] {
			c.add(Issue{Code: CodeDuplicateNodeID, Message: fmt.Sprintf("node id %q is used more than once", n.ID), Section: SectionServices, Path: p, NodeID: n.ID})
		}
		seen[n.ID] = true
	}

	switch n.Kind {
	case domain.NodeGroup:
		validateGroup(c, n, p)
	case domain.NodeService:
		validateService(c, n, p)
	default:
		c.add(Issue{Code: CodeNodeInvalidKind, Message: fmt.Sprintf("node kind %q is not allowed here", n.Kind), Section: SectionServices, Path: p, NodeID: n.ID})
	}

	for _, child := range n.Children {
		validateNode(c, child, path, seen)
	}
}

func displayLabel(n *domain.Node) string {
	if strings.TrimSpace(n.Label) != "" {
		return n.Label
	}
	if n.Kind == domain.NodeService {
		return "Unnamed Service"
	}
	return "Unnamed Group"
}

func validateGroup(c *collector, n *domain.Node, path string) {
	if strings.TrimSpace(n.Label) == "" {
		c.add(Issue{Code: CodeGroupNoLabel, Message: "group name is required", Section: SectionServices, Path: path, NodeID: n.ID})
	}
	if len(n.Children) == 0 {
		c.warn(Issue{Code: CodeGroupEmpty, Message: "group has no services", Section: SectionServices, Path: path, NodeID: n.ID})
	}
}

func validateService(c *collector, n *domain.Node, path string) {
	issue := func(code Code, format string, args ...any) Issue {
		return Issue{Code: code, Message: fmt.Sprintf(format, args...), Section: SectionServices, Path: path, NodeID: n.ID}
	}

	if strings.TrimSpace(n.Label) == "" {
		c.add(issue(CodeServiceNoLabel, "service name is required"))
	}
	if len(n.AssignedEmployeeIDs) == 0 {
		c.add(issue(CodeServiceNoEmployees, "assign at least one employee"))
	}
	if n.Duration == nil || *n.Duration <= 0 {
		c.add(issue(CodeServiceInvalidDuration, "duration must be greater than 0"))
	}
	if n.Price != nil && *n.Price < 0 {
		c.add(issue(CodeServiceNegativePrice, "price cannot be negative"))
	}
	if n.BufferTime != nil && *n.BufferTime < 0 {
		c.add(issue(CodeServiceNegativeBuffer, "buffer time cannot be negative"))
	}
	if n.Interval != nil {
		if *n.Interval <= 0 {
			c.add(issue(CodeServiceInvalidInterval, "booking interval must be greater than 0"))
		} else if n.Duration != nil && *n.Interval > *n.Duration {
			c.add(issue(CodeServiceIntervalTooLong, "booking interval (%d) cannot exceed duration (%d)", *n.Interval, *n.Duration))
		}
	}
	if n.DefaultEmployeeID != "" && !containsString(n.AssignedEmployeeIDs, n.DefaultEmployeeID) {
		c.add(issue(CodeServiceDefaultNotAssigned, "default employee %q is not assigned to this service", n.DefaultEmployeeID))
	}
	if mn := n.MinimumNotice; mn != nil && (mn.Value < 0 || !validUnits[mn.Unit]) {
		c.add(issue(CodeServiceInvalidNotice, "minimum notice must be a non-negative number of minutes, hours or days"))
	}
	if w := n.SchedulingWindow; w != nil {
		if msg := checkWindow(w); msg != "" {
			c.add(issue(CodeServiceInvalidWindow, "%s", msg))
		}
	}

	for i, rule := range n.AvailabilityRules {
		if msg := checkRule(rule); msg != "" {
			c.add(issue(CodeServiceInvalidAvailability, "availability rule %d: %s", i+1, msg))
		}
	}
	for _, b := range n.BlockedTimes {
		if _, err := time.Parse(time.DateOnly, b.Date); err != nil {
			c.add(issue(CodeServiceInvalidBlockedTime, "blocked time date %q must be YYYY-MM-DD", b.Date))
			continue
		}
		for _, tr := range b.TimeRanges {
			if msg := checkRange(tr); msg != "" {
				c.add(issue(CodeServiceInvalidBlockedTime, "blocked time on %s: %s", b.Date, msg))
			}
		}
	}
	for _, d := range n.UnavailableDates {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			c.add(issue(CodeServiceInvalidDate, "unavailable date %q must be YYYY-MM-DD", d))
		}
	}

	if len(n.AvailabilityRules) == 0 {
		c.warn(issue(CodeServiceNoAvailability, "service has no availability rules"))
	}

	validateQuestions(c, n.AdditionalQuestions, SectionServices, path, n.ID)
}

func checkWindow(w *domain.SchedulingWindow) string {
	switch w.Kind {
	case domain.WindowIndefinite:
		return ""
	case domain.WindowRolling:
		if w.RollingDays == nil || *w.RollingDays <= 0 {
			return "rolling window needs a positive number of days"
		}
		return ""
	case domain.WindowFixed:
		start, err := time.Parse(time.DateOnly, w.StartDate)
		if err != nil {
			return "fixed window needs a start date (YYYY-MM-DD)"
		}
		end, err := time.Parse(time.DateOnly, w.EndDate)
		if err != nil {
			return "fixed window needs an end date (YYYY-MM-DD)"
		}
		if end.Before(start) {
			return "fixed window ends before it starts"
		}
		return ""
	}
	return fmt.Sprintf("unknown scheduling window type %q", w.Kind)
}

func checkRule(r domain.AvailabilityRule) string {
	if len(r.Days) == 0 {
		return "no days selected"
	}
	for _, d := range r.Days {
		if d < 0 || d > 6 {
			return fmt.Sprintf("day %d is out of range 0-6", d)
		}
	}
	if len(r.TimeRanges) == 0 {
		return "no time ranges"
	}
	for _, tr := range r.TimeRanges {
		if msg := checkRange(tr); msg != "" {
			return msg
		}
	}
	return ""
}

func checkRange(tr domain.TimeRange) string {
	start, err := time.Parse("15:04", tr.Start)
	if err != nil {
		return fmt.Sprintf("start %q must be HH:MM", tr.Start)
	}
	end, err := time.Parse("15:04", tr.End)
	if err != nil {
		return fmt.Sprintf("end %q must be HH:MM", tr.End)
	}
	if !end.After(start) {
		return fmt.Sprintf("%s-%s ends before it starts", tr.Start, tr.End)
	}
	return ""
}

// validateQuestions applies the question rules to one list. Base questions
// report in the questions section; a service's additional questions report
// under services with the service's path and id.
func validateQuestions(c *collector, qs []domain.Question, section Section, path, nodeID string) {
	names := make(map[string]bool, len(qs))
	ids := make(map[string]bool, len(qs))

	for i, q := range qs {
		ref := questionRef(q, i)
		issue := func(code Code, format string, args ...any) Issue {
			return Issue{Code: code, Message: ref + ": " + fmt.Sprintf(format, args...), Section: section, Path: path, NodeID: nodeID}
		}

		if strings.TrimSpace(q.Label) == "" {
			c.add(issue(CodeQuestionNoLabel, "label is required"))
		}
		if strings.TrimSpace(q.Name) == "" {
			c.add(issue(CodeQuestionNoName, "name is required"))
		} else {
			if names[q.Name] {
				c.add(issue(CodeQuestionDuplicateName, "name %q is used by another question", q.Name))
			}
			names[q.Name] = true
		}
		if q.ID != "" {
			if ids[q.ID] {
				c.add(issue(CodeQuestionDuplicateID, "id %q is used by another question", q.ID))
			}
			ids[q.ID] = true
		}
		if !domain.ValidQuestionTypes[q.Type] {
			c.add(issue(CodeQuestionUnknownType, "unknown type %q", q.Type))
			continue
		}
		if !q.Type.HasOptions() {
			continue
		}
		if len(q.Options) == 0 {
			c.add(issue(CodeQuestionNoOptions, "%s questions need at least one option", q.Type))
			continue
		}
		values := make(map[string]bool, len(q.Options))
		for j, opt := range q.Options {
			if strings.TrimSpace(opt.Value) == "" || strings.TrimSpace(opt.Label) == "" {
				c.add(issue(CodeQuestionBlankOption, "option %d needs both a value and a label", j+1))
				continue
			}
			if values[opt.Value] {
				c.add(issue(CodeQuestionDuplicateOption, "option value %q appears more than once", opt.Value))
			}
			values[opt.Value] = true
		}
	}
}

func questionRef(q domain.Question, i int) string {
	switch {
	case strings.TrimSpace(q.Label) != "":
		return fmt.Sprintf("question %q", q.Label)
	case strings.TrimSpace(q.Name) != "":
		return fmt.Sprintf("question %q", q.Name)
	}
	return fmt.Sprintf("question %d", i+1)
}

func validateBranding(c *collector, theme domain.Theme, color string) {
	if theme != "" && !validTheme[theme] {
		c.add(Issue{Code: CodeInvalidTheme, Message: fmt.Sprintf("theme must be light or dark, got %q", theme), Section: SectionBranding})
	}
	if color != "" && !hexColor.MatchString(color) {
		c.add(Issue{Code: CodeInvalidPrimaryColor, Message: fmt.Sprintf("primary color %q must be a hex color like #3366ff", color), Section: SectionBranding})
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
