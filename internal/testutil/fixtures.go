package testutil

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/google/uuid"
)

// Node options
type NodeOption func(*domain.Node)

func WithNodeID(id string) NodeOption {
	return func(n *domain.Node) {
		n.ID = id
	}
}

func WithDescription(d string) NodeOption {
	return func(n *domain.Node) {
		n.Description = d
	}
}

func WithDuration(min int) NodeOption {
	return func(n *domain.Node) {
		n.Duration = &min
	}
}

func WithoutDuration() NodeOption {
	return func(n *domain.Node) {
		n.Duration = nil
	}
}

func WithPrice(p float64) NodeOption {
	return func(n *domain.Node) {
		n.Price = &p
	}
}

func WithInterval(min int) NodeOption {
	return func(n *domain.Node) {
		n.Interval = &min
	}
}

func WithBufferTime(min int) NodeOption {
	return func(n *domain.Node) {
		n.BufferTime = &min
	}
}

func WithEmployees(ids ...string) NodeOption {
	return func(n *domain.Node) {
		n.AssignedEmployeeIDs = ids
	}
}

func WithDefaultEmployee(id string) NodeOption {
	return func(n *domain.Node) {
		n.DefaultEmployeeID = id
	}
}

func WithAvailability(rules ...domain.AvailabilityRule) NodeOption {
	return func(n *domain.Node) {
		n.AvailabilityRules = rules
	}
}

func WithQuestions(qs ...domain.Question) NodeOption {
	return func(n *domain.Node) {
		n.AdditionalQuestions = qs
	}
}

// WeekdayRule opens 09:00-17:00 Monday to Friday.
func WeekdayRule() domain.AvailabilityRule {
	return domain.AvailabilityRule{
		Days:       []int{1, 2, 3, 4, 5},
		TimeRanges: []domain.TimeRange{{Start: "09:00", End: "17:00"}},
	}
}

// NewTestService returns a bookable service: 30 minutes, one employee and
// weekday availability unless overridden.
func NewTestService(label string, opts ...NodeOption) *domain.Node {
	duration := 30
	n := &domain.Node{
		ID:    uuid.New().String(),
		Kind:  domain.NodeService,
		Label: label,
		ServiceDetails: domain.ServiceDetails{
			Duration:            &duration,
			AssignedEmployeeIDs: []string{"emp-1"},
			AvailabilityRules:   []domain.AvailabilityRule{WeekdayRule()},
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func NewTestGroup(label string, children []*domain.Node, opts ...NodeOption) *domain.Node {
	if children == nil {
		children = []*domain.Node{}
	}
	n := &domain.Node{
		ID:       uuid.New().String(),
		Kind:     domain.NodeGroup,
		Label:    label,
		Children: children,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func NewTestRoot(children ...*domain.Node) *domain.Node {
	if children == nil {
		children = []*domain.Node{}
	}
	return &domain.Node{
		ID:       "root",
		Kind:     domain.NodeRoot,
		Label:    "Services",
		Children: children,
	}
}

// Question options
type QuestionOption func(*domain.Question)

func WithQuestionID(id string) QuestionOption {
	return func(q *domain.Question) {
		q.ID = id
	}
}

func WithQuestionType(t domain.QuestionType) QuestionOption {
	return func(q *domain.Question) {
		q.Type = t
	}
}

func WithOptions(values ...string) QuestionOption {
	return func(q *domain.Question) {
		q.Options = nil
		for _, v := range values {
			q.Options = append(q.Options, domain.QuestionOption{Value: v, Label: v})
		}
	}
}

func WithLabel(label string) QuestionOption {
	return func(q *domain.Question) {
		q.Label = label
	}
}

func Required() QuestionOption {
	return func(q *domain.Question) {
		q.Required = true
	}
}

func NewTestQuestion(name string, opts ...QuestionOption) domain.Question {
	q := domain.Question{
		ID:    uuid.New().String(),
		Name:  name,
		Label: name,
		Type:  domain.QuestionShortText,
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Form options
type FormOption func(*domain.FormConfig)

func WithSlug(slug string) FormOption {
	return func(f *domain.FormConfig) {
		f.Slug = slug
	}
}

func WithTree(root *domain.Node) FormOption {
	return func(f *domain.FormConfig) {
		f.ServiceTree = root
	}
}

func WithBaseQuestions(qs ...domain.Question) FormOption {
	return func(f *domain.FormConfig) {
		f.BaseQuestions = qs
	}
}

func WithTheme(t domain.Theme) FormOption {
	return func(f *domain.FormConfig) {
		f.Theme = t
	}
}

func WithPrimaryColor(c string) FormOption {
	return func(f *domain.FormConfig) {
		f.PrimaryColor = c
	}
}

func Enabled() FormOption {
	return func(f *domain.FormConfig) {
		f.IsEnabled = true
	}
}

// NewTestForm returns a publishable form with a single group holding one
// service, unless overridden.
func NewTestForm(name string, opts ...FormOption) *domain.FormConfig {
	now := time.Now().UTC()
	f := &domain.FormConfig{
		ID:           uuid.New().String(),
		InternalName: name,
		Slug:         "test-form",
		ServiceTree: NewTestRoot(
			NewTestGroup("Haircuts", []*domain.Node{NewTestService("Men's Cut")}),
		),
		BaseQuestions: []domain.Question{NewTestQuestion("email", WithLabel("Email"))},
		Theme:         domain.ThemeLight,
		PrimaryColor:  "#3366ff",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SequentialIDs returns a generator yielding prefix-1, prefix-2, ...
func SequentialIDs(prefix string) domain.IDGenerator {
	var n atomic.Int64
	return domain.IDGeneratorFunc(func() string {
		return prefix + "-" + strconv.FormatInt(n.Add(1), 10)
	})
}
