package service

import (
	"context"
	"errors"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/importer"
	"github.com/alexanderramin/bookable/internal/repository"
	"github.com/alexanderramin/bookable/internal/validation"
)

// ErrInvalidForm means an enabled form would be left with validation errors.
var ErrInvalidForm = errors.New("form has validation errors")

// ImportResult holds the outcome of a form import.
type ImportResult struct {
	Form          *domain.FormConfig
	GroupCount    int
	ServiceCount  int
	QuestionCount int
	Validation    validation.Result
}

// FormReport pairs a form with its validation result.
type FormReport struct {
	Form   *domain.FormConfig
	Result validation.Result
}

type FormService interface {
	Import(ctx context.Context, filePath string) (*ImportResult, error)
	ImportFromSchema(ctx context.Context, schema *importer.FormImport) (*ImportResult, error)
	List(ctx context.Context, enabledOnly bool) ([]repository.FormSummary, error)
	// Get resolves ref as an id first, then as a slug.
	Get(ctx context.Context, ref string) (*domain.FormConfig, error)
	Validate(ctx context.Context, ref string) (*FormReport, error)
	ValidateAll(ctx context.Context) ([]FormReport, error)
	// SaveDocument writes the watched fields of a form as a new version and
	// records a revision. It is the autosave persistence target.
	SaveDocument(ctx context.Context, id string, doc autosave.Document) (*domain.FormConfig, error)
	// SetEnabled publishes or unpublishes a form. Publishing is refused with
	// the validation result when the form has errors.
	SetEnabled(ctx context.Context, ref string, enabled bool) (*FormReport, error)
	Revisions(ctx context.Context, ref string) ([]*domain.FormRevision, error)
	Restore(ctx context.Context, ref string, version int) (*domain.FormConfig, error)
	Delete(ctx context.Context, ref string) error
}

// Fetcher loads the server's current copy of a form.
type Fetcher interface {
	Fetch(ctx context.Context) (*domain.FormConfig, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*domain.FormConfig, error)

func (f FetcherFunc) Fetch(ctx context.Context) (*domain.FormConfig, error) { return f(ctx) }
