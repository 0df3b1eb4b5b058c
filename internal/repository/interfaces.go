package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/bookable/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means the row changed since the caller loaded it.
	ErrVersionConflict = errors.New("version conflict")
)

// FormSummary is the list view of a form, without its tree.
type FormSummary struct {
	ID           string
	InternalName string
	Slug         string
	IsEnabled    bool
	Version      int
	UpdatedAt    time.Time
}

type FormRepo interface {
	Create(ctx context.Context, f *domain.FormConfig) error
	GetByID(ctx context.Context, id string) (*domain.FormConfig, error)
	GetBySlug(ctx context.Context, slug string) (*domain.FormConfig, error)
	List(ctx context.Context, enabledOnly bool) ([]FormSummary, error)
	// Update writes f if the stored version still equals expectedVersion and
	// bumps f.Version on success.
	Update(ctx context.Context, f *domain.FormConfig, expectedVersion int) error
	SetEnabled(ctx context.Context, id string, enabled bool, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type RevisionRepo interface {
	Create(ctx context.Context, r *domain.FormRevision) error
	Get(ctx context.Context, formID string, version int) (*domain.FormRevision, error)
	ListByForm(ctx context.Context, formID string) ([]*domain.FormRevision, error)
}
