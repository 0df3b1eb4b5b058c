package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/db"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/importer"
	"github.com/alexanderramin/bookable/internal/repository"
	"github.com/alexanderramin/bookable/internal/tree"
	"github.com/alexanderramin/bookable/internal/validation"
	"golang.org/x/sync/errgroup"
)

// validateAllLimit bounds concurrent form loads in ValidateAll.
const validateAllLimit = 4

type formService struct {
	forms     repository.FormRepo
	revisions repository.RevisionRepo
	uow       db.UnitOfWork
	ids       domain.IDGenerator
	observer  UseCaseObserver
}

func NewFormService(
	forms repository.FormRepo,
	revisions repository.RevisionRepo,
	uow db.UnitOfWork,
	observers ...UseCaseObserver,
) FormService {
	return &formService{
		forms:     forms,
		revisions: revisions,
		uow:       uow,
		ids:       domain.UUIDGenerator{},
		observer:  useCaseObserverOrNoop(observers),
	}
}

func (s *formService) Import(ctx context.Context, filePath string) (*ImportResult, error) {
	schema, err := importer.LoadFormImport(filePath)
	if err != nil {
		return nil, fmt.Errorf("loading import file: %w", err)
	}
	return s.ImportFromSchema(ctx, schema)
}

func (s *formService) ImportFromSchema(ctx context.Context, schema *importer.FormImport) (result *ImportResult, err error) {
	fields := map[string]any{"slug": schema.Slug}
	defer observe(ctx, s.observer, "import-form", fields)(&err)

	if errs := importer.ValidateFormImport(schema); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}

	form, err := importer.Convert(schema, s.ids)
	if err != nil {
		return nil, fmt.Errorf("converting import schema: %w", err)
	}
	report := validation.Validate(form)
	if !validation.CanSaveForm(form.IsEnabled, report) {
		return nil, fmt.Errorf("importing enabled form %q: %w", form.Slug, ErrInvalidForm)
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteFormRepo(tx).Create(ctx, form); err != nil {
			return err
		}
		return recordRevision(ctx, repository.NewSQLiteRevisionRepo(tx), form)
	})
	if err != nil {
		return nil, err
	}

	result = &ImportResult{
		Form:          form,
		GroupCount:    len(tree.GetNodesByKind(form.ServiceTree, domain.NodeGroup)),
		ServiceCount:  len(tree.GetNodesByKind(form.ServiceTree, domain.NodeService)),
		QuestionCount: len(form.BaseQuestions),
		Validation:    report,
	}
	for _, svc := range tree.GetNodesByKind(form.ServiceTree, domain.NodeService) {
		result.QuestionCount += len(svc.AdditionalQuestions)
	}
	fields["form_id"] = form.ID
	fields["services"] = result.ServiceCount
	return result, nil
}

func (s *formService) List(ctx context.Context, enabledOnly bool) ([]repository.FormSummary, error) {
	return s.forms.List(ctx, enabledOnly)
}

func (s *formService) Get(ctx context.Context, ref string) (*domain.FormConfig, error) {
	f, err := s.forms.GetByID(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		f, err = s.forms.GetBySlug(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("form %q: %w", ref, err)
	}
	return f, nil
}

func (s *formService) Validate(ctx context.Context, ref string) (*FormReport, error) {
	f, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &FormReport{Form: f, Result: validation.Validate(f)}, nil
}

// ValidateAll validates every stored form, in list order.
func (s *formService) ValidateAll(ctx context.Context) ([]FormReport, error) {
	summaries, err := s.forms.List(ctx, false)
	if err != nil {
		return nil, err
	}

	reports := make([]FormReport, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(validateAllLimit)
	for i, sum := range summaries {
		g.Go(func() error {
			f, err := s.forms.GetByID(gctx, sum.ID)
			if err != nil {
				return fmt.Errorf("loading form %s: %w", sum.Slug, err)
			}
			reports[i] = FormReport{Form: f, Result: validation.Validate(f)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *formService) SaveDocument(ctx context.Context, id string, doc autosave.Document) (saved *domain.FormConfig, err error) {
	fields := map[string]any{"form_id": id}
	defer observe(ctx, s.observer, "save-form", fields)(&err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txForms := repository.NewSQLiteFormRepo(tx)
		f, err := txForms.GetByID(ctx, id)
		if err != nil {
			return err
		}
		doc.Apply(f)
		if !validation.CanSaveForm(f.IsEnabled, validation.Validate(f)) {
			return fmt.Errorf("saving enabled form %q: %w", f.Slug, ErrInvalidForm)
		}
		f.UpdatedAt = time.Now().UTC()
		if err := txForms.Update(ctx, f, f.Version); err != nil {
			return err
		}
		saved = f
		return recordRevision(ctx, repository.NewSQLiteRevisionRepo(tx), f)
	})
	if err != nil {
		return nil, err
	}
	fields["version"] = saved.Version
	return saved, nil
}

func (s *formService) SetEnabled(ctx context.Context, ref string, enabled bool) (report *FormReport, err error) {
	fields := map[string]any{"ref": ref, "enabled": enabled}
	defer observe(ctx, s.observer, "set-form-enabled", fields)(&err)

	report, err = s.Validate(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !validation.CanSaveForm(enabled, report.Result) {
		return report, fmt.Errorf("publishing %q: %w", report.Form.Slug, ErrInvalidForm)
	}
	now := time.Now().UTC()
	if err := s.forms.SetEnabled(ctx, report.Form.ID, enabled, now); err != nil {
		return report, err
	}
	report.Form.IsEnabled = enabled
	report.Form.UpdatedAt = now
	if enabled {
		report.Form.PublishedAt = &now
	}
	return report, nil
}

func (s *formService) Revisions(ctx context.Context, ref string) ([]*domain.FormRevision, error) {
	f, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.revisions.ListByForm(ctx, f.ID)
}

// Restore saves the content of an earlier revision as a new version.
func (s *formService) Restore(ctx context.Context, ref string, version int) (*domain.FormConfig, error) {
	f, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	rev, err := s.revisions.Get(ctx, f.ID, version)
	if err != nil {
		return nil, err
	}
	return s.SaveDocument(ctx, f.ID, autosave.DocumentFromForm(rev.Form))
}

func (s *formService) Delete(ctx context.Context, ref string) error {
	f, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	return s.forms.Delete(ctx, f.ID)
}

func recordRevision(ctx context.Context, revs repository.RevisionRepo, f *domain.FormConfig) error {
	hash, err := autosave.Hash(autosave.DocumentFromForm(f))
	if err != nil {
		return err
	}
	snapshot := *f
	return revs.Create(ctx, &domain.FormRevision{
		FormID:    f.ID,
		Version:   f.Version,
		Form:      &snapshot,
		Hash:      hash,
		CreatedAt: f.UpdatedAt,
	})
}

func formatValidationErrors(errs []error) error {
	msg := fmt.Sprintf("import validation failed (%d errors):", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
