package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/bookable/internal/db"
	"github.com/alexanderramin/bookable/internal/domain"
)

const timeLayout = time.RFC3339Nano

// SQLiteFormRepo implements FormRepo. The service tree and base questions
// are stored as JSON documents in the form row.
type SQLiteFormRepo struct {
	db db.DBTX
}

// NewSQLiteFormRepo creates a new SQLiteFormRepo.
func NewSQLiteFormRepo(conn db.DBTX) *SQLiteFormRepo {
	return &SQLiteFormRepo{db: conn}
}

const formColumns = `id, internal_name, slug, service_tree, base_questions, theme, primary_color,
	is_enabled, version, published_at, created_at, updated_at`

func (r *SQLiteFormRepo) Create(ctx context.Context, f *domain.FormConfig) error {
	treeJSON, err := encodeJSON("service tree", f.ServiceTree)
	if err != nil {
		return err
	}
	questionsJSON, err := encodeJSON("base questions", f.BaseQuestions)
	if err != nil {
		return err
	}
	if f.Version == 0 {
		f.Version = 1
	}

	query := `INSERT INTO forms (` + formColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		f.ID,
		f.InternalName,
		f.Slug,
		treeJSON,
		questionsJSON,
		string(f.Theme),
		f.PrimaryColor,
		boolToInt(f.IsEnabled),
		f.Version,
		nullableTimeToString(f.PublishedAt, timeLayout),
		f.CreatedAt.UTC().Format(timeLayout),
		f.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting form: slug %q is already in use", f.Slug)
		}
		return fmt.Errorf("inserting form: %w", err)
	}
	return nil
}

func (r *SQLiteFormRepo) GetByID(ctx context.Context, id string) (*domain.FormConfig, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE id = ?`
	return r.scanForm(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteFormRepo) GetBySlug(ctx context.Context, slug string) (*domain.FormConfig, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE slug = ?`
	return r.scanForm(r.db.QueryRowContext(ctx, query, strings.ToLower(slug)))
}

func (r *SQLiteFormRepo) List(ctx context.Context, enabledOnly bool) ([]FormSummary, error) {
	query := `SELECT id, internal_name, slug, is_enabled, version, updated_at FROM forms`
	if enabledOnly {
		query += ` WHERE is_enabled = 1`
	}
	query += ` ORDER BY internal_name, slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing forms: %w", err)
	}
	defer rows.Close()

	var forms []FormSummary
	for rows.Next() {
		var s FormSummary
		var enabled int
		var updatedAt string
		if err := rows.Scan(&s.ID, &s.InternalName, &s.Slug, &enabled, &s.Version, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning form row: %w", err)
		}
		s.IsEnabled = intToBool(enabled)
		if s.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		forms = append(forms, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating forms: %w", err)
	}
	return forms, nil
}

func (r *SQLiteFormRepo) Update(ctx context.Context, f *domain.FormConfig, expectedVersion int) error {
	treeJSON, err := encodeJSON("service tree", f.ServiceTree)
	if err != nil {
		return err
	}
	questionsJSON, err := encodeJSON("base questions", f.BaseQuestions)
	if err != nil {
		return err
	}

	query := `UPDATE forms SET internal_name = ?, slug = ?, service_tree = ?, base_questions = ?,
		theme = ?, primary_color = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		f.InternalName,
		f.Slug,
		treeJSON,
		questionsJSON,
		string(f.Theme),
		f.PrimaryColor,
		f.UpdatedAt.UTC().Format(timeLayout),
		f.ID,
		expectedVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("updating form: slug %q is already in use", f.Slug)
		}
		return fmt.Errorf("updating form: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating form: %w", err)
	}
	if n == 0 {
		return r.missOrConflict(ctx, f.ID, expectedVersion)
	}
	f.Version = expectedVersion + 1
	return nil
}

// SetEnabled toggles public availability. Enabling records at as the
// publish time; disabling keeps the last one.
func (r *SQLiteFormRepo) SetEnabled(ctx context.Context, id string, enabled bool, at time.Time) error {
	stamp := at.UTC().Format(timeLayout)
	query := `UPDATE forms SET is_enabled = ?, updated_at = ?,
		published_at = CASE WHEN ? = 1 THEN ? ELSE published_at END
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, boolToInt(enabled), stamp, boolToInt(enabled), stamp, id)
	if err != nil {
		return fmt.Errorf("setting form enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("form %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteFormRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("form %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteFormRepo) missOrConflict(ctx context.Context, id string, expected int) error {
	var current int
	err := r.db.QueryRowContext(ctx, `SELECT version FROM forms WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("form %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking form version: %w", err)
	}
	return fmt.Errorf("form %s is at version %d, expected %d: %w", id, current, expected, ErrVersionConflict)
}

func (r *SQLiteFormRepo) scanForm(row rowScanner) (*domain.FormConfig, error) {
	var f domain.FormConfig
	var treeJSON, questionsJSON, theme, createdAt, updatedAt string
	var enabled int
	var publishedAt sql.NullString

	err := row.Scan(
		&f.ID, &f.InternalName, &f.Slug,
		&treeJSON, &questionsJSON,
		&theme, &f.PrimaryColor,
		&enabled, &f.Version, &publishedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("form: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning form: %w", err)
	}

	f.Theme = domain.Theme(theme)
	f.IsEnabled = intToBool(enabled)
	f.PublishedAt = parseNullableTime(publishedAt, timeLayout)

	if err := decodeJSON("service tree", treeJSON, &f.ServiceTree); err != nil {
		return nil, err
	}
	fillContainers(f.ServiceTree)
	if err := decodeJSON("base questions", questionsJSON, &f.BaseQuestions); err != nil {
		return nil, err
	}

	var parseErr error
	if f.CreatedAt, parseErr = time.Parse(timeLayout, createdAt); parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	if f.UpdatedAt, parseErr = time.Parse(timeLayout, updatedAt); parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &f, nil
}

// fillContainers restores empty child lists dropped by omitempty so a
// loaded tree compares equal to the one saved.
func fillContainers(n *domain.Node) {
	if n == nil {
		return
	}
	if n.Children == nil && n.Kind.IsContainer() {
		n.Children = []*domain.Node{}
	}
	for _, c := range n.Children {
		fillContainers(c)
	}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
