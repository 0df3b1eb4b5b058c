package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/bookable/internal/db"
	"github.com/alexanderramin/bookable/internal/domain"
)

// SQLiteRevisionRepo implements RevisionRepo. Each revision stores the full
// form as JSON.
type SQLiteRevisionRepo struct {
	db db.DBTX
}

// NewSQLiteRevisionRepo creates a new SQLiteRevisionRepo.
func NewSQLiteRevisionRepo(conn db.DBTX) *SQLiteRevisionRepo {
	return &SQLiteRevisionRepo{db: conn}
}

func (r *SQLiteRevisionRepo) Create(ctx context.Context, rev *domain.FormRevision) error {
	snapshot, err := encodeJSON("revision snapshot", rev.Form)
	if err != nil {
		return err
	}
	query := `INSERT INTO form_revisions (form_id, version, snapshot, hash, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rev.FormID,
		rev.Version,
		snapshot,
		rev.Hash,
		rev.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting revision: %w", err)
	}
	return nil
}

func (r *SQLiteRevisionRepo) Get(ctx context.Context, formID string, version int) (*domain.FormRevision, error) {
	query := `SELECT form_id, version, snapshot, hash, created_at
		FROM form_revisions WHERE form_id = ? AND version = ?`
	rev, err := scanRevision(r.db.QueryRowContext(ctx, query, formID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision %s@%d: %w", formID, version, ErrNotFound)
	}
	return rev, err
}

// ListByForm returns revisions newest first.
func (r *SQLiteRevisionRepo) ListByForm(ctx context.Context, formID string) ([]*domain.FormRevision, error) {
	query := `SELECT form_id, version, snapshot, hash, created_at
		FROM form_revisions WHERE form_id = ? ORDER BY version DESC`
	rows, err := r.db.QueryContext(ctx, query, formID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	defer rows.Close()

	var revs []*domain.FormRevision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return revs, nil
}

func scanRevision(row rowScanner) (*domain.FormRevision, error) {
	var rev domain.FormRevision
	var snapshot, createdAt string
	if err := row.Scan(&rev.FormID, &rev.Version, &snapshot, &rev.Hash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning revision: %w", err)
	}
	rev.Form = &domain.FormConfig{}
	if err := decodeJSON("revision snapshot", snapshot, rev.Form); err != nil {
		return nil, err
	}
	fillContainers(rev.Form.ServiceTree)

	var err error
	if rev.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rev, nil
}
