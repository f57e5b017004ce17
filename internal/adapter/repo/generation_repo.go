package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"promptpix/internal/domain"
	"promptpix/internal/infra"
	"promptpix/internal/sqlinline"
)

const maxListLimit = 100

// GenerationRepositoryPG implements domain.GenerationRepository using PostgreSQL.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository constructs a new generation repository instance.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts one record in a single statement and returns its generated id.
func (r *GenerationRepositoryPG) Create(ctx context.Context, record *domain.GenerationRecord) (int64, error) {
	if record == nil {
		return 0, &domain.PersistenceError{Op: "insert generation", Err: errors.New("record is required")}
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGeneration,
		record.Prompt, record.Width, record.Height, record.Steps, record.N, record.ImageURL)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, &domain.PersistenceError{Op: "insert generation", Err: describe(err)}
	}
	record.ID = id
	return id, nil
}

// ListRecent returns up to limit records, newest first.
func (r *GenerationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectRecentGenerations, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list generations", Err: describe(err)}
	}
	defer rows.Close()

	records := make([]domain.GenerationRecord, 0, limit)
	for rows.Next() {
		rec, err := ScanGeneration(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan generation", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list generations", Err: describe(err)}
	}
	return records, nil
}

// EnsureSchema creates the generations table when it does not exist yet.
func (r *GenerationRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateGenerationsTable); err != nil {
		return &domain.PersistenceError{Op: "create generations table", Err: describe(err)}
	}
	return nil
}

// Scanner is satisfied by pgx rows and database/sql rows alike.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanGeneration reads one row in the column order of QSelectRecentGenerations.
func ScanGeneration(row Scanner) (domain.GenerationRecord, error) {
	var rec domain.GenerationRecord
	err := row.Scan(&rec.ID, &rec.Prompt, &rec.Width, &rec.Height, &rec.Steps, &rec.N, &rec.ImageURL)
	return rec, err
}

// describe adds the SQLSTATE and constraint to postgres errors.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ConstraintName != "" {
			return fmt.Errorf("%s (sqlstate %s, constraint %s): %w", pgErr.Message, pgErr.Code, pgErr.ConstraintName, err)
		}
		return fmt.Errorf("%s (sqlstate %s): %w", pgErr.Message, pgErr.Code, err)
	}
	return err
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
