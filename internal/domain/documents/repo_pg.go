package documents

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgRepo struct{ pool *pgxpool.Pool }

func NewPGRepository(pool *pgxpool.Pool) Repository { return &pgRepo{pool: pool} }

func (r *pgRepo) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const docCols = `id::text, owner_identity, file_path, file_name, document_type, provider_name, uploaded_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OwnerIdentity, &d.FilePath, &d.FileName,
		&d.DocumentType, &d.ProviderName, &d.UploadedAt)
	return &d, err
}

func (r *pgRepo) Create(ctx context.Context, d *Document) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_records (id, owner_identity, file_path, file_name, document_type, provider_name, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.OwnerIdentity, d.FilePath, d.FileName, d.DocumentType, d.ProviderName, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", db.Classify(err))
	}
	return nil
}

func (r *pgRepo) Get(ctx context.Context, id string) (*Document, error) {
	d, err := scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+docCols+` FROM health_records WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, db.Classify(err))
	}
	return d, nil
}

func (r *pgRepo) ListByOwner(ctx context.Context, owner string) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+docCols+` FROM health_records
		WHERE owner_identity = $1 ORDER BY uploaded_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", db.Classify(err))
	}
	defer rows.Close()

	out := make([]*Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *pgRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM health_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", db.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
