package records

import (
	"context"
	"errors"
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

const recordCols = `id, owner_identity, category, payload, source_record_id, date_added, last_modified`

func scanRecord(row pgx.Row) (*ClinicalRecord, error) {
	var rec ClinicalRecord
	var payload []byte
	err := row.Scan(&rec.ID, &rec.OwnerIdentity, &rec.Category, &payload,
		&rec.SourceRecordID, &rec.DateAdded, &rec.LastModified)
	rec.Payload = payload
	return &rec, err
}

func (r *pgRepo) List(ctx context.Context, owner string) ([]*ClinicalRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+`
		FROM clinical_records WHERE owner_identity = $1
		ORDER BY date_added, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", db.Classify(err))
	}
	defer rows.Close()

	out := make([]*ClinicalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", db.Classify(err))
	}
	return out, nil
}

func (r *pgRepo) Get(ctx context.Context, owner, id string) (*ClinicalRecord, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+`
		FROM clinical_records WHERE id = $1 AND owner_identity = $2`, id, owner))
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, db.Classify(err))
	}
	return rec, nil
}

func (r *pgRepo) Upsert(ctx context.Context, rec *ClinicalRecord) (*ClinicalRecord, error) {
	stored := rec.clone()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_records (`+recordCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			payload = EXCLUDED.payload,
			source_record_id = EXCLUDED.source_record_id,
			last_modified = EXCLUDED.last_modified
		WHERE clinical_records.owner_identity = EXCLUDED.owner_identity
		RETURNING date_added`,
		rec.ID, rec.OwnerIdentity, string(rec.Category), []byte(rec.Payload),
		rec.SourceRecordID, rec.DateAdded, rec.LastModified,
	).Scan(&stored.DateAdded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %s belongs to another owner: %w", rec.ID, apperr.ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert record %s: %w", rec.ID, db.Classify(err))
	}
	return stored, nil
}

func (r *pgRepo) Delete(ctx context.Context, owner, id string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM clinical_records WHERE id = $1 AND owner_identity = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, db.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *pgRepo) DeleteBySource(ctx context.Context, sourceRecordID string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM clinical_records WHERE source_record_id = $1`, sourceRecordID)
	if err != nil {
		return 0, fmt.Errorf("delete derived records of %s: %w", sourceRecordID, db.Classify(err))
	}
	return int(tag.RowsAffected()), nil
}
