package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phr/phr/internal/platform/apperr"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS clinical_records (
    id               TEXT PRIMARY KEY,
    owner_identity   TEXT NOT NULL,
    category         TEXT NOT NULL,
    payload          TEXT NOT NULL,
    source_record_id TEXT,
    date_added       TEXT NOT NULL,
    last_modified    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clinical_records_owner ON clinical_records (owner_identity);
CREATE INDEX IF NOT EXISTS idx_clinical_records_source ON clinical_records (source_record_id);
`

// SQLiteRepository is the on-device record cache. Payloads are stored as text
// and are not validated on read.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the cache file at path in WAL mode and
// ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open record cache %s: %w", path, err)
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create record cache schema: %w", err)
	}
	return &SQLiteRepository{db: conn}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrStoreUnavailable, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*ClinicalRecord, error) {
	var rec ClinicalRecord
	var payload, added, modified string
	var src sql.NullString
	if err := row.Scan(&rec.ID, &rec.OwnerIdentity, &rec.Category, &payload, &src, &added, &modified); err != nil {
		return nil, err
	}
	rec.Payload = []byte(payload)
	if src.Valid {
		rec.SourceRecordID = &src.String
	}
	var err error
	if rec.DateAdded, err = time.Parse(time.RFC3339Nano, added); err != nil {
		return nil, fmt.Errorf("parse date_added of %s: %w", rec.ID, err)
	}
	if rec.LastModified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return nil, fmt.Errorf("parse last_modified of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (r *SQLiteRepository) List(ctx context.Context, owner string) ([]*ClinicalRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordCols+`
		FROM clinical_records WHERE owner_identity = ?`, owner)
	if err != nil {
		return nil, unavailable("list records", err)
	}
	defer rows.Close()

	out := make([]*ClinicalRecord, 0)
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list records", err)
	}
	// Text timestamps do not sort reliably across precisions; sort in Go.
	sortRecords(out)
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, owner, id string) (*ClinicalRecord, error) {
	rec, err := scanSQLite(r.db.QueryRowContext(ctx, `SELECT `+recordCols+`
		FROM clinical_records WHERE id = ? AND owner_identity = ?`, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get record", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *ClinicalRecord) (*ClinicalRecord, error) {
	stored := rec.clone()
	var added string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO clinical_records (`+recordCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category = excluded.category,
			payload = excluded.payload,
			source_record_id = excluded.source_record_id,
			last_modified = excluded.last_modified
		WHERE clinical_records.owner_identity = excluded.owner_identity
		RETURNING date_added`,
		rec.ID, rec.OwnerIdentity, string(rec.Category), string(rec.Payload),
		rec.SourceRecordID, ts(rec.DateAdded), ts(rec.LastModified),
	).Scan(&added)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s belongs to another owner: %w", rec.ID, apperr.ErrForbidden)
	}
	if err != nil {
		return nil, unavailable("upsert record", err)
	}
	if stored.DateAdded, err = time.Parse(time.RFC3339Nano, added); err != nil {
		return nil, fmt.Errorf("parse date_added of %s: %w", rec.ID, err)
	}
	return stored, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM clinical_records WHERE id = ? AND owner_identity = ?`, id, owner)
	if err != nil {
		return unavailable("delete record", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBySource(ctx context.Context, sourceRecordID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM clinical_records WHERE source_record_id = ?`, sourceRecordID)
	if err != nil {
		return 0, unavailable("delete derived records", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
