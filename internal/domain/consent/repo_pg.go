package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const stateCols = `record_id::text, consent_given, shared_with, last_shared`

func scanState(row pgx.Row) (*State, error) {
	var s State
	if err := row.Scan(&s.RecordID, &s.ConsentGiven, &s.SharedWith, &s.LastShared); err != nil {
		return nil, err
	}
	if s.SharedWith == nil {
		s.SharedWith = []string{}
	}
	return &s, nil
}

func (r *pgRepo) Create(ctx context.Context, s *State) error {
	shared := s.SharedWith
	if shared == nil {
		shared = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consent_states (record_id, consent_given, shared_with, last_shared)
		VALUES ($1, $2, $3, $4)`,
		s.RecordID, s.ConsentGiven, shared, s.LastShared)
	if err != nil {
		return fmt.Errorf("create consent state: %w", db.Classify(err))
	}
	return nil
}

func (r *pgRepo) Get(ctx context.Context, recordID string) (*State, error) {
	s, err := scanState(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stateCols+` FROM consent_states WHERE record_id = $1`, recordID))
	if err != nil {
		return nil, fmt.Errorf("consent state %s: %w", recordID, db.Classify(err))
	}
	return s, nil
}

func (r *pgRepo) States(ctx context.Context, recordIDs []string) (map[string]*State, error) {
	out := make(map[string]*State, len(recordIDs))
	if len(recordIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+stateCols+` FROM consent_states WHERE record_id = ANY($1::text[]::uuid[])`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("list consent states: %w", db.Classify(err))
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent state: %w", err)
		}
		out[s.RecordID] = s
	}
	return out, rows.Err()
}

// SetShared relies on every SET expression seeing the pre-update row, so the
// last_shared CASE reads the old consent_given.
func (r *pgRepo) SetShared(ctx context.Context, recordID string, shared bool, now time.Time) (*State, error) {
	s, err := scanState(r.conn(ctx).QueryRow(ctx, `
		UPDATE consent_states SET
			last_shared = CASE
				WHEN $2 AND NOT consent_given AND cardinality(shared_with) > 0 THEN $3
				ELSE last_shared
			END,
			consent_given = $2
		WHERE record_id = $1
		RETURNING `+stateCols, recordID, shared, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("set shared %s: %w", recordID, db.Classify(err))
	}
	return s, nil
}

func (r *pgRepo) AddGrantee(ctx context.Context, recordID, grantee string) (*State, error) {
	s, err := scanState(r.conn(ctx).QueryRow(ctx, `
		UPDATE consent_states SET
			shared_with = CASE
				WHEN $2 = ANY(shared_with) THEN shared_with
				ELSE array_append(shared_with, $2)
			END
		WHERE record_id = $1
		RETURNING `+stateCols, recordID, grantee))
	if err != nil {
		return nil, fmt.Errorf("add grantee %s: %w", recordID, db.Classify(err))
	}
	return s, nil
}

func (r *pgRepo) RemoveGrantee(ctx context.Context, recordID, grantee string) (*State, error) {
	s, err := scanState(r.conn(ctx).QueryRow(ctx, `
		UPDATE consent_states SET shared_with = array_remove(shared_with, $2)
		WHERE record_id = $1
		RETURNING `+stateCols, recordID, grantee))
	if err != nil {
		return nil, fmt.Errorf("remove grantee %s: %w", recordID, db.Classify(err))
	}
	return s, nil
}

func (r *pgRepo) Delete(ctx context.Context, recordID string) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM consent_states WHERE record_id = $1`, recordID); err != nil {
		return fmt.Errorf("delete consent state: %w", db.Classify(err))
	}
	return nil
}
