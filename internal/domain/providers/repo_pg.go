package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository { return &profileRepoPG{pool: pool} }

const profileCols = `id::text, email, role, display_name, COALESCE(specialty, ''), created_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.Role, &p.DisplayName, &p.Specialty, &p.CreatedAt)
	return &p, err
}

func (r *profileRepoPG) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	var specialty *string
	if p.Specialty != "" {
		specialty = &p.Specialty
	}
	out, err := scanProfile(connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO profiles (id, email, role, display_name, specialty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			display_name = EXCLUDED.display_name,
			specialty = EXCLUDED.specialty
		RETURNING `+profileCols,
		p.ID, p.Email, p.Role, p.DisplayName, specialty, p.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", db.Classify(err))
	}
	return out, nil
}

func (r *profileRepoPG) GetByID(ctx context.Context, id string) (*Profile, error) {
	p, err := scanProfile(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, db.Classify(err))
	}
	return p, nil
}

func (r *profileRepoPG) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	p, err := scanProfile(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", email, db.Classify(err))
	}
	return p, nil
}

func (r *profileRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", db.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// =========== Link Repository ===========

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewLinkRepoPG(pool *pgxpool.Pool) LinkRepository { return &linkRepoPG{pool: pool} }

const foreignKeyViolation = "23503"

func (r *linkRepoPG) Insert(ctx context.Context, l *Link) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO provider_links (patient_identity, provider_identity, access_granted_at)
		VALUES ($1, $2, $3)`,
		l.PatientIdentity, l.ProviderIdentity, l.AccessGrantedAt)
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return ErrAlreadyLinked
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrProviderNotFound
	}
	return fmt.Errorf("insert provider link: %w", db.Classify(err))
}

func (r *linkRepoPG) Delete(ctx context.Context, patient, providerID string) (bool, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		DELETE FROM provider_links WHERE patient_identity = $1 AND provider_identity = $2`,
		patient, providerID)
	if err != nil {
		return false, fmt.Errorf("delete provider link: %w", db.Classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (r *linkRepoPG) Exists(ctx context.Context, patient, providerID string) (bool, error) {
	var ok bool
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM provider_links WHERE patient_identity = $1 AND provider_identity = $2)`,
		patient, providerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check provider link: %w", db.Classify(err))
	}
	return ok, nil
}

func (r *linkRepoPG) ListByPatient(ctx context.Context, patient string) ([]*Link, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT l.patient_identity, l.provider_identity::text, l.access_granted_at,
			p.id::text, p.email, p.role, p.display_name, p.specialty, p.created_at
		FROM provider_links l
		LEFT JOIN profiles p ON p.id = l.provider_identity
		WHERE l.patient_identity = $1
		ORDER BY l.access_granted_at, l.provider_identity`, patient)
	if err != nil {
		return nil, fmt.Errorf("list provider links: %w", db.Classify(err))
	}
	defer rows.Close()

	out := make([]*Link, 0)
	for rows.Next() {
		var l Link
		var (
			id, email, role, name, specialty *string
			created                         *time.Time
		)
		if err := rows.Scan(&l.PatientIdentity, &l.ProviderIdentity, &l.AccessGrantedAt,
			&id, &email, &role, &name, &specialty, &created); err != nil {
			return nil, fmt.Errorf("scan provider link: %w", err)
		}
		if id != nil && email != nil {
			l.Provider = &Profile{ID: *id, Email: *email, Role: deref(role), DisplayName: deref(name), Specialty: deref(specialty)}
			if created != nil {
				l.Provider.CreatedAt = *created
			}
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *linkRepoPG) ListByProvider(ctx context.Context, providerID string) ([]*Link, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT patient_identity, provider_identity::text, access_granted_at
		FROM provider_links WHERE provider_identity = $1
		ORDER BY access_granted_at, patient_identity`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list linked patients: %w", db.Classify(err))
	}
	defer rows.Close()

	out := make([]*Link, 0)
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.PatientIdentity, &l.ProviderIdentity, &l.AccessGrantedAt); err != nil {
			return nil, fmt.Errorf("scan provider link: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *linkRepoPG) DeleteByPatient(ctx context.Context, patient string) (int, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM provider_links WHERE patient_identity = $1`, patient)
	if err != nil {
		return 0, fmt.Errorf("delete provider links: %w", db.Classify(err))
	}
	return int(tag.RowsAffected()), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
