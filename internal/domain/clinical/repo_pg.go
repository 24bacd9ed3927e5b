package clinical

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phr/phr/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type pgRepo struct{ pool *pgxpool.Pool }

func NewPGRepository(pool *pgxpool.Pool) Repository { return &pgRepo{pool: pool} }

func (r *pgRepo) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

var derivedTables = []string{"medications", "allergies", "lab_results", "immunizations"}

const medCols = `id::text, patient_email, name, COALESCE(dosage, ''), COALESCE(frequency, ''),
	COALESCE(start_date, ''), COALESCE(notes, ''), source_record_id::text, created_at`

func (r *pgRepo) ListMedications(ctx context.Context, email string) ([]Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medCols+` FROM medications
		WHERE patient_email = $1 ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", db.Classify(err))
	}
	return collect(rows, func(row pgx.CollectableRow) (Medication, error) {
		var m Medication
		err := row.Scan(&m.ID, &m.PatientEmail, &m.Name, &m.Dosage, &m.Frequency,
			&m.StartDate, &m.Notes, &m.SourceRecordID, &m.CreatedAt)
		return m, err
	})
}

const allergyCols = `id::text, patient_email, allergen, COALESCE(reaction, ''), COALESCE(severity, ''),
	source_record_id::text, created_at`

func (r *pgRepo) ListAllergies(ctx context.Context, email string) ([]Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+allergyCols+` FROM allergies
		WHERE patient_email = $1 ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("list allergies: %w", db.Classify(err))
	}
	return collect(rows, func(row pgx.CollectableRow) (Allergy, error) {
		var a Allergy
		err := row.Scan(&a.ID, &a.PatientEmail, &a.Allergen, &a.Reaction, &a.Severity,
			&a.SourceRecordID, &a.CreatedAt)
		return a, err
	})
}

const labCols = `id::text, patient_email, test_name, COALESCE(value, ''), COALESCE(unit, ''),
	COALESCE(reference_range, ''), COALESCE(test_date, ''), source_record_id::text, created_at`

func (r *pgRepo) ListLabResults(ctx context.Context, email string) ([]LabResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+labCols+` FROM lab_results
		WHERE patient_email = $1 ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("list lab results: %w", db.Classify(err))
	}
	return collect(rows, func(row pgx.CollectableRow) (LabResult, error) {
		var l LabResult
		err := row.Scan(&l.ID, &l.PatientEmail, &l.TestName, &l.Value, &l.Unit,
			&l.ReferenceRange, &l.TestDate, &l.SourceRecordID, &l.CreatedAt)
		return l, err
	})
}

const immCols = `id::text, patient_email, vaccine, COALESCE(date_administered, ''),
	COALESCE(lot_number, ''), COALESCE(provider, ''), source_record_id::text, created_at`

func (r *pgRepo) ListImmunizations(ctx context.Context, email string) ([]Immunization, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+immCols+` FROM immunizations
		WHERE patient_email = $1 ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("list immunizations: %w", db.Classify(err))
	}
	return collect(rows, func(row pgx.CollectableRow) (Immunization, error) {
		var im Immunization
		err := row.Scan(&im.ID, &im.PatientEmail, &im.Vaccine, &im.DateAdministered,
			&im.LotNumber, &im.Provider, &im.SourceRecordID, &im.CreatedAt)
		return im, err
	})
}

func collect[T any](rows pgx.Rows, fn pgx.RowToFunc[T]) ([]T, error) {
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", db.Classify(err))
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// InsertDerived queues every insert on one batch. Callers that need
// atomicity with other writes run it inside db.Transactor.InTx.
func (r *pgRepo) InsertDerived(ctx context.Context, d *Derived) error {
	if d.Len() == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, m := range d.Medications {
		b.Queue(`INSERT INTO medications (id, patient_email, name, dosage, frequency, start_date, notes, source_record_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, m.PatientEmail, m.Name, nullIfEmpty(m.Dosage), nullIfEmpty(m.Frequency),
			nullIfEmpty(m.StartDate), nullIfEmpty(m.Notes), m.SourceRecordID, m.CreatedAt)
	}
	for _, a := range d.Allergies {
		b.Queue(`INSERT INTO allergies (id, patient_email, allergen, reaction, severity, source_record_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			a.ID, a.PatientEmail, a.Allergen, nullIfEmpty(a.Reaction), nullIfEmpty(a.Severity),
			a.SourceRecordID, a.CreatedAt)
	}
	for _, l := range d.LabResults {
		b.Queue(`INSERT INTO lab_results (id, patient_email, test_name, value, unit, reference_range, test_date, source_record_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, l.PatientEmail, l.TestName, nullIfEmpty(l.Value), nullIfEmpty(l.Unit),
			nullIfEmpty(l.ReferenceRange), nullIfEmpty(l.TestDate), l.SourceRecordID, l.CreatedAt)
	}
	for _, im := range d.Immunizations {
		b.Queue(`INSERT INTO immunizations (id, patient_email, vaccine, date_administered, lot_number, provider, source_record_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			im.ID, im.PatientEmail, im.Vaccine, nullIfEmpty(im.DateAdministered),
			nullIfEmpty(im.LotNumber), nullIfEmpty(im.Provider), im.SourceRecordID, im.CreatedAt)
	}
	if err := r.conn(ctx).SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert derived rows: %w", db.Classify(err))
	}
	return nil
}

func (r *pgRepo) DeleteBySource(ctx context.Context, sourceRecordID string) (int, error) {
	return r.deleteWhere(ctx, "source_record_id::text = $1", sourceRecordID)
}

func (r *pgRepo) DeleteByEmail(ctx context.Context, email string) (int, error) {
	return r.deleteWhere(ctx, "patient_email = $1", email)
}

func (r *pgRepo) deleteWhere(ctx context.Context, where string, arg string) (int, error) {
	total := 0
	for _, table := range derivedTables {
		tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+table+` WHERE `+where, arg)
		if err != nil {
			return total, fmt.Errorf("delete from %s: %w", table, db.Classify(err))
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}
