// Package bundle assembles a patient's locally cached records and the remote
// structured tables into one FHIR collection bundle, and renders it as JSON,
// a QR code or a PDF summary.
package bundle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/phr/phr/internal/domain/clinical"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/fhir"
	"github.com/phr/phr/internal/platform/metrics"
)

// EmailResolver returns the caller's verified email. auth.ContextResolver
// is the production implementation.
type EmailResolver interface {
	ResolveEmail(ctx context.Context) (string, error)
}

// RecordSource lists a patient's locally cached records.
type RecordSource interface {
	ListAll(ctx context.Context, owner string) ([]*records.ClinicalRecord, error)
	Get(ctx context.Context, owner, id string) (*records.ClinicalRecord, error)
}

type Assembler struct {
	local    RecordSource
	remote   clinical.Repository
	resolver EmailResolver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAssembler builds an Assembler. remote may be nil, in which case bundles
// are built from local records only.
func NewAssembler(local RecordSource, remote clinical.Repository, resolver EmailResolver, logger zerolog.Logger) *Assembler {
	return &Assembler{local: local, remote: remote, resolver: resolver, logger: logger, now: time.Now}
}

// remoteRows holds what the four remote branches returned. Each slice is
// written by exactly one goroutine.
type remoteRows struct {
	meds  []clinical.Medication
	alls  []clinical.Allergy
	labs  []clinical.LabResult
	imms  []clinical.Immunization
	fails int
}

// Assemble builds a fresh bundle for owner. Remote failures degrade to
// fewer entries; only a failure reading local records is returned.
func (a *Assembler) Assemble(ctx context.Context, owner string) (*fhir.Bundle, error) {
	local, err := a.local.ListAll(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("read local records: %w", err)
	}
	byCat := records.ByCategory(local)

	remote := a.fetchRemote(ctx)
	subject := fhir.PatientReference(owner)

	var entries []fhir.Resource
	if p := a.latestPatient(byCat[records.CategoryPatient]); p != nil {
		entries = append(entries, p)
	}

	entries = append(entries, a.mapLocal(byCat[records.CategoryMedication])...)
	for _, m := range remote.meds {
		entries = append(entries, remoteMedication(subject, m))
	}
	entries = append(entries, a.mapLocal(byCat[records.CategoryAllergy])...)
	for _, al := range remote.alls {
		entries = append(entries, remoteAllergy(subject, al))
	}
	entries = append(entries, a.mapLocal(byCat[records.CategoryObservation])...)
	for _, l := range remote.labs {
		entries = append(entries, remoteLab(subject, l))
	}
	entries = append(entries, a.mapLocal(byCat[records.CategoryImmunization])...)
	for _, im := range remote.imms {
		entries = append(entries, remoteImmunization(subject, im))
	}
	entries = append(entries, a.mapLocal(byCat[records.CategoryDocument])...)

	b := fhir.NewCollectionBundle(entries, a.now())
	a.logger.Debug().
		Int("total", b.Total).
		Int("local", len(local)).
		Int("remote_failures", remote.fails).
		Msg("bundle assembled")
	return b, nil
}

// Record returns the FHIR resource of one locally stored record.
func (a *Assembler) Record(ctx context.Context, owner, id string) (fhir.Resource, error) {
	r, err := a.local.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return ResourceFromRecord(r)
}

func (a *Assembler) fetchRemote(ctx context.Context) remoteRows {
	var out remoteRows
	if a.remote == nil {
		return out
	}
	email, err := a.resolver.ResolveEmail(ctx)
	if err != nil || email == "" {
		a.logger.Warn().Err(err).Msg("no verified email; bundle limited to local records")
		return out
	}

	failed := make([]bool, 4)
	g, gctx := errgroup.WithContext(ctx)
	branch := func(i int, name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				failed[i] = true
				metrics.RemoteBranchFailures.WithLabelValues(name).Inc()
				a.logger.Warn().Err(err).Str("branch", name).Msg("remote branch failed; treating as empty")
			}
			return nil
		})
	}
	branch(0, "medications", func(ctx context.Context) (err error) {
		out.meds, err = a.remote.ListMedications(ctx, email)
		return err
	})
	branch(1, "allergies", func(ctx context.Context) (err error) {
		out.alls, err = a.remote.ListAllergies(ctx, email)
		return err
	})
	branch(2, "lab_results", func(ctx context.Context) (err error) {
		out.labs, err = a.remote.ListLabResults(ctx, email)
		return err
	})
	branch(3, "immunizations", func(ctx context.Context) (err error) {
		out.imms, err = a.remote.ListImmunizations(ctx, email)
		return err
	})
	_ = g.Wait()

	if failed[0] {
		out.meds = nil
	}
	if failed[1] {
		out.alls = nil
	}
	if failed[2] {
		out.labs = nil
	}
	if failed[3] {
		out.imms = nil
	}
	for _, f := range failed {
		if f {
			out.fails++
		}
	}
	return out
}

func (a *Assembler) mapLocal(rs []*records.ClinicalRecord) []fhir.Resource {
	out := make([]fhir.Resource, 0, len(rs))
	for _, r := range rs {
		res, err := ResourceFromRecord(r)
		if err != nil {
			a.logger.Warn().Err(err).Str("record_id", r.ID).Msg("skipping unmappable record")
			continue
		}
		out = append(out, res)
	}
	return out
}

// latestPatient picks the most recently modified demographic record.
func (a *Assembler) latestPatient(rs []*records.ClinicalRecord) fhir.Resource {
	var latest *records.ClinicalRecord
	for _, r := range rs {
		if latest == nil || r.LastModified.After(latest.LastModified) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	res := a.mapLocal([]*records.ClinicalRecord{latest})
	if len(res) == 0 {
		return nil
	}
	return res[0]
}
