// Package recordstest is a behaviour suite every records.Repository backend
// must pass.
package recordstest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/apperr"
)

// Run exercises the backend returned by newRepo. newRepo is called once per
// subtest and must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) records.Repository) {
	t.Helper()

	t.Run("UpsertThenList", func(t *testing.T) { testUpsertThenList(t, newRepo(t)) })
	t.Run("UpsertKeepsDateAdded", func(t *testing.T) { testUpsertKeepsDateAdded(t, newRepo(t)) })
	t.Run("OwnerIsolation", func(t *testing.T) { testOwnerIsolation(t, newRepo(t)) })
	t.Run("UpsertOtherOwnerForbidden", func(t *testing.T) { testUpsertOtherOwner(t, newRepo(t)) })
	t.Run("DeleteAndNotFound", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("DeleteBySource", func(t *testing.T) { testDeleteBySource(t, newRepo(t)) })
	t.Run("EmptyList", func(t *testing.T) { testEmptyList(t, newRepo(t)) })
}

func newRecord(owner string, cat records.Category, payload string, at time.Time) *records.ClinicalRecord {
	return &records.ClinicalRecord{
		ID:            uuid.NewString(),
		OwnerIdentity: owner,
		Category:      cat,
		Payload:       json.RawMessage(payload),
		DateAdded:     at,
		LastModified:  at,
	}
}

func testUpsertThenList(t *testing.T, repo records.Repository) {
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)
	r := newRecord("alice@example.com", records.CategoryMedication, `{"name":"Metformin"}`, at)

	_, err := repo.Upsert(ctx, r)
	require.NoError(t, err)

	list, err := repo.List(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
	assert.Equal(t, records.CategoryMedication, list[0].Category)
	assert.JSONEq(t, `{"name":"Metformin"}`, string(list[0].Payload))
	assert.WithinDuration(t, at, list[0].LastModified, time.Millisecond)

	got, err := repo.Get(ctx, "alice@example.com", r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func testUpsertKeepsDateAdded(t *testing.T, repo records.Repository) {
	ctx := context.Background()
	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	r := newRecord("alice@example.com", records.CategoryAllergy, `{"allergen":"Penicillin"}`, first)
	_, err := repo.Upsert(ctx, r)
	require.NoError(t, err)

	later := first.Add(time.Hour)
	update := *r
	update.Payload = json.RawMessage(`{"allergen":"Penicillin","severity":"severe"}`)
	update.DateAdded = later
	update.LastModified = later

	stored, err := repo.Upsert(ctx, &update)
	require.NoError(t, err)
	assert.WithinDuration(t, first, stored.DateAdded, time.Millisecond, "date added must survive updates")

	list, err := repo.List(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1, "upsert by id must not duplicate")
	assert.JSONEq(t, `{"allergen":"Penicillin","severity":"severe"}`, string(list[0].Payload))
	assert.WithinDuration(t, later, list[0].LastModified, time.Millisecond)
}

func testOwnerIsolation(t *testing.T, repo records.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := repo.Upsert(ctx, newRecord("alice@example.com", records.CategoryObservation, `{"test_name":"A1C"}`, now))
	require.NoError(t, err)
	bob := newRecord("bob@example.com", records.CategoryObservation, `{"test_name":"LDL"}`, now)
	_, err = repo.Upsert(ctx, bob)
	require.NoError(t, err)

	list, err := repo.List(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice@example.com", list[0].OwnerIdentity)

	_, err = repo.Get(ctx, "alice@example.com", bob.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "expected not found, got %v", err)
}

func testUpsertOtherOwner(t *testing.T, repo records.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()
	r := newRecord("alice@example.com", records.CategoryMedication, `{"name":"Aspirin"}`, now)
	_, err := repo.Upsert(ctx, r)
	require.NoError(t, err)

	hijack := *r
	hijack.OwnerIdentity = "mallory@example.com"
	_, err = repo.Upsert(ctx, &hijack)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "expected forbidden, got %v", err)

	got, err := repo.Get(ctx, "alice@example.com", r.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Aspirin"}`, string(got.Payload))
}

func testDelete(t *testing.T, repo records.Repository) {
	ctx := context.Background()
	r := newRecord("alice@example.com", records.CategoryImmunization, `{"vaccine":"MMR"}`, time.Now().UTC())
	_, err := repo.Upsert(ctx, r)
	require.NoError(t, err)

	err = repo.Delete(ctx, "bob@example.com", r.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "other owners cannot delete")

	require.NoError(t, repo.Delete(ctx, "alice@example.com", r.ID))
	err = repo.Delete(ctx, "alice@example.com", r.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	list, err := repo.List(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testDeleteBySource(t *testing.T, repo records.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()
	doc := uuid.NewString()
	other := uuid.NewString()

	for i := 0; i < 3; i++ {
		r := newRecord("alice@example.com", records.CategoryObservation, `{"test_name":"CBC"}`, now)
		r.SourceRecordID = &doc
		_, err := repo.Upsert(ctx, r)
		require.NoError(t, err)
	}
	keep := newRecord("alice@example.com", records.CategoryObservation, `{"test_name":"TSH"}`, now)
	keep.SourceRecordID = &other
	_, err := repo.Upsert(ctx, keep)
	require.NoError(t, err)

	n, err := repo.DeleteBySource(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := repo.List(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func testEmptyList(t *testing.T, repo records.Repository) {
	list, err := repo.List(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
