package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/phr/phr/internal/config"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/identity"
)

func TestResolveSigningKey_FromHex(t *testing.T) {
	hexKey := hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	key, generated, err := resolveSigningKey(hexKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected generated=false for provided key")
	}
	if string(key) != "0123456789abcdef0123456789abcdef" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestResolveSigningKey_Random(t *testing.T) {
	key, generated, err := resolveSigningKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated || len(key) != 32 {
		t.Errorf("expected 32 random bytes, got %d (generated=%v)", len(key), generated)
	}
}

func TestResolveSigningKey_InvalidHex(t *testing.T) {
	if _, _, err := resolveSigningKey("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestMigrationFiles_Embedded(t *testing.T) {
	if migrationFiles("") == nil {
		t.Fatal("expected embedded migrations")
	}
}

func seedCache(t *testing.T, owner string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	repo, err := records.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := records.NewService(repo, zerolog.Nop())
	for _, r := range []*records.ClinicalRecord{
		{OwnerIdentity: owner, Category: records.CategoryPatient, Payload: json.RawMessage(`{"name":"Jo March"}`)},
		{OwnerIdentity: owner, Category: records.CategoryMedication, Payload: json.RawMessage(`{"name":"Ibuprofen"}`)},
	} {
		if _, err := svc.Save(context.Background(), r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestRunExport_JSON(t *testing.T) {
	owner := "jo@example.com"
	fsys := afero.NewMemMapFs()
	n, err := runExport(context.Background(), fsys, exportOptions{
		CachePath: seedCache(t, owner), Owner: owner, Format: "json", Out: "/out/bundle.json",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	body, err := afero.ReadFile(fsys, "/out/bundle.json")
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(body) != n {
		t.Errorf("reported %d bytes, wrote %d", n, len(body))
	}
	var b struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Total != 2 {
		t.Errorf("expected 2 entries, got %d", b.Total)
	}
}

func TestRunExport_PDF(t *testing.T) {
	owner := "jo@example.com"
	fsys := afero.NewMemMapFs()
	if _, err := runExport(context.Background(), fsys, exportOptions{
		CachePath: seedCache(t, owner), Owner: owner, Format: "pdf", Out: "summary.pdf",
	}, zerolog.Nop()); err != nil {
		t.Fatalf("export: %v", err)
	}
	body, _ := afero.ReadFile(fsys, "summary.pdf")
	if len(body) < 4 || string(body[:4]) != "%PDF" {
		t.Errorf("output is not a PDF")
	}
}

func TestRunExport_UnknownFormat(t *testing.T) {
	owner := "jo@example.com"
	_, err := runExport(context.Background(), afero.NewMemMapFs(), exportOptions{
		CachePath: seedCache(t, owner), Owner: owner, Format: "xml", Out: "x",
	}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewIdentityDeleter_Fallback(t *testing.T) {
	dev := newIdentityDeleter(&config.Config{Env: "development"}, zerolog.Nop())
	if err := dev.DeleteUser(context.Background(), "u-1"); err != nil {
		t.Errorf("development fallback should not fail: %v", err)
	}

	staging := newIdentityDeleter(&config.Config{Env: "staging"}, zerolog.Nop())
	err := staging.DeleteUser(context.Background(), "u-1")
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("expected unavailable outside development, got %v", err)
	}
}

func TestNewIdentityDeleter_AdminClient(t *testing.T) {
	d := newIdentityDeleter(&config.Config{
		Env: "production", IdentityAdminURL: "https://idp.example.com", IdentityServiceKey: "k",
	}, zerolog.Nop())
	if _, ok := d.(*identity.AdminClient); !ok {
		t.Errorf("expected admin client, got %T", d)
	}
}
