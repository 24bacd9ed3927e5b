package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCleanPath(t *testing.T) {
	valid := []string{"alice@example.com/1-labs.pdf", "/alice@example.com/x.png"}
	for _, p := range valid {
		if _, err := CleanPath(p); err != nil {
			t.Errorf("CleanPath(%q) unexpected error: %v", p, err)
		}
	}

	invalid := []string{"", "/", "..", "../etc/passwd", "alice/../bob/x.pdf", "alice//x.pdf", "alice/./x"}
	for _, p := range invalid {
		if _, err := CleanPath(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("CleanPath(%q) expected ErrInvalidPath, got %v", p, err)
		}
	}
}

func TestMemoryStore_UploadOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	info, err := store.Upload(ctx, "alice@example.com/1-labs.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if info.Size != 8 {
		t.Errorf("expected size 8, got %d", info.Size)
	}
	if info.ContentType != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", info.ContentType)
	}

	rc, got, err := store.Open(ctx, "alice@example.com/1-labs.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.4" {
		t.Errorf("unexpected content %q", data)
	}
	if got.Path != "alice@example.com/1-labs.pdf" {
		t.Errorf("unexpected path %s", got.Path)
	}
}

func TestMemoryStore_UploadRejectsOverwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Upload(ctx, "a/x.txt", strings.NewReader("one")); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if _, err := store.Upload(ctx, "a/x.txt", strings.NewReader("two")); err == nil {
		t.Fatal("expected second upload to the same path to fail")
	}
}

func TestMemoryStore_OpenMissing(t *testing.T) {
	_, _, err := NewMemoryStore().Open(context.Background(), "nobody/none.pdf")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_RemoveIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Upload(ctx, "a/x.txt", strings.NewReader("data"))

	if err := store.Remove(ctx, "a/x.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, "a/x.txt"); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
	if _, _, err := store.Open(ctx, "a/x.txt"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected object to be gone, got %v", err)
	}
}

func TestMemoryStore_ListByPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, p := range []string{"alice/2-b.pdf", "alice/1-a.pdf", "bob/1-c.pdf"} {
		if _, err := store.Upload(ctx, p, strings.NewReader("x")); err != nil {
			t.Fatalf("Upload(%s): %v", p, err)
		}
	}

	got, err := store.List(ctx, "alice/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(got))
	}
	if got[0].Path != "alice/1-a.pdf" || got[1].Path != "alice/2-b.pdf" {
		t.Errorf("unexpected order: %v", got)
	}

	none, err := store.List(ctx, "carol/")
	if err != nil {
		t.Fatalf("List missing prefix: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no objects, got %d", len(none))
	}
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Upload(ctx, "alice/1-labs.pdf", strings.NewReader("content")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	rc, _, err := store.Open(ctx, "alice/1-labs.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := New("s3", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}
