// Package blobstore stores uploaded document binaries under owner-namespaced
// paths and issues expiring access URLs for them. Objects live on an afero
// filesystem: in memory for development and tests, or under a root directory
// on disk.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrInvalidPath    = errors.New("invalid object path")
)

// MaxFileSize is the maximum allowed object size in bytes (50 MB).
const MaxFileSize = 50 * 1024 * 1024

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Store is the object storage contract used by the document service and the
// signed download endpoint.
type Store interface {
	Upload(ctx context.Context, objectPath string, content io.Reader) (*ObjectInfo, error)
	Open(ctx context.Context, objectPath string) (io.ReadCloser, *ObjectInfo, error)
	Remove(ctx context.Context, paths ...string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type aferoStore struct {
	fs afero.Fs
}

// NewMemoryStore returns a Store held entirely in memory.
func NewMemoryStore() Store {
	return &aferoStore{fs: afero.NewMemMapFs()}
}

// NewFSStore returns a Store rooted at dir on the local filesystem.
func NewFSStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", dir, err)
	}
	return &aferoStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// New selects the backend by driver name ("memory" or "fs").
func New(driver, root string) (Store, error) {
	switch driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "fs":
		return NewFSStore(root)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// CleanPath normalises an object path and rejects anything that could escape
// the owner namespace.
func CleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned != p || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}

func contentTypeOf(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *aferoStore) Upload(_ context.Context, objectPath string, content io.Reader) (*ObjectInfo, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}

	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create object %s: %w", p, err)
	}
	n, err := io.Copy(f, io.LimitReader(content, MaxFileSize+1))
	closeErr := f.Close()
	if err == nil && n > MaxFileSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(p)
		return nil, fmt.Errorf("write object %s: %w", p, err)
	}

	return &ObjectInfo{Path: p, Size: n, ContentType: contentTypeOf(p), ModifiedAt: time.Now().UTC()}, nil
}

func (s *aferoStore) Open(_ context.Context, objectPath string) (io.ReadCloser, *ObjectInfo, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("open object %s: %w", p, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat object %s: %w", p, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, nil, ErrObjectNotFound
	}
	return f, &ObjectInfo{Path: p, Size: st.Size(), ContentType: contentTypeOf(p), ModifiedAt: st.ModTime().UTC()}, nil
}

// Remove deletes each path. Missing objects are ignored so a retried delete
// succeeds.
func (s *aferoStore) Remove(_ context.Context, paths ...string) error {
	var errs []error
	for _, raw := range paths {
		p, err := CleanPath(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// List returns the objects whose path starts with prefix, sorted by path.
func (s *aferoStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	root := "."
	if dir := path.Dir(prefix); dir != "." && prefix != "" {
		root = dir
	}

	var out []ObjectInfo
	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		p = filepath.ToSlash(strings.TrimPrefix(p, "/"))
		if strings.HasPrefix(p, prefix) {
			out = append(out, ObjectInfo{Path: p, Size: info.Size(), ContentType: contentTypeOf(p), ModifiedAt: info.ModTime().UTC()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
