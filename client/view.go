package client

import (
	"context"
	"errors"
	"sync"
)

// ErrAbandoned is returned when a result arrives after its request was
// cancelled or superseded; the result is discarded.
var ErrAbandoned = errors.New("result discarded: request abandoned")

// DocumentView holds what a document screen displays. Every load takes a
// generation number, and a result is applied only if its context is still
// live and no newer load or Reset happened meanwhile.
type DocumentView struct {
	c *Client

	mu         sync.Mutex
	listGen    uint64
	previewGen uint64
	docs       []Document
	preview    *SignedURL
	previewID  string
}

func (c *Client) NewDocumentView() *DocumentView {
	return &DocumentView{c: c}
}

func (v *DocumentView) Documents() []Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Document(nil), v.docs...)
}

// Preview returns the applied preview link and the document it belongs to.
func (v *DocumentView) Preview() (string, *SignedURL) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.previewID, v.preview
}

func (v *DocumentView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.listGen++
	gen := v.listGen
	v.mu.Unlock()

	docs, err := v.c.ListDocuments(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if ctx.Err() != nil || gen != v.listGen {
		return ErrAbandoned
	}
	v.docs = docs
	return nil
}

// OpenPreview fetches a fresh link for id. Closing the preview before it
// arrives, or opening another, discards it.
func (v *DocumentView) OpenPreview(ctx context.Context, id string) error {
	v.mu.Lock()
	v.previewGen++
	gen := v.previewGen
	v.mu.Unlock()

	u, err := v.c.PreviewURL(ctx, id)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if ctx.Err() != nil || gen != v.previewGen {
		return ErrAbandoned
	}
	v.previewID, v.preview = id, u
	return nil
}

func (v *DocumentView) ClosePreview() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.previewGen++
	v.previewID, v.preview = "", nil
}

// Reset drops everything displayed and invalidates in-flight loads.
func (v *DocumentView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listGen++
	v.previewGen++
	v.docs, v.preview, v.previewID = nil, nil, ""
}
