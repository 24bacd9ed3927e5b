package client

import (
	"context"
	"net/http"
	"net/url"
)

// ListDocuments returns the caller's uploaded documents with their sharing
// flag.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var page DocumentPage
	err := c.do(ctx, call{method: http.MethodGet, path: "/documents?limit=200", out: &page, idempotent: true})
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// PreviewURL mints a fresh link to one of the caller's documents.
func (c *Client) PreviewURL(ctx context.Context, documentID string) (*SignedURL, error) {
	var u SignedURL
	err := c.do(ctx, call{method: http.MethodGet, path: "/documents/" + url.PathEscape(documentID) + "/url", out: &u, idempotent: true})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/documents/" + url.PathEscape(documentID), idempotent: true})
}

func (c *Client) Consent(ctx context.Context, recordID string) (*ConsentState, error) {
	var st ConsentState
	err := c.do(ctx, call{method: http.MethodGet, path: "/consent/" + url.PathEscape(recordID), out: &st, idempotent: true})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SetShared persists the sharing flag. Setting the same value twice is a
// no-op on the server, so the call is retried on transient failures.
func (c *Client) SetShared(ctx context.Context, recordID string, shared bool) (*ConsentState, error) {
	var st ConsentState
	err := c.do(ctx, call{
		method:     http.MethodPut,
		path:       "/consent/" + url.PathEscape(recordID) + "/shared",
		body:       map[string]bool{"shared": shared},
		out:        &st,
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// LinkProvider fails with ErrConflict when already linked and ErrNotFound
// when no provider uses the email.
func (c *Client) LinkProvider(ctx context.Context, providerEmail string) (*ProviderLink, error) {
	var link ProviderLink
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/providers/links",
		body:   map[string]string{"providerEmail": providerEmail},
		out:    &link,
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) UnlinkProvider(ctx context.Context, providerID string) (bool, error) {
	var out struct {
		Removed bool `json:"removed"`
	}
	err := c.do(ctx, call{method: http.MethodDelete, path: "/providers/links/" + url.PathEscape(providerID), out: &out, idempotent: true})
	return out.Removed, err
}

func (c *Client) ListLinkedProviders(ctx context.Context) ([]ProviderLink, error) {
	var links []ProviderLink
	err := c.do(ctx, call{method: http.MethodGet, path: "/providers/links", out: &links, idempotent: true})
	return links, err
}

// ExportBundle downloads the bundle as "json", "qr" or "pdf".
func (c *Client) ExportBundle(ctx context.Context, format string) ([]byte, error) {
	path := "/export/bundle"
	if format == "qr" || format == "pdf" {
		path += "/" + format
	}
	var body []byte
	err := c.do(ctx, call{method: http.MethodGet, path: path, raw: &body, idempotent: true})
	return body, err
}

// DeleteAccount removes the account of userID. It is not retried.
func (c *Client) DeleteAccount(ctx context.Context, userID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"userId": userID}).
		Post("/delete-account")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: errorMessage(resp.Body(), resp.Status())}
	}
	return nil
}
