// Package client is a Go client for the portal API covering the patient and
// provider flows.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const apiPrefix = "/api/v1"

type Client struct {
	http       *resty.Client
	maxElapsed time.Duration
}

// Option mutates the Client during New.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		base := c.http.BaseURL
		tok := c.http.Token
		c.http = resty.NewWithClient(hc).SetBaseURL(base)
		if tok != "" {
			c.http.SetAuthToken(tok)
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// New builds a Client. cfg.BaseURL is the server root; the /api/v1 prefix is
// added per request.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	c := &Client{http: rc, maxElapsed: cfg.MaxElapsed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type call struct {
	method string
	path   string
	body   any
	out    any
	raw    *[]byte
	// idempotent calls are retried on transient failures.
	idempotent bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	var policy backoff.BackOff
	if cl.idempotent && c.maxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 100 * time.Millisecond
		exp.MaxInterval = 2 * time.Second
		exp.MaxElapsedTime = c.maxElapsed
		policy = exp
	} else {
		policy = backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 0)
	}

	op := func() error {
		req := c.http.R().SetContext(ctx)
		if cl.body != nil {
			req.SetBody(cl.body)
		}
		if cl.out != nil {
			req.SetResult(cl.out)
		}
		resp, err := req.Execute(cl.method, apiPrefix+cl.path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s %s: %w: %v", cl.method, cl.path, ErrUnavailable, err)
		}
		if resp.IsError() {
			apiErr := &APIError{Status: resp.StatusCode(), Message: errorMessage(resp.Body(), resp.Status())}
			if errors.Is(apiErr, ErrUnavailable) {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if cl.raw != nil {
			*cl.raw = resp.Body()
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}
