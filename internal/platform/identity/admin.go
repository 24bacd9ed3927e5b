// Package identity talks to the hosted identity provider's admin API with the
// service-role key. Only server-side operations that need elevated privilege
// go through here.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/phr/phr/internal/platform/apperr"
)

// AdminClient deletes identities through DELETE /admin/users/{id}.
type AdminClient struct {
	client     *resty.Client
	maxElapsed time.Duration
	logger     zerolog.Logger
}

type AdminConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	// MaxElapsed bounds the total retry time for transient failures.
	MaxElapsed time.Duration
}

func NewAdminClient(cfg AdminConfig, logger zerolog.Logger) *AdminClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("apikey", cfg.ServiceKey).
		SetAuthToken(cfg.ServiceKey).
		SetTimeout(cfg.Timeout)

	return &AdminClient{client: c, maxElapsed: cfg.MaxElapsed, logger: logger}
}

type adminError struct {
	Message string `json:"msg"`
	Error   string `json:"error"`
}

// DeleteUser removes the identity. A 404 is treated as success so the call
// can be retried after a partial account deletion.
func (a *AdminClient) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required: %w", apperr.ErrValidation)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 2 * time.Second
	exp.MaxElapsedTime = a.maxElapsed

	attempt := 0
	op := func() error {
		attempt++
		var body adminError
		resp, err := a.client.R().
			SetContext(ctx).
			SetPathParam("id", userID).
			SetError(&body).
			Delete("/admin/users/{id}")
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			a.logger.Warn().Err(err).Int("attempt", attempt).Msg("identity admin request failed")
			return fmt.Errorf("delete identity: %w", apperr.ErrStoreUnavailable)
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusOK, code == http.StatusNoContent, code == http.StatusNotFound:
			return nil
		case code == http.StatusTooManyRequests, code >= 500:
			a.logger.Warn().Int("status", code).Int("attempt", attempt).Msg("identity admin transient failure")
			return fmt.Errorf("delete identity: status %d: %w", code, apperr.ErrStoreUnavailable)
		default:
			msg := body.Message
			if msg == "" {
				msg = body.Error
			}
			if msg == "" {
				msg = resp.Status()
			}
			return backoff.Permanent(fmt.Errorf("delete identity: status %d: %s", code, msg))
		}
	}

	return backoff.Retry(op, backoff.WithContext(exp, ctx))
}
