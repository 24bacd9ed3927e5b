package blobstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phr/phr/internal/platform/metrics"
)

var (
	ErrInvalidToken = errors.New("invalid or expired access token")
	ErrPathMismatch = errors.New("access token does not cover this object")
)

const downloadAudience = "phr-storage"

// SignedURL is a short-lived, credential-bearing link to one object.
type SignedURL struct {
	URL       string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type objectClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// URLSigner mints and verifies HMAC-signed download tokens scoped to a single
// object path.
type URLSigner struct {
	key     []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewURLSigner returns a signer that produces links of the form
// <baseURL>/storage/object/<path>?token=<jwt>.
func NewURLSigner(key []byte, baseURL string, ttl time.Duration) *URLSigner {
	return &URLSigner{
		key:     key,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL reports how long minted URLs stay valid.
func (s *URLSigner) TTL() time.Duration { return s.ttl }

// Sign mints a fresh URL for objectPath. Every call produces a new token.
func (s *URLSigner) Sign(objectPath string) (*SignedURL, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := objectClaims{
		Path: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{downloadAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign object token: %w", err)
	}
	metrics.SignedURLsMinted.Inc()

	escaped := (&url.URL{Path: p}).EscapedPath()
	return &SignedURL{
		URL:       fmt.Sprintf("%s/storage/object/%s?token=%s", s.baseURL, escaped, url.QueryEscape(token)),
		ExpiresAt: exp.UTC(),
	}, nil
}

// Verify checks that token is valid, unexpired and issued for objectPath.
func (s *URLSigner) Verify(token, objectPath string) error {
	p, err := CleanPath(objectPath)
	if err != nil {
		return err
	}
	claims := &objectClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(downloadAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Path != p {
		return ErrPathMismatch
	}
	return nil
}
