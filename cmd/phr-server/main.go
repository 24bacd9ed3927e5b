package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phr/phr/internal/config"
	"github.com/phr/phr/internal/domain/access"
	"github.com/phr/phr/internal/domain/account"
	"github.com/phr/phr/internal/domain/bundle"
	"github.com/phr/phr/internal/domain/clinical"
	"github.com/phr/phr/internal/domain/consent"
	"github.com/phr/phr/internal/domain/documents"
	"github.com/phr/phr/internal/domain/providers"
	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/platform/apperr"
	"github.com/phr/phr/internal/platform/auth"
	"github.com/phr/phr/internal/platform/blobstore"
	"github.com/phr/phr/internal/platform/db"
	"github.com/phr/phr/internal/platform/identity"
	"github.com/phr/phr/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "phr-server",
		Short: "Personal health record portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e, cleanup, err := buildServer(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer cleanup()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openRecordCache picks the store behind the local record cache. The
// returned pinger is nil unless the cache is a separate SQLite file.
func openRecordCache(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (records.Repository, db.Pinger, func(), error) {
	switch cfg.RecordCache {
	case "sqlite":
		repo, err := records.OpenSQLite(ctx, cfg.RecordCachePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo, func() { _ = repo.Close() }, nil
	case "memory":
		return records.NewMemoryRepository(), nil, func() {}, nil
	default:
		return records.NewPGRepository(pool), nil, func() {}, nil
	}
}

func buildServer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, func(), error) {
	recordRepo, cachePinger, closeCache, err := openRecordCache(ctx, cfg, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("open record cache: %w", err)
	}

	blobs, err := blobstore.New(cfg.StorageDriver, cfg.StorageRoot)
	if err != nil {
		closeCache()
		return nil, nil, err
	}
	signingKey, generated, err := resolveSigningKey(cfg.StorageSigningKey)
	if err != nil {
		closeCache()
		return nil, nil, err
	}
	if generated {
		logger.Warn().Msg("STORAGE_SIGNING_KEY not set; using a random key, signed URLs will not survive a restart")
	}
	signer := blobstore.NewURLSigner(signingKey, cfg.PublicBaseURL, cfg.SignedURLTTL)

	clinicalRepo := clinical.NewPGRepository(pool)
	consentRepo := consent.NewPGRepository(pool)
	profileRepo := providers.NewProfileRepoPG(pool)

	recordSvc := records.NewService(recordRepo, logger)
	consentSvc := consent.NewService(consentRepo, logger)
	providerSvc := providers.NewService(profileRepo, providers.NewLinkRepoPG(pool), logger)
	docSvc := documents.NewService(documents.Deps{
		Documents: documents.NewPGRepository(pool),
		Consents:  consentRepo,
		Clinical:  clinicalRepo,
		Records:   recordSvc,
		Blobs:     blobs,
		Signer:    signer,
		Tx:        db.NewTransactor(pool),
		Logger:    logger,
	})
	recordSvc.SetDocumentCounter(docSvc)

	assembler := bundle.NewAssembler(recordSvc, clinicalRepo, auth.ContextResolver{}, logger)
	gateway := access.NewGateway(providerSvc, docSvc, logger)
	accountSvc := account.NewService(account.Deps{
		Directory:  providerSvc,
		Documents:  docSvc,
		Records:    recordSvc,
		Structured: clinicalRepo,
		Identity:   newIdentityDeleter(cfg, logger),
		Logger:     logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	})

	apiV1 := e.Group("/api/v1", authMW, rateLimit)
	root := e.Group("", authMW, rateLimit)

	records.NewHandler(recordSvc).RegisterRoutes(apiV1)
	documents.NewHandler(docSvc, providerSvc).RegisterRoutes(apiV1, root)
	consent.NewHandler(consentSvc, docSvc).RegisterRoutes(apiV1)
	providers.NewHandler(providerSvc).RegisterRoutes(apiV1)
	access.NewHandler(gateway).RegisterRoutes(apiV1)
	bundle.NewHandler(assembler).RegisterRoutes(apiV1)
	account.NewHandler(accountSvc).RegisterRoutes(root)
	blobstore.NewDownloadHandler(blobs, signer).RegisterRoutes(e)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	deps := map[string]db.Pinger{"postgres": pool}
	if cachePinger != nil {
		deps["record_cache"] = cachePinger
	}
	e.GET("/health/db", db.HealthHandler(deps))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e, closeCache, nil
}

// identityDeleter stands in when no identity admin API is configured. In
// development it leaves the identity in place so portal data can still be
// removed; anywhere else it refuses, so deletion never reports success while
// the identity survives.
type identityDeleter struct {
	logger zerolog.Logger
	dev    bool
}

func (d identityDeleter) DeleteUser(_ context.Context, userID string) error {
	if !d.dev {
		return fmt.Errorf("identity admin API not configured: %w", apperr.ErrStoreUnavailable)
	}
	d.logger.Warn().Str("user_id", userID).Msg("IDENTITY_ADMIN_URL not set; identity left in place")
	return nil
}

func newIdentityDeleter(cfg *config.Config, logger zerolog.Logger) account.IdentityDeleter {
	if cfg.IdentityAdminURL == "" {
		return identityDeleter{logger: logger, dev: cfg.IsDev()}
	}
	return identity.NewAdminClient(identity.AdminConfig{
		BaseURL:    cfg.IdentityAdminURL,
		ServiceKey: cfg.IdentityServiceKey,
	}, logger)
}

// resolveSigningKey returns the storage signing key from its hex-encoded
// config value, or a random 32-byte key when unset. The second return value
// is true when a random key was generated.
func resolveSigningKey(hexValue string) ([]byte, bool, error) {
	if hexValue != "" {
		decoded, err := hex.DecodeString(hexValue)
		if err != nil {
			return nil, false, fmt.Errorf("invalid STORAGE_SIGNING_KEY hex value: %w", err)
		}
		return decoded, false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random storage signing key: %w", err)
	}
	return key, true, nil
}
