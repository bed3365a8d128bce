package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/probuild/gateway/internal/api"
	"github.com/probuild/gateway/internal/config"
	"github.com/probuild/gateway/internal/core"
	"github.com/probuild/gateway/internal/db"
	"github.com/probuild/gateway/internal/identity"
	"github.com/probuild/gateway/internal/logging"
	"github.com/probuild/gateway/internal/records"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-api-key" {
		createAPIKey(os.Args[2:])
		return
	}
	if len(os.Args) >= 2 && os.Args[1] == "seed-dev-key" {
		seedDevKey(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	verifier := identity.NewClient(cfg.IdentityServiceURL)
	recordStore := records.NewClient(cfg.RecordServiceURL, cfg.RecordServiceKey)

	srv := api.NewServer(logger, pool, cfg, verifier, recordStore)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting gateway API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
		}

		logger.Info().Msg("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	name := fs.String("name", "", "Name for the API key (required)")
	tenant := fs.String("tenant", "", "Tenant the key belongs to (required)")
	scopes := fs.String("scopes", "*:*", "Comma-separated permissions")
	fs.Parse(args)

	if *name == "" || *tenant == "" {
		fmt.Fprintln(os.Stderr, "error: --name and --tenant are required")
		fmt.Fprintln(os.Stderr, "usage: gateway-api create-api-key --name <name> --tenant <tenant-id> [--scopes <a:read,b:write>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := core.NewKeyService(pool)
	nk, err := svc.Issue(ctx, *tenant, *name, strings.Split(*scopes, ","), nil, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key created successfully.\n\n")
	fmt.Printf("  Name:   %s\n", nk.Key.Name)
	fmt.Printf("  ID:     %s\n", nk.Key.ID)
	fmt.Printf("  Tenant: %s\n", nk.Key.TenantID)
	fmt.Printf("  Key:    %s\n\n", nk.RawKey)
	fmt.Printf("Save this key - it will not be shown again.\n")
}

// seedDevKey stores a caller-provided raw key so local environments can
// share a well-known credential. Never use this against production.
func seedDevKey(args []string) {
	fs := flag.NewFlagSet("seed-dev-key", flag.ExitOnError)
	name := fs.String("name", "dev", "Name for the API key")
	tenant := fs.String("tenant", "", "Tenant the key belongs to (required)")
	key := fs.String("key", "", "Raw key value to store (required)")
	scopes := fs.String("scopes", "*:*", "Comma-separated permissions")
	fs.Parse(args)

	if *tenant == "" || *key == "" {
		fmt.Fprintln(os.Stderr, "error: --tenant and --key are required")
		fmt.Fprintln(os.Stderr, "usage: gateway-api seed-dev-key --tenant <tenant-id> --key <raw-key> [--name <name>] [--scopes <a:read,b:write>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := core.NewKeyService(pool)
	k, err := svc.IssueWithRawKey(ctx, *tenant, *name, *key, strings.Split(*scopes, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to seed API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Dev key %s seeded for tenant %s.\n", k.ID, k.TenantID)
}
