// Command agentmaild runs the agent mailbox coordination server.
//
// It communicates over stdio using JSON-RPC 2.0 (MCP protocol) by default,
// or over Streamable HTTP when transport.mode is "http", and persists every
// mutation to an embedded SQLite store plus a git-backed content-addressed
// archive.
//
// Configuration is loaded from (in order of precedence) environment
// variables, a TOML config file, then built-in defaults. See
// internal/config for the full variable/field list.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentmail/agentmail/internal/archive"
	"github.com/agentmail/agentmail/internal/backpressure"
	"github.com/agentmail/agentmail/internal/config"
	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/health"
	"github.com/agentmail/agentmail/internal/mcp"
	"github.com/agentmail/agentmail/internal/metrics"
	"github.com/agentmail/agentmail/internal/search"
	"github.com/agentmail/agentmail/internal/store"
	"github.com/agentmail/agentmail/internal/tools/buildslots"
	"github.com/agentmail/agentmail/internal/tools/contacts"
	"github.com/agentmail/agentmail/internal/tools/identity"
	"github.com/agentmail/agentmail/internal/tools/infra"
	"github.com/agentmail/agentmail/internal/tools/messaging"
	"github.com/agentmail/agentmail/internal/tools/products"
	"github.com/agentmail/agentmail/internal/tools/reservations"
	searchtools "github.com/agentmail/agentmail/internal/tools/search"
	"github.com/agentmail/agentmail/internal/tools/workflow"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentmaild: %v\n", err)
		os.Exit(1)
	}
}

func nowUs() uint64 { return uint64(time.Now().UnixMicro()) }

func run() error {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}
	logger.Info("starting agentmaild", "version", version, "transport", cfg.Transport.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	checker := health.NewChecker()

	probeCfg := health.ProbeConfig{
		HTTPHost:                cfg.Transport.Host,
		HTTPPort:                cfg.Transport.Port,
		HTTPPath:                cfg.Transport.Path,
		StorageRoot:             cfg.Archive.Root,
		DatabasePath:            cfg.Store.DatabasePath,
		IntegrityCheckOnStartup: cfg.Health.IntegrityCheckOnStartup,
		BearerToken:             cfg.Auth.BearerToken,
		JWTEnabled:              cfg.Auth.JWTEnabled,
		JWTJWKSURL:              cfg.Auth.JWTJWKSURL,
	}
	if report := health.RunStartupProbes(ctx, probeCfg, nil, nil); !report.IsOK() {
		return fmt.Errorf("startup probes failed:\n%s", report.FormatErrors())
	}

	st, err := store.Open(ctx, store.Config{Path: cfg.Store.DatabasePath, NowUs: nowUs})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	arc, err := archive.New(archive.Config{
		Root:          cfg.Archive.Root,
		QueueCapacity: cfg.Archive.QueueCapacity,
		BatchCap:      cfg.Archive.BatchCap,
		FlushInterval: cfg.Archive.FlushIntervalDuration(),
		NowUs:         nowUs,
	})
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer arc.Close()

	if report := health.RunStartupProbes(ctx, probeCfg, st, archive.NewSampler(st, arc.Layout(), 50)); !report.IsOK() {
		return fmt.Errorf("post-open startup probes failed:\n%s", report.FormatErrors())
	}
	checker.SetReady(true)

	idx, err := search.OpenIndex(cfg.Search.IndexRoot)
	if err != nil {
		return fmt.Errorf("opening search index: %w", err)
	}
	defer idx.Close()

	fastEmbedder := search.NewHashEmbedder()
	var qualityEmbedder search.Embedder
	if cfg.Search.QualityEmbedder == "genai" {
		qualityEmbedder, err = search.NewGenAIEmbedder(ctx, cfg.Search.GenAIAPIKey, "text-embedding-004")
		if err != nil {
			return fmt.Errorf("configuring quality embedder: %w", err)
		}
	}
	searchSvc := search.NewService(idx, fastEmbedder, qualityEmbedder)

	// Domain layer: build up services in dependency order (contacts before
	// messaging, since message delivery consults contact policy).
	identitySvc := domain.NewIdentityService(st, arc)
	contactsSvc := domain.NewContactService(st, logger)
	messagingSvc := domain.NewMessagingService(st, contactsSvc, arc)
	reservationsSvc := domain.NewReservationService(st, arc)
	buildSlotsSvc := domain.NewBuildSlotService(st)
	productsSvc := domain.NewProductService(st)
	macros := domain.NewMacros(st, messagingSvc, contactsSvc, reservationsSvc)

	globalMetrics := metrics.NewGlobal()
	monitor := backpressure.NewMonitor(globalMetrics, nowUs)
	toolMetrics := metrics.NewToolRegistry()

	registry := mcp.NewRegistry()

	// infrastructure
	registry.Register(infra.NewHealthCheck(monitor, arc, contactsSvc, checker))
	registry.Register(infra.NewEnsureProject(st))
	registry.Register(infra.NewInstallPrecommitGuard())
	registry.Register(infra.NewUninstallPrecommitGuard())

	// identity
	registry.Register(identity.NewRegisterAgent(identitySvc))
	registry.Register(identity.NewCreateAgentIdentity(identitySvc))
	registry.Register(identity.NewWhois(identitySvc))

	// messaging
	registry.Register(messaging.NewSendMessage(messagingSvc))
	registry.Register(messaging.NewReplyMessage(messagingSvc))
	registry.Register(messaging.NewFetchInbox(messagingSvc))
	registry.Register(messaging.NewMarkMessageRead(messagingSvc))
	registry.Register(messaging.NewAcknowledgeMessage(messagingSvc))

	// contacts
	registry.Register(contacts.NewRequestContact(contactsSvc))
	registry.Register(contacts.NewRespondContact(contactsSvc))
	registry.Register(contacts.NewListContacts(contactsSvc))
	registry.Register(contacts.NewSetContactPolicy(contactsSvc, identitySvc))

	// file_reservations
	registry.Register(reservations.NewFileReservationPaths(reservationsSvc))
	registry.Register(reservations.NewReleaseFileReservations(reservationsSvc))
	registry.Register(reservations.NewRenewFileReservations(reservationsSvc))
	registry.Register(reservations.NewListFileReservations(reservationsSvc))

	// search
	registry.Register(searchtools.NewSearchMessages(searchSvc))
	registry.Register(searchtools.NewSummarizeThread(messagingSvc))

	// workflow_macros
	registry.Register(workflow.NewMacroStartSession(macros))
	registry.Register(workflow.NewMacroPrepareThread(macros))
	registry.Register(workflow.NewMacroFileReservationCycle(macros))
	registry.Register(workflow.NewMacroContactHandshake(macros))

	// product_bus
	registry.Register(products.NewEnsureProduct(productsSvc))
	registry.Register(products.NewProductsLink(productsSvc))
	registry.Register(products.NewSearchMessagesProduct(productsSvc, searchSvc))
	registry.Register(products.NewFetchInboxProduct(productsSvc, messagingSvc, st))
	registry.Register(products.NewSummarizeThreadProduct(productsSvc, messagingSvc))

	// build_slots
	registry.Register(buildslots.NewAcquireBuildSlot(buildSlotsSvc))
	registry.Register(buildslots.NewRenewBuildSlot(buildSlotsSvc))
	registry.Register(buildslots.NewReleaseBuildSlot(buildSlotsSvc))

	server := mcp.NewServer(registry, mcp.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	}, logger).WithDispatchObservability(monitor, toolMetrics)

	switch cfg.Transport.Mode {
	case "http":
		return runHTTP(ctx, cfg, server, checker, logger)
	default:
		return server.Run(ctx)
	}
}

func runHTTP(ctx context.Context, cfg *config.Config, server *mcp.Server, checker *health.Checker, logger *slog.Logger) error {
	auth := mcp.AuthConfig{
		BearerToken:    cfg.Auth.BearerToken,
		JWTEnabled:     cfg.Auth.JWTEnabled,
		RateLimitRPS:   cfg.Auth.RateLimitRPS,
		RateLimitBurst: cfg.Auth.RateLimitBurst,
	}
	if cfg.Auth.JWTEnabled {
		auth.JWTKeyfunc = jwksKeyfunc(cfg.Auth.JWTJWKSURL)
	}

	httpServer := mcp.NewHTTPServer(server, cfg.Transport.CORSOrigins, auth, checker, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Transport.Host, cfg.Transport.Port)
	logger.Info("listening", "addr", addr, "path", cfg.Transport.Path)

	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// jwksKeyfunc is a placeholder resolver: operators running with JWT auth
// enabled are expected to vendor their own JWKS fetch/cache (e.g. via
// github.com/golang-jwt/jwt/v5's jwk subpackage) and substitute it here.
func jwksKeyfunc(jwksURL string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		return nil, fmt.Errorf("JWT verification requires a configured JWKS resolver for %s", jwksURL)
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
