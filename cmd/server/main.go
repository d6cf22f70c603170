// main wires the governance engine: the platform relay adapter, the event
// dispatch loop, the protection and ballot services, the security-audit
// trail, the periodic sweep, and the ops HTTP API. Business logic lives in
// the internal packages; this file only assembles and supervises them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"conclave/internal/attribution"
	"conclave/internal/ballot"
	"conclave/internal/engine"
	"conclave/internal/gateway/ingest"
	"conclave/internal/gateway/rest"
	"conclave/internal/opsauth"
	"conclave/internal/platform/config"
	"conclave/internal/platform/httpserver"
	"conclave/internal/platform/logger"
	"conclave/internal/platform/metrics"
	platformredis "conclave/internal/platform/redis"
	"conclave/internal/protection"
	"conclave/internal/reentry"
	"conclave/internal/roles"
	"conclave/internal/scheduler"
	"conclave/internal/securityaudit"
	"conclave/internal/snapshot"
	"conclave/internal/sweep"
	httptransport "conclave/internal/transport/http"
	"conclave/pkg/domain"
)

const (
	trustedActionTTL = time.Minute
	auditInboxSize   = 256
	shutdownTimeout  = 10 * time.Second
	seedTimeout      = 30 * time.Second
	jwtIssuer        = "conclave"
	jwtAudience      = "conclave-ops"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("engine terminated", "error", err)
		os.Exit(1)
	}
	log.Info("engine stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := cfg.Community.IDs()
	if err != nil {
		return err
	}
	kindPolicies, err := cfg.Governance.Policies()
	if err != nil {
		return err
	}

	m := metrics.New()

	client := rest.New(rest.Config{
		BaseURL: cfg.Gateway.APIURL,
		Token:   cfg.Gateway.Token,
		GuildID: cfg.Community.GuildID,
		Timeout: cfg.Gateway.Timeout,
	})

	// Stores: memory by default, redis/postgres when configured.
	snapshots, closeSnapshots, err := newSnapshotStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	auditStore, closeAudit, err := newAuditStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	publisher := securityaudit.NewPublisher(auditStore, auditInboxSize,
		securityaudit.WithLogger(log),
	)
	worker := securityaudit.NewWorker(publisher.Inbox(), client, ids.LogChannel, log)

	view := roles.New(client, ids.Privileged, roles.WithLogger(log))
	seedCtx, cancelSeed := context.WithTimeout(ctx, seedTimeout)
	defer cancelSeed()
	if err := view.Seed(seedCtx); err != nil {
		return err
	}

	attr := attribution.New(client,
		cfg.Protection.AttributionFreshness,
		cfg.Protection.AttributionPageSize,
		attribution.WithLogger(log),
	)
	trust := protection.NewTrustedActions(trustedActionTTL)
	reentries := reentry.NewMemoryStore()

	fallbackChannel := ids.LogChannel
	if fallbackChannel == "" {
		fallbackChannel = ids.GovernanceChannel
	}
	protector := protection.New(client, view, attr, trust, reentries, snapshots,
		protection.Config{
			Privileged:      ids.Privileged,
			Protected:       ids.Protected,
			RevertProtected: cfg.Protection.RevertProtectedRole,
			InviteChannel:   ids.GovernanceChannel,
			FallbackChannel: fallbackChannel,
			ReentryTTL:      cfg.Protection.ReentryTTL,
		},
		protection.WithLogger(log),
		protection.WithAuditPublisher(publisher),
		protection.WithMetrics(m),
	)

	policies := make(map[domain.BallotKind]ballot.Policy, len(kindPolicies))
	for kind, p := range kindPolicies {
		policies[kind] = ballot.Policy{
			Visibility: p.Visibility,
			Rule:       p.Rule,
			Missing:    p.Missing,
			Deadline:   p.Deadline,
		}
	}
	sched := scheduler.New(scheduler.WithLogger(log))
	defer sched.Stop()

	coordinator := ballot.NewCoordinator(client, view, client, trust, sched,
		ids.GovernanceChannel,
		ballot.RoleIDs{
			Privileged: ids.Privileged,
			Pending:    ids.Pending,
			Sanctioned: ids.Sanctioned,
		},
		policies,
		cfg.Governance.SanctionRestoreAfter,
		ballot.WithLogger(log),
		ballot.WithAuditPublisher(publisher),
		ballot.WithMetrics(m),
	)

	events := ingest.New(cfg.Gateway.IngestSecret, cfg.Gateway.EventBuffer,
		ingest.WithLogger(log),
	)
	dispatcher := engine.New(events.Events(), client, view, coordinator, protector, snapshots,
		engine.Config{
			Prefix:       cfg.Governance.CommandPrefix,
			PurgeChannel: ids.PurgeChannel,
		},
		engine.WithLogger(log),
		engine.WithAuditPublisher(publisher),
		engine.WithMetrics(m),
	)

	sweeper := sweep.New(coordinator, snapshots, reentries, trust, view,
		cfg.Protection.ReentryTTL,
		sweep.WithLogger(log),
	)

	if cfg.Server.JWTSigningKey == "" {
		log.Warn("no ops JWT signing key configured, cancel endpoint will reject all tokens")
	}
	jwtService := opsauth.NewJWTService(cfg.Server.JWTSigningKey, jwtIssuer, jwtAudience)

	router := httptransport.NewRouter(
		httptransport.NewBallotHandler(coordinator, log),
		httptransport.NewAuditHandler(auditStore, log),
		events,
		jwtService,
		log,
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		return sweeper.Start(gctx, cfg.Protection.SweepSpec)
	})
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("governance engine started",
		"guild", cfg.Community.GuildID,
		"governance_channel", ids.GovernanceChannel.String(),
	)
	return g.Wait()
}

func newSnapshotStore(cfg config.Config, log *slog.Logger) (snapshot.Store, func(), error) {
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if redisClient == nil {
		log.Info("snapshot store: memory",
			"cap", cfg.Protection.SnapshotCap,
			"ttl", cfg.Protection.SnapshotTTL.String(),
		)
		return snapshot.NewMemoryStore(cfg.Protection.SnapshotCap, cfg.Protection.SnapshotTTL), func() {}, nil
	}
	log.Info("snapshot store: redis")
	store := snapshot.NewRedisStore(redisClient, cfg.Protection.SnapshotTTL)
	return store, func() { _ = redisClient.Close() }, nil
}

func newAuditStore(cfg config.Config, log *slog.Logger) (securityaudit.Store, func(), error) {
	if cfg.Postgres.DatabaseURL == "" {
		log.Info("security audit store: memory")
		return securityaudit.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.Postgres.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("security audit store: postgres")
	return securityaudit.NewPostgresStore(db), func() { _ = db.Close() }, nil
}
