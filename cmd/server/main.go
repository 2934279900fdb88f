// access-core serves the authentication, session, and authorization API over HTTP.
// Requires DATABASE_URL and a JWT key pair; see .env.example for the full surface.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adminhandler "property-platform/access-core/internal/admin/handler"
	adminservice "property-platform/access-core/internal/admin/service"
	"property-platform/access-core/internal/audit"
	audithandler "property-platform/access-core/internal/audit/handler"
	auditrepo "property-platform/access-core/internal/audit/repository"
	authhandler "property-platform/access-core/internal/auth/handler"
	authservice "property-platform/access-core/internal/auth/service"
	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/blacklist"
	"property-platform/access-core/internal/config"
	"property-platform/access-core/internal/db"
	"property-platform/access-core/internal/guard"
	healthhandler "property-platform/access-core/internal/health/handler"
	"property-platform/access-core/internal/notify"
	"property-platform/access-core/internal/ratelimit"
	"property-platform/access-core/internal/reconciler"
	"property-platform/access-core/internal/security"
	"property-platform/access-core/internal/server"
	"property-platform/access-core/internal/server/middleware"
	sessionrepo "property-platform/access-core/internal/session/repository"
	sessionservice "property-platform/access-core/internal/session/service"
	"property-platform/access-core/internal/telemetry"
	"property-platform/access-core/internal/telemetry/otel"
	userrepo "property-platform/access-core/internal/user/repository"
)

const serviceName = "access-core"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; copy .env.example to .env or export it")
	}
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		log.Fatal("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	auditLog := auditrepo.NewPostgresRepository(conn)

	bl := blacklist.NewService(blacklist.NewStore(), blacklist.NewPostgresRepository(conn))
	warmed, err := bl.Warm(ctx)
	if err != nil {
		log.Fatalf("blacklist: %v", err)
	}
	log.Printf("blacklist: warmed %d live entries", warmed)

	registry := sessionservice.NewRegistry(sessions, bl, cfg.IdleTimeout(), cfg.AbsoluteTimeout(), cfg.SessionMaxConcurrent)

	catalog := authz.NewPostgresCatalog(conn)
	cache := authz.NewCache(users, catalog, cfg.CacheTTL())
	authorizer := authz.NewAuthorizer(cache, authz.NewPostgresResolver(conn), authz.DefaultRules())

	recorder, err := telemetry.NewRecorder(providers.LoggerProvider, providers.MeterProvider)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	authorizer.Observe(recorder.RecordDecision)

	sinks := []notify.Notifier{recorder}
	if kn := notify.NewKafkaNotifier(cfg.KafkaBrokersList(), cfg.NotifyKafkaTopic); kn != nil {
		sinks = append(sinks, kn)
		log.Printf("notify: publishing to kafka topic %s", cfg.NotifyKafkaTopic)
	}
	if cfg.Env == "development" {
		sinks = append(sinks, notify.NewLogNotifier())
	}
	notifier := notify.Fanout(sinks...)

	var limiter *ratelimit.Limiter
	if cfg.LoginRateLimit > 0 {
		limiter = ratelimit.New(cfg.LoginRateLimit, cfg.RateWindow())
	}

	auditor := audit.NewLogger(auditLog, middleware.ClientIP)

	authSvc := authservice.NewAuthService(users, registry, bl, cache, hasher, tokens, limiter, auditor, notifier)
	adminSvc := adminservice.NewAdminService(users, registry, catalog, cache, auditor, notifier)

	router := server.NewRouter(server.Deps{
		Auth:       authhandler.NewHandler(authSvc),
		Admin:      adminhandler.NewHandler(adminSvc),
		Audit:      audithandler.NewHandler(auditLog),
		Health:     healthhandler.NewHandler(conn),
		Guard:      guard.New(tokens, bl, registry),
		Authorizer: authorizer,
	})

	rec := reconciler.New(sessions, bl, limiter, cfg.Retention(), cfg.Grace())
	rec.Observe(func(res reconciler.Result) {
		recorder.RecordSweep(res.SessionsPurged, res.BlacklistPurged)
	})
	go rec.Run(ctx, cfg.SweepEvery())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down http server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// In-flight async event publishes get a drain window before the notifier
	// and the telemetry exporters close underneath them.
	time.Sleep(notify.ShutdownDrainDuration)
	if err := notifier.Close(); err != nil {
		log.Printf("notify: close: %v", err)
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := providers.Shutdown(flushCtx); err != nil {
		log.Printf("telemetry: shutdown: %v", err)
	}
	log.Println("http server stopped")
}
