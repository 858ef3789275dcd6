package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/draftmill/internal/featureflags"
	"github.com/yourorg/draftmill/internal/handler"
	"github.com/yourorg/draftmill/internal/infrastructure/logger"
	"github.com/yourorg/draftmill/internal/infrastructure/redis"
	"github.com/yourorg/draftmill/internal/llm"
	"github.com/yourorg/draftmill/internal/observability/metrics"
	"github.com/yourorg/draftmill/internal/observability/tracing"
	"github.com/yourorg/draftmill/internal/repository"
	"github.com/yourorg/draftmill/internal/security"
	"github.com/yourorg/draftmill/internal/security/audit"
	"github.com/yourorg/draftmill/internal/security/auth"
	"github.com/yourorg/draftmill/internal/security/crypto"
	"github.com/yourorg/draftmill/internal/security/middleware"
	"github.com/yourorg/draftmill/internal/security/ratelimit"
	"github.com/yourorg/draftmill/internal/service"
	"github.com/yourorg/draftmill/internal/worker"
	"github.com/yourorg/draftmill/pkg/config"
	"github.com/yourorg/draftmill/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting draftmill server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless OTEL endpoint configured)
	shutdownTracing, err := tracing.Init(ctx, log, "draftmill", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Redis
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Postgres + schema
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories
	db := pool.DB()
	userRepo := repository.NewPostgresUserRepository(db, log)
	sessionRepo := repository.NewPostgresSessionRepository(db, log)
	auditRepo := repository.NewPostgresAuditRepository(db, log)
	rateLimitRepo := repository.NewPostgresRateLimitRepository(db, log)
	articleRepo := repository.NewPostgresArticleRepository(db, log)
	pendingStore := repository.NewRedisPendingLoginStore(redisClient.Raw(), cfg.TwoFactorPendingTTL)

	// 7. Security components
	tokenManager, err := auth.NewTokenManager(
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)
	if err != nil {
		log.Error("failed to initialize token manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.TwoFactorEncryptionKey)
	if err != nil {
		log.Error("failed to initialize encryptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	twoFactor := auth.NewTwoFactor(encryptor)
	limiter := ratelimit.NewLimiter(rateLimitRepo, cfg.RateLimitMaxAttempts, cfg.RateLimitWindow, log)
	auditLogger := audit.NewLogger(auditRepo, log)
	authorizer := security.NewAuthorizer(userRepo, log)

	// 8. Services
	authService := service.NewAuthService(userRepo, sessionRepo, pendingStore, tokenManager, twoFactor, limiter, auditLogger, log)
	userService := service.NewUserService(userRepo, authorizer, twoFactor, auditLogger, cfg.AllowedEmailDomain, log)

	var generator llm.Generator
	if featureflags.Enabled(featureflags.LLMStub) || cfg.LLMAPIKey == "" {
		log.Warn("using stub LLM generator")
		generator = llm.StubGenerator{}
	} else {
		generator = llm.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMMaxTokens, log)
	}
	articleService := service.NewArticleService(articleRepo, generator, llm.NewPromptFormatter(), auditLogger, log)

	if err := userService.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		log.Error("failed to bootstrap admin user", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Handlers
	authHandler := handler.NewAuthHandler(authService, userService, log)
	twoFactorHandler := handler.NewTwoFactorHandler(userService, log)
	usersHandler := handler.NewUsersHandler(userService, log)
	sessionsHandler := handler.NewSessionsHandler(authService, log)
	auditHandler := handler.NewAuditHandler(auditRepo, log)
	articlesHandler := handler.NewArticlesHandler(articleService, log)
	progressHandler := handler.NewProgressHandler(authService, articleService, cfg.CORSAllowedOrigins, log)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)

	articleService.SetNotifier(progressHandler)

	// 10. Routes
	requireAdmin := middleware.RequireAdmin
	requireManageUsers := middleware.RequirePermission(authorizer, security.PermManageUsers)
	requireViewAudit := middleware.RequirePermission(authorizer, security.PermViewAuditLog)
	requireWriteContent := middleware.RequirePermission(authorizer, security.PermWriteContent)
	requireReadContent := middleware.RequirePermission(authorizer, security.PermReadContent)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/2fa", authHandler.Verify2FA)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/auth/password", authHandler.ChangePassword)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)
	mux.HandleFunc("POST /api/auth/2fa/enable", twoFactorHandler.Enable)
	mux.HandleFunc("POST /api/auth/2fa/disable", twoFactorHandler.Disable)

	mux.Handle("GET /api/users", requireManageUsers(http.HandlerFunc(usersHandler.List)))
	mux.Handle("POST /api/users", requireAdmin(http.HandlerFunc(usersHandler.Create)))
	mux.Handle("PUT /api/users/{email}/role", requireAdmin(http.HandlerFunc(usersHandler.UpdateRole)))
	mux.Handle("PUT /api/users/{email}/status", requireAdmin(http.HandlerFunc(usersHandler.UpdateStatus)))
	mux.Handle("DELETE /api/users/{email}", requireAdmin(http.HandlerFunc(usersHandler.Delete)))
	mux.Handle("POST /api/users/{email}/permissions", requireAdmin(http.HandlerFunc(usersHandler.GrantPermission)))
	mux.Handle("DELETE /api/users/{email}/permissions/{permission}", requireAdmin(http.HandlerFunc(usersHandler.RevokePermission)))

	mux.HandleFunc("GET /api/sessions", sessionsHandler.List)
	mux.Handle("GET /api/audit", requireViewAudit(http.HandlerFunc(auditHandler.List)))

	mux.Handle("POST /api/articles", requireWriteContent(http.HandlerFunc(articlesHandler.Create)))
	mux.Handle("POST /api/articles/{id}/advance", requireWriteContent(http.HandlerFunc(articlesHandler.Advance)))
	mux.Handle("GET /api/articles", requireReadContent(http.HandlerFunc(articlesHandler.List)))
	mux.Handle("GET /api/articles/{id}", requireReadContent(http.HandlerFunc(articlesHandler.Get)))
	mux.Handle("DELETE /api/articles/{id}", requireWriteContent(http.HandlerFunc(articlesHandler.Delete)))
	mux.Handle("GET /ws/articles/{id}/progress", progressHandler)

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Session-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain: request ID -> metrics -> JWT wall -> content-type -> CORS+mux
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(authService)(
				middleware.ValidateJSONContentType(log)(handlerWithCORS),
			),
		),
		log,
	)

	// 11. Cleanup worker
	cleanupWorker := worker.NewCleanupWorker(
		sessionRepo,
		limiter,
		log,
		time.Duration(cfg.CleanupIntervalMinutes)*time.Minute,
		cfg.SessionIdleTimeout,
	)
	go cleanupWorker.Start(ctx)

	// 12. HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // pipeline advances wait on the LLM
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("login_rate_limit", cfg.RateLimitMaxAttempts),
		slog.Duration("login_rate_window", cfg.RateLimitWindow),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop cleanup worker
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
