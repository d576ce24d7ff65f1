package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/adapters/cache"
	"github.com/careloop/postop-followup/backend/internal/adapters/database"
	"github.com/careloop/postop-followup/backend/internal/adapters/events"
	"github.com/careloop/postop-followup/backend/internal/adapters/search"
	"github.com/careloop/postop-followup/backend/internal/api/handlers"
	"github.com/careloop/postop-followup/backend/internal/api/routes"
	"github.com/careloop/postop-followup/backend/internal/application/services"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/openai"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/redis"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/typesense"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/notifications"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/observability"
	"github.com/careloop/postop-followup/backend/pkg/config"
	"github.com/careloop/postop-followup/backend/pkg/secrets"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pull secrets from Vault into the environment before config reads it.
	vaultCfg := secrets.LoadVaultConfigFromEnv()
	if vaultCfg.Enabled {
		if _, err := secrets.ApplyVaultSecrets(ctx, vaultCfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Apply schema migrations before opening the pool.
	runMigrations(cfg)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional: without it there is no webhook dedup and no live
	// alert stream, but the pipeline still runs.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache and alert stream")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
	}

	modelClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize model client")
	}

	// Typesense is optional: without it retrieval fails closed to empty
	// context on every run.
	var contextStore providers.ContextStore
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, running without context retrieval")
		contextStore = search.NewNoopContextStore()
	} else {
		if err := typesenseClient.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Typesense schema")
		}
		contextStore = search.NewContextStoreAdapter(typesenseClient, modelClient)
	}

	sender, err := notifications.NewWhatsAppCloudSender(&cfg.WhatsApp)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize WhatsApp sender")
	}

	// Repositories
	patientRepo := database.NewPatientAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)
	alertRepo := database.NewAlertAdapter(pgClient)
	userRepo := database.NewUserAdapter(pgClient)

	// Pipeline services
	followUp := services.NewFollowUpService(
		patientRepo,
		conversationRepo,
		contextStore,
		services.NewExtractionService(modelClient),
		services.NewAssessmentPolicy(),
		services.NewResponseComposer(modelClient),
		services.NewEscalationService(alertRepo, eventBus),
		services.NewThreadStore(),
		metrics,
		cfg.Agent.RetrievalTopK,
		time.Duration(cfg.Agent.ModelTimeoutMS)*time.Millisecond,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, &cfg.Auth)
	patientHandler := handlers.NewPatientHandler(patientRepo, conversationRepo)
	alertHandler := handlers.NewAlertHandler(alertRepo, eventBus)
	webhookHandler := handlers.NewWebhookHandler(cfg.WhatsApp.VerifyToken, followUp, patientRepo, sender, cacheProvider)

	router := routes.NewRouter(authHandler, patientHandler, alertHandler, webhookHandler, cfg.Auth.JWTSecret, metrics)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}

func runMigrations(cfg *config.Config) {
	m, err := migrate.New("file://"+cfg.Database.MigrationsDir, cfg.Database.DatabaseURL())
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Msg("Migration up failed")
	}
	log.Info().Msg("Migrations applied")
}
