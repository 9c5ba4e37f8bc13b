package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tsheringp/pharmstock-backend/api/routes"
	authsvc "github.com/tsheringp/pharmstock-backend/internal/auth"
	"github.com/tsheringp/pharmstock-backend/internal/chatbot"
	"github.com/tsheringp/pharmstock-backend/internal/dispensing"
	"github.com/tsheringp/pharmstock-backend/internal/drugs"
	"github.com/tsheringp/pharmstock-backend/internal/orders"
	"github.com/tsheringp/pharmstock-backend/internal/taxonomy"
	"github.com/tsheringp/pharmstock-backend/internal/users"
	"github.com/tsheringp/pharmstock-backend/pkg/config"
	"github.com/tsheringp/pharmstock-backend/pkg/db"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
	"github.com/tsheringp/pharmstock-backend/pkg/metrics"
	"github.com/tsheringp/pharmstock-backend/pkg/migrate"
	"github.com/tsheringp/pharmstock-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	apiMetrics := metrics.NewAPIMetrics(registry)

	authService, err := authsvc.NewService(users.NewRepository(dbClient.DB()), cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	drugService, err := drugs.NewService(drugs.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create drug service", err)
		os.Exit(1)
	}

	taxonomyService, err := taxonomy.NewService(taxonomy.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create taxonomy service", err)
		os.Exit(1)
	}

	dispensingService, err := dispensing.NewService(dispensing.NewRepository(dbClient.DB()), dbClient, apiMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispensing service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, apiMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	history, err := chatbot.NewRedisHistory(redisClient, cfg.Chatbot.HistoryTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create chatbot history store", err)
		os.Exit(1)
	}
	runner, err := chatbot.NewQueryRunner(dbClient.DB(), cfg.Chatbot.StatementTimeout, cfg.Chatbot.MaxRows)
	if err != nil {
		logg.Error(context.Background(), "failed to create chatbot query runner", err)
		os.Exit(1)
	}
	chatbotService, err := chatbot.NewService(
		chatbot.NewOpenAIGenerator(cfg.OpenAI),
		history,
		runner,
		cfg.Chatbot,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create chatbot service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:            cfg,
			Logger:            logg,
			DB:                dbClient,
			Redis:             redisClient,
			Metrics:           apiMetrics,
			AuthService:       authService,
			DrugService:       drugService,
			TaxonomyService:   taxonomyService,
			DispensingService: dispensingService,
			OrderService:      orderService,
			ChatbotService:    chatbotService,
			PromRegistry:      registry,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
