package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"prepdeck/internal/cache"
	"prepdeck/internal/config"
	"prepdeck/internal/dispatch"
	"prepdeck/internal/logger"
	"prepdeck/internal/repository"
	"prepdeck/internal/service"
	"prepdeck/internal/transport/rest"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	ctx := context.Background()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	log.Info("connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("failed to ping Redis", zap.Error(err))
	}
	log.Info("connected to Redis")

	// Background job dispatcher; optional in development
	var jobs dispatch.Dispatcher = dispatch.Nop{}
	if cfg.AMQPURL != "" {
		publisher, err := dispatch.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Fatal("failed to connect to AMQP", zap.Error(err))
		}
		jobs = publisher
		log.Info("connected to AMQP", zap.String("exchange", cfg.AMQPExchange))
	} else {
		log.Warn("AMQP_URL not set, background jobs disabled")
	}
	defer jobs.Close()

	// Repositories and caches
	questionRepo := repository.NewQuestionRepo(db)
	evalRepo := repository.NewEvaluationRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	sessionStore := cache.NewSessionStore(rdb)

	// Matching capability: generative when configured, keyword otherwise
	var primary service.Matcher
	if cfg.Matcher.IsEnabled() {
		primary = service.NewOpenAIMatcher(cfg.Matcher)
		log.Info("generative matcher enabled", zap.String("model", cfg.Matcher.Model))
	} else {
		log.Warn("OPENAI_API_KEY not set, using keyword matcher only")
	}
	fallback := service.NewKeywordMatcher()

	evaluator := service.NewEvaluatorService(primary, fallback, cfg.Scoring, cfg.Matcher.Timeout(), log)
	policy := service.NewPolicyService(cfg.Policy)
	selector := service.NewSelectorService(questionRepo)
	sessionSvc := service.NewSessionService(
		sessionStore, questionRepo, evalRepo, sessionRepo,
		evaluator, policy, selector, jobs, cfg.Policy, log,
	)

	router := rest.NewRouter(&rest.Container{
		SessionService: sessionSvc,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen and serve", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
