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

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rxlink/pkg/common/config"
	"github.com/synaptica-ai/rxlink/pkg/common/database"
	"github.com/synaptica-ai/rxlink/pkg/common/kafka"
	"github.com/synaptica-ai/rxlink/pkg/common/logger"
	"github.com/synaptica-ai/rxlink/pkg/common/middleware"
	"github.com/synaptica-ai/rxlink/pkg/decision"
	"github.com/synaptica-ai/rxlink/pkg/dlp"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/linkage"
	"github.com/synaptica-ai/rxlink/pkg/normalizer"
	"github.com/synaptica-ai/rxlink/pkg/scoring"
	"github.com/synaptica-ai/rxlink/pkg/serving/predictor"
	"github.com/synaptica-ai/rxlink/pkg/serving/remote"
)

func main() {
	logger.Init("linkage-service")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}

	tables, err := normalizer.LoadTables(cfg.TablesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load normalization tables")
	}
	norm, err := normalizer.New(tables)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid normalization tables")
	}
	extractor := features.NewExtractor(norm)

	scorer, err := buildScorer(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialise scorer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]linkage.ReadinessCheck{}
	opts := linkage.Options{Workers: cfg.BatchWorkers, BatchMax: cfg.BatchMax}

	var store linkage.Store
	if cfg.Persist {
		db, err := database.OpenPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres(db)

		repo := linkage.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate comparison tables")
		}
		opts.Recorder = repo
		store = repo
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	var (
		consumer *kafka.Consumer
		dlq      *kafka.Producer
		deduper  linkage.Deduper
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.VerdictTopic)
		defer producer.Close()
		opts.Publisher = producer

		if cfg.DLQTopic != "" {
			dlq = kafka.NewProducer(cfg.KafkaBrokers, cfg.DLQTopic)
			defer dlq.Close()
		}

		redisClient, err := database.OpenRedis(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("redis unavailable, redelivered requests may be compared twice")
		}
		defer database.CloseRedis(redisClient)
		deduper = linkage.NewRedisDeduper(redisClient, cfg.DedupeTTL)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}

		consumer = kafka.NewConsumer(cfg.KafkaBrokers, cfg.RequestTopic, cfg.KafkaGroupID)
		defer consumer.Close()
	}

	service := linkage.NewService(extractor, scorer, decision.NewPolicy(cfg.Threshold), opts)

	if consumer != nil {
		handler := linkage.NewEventHandler(service, deduper, publisherOrNil(dlq))
		if cfg.RedactDLQ {
			redactor, err := buildRedactor(cfg.RedactionRules)
			if err != nil {
				logger.Log.WithError(err).Fatal("failed to load redaction rules")
			}
			handler.WithRedactor(redactor)
		}
		go func() {
			if err := consumer.Consume(ctx, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("consumer stopped")
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.BodyLimit(cfg.MaxRequestBody))
	linkage.NewAPI(service, store, checks).Register(router)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"addr":           cfg.Addr(),
			"scorer":         cfg.Scorer,
			"tables_version": norm.TablesVersion(),
			"threshold":      decision.NewPolicy(cfg.Threshold).Threshold(),
			"persist":        cfg.Persist,
			"kafka":          consumer != nil,
		}).Info("Linkage Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Linkage Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Linkage Service stopped")
}

func buildScorer(cfg *config.Config) (scoring.Scorer, error) {
	switch cfg.Scorer {
	case config.ScorerRemote:
		client, err := remote.New(remote.Config{
			BaseURL:      cfg.ModelEndpoint,
			Model:        cfg.ModelName,
			Timeout:      cfg.ScoringTimeout,
			Attempts:     cfg.ScoringRetries,
			TokenURL:     cfg.OAuthTokenURL,
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ScorerLocal:
		p, err := predictor.Load(cfg.ModelArtifact)
		if err != nil {
			return nil, err
		}
		logger.Log.WithField("model", p.ModelVersion()).Info("loaded model artifact")
		return p, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q", cfg.Scorer)
	}
}

func buildRedactor(path string) (*dlp.Redactor, error) {
	rules, err := dlp.LoadRules(path)
	if err != nil {
		return nil, err
	}
	return dlp.NewRedactor(rules)
}

// publisherOrNil keeps a nil *kafka.Producer from becoming a non-nil interface.
func publisherOrNil(p *kafka.Producer) linkage.Publisher {
	if p == nil {
		return nil
	}
	return p
}
