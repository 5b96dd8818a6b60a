package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rxlink/pkg/common/config"
	"github.com/synaptica-ai/rxlink/pkg/common/logger"
	"github.com/synaptica-ai/rxlink/pkg/common/middleware"
	"github.com/synaptica-ai/rxlink/pkg/serving"
	"github.com/synaptica-ai/rxlink/pkg/serving/predictor"
)

// The serving service hosts one or more artifacts (RXLINK_MODEL_ARTIFACT,
// comma separated) behind the scoring contract used by RXLINK_SCORER=remote.
// It listens on SERVING_PORT so it can run next to the linkage service.
func main() {
	logger.Init("serving-service")
	cfg := config.Load()
	if err := cfg.ValidateServing(); err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}

	var preds []*predictor.Predictor
	for _, path := range cfg.ArtifactPaths() {
		p, err := predictor.Load(path)
		if err != nil {
			logger.Log.WithError(err).WithField("path", path).Fatal("failed to load model artifact")
		}
		logger.Log.WithField("model", p.ModelVersion()).Info("loaded model artifact")
		preds = append(preds, p)
	}
	server, err := serving.NewServer(preds...)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to register models")
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	server.Register(router)

	httpServer := &http.Server{
		Addr:         cfg.ServingAddr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"addr":   cfg.ServingAddr(),
			"models": len(preds),
		}).Info("Serving Service started")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Serving Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
