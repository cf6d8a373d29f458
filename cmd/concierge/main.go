package main

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/classifier"
	"github.com/brightstay/concierge/internal/dispatcher"
	"github.com/brightstay/concierge/internal/matcher"
	"github.com/brightstay/concierge/internal/responder"
	"github.com/brightstay/concierge/internal/server"
	"github.com/brightstay/concierge/internal/sink"
	"github.com/brightstay/concierge/internal/store"
	"github.com/brightstay/concierge/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize thread store
	var threads store.ThreadStore
	switch cfg.Store.Backend {
	case "redis":
		logger.Info("Using redis thread store", zap.String("addr", cfg.Redis.Addr))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		threads = store.NewRedisStore(client, logger)
	default:
		logger.Info("Using in-memory thread store")
		threads = store.NewMemoryStore(logger)
	}
	defer threads.Close()

	// Initialize persistence sink
	var recordSink sink.Sink
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory persistence sink")
		recordSink = sink.NewMemorySink()
	} else {
		logger.Info("Using PostgreSQL persistence sink")
		recordSink, err = sink.NewPostgresSink(sink.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize persistence sink", zap.Error(err))
		}
	}
	defer recordSink.Close()

	// Initialize classifier and responder
	clf := classifier.NewGPTClassifier(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.ClassifierModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
	rsp := responder.NewGPTResponder(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.ResponderModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		recordSink,
		logger,
	)

	// Initialize dispatcher
	d := dispatcher.New(threads, matcher.New(threads, logger), clf, rsp, recordSink, logger)

	// Start the HTTP server
	srv := server.New(d, threads, logger)
	logger.Info("Starting server", zap.String("address", cfg.Server.Address))
	if err := http.ListenAndServe(cfg.Server.Address, srv.Handler()); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
