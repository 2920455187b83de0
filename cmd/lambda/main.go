package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/iho/txconsumer/internal/app"
	"github.com/iho/txconsumer/internal/infrastructure/config"
	"github.com/iho/txconsumer/internal/infrastructure/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
		Output:  os.Stdout,
	})

	// Connections are opened once per execution environment and reused by
	// every invocation.
	a, err := app.Build(context.Background(), cfg, appLogger, app.Options{})
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to build processor")
	}
	defer a.Close()

	h := &sqsHandler{
		processor: a.Dispatcher,
		requeue:   cfg.RequeueStorageFailures,
		logger:    appLogger.With().Str("component", "sqs_handler").Logger(),
	}

	appLogger.Info().
		Str("backend", cfg.StorageBackend).
		Bool("guard", cfg.GuardEnabled()).
		Bool("requeue", cfg.RequeueStorageFailures).
		Msg("starting lambda handler")

	lambda.Start(h.Handle)
}
