// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wellpath/wellpath-backend/internal/config"
	"github.com/wellpath/wellpath-backend/internal/db"
	"github.com/wellpath/wellpath-backend/internal/metrics"
	"github.com/wellpath/wellpath-backend/internal/push"
	"github.com/wellpath/wellpath-backend/internal/queue"
	"github.com/wellpath/wellpath-backend/internal/repository"
	"github.com/wellpath/wellpath-backend/internal/service"
)

// The worker consumes dispatch jobs from RabbitMQ so that campaign fan-out
// runs outside the API process.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if cfg.AMQPURL == "" {
		log.Fatal().Msg("AMQP_URL is required for the worker")
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	deviceRepo := &repository.DeviceTokenRepository{DB: conn}
	m := metrics.New()

	var sender push.Sender
	if cfg.FCMServerKey != "" {
		sender = push.NewFCMSender(cfg.FCMServerKey, cfg.PushTimeout)
	} else {
		log.Warn().Msg("FCM_SERVER_KEY not set, using noop push sender")
		sender = push.NoopSender{}
	}

	dispatcher := service.NewDispatcher(campaignRepo, deviceRepo, sender, m)
	dispatcher.BatchSize = cfg.DispatchBatchSize
	dispatcher.ErrorCap = cfg.SendErrorCap

	q, err := queue.NewRabbitQueue(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer q.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = q.Subscribe(queue.TopicCampaignDispatch, func(campaignID uuid.UUID) error {
		return dispatcher.Dispatch(ctx, campaignID)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}

	log.Info().Msg("worker running, waiting for dispatch jobs")
	<-ctx.Done()
	log.Info().Msg("worker shutting down")
}
