// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wellpath/wellpath-backend/internal/config"
	"github.com/wellpath/wellpath-backend/internal/db"
	"github.com/wellpath/wellpath-backend/internal/handler"
	"github.com/wellpath/wellpath-backend/internal/metrics"
	"github.com/wellpath/wellpath-backend/internal/push"
	"github.com/wellpath/wellpath-backend/internal/queue"
	"github.com/wellpath/wellpath-backend/internal/repository"
	"github.com/wellpath/wellpath-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
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

	sweeper := service.NewSweeper(campaignRepo, dispatcher, m, cfg.StaleThreshold)

	// With a broker configured the server only publishes dispatch jobs and
	// cmd/worker consumes them; otherwise dispatch runs in-process.
	var q queue.Queue
	if cfg.AMQPURL != "" {
		rq, err := queue.NewRabbitQueue(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		defer rq.Close()
		q = rq
	} else {
		mq := queue.NewInMemoryQueue()
		if err := service.StartDispatchSubscriber(mq, dispatcher); err != nil {
			log.Fatal().Err(err).Msg("failed to start dispatch subscriber")
		}
		q = mq
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		Queue:        q,
	}

	campaignHandler := handler.NewCampaignHandler(campaignService)
	deviceHandler := handler.NewDeviceHandler(deviceRepo)
	sweepHandler := handler.NewSweepHandler(sweeper, cfg.SweepSecret, cfg.Development())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx, cfg.SweepInterval)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Campaign routes
	r.Post("/campaigns", campaignHandler.CreateCampaignHandler)
	r.Get("/campaigns", campaignHandler.ListCampaignsHandler)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandler)
	r.Post("/campaigns/{id}/send", campaignHandler.SendCampaignHandler)

	// Device token routes
	r.Post("/devices", deviceHandler.RegisterHandler)
	r.Delete("/devices/{token}", deviceHandler.DeactivateHandler)

	// Operational routes
	r.Post("/internal/sweep", sweepHandler.TriggerHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server running")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
