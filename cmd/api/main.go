package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-router/internal/audit"
	"call-router/internal/auth"
	"call-router/internal/calls"
	"call-router/internal/carrier"
	"call-router/internal/config"
	"call-router/internal/directory"
	"call-router/internal/messaging"
	"call-router/internal/migrations"
	"call-router/internal/reporting"
	"call-router/internal/routing"
	"call-router/internal/telephony"
	"call-router/pkg/logger"
	"call-router/pkg/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: cfg.DB.MaxOpenConns})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := migrations.Apply(rootCtx, db, log); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Stores
	agents := directory.NewPostgresStore(db)
	sessions := directory.NewRedisSessionStore(rdb, cfg.Directory.SessionKeyPrefix, cfg.Directory.SessionTTL)
	callRepo := calls.NewPostgresRepo(db)
	msgRepo := messaging.NewPostgresRepo(db)

	// Carrier. A disabled carrier still serves webhooks with the spoken fallback.
	var carrierClient carrier.Client = carrier.NewDisabledClient()
	var voiceIssuer *auth.VoiceTokenIssuer
	if cfg.Twilio.Enabled {
		tc, err := carrier.NewTwilioClient(cfg.Twilio, log)
		if err != nil {
			log.Error("carrier init failed", "err", err)
			os.Exit(1)
		}
		carrierClient = tc

		voiceIssuer, err = auth.NewVoiceTokenIssuer(cfg.Twilio)
		if err != nil {
			log.Error("voice token issuer init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("twilio disabled; inbound calls will get the unavailable message")
	}

	// Services
	callService := calls.NewService(callRepo, carrierClient, log)
	msgService := messaging.NewService(msgRepo, log)
	sender := messaging.NewSender(carrierClient, msgService, messaging.SenderConfig{
		Rate:           rate.Limit(cfg.Twilio.MessageSendRate),
		Burst:          cfg.Twilio.MessageSendBurst,
		StatusCallback: cfg.PublicURL(messageStatusPath),
	}, log)
	resolver := directory.NewResolver(agents, sessions, cfg.Directory.LookupTimeout, log)
	router := routing.NewRoutingEngine(resolver, log)
	builder := telephony.NewResponseBuilder(telephony.BuilderConfig{
		RecordCalls:        cfg.Twilio.RecordCalls,
		RecordingCallback:  cfg.PublicURL(recordingPath),
		UnavailableMessage: cfg.Twilio.UnavailableMessage,
	})

	d := deps{
		auth:     authManager,
		authMW:   auth.RequireAccessToken(authManager),
		db:       db,
		rdb:      rdb,
		agents:   agents,
		presence: sessions,
		carrier:  carrierClient,
		voice:    voiceIssuer,
		webhooks: telephony.TwilioWebhookHandler{
			Enabled:   cfg.Twilio.Enabled,
			Verifier:  telephony.Verifier{AccountSID: cfg.Twilio.AccountSID, ApplicationSID: cfg.Twilio.ApplicationSID},
			Router:    router,
			Builder:   builder,
			Directory: agents,
			Calls:     callService,
			Messages:  msgService,
		},
		sender:  sender,
		reports: reporting.NewService(reporting.RecordsRepo{Calls: callRepo, Messages: msgRepo}),
		audit:   audit.NewService(audit.NewPostgresRepo(db)),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, d)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "twilio_enabled", cfg.Twilio.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
