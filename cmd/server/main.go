package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/api"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
	"github.com/ignite/campaign-dispatch/internal/service/delivery"
	"github.com/ignite/campaign-dispatch/internal/tracking"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional; env vars apply either way)")
	flag.Parse()

	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadFromEnv(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadDefaults()
	}

	if cfg.Database.URL == "" {
		log.Fatal("database url is required (set database.url or DATABASE_URL)")
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewDeliveryRepo(db)
	deliveries := delivery.NewService(repo)

	// Backend selection is a startup decision; a misconfigured provider
	// stack leaves the read/tracking surface up while sending answers 503.
	var dispatcher *worker.Dispatcher
	sender, err := worker.SelectSender(worker.ProviderCredentials{
		SendGridAPIKey: cfg.SendGrid.APIKey,
		SenderEmail:    cfg.Sender.FromEmail,
		MailgunAPIKey:  cfg.Mailgun.APIKey,
		MailgunDomain:  cfg.Mailgun.Domain,
		AWSAccessKey:   cfg.SES.AccessKey,
		AWSSecretKey:   cfg.SES.SecretKey,
		AWSRegion:      cfg.SES.Region,
		SMTPHost:       cfg.SMTP.Host,
		SMTPPort:       cfg.SMTP.Port,
		SMTPUser:       cfg.SMTP.Username,
		SMTPPassword:   cfg.SMTP.Password,
	})
	if err != nil {
		logger.Error("sending disabled, no provider configured", "error", err.Error())
	} else {
		dispatcher = worker.NewDispatcher(sender, deliveries)
		dispatcher.SetChunkSize(cfg.Dispatch.ChunkSize)
		dispatcher.SetMaxConcurrentSends(cfg.Dispatch.MaxConcurrentSends)
		dispatcher.SetSendTimeout(cfg.Dispatch.SendTimeout())
		dispatcher.SetDefaultFrom(cfg.Sender.FromName, cfg.Sender.FromEmail)
		if cfg.Tracking.Enabled && cfg.Tracking.BaseURL != "" {
			dispatcher.SetTrackingURL(cfg.Tracking.BaseURL)
		}
	}

	trackingHandler := tracking.NewHandler(repo, cfg.Tracking.FallbackURL)
	handlers := api.NewHandlers(dispatcher, deliveries, repo, trackingHandler)
	server := api.NewServer(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err.Error())
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
