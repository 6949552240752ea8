/*
main.go - Wallet engine entry point

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env honored)
  2. Open the SQLite store and run migrations
  3. Build the wallet engine with the configured conversion policy
  4. Start the AMQP event consumer (when AMQP_URL is set)
  5. Serve HTTP with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait for active
  requests (30s bound), stop the consumer, close the database.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/wallet-engine/api"
	"github.com/warp/wallet-engine/config"
	"github.com/warp/wallet-engine/consumer"
	"github.com/warp/wallet-engine/store/sqlite"
	"github.com/warp/wallet-engine/wallet"
)

func main() {
	log := newLogger()
	cfg := config.Load()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	engine := wallet.NewEngine(store, wallet.Options{
		Currency: cfg.DefaultCurrency,
		Policy: wallet.ConversionPolicy{
			PointsPerUnit: cfg.ConversionRate,
			MinPoints:     cfg.ConversionMinPoints,
		},
		LockWait: cfg.LockWait,
	}, log)

	handler := api.NewHandler(engine, log)
	router := api.NewRouter(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AMQP.URL != "" {
		events, err := consumer.New(cfg.AMQP, engine, log)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize event consumer")
		}
		defer events.Close()

		go func() {
			if err := events.Start(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("event consumer stopped unexpectedly")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("wallet engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	log.Info("server stopped")
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetLevel(logrus.InfoLevel)
	return log
}
