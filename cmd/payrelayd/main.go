// payrelayd relays vending-machine payment requests from Firebase Realtime
// Database to the ABA PayWay gateway and polls each transaction until it
// settles or expires.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"payrelay/internal/config"
	"payrelay/internal/httpapi"
	"payrelay/internal/payway"
	"payrelay/internal/relay"
	"payrelay/internal/tree"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("payrelayd failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceAccount, err := cfg.Firebase.ServiceAccountJSON()
	if err != nil {
		return fmt.Errorf("firebase credentials: %w", err)
	}
	store, err := tree.NewFirebase(ctx, tree.FirebaseConfig{
		DatabaseURL:        cfg.Firebase.DatabaseURL,
		ServiceAccountJSON: serviceAccount,
	})
	if err != nil {
		return err
	}
	log.Info("firebase connected", "database", cfg.Firebase.DatabaseURL)

	gateway := payway.NewClient(&payway.Config{
		CheckoutURL:  cfg.PayWay.APIURL,
		CheckURL:     cfg.PayWay.CheckURL,
		MerchantID:   cfg.PayWay.MerchantID,
		APIKey:       cfg.PayWay.APIKey,
		CallbackBase: cfg.ServerURL,
	})

	orchestrator := relay.New(store, gateway, &relay.Options{Logger: log})
	watcher := tree.NewWatcher(store, store, orchestrator.HandleSnapshot, log)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("watcher stopped", "err", err)
			stop()
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: httpapi.NewRouter(store, log),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()
	log.Info("payrelay running", "port", cfg.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	log.Info("stopped")
	return nil
}
