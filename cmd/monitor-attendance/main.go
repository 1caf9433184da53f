package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/config"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/logger"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/service"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/telemetry"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. optional .env for local runs
	_ = godotenv.Load()

	// 2. config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 3. logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, service.ServiceName)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 4. tracing
	shutdownTracing := telemetry.Setup(service.ServiceName, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error("Failed to shut down tracing", zap.Error(err))
		}
	}()

	// 5. service
	presenceService, err := service.NewPresenceService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create presence service", zap.Error(err))
	}
	defer presenceService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- presenceService.Start(ctx)
	}()

	// 6. wait for a signal or a fatal serve error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		if err := <-serviceDone; err != nil {
			log.Error("Service stopped with error", zap.Error(err))
		}
	case err := <-serviceDone:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
	}

	log.Info("Presence service stopped")
}
