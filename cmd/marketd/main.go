// Package main runs the market layer HTTP server.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hangarlink/market_layer/internal/app/runtime"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	application, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("failed to initialise application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
