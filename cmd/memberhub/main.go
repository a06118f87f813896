package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/memberhub/memberhub/internal/auth/app"
)

//go:generate swag init -d ../../ -g internal/auth/http/router.go -o ../../api/auth --parseDependency

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
