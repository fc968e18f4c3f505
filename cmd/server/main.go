package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wei-Shaw/csp2api/internal/pkg/logger"
)

func main() {
	app, err := initializeApplication()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer app.Cleanup()

	if err := logger.Init(logger.FromConfig(app.Config.Log)); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 告警轮询在配置未开启时内部 no-op
	app.Alerts.Start()

	go func() {
		log.Printf("[Server] listening on %s", app.Server.Addr)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("[Server] shutting down ...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Server.Shutdown(ctx); err != nil {
		log.Printf("[Server] shutdown error: %v", err)
	}
	log.Printf("[Server] stopped")
}
