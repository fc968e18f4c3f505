//go:build wireinject
// +build wireinject

package main

import (
	"log"
	"net/http"

	"github.com/google/wire"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/handler"
	"github.com/Wei-Shaw/csp2api/internal/repository"
	"github.com/Wei-Shaw/csp2api/internal/server"
	"github.com/Wei-Shaw/csp2api/internal/service"
)

type Application struct {
	Config  *config.Config
	Server  *http.Server
	Alerts  *service.AlertPollService
	Cleanup func()
}

func initializeApplication() (*Application, error) {
	wire.Build(
		// Infrastructure layer ProviderSets
		config.ProviderSet,

		// Business layer ProviderSets
		repository.ProviderSet,
		service.ProviderSet,
		handler.ProviderSet,

		// Server layer ProviderSet
		server.ProviderSet,

		// Cleanup function provider
		provideCleanup,

		// Application struct
		wire.Struct(new(Application), "Config", "Server", "Alerts", "Cleanup"),
	)
	return nil, nil
}

func provideCleanup(
	alertPoll *service.AlertPollService,
	tokenCache *service.TokenCacheService,
) func() {
	return func() {
		// Cleanup steps in reverse dependency order
		cleanupSteps := []struct {
			name string
			fn   func() error
		}{
			{"AlertPollService", func() error {
				if alertPoll != nil {
					alertPoll.Stop()
				}
				return nil
			}},
			{"TokenCacheService", func() error {
				if tokenCache != nil {
					tokenCache.Stop()
				}
				return nil
			}},
		}

		for _, step := range cleanupSteps {
			if err := step.fn(); err != nil {
				log.Printf("[Cleanup] %s failed: %v", step.name, err)
			} else {
				log.Printf("[Cleanup] %s succeeded", step.name)
			}
		}
	}
}
