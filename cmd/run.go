package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/spotskill/internal/bus"
	"github.com/desertthunder/spotskill/internal/formatter"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/server"
	"github.com/desertthunder/spotskill/internal/services"
	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/desertthunder/spotskill/internal/skill"
	"github.com/desertthunder/spotskill/internal/tasks"
	"github.com/urfave/cli/v3"
)

// pipeline is the command path shared by `run` and `console`.
type pipeline struct {
	cache     *tasks.Cache
	refresher *tasks.Refresher
	skill     *skill.Skill
}

// pipeline wires the Spotify client, registry, cache and templates into a skill.
// publisher may be nil when responses are read from [skill.Skill.Process] directly.
func (r *Runner) pipeline(ctx context.Context, publisher skill.Publisher) (*pipeline, error) {
	client, err := r.spotifyClient(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := r.registry()
	if err != nil {
		return nil, err
	}

	catalog, err := formatter.NewCatalog(r.config.Skill.TemplatesPath)
	if err != nil {
		return nil, err
	}

	cache := tasks.NewCache(shared.Duration(r.config.Skill.CacheTTL, 10*time.Minute))
	refresher := tasks.NewRefresher(cache, client, registry, r.logger)
	executor := skill.NewExecutor(client, registry, cache, shared.Duration(r.config.Skill.ActivationDelay, 3*time.Second), r.logger)

	return &pipeline{
		cache:     cache,
		refresher: refresher,
		skill:     skill.New(skill.OptionsFromConfig(r.config), executor, catalog, publisher, r.logger),
	}, nil
}

// Run connects to the broker and handles intents until interrupted.
//
// Alongside the command worker it runs the cache refresher and an HTTP server exposing /health and /metrics.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bus.Connect(ctx, r.config.MQTT, r.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := r.pipeline(ctx, client)
	if err != nil {
		return err
	}
	p.refresher.Start(ctx, shared.Duration(r.config.Skill.RefreshInterval, 5*time.Minute))

	if err := client.Subscribe(ctx, r.config.MQTT.IntentTopic, func(intent models.Intent) {
		p.skill.Enqueue(intent)
	}); err != nil {
		return err
	}

	router := r.statusRouter(p)
	srv := server.New(r.config.Server.Addr(), router, r.logger)

	errs := make(chan error, 2)
	go func() { errs <- p.skill.Run(ctx) }()
	go func() { errs <- srv.ListenAndServe(ctx) }()

	r.logger.Info("skill running",
		"broker", r.config.MQTT.BrokerURL(),
		"intents", r.config.MQTT.IntentTopic,
		"http", srv.Addr(),
		"routes", router.Routes(),
	)

	var result error
	for range 2 {
		if err := <-errs; err != nil && result == nil {
			result = err
			stop()
		}
	}

	if result != nil && !errors.Is(result, context.Canceled) {
		return fmt.Errorf("skill stopped: %w", result)
	}
	r.logger.Info("skill stopped")
	return nil
}

// statusRouter serves the health checks and the metrics registry.
func (r *Runner) statusRouter(p *pipeline) *server.BasicRouter {
	checks := map[string]server.Check{
		"cache": func(context.Context) error {
			if p.cache.Peek() == nil {
				return errors.New("playlists and devices not loaded yet")
			}
			return nil
		},
	}
	if r.dbs != nil {
		checks["database"] = r.dbs.Registry.PingContext
	}

	registry := server.MetricsRegistry(
		services.MetricsCollectors(),
		tasks.MetricsCollectors(),
		skill.MetricsCollectors(),
	)

	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(server.NewHealthHandler(checks))
	router.Handle(http.MethodGet, "/metrics", server.MetricsHandler(registry))
	return router
}
