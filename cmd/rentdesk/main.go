package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rentdesk/internal/config"
	"rentdesk/internal/http/handlers"
	"rentdesk/internal/livesync"
	applog "rentdesk/internal/log"
	"rentdesk/internal/metrics"
	"rentdesk/internal/repos"
	"rentdesk/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
			log.SetOutput(out)
		}
	}
	applog.Setup(applog.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: out})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	store := repos.NewDocStore(db)

	// Change fan-out: local subscribers, plus other instances when redis is set.
	hub := livesync.NewHub()
	store.OnChange(func(collection string) {
		hub.Broadcast(livesync.Event{Collection: collection})
	})
	if cfg.RedisURL != "" {
		bridge, err := livesync.NewRedisBridge(ctx, cfg.RedisURL, hub)
		if err != nil {
			log.Fatal(err)
		}
		defer bridge.Close()
		store.OnChange(bridge.Notify)
		go bridge.Run(ctx)
		log.Printf("[livesync] redis bridge up")
	}

	if cfg.SeedDemo {
		if err := repos.SeedDemo(ctx, store); err != nil {
			log.Fatal(err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	feed := livesync.NewFeed(hub, store)
	mirror := livesync.NewMirror(feed)
	mirror.OnUpdate(m.ObserveState)
	mirror.Start(ctx)
	defer mirror.Stop()

	app := fiber.New(fiber.Config{
		Views:        web.Engine(),
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    cfg.BodyLimit,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: out}))
	app.Use(helmet.New())
	app.Use(handlers.Observe(m))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RatePerMin,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics" || strings.HasSuffix(p, "/stream")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.limit.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	// ---------- Routes ----------
	deps := handlers.NewDeps(ctx, store, mirror, feed, m)
	handlers.Mount(app, deps)
	app.Get("/metrics", handlers.MetricsHandler(reg))
	app.Use(handlers.NotFound)

	go func() {
		<-ctx.Done()
		log.Printf("[server] shutting down")
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	log.Printf("[server] listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
