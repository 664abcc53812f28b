// Package bootstrap wires the pieces every binary starts with: env files,
// config, logger, the shared clients and shutdown on SIGTERM.
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/instance"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/migrate"
	"github.com/angelmondragon/cropmarket-backend/pkg/pubsub"
	"github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

type closer struct {
	name string
	fn   func() error
}

// Process owns the config, logger and open clients of one binary. Resources
// registered with Defer are closed in reverse order by Close, and by Check
// before it exits.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(code int)
}

// Start loads .env and the config for the named binary, exiting on failure.
func Start(name string) *Process {
	p := &Process{
		Name:   name,
		Logger: logger.New(logger.Options{ServiceName: name}),
		exit:   os.Exit,
	}
	ctx := context.Background()
	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	p.Check(ctx, "load config", err)
	cfg.Service.Kind = name
	p.Config = cfg

	p.Logger = logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	return p
}

// Check logs err, closes what is open and exits. A nil err is a no-op.
func (p *Process) Check(ctx context.Context, step string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(p.Logger.WithField(ctx, "step", step), "startup failed: "+step, err)
	p.Close()
	p.exit(1)
}

// Defer registers fn to run on Close.
func (p *Process) Defer(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers newest first. It is safe to call twice.
func (p *Process) Close() {
	closers := p.closers
	p.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
}

// Database opens the primary database and, in dev, brings its schema up.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Check(ctx, "connect database", err)
	p.Defer("database", client.Close)
	p.Check(ctx, "dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Check(ctx, "connect redis", err)
	p.Defer("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Check(ctx, "connect pubsub", err)
	p.Defer("pubsub", client.Close)
	return client
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the process
// identity as log fields.
func (p *Process) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Name,
		"instance":    instance.GetID(),
	})
	return ctx, stop
}

// ServeMetrics exposes gatherer on CROPMARKET_METRICS_ADDR until ctx ends.
// Nothing is started when the address is empty.
func (p *Process) ServeMetrics(ctx context.Context, gatherer prometheus.Gatherer) {
	addr := p.Config.App.MetricsAddr
	if addr == "" {
		return
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		p.Logger.Error(p.Logger.WithField(ctx, "addr", addr), "metrics listener failed", err)
		return
	}
	go p.serveMetrics(ctx, ln, gatherer)
}

func (p *Process) serveMetrics(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	p.Logger.Info(p.Logger.WithField(ctx, "addr", ln.Addr().String()), "serving metrics")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.Logger.Error(ctx, "metrics server stopped", err)
	}
}

// Finish reports how the main loop ended and closes resources. A cancelled
// context is a clean shutdown; anything else exits non-zero.
func (p *Process) Finish(ctx context.Context, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, p.Name+" stopped unexpectedly", err)
		p.Close()
		p.exit(1)
		return
	}
	p.Logger.Info(ctx, p.Name+" shutting down gracefully")
	p.Close()
}
