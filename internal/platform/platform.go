// Package platform wires the pieces every service binary shares.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/migrations"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/config"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/idempotency"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/logging"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/messaging"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/metrics"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/outbox"
	pg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

// App holds the shared dependencies of one service process.
type App struct {
	Config *config.Config
	Log    *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Writer *kafka.Writer

	tp *sdktrace.TracerProvider
}

// Boot loads config and opens Postgres (migrating set when enabled), Redis
// and the Kafka writer.
func Boot(ctx context.Context, service string, set migrations.Set) (*App, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.New(service, cfg.LogLevel)
	metrics.Register()

	app := &App{Config: cfg, Log: log}
	app.tp, err = tracing.Init(ctx, service, cfg.OtelEndpoint, log)
	if err != nil {
		return nil, fmt.Errorf("otel init: %w", err)
	}

	app.Pool, err = pg.Connect(ctx, log, cfg.PostgresURL)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, app.Pool, set); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrate %s: %w", set, err)
		}
		log.Info("migrations applied", "set", set)
	}

	app.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	app.Writer = messaging.NewWriter(cfg.KafkaBrokers)
	return app, nil
}

// Close releases everything Boot opened.
func (a *App) Close() {
	if a.Writer != nil {
		_ = a.Writer.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tp != nil {
		_ = a.tp.Shutdown(context.Background())
	}
}

// Idempotency returns a store under namespace.
func (a *App) Idempotency(namespace string) *idempotency.Store {
	return idempotency.NewStore(a.Redis, namespace, a.Config.IdempotencyTTL)
}

// Relay builds the outbox relay that publishes this service's outbox rows.
func (a *App) Relay() *outbox.Relay {
	c := a.Config.Outbox
	store := outbox.NewPgStore(a.Log, a.Pool, c.MaxRetries)
	dispatch := outbox.NewDispatcher(a.Log, a.Writer, a.Config.Consumer.DeadLetterTopic)
	return outbox.NewRelay(a.Log, store, dispatch, c.RelayID,
		outbox.WithBatchSize(c.BatchSize),
		outbox.WithInterval(c.Interval),
		outbox.WithLease(c.Lease),
	)
}

// Consumer builds a consumer-group reader over topics feeding handler.
func (a *App) Consumer(name string, topics []string, handler messaging.Handler) *messaging.Consumer {
	reader := messaging.NewReader(a.Config.KafkaBrokers, a.Config.Consumer.GroupID, topics)
	return a.consumer(name, reader, handler)
}

func (a *App) consumer(name string, reader messaging.Reader, handler messaging.Handler) *messaging.Consumer {
	c := a.Config.Consumer
	return messaging.NewConsumer(a.Log, reader, a.Writer, a.Offsets(), handler, messaging.Options{
		Name:            name,
		MaxAttempts:     c.MaxAttempts,
		InitialBackoff:  c.InitialBackoff,
		DeadLetterTopic: c.DeadLetterTopic,
	})
}

// Offsets returns the offset dedupe store. It is namespaced by consumer group
// since groups sharing a Redis each see every offset of a topic.
func (a *App) Offsets() *idempotency.Store {
	return a.Idempotency("offsets:" + a.Config.Consumer.GroupID)
}

// HTTPServer wraps handler with the configured address and timeouts.
func (a *App) HTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: a.Config.RequestTimeout,
		WriteTimeout:      2 * a.Config.RequestTimeout,
	}
}

// Go runs fn in the background. A failure cancels the process context.
func (a *App) Go(ctx context.Context, cancel context.CancelFunc, what string, fn func(context.Context) error) {
	go func() {
		if err := fn(ctx); err != nil {
			a.Log.Error(what+" stopped", "err", err)
			cancel()
		}
	}()
}
