//go:build integration

package integration

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

type Env struct {
	PG     *postgres.PostgresContainer
	Kafka  *kafka.KafkaContainer
	Redis  *tcredis.RedisContainer
	PGURL  string
	KAddr  []string
	RDB    *redis.Client
	Cancel context.CancelFunc
}

func Setup(ctx context.Context) (env *Env, err error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	env = &Env{Cancel: cancel}
	defer func() {
		if err != nil {
			env.Teardown(context.Background())
		}
	}()

	env.PG, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cibf"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	if env.PGURL, err = env.PG.ConnectionString(ctx, "sslmode=disable"); err != nil {
		return nil, err
	}

	env.Kafka, err = kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("cibf-test"),
	)
	if err != nil {
		return nil, err
	}
	if env.KAddr, err = env.Kafka.Brokers(ctx); err != nil {
		return nil, err
	}
	if err = createTopics(env.KAddr[0], append(append([]string{"cibf.dead-letter"}, events.ReservationTopics...), events.StallTopics...)); err != nil {
		return nil, err
	}

	env.Redis, err = tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, err
	}
	uri, err := env.Redis.ConnectionString(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	env.RDB = redis.NewClient(opts)
	return env, nil
}

func createTopics(broker string, topics []string) error {
	conn, err := kafkago.Dial("tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cc.Close()

	cfgs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, t := range topics {
		cfgs = append(cfgs, kafkago.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
	}
	return cc.CreateTopics(cfgs...)
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	if e.RDB != nil {
		_ = e.RDB.Close()
	}
	var running []testcontainers.Container
	if e.Redis != nil {
		running = append(running, e.Redis)
	}
	if e.Kafka != nil {
		running = append(running, e.Kafka)
	}
	if e.PG != nil {
		running = append(running, e.PG)
	}
	for _, c := range running {
		_ = testcontainers.TerminateContainer(c)
	}
}
