//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pg "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/postgres"
)

// Env holds the containers one test binary shares: the ledger database, the
// event broker and the dedupe cache.
type Env struct {
	PG        *postgres.PostgresContainer
	Kafka     *kafka.KafkaContainer
	Redis     testcontainers.Container
	PGURL     string
	KAddr     []string
	RedisAddr string
	Cancel    context.CancelFunc
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	env := &Env{Cancel: cancel}

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("payments"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return env.fail(err)
	}
	env.PG = pgC
	if env.PGURL, err = pgC.ConnectionString(ctx, "sslmode=disable"); err != nil {
		return env.fail(err)
	}

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("payment-engine-it"),
	)
	if err != nil {
		return env.fail(err)
	}
	env.Kafka = kafkaC
	if env.KAddr, err = kafkaC.Brokers(ctx); err != nil {
		return env.fail(err)
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		return env.fail(err)
	}
	env.Redis = redisC
	host, err := redisC.Host(ctx)
	if err != nil {
		return env.fail(err)
	}
	port, err := redisC.MappedPort(ctx, "6379/tcp")
	if err != nil {
		return env.fail(err)
	}
	env.RedisAddr = fmt.Sprintf("%s:%s", host, port.Port())
	return env, nil
}

// Pool applies the embedded migrations and opens a pool on the ledger.
func (e *Env) Pool(ctx context.Context, log *slog.Logger) (*pgxpool.Pool, error) {
	if err := pg.Migrate(log, e.PGURL); err != nil {
		return nil, err
	}
	return pgxpool.New(ctx, e.PGURL)
}

func (e *Env) fail(err error) (*Env, error) {
	e.Teardown(context.Background())
	return nil, err
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	if e.Redis != nil {
		_ = e.Redis.Terminate(ctx)
	}
	if e.Kafka != nil {
		_ = e.Kafka.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
}
