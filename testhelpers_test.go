//go:build integration

package main_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/servicehub/service-booking/internal/application"
	"github.com/servicehub/service-booking/internal/common/database"
	"github.com/servicehub/service-booking/internal/common/kafka"
	"github.com/servicehub/service-booking/internal/events"
	"github.com/servicehub/service-booking/internal/lock"
	"github.com/servicehub/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Redis        *goRedis.Client
	Cleanup      func()
}

// setupContainers starts PostgreSQL, Kafka and Redis, applies migrations and
// returns connected clients.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test_booking",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	var db *gorm.DB
	require.Eventually(t, func() bool {
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")
	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), "migrations", logger))

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisEndpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)
	redisClient := goRedis.NewClient(&goRedis.Options{Addr: redisEndpoint})
	require.NoError(t, redisClient.Ping(ctx).Err())

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")
	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")
	createTopics(t, kafkaBrokers, events.TopicBookingEvents)

	cleanup := func() {
		_ = redisClient.Close()
		for name, c := range map[string]testcontainers.Container{
			"Kafka":      kafkaContainer,
			"Redis":      redisContainer,
			"PostgreSQL": pgContainer,
		} {
			if err := c.Terminate(ctx); err != nil {
				t.Logf("failed to terminate %s container: %v", name, err)
			}
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Redis:        redisClient,
		Cleanup:      cleanup,
	}
}

// newBookingService wires a service instance the way cmd/server does with
// redis configured. Instances built from the same infra share the lock.
func newBookingService(t *testing.T, infra *testInfra) *application.BookingService {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	producer := kafka.NewProducer(infra.KafkaBrokers, logger)
	t.Cleanup(func() { _ = producer.Close() })

	return application.NewBookingService(
		repository.NewGormBookingRepository(infra.DB),
		producer,
		lock.NewRedisLocker(infra.Redis, 5*time.Second, logger),
		3*time.Second,
		logger,
	)
}

// createBooking creates a pending booking between fresh parties.
func createBooking(t *testing.T, svc *application.BookingService) (bk *application.BookingDTO, clientID, providerID uuid.UUID) {
	t.Helper()
	clientID, providerID = uuid.New(), uuid.New()
	bk, err := svc.CreateBooking(context.Background(), clientID, application.CreateBookingRequest{
		ProviderID:     providerID,
		Provider:       application.PartyInfo{DisplayName: "Integration Provider"},
		Client:         application.PartyInfo{DisplayName: "Integration Client"},
		Title:          "Deep clean apartment",
		Address:        "1 Test Way",
		Schedule:       application.ScheduleInput{Date: "2026-12-05", Time: "10:00"},
		BudgetMinCents: 10000,
		BudgetMaxCents: 20000,
	})
	require.NoError(t, err)
	return bk, clientID, providerID
}

// consumeEvent reads booking.events through kafka.Consumer until it sees an
// event of expectedType for subject.
func consumeEvent(t *testing.T, brokers []string, expectedType, subject string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicBookingEvents, zap.NewNop())
	defer func() { _ = consumer.Close() }()

	errFound := errors.New("found")
	var found kafka.CloudEvent
	err := consumer.Consume(ctx, func(_ context.Context, msg kafkago.Message) error {
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			return nil
		}
		if ce.Type == expectedType && ce.Subject == subject {
			found = ce
			return errFound
		}
		return nil
	})
	require.ErrorIs(t, err, errFound, "timed out waiting for %s on %s", expectedType, events.TopicBookingEvents)
	return found
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
