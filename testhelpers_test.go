//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/freightline/service-loads/internal/adapters/routeclient"
	"github.com/freightline/service-loads/internal/application"
	"github.com/freightline/service-loads/internal/application/recalc"
	loadEvents "github.com/freightline/service-loads/internal/events"
	"github.com/freightline/service-loads/internal/repository"
	"github.com/freightline/service-loads/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// loadStack holds wired-up loads service components.
type loadStack struct {
	Service  *application.LoadService
	Consumer *loadEvents.RouteLoadedConsumer
	Registry *recalc.Registry
	Cleanup  func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_loads",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_loads sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.LoadModel{}, &repository.StopModel{}, &repository.FacilityModel{}))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, loadEvents.TopicLoadEvents, loadEvents.TopicRouteEvents, loadEvents.TopicMapEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// createTopics pre-creates Kafka topics so consumers can join immediately.
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	configs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		configs[i] = kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}
	}
	require.NoError(t, controllerConn.CreateTopics(configs...))
}

// newFakeGateway serves routing gateway responses for the resolver.
func newFakeGateway(t *testing.T, distanceMiles, durationHours float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"distance_miles": distanceMiles,
			"duration_hours": durationHours,
			"geometry":       "itest-geometry",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupLoadStack wires up the full loads service stack against the given
// gateway URL.
func setupLoadStack(t *testing.T, db *gorm.DB, brokers []string, gatewayURL string) *loadStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	loadRepo := repository.NewGormLoadRepository(db)
	stopRepo := repository.NewGormStopRepository(db)
	facilityRepo := repository.NewGormFacilityRepository(db)

	resolver, err := routeclient.NewGatewayResolver(gatewayURL, "itest-key", nil, logger)
	require.NoError(t, err)

	registry := recalc.NewRegistry(resolver, recalc.Config{
		Debounce:       50 * time.Millisecond,
		ResolveTimeout: 5 * time.Second,
	}, logger)

	producer := kafka.NewProducer(brokers, logger)
	service := application.NewLoadService(loadRepo, stopRepo, facilityRepo, registry, producer, logger)

	groupID := fmt.Sprintf("test-loads-%s", uuid.New().String()[:8])
	consumer := loadEvents.NewRouteLoadedConsumer(brokers, groupID, service, logger)

	return &loadStack{
		Service:  service,
		Consumer: consumer,
		Registry: registry,
		Cleanup:  func() { _ = producer.Close() },
	}
}

// seedLoad inserts a draft load directly into the database.
func seedLoad(t *testing.T, db *gorm.DB, loadID uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()

	model := repository.LoadModel{
		ID:              loadID,
		ReferenceNumber: fmt.Sprintf("LD-INT%s", uuid.New().String()[:3]),
		Status:          "draft",
		BrokerName:      "Integration Broker",
		PickupCity:      "Chicago",
		PickupState:     "IL",
		DeliveryCity:    "Dallas",
		DeliveryState:   "TX",
		RevenueCents:    200000,
		DriverPayCents:  150000,
		MilesSource:     "calculated",
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed load")
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForLoadMiles polls the loads table until the miles figure matches.
func waitForLoadMiles(t *testing.T, db *gorm.DB, loadID uuid.UUID, expectedMiles float64, timeout time.Duration) repository.LoadModel {
	t.Helper()
	var result repository.LoadModel
	require.Eventually(t, func() bool {
		var model repository.LoadModel
		if err := db.Where("id = ?", loadID).First(&model).Error; err != nil {
			return false
		}
		if model.Miles == expectedMiles {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "load miles never reached %v", expectedMiles)
	return result
}

// consumeOneEvent reads events from a topic until one of the wanted type appears.
func consumeOneEvent(t *testing.T, brokers []string, topic, eventType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		StartOffset: kafkago.FirstOffset,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		msg, err := reader.ReadMessage(ctx)
		require.NoError(t, err, "no %s event on %s", eventType, topic)

		var ce kafka.CloudEvent
		if err := json.Unmarshal(msg.Value, &ce); err != nil {
			continue
		}
		if ce.Type == eventType {
			return ce
		}
	}
}
