// MeterLease Core - Device Leasing Ledger
//
// This is the main entry point for the MeterLease Core application.
// MeterLease Core is the settlement backend for leased metering devices:
//   - Device registry with owner-set pricing
//   - Escrowed pay-per-session and flat-rate subscription ledgers
//   - Balance accounting with gateway-settled withdrawals
//   - Append-only event journal fanned out over MQTT, WebSocket, and InfluxDB
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/meterlease/meterlease-core/migrations"

	"github.com/meterlease/meterlease-core/internal/api"
	"github.com/meterlease/meterlease-core/internal/balance"
	"github.com/meterlease/meterlease-core/internal/event"
	"github.com/meterlease/meterlease-core/internal/infrastructure/config"
	"github.com/meterlease/meterlease-core/internal/infrastructure/database"
	"github.com/meterlease/meterlease-core/internal/infrastructure/influxdb"
	"github.com/meterlease/meterlease-core/internal/infrastructure/logging"
	"github.com/meterlease/meterlease-core/internal/infrastructure/mqtt"
	"github.com/meterlease/meterlease-core/internal/registry"
	"github.com/meterlease/meterlease-core/internal/session"
	"github.com/meterlease/meterlease-core/internal/subscription"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting MeterLease Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, ledger events stay local")
	}

	// Connect to InfluxDB for usage metering (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub is created here so the event fan-out can reach it;
	// the API server receives it as an external hub.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Post-commit event fan-out: MQTT topics, WebSocket channels, and
	// InfluxDB metering points, in that order.
	var publisher event.MultiPublisher
	if mqttClient != nil {
		publisher = append(publisher, &mqttEventPublisher{client: mqttClient, qos: byte(cfg.MQTT.QoS), log: log})
	}
	publisher = append(publisher, hub)
	if influxClient != nil {
		publisher = append(publisher, &meteringPublisher{client: influxClient})
	}

	// Withdrawal settlement: external payout gateway, or local
	// acknowledgement in development mode.
	var transferer balance.Transferer
	if cfg.Settlement.Enabled {
		transferer = balance.NewGatewayTransferer(cfg.Settlement)
		log.Info("settlement gateway configured", "url", cfg.Settlement.URL)
	} else {
		transferer = balance.NoopTransferer{}
		log.Info("settlement gateway disabled, withdrawals acknowledged locally")
	}

	// Repositories and journal
	deviceRepo := registry.NewSQLiteRepository(db.DB)
	sessionRepo := session.NewSQLiteRepository(db.DB)
	subscriptionRepo := subscription.NewSQLiteRepository(db.DB)
	accountRepo := balance.NewSQLiteRepository(db.DB)
	journal := event.NewSQLiteJournal(db.DB)

	// Ledger services
	operator := cfg.Platform.Operator
	registryService := registry.NewService(db.DB, deviceRepo, accountRepo, journal, publisher, operator, log)
	sessionService := session.NewService(db.DB, sessionRepo, deviceRepo, accountRepo, journal, publisher, log)
	subscriptionService := subscription.NewService(db.DB, subscriptionRepo, deviceRepo, accountRepo, journal, publisher, operator, log)
	balanceService := balance.NewService(db.DB, accountRepo, journal, publisher, transferer, log)
	log.Info("ledger services initialised", "operator", operator)

	// API server
	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		Registry:      registryService,
		Sessions:      sessionService,
		Subscriptions: subscriptionService,
		Balances:      balanceService,
		Journal:       journal,
		ExternalHub:   hub,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("MeterLease Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses METERLEASE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("METERLEASE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttEventPublisher adapts the infrastructure MQTT client to the ledger's
// event.Publisher interface. Every event goes to the typed core topic;
// device and balance events additionally go to their entity topics so
// collaborators can subscribe narrowly.
type mqttEventPublisher struct {
	client *mqtt.Client
	qos    byte
	log    *logging.Logger
}

// Publish implements event.Publisher.
func (p *mqttEventPublisher) Publish(ev *event.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to marshal event for MQTT", "type", ev.Type, "error", err)
		return
	}

	topics := mqtt.Topics{}
	p.publish(topics.CoreEvent(string(ev.Type)), payload)

	switch ev.EntityType {
	case event.EntityDevice:
		if ev.Type == event.TypeDeviceHeartbeat {
			p.publish(topics.CoreDeviceHeartbeat(ev.EntityID), payload)
		} else {
			p.publish(topics.CoreDeviceEvent(ev.EntityID, string(ev.Type)), payload)
		}
	case event.EntityBalance:
		p.publish(topics.CoreBalance(ev.EntityID), payload)
	}
}

func (p *mqttEventPublisher) publish(topic string, payload []byte) {
	if err := p.client.Publish(topic, payload, p.qos, false); err != nil {
		p.log.Warn("failed to publish event to MQTT", "topic", topic, "error", err)
	}
}

// meteringPublisher records money-moving events as InfluxDB time-series
// points. Writes are batched and asynchronous; losing a point does not
// affect the ledger, which remains the source of truth.
type meteringPublisher struct {
	client *influxdb.Client
}

// Publish implements event.Publisher.
func (p *meteringPublisher) Publish(ev *event.Event) {
	switch ev.Type {
	case event.TypeSessionEnded:
		p.client.WriteSessionMetric(
			stringField(ev.Fields, "device_id"),
			stringField(ev.Fields, "user"),
			int64Field(ev.Fields, "fee"),
			secondsField(ev.Fields, "duration_seconds"),
		)
	case event.TypeSubscriptionCreated:
		p.client.WriteSubscriptionMetric(
			stringField(ev.Fields, "device_id"),
			stringField(ev.Fields, "user"),
			stringField(ev.Fields, "plan"),
			int64Field(ev.Fields, "total_fee"),
		)
	case event.TypeWithdrawn:
		p.client.WriteBalanceMetric(ev.EntityID, "withdrawal", int64Field(ev.Fields, "amount"))
	case event.TypeTreasuryFunded:
		p.client.WriteBalanceMetric("treasury", "fund", int64Field(ev.Fields, "amount"))
	case event.TypeRewardCredited:
		p.client.WriteBalanceMetric(ev.EntityID, "reward", int64Field(ev.Fields, "amount"))
	}
}

// stringField reads a string from an event field map.
func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string) //nolint:errcheck // missing field reads as empty
	return s
}

// int64Field reads an integer from an event field map. Events published
// in-process carry int64 values; events decoded from JSON carry float64.
func int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// secondsField reads a duration recorded as whole seconds.
func secondsField(fields map[string]any, key string) time.Duration {
	return time.Duration(int64Field(fields, key)) * time.Second
}
