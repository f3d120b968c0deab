// OSC Bridge
//
// oscbridge exposes the parameters of an OSC application as Home Assistant
// entities over MQTT discovery, and forwards Home Assistant commands back to
// the application as OSC messages.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/osc-bridge/migrations"

	"github.com/nerrad567/osc-bridge/internal/api"
	"github.com/nerrad567/osc-bridge/internal/audit"
	oscbridge "github.com/nerrad567/osc-bridge/internal/bridges/osc"
	"github.com/nerrad567/osc-bridge/internal/entity"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/config"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/database"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/mqtt"
	osctransport "github.com/nerrad567/osc-bridge/internal/infrastructure/osc"
	"github.com/nerrad567/osc-bridge/internal/metrics"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled or the
// bridge fails. It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting OSC bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "config", cfg.String())

	// MQTT
	topics := mqtt.Topics{Namespace: cfg.Discovery.Namespace, BridgeID: cfg.Bridge.ID}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"availability", topics.Availability(),
	)

	checks := map[string]api.HealthChecker{"mqtt": mqttClient}
	m := metrics.New()

	// InfluxDB (optional)
	var history oscbridge.StateHistory
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		history = influxClient
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// SQLite audit log (optional)
	var recorder *audit.Recorder
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		recorder = audit.NewRecorder(audit.NewSQLiteRepository(db.DB), cfg.Bridge.ID)
		checks["database"] = db
		log.Info("audit log enabled", "path", db.Path())
	}

	// Entity registry
	registry := newRegistry(cfg, mqttClient, topics)

	// OSC transport
	listener, err := osctransport.Listen(cfg.OSC)
	if err != nil {
		return fmt.Errorf("starting OSC listener: %w", err)
	}
	defer listener.Close()
	sender, err := osctransport.NewSender(cfg.OSC)
	if err != nil {
		return fmt.Errorf("creating OSC sender: %w", err)
	}
	log.Info("OSC transport ready", "listen", listener.Addr().String(), "target", sender.Target())

	static, err := staticEntities(cfg.Entities)
	if err != nil {
		return err
	}

	opts := oscbridge.Options{
		Registry:     registry,
		MQTT:         mqttClient,
		Receiver:     listener,
		Sender:       sender,
		CommandTopic: topics.Commands(),
		QoS:          byte(cfg.MQTT.QoS),
		RetainState:  cfg.State.Retain,
		Static:       static,
		Logger:       log.Component("bridge"),
		Metrics:      m,
		History:      history,
	}
	if recorder != nil {
		opts.Recorder = recorder
	}
	bridge, err := oscbridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Preload(ctx); err != nil {
		log.Warn("some static entities were not registered", "error", err)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Entities: registry,
			Version:  version,
			Bridge:   bridge,
			Metrics:  m,
			Checks:   checks,
		}
		if recorder != nil {
			deps.Audit = recorder
			deps.DBStats = db.Stats
		}
		server, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if recorder != nil {
		if err := recorder.BridgeStarted(ctx, version); err != nil {
			log.Warn("audit start record failed", "error", err)
		}
		defer func() {
			if err := recorder.BridgeStopped(context.Background(), registry.Len()); err != nil {
				log.Warn("audit stop record failed", "error", err)
			}
		}()
	}

	log.Info("initialisation complete", "entities", registry.Len())

	if err := bridge.Run(ctx); err != nil {
		return fmt.Errorf("bridge stopped: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns OSCBRIDGE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("OSCBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newRegistry builds the entity registry with a discovery publisher that
// attaches every entity to one bridge device.
func newRegistry(cfg *config.Config, publisher entity.MQTTPublisher, topics mqtt.Topics) *entity.Registry {
	factory := &entity.Factory{
		Namespace:      cfg.Discovery.Namespace,
		NamePrefix:     cfg.Discovery.NamePrefix,
		UniqueIDPrefix: cfg.Discovery.UniqueIDPrefix,
	}

	discovery := entity.NewDiscoveryPublisher(publisher, entity.DiscoveryOptions{
		QoS:               byte(cfg.MQTT.QoS),
		Retain:            cfg.Discovery.Retain,
		AvailabilityTopic: topics.Availability(),
		Device: entity.DeviceInfo{
			Identifiers:   []string{"osc_bridge_" + cfg.Bridge.ID},
			Name:          cfg.Discovery.DeviceName,
			SuggestedArea: cfg.Discovery.SuggestedArea,
		},
	})

	return entity.NewRegistry(factory, discovery)
}

// staticEntities converts the configured entity table.
func staticEntities(entries []config.EntityConfig) ([]oscbridge.StaticEntity, error) {
	out := make([]oscbridge.StaticEntity, 0, len(entries))
	var errs []error
	for _, e := range entries {
		kind, err := entity.ParseValueKind(e.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("entity %s: %w", e.Address, err))
			continue
		}
		out = append(out, oscbridge.StaticEntity{Address: e.Address, Kind: kind})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
