// Presence - Bluetooth room presence agent
//
// This is the main entry point for the presence agent. Each cycle it runs
// one BLE broadcast scan and per-device classic name queries, keeps a
// decaying confidence per watched device, and publishes every device's
// state to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/api"
	"github.com/nerrad567/gray-logic-presence/internal/device"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
	"github.com/nerrad567/gray-logic-presence/internal/scan"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/presence.yaml"

// cycleMeasurement is the InfluxDB measurement for per-cycle summaries.
const cycleMeasurement = "presence_cycle"

// cliOptions holds the parsed command line.
type cliOptions struct {
	configPath  string
	showVersion bool
}

// parseFlags parses the command line. -c is kept as a short alias of -config.
func parseFlags(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("presence", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to presence.yaml (overrides PRESENCE_CONFIG)")
	fs.StringVar(&opts.configPath, "c", "", "shorthand for -config")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if opts.showVersion {
		printVersion(os.Stdout)
		return
	}

	// Cancelled on Ctrl+C or SIGTERM; the engine finishes the device in
	// flight and returns.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, getConfigPath(opts.configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path of the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting presence agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("room", cfg.Room)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, err := device.FromConfig(cfg.Devices)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	log.Info("device registry initialised", "devices", registry.Len())

	// Connect to MQTT broker. No retry here: a broker that is down at
	// startup is fatal.
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Room)
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
		"client_id", mqttClient.ClientID(),
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	store := presence.NewStore()

	// Start status API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Store:   store,
			Sink:    mqttClient,
			Room:    cfg.Room,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	shutdown := presence.NewShutdown()
	shutdown.RequestOnDone(ctx)

	engine := buildEngine(cfg, registry, mqttClient, influxClient, store, shutdown, log)

	log.Info("initialisation complete, starting scan loop",
		"interval", cfg.CycleInterval(),
		"ble_timeout", cfg.BLEScanDuration(),
		"bt_timeout", cfg.BTQueryTimeout(),
	)

	runErr := engine.Run(ctx)

	fmt.Fprintln(os.Stdout, "exiting")
	log.Info("presence agent stopped")

	// Deferred Close() calls run in reverse order:
	// 1. API server (if enabled)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (publishes offline status)
	return runErr
}

// buildEngine wires the scanners, emitter and optional metrics mirror.
func buildEngine(
	cfg *config.Config,
	registry *device.Registry,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	store *presence.Store,
	shutdown *presence.Shutdown,
	log *logging.Logger,
) *presence.Engine {
	broadcast := scan.NewBLEScanner()
	broadcast.SetLogger(log)

	querier := scan.NewClassicQuerier(cfg.Scan.BTTool)
	querier.SetLogger(log)

	emitter := presence.NewEmitter(
		mqttClient,
		mqtt.NewTopics(cfg.Topics, cfg.Room),
		mqttClient.QoS(),
		cfg.Topics.Retain,
	)
	emitter.SetLogger(log)
	emitter.SetStore(store)

	engine := presence.NewEngine(registry, broadcast, querier, emitter, mqttClient, shutdown, presence.OptionsFromConfig(cfg))
	engine.SetLogger(log)
	engine.SetStore(store)

	if influxClient != nil {
		recorder := &influxRecorder{client: influxClient, room: cfg.Room}
		emitter.SetMetrics(recorder)
		engine.SetMetrics(recorder)
	}

	return engine
}

// getConfigPath returns the configuration file path.
// The -config flag wins, then PRESENCE_CONFIG, then the default.
func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// printVersion writes the build information.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "presence %s (commit %s, built %s)\n", version, commit, date)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// influxRecorder mirrors emitted records and cycle reports to InfluxDB.
type influxRecorder struct {
	client interface {
		WritePresence(sample influxdb.PresenceSample)
		WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
	}
	room string
	now  func() time.Time
}

// RecordPresence implements presence.MetricsRecorder.
func (r *influxRecorder) RecordPresence(rec presence.Record) {
	r.client.WritePresence(influxdb.PresenceSample{
		Name:       rec.Name,
		Address:    rec.MAC,
		Transport:  rec.BTType,
		Room:       r.room,
		Confidence: rec.Confidence,
		Home:       rec.Home(),
		Timestamp:  r.timestamp(),
	})
}

// RecordCycle implements presence.MetricsRecorder.
func (r *influxRecorder) RecordCycle(report presence.CycleReport) {
	r.client.WritePoint(cycleMeasurement,
		map[string]string{"room": r.room},
		map[string]interface{}{
			"elapsed_ms":        report.Elapsed.Milliseconds(),
			"processed":         report.Processed,
			"found":             report.Found,
			"broadcast_entries": report.BroadcastEntries,
			"sensing_failures":  report.SensingFailures,
			"interrupted":       report.Interrupted,
		},
	)
}

func (r *influxRecorder) timestamp() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}
