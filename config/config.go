// Package config loads the settings of the order-pipeline command.
//
// Values come from ORDERS_* environment variables, parsed with caarlos0/env, and command line flags override them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AntonStoeckl/order-lifecycle-streams/pipeline"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ORDERS_"

// Backends.
const (
	BackendRedis    = "redis"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Postgres driver flavours.
const (
	DriverPGX   = "pgx"
	DriverSQLDB = "sqldb"
	DriverSQLX  = "sqlx"
)

const eventsPerEntity = 5

var (
	// ErrParseEnv wraps failures of the environment parser.
	ErrParseEnv = errors.New("parsing environment failed")

	// ErrParseFlags wraps failures of the flag parser.
	ErrParseFlags = errors.New("parsing flags failed")

	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownBackend is returned for a backend other than redis, memory, or postgres.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrUnknownDriver is returned for a Postgres driver other than pgx, sqldb, or sqlx.
	ErrUnknownDriver = errors.New("unknown postgres driver")

	// ErrMissingPostgresDSN is returned when the postgres backend is selected without a DSN.
	ErrMissingPostgresDSN = errors.New("postgres backend needs a DSN")

	// ErrOTLPWithoutObservability is returned when an OTLP endpoint is set but observability is off.
	ErrOTLPWithoutObservability = errors.New("an OTLP endpoint needs observability enabled")
)

var (
	backends = []string{BackendRedis, BackendMemory, BackendPostgres}
	drivers  = []string{DriverPGX, DriverSQLDB, DriverSQLX}
)

// Config holds the complete command configuration.
type Config struct {
	LogPrefix       string        `env:"LOG_PREFIX"       envDefault:"X:orders"`
	DocumentPrefix  string        `env:"DOCUMENT_PREFIX"  envDefault:"customer_order_history:"`
	ControlPrefix   string        `env:"CONTROL_PREFIX"   envDefault:"X:order-updates"`
	Group           string        `env:"GROUP"            envDefault:"order-histories"`
	Workers         int           `env:"WORKERS"          envDefault:"1"`
	WorkerOffset    int           `env:"WORKER_OFFSET"    envDefault:"0"`
	Shards          int           `env:"SHARDS"           envDefault:"2"`
	Producers       int           `env:"PRODUCERS"        envDefault:"1"`
	ProducerDelay   time.Duration `env:"PRODUCER_DELAY"   envDefault:"50ms"`
	Events          int           `env:"EVENTS"           envDefault:"100"`
	Entities        int           `env:"ENTITIES"`
	Duration        time.Duration `env:"DURATION"         envDefault:"20s"`
	Verbose         bool          `env:"VERBOSE"`
	Seed            uint64        `env:"SEED"`
	BatchSize       int           `env:"BATCH_SIZE"       envDefault:"10"`
	Block           time.Duration `env:"BLOCK"            envDefault:"5s"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL" envDefault:"1s"`
	Backend         string        `env:"BACKEND"          envDefault:"redis"`
	PostgresDriver  string        `env:"POSTGRES_DRIVER"  envDefault:"pgx"`
	Observability   bool          `env:"OBSERVABILITY"`
	OTLPEndpoint    string        `env:"OTLP_ENDPOINT"`
	OTLPInsecure    bool          `env:"OTLP_INSECURE"`
	Regions         []string      `env:"REGIONS"`

	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
}

// Load reads the environment and then parses args with fs.
// A nil environ reads the process environment.
func Load(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var cfg Config

	options := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		options.Environment = environ
	}

	if err := env.ParseWithOptions(&cfg, options); err != nil {
		return Config{}, errors.Join(ErrParseEnv, err)
	}

	cfg.bind(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Join(ErrParseFlags, err)
	}

	if cfg.Entities == 0 {
		cfg.Entities = max(cfg.Events/eventsPerEntity, 1)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.LogPrefix, "log-prefix", c.LogPrefix, "prefix of the entity log names")
	fs.StringVar(&c.DocumentPrefix, "document-prefix", c.DocumentPrefix, "prefix of the materialized document keys")
	fs.StringVar(&c.ControlPrefix, "control-prefix", c.ControlPrefix, "prefix of the replace and delete control logs")
	fs.StringVar(&c.Group, "group", c.Group, "consumer group name")
	fs.IntVar(&c.Workers, "workers", c.Workers, "consumer workers per shard")
	fs.IntVar(&c.WorkerOffset, "worker-offset", c.WorkerOffset, "offset added to worker numbers, for several processes")
	fs.IntVar(&c.Shards, "shards", c.Shards, "number of shards")
	fs.IntVar(&c.Producers, "producers", c.Producers, "number of producers")
	fs.DurationVar(&c.ProducerDelay, "producer-delay", c.ProducerDelay, "pause between two events of one producer")
	fs.IntVar(&c.Events, "events", c.Events, "events per producer")
	fs.IntVar(&c.Entities, "entities", c.Entities, "simulated customers, defaults to events/5")
	fs.DurationVar(&c.Duration, "duration", c.Duration, "how long the pipeline runs")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "log at debug level")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "seed for deterministic producers, 0 seeds from the clock")
	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "entries per log and read")
	fs.DurationVar(&c.Block, "block", c.Block, "how long a read waits for new entries")
	fs.DurationVar(&c.MonitorInterval, "monitor-interval", c.MonitorInterval, "pause between two log samples")
	fs.StringVar(&c.Backend, "backend", c.Backend, "store backend: redis, memory, or postgres")
	fs.StringVar(&c.PostgresDriver, "postgres-driver", c.PostgresDriver, "postgres driver: pgx, sqldb, or sqlx")
	fs.BoolVar(&c.Observability, "observability", c.Observability, "log, trace and measure through OpenTelemetry")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", c.OTLPEndpoint, "host:port of an OTLP gRPC collector for traces and metrics")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", c.OTLPInsecure, "talk to the OTLP collector without TLS")
	fs.Func("regions", "comma separated regions, groups entities into one log and document per region and shard", func(value string) error {
		c.Regions = splitList(value)
		return nil
	})
	c.Redis.bind(fs)
	c.Postgres.bind(fs)
}

// Validate checks the values that NewPipeline does not check itself.
func (c Config) Validate() error {
	var problems []error

	if !slices.Contains(backends, c.Backend) {
		problems = append(problems, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend))
	}

	if c.Backend == BackendPostgres {
		if !slices.Contains(drivers, c.PostgresDriver) {
			problems = append(problems, fmt.Errorf("%w: %q", ErrUnknownDriver, c.PostgresDriver))
		}

		if c.Postgres.DSN == "" {
			problems = append(problems, ErrMissingPostgresDSN)
		}
	}

	if c.OTLPEndpoint != "" && !c.Observability {
		problems = append(problems, ErrOTLPWithoutObservability)
	}

	if c.Backend != BackendMemory {
		if err := c.Redis.validate(); err != nil {
			problems = append(problems, err)
		}
	}

	if len(problems) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, problems...)...)
	}

	return nil
}

// PipelineSettings converts the configuration into pipeline settings.
func (c Config) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		LogPrefix:         c.LogPrefix,
		DocumentPrefix:    c.DocumentPrefix,
		ControlPrefix:     c.ControlPrefix,
		Group:             c.Group,
		Shards:            c.Shards,
		Entities:          c.Entities,
		Producers:         c.Producers,
		EventsPerProducer: c.Events,
		ProducerDelay:     c.ProducerDelay,
		Workers:           c.Workers,
		WorkerOffset:      c.WorkerOffset,
		BatchSize:         c.BatchSize,
		BlockTimeout:      c.Block,
		RunDuration:       c.Duration,
		MonitorInterval:   c.MonitorInterval,
		Seed:              c.Seed,
		Regions:           c.Regions,
	}
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	items := strings.Split(value, ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}

	return items
}
