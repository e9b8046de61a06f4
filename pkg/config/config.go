// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem: the HTTP server, the three backing stores (PostgreSQL, MySQL and
// MongoDB), query limits, Kafka report events, logging, tracing and metrics.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// PA_POSTGRES_HOST or PA_QUERY_BATCH_SIZE.
const EnvPrefix = "PA_"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	MySQL    MySQLConfig    `yaml:"mysql" envPrefix:"MYSQL_"`
	Mongo    MongoConfig    `yaml:"mongo" envPrefix:"MONGO_"`
	Query    QueryConfig    `yaml:"query" envPrefix:"QUERY_"`
	Kafka    KafkaConfig    `yaml:"kafka" envPrefix:"KAFKA_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOGGING_"`
	Tracing  TracingConfig  `yaml:"tracing" envPrefix:"TRACING_"`
	Metrics  MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
	AllowOrigins    []string      `yaml:"allowOrigins" env:"ALLOW_ORIGINS" envSeparator:","`
}

// PostgresConfig holds the connection parameters of the pet/adoption store.
type PostgresConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	Database        string        `yaml:"database" env:"DATABASE"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	SSLMode         string        `yaml:"sslMode" env:"SSLMODE"`
	MaxOpenConns    int           `yaml:"maxOpenConns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// MySQLConfig holds the connection parameters of the users/requests store.
type MySQLConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	Database        string        `yaml:"database" env:"DATABASE"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	MaxOpenConns    int           `yaml:"maxOpenConns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns a go-sql-driver/mysql data source name. Timestamps are parsed
// into time.Time on scan.
func (m MySQLConfig) DSN() string {
	c := mysql.NewConfig()
	c.User = m.User
	c.Passwd = m.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	c.DBName = m.Database
	c.ParseTime = true
	return c.FormatDSN()
}

// MongoConfig holds the document store location.
type MongoConfig struct {
	URI            string        `yaml:"uri" env:"URI"`
	Database       string        `yaml:"database" env:"DATABASE"`
	Collection     string        `yaml:"collection" env:"COLLECTION"`
	MaxPoolSize    uint64        `yaml:"maxPoolSize" env:"MAX_POOL_SIZE"`
	ConnectTimeout time.Duration `yaml:"connectTimeout" env:"CONNECT_TIMEOUT"`
}

// QueryConfig bounds every store round trip.
type QueryConfig struct {
	// Timeout applies to each individual store call.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// BatchSize caps the number of identifiers in one membership filter.
	BatchSize           int `yaml:"batchSize" env:"BATCH_SIZE"`
	DefaultHistoryLimit int `yaml:"defaultHistoryLimit" env:"DEFAULT_HISTORY_LIMIT"`
	MaxHistoryLimit     int `yaml:"maxHistoryLimit" env:"MAX_HISTORY_LIMIT"`
}

// KafkaConfig holds Kafka broker and topic settings for report events.
type KafkaConfig struct {
	Enabled    bool        `yaml:"enabled" env:"ENABLED"`
	Brokers    []string    `yaml:"brokers" env:"BROKERS" envSeparator:","`
	BufferSize int         `yaml:"bufferSize" env:"BUFFER_SIZE"`
	Topics     KafkaTopics `yaml:"topics" envPrefix:"TOPIC_"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ReportEvents string `yaml:"reportEvents" env:"REPORT_EVENTS"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// TracingConfig controls span logging for report requests.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Port    int    `yaml:"port" env:"PORT"`
	Path    string `yaml:"path" env:"PATH"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults. A path that does not exist is
// only an error when it was set explicitly; pass "" to skip the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make the service misbehave at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Query.Timeout <= 0 {
		errs = append(errs, errors.New("query.timeout must be positive"))
	}
	if c.Query.BatchSize <= 0 {
		errs = append(errs, errors.New("query.batchSize must be positive"))
	}
	if c.Query.DefaultHistoryLimit <= 0 {
		errs = append(errs, errors.New("query.defaultHistoryLimit must be positive"))
	}
	if c.Query.MaxHistoryLimit < c.Query.DefaultHistoryLimit {
		errs = append(errs, errors.New("query.maxHistoryLimit must be >= query.defaultHistoryLimit"))
	}
	if c.Mongo.Database == "" || c.Mongo.Collection == "" {
		errs = append(errs, errors.New("mongo.database and mongo.collection are required"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "ms1db",
			User:            "ms1user",
			Password:        "ms1pass",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		MySQL: MySQLConfig{
			Host:            "localhost",
			Port:            3306,
			Database:        "ms2db",
			User:            "ms2user",
			Password:        "ms2pass",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017/?authSource=admin",
			Database:       "historias",
			Collection:     "histories",
			MaxPoolSize:    20,
			ConnectTimeout: 10 * time.Second,
		},
		Query: QueryConfig{
			Timeout:             5 * time.Second,
			BatchSize:           500,
			DefaultHistoryLimit: 5,
			MaxHistoryLimit:     100,
		},
		Kafka: KafkaConfig{
			Enabled:    false,
			Brokers:    []string{"localhost:9092"},
			BufferSize: 1000,
			Topics: KafkaTopics{
				ReportEvents: "adoption-report-events",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
