package pool

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ellavondegurechaff/vmq/internal/gateways/database/repositories"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadConfigOrDefault is LoadConfig, except that a missing file yields
// DefaultConfig. The bool reports whether the file was read.
func LoadConfigOrDefault(path string) (*Config, bool, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// DefaultConfig is used when no config file exists.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	DB      DBConfig      `toml:"db"`
	Web     WebConfig     `toml:"web"`
	Pool    PoolConfig    `toml:"pool"`
	Archive ArchiveConfig `toml:"archive"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
	SSLMode      string `toml:"sslmode"`
}

type WebConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	AllowOrigins string   `toml:"allow_origins"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   Duration `toml:"rate_window"`
}

// PoolConfig bounds the account store operations.
type PoolConfig struct {
	QueryTimeout    Duration `toml:"query_timeout"`
	AllocateTimeout Duration `toml:"allocate_timeout"`
	BatchTimeout    Duration `toml:"batch_timeout"`
	InsertChunkSize int      `toml:"insert_chunk_size"`
}

// ArchiveConfig controls scheduled export snapshots. Bucket enables the
// S3 sink, Dir enables the local file sink.
type ArchiveConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
	Dir      string `toml:"dir"`
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Prefix   string `toml:"prefix"`
}

// Duration decodes TOML strings such as "30s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.DB.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DB.Database = v
	}
}

func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "localhost"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.Database == "" {
		c.DB.Database = "vmq"
	}
	if c.DB.PoolSize == 0 {
		c.DB.PoolSize = 10
	}

	if c.Web.Host == "" {
		c.Web.Host = config.DefaultWebHost
	}
	if c.Web.Port == 0 {
		c.Web.Port = config.DefaultWebPort
	}
	if c.Web.AllowOrigins == "" {
		c.Web.AllowOrigins = "*"
	}
	if c.Web.RateLimit == 0 {
		c.Web.RateLimit = config.DefaultRateLimit
	}
	if c.Web.RateWindow.Duration == 0 {
		c.Web.RateWindow.Duration = config.RateLimitWindow
	}

	if c.Pool.QueryTimeout.Duration == 0 {
		c.Pool.QueryTimeout.Duration = config.DefaultQueryTimeout
	}
	if c.Pool.AllocateTimeout.Duration == 0 {
		c.Pool.AllocateTimeout.Duration = config.AllocateTimeout
	}
	if c.Pool.BatchTimeout.Duration == 0 {
		c.Pool.BatchTimeout.Duration = config.BatchQueryTimeout
	}
	if c.Pool.InsertChunkSize == 0 {
		c.Pool.InsertChunkSize = config.DefaultInsertChunkSize
	}

	if c.Archive.Schedule == "" {
		c.Archive.Schedule = config.DefaultArchiveSchedule
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = config.DefaultArchivePrefix
	}
	if c.Archive.Dir == "" && c.Archive.Bucket == "" {
		c.Archive.Dir = config.DefaultArchiveDir
	}
}

// Database converts the [db] section into connection settings.
func (c *Config) Database() database.DBConfig {
	return database.DBConfig{
		Host:         c.DB.Host,
		Port:         c.DB.Port,
		User:         c.DB.User,
		Password:     c.DB.Password,
		Database:     c.DB.Database,
		PoolSize:     c.DB.PoolSize,
		MaxIdleConns: c.DB.MaxIdleConns,
		MaxLifetime:  c.DB.MaxLifetime,
		SSLMode:      c.DB.SSLMode,
	}
}

// Repository converts the [pool] section into store options.
func (c *Config) Repository() repositories.AccountRepositoryOptions {
	return repositories.AccountRepositoryOptions{
		QueryTimeout:    c.Pool.QueryTimeout.Duration,
		AllocateTimeout: c.Pool.AllocateTimeout.Duration,
		BatchTimeout:    c.Pool.BatchTimeout.Duration,
		ChunkSize:       c.Pool.InsertChunkSize,
	}
}
