// Package config loads scout configuration from YAML, dotenv files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"trend-scout/internal/classify"
	"trend-scout/internal/dedup"
	"trend-scout/internal/metadata"
	"trend-scout/internal/price"
	"trend-scout/internal/pumpfun"
	"trend-scout/internal/pumpportal"
)

// Backend names.
const (
	BackendNone       = "none"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendSQLite     = "sqlite"
	BackendRedis      = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete scout configuration.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	API      APIConfig      `yaml:"api"`
	Metadata MetadataConfig `yaml:"metadata"`
	Groups   GroupsConfig   `yaml:"groups"`
	Target   TargetConfig   `yaml:"target"`
	Session  SessionConfig  `yaml:"session"`
	Remote   RemoteConfig   `yaml:"remote"`
	History  HistoryConfig  `yaml:"history"`
	Cache    CacheConfig    `yaml:"cache"`
	Price    PriceConfig    `yaml:"price"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// FeedConfig configures the streaming feed connection.
type FeedConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	DialRetryDelay time.Duration `yaml:"dial_retry_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
}

// APIConfig configures the upstream token API client.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RPS        float64       `yaml:"rps"`
	Burst      int           `yaml:"burst"`
}

// MetadataConfig configures metadata and image resolution.
type MetadataConfig struct {
	Gateways       []string      `yaml:"gateways"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	PreloadTimeout time.Duration `yaml:"preload_timeout"`
}

// GroupsConfig configures classification.
type GroupsConfig struct {
	Themes       []classify.Theme `yaml:"themes"` // empty uses the built-in themes
	IdentityCap  int              `yaml:"identity_cap"`
	MaxTradeKeys int              `yaml:"max_trade_keys"`
}

// Socials are links announced with the official token.
type Socials struct {
	Twitter  string `yaml:"twitter"`
	Telegram string `yaml:"telegram"`
	Website  string `yaml:"website"`
}

// TargetConfig configures the official target rule.
type TargetConfig struct {
	Mint              string        `yaml:"mint"`
	Names             []string      `yaml:"names"`
	Symbols           []string      `yaml:"symbols"`
	Image             string        `yaml:"image"`
	Socials           Socials       `yaml:"socials"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// SessionConfig configures session timers.
type SessionConfig struct {
	FlushInterval   time.Duration `yaml:"flush_interval"`
	CorrectionDelay time.Duration `yaml:"correction_delay"`
}

// RemoteConfig configures the shared official-token store.
type RemoteConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"` // empty disables the remote store
}

// HistoryConfig configures the stream_feed sink.
type HistoryConfig struct {
	Backend       string `yaml:"backend"` // postgres | clickhouse | none
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// CacheConfig configures the durable local target cache.
type CacheConfig struct {
	Backend       string `yaml:"backend"` // sqlite | redis | none
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
}

// PriceConfig configures the SOL price oracle.
type PriceConfig struct {
	Initial         float64       `yaml:"initial"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	JupiterURL      string        `yaml:"jupiter_url"`
	Disabled        bool          `yaml:"disabled"`
}

// NotifyConfig configures lock announcements.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

// MetricsConfig configures the HTTP surface.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables it
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	feed := pumpportal.DefaultConfig()
	return &Config{
		Feed: FeedConfig{
			Endpoint:       pumpportal.DefaultEndpoint,
			ReconnectDelay: feed.ReconnectDelay,
			DialRetryDelay: feed.DialRetryDelay,
			PingInterval:   feed.PingInterval,
			ReadTimeout:    feed.ReadTimeout,
		},
		API: APIConfig{
			BaseURL:    pumpfun.DefaultBaseURL,
			Timeout:    pumpfun.DefaultTimeout,
			MaxRetries: pumpfun.DefaultMaxRetries,
			RPS:        pumpfun.DefaultRPS,
			Burst:      pumpfun.DefaultBurst,
		},
		Metadata: MetadataConfig{
			Gateways:       append([]string(nil), metadata.DefaultGateways...),
			FetchTimeout:   metadata.DefaultFetchTimeout,
			PreloadTimeout: metadata.DefaultPreloadTimeout,
		},
		Groups: GroupsConfig{
			IdentityCap:  dedup.DefaultCapacity,
			MaxTradeKeys: feed.MaxTradeKeys,
		},
		Target: TargetConfig{
			Names:             []string{"ClawSeek", "$ClawSeek", "Claw Seek"},
			Symbols:           []string{"SEEK", "CSEEK"},
			Image:             "/clawseek_logo.jpg",
			Socials:           Socials{Twitter: "https://x.com/ClawSeek_"},
			ReconcileInterval: 45 * time.Second,
		},
		Session: SessionConfig{
			FlushInterval:   500 * time.Millisecond,
			CorrectionDelay: time.Second,
		},
		History: HistoryConfig{Backend: BackendNone},
		Cache: CacheConfig{
			Backend:    BackendSQLite,
			SQLitePath: "scout.db",
		},
		Price: PriceConfig{
			Initial:         price.DefaultSolPrice,
			RefreshInterval: price.DefaultRefreshInterval,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env and then .env.local, the latter overriding.
// Missing files are skipped.
func LoadDotEnv(dir string) error {
	base := dir + string(os.PathSeparator)
	if dir == "" {
		base = ""
	}
	if err := loadIfExists(base+".env", godotenv.Load); err != nil {
		return err
	}
	return loadIfExists(base+".env.local", godotenv.Overload)
}

func loadIfExists(path string, load func(...string) error) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("SCOUT_FEED_ENDPOINT", &c.Feed.Endpoint)
	str("SCOUT_API_BASE_URL", &c.API.BaseURL)
	str("SCOUT_OFFICIAL_MINT", &c.Target.Mint)
	list("SCOUT_TARGET_NAMES", &c.Target.Names)
	list("SCOUT_TARGET_SYMBOLS", &c.Target.Symbols)
	str("SCOUT_TARGET_IMAGE", &c.Target.Image)
	str("DATABASE_URL", &c.Remote.PostgresDSN)
	str("SCOUT_HISTORY_BACKEND", &c.History.Backend)
	str("CLICKHOUSE_DSN", &c.History.ClickhouseDSN)
	str("SCOUT_CACHE_BACKEND", &c.Cache.Backend)
	str("SCOUT_CACHE_PATH", &c.Cache.SQLitePath)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("TELEGRAM_TOKEN", &c.Notify.TelegramToken)
	str("SCOUT_METRICS_ADDR", &c.Metrics.Addr)
	str("SCOUT_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: TELEGRAM_CHAT_ID: %v", ErrInvalidConfig, err)
		}
		c.Notify.TelegramChatID = id
	}
	if v, ok := lookup("SCOUT_SOL_PRICE"); ok && v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SCOUT_SOL_PRICE: %v", ErrInvalidConfig, err)
		}
		c.Price.Initial = p
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Feed.Endpoint == "" {
		fail("feed.endpoint is required")
	}
	if c.Feed.ReconnectDelay <= 0 || c.Feed.DialRetryDelay <= 0 {
		fail("feed reconnect delays must be positive")
	}
	if c.Session.FlushInterval <= 0 {
		fail("session.flush_interval must be positive")
	}
	if c.Target.ReconcileInterval <= 0 {
		fail("target.reconcile_interval must be positive")
	}
	if c.Groups.IdentityCap <= 0 {
		fail("groups.identity_cap must be positive")
	}
	if c.Target.Mint != "" {
		if err := ValidateMint(c.Target.Mint); err != nil {
			fail("target.mint: %v", err)
		}
	} else if len(c.Target.Names) == 0 && len(c.Target.Symbols) == 0 {
		fail("target needs a mint or at least one name or symbol")
	}

	switch c.History.Backend {
	case "", BackendNone:
	case BackendPostgres:
		if c.Remote.PostgresDSN == "" {
			fail("history.backend postgres requires remote.postgres_dsn")
		}
	case BackendClickhouse:
		if c.History.ClickhouseDSN == "" {
			fail("history.backend clickhouse requires history.clickhouse_dsn")
		}
	default:
		fail("history.backend %q is not one of postgres, clickhouse, none", c.History.Backend)
	}

	switch c.Cache.Backend {
	case "", BackendNone:
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			fail("cache.backend sqlite requires cache.sqlite_path")
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			fail("cache.backend redis requires cache.redis_addr")
		}
	default:
		fail("cache.backend %q is not one of sqlite, redis, none", c.Cache.Backend)
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		fail("notify.telegram_chat_id is required with a telegram token")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateMint checks that s is a base58 encoded 32-byte address.
func ValidateMint(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("not base58: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("decoded length %d, want 32", len(b))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
