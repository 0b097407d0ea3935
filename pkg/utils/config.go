package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"exercisehub/pkg/database"
)

const envPrefix = "EXERCISEHUB_"

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Data      DataConfig      `yaml:"data"`
	Editorial EditorialConfig `yaml:"editorial"`
	Store     StoreConfig     `yaml:"store"`
	Admin     AdminConfig     `yaml:"admin"`
	Cache     CacheConfig     `yaml:"cache"`
	Sync      SyncConfig      `yaml:"sync"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// SecureCookies marks the admin cookie HTTPS-only.
	SecureCookies bool `yaml:"secure_cookies"`
}

type DataConfig struct {
	IndexPath     string `yaml:"index_path"`
	CatalogPath   string `yaml:"catalog_path"`
	PublicRoot    string `yaml:"public_root"`
	FallbackImage string `yaml:"fallback_image"`
}

// EditorialConfig globs are matched under Root.
type EditorialConfig struct {
	Root       string `yaml:"root"`
	MasterGlob string `yaml:"master_glob"`
	ReportGlob string `yaml:"report_glob"`
}

type StoreConfig struct {
	// Driver is nats, sqlite or memory.
	Driver  string `yaml:"driver"`
	NATSURL string `yaml:"nats_url"`
	// NATSEmbedded starts an in-process server when NATSURL is empty. A
	// configured URL always wins.
	NATSEmbedded bool          `yaml:"nats_embedded"`
	NATSStoreDir string        `yaml:"nats_store_dir"`
	Bucket       string        `yaml:"bucket"`
	SQLitePath   string        `yaml:"sqlite_path"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTIssuer    string        `yaml:"jwt_issuer"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	PasswordHash string        `yaml:"password_hash"`
}

type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	PurgeWebhook string        `yaml:"purge_webhook"`
	PurgeToken   string        `yaml:"purge_token"`
}

type SyncConfig struct {
	// TCPAddr enables the TCP subscriber feed when set.
	TCPAddr string `yaml:"tcp_addr"`
	// UDPAddr enables the UDP datagram feed when set.
	UDPAddr string `yaml:"udp_addr"`
}

func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Data: DataConfig{
			IndexPath:     "data/index.json",
			PublicRoot:    "public",
			FallbackImage: "/img/exercise-placeholder.svg",
		},
		Editorial: EditorialConfig{
			Root:       "data",
			MasterGlob: "editorial/master*.md",
			ReportGlob: "editorial/reports/**/*.md",
		},
		Store: StoreConfig{
			Driver:       "nats",
			NATSEmbedded: true,
			Bucket:       "EXERCISE_OVERRIDES",
			SQLitePath:   database.DefaultConfig().Path,
			Timeout:      3 * time.Second,
		},
		Admin: AdminConfig{
			JWTIssuer: "exercisehub",
			TokenTTL:  12 * time.Hour,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, a .env file in the working directory and EXERCISEHUB_* variables,
// in increasing order of precedence.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &c.HTTP.Addr)
	boolean("SECURE_COOKIES", &c.HTTP.SecureCookies)

	str("INDEX_PATH", &c.Data.IndexPath)
	str("CATALOG_PATH", &c.Data.CatalogPath)
	str("PUBLIC_ROOT", &c.Data.PublicRoot)
	str("FALLBACK_IMAGE", &c.Data.FallbackImage)

	str("EDITORIAL_ROOT", &c.Editorial.Root)
	str("EDITORIAL_MASTER_GLOB", &c.Editorial.MasterGlob)
	str("EDITORIAL_REPORT_GLOB", &c.Editorial.ReportGlob)

	str("STORE_DRIVER", &c.Store.Driver)
	str("NATS_URL", &c.Store.NATSURL)
	boolean("NATS_EMBEDDED", &c.Store.NATSEmbedded)
	str("NATS_STORE_DIR", &c.Store.NATSStoreDir)
	str("KV_BUCKET", &c.Store.Bucket)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	dur("STORE_TIMEOUT", &c.Store.Timeout)

	str("JWT_SECRET", &c.Admin.JWTSecret)
	str("JWT_ISSUER", &c.Admin.JWTIssuer)
	dur("TOKEN_TTL", &c.Admin.TokenTTL)
	str("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)

	dur("CACHE_TTL", &c.Cache.TTL)
	str("PURGE_WEBHOOK", &c.Cache.PurgeWebhook)
	str("PURGE_TOKEN", &c.Cache.PurgeToken)

	str("SYNC_TCP_ADDR", &c.Sync.TCPAddr)
	str("SYNC_UDP_ADDR", &c.Sync.UDPAddr)

	return errors.Join(errs...)
}

// Validate checks the configuration. An empty admin secret is valid and
// disables the admin API.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Data.IndexPath == "" {
		return errors.New("data.index_path is required")
	}
	switch strings.ToLower(c.Store.Driver) {
	case "nats":
		if c.Store.NATSURL == "" && !c.Store.NATSEmbedded {
			return errors.New("store.nats_url is required unless store.nats_embedded is set")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver %q: want nats, sqlite or memory", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store.timeout must be positive")
	}
	if c.Admin.TokenTTL <= 0 {
		return errors.New("admin.token_ttl must be positive")
	}
	if c.Admin.PasswordHash != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin.password_hash is set but admin.jwt_secret is empty")
	}
	return nil
}

// AdminEnabled reports whether the admin API can issue tokens.
func (c Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != ""
}
