package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = "3000"
	defaultBackendURL     = "http://localhost:6969"
	defaultBackendHost    = "127.0.0.1"
	defaultBackendPort    = "6969"
	defaultDBDriver       = "sqlite3"
	defaultDBDir          = "./"
	defaultBackendTimeout = 10 * time.Second
	defaultLoadWait       = 2 * time.Second

	// DatabaseFile is the sqlite file created under DBDir.
	DatabaseFile = "nex_late_tracker.db"

	// MemoryDriver keeps backend entries in process memory only.
	MemoryDriver = "memory"
)

type Config struct {
	// Dashboard
	Port           string
	BackendURL     string
	BackendTimeout time.Duration
	LoadWait       time.Duration
	AllowedOrigins []string

	// Reference backend
	BackendHost string
	BackendPort string
	DBDriver    string
	DBDir       string
	DatabaseURL string
}

// LoadEnv reads a .env file into the environment if there is one. It reports
// whether the file was found.
func LoadEnv(filenames ...string) bool {
	return godotenv.Load(filenames...) == nil
}

// Load builds the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", defaultPort),
		BackendURL:     strings.TrimRight(getenv("LATES_BACKEND_URL", defaultBackendURL), "/"),
		AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		BackendHost:    getenv("LATES_HOST", defaultBackendHost),
		BackendPort:    getenv("LATES_PORT", defaultBackendPort),
		DBDriver:       getenv("DB_DRIVER", defaultDBDriver),
		DBDir:          getenv("DB_DIR", defaultDBDir),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
	}

	var err error
	if cfg.BackendTimeout, err = getDuration("BACKEND_TIMEOUT", defaultBackendTimeout); err != nil {
		return nil, err
	}
	if cfg.LoadWait, err = getDuration("LOAD_WAIT", defaultLoadWait); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr is the dashboard listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// BackendAddr is the reference backend listen address.
func (c *Config) BackendAddr() string {
	return c.BackendHost + ":" + c.BackendPort
}

// DataSource returns the driver name and DSN for the reference backend store.
func (c *Config) DataSource() (string, string, error) {
	switch c.DBDriver {
	case "sqlite3":
		dir, err := filepath.Abs(c.DBDir)
		if err != nil {
			return "", "", fmt.Errorf("resolving DB_DIR: %w", err)
		}
		return c.DBDriver, filepath.Join(dir, DatabaseFile), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return "", "", fmt.Errorf("DATABASE_URL environment variable not set")
		}
		return c.DBDriver, c.DatabaseURL, nil
	case MemoryDriver:
		return MemoryDriver, "", nil
	default:
		return "", "", fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
}

func getenv(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getDuration(k string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
