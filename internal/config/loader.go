package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage driver names accepted by the loader.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures configuration for the scheduler service. Values come from
// an optional YAML file, overridden by environment variables.
type Config struct {
	HTTPPort             int           `yaml:"http_port"`
	StorageDriver        string        `yaml:"storage_driver"`
	SQLiteDSN            string        `yaml:"sqlite_dsn"`
	PostgresDSN          string        `yaml:"postgres_dsn"`
	EnforceExclusion     bool          `yaml:"enforce_exclusion"`
	SchedulingServiceURL string        `yaml:"scheduling_service_url"`
	ConflictCheckTimeout time.Duration `yaml:"conflict_check_timeout"`
	AllowDegraded        *bool         `yaml:"allow_degraded"`
	RateLimitPerSecond   float64       `yaml:"rate_limit_per_second"`
	RateLimitBurst       int           `yaml:"rate_limit_burst"`
}

// AllowDegradedMode reports the degraded-mode policy, defaulting to allowed.
func (c Config) AllowDegradedMode() bool {
	if c.AllowDegraded == nil {
		return true
	}
	return *c.AllowDegraded
}

func defaults() Config {
	return Config{
		HTTPPort:             8080,
		StorageDriver:        DriverSQLite,
		SQLiteDSN:            "file:scheduler.db",
		ConflictCheckTimeout: 5 * time.Second,
		RateLimitBurst:       20,
	}
}

// Load reads configuration from the YAML file named by SCHEDULER_CONFIG_FILE
// (when set) and then applies environment variable overrides.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		loaded, err := loadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loading config file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config file: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	invalid := make([]string, 0, 2)

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_STORAGE_DRIVER")); value != "" {
		cfg.StorageDriver = value
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); value != "" {
		cfg.SQLiteDSN = value
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_POSTGRES_DSN")); value != "" {
		cfg.PostgresDSN = value
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_SERVICE_URL")); value != "" {
		cfg.SchedulingServiceURL = value
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_ENFORCE_EXCLUSION")); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_ENFORCE_EXCLUSION")
		} else {
			cfg.EnforceExclusion = parsed
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_ALLOW_DEGRADED")); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_ALLOW_DEGRADED")
		} else {
			cfg.AllowDegraded = &parsed
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_CONFLICT_CHECK_TIMEOUT")); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "SCHEDULER_CONFLICT_CHECK_TIMEOUT")
		} else {
			cfg.ConflictCheckTimeout = timeout
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_RATE_LIMIT_PER_SECOND")); value != "" {
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil || limit < 0 {
			invalid = append(invalid, "SCHEDULER_RATE_LIMIT_PER_SECOND")
		} else {
			cfg.RateLimitPerSecond = limit
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_RATE_LIMIT_BURST")); value != "" {
		burst, err := strconv.Atoi(value)
		if err != nil || burst < 0 {
			invalid = append(invalid, "SCHEDULER_RATE_LIMIT_BURST")
		} else {
			cfg.RateLimitBurst = burst
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func validate(cfg Config) error {
	switch cfg.StorageDriver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.SQLiteDSN) == "" {
			return fmt.Errorf("sqlite dsn is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return fmt.Errorf("postgres dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	return nil
}
