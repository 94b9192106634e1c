package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config file.
const ConfigPath = "config.yaml"

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	minJWTSecretLen = 32
)

// FileConfig represents configuration loaded from YAML and the environment.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	StoreDriver   string `yaml:"storeDriver"`
	DatabaseURL   string `yaml:"databaseURL"`
	MongoURI      string `yaml:"mongoURI"`
	MongoDatabase string `yaml:"mongoDatabase"`
	StoreTimeout  string `yaml:"storeTimeout"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	SessionTTL  string `yaml:"sessionTTL"`
	JWTLeeway   string `yaml:"jwtLeeway"`

	RedisAddr                  string `yaml:"redisAddr"`
	RedisPassword              string `yaml:"redisPassword"`
	LoginRateLimitPerMinute    int    `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int    `yaml:"registerRateLimitPerMinute"`

	TrustedProxies []string `yaml:"trustedProxies"`
	CORSOrigins    []string `yaml:"corsOrigins"`

	AdminEmail    string `yaml:"adminEmail"`
	AdminPassword string `yaml:"adminPassword"`

	MetricsEnabled bool `yaml:"metricsEnabled"`
}

func defaults() FileConfig {
	return FileConfig{
		Port:                       "5000",
		LogLevel:                   "info",
		StoreDriver:                DriverPostgres,
		MongoDatabase:              "bookshelf",
		StoreTimeout:               "5s",
		SessionTTL:                 "24h",
		JWTLeeway:                  "30s",
		LoginRateLimitPerMinute:    20,
		RegisterRateLimitPerMinute: 10,
		MetricsEnabled:             true,
	}
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error; defaults and environment variables still apply.
func Load(path string) (FileConfig, error) {
	cfg := defaults()
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) error {
	strs := map[string]*string{
		"PORT":           &cfg.Port,
		"LOG_LEVEL":      &cfg.LogLevel,
		"STORE_DRIVER":   &cfg.StoreDriver,
		"DATABASE_URL":   &cfg.DatabaseURL,
		"MONGO_URI":      &cfg.MongoURI,
		"MONGO_DATABASE": &cfg.MongoDatabase,
		"STORE_TIMEOUT":  &cfg.StoreTimeout,
		"JWT_SECRET":     &cfg.JWTSecret,
		"JWT_ISSUER":     &cfg.JWTIssuer,
		"JWT_AUDIENCE":   &cfg.JWTAudience,
		"SESSION_TTL":    &cfg.SessionTTL,
		"JWT_LEEWAY":     &cfg.JWTLeeway,
		"REDIS_ADDR":     &cfg.RedisAddr,
		"REDIS_PASSWORD": &cfg.RedisPassword,
		"ADMIN_EMAIL":    &cfg.AdminEmail,
		"ADMIN_PASSWORD": &cfg.AdminPassword,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: METRICS_ENABLED must be a boolean: %w", err)
		}
		cfg.MetricsEnabled = b
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	return nil
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("config: jwtSecret must be at least %d bytes (set in config.yaml or JWT_SECRET)", minJWTSecretLen)
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres driver (set in config.yaml or DATABASE_URL)")
		}
	case DriverMongo:
		if cfg.MongoURI == "" {
			return errors.New("config: mongoURI is required for the mongo driver (set in config.yaml or MONGO_URI)")
		}
		if cfg.MongoDatabase == "" {
			return errors.New("config: mongoDatabase is required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storeDriver %q (want postgres, mongo or memory)", cfg.StoreDriver)
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return errors.New("config: adminEmail and adminPassword must be set together")
	}
	durations := map[string]string{
		"storeTimeout": cfg.StoreTimeout,
		"sessionTTL":   cfg.SessionTTL,
		"jwtLeeway":    cfg.JWTLeeway,
	}
	for name, raw := range durations {
		if _, err := parsePositiveDuration(raw); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// ParseStoreTimeout bounds each store call made while serving a request.
func ParseStoreTimeout(raw string) (time.Duration, error) {
	return parsePositiveDuration(raw)
}

// ParseSessionTTL parses the bearer token lifetime.
func ParseSessionTTL(raw string) (time.Duration, error) {
	return parsePositiveDuration(raw)
}

// ParseJWTLeeway parses the allowed clock skew for token time claims.
func ParseJWTLeeway(raw string) (time.Duration, error) {
	return parsePositiveDuration(raw)
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("duration is empty")
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
