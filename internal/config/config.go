package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

// Settings storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// PollIntervals override the per-feed refresh periods. Zero keeps the
// feed default.
type PollIntervals struct {
	GlobalTvl        time.Duration `long:"global-tvl" env:"GLOBAL_TVL" description:"global TVL refresh period"`
	TvlHistory       time.Duration `long:"tvl-history" env:"TVL_HISTORY" description:"TVL history refresh period"`
	BridgeSummary    time.Duration `long:"bridge-summary" env:"BRIDGE_SUMMARY" description:"bridge summary refresh period"`
	BridgeTimeseries time.Duration `long:"bridge-timeseries" env:"BRIDGE_TIMESERIES" description:"bridge timeseries refresh period"`
	Gas              time.Duration `long:"gas" env:"GAS" description:"gas series and heatmap refresh period"`
	Explorer         time.Duration `long:"explorer" env:"EXPLORER" description:"explorer summary refresh period"`
}

type Infisical struct {
	ClientID     string `long:"client-id" env:"CLIENT_ID" description:"universal auth client id"`
	ClientSecret string `long:"client-secret" env:"CLIENT_SECRET" description:"universal auth client secret"`
	ProjectID    string `long:"project-id" env:"PROJECT_ID" description:"project holding the secrets"`
	SiteURL      string `long:"site-url" env:"SITE_URL" default:"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080" description:"Infisical address"`
	Env          string `long:"env" env:"ENV" default:"prod" description:"environment slug"`
}

type Config struct {
	Port            string        `long:"port" env:"PORT" default:"8080" description:"HTTP listen port"`
	APIBase         string        `long:"api-base" env:"API_BASE" default:"http://localhost:4000" description:"analytics backend base URL"`
	UpstreamBase    string        `long:"upstream-base" env:"UPSTREAM_BASE" description:"target of the /api proxy, defaults to api-base"`
	FrontendOrigins []string      `long:"frontend-origin" env:"FRONTEND_ORIGIN" env-delim:"," default:"*" description:"allowed browser origins, may contain one * wildcard"`
	LogLevel        string        `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"log level"`
	LogEncoding     string        `long:"log-encoding" env:"LOG_ENCODING" default:"json" choice:"json" choice:"console" description:"log encoding"`
	HTTPTimeout     time.Duration `long:"http-timeout" env:"HTTP_TIMEOUT" default:"15s" description:"timeout for outgoing HTTP requests"`
	Workers         int           `long:"workers" env:"WORKERS" default:"64" description:"max concurrent feed fetches"`

	Poll         PollIntervals `group:"Poll intervals" namespace:"poll" env-namespace:"POLL"`
	HistoryHours int           `long:"tvl-history-hours" env:"TVL_HISTORY_HOURS" default:"720" description:"TVL history window in hours"`

	RatesURL      string        `long:"rates-url" env:"RATES_URL" description:"exchange rate API base, defaults to CoinGecko"`
	RatesAPIKey   string        `long:"rates-api-key" env:"RATES_API_KEY" description:"exchange rate API key"`
	RatesInterval time.Duration `long:"rates-interval" env:"RATES_INTERVAL" default:"5m" description:"exchange rate refresh period"`

	SettingsBackend string `long:"settings-backend" env:"SETTINGS_BACKEND" default:"file" choice:"memory" choice:"file" choice:"redis" choice:"postgres" description:"preference storage"`
	SettingsFile    string `long:"settings-file" env:"SETTINGS_FILE" default:"data/settings.json" description:"preference file for the file backend"`
	RedisURL        string `long:"redis-url" env:"REDIS_URL" default:"redis://redis-master.redis.svc.cluster.local:6379/0" description:"Redis URL for the redis backend"`
	RedisPassword   string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisPrefix     string `long:"redis-prefix" env:"REDIS_PREFIX" default:"citrea-watch:" description:"Redis key prefix"`
	DatabaseURL     string `long:"database-url" env:"DATABASE_URL" description:"Postgres DSN for the postgres backend"`

	ProxyRPS int `long:"proxy-rps" env:"PROXY_RPS" default:"0" description:"upstream requests per second for the /api proxy, 0 disables pacing"`

	Infisical Infisical `group:"Infisical" namespace:"infisical" env-namespace:"INFISICAL"`
}

// Load parses args (without the program name) and the environment.
func Load(args []string) (Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamBase == "" {
		cfg.UpstreamBase = cfg.APIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.UpstreamBase = strings.TrimRight(cfg.UpstreamBase, "/")
	return cfg, nil
}

// Validate checks the settings the chosen backend needs. Call it after
// LoadSecrets.
func (c Config) Validate() error {
	switch c.SettingsBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis settings backend requires --redis-url")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres settings backend requires DATABASE_URL")
		}
	case BackendFile:
		if c.SettingsFile == "" {
			return errors.New("file settings backend requires --settings-file")
		}
	}
	if c.HistoryHours <= 0 {
		return fmt.Errorf("tvl history hours must be positive, got %d", c.HistoryHours)
	}
	return nil
}

// InfisicalEnabled reports whether universal auth credentials are set.
func (c Config) InfisicalEnabled() bool {
	return c.Infisical.ClientID != "" && c.Infisical.ClientSecret != ""
}

// LoadSecrets fills secrets left empty by flags and environment from
// Infisical. Failures are logged and leave the field empty.
func (c *Config) LoadSecrets(ctx context.Context, logger *zap.Logger) {
	if !c.InfisicalEnabled() {
		return
	}
	if c.Infisical.ProjectID == "" {
		logger.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          c.Infisical.SiteURL,
		AutoTokenRefresh: false,
	})
	if _, err := client.Auth().UniversalAuthLogin(c.Infisical.ClientID, c.Infisical.ClientSecret); err != nil {
		logger.Error("infisical auth failed", zap.Error(err))
		return
	}

	for key, target := range c.secretTargets() {
		if *target != "" {
			continue
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: c.Infisical.Env,
			ProjectID:   c.Infisical.ProjectID,
			SecretPath:  "/",
		})
		if err != nil {
			logger.Warn("failed to retrieve secret from infisical", zap.String("key", key), zap.Error(err))
			continue
		}
		*target = secret.SecretValue
		logger.Info("loaded secret from infisical", zap.String("key", key))
	}
}

// secretTargets maps Infisical secret keys to the fields they fill.
func (c *Config) secretTargets() map[string]*string {
	return map[string]*string{
		"REDIS_PASSWORD": &c.RedisPassword,
		"DATABASE_URL":   &c.DatabaseURL,
		"RATES_API_KEY":  &c.RatesAPIKey,
	}
}
