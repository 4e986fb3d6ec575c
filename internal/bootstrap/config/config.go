package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"almsync/internal/bootstrap/logging"
	"almsync/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Bus      BusConfig      `mapstructure:"bus"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Defect   DefectConfig   `mapstructure:"defect"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// TrackerConfig carries the external tracker endpoint and credentials. It is
// built once at process start and handed to the client; nothing reads
// tracker credentials from ambient state after that.
type TrackerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Username       string `mapstructure:"username"`
	APIToken       string `mapstructure:"api_token"`
	ProjectKey     string `mapstructure:"project_key"`
	ResyncJQL      string `mapstructure:"resync_jql"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c TrackerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type BusConfig struct {
	URL                string `mapstructure:"url"`
	Stream             string `mapstructure:"stream"`
	Queue              string `mapstructure:"queue"`
	RequirementSubject string `mapstructure:"requirement_subject"`
	FailureSubject     string `mapstructure:"failure_subject"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

func (c BusConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type HTTPConfig struct {
	Addr          string `mapstructure:"addr"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type DefectConfig struct {
	ProfileFile string `mapstructure:"profile_file"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ALMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Tracker.ProjectKey == "" {
		return Config{}, errors.New("tracker.project_key is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("tracker_project", cfg.Tracker.ProjectKey),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "almsync")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".almsync/state/warehouse.sqlite")
	v.SetDefault("tracker.project_key", "HEALTH")
	v.SetDefault("tracker.resync_jql", "project = HEALTH")
	v.SetDefault("tracker.timeout_seconds", 15)
	v.SetDefault("bus.stream", "ALMSYNC")
	v.SetDefault("bus.queue", "almsync-workers")
	v.SetDefault("bus.requirement_subject", "sync.requirement.updated")
	v.SetDefault("bus.failure_subject", "sync.test.failure")
	v.SetDefault("bus.timeout_seconds", 30)
	v.SetDefault("http.addr", ":8080")
}
