package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every variable read by Load. A double underscore
// separates sections: LOGSAUDIT_SERVER__PORT sets server.port.
const EnvPrefix = "LOGSAUDIT_"

type Config struct {
	Server        ServerConfig        `koanf:"server" validate:"required"`
	AWS           AWSConfig           `koanf:"aws" validate:"required"`
	Query         QueryConfig         `koanf:"query" validate:"required"`
	Meta          MetaConfig          `koanf:"meta"`
	Log           LogConfig           `koanf:"log" validate:"required"`
	Observability ObservabilityConfig `koanf:"observability"`
}

type ServerConfig struct {
	Port               int           `koanf:"port" validate:"required,min=1,max=65535"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout        time.Duration `koanf:"idle_timeout" validate:"required"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"required"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins" validate:"required,min=1"`
}

// AWSConfig holds credentials settings. Empty values fall back to the
// standard AWS environment and shared config.
type AWSConfig struct {
	Profile         string `koanf:"profile"`
	DefaultRegion   string `koanf:"default_region" validate:"required"`
	AccessKeyID     string `koanf:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `koanf:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `koanf:"session_token"`
}

type QueryConfig struct {
	Workers      int           `koanf:"workers" validate:"required,min=1,max=256"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"required"`
	MaxWait      time.Duration `koanf:"max_wait" validate:"required"`
	DefaultLimit int           `koanf:"default_limit" validate:"required,min=1,ltefield=MaxLimit"`
	MaxLimit     int           `koanf:"max_limit" validate:"required,min=1,max=10000"`
}

type MetaConfig struct {
	SampleRegions []string `koanf:"sample_regions"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"required,oneof=json console"`
}

// ObservabilityConfig enables New Relic when a license key is set.
type ObservabilityConfig struct {
	NewRelicAppName    string `koanf:"new_relic_app_name" validate:"required_with=NewRelicLicenseKey"`
	NewRelicLicenseKey string `koanf:"new_relic_license_key"`
}

// NewRelicEnabled reports whether an APM agent should be started.
func (o ObservabilityConfig) NewRelicEnabled() bool {
	return o.NewRelicLicenseKey != ""
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8000,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       10 * time.Minute,
			IdleTimeout:        2 * time.Minute,
			ShutdownTimeout:    15 * time.Second,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
		AWS: AWSConfig{DefaultRegion: "us-east-1"},
		Query: QueryConfig{
			Workers:      20,
			PollInterval: time.Second,
			MaxWait:      5 * time.Minute,
			DefaultLimit: 50,
			MaxLimit:     5000,
		},
		Meta: MetaConfig{SampleRegions: []string{"us-east-1", "us-west-2", "eu-west-1"}},
		Log:  LogConfig{Level: "info", Format: "json"},
		Observability: ObservabilityConfig{
			NewRelicAppName: "aws-logs-auditor",
		},
	}
}

// Load reads the optional dotenv files (".env" when none are given; missing
// files are skipped), overlays LOGSAUDIT_* variables on the defaults and
// validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__", ".")
		if strings.Contains(value, ",") {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	cfg := Default()
	// Lists set through the environment replace the defaults instead of
	// overwriting them element by element.
	for key, list := range map[string]*[]string{
		"server.cors_allowed_origins": &cfg.Server.CORSAllowedOrigins,
		"meta.sample_regions":         &cfg.Meta.SampleRegions,
	} {
		if k.Exists(key) {
			*list = nil
		}
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(v string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
