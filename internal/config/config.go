package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/tuannm99/novagrid/gridstore"
	"github.com/tuannm99/novagrid/internal/gologger"
)

// EnvPrefix prefixes every environment override, e.g. NOVAGRID_STORE_HOST.
const EnvPrefix = "NOVAGRID"

type Config struct {
	Store gridstore.Properties `mapstructure:"store"`

	Client struct {
		Retries       int           `mapstructure:"retries" validate:"gte=0"`
		RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gt=0"`
		MaxBatchRows  int           `mapstructure:"max_batch_rows" validate:"gte=0"`
		Workers       int           `mapstructure:"workers" validate:"min=1"`
	} `mapstructure:"client"`

	Embedded struct {
		PartitionCount int `mapstructure:"partition_count" validate:"min=1"`
	} `mapstructure:"embedded"`

	Shell struct {
		HistoryFile string `mapstructure:"history_file"`
		HistoryMax  int    `mapstructure:"history_max" validate:"gte=0"`
		Prompt      string `mapstructure:"prompt" validate:"required"`
	} `mapstructure:"shell"`

	Log struct {
		Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.host", "127.0.0.1")
	v.SetDefault("store.port", 10001)
	v.SetDefault("store.cluster_name", "novagrid")
	v.SetDefault("store.database", "")
	v.SetDefault("store.username", "admin")
	v.SetDefault("store.password", "")
	v.SetDefault("store.notification_member", "")
	v.SetDefault("store.notification_provider", "")
	v.SetDefault("store.consistency", "")
	v.SetDefault("store.transaction_timeout", 0)
	v.SetDefault("store.failover_timeout", 0)
	v.SetDefault("store.container_cache_size", 0)
	v.SetDefault("store.data_affinity_pattern", "")

	v.SetDefault("client.retries", 3)
	v.SetDefault("client.retry_interval", 200*time.Millisecond)
	v.SetDefault("client.max_batch_rows", gridstore.DefaultMaxBatchRows)
	v.SetDefault("client.workers", 4)

	v.SetDefault("embedded.partition_count", 16)

	v.SetDefault("shell.history_file", defaultHistoryPath())
	v.SetDefault("shell.history_max", 2000)
	v.SetDefault("shell.prompt", "gridsh> ")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".gridsh_history"
	}
	return filepath.Join(home, ".gridsh_history")
}

// LoadConfig reads path (yaml, or anything viper detects from the
// extension) over the defaults and applies NOVAGRID_* overrides. An empty
// path skips the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c *Config) Logger(out io.Writer) zerolog.Logger {
	return gologger.NewLogger(gologger.Options{Level: c.Log.Level, Pretty: c.Log.Pretty, Out: out})
}

// FactoryOptions turns the client section into store factory options.
// Work submitted through gridstore.Go runs on a pool of Client.Workers.
func (c *Config) FactoryOptions(log zerolog.Logger) []gridstore.FactoryOption {
	return []gridstore.FactoryOption{
		gridstore.WithFactoryLogger(log),
		gridstore.WithConnectRetries(c.Client.Retries),
		gridstore.WithRetryInterval(c.Client.RetryInterval),
		gridstore.WithSessionOptions(
			gridstore.WithMaxBatchRows(c.Client.MaxBatchRows),
			gridstore.WithExecutor(gridstore.NewPoolExecutor(c.Client.Workers)),
		),
	}
}
