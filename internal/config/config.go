package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PFConfig holds the application configuration
type PFConfig struct {
	Prow struct {
		BaseURL         string `mapstructure:"base_url"`
		HistoryBaseURL  string `mapstructure:"history_base_url"`
		FetchTimeoutSec int    `mapstructure:"fetch_timeout_sec"`
	} `mapstructure:"prow"`

	Crawler struct {
		MaxWorkers    int    `mapstructure:"max_workers"`
		AnchorLabel   string `mapstructure:"anchor_label"`
		GatewayMarker string `mapstructure:"gateway_marker"`
		GatewayPrefix string `mapstructure:"gateway_prefix"`
		StorageScheme string `mapstructure:"storage_scheme"`
	} `mapstructure:"crawler"`

	Downloader struct {
		Command        string `mapstructure:"command"`
		CopyTimeoutSec int    `mapstructure:"copy_timeout_sec"`
		MaxParallel    int    `mapstructure:"max_parallel"`
		DestRoot       string `mapstructure:"dest_root"`
	} `mapstructure:"downloader"`

	Cache struct {
		Backend   string `mapstructure:"backend"` // file, redis or none
		Dir       string `mapstructure:"dir"`     // empty means ~/.cache/prowfetch
		MaxAgeMin int    `mapstructure:"max_age_min"`

		Redis struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`

	Archive struct {
		Host     string `mapstructure:"host"` // empty disables the archive sink
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"archive"`

	Server struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		RefreshCron string `mapstructure:"refresh_cron"`
	} `mapstructure:"server"`

	LogLevel string `mapstructure:"log_level"`
}

// LoadConfig reads the configuration from a file or environment variables
func LoadConfig(configPaths ...string) (*PFConfig, error) {
	// can specify config path from environment
	if path, exists := os.LookupEnv("PF_CONFIG_PATH"); exists {
		configPaths = append(configPaths, path)
	}
	for _, path := range configPaths {
		fi, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		mode := fi.Mode()
		switch {
		case mode.IsRegular():
			v := newViper()
			v.SetConfigFile(path)
			config, err := readConfig(v, path)
			if err != nil {
				continue
			}
			return config, nil

		case mode.IsDir():
			v := newViper()
			v.AddConfigPath(path)
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			config, err := readConfig(v, path)
			if err != nil {
				continue
			}
			return config, nil
		}
	}

	// finally read from current working directory, falling back to pure
	// defaults when no config file exists anywhere
	v := newViper()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	cwd, _ := os.Getwd()

	config, err := readConfig(v, cwd)
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			var defaults PFConfig
			if uerr := v.Unmarshal(&defaults); uerr != nil {
				return nil, uerr
			}
			return &defaults, nil
		}
		return nil, err
	}
	return config, nil
}

// newViper sets default values for configuration
func newViper() *viper.Viper {
	v := viper.New()

	// Prow defaults
	v.SetDefault("prow.base_url", "https://prow.ci.openshift.org")
	v.SetDefault("prow.history_base_url", "https://prow.ci.openshift.org/job-history/gs/test-platform-results/logs/")
	v.SetDefault("prow.fetch_timeout_sec", 30)

	// Crawler defaults
	v.SetDefault("crawler.max_workers", 4)
	v.SetDefault("crawler.anchor_label", "Artifacts")
	v.SetDefault("crawler.gateway_marker", "gcsweb-ci")
	v.SetDefault("crawler.gateway_prefix", "gcs")
	v.SetDefault("crawler.storage_scheme", "gs")

	// Downloader defaults
	v.SetDefault("downloader.command", "gsutil")
	v.SetDefault("downloader.copy_timeout_sec", 300) // 5 minutes per job
	v.SetDefault("downloader.max_parallel", 4)
	v.SetDefault("downloader.dest_root", "artifacts")

	// Cache defaults
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.max_age_min", 60)
	v.SetDefault("cache.redis.host", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	// Archive defaults (disabled unless a host is configured)
	v.SetDefault("archive.host", "")
	v.SetDefault("archive.port", 5432)
	v.SetDefault("archive.user", "postgres")
	v.SetDefault("archive.password", "postgres")
	v.SetDefault("archive.name", "prowfetch")
	v.SetDefault("archive.sslmode", "disable")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.refresh_cron", "@every 5m")

	// Log level default
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("PF")                               // Prefix for environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace dots with underscores in env vars
	v.AutomaticEnv()                                   // Read environment variables

	return v
}

func readConfig(v *viper.Viper, path string) (*PFConfig, error) {
	var config PFConfig

	if err := v.ReadInConfig(); err != nil {
		log.Warn().
			Str("path", path).
			Msg("Could not read config file")
		return nil, err
	}
	if err := v.Unmarshal(&config); err != nil {
		log.Warn().
			Str("path", path).
			Msg("Could not unmarshall config")
		return nil, err
	}

	return &config, nil
}

// FetchTimeout is the per-request timeout for job-history and detail-page fetches.
func (c *PFConfig) FetchTimeout() time.Duration {
	return time.Duration(c.Prow.FetchTimeoutSec) * time.Second
}

// CopyTimeout is the per-job timeout for the bulk-copy subprocess.
func (c *PFConfig) CopyTimeout() time.Duration {
	return time.Duration(c.Downloader.CopyTimeoutSec) * time.Second
}

// CacheMaxAge is how long a cached job-history snapshot stays usable.
func (c *PFConfig) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeMin) * time.Minute
}

// Level parses the configured log level, defaulting to info on bad input.
func (c *PFConfig) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// GetArchiveURL returns a formatted connection string for the run-outcome
// archive database
func (c *PFConfig) GetArchiveURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Archive.User,
		c.Archive.Password,
		c.Archive.Host,
		c.Archive.Port,
		c.Archive.Name,
		c.Archive.SSLMode,
	)
}
