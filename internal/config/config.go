package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App     App     `mapstructure:"app"`
	Gemini  Gemini  `mapstructure:"gemini"`
	Scrape  Scrape  `mapstructure:"scrape"`
	Cluster Cluster `mapstructure:"cluster"`
	Sync    Sync    `mapstructure:"sync"`
	Server  Server  `mapstructure:"server"`
}

// App holds general application configuration.
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// Gemini holds the LLM configuration. Summarization and fact checking use
// separate models with their own temperatures.
type Gemini struct {
	APIKey                 string  `mapstructure:"api_key"`
	SummaryModel           string  `mapstructure:"summary_model"`
	SummaryTemperature     float32 `mapstructure:"summary_temperature"`
	FactualityModel        string  `mapstructure:"factuality_model"`
	FactualityTemperature  float32 `mapstructure:"factuality_temperature"`
	EmbeddingModel         string  `mapstructure:"embedding_model"`
	EmbeddingDimensions    int32   `mapstructure:"embedding_dimensions"`
	RequestPacing          string  `mapstructure:"request_pacing"`
	requestPacingDuration  time.Duration
}

// PacingDuration returns the parsed pacing delay between summarization calls.
func (g Gemini) PacingDuration() time.Duration { return g.requestPacingDuration }

// Scrape holds outlet scraper configuration.
type Scrape struct {
	UserAgent        string `mapstructure:"user_agent"`
	Timeout          string `mapstructure:"timeout"`
	AdaDeranaPages   int    `mapstructure:"ada_derana_pages"`
	DailyMirrorPages int    `mapstructure:"daily_mirror_pages"`
	timeoutDuration  time.Duration
}

// TimeoutDuration returns the parsed per-request timeout.
func (s Scrape) TimeoutDuration() time.Duration { return s.timeoutDuration }

// Cluster holds clustering engine configuration.
type Cluster struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// Sync holds sync orchestrator configuration.
type Sync struct {
	Interval         string `mapstructure:"interval"`
	Deadline         string `mapstructure:"deadline"`
	intervalDuration time.Duration
	deadlineDuration time.Duration
}

// IntervalDuration returns the parsed scheduler interval.
func (s Sync) IntervalDuration() time.Duration { return s.intervalDuration }

// DeadlineDuration returns the parsed overall pass deadline.
func (s Sync) DeadlineDuration() time.Duration { return s.deadlineDuration }

// Server holds HTTP server configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

var globalConfig *Config

// Load loads configuration from the optional config file, environment
// variables and defaults. Subsequent calls return the cached config.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".truelens")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("truelens")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := parseDurations(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.data_dir", ".truelens")
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("gemini.summary_model", "gemini-flash-lite-latest")
	viper.SetDefault("gemini.summary_temperature", 1.0)
	viper.SetDefault("gemini.factuality_model", "gemini-flash-latest")
	viper.SetDefault("gemini.factuality_temperature", 1.0)
	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("gemini.embedding_dimensions", 768)
	viper.SetDefault("gemini.request_pacing", "250ms")

	viper.SetDefault("scrape.user_agent", "truelens-sync/1.0")
	viper.SetDefault("scrape.timeout", "20s")
	viper.SetDefault("scrape.ada_derana_pages", 5)
	viper.SetDefault("scrape.daily_mirror_pages", 5)

	viper.SetDefault("cluster.similarity_threshold", 0.7)

	viper.SetDefault("sync.interval", "12h")
	viper.SetDefault("sync.deadline", "30m")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
}

func parseDurations(config *Config) error {
	fields := []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"gemini.request_pacing", config.Gemini.RequestPacing, &config.Gemini.requestPacingDuration},
		{"scrape.timeout", config.Scrape.Timeout, &config.Scrape.timeoutDuration},
		{"sync.interval", config.Sync.Interval, &config.Sync.intervalDuration},
		{"sync.deadline", config.Sync.Deadline, &config.Sync.deadlineDuration},
	}

	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", f.name, err)
		}
		*f.out = d
	}

	return nil
}
