package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	FlightBox FlightBoxConfig `yaml:"flightbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds the pgx connection string.
func (d DatabaseConfig) DSN() string {
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.Username, d.Password, d.Host, d.Port, d.DBName, ssl)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	FlightVerifiedTopicName string `yaml:"flight_verified_topic_name"`
}

func (k KafkaConfig) Broker() string {
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}

type RedisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ProvidersConfig holds upstream API settings. Credentials normally come from the
// environment; a provider without credentials is skipped.
type ProvidersConfig struct {
	AmadeusClientID     string `yaml:"amadeus_client_id"`
	AmadeusClientSecret string `yaml:"amadeus_client_secret"`
	AmadeusEnv          string `yaml:"amadeus_env"` // "test" | "production"
	AmadeusBaseURL      string `yaml:"amadeus_base_url"`

	AviationStackAPIKey  string `yaml:"aviationstack_api_key"`
	AviationStackBaseURL string `yaml:"aviationstack_base_url"`

	OpenSkyBaseURL         string `yaml:"opensky_base_url"`
	OpenSkySnapshotTTLSecs int    `yaml:"opensky_snapshot_ttl_seconds"`

	ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds"`
}

type FlightBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	LogLevel           string `yaml:"log_level"`
	MetricsNamespace   string `yaml:"metrics_namespace"`

	MismatchThresholdMinutes int  `yaml:"mismatch_threshold_minutes"`
	ScheduleCallDelayMillis  int  `yaml:"schedule_call_delay_ms"`
	RealtimeCallDelayMillis  int  `yaml:"realtime_call_delay_ms"`
	UnpacedCalls             bool `yaml:"unpaced_calls"`
	CacheResults             bool `yaml:"cache_results"`

	// Polling intervals (optional). Defaults: 5 min realtime, 24h/5 within a week, 12h beyond.
	RealtimeIntervalSeconds   int `yaml:"realtime_interval_seconds"`
	FiveDailyIntervalSeconds  int `yaml:"five_daily_interval_seconds"`
	TwiceDailyIntervalSeconds int `yaml:"twice_daily_interval_seconds"`
	FiveDailyWindowDays       int `yaml:"five_daily_window_days"`

	WorkerPollIntervalSeconds    int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize              int    `yaml:"worker_batch_size"`
	WorkerConcurrency            int    `yaml:"worker_concurrency"`
	WorkerLeaseSeconds           int    `yaml:"worker_lease_seconds"`
	WorkerNodeID                 int64  `yaml:"worker_node_id"`
	WorkerScheduleCallsPerMinute int    `yaml:"worker_schedule_calls_per_minute"`
	WorkerLiveCallsPerMinute     int    `yaml:"worker_live_calls_per_minute"`
	WorkerHTTPAddr               string `yaml:"worker_http_addr"`

	WorkerBackoff1Seconds int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds int `yaml:"worker_backoff_4_seconds"`
}

// LoadConfig reads the YAML file and then applies environment overrides.
// A .env file in the working directory is loaded first when present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

func (c *Config) applyEnv() {
	p := &c.Providers
	p.AmadeusClientID = getEnv("AMADEUS_CLIENT_ID", p.AmadeusClientID)
	p.AmadeusClientSecret = getEnv("AMADEUS_CLIENT_SECRET", p.AmadeusClientSecret)
	p.AmadeusEnv = getEnv("AMADEUS_ENV", p.AmadeusEnv)
	p.AviationStackAPIKey = getEnv("AVIATIONSTACK_API_KEY", p.AviationStackAPIKey)

	c.Database.Password = getEnv("DATABASE_PASSWORD", c.Database.Password)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.FlightBox.LogLevel = getEnv("LOG_LEVEL", c.FlightBox.LogLevel)
	c.FlightBox.WorkerNodeID = int64(getEnvAsInt("WORKER_NODE_ID", int(c.FlightBox.WorkerNodeID)))
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
