package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the tag service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Tags     TagsConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig selects the gorm dialect. Driver is "postgres" or "sqlite";
// for sqlite, Path is the database file (":memory:" is accepted).
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds the key used to verify admin tokens issued by the host application.
type JWTConfig struct {
	Secret string
}

type TagsConfig struct {
	SiteScoped    bool
	CreateRetries uint64
	Cloud         CloudConfig
}

// CloudConfig controls tag cloud weighting. Weighting is "band" or "size".
type CloudConfig struct {
	Weighting string
	Bands     int
	Threshold int
	Biggest   float64
	Smallest  float64
	Limit     int
}

type KafkaConfig struct {
	Enabled  bool
	Brokers  string
	ClientID string
	Topic    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// BrokerList splits the comma separated broker string.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// LoadConfig loads the configuration from file and environment variables.
// An empty path skips the file and relies on defaults and environment.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("TAGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "tags.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	v.SetDefault("jwt.secret", "your-secret-key-change-this-in-production")

	v.SetDefault("tags.siteScoped", false)
	v.SetDefault("tags.createRetries", 3)
	v.SetDefault("tags.cloud.weighting", "size")
	v.SetDefault("tags.cloud.bands", 6)
	v.SetDefault("tags.cloud.threshold", 0)
	v.SetDefault("tags.cloud.biggest", 1.0)
	v.SetDefault("tags.cloud.smallest", 0.4)
	v.SetDefault("tags.cloud.limit", 50)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.clientID", "cms-tags")
	v.SetDefault("kafka.topic", "tagging-events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
