package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName   string        `mapstructure:"service_name"`
	Env           string        `mapstructure:"env"`
	Port          string        `mapstructure:"port"`
	Database      Database      `mapstructure:"database"`
	AWS           AWS           `mapstructure:"aws"`
	Saga          Saga          `mapstructure:"saga"`
	Collaborators Collaborators `mapstructure:"collaborators"`
	Telemetry     Telemetry     `mapstructure:"telemetry"`
}

type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	EndpointSNS     string `mapstructure:"endpoint_sns"`
	EndpointSQS     string `mapstructure:"endpoint_sqs"`
	SNSTopicArn     string `mapstructure:"sns_topic_arn"`
	SQSQueueURL     string `mapstructure:"sqs_queue_url"`
}

type Saga struct {
	ScanInterval              time.Duration `mapstructure:"scan_interval"`
	LeaseTimeout              time.Duration `mapstructure:"lease_timeout"`
	MaxConcurrent             int64         `mapstructure:"max_concurrent"`
	RedriveCompensationFailed bool          `mapstructure:"redrive_compensation_failed"`
}

type Collaborators struct {
	InventoryURL string        `mapstructure:"inventory_url"`
	PaymentURL   string        `mapstructure:"payment_url"`
	ShippingURL  string        `mapstructure:"shipping_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func ReadConfig() (*Config, error) {
	viper.SetConfigName(getConfigName())
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Allow environment variables to override config
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ORCHESTRATOR")

	setDefaultsFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Defaults and environment variables are enough to run locally
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaultsFromEnv() {
	// Service defaults
	viper.SetDefault("service_name", "orchestrator-service")
	viper.SetDefault("env", getEnv("ENV", "local"))
	viper.SetDefault("port", getEnv("PORT", "8080"))

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "saga_orchestrator")
	viper.SetDefault("database.ssl_mode", "disable")

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// AWS defaults
	viper.SetDefault("aws.access_key_id", getEnv("AWS_ACCESS_KEY_ID", "test"))
	viper.SetDefault("aws.secret_access_key", getEnv("AWS_SECRET_ACCESS_KEY", "test"))
	viper.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	viper.SetDefault("aws.endpoint_sns", getEnv("AWS_ENDPOINT_URL_SNS", "http://localhost:4566"))
	viper.SetDefault("aws.endpoint_sqs", getEnv("AWS_ENDPOINT_URL_SQS", "http://localhost:4566"))
	viper.SetDefault("aws.sns_topic_arn", getEnv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:saga-events"))
	viper.SetDefault("aws.sqs_queue_url", getEnv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/saga-events"))

	// Saga supervisor defaults
	viper.SetDefault("saga.scan_interval", "30s")
	viper.SetDefault("saga.lease_timeout", "2m")
	viper.SetDefault("saga.max_concurrent", 32)
	viper.SetDefault("saga.redrive_compensation_failed", false)

	// Collaborator defaults
	viper.SetDefault("collaborators.inventory_url", getEnv("INVENTORY_URL", "http://localhost:8081"))
	viper.SetDefault("collaborators.payment_url", getEnv("PAYMENT_URL", "http://localhost:8082"))
	viper.SetDefault("collaborators.shipping_url", getEnv("SHIPPING_URL", "http://localhost:8083"))
	viper.SetDefault("collaborators.timeout", "10s")

	// Telemetry defaults
	viper.SetDefault("telemetry.enabled", getEnv("TELEMETRY_ENABLED", "false") == "true")
	viper.SetDefault("telemetry.otlp_endpoint", getEnv("OTLP_ENDPOINT", "localhost:4317"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	if url := viper.GetString("database.url"); url != "" {
		return url
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
