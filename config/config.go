package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devEnv = "dev"

type Config struct {
	Env        string
	ServerPort int
	Version    string
	// Timezone names the IANA zone used to decide which calendar day "today" is.
	Timezone string
	Database DatabaseConfig
	Timeouts TimeoutConfig
	Auth     AuthConfig
	MQ       MQConfig
	Storage  StorageConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	UseSSL       bool
	MaxOpenConns int
	MaxIdleConns int
}

// TimeoutConfig holds the budgets applied to database I/O.
type TimeoutConfig struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
	Probe   time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	BcryptCost int
}

// MQConfig selects the broker used for workout events. An empty Backend disables publishing.
type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
	Kafka    KafkaConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// StorageConfig selects the object store used for exports and summary archives.
// An empty Backend disables both.
type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
	S3      S3Config
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Bucket string
	Region string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == devEnv {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnvInt("DB_PORT", 5432),
		User:         getEnv("DB_USER", "trckr"),
		Password:     getEnv("DB_PASSWORD", "password"),
		DBName:       getEnv("DB_NAME", "trckr"),
		UseSSL:       getEnvBool("DB_USE_SSL", false),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 2),
	}

	timeouts := TimeoutConfig{
		Connect: getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		Read:    getEnvDuration("DB_READ_TIMEOUT", 5*time.Second),
		Write:   getEnvDuration("DB_WRITE_TIMEOUT", 3*time.Second),
		Probe:   getEnvDuration("DB_PROBE_TIMEOUT", 2*time.Second),
	}

	mqConfig := MQConfig{
		Backend: strings.ToLower(getEnv("MQ_BACKEND", "")),
		Channel: getEnv("MQ_CHANNEL", "workout-events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
		Kafka: KafkaConfig{
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			GroupID: getEnv("KAFKA_GROUP_ID", "trckr-worker"),
		},
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "trckr"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		S3: S3Config{
			Bucket: getEnv("S3_BUCKET", ""),
			Region: getEnv("S3_REGION", getEnv("AWS_REGION", "")),
		},
	}

	return Config{
		Env:        getEnv("ENV", ""),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Version:    getEnv("APP_VERSION", "1.0.0"),
		Timezone:   getEnv("TIMEZONE", "UTC"),
		Database:   dbConfig,
		Timeouts:   timeouts,
		Auth: AuthConfig{
			JWTSecret:  strings.TrimSpace(getEnv("JWT_SECRET", "")),
			BcryptCost: getEnvInt("BCRYPT_COST", 12),
		},
		MQ:      mqConfig,
		Storage: storageConfig,
	}
}

// IsDev reports whether the process runs in local development mode.
func (c Config) IsDev() bool {
	return c.Env == devEnv
}

// Location resolves Timezone, falling back to UTC when the zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitAndTrim(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
