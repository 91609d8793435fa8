package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	StatusCacheTTL time.Duration

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	SessionTopic      string
	SessionDLQTopic   string
	EventsTopic       string
	SessionMaxRetries int
	SessionRetryDelay time.Duration

	// PACS archive
	PACSBaseURL        string
	PACSUsername       string
	PACSPassword       string
	PACSRequestTimeout time.Duration
	PACSPollAttempts   int
	PACSPollInterval   time.Duration

	// Inference backend
	InferenceBaseURL        string
	InferenceRequestTimeout time.Duration
	ModelLabelsPath         string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 64*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "mapdr"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "mapdr123"),
		PostgresDB:       getEnv("POSTGRES_DB", "mapdr"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		StatusCacheTTL: getDuration("STATUS_CACHE_TTL", 10*time.Minute),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "mapdr-platform"),
		SessionTopic:      getEnv("UPLOAD_SESSION_TOPIC", "upload-sessions"),
		SessionDLQTopic:   getEnv("UPLOAD_SESSION_DLQ_TOPIC", "upload-sessions-dlq"),
		EventsTopic:       getEnv("UPLOAD_EVENTS_TOPIC", "upload-events"),
		SessionMaxRetries: getIntEnv("UPLOAD_SESSION_MAX_RETRIES", 3),
		SessionRetryDelay: getDuration("UPLOAD_SESSION_RETRY_DELAY", 5*time.Second),

		PACSBaseURL:        getEnv("PACS_BASE_URL", "http://pacs:8042"),
		PACSUsername:       getEnv("PACS_USERNAME", "mapdr"),
		PACSPassword:       getEnv("PACS_PASSWORD", "changestrongpassword"),
		PACSRequestTimeout: getDuration("PACS_REQUEST_TIMEOUT", 15*time.Second),
		PACSPollAttempts:   getIntEnv("PACS_POLL_ATTEMPTS", 10),
		PACSPollInterval:   getDuration("PACS_POLL_INTERVAL", 500*time.Millisecond),

		InferenceBaseURL:        getEnv("INFERENCE_BASE_URL", "http://inference:8501"),
		InferenceRequestTimeout: getDuration("INFERENCE_REQUEST_TIMEOUT", 60*time.Second),
		ModelLabelsPath:         getEnv("MODEL_LABELS_PATH", ""),

		JWTSecret:   getEnv("JWT_SECRET", "local-development-secret"),
		JWTIssuer:   getEnv("JWT_ISSUER", "mapdr-platform"),
		JWTAudience: getEnv("JWT_AUDIENCE", "mapdr-clients"),
		JWTTTL:      getDuration("JWT_TTL", 12*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
