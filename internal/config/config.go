package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type NotificationServiceConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	FirebaseCfg FirebaseConfig
	EmailCfg    EmailConfig
	WorkerCfg   WorkerConfig
	AuthCfg     AuthConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	BatchSize       int
}

type EmailConfig struct {
	Username string
	Password string
}

type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
}

type AuthConfig struct {
	JWTSecret string
}

func New() *NotificationServiceConfig {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	return &NotificationServiceConfig{
		Port: getEnvOrDefault("NOTIFICATION_SERVICE_PORT", "8088"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("DB_NAME", "notification_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PWD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PWD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "rabbitmq"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		FirebaseCfg: FirebaseConfig{
			CredentialsPath: getEnvOrDefault("FIREBASE_SERVICE_ACCOUNT_KEY", ""),
			ProjectID:       getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
			BatchSize:       getEnvIntOrDefault("FIREBASE_BATCH_SIZE", 500),
		},
		EmailCfg: EmailConfig{
			Username: getEnvOrDefault("GOOGLE_USERNAME", ""),
			Password: getEnvOrDefault("GOOGLE_PASSWORD", ""),
		},
		WorkerCfg: WorkerConfig{
			Concurrency: getEnvIntOrDefault("WORKER_CONCURRENCY", 2),
			MaxAttempts: getEnvIntOrDefault("WORKER_MAX_ATTEMPTS", 3),
		},
		AuthCfg: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
