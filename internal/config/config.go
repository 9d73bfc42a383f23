package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Deployment environments. Production runs the classifier as a sibling
// process; anything else executes it inside a docker container.
const (
	EnvProduction = "production"
	EnvDev        = "dev"
)

// Config holds all process-wide settings. It is built once at startup and
// passed by reference into component constructors; nothing re-reads the
// environment mid-request.
type Config struct {
	Env             string
	ListenAddr      string
	WorkDir         string
	ClassifierDir   string
	DockerContainer string
	ClassifyTimeout time.Duration
	DatabaseDSN     string
	RedisAddr       string
	JWTSecret       string
	JWTAudience     string
	Debug           bool
}

// Load reads configuration from the environment, after loading a .env file if
// one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:             getEnv("SLOTHBUCKET_ENV", EnvDev),
		ListenAddr:      getEnv("SLOTHBUCKET_LISTEN_ADDR", ":8080"),
		WorkDir:         getEnv("SLOTHBUCKET_WORK_DIR", "saved_images"),
		ClassifierDir:   getEnv("SLOTHBUCKET_CLASSIFIER_DIR", "/root"),
		// The env var name is historical; the value names a running container.
		DockerContainer: getEnv("SLOTHBUCKET_TENSORFLOW_DOCKER_NAME", "imagenet-tensorflow"),
		ClassifyTimeout: getDuration("SLOTHBUCKET_CLASSIFY_TIMEOUT", time.Minute),
		DatabaseDSN:     getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=slothbucket port=5432 sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		Debug:           os.Getenv("SLOTHBUCKET_DEBUG") != "",
	}
}

// ProductionMode reports whether the classifier should be invoked directly
// rather than through a docker container.
func (c *Config) ProductionMode() bool {
	return c.Env == EnvProduction
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
