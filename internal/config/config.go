package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	SchemasDir    string
	RunsDSN       string
	LogLevel      string
	BindAddr      string
	NATSURL       string
	TopicTemplate string
	Sink          string
}

// Load reads a .env file from the working directory when present, then the
// environment. Variables already set in the environment win over .env.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		SchemasDir:    getEnv("MOCKSTREAM_SCHEMAS_DIR", "./schemas"),
		RunsDSN:       getEnv("MOCKSTREAM_RUNS_DSN", "./mockstream-runs.sqlite"),
		LogLevel:      getEnv("MOCKSTREAM_LOG_LEVEL", "info"),
		BindAddr:      getEnv("MOCKSTREAM_BIND_ADDR", ":8080"),
		NATSURL:       getEnv("MOCKSTREAM_NATS_URL", "nats://127.0.0.1:4222"),
		TopicTemplate: getEnv("MOCKSTREAM_TOPIC_TEMPLATE", "{name}"),
		Sink:          getEnv("MOCKSTREAM_SINK", "nats"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
