package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ScorerLocal  = "local"
	ScorerRemote = "remote"
)

type Config struct {
	// Server
	ServerPort     string
	ServingPort    string
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
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	RequestTopic string
	VerdictTopic string
	DLQTopic     string

	// Linkage
	Threshold      float64
	TablesPath     string
	BatchWorkers   int
	BatchMax       int
	Persist        bool
	DedupeTTL      time.Duration
	RedactDLQ      bool
	RedactionRules string

	// Scoring
	Scorer            string
	ModelArtifact     string
	ModelEndpoint     string
	ModelName         string
	ScoringTimeout    time.Duration
	ScoringRetries    int
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8090"),
		ServingPort:    getEnv("SERVING_PORT", "8091"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rxlink"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "rxlink"),
		PostgresDB:       getEnv("POSTGRES_DB", "rxlink"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "rxlink"),
		RequestTopic: getEnv("RXLINK_REQUEST_TOPIC", "rxlink.compare.requests"),
		VerdictTopic: getEnv("RXLINK_VERDICT_TOPIC", "rxlink.compare.verdicts"),
		DLQTopic:     getEnv("RXLINK_DLQ_TOPIC", "rxlink.compare.dlq"),

		Threshold:    getFloatEnv("RXLINK_THRESHOLD", 0.5),
		TablesPath:   getEnv("RXLINK_TABLES_PATH", ""),
		BatchWorkers: getIntEnv("RXLINK_BATCH_WORKERS", 8),
		BatchMax:     getIntEnv("RXLINK_BATCH_MAX", 500),
		Persist:      getBoolEnv("RXLINK_PERSIST", false),
		DedupeTTL:    getDuration("RXLINK_DEDUPE_TTL", 24*time.Hour),

		RedactDLQ:      getBoolEnv("RXLINK_REDACT_DLQ", true),
		RedactionRules: getEnv("RXLINK_REDACTION_RULES", ""),

		Scorer:            strings.ToLower(getEnv("RXLINK_SCORER", ScorerLocal)),
		ModelArtifact:     getEnv("RXLINK_MODEL_ARTIFACT", "models/rx_pair_logistic.json"),
		ModelEndpoint:     getEnv("RXLINK_MODEL_ENDPOINT", ""),
		ModelName:         getEnv("RXLINK_MODEL_NAME", "rx-duplicate"),
		ScoringTimeout:    getDuration("SCORING_TIMEOUT", 2*time.Second),
		ScoringRetries:    getIntEnv("SCORING_RETRIES", 3),
		OAuthTokenURL:     getEnv("SCORING_OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("SCORING_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("SCORING_OAUTH_CLIENT_SECRET", ""),
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var problems []string
	switch c.Scorer {
	case ScorerLocal:
		if c.ModelArtifact == "" {
			problems = append(problems, "RXLINK_MODEL_ARTIFACT is required for the local scorer")
		}
	case ScorerRemote:
		if c.ModelEndpoint == "" {
			problems = append(problems, "RXLINK_MODEL_ENDPOINT is required for the remote scorer")
		}
		if c.ModelName == "" {
			problems = append(problems, "RXLINK_MODEL_NAME is required for the remote scorer")
		}
		if c.OAuthClientID != "" && c.OAuthTokenURL == "" {
			problems = append(problems, "SCORING_OAUTH_TOKEN_URL is required with a client id")
		}
	default:
		problems = append(problems, fmt.Sprintf("RXLINK_SCORER must be %q or %q, got %q", ScorerLocal, ScorerRemote, c.Scorer))
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		problems = append(problems, fmt.Sprintf("RXLINK_THRESHOLD must be in (0,1), got %v", c.Threshold))
	}
	if c.BatchWorkers <= 0 {
		problems = append(problems, "RXLINK_BATCH_WORKERS must be positive")
	}
	if c.BatchMax <= 0 {
		problems = append(problems, "RXLINK_BATCH_MAX must be positive")
	}
	if c.ScoringTimeout <= 0 {
		problems = append(problems, "SCORING_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ValidateServing checks the settings the model server needs. Scorer
// selection belongs to the linkage service and is not checked here.
func (c *Config) ValidateServing() error {
	var problems []string
	if len(c.ArtifactPaths()) == 0 {
		problems = append(problems, "RXLINK_MODEL_ARTIFACT must list at least one artifact")
	}
	if c.ServingPort == "" {
		problems = append(problems, "SERVING_PORT is required")
	} else if c.ServingPort == c.ServerPort {
		problems = append(problems, fmt.Sprintf("SERVING_PORT %s collides with SERVER_PORT", c.ServingPort))
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func (c *Config) ServingAddr() string {
	return c.ServerHost + ":" + c.ServingPort
}

// ArtifactPaths splits RXLINK_MODEL_ARTIFACT on commas.
func (c *Config) ArtifactPaths() []string {
	var paths []string
	for _, path := range strings.Split(c.ModelArtifact, ",") {
		if path = strings.TrimSpace(path); path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
