package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/pharmacy-inventory/internal/application"
	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/internal/infrastructure/phpapi"
	"github.com/wms-platform/pharmacy-inventory/pkg/kafka"
	"github.com/wms-platform/pharmacy-inventory/pkg/mongodb"
)

// Config holds the service configuration
type Config struct {
	ServerAddr  string
	CORSOrigins []string
	PHPAPI      *phpapi.Config

	// MongoDB is nil when dismissals are kept in memory
	MongoDB      *mongodb.Config
	DismissalTTL time.Duration

	// Kafka is nil when no brokers are configured
	Kafka *kafka.Config

	Refresh        application.RefreshConfig
	SessionIdleTTL time.Duration
	AlertRules     application.AlertRules
}

func loadConfig() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	config := &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		CORSOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		PHPAPI:         phpapi.DefaultConfig(getEnv("PHP_API_BASE_URL", "http://localhost/pharmacy/api")),
		DismissalTTL:   parseDuration(getEnv("DISMISSAL_TTL", "24h"), 24*time.Hour),
		Refresh:        application.RefreshConfig{PollInterval: parseDuration(getEnv("POLL_INTERVAL", "30s"), 30*time.Second)},
		SessionIdleTTL: parseDuration(getEnv("SESSION_IDLE_TTL", "12h"), 12*time.Hour),
	}
	config.PHPAPI.Timeout = parseDuration(getEnv("PHP_API_TIMEOUT", "8s"), 8*time.Second)

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		config.MongoDB = mongodb.DefaultConfig()
		config.MongoDB.URI = uri
		config.MongoDB.Database = getEnv("MONGODB_DATABASE", config.MongoDB.Database)
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka = kafka.DefaultConfig()
		config.Kafka.Brokers = splitList(brokers)
		config.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", serviceName)
		config.Kafka.ClientID = serviceName
		config.Kafka.MaxConsecutiveErrors = parseInt(getEnv("KAFKA_MAX_FETCH_ERRORS", "5"), 5)
	}

	rules, err := loadAlertRules(os.Getenv("ALERT_RULES_FILE"))
	if err != nil {
		return nil, err
	}
	config.AlertRules = rules
	return config, nil
}

// loadAlertRules reads the YAML rules file at path. An empty path yields
// the default rules; a file only needs to name what it overrides.
func loadAlertRules(path string) (application.AlertRules, error) {
	rules := application.DefaultAlertRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read alert rules %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse alert rules %s: %w", path, err)
	}
	if rules.Default.LowStockThreshold <= 0 || rules.Default.ExpiryWarningDays <= 0 {
		return rules, fmt.Errorf("alert rules %s: default thresholds must be positive", path)
	}
	if rules.Screens == nil {
		rules.Screens = map[string]domain.AlertThresholds{}
	}
	return rules, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
