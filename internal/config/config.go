package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"studentfees/internal/mpesa"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
	StoreDriverNone     = "none"
)

// Provider modes. Demo answers push and query calls locally.
const (
	MpesaModeLive = "live"
	MpesaModeDemo = "demo"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Mpesa    MpesaConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Email    EmailConfig
	Kafka    KafkaConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MpesaConfig holds the provider credentials and request defaults.
type MpesaConfig struct {
	Mode             string
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	Shortcode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
	TransactionType  string
}

// Demo reports whether the provider is replaced by canned local responses.
func (c MpesaConfig) Demo() bool {
	return c.Mode == MpesaModeDemo
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver             string
	RequirePersistence bool
	AutoMigrate        bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// EmailConfig holds SMTP configuration. Email is off when Host is empty.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// Enabled reports whether receipts should be emailed.
func (c EmailConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig holds the payment event stream configuration.
type KafkaConfig struct {
	Brokers      []string
	PaymentTopic string
}

// Enabled reports whether payment events should be published.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// Load loads configuration from environment variables, after reading an
// optional .env file from the working directory.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnv("PORT", "3000")
	mode := strings.ToLower(getEnv("MPESA_MODE", MpesaModeLive))
	callbackURL := strings.TrimSpace(getEnv("CALLBACK_URL", ""))
	if mode == MpesaModeDemo && callbackURL == "" {
		callbackURL = "http://localhost:" + port + "/mpesa/callback"
	}

	return &Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 45*time.Second),
		},
		Mpesa: MpesaConfig{
			Mode:             mode,
			BaseURL:          getEnv("MPESA_BASE_URL", mpesa.SandboxBaseURL),
			ConsumerKey:      getEnv("CONSUMER_KEY", ""),
			ConsumerSecret:   getEnv("CONSUMER_SECRET", ""),
			Shortcode:        getEnv("SHORTCODE", "174379"),
			Passkey:          strings.TrimSpace(getEnv("PASSKEY", "")),
			CallbackURL:      callbackURL,
			AccountReference: getEnv("MPESA_ACCOUNT_REFERENCE", "StudentFees"),
			TransactionDesc:  getEnv("MPESA_TRANSACTION_DESC", "School Fees Payment"),
			TransactionType:  getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
		},
		Store: StoreConfig{
			Driver:             strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			RequirePersistence: getBoolEnv("REQUIRE_PERSISTENCE", true),
			AutoMigrate:        getBoolEnv("DB_AUTO_MIGRATE", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "student_fees"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			CacheTTL: getDurationEnv("STATUS_CACHE_TTL", 10*time.Minute),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "student-fees-mpesa"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Email: EmailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getIntEnv("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Sender:   getEnv("SMTP_SENDER", ""),
		},
		Kafka: KafkaConfig{
			Brokers:      getListEnv("KAFKA_BROKERS"),
			PaymentTopic: getEnv("KAFKA_PAYMENT_TOPIC", "student-fees.payments"),
		},
	}
}

// Validate reports problems that make parts of the service unusable. A
// missing credential is returned wrapped in mpesa.ErrMissingCredential.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mpesa.Mode {
	case MpesaModeLive:
		var missing []string
		for _, cred := range []struct{ name, value string }{
			{"CONSUMER_KEY", c.Mpesa.ConsumerKey},
			{"CONSUMER_SECRET", c.Mpesa.ConsumerSecret},
			{"SHORTCODE", c.Mpesa.Shortcode},
			{"PASSKEY", c.Mpesa.Passkey},
			{"CALLBACK_URL", c.Mpesa.CallbackURL},
		} {
			if strings.TrimSpace(cred.value) == "" {
				missing = append(missing, cred.name)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s", mpesa.ErrMissingCredential, strings.Join(missing, ", ")))
		}
	case MpesaModeDemo:
	default:
		errs = append(errs, fmt.Errorf("unknown MPESA_MODE %q", c.Mpesa.Mode))
	}

	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory, StoreDriverNone:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Email.Enabled() && c.Email.Sender == "" {
		errs = append(errs, errors.New("SMTP_SENDER is required when SMTP_HOST is set"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
