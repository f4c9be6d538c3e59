package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Buckets    BucketConfig
	Accounting AccountingConfig
	Customers  CustomerConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// BucketConfig names the object-store buckets each document class lives in.
type BucketConfig struct {
	RawEmail   string
	PO         string
	Invoice    string
	Structured string
}

// AccountingConfig holds settings for the external accounting submission.
type AccountingConfig struct {
	BaseURL      string
	OAuthURL     string
	CompanyID    string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	Retries      int
	RetryDelay   time.Duration
	Timeout      time.Duration
}

// CustomerConfig holds the routing tables that bind inbound mail to
// customers and customers to their follow-up processors.
type CustomerConfig struct {
	// Receivers maps an inbound receiver address to a customer id. An
	// address absent from this table is rejected at classification.
	Receivers map[string]string
	// Structured lists customer ids whose POs are exported as structured
	// JSON documents.
	Structured []string
	// AccountingRefs maps a customer id to its CustomerRef value in the
	// accounting system. Customers in this table get invoice submission.
	AccountingRefs map[string]string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Buckets: BucketConfig{
			RawEmail:   getEnv("RAW_EMAIL_BUCKET", "icebergrawmail"),
			PO:         getEnv("PO_BUCKET", "icebergpos"),
			Invoice:    getEnv("INVOICE_BUCKET", "iceberginvoices"),
			Structured: getEnv("STRUCTURED_BUCKET", "jsonfiles4holden"),
		},
		Accounting: AccountingConfig{
			BaseURL:      getEnv("ACCOUNTING_BASE_URL", "https://sandbox-quickbooks.api.intuit.com"),
			OAuthURL:     getEnv("ACCOUNTING_OAUTH_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"),
			CompanyID:    getEnv("ACCOUNTING_COMPANY_ID", ""),
			ClientID:     getEnv("ACCOUNTING_CLIENT_ID", ""),
			ClientSecret: getEnv("ACCOUNTING_CLIENT_SECRET", ""),
			AccessToken:  getEnv("ACCOUNTING_ACCESS_TOKEN", ""),
			RefreshToken: getEnv("ACCOUNTING_REFRESH_TOKEN", ""),
			Retries:      getEnvAsInt("ACCOUNTING_RETRIES", 3),
			RetryDelay:   getEnvAsDuration("ACCOUNTING_RETRY_DELAY", 5*time.Second),
			Timeout:      getEnvAsDuration("ACCOUNTING_TIMEOUT", 30*time.Second),
		},
		Customers: CustomerConfig{
			Receivers: getEnvAsMap("CUSTOMER_RECEIVERS", map[string]string{
				"labtech@flowerwork.co":  "100",
				"brycebiz@flowerwork.co": "200",
			}),
			Structured:     getEnvAsList("STRUCTURED_CUSTOMERS", []string{"200"}),
			AccountingRefs: getEnvAsMap("ACCOUNTING_CUSTOMER_REFS", map[string]string{"100": "1"}),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

// getEnvAsMap parses "key=value,key=value" pairs.
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	m := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		if k, v, ok := strings.Cut(strings.TrimSpace(pair), "="); ok {
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return m
}

// getEnvAsList parses a comma-separated list.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Buckets.RawEmail == "" || c.Buckets.PO == "" || c.Buckets.Invoice == "" {
		return NewAppError("CONFIG_ERROR", "bucket names are required", ErrInvalidInput)
	}
	return nil
}
