package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Supabase SupabaseConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StorageConfig struct {
	// Kind overrides backend detection when set (memory, file, postgres, supabase).
	Kind string
	// DataFile is the JSON document path for the file backend.
	DataFile string
	// Serverless marks an ephemeral-filesystem execution context.
	Serverless bool
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

type EmailConfig struct {
	MailerSendKey string
	FromEmail     string
	FromName      string
	DevMode       bool // print emails to logs instead of sending
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			BaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Kind:       getEnv("STORAGE_TYPE", ""),
			DataFile:   getEnv("DATA_FILE", "data/registrations.json"),
			Serverless: os.Getenv("VERCEL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "",
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Supabase: SupabaseConfig{
			URL:        getEnv("SUPABASE_URL", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		},
		Email: EmailConfig{
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			FromEmail:     getEnv("MAIL_FROM_EMAIL", "noreply@scorefluence.com"),
			FromName:      getEnv("MAIL_FROM_NAME", "Scorefluence"),
			DevMode:       getBool("EMAIL_DEV_MODE", os.Getenv("MAILERSEND_API_KEY") == ""),
		},
	}
}

// Configured reports whether relational connection parameters are present,
// either as a full URL or as discrete host/user/password/name values.
func (d DatabaseConfig) Configured() bool {
	if d.URL != "" {
		return true
	}
	return d.Host != "" && d.User != "" && d.Password != "" && d.Name != ""
}

// DSN returns the connection string, assembling one from discrete parameters
// when no DATABASE_URL was given.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode)
}

// Configured reports whether hosted-table credentials are present.
func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && s.ServiceKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
