package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultVerifyToken is used when VERIFY_TOKEN is unset. Anyone who knows it can
// subscribe the webhook, so production deployments must override it.
const DefaultVerifyToken = "siri_webhook_2024"

// Booking store backends.
const (
	BookingStoreSheets  = "sheets"
	BookingStoreMongoDB = "mongodb"
	BookingStoreBolt    = "bolt"
	BookingStoreNone    = "none"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	WhatsApp WhatsAppConfig
	Bookings BookingsConfig
	Sheets   SheetsConfig
	MongoDB  MongoDBConfig
	Bolt     BoltConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	BaseURL       string
	APIVersion    string
	MarkAsRead    bool

	// VerifyTokenDefaulted reports that VerifyToken fell back to DefaultVerifyToken.
	VerifyTokenDefaulted bool
}

// BookingsConfig selects and tunes the booking store.
type BookingsConfig struct {
	Store       string
	CacheTTL    time.Duration
	RefreshCron string
	Timezone    string

	parseErr error
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SheetName       string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// BoltConfig holds settings for the local bbolt file store.
type BoltConfig struct {
	Path string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	markAsRead, err := getenvBool("WHATSAPP_MARK_AS_READ", true)
	if err != nil {
		return nil, err
	}

	// A bad TTL only disables the booking store, see ValidateBookings.
	cacheTTL, ttlErr := getenvDuration("BOOKING_CACHE_TTL", time.Minute)

	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("PORT", "3000"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("VERIFY_TOKEN"),
			AppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v21.0"),
			MarkAsRead:    markAsRead,
		},
		Bookings: BookingsConfig{
			Store:       strings.ToLower(os.Getenv("BOOKING_STORE")),
			CacheTTL:    cacheTTL,
			RefreshCron: getenvWithDefault("BOOKING_REFRESH_CRON", "*/5 * * * *"),
			Timezone:    getenvWithDefault("TIMEZONE", "Asia/Amman"),
			parseErr:    ttlErr,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_ID"),
			SheetName:       os.Getenv("BOOKING_SHEET_NAME"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "clinic"),
		},
		Bolt: BoltConfig{
			Path: getenvWithDefault("BOLT_PATH", "bookings.db"),
		},
	}

	if cfg.Bookings.Store == "" {
		cfg.Bookings.Store = BookingStoreNone
		if cfg.Sheets.SpreadsheetID != "" {
			cfg.Bookings.Store = BookingStoreSheets
		}
	}

	if cfg.WhatsApp.VerifyToken == "" {
		cfg.WhatsApp.VerifyToken = DefaultVerifyToken
		cfg.WhatsApp.VerifyTokenDefaulted = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that the fields the webhook needs are populated.
// WHATSAPP_TOKEN and PHONE_NUMBER_ID are not enforced: the webhook can still
// be verified without them, and the missing values are reported at startup.
// Booking store settings are checked separately by ValidateBookings.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("PORT must be provided")
	}

	if c.WhatsApp.VerifyToken == "" {
		return errors.New("VERIFY_TOKEN must not be empty")
	}

	if c.WhatsApp.BaseURL == "" {
		return errors.New("WHATSAPP_BASE_URL must not be empty")
	}

	if c.WhatsApp.APIVersion == "" {
		return errors.New("WHATSAPP_API_VERSION must not be empty")
	}

	return nil
}

// ValidateBookings reports booking store settings that cannot work. The
// webhook does not depend on the store, so callers log the error and run with
// bookings disabled instead of refusing to start.
func (c *Config) ValidateBookings() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.Bookings.Store {
	case BookingStoreNone:
		return nil
	case BookingStoreSheets:
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided for the sheets booking store")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_ID must be provided for the sheets booking store")
		}
	case BookingStoreMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongodb booking store")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	case BookingStoreBolt:
		if c.Bolt.Path == "" {
			return errors.New("BOLT_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unsupported BOOKING_STORE %q", c.Bookings.Store)
	}

	if c.Bookings.parseErr != nil {
		return c.Bookings.parseErr
	}

	if c.Bookings.CacheTTL <= 0 {
		return errors.New("BOOKING_CACHE_TTL must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, nil
}
