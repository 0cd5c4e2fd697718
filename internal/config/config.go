package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
	Printer    PrinterConfig
	PrintQueue PrintQueueConfig
	Draft      DraftConfig
	Store      StoreConfig
}

type AppConfig struct {
	Name  string
	Env   string
	Port  string
	Debug bool
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	Issuer      string
	ExpiryHours time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type PrinterConfig struct {
	Name       string
	Type       string
	USBPath    string
	Address    string
	PaperWidth int
	Timeout    time.Duration
	// SharedLock guards every print attempt with a Redis lock; needs Redis.
	SharedLock bool
	LockTTL    time.Duration
}

type PrintQueueConfig struct {
	ListLimit      int
	MaxRetries     int
	PollInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JournalFlush   time.Duration
}

type DraftConfig struct {
	Store         string
	AutoSaveDelay time.Duration
	MaxBytes      int
	TTL           time.Duration
}

// StoreConfig is the business identity printed on every receipt header.
type StoreConfig struct {
	Name    string
	Address string
	Phone   string
	GSTIN   string
	Footer  string
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	setDefaults()

	return &Config{
		App: AppConfig{
			Name:  viper.GetString("APP_NAME"),
			Env:   viper.GetString("APP_ENV"),
			Port:  viper.GetString("APP_PORT"),
			Debug: viper.GetBool("APP_DEBUG"),
		},
		Database: DatabaseConfig{
			Driver:   viper.GetString("DB_DRIVER"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
			Timezone: viper.GetString("DB_TIMEZONE"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("REDIS_ENABLED"),
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:      viper.GetString("JWT_SECRET"),
			Issuer:      viper.GetString("JWT_ISSUER"),
			ExpiryHours: time.Duration(viper.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Printer: PrinterConfig{
			Name:       viper.GetString("PRINTER_NAME"),
			Type:       viper.GetString("PRINTER_TYPE"),
			USBPath:    viper.GetString("PRINTER_USB_PATH"),
			Address:    viper.GetString("PRINTER_ADDRESS"),
			PaperWidth: viper.GetInt("PRINTER_PAPER_WIDTH"),
			Timeout:    viper.GetDuration("PRINTER_TIMEOUT"),
			SharedLock: viper.GetBool("PRINTER_SHARED_LOCK"),
			LockTTL:    viper.GetDuration("PRINTER_LOCK_TTL"),
		},
		PrintQueue: PrintQueueConfig{
			ListLimit:      viper.GetInt("PRINT_QUEUE_LIST_LIMIT"),
			MaxRetries:     viper.GetInt("PRINT_RETRY_MAX"),
			PollInterval:   viper.GetDuration("PRINT_RETRY_POLL_INTERVAL"),
			InitialBackoff: viper.GetDuration("PRINT_RETRY_INITIAL_BACKOFF"),
			MaxBackoff:     viper.GetDuration("PRINT_RETRY_MAX_BACKOFF"),
			Multiplier:     viper.GetFloat64("PRINT_RETRY_MULTIPLIER"),
			JournalFlush:   viper.GetDuration("PRINT_JOURNAL_FLUSH_INTERVAL"),
		},
		Draft: DraftConfig{
			Store:         viper.GetString("DRAFT_STORE"),
			AutoSaveDelay: time.Duration(viper.GetInt("DRAFT_AUTOSAVE_DELAY_MS")) * time.Millisecond,
			MaxBytes:      viper.GetInt("DRAFT_MAX_BYTES"),
			TTL:           time.Duration(viper.GetInt("DRAFT_TTL_HOURS")) * time.Hour,
		},
		Store: StoreConfig{
			Name:    viper.GetString("STORE_NAME"),
			Address: viper.GetString("STORE_ADDRESS"),
			Phone:   viper.GetString("STORE_PHONE"),
			GSTIN:   viper.GetString("STORE_GSTIN"),
			Footer:  viper.GetString("STORE_RECEIPT_FOOTER"),
		},
	}
}

func setDefaults() {
	viper.SetDefault("APP_NAME", "gstbill-desk")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8765")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "gstbill")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	viper.SetDefault("JWT_ISSUER", "gstbill")
	viper.SetDefault("JWT_EXPIRY_HOURS", 24)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 600)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("PRINTER_TYPE", "none")
	viper.SetDefault("PRINTER_PAPER_WIDTH", 32)
	viper.SetDefault("PRINTER_TIMEOUT", "15s")
	viper.SetDefault("PRINTER_SHARED_LOCK", false)
	viper.SetDefault("PRINTER_LOCK_TTL", "30s")
	viper.SetDefault("PRINT_QUEUE_LIST_LIMIT", 20)
	viper.SetDefault("PRINT_RETRY_MAX", 5)
	viper.SetDefault("PRINT_RETRY_POLL_INTERVAL", "5s")
	viper.SetDefault("PRINT_RETRY_INITIAL_BACKOFF", "5s")
	viper.SetDefault("PRINT_RETRY_MAX_BACKOFF", "5m")
	viper.SetDefault("PRINT_RETRY_MULTIPLIER", 2.0)
	viper.SetDefault("PRINT_JOURNAL_FLUSH_INTERVAL", "500ms")
	viper.SetDefault("DRAFT_STORE", "database")
	viper.SetDefault("DRAFT_AUTOSAVE_DELAY_MS", 1500)
	viper.SetDefault("DRAFT_MAX_BYTES", 5*1024*1024)
	viper.SetDefault("DRAFT_TTL_HOURS", 0)
	viper.SetDefault("STORE_NAME", "GST Billing")
	viper.SetDefault("STORE_RECEIPT_FOOTER", "Thank you! Visit again")
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Name)
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// Addr returns the host:port of the Redis server.
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
