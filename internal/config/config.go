package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes accepted by AUTH_MODE.
const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Optional groups (cache, rate limiting, events,
// uploads) have their own loaders so they can default independently.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	RequestTimeout time.Duration // upper bound for a single request's store work
	LogLevel       string        // zerolog level name
	LogFormat      string        // "console" or "json"

	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	DBMigrate bool   // apply embedded migrations on startup

	DBMaxOpenConns    int           // pool size, 0 keeps the default
	DBConnMaxLifetime time.Duration // recycle connections after this long

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	AuthMode       string // jwt (default) or header (development only)

	Events  EventsConfig
	Uploads UploadConfig
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists; variables already present in the environment win.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", ""),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMigrate:      envBool("DB_MIGRATE", true),

		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		AuthMode:       strings.ToLower(envStr("AUTH_MODE", AuthModeJWT)),
		Events:         LoadEventsConfig(),
		Uploads:        LoadUploadConfig(),
	}
	if cfg.AuthMode != AuthModeJWT && cfg.AuthMode != AuthModeHeader {
		log.Fatalf("invalid AUTH_MODE: %q", cfg.AuthMode)
	}
	if cfg.AuthMode == AuthModeHeader && cfg.IsProd() {
		log.Fatalf("AUTH_MODE=header is not allowed when APP_ENV=%s", cfg.Env)
	}
	return cfg
}

// IsProd reports whether the service runs in a production environment.
func (c Config) IsProd() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
