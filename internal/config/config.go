package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // DISPLAY_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Optional values fall back to defaults; the
// database coordinates are required.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	DBMigrate       bool          // apply the embedded schema on startup
	DefaultUserID   uint64        // identity recorded on history rows until callers supply one
	DefaultUserName string        // display name seeded for DefaultUserID
	DisplayTimezone string        // IANA zone used when rendering history timestamps
	RequestTimeout  time.Duration // deadline applied to every request
	TxMaxAttempts   int           // attempts for a retryable store transaction
	TxRetryBackoff  time.Duration // first backoff between attempts, doubled each time
	CORSOrigins     []string      // allowed browser origins
	LogLevel        string        // debug, info, warn, error
	LogFormat       string        // json or text
}

// Load reads configuration values from the environment and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists; variables already set in the process environment win.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		DBMigrate:       envBool("DB_MIGRATE", true),
		DefaultUserID:   envUint("DEFAULT_USER_ID", 1),
		DefaultUserName: envStr("DEFAULT_USER_NAME", "guest"),
		DisplayTimezone: envStr("DISPLAY_TIMEZONE", "UTC"),
		RequestTimeout:  envDur("REQUEST_TIMEOUT", 10*time.Second),
		TxMaxAttempts:   envInt("TX_MAX_ATTEMPTS", 3),
		TxRetryBackoff:  envDur("TX_RETRY_BACKOFF", 50*time.Millisecond),
		CORSOrigins:     splitList(envStr("CORS_ORIGINS", "http://localhost:3000")),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LogFormat:       envStr("LOG_FORMAT", "json"),
	}
}

// DisplayLocation resolves DisplayTimezone, falling back to UTC for an
// unknown zone name.
func (c Config) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		log.Printf("config: unknown DISPLAY_TIMEZONE %q, using UTC", c.DisplayTimezone)
		return time.UTC
	}
	return loc
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

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

// envUint rejects negative and zero values, which cannot be row ids.
func envUint(k string, d uint64) uint64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
