package config // package config loads application configuration from environment variables

import (
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings normalizes flag values
	"time"    // time parses the connect timeout
)

// Config holds all runtime configuration values.  It is built once at
// startup and passed by value into handlers, so nothing downstream can
// change the region or replica flag of a running process.
type Config struct {
	Port      string   // HTTP port to listen on (all interfaces)
	Region    string   // deployment region label stamped on every write
	IsReplica bool     // read replica instances reject writes
	LogLevel  string   // zap level name (debug, info, warn, error)
	DB        DBConfig // MySQL connection parameters
}

// DBConfig carries everything needed to open one MySQL connection.
type DBConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	Charset        string
	ConnectTimeout time.Duration
}

// Load reads configuration values from environment variables and returns a
// Config.  Every variable has a default so a bare container still starts;
// malformed numbers and durations fall back to their defaults.
func Load() Config {
	return Config{
		Port:      envStr("APP_PORT", "80"),
		Region:    envStr("REGION", "unknown"),
		IsReplica: envFlag("IS_REPLICA"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		DB: DBConfig{
			Host:           envStr("DB_HOST", "localhost"),
			Port:           envPort("DB_PORT", "3306"),
			User:           envStr("DB_USER", "admin"),
			Password:       os.Getenv("DB_PASSWORD"), // empty allowed
			Name:           envStr("DB_NAME", "testdb"),
			Charset:        envStr("DB_CHARSET", "utf8mb4"),
			ConnectTimeout: envSeconds("DB_CONNECT_TIMEOUT", 10*time.Second),
		},
	}
}

// envFlag is stricter than envBool: only a case-insensitive "true" turns the
// flag on.  IS_REPLICA=1 therefore leaves an instance writable.
func envFlag(k string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(k)), "true")
}

// envPort keeps the string form but rejects anything that is not a number.
func envPort(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err != nil || n <= 0 || n > 65535 {
		return d
	}
	return v
}

// envSeconds accepts either a Go duration ("15s") or a bare number of seconds.
func envSeconds(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return d
		}
		return time.Duration(n) * time.Second
	}
	if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
		return dur
	}
	return d
}
