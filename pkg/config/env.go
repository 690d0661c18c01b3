package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable prefix for all portsweep settings
const envPrefix = "PORTSWEEP_"

// ScannerConfig contains configurable scanner settings
type ScannerConfig struct {
	// Channel buffer between probe workers and the result collector
	ResultChannelBuffer int

	// CLI defaults (overridable via profile and flags)
	DefaultConcurrency int
	DefaultTimeout     time.Duration
	DefaultRateLimit   int
	DefaultPorts       string
	DefaultFormat      string
}

// ResolverConfig contains hostname resolution settings
type ResolverConfig struct {
	Servers    string        // Comma-separated DNS servers; empty uses ResolvConf
	ResolvConf string        // Path to resolv.conf
	Timeout    time.Duration // Per-query timeout
}

// PingConfig contains ICMP liveness check settings
type PingConfig struct {
	Timeout     time.Duration
	PayloadSize int
	Privileged  bool // Raw sockets (root) instead of unprivileged UDP ICMP
}

// DefaultScannerConfig returns default scanner configuration
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		ResultChannelBuffer: getEnvInt("SCANNER_RESULT_BUFFER", 256),
		DefaultConcurrency:  getEnvInt("DEFAULT_CONCURRENCY", 100),
		DefaultTimeout:      getEnvDuration("DEFAULT_TIMEOUT", time.Second),
		DefaultRateLimit:    getEnvInt("DEFAULT_RATE_LIMIT", 0), // unlimited
		DefaultPorts: getEnvString("DEFAULT_PORTS",
			"80,443,8080,22,21,25,110,995,143,993,3306,5432,6379,27017,33128,8081,8888,9000,9200,9300,11211"),
		DefaultFormat: getEnvString("DEFAULT_FORMAT", "text"),
	}
}

// DefaultResolverConfig returns default resolver configuration
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Servers:    getEnvString("DNS_SERVERS", ""),
		ResolvConf: getEnvString("RESOLV_CONF", "/etc/resolv.conf"),
		Timeout:    getEnvDuration("DNS_TIMEOUT", 3*time.Second),
	}
}

// DefaultPingConfig returns default ping configuration
func DefaultPingConfig() PingConfig {
	return PingConfig{
		Timeout:     getEnvDuration("PING_TIMEOUT", 2*time.Second),
		PayloadSize: getEnvInt("PING_PAYLOAD_SIZE", 56),
		Privileged:  getEnvBool("PING_PRIVILEGED", false),
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "500ms", "5s", "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable with a default value
// Accepts: "true", "false", "1", "0", "yes", "no" (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvString retrieves a string environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultValue
}

// Global configuration instances (initialized once at startup)
var (
	Scanner  = DefaultScannerConfig()
	Resolver = DefaultResolverConfig()
	Ping     = DefaultPingConfig()
)

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	Scanner = DefaultScannerConfig()
	Resolver = DefaultResolverConfig()
	Ping = DefaultPingConfig()
}
