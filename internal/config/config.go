package config

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/melih/lighthouse-runner/internal/core/services"
)

type Config struct {
	Port         string
	UploadDir    string
	PublicHost   string
	ProxyDomain  string
	Dockerfile   string
	SettleDelay  time.Duration
	SSEKeepAlive time.Duration
	LogLevel     slog.Level
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "5000"),
		UploadDir:    getEnv("UPLOAD_DIR", "./uploads"),
		PublicHost:   getEnv("PUBLIC_HOST", ""),
		ProxyDomain:  getEnv("PROXY_DOMAIN", "localhost"),
		Dockerfile:   getEnv("DOCKERFILE_NAME", "Dockerfile"),
		SettleDelay:  getDuration("SETTLE_DELAY", services.DefaultSettleDelay),
		SSEKeepAlive: getDuration("SSE_KEEPALIVE", 15*time.Second),
		LogLevel:     getLevel("LOG_LEVEL", slog.LevelInfo),
	}
	if cfg.PublicHost == "" {
		cfg.PublicHost = HostAddress()
	}

	return cfg
}

// HostAddress resolves the machine's hostname to an IPv4 address, falling
// back to localhost.
func HostAddress() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	return "localhost"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

func getLevel(key string, defaultValue slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(value))); err != nil {
		return defaultValue
	}
	return level
}
