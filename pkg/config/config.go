package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	War      WarConfig
	LogLevel string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	GinMode      string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig selects Postgres when URL is set, SQLite at Path otherwise
type DatabaseConfig struct {
	URL  string
	Path string
}

// RedisConfig holds Redis connection settings. An empty Addr disables notifications.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds secrets and the bootstrap admin account
type AuthConfig struct {
	JWTSecret     string
	MasterSecret  string
	AdminUsername string
	AdminPassword string
}

// WarConfig describes the weekly war schedule
type WarConfig struct {
	Weekday   time.Weekday
	EarlyTime time.Duration
	LateTime  time.Duration
	Location  *time.Location
}

// LoadEnvFiles loads the first .env found in the working directory or its parents
func LoadEnvFiles() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads configuration from environment, with an optional .env file
func Load() (*Config, error) {
	LoadEnvFiles()

	early, err := parseClock(getEnv("WAR_EARLY_TIME", "20:00"))
	if err != nil {
		return nil, fmt.Errorf("WAR_EARLY_TIME: %w", err)
	}
	late, err := parseClock(getEnv("WAR_LATE_TIME", "22:00"))
	if err != nil {
		return nil, fmt.Errorf("WAR_LATE_TIME: %w", err)
	}
	loc, err := time.LoadLocation(getEnv("WAR_TIMEZONE", "UTC"))
	if err != nil {
		loc = time.UTC
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8000"),
			GinMode:      os.Getenv("GIN_MODE"),
			ReadTimeout:  getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout: getEnvInt("WRITE_TIMEOUT_SEC", 30),
		},
		Database: DatabaseConfig{
			URL:  os.Getenv("DATABASE_URL"),
			Path: getEnv("DATA_PATH", "warplanner.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			MasterSecret:  os.Getenv("API_MASTER_SECRET"),
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		},
		War: WarConfig{
			Weekday:   parseWeekday(getEnv("WAR_WEEKDAY", "saturday")),
			EarlyTime: early,
			LateTime:  late,
			Location:  loc,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// parseClock turns "HH:MM" into an offset from midnight
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func parseWeekday(s string) time.Weekday {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d
		}
	}
	return time.Saturday
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
