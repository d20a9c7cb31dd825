package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort          string
	GRPCPort          string
	IntegratorURL     string
	IntegratorTimeout time.Duration
	DebounceQuiet     time.Duration
	PlotPoints        int
	DBPath            string
	JWTSecret         string
	Environment       string
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadEnvFiles загружает первый найденный .env. Уже заданные переменные не перезаписываются.
func LoadEnvFiles(files ...string) string {
	if len(files) == 0 {
		files = []string{".env", "../.env", "../../.env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err == nil {
			return file
		}
	}
	return ""
}

// Load читает конфигурацию из переменных окружения
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      getEnvOrDefault("HTTP_PORT", "8080"),
		GRPCPort:      getEnvOrDefault("GRPC_PORT", "8081"),
		IntegratorURL: getEnvOrDefault("INTEGRATOR_URL", "http://localhost:8000/integrate"),
		DBPath:        getEnvOrDefault("DB_PATH", "./workbench.db"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		Environment:   getEnvOrDefault("ENVIRONMENT", "development"),
	}

	var err error
	if cfg.IntegratorTimeout, err = durationEnv("INTEGRATOR_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.DebounceQuiet, err = durationEnv("DEBOUNCE_QUIET", 450*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.PlotPoints, err = strconv.Atoi(getEnvOrDefault("PLOT_POINTS", "101")); err != nil {
		return Config{}, fmt.Errorf("invalid PLOT_POINTS: %w", err)
	}
	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
