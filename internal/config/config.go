package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	GatewayURL     string
	GatewayToken   string
	InstanceName   string
	SendRatePerSec int

	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GatewayURL:     getEnv("GATEWAY_URL", ""),
		GatewayToken:   getEnv("GATEWAY_TOKEN", ""),
		InstanceName:   getEnv("INSTANCE_NAME", "transmito"),
		SendRatePerSec: getEnvInt("SEND_RATE_PER_SEC", 10),
		DBPath:         getEnv("DB_PATH", "./transmito.db"),
		DBHost:         getEnv("DB_HOST", ""),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "transmito"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
	}
}

// Simulated reports whether the gateway client should run without a live
// account: no token or URL configured means sends are faked locally.
func (c *Config) Simulated() bool {
	return c.GatewayToken == "" || c.GatewayURL == ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
