package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Gemini unlocks oracle planning/fallbacks; empty means heuristics only.
	GeminiAPIKey string
	GeminiModel  string

	MongoURL string
	MongoDB  string
	MeiliURL string
	MeiliKey string
	NatsURL  string

	BrowserHeadless bool
	NavTimeout      time.Duration
	NavRate         float64
	NavBurst        int

	CaptchaWaitTimeout  time.Duration
	CaptchaPollInterval time.Duration

	MaxResults       int
	MaxEnrich        int
	MaxContentLength int
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MongoURL: getEnv("MONGO_URL", ""),
		MongoDB:  getEnv("MONGO_DB", "webpilot"),
		MeiliURL: getEnv("MEILI_URL", ""),
		MeiliKey: getEnv("MEILI_KEY", "masterKey"),
		NatsURL:  getEnv("NATS_URL", ""),

		BrowserHeadless: getEnvBool("BROWSER_HEADLESS", false),
		NavTimeout:      getEnvDuration("NAV_TIMEOUT", 30*time.Second),
		NavRate:         getEnvFloat("NAV_RATE", 1.0),
		NavBurst:        getEnvInt("NAV_BURST", 3),

		CaptchaWaitTimeout:  getEnvDuration("CAPTCHA_WAIT_TIMEOUT", 300*time.Second),
		CaptchaPollInterval: getEnvDuration("CAPTCHA_POLL_INTERVAL", 3*time.Second),

		MaxResults:       getEnvInt("MAX_RESULTS", 5),
		MaxEnrich:        getEnvInt("MAX_ENRICH", 3),
		MaxContentLength: getEnvInt("MAX_CONTENT_LENGTH", 2000),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
