package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// No-input handling modes
const (
	NoInputTransfer = "transfer"
	NoInputReprompt = "reprompt"
)

// Session store backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Port string

	DialogueWebhookURL string
	DialogueTimeoutMS  int64

	FallbackPhoneNumber string
	NoInputAction       string
	NoInputMaxReprompts int

	Voice         string
	VoiceLanguage string
	VoiceSpeed    string
	SpeechTimeout string

	WebhookBaseURL string

	GreetingLocale  string
	AssistantBrand  string
	GreetingMarkers []string
	Timezone        string

	DirectoryEnabled   bool
	DirectoryTimeoutMS int64
	DBHost             string
	DBPort             int
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string

	SessionBackend    string
	RedisURL          string
	SessionTTLMinutes int

	Debug    bool
	LogLevel string
}

func Load() *Config {
	config := &Config{
		Port: getEnv("PORT", "5000"),

		DialogueWebhookURL: getEnv("DIALOGUE_WEBHOOK_URL", getEnv("RASA_WEBHOOK_URL", "http://localhost:5005/webhooks/rest/webhook")),
		DialogueTimeoutMS:  getEnvInt64("DIALOGUE_TIMEOUT_MS", 8000),

		FallbackPhoneNumber: getEnv("FALLBACK_PHONE_NUMBER", ""),
		NoInputAction:       getEnvChoice("NO_INPUT_ACTION", NoInputTransfer, NoInputTransfer, NoInputReprompt),
		NoInputMaxReprompts: getEnvInt("NO_INPUT_MAX_REPROMPTS", 2),

		Voice:         getEnv("POLLY_VOICE", "Polly.Mia"),
		VoiceLanguage: getEnv("POLLY_LANGUAGE", "es-MX"),
		VoiceSpeed:    getEnv("POLLY_SPEED", "1.0"),
		SpeechTimeout: getEnv("SPEECH_TIMEOUT", "auto"),

		WebhookBaseURL: strings.TrimRight(getEnv("WEBHOOK_BASE_URL", ""), "/"),

		GreetingLocale:  getEnv("GREETING_LOCALE", "es"),
		AssistantBrand:  getEnv("ASSISTANT_BRAND", "Scotiabank"),
		GreetingMarkers: getEnvList("GREETING_MARKERS"),
		Timezone:        getEnv("TIMEZONE", "Local"),

		DirectoryEnabled:   getEnvBool("DIRECTORY_ENABLED", true),
		DirectoryTimeoutMS: getEnvInt64("DIRECTORY_TIMEOUT_MS", 2000),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnvInt("DB_PORT", 5432),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBName:             getEnv("DB_NAME", "bank"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),

		SessionBackend:    getEnvChoice("SESSION_BACKEND", SessionBackendMemory, SessionBackendMemory, SessionBackendRedis),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 120),

		Debug:    getEnvBool("DEBUG", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

func (c *Config) DialogueTimeout() time.Duration {
	return time.Duration(c.DialogueTimeoutMS) * time.Millisecond
}

func (c *Config) DirectoryTimeout() time.Duration {
	return time.Duration(c.DirectoryTimeoutMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// EffectiveLogLevel lets DEBUG override LOG_LEVEL
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// Location resolves the greeting time zone, falling back to local time
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvChoice returns the lower-cased value if it is one of allowed
func getEnvChoice(key, defaultValue string, allowed ...string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
