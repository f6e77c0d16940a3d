package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// DataDir holds leads_minimal.json, lead_notes.json and the
	// conversation transcript files.
	DataDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeminiAPIKey        string
	GeminiModel         string
	GeminiFallbackModel string

	// Conversation limits
	MaxInputLength  int
	MaxHistoryTurns int
	SessionTTL      time.Duration

	// HTTP surface
	CORSAllowedOrigins []string
	ChatRateLimit      float64
	ChatRateBurst      int

	SystemInstructionFile        string
	SystemInstructionHistoryFile string

	// Calendar booking
	OperatorEmail      string
	CalendarID         string
	ServiceAccountFile string
	OAuthTokenFile     string
	BookingAuditFile   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataDir: getEnv("DATA_DIR", "client_data"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiFallbackModel: getEnv("GEMINI_FALLBACK_MODEL", ""),

		MaxInputLength:  getEnvAsInt("MAX_INPUT_LENGTH", 5000),
		MaxHistoryTurns: getEnvAsInt("MAX_HISTORY_TURNS", 10),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ChatRateLimit:      getEnvAsFloat("CHAT_RATE_LIMIT", 2),
		ChatRateBurst:      getEnvAsInt("CHAT_RATE_BURST", 5),

		SystemInstructionFile:        getEnv("SYSTEM_INSTRUCTION_FILE", "system_instruction.txt"),
		SystemInstructionHistoryFile: getEnv("SYSTEM_INSTRUCTION_HISTORY_FILE", "system_instruction_history.json"),

		OperatorEmail:      getEnv("OPERATOR_EMAIL", ""),
		CalendarID:         getEnv("CALENDAR_ID", "primary"),
		ServiceAccountFile: getEnv("SERVICE_ACCOUNT_FILE", "service_account.json"),
		OAuthTokenFile:     getEnv("OAUTH_TOKEN_FILE", "oauth_token.json"),
		BookingAuditFile:   getEnv("BOOKING_AUDIT_FILE", "booking_audit.jsonl"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
