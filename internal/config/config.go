// Package config provides configuration for the research service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort       int
	AllowedOrigins []string

	// Database
	DatabaseURL string

	// LLM (OpenRouter)
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	ModelName         string
	ModelTemperature  float64
	ModelMaxTokens    int
	ModelReasoning    bool
	AgentMode         string

	// Tools
	TavilyAPIKey   string
	TavilyBaseURL  string
	E2BAPIKey      string
	E2BDomain      string
	SandboxBackend string
	SandboxImage   string
	SandboxTimeout time.Duration

	// Observability
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string

	// Auth
	JWTSecret        string
	JWTAlgorithm     string
	JWTExpireMinutes int

	// Agent
	DefaultHITLMode        string
	MaxConcurrentSubagents int
	MaxDelegationRounds    int
	RecursionLimit         int
	ApprovalTimeout        time.Duration

	// Rate limits
	FreeTierRPM int
	FreeTierRPD int
	ProTierRPM  int
	ProTierRPD  int

	// Event fan-out
	RedisURL string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 8000),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DatabaseURL: getEnv("DATABASE_URL", "file:research.db?cache=shared&mode=rwc"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ModelName:         getEnv("MODEL_NAME", "xiaomi/mimo-v2-flash:free"),
		ModelTemperature:  getEnvFloat("MODEL_TEMPERATURE", 0.0),
		ModelMaxTokens:    getEnvInt("MODEL_MAX_TOKENS", 65536),
		ModelReasoning:    getEnvBool("MODEL_REASONING", true),
		AgentMode:         os.Getenv("AGENT_MODE"),

		TavilyAPIKey:   os.Getenv("TAVILY_API_KEY"),
		TavilyBaseURL:  getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
		E2BAPIKey:      os.Getenv("E2B_API_KEY"),
		E2BDomain:      getEnv("E2B_DOMAIN", "e2b.app"),
		SandboxBackend: getEnv("SANDBOX_BACKEND", "e2b"),
		SandboxImage:   getEnv("SANDBOX_IMAGE", "python:3.12-slim"),
		SandboxTimeout: time.Duration(getEnvInt("SANDBOX_TIMEOUT_SECONDS", 60)) * time.Second,

		LangfusePublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		LangfuseSecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTAlgorithm:     getEnv("JWT_ALGORITHM", "HS256"),
		JWTExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 60*24),

		DefaultHITLMode:        getEnv("DEFAULT_HITL_MODE", "sensitive"),
		MaxConcurrentSubagents: getEnvInt("MAX_CONCURRENT_SUBAGENTS", 3),
		MaxDelegationRounds:    getEnvInt("MAX_DELEGATION_ROUNDS", 3),
		RecursionLimit:         getEnvInt("AGENT_RECURSION_LIMIT", 25),
		ApprovalTimeout:        time.Duration(getEnvInt("APPROVAL_TIMEOUT_MS", 600000)) * time.Millisecond,

		FreeTierRPM: getEnvInt("FREE_TIER_RPM", 10),
		FreeTierRPD: getEnvInt("FREE_TIER_RPD", 100),
		ProTierRPM:  getEnvInt("PRO_TIER_RPM", 60),
		ProTierRPD:  getEnvInt("PRO_TIER_RPD", 1000),

		RedisURL: os.Getenv("REDIS_URL"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// LangfuseEnabled reports whether trace export credentials are configured.
func (c *Config) LangfuseEnabled() bool {
	return c.LangfusePublicKey != "" && c.LangfuseSecretKey != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// getEnvList reads a comma separated list. A JSON style list such as
// ["a","b"] is accepted too.
func getEnvList(key string, defaultVal []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultVal
	}
	raw = strings.Trim(raw, "[]")
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
