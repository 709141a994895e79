package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	minHoldTTL     = time.Minute
	maxHoldTTL     = 30 * time.Minute
	defaultHoldTTL = 7 * time.Minute
)

type Env struct {
	AppAddr            string
	GinMode            string
	DBDSN              string
	JWTSecret          string
	HoldTTL            time.Duration
	SweepInterval      time.Duration
	CommissionBPS      int64
	TemporalAddress    string
	TemporalTaskQueue  string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
}

// AgentEnv configures the field-agent device CLI.
type AgentEnv struct {
	DeviceID  string
	QueuePath string
	ServerURL string
	Token     string
	PollEvery time.Duration
}

// LoadEnv reads .env (when present) and the process environment.
func LoadEnv() Env {
	_ = godotenv.Load()

	appAddr := getEnv("APP_ADDR", ":8080")

	return Env{
		AppAddr:            appAddr,
		GinMode:            strings.TrimSpace(os.Getenv("GIN_MODE")),
		DBDSN:              strings.TrimSpace(os.Getenv("DB_DSN")),
		JWTSecret:          getEnv("JWT_SECRET", "super-secret-key-change-me"),
		HoldTTL:            clampTTL(parseDuration(os.Getenv("HOLD_TTL"), defaultHoldTTL)),
		SweepInterval:      parseDuration(os.Getenv("SWEEP_INTERVAL"), 30*time.Second),
		CommissionBPS:      parseInt64(os.Getenv("AGENT_COMMISSION_BPS"), 100),
		TemporalAddress:    strings.TrimSpace(os.Getenv("TEMPORAL_ADDRESS")),
		TemporalTaskQueue:  getEnv("TEMPORAL_TASK_QUEUE", "hold-expiry-task-queue"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}
}

// LoadAgentEnv reads the agent CLI settings.
func LoadAgentEnv() AgentEnv {
	_ = godotenv.Load()

	host, _ := os.Hostname()
	return AgentEnv{
		DeviceID:  getEnv("AGENT_DEVICE_ID", host),
		QueuePath: getEnv("AGENT_QUEUE_PATH", "agent-queue.db"),
		ServerURL: strings.TrimRight(getEnv("AGENT_SERVER_URL", "http://localhost:8080"), "/"),
		Token:     strings.TrimSpace(os.Getenv("AGENT_TOKEN")),
		PollEvery: parseDuration(os.Getenv("AGENT_POLL_INTERVAL"), 15*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt64(s string, fallback int64) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil || i < 0 {
		return fallback
	}
	return i
}

func clampTTL(d time.Duration) time.Duration {
	if d < minHoldTTL {
		return minHoldTTL
	}
	if d > maxHoldTTL {
		return maxHoldTTL
	}
	return d
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
