package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	EnableLocalAuth bool
	AuthHMACSecret  string
	LoginRatePerMin int

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	LogLevel string
	LogFile  string // empty: console only

	TracingEnabled  bool
	TracingEndpoint string

	SessionIdleTTL   time.Duration
	SessionSweepSpec string // cron spec
}

// CORSOrigins returns the origin list for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

var defaults = map[string]any{
	"MODE":                 string(ModeOffline),
	"HTTP_ADDR":            ":8080",
	"DB_DRIVER":            "sqlite",
	"DB_DSN":               "",
	"ENABLE_LOCAL_AUTH":    true,
	"AUTH_HMAC_SECRET":     "dev-secret-change-me",
	"LOGIN_RATE_PER_MIN":   10,
	"CORS_ORIGINS_ONLINE":  "https://academy.mindengage.ai",
	"CORS_ORIGINS_OFFLINE": "http://localhost:3000,http://localhost:3010,http://localhost:3020",
	"LOG_LEVEL":            "info",
	"LOG_FILE":             "",
	"TRACING_ENABLED":      false,
	"TRACING_ENDPOINT":     "http://localhost:14268/api/traces",
	"SESSION_IDLE_TTL":     "30m",
	"SESSION_SWEEP_SPEC":   "@every 1m",
}

// FromEnv reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
		_ = v.BindEnv(k)
	}
	v.AutomaticEnv()
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	ttl := v.GetDuration("SESSION_IDLE_TTL")
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOnline {
		mode = ModeOffline
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		PublicURL:          v.GetString("PUBLIC_URL"),
		DBDriver:           v.GetString("DB_DRIVER"),
		DBDSN:              v.GetString("DB_DSN"),
		EnableLocalAuth:    v.GetBool("ENABLE_LOCAL_AUTH"),
		AuthHMACSecret:     v.GetString("AUTH_HMAC_SECRET"),
		LoginRatePerMin:    v.GetInt("LOGIN_RATE_PER_MIN"),
		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		TracingEnabled:     v.GetBool("TRACING_ENABLED"),
		TracingEndpoint:    v.GetString("TRACING_ENDPOINT"),
		SessionIdleTTL:     ttl,
		SessionSweepSpec:   v.GetString("SESSION_SWEEP_SPEC"),
	}
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
