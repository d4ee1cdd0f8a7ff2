package shared

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	Store       string // mysql | memory
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	JWTSecret  string
	SessionTTL time.Duration
	Locale     string

	GeocoderBase string
	GeocoderRPS  int

	AMQPURL      string
	AMQPExchange string

	ReconcileWorkers  int
	ReconcileInterval time.Duration
}

// Load reads a .env file when present, then env vars, then an optional
// CONFIG_FILE (yaml/json/toml) for anything the environment leaves unset.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]any{
		"APP_ENV":                    "prod",
		"HTTP_ADDR":                  ":8080",
		"METRICS_ADDR":               "",
		"STORE":                      "mysql",
		"MYSQL_DSN":                  "root:root@tcp(localhost:3306)/directory?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		"REDIS_ADDR":                 "localhost:6379",
		"REDIS_PASSWORD":             "",
		"REDIS_DB":                   0,
		"CACHE_TTL_SECONDS":          300,
		"JWT_SECRET":                 "",
		"SESSION_TTL_SECONDS":        7 * 24 * 3600,
		"COLLATION_LOCALE":           "pt-BR",
		"GEOCODER_BASE_URL":          "",
		"GEOCODER_RPS":               1,
		"AMQP_URL":                   "",
		"AMQP_EXCHANGE":              "directory.events",
		"RECONCILE_WORKERS":          8,
		"RECONCILE_INTERVAL_SECONDS": 0,
	}
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if f := v.GetString("CONFIG_FILE"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("config file not loaded")
		}
	}

	c := Config{
		AppEnv:            v.GetString("APP_ENV"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		MetricsAddr:       v.GetString("METRICS_ADDR"),
		Store:             strings.ToLower(v.GetString("STORE")),
		MySQLDSN:          v.GetString("MYSQL_DSN"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPass:         v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		CacheTTL:          time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		JWTSecret:         v.GetString("JWT_SECRET"),
		SessionTTL:        time.Duration(v.GetInt("SESSION_TTL_SECONDS")) * time.Second,
		Locale:            v.GetString("COLLATION_LOCALE"),
		GeocoderBase:      v.GetString("GEOCODER_BASE_URL"),
		GeocoderRPS:       v.GetInt("GEOCODER_RPS"),
		AMQPURL:           v.GetString("AMQP_URL"),
		AMQPExchange:      v.GetString("AMQP_EXCHANGE"),
		ReconcileWorkers:  v.GetInt("RECONCILE_WORKERS"),
		ReconcileInterval: time.Duration(v.GetInt("RECONCILE_INTERVAL_SECONDS")) * time.Second,
	}
	if c.ReconcileWorkers <= 0 {
		c.ReconcileWorkers = 1
	}
	return c
}

// ValidateForAPI checks what the API needs before it signs any token. The
// memory store is a dev mode, so an empty secret there only warns.
func (c Config) ValidateForAPI() error {
	if c.JWTSecret != "" {
		return nil
	}
	if c.Store == "memory" {
		log.Warn().Msg("JWT_SECRET is empty; tokens are signed with an empty key")
		return nil
	}
	return errors.New("JWT_SECRET must be set")
}
