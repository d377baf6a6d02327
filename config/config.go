package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Queue     QueueConfig
	Screen    ScreenConfig
	Realtime  RealtimeConfig
	Mail      MailConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Name     string
	Port     string
	Env      string
	LogLevel string
	BaseURL  string
}

type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string
}

type DBConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	TimeZone    string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// QueueConfig tunes turn code generation and ticket retention.
type QueueConfig struct {
	CodePattern        string
	CodePad            int
	Motives            []string
	LockTTL            time.Duration
	LockRetries        int
	LockRetryWait      time.Duration
	HistoryLimit       int
	TombstoneRetention time.Duration
	SweepInterval      time.Duration
}

type ScreenConfig struct {
	Count         int
	PairingTTL    time.Duration
	SweepInterval time.Duration
}

type RealtimeConfig struct {
	Channel      string
	SendBuffer   int
	PingInterval time.Duration
	WriteWait    time.Duration
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ResetTTL time.Duration
}

type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "clinic-queue")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	v.SetDefault("HTTP_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("QUEUE_CODE_PATTERN", "{prefix}-{seq}")
	v.SetDefault("QUEUE_CODE_PAD", 3)
	v.SetDefault("QUEUE_MOTIVES", "informacion,consulta,control,resultados,urgencia")
	v.SetDefault("QUEUE_LOCK_RETRIES", 5)
	v.SetDefault("QUEUE_HISTORY_LIMIT", 10)

	v.SetDefault("SCREEN_COUNT", 6)

	v.SetDefault("REALTIME_CHANNEL", "clinic:events")
	v.SetDefault("REALTIME_SEND_BUFFER", 32)

	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_FROM", "turnos@clinica.local")
}

func LoadConfig() (*Config, error) {
	return Load(".env")
}

// Load reads configuration from envFile when it exists, then from the environment.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	config := &Config{
		App: AppConfig{
			Name:     v.GetString("APP_NAME"),
			Port:     v.GetString("APP_PORT"),
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
			BaseURL:  strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    duration(v, "HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   duration(v, "HTTP_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout: duration(v, "HTTP_REQUEST_TIMEOUT", 10*time.Second),
			AllowedOrigins: list(v, "HTTP_ALLOWED_ORIGINS"),
		},
		DB: DBConfig{
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			Name:        v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			TimeZone:    v.GetString("DB_TIMEZONE"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  duration(v, "JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: duration(v, "JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Queue: QueueConfig{
			CodePattern:        v.GetString("QUEUE_CODE_PATTERN"),
			CodePad:            v.GetInt("QUEUE_CODE_PAD"),
			Motives:            list(v, "QUEUE_MOTIVES"),
			LockTTL:            duration(v, "QUEUE_LOCK_TTL", 5*time.Second),
			LockRetries:        v.GetInt("QUEUE_LOCK_RETRIES"),
			LockRetryWait:      duration(v, "QUEUE_LOCK_RETRY_WAIT", 50*time.Millisecond),
			HistoryLimit:       v.GetInt("QUEUE_HISTORY_LIMIT"),
			TombstoneRetention: duration(v, "QUEUE_TOMBSTONE_RETENTION", 72*time.Hour),
			SweepInterval:      duration(v, "QUEUE_SWEEP_INTERVAL", 10*time.Minute),
		},
		Screen: ScreenConfig{
			Count:         v.GetInt("SCREEN_COUNT"),
			PairingTTL:    duration(v, "SCREEN_PAIRING_TTL", 10*time.Minute),
			SweepInterval: duration(v, "SCREEN_SWEEP_INTERVAL", time.Minute),
		},
		Realtime: RealtimeConfig{
			Channel:      v.GetString("REALTIME_CHANNEL"),
			SendBuffer:   v.GetInt("REALTIME_SEND_BUFFER"),
			PingInterval: duration(v, "REALTIME_PING_INTERVAL", 25*time.Second),
			WriteWait:    duration(v, "REALTIME_WRITE_WAIT", 10*time.Second),
		},
		Mail: MailConfig{
			Host:     v.GetString("MAIL_SERVER"),
			Port:     v.GetInt("MAIL_PORT"),
			Username: v.GetString("MAIL_USERNAME"),
			Password: v.GetString("MAIL_PASSWORD"),
			From:     v.GetString("MAIL_FROM"),
			ResetTTL: duration(v, "MAIL_RESET_TTL", 30*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Endpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
	}

	return config, nil
}

// duration falls back on unparsable or non-positive values, where GetDuration would return 0
func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func list(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range strings.Split(v.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}
