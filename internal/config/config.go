package config

import (
	"fmt"
	"strings"
	"time"

	"meet-signal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Signaling SignalingConfig
	Rooms     RoomConfig
	Upload    UploadConfig
	S3        S3Config
	Telemetry TelemetryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type SignalingConfig struct {
	PongWait        time.Duration
	PingPeriod      time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	SendBuffer      int
}

type RoomConfig struct {
	Retention        time.Duration
	SweepInterval    time.Duration
	DeleteEmptyRooms bool
	HistoryLimit     int
}

type UploadConfig struct {
	Dir           string
	MaxBytes      int64
	PublicURL     string
	SigningSecret []byte
	LinkTTL       time.Duration
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":3001")
	v.SetDefault("READ_TIMEOUT", "15s")
	v.SetDefault("WRITE_TIMEOUT", "15s")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")

	v.SetDefault("PONG_WAIT", "60s")
	v.SetDefault("PING_PERIOD", "54s")
	v.SetDefault("WRITE_WAIT", "10s")
	v.SetDefault("MAX_MESSAGE_BYTES", 1<<20)
	v.SetDefault("SEND_BUFFER", 256)

	v.SetDefault("ROOM_RETENTION", "24h")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("DELETE_EMPTY_ROOMS", true)
	v.SetDefault("CHAT_HISTORY_LIMIT", 1000)

	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("UPLOAD_PUBLIC_URL", "/uploads")
	v.SetDefault("UPLOAD_SIGNING_SECRET", "")
	v.SetDefault("UPLOAD_LINK_TTL", "24h")

	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "meeting-uploads")
	v.SetDefault("S3_USE_SSL", false)

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "meet-signal")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	cfg, err := FromViper(v)
	if err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}
	return cfg
}

// FromViper builds a Config from v after applying defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var errs []string
	duration := func(key string) time.Duration {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           normalizePort(v.GetString("PORT")),
			ReadTimeout:    duration("READ_TIMEOUT"),
			WriteTimeout:   duration("WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Signaling: SignalingConfig{
			PongWait:        duration("PONG_WAIT"),
			PingPeriod:      duration("PING_PERIOD"),
			WriteWait:       duration("WRITE_WAIT"),
			MaxMessageBytes: v.GetInt64("MAX_MESSAGE_BYTES"),
			SendBuffer:      v.GetInt("SEND_BUFFER"),
		},
		Rooms: RoomConfig{
			Retention:        duration("ROOM_RETENTION"),
			SweepInterval:    duration("SWEEP_INTERVAL"),
			DeleteEmptyRooms: v.GetBool("DELETE_EMPTY_ROOMS"),
			HistoryLimit:     v.GetInt("CHAT_HISTORY_LIMIT"),
		},
		Upload: UploadConfig{
			Dir:           v.GetString("UPLOAD_DIR"),
			MaxBytes:      v.GetInt64("UPLOAD_MAX_BYTES"),
			PublicURL:     strings.TrimRight(v.GetString("UPLOAD_PUBLIC_URL"), "/"),
			SigningSecret: []byte(v.GetString("UPLOAD_SIGNING_SECRET")),
			LinkTTL:       duration("UPLOAD_LINK_TTL"),
		},
		S3: S3Config{
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Bucket:    v.GetString("S3_BUCKET"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid durations: %s", strings.Join(errs, "; "))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Signaling.PingPeriod >= c.Signaling.PongWait {
		return fmt.Errorf("PING_PERIOD (%s) must be shorter than PONG_WAIT (%s)", c.Signaling.PingPeriod, c.Signaling.PongWait)
	}
	if c.Signaling.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive")
	}
	if c.Rooms.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must list at least one origin or \"*\"")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// AllowsAnyOrigin reports whether ALLOWED_ORIGINS contains "*".
func (c ServerConfig) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func normalizePort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
