package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Port string

	MongoURI      string
	MongoDatabase string

	JWTSecret  string
	JWTExpire  time.Duration
	BcryptCost int

	FileUploadPath string
	MaxFileUpload  int64

	GeocoderURL      string
	GeocoderAPIKey   string
	GeocoderCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins  []string
	OTELEndpoint string
	LogLevel     string

	AggregateWorkers int
	AggregateQueue   int
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", "5000")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "devcamper")
	v.SetDefault("JWT_EXPIRE", "720h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("FILE_UPLOAD_PATH", "./public/uploads")
	v.SetDefault("MAX_FILE_UPLOAD", 1000000)
	v.SetDefault("GEOCODER_URL", "https://www.mapquestapi.com/geocoding/v1/address")
	v.SetDefault("GEOCODER_CACHE_TTL", "24h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("AGGREGATE_WORKERS", 2)
	v.SetDefault("AGGREGATE_QUEUE", 256)

	cfg := &Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		MongoURI:         v.GetString("MONGO_URI"),
		MongoDatabase:    v.GetString("MONGO_DATABASE"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTExpire:        v.GetDuration("JWT_EXPIRE"),
		BcryptCost:       v.GetInt("BCRYPT_COST"),
		FileUploadPath:   v.GetString("FILE_UPLOAD_PATH"),
		MaxFileUpload:    v.GetInt64("MAX_FILE_UPLOAD"),
		GeocoderURL:      v.GetString("GEOCODER_URL"),
		GeocoderAPIKey:   v.GetString("GEOCODER_API_KEY"),
		GeocoderCacheTTL: v.GetDuration("GEOCODER_CACHE_TTL"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		CORSOrigins:      splitList(v.GetString("CORS_ORIGINS")),
		OTELEndpoint:     v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		AggregateWorkers: v.GetInt("AGGREGATE_WORKERS"),
		AggregateQueue:   v.GetInt("AGGREGATE_QUEUE"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not configured")
	}
	if cfg.JWTExpire <= 0 {
		cfg.JWTExpire = 30 * 24 * time.Hour
	}
	if cfg.AggregateWorkers <= 0 {
		cfg.AggregateWorkers = 1
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
