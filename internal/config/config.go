package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
	DBUser                 string `env:"DB_USER,required,notEmpty"`
	DBPassword             string `env:"DB_PASSWORD,required,notEmpty"`
	DBHost                 string `env:"DB_HOST,required,notEmpty"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required,notEmpty"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID     string `env:"FIREBASE_PROJECT_ID"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`
	StorageBucket         string `env:"STORAGE_BUCKET"`
	GeminiModel           string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiAPIKey          string `env:"GEMINI_API_KEY"`
	RedisURL              string `env:"REDIS_URL"`
	AllowedOriginSuffix   string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"vercel.app"`

	NegotiationTTL    time.Duration `env:"NEGOTIATION_TTL" envDefault:"168h"`
	StrictTurnTaking  bool          `env:"STRICT_TURN_TAKING" envDefault:"true"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`
	RelayInterval     time.Duration `env:"RELAY_INTERVAL" envDefault:"10s"`
	ChatRatePerMinute int           `env:"CHAT_RATE_PER_MINUTE" envDefault:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	for name, d := range map[string]time.Duration{
		"NEGOTIATION_TTL": cfg.NegotiationTTL,
		"REAPER_INTERVAL": cfg.ReaperInterval,
		"RELAY_INTERVAL":  cfg.RelayInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return &cfg, nil
}
