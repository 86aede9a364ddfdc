package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	PendingBackend string        `env:"PENDING_BACKEND" envDefault:"memory"`
	PendingTTL     time.Duration `env:"PENDING_TTL" envDefault:"2m"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`

	VoiceTokenURL     string        `env:"VOICE_TOKEN_URL"`
	VoiceTokenAPIKey  string        `env:"VOICE_TOKEN_API_KEY"`
	VoiceTokenTTL     time.Duration `env:"VOICE_TOKEN_TTL" envDefault:"1h"`
	VoiceTokenTimeout time.Duration `env:"VOICE_TOKEN_TIMEOUT" envDefault:"5s"`

	WSPingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
