package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	WSURL     string        `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	SessionID string        `env:"SESSION_ID" envDefault:""`
	Mood      string        `env:"BOT_MOOD" envDefault:"vent"`
	Priority  bool          `env:"BOT_PRIORITY" envDefault:"false"`
	TalkFor   time.Duration `env:"BOT_TALK_FOR" envDefault:"20s"`
	ExtendBy  int           `env:"BOT_EXTEND_MINUTES" envDefault:"0"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
