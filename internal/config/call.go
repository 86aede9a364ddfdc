package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// CallConfig holds the matchmaking and call timing knobs plus the economy
// defaults applied to newly seen sessions.
type CallConfig struct {
	DefaultDuration  time.Duration `env:"CALL_DEFAULT_DURATION" envDefault:"10m"`
	MaxDuration      time.Duration `env:"CALL_MAX_DURATION" envDefault:"60m"`
	ReadyTimeout     time.Duration `env:"CALL_READY_TIMEOUT" envDefault:"30s"`
	DisconnectGrace  time.Duration `env:"CALL_DISCONNECT_GRACE" envDefault:"15s"`
	HeartbeatTimeout time.Duration `env:"QUEUE_HEARTBEAT_TIMEOUT" envDefault:"15s"`

	InitialTimeBankMinutes int64 `env:"INITIAL_TIME_BANK_MINUTES" envDefault:"30"`
	InitialReputation      int64 `env:"INITIAL_REPUTATION" envDefault:"50"`
	DailyMatchAllowance    int64 `env:"DAILY_MATCH_ALLOWANCE" envDefault:"5"`
}

func LoadCall() (CallConfig, error) {
	var cfg CallConfig
	err := env.Parse(&cfg)
	return cfg, err
}
