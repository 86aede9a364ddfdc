package config

import "github.com/caarlos0/env/v11"

// LogConfig drives the global zerolog logger. Service is stamped on every
// line so the server and the bot can share a sink.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	Service     string `env:"LOG_SERVICE"`
	Caller      bool   `env:"LOG_CALLER" envDefault:"false"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxMB <= 0 {
		cfg.MaxMB = 10
	}
	return cfg, nil
}

// WithService fills Service when the environment left it empty.
func (c LogConfig) WithService(name string) LogConfig {
	if c.Service == "" {
		c.Service = name
	}
	return c
}
