package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"MESSENGER_SERVER_URL" default:"http://localhost:8080"`
	Email     string `envconfig:"MESSENGER_EMAIL" required:"true"`
	Password  string `envconfig:"MESSENGER_PASSWORD" required:"true"`
	// MESSENGER_NAME registers the account when login fails and a name is given
	Name         string        `envconfig:"MESSENGER_NAME"`
	To           string        `envconfig:"MESSENGER_TO"`
	PollInterval time.Duration `envconfig:"MESSENGER_POLL_INTERVAL" default:"4s"`
	Reconcile    string        `envconfig:"MESSENGER_RECONCILE" default:"merge"`
	Timeout      time.Duration `envconfig:"MESSENGER_TIMEOUT" default:"10s"`
	Colours      bool          `envconfig:"MESSENGER_COLOURS" default:"true"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"WARN"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
