package client

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from PHR_CLIENT_* environment variables.
type Config struct {
	BaseURL    string        `envconfig:"BASE_URL"    default:"http://localhost:8000"`
	Token      string        `envconfig:"TOKEN"`
	Timeout    time.Duration `envconfig:"TIMEOUT"     default:"15s"`
	MaxElapsed time.Duration `envconfig:"MAX_ELAPSED" default:"10s"`
}

func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process("PHR_CLIENT", &c)
}
