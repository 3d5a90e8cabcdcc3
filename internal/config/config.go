package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

// Config carries every runtime knob for a gateway instance. All fields are
// loaded from the environment; main calls godotenv first so a local .env works.
type Config struct {
	Port     string `envconfig:"PORT" default:"4000"`
	DBURL    string `envconfig:"DB_URL" required:"true"`
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// ServerID tags every envelope this instance publishes on the fan-out bus.
	// It must be unique per process; when unset it is derived from the
	// hostname, port and a random suffix.
	ServerID string `envconfig:"SERVER_ID"`

	// HistoryWindow is how many recent messages are pulled from the durable
	// store on a cache miss; HistoryTTLSeconds bounds how long a repopulated
	// room cache lives.
	HistoryWindow     int `envconfig:"HISTORY_WINDOW" default:"100"`
	HistoryTTLSeconds int `envconfig:"HISTORY_TTL_SECONDS" default:"3600"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.ServerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "gateway"
		}
		cfg.ServerID = fmt.Sprintf("%s:%s-%s", host, cfg.Port, uuid.NewString()[:8])
	}
	return cfg, nil
}
