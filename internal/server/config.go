package server

import (
	"time"

	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the dashboard and API.
	ListenAddr string

	// AuthPasswordHash is a bcrypt hash. When non-empty, mutating endpoints
	// require HTTP Basic auth with the matching password (any user name).
	AuthPasswordHash string

	// EventBuffer is the per-connection queue of the /ws/events stream.
	EventBuffer int

	// PingInterval keeps idle event streams alive.
	PingInterval time.Duration

	Logger logging.Logger
}

// ConfigFrom derives a server Config from the [server] section of the runtime config.
func ConfigFrom(c config.ServerConfig, logger logging.Logger) Config {
	return Config{
		ListenAddr:       c.ListenAddr,
		AuthPasswordHash: c.AuthPasswordHash,
		EventBuffer:      64,
		PingInterval:     30 * time.Second,
		Logger:           logger,
	}
}
