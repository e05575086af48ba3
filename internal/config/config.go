// Package config loads the server's runtime configuration from the
// environment, optionally sourced from a local .env file first.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is every environment-tunable knob the server reads at startup.
type Config struct {
	// ListenAddr is the address http.ListenAndServe binds to.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	// WebSocketPath is the upgrade route.
	WebSocketPath string `envconfig:"WEBSOCKET_PATH" default:"/api/snake/ws"`

	// HealthCheckPath answers with 200 for liveness probes.
	HealthCheckPath string `envconfig:"HEALTH_CHECK_PATH" default:"/api/health_check"`

	// TickInterval is how often a Running lobby advances its simulation.
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"500ms"`

	// RefillFoodThreshold is the food count below which a Running lobby
	// tops up with a fresh figure.
	RefillFoodThreshold int `envconfig:"REFILL_FOOD_THRESHOLD" default:"10"`

	// AutoGenUserName assigns "Player <port>" as a username automatically
	// on connect, for local debugging. Mirrors the reference server's
	// AUTO_GEN_USER_NAME constant; only takes effect when IsLocal reports
	// true.
	AutoGenUserName bool `envconfig:"AUTO_GEN_USER_NAME" default:"false"`

	// Env selects the dev/prod split for protocol-violation handling: a
	// missing required id panics in "local", "dev" or "development", and
	// only logs in any other environment.
	Env string `envconfig:"ENV" default:"local"`

	// LogLevel is parsed by logrus (trace, debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// IsLocal reports whether the configured environment is local/dev, the
// split used by the connection handler's panic-vs-log behavior.
func (c Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev" || c.Env == "development"
}

// Load reads a .env file if present (missing files are not an error),
// then binds environment variables onto a Config using the SNAKE prefix.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// absence of a .env file is expected outside local dev; only a
		// malformed file is worth surfacing.
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var c Config
	if err := envconfig.Process("snake", &c); err != nil {
		return Config{}, fmt.Errorf("config: process env: %w", err)
	}
	return c, nil
}
