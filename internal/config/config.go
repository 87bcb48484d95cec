// Package config loads the mediator's init-time configuration from flags
// and environment variables.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the mediator's init-time configuration.
type Config struct {
	// DataPort is the local UDP port the backend should redirect received
	// audio to once a call reaches CONNECTED. 0 means "no redirection" and
	// no DTMF listener is started.
	DataPort uint16

	// QueueCapacity bounds the Worker's event queue.
	QueueCapacity int

	// PlayStartTimeout is how long the Player SM waits for the backend's
	// "input-active" notification after acking a play-file command.
	PlayStartTimeout time.Duration

	LogLevel string
}

// Load loads configuration from command line flags and environment
// variables, in that precedence order (env overrides flags, matching the
// convention the teacher's signaling config uses).
func Load() *Config {
	cfg := &Config{
		QueueCapacity:    256,
		PlayStartTimeout: 2 * time.Second,
	}

	var dataPort int
	flag.IntVar(&dataPort, "data-port", 0, "local UDP port for the DTMF audio tap (0 disables it)")
	flag.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "bound on the worker's event queue")
	flag.DurationVar(&cfg.PlayStartTimeout, "play-start-timeout", cfg.PlayStartTimeout, "how long to wait for playback to start before failing")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")

	flag.Parse()

	cfg.DataPort = uint16(dataPort)

	if v := os.Getenv("DATA_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.DataPort = uint16(p)
		}
	}
	if v := os.Getenv("QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueCapacity = n
		}
	}
	if v := os.Getenv("PLAY_START_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PlayStartTimeout = d
		}
	}
	if v := os.Getenv("LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
