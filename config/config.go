// Package config loads tunables for fbnet's TCP/UDP server skeletons from a
// TOML file, so deployments can override constructor defaults without
// recompiling. The library never reads a config file implicitly; callers
// opt in with Load.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Duration decodes a TOML string like "5s" or "250ms" into a time.Duration;
// BurntSushi/toml has no native duration type, so fields that need one use
// this instead and are unwrapped with Duration.Std in ApplyConfig.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig holds the tunables spec.md §4.11/§4.12 name as constructor
// parameters. Zero values mean "use the component's built-in default".
type ServerConfig struct {
	MaxThreads        int      `toml:"max_threads"`
	MaxQueued         int      `toml:"max_queued"`
	ReadBufferCap     int      `toml:"read_buffer_cap"`
	PacketBufferSize  int      `toml:"packet_buffer_size"`
	ConnectionTimeout Duration `toml:"connection_timeout"`
	IdleTimeout       Duration `toml:"idle_timeout"`
	PacketTimeout     Duration `toml:"packet_timeout"`
	TickerInterval    Duration `toml:"ticker_interval"`
	LockOSThread      bool     `toml:"lock_os_thread"`
	ReusePort         bool     `toml:"reuse_port"`
}

// Load parses a TOML file at path into a ServerConfig.
func Load(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode parses TOML text directly, e.g. for tests or embedded defaults.
func Decode(text string) (*ServerConfig, error) {
	var cfg ServerConfig
	if _, err := toml.Decode(text, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
