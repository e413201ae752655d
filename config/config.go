package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jt809-proxy/jt809"
)

// Config drives jt809-logger. Frames come from Remote (host:port) or, when
// Replay is set, from a capture file.
type Config struct {
	Remote          string        `yaml:"remote"`
	Replay          string        `yaml:"replay"`
	Version         string        `yaml:"version"`
	RequireChecksum bool          `yaml:"require_checksum"`
	Output          OutputConfig  `yaml:"output"`
	Metrics         MetricsConfig `yaml:"metrics"`

	ProtocolVersion jt809.Version `yaml:"-"`
}

type OutputConfig struct {
	Kind string `yaml:"kind"`
	Dir  string `yaml:"dir"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Remote == "" && cfg.Replay == "" {
		return Config{}, fmt.Errorf("one of remote or replay is required")
	}
	if cfg.Remote != "" && cfg.Replay != "" {
		return Config{}, fmt.Errorf("remote and replay cannot both be set")
	}

	v, err := jt809.ParseVersion(cfg.Version)
	if err != nil {
		return Config{}, fmt.Errorf("version: %w", err)
	}
	cfg.ProtocolVersion = v

	if cfg.Output.Kind == "" {
		cfg.Output.Kind = "sqlite"
	}
	if cfg.Output.Kind != "sqlite" && cfg.Output.Kind != "csv" {
		return Config{}, fmt.Errorf("output.kind must be sqlite or csv, got %q", cfg.Output.Kind)
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9796"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return cfg, nil
}
