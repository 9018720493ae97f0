package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk form of Config. Unset fields keep their
// defaults.
type fileConfig struct {
	Addr         string  `yaml:"addr" toml:"addr"`
	ReadTimeout  string  `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout string  `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout  string  `yaml:"idle_timeout" toml:"idle_timeout"`
	MarkLeft     *string `yaml:"mark_left" toml:"mark_left"`
	MarkRight    *string `yaml:"mark_right" toml:"mark_right"`

	MaxExpression  int      `yaml:"max_expression" toml:"max_expression"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file over
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	case ".toml":
		_, err = toml.Decode(string(b), &fc)
	default:
		return Config{}, fmt.Errorf("config %s: unknown format %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := fc.apply(DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg Config) (Config, error) {
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	durs := []struct {
		name string
		s    string
		d    *time.Duration
	}{
		{"read_timeout", fc.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", fc.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", fc.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durs {
		if d.s == "" {
			continue
		}
		v, err := time.ParseDuration(d.s)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", d.name, err)
		}
		if v < 0 {
			return cfg, fmt.Errorf("%s: negative duration %v", d.name, v)
		}
		*d.d = v
	}
	switch {
	case fc.MaxExpression < 0:
		return cfg, fmt.Errorf("max_expression: negative limit %d", fc.MaxExpression)
	case fc.MaxExpression > 0:
		cfg.MaxExpression = fc.MaxExpression
	}
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, fc.AllowedOrigins...)
	if fc.MarkLeft != nil {
		cfg.Marker.Left = *fc.MarkLeft
	}
	if fc.MarkRight != nil {
		cfg.Marker.Right = *fc.MarkRight
	}
	return cfg, nil
}
