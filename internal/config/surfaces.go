package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SurfaceEntry is one surface to open at startup.
type SurfaceEntry struct {
	URL string `yaml:"url"`
}

// StartupSurfaces is the YAML file listing surfaces opened at startup.
type StartupSurfaces struct {
	Surfaces []SurfaceEntry `yaml:"surfaces"`
	// Active is the 1-based position of the surface to activate last.
	Active int `yaml:"active,omitempty"`
}

// LoadStartupSurfaces reads and validates the startup file. A missing
// file yields an os.ErrNotExist-wrapped error that callers skip.
func LoadStartupSurfaces(path string) (*StartupSurfaces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("surfaces config: %w", err)
	}
	var cfg StartupSurfaces
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("surfaces config: %w", err)
	}
	for i, s := range cfg.Surfaces {
		if s.URL == "" {
			return nil, fmt.Errorf("surfaces config: surfaces[%d] missing url", i)
		}
	}
	if cfg.Active < 0 || cfg.Active > len(cfg.Surfaces) {
		return nil, fmt.Errorf("surfaces config: active=%d out of range", cfg.Active)
	}
	return &cfg, nil
}
