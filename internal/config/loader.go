package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the server configuration.
// Search order: customPath -> ./configs/netpong.yaml -> embedded default
func Load(customPath string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try local configs directory
	if data, err := os.ReadFile("configs/netpong.yaml"); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err == nil {
			return cfg, nil
		}
	}

	// Use embedded default YAML
	if err := yaml.Unmarshal(defaultServerYAML, &cfg); err != nil {
		return DefaultServerConfig(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}
