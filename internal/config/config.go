// Package config loads the source and deployment configuration for a run.
// These structs are decoupled from Viper so the orchestrator and scheduler
// stay testable without global state.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Config is the static per-run configuration: every configured source plus
// the deployment list the scheduler partitions.
type Config struct {
	Sources     []fetch.SourceConfig
	Deployments []fetch.Deployment
}

// Load reads sources and deployments from Viper and injects per-source
// credentials from the environment.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.UnmarshalKey("sources", &cfg.Sources); err != nil {
		return Config{}, fmt.Errorf("unmarshal sources: %w", err)
	}
	if err := v.UnmarshalKey("deployments", &cfg.Deployments); err != nil {
		return Config{}, fmt.Errorf("unmarshal deployments: %w", err)
	}
	if err := validateSources(cfg.Sources); err != nil {
		return Config{}, err
	}
	InjectCredentials(cfg.Sources)
	return cfg, nil
}

func validateSources(sources []fetch.SourceConfig) error {
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if s.Name == "" {
			return fmt.Errorf("source with empty name")
		}
		if s.Adapter == "" {
			return fmt.Errorf("source %q names no adapter", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// InjectCredentials fills each source's empty Credentials field from the
// environment variable keyed by the upper-cased, underscored source name
// (e.g. source "air-now" reads AIR_NOW).
func InjectCredentials(sources []fetch.SourceConfig) {
	for i := range sources {
		if sources[i].Credentials != "" {
			continue
		}
		if v := os.Getenv(CredentialEnvKey(sources[i].Name)); v != "" {
			sources[i].Credentials = v
		}
	}
}

// CredentialEnvKey maps a source name to its credential environment variable.
func CredentialEnvKey(name string) string {
	key := strings.ToUpper(name)
	replacer := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return replacer.Replace(key)
}
