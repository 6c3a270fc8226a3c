package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

const TemplateFile = "config.yaml"

func GenerateTemplateConfig(writeToFile bool) (Config, error) {
	cfg := Config{
		RedirectURL: "http://127.0.0.1/blocked.html",
		RiakBucket:  "blacklist",
		RiakHost:    "127.0.0.1",
		RiakPort:    DefaultRiakPort,

		LogLevel: DefaultLogLevel,

		Lookup: LookupConfig{
			ConnectTimeout:  DefaultConnectTimeout,
			Timeout:         DefaultLookupTimeout,
			UserAgent:       DefaultUserAgent,
			BreakerFailures: DefaultBreakerFailures,
			BreakerTimeout:  DefaultBreakerTimeout,
		},
	}

	if writeToFile {
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to marshal template config to YAML: %w", err)
		}
		if err := os.WriteFile(TemplateFile, data, 0644); err != nil {
			return Config{}, fmt.Errorf("failed to write template config to file: %w", err)
		}
	}
	return cfg, nil
}
