package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally .env),
// then merges an optional YAML file. Environment values win over YAML.
func Load() (Config, error) {
	// Use Overload so .env values override existing OS environment
	// variables; local configuration deterministically controls runtime
	// behavior in development unless explicitly changed.
	_ = godotenv.Overload()

	cfg := Config{}
	if err := loadYAML(&cfg); err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(os.Getenv("LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_ENCODING")); v != "" {
		cfg.DefaultEncoding = v
	}
	if v := strings.TrimSpace(os.Getenv("MAX_FILE_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_FILE_BYTES must be an integer: %w", err)
		}
		cfg.MaxFileBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
		cfg.Obs.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVICE_VERSION")); v != "" {
		cfg.Obs.ServiceVersion = v
	}
	if v := strings.TrimSpace(os.Getenv("ENVIRONMENT")); v != "" {
		cfg.Obs.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Obs.OTLP = v
	}

	// Defaults after the merge.
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DefaultEncoding == "" {
		cfg.DefaultEncoding = "utf-8"
	}
	if cfg.MaxFileBytes < 0 {
		return Config{}, fmt.Errorf("maxFileBytes must be >= 0, got %d", cfg.MaxFileBytes)
	}
	if cfg.Obs.ServiceName == "" {
		cfg.Obs.ServiceName = "textedit"
	}
	if cfg.Obs.Environment == "" {
		cfg.Obs.Environment = "dev"
	}
	return cfg, nil
}

// loadYAML merges an optional config file. The path can be set with
// TEXTEDIT_CONFIG; otherwise config.yaml / config.yml in the working
// directory are tried. A missing file is not an error.
func loadYAML(cfg *Config) error {
	var paths []string
	if p := strings.TrimSpace(os.Getenv("TEXTEDIT_CONFIG")); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, "config.yaml", "config.yml")
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		return nil
	}
	return nil
}
