package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	e2eechat "github.com/e2eechat/client-go"
)

// Settings is the client configuration read from the config file and the
// environment.
type Settings struct {
	BaseURL     string  `yaml:"base_url"`
	Token       string  `yaml:"token"`
	DataDir     string  `yaml:"data_dir"`
	LogLevel    string  `yaml:"log_level"`
	LogFormat   string  `yaml:"log_format"`
	KDF         string  `yaml:"kdf"`
	Placeholder string  `yaml:"placeholder"`
	RateLimit   float64 `yaml:"rate_limit"`
}

func defaultSettings() Settings {
	return Settings{
		LogLevel:  "warn",
		LogFormat: "text",
		KDF:       "moderate",
	}
}

// loadSettings applies, in increasing precedence, the defaults, the YAML
// file at path (or $E2EE_CONFIG), and E2EE_* variables from getenv.
func loadSettings(path string, getenv func(string) string) (Settings, error) {
	s := defaultSettings()

	if path == "" {
		path = getenv("E2EE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrides := []struct {
		name string
		dst  *string
	}{
		{"E2EE_BASE_URL", &s.BaseURL},
		{"E2EE_TOKEN", &s.Token},
		{"E2EE_DATA_DIR", &s.DataDir},
		{"E2EE_LOG_LEVEL", &s.LogLevel},
		{"E2EE_LOG_FORMAT", &s.LogFormat},
		{"E2EE_KDF", &s.KDF},
		{"E2EE_PLACEHOLDER", &s.Placeholder},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.name)); v != "" {
			*o.dst = v
		}
	}
	if v := strings.TrimSpace(getenv("E2EE_RATE_LIMIT")); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return s, fmt.Errorf("invalid E2EE_RATE_LIMIT %q", v)
		}
		s.RateLimit = n
	}

	if _, err := s.kdfParams(); err != nil {
		return s, err
	}
	if s.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return s, fmt.Errorf("no data_dir configured: %w", err)
		}
		s.DataDir = filepath.Join(dir, "e2eechat")
	}
	return s, nil
}

func (s Settings) kdfParams() (e2eechat.KDFParams, error) {
	switch strings.ToLower(s.KDF) {
	case "", "moderate":
		return e2eechat.ModerateKDF, nil
	case "interactive":
		return e2eechat.InteractiveKDF, nil
	default:
		return e2eechat.KDFParams{}, fmt.Errorf("unknown kdf %q (want moderate or interactive)", s.KDF)
	}
}

// envWithDotenv returns a lookup that prefers getenv and falls back to the
// variables in the dotenv file at path. A missing file is not an error.
func envWithDotenv(path string, getenv func(string) string) (func(string) string, error) {
	if path == "" {
		return getenv, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return getenv, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return vars[key]
	}, nil
}
