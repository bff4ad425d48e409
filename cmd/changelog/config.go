package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// cliConfig is ~/.changelog/config.yaml. Files written before profiles
// existed carry url and api_key at the top level; they are still read and
// act as defaults under every profile.
type cliConfig struct {
	URL           string                   `yaml:"url,omitempty"`
	APIKey        string                   `yaml:"api_key,omitempty"`
	Profiles      map[string]profileConfig `yaml:"profiles,omitempty"`
	ActiveProfile string                   `yaml:"active_profile,omitempty"`
}

type profileConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".changelog", "config.yaml"), nil
}

// loadConfig reads the config file. The path is returned even when reading
// fails so callers can report it.
func loadConfig() (string, *cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}

	var cfg cliConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return path, nil, err
	}

	return path, &cfg, nil
}

// profileName picks the profile to use: --profile, then CHANGELOG_PROFILE,
// then the file's active profile, then "default".
func profileName(cfg *cliConfig) string {
	switch {
	case flagProfile != "":
		return flagProfile
	case os.Getenv("CHANGELOG_PROFILE") != "":
		return os.Getenv("CHANGELOG_PROFILE")
	case cfg != nil && cfg.ActiveProfile != "":
		return cfg.ActiveProfile
	}
	return "default"
}

// settings returns the selected profile overlaid on the flat values.
func (c *cliConfig) settings(profile string) profileConfig {
	s := profileConfig{URL: c.URL, APIKey: c.APIKey}
	if p, ok := c.Profiles[profile]; ok {
		if p.URL != "" {
			s.URL = p.URL
		}
		if p.APIKey != "" {
			s.APIKey = p.APIKey
		}
	}
	return s
}

// resolveSettings applies flags, then CHANGELOG_URL and CHANGELOG_TOKEN,
// then cfg, without touching the global flags. cfg may be nil.
func resolveSettings(cfg *cliConfig) (url, apiKey string) {
	url, apiKey = flagURL, flagKey

	if url == defaultURL {
		if v := os.Getenv("CHANGELOG_URL"); v != "" {
			url = v
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHANGELOG_TOKEN")
	}

	if cfg != nil {
		s := cfg.settings(profileName(cfg))
		if url == defaultURL && s.URL != "" {
			url = s.URL
		}
		if apiKey == "" {
			apiKey = s.APIKey
		}
	}

	return url, apiKey
}

// resolveConfig fills flagURL and flagKey for client commands. A missing or
// unreadable config file is ignored.
func resolveConfig() {
	_, cfg, _ := loadConfig()
	flagURL, flagKey = resolveSettings(cfg)
}

// writeConfig stores the profile in the config file, keeping any other
// profiles already there, and makes it the active one.
func writeConfig(url, apiKey, profile string) (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		cfg = &cliConfig{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]profileConfig)
	}

	cfg.Profiles[profile] = profileConfig{URL: url, APIKey: apiKey}
	cfg.ActiveProfile = profile

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}
