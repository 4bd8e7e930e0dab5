// Package config manages CLI profiles stored in the user's home directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile holds the endpoints and credentials for one deployment.
type Profile struct {
	// WebhookURL is the webhook service base URL (for seeding deliveries).
	WebhookURL string `yaml:"webhook_url"`

	// AdminURL is the operator API base URL.
	AdminURL string `yaml:"admin_url"`

	// AdminToken authenticates operator API calls.
	AdminToken string `yaml:"admin_token"`

	// AdminSecret signs locally minted operator tokens.
	AdminSecret string `yaml:"admin_secret,omitempty"`

	// DatabaseURL connects straight to postgres for credential management.
	DatabaseURL string `yaml:"database_url,omitempty"`

	// MasterKey is the vault master key in hex, used by creds commands.
	MasterKey string `yaml:"master_key,omitempty"`
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
	}
}

func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfgFile = filepath.Join(home, ".paystream", "config.yaml")
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(home, ".paystream", "config.yaml")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}

// GetProfile returns the named profile, or the current one when name is
// empty.
func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found (run 'paystream profile set' first)", name)
	}
	return p, nil
}

// SetProfile creates or replaces a profile and saves the config.
func (c *Config) SetProfile(name string, p *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = p
	if c.CurrentProfile == "" {
		c.CurrentProfile = name
	}
	return c.Save()
}

// SaveAdminToken stores a freshly minted operator token on a profile.
func (c *Config) SaveAdminToken(name, token string) error {
	p, err := c.GetProfile(name)
	if err != nil {
		return err
	}
	p.AdminToken = token
	return c.Save()
}
