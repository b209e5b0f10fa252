package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config models panel.yml.
type Config struct {
	Panel struct {
		ID    string `yaml:"id"`
		Path  string `yaml:"path"`
		Brand string `yaml:"brand"`
	} `yaml:"panel"`
	Locales struct {
		Default   string   `yaml:"default"`
		Supported []string `yaml:"supported"`
	} `yaml:"locales"`
	Database struct {
		Workspace string `yaml:"workspace"`
	} `yaml:"database"`
	List struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"list"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig posts audit events to URL. An empty Events list matches
// every event type.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Active reports whether the hook should receive deliveries.
func (w WebhookConfig) Active() bool {
	if w.Enabled != nil && !*w.Enabled {
		return false
	}
	return strings.TrimSpace(w.URL) != ""
}

const FileName = "panel.yml"

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with panel init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Panel.ID == "" {
		return fmt.Errorf("config.panel.id is required")
	}
	if !strings.HasPrefix(c.Panel.Path, "/") {
		return fmt.Errorf("config.panel.path must start with /")
	}
	if len(c.Panel.Path) > 1 && strings.HasSuffix(c.Panel.Path, "/") {
		return fmt.Errorf("config.panel.path must not end with /")
	}
	if c.Locales.Default == "" {
		return fmt.Errorf("config.locales.default is required")
	}
	seen := map[string]bool{}
	for _, loc := range c.Locales.Supported {
		if _, err := language.Parse(loc); err != nil {
			return fmt.Errorf("config.locales.supported has invalid locale %q", loc)
		}
		if seen[loc] {
			return fmt.Errorf("config.locales.supported lists %s twice", loc)
		}
		seen[loc] = true
	}
	if len(seen) > 0 && !seen[c.Locales.Default] {
		return fmt.Errorf("config.locales.default %s is not in config.locales.supported", c.Locales.Default)
	}
	if c.List.PageSize < 0 || c.List.PageSize > 500 {
		return fmt.Errorf("config.list.page_size must be between 0 and 500")
	}
	for i, hook := range c.Webhooks {
		if hook.URL != "" && !strings.HasPrefix(hook.URL, "http://") && !strings.HasPrefix(hook.URL, "https://") {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// PageSize returns the configured index page size, 25 when unset.
func (c *Config) PageSize() int {
	if c.List.PageSize == 0 {
		return 25
	}
	return c.List.PageSize
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(panelID string) string {
	return fmt.Sprintf(defaultTemplate, panelID)
}

// Default returns the default Config.
func Default() *Config {
	cfg, err := FromYAML([]byte(GenerateDefault("admin")))
	if err != nil {
		panic(err)
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `panel:
  id: %s
  path: /admin
  brand: Panelkit

locales:
  default: en
  supported: [en, pt-BR]

database:
  workspace: .

list:
  page_size: 25
`
