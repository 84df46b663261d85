// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Printer is one device in the fleet. URL is scheme+host(+port) with no
// trailing slash; Alias is an optional human-readable label for reports.
type Printer struct {
	URL   string `yaml:"url"`
	Alias string `yaml:"alias,omitempty"`
}

// LDAP configures the optional directory lookup used to enrich reports.
// The export pipeline itself never touches it.
type LDAP struct {
	URL      string `yaml:"url"`
	BindDN   string `yaml:"bind_dn"`
	BindPass string `yaml:"bind_pass"`
	BaseDN   string `yaml:"base_dn"`
}

// Config is the full runtime configuration. It is loaded once in cmd/ and
// handed to the core packages as a value; nothing in internal/ reads files
// or environment variables on its own.
type Config struct {
	Printers []Printer `yaml:"printers"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	ExportDir    string `yaml:"export_dir"`
	DatabasePath string `yaml:"database_path"`

	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RetryCount     int     `yaml:"retry_count"`
	PauseSeconds   float64 `yaml:"pause_seconds"`

	// UserNum and DeleteAfterSave are passed through to the user-count
	// download endpoint, matching the device's observed request shape.
	UserNum         int  `yaml:"usernum"`
	DeleteAfterSave bool `yaml:"delete_after_save"`

	ListenAddr string `yaml:"listen_addr"`

	LDAP *LDAP `yaml:"ldap,omitempty"`
}

// Load reads a yaml config file, applies environment credential overrides
// (MFP_USER / MFP_PASS) and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Zero retries is a valid setting, so -1 marks "not set in the file".
	cfg := Config{RetryCount: -1}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("MFP_USER"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("MFP_PASS"); v != "" {
		cfg.Password = v
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the tool's defaults. RetryCount
// treats negative as unset so an explicit zero survives.
func (c *Config) ApplyDefaults() {
	if c.Username == "" {
		c.Username = "admin"
	}
	if c.Password == "" {
		c.Password = "admin"
	}
	if c.ExportDir == "" {
		c.ExportDir = "./exports"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "./mfpusage.db"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RetryCount < 0 {
		c.RetryCount = 2
	}
	if c.PauseSeconds <= 0 {
		c.PauseSeconds = 0.5
	}
	if c.UserNum <= 0 {
		c.UserNum = 85
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8292"
	}
	for i := range c.Printers {
		c.Printers[i].URL = normalizeURL(c.Printers[i].URL)
	}
}

// Validate rejects configs the orchestrator cannot run with.
func (c *Config) Validate() error {
	if len(c.Printers) == 0 {
		return fmt.Errorf("config: no printers defined")
	}
	for _, p := range c.Printers {
		if p.URL == "" {
			return fmt.Errorf("config: printer with empty url")
		}
	}
	return nil
}

// Alias returns the configured alias for a printer URL, or the URL itself.
func (c *Config) Alias(url string) string {
	for _, p := range c.Printers {
		if p.URL == normalizeURL(url) && p.Alias != "" {
			return p.Alias
		}
	}
	return url
}

// ResolvePrinters interprets a --printer argument: empty or "all" selects
// every configured printer, otherwise a comma-separated list of aliases or
// addresses (scheme optional) is matched against the config, unknown
// addresses are passed through so ad-hoc devices can still be scraped.
func (c *Config) ResolvePrinters(spec string) []Printer {
	if spec == "" || strings.EqualFold(spec, "all") {
		return c.Printers
	}
	var out []Printer
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		asURL := normalizeURL(part)
		found := false
		for _, p := range c.Printers {
			if p.URL == asURL || (p.Alias != "" && strings.EqualFold(p.Alias, part)) {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			out = append(out, Printer{URL: asURL})
		}
	}
	if len(out) == 0 {
		return c.Printers
	}
	return out
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}
