// Package config loads addressbook accounts from a YAML file.
//
// A file holds named accounts, each backed either by a CardDAV server or by
// a local vdir directory:
//
//	default: personal
//	accounts:
//	  personal:
//	    backend: carddav
//	    carddav:
//	      host: dav.example.com
//	      tls: strict
//	      home-uri: /addressbooks/user/
//	      username: user
//	      password-command: pass show dav
//	  local:
//	    backend: vdir
//	    vdir:
//	      home-dir: ~/.contacts
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emersion/go-addressbook/httpflow"
)

// Backend is the kind of storage of an account.
type Backend string

const (
	BackendCardDAV Backend = "carddav"
	BackendVdir    Backend = "vdir"
)

// TLSMode selects how CardDAV connections are secured.
type TLSMode string

const (
	// TLSNone uses plain TCP.
	TLSNone TLSMode = "none"
	// TLSSystem uses TLS 1.2 or later with the platform verifier.
	TLSSystem TLSMode = "system"
	// TLSStrict only accepts TLS 1.3.
	TLSStrict TLSMode = "strict"
)

// Config is the content of a configuration file.
type Config struct {
	// Default is the name of the account used when none is specified.
	Default  string              `yaml:"default"`
	Accounts map[string]*Account `yaml:"accounts"`
}

// Account describes where the addressbooks of an account are stored.
type Account struct {
	Backend Backend        `yaml:"backend"`
	CardDAV *CardDAVConfig `yaml:"carddav,omitempty"`
	Vdir    *VdirConfig    `yaml:"vdir,omitempty"`
}

// CardDAVConfig configures a CardDAV account.
type CardDAVConfig struct {
	Host string `yaml:"host"`
	// Port defaults to 443, or 80 without TLS.
	Port int `yaml:"port,omitempty"`
	// TLS defaults to TLSSystem.
	TLS TLSMode `yaml:"tls,omitempty"`
	// HTTPVersion is "1.0" or "1.1", the default.
	HTTPVersion string `yaml:"http-version,omitempty"`
	// HomeURI is the addressbook home set. It is discovered when empty.
	HomeURI string `yaml:"home-uri,omitempty"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	// PasswordCommand is run with sh -c, its first output line is the
	// password.
	PasswordCommand string `yaml:"password-command,omitempty"`
}

// VdirConfig configures a vdir account.
type VdirConfig struct {
	HomeDir string `yaml:"home-dir"`
}

// DefaultPath returns the configuration file path: $ADDRESSBOOK_CONFIG if
// set, the user configuration directory otherwise.
func DefaultPath() (string, error) {
	if p := os.Getenv("ADDRESSBOOK_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(dir, "addressbook", "config.yaml"), nil
}

// LoadFile loads and validates a configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %v: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandVariables() {
	for _, account := range c.Accounts {
		if account != nil && account.Vdir != nil {
			account.Vdir.HomeDir = expandPath(account.Vdir.HomeDir)
		}
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandPath expands a leading ~ and ${VAR} or ${VAR:-default} patterns.
func expandPath(s string) string {
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = home + s[1:]
		}
	}
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("no account defined"))
	}
	if c.Default != "" {
		if _, ok := c.Accounts[c.Default]; !ok {
			errs = append(errs, fmt.Errorf("default account %q is not defined", c.Default))
		}
	}

	for _, name := range c.AccountNames() {
		if err := c.Accounts[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("account %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (a *Account) validate() error {
	if a == nil {
		return errors.New("empty account")
	}
	switch a.Backend {
	case BackendCardDAV:
		if a.CardDAV == nil {
			return errors.New("missing carddav section")
		}
		return a.CardDAV.validate()
	case BackendVdir:
		if a.Vdir == nil {
			return errors.New("missing vdir section")
		}
		if !filepath.IsAbs(a.Vdir.HomeDir) {
			return fmt.Errorf("vdir home-dir must be an absolute path, got %q", a.Vdir.HomeDir)
		}
		return nil
	default:
		return fmt.Errorf("invalid backend %q", a.Backend)
	}
}

func (c *CardDAVConfig) validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("carddav host is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid carddav port %d", c.Port))
	}
	switch c.TLS {
	case "", TLSNone, TLSSystem, TLSStrict:
	default:
		errs = append(errs, fmt.Errorf("invalid tls mode %q", c.TLS))
	}
	if _, err := httpflow.ParseVersion(c.HTTPVersion); err != nil {
		errs = append(errs, err)
	}
	if c.Password != "" && c.PasswordCommand != "" {
		errs = append(errs, errors.New("password and password-command are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// AccountNames returns the sorted account names.
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for name := range c.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Account returns the account called name. An empty name selects the
// default account, or the only one if there is no default.
func (c *Config) Account(name string) (string, *Account, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		if len(c.Accounts) != 1 {
			return "", nil, errors.New("config: no default account, please specify one")
		}
		name = c.AccountNames()[0]
	}
	account, ok := c.Accounts[name]
	if !ok {
		return "", nil, fmt.Errorf("config: account %q not found", name)
	}
	return name, account, nil
}
