// Package config loads the dbviewer YAML settings file and applies
// environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbviewer/internal/diagram"
)

// Config holds all application configuration.
type Config struct {
	Theme       string            `yaml:"theme"`
	Results     ResultsConfig     `yaml:"results"`
	Diagram     DiagramConfig     `yaml:"diagram"`
	Audit       AuditConfig       `yaml:"audit"`
	Server      ServerConfig      `yaml:"server"`
	Connections []SavedConnection `yaml:"connections"`
}

// ResultsConfig holds result display settings.
type ResultsConfig struct {
	RowLimit       int `yaml:"row_limit"`
	MaxColumnWidth int `yaml:"max_column_width"`
}

// DiagramConfig holds the diagram geometry, colours and optional pinned
// table positions.
type DiagramConfig struct {
	diagram.GridLayout `yaml:",inline"`
	diagram.Options    `yaml:",inline"`
	Style              diagram.Style            `yaml:"style"`
	Positions          map[string]diagram.Point `yaml:"positions,omitempty"`
}

// Layout returns the layout policy the settings describe: pinned positions
// when any are configured, with the grid for everything else.
func (d DiagramConfig) Layout() diagram.LayoutPolicy {
	if len(d.Positions) == 0 {
		return d.GridLayout
	}
	return diagram.FixedLayout{Positions: d.Positions, Fallback: d.GridLayout}
}

// AuditConfig controls the JSON-lines audit log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// ServerConfig controls the HTTP bridge.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// SavedConnection holds parameters for a saved database connection.
type SavedConnection struct {
	Name     string `yaml:"name"`
	Adapter  string `yaml:"adapter"`
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	File     string `yaml:"file,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Theme: "default",
		Results: ResultsConfig{
			RowLimit:       100,
			MaxColumnWidth: 50,
		},
		Diagram: DiagramConfig{
			GridLayout: diagram.DefaultGrid(),
			Options:    diagram.DefaultOptions(),
			Style:      diagram.DefaultStyle(),
		},
		Audit: AuditConfig{
			MaxSizeMB: 10,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8642",
		},
	}
}

// ConfigDir returns the dbviewer configuration directory, typically
// ~/.config/dbviewer/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "dbviewer"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads ConfigDir()/config.yaml, then applies a .env file in the
// working directory (if any) and the DBVIEWER_* environment variables.
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile exports the variables of a dotenv file. Variables already set
// in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Environment variables that override the file.
const (
	EnvTheme      = "DBVIEWER_THEME"
	EnvRowLimit   = "DBVIEWER_ROW_LIMIT"
	EnvServerAddr = "DBVIEWER_SERVER_ADDR"
	EnvAudit      = "DBVIEWER_AUDIT"
)

// ApplyEnv overrides settings from environment variables read through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTheme); ok && v != "" {
		c.Theme = v
	}
	if v, ok := lookup(EnvRowLimit); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return fmt.Errorf("%s: invalid row limit %q", EnvRowLimit, v)
		}
		c.Results.RowLimit = n
	}
	if v, ok := lookup(EnvServerAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvAudit); ok && v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAudit, err)
		}
		c.Audit.Enabled = on
	}
	return nil
}

// AuditPath returns the configured audit file, or ConfigDir()/audit.jsonl.
func (c *Config) AuditPath() (string, error) {
	if c.Audit.Path != "" {
		return c.Audit.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.jsonl"), nil
}

// Connection finds a saved connection by name.
func (c *Config) Connection(name string) (SavedConnection, bool) {
	for _, sc := range c.Connections {
		if sc.Name == name {
			return sc, true
		}
	}
	return SavedConnection{}, false
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to ConfigDir()/config.yaml.
func (c *Config) SaveDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return c.Save(filepath.Join(dir, "config.yaml"))
}

// BuildDSN constructs a connection string from the individual fields of a
// SavedConnection. If DSN is already set, it is returned as-is. For
// file-based adapters (sqlite, duckdb) it returns the File field. For
// network adapters it builds "user:password@host:port/database".
func (sc *SavedConnection) BuildDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}

	adapter := strings.ToLower(sc.Adapter)
	if adapter == "sqlite" || adapter == "duckdb" {
		return sc.File
	}

	var b strings.Builder

	if sc.User != "" {
		b.WriteString(sc.User)
		if sc.Password != "" {
			b.WriteByte(':')
			b.WriteString(sc.Password)
		}
		b.WriteByte('@')
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	b.WriteString(host)

	if sc.Port > 0 {
		fmt.Fprintf(&b, ":%d", sc.Port)
	}

	if sc.Database != "" {
		b.WriteByte('/')
		b.WriteString(sc.Database)
	}

	return b.String()
}

// DisplayString returns a human-readable representation of the connection,
// formatted as "adapter://host:port/database" for network adapters or
// "adapter://file" for file-based adapters.
func (sc *SavedConnection) DisplayString() string {
	adapter := strings.ToLower(sc.Adapter)
	if adapter == "sqlite" || adapter == "duckdb" {
		file := sc.File
		if file == "" {
			file = sc.DSN
		}
		return fmt.Sprintf("%s://%s", sc.Adapter, file)
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}

	var location string
	if sc.Port > 0 {
		location = fmt.Sprintf("%s:%d", host, sc.Port)
	} else {
		location = host
	}

	db := sc.Database
	if db != "" {
		return fmt.Sprintf("%s://%s/%s", sc.Adapter, location, db)
	}
	return fmt.Sprintf("%s://%s", sc.Adapter, location)
}
