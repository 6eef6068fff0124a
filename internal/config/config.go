// Package config handles loading and parsing the YAML configuration file
// and provides structured access to application settings: store cluster
// nodes, flush and timeout intervals, log file routing, and the query API
// listen address.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML
// file.
type Config struct {
	// Origin identifies the chat network this process records, stamped
	// onto every event.
	Origin string `yaml:"origin"`

	// Channels is the list of channels that get their own rotating log
	// file; messages for other channels go to the system file.
	Channels []string `yaml:"channels"`

	// LogDir is the directory per-channel and system log files live in.
	LogDir string `yaml:"log-dir"`

	// SystemRotateMB is the rotate size of the system log file, megabytes.
	SystemRotateMB int `yaml:"system-rotate-mb"`

	// FlushInterval is how often buffered sinks drain to their wrapped
	// sink. Zero means 5s.
	FlushInterval time.Duration `yaml:"flush-interval"`

	// Store configures the document store cluster.
	Store StoreConfig `yaml:"store"`

	// Listen is the address the query API binds, e.g. ":8080". Empty
	// disables the API server.
	Listen string `yaml:"listen"`

	// LogLevel selects the process log level (debug, info, warn, error,
	// quiet).
	LogLevel string `yaml:"log-level"`
}

// StoreConfig configures the document store client and the index events
// are recorded into.
type StoreConfig struct {
	// Nodes lists the cluster node addresses.
	Nodes []string `yaml:"nodes"`

	// Timeout is the per-attempt transport timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts bounds how many nodes one request may try. <= 0 tries
	// every node.
	MaxAttempts int `yaml:"max-attempts"`

	// Index is the index events are recorded into.
	Index string `yaml:"index"`

	// Doctype is the document type events are recorded as.
	Doctype string `yaml:"doctype"`
}

// Load reads and parses the YAML configuration at path, applying defaults
// for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Origin == "" {
		c.Origin = "chat"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.SystemRotateMB <= 0 {
		c.SystemRotateMB = 1
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = 10 * time.Second
	}
	if c.Store.Index == "" {
		c.Store.Index = "chatlines"
	}
	if c.Store.Doctype == "" {
		c.Store.Doctype = "chatline"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
