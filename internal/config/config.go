package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr                = "0.0.0.0:8000"
	DefaultThumbSize           = 96
	DefaultThumbMaxSourceBytes = 16 << 20
)

// ErrInvalidRoot is returned by Validate when the shared root is missing or
// not a directory.
var ErrInvalidRoot = errors.New("shared root is not an existing directory")

// Config is read from a JSON or YAML file and overridden by flags.
type Config struct {
	// Root is the single directory shared for listing, upload and download.
	Root string `json:"root" yaml:"root"`

	// Addr is the listen address. Default: 0.0.0.0:8000 (all interfaces).
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// FollowSymlinks controls whether symlinks in Root are listed/served.
	// Default: false. If true, only symlinks which resolve to a regular file
	// still inside Root are followed.
	FollowSymlinks bool `json:"followSymlinks,omitempty" yaml:"followSymlinks,omitempty"`

	// MaxUploadBytes caps the size of one upload request body. 0 = unlimited.
	MaxUploadBytes int64 `json:"maxUploadBytes,omitempty" yaml:"maxUploadBytes,omitempty"`

	// MaxConnections caps concurrently accepted connections. 0 = unlimited.
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`

	// Thumbnails enables inline image previews on the listing page.
	// nil means enabled.
	Thumbnails *bool `json:"thumbnails,omitempty" yaml:"thumbnails,omitempty"`

	// ThumbSize is the longest edge of a thumbnail in pixels.
	ThumbSize int `json:"thumbSize,omitempty" yaml:"thumbSize,omitempty"`

	// ThumbMaxSourceBytes skips thumbnails for images larger than this.
	ThumbMaxSourceBytes int64 `json:"thumbMaxSourceBytes,omitempty" yaml:"thumbMaxSourceBytes,omitempty"`

	// OpenBrowser opens the session URL locally once the server is running.
	OpenBrowser bool `json:"openBrowser,omitempty" yaml:"openBrowser,omitempty"`

	// ShowQR prints a terminal QR code of the session URL. nil means enabled.
	ShowQR *bool `json:"showQR,omitempty" yaml:"showQR,omitempty"`
}

// Load reads a config file. ".yaml"/".yml" files are parsed as YAML,
// everything else as JSON.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills zero values and makes Root absolute.
func (c *Config) ApplyDefaults() error {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if c.ThumbSize <= 0 {
		c.ThumbSize = DefaultThumbSize
	}
	if c.ThumbMaxSourceBytes <= 0 {
		c.ThumbMaxSourceBytes = DefaultThumbMaxSourceBytes
	}
	if c.Root != "" {
		abs, err := filepath.Abs(c.Root)
		if err != nil {
			return fmt.Errorf("abs root: %w", err)
		}
		c.Root = abs
	}
	return nil
}

// Validate checks the invariants required before the server may start.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidRoot)
	}
	st, err := os.Stat(c.Root)
	if err != nil || !st.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidRoot, c.Root)
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
	}
	if c.MaxUploadBytes < 0 {
		return errors.New("maxUploadBytes must be >= 0")
	}
	if c.MaxConnections < 0 {
		return errors.New("maxConnections must be >= 0")
	}
	return nil
}

func (c Config) ThumbnailsEnabled() bool {
	return c.Thumbnails == nil || *c.Thumbnails
}

func (c Config) QREnabled() bool {
	return c.ShowQR == nil || *c.ShowQR
}
