// Package config loads coexctl profiles from YAML or JSON files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
	"gopkg.in/yaml.v2"
)

// Transport kinds.
const (
	TransportHCISocket = "hci"
	TransportH4Uart    = "h4uart"
	TransportH4Socket  = "h4socket"
)

// Config is a complete coexctl profile.
type Config struct {
	Interface    string          `yaml:"interface" json:"interface"`
	Netdev       string          `yaml:"netdev" json:"netdev"`
	Priority     string          `yaml:"priority" json:"priority"`
	ScanInterval uint16          `yaml:"scanInterval" json:"scanInterval"` // slots
	ScanWindow   uint16          `yaml:"scanWindow" json:"scanWindow"`     // slots
	VendorOCF    uint16          `yaml:"vendorOcf" json:"vendorOcf"`
	WaitComplete string          `yaml:"waitComplete" json:"waitComplete"`
	Transport    TransportConfig `yaml:"transport" json:"transport"`
	Log          LogConfig       `yaml:"log" json:"log"`
}

// TransportConfig selects how the Bluetooth controller is reached.
type TransportConfig struct {
	Kind    string `yaml:"kind" json:"kind"`
	Device  int    `yaml:"device" json:"device"`
	Path    string `yaml:"path" json:"path"`
	Baud    uint   `yaml:"baud" json:"baud"`
	Addr    string `yaml:"addr" json:"addr"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb" json:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
}

// Default returns the built-in profile: medium priority scanning every
// 100 ms for 50 ms on hci0 and wlan0.
func Default() *Config {
	return &Config{
		Interface:    smartcoex.InterfaceSTA.String(),
		Netdev:       "wlan0",
		Priority:     smartcoex.PriorityMedium.String(),
		ScanInterval: 160,
		ScanWindow:   80,
		VendorOCF:    smartcoex.OCFLEScanCoex,
		WaitComplete: "2s",
		Transport: TransportConfig{
			Kind:    TransportHCISocket,
			Device:  0,
			Baud:    1000000,
			Timeout: "5s",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads filename over the defaults, applies COEX_* environment
// overrides and validates the result. An empty filename skips the file; a
// leading ~ is the user's home directory.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		var err error
		if filename, err = homedir.Expand(filename); err != nil {
			return nil, err
		}
		if err := loadFromFile(cfg, filename); err != nil {
			return nil, errors.Wrapf(err, "can't load %v", filename)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return jsoniter.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("COEX_PRIORITY"); v != "" {
		cfg.Priority = v
	}
	if v := os.Getenv("COEX_NETDEV"); v != "" {
		cfg.Netdev = v
	}
	if err := envUint16("COEX_SCAN_INTERVAL", &cfg.ScanInterval); err != nil {
		return err
	}
	if err := envUint16("COEX_SCAN_WINDOW", &cfg.ScanWindow); err != nil {
		return err
	}
	if v := os.Getenv("COEX_HCI_DEVICE"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(smartcoex.ErrInvalidArgument, "COEX_HCI_DEVICE %q is not a device index", v)
		}
		cfg.Transport.Device = id
	}
	return nil
}

// envUint16 leaves dst alone when name is unset; a set value must parse.
func envUint16(name string, dst *uint16) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 0, 16)
	if err != nil {
		return errors.Wrapf(smartcoex.ErrInvalidArgument, "%s %q must be a number of slots up to 65535", name, v)
	}
	*dst = uint16(n)
	return nil
}

// Validate checks the profile. Scan timing is checked again by smartcoex.Validate.
func (c *Config) Validate() error {
	if _, err := c.WifiInterface(); err != nil {
		return err
	}
	if _, err := smartcoex.ParsePriority(c.Priority); err != nil {
		return err
	}
	if c.Netdev == "" {
		return fmt.Errorf("netdev must be set")
	}
	if c.VendorOCF > 0x03FF {
		return fmt.Errorf("invalid vendorOcf 0x%04x", c.VendorOCF)
	}
	if _, err := c.CompleteTimeout(); err != nil {
		return err
	}

	t := c.Transport
	switch t.Kind {
	case TransportHCISocket:
		if t.Device < -1 {
			return fmt.Errorf("invalid hci device %d", t.Device)
		}
	case TransportH4Uart:
		if t.Path == "" {
			return fmt.Errorf("transport %v needs a path", t.Kind)
		}
	case TransportH4Socket:
		if t.Addr == "" {
			return fmt.Errorf("transport %v needs an addr", t.Kind)
		}
		if _, err := t.DialTimeout(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid transport kind %q, must be one of: %v", t.Kind,
			[]string{TransportHCISocket, TransportH4Uart, TransportH4Socket})
	}

	return nil
}

// WifiInterface parses the interface name.
func (c *Config) WifiInterface() (smartcoex.WifiInterface, error) {
	switch strings.ToLower(c.Interface) {
	case "", "sta", "client":
		return smartcoex.InterfaceSTA, nil
	}
	return 0, errors.Wrapf(smartcoex.ErrInvalidArgument, "unknown interface %q", c.Interface)
}

// CompleteTimeout is how long to wait for the vendor command completion.
func (c *Config) CompleteTimeout() (time.Duration, error) {
	if c.WaitComplete == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.WaitComplete)
	return d, errors.Wrap(err, "invalid waitComplete")
}

// DialTimeout is the H4 socket dial and I/O timeout.
func (t TransportConfig) DialTimeout() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(t.Timeout)
	return d, errors.Wrap(err, "invalid transport timeout")
}

// Requests builds the smartcoex inputs described by the profile.
func (c *Config) Requests(done chan<- smartcoex.CommandComplete) (smartcoex.WifiConfig, smartcoex.BtConfig, error) {
	i, err := c.WifiInterface()
	if err != nil {
		return smartcoex.WifiConfig{}, smartcoex.BtConfig{}, err
	}
	p, err := smartcoex.ParsePriority(c.Priority)
	if err != nil {
		return smartcoex.WifiConfig{}, smartcoex.BtConfig{}, err
	}

	return smartcoex.WifiConfig{Interface: i}, smartcoex.BtConfig{
		Priority:     p,
		ScanInterval: c.ScanInterval,
		ScanWindow:   c.ScanWindow,
		Done:         done,
	}, nil
}
