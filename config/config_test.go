package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	if cfg.ScanInterval != 160 || cfg.ScanWindow != 80 {
		t.Errorf("Expected 160/80 slots, got %d/%d", cfg.ScanInterval, cfg.ScanWindow)
	}
	if cfg.Transport.Kind != TransportHCISocket {
		t.Errorf("Expected hci transport, got %v", cfg.Transport.Kind)
	}
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "coex.yaml", `
priority: high
scanInterval: 100
scanWindow: 50
netdev: wlp2s0
vendorOcf: 0x0123
transport:
  kind: h4uart
  path: /dev/ttyAMA0
  baud: 3000000
log:
  level: debug
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.Priority)
	assert.EqualValues(t, 100, cfg.ScanInterval)
	assert.EqualValues(t, 0x0123, cfg.VendorOCF)
	assert.Equal(t, "wlp2s0", cfg.Netdev)
	assert.Equal(t, TransportH4Uart, cfg.Transport.Kind)
	assert.EqualValues(t, 3000000, cfg.Transport.Baud)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched defaults survive
	assert.Equal(t, 3, cfg.Log.MaxBackups)
}

func TestLoadJSON(t *testing.T) {
	p := writeFile(t, "coex.json", `{"priority":"low","scanInterval":64,"scanWindow":32,
		"transport":{"kind":"h4socket","addr":"127.0.0.1:9000","timeout":"1s"}}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "low", cfg.Priority)
	assert.EqualValues(t, 32, cfg.ScanWindow)

	d, err := cfg.Transport.DialTimeout()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	p := writeFile(t, "bad.yaml", "priority: urgent\n")
	_, err = Load(p)
	assert.Equal(t, smartcoex.ErrInvalidArgument, errors.Cause(err))

	p = writeFile(t, "bad2.yaml", "transport:\n  kind: usb\n")
	_, err = Load(p)
	assert.Error(t, err)

	p = writeFile(t, "bad3.yaml", "transport:\n  kind: h4socket\n")
	_, err = Load(p)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COEX_PRIORITY", "high")
	t.Setenv("COEX_SCAN_INTERVAL", "0x40")
	t.Setenv("COEX_SCAN_WINDOW", "16")
	t.Setenv("COEX_NETDEV", "mlan0")
	t.Setenv("COEX_HCI_DEVICE", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.Priority)
	assert.EqualValues(t, 0x40, cfg.ScanInterval)
	assert.EqualValues(t, 16, cfg.ScanWindow)
	assert.Equal(t, "mlan0", cfg.Netdev)
	assert.Equal(t, 1, cfg.Transport.Device)
}

func TestRequests(t *testing.T) {
	cfg := Default()
	cfg.Priority = "2"
	done := make(chan smartcoex.CommandComplete, 1)

	w, b, err := cfg.Requests(done)
	require.NoError(t, err)
	assert.Equal(t, smartcoex.InterfaceSTA, w.Interface)
	assert.Equal(t, smartcoex.PriorityHigh, b.Priority)
	assert.EqualValues(t, 160, b.ScanInterval)
	assert.NotNil(t, b.Done)
	require.NoError(t, smartcoex.Validate(w, b))

	cfg.Interface = "ap"
	_, _, err = cfg.Requests(done)
	assert.Equal(t, smartcoex.ErrInvalidArgument, errors.Cause(err))
}

func TestLoadExampleProfile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "examples", "coex.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.Priority)
	assert.EqualValues(t, 160, cfg.ScanInterval)
	assert.EqualValues(t, 48, cfg.ScanWindow)
	assert.Equal(t, TransportHCISocket, cfg.Transport.Kind)
	assert.Equal(t, "/var/log/coexctl.log", cfg.Log.File)
}

func TestLoadHomeRelative(t *testing.T) {
	homedir.DisableCache = true
	defer func() { homedir.DisableCache = false }()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coex.yaml"), []byte("priority: low\n"), 0644))

	cfg, err := Load("~/coex.yaml")
	require.NoError(t, err)
	assert.Equal(t, "low", cfg.Priority)
}

func TestEnvOverridesInvalid(t *testing.T) {
	tests := []struct {
		name, value string
	}{
		{"COEX_SCAN_INTERVAL", "65636"},
		{"COEX_SCAN_INTERVAL", "often"},
		{"COEX_SCAN_WINDOW", "-1"},
		{"COEX_HCI_DEVICE", "hci0"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			_, err := Load("")
			assert.Equal(t, smartcoex.ErrInvalidArgument, errors.Cause(err))
		})
	}
}
