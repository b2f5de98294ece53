package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/octopus/internal/keys"
	"github.com/char5742/octopus/internal/router"
)

const sample = `
[network]
group = "239.1.2.3"
port = 5000
ttl = 4

[router]
rescan_interval = "5s"

[[devices]]
vendor_id = "0x046d"
product_id = "c52b"

[[devices]]
vendor_id = "1234"
product_id = "0x0001"
name = "Mouse"
check_capability = "rel"

[[mappings]]
combo = ["KEY_LEFTCTRL", "Q"]
output = ["+KEY_ESC", "-KEY_ESC"]
filter_last = true

[[mappings]]
combo = ["WHEEL_UP", "LEFTMETA"]
output = ["+WHEEL_DOWN"]
release_pressed = true
only_client = 2
only_device = 1

[[clients]]
combo = ["KEY_LEFTCTRL", "KEY_LEFTALT", "KEY_1"]
local = true

[[clients]]
combo = ["KEY_LEFTCTRL", "KEY_LEFTALT", "KEY_2"]
key = "secret"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndResolve(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Router.RescanInterval)

	res, err := cfg.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "239.1.2.3", res.Network.Group)
	assert.Equal(t, 5000, res.Network.Port)
	assert.Equal(t, 4, res.Network.TTL)

	require.Len(t, res.Devices, 2)
	assert.Equal(t, uint16(0x046d), res.Devices[0].VendorID)
	assert.Equal(t, uint16(0xc52b), res.Devices[0].ProductID)
	assert.Equal(t, 1, res.Devices[1].Index)
	assert.Equal(t, "Mouse", res.Devices[1].Name)
	assert.Equal(t, "rel", res.Devices[1].CheckCapability)

	require.Len(t, res.Mappings, 2)
	m := res.Mappings[0]
	assert.True(t, m.Combo.Contains(keys.MustParse("KEY_Q")))
	assert.Equal(t, []router.Step{
		{Key: keys.MustParse("KEY_ESC"), Pressed: true},
		{Key: keys.MustParse("KEY_ESC"), Pressed: false},
	}, m.Output)
	assert.True(t, m.FilterLast)
	assert.Equal(t, router.Any, m.OnlyClient)
	assert.Equal(t, router.Any, m.OnlyDevice)

	w := res.Mappings[1]
	assert.True(t, w.Combo.Contains(keys.FromWheel(keys.WheelUp)))
	assert.True(t, w.ReleasePressed)
	assert.Equal(t, 2, w.OnlyClient)
	assert.Equal(t, 1, w.OnlyDevice)

	require.Len(t, res.Clients, 2)
	assert.Equal(t, 1, res.Clients[0].Index)
	assert.True(t, res.Clients[0].Local)
	assert.Equal(t, 2, res.Clients[1].Index)
	assert.Equal(t, []byte("secret"), res.Clients[1].Key)
	assert.True(t, res.HasLocalClient())
	assert.True(t, res.HasRemoteClient())
}

func TestDefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
[[devices]]
vendor_id = "1"
product_id = "2"
[[mappings]]
combo = ["KEY_A"]
output = ["+KEY_B", "-KEY_B"]
[[clients]]
combo = ["KEY_F1"]
local = true
`))
	require.NoError(t, err)
	res, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "239.255.77.88", res.Network.Group)
	assert.Equal(t, 4020, res.Network.Port)
	assert.Equal(t, 3*time.Second, res.RescanInterval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestResolveRejects(t *testing.T) {
	base := func() *Config {
		cfg := ExampleConfig()
		return cfg
	}
	one := 1
	nine := 9

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no devices", func(c *Config) { c.Devices = nil }},
		{"no mappings", func(c *Config) { c.Mappings = nil }},
		{"no clients", func(c *Config) { c.Clients = nil }},
		{"bad vendor", func(c *Config) { c.Devices[0].VendorID = "zz" }},
		{"missing product", func(c *Config) { c.Devices[0].ProductID = "" }},
		{"unknown key", func(c *Config) { c.Mappings[0].Combo = []string{"KEY_NOPE"} }},
		{"combo too long", func(c *Config) { c.Clients[0].Combo = []string{"A", "B", "C", "D", "E"} }},
		{"empty combo", func(c *Config) { c.Clients[0].Combo = nil }},
		{"output without polarity", func(c *Config) { c.Mappings[0].Output = []string{"KEY_ESC"} }},
		{"output too long", func(c *Config) {
			out := make([]string, router.MaxOutputSteps+1)
			for i := range out {
				out[i] = "+KEY_A"
			}
			c.Mappings[0].Output = out
		}},
		{"client scope out of range", func(c *Config) { c.Mappings[0].OnlyClient = &nine }},
		{"device scope out of range", func(c *Config) { c.Mappings[0].OnlyDevice = &one }},
		{"key on local client", func(c *Config) { c.Clients[0].Key = "x" }},
		{"bad group", func(c *Config) { c.Network.Group = "10.0.0.1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(cfg)
			_, err := cfg.Resolve()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, sample+"\n[extra]\nfoo = 1\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSaveAndLoadExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, SaveConfig(path, ExampleConfig()))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ExampleConfig().Clients, cfg.Clients)
	assert.Equal(t, 3*time.Second, cfg.Router.RescanInterval)
}
