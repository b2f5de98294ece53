package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/char5742/octopus/internal/transport"
)

// ErrInvalid は設定内容の検証エラー
var ErrInvalid = errors.New("invalid config")

// Config は設定ファイル全体を表す構造体
type Config struct {
	Network  NetworkConfig   `toml:"network"`
	Router   RouterConfig    `toml:"router"`
	Devices  []DeviceConfig  `toml:"devices"`
	Mappings []MappingConfig `toml:"mappings"`
	Clients  []ClientConfig  `toml:"clients"`
}

// NetworkConfig はマルチキャスト送受信の設定
type NetworkConfig struct {
	Group     string `toml:"group"`
	Port      int    `toml:"port"`
	Interface string `toml:"interface,omitempty"`
	TTL       int    `toml:"ttl"`
}

// RouterConfig はルーターの動作設定
type RouterConfig struct {
	RescanInterval time.Duration `toml:"rescan_interval"`
}

// DeviceConfig は監視対象デバイスの指定
type DeviceConfig struct {
	VendorID        string `toml:"vendor_id"`
	ProductID       string `toml:"product_id"`
	Name            string `toml:"name,omitempty"`
	CheckCapability string `toml:"check_capability,omitempty"`
}

// MappingConfig はコンボと出力列の対応
type MappingConfig struct {
	Combo          []string `toml:"combo"`
	Output         []string `toml:"output"`
	FilterLast     bool     `toml:"filter_last"`
	ReleasePressed bool     `toml:"release_pressed"`
	OnlyClient     *int     `toml:"only_client,omitempty"`
	OnlyDevice     *int     `toml:"only_device,omitempty"`
}

// ClientConfig は切り替え先クライアントの設定
type ClientConfig struct {
	Combo []string `toml:"combo"`
	Local bool     `toml:"local"`
	Key   string   `toml:"key,omitempty"`
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Group: transport.DefaultGroup,
			Port:  transport.DefaultPort,
			TTL:   transport.DefaultTTL,
		},
		Router: RouterConfig{
			RescanInterval: 3 * time.Second,
		},
	}
}

// ExampleConfig は -init で書き出すサンプル設定を返す
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Devices = []DeviceConfig{
		{VendorID: "0x046d", ProductID: "0xc52b", Name: "Logitech USB Receiver"},
	}
	cfg.Mappings = []MappingConfig{
		{
			Combo:      []string{"KEY_LEFTCTRL", "KEY_Q"},
			Output:     []string{"+KEY_ESC", "-KEY_ESC"},
			FilterLast: true,
		},
	}
	cfg.Clients = []ClientConfig{
		{Combo: []string{"KEY_LEFTCTRL", "KEY_LEFTALT", "KEY_1"}, Local: true},
		{Combo: []string{"KEY_LEFTCTRL", "KEY_LEFTALT", "KEY_2"}, Key: "change-me"},
	}
	return cfg
}

// GetDefaultConfigDir はユーザー設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "octopus"), nil
}

// DefaultConfigPath はデフォルトの設定ファイルパスを返す
func DefaultConfigPath() (string, error) {
	dir, err := GetDefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig は設定ファイルを読み込み検証する。ファイルが無い場合もエラー。
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	md, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: unknown keys: %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if _, err := config.Resolve(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
