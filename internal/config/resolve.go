package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/char5742/octopus/internal/device"
	"github.com/char5742/octopus/internal/keys"
	"github.com/char5742/octopus/internal/keystate"
	"github.com/char5742/octopus/internal/router"
	"github.com/char5742/octopus/internal/transport"
)

// Resolved は検証済みで実行時の型に変換された設定
type Resolved struct {
	Network        transport.Options
	RescanInterval time.Duration
	Devices        []device.Descriptor
	Mappings       []router.Mapping
	Clients        []router.Client
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func parseID(s string) (uint16, error) {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if raw == "" {
		return 0, fmt.Errorf("empty id")
	}
	v, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseCombo(names []string) (keystate.Set, error) {
	if len(names) == 0 {
		return keystate.Set{}, fmt.Errorf("combo is empty")
	}
	if len(names) > keystate.Capacity {
		return keystate.Set{}, fmt.Errorf("combo has %d keys, max %d", len(names), keystate.Capacity)
	}
	ks := make([]keys.Key, 0, len(names))
	for _, n := range names {
		k, err := keys.Parse(n)
		if err != nil {
			return keystate.Set{}, err
		}
		ks = append(ks, k)
	}
	return keystate.NewSet(ks...), nil
}

func parseOutput(specs []string) ([]router.Step, error) {
	if len(specs) > router.MaxOutputSteps {
		return nil, fmt.Errorf("output has %d steps, max %d", len(specs), router.MaxOutputSteps)
	}
	steps := make([]router.Step, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
			return nil, fmt.Errorf("output %q must start with '+' or '-'", s)
		}
		k, err := keys.Parse(s[1:])
		if err != nil {
			return nil, err
		}
		steps = append(steps, router.Step{Key: k, Pressed: s[0] == '+'})
	}
	return steps, nil
}

// Resolve は設定を検証し、ルーターとデバイス管理で使う型に変換する
func (c *Config) Resolve() (*Resolved, error) {
	if len(c.Devices) == 0 {
		return nil, invalid("no devices configured")
	}
	if len(c.Clients) == 0 {
		return nil, invalid("no clients configured")
	}
	if len(c.Mappings) == 0 {
		return nil, invalid("no mappings configured")
	}
	if len(c.Clients) > 255 {
		return nil, invalid("too many clients: %d", len(c.Clients))
	}

	res := &Resolved{
		Network: transport.Options{
			Group:     c.Network.Group,
			Port:      c.Network.Port,
			Interface: c.Network.Interface,
			TTL:       c.Network.TTL,
		},
		RescanInterval: c.Router.RescanInterval,
	}
	if _, err := res.Network.GroupAddr(); err != nil {
		return nil, invalid("network: %v", err)
	}
	if res.RescanInterval <= 0 {
		res.RescanInterval = router.DefaultRescanInterval
	}

	for i, d := range c.Devices {
		vendor, err := parseID(d.VendorID)
		if err != nil {
			return nil, invalid("devices[%d].vendor_id %q: %v", i, d.VendorID, err)
		}
		product, err := parseID(d.ProductID)
		if err != nil {
			return nil, invalid("devices[%d].product_id %q: %v", i, d.ProductID, err)
		}
		res.Devices = append(res.Devices, device.Descriptor{
			Index:           i,
			VendorID:        vendor,
			ProductID:       product,
			Name:            d.Name,
			CheckCapability: d.CheckCapability,
		})
	}

	// クライアント番号は1から
	for i, cl := range c.Clients {
		combo, err := parseCombo(cl.Combo)
		if err != nil {
			return nil, invalid("clients[%d].combo: %v", i, err)
		}
		client := router.Client{Index: i + 1, Combo: combo, Local: cl.Local}
		if cl.Key != "" {
			if cl.Local {
				return nil, invalid("clients[%d]: key is only valid for remote clients", i)
			}
			client.Key = []byte(cl.Key)
		}
		res.Clients = append(res.Clients, client)
	}

	for i, m := range c.Mappings {
		combo, err := parseCombo(m.Combo)
		if err != nil {
			return nil, invalid("mappings[%d].combo: %v", i, err)
		}
		out, err := parseOutput(m.Output)
		if err != nil {
			return nil, invalid("mappings[%d].output: %v", i, err)
		}
		mapping := router.Mapping{
			Combo:          combo,
			Output:         out,
			FilterLast:     m.FilterLast,
			ReleasePressed: m.ReleasePressed,
			OnlyClient:     router.Any,
			OnlyDevice:     router.Any,
		}
		if m.OnlyClient != nil {
			if *m.OnlyClient < 1 || *m.OnlyClient > len(c.Clients) {
				return nil, invalid("mappings[%d].only_client %d out of range", i, *m.OnlyClient)
			}
			mapping.OnlyClient = *m.OnlyClient
		}
		if m.OnlyDevice != nil {
			if *m.OnlyDevice < 0 || *m.OnlyDevice >= len(c.Devices) {
				return nil, invalid("mappings[%d].only_device %d out of range", i, *m.OnlyDevice)
			}
			mapping.OnlyDevice = *m.OnlyDevice
		}
		res.Mappings = append(res.Mappings, mapping)
	}
	return res, nil
}

// HasLocalClient はローカル出力が必要かどうかを返す
func (r *Resolved) HasLocalClient() bool {
	for _, c := range r.Clients {
		if c.Local {
			return true
		}
	}
	return false
}

// HasRemoteClient はネットワーク送信が必要かどうかを返す
func (r *Resolved) HasRemoteClient() bool {
	for _, c := range r.Clients {
		if !c.Local {
			return true
		}
	}
	return false
}
