// Package transport はマルチキャストUDPによるパケットの送受信を行う。
package transport

import (
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultGroup = "239.255.77.88"
	DefaultPort  = 4020
	DefaultTTL   = 2
)

// Options はマルチキャストの宛先と使用インターフェース
type Options struct {
	Group     string
	Port      int
	Interface string // IPアドレスまたはインターフェース名。空ならOS任せ
	TTL       int
}

// DefaultOptions はデフォルト値を返す
func DefaultOptions() Options {
	return Options{
		Group: DefaultGroup,
		Port:  DefaultPort,
		TTL:   DefaultTTL,
	}
}

func (o Options) withDefaults() Options {
	if o.Group == "" {
		o.Group = DefaultGroup
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}
	return o
}

// GroupAddr はマルチキャストグループのアドレスを返す
func (o Options) GroupAddr() (*net.UDPAddr, error) {
	o = o.withDefaults()
	ip := net.ParseIP(o.Group)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid multicast group %q", o.Group)
	}
	if !ip.IsMulticast() {
		return nil, fmt.Errorf("%s is not a multicast address", o.Group)
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", o.Port)
	}
	return &net.UDPAddr{IP: ip.To4(), Port: o.Port}, nil
}

func (o Options) String() string {
	o = o.withDefaults()
	return net.JoinHostPort(o.Group, strconv.Itoa(o.Port))
}

// interfaceLister はテストで差し替えるためのもの
var interfaceLister = net.Interfaces

// ResolveInterface はIPアドレスまたは名前からインターフェースを探す。
// 空文字なら nil を返す。
func ResolveInterface(spec string) (*net.Interface, error) {
	if spec == "" {
		return nil, nil
	}
	ip := net.ParseIP(spec)
	ifaces, err := interfaceLister()
	if err != nil {
		return nil, fmt.Errorf("インターフェース一覧の取得に失敗しました: %w", err)
	}
	for i := range ifaces {
		iface := ifaces[i]
		if ip == nil {
			if iface.Name == spec {
				return &iface, nil
			}
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
				return &iface, nil
			}
		}
	}
	return nil, fmt.Errorf("interface %q not found", spec)
}
