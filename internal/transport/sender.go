package transport

import (
	"fmt"
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// Sender はマルチキャストグループへパケットを送る
type Sender struct {
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
	group *net.UDPAddr
	sent  atomic.Uint64
}

// NewSender は送信用ソケットを作る
func NewSender(opts Options) (*Sender, error) {
	opts = opts.withDefaults()
	group, err := opts.GroupAddr()
	if err != nil {
		return nil, err
	}
	iface, err := ResolveInterface(opts.Interface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("送信ソケットの作成に失敗しました: %w", err)
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(opts.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("マルチキャストTTLの設定に失敗しました: %w", err)
	}
	if iface != nil {
		if err := pc.SetMulticastInterface(iface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("送信インターフェースの設定に失敗しました: %w", err)
		}
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		log.Debugf("マルチキャストループバックの設定に失敗しました: %v", err)
	}

	log.WithFields(log.Fields{"group": opts.String(), "ttl": opts.TTL, "iface": opts.Interface}).Info("マルチキャスト送信を開始します")
	return &Sender{conn: conn, pc: pc, group: group}, nil
}

// Send は1パケットを送る。再送はしない。
func (s *Sender) Send(data []byte) error {
	if _, err := s.conn.WriteToUDP(data, s.group); err != nil {
		return fmt.Errorf("パケット送信に失敗しました: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Sent は送信済みパケット数を返す
func (s *Sender) Sent() uint64 {
	return s.sent.Load()
}

func (s *Sender) Close() error {
	return s.conn.Close()
}
