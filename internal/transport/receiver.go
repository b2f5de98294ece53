package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// Receiver はマルチキャストグループに参加してパケットを受け取る
type Receiver struct {
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
	group *net.UDPAddr
	iface *net.Interface
}

func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// NewReceiver は受信用ソケットを作りグループに参加する
func NewReceiver(ctx context.Context, opts Options) (*Receiver, error) {
	opts = opts.withDefaults()
	group, err := opts.GroupAddr()
	if err != nil {
		return nil, err
	}
	iface, err := ResolveInterface(opts.Interface)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: reuseAddr}
	pconn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("受信ソケットの作成に失敗しました: %w", err)
	}
	conn := pconn.(*net.UDPConn)
	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("マルチキャストグループへの参加に失敗しました: %w", err)
	}

	log.WithFields(log.Fields{"group": opts.String(), "iface": opts.Interface}).Info("マルチキャスト受信を開始します")
	return &Receiver{conn: conn, pc: pc, group: group, iface: iface}, nil
}

// ReadPacket は次のデータグラムを buf に読み込む
func (r *Receiver) ReadPacket(buf []byte) (int, error) {
	n, _, err := r.conn.ReadFromUDP(buf)
	return n, err
}

func (r *Receiver) Close() error {
	if err := r.pc.LeaveGroup(r.iface, &net.UDPAddr{IP: r.group.IP}); err != nil {
		log.Debugf("マルチキャストグループからの離脱に失敗しました: %v", err)
	}
	return r.conn.Close()
}
