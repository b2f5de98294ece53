// Package client はマルチキャストで届いたパケットを受け取り、
// ローカルの仮想入力デバイスへ注入する。
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/device"
	"github.com/char5742/octopus/internal/event"
	"github.com/char5742/octopus/internal/packet"
	"github.com/char5742/octopus/internal/transport"
)

// DefaultIndex は受信するクライアント番号のデフォルト値
const DefaultIndex = 1

// Config は受信側の設定
type Config struct {
	Index   int
	Key     []byte
	Network transport.Options
}

// PacketReader は1データグラムずつ読み取る
type PacketReader interface {
	ReadPacket(buf []byte) (int, error)
	Close() error
}

// Injector は受け取ったイベントを書き込む先
type Injector interface {
	WriteEvents(events ...event.Event) error
}

// Receiver はパケットを検証して注入する
type Receiver struct {
	cfg      Config
	conn     PacketReader
	out      Injector
	received atomic.Uint64
	dropped  atomic.Uint64
}

// Stats は受信したパケット数の集計
type Stats struct {
	Received uint64 // 注入したパケット
	Dropped  uint64 // 宛先違い、または検証に失敗したパケット
}

// New は受信ループを作る
func New(cfg Config, conn PacketReader, out Injector) *Receiver {
	if cfg.Index == 0 {
		cfg.Index = DefaultIndex
	}
	return &Receiver{cfg: cfg, conn: conn, out: out}
}

// Stats は現在までの受信件数を返す。Run と並行して呼んでよい。
func (r *Receiver) Stats() Stats {
	return Stats{Received: r.received.Load(), Dropped: r.dropped.Load()}
}

// accept はデータグラムを検証してイベントを返す。
// 宛先違いや壊れたパケットは false を返し、エラーにはしない。
func (r *Receiver) accept(data []byte) (event.Event, bool) {
	idx, ok := packet.PeekClient(data)
	if !ok || int(idx) != r.cfg.Index {
		return event.Event{}, false
	}
	p, err := packet.Decode(data, r.cfg.Key)
	if err != nil {
		log.Debugf("パケットを破棄しました: %v", err)
		return event.Event{}, false
	}
	return event.Event{Type: p.Type, Code: p.Code, Value: p.Value}, true
}

// Run はコンテキストが終了するまで受信を続ける。注入の失敗は致命的。
func (r *Receiver) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer func() {
		close(done)
		st := r.Stats()
		log.WithFields(log.Fields{"received": st.Received, "dropped": st.Dropped}).Info("受信を終了しました")
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		r.conn.Close()
	}()

	buf := make([]byte, 1500)
	for {
		n, err := r.conn.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Debugf("受信エラー: %v", err)
			continue
		}
		ev, ok := r.accept(buf[:n])
		if !ok {
			r.dropped.Add(1)
			continue
		}
		r.received.Add(1)
		if err := r.out.WriteEvents(ev); err != nil {
			return fmt.Errorf("イベントの注入に失敗しました: %w", err)
		}
	}
}

// Start はソケットと仮想出力を用意して受信ループを実行する
func Start(ctx context.Context, cfg Config) error {
	if cfg.Index == 0 {
		cfg.Index = DefaultIndex
	}
	if cfg.Index < 0 || cfg.Index > 255 {
		return fmt.Errorf("client index out of range: %d", cfg.Index)
	}
	out, err := device.CreateOutput(device.DefaultOutputName)
	if err != nil {
		return err
	}
	defer out.Close()

	conn, err := transport.NewReceiver(ctx, cfg.Network)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.WithFields(log.Fields{
		"client":     cfg.Index,
		"encryption": len(cfg.Key) > 0,
	}).Info("クライアントとして受信を開始します")
	return New(cfg, conn, out).Run(ctx)
}
