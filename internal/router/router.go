// Package router は複数の入力デバイスからのイベントを集約し、
// コンボ判定によるリマップとクライアント切り替えを行ったうえで
// アクティブなクライアント (ローカル仮想デバイスまたはネットワーク) へ配送する。
//
// ルーティング状態は Run を実行する1つのゴルーチンだけが変更する。
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/device"
	"github.com/char5742/octopus/internal/event"
	"github.com/char5742/octopus/internal/keys"
	"github.com/char5742/octopus/internal/keystate"
	"github.com/char5742/octopus/internal/packet"
)

// DefaultRescanInterval はデバイス再スキャンの間隔
const DefaultRescanInterval = 3 * time.Second

// maxBatch は1バッチでまとめて処理するフレーム数の上限
const maxBatch = 64

// MaxOutputSteps はマッピング出力列の最大長
const MaxOutputSteps = 64

// Any はスコープ指定なしを表す
const Any = -1

var (
	ErrOutput        = errors.New("default output write failed")
	ErrSend          = errors.New("network send failed")
	ErrUnknownClient = errors.New("unknown client")
	ErrBusy          = errors.New("switch request queue is full")
)

// Device はルーターから見た入力デバイスのセッション
type Device interface {
	Index() int
	Active() bool
	Epoch() uint64
	Path() string
	// Write はこのデバイス専用の仮想出力に書き込む
	Write(events ...event.Event) error
	Deactivate()
}

// Output は共有の仮想出力デバイス
type Output interface {
	WriteEvents(events ...event.Event) error
}

// Sender はエンコード済みパケットを送る
type Sender interface {
	Send(data []byte) error
}

// Step はマッピング出力の1要素
type Step struct {
	Key     keys.Key
	Pressed bool
}

func (s Step) String() string {
	if s.Pressed {
		return "+" + s.Key.String()
	}
	return "-" + s.Key.String()
}

// Mapping はコンボに対する出力列の定義
type Mapping struct {
	Combo          keystate.Set
	Output         []Step
	FilterLast     bool // コンボを完成させたイベントを転送しない
	ReleasePressed bool // 出力前に押下中のキーをすべて離す
	OnlyClient     int  // Any 以外ならそのクライアントがアクティブなときのみ
	OnlyDevice     int  // Any 以外ならそのデバイスからのイベントのみ
}

// Client はイベントの配送先
type Client struct {
	Index int
	Combo keystate.Set
	Local bool
	Key   []byte // 空なら平文で送る
}

// Config はルーターの依存関係
type Config struct {
	Devices        []Device
	Mappings       []Mapping
	Clients        []Client
	Output         Output
	Sender         Sender
	Frames         <-chan device.Frame
	Rescan         func()
	Hotplug        <-chan struct{}
	RescanInterval time.Duration
}

// Router はルーティングエンジン
type Router struct {
	cfg      Config
	devices  map[int]Device
	order    map[int]int
	register keystate.Register
	active   int
	pending  []bool
	switchTo int
	requests chan int
	sent     uint64
	status   atomic.Pointer[Status]
	nonce    func() uint32
}

// New は設定を検証してルーターを作る。最初のクライアントがアクティブになる。
func New(cfg Config) (*Router, error) {
	if len(cfg.Clients) == 0 {
		return nil, fmt.Errorf("no clients configured")
	}
	for _, c := range cfg.Clients {
		if c.Local && cfg.Output == nil {
			return nil, fmt.Errorf("client #%d is local but no output device is configured", c.Index)
		}
		if !c.Local && cfg.Sender == nil {
			return nil, fmt.Errorf("client #%d is remote but no sender is configured", c.Index)
		}
	}
	for i, m := range cfg.Mappings {
		if len(m.Output) > MaxOutputSteps {
			return nil, fmt.Errorf("mapping #%d: output too long (%d)", i, len(m.Output))
		}
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = DefaultRescanInterval
	}

	r := &Router{
		cfg:      cfg,
		devices:  make(map[int]Device, len(cfg.Devices)),
		order:    make(map[int]int, len(cfg.Devices)),
		pending:  make([]bool, len(cfg.Mappings)),
		switchTo: -1,
		requests: make(chan int, 8),
		nonce:    packet.NewNonce,
	}
	for pos, d := range cfg.Devices {
		r.devices[d.Index()] = d
		r.order[d.Index()] = pos
	}
	r.publish()
	return r, nil
}

// ActiveClient は現在アクティブなクライアントを返す
func (r *Router) ActiveClient() Client {
	return r.cfg.Clients[r.active]
}

// RequestSwitch は次のバッチ終了時にクライアントを切り替えるよう要求する
func (r *Router) RequestSwitch(clientIndex int) error {
	for i, c := range r.cfg.Clients {
		if c.Index != clientIndex {
			continue
		}
		select {
		case r.requests <- i:
			return nil
		default:
			return ErrBusy
		}
	}
	return fmt.Errorf("%w: #%d", ErrUnknownClient, clientIndex)
}

// Run はコンテキストが終了するか致命的なエラーが起きるまでイベントを処理する
func (r *Router) Run(ctx context.Context) error {
	r.rescan()
	ticker := time.NewTicker(r.cfg.RescanInterval)
	defer ticker.Stop()

	log.WithField("client", r.ActiveClient().Index).Info("ルーターを開始します")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-r.cfg.Frames:
			if !ok {
				return nil
			}
			if err := r.processBatch(r.drain(f)); err != nil {
				return err
			}

		case <-ticker.C:
			r.rescan()

		case <-r.cfg.Hotplug:
			log.Debug("デバイスの変化を検出しました")
			r.rescan()

		case target := <-r.requests:
			r.switchTo = target
			if err := r.finishBatch(); err != nil {
				return err
			}
		}
		r.publish()
	}
}

func (r *Router) rescan() {
	if r.cfg.Rescan != nil {
		r.cfg.Rescan()
	}
}

// drain は待たずに受け取れるフレームをまとめ、デバイスの宣言順に並べる。
// 同じデバイスのフレームは到着順のまま。
func (r *Router) drain(first device.Frame) []device.Frame {
	batch := []device.Frame{first}
loop:
	for len(batch) < maxBatch {
		select {
		case f, ok := <-r.cfg.Frames:
			if !ok {
				break loop
			}
			batch = append(batch, f)
		default:
			break loop
		}
	}
	sort.SliceStable(batch, func(i, j int) bool {
		return r.order[batch[i].Device] < r.order[batch[j].Device]
	})
	return batch
}

func (r *Router) processBatch(batch []device.Frame) error {
	for _, f := range batch {
		dev, ok := r.devices[f.Device]
		if !ok || !dev.Active() || dev.Epoch() != f.Epoch {
			continue
		}
		if f.Err != nil {
			log.WithField("device", f.Device).Warnf("デバイスの読み取りに失敗しました: %v", f.Err)
			dev.Deactivate()
			continue
		}
		for _, ev := range f.Events {
			if err := r.handleEvent(dev, ev); err != nil {
				return err
			}
			if !dev.Active() {
				break
			}
		}
	}
	return r.finishBatch()
}
