package device

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"
	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/event"
)

// ShadowSuffix は物理デバイスごとの仮想出力デバイス名に付ける接尾辞
const ShadowSuffix = " [octopus]"

// Session は1つの設定済みデバイスの実行時状態。
// 状態の変更はルーターのゴルーチンからのみ行う。
type Session struct {
	desc   Descriptor
	path   string
	name   string
	active bool
	epoch  uint64

	in     *evdev.InputDevice
	shadow *evdev.InputDevice
	done   chan struct{}
}

func newSession(d Descriptor) *Session {
	return &Session{desc: d}
}

func (s *Session) Index() int {
	return s.desc.Index
}

func (s *Session) Descriptor() Descriptor {
	return s.desc
}

func (s *Session) Active() bool {
	return s.active
}

// Epoch は有効化のたびに増える世代番号。古い世代のフレームは捨てる。
func (s *Session) Epoch() uint64 {
	return s.epoch
}

func (s *Session) Path() string {
	return s.path
}

func (s *Session) Name() string {
	return s.name
}

// Write はこのデバイス専用の仮想出力にイベントを書き込む
func (s *Session) Write(events ...event.Event) error {
	if !s.active || s.shadow == nil {
		return fmt.Errorf("device %s is not active", s.desc)
	}
	return writeEvents(s.shadow, events...)
}

// activate はデバイスを開いて占有し、仮想出力を作成する
func (s *Session) activate(path, name string, frames chan<- Frame) error {
	in, err := evdev.OpenWithFlags(path, evdevOpenFlags)
	if err != nil {
		return fmt.Errorf("デバイスを開けませんでした %s: %w", path, err)
	}
	if err := in.Grab(); err != nil {
		in.Close()
		return fmt.Errorf("デバイスの占有に失敗しました %s: %w", path, err)
	}
	if n, err := in.Name(); err == nil && n != "" {
		name = n
	}
	shadow, err := evdev.CloneDevice(name+ShadowSuffix, in)
	if err != nil {
		in.Ungrab()
		in.Close()
		return fmt.Errorf("仮想出力デバイスの作成に失敗しました %s: %w", path, err)
	}

	s.path = path
	s.name = name
	s.in = in
	s.shadow = shadow
	s.done = make(chan struct{})
	s.epoch++
	s.active = true

	r := &reader{
		index:  s.desc.Index,
		epoch:  s.epoch,
		src:    in,
		frames: frames,
		done:   s.done,
		keys:   newKeyTracker(),
	}
	go r.run()
	return nil
}

// Deactivate はハンドルを閉じて非アクティブにする。次回の再スキャンで再接続される。
func (s *Session) Deactivate() {
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	if err := s.in.Close(); err != nil {
		log.Debugf("入力デバイスのクローズに失敗しました: %v", err)
	}
	if err := s.shadow.Close(); err != nil {
		log.Debugf("仮想出力デバイスのクローズに失敗しました: %v", err)
	}
	s.in = nil
	s.shadow = nil
	log.WithFields(log.Fields{"device": s.desc.Index, "path": s.path}).Warn("デバイスを無効化しました")
}
