package device

import (
	"errors"
	"fmt"
	"os"
	"sort"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"github.com/char5742/octopus/internal/event"
)

// Frame は1つのデバイスから読んだ SYN_REPORT までのイベント列。
// Err が非nilの場合、そのデバイスの読み取りは終了している。
type Frame struct {
	Device int
	Epoch  uint64
	Events []event.Event
	Err    error
}

// eventSource は読み取りに必要な evdev.InputDevice の部分
type eventSource interface {
	ReadOne() (*evdev.InputEvent, error)
	State(t evdev.EvType) (evdev.StateMap, error)
}

func isDeviceClosedError(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENODEV)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// keyTracker はリーダーが観測したキーの押下状態を覚えておき、
// SYN_DROPPED 後にデバイスの実状態との差分を作る。
type keyTracker struct {
	down map[uint16]bool
}

func newKeyTracker() *keyTracker {
	return &keyTracker{down: make(map[uint16]bool)}
}

func (t *keyTracker) observe(ev event.Event) {
	if ev.Type != event.Key {
		return
	}
	switch ev.Value {
	case event.Pressed:
		t.down[ev.Code] = true
	case event.Released:
		delete(t.down, ev.Code)
	}
}

// resync は実状態 state に合わせるためのキーイベントを返し、内部状態を更新する
func (t *keyTracker) resync(state evdev.StateMap) []event.Event {
	var out []event.Event
	for code := range t.down {
		if !state[evdev.EvCode(code)] {
			out = append(out, event.KeyEvent(code, false))
		}
	}
	for code, pressed := range state {
		if pressed && !t.down[uint16(code)] {
			out = append(out, event.KeyEvent(uint16(code), true))
		}
	}
	// map の順序に依存しないようにコード順に並べる
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Code < out[j].Code
	})
	for _, ev := range out {
		t.observe(ev)
	}
	return out
}

// reader は1つのデバイスのイベントをフレーム単位でチャネルに送る
type reader struct {
	index  int
	epoch  uint64
	src    eventSource
	frames chan<- Frame
	done   <-chan struct{}
	keys   *keyTracker
}

func (r *reader) send(f Frame) bool {
	f.Device = r.index
	f.Epoch = r.epoch
	select {
	case r.frames <- f:
		return true
	case <-r.done:
		return false
	}
}

func (r *reader) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *reader) run() {
	var pending []event.Event
	dropping := false

	for {
		raw, err := r.src.ReadOne()
		if err != nil {
			if isWouldBlockError(err) {
				continue
			}
			if r.stopped() {
				return
			}
			if isDeviceClosedError(err) {
				err = fmt.Errorf("デバイスが切断されました: %w", err)
			}
			r.send(Frame{Err: err})
			return
		}
		if raw == nil {
			continue
		}
		ev := event.Event{Type: uint16(raw.Type), Code: uint16(raw.Code), Value: raw.Value}

		if ev.IsDropped() {
			// 次の SYN_REPORT までの増分は信用できない
			dropping = true
			pending = pending[:0]
			continue
		}
		if dropping {
			if !ev.IsReport() {
				continue
			}
			dropping = false
			state, err := r.src.State(evdev.EV_KEY)
			if err != nil {
				if r.stopped() {
					return
				}
				r.send(Frame{Err: err})
				return
			}
			if fix := r.keys.resync(state); len(fix) > 0 {
				fix = append(fix, event.Report())
				if !r.send(Frame{Events: fix}) {
					return
				}
			}
			continue
		}

		pending = append(pending, ev)
		if ev.IsReport() {
			for _, e := range pending {
				r.keys.observe(e)
			}
			frame := Frame{Events: pending}
			pending = nil
			if !r.send(frame) {
				return
			}
		}
	}
}
