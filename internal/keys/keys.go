// Package keys はキー名とキーコードの対応表を提供する。
//
// ホイールの回転は離散的な「キー」として扱えるように合成キーとして表現する。
// 合成キーは実際のキーコード空間とは別の値として保持されるため、
// 出力デバイスやネットワークへ合成キーのコードが流れることはない。
package keys

import (
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"

	"github.com/char5742/octopus/internal/event"
)

// Wheel はホイールの回転方向を表す
type Wheel uint8

const (
	WheelNone Wheel = iota
	WheelUp
	WheelRight
	WheelDown
	WheelLeft
)

var wheelNames = map[Wheel]string{
	WheelUp:    "WHEEL_UP",
	WheelRight: "WHEEL_RIGHT",
	WheelDown:  "WHEEL_DOWN",
	WheelLeft:  "WHEEL_LEFT",
}

func (w Wheel) String() string {
	if name, ok := wheelNames[w]; ok {
		return name
	}
	return "WHEEL_NONE"
}

// Motion はホイール方向に対応する1ノッチ分の相対移動イベントを返す
func (w Wheel) Motion() event.Event {
	switch w {
	case WheelUp:
		return event.Event{Type: event.Rel, Code: event.RelWheel, Value: 1}
	case WheelDown:
		return event.Event{Type: event.Rel, Code: event.RelWheel, Value: -1}
	case WheelRight:
		return event.Event{Type: event.Rel, Code: event.RelHWheel, Value: 1}
	case WheelLeft:
		return event.Event{Type: event.Rel, Code: event.RelHWheel, Value: -1}
	}
	return event.Event{}
}

// Key は実キーコードまたは合成ホイールキーのどちらかを表す。
// ゼロ値は「キーなし」(空きスロット) を意味する。
type Key struct {
	code  uint16
	wheel Wheel
}

// None は空きスロットを表す
var None Key

// FromCode は実キーコードから Key を作る
func FromCode(code uint16) Key {
	return Key{code: code}
}

// FromWheel はホイール方向から合成キーを作る
func FromWheel(w Wheel) Key {
	return Key{wheel: w}
}

// FromMotion はホイールの相対移動イベントを合成キーに変換する。
// ホイール以外のイベント、または移動量0の場合は false を返す。
func FromMotion(ev event.Event) (Key, bool) {
	if ev.Type != event.Rel || ev.Value == 0 {
		return None, false
	}
	switch ev.Code {
	case event.RelWheel:
		if ev.Value > 0 {
			return FromWheel(WheelUp), true
		}
		return FromWheel(WheelDown), true
	case event.RelHWheel:
		if ev.Value > 0 {
			return FromWheel(WheelRight), true
		}
		return FromWheel(WheelLeft), true
	}
	return None, false
}

func (k Key) IsZero() bool {
	return k == None
}

// IsWheel は合成ホイールキーかどうかを返す
func (k Key) IsWheel() bool {
	return k.wheel != WheelNone
}

// Code は実キーコードを返す。合成キーの場合は false を返す。
func (k Key) Code() (uint16, bool) {
	if k.IsWheel() || k.IsZero() {
		return 0, false
	}
	return k.code, true
}

func (k Key) Wheel() Wheel {
	return k.wheel
}

func (k Key) String() string {
	if k.IsZero() {
		return "NONE"
	}
	if k.IsWheel() {
		return k.wheel.String()
	}
	if name := evdev.CodeName(evdev.EV_KEY, evdev.EvCode(k.code)); name != "" {
		return name
	}
	return strconv.Itoa(int(k.code))
}

// Parse はキー名を Key に変換する。
// KEY_*/BTN_* 形式、接頭辞を省略した名前 (LEFTCTRL)、数値コード、
// および WHEEL_UP などの合成ホイール名を受け付ける。
// 数字のみ、または 0x で始まる入力は常に数値コードとして扱う ("1" は KEY_1 ではなくコード 1)。
func Parse(name string) (Key, error) {
	raw := strings.ToUpper(strings.TrimSpace(name))
	if raw == "" {
		return None, fmt.Errorf("key name is empty")
	}
	if isNumeric(raw) {
		parsed, err := strconv.ParseUint(raw, 0, 16)
		if err != nil {
			return None, fmt.Errorf("invalid key code %q", name)
		}
		return fromParsedCode(uint64(parsed))
	}
	for w, wheelName := range wheelNames {
		if raw == wheelName {
			return FromWheel(w), nil
		}
	}
	if code, ok := evdev.KEYFromString[raw]; ok {
		return fromParsedCode(uint64(code))
	}
	if !strings.HasPrefix(raw, "KEY_") && !strings.HasPrefix(raw, "BTN_") {
		for _, prefix := range []string{"KEY_", "BTN_"} {
			if code, ok := evdev.KEYFromString[prefix+raw]; ok {
				return fromParsedCode(uint64(code))
			}
		}
	}
	return None, fmt.Errorf("unknown key %q", name)
}

// KEY_RESERVED (0) は None と区別できないので受け付けない
func fromParsedCode(code uint64) (Key, error) {
	if code == 0 || code > event.KeyMax {
		return None, fmt.Errorf("key code out of range: %d", code)
	}
	return FromCode(uint16(code)), nil
}

func isNumeric(raw string) bool {
	if strings.HasPrefix(raw, "0X") {
		return len(raw) > 2
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// MustParse はテストや固定テーブル用の Parse
func MustParse(name string) Key {
	k, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return k
}
