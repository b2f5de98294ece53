package device

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"

	"github.com/char5742/octopus/internal/event"
)

// DefaultOutputName は共有仮想出力デバイスの名前
const DefaultOutputName = "octopus output"

// Output は uinput で作成した仮想入力デバイス
type Output struct {
	dev *evdev.InputDevice
}

func toInputEvent(ev event.Event) evdev.InputEvent {
	return evdev.InputEvent{
		Type:  evdev.EvType(ev.Type),
		Code:  evdev.EvCode(ev.Code),
		Value: ev.Value,
	}
}

func writeEvents(dev *evdev.InputDevice, events ...event.Event) error {
	for _, ev := range events {
		in := toInputEvent(ev)
		if err := dev.WriteOne(&in); err != nil {
			return err
		}
	}
	return nil
}

// outputCapabilities は全キーとホイール・移動を持つ出力デバイスの能力
func outputCapabilities() map[evdev.EvType][]evdev.EvCode {
	keyCodes := make([]evdev.EvCode, 0, event.KeyMax)
	for code := evdev.EvCode(1); code <= event.KeyMax; code++ {
		keyCodes = append(keyCodes, code)
	}
	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keyCodes,
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_HWHEEL, evdev.REL_WHEEL},
		evdev.EV_MSC: {evdev.MSC_SCAN},
	}
}

// CreateOutput は任意のキーとホイールを出力できる仮想デバイスを作る
func CreateOutput(name string) (*Output, error) {
	if name == "" {
		name = DefaultOutputName
	}
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}
	dev, err := evdev.CreateDevice(name, id, outputCapabilities())
	if err != nil {
		return nil, fmt.Errorf("仮想出力デバイスの作成に失敗しました: %w", err)
	}
	return &Output{dev: dev}, nil
}

// WriteEvents はイベントを順に書き込む
func (o *Output) WriteEvents(events ...event.Event) error {
	return writeEvents(o.dev, events...)
}

func (o *Output) Close() error {
	if o.dev == nil {
		return nil
	}
	return o.dev.Close()
}
