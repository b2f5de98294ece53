package router

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/event"
	"github.com/char5742/octopus/internal/packet"
)

// dispatch はイベントをアクティブなクライアントへ送る。
// dev が nil の場合は合成イベントとして共有出力に書き込む。
func (r *Router) dispatch(ev event.Event, dev Device) error {
	c := r.ActiveClient()
	if !c.Local {
		return r.send(c, ev)
	}
	if dev != nil {
		if err := dev.Write(ev); err != nil {
			log.WithField("device", dev.Index()).Warnf("イベントの書き込みに失敗しました: %v", err)
			dev.Deactivate()
		}
		return nil
	}
	if err := r.cfg.Output.WriteEvents(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	return nil
}

func (r *Router) send(c Client, ev event.Event) error {
	data, err := packet.Encode(packet.Packet{
		ClientIndex: uint8(c.Index),
		Nonce:       r.nonce(),
		Type:        ev.Type,
		Code:        ev.Code,
		Value:       ev.Value,
	}, c.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if err := r.cfg.Sender.Send(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	r.sent++
	return nil
}

// releasePressed は押下中のキーをすべて離すイベントを送り、押下状態を空にする
func (r *Router) releasePressed() error {
	var releases []event.Event
	for _, k := range r.register.Keys() {
		if code, ok := k.Code(); ok {
			releases = append(releases, event.KeyEvent(code, false))
		}
	}
	releases = append(releases, event.Report())
	defer r.register.Clear()

	c := r.ActiveClient()
	if c.Local {
		// どのデバイスの仮想出力から押されたかは追跡していないため全デバイスに送る
		for _, d := range r.cfg.Devices {
			if !d.Active() {
				continue
			}
			if err := d.Write(releases...); err != nil {
				log.WithField("device", d.Index()).Warnf("キー解放の書き込みに失敗しました: %v", err)
				d.Deactivate()
			}
		}
		return nil
	}
	for _, ev := range releases {
		if err := r.send(c, ev); err != nil {
			return err
		}
	}
	return nil
}

// runMapping はマッピングの出力列を再生する
func (r *Router) runMapping(m Mapping) error {
	if m.ReleasePressed {
		if err := r.releasePressed(); err != nil {
			return err
		}
	}
	for _, step := range m.Output {
		var ev event.Event
		if step.Key.IsWheel() {
			ev = step.Key.Wheel().Motion()
		} else {
			code, _ := step.Key.Code()
			ev = event.KeyEvent(code, step.Pressed)
		}
		if err := r.dispatch(ev, nil); err != nil {
			return err
		}
	}
	return r.dispatch(event.Report(), nil)
}
