package router

import (
	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/event"
	"github.com/char5742/octopus/internal/keys"
	"github.com/char5742/octopus/internal/keystate"
)

// handleEvent は1イベント分の状態更新とコンボ判定を行い、必要なら転送する
func (r *Router) handleEvent(dev Device, ev event.Event) error {
	suppress := false

	switch ev.Type {
	case event.Rel:
		// ホイールの1ノッチは離されることのない押下として扱う
		if k, ok := keys.FromMotion(ev); ok {
			if res := r.press(k); res != keystate.Dropped {
				suppress = r.evaluate(dev.Index())
			}
		}

	case event.Key:
		k := keys.FromCode(ev.Code)
		switch ev.Value {
		case event.Pressed:
			if r.press(k) == keystate.Added {
				suppress = r.evaluate(dev.Index())
			}
		case event.Released:
			r.register.Release(k)
		}
	}

	if suppress {
		return nil
	}
	return r.dispatch(ev, dev)
}

func (r *Router) press(k keys.Key) keystate.PressResult {
	res := r.register.Press(k)
	if res == keystate.Dropped {
		log.WithFields(log.Fields{
			"key":     k.String(),
			"pressed": r.register.Snapshot().String(),
			"dropped": r.register.Dropped(),
		}).Debug("同時押しの上限に達したため押下を無視しました")
	}
	return res
}

// evaluate は現在の押下状態をすべてのマッピングとクライアントのコンボと比較する。
// 戻り値はきっかけとなったイベントの転送を抑止するかどうか。
func (r *Router) evaluate(deviceIndex int) bool {
	active := r.register.Snapshot()
	activeClient := r.ActiveClient().Index
	suppress := false

	for i, m := range r.cfg.Mappings {
		if m.OnlyDevice != Any && m.OnlyDevice != deviceIndex {
			continue
		}
		if m.OnlyClient != Any && m.OnlyClient != activeClient {
			continue
		}
		if !keystate.Matches(active, m.Combo) {
			continue
		}
		r.pending[i] = true
		if m.FilterLast {
			suppress = true
		}
	}

	// 複数一致した場合は後に宣言されたものが優先される
	for i, c := range r.cfg.Clients {
		if keystate.Matches(active, c.Combo) {
			r.switchTo = i
			suppress = true
		}
	}
	return suppress
}

// finishBatch はバッチの最後に合成キーを消し、保留中の出力とクライアント切り替えを実行する
func (r *Router) finishBatch() error {
	r.register.ClearSynthetic()

	for i, m := range r.cfg.Mappings {
		if !r.pending[i] {
			continue
		}
		r.pending[i] = false
		if err := r.runMapping(m); err != nil {
			return err
		}
	}

	if r.switchTo < 0 {
		return nil
	}
	target := r.switchTo
	r.switchTo = -1
	if target == r.active {
		return nil
	}
	if err := r.releasePressed(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"from": r.ActiveClient().Index,
		"to":   r.cfg.Clients[target].Index,
	}).Infof("クライアント #%d に切り替えます", r.cfg.Clients[target].Index)
	r.active = target
	return nil
}
