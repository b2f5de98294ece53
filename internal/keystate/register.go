// Package keystate は現在押下中のキー集合とコンボ判定を扱う。
package keystate

import "github.com/char5742/octopus/internal/keys"

// Capacity は同時に保持できるキーの最大数
const Capacity = 4

// Set は固定長のキー集合。空きスロットは keys.None。
type Set [Capacity]keys.Key

// NewSet はキー列から Set を作る。Capacity を超える分は無視される。
func NewSet(ks ...keys.Key) Set {
	var s Set
	for i, k := range ks {
		if i >= Capacity {
			break
		}
		s[i] = k
	}
	return s
}

// Len は空きでないスロットの数を返す
func (s Set) Len() int {
	n := 0
	for _, k := range s {
		if !k.IsZero() {
			n++
		}
	}
	return n
}

// Contains は k が集合に含まれるかを返す
func (s Set) Contains(k keys.Key) bool {
	if k.IsZero() {
		return false
	}
	for _, v := range s {
		if v == k {
			return true
		}
	}
	return false
}

// Keys は空きスロットを除いたキー列をスロット順に返す
func (s Set) Keys() []keys.Key {
	out := make([]keys.Key, 0, Capacity)
	for _, k := range s {
		if !k.IsZero() {
			out = append(out, k)
		}
	}
	return out
}

func (s Set) String() string {
	str := "{"
	for i, k := range s.Keys() {
		if i > 0 {
			str += " "
		}
		str += k.String()
	}
	return str + "}"
}

// PressResult は Press の結果
type PressResult int

const (
	Added PressResult = iota
	AlreadyPressed
	Dropped
)

func (r PressResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPressed:
		return "already_pressed"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// Register は押下中のキーを保持する。
// 同じキーは高々1つのスロットにしか入らず、満杯時の押下は捨てられる。
type Register struct {
	slots   Set
	dropped uint64
}

// Press はキーを最初の空きスロットに登録する
func (r *Register) Press(k keys.Key) PressResult {
	if k.IsZero() {
		return AlreadyPressed
	}
	if r.slots.Contains(k) {
		return AlreadyPressed
	}
	for i := range r.slots {
		if r.slots[i].IsZero() {
			r.slots[i] = k
			return Added
		}
	}
	r.dropped++
	return Dropped
}

// Release は k と等しいすべてのスロットを空ける
func (r *Register) Release(k keys.Key) {
	for i := range r.slots {
		if r.slots[i] == k {
			r.slots[i] = keys.None
		}
	}
}

// ClearSynthetic はホイール由来の合成キーをすべて取り除く。
// 合成キーには解放イベントが来ないためバッチごとに呼ぶ。
func (r *Register) ClearSynthetic() {
	for i := range r.slots {
		if r.slots[i].IsWheel() {
			r.slots[i] = keys.None
		}
	}
}

func (r *Register) Snapshot() Set {
	return r.slots
}

func (r *Register) Contains(k keys.Key) bool {
	return r.slots.Contains(k)
}

func (r *Register) Keys() []keys.Key {
	return r.slots.Keys()
}

func (r *Register) Len() int {
	return r.slots.Len()
}

func (r *Register) Clear() {
	r.slots = Set{}
}

// Dropped は容量超過で捨てられた押下の累計を返す
func (r *Register) Dropped() uint64 {
	return r.dropped
}
