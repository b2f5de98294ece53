package event

import "fmt"

// イベントタイプの定数（input-event-codes.hより）
const (
	Syn = 0x00 // 同期イベント
	Key = 0x01 // キーイベント
	Rel = 0x02 // 相対座標イベント
	Msc = 0x04 // その他のイベント

	RelX      = 0x00 // X軸の相対移動
	RelY      = 0x01 // Y軸の相対移動
	RelHWheel = 0x06 // 水平ホイールの相対移動
	RelWheel  = 0x08 // ホイールの相対移動

	SynReport  = 0 // イベント報告の同期
	SynDropped = 3 // カーネル側のバッファ溢れ

	KeyMax = 0x2ff // キーコードの最大値
)

// キーイベントの値
const (
	Released int32 = 0
	Pressed  int32 = 1
	Repeated int32 = 2
)

// Event は入力イベントを表す構造体
type Event struct {
	Type  uint16 // イベントタイプ
	Code  uint16 // イベントコード
	Value int32  // イベント値
}

// Report は SYN_REPORT イベントを返す
func Report() Event {
	return Event{Type: Syn, Code: SynReport}
}

// KeyEvent はキーの押下または解放イベントを返す
func KeyEvent(code uint16, pressed bool) Event {
	ev := Event{Type: Key, Code: code, Value: Released}
	if pressed {
		ev.Value = Pressed
	}
	return ev
}

func (e Event) IsReport() bool {
	return e.Type == Syn && e.Code == SynReport
}

func (e Event) IsDropped() bool {
	return e.Type == Syn && e.Code == SynDropped
}

func (e Event) String() string {
	return fmt.Sprintf("type=%d code=%d value=%d", e.Type, e.Code, e.Value)
}
