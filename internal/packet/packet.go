// Package packet はクライアントへ送る入力イベントパケットのエンコードとデコードを行う。
//
// レイアウト (リトルエンディアン):
//
//	0      clientIndex  常に平文
//	1      encLen       0 なら平文、それ以外は暗号化された末尾のバイト数
//	2..5   nonce
//	6..7   type
//	8..9   code
//	10..13 value (符号付き)
//	14..17 パディング
//
// 暗号化する場合は nonce から value までの12バイトを XXTEA で暗号化する。
package packet

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"

	log "github.com/sirupsen/logrus"
)

const (
	HeaderSize = 2
	TailSize   = 12
	PadSize    = 4
	MinSize    = HeaderSize + TailSize
	MaxSize    = HeaderSize + TailSize + PadSize
)

var (
	ErrShortPacket = errors.New("packet too short")
	ErrLongPacket  = errors.New("packet too long")
	ErrDecrypt     = errors.New("packet decrypt failed")
	ErrNoKey       = errors.New("encrypted packet but no key configured")
)

// Packet は1つの入力イベントを運ぶ
type Packet struct {
	ClientIndex uint8
	EncLen      uint8
	Nonce       uint32
	Type        uint16
	Code        uint16
	Value       int32
}

func (p Packet) String() string {
	return fmt.Sprintf("client=%d enc=%d type=%d code=%d value=%d", p.ClientIndex, p.EncLen, p.Type, p.Code, p.Value)
}

var nonceSource io.Reader = rand.Reader

// NewNonce は暗号文を毎回変えるための乱数を返す。
// crypto/rand が使えない場合は警告を出して math/rand にフォールバックする。
func NewNonce() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(nonceSource, b[:]); err != nil {
		log.Warnf("乱数の取得に失敗しました。代替の乱数を使用します: %v", err)
		return mrand.Uint32()
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (p Packet) tail() []byte {
	b := make([]byte, TailSize)
	binary.LittleEndian.PutUint32(b[0:], p.Nonce)
	binary.LittleEndian.PutUint16(b[4:], p.Type)
	binary.LittleEndian.PutUint16(b[6:], p.Code)
	binary.LittleEndian.PutUint32(b[8:], uint32(p.Value))
	return b
}

func (p *Packet) setTail(b []byte) {
	p.Nonce = binary.LittleEndian.Uint32(b[0:])
	p.Type = binary.LittleEndian.Uint16(b[4:])
	p.Code = binary.LittleEndian.Uint16(b[6:])
	p.Value = int32(binary.LittleEndian.Uint32(b[8:]))
}

// Encode はパケットを送信用のバイト列にする。
// key が空なら平文 (MinSize バイト)、そうでなければ末尾を暗号化する。
// p.EncLen は無視され、実際の暗号文長が書き込まれる。
func Encode(p Packet, key []byte) ([]byte, error) {
	tail := p.tail()
	if len(key) == 0 {
		out := make([]byte, MinSize)
		out[0] = p.ClientIndex
		out[1] = 0
		copy(out[HeaderSize:], tail)
		return out, nil
	}

	enc := xxteaEncrypt(tail, key)
	if len(enc) > TailSize+PadSize {
		return nil, fmt.Errorf("暗号文が長すぎます: %d", len(enc))
	}
	out := make([]byte, HeaderSize+len(enc))
	out[0] = p.ClientIndex
	out[1] = uint8(len(enc))
	copy(out[HeaderSize:], enc)
	return out, nil
}

// PeekClient は復号せずに宛先のクライアント番号を返す
func PeekClient(data []byte) (uint8, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	return data[0], true
}

// Decode は受信データをパケットに戻す。
// 長さ不正や復号失敗はエラーになり、パニックすることはない。
func Decode(data, key []byte) (Packet, error) {
	var p Packet
	if len(data) < MinSize {
		return p, ErrShortPacket
	}
	if len(data) > MaxSize {
		return p, ErrLongPacket
	}
	p.ClientIndex = data[0]
	p.EncLen = data[1]

	if p.EncLen == 0 {
		p.setTail(data[HeaderSize:MinSize])
		return p, nil
	}

	if len(key) == 0 {
		return p, ErrNoKey
	}
	encLen := int(p.EncLen)
	if encLen%4 != 0 || encLen < 8 || HeaderSize+encLen > len(data) {
		return p, fmt.Errorf("%w: encLen=%d size=%d", ErrDecrypt, encLen, len(data))
	}
	plain, err := xxteaDecrypt(data[HeaderSize:HeaderSize+encLen], key)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(plain) != TailSize {
		return p, fmt.Errorf("%w: revealed %d bytes", ErrDecrypt, len(plain))
	}
	p.setTail(plain)
	return p, nil
}
