package packet

import (
	"encoding/binary"
	"errors"
)

const delta = 0x9e3779b9

var errXXTEALength = errors.New("xxtea: invalid length")

// xxteaKey はパスフレーズを16バイトの鍵に変換する。
// 16バイトを超える分は切り捨て、最初の NUL 以降はゼロで埋める。
func xxteaKey(passphrase []byte) [4]uint32 {
	var raw [16]byte
	for i := 0; i < len(raw) && i < len(passphrase); i++ {
		if passphrase[i] == 0 {
			break
		}
		raw[i] = passphrase[i]
	}
	var k [4]uint32
	for i := range k {
		k[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return k
}

// bytesToWords はデータをリトルエンディアンの32bitワード列に変換する。
// withLength が真なら末尾に元のバイト長を追加する。
func bytesToWords(data []byte, withLength bool) []uint32 {
	n := (len(data) + 3) / 4
	size := n
	if withLength {
		size++
	}
	v := make([]uint32, size)
	padded := make([]byte, n*4)
	copy(padded, data)
	for i := 0; i < n; i++ {
		v[i] = binary.LittleEndian.Uint32(padded[i*4:])
	}
	if withLength {
		v[n] = uint32(len(data))
	}
	return v
}

func wordsToBytes(v []uint32) []byte {
	out := make([]byte, len(v)*4)
	for i, w := range v {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func mx(sum, y, z uint32, p, e uint32, k *[4]uint32) uint32 {
	return ((z>>5 ^ y<<2) + (y>>3 ^ z<<4)) ^ ((sum ^ y) + (k[(p&3)^e] ^ z))
}

func encryptWords(v []uint32, k *[4]uint32) {
	n := uint32(len(v))
	if n < 2 {
		return
	}
	last := n - 1
	z := v[last]
	var sum uint32
	for q := 6 + 52/n; q > 0; q-- {
		sum += delta
		e := sum >> 2 & 3
		var p uint32
		for p = 0; p < last; p++ {
			y := v[p+1]
			v[p] += mx(sum, y, z, p, e, k)
			z = v[p]
		}
		y := v[0]
		v[last] += mx(sum, y, z, p, e, k)
		z = v[last]
	}
}

func decryptWords(v []uint32, k *[4]uint32) {
	n := uint32(len(v))
	if n < 2 {
		return
	}
	last := n - 1
	y := v[0]
	q := 6 + 52/n
	sum := q * delta
	for ; sum != 0; sum -= delta {
		e := sum >> 2 & 3
		var p uint32
		for p = last; p > 0; p-- {
			z := v[p-1]
			v[p] -= mx(sum, y, z, p, e, k)
			y = v[p]
		}
		z := v[last]
		v[0] -= mx(sum, y, z, p, e, k)
		y = v[0]
	}
}

// xxteaEncrypt は data を暗号化する。出力は元の長さを含むため4の倍数で最大4バイト伸びる。
func xxteaEncrypt(data, passphrase []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	k := xxteaKey(passphrase)
	v := bytesToWords(data, true)
	encryptWords(v, &k)
	return wordsToBytes(v)
}

// xxteaDecrypt は xxteaEncrypt の逆変換。埋め込まれた長さが不整合なら失敗する。
func xxteaDecrypt(data, passphrase []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%4 != 0 || len(data) < 8 {
		return nil, errXXTEALength
	}
	k := xxteaKey(passphrase)
	v := bytesToWords(data, false)
	decryptWords(v, &k)

	n := uint32(len(v)-1) * 4
	m := v[len(v)-1]
	if m < n-3 || m > n {
		return nil, errXXTEALength
	}
	return wordsToBytes(v[:len(v)-1])[:m], nil
}
