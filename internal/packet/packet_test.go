package packet

import (
	"encoding/binary"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleartextRoundTrip(t *testing.T) {
	in := Packet{ClientIndex: 3, Nonce: 0xdeadbeef, Type: 1, Code: 30, Value: 1}

	data, err := Encode(in, nil)
	require.NoError(t, err)
	assert.Len(t, data, MinSize)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, byte(0), data[1])

	out, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), out.ClientIndex)
	assert.Equal(t, uint8(0), out.EncLen)
	assert.Equal(t, uint16(1), out.Type)
	assert.Equal(t, uint16(30), out.Code)
	assert.Equal(t, int32(1), out.Value)
}

func TestCleartextLayout(t *testing.T) {
	data, err := Encode(Packet{ClientIndex: 1, Nonce: 7, Type: 2, Code: 8, Value: -1}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[2:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[6:]))
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(data[8:]))
	assert.Equal(t, int32(-1), int32(binary.LittleEndian.Uint32(data[10:])))
}

func TestCleartextWithPadding(t *testing.T) {
	data, err := Encode(Packet{ClientIndex: 2, Type: 1, Code: 30}, nil)
	require.NoError(t, err)
	padded := append(data, 0xaa, 0xbb, 0xcc, 0xdd)

	out, err := Decode(padded, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(30), out.Code)
}

func TestEncryptedRoundTrip(t *testing.T) {
	key := []byte("secret")
	in := Packet{ClientIndex: 3, Nonce: NewNonce(), Type: 1, Code: 30, Value: 1}

	data, err := Encode(in, key)
	require.NoError(t, err)
	assert.Len(t, data, MaxSize)
	assert.Equal(t, byte(3), data[0], "client index stays in clear")
	assert.Equal(t, byte(16), data[1])

	out, err := Decode(data, key)
	require.NoError(t, err)
	assert.Equal(t, in.ClientIndex, out.ClientIndex)
	assert.Equal(t, in.Nonce, out.Nonce)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Code, out.Code)
	assert.Equal(t, in.Value, out.Value)
}

func TestNonceChangesCiphertext(t *testing.T) {
	key := []byte("secret")
	a, err := Encode(Packet{ClientIndex: 1, Nonce: 1, Type: 1, Code: 30, Value: 1}, key)
	require.NoError(t, err)
	b, err := Encode(Packet{ClientIndex: 1, Nonce: 2, Type: 1, Code: 30, Value: 1}, key)
	require.NoError(t, err)
	assert.NotEqual(t, a[HeaderSize:], b[HeaderSize:])
}

func TestWrongKeyNeverPanics(t *testing.T) {
	in := Packet{ClientIndex: 3, Nonce: 12345, Type: 1, Code: 30, Value: 1}
	data, err := Encode(in, []byte("right key"))
	require.NoError(t, err)

	for _, wrong := range []string{"wrong key", "x", "right kez", "0123456789abcdefXYZ"} {
		assert.NotPanics(t, func() {
			out, err := Decode(data, []byte(wrong))
			if err == nil {
				assert.NotEqual(t, in, out)
			} else {
				assert.ErrorIs(t, err, ErrDecrypt)
			}
		})
	}
}

func TestKeyTruncatedAtNul(t *testing.T) {
	in := Packet{ClientIndex: 1, Nonce: 9, Type: 1, Code: 2, Value: 0}
	data, err := Encode(in, []byte("abc\x00ignored"))
	require.NoError(t, err)

	out, err := Decode(data, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, in.Code, out.Code)
}

func TestDecodeRejects(t *testing.T) {
	valid, err := Encode(Packet{ClientIndex: 1, Type: 1, Code: 30, Value: 1}, []byte("k"))
	require.NoError(t, err)

	badLen := append([]byte(nil), valid...)
	badLen[1] = 10

	tooLong := append([]byte(nil), valid...)
	tooLong[1] = 20

	tests := []struct {
		name string
		data []byte
		key  []byte
		err  error
	}{
		{"empty", nil, nil, ErrShortPacket},
		{"short", make([]byte, MinSize-1), nil, ErrShortPacket},
		{"oversized", make([]byte, MaxSize+1), nil, ErrLongPacket},
		{"encrypted without key", valid, nil, ErrNoKey},
		{"unaligned encLen", badLen, []byte("k"), ErrDecrypt},
		{"encLen beyond data", tooLong, []byte("k"), ErrDecrypt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.key)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPeekClient(t *testing.T) {
	idx, ok := PeekClient([]byte{5, 0})
	assert.True(t, ok)
	assert.Equal(t, uint8(5), idx)

	_, ok = PeekClient([]byte{5})
	assert.False(t, ok)
}

func TestXXTEAKnownLength(t *testing.T) {
	// 12バイトは長さワードを含めて4ワードになる
	enc := xxteaEncrypt(make([]byte, TailSize), []byte("k"))
	assert.Len(t, enc, 16)

	plain, err := xxteaDecrypt(enc, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, TailSize), plain)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestNewNonceFallback(t *testing.T) {
	orig := nonceSource
	nonceSource = failingReader{}
	defer func() { nonceSource = orig }()
	hook := logtest.NewGlobal()
	defer hook.Reset()

	seen := map[uint32]bool{}
	for i := 0; i < 8; i++ {
		seen[NewNonce()] = true
	}
	assert.Greater(t, len(seen), 1, "nonce must keep changing")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
}
