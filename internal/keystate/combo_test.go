package keystate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesIsSetEquality(t *testing.T) {
	combo := NewSet(keyA, keyB)

	tests := []struct {
		name   string
		active Set
		want   bool
	}{
		{"exact", NewSet(keyA, keyB), true},
		{"reversed order", NewSet(keyB, keyA), true},
		{"scattered slots", Set{keyB, {}, {}, keyA}, true},
		{"subset", NewSet(keyA), false},
		{"superset", NewSet(keyA, keyB, keyC), false},
		{"disjoint", NewSet(keyC, keyD), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.active, combo))
			assert.Equal(t, tt.want, Matches(combo, tt.active))
		})
	}
}

func TestNewSetTruncates(t *testing.T) {
	s := NewSet(keyA, keyB, keyC, keyD, keyE)
	assert.Equal(t, Capacity, s.Len())
	assert.False(t, s.Contains(keyE))
}
