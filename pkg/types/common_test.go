package types

import (
	"crypto/sha512"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Hash
		want  bool
	}{
		{
			name:  "Valid Hash (64 hex chars)",
			input: Hash(strings.Repeat("a0", 32)),
			want:  true,
		},
		{
			name:  "Too Short",
			input: Hash("abc"),
			want:  false,
		},
		{
			name:  "Empty",
			input: Hash(""),
			want:  false,
		},
		{
			name:  "Too Long",
			input: Hash(strings.Repeat("a", 65)),
			want:  false,
		},
		{
			name:  "Uppercase Rejected",
			input: Hash(strings.Repeat("A", 64)),
			want:  false,
		},
		{
			name:  "Non-Hex Rejected",
			input: Hash(strings.Repeat("z", 64)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestDigest_IsValid(t *testing.T) {
	sum := sha512.Sum512_256([]byte("hello"))
	valid := EncodeDigest(sum[:])

	tests := []struct {
		name  string
		input Digest
		want  bool
	}{
		{
			name:  "Valid Digest (44 base64 chars)",
			input: valid,
			want:  true,
		},
		{
			name:  "Empty",
			input: Digest(""),
			want:  false,
		},
		{
			name:  "Wrong Length",
			input: Digest("abc"),
			want:  false,
		},
		{
			name:  "Right Length, Bad Alphabet",
			input: Digest(strings.Repeat("!", 44)),
			want:  false,
		},
		{
			name:  "Right Length, Bad Padding",
			input: Digest(strings.Repeat("=", 44)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestEncodeDigest_Length(t *testing.T) {
	sum := sha512.Sum512_256([]byte("any content"))
	d := EncodeDigest(sum[:])
	assert.Len(t, string(d), 44)
	assert.True(t, d.IsValid())
}

func TestAlgo_Known(t *testing.T) {
	assert.True(t, AlgoSHA2.Known())
	assert.True(t, AlgoBlake2b.Known())
	assert.False(t, Algo("md5").Known())
	assert.False(t, Algo("").Known())
}
