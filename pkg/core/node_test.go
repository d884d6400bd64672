package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsvault/pkg/types"
)

func TestNewFile_Validation(t *testing.T) {
	valid := mockDigest("x")

	tests := []struct {
		name    string
		size    int64
		digests map[types.Algo]types.Digest
		wantErr string
	}{
		{
			name: "Valid Minimal (unhashed)",
			size: 0,
		},
		{
			name:    "Valid Both Algos",
			size:    1024,
			digests: map[types.Algo]types.Digest{types.AlgoSHA2: valid, types.AlgoBlake2b: valid},
		},
		{
			name:    "Negative Size",
			size:    -1,
			wantErr: "non-negative",
		},
		{
			name:    "Unknown Algorithm",
			size:    1,
			digests: map[types.Algo]types.Digest{types.Algo("md5"): valid},
			wantErr: "unknown digest algorithm",
		},
		{
			name:    "Digest Too Short",
			size:    1,
			digests: map[types.Algo]types.Digest{types.AlgoSHA2: types.Digest("abc")},
			wantErr: "44 base64 chars",
		},
		{
			name:    "Digest Bad Alphabet",
			size:    1,
			digests: map[types.Algo]types.Digest{types.AlgoSHA2: types.Digest(strings.Repeat("!", 44))},
			wantErr: "44 base64 chars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFile(tt.size, tt.digests, nil, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, f.Size())
			assert.Equal(t, KindFile, f.Kind())
		})
	}
}

func TestFile_DigestsAreCopied(t *testing.T) {
	digests := map[types.Algo]types.Digest{types.AlgoSHA2: mockDigest("a")}
	f := mustFile(t, 1, digests, nil, nil)

	// 修改调用方的 map 不应该影响已建成的节点
	digests[types.AlgoSHA2] = mockDigest("b")

	d, ok := f.Digest(types.AlgoSHA2)
	require.True(t, ok)
	assert.Equal(t, mockDigest("a"), d)

	_, ok = f.Digest(types.AlgoBlake2b)
	assert.False(t, ok)
}

func TestFile_TristateFlags(t *testing.T) {
	unknown := mustFile(t, 1, nil, nil, nil)
	_, known := unknown.HasNul()
	assert.False(t, known)
	_, known = unknown.HasNonASCII()
	assert.False(t, known)

	flagged := mustFile(t, 1, nil, boolPtr(true), boolPtr(false))
	v, known := flagged.HasNul()
	assert.True(t, known)
	assert.True(t, v)
	v, known = flagged.HasNonASCII()
	assert.True(t, known)
	assert.False(t, v)
}

func TestFile_AlgosSorted(t *testing.T) {
	f := mustHashedFile(t, 1, "x")
	assert.Equal(t, []types.Algo{types.AlgoBlake2b, types.AlgoSHA2}, f.Algos())

	plain := mustFile(t, 1, nil, nil, nil)
	assert.Nil(t, plain.Algos())
}

func TestNewDir_Validation(t *testing.T) {
	file := mustFile(t, 1, nil, nil, nil)

	t.Run("Empty Dir OK", func(t *testing.T) {
		d := mustDir(t, nil)
		assert.Equal(t, 0, d.Len())
		assert.Equal(t, KindDir, d.Kind())
	})

	t.Run("Empty Name Rejected", func(t *testing.T) {
		_, err := NewDir(map[string]Node{"": file})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("Nil Child Rejected", func(t *testing.T) {
		_, err := NewDir(map[string]Node{"a": nil})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil node")
	})

	t.Run("NFC Collision Rejected", func(t *testing.T) {
		// "é" 的两种写法：预组合 U+00E9 与组合序列 U+0065 U+0301
		nfc := "café"
		nfd := "café"
		require.NotEqual(t, nfc, nfd)

		_, err := NewDir(map[string]Node{nfc: file, nfd: file})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "normalize to the same name")
	})
}

func TestDir_NamesSorted(t *testing.T) {
	d := mustDir(t, map[string]Node{
		"zebra": mustFile(t, 1, nil, nil, nil),
		"alpha": mustFile(t, 2, nil, nil, nil),
		"mango": mustDir(t, nil),
	})
	assert.Equal(t, []string{"alpha", "mango", "zebra"}, d.Names())

	child, ok := d.Child("alpha")
	require.True(t, ok)
	assert.Equal(t, KindFile, child.Kind())

	_, ok = d.Child("missing")
	assert.False(t, ok)
}

func TestNewUnsupported_KindClosed(t *testing.T) {
	u, err := NewUnsupported(EntrySymlink)
	require.NoError(t, err)
	assert.Equal(t, EntrySymlink, u.Entry())

	_, err = NewUnsupported(EntryKind("door"))
	require.Error(t, err)
}

func TestNewUnreadable_OpClosed(t *testing.T) {
	u, err := NewUnreadable(OpRead)
	require.NoError(t, err)
	assert.Equal(t, OpRead, u.Op())

	_, err = NewUnreadable(FailedOp("mmap"))
	require.Error(t, err)
}

func TestSnapshot_Stats(t *testing.T) {
	unreadable, err := NewUnreadable(OpOpen)
	require.NoError(t, err)
	symlink, err := NewUnsupported(EntrySymlink)
	require.NoError(t, err)

	s := mustSnapshot(t, map[string]Node{
		"a.txt": mustFile(t, 100, nil, nil, nil),
		"sub": mustDir(t, map[string]Node{
			"b.bin": mustFile(t, 900, nil, nil, nil),
			"link":  symlink,
			"bad":   unreadable,
		}),
	})

	st := s.Stats()
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 2, st.Dirs) // 根目录 + sub
	assert.Equal(t, 1, st.Unsupported)
	assert.Equal(t, 1, st.Unreadable)
	assert.Equal(t, int64(1000), st.TotalBytes)
}
