package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsvault/pkg/types"
)

// buildRichSnapshot 覆盖全部四种节点与三态标志的组合
func buildRichSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	link, err := NewUnsupported(EntrySymlink)
	require.NoError(t, err)
	bad, err := NewUnreadable(OpOpen)
	require.NoError(t, err)

	return mustSnapshot(t, map[string]Node{
		"aaaa.txt": mustHashedFile(t, 1000, "content-a"),
		"plain.bin": mustFile(t, 7, map[types.Algo]types.Digest{
			types.AlgoSHA2: mockDigest("only-sha2"),
		}, boolPtr(true), nil),
		"unhashed": mustFile(t, 0, nil, nil, nil),
		"empty":    mustDir(t, nil),
		"sub": mustDir(t, map[string]Node{
			"link": link,
			"bad":  bad,
		}),
	})
}

func TestEncode_Deterministic(t *testing.T) {
	// 同一棵树构建两次（map 插入顺序天然随机），编码必须逐字节一致
	s1 := buildRichSnapshot(t)
	s2 := buildRichSnapshot(t)

	e1 := mustEncode(t, s1)
	e2 := mustEncode(t, s2)

	assert.Equal(t, e1.Bytes(), e2.Bytes())
	assert.Equal(t, e1.ID(), e2.ID())
	assert.True(t, e1.ID().IsValid(), "整库摘要应是 64 字符 hex")
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := buildRichSnapshot(t)
	enc := mustEncode(t, s)

	decoded, err := Decode(enc.Bytes())
	require.NoError(t, err)

	// 结构相等：所有节点、摘要、三态标志逐一还原
	assert.Equal(t, s, decoded)

	// 再编码必须得到同样的字节与同样的整库摘要
	re := mustEncode(t, decoded)
	assert.Equal(t, enc.Bytes(), re.Bytes())
	assert.Equal(t, enc.ID(), re.ID())
}

func TestEncodeDecode_EmptyRoot(t *testing.T) {
	// 空目录必须能在线上存活（单键 {"Directory": {}}，不能被 omitempty 吞掉）
	s := mustSnapshot(t, nil)
	enc := mustEncode(t, s)

	decoded, err := Decode(enc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Root().Len())
}

// chainDir 造一条 depth 层深的目录链，最底层放一个文件
func chainDir(t *testing.T, depth int) *Dir {
	t.Helper()
	var node Node = mustDir(t, map[string]Node{
		"leaf.txt": mustHashedFile(t, 3, "deep"),
	})
	for i := 1; i < depth; i++ {
		node = mustDir(t, map[string]Node{"d": node})
	}
	return node.(*Dir)
}

func TestEncodeDecode_DeepTree(t *testing.T) {
	// 每层目录在线上占两层 CBOR 嵌套，几百层深的树必须能完整走一个来回
	snap, err := NewSnapshot(chainDir(t, 300))
	require.NoError(t, err)

	enc := mustEncode(t, snap)
	decoded, err := Decode(enc.Bytes())
	require.NoError(t, err)

	re := mustEncode(t, decoded)
	assert.Equal(t, enc.Bytes(), re.Bytes())
	assert.Equal(t, enc.ID(), re.ID())
}

func TestEncode_RejectsExcessiveDepth(t *testing.T) {
	// 超过编码上限的树在 Encode 就得拦下来，
	// 绝不能写出一个自己都解不回来的数据库
	snap, err := NewSnapshot(chainDir(t, maxDirDepth+1))
	require.NoError(t, err)

	_, err = Encode(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directories deep")
}

func TestDecode_ChecksumMismatch_ContentFlip(t *testing.T) {
	s := buildRichSnapshot(t)
	enc := mustEncode(t, s)

	// 翻转文件名里的一个字节：结构仍然合法，摘要必须抓住它
	raw := bytes.Clone(enc.Bytes())
	idx := bytes.Index(raw, []byte("aaaa.txt"))
	require.GreaterOrEqual(t, idx, 0)
	raw[idx] ^= 0x01

	_, err := Decode(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecode_ChecksumMismatch_SumFlip(t *testing.T) {
	s := buildRichSnapshot(t)
	treeBytes, err := em.Marshal(toWire(s.Root()))
	require.NoError(t, err)

	db := mustRawDB(t, treeBytes)
	// 破坏存储的 sum 本身：重新计算的值对不上存储值，同样是篡改
	idx := bytes.Index(db, []byte("sum"))
	require.GreaterOrEqual(t, idx, 0)
	db[idx+4] ^= 0xFF

	_, err = Decode(db)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecode_AnySingleByteFlipFails(t *testing.T) {
	// 穷举：翻转编码里的任何一个字节，解码必须失败，
	// 失败种类只能是两种致命错误之一，绝不能成功。
	enc := mustEncode(t, mustSnapshot(t, map[string]Node{
		"f.txt": mustHashedFile(t, 42, "f"),
	}))

	for i := range enc.Bytes() {
		raw := bytes.Clone(enc.Bytes())
		raw[i] ^= 0xFF

		_, err := Decode(raw)
		require.Errorf(t, err, "翻转第 %d 字节后解码居然成功", i)
		require.Truef(t,
			errors.Is(err, ErrSchemaViolation) || errors.Is(err, ErrChecksumMismatch),
			"翻转第 %d 字节: 意外的错误种类 %v", i, err)
	}
}

func TestDecode_SchemaViolations(t *testing.T) {
	valid44 := string(mockDigest("v"))

	// 每个用例的树字节都配上“正确”的 sum：
	// 结构校验必须先于摘要比较发生，所以报的必须是 SchemaViolation。
	tests := []struct {
		name string
		tree any
	}{
		{
			name: "File Missing Size",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"File": map[string]any{"sha2-512/256": valid44}},
			}},
		},
		{
			name: "Digest Wrong Length",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"File": map[string]any{"size": uint64(1), "blake2b": "short"}},
			}},
		},
		{
			name: "Digest Bad Alphabet",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"File": map[string]any{"size": uint64(1), "blake2b": strings.Repeat("!", 44)}},
			}},
		},
		{
			name: "Unknown File Property",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"File": map[string]any{"size": uint64(1), "mtime": uint64(99)}},
			}},
		},
		{
			name: "Unknown Node Tag",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"Symlink": map[string]any{}},
			}},
		},
		{
			name: "Two Tags On One Node",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{
					"File":      map[string]any{"size": uint64(1)},
					"Directory": map[string]any{},
				},
			}},
		},
		{
			name: "Tagless Node",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{},
			}},
		},
		{
			name: "Root Is File",
			tree: map[string]any{"File": map[string]any{"size": uint64(1)}},
		},
		{
			name: "Negative Size",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"File": map[string]any{"size": -5}},
			}},
		},
		{
			name: "Size Wrong Type",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"File": map[string]any{"size": "big"}},
			}},
		},
		{
			name: "Unsupported Unknown Kind",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"Unsupported": map[string]any{"kind": "door"}},
			}},
		},
		{
			name: "Unreadable Unknown Op",
			tree: map[string]any{"Directory": map[string]any{
				"a": map[string]any{"Unreadable": map[string]any{"op": "mmap"}},
			}},
		},
		{
			name: "NFC Name Collision",
			tree: map[string]any{"Directory": map[string]any{
				"café":  map[string]any{"File": map[string]any{"size": uint64(1)}},
				"café": map[string]any{"File": map[string]any{"size": uint64(1)}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			treeBytes, err := em.Marshal(tt.tree)
			require.NoError(t, err)

			_, err = Decode(mustRawDB(t, treeBytes))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaViolation)
			assert.NotErrorIs(t, err, ErrChecksumMismatch)
		})
	}
}

func TestDecode_EnvelopeViolations(t *testing.T) {
	treeBytes, err := em.Marshal(toWire(mustDir(t, nil)))
	require.NoError(t, err)

	mustEnvelope := func(t *testing.T, v any) []byte {
		t.Helper()
		raw, err := em.Marshal(v)
		require.NoError(t, err)
		return raw
	}

	validSum := func() []byte {
		db := mustRawDB(t, treeBytes)
		var env wireEnvelope
		require.NoError(t, dm.Unmarshal(db, &env))
		return env.Sum
	}()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "Empty Input", data: nil},
		{name: "Not CBOR", data: []byte("{\"Directory\":{}}")},
		{
			name: "Wrong Version",
			data: mustEnvelope(t, map[string]any{"v": 99, "alg": string(DatabaseAlgo), "sum": validSum, "tree": cbor.RawMessage(treeBytes)}),
		},
		{
			name: "Unknown Algo",
			data: mustEnvelope(t, map[string]any{"v": 1, "alg": "md5", "sum": validSum, "tree": cbor.RawMessage(treeBytes)}),
		},
		{
			name: "Sum Wrong Length",
			data: mustEnvelope(t, map[string]any{"v": 1, "alg": string(DatabaseAlgo), "sum": []byte{1, 2, 3}, "tree": cbor.RawMessage(treeBytes)}),
		},
		{
			name: "Missing Tree",
			data: mustEnvelope(t, map[string]any{"v": 1, "alg": string(DatabaseAlgo), "sum": validSum}),
		},
		{
			name: "Extra Envelope Field",
			data: mustEnvelope(t, map[string]any{"v": 1, "alg": string(DatabaseAlgo), "sum": validSum, "tree": cbor.RawMessage(treeBytes), "note": "x"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestExportJSON(t *testing.T) {
	s := buildRichSnapshot(t)

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, s))

	// 输出必须是合法 JSON，且结构与线格式同构
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Contains(t, decoded, "Directory")

	out := buf.String()
	assert.Contains(t, out, "\"File\"")
	assert.Contains(t, out, "\"Unsupported\"")
	assert.Contains(t, out, "\"Unreadable\"")
	assert.Contains(t, out, "\"sha2-512/256\"")
	assert.Contains(t, out, "\"size\": 1000")
}
