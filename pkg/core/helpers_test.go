package core

import (
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"

	"fsvault/pkg/types"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockDigest 由任意输入生成一个合法的 44 字符摘要
func mockDigest(input string) types.Digest {
	sum := sha512.Sum512_256([]byte(input))
	return types.EncodeDigest(sum[:])
}

// boolPtr 三态标志的简写
func boolPtr(b bool) *bool { return &b }

// mustFile 创建文件节点，失败直接终止测试
// 这让主测试代码极其干净
func mustFile(t *testing.T, size int64, digests map[types.Algo]types.Digest, nul, nonASCII *bool) *File {
	t.Helper()
	f, err := NewFile(size, digests, nul, nonASCII)
	require.NoError(t, err)
	return f
}

// mustHashedFile 创建一个双算法、已检测标志的典型文件节点
func mustHashedFile(t *testing.T, size int64, content string) *File {
	t.Helper()
	return mustFile(t, size, map[types.Algo]types.Digest{
		types.AlgoSHA2:    mockDigest("sha2:" + content),
		types.AlgoBlake2b: mockDigest("b2b:" + content),
	}, boolPtr(false), boolPtr(false))
}

func mustDir(t *testing.T, children map[string]Node) *Dir {
	t.Helper()
	d, err := NewDir(children)
	require.NoError(t, err)
	return d
}

func mustSnapshot(t *testing.T, children map[string]Node) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(mustDir(t, children))
	require.NoError(t, err)
	return s
}

// mustEncode 序列化快照，失败直接终止测试
func mustEncode(t *testing.T, s *Snapshot) *Encoded {
	t.Helper()
	enc, err := Encode(s)
	require.NoError(t, err)
	return enc
}

// mustRawDB 用给定的树字节组装一个 sum 正确的数据库
// 专供模式校验测试构造畸形树。
func mustRawDB(t *testing.T, treeBytes []byte) []byte {
	t.Helper()
	sum := sha512.Sum512_256(treeBytes)
	raw, err := em.Marshal(&wireEnvelope{
		Version: databaseVersion,
		Algo:    string(DatabaseAlgo),
		Sum:     sum[:],
		Tree:    treeBytes,
	})
	require.NoError(t, err)
	return raw
}
