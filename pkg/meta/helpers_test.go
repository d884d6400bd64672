package meta

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"fsvault/pkg/core"
	"fsvault/pkg/types"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// 注意：文件名必须以 _test.go 结尾，否则会被编译进生产代码！
// -----------------------------------------------------------------------------

// mockHash 生成合法的测试用整库摘要
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// mockDigest 生成合法的测试用文件摘要 (44 字符 Base64)
func mockDigest(input string) types.Digest {
	sum := sha256.Sum256([]byte(input))
	return types.Digest(base64.StdEncoding.EncodeToString(sum[:]))
}

// mustFile 创建文件节点，如果失败直接终止测试
// 这让主测试代码极其干净
func mustFile(t *testing.T, size int64, content string) *core.File {
	t.Helper()
	f, err := core.NewFile(size, map[types.Algo]types.Digest{
		types.AlgoSHA2:    mockDigest("sha2:" + content),
		types.AlgoBlake2b: mockDigest("b2:" + content),
	}, nil, nil)
	require.NoError(t, err)
	return f
}

// mustSnapshot 把 name -> Node 包装成快照，失败则终止
func mustSnapshot(t *testing.T, children map[string]core.Node) *core.Snapshot {
	t.Helper() // 关键：报错时回溯栈帧
	root, err := core.NewDir(children)
	require.NoError(t, err)
	s, err := core.NewSnapshot(root)
	require.NoError(t, err)
	return s
}
