package commands

import (
	"context"
	"fmt"
	"io"

	"fsvault/pkg/core"
	"fsvault/pkg/types"
)

// resolveDigest 把用户输入解析成一个完整的整库摘要
// 接受三种写法，按序尝试：
//  1. 命名引用 ("LATEST"、用户标签)
//  2. 完整的 64 字符摘要
//  3. 唯一的摘要前缀（至少 4 字符，存储层展开）
func resolveDigest(ctx context.Context, arg string) (types.Hash, error) {
	if h, err := FV.Refs.Get(arg); err == nil {
		return h, nil
	}

	if h := types.Hash(arg); h.IsValid() {
		return h, nil
	}

	full, err := FV.Store.ExpandHash(ctx, types.HashPrefix(arg))
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q to a database: %w", arg, err)
	}
	return full, nil
}

// loadSnapshot 按摘要从存储层加载并校验一个数据库
// 解码即校验：结构不合法或整库摘要对不上都在这里终止。
func loadSnapshot(ctx context.Context, hash types.Hash) (*core.Snapshot, error) {
	reader, err := FV.Store.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve database %s: %w", short(hash), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	snap, err := core.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", short(hash), err)
	}
	return snap, nil
}

// short 摘要的展示用短形式
func short(h types.Hash) string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
