package storage

import (
	"context"
	"errors"
	"io"

	"fsvault/pkg/types"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAmbiguousHash = errors.New("ambiguous hash prefix")
)

// Object 是可以入库的最小单元：一段字节和它的内容寻址键
// core.Encoded（带整库摘要的数据库）天然满足这个接口。
type Object interface {
	ID() types.Hash
	Bytes() []byte
}

// Store defines the interface for a storage backend.
// Implementations can be local disk, cloud storage, or in-memory storage.
type Store interface {
	// Put 将一个对象持久化
	// 内容寻址 + 不可变：同一个 Hash 重复 Put 是幂等的空操作。
	Put(ctx context.Context, obj Object) error

	// Get 根据 Hash 读取原始数据
	// 注意：这里返回的是 io.ReadCloser 而不是 []byte
	// 原因：为了支持大数据库的流式读取 (Stream)，避免一次性全部读进内存
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于幂等写入的预检)
	Has(ctx context.Context, hash types.Hash) (bool, error)

	// ExpandHash 把唯一的短前缀扩展为完整 Hash
	// 找不到返回 ErrNotFound，多于一个候选返回 ErrAmbiguousHash。
	ExpandHash(ctx context.Context, short types.HashPrefix) (types.Hash, error)

	// Delete (可选，暂不实现：数据库是内容寻址的，只增不删)
	// Delete(ctx context.Context, hash types.Hash) error
}
