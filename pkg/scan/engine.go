package scan

import (
	"context"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"

	"fsvault/pkg/types"
)

// 读缓冲大小
// 单次快照要过成千上万个文件，缓冲太小系统调用风暴，太大浪费内存。
const bufSize = 64 * 1024

// Metrics 是一个文件经过单遍扫描后的全部度量
type Metrics struct {
	Size     int64
	Nul      bool // 内容包含 NUL 字节 (0x00)
	NonASCII bool // 内容包含 >= 0x80 的字节
	Digests  map[types.Algo]types.Digest
}

// Engine 对字节流做单遍多路扫描：
// 所有摘要算法、字节计数、NUL 检测、非 ASCII 检测共享同一次读取。
// 【关键】大文件只读一遍，这是内存与 IO 的硬约束。
type Engine struct {
	algos []types.Algo
}

// New 创建扫描引擎
// algos 允许为空（只量尺寸和标志，不哈希）；算法名必须已知且不重复。
func New(algos []types.Algo) (*Engine, error) {
	seen := make(map[types.Algo]bool, len(algos))
	for _, a := range algos {
		if !a.Known() {
			return nil, fmt.Errorf("unknown digest algorithm %q", a)
		}
		if seen[a] {
			return nil, fmt.Errorf("duplicate digest algorithm %q", a)
		}
		seen[a] = true
	}
	cp := make([]types.Algo, len(algos))
	copy(cp, algos)
	return &Engine{algos: cp}, nil
}

// Default 返回双算法引擎（sha2-512/256 + blake2b 互为交叉校验）
func Default() *Engine {
	e, _ := New([]types.Algo{types.AlgoSHA2, types.AlgoBlake2b})
	return e
}

// Algos 返回引擎配置的算法集
func (e *Engine) Algos() []types.Algo {
	cp := make([]types.Algo, len(e.algos))
	copy(cp, e.algos)
	return cp
}

// Scan 消费整个字节流并产出度量
// 读取错误原样向上传播（由调用方决定如何降级）；
// ctx 取消在每个读循环检查一次，保证超大文件也能及时停下。
func (e *Engine) Scan(ctx context.Context, r io.Reader) (*Metrics, error) {
	hashers := make([]hash.Hash, len(e.algos))
	for i, a := range e.algos {
		h, err := newHasher(a)
		if err != nil {
			return nil, err
		}
		hashers[i] = h
	}

	m := &Metrics{}
	buf := make([]byte, bufSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			m.Size += int64(n)
			for _, h := range hashers {
				// hash.Hash 的 Write 永不返回错误
				h.Write(chunk)
			}
			if !m.Nul || !m.NonASCII {
				scanBytes(chunk, m)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(hashers) > 0 {
		m.Digests = make(map[types.Algo]types.Digest, len(hashers))
		for i, a := range e.algos {
			m.Digests[a] = types.EncodeDigest(hashers[i].Sum(nil))
		}
	}
	return m, nil
}

// scanBytes 在同一块缓冲里找 NUL 和非 ASCII 字节
// 两个标志都命中之后调用方不再进来，避免白扫。
func scanBytes(chunk []byte, m *Metrics) {
	for _, b := range chunk {
		if b == 0x00 {
			m.Nul = true
		} else if b >= 0x80 {
			m.NonASCII = true
		}
		if m.Nul && m.NonASCII {
			return
		}
	}
}

// newHasher 是算法注册表：规范名 -> 哈希实例
func newHasher(a types.Algo) (hash.Hash, error) {
	switch a {
	case types.AlgoSHA2:
		return sha512.New512_256(), nil
	case types.AlgoBlake2b:
		// 无密钥模式下 New256 不会失败
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unknown digest algorithm %q", a)
	}
}

// ParseAlgos 把配置里的算法名列表解析为规范类型
func ParseAlgos(names []string) ([]types.Algo, error) {
	algos := make([]types.Algo, 0, len(names))
	for _, n := range names {
		a := types.Algo(n)
		if !a.Known() {
			return nil, fmt.Errorf("unknown digest algorithm %q (known: %s, %s)", n, types.AlgoSHA2, types.AlgoBlake2b)
		}
		algos = append(algos, a)
	}
	return algos, nil
}
