// pkg/types/common.go
package types

import "encoding/base64"

// Hash 代表整库摘要 (sha2-512/256 Hex String, 64 字符)
// 它同时是数据库在存储层的内容寻址键。
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }
func (h Hash) IsValid() bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// Algo 是文件内容摘要算法的规范名称
// 两种算法互为交叉校验，而不是彼此的替代品。
type Algo string

const (
	AlgoSHA2    Algo = "sha2-512/256"
	AlgoBlake2b Algo = "blake2b"
)

func (a Algo) String() string { return string(a) }

func (a Algo) Known() bool {
	return a == AlgoSHA2 || a == AlgoBlake2b
}

// Digest 是单个文件的内容摘要 (256-bit, Base64 编码, 恒为 44 字符)
type Digest string

func (d Digest) String() string { return string(d) }

// IsValid 校验编码长度与字母表
// 44 字符的标准 Base64 必须能还原出恰好 32 字节。
func (d Digest) IsValid() bool {
	if len(d) != 44 {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(string(d))
	return err == nil && len(raw) == 32
}

// EncodeDigest 把 32 字节的原始摘要编码为 Digest
func EncodeDigest(raw []byte) Digest {
	return Digest(base64.StdEncoding.EncodeToString(raw))
}
