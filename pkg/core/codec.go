package core

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"fsvault/pkg/types"
)

// 数据库整库摘要固定使用 sha2-512/256
// 信封里带 alg 字段是为了给未来的算法升级留路径，当前只接受这一个值。
const DatabaseAlgo = types.AlgoSHA2

const databaseVersion = 1

// 线格式里每个目录占两层 CBOR 嵌套（类型标签 Map + children Map），
// 叶子与信封再各占两层。编码侧按目录链深度设限，解码侧的
// MaxNestedLevels 必须容得下这里能产出的最深结构。
const maxDirDepth = 30000

// 定义规范化编码选项
// 同一棵树无论构建顺序如何，必须编码出唯一的字节序列，
// 否则整库摘要就不可复现。
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证结构相同的树生成完全相同的字节
	Sort: cbor.SortCanonical,

	// 2. 禁止不定长编码 (Indefinite Length)
	// 同一个 Map 只允许一种头部写法
	IndefLength: cbor.IndefLengthForbidden,

	// 3. 浮点与时间在本格式中不出现，显式禁用自动 Tag
	ShortestFloat: cbor.ShortestFloatNone,
	Time:          cbor.TimeUnix,
	TimeTag:       cbor.EncTagNone,

	// 4. 大整数使用最短编码
	BigIntConvert: cbor.BigIntConvertShortest,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

// 定义严格解码选项
// 【关键】模式封闭是防篡改故事的一部分：校验和覆盖不到的
// “多余数据”没有任何藏身之处，未知字段一律是解码错误。
var decOptions = cbor.DecOptions{
	// --- 安全性配置 (防 DoS) ---
	// 单个目录允许很大（百万级条目）；嵌套上限与编码侧的
	// maxDirDepth 对齐：Encode 能合法产出的任何树都必须能解回来。
	MaxArrayElements: 10000,
	MaxMapPairs:      1 << 20,
	MaxNestedLevels:  65535,

	// --- 规范性配置 ---
	// 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,

	// 重复 Map Key 直接报错
	DupMapKey: cbor.DupMapKeyEnforcedAPF,

	// 未知字段直接报错（模式封闭）
	ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,

	// 禁止自动解析 Bignum Tag
	BignumTag: cbor.BignumTagForbidden,

	// 时间 Tag 一律忽略，由结构体类型决定
	TimeTag: cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// -----------------------------------------------------------------------------
// 线格式 (wire format)
// -----------------------------------------------------------------------------

// wireNode 是节点的外部标签联合表示：
// 每个节点在线上是一个单键 Map，键名即类型标签。
//
//	{"Directory": {名字: 节点, ...}}
//	{"File": {"size": N, "sha2-512/256"?: S44, "blake2b"?: S44, "nul"?: B, "nonascii"?: B}}
//	{"Unsupported": {"kind": K}}
//	{"Unreadable": {"op": O}}
type wireNode struct {
	Directory map[string]*wireNode `cbor:"Directory,omitempty"`
	File      *wireFile            `cbor:"File,omitempty"`
	Unsupp    *wireUnsupported     `cbor:"Unsupported,omitempty"`
	Unread    *wireUnreadable      `cbor:"Unreadable,omitempty"`
}

type wireFile struct {
	Size     *uint64 `cbor:"size"`
	Sha2     *string `cbor:"sha2-512/256,omitempty"`
	Blake2b  *string `cbor:"blake2b,omitempty"`
	Nul      *bool   `cbor:"nul,omitempty"`
	NonASCII *bool   `cbor:"nonascii,omitempty"`
}

type wireUnsupported struct {
	EntryKind string `cbor:"kind"`
}

type wireUnreadable struct {
	Op string `cbor:"op"`
}

// MarshalCBOR 实现自定义序列化：单键 Map，键为类型标签
// 不能依赖结构体默认编码：空目录的 children 是空 Map，
// omitempty 会把它丢掉，整个节点就没了标签。
func (n *wireNode) MarshalCBOR() ([]byte, error) {
	switch {
	case n.Directory != nil:
		return em.Marshal(map[string]map[string]*wireNode{"Directory": n.Directory})
	case n.File != nil:
		return em.Marshal(map[string]*wireFile{"File": n.File})
	case n.Unsupp != nil:
		return em.Marshal(map[string]*wireUnsupported{"Unsupported": n.Unsupp})
	case n.Unread != nil:
		return em.Marshal(map[string]*wireUnreadable{"Unreadable": n.Unread})
	}
	return nil, schemaErrf("node carries no tag")
}

// wireEnvelope 是数据库信封：整库摘要 + 规范化的树字节
// sum 只覆盖 tree 的字节，不覆盖信封头；头部字段靠版本与算法
// 检查兜底。
type wireEnvelope struct {
	Version int             `cbor:"v"`
	Algo    string          `cbor:"alg"`
	Sum     []byte          `cbor:"sum"`
	Tree    cbor.RawMessage `cbor:"tree"`
}

// -----------------------------------------------------------------------------
// 编码
// -----------------------------------------------------------------------------

// Encoded 是一个密封的数据库：规范字节和它的整库摘要
// 摘要（的 Hex 形式）同时是存储层的内容寻址键。
type Encoded struct {
	hash types.Hash
	raw  []byte
}

func (e *Encoded) ID() types.Hash { return e.hash }
func (e *Encoded) Bytes() []byte  { return e.raw }

// Encode 把快照序列化为带整库摘要的数据库
// 步骤：
//  1. 树 -> 规范 CBOR 字节（Map Key 排序，结果唯一）
//  2. 对树字节计算 sha2-512/256
//  3. 摘要 + 树字节 -> 信封
func Encode(s *Snapshot) (*Encoded, error) {
	if d := dirDepth(s.root); d > maxDirDepth {
		return nil, fmt.Errorf("tree is %d directories deep, encodable limit is %d", d, maxDirDepth)
	}

	treeBytes, err := em.Marshal(toWire(s.root))
	if err != nil {
		return nil, err
	}

	sum := sha512.Sum512_256(treeBytes)

	raw, err := em.Marshal(&wireEnvelope{
		Version: databaseVersion,
		Algo:    string(DatabaseAlgo),
		Sum:     sum[:],
		Tree:    treeBytes,
	})
	if err != nil {
		return nil, err
	}

	return &Encoded{
		hash: types.Hash(hex.EncodeToString(sum[:])),
		raw:  raw,
	}, nil
}

// dirDepth 返回目录链的最大深度，根目录算第 1 层
func dirDepth(d *Dir) int {
	deepest := 0
	for _, child := range d.children {
		if sub, ok := child.(*Dir); ok {
			if n := dirDepth(sub); n > deepest {
				deepest = n
			}
		}
	}
	return deepest + 1
}

func toWire(n Node) *wireNode {
	switch v := n.(type) {
	case *Dir:
		children := make(map[string]*wireNode, v.Len())
		for name, child := range v.children {
			children[name] = toWire(child)
		}
		return &wireNode{Directory: children}
	case *File:
		size := uint64(v.size)
		wf := &wireFile{
			Size:     &size,
			Nul:      v.nul,
			NonASCII: v.nonASCII,
		}
		if d, ok := v.Digest(types.AlgoSHA2); ok {
			s := string(d)
			wf.Sha2 = &s
		}
		if d, ok := v.Digest(types.AlgoBlake2b); ok {
			s := string(d)
			wf.Blake2b = &s
		}
		return &wireNode{File: wf}
	case *Unsupported:
		return &wireNode{Unsupp: &wireUnsupported{EntryKind: string(v.entry)}}
	case *Unreadable:
		return &wireNode{Unread: &wireUnreadable{Op: string(v.op)}}
	}
	// Node 是封闭联合，走不到这里
	return nil
}

// -----------------------------------------------------------------------------
// 解码
// -----------------------------------------------------------------------------

// Decode 加载并校验一个数据库
//
// 校验次序固定，这是加载操作的契约：
//  1. 结构校验（信封形状、版本、算法、每个节点的模式）
//     任何违例 -> ErrSchemaViolation
//  2. 对读到的树字节重新计算整库摘要，与信封中的值比较
//     不一致 -> ErrChecksumMismatch
//
// 【关键】摘要永远重新计算，绝不信任存储中的原话；两种失败都是
// 终态，任何情况下都不会返回“部分可信”的数据库。
func Decode(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, schemaErrf("empty database")
	}

	// 1. 信封结构
	var env wireEnvelope
	if err := dm.Unmarshal(data, &env); err != nil {
		return nil, schemaErrf("envelope: %v", err)
	}
	if env.Version != databaseVersion {
		return nil, schemaErrf("unsupported database version %d", env.Version)
	}
	if types.Algo(env.Algo) != DatabaseAlgo {
		return nil, schemaErrf("unsupported database digest algorithm %q", env.Algo)
	}
	if len(env.Sum) != sha512.Size256 {
		return nil, schemaErrf("database digest must be %d bytes, got %d", sha512.Size256, len(env.Sum))
	}
	if len(env.Tree) == 0 {
		return nil, schemaErrf("missing tree payload")
	}

	// 2. 树结构（严格模式：未知字段、重复 Key、不定长编码都报错）
	var rootWire wireNode
	if err := dm.Unmarshal(env.Tree, &rootWire); err != nil {
		return nil, schemaErrf("tree: %v", err)
	}
	if rootWire.Directory == nil {
		return nil, schemaErrf("root node must be tagged Directory")
	}
	root, err := fromWire(&rootWire)
	if err != nil {
		return nil, err
	}

	// 3. 整库摘要（结构都合法之后才比较，常数时间）
	sum := sha512.Sum512_256(env.Tree)
	if subtle.ConstantTimeCompare(sum[:], env.Sum) != 1 {
		return nil, ErrChecksumMismatch
	}

	return NewSnapshot(root.(*Dir))
}

func fromWire(wn *wireNode) (Node, error) {
	tags := 0
	if wn.Directory != nil {
		tags++
	}
	if wn.File != nil {
		tags++
	}
	if wn.Unsupp != nil {
		tags++
	}
	if wn.Unread != nil {
		tags++
	}
	if tags != 1 {
		return nil, schemaErrf("node must carry exactly one tag, got %d", tags)
	}

	switch {
	case wn.Directory != nil:
		children := make(map[string]Node, len(wn.Directory))
		for name, childWire := range wn.Directory {
			if childWire == nil {
				return nil, schemaErrf("entry %q: node must be a map", name)
			}
			child, err := fromWire(childWire)
			if err != nil {
				return nil, err
			}
			children[name] = child
		}
		dir, err := NewDir(children)
		if err != nil {
			return nil, schemaErrf("%v", err)
		}
		return dir, nil

	case wn.File != nil:
		wf := wn.File
		if wf.Size == nil {
			return nil, schemaErrf("file missing required size")
		}
		if *wf.Size > math.MaxInt64 {
			return nil, schemaErrf("file size %d overflows", *wf.Size)
		}
		digests := make(map[types.Algo]types.Digest)
		if wf.Sha2 != nil {
			digests[types.AlgoSHA2] = types.Digest(*wf.Sha2)
		}
		if wf.Blake2b != nil {
			digests[types.AlgoBlake2b] = types.Digest(*wf.Blake2b)
		}
		f, err := NewFile(int64(*wf.Size), digests, wf.Nul, wf.NonASCII)
		if err != nil {
			return nil, schemaErrf("%v", err)
		}
		return f, nil

	case wn.Unsupp != nil:
		u, err := NewUnsupported(EntryKind(wn.Unsupp.EntryKind))
		if err != nil {
			return nil, schemaErrf("%v", err)
		}
		return u, nil

	default:
		u, err := NewUnreadable(FailedOp(wn.Unread.Op))
		if err != nil {
			return nil, schemaErrf("%v", err)
		}
		return u, nil
	}
}
