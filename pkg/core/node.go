package core

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"fsvault/pkg/types"
)

// Kind 定义了快照树中的节点类型
type Kind string

const (
	KindFile        Kind = "file"        // 普通文件（带度量）
	KindDir         Kind = "dir"         // 目录（持有子节点）
	KindUnsupported Kind = "unsupported" // 非文件非目录的条目（符号链接、设备等）
	KindUnreadable  Kind = "unreadable"  // 读取失败的条目（哨兵叶子）
)

// Node 是快照树的节点接口
// 它是一个封闭联合：一个节点恰好是四种类型之一，构造函数是
// 唯一入口，建成之后不可变。比较与编码因此不需要任何锁。
type Node interface {
	Kind() Kind

	// sealed 防止包外类型混入联合
	sealed()
}

// -----------------------------------------------------------------------------
// File
// -----------------------------------------------------------------------------

// File 记录一个普通文件在快照时刻的度量
// digests 允许为空（表示“未哈希”），允许只有一种算法。
// nul / nonASCII 是三态：nil 表示快照时未检测。
type File struct {
	size     int64
	digests  map[types.Algo]types.Digest
	nul      *bool
	nonASCII *bool
}

// NewFile 构造文件节点
// 校验规则：size 非负；算法名必须已知；摘要必须是合法的 44 字符编码。
func NewFile(size int64, digests map[types.Algo]types.Digest, nul, nonASCII *bool) (*File, error) {
	if size < 0 {
		return nil, fmt.Errorf("file size must be non-negative, got %d", size)
	}
	var copied map[types.Algo]types.Digest
	if len(digests) > 0 {
		copied = make(map[types.Algo]types.Digest, len(digests))
		for algo, d := range digests {
			if !algo.Known() {
				return nil, fmt.Errorf("unknown digest algorithm %q", algo)
			}
			if !d.IsValid() {
				return nil, fmt.Errorf("algorithm %q: digest must be 44 base64 chars, got %q", algo, d)
			}
			copied[algo] = d
		}
	}
	return &File{
		size:     size,
		digests:  copied,
		nul:      copyBool(nul),
		nonASCII: copyBool(nonASCII),
	}, nil
}

func (f *File) Kind() Kind  { return KindFile }
func (f *File) sealed()     {}
func (f *File) Size() int64 { return f.size }

// Digest 返回指定算法的摘要，ok=false 表示该算法未记录
func (f *File) Digest(algo types.Algo) (types.Digest, bool) {
	d, ok := f.digests[algo]
	return d, ok
}

// Algos 返回已记录摘要的算法名，按名称排序
func (f *File) Algos() []types.Algo {
	if len(f.digests) == 0 {
		return nil
	}
	algos := make([]types.Algo, 0, len(f.digests))
	for a := range f.digests {
		algos = append(algos, a)
	}
	sort.Slice(algos, func(i, j int) bool { return algos[i] < algos[j] })
	return algos
}

// HasNul 返回 (值, 是否已检测)
func (f *File) HasNul() (bool, bool) {
	if f.nul == nil {
		return false, false
	}
	return *f.nul, true
}

// HasNonASCII 返回 (值, 是否已检测)
func (f *File) HasNonASCII() (bool, bool) {
	if f.nonASCII == nil {
		return false, false
	}
	return *f.nonASCII, true
}

// -----------------------------------------------------------------------------
// Dir
// -----------------------------------------------------------------------------

// Dir 是目录节点，持有 name -> Node 的子节点映射
// map 语义天然排除重名；此外任何两个名字不允许 NFC 规范化后相同，
// 否则两份“结构相同”的快照可能编码出不同的字节。
type Dir struct {
	children map[string]Node
}

// NewDir 构造目录节点（children 可以为 nil，表示空目录）
func NewDir(children map[string]Node) (*Dir, error) {
	copied := make(map[string]Node, len(children))
	seen := make(map[string]string, len(children))
	for name, child := range children {
		if name == "" {
			return nil, fmt.Errorf("directory entry name must not be empty")
		}
		if child == nil {
			return nil, fmt.Errorf("directory entry %q has nil node", name)
		}
		nfc := norm.NFC.String(name)
		if prev, dup := seen[nfc]; dup {
			return nil, fmt.Errorf("entries %q and %q normalize to the same name", prev, name)
		}
		seen[nfc] = name
		copied[name] = child
	}
	return &Dir{children: copied}, nil
}

func (d *Dir) Kind() Kind { return KindDir }
func (d *Dir) sealed()    {}
func (d *Dir) Len() int   { return len(d.children) }

// Child 返回指定名字的子节点
func (d *Dir) Child(name string) (Node, bool) {
	n, ok := d.children[name]
	return n, ok
}

// Names 返回全部子节点名，按字节序排序
// 这是遍历、编码、比较共用的规范顺序。
func (d *Dir) Names() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------
// Unsupported / Unreadable 哨兵叶子
// -----------------------------------------------------------------------------

// EntryKind 是“不支持条目”的具体种类
type EntryKind string

const (
	EntrySymlink EntryKind = "symlink"
	EntryDevice  EntryKind = "device"
	EntrySocket  EntryKind = "socket"
	EntryFifo    EntryKind = "fifo"
	EntryOther   EntryKind = "other"
)

func (k EntryKind) known() bool {
	switch k {
	case EntrySymlink, EntryDevice, EntrySocket, EntryFifo, EntryOther:
		return true
	}
	return false
}

// Unsupported 记录一个既非文件也非目录的条目
// 显式入树而不是跳过，这样两次快照之间此类条目的出现和消失也能被比较。
type Unsupported struct {
	entry EntryKind
}

func NewUnsupported(entry EntryKind) (*Unsupported, error) {
	if !entry.known() {
		return nil, fmt.Errorf("unknown entry kind %q", entry)
	}
	return &Unsupported{entry: entry}, nil
}

func (u *Unsupported) Kind() Kind       { return KindUnsupported }
func (u *Unsupported) sealed()          {}
func (u *Unsupported) Entry() EntryKind { return u.entry }

// FailedOp 是读取失败时具体失败的那个操作
// 只记录操作种类，不记录系统错误文本：错误文本随平台变化，
// 会让两次同样的失败编码出不同的字节。完整报错走构建器的警告列表。
type FailedOp string

const (
	OpOpen    FailedOp = "open"
	OpRead    FailedOp = "read"
	OpStat    FailedOp = "stat"
	OpReadDir FailedOp = "readdir"
)

func (o FailedOp) known() bool {
	switch o {
	case OpOpen, OpRead, OpStat, OpReadDir:
		return true
	}
	return false
}

// Unreadable 记录一个读取失败的条目
// 单个坏文件绝不中止整个快照，它在这里留下痕迹然后继续。
type Unreadable struct {
	op FailedOp
}

func NewUnreadable(op FailedOp) (*Unreadable, error) {
	if !op.known() {
		return nil, fmt.Errorf("unknown failed op %q", op)
	}
	return &Unreadable{op: op}, nil
}

func (u *Unreadable) Kind() Kind   { return KindUnreadable }
func (u *Unreadable) sealed()      {}
func (u *Unreadable) Op() FailedOp { return u.op }

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

// Snapshot 是一次遍历产出的、以单个目录为根的不可变树
type Snapshot struct {
	root *Dir
}

// NewSnapshot 包装根目录
func NewSnapshot(root *Dir) (*Snapshot, error) {
	if root == nil {
		return nil, fmt.Errorf("snapshot root must not be nil")
	}
	return &Snapshot{root: root}, nil
}

func (s *Snapshot) Root() *Dir { return s.root }

// Stats 是一棵快照树的汇总计数
type Stats struct {
	Files       int
	Dirs        int
	Unsupported int
	Unreadable  int
	TotalBytes  int64
}

// Stats 统计整棵树（含根目录自身）
func (s *Snapshot) Stats() Stats {
	var st Stats
	s.Walk(func(_ string, n Node) bool {
		switch v := n.(type) {
		case *File:
			st.Files++
			st.TotalBytes += v.Size()
		case *Dir:
			st.Dirs++
		case *Unsupported:
			st.Unsupported++
		case *Unreadable:
			st.Unreadable++
		}
		return true
	})
	return st
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
