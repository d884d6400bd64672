package diff

import (
	"path"
	"sort"

	"fsvault/pkg/core"
	"fsvault/pkg/types"
)

// ChangeType 是差异事件的种类
// 类型变化 (File <-> Directory 等) 不单独成类：按约定报告为
// 同一路径上的一对 removed + added。
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"

	// Unverifiable: 某一侧是 Unreadable 哨兵，内容无从确认
	// 把“读不到”硬说成“变了/没了”正是分类器要消灭的那种误报。
	Unverifiable ChangeType = "unverifiable"

	// Disagreement: 两种算法对“内容是否变化”给出相反答案
	// 这说明哈希引擎、存储数据或比较逻辑之一不可靠，
	// 绝不允许偷偷采信其中一个算法的答案把它抹平。
	Disagreement ChangeType = "digest_disagreement"
)

// typeRank 决定同一路径上多条事件的规范次序 (removed 先于 added)
func typeRank(t ChangeType) int {
	switch t {
	case Removed:
		return 0
	case Added:
		return 1
	case Modified:
		return 2
	case Disagreement:
		return 3
	default:
		return 4
	}
}

// Verdict 是单个算法对一对文件的结论
type Verdict string

const (
	VerdictSame    Verdict = "same"
	VerdictDiffers Verdict = "differs"
	VerdictOnlyA   Verdict = "only_a" // 算法只在 A 侧有记录（覆盖范围变化）
	VerdictOnlyB   Verdict = "only_b"
)

// FileDelta 是一对文件节点之间观察到的全部事实
// 分类器只看事实下结论，这里不做任何判断。
type FileDelta struct {
	SizeA int64 `json:"size_a"`
	SizeB int64 `json:"size_b"`

	Digests map[types.Algo]Verdict `json:"digests,omitempty"`

	NulA *bool `json:"nul_a,omitempty"`
	NulB *bool `json:"nul_b,omitempty"`

	NonASCIIA *bool `json:"nonascii_a,omitempty"`
	NonASCIIB *bool `json:"nonascii_b,omitempty"`
}

func (d *FileDelta) SizeChanged() bool { return d.SizeA != d.SizeB }

// ContentChanged: 至少一个两侧都在场的算法说内容变了
func (d *FileDelta) ContentChanged() bool {
	for _, v := range d.Digests {
		if v == VerdictDiffers {
			return true
		}
	}
	return false
}

// CoverageChanged: 有算法只在一侧有记录
func (d *FileDelta) CoverageChanged() bool {
	for _, v := range d.Digests {
		if v == VerdictOnlyA || v == VerdictOnlyB {
			return true
		}
	}
	return false
}

// HasDisagreement: 共同在场的算法之间结论相反 (一个 same 一个 differs)
func (d *FileDelta) HasDisagreement() bool {
	var same, differs bool
	for _, v := range d.Digests {
		switch v {
		case VerdictSame:
			same = true
		case VerdictDiffers:
			differs = true
		}
	}
	return same && differs
}

// DigestsAbsentBothSides: 两侧都没有任何摘要，内容无法核对
func (d *FileDelta) DigestsAbsentBothSides() bool { return len(d.Digests) == 0 }

// NulIntroduced: hasNul 明确从 false 变成 true
func (d *FileDelta) NulIntroduced() bool {
	return d.NulA != nil && d.NulB != nil && !*d.NulA && *d.NulB
}

// NonASCIIIntroduced: hasNonAscii 明确从 false 变成 true
func (d *FileDelta) NonASCIIIntroduced() bool {
	return d.NonASCIIA != nil && d.NonASCIIB != nil && !*d.NonASCIIA && *d.NonASCIIB
}

func (d *FileDelta) nulChanged() bool      { return boolPtrChanged(d.NulA, d.NulB) }
func (d *FileDelta) nonASCIIChanged() bool { return boolPtrChanged(d.NonASCIIA, d.NonASCIIB) }

func boolPtrChanged(a, b *bool) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	return a != nil && *a != *b
}

// hasAnyChange 判断这对文件是否有任何可观察差异
func (d *FileDelta) hasAnyChange() bool {
	if d.SizeChanged() || d.ContentChanged() || d.CoverageChanged() {
		return true
	}
	return d.nulChanged() || d.nonASCIIChanged()
}

// Change 是一条以完整路径为键的差异事件
type Change struct {
	Path   string     `json:"path"`
	Type   ChangeType `json:"type"`
	Kind   core.Kind  `json:"kind"`
	Size   int64      `json:"size,omitempty"`  // added/removed 的文件大小
	Delta  *FileDelta `json:"delta,omitempty"` // 仅 modified / disagreement
	Tier   Tier       `json:"tier"`
	Reason string     `json:"reason,omitempty"`
}

// Result 是一次比较产出的差异集
// Changes 按 (路径, 类型次序) 排序，同样的两棵树比较多少次
// 都得到同一个序列，与两侧的子节点枚举顺序无关。
type Result struct {
	Changes []Change `json:"changes"`
}

// Compare 结构化比较两个快照 (A 旧, B 新)
// 纯函数：两侧的树建成后不可变，比较过程不需要任何锁。
// 每条差异事件经过启发式分类器标注嫌疑等级后返回。
func Compare(a, b *core.Snapshot) *Result {
	var changes []Change
	compareDirs(".", a.Root(), b.Root(), &changes)

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return typeRank(changes[i].Type) < typeRank(changes[j].Type)
	})
	return &Result{Changes: changes}
}

// compareDirs 按子节点名对齐两个目录
// 两侧的 Names() 都已排序，做一次归并遍历。
func compareDirs(p string, da, db *core.Dir, out *[]Change) {
	namesA := da.Names()
	namesB := db.Names()

	i, j := 0, 0
	for i < len(namesA) || j < len(namesB) {
		switch {
		case j >= len(namesB) || (i < len(namesA) && namesA[i] < namesB[j]):
			// 只在 A 侧
			name := namesA[i]
			na, _ := da.Child(name)
			emitSubtree(path.Join(p, name), na, Removed, out)
			i++
		case i >= len(namesA) || namesA[i] > namesB[j]:
			// 只在 B 侧
			name := namesB[j]
			nb, _ := db.Child(name)
			emitSubtree(path.Join(p, name), nb, Added, out)
			j++
		default:
			// 两侧都有
			name := namesA[i]
			na, _ := da.Child(name)
			nb, _ := db.Child(name)
			compareNodes(path.Join(p, name), na, nb, out)
			i++
			j++
		}
	}
}

// compareNodes 处理同一路径上的一对节点
func compareNodes(p string, na, nb core.Node, out *[]Change) {
	// 1. 任何一侧读不到 -> 无从核对，单独成类
	ua, aUnread := na.(*core.Unreadable)
	ub, bUnread := nb.(*core.Unreadable)
	switch {
	case aUnread && bUnread:
		if ua.Op() != ub.Op() {
			appendClassified(out, Change{Path: p, Type: Unverifiable, Kind: core.KindUnreadable})
		}
		return
	case aUnread || bUnread:
		appendClassified(out, Change{Path: p, Type: Unverifiable, Kind: core.KindUnreadable})
		return
	}

	// 2. 同类节点
	if na.Kind() == nb.Kind() {
		switch va := na.(type) {
		case *core.Dir:
			compareDirs(p, va, nb.(*core.Dir), out)
		case *core.File:
			compareFiles(p, va, nb.(*core.File), out)
		case *core.Unsupported:
			if va.Entry() != nb.(*core.Unsupported).Entry() {
				// 种类变了 (symlink -> socket 之类)：按类型变化报告
				emitSubtree(p, na, Removed, out)
				emitSubtree(p, nb, Added, out)
			}
		}
		return
	}

	// 3. 类型变化：同一路径上一对 removed + added
	emitSubtree(p, na, Removed, out)
	emitSubtree(p, nb, Added, out)
}

// compareFiles 比较一对文件节点
func compareFiles(p string, fa, fb *core.File, out *[]Change) {
	delta := buildDelta(fa, fb)
	if !delta.hasAnyChange() {
		return
	}

	typ := Modified
	if delta.HasDisagreement() {
		typ = Disagreement
	}
	appendClassified(out, Change{Path: p, Type: typ, Kind: core.KindFile, Delta: delta})
}

// buildDelta 收集一对文件之间的全部事实
// 出现在任何一侧的算法都要有结论，覆盖范围变化也要入账。
func buildDelta(fa, fb *core.File) *FileDelta {
	d := &FileDelta{SizeA: fa.Size(), SizeB: fb.Size()}

	verdicts := make(map[types.Algo]Verdict)
	for _, algo := range fa.Algos() {
		da, _ := fa.Digest(algo)
		db, ok := fb.Digest(algo)
		switch {
		case !ok:
			verdicts[algo] = VerdictOnlyA
		case da == db:
			verdicts[algo] = VerdictSame
		default:
			verdicts[algo] = VerdictDiffers
		}
	}
	for _, algo := range fb.Algos() {
		if _, done := verdicts[algo]; !done {
			verdicts[algo] = VerdictOnlyB
		}
	}
	if len(verdicts) > 0 {
		d.Digests = verdicts
	}

	if v, known := fa.HasNul(); known {
		d.NulA = &v
	}
	if v, known := fb.HasNul(); known {
		d.NulB = &v
	}
	if v, known := fa.HasNonASCII(); known {
		d.NonASCIIA = &v
	}
	if v, known := fb.HasNonASCII(); known {
		d.NonASCIIB = &v
	}
	return d
}

// emitSubtree 为单侧子树生成事件
// 目录递归展开到每一个后代叶子：被删掉的目录必须报告成
// N 条文件删除，而不是一条报不出损失范围的“目录没了”。
// 空目录没有后代，以自身代表。
func emitSubtree(p string, n core.Node, typ ChangeType, out *[]Change) {
	if dir, ok := n.(*core.Dir); ok {
		if dir.Len() == 0 {
			appendClassified(out, Change{Path: p, Type: typ, Kind: core.KindDir})
			return
		}
		for _, name := range dir.Names() {
			child, _ := dir.Child(name)
			emitSubtree(path.Join(p, name), child, typ, out)
		}
		return
	}

	ch := Change{Path: p, Type: typ, Kind: n.Kind()}
	if f, ok := n.(*core.File); ok {
		ch.Size = f.Size()
	}
	appendClassified(out, ch)
}

func appendClassified(out *[]Change, ch Change) {
	ch.Tier, ch.Reason = Classify(ch)
	*out = append(*out, ch)
}

// Summary 是差异集的汇总计数
type Summary struct {
	Added         int `json:"added"`
	Removed       int `json:"removed"`
	Modified      int `json:"modified"`
	Unverifiable  int `json:"unverifiable"`
	Disagreements int `json:"disagreements"`

	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
}

func (r *Result) Summary() Summary {
	var s Summary
	for _, ch := range r.Changes {
		switch ch.Type {
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		case Modified:
			s.Modified++
		case Unverifiable:
			s.Unverifiable++
		case Disagreement:
			s.Disagreements++
		}
		switch ch.Tier {
		case TierHigh:
			s.High++
		case TierMedium:
			s.Medium++
		case TierLow:
			s.Low++
		case TierInfo:
			s.Info++
		}
	}
	return s
}

// Empty 表示两个快照没有任何可观察差异
func (r *Result) Empty() bool { return len(r.Changes) == 0 }

// WorstTier 返回差异集里最重的嫌疑级别
func (r *Result) WorstTier() Tier {
	worst := TierNone
	for _, ch := range r.Changes {
		if ch.Tier.Rank() > worst.Rank() {
			worst = ch.Tier
		}
	}
	return worst
}
