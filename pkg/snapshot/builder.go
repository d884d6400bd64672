package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"fsvault/pkg/core"
	"fsvault/pkg/ignore"
	"fsvault/pkg/scan"
)

// Warning 是一次构建中的非致命异常
// 单个坏条目绝不中止整个快照：它变成树里的哨兵叶子，
// 完整的系统报错留在这里给人看。
type Warning struct {
	Path string        `json:"path"`
	Op   core.FailedOp `json:"op,omitempty"`
	Msg  string        `json:"msg"`
}

// Result 是一次构建的产出
// 构建被取消时返回残余结果：已完成的子树保留在 Snapshot 里，
// 未扫到的条目降级为哨兵；根目录都没来得及枚举时 Snapshot 为 nil。
type Result struct {
	Snapshot *core.Snapshot
	Warnings []Warning
}

// Builder 把真实目录转换为快照
// Builder 自身无状态，可以复用，也可以并发调用 Build。
type Builder struct {
	engine  *scan.Engine
	workers int
}

// NewBuilder 创建构建器
// workers <= 0 时取 CPU 核数。
func NewBuilder(engine *scan.Engine, workers int) *Builder {
	return &Builder{engine: engine, workers: workers}
}

// Build 遍历 root 并构建快照
//
// 三个阶段：
//  1. 串行枚举目录结构（廉价），应用 .fvignore 排除，分类条目，
//     收集待扫描文件的槽位
//  2. worker 池并行扫描文件内容（开销全在这里）
//     每个槽位只属于一个 worker，汇合点之外没有共享写
//  3. 自底向上组装不可变树
//
// 取消语义：ctx 取消后返回 (残余 Result, 包装过的 ctx 错误)。
// 已完成的子树与已扫完的文件原样保留，未扫到的槽位降级为哨兵；
// 错误非 nil 就表示树不完整，调用方不得把它当完整快照存储。
func (b *Builder) Build(ctx context.Context, root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot snapshot %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot root %s is not a directory", root)
	}

	matcher, err := ignore.NewMatcher(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}

	run := &buildRun{builder: b, matcher: matcher}

	// 阶段 1: 枚举
	rootSkel, err := run.enumerate(ctx, absRoot, ".")
	if err != nil {
		return run.partial(rootSkel), fmt.Errorf("snapshot incomplete: %w", err)
	}
	if rootSkel.dir == nil {
		// 根目录本身读不了，没有任何东西可以快照
		return nil, fmt.Errorf("cannot read snapshot root %s", root)
	}

	// 阶段 2: 并行扫描
	workers := b.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, task := range run.tasks {
		g.Go(func() error {
			return run.scanFile(gctx, task)
		})
	}
	if err := g.Wait(); err != nil {
		return run.partial(rootSkel), fmt.Errorf("snapshot incomplete: %w", err)
	}

	// 阶段 3: 组装
	rootNode, err := assemble(rootSkel)
	if err != nil {
		return nil, err
	}
	snap, err := core.NewSnapshot(rootNode.(*core.Dir))
	if err != nil {
		return nil, err
	}

	sortWarnings(run.warnings)
	return &Result{Snapshot: snap, Warnings: run.warnings}, nil
}

// -----------------------------------------------------------------------------
// 内部结构：一次构建的运行态
// -----------------------------------------------------------------------------

type buildRun struct {
	builder *Builder
	matcher *ignore.Matcher

	mu       sync.Mutex
	warnings []Warning

	tasks []*fileTask
}

// skelNode 是枚举阶段的可变骨架，三选一
type skelNode struct {
	dir  map[string]*skelNode // 目录
	leaf core.Node            // 已定叶子 (Unsupported / Unreadable)
	task *fileTask            // 待扫描文件
}

// fileTask 是一个待扫描文件的槽位
// result 由且仅由一个 worker 写入，Wait 之后才被读取。
type fileTask struct {
	absPath string
	relPath string
	result  core.Node
}

// partial 在取消后尽力组装残余结果
// 已扫完的文件与枚举完的子树原样保留，未扫到的槽位降级为哨兵；
// 这样的树只随非 nil 错误一起返回，Build 的调用方不会存储它。
func (r *buildRun) partial(rootSkel *skelNode) *Result {
	res := &Result{}
	if rootSkel != nil && rootSkel.dir != nil {
		for _, task := range r.tasks {
			if task.result == nil {
				task.result = mustUnreadable(core.OpRead)
				r.warn(task.relPath, core.OpRead, errors.New("not scanned before interruption"))
			}
		}
		if rootNode, err := assemble(rootSkel); err == nil {
			if snap, err := core.NewSnapshot(rootNode.(*core.Dir)); err == nil {
				res.Snapshot = snap
			}
		}
	}
	sortWarnings(r.warnings)
	res.Warnings = r.warnings
	return res
}

func (r *buildRun) warn(relPath string, op core.FailedOp, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, Warning{Path: relPath, Op: op, Msg: err.Error()})
}

func (r *buildRun) warnf(relPath, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, Warning{Path: relPath, Msg: fmt.Sprintf(format, args...)})
}

// enumerate 串行枚举一个目录
// 每进一个目录检查一次取消；返回 error 仅意味着取消，
// 同时尽可能带回已枚举完的部分骨架。
func (r *buildRun) enumerate(ctx context.Context, abs, rel string) (*skelNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		// 目录读不了：原地留哨兵，继续走兄弟节点
		r.warn(rel, core.OpReadDir, err)
		return unreadableSkel(core.OpReadDir), nil
	}

	names := make([]string, 0, len(dirents))
	byName := make(map[string]fs.DirEntry, len(dirents))
	for _, de := range dirents {
		names = append(names, de.Name())
		byName[de.Name()] = de
	}
	// 字节序排序之后做 NFC 去重：冲突时保留排序靠前的名字
	sort.Strings(names)

	children := make(map[string]*skelNode, len(names))
	seen := make(map[string]string, len(names))

	for _, name := range names {
		childRel := joinRel(rel, name)
		if r.matcher.Matches(childRel) {
			continue
		}

		nfc := norm.NFC.String(name)
		if prev, dup := seen[nfc]; dup {
			// 两个名字规范化后相同，无法共存于一棵合法树
			r.warnf(childRel, "skipped: name collides with %q after unicode normalization", prev)
			continue
		}
		seen[nfc] = name

		de := byName[name]
		childAbs := filepath.Join(abs, name)

		var child *skelNode
		switch {
		case de.IsDir():
			sub, err := r.enumerate(ctx, childAbs, childRel)
			if err != nil {
				// 取消：之前枚举完的兄弟子树留在骨架里
				if sub != nil {
					children[name] = sub
				}
				return &skelNode{dir: children}, err
			}
			child = sub
		case de.Type().IsRegular():
			task := &fileTask{absPath: childAbs, relPath: childRel}
			r.tasks = append(r.tasks, task)
			child = &skelNode{task: task}
		default:
			child = unsupportedSkel(classifyMode(de.Type()))
		}
		children[name] = child
	}

	return &skelNode{dir: children}, nil
}

// scanFile 在 worker 里扫描单个文件
// IO 失败降级为哨兵 + 警告；只有取消才让错误逃出去。
func (r *buildRun) scanFile(ctx context.Context, task *fileTask) error {
	f, err := os.Open(task.absPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.warn(task.relPath, core.OpOpen, err)
		task.result = mustUnreadable(core.OpOpen)
		return nil
	}
	defer f.Close()

	m, err := r.builder.engine.Scan(ctx, f)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.warn(task.relPath, core.OpRead, err)
		task.result = mustUnreadable(core.OpRead)
		return nil
	}

	node, err := core.NewFile(m.Size, m.Digests, &m.Nul, &m.NonASCII)
	if err != nil {
		// 引擎产出的度量不合法，属于程序缺陷而不是用户数据问题
		return fmt.Errorf("scan of %s produced invalid metrics: %w", task.relPath, err)
	}
	task.result = node
	return nil
}

// assemble 自底向上把骨架换成不可变节点
func assemble(skel *skelNode) (core.Node, error) {
	switch {
	case skel.leaf != nil:
		return skel.leaf, nil
	case skel.task != nil:
		return skel.task.result, nil
	default:
		children := make(map[string]core.Node, len(skel.dir))
		for name, childSkel := range skel.dir {
			child, err := assemble(childSkel)
			if err != nil {
				return nil, err
			}
			children[name] = child
		}
		return core.NewDir(children)
	}
}

func classifyMode(mode fs.FileMode) core.EntryKind {
	switch {
	case mode&fs.ModeSymlink != 0:
		return core.EntrySymlink
	case mode&fs.ModeDevice != 0:
		return core.EntryDevice
	case mode&fs.ModeSocket != 0:
		return core.EntrySocket
	case mode&fs.ModeNamedPipe != 0:
		return core.EntryFifo
	default:
		return core.EntryOther
	}
}

func joinRel(rel, name string) string {
	if rel == "." {
		return name
	}
	return path.Join(rel, name)
}

func unreadableSkel(op core.FailedOp) *skelNode {
	return &skelNode{leaf: mustUnreadable(op)}
}

func unsupportedSkel(kind core.EntryKind) *skelNode {
	n, _ := core.NewUnsupported(kind)
	return &skelNode{leaf: n}
}

func mustUnreadable(op core.FailedOp) core.Node {
	n, _ := core.NewUnreadable(op)
	return n
}

func sortWarnings(ws []Warning) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].Path < ws[j].Path })
}
