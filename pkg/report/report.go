package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"fsvault/pkg/core"
	"fsvault/pkg/diff"
	"fsvault/pkg/snapshot"
)

// WriteDiffText 把差异集渲染成人读的文本报告
// 布局：先汇总，再逐条差异（tabwriter 对齐），分级事件带
// "suspicious:" 标注行。没有任何差异时只打一行。
func WriteDiffText(w io.Writer, result *diff.Result) error {
	if result.Empty() {
		_, err := fmt.Fprintln(w, "✅ No differences found")
		return err
	}

	s := result.Summary()
	fmt.Fprintf(w, "🔍 %d added, %d removed, %d modified", s.Added, s.Removed, s.Modified)
	if s.Unverifiable > 0 {
		fmt.Fprintf(w, ", %d unverifiable", s.Unverifiable)
	}
	if s.Disagreements > 0 {
		fmt.Fprintf(w, ", %d digest disagreements", s.Disagreements)
	}
	fmt.Fprintln(w)

	if n := s.High + s.Medium + s.Low + s.Info; n > 0 {
		fmt.Fprintf(w, "⚠️  %d findings (high: %d, medium: %d, low: %d, info: %d)\n",
			n, s.High, s.Medium, s.Low, s.Info)
	}
	fmt.Fprintln(w)

	// 使用 tabwriter 对齐输出 (像 git ls-tree)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for _, ch := range result.Changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", marker(ch.Type), ch.Path, describe(ch))
		if ch.Tier.Rank() > diff.TierNone.Rank() {
			fmt.Fprintf(tw, "\t> suspicious [%s]: %s\t\n", ch.Tier, ch.Reason)
		}
	}
	return tw.Flush()
}

// marker 是每条差异行的前导符号
func marker(t diff.ChangeType) string {
	switch t {
	case diff.Added:
		return "+"
	case diff.Removed:
		return "-"
	case diff.Modified:
		return "M"
	case diff.Unverifiable:
		return "?"
	case diff.Disagreement:
		return "!"
	}
	return " "
}

// describe 给单条差异一个紧凑的事实描述
func describe(ch diff.Change) string {
	switch ch.Type {
	case diff.Added, diff.Removed:
		if ch.Kind == core.KindFile {
			return fmt.Sprintf("%s (%d bytes)", ch.Kind, ch.Size)
		}
		return string(ch.Kind)
	case diff.Unverifiable:
		return "content could not be verified"
	}

	d := ch.Delta
	if d == nil {
		return "modified"
	}
	if d.SizeChanged() {
		return fmt.Sprintf("size %d -> %d", d.SizeA, d.SizeB)
	}
	return fmt.Sprintf("size %d unchanged", d.SizeA)
}

// WriteDiffJSON 把差异集渲染成机器可读的 JSON
// 结构稳定：{"summary": ..., "changes": [...]}，给 CI 和下游工具消费。
func WriteDiffJSON(w io.Writer, result *diff.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary diff.Summary  `json:"summary"`
		Changes []diff.Change `json:"changes"`
	}{
		Summary: result.Summary(),
		Changes: result.Changes,
	})
}

// WriteWarnings 渲染构建警告列表
// 空列表不产生任何输出：没消息就是好消息。
func WriteWarnings(w io.Writer, warnings []snapshot.Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	fmt.Fprintf(w, "⚠️  %d entries could not be fully read:\n", len(warnings))
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for _, warn := range warnings {
		op := string(warn.Op)
		if op == "" {
			op = "-"
		}
		fmt.Fprintf(tw, "   %s\t%s\t%s\n", warn.Path, op, warn.Msg)
	}
	return tw.Flush()
}
