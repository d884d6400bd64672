package diff

// Tier 是一条差异事件的嫌疑等级
// 分类只是标注，不过滤：每条事件都原样保留在结果里，
// 等级只决定报告排序和进程退出码。
type Tier string

const (
	TierNone   Tier = "none"   // 正常变更（增删、内容和大小一起变）
	TierInfo   Tier = "info"   // 值得知道但无需行动
	TierLow    Tier = "low"    // 轻度可疑
	TierMedium Tier = "medium" // 典型的静默损坏姿态
	TierHigh   Tier = "high"   // 强烈的损坏信号
)

// Rank 给等级一个全序，数值越大越严重
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 4
	case TierMedium:
		return 3
	case TierLow:
		return 2
	case TierInfo:
		return 1
	default:
		return 0
	}
}

// 分类器的判据说明（报告原文，保持稳定，测试和下游都认这些串）
const (
	ReasonTruncated      = "file was truncated"
	ReasonDisagreement   = "digest algorithms disagree about content change"
	ReasonNulIntroduced  = "NUL bytes appeared with size unchanged"
	ReasonContentMutated = "content changed with size unchanged"
	ReasonNonASCII       = "non-ASCII bytes appeared with size unchanged"
	ReasonSizeNoDigests  = "size changed but no digests were recorded"
	ReasonCoverageOnly   = "digest coverage changed (no mismatch)"
	ReasonUnverifiable   = "content could not be verified on at least one side"
)

// Classify 给一条差异事件标注嫌疑等级
// 纯函数：只看事件自身的事实，不看环境。规则按严重度从高到低
// 逐条匹配，命中即止；都不命中则是正常变更 (none)。
//
// 设计底线：大小和内容一起变是文件的正常编辑姿态，不标记；
// 损坏的典型姿态恰恰是“有些东西变了而有些东西没变”。
func Classify(ch Change) (Tier, string) {
	switch ch.Type {
	case Added, Removed:
		// 增删本身不是损坏信号，覆盖面留给报告的计数
		return TierNone, ""
	case Unverifiable:
		return TierLow, ReasonUnverifiable
	case Disagreement:
		return TierHigh, ReasonDisagreement
	}

	d := ch.Delta
	if d == nil {
		return TierNone, ""
	}

	sizeSame := !d.SizeChanged()

	switch {
	case d.SizeA > 0 && d.SizeB == 0:
		// 截断：非空文件变成零字节，静默损坏的头号惯犯
		return TierHigh, ReasonTruncated
	case sizeSame && d.NulIntroduced():
		return TierHigh, ReasonNulIntroduced
	case sizeSame && d.ContentChanged():
		return TierMedium, ReasonContentMutated
	case sizeSame && d.NonASCIIIntroduced():
		return TierLow, ReasonNonASCII
	case d.SizeChanged() && d.DigestsAbsentBothSides():
		return TierLow, ReasonSizeNoDigests
	case !d.ContentChanged() && d.CoverageChanged():
		return TierInfo, ReasonCoverageOnly
	}
	return TierNone, ""
}
