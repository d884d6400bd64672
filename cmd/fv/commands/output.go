package commands

import (
	"context"
	"fmt"
	"os"

	"fsvault/pkg/diff"
	"fsvault/pkg/report"
	"fsvault/pkg/types"
)

// reportAndRecord 是 diff/check 共用的收尾：渲染、记目录、定退出码
// 发现 Medium 及以上的嫌疑返回 FindingsError（退出码 1）。
func reportAndRecord(ctx context.Context, base types.Hash, target string, result *diff.Result, asJSON bool) error {
	var renderErr error
	if asJSON {
		renderErr = report.WriteDiffJSON(os.Stdout, result)
	} else {
		renderErr = report.WriteDiffText(os.Stdout, result)
	}
	if renderErr != nil {
		return renderErr
	}

	if err := FV.Catalog.RecordCheck(ctx, base, target, result); err != nil {
		// 报告已经出了，目录只是旁路索引
		fmt.Fprintf(os.Stderr, "⚠️  Warning: failed to record check in catalog: %v\n", err)
	}

	if result.WorstTier().Rank() >= diff.TierMedium.Rank() {
		s := result.Summary()
		return &FindingsError{High: s.High, Medium: s.Medium}
	}
	return nil
}
