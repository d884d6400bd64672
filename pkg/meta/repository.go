package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fsvault/pkg/core"
	"fsvault/pkg/diff"
	"fsvault/pkg/snapshot"
	"fsvault/pkg/types"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found in catalog")
)

// Repository 封装所有对目录数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 快照记录 (Snapshot runs)
// -----------------------------------------------------------------------------

// RecordSnapshot 把一次成功的快照“投影”进目录
// 这样 `fv history` 可以用 SQL 查询，而不必把对象存储里的数据库挨个解码。
func (r *Repository) RecordSnapshot(ctx context.Context, digest types.Hash, root string, stats core.Stats, warnings []snapshot.Warning, label string, duration time.Duration) error {
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	rec := SnapshotRecord{
		Digest:      digest.String(),
		Root:        root,
		Files:       stats.Files,
		Dirs:        stats.Dirs,
		Unsupported: stats.Unsupported,
		Unreadable:  stats.Unreadable,
		TotalBytes:  stats.TotalBytes,
		DurationMs:  duration.Milliseconds(),
		Label:       label,
		Warnings:    datatypes.JSON(warningsJSON),
		CreatedAt:   time.Now(),
	}

	// 幂等写入：摘要是内容寻址的，重拍同一棵树不产生第二行
	// 如果 Digest 已存在，则什么都不做 (Do Nothing)
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "digest"}}, // 冲突列
			DoNothing: true,                              // 忽略
		}).
		Create(&rec).Error

	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// GetSnapshot 按整库摘要取单条快照记录
func (r *Repository) GetSnapshot(ctx context.Context, digest types.Hash) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	// Digest 是主键，查询非常快
	err := r.db.GetConn().WithContext(ctx).
		Where("digest = ?", digest.String()).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSnapshots 按时间倒序列出快照记录
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	var recs []SnapshotRecord
	err := r.db.GetConn().WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// -----------------------------------------------------------------------------
// 2. 校验记录 (Check runs)
// -----------------------------------------------------------------------------

// RecordCheck 记录一次 diff/check 运行
// target 是另一个整库摘要 (diff) 或活目录路径 (check)。
// Findings 只保留分级非 none 的事件：完整差异随时可以重算，
// 目录记的是“当时报了什么警”。
func (r *Repository) RecordCheck(ctx context.Context, base types.Hash, target string, result *diff.Result) error {
	var findings []diff.Change
	for _, ch := range result.Changes {
		if ch.Tier != diff.TierNone {
			findings = append(findings, ch)
		}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}

	s := result.Summary()
	rec := CheckRecord{
		BaseDigest:    base.String(),
		Target:        target,
		Added:         s.Added,
		Removed:       s.Removed,
		Modified:      s.Modified,
		Unverifiable:  s.Unverifiable,
		Disagreements: s.Disagreements,
		High:          s.High,
		Medium:        s.Medium,
		Low:           s.Low,
		Info:          s.Info,
		WorstTier:     string(result.WorstTier()),
		Findings:      datatypes.JSON(findingsJSON),
		CreatedAt:     time.Now(),
	}

	if err := r.db.GetConn().WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record check: %w", err)
	}
	return nil
}

// ListChecks 按时间倒序列出校验记录
func (r *Repository) ListChecks(ctx context.Context, limit int) ([]CheckRecord, error) {
	var recs []CheckRecord
	err := r.db.GetConn().WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// FindChecksAtOrAbove 列出最重级别不低于 tier 的校验记录
// 给“历史上哪几次跑出过 High”这类追溯用
func (r *Repository) FindChecksAtOrAbove(ctx context.Context, tier diff.Tier, limit int) ([]CheckRecord, error) {
	var names []string
	for _, t := range []diff.Tier{diff.TierInfo, diff.TierLow, diff.TierMedium, diff.TierHigh} {
		if t.Rank() >= tier.Rank() {
			names = append(names, string(t))
		}
	}

	var recs []CheckRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("worst_tier IN ?", names).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
