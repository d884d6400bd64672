package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fsvault/pkg/core"
	"fsvault/pkg/diff"
	"fsvault/pkg/snapshot"
)

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&SnapshotRecord{}, &CheckRecord{}))

	return NewRepository(metaDB)
}

// -----------------------------------------------------------------------------
// 测试用例
// -----------------------------------------------------------------------------

func TestRepository_SnapshotLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	digest := mockHash("db1")
	stats := core.Stats{Files: 3, Dirs: 2, Unreadable: 1, TotalBytes: 4096}
	warnings := []snapshot.Warning{
		{Path: "data/broken.bin", Op: core.OpOpen, Msg: "permission denied"},
	}

	err := repo.RecordSnapshot(ctx, digest, "/srv/data", stats, warnings, "nightly", 1500*time.Millisecond)
	require.NoError(t, err)

	rec, err := repo.GetSnapshot(ctx, digest)
	require.NoError(t, err)

	assert.Equal(t, digest.String(), rec.Digest)
	assert.Equal(t, "/srv/data", rec.Root)
	assert.Equal(t, 3, rec.Files)
	assert.Equal(t, 1, rec.Unreadable)
	assert.Equal(t, int64(4096), rec.TotalBytes)
	assert.Equal(t, "nightly", rec.Label)
	assert.Equal(t, int64(1500), rec.DurationMs)

	// 验证警告列表的 JSON 存储
	var stored []snapshot.Warning
	require.NoError(t, json.Unmarshal(rec.Warnings, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "data/broken.bin", stored[0].Path)
	assert.Equal(t, core.OpOpen, stored[0].Op)
}

func TestRepository_GetSnapshot_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetSnapshot(context.Background(), mockHash("missing"))
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRepository_RecordSnapshot_Idempotency(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	digest := mockHash("same-tree")
	stats := core.Stats{Files: 1, Dirs: 1}

	// 1. 写入两次（同一棵树重拍，摘要相同）
	require.NoError(t, repo.RecordSnapshot(ctx, digest, "/srv/data", stats, nil, "", time.Second))
	require.NoError(t, repo.RecordSnapshot(ctx, digest, "/srv/data", stats, nil, "", time.Second))

	// 2. 验证数据库中只有一条记录 (副作用检查)
	var count int64
	err := repo.db.GetConn().Model(&SnapshotRecord{}).Where("digest = ?", digest.String()).Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "duplicate inserts must collapse into one record")
}

func TestRepository_ListSnapshots_Order(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		digest := mockHash(fmt.Sprintf("db-%d", i))
		require.NoError(t, repo.RecordSnapshot(ctx, digest, "/srv/data", core.Stats{}, nil, "", 0))
		// SQLite 的时间精度有限，错开一点保证排序可断言
		time.Sleep(5 * time.Millisecond)
	}

	recs, err := repo.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, mockHash("db-2").String(), recs[0].Digest, "newest first")
}

func TestRepository_RecordCheck(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// 真实的差异集：1000 字节的文件被截断成 0
	before := mustSnapshot(t, map[string]core.Node{"a.txt": mustFile(t, 1000, "v1")})
	truncated, err := core.NewFile(0, nil, nil, nil)
	require.NoError(t, err)
	after := mustSnapshot(t, map[string]core.Node{"a.txt": truncated})

	result := diff.Compare(before, after)
	require.Equal(t, diff.TierHigh, result.WorstTier())

	base := mockHash("base")
	require.NoError(t, repo.RecordCheck(ctx, base, "/srv/data", result))

	recs, err := repo.ListChecks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, base.String(), rec.BaseDigest)
	assert.Equal(t, "/srv/data", rec.Target)
	assert.Equal(t, 1, rec.Modified)
	assert.Equal(t, 1, rec.High)
	assert.Equal(t, string(diff.TierHigh), rec.WorstTier)

	// Findings 只存分级非 none 的事件
	var findings []diff.Change
	require.NoError(t, json.Unmarshal(rec.Findings, &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, "a.txt", findings[0].Path)
	assert.Equal(t, diff.ReasonTruncated, findings[0].Reason)
}

func TestRepository_FindChecksAtOrAbove(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	clean := mustSnapshot(t, map[string]core.Node{"a.txt": mustFile(t, 10, "v1")})

	// 干净运行 (none)
	require.NoError(t, repo.RecordCheck(ctx, mockHash("clean"), "/srv/data", diff.Compare(clean, clean)))

	// 截断运行 (high)
	empty, err := core.NewFile(0, nil, nil, nil)
	require.NoError(t, err)
	bad := mustSnapshot(t, map[string]core.Node{"a.txt": empty})
	require.NoError(t, repo.RecordCheck(ctx, mockHash("bad"), "/srv/data", diff.Compare(clean, bad)))

	recs, err := repo.FindChecksAtOrAbove(ctx, diff.TierMedium, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, mockHash("bad").String(), recs[0].BaseDigest)
}
