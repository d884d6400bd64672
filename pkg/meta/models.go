package meta

import (
	"time"

	"gorm.io/datatypes"
)

// SnapshotRecord 是一次成功快照在关系型目录中的投影
// 数据库本体（带整库摘要的 CBOR）永远只住在对象存储里；
// 这张表只为 `fv history` 这类查询服务，丢了可以重建，不影响校验。
type SnapshotRecord struct {
	// Digest 是主键：整库摘要的 64 字符 Hex
	// 同一棵树怎么拍都是同一个摘要，重复记录天然幂等。
	Digest string `gorm:"primaryKey;type:char(64)"`

	// Root 是被快照的目录（绝对路径）
	Root string `gorm:"index;type:varchar(1024)"`

	// 树的汇总计数 (core.Stats 的投影)
	Files       int   `gorm:"not null"`
	Dirs        int   `gorm:"not null"`
	Unsupported int   `gorm:"not null"`
	Unreadable  int   `gorm:"not null"`
	TotalBytes  int64 `gorm:"not null"`

	// 构建耗时（毫秒）
	DurationMs int64

	// Label 是快照时附带的用户标签（可空）
	Label string `gorm:"index;type:varchar(255)"`

	// Warnings 是构建警告列表 ([]snapshot.Warning 的 JSON)
	Warnings datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

// TableName 强制指定表名
func (SnapshotRecord) TableName() string {
	return "snapshots"
}

// CheckRecord 记录一次 diff/check 运行及其结论
// Findings 里只存非 none 级别的事件：全量差异可以随时重算，
// 目录只为“那天晚上报过什么警”这种追溯服务。
type CheckRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	// BaseDigest / Target: 比较的两侧
	// Target 是另一个摘要 (fv diff) 或一个活目录路径 (fv check)。
	BaseDigest string `gorm:"index;type:char(64);not null"`
	Target     string `gorm:"type:varchar(1024);not null"`

	// 差异集汇总 (diff.Summary 的投影)
	Added         int `gorm:"not null"`
	Removed       int `gorm:"not null"`
	Modified      int `gorm:"not null"`
	Unverifiable  int `gorm:"not null"`
	Disagreements int `gorm:"not null"`

	High   int `gorm:"not null"`
	Medium int `gorm:"not null"`
	Low    int `gorm:"not null"`
	Info   int `gorm:"not null"`

	// WorstTier 是本次运行最重的嫌疑级别，history 按它着色
	WorstTier string `gorm:"index;type:varchar(16);not null"`

	// Findings 是分级非 none 的差异事件 ([]diff.Change 的 JSON)
	Findings datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

// TableName 强制指定表名
func (CheckRecord) TableName() string {
	return "checks"
}
