package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName 是用户自定义排除规则的文件名（gitignore 语法）
const IgnoreFileName = ".fvignore"

// Matcher 封装了排除逻辑
// 它负责判断一个条目是否应该被快照跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化排除匹配器
// rootPath: 被快照的根目录（用于查找 .fvignore 文件）
func NewMatcher(rootPath string) (*Matcher, error) {
	// 1. 系统级默认排除规则 (Hardcoded Defaults)
	// 这些规则强制生效，防止仓库自举和常见垃圾文件污染快照
	defaultRules := []string{
		// --- 关键系统目录 ---
		".fv",  // 绝对禁止快照仓库元数据目录，否则每次快照都和上一次不同！
		".git", // 忽略 Git 仓库数据

		// --- 常见垃圾文件 ---
		".DS_Store", // macOS
		"Thumbs.db", // Windows
	}

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. 检查用户是否有 .fvignore 文件
	ignoreFilePath := filepath.Join(rootPath, IgnoreFileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 情况 A: 用户定义了 .fvignore
		// 把“文件内容”和“默认规则”合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		// 情况 B: 用户没定义 .fvignore
		// 仅编译默认规则
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配排除规则
// path: 相对于快照根目录的相对路径 (例如 "data/model.bin")
// 返回: true 表示应该跳过 (Skip), false 表示应该进入快照 (Keep)
func (m *Matcher) Matches(path string) bool {
	if m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
