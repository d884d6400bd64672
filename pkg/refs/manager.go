package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fsvault/pkg/types"
)

var (
	ErrRefNotFound = errors.New("reference not found")
)

// Latest 是内置引用名：每次成功的快照都会把它指向新数据库
const Latest = "LATEST"

// Ref 是一个命名引用：稳定的名字指向某个数据库的整库摘要
type Ref struct {
	Name string
	Hash types.Hash
}

// Manager 负责管理 .fv/refs/ 下的命名引用
// 一个引用一个文件，文件内容就是 64 字符的整库摘要。
type Manager struct {
	refsPath string
}

func NewManager(repoPath string) *Manager {
	return &Manager{refsPath: filepath.Join(repoPath, "refs")}
}

// validateName 拒绝会逃出 refs 目录或在磁盘上歧义的名字
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("ref name must not be empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("ref name %q contains invalid character %q", name, r)
		}
	}
	if name == "." || name == ".." {
		return fmt.Errorf("ref name %q is reserved", name)
	}
	return nil
}

// refPath 返回引用对应的物理路径
func (m *Manager) refPath(name string) string {
	return filepath.Join(m.refsPath, name)
}

// Get 读取引用指向的整库摘要
// 引用不存在返回 ErrRefNotFound；文件内容非法说明有人手改过，报具体错误。
func (m *Manager) Get(name string) (types.Hash, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(m.refPath(name))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ref %s: %w", name, err)
	}

	// 清理换行符 (vim 编辑时可能会自动加 \n)
	h := types.Hash(strings.TrimSpace(string(data)))
	if !h.IsValid() {
		return "", fmt.Errorf("ref %s does not contain a valid database digest", name)
	}
	return h, nil
}

// Update 把引用指向新的整库摘要（不存在则创建）
// 简单的覆盖写逻辑；CLI 场景单写者，文件锁暂略。
func (m *Manager) Update(name string, hash types.Hash) error {
	if err := validateName(name); err != nil {
		return err
	}
	if !hash.IsValid() {
		return fmt.Errorf("refusing to store invalid digest %q", hash)
	}
	if err := os.MkdirAll(m.refsPath, 0755); err != nil {
		return fmt.Errorf("failed to create refs dir: %w", err)
	}
	return os.WriteFile(m.refPath(name), []byte(hash.String()+"\n"), 0644)
}

// Delete 移除一个引用
func (m *Manager) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := os.Remove(m.refPath(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	return err
}

// List 返回全部引用，按名字排序
// 内容非法的文件跳过：List 是浏览操作，不应被单个坏文件卡死。
func (m *Manager) List() ([]Ref, error) {
	entries, err := os.ReadDir(m.refsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list refs: %w", err)
	}

	var refs []Ref
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		h, err := m.Get(e.Name())
		if err != nil {
			continue
		}
		refs = append(refs, Ref{Name: e.Name(), Hash: h})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}
