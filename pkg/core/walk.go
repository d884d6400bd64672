package core

import (
	"path"
	"strings"
)

// WalkFunc 依次收到 (路径, 节点)，返回 false 提前终止整个遍历
// 路径使用 "/" 分隔，根目录的路径是 "."。
type WalkFunc func(p string, n Node) bool

// Walk 深度优先遍历整棵树
// 子节点按规范顺序（名字的字节序）访问，目录先于其内容。
// 遍历是惰性的：路径逐层拼接，不预先物化整个路径列表。
func (s *Snapshot) Walk(fn WalkFunc) {
	walkNode(".", s.root, fn)
}

func walkNode(p string, n Node, fn WalkFunc) bool {
	if !fn(p, n) {
		return false
	}
	dir, ok := n.(*Dir)
	if !ok {
		return true
	}
	for _, name := range dir.Names() {
		child, _ := dir.Child(name)
		if !walkNode(path.Join(p, name), child, fn) {
			return false
		}
	}
	return true
}

// Lookup 按 "/" 分隔的相对路径查找节点
// ""、"." 或 "/" 均指根目录。路径穿过非目录节点时查找失败。
func (s *Snapshot) Lookup(p string) (Node, bool) {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return s.root, true
	}
	var cur Node = s.root
	for _, part := range strings.Split(p, "/") {
		dir, ok := cur.(*Dir)
		if !ok {
			return nil, false
		}
		next, ok := dir.Child(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
