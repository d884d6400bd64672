package core

import (
	"encoding/json"
	"io"
)

// ExportJSON 把解码后的快照渲染为 JSON（单向导出）
// 输出结构与线格式同构，便于人工排查和外部工具消费。
// 【关键】JSON 不是可信的加载格式：只有带整库摘要的规范编码
// 才能被 Decode 接受，这里没有对应的 Import。
func ExportJSON(w io.Writer, s *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportNode(s.root))
}

func exportNode(n Node) any {
	switch v := n.(type) {
	case *Dir:
		children := make(map[string]any, v.Len())
		for _, name := range v.Names() {
			child, _ := v.Child(name)
			children[name] = exportNode(child)
		}
		return map[string]any{"Directory": children}
	case *File:
		obj := map[string]any{"size": v.size}
		for algo, d := range v.digests {
			obj[string(algo)] = string(d)
		}
		if v.nul != nil {
			obj["nul"] = *v.nul
		}
		if v.nonASCII != nil {
			obj["nonascii"] = *v.nonASCII
		}
		return map[string]any{"File": obj}
	case *Unsupported:
		return map[string]any{"Unsupported": map[string]any{"kind": string(v.entry)}}
	case *Unreadable:
		return map[string]any{"Unreadable": map[string]any{"op": string(v.op)}}
	}
	return nil
}
