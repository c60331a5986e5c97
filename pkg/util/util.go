// Package util 提供通用工具函数。
//
//   - ClampInt      选择索引钳制 (所有 SelectionIndex 写入前必须经过)
//   - EscapeLike    诊断日志关键字查询转义
//   - FirstNonEmpty 错误码 / 标题等多来源取值
//   - LoadFromEnv   通过 struct tag 反射加载配置 (env.go)
//   - SafeGo        带 panic 恢复的 goroutine (safego.go)
package util

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike 转义 LIKE 模式中的 %, _ 与反斜杠, 配合 ESCAPE '\' 使用。
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

// ClampInt 将 v 限制在 [lo, hi]。hi < lo (空列表) 时返回 lo。
func ClampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

// FirstNonEmpty 返回第一个 trim 后非空的值 (已 trim)。
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
