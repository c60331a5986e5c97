package event

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/BxNxM/even-dev/pkg/util"
)

// ResolveIndex 从解码结果推导目标行号, 范围 [-1, len-1]。
//
// 优先级: 结构化行号 → 松散行号 → 行名精确匹配 (忽略大小写)
// → 行名是某选项的前缀 (按列表顺序第一个) → Unresolved。
// 行号字段可以是数字或可解析的数字字符串, 越界视为缺失。
func ResolveIndex(d Decoded, options []string) int {
	n := len(options)
	if n == 0 {
		return Unresolved
	}
	if i, ok := indexValue(d.StructuredIndex, n); ok {
		return util.ClampInt(i, 0, n-1)
	}
	if i, ok := indexValue(d.LooseIndex, n); ok {
		return util.ClampInt(i, 0, n-1)
	}
	if i := matchName(d.Name, options); i != Unresolved {
		return util.ClampInt(i, 0, n-1)
	}
	return Unresolved
}

// indexValue 把原始行号值转换为 int, 仅接受 [0, n) 内的整数。
func indexValue(v any, n int) (int, bool) {
	var i int64
	switch x := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		parsed, ok := parseIndexString(string(x))
		if !ok {
			return 0, false
		}
		i = parsed
	case string:
		parsed, ok := parseIndexString(x)
		if !ok {
			return 0, false
		}
		i = parsed
	case int:
		i = int64(x)
	case int64:
		i = x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, false
		}
		i = int64(x)
	default:
		return 0, false
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

func parseIndexString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// matchName 行名匹配: 先精确 (忽略大小写), 再前缀。空名不匹配。
func matchName(name string, options []string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return Unresolved
	}
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), name) {
			return i
		}
	}
	lower := strings.ToLower(name)
	for i, opt := range options {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(opt)), lower) {
			return i
		}
	}
	return Unresolved
}

// Interpretation 一次完整解释的结果。
type Interpretation struct {
	Kind           Kind    `json:"kind"`
	Index          int     `json:"index"`
	HasListPayload bool    `json:"hasListPayload"`
	Decoded        Decoded `json:"decoded"`
}

// Interpret Decode + Normalize + ResolveIndex 的组合。
func Interpret(raw RawEvent, options []string) Interpretation {
	d := Decode(raw)
	return Interpretation{
		Kind:           Normalize(d.Type),
		Index:          ResolveIndex(d, options),
		HasListPayload: d.HasListPayload,
		Decoded:        d,
	}
}
