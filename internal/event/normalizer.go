package event

import (
	"encoding/json"
	"math"
	"strings"
)

// Normalize 原始事件类型值 → 规范 Kind。
//
// 整数走固定查表; 字符串做大小写无关的子串匹配, 顺序固定:
// DOUBLE 必须先于 CLICK, 否则 "DOUBLE_CLICK" 会被识别成单击。
// 其他类型一律 Unknown。
func Normalize(v any) Kind {
	switch x := v.(type) {
	case nil:
		return Unknown
	case string:
		return normalizeString(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return normalizeInt(n)
		}
		if f, err := x.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return Unknown
	case int:
		return normalizeInt(int64(x))
	case int8:
		return normalizeInt(int64(x))
	case int16:
		return normalizeInt(int64(x))
	case int32:
		return normalizeInt(int64(x))
	case int64:
		return normalizeInt(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return normalizeUint(uint64(x))
	case uint16:
		return normalizeUint(uint64(x))
	case uint32:
		return normalizeUint(uint64(x))
	case uint64:
		return normalizeUint(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	}
	return Unknown
}

func normalizeInt(n int64) Kind {
	if k, ok := numericKinds[n]; ok {
		return k
	}
	return Unknown
}

func normalizeUint(n uint64) Kind {
	if n > math.MaxInt64 {
		return Unknown
	}
	return normalizeInt(int64(n))
}

func normalizeFloat(f float64) Kind {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Unknown
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return Unknown
	}
	return normalizeInt(int64(f))
}

func normalizeString(s string) Kind {
	up := strings.ToUpper(s)
	switch {
	case strings.Contains(up, "DOUBLE"):
		return DoubleClick
	case strings.Contains(up, "CLICK"):
		return Click
	case strings.Contains(up, "SCROLL_TOP"), strings.Contains(up, "UP"):
		return ScrollUp
	case strings.Contains(up, "SCROLL_BOTTOM"), strings.Contains(up, "DOWN"):
		return ScrollDown
	}
	return Unknown
}
