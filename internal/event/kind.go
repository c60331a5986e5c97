// Package event 把 bridge 的异构原始事件翻译为规范事件类型与选中行号。
//
// 三段纯函数流水线: Decode (别名提取) → Normalize (类型归一化) → ResolveIndex (行号解析)。
// 无状态, 无锁, 从不返回错误: 无法识别的输入落到 Unknown / Unresolved。
package event

// Kind 规范事件类型 (值类型, 只由 Normalize 产出)。
type Kind int

const (
	Unknown Kind = iota
	Click
	DoubleClick
	ScrollUp
	ScrollDown
)

// Unresolved 行号未解析的哨兵值。
const Unresolved = -1

// bridge 数值约定: 0=Click, 1=ScrollUp, 2=ScrollDown, 3=DoubleClick。
var numericKinds = map[int64]Kind{
	0: Click,
	1: ScrollUp,
	2: ScrollDown,
	3: DoubleClick,
}

var kindNames = map[Kind]string{
	Unknown:     "unknown",
	Click:       "click",
	DoubleClick: "double_click",
	ScrollUp:    "scroll_up",
	ScrollDown:  "scroll_down",
}

// String 返回小写蛇形名, 用于日志与 last-event 标签。
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText 让 Kind 在 JSON 中以名称出现。
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind 名称 → Kind, 供 panel 调试注入使用; 未知名称返回 Unknown。
func ParseKind(name string) Kind {
	for k, s := range kindNames {
		if s == name {
			return k
		}
	}
	return Unknown
}
