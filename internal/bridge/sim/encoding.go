// encoding.go — 模拟器事件编码: 同一个动作以不同的 schema 变体发出。
package sim

import (
	"encoding/json"
	"strconv"

	"github.com/BxNxM/even-dev/internal/event"
)

// Encoding 事件载荷的 schema 变体。
type Encoding int

const (
	EncodingListNumeric    Encoding = iota // listEvent + 数字类型 + 行号 + 行名
	EncodingListSnake                      // list_event + 字符串类型 + 蛇形行号
	EncodingTopLevel                       // 顶层 eventType + jsonData 字符串行号
	EncodingJSONDataString                 // jsonData 为 JSON 字符串, 只带行名
	EncodingTextEvent                      // textEvent, 无行信息
	encodingCount
)

var encodingNames = map[Encoding]string{
	EncodingListNumeric:    "list-numeric",
	EncodingListSnake:      "list-snake",
	EncodingTopLevel:       "top-level",
	EncodingJSONDataString: "jsondata-string",
	EncodingTextEvent:      "text-event",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return "encoding-" + strconv.Itoa(int(e))
}

// ParseEncoding 按名称查找编码。
func ParseEncoding(name string) (Encoding, bool) {
	for enc, n := range encodingNames {
		if n == name {
			return enc, true
		}
	}
	return 0, false
}

// EncodingNames 全部编码名 (按编号)。
func EncodingNames() []string {
	out := make([]string, 0, encodingCount)
	for enc := Encoding(0); enc < encodingCount; enc++ {
		out = append(out, enc.String())
	}
	return out
}

var kindCodes = map[event.Kind]int{
	event.Click:       0,
	event.ScrollUp:    1,
	event.ScrollDown:  2,
	event.DoubleClick: 3,
}

var kindNames = map[event.Kind]string{
	event.Click:       "CLICK_EVENT",
	event.ScrollUp:    "SCROLL_TOP_EVENT",
	event.ScrollDown:  "SCROLL_BOTTOM_EVENT",
	event.DoubleClick: "DOUBLE_CLICK_EVENT",
}

// Encode 生成一条原始事件。
//
// 首行单击 (index 0) 模拟真机怪癖: 只带 listEvent 外壳, 不带类型与行信息。
func Encode(enc Encoding, kind event.Kind, index int, name string) event.RawEvent {
	if kind == event.Click && index == 0 && enc != EncodingTextEvent {
		return mustJSON(map[string]any{"listEvent": map[string]any{"containerName": "options"}})
	}
	code, ok := kindCodes[kind]
	if !ok {
		code = 99
	}
	typeName := kindNames[kind]
	if typeName == "" {
		typeName = "UNKNOWN_EVENT"
	}

	var payload map[string]any
	switch enc {
	case EncodingListNumeric:
		payload = map[string]any{"listEvent": map[string]any{
			"eventType":              code,
			"currentSelectItemIndex": index,
			"currentSelectItemName":  name,
		}}
	case EncodingListSnake:
		payload = map[string]any{"list_event": map[string]any{
			"event_type":                typeName,
			"current_select_item_index": strconv.Itoa(index),
		}}
	case EncodingTopLevel:
		payload = map[string]any{
			"eventType": code,
			"jsonData":  map[string]any{"currentSelectedIndex": strconv.Itoa(index)},
		}
	case EncodingJSONDataString:
		inner := mustJSON(map[string]any{
			"Event_Type":            typeName,
			"current_selected_name": name,
		})
		payload = map[string]any{"jsonData": string(inner)}
	default:
		payload = map[string]any{"textEvent": map[string]any{"eventType": code}}
	}
	return mustJSON(payload)
}

func mustJSON(v any) event.RawEvent {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
