package event

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// RawEvent bridge 推送的原始事件载荷 (只读)。
type RawEvent = json.RawMessage

// Decoded Decode 的结果: 每个逻辑字段取别名列表中第一个存在的值。
//
// 缺失时 Type/StructuredIndex/LooseIndex 为 nil, Name 为 ""。
type Decoded struct {
	Type            any    `json:"type,omitempty"`
	TypeAlias       string `json:"typeAlias,omitempty"`
	StructuredIndex any    `json:"structuredIndex,omitempty"`
	LooseIndex      any    `json:"looseIndex,omitempty"`
	Name            string `json:"name,omitempty"`
	HasListEvent    bool   `json:"hasListEvent"`
	HasListPayload  bool   `json:"hasListPayload"`
}

// extractor 一个命名提取器: 在 root (原始载荷) 或 jsonData 上按 path 取值。
type extractor struct {
	name     string
	path     string
	jsonData bool
}

// ========================================
// 别名表 (顺序即优先级, 结构化字段优先于松散 JSON 字段)
// ========================================

var typeExtractors = []extractor{
	{name: "listEvent.eventType", path: "listEvent.eventType"},
	{name: "list_event.eventType", path: "list_event.eventType"},
	{name: "list_event.event_type", path: "list_event.event_type"},
	{name: "textEvent.eventType", path: "textEvent.eventType"},
	{name: "text_event.eventType", path: "text_event.eventType"},
	{name: "text_event.event_type", path: "text_event.event_type"},
	{name: "sysEvent.eventType", path: "sysEvent.eventType"},
	{name: "sys_event.eventType", path: "sys_event.eventType"},
	{name: "sys_event.event_type", path: "sys_event.event_type"},
	{name: "eventType", path: "eventType"},
	{name: "event_type", path: "event_type"},
	{name: "jsonData.eventType", path: "eventType", jsonData: true},
	{name: "jsonData.event_type", path: "event_type", jsonData: true},
	{name: "jsonData.Event_Type", path: "Event_Type", jsonData: true},
	{name: "jsonData.type", path: "type", jsonData: true},
}

var structuredIndexExtractors = []extractor{
	{name: "listEvent.currentSelectItemIndex", path: "listEvent.currentSelectItemIndex"},
	{name: "list_event.current_select_item_index", path: "list_event.current_select_item_index"},
	{name: "list_event.currentSelectItemIndex", path: "list_event.currentSelectItemIndex"},
}

var looseIndexExtractors = []extractor{
	{name: "jsonData.currentSelectItemIndex", path: "currentSelectItemIndex", jsonData: true},
	{name: "jsonData.current_select_item_index", path: "current_select_item_index", jsonData: true},
	{name: "jsonData.currentSelectedIndex", path: "currentSelectedIndex", jsonData: true},
	{name: "jsonData.current_selected_index", path: "current_selected_index", jsonData: true},
	{name: "currentSelectItemIndex", path: "currentSelectItemIndex"},
	{name: "current_select_item_index", path: "current_select_item_index"},
}

var nameExtractors = []extractor{
	{name: "listEvent.currentSelectItemName", path: "listEvent.currentSelectItemName"},
	{name: "list_event.current_select_item_name", path: "list_event.current_select_item_name"},
	{name: "list_event.currentSelectItemName", path: "list_event.currentSelectItemName"},
	{name: "jsonData.currentSelectItemName", path: "currentSelectItemName", jsonData: true},
	{name: "jsonData.current_select_item_name", path: "current_select_item_name", jsonData: true},
	{name: "jsonData.currentSelectedName", path: "currentSelectedName", jsonData: true},
	{name: "jsonData.current_selected_name", path: "current_selected_name", jsonData: true},
	{name: "currentSelectItemName", path: "currentSelectItemName"},
	{name: "current_select_item_name", path: "current_select_item_name"},
}

var listEventPaths = []string{"listEvent", "list_event"}

// ========================================
// Decode
// ========================================

// Decode 从原始载荷中提取事件类型、结构化/松散行号与行名。
//
// 纯函数, 从不失败; 非法 JSON 等价于空载荷。null 视为缺失。
func Decode(raw RawEvent) Decoded {
	var d Decoded
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return d
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return d
	}
	data := jsonDataOf(root)

	if v, alias, ok := firstPresent(root, data, typeExtractors); ok {
		d.Type = scalarValue(v)
		d.TypeAlias = alias
	}
	if v, _, ok := firstPresent(root, data, structuredIndexExtractors); ok {
		d.StructuredIndex = scalarValue(v)
	}
	if v, _, ok := firstPresent(root, data, looseIndexExtractors); ok {
		d.LooseIndex = scalarValue(v)
	}
	if v, _, ok := firstPresent(root, data, nameExtractors); ok {
		d.Name = strings.TrimSpace(v.String())
	}

	for _, p := range listEventPaths {
		if root.Get(p).IsObject() {
			d.HasListEvent = true
			break
		}
	}
	d.HasListPayload = d.HasListEvent || d.StructuredIndex != nil || d.LooseIndex != nil || d.Name != ""
	return d
}

// jsonDataOf 返回 jsonData 对象; 字符串形式时再解析一次。
func jsonDataOf(root gjson.Result) gjson.Result {
	data := root.Get("jsonData")
	if data.Type == gjson.String && gjson.Valid(data.Str) {
		data = gjson.Parse(data.Str)
	}
	if !data.IsObject() {
		return gjson.Result{}
	}
	return data
}

// firstPresent 按顺序折叠提取器, 返回第一个存在且非 null 的值。
func firstPresent(root, data gjson.Result, extractors []extractor) (gjson.Result, string, bool) {
	for _, ex := range extractors {
		src := root
		if ex.jsonData {
			if !data.Exists() {
				continue
			}
			src = data
		}
		v := src.Get(ex.path)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		return v, ex.name, true
	}
	return gjson.Result{}, "", false
}

// scalarValue gjson 值 → Go 值。数字保持为 json.Number, 避免精度丢失。
func scalarValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return v.Value()
	}
}
