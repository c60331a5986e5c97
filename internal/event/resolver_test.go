package event

import (
	"encoding/json"
	"testing"
)

var colors = []string{"Blue", "Green", "Orange"}

func TestResolveIndex_Precedence(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"structured index", `{"listEvent":{"currentSelectItemIndex":1,"currentSelectItemName":"Orange"}}`, 1},
		{"structured string index", `{"listEvent":{"currentSelectItemIndex":"2"}}`, 2},
		{"structured out of range falls to loose", `{"listEvent":{"currentSelectItemIndex":7},"jsonData":{"current_select_item_index":1}}`, 1},
		{"loose beats name", `{"jsonData":{"currentSelectItemIndex":0,"currentSelectItemName":"Orange"}}`, 0},
		{"bad loose falls to name", `{"jsonData":{"currentSelectItemIndex":"x","currentSelectItemName":"green"}}`, 1},
		{"exact name case-insensitive", `{"listEvent":{"currentSelectItemName":"ORANGE"}}`, 2},
		{"prefix name", `{"jsonData":{"current_selected_name":"gr"}}`, 1},
		{"negative index", `{"listEvent":{"currentSelectItemIndex":-1}}`, Unresolved},
		{"fractional index", `{"listEvent":{"currentSelectItemIndex":1.5}}`, Unresolved},
		{"no match", `{"listEvent":{"currentSelectItemName":"purple"}}`, Unresolved},
		{"empty", `{}`, Unresolved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveIndex(Decode(RawEvent(tc.raw)), colors); got != tc.want {
				t.Errorf("ResolveIndex = %d, want %d", got, tc.want)
			}
		})
	}
}

// Click 携带小写行名 "orange": 精确/前缀匹配解析到 2。
func TestResolveIndex_ClickWithLowercaseName(t *testing.T) {
	it := Interpret(RawEvent(`{"listEvent":{"eventType":"CLICK_EVENT","currentSelectItemName":"orange"}}`), colors)
	if it.Kind != Click {
		t.Fatalf("kind = %v, want click", it.Kind)
	}
	if it.Index != 2 {
		t.Errorf("index = %d, want 2", it.Index)
	}
}

func TestResolveIndex_PrefixFirstInListOrder(t *testing.T) {
	opts := []string{"https://go.dev", "https://golang.org", "http://x"}
	d := Decoded{Name: "HTTPS://GO"}
	if got := ResolveIndex(d, opts); got != 0 {
		t.Errorf("ResolveIndex = %d, want 0", got)
	}
}

func TestResolveIndex_EmptyOptions(t *testing.T) {
	d := Decoded{StructuredIndex: json.Number("0"), Name: "Blue"}
	if got := ResolveIndex(d, nil); got != Unresolved {
		t.Errorf("ResolveIndex = %d, want unresolved", got)
	}
}

// 任意长度 L>0 与任意提议行号, 结果要么 Unresolved 要么落在 [0, L-1]。
func TestResolveIndex_AlwaysInRange(t *testing.T) {
	all := []string{"a", "b", "c", "d", "e", "f"}
	for l := 1; l <= len(all); l++ {
		opts := all[:l]
		for i := -5; i <= 12; i++ {
			for _, d := range []Decoded{
				{StructuredIndex: json.Number(itoa(i))},
				{LooseIndex: itoa(i)},
				{LooseIndex: float64(i)},
				{StructuredIndex: i},
			} {
				got := ResolveIndex(d, opts)
				if got == Unresolved {
					if i >= 0 && i < l {
						t.Errorf("L=%d i=%d: unresolved, want %d", l, i, i)
					}
					continue
				}
				if got < 0 || got > l-1 {
					t.Fatalf("L=%d i=%d: got %d out of range", l, i, got)
				}
			}
		}
	}
}

func TestInterpret_UnknownListPayload(t *testing.T) {
	it := Interpret(RawEvent(`{"listEvent":{"containerName":"options"}}`), colors)
	if it.Kind != Unknown || it.Index != Unresolved || !it.HasListPayload {
		t.Errorf("Interpret = %+v", it)
	}
}
