package sim

import (
	"strings"
	"testing"

	"github.com/BxNxM/even-dev/internal/event"
)

// 每种编码都必须能被解码回原动作与行号 (除非编码本身不带行信息)。
func TestEncode_RoundTripsThroughInterpret(t *testing.T) {
	options := []string{"Blue", "Green", "Orange"}
	kinds := []event.Kind{event.Click, event.DoubleClick, event.ScrollUp, event.ScrollDown}
	for enc := Encoding(0); enc < encodingCount; enc++ {
		for _, k := range kinds {
			for idx := 1; idx < len(options); idx++ {
				raw := Encode(enc, k, idx, strings.ToLower(options[idx]))
				it := event.Interpret(raw, options)
				if it.Kind != k {
					t.Errorf("%v/%v/%d: kind = %v (%s)", enc, k, idx, it.Kind, raw)
				}
				wantIdx := idx
				if enc == EncodingTextEvent {
					wantIdx = event.Unresolved
				}
				if it.Index != wantIdx {
					t.Errorf("%v/%v/%d: index = %d, want %d (%s)", enc, k, idx, it.Index, wantIdx, raw)
				}
			}
		}
	}
}

func TestEncode_FirstRowClickOmitsFields(t *testing.T) {
	it := event.Interpret(Encode(EncodingListNumeric, event.Click, 0, "blue"), []string{"Blue"})
	if it.Kind != event.Unknown || it.Index != event.Unresolved || !it.HasListPayload {
		t.Errorf("interpreted = %+v", it)
	}
}

func TestParseEncoding(t *testing.T) {
	for _, name := range EncodingNames() {
		enc, ok := ParseEncoding(name)
		if !ok || enc.String() != name {
			t.Errorf("ParseEncoding(%q) = %v, %v", name, enc, ok)
		}
	}
	if _, ok := ParseEncoding("morse"); ok {
		t.Error("ParseEncoding(morse) should fail")
	}
	if n := len(EncodingNames()); n != int(encodingCount) {
		t.Errorf("EncodingNames len = %d", n)
	}
}
