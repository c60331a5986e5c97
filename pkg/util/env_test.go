package util

import (
	"testing"
	"time"
)

type envSample struct {
	Addr     string        `env:"EVEN_TEST_ADDR" default:"127.0.0.1:1"`
	BudgetMS int           `env:"EVEN_TEST_BUDGET_MS" default:"4000" min:"1"`
	Retries  int64         `env:"EVEN_TEST_RETRIES" default:"3" min:"0"`
	Ratio    float64       `env:"EVEN_TEST_RATIO" default:"0.5" min:"0"`
	Enabled  bool          `env:"EVEN_TEST_ENABLED" default:"true"`
	Interval time.Duration `env:"EVEN_TEST_INTERVAL" default:"10s" min:"1s"`
	Untagged string
	hidden   string `env:"EVEN_TEST_HIDDEN" default:"x"`
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, s envSample)
	}{
		{"defaults", nil, func(t *testing.T, s envSample) {
			if s.Addr != "127.0.0.1:1" || s.BudgetMS != 4000 || s.Retries != 3 || s.Ratio != 0.5 || !s.Enabled || s.Interval != 10*time.Second {
				t.Errorf("defaults = %+v", s)
			}
		}},
		{"overrides", map[string]string{
			"EVEN_TEST_ADDR": " 0.0.0.0:9 ", "EVEN_TEST_BUDGET_MS": "250", "EVEN_TEST_ENABLED": "OFF", "EVEN_TEST_INTERVAL": "1m",
		}, func(t *testing.T, s envSample) {
			if s.Addr != "0.0.0.0:9" || s.BudgetMS != 250 || s.Enabled || s.Interval != time.Minute {
				t.Errorf("overrides = %+v", s)
			}
		}},
		{"below min is raised", map[string]string{
			"EVEN_TEST_BUDGET_MS": "0", "EVEN_TEST_RATIO": "-1", "EVEN_TEST_INTERVAL": "10ms",
		}, func(t *testing.T, s envSample) {
			if s.BudgetMS != 1 || s.Ratio != 0 || s.Interval != time.Second {
				t.Errorf("clamped = %+v", s)
			}
		}},
		{"invalid falls back to default", map[string]string{
			"EVEN_TEST_BUDGET_MS": "soon", "EVEN_TEST_ENABLED": "maybe", "EVEN_TEST_INTERVAL": "10",
		}, func(t *testing.T, s envSample) {
			if s.BudgetMS != 4000 || !s.Enabled || s.Interval != 10*time.Second {
				t.Errorf("fallback = %+v", s)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var s envSample
			LoadFromEnv(&s)
			tt.check(t, s)
			if s.Untagged != "" || s.hidden != "" {
				t.Errorf("untagged or unexported field was set: %+v", s)
			}
		})
	}
}

func TestLoadFromEnv_RejectsNonStructPointer(t *testing.T) {
	var s envSample
	var nilPtr *envSample
	n := 3
	for _, v := range []any{nil, s, nilPtr, &n} {
		LoadFromEnv(v) // 只记日志, 不 panic
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in       string
		want, ok bool
	}{
		{"1", true, true},
		{"Yes", true, true},
		{" on ", true, true},
		{"0", false, true},
		{"FALSE", false, true},
		{"off", false, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseBool(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseBool(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
