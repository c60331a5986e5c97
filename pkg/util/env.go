// env.go — 按 struct tag 从环境变量填充配置。
package util

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BxNxM/even-dev/pkg/logger"
)

// envTag 字段标签: env:"NAME" default:"v" min:"n"。
type envTag struct {
	name string
	def  string
	min  string
}

var durationType = reflect.TypeFor[time.Duration]()

// LoadFromEnv 填充 ptr 指向的结构体中带 env tag 的字段。
//
// 变量未设置或为空时取 default; 值无法解析时记 Warn 并回退 default;
// 数值 (含 time.Duration) 小于 min 时抬到 min。
// 支持 string, int, int64, float64, bool, time.Duration。
func LoadFromEnv(ptr any) {
	rv := reflect.ValueOf(ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		logger.Error("util.LoadFromEnv: want non-nil pointer to struct", "type", fmt.Sprintf("%T", ptr))
		return
	}
	v := rv.Elem()
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		name, ok := f.Tag.Lookup("env")
		if !ok || name == "" || !f.IsExported() {
			continue
		}
		tag := envTag{name: name, def: f.Tag.Get("default"), min: f.Tag.Get("min")}
		raw := strings.TrimSpace(os.Getenv(name))
		if raw == "" {
			raw = tag.def
		}
		if err := setEnvField(v.Field(i), raw, tag); err != nil {
			logger.Warn("util: invalid env value, using default",
				logger.FieldEnv, name, logger.FieldRaw, raw, logger.FieldError, err)
			_ = setEnvField(v.Field(i), tag.def, tag)
		}
	}
}

func setEnvField(fv reflect.Value, raw string, tag envTag) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		if lo, err := time.ParseDuration(tag.min); err == nil {
			d = max(d, lo)
		}
		fv.SetInt(int64(d))
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		if lo, err := strconv.ParseInt(tag.min, 10, 64); err == nil {
			n = max(n, lo)
		}
		fv.SetInt(n)
	case reflect.Float64:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		if lo, err := strconv.ParseFloat(tag.min, 64); err == nil {
			x = max(x, lo)
		}
		fv.SetFloat(x)
	case reflect.Bool:
		b, ok := parseBool(raw)
		if !ok {
			return fmt.Errorf("not a boolean: %q", raw)
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

// parseBool 接受 1/true/yes/on 与 0/false/no/off (不区分大小写)。
func parseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
