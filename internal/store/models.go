package store

import (
	"time"

	"github.com/BxNxM/even-dev/pkg/logger"
)

// DiagnosticLog diagnostic_logs 表的一行。
type DiagnosticLog struct {
	ID         int64          `db:"id" json:"id"`
	Ts         time.Time      `db:"ts" json:"ts"`
	Level      string         `db:"level" json:"level"`
	Message    string         `db:"message" json:"message"`
	Component  string         `db:"component" json:"component"`
	EventType  string         `db:"event_type" json:"event_type"`
	Action     string         `db:"action" json:"action"`
	Mode       string         `db:"mode" json:"mode"`
	App        string         `db:"app" json:"app"`
	DurationMS *int           `db:"duration_ms" json:"duration_ms"`
	Extra      map[string]any `db:"extra" json:"extra"`
}

// Record 转换为面板统一的诊断记录格式。
func (d DiagnosticLog) Record() logger.Record {
	attrs := make(map[string]any, len(d.Extra)+6)
	for k, v := range d.Extra {
		attrs[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}
	set(logger.FieldComponent, d.Component)
	set(logger.FieldEventType, d.EventType)
	set(logger.FieldAction, d.Action)
	set(logger.FieldMode, d.Mode)
	set(logger.FieldApp, d.App)
	if d.DurationMS != nil {
		attrs[logger.FieldDurationMS] = *d.DurationMS
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return logger.Record{Time: d.Ts, Level: d.Level, Message: d.Message, Attrs: attrs}
}
