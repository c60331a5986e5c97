// Package logger 提供基于 slog 的结构化日志。
//
// 核心功能:
//   - Init() 配置默认日志器 (JSON/Text)
//   - InitWithFile() 同时输出到 stdout 和追加写的诊断日志文件
//   - AttachHandler() / AttachDBHandler() 动态挂载额外 sink (内存环 / PostgreSQL)
//   - FromContext() 上下文感知日志
//   - 包级便捷方法 (Info/Error/Warn/Debug/Fatal)
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// defaultLogger 使用 atomic.Pointer 保证并发安全。
	defaultLogger atomic.Pointer[slog.Logger]

	// level 全局可调日志级别, 所有 handler 共用。
	level slog.LevelVar

	attachMu    sync.Mutex     // 保护 baseHandler / sinks 重建
	baseHandler slog.Handler   // stdout / 文件 handler
	sinks       []slog.Handler // 额外挂载的 handler (ring / db)

	logFile   *os.File   // 诊断日志文件, Shutdown 时关闭
	logFileMu sync.Mutex // 保护 logFile 并发关闭
)

func init() {
	baseHandler = newHandler(os.Stdout, false)
	defaultLogger.Store(slog.New(baseHandler))
}

// getLogger 原子读取当前默认日志器。
func getLogger() *slog.Logger { return defaultLogger.Load() }

// rebuildLocked 以 baseHandler + sinks 重建默认日志器。调用方持有 attachMu。
func rebuildLocked() {
	var h slog.Handler = baseHandler
	if len(sinks) > 0 {
		all := make([]slog.Handler, 0, len(sinks)+1)
		all = append(all, baseHandler)
		all = append(all, sinks...)
		h = NewMultiHandler(all...)
	}
	l := slog.New(h)
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// replaceTimeAttr 时间统一格式化为带毫秒的本地时间, 便于对照 bridge 事件顺序。
func replaceTimeAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05.000"))
		}
	}
	return a
}

func newHandler(w io.Writer, development bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       &level,
		AddSource:   development,
		ReplaceAttr: replaceTimeAttr,
	}
	if development {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel 解析 LOG_LEVEL (DEBUG/INFO/WARN/ERROR, 大小写不敏感), 无效值返回 INFO。
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel 调整全局日志级别。
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// Init 初始化日志配置。env: "development"/"dev" 输出 text 到 stderr, 其余输出 JSON 到 stdout。
func Init(env string) {
	dev := env == "development" || env == "dev"
	w := io.Writer(os.Stdout)
	if dev {
		w = os.Stderr
	}
	attachMu.Lock()
	defer attachMu.Unlock()
	baseHandler = newHandler(w, dev)
	rebuildLocked()
}

// InitWithWriter 日志只写到 w (TUI 进程把日志导向文件或丢弃)。
func InitWithWriter(w io.Writer, env string) {
	attachMu.Lock()
	defer attachMu.Unlock()
	baseHandler = newHandler(w, env == "development" || env == "dev")
	rebuildLocked()
}

// InitWithFile 初始化日志, 同时输出到 stdout 和诊断日志文件。
//
// 日志文件: {logDir}/even-dev-{date}.log (JSON, O_APPEND 追加写)。
// 调用者应在退出前调用 ShutdownFileHandler() 关闭文件。
func InitWithFile(logDir string) (string, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("logger: create log dir: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logDir, fmt.Sprintf("even-dev-%s.log", date))

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("logger: open log file: %w", err)
	}
	logFileMu.Lock()
	old := logFile
	logFile = f
	logFileMu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	attachMu.Lock()
	baseHandler = newHandler(io.MultiWriter(os.Stdout, f), false)
	rebuildLocked()
	attachMu.Unlock()

	getLogger().Info("diagnostic log opened", FieldPath, logPath)
	return logPath, nil
}

// ShutdownFileHandler 关闭诊断日志文件 (并发安全)。
func ShutdownFileHandler() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}

// AttachHandler 挂载额外 handler (如 RingHandler), 之后的日志同时写入。
func AttachHandler(h slog.Handler) {
	if h == nil {
		return
	}
	attachMu.Lock()
	defer attachMu.Unlock()
	sinks = append(sinks, h)
	rebuildLocked()
}

// DetachHandler 卸载之前挂载的 handler。
func DetachHandler(h slog.Handler) {
	attachMu.Lock()
	defer attachMu.Unlock()
	kept := sinks[:0]
	for _, s := range sinks {
		if s != h {
			kept = append(kept, s)
		}
	}
	sinks = kept
	rebuildLocked()
}

// ========================================
// Context 感知日志
// ========================================

type ctxKey struct{}

// WithContext 将日志器注入 context。
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext 从 context 提取日志器，若不存在则返回默认日志器。
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return getLogger()
}

// ========================================
// 包级便捷方法
// ========================================

// Info/Error/Warn/Debug 记录结构化日志。args 为 key-value 对。
func Info(msg string, args ...any)  { getLogger().Info(msg, args...) }
func Error(msg string, args ...any) { getLogger().Error(msg, args...) }
func Warn(msg string, args ...any)  { getLogger().Warn(msg, args...) }
func Debug(msg string, args ...any) { getLogger().Debug(msg, args...) }

// Infof/Errorf/Warnf/Debugf 记录格式化日志。
func Infof(format string, args ...any)  { getLogger().Info(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { getLogger().Error(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { getLogger().Warn(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { getLogger().Debug(fmt.Sprintf(format, args...)) }

// Fatal 记录致命错误, flush 诊断日志后退出。
func Fatal(msg string, args ...any) {
	getLogger().Error(msg, args...)
	ShutdownDBHandler()
	ShutdownFileHandler()
	os.Exit(1)
}

// Infow/Warnw/Errorw/Debugw 等同于 Info/Warn/Error/Debug (兼容别名)。
func Infow(msg string, keysAndValues ...any)  { getLogger().Info(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...any)  { getLogger().Warn(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...any) { getLogger().Error(msg, keysAndValues...) }
func Debugw(msg string, keysAndValues ...any) { getLogger().Debug(msg, keysAndValues...) }

// With 返回带附加上下文的日志器。
func With(args ...any) *slog.Logger { return getLogger().With(args...) }

// Get 返回底层 slog.Logger。
func Get() *slog.Logger { return getLogger() }

// Attr 类型别名 (避免调用方直接 import slog)。
type Attr = slog.Attr

// Any 创建任意类型属性。
func Any(key string, value any) Attr { return slog.Any(key, value) }

// String 创建字符串属性。
func String(key, value string) Attr { return slog.String(key, value) }

// Int64 创建 int64 属性。
func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

// 预留字段常量 — MUST 使用常量键名，勿硬编码。
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldStatus     = "status"
	FieldAction     = "action"
	FieldApp        = "app"
	FieldMode       = "mode"
	FieldEventType  = "event_type"
	FieldRawType    = "raw_type"
	FieldIndex      = "index"
	FieldLabel      = "label"
	FieldCount      = "count"
	FieldSeq        = "seq"
	FieldStrategy   = "strategy"
	FieldGeneration = "generation"
	FieldBudgetMS   = "budget_ms"
	FieldDurationMS = "duration_ms"
	FieldURL        = "url"
	FieldAddr       = "addr"
	FieldListen     = "listen"
	FieldConn       = "conn"
	FieldClient     = "client"
	FieldRemote     = "remote"
	FieldOrigin     = "origin"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldID         = "id"
	FieldOp         = "op"
	FieldMax        = "max"
	FieldDataLen    = "data_len"
	FieldRaw        = "raw"
	FieldVersion    = "version"
	FieldDevice     = "device"
	FieldEnv        = "env"
)
