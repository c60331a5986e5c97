// safego.go — 安全 goroutine 启动器，捕获 panic 防止进程崩溃。
package util

import (
	"runtime/debug"

	"github.com/BxNxM/even-dev/pkg/logger"
)

// SafeGo 在新 goroutine 中安全执行 fn，捕获 panic 并记录日志 + 堆栈。
func SafeGo(fn func()) {
	SafeGoNamed("", fn)
}

// SafeGoNamed 同 SafeGo, panic 日志附带 component 名 (render worker / read loop 等)。
// onPanic 非 nil 时在记录日志后调用, 用于让调用方把组件标记为失效。
func SafeGoNamed(component string, fn func(), onPanic ...func(recovered any)) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("goroutine panicked",
				logger.FieldComponent, component,
				logger.FieldError, r,
				"stack", string(debug.Stack()),
			)
			for _, cb := range onPanic {
				if cb != nil {
					cb(r)
				}
			}
		}()
		fn()
	}()
}
