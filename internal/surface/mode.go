// Package surface 双界面渲染: 本地面板同步刷新, 远端眼镜异步走 update-or-rebuild 协议。
package surface

import (
	"context"

	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
)

// Mode 远端界面模式 (封闭变体), 只在 (重新) 连接时切换。
type Mode int

const (
	ModeMock Mode = iota
	ModeBridge
)

// String 模式名。
func (m Mode) String() string {
	if m == ModeBridge {
		return "bridge"
	}
	return "mock"
}

// MarshalText JSON 中以名称出现。
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText 接受 "bridge" / "mock"。
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "bridge":
		*m = ModeBridge
	case "mock", "":
		*m = ModeMock
	default:
		return pkgerr.Newf("Mode.UnmarshalText", "unknown mode %q", b)
	}
	return nil
}

// RemoteDisplay 远端显示能力。Bridge 与 Mock 各实现一份, 调用方只通过接口分发。
type RemoteDisplay interface {
	Mode() Mode
	// Create 整页构建 (首次渲染或重建)。
	Create(ctx context.Context, page Page) error
	// Update 增量更新; 无法原地更新的元素列在 Rejected 中。
	Update(ctx context.Context, updates []ElementUpdate) (UpdateReport, error)
}

// LocalDisplay 本地面板 (浏览器)。Show 必须是幂等的。
type LocalDisplay interface {
	Show(view PanelView)
}

// LocalDisplayFunc 函数适配器。
type LocalDisplayFunc func(view PanelView)

// Show 实现 LocalDisplay。
func (f LocalDisplayFunc) Show(view PanelView) { f(view) }
