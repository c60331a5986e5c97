package surface

import (
	"context"
	"log/slog"

	"github.com/BxNxM/even-dev/pkg/logger"
)

// MockDisplay 无 bridge 时的远端实现: 所有操作都是 no-op。
type MockDisplay struct{}

// Mode 实现 RemoteDisplay。
func (MockDisplay) Mode() Mode { return ModeMock }

// Create no-op; debug 级别打印终端预览。
func (MockDisplay) Create(_ context.Context, page Page) error {
	if logger.Get().Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("mock display: create", logger.FieldMode, ModeMock.String(), "preview", "\n"+RenderPreview(page, 0))
	}
	return nil
}

// Update no-op, 全部视为已应用。
func (MockDisplay) Update(_ context.Context, updates []ElementUpdate) (UpdateReport, error) {
	applied := make([]string, 0, len(updates))
	for _, u := range updates {
		applied = append(applied, u.ID)
	}
	return UpdateReport{Applied: applied}, nil
}
