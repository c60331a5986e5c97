package surface

import (
	"time"

	"github.com/BxNxM/even-dev/internal/uistate"
)

// 远端渲染策略。
const (
	StrategyCreate  = "create"
	StrategyUpdate  = "update"
	StrategyRebuild = "rebuild"
	StrategySkip    = "skip"
	StrategyNoop    = "noop"
)

// RemoteResult 最近一次远端渲染的结果。
type RemoteResult struct {
	Strategy   string    `json:"strategy,omitempty"`
	Error      string    `json:"error,omitempty"`
	Rejected   []string  `json:"rejected,omitempty"`
	Generation uint64    `json:"generation"`
	Seq        uint64    `json:"seq"`
	At         time.Time `json:"at,omitzero"`
}

// PanelView 本地面板的完整可见内容。
type PanelView struct {
	App           string       `json:"app"`
	Title         string       `json:"title"`
	Profile       string       `json:"profile"`
	Options       []string     `json:"options"`
	Selected      int          `json:"selected"`
	SelectedLabel string       `json:"selectedLabel"`
	Counter       int          `json:"counter"`
	Flag          bool         `json:"flag"`
	LastEvent     string       `json:"lastEvent"`
	Status        string       `json:"status"`
	Mode          Mode         `json:"mode"`
	Remote        RemoteResult `json:"remote"`
	Seq           uint64       `json:"seq"`
}

// BuildView 纯函数: 快照 + 模式 + 远端结果 → 面板视图。
func BuildView(snap uistate.Snapshot, mode Mode, remote RemoteResult) PanelView {
	remote.Rejected = append([]string(nil), remote.Rejected...)
	return PanelView{
		App:           snap.App,
		Title:         snap.Title,
		Profile:       snap.Profile,
		Options:       append([]string{}, snap.Options...),
		Selected:      snap.Selected,
		SelectedLabel: snap.SelectedLabel,
		Counter:       snap.Counter,
		Flag:          snap.Flag,
		LastEvent:     snap.LastEvent,
		Status:        snap.StatusMessage,
		Mode:          mode,
		Remote:        remote,
		Seq:           snap.Seq,
	}
}
