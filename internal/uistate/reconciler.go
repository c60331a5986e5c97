package uistate

import (
	"github.com/BxNxM/even-dev/internal/event"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/util"
)

// Reconciler 持有唯一的 ApplicationState 并按固定规则修改它。
//
// 非并发安全: 所有调用必须来自同一个 goroutine (engine 的事件队列)。
type Reconciler struct {
	state   *ApplicationState
	profile Profile
}

// NewReconciler 创建应用实例的状态与 reconciler。
func NewReconciler(app, title string, profile Profile, options []string) *Reconciler {
	if profile == nil {
		profile = plainProfile{}
	}
	return &Reconciler{
		state: &ApplicationState{
			App:     app,
			Title:   title,
			Profile: profile.Name(),
			Options: NewOptionList(options...),
		},
		profile: profile,
	}
}

// Snapshot 当前状态的深拷贝。
func (r *Reconciler) Snapshot() Snapshot { return r.state.Snapshot() }

// Outcome 一次修改的结果摘要 (用于日志)。
type Outcome struct {
	Previous int    `json:"previous"`
	Selected int    `json:"selected"`
	Label    string `json:"label"`
	Changed  bool   `json:"changed"`
}

// ========================================
// bridge 事件路径
// ========================================

// Apply 应用一个规范事件, 规则按顺序匹配, 第一条命中即生效:
//
//   - ScrollUp / ScrollDown: 有解析行号就选中它, 否则 ±1 并夹在边界内
//   - Click: 有解析行号就选中它, 否则选中第 0 行 (模拟器首行省略字段)
//   - DoubleClick: 有解析行号就选中它, 否则保持
//   - Unknown 且像列表载荷: 有解析行号就选中, 否则隐式第 0 行
//   - 其他: 有解析行号就采纳, 否则不变
//
// Click / DoubleClick 以及列表隐式点击之后再调用 profile 语义。
func (r *Reconciler) Apply(kind event.Kind, resolved int, hasListPayload bool) Outcome {
	st := r.state
	prev := st.Selected
	n := st.Options.Len()
	hasIndex := resolved >= 0

	label := kind.String()
	switch {
	case kind == event.ScrollUp:
		if hasIndex {
			r.selectIndex(resolved)
		} else {
			r.selectIndex(st.Selected - 1)
		}
	case kind == event.ScrollDown:
		if hasIndex {
			r.selectIndex(resolved)
		} else {
			r.selectIndex(st.Selected + 1)
		}
	case kind == event.Click:
		if hasIndex {
			r.selectIndex(resolved)
		} else {
			r.selectIndex(0)
			label = LastEventClickRow0
		}
		r.profile.OnClick(st)
	case kind == event.DoubleClick:
		if hasIndex {
			r.selectIndex(resolved)
		}
		r.profile.OnDoubleClick(st)
	case kind == event.Unknown && hasListPayload:
		if hasIndex {
			r.selectIndex(resolved)
			label = LastEventInferred
		} else {
			r.selectIndex(0)
			label = LastEventImplicitRow0
		}
		r.profile.OnClick(st)
	default:
		if hasIndex {
			r.selectIndex(resolved)
			label = LastEventAdopted
		}
	}
	if n == 0 {
		st.Selected = 0
	}

	st.LastEvent = label
	st.Seq++
	return Outcome{Previous: prev, Selected: st.Selected, Label: label, Changed: prev != st.Selected}
}

// selectIndex 选中行号并夹在 [0, len-1]; 空列表固定为 0。
func (r *Reconciler) selectIndex(i int) {
	r.state.Selected = util.ClampInt(i, 0, r.state.Options.Len()-1)
}

// ========================================
// 本地 (面板) 动作路径
// ========================================

// ActionKind 面板发起的动作类型。
type ActionKind string

const (
	ActionIncrement    ActionKind = "inc"
	ActionDecrement    ActionKind = "dec"
	ActionReset        ActionKind = "reset"
	ActionSync         ActionKind = "sync"
	ActionSelect       ActionKind = "select"
	ActionAddOption    ActionKind = "add"
	ActionRemoveOption ActionKind = "remove"
)

// LocalAction 面板动作; Index 只用于 select, Label 用于 add/remove。
type LocalAction struct {
	Kind  ActionKind `json:"action"`
	Index int        `json:"index,omitempty"`
	Label string     `json:"label,omitempty"`
}

// LocalResult 本地动作结果。ForceRebuild 为 true 时渲染器必须整页重建。
type LocalResult struct {
	Outcome
	ForceRebuild bool `json:"forceRebuild"`
}

// ApplyLocal 应用面板动作, 不经过事件归一化。
//
// connected 表示当前是否持有 bridge; 未连接时 sync 只写状态栏, 不做任何事。
// 输入无效 (空标签、重复、删除不存在的项、未知动作) 返回错误, 状态不变。
func (r *Reconciler) ApplyLocal(a LocalAction, connected bool) (LocalResult, error) {
	st := r.state
	prev := st.Selected
	var res LocalResult

	switch a.Kind {
	case ActionIncrement:
		st.Counter++
	case ActionDecrement:
		st.Counter--
	case ActionReset:
		st.Counter = 0
		st.StatusMessage = ""
	case ActionSync:
		if !connected {
			st.StatusMessage = StatusNoConnection + ": sync skipped"
		} else {
			st.StatusMessage = StatusSynced
			res.ForceRebuild = true
		}
	case ActionSelect:
		r.selectIndex(a.Index)
	case ActionAddOption:
		if err := st.Options.Add(a.Label); err != nil {
			return res, err
		}
		r.selectIndex(st.Selected)
	case ActionRemoveOption:
		removed, err := st.Options.Remove(a.Label)
		if err != nil {
			return res, err
		}
		if removed < st.Selected {
			st.Selected--
		}
		r.selectIndex(st.Selected)
	default:
		return res, pkgerr.WithCode(pkgerr.ErrInvalidInput, "Reconciler.ApplyLocal", "unknown_action", "unknown action "+string(a.Kind))
	}

	st.LastEvent = LastEventLocalPrefix + string(a.Kind)
	st.Seq++
	res.Outcome = Outcome{Previous: prev, Selected: st.Selected, Label: st.LastEvent, Changed: prev != st.Selected}
	return res, nil
}

// SetStatus 直接写状态栏 (连接结果、错误提示)。
func (r *Reconciler) SetStatus(msg string) {
	r.state.StatusMessage = msg
	r.state.Seq++
}
