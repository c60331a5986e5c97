// uistate.go — 应用状态类型定义与快照。
//
// ApplicationState 是唯一权威状态: 浏览器面板与远端眼镜都从它渲染。
// 只由 Reconciler 在 engine 的队列 goroutine 上修改, 其他组件只拿 Snapshot。
package uistate

// ========================================
// last-event 标签
// ========================================

// 事件路径标签, 写入 ApplicationState.LastEvent 供两个界面展示与诊断。
const (
	LastEventClickRow0    = "click:row0"     // Click 未携带行信息, 落到首行
	LastEventImplicitRow0 = "click:implicit" // 类型未识别的列表载荷, 隐式首行
	LastEventInferred     = "click:inferred" // 类型未识别的列表载荷, 行号已解析
	LastEventAdopted      = "unknown:adopted"
	LastEventLocalPrefix  = "local:"
)

// 状态栏固定文案。
const (
	StatusConnectionFailed = "connection failed"
	StatusNoConnection     = "no bridge connection"
	StatusSynced           = "synced"
)

// ApplicationState 单个运行中应用的权威状态。
type ApplicationState struct {
	App           string
	Title         string
	Profile       string
	Options       OptionList
	Selected      int
	Counter       int
	Flag          bool
	LastEvent     string
	StatusMessage string
	Seq           uint64
}

// Snapshot 状态的只读深拷贝 (JSON 友好)。
type Snapshot struct {
	App           string   `json:"app"`
	Title         string   `json:"title"`
	Profile       string   `json:"profile"`
	Options       []string `json:"options"`
	Selected      int      `json:"selected"`
	SelectedLabel string   `json:"selectedLabel"`
	Counter       int      `json:"counter"`
	Flag          bool     `json:"flag"`
	LastEvent     string   `json:"lastEvent"`
	StatusMessage string   `json:"statusMessage"`
	Seq           uint64   `json:"seq"`
}

// Snapshot 返回深拷贝, 调用方可随意持有。
func (s *ApplicationState) Snapshot() Snapshot {
	return Snapshot{
		App:           s.App,
		Title:         s.Title,
		Profile:       s.Profile,
		Options:       s.Options.Labels(),
		Selected:      s.Selected,
		SelectedLabel: s.SelectedLabel(),
		Counter:       s.Counter,
		Flag:          s.Flag,
		LastEvent:     s.LastEvent,
		StatusMessage: s.StatusMessage,
		Seq:           s.Seq,
	}
}

// SelectedLabel 当前选中行的标签, 列表为空时返回 ""。
func (s *ApplicationState) SelectedLabel() string {
	label, _ := s.Options.At(s.Selected)
	return label
}

// Clone 快照的深拷贝。
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Options = append([]string(nil), s.Options...)
	return out
}
