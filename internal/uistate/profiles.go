package uistate

import "strings"

// Profile 按应用定义的单击/双击语义, 叠加在通用选中规则之上。
type Profile interface {
	Name() string
	OnClick(st *ApplicationState)
	OnDoubleClick(st *ApplicationState)
}

// ProfileByName 名称 → Profile; 未知名称返回 plain (无附加语义)。
func ProfileByName(name string) Profile {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "theme":
		return themeProfile{}
	case "launcher":
		return launcherProfile{}
	default:
		return plainProfile{}
	}
}

// themeProfile 主题选择器: 单击切换预览开关, 双击清零应用次数。
type themeProfile struct{}

func (themeProfile) Name() string { return "theme" }

func (themeProfile) OnClick(st *ApplicationState) {
	st.Flag = !st.Flag
	if st.Flag {
		st.StatusMessage = "preview " + st.SelectedLabel()
	} else {
		st.StatusMessage = "preview off"
	}
}

func (themeProfile) OnDoubleClick(st *ApplicationState) {
	st.Counter = 0
	st.StatusMessage = "counter reset"
}

// launcherProfile URL 启动器: 单击记一次打开, 双击切换收藏。
type launcherProfile struct{}

func (launcherProfile) Name() string { return "launcher" }

func (launcherProfile) OnClick(st *ApplicationState) {
	label := st.SelectedLabel()
	if label == "" {
		st.StatusMessage = "nothing to open"
		return
	}
	st.Counter++
	st.StatusMessage = "opening " + label
}

func (launcherProfile) OnDoubleClick(st *ApplicationState) {
	st.Flag = !st.Flag
	if st.Flag {
		st.StatusMessage = "favorite " + st.SelectedLabel()
	} else {
		st.StatusMessage = "unfavorite " + st.SelectedLabel()
	}
}

type plainProfile struct{}

func (plainProfile) Name() string                      { return "plain" }
func (plainProfile) OnClick(_ *ApplicationState)       {}
func (plainProfile) OnDoubleClick(_ *ApplicationState) {}
