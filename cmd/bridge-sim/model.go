package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BxNxM/even-dev/internal/bridge/sim"
	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
)

const (
	previewWidth = 44
	rawWidth     = 72
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	rawStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
)

// pageMsg 模拟器页面变化 (create / update / 设备侧选中移动)。
type pageMsg surface.Page

// emittedMsg 一次手势已发送。
type emittedMsg struct {
	raw event.RawEvent
	err error
}

// model bubbletea 模型: 预览当前页面, 按键转成设备手势。
type model struct {
	srv      *sim.Server
	addr     string
	pages    chan surface.Page
	page     *surface.Page
	last     string
	err      error
	width    int
	quitting bool
}

func newModel(srv *sim.Server, addr string) model {
	pages := make(chan surface.Page, 16)
	srv.OnChange(func(p surface.Page) {
		select {
		case pages <- p:
		default:
		}
	})
	m := model{srv: srv, addr: addr, pages: pages}
	if p, ok := srv.Page(); ok {
		m.page = &p
	}
	return m
}

func waitPage(ch <-chan surface.Page) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return pageMsg(p)
	}
}

func (m model) emit(kind event.Kind) tea.Cmd {
	return func() tea.Msg {
		raw, err := m.srv.Emit(kind)
		return emittedMsg{raw: raw, err: err}
	}
}

// implicitClick 只带 listEvent 外壳的载荷 (类型与行号都缺失)。
func (m model) implicitClick() tea.Cmd {
	return func() tea.Msg {
		raw := event.RawEvent(`{"listEvent":{"containerName":"options"}}`)
		m.srv.EmitRaw(raw)
		return emittedMsg{raw: raw}
	}
}

func (m model) Init() tea.Cmd { return waitPage(m.pages) }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case pageMsg:
		p := surface.Page(msg)
		m.page = &p
		return m, waitPage(m.pages)
	case emittedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.last = string(msg.raw)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			return m, m.emit(event.ScrollUp)
		case "down", "j":
			return m, m.emit(event.ScrollDown)
		case "enter":
			return m, m.emit(event.Click)
		case " ":
			return m, m.emit(event.DoubleClick)
		case "i":
			return m, m.implicitClick()
		case "x":
			m.srv.DropClients()
			m.last = "(clients dropped)"
			return m, nil
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	st := m.srv.Stats()
	b.WriteString(headerStyle.Render(fmt.Sprintf("bridge-sim %s  ws://%s/bridge", m.srv.Device(), m.addr)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("conns %d  creates %d  updates %d  rejected %d  events %d",
		st.Conns, st.Creates, st.Updates, st.Rejected, st.Events)))
	b.WriteString("\n\n")
	if m.page == nil {
		b.WriteString(dimStyle.Render("waiting for the first page..."))
	} else {
		b.WriteString(surface.RenderPreview(*m.page, previewWidth))
	}
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if m.last != "" {
		w := rawWidth
		if m.width > 0 && m.width < w {
			w = m.width
		}
		b.WriteString(rawStyle.Render(clip(m.last, w)))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("↑/↓ scroll  enter click  space double-click  i implicit click  x drop  q quit"))
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
