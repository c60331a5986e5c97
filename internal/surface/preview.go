package surface

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// 预览样式: 眼镜是单色绿屏, 终端里用绿色近似。
var (
	previewFrame = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("28")).
			Padding(0, 1)
	previewTitle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	previewItem     = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	previewSelected = lipgloss.NewStyle().Bold(true).Reverse(true).Foreground(lipgloss.Color("46"))
	previewFooter   = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("34"))
)

// RenderPreview 把远端页面渲染为终端文本 (mock 调试日志与 bridge-sim TUI 共用)。
// width 为内容列宽, <=0 时使用 48。
func RenderPreview(p Page, width int) string {
	if width <= 0 {
		width = 48
	}
	var lines []string
	texts := make(map[string]string, len(p.Texts))
	for _, t := range p.Texts {
		texts[t.ID] = t.Content
	}
	if title, ok := texts[ElementTitle]; ok {
		lines = append(lines, previewTitle.Render(truncate(title, width)))
	}
	if p.List != nil {
		for i, item := range p.List.Items {
			if i == p.List.Selected {
				lines = append(lines, previewSelected.Render("> "+truncate(item, width-2)))
				continue
			}
			lines = append(lines, previewItem.Render("  "+truncate(item, width-2)))
		}
		if len(p.List.Items) == 0 {
			lines = append(lines, previewFooter.Render("  (empty)"))
		}
	}
	for _, id := range []string{ElementStatus, ElementInfo} {
		if s, ok := texts[id]; ok {
			lines = append(lines, previewFooter.Render(truncate(s, width)))
		}
	}
	for _, t := range p.Texts {
		switch t.ID {
		case ElementTitle, ElementStatus, ElementInfo:
		default:
			lines = append(lines, previewItem.Render(truncate(t.Content, width)))
		}
	}
	return previewFrame.Width(width + 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
