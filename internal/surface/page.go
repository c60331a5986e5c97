package surface

import (
	"fmt"
	"slices"

	"github.com/BxNxM/even-dev/internal/uistate"
)

// 眼镜画布尺寸 (像素)。
const (
	CanvasWidth  = 576
	CanvasHeight = 288
)

// 固定元素 ID。
const (
	ElementTitle   = "title"
	ElementOptions = "options"
	ElementStatus  = "status"
	ElementInfo    = "info"
)

// TextBlock 带位置与尺寸的文本容器。
type TextBlock struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	Content string `json:"content"`
}

// ListBlock 可选中的列表容器。
type ListBlock struct {
	ID       string   `json:"id"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	W        int      `json:"w"`
	H        int      `json:"h"`
	Items    []string `json:"items"`
	Selected int      `json:"selected"`
}

// Page 远端整页描述。
type Page struct {
	Texts []TextBlock `json:"texts"`
	List  *ListBlock  `json:"list,omitempty"`
}

// ElementUpdate 单个元素的增量更新。文本元素用 Content, 列表元素用 Items + Selected。
type ElementUpdate struct {
	ID       string   `json:"id"`
	Content  string   `json:"content,omitempty"`
	Items    []string `json:"items,omitempty"`
	Selected int      `json:"selected"`
}

// UpdateReport 远端对增量更新的回执。
type UpdateReport struct {
	Applied  []string `json:"applied"`
	Rejected []string `json:"rejected"`
}

// BuildPage 纯函数: 快照 → 远端页面。
func BuildPage(snap uistate.Snapshot) Page {
	title := snap.Title
	if title == "" {
		title = snap.App
	}
	status := snap.StatusMessage
	if status == "" {
		status = "ready"
	}
	flag := "off"
	if snap.Flag {
		flag = "on"
	}
	return Page{
		Texts: []TextBlock{
			{ID: ElementTitle, X: 0, Y: 0, W: CanvasWidth, H: 40, Content: title},
			{ID: ElementStatus, X: 0, Y: 228, W: CanvasWidth, H: 30, Content: status},
			{ID: ElementInfo, X: 0, Y: 258, W: CanvasWidth, H: 30,
				Content: fmt.Sprintf("count %d | flag %s | %s", snap.Counter, flag, snap.LastEvent)},
		},
		List: &ListBlock{
			ID: ElementOptions, X: 0, Y: 44, W: CanvasWidth, H: 180,
			Items:    append([]string{}, snap.Options...),
			Selected: snap.Selected,
		},
	}
}

// Diff 计算从 prev 到 next 的增量更新。
//
// structural 为 true 表示元素集合或几何布局变了, 无法增量, 只能重建。
func Diff(prev, next Page) (updates []ElementUpdate, structural bool) {
	if len(prev.Texts) != len(next.Texts) || (prev.List == nil) != (next.List == nil) {
		return nil, true
	}
	for i, nt := range next.Texts {
		pt := prev.Texts[i]
		if pt.ID != nt.ID || pt.X != nt.X || pt.Y != nt.Y || pt.W != nt.W || pt.H != nt.H {
			return nil, true
		}
		if pt.Content != nt.Content {
			updates = append(updates, ElementUpdate{ID: nt.ID, Content: nt.Content})
		}
	}
	if next.List != nil {
		pl, nl := prev.List, next.List
		if pl.ID != nl.ID || pl.X != nl.X || pl.Y != nl.Y || pl.W != nl.W || pl.H != nl.H {
			return nil, true
		}
		if pl.Selected != nl.Selected || !slices.Equal(pl.Items, nl.Items) {
			updates = append(updates, ElementUpdate{
				ID:       nl.ID,
				Items:    append([]string{}, nl.Items...),
				Selected: nl.Selected,
			})
		}
	}
	return updates, false
}
