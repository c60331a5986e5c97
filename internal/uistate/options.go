package uistate

import (
	"strings"

	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
)

// OptionList 有序、按标签去重的选项列表; 顺序即行号。
type OptionList struct {
	labels []string
}

// NewOptionList 从初始标签构建; 空白与重复标签被跳过。
func NewOptionList(labels ...string) OptionList {
	var l OptionList
	for _, label := range labels {
		_ = l.Add(label)
	}
	return l
}

// Len 选项数量。
func (l *OptionList) Len() int { return len(l.labels) }

// Labels 返回标签副本。
func (l *OptionList) Labels() []string {
	return append([]string{}, l.labels...)
}

// At 按行号取标签。
func (l *OptionList) At(i int) (string, bool) {
	if i < 0 || i >= len(l.labels) {
		return "", false
	}
	return l.labels[i], true
}

// Index 按标签 (精确匹配) 查找行号, 不存在返回 -1。
func (l *OptionList) Index(label string) int {
	label = strings.TrimSpace(label)
	for i, existing := range l.labels {
		if existing == label {
			return i
		}
	}
	return -1
}

// Add 追加选项。标签去空白后不能为空, 且不能与已有标签重复。
func (l *OptionList) Add(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return pkgerr.WithCode(pkgerr.ErrInvalidInput, "OptionList.Add", "empty_label", "option label is empty")
	}
	if l.Index(label) >= 0 {
		return pkgerr.WithCode(pkgerr.ErrInvalidInput, "OptionList.Add", "duplicate_option", "option "+label+" already exists")
	}
	l.labels = append(l.labels, label)
	return nil
}

// Remove 删除选项, 返回被删除的行号。
func (l *OptionList) Remove(label string) (int, error) {
	i := l.Index(label)
	if i < 0 {
		return -1, pkgerr.WithCode(pkgerr.ErrNotFound, "OptionList.Remove", "option_not_found", "option "+strings.TrimSpace(label)+" not found")
	}
	l.labels = append(l.labels[:i], l.labels[i+1:]...)
	return i, nil
}
