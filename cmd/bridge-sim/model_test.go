package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BxNxM/even-dev/internal/bridge/sim"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/internal/uistate"
)

func runCmd(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(model)
}

func TestModel_EmitWithoutPageShowsError(t *testing.T) {
	m := newModel(sim.New(sim.WithSeed(1)), "127.0.0.1:0")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = runCmd(t, next.(model), cmd)
	if m.err == nil {
		t.Fatal("expected error before any page is rendered")
	}
	if !strings.Contains(m.View(), "waiting for the first page") {
		t.Errorf("view = %q", m.View())
	}
}

func TestModel_PageAndImplicitClick(t *testing.T) {
	m := newModel(sim.New(sim.WithSeed(1)), "127.0.0.1:0")
	page := surface.BuildPage(snapshotFor("Blue", "Green"))
	next, cmd := m.Update(pageMsg(page))
	m = next.(model)
	if cmd == nil || m.page == nil {
		t.Fatal("page message should be stored and keep waiting")
	}
	if v := m.View(); !strings.Contains(v, "Blue") || !strings.Contains(v, "Green") {
		t.Errorf("view missing items: %q", v)
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	m = runCmd(t, next.(model), cmd)
	if m.err != nil || !strings.Contains(m.last, "listEvent") {
		t.Errorf("last = %q, err = %v", m.last, m.err)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newModel(sim.New(), "127.0.0.1:0")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !next.(model).quitting || next.(model).View() != "" {
		t.Error("q should quit")
	}
}

func TestClip(t *testing.T) {
	if got := clip("abcdef", 4); got != "abc…" {
		t.Errorf("clip = %q", got)
	}
	if got := clip("ab", 4); got != "ab" {
		t.Errorf("clip = %q", got)
	}
}

func snapshotFor(options ...string) uistate.Snapshot {
	return uistate.Snapshot{App: "theme", Title: "Theme", Options: options}
}
