package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"proximity-radar.klederson.com/internal/config"
)

// RenderMenuBar renders the top menu bar.
func RenderMenuBar(width int, backend, nickname string, friendsOnly bool) string {
	title := fmt.Sprintf(" %s v%s ", config.AppName, config.AppVersion)

	keys := []struct{ key, label string }{
		{"f", "riend"},
		{"F", "riends only"},
		{"x", " forget"},
		{"⏎", " detail"},
		{"r", "estart"},
		{"q", "uit"},
	}

	menu := ""
	for _, k := range keys {
		menu += "  " + StyleMenuKey.Render("["+k.key+"]") + StyleMenuLabel.Render(k.label)
	}

	view := StyleFilterInactive.Render("ALL")
	if friendsOnly {
		view = StyleFilterActive.Render("FRIENDS")
	}

	who := StyleMenuLabel.Render(fmt.Sprintf("%s @ %s", nickname, backend))

	left := StyleMenuKey.Render(title) + menu
	right := view + "  " + who + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return StyleMenuBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
