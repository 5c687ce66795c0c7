package ui

import "github.com/charmbracelet/lipgloss"

// ComposeLayout joins the radar panel and peer list horizontally,
// with menu bar on top and status bar on bottom.
func ComposeLayout(menuBar, radarPanel, peerList, statusBar string) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, radarPanel, peerList)
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
}
