package ui

import "github.com/charmbracelet/lipgloss"

// Matrix color palette
var (
	ColorMatrixGreen  = lipgloss.Color("#00FF41")
	ColorGreen        = lipgloss.Color("#00CC33")
	ColorMidGreen     = lipgloss.Color("#008F11")
	ColorDimGreen     = lipgloss.Color("#004A0A")
	ColorBlack        = lipgloss.Color("#000000")
	ColorPeer         = lipgloss.Color("#00FFAA")
	ColorNoHeading    = lipgloss.Color("#33FF66")
	ColorFriend       = lipgloss.Color("#FFD700")
	ColorBorderBright = lipgloss.Color("#00FF41")
	ColorBorderNorm   = lipgloss.Color("#00AA22")
	ColorError        = lipgloss.Color("#FF3300")
	ColorWarning      = lipgloss.Color("#FFAA00")
)

// Pre-built styles
var (
	StyleMenuBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleMenuKey = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StyleMenuLabel = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorGreen).
			Padding(0, 1)

	StyleStatusScanning = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StyleStatusPaused = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	StylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderNorm)

	StylePanelActive = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderBright)

	StylePanelTitle = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StylePeerName = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StylePeerID = lipgloss.NewStyle().
			Foreground(ColorMidGreen)

	StylePeerSignal = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StylePeerBearing = lipgloss.NewStyle().
				Foreground(ColorPeer)

	StylePeerNoHeading = lipgloss.NewStyle().
				Foreground(ColorNoHeading)

	StyleFriendMark = lipgloss.NewStyle().
			Foreground(ColorFriend).
			Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	StyleFilterActive = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StyleFilterInactive = lipgloss.NewStyle().
				Foreground(ColorDimGreen)

	StyleRadarRing = lipgloss.NewStyle().
			Foreground(ColorMidGreen)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorDimGreen)

	StyleStale = lipgloss.NewStyle().
			Foreground(ColorDimGreen)
)
