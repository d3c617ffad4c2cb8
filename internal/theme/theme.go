// Package theme provides the Lip Gloss color palette and reusable
// styles for the HostPulse TUI. It is a leaf package with no internal
// imports to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Server status colors.
var (
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDown    = lipgloss.Color("#dc2626")
	ColorOffline = lipgloss.Color("#4b5563")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Alert severity colors.
var (
	ColorInfo     = lipgloss.Color("#3b82f6")
	ColorSevWarn  = lipgloss.Color("#d97706")
	ColorCritical = lipgloss.Color("#dc2626")
)

// Usage bar thresholds.
var (
	ColorUsageLow  = lipgloss.Color("#22c55e") // <70%
	ColorUsageMid  = lipgloss.Color("#d97706") // 70-90%
	ColorUsageHigh = lipgloss.Color("#dc2626") // >90%
)

// UI chrome colors.
var (
	ColorBorder = lipgloss.Color("#4b5563")
	ColorDimmed = lipgloss.Color("#6b7280")
	ColorBright = lipgloss.Color("#f9fafb")
	ColorAck    = lipgloss.Color("#67e8f9")
)

// StatusColor returns the color for a server status string.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "healthy":
		return ColorHealthy
	case "warning":
		return ColorWarning
	case "down":
		return ColorDown
	case "offline":
		return ColorOffline
	default:
		return ColorDefault
	}
}

// SeverityColor returns the color for an alert severity string.
func SeverityColor(severity string) lipgloss.Color {
	switch severity {
	case "critical":
		return ColorCritical
	case "warning":
		return ColorSevWarn
	case "info":
		return ColorInfo
	default:
		return ColorDefault
	}
}

// UsageColor returns the color for a usage percentage (0-100).
func UsageColor(pct float64) lipgloss.Color {
	switch {
	case pct > 90:
		return ColorUsageHigh
	case pct > 70:
		return ColorUsageMid
	default:
		return ColorUsageLow
	}
}

// StatusGlyph returns a glyph for a server status string.
func StatusGlyph(status string) string {
	switch status {
	case "healthy":
		return "●"
	case "warning":
		return "◐"
	case "down":
		return "✗"
	case "offline":
		return "○"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
