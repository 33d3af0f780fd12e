// Package ui provides terminal styling for agentsync CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Ayu theme color palette
var (
	ColorOK = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

// Status styles - consistent across all commands
var (
	OKStyle     = lipgloss.NewStyle().Foreground(ColorOK)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// HeaderStyle for section headers - bold with accent color
var HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Status icons - consistent semantic indicators
const (
	IconOK   = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

const SeparatorLight = "──────────────────────────────────────────"

// colorEnabled is resolved once from the environment. NO_COLOR and dumb
// terminals disable styling entirely.
var colorEnabled = func() bool {
	if termenv.EnvNoColor() {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}()

// Render applies style to s, or returns s unchanged when color output is
// disabled.
func Render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// OK renders text with success (green) styling
func OK(s string) string { return Render(OKStyle, s) }

// Warn renders text with warning (yellow) styling
func Warn(s string) string { return Render(WarnStyle, s) }

// Fail renders text with fail (red) styling
func Fail(s string) string { return Render(FailStyle, s) }

// Muted renders text with muted (gray) styling
func Muted(s string) string { return Render(MutedStyle, s) }

// Accent renders text with accent (blue) styling
func Accent(s string) string { return Render(AccentStyle, s) }

// Header renders a section header in bold accent color
func Header(s string) string { return Render(HeaderStyle, s) }

// Separator renders the light separator line in muted color
func Separator() string { return Render(MutedStyle, SeparatorLight) }
