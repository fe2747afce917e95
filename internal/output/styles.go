package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
const (
	ColorAccent   = "154"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header     lipgloss.Style
	Title      lipgloss.Style
	Score      lipgloss.Style
	Label      lipgloss.Style
	Dim        lipgloss.Style
	Unverified lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
}

// ColorStyles returns styles bound to a renderer for out.
func ColorStyles(out io.Writer) Styles {
	r := lipgloss.NewRenderer(out)
	return Styles{
		Header:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Title:      r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Score:      r.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Label:      r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:        r.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Unverified: r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorYellow)),
		Success:    r.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning:    r.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:      r.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:     plain,
		Title:      plain,
		Score:      plain,
		Label:      plain,
		Dim:        plain,
		Unverified: plain,
		Success:    plain,
		Warning:    plain,
		Error:      plain,
	}
}
