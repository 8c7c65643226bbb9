package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title       lipgloss.Style
	header      lipgloss.Style
	account     lipgloss.Style
	current     lipgloss.Style
	detail      lipgloss.Style
	warning     lipgloss.Style
	positive    lipgloss.Style
	section     lipgloss.Style
	empty       lipgloss.Style
	fieldKey    lipgloss.Style
	fieldFaint  lipgloss.Style
	deactivated lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true),
		header:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		account:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		current:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("120")),
		detail:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		positive:    lipgloss.NewStyle().Foreground(lipgloss.Color("120")),
		section:     lipgloss.NewStyle().MarginTop(1),
		empty:       lipgloss.NewStyle().Faint(true),
		fieldKey:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		fieldFaint:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		deactivated: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}
