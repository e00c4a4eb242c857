// Package ui holds the terminal styles of the command line.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	DescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	FlagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	EventStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// EventLine renders one relay event for the terminal.
func EventLine(kind, payload string) string {
	style := EventStyle
	if kind == "clickError" {
		style = ErrorStyle
	}
	return style.Render(kind) + " " + payload
}
