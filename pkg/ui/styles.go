package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userNameStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	botNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	selectedSessionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sessionStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)
