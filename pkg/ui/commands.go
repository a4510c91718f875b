package ui

import (
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-go-golems/neurochat/pkg/chat"
)

func (m *Model) fetchIdentityCmd() tea.Cmd {
	return func() tea.Msg {
		ident, err := m.coord.Identity(m.ctx)
		if err != nil {
			return opErrMsg{err: err}
		}
		return identityMsg{identity: ident}
	}
}

func (m *Model) refreshSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.coord.RefreshSessions(m.ctx); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) submitCmd(prompt string) tea.Cmd {
	return func() tea.Msg {
		if err := m.coord.Submit(m.ctx, prompt); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) openSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.coord.OpenSession(m.ctx, id); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) newSessionCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.coord.NewSession(m.ctx); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) deleteSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.coord.DeleteSession(m.ctx, id); err != nil {
			return opErrMsg{err: err}
		}
		return nil
	}
}

// copyLastAssistantCmd puts the most recent settled assistant reply on the
// system clipboard.
func (m *Model) copyLastAssistantCmd() tea.Cmd {
	var content string
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].Role == chat.RoleAssistant && !m.msgs[i].IsTyping {
			content = m.msgs[i].Content
			break
		}
	}
	if content == "" {
		return nil
	}
	return func() tea.Msg {
		if err := clipboard.WriteAll(content); err != nil {
			return opErrMsg{err: err}
		}
		return copiedMsg{}
	}
}

func (m *Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "ctrl+g":
		m.showSidebar = !m.showSidebar
		m.layout()
		m.refreshViewport()
		return m, nil

	case "ctrl+n":
		return m, m.newSessionCmd()

	case "ctrl+y":
		return m, m.copyLastAssistantCmd()

	case "up", "down":
		if m.showSidebar && len(m.sessions) > 0 {
			if key.String() == "up" && m.selected > 0 {
				m.selected--
			}
			if key.String() == "down" && m.selected < len(m.sessions)-1 {
				m.selected++
			}
			return m, nil
		}

	case "ctrl+d":
		if m.showSidebar && m.selected < len(m.sessions) {
			return m, m.deleteSessionCmd(m.sessions[m.selected].ID)
		}
		return m, nil

	case "enter":
		if m.showSidebar && m.selected < len(m.sessions) {
			m.showSidebar = false
			m.layout()
			return m, m.openSessionCmd(m.sessions[m.selected].ID)
		}
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" {
			return m, nil
		}
		if m.loading {
			m.status = statusStyle.Render("waiting for the previous reply...")
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		return m, m.submitCmd(prompt)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}
