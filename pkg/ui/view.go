package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/neurochat/pkg/chat"
)

const sidebarWidth = 32

func (m *Model) View() string {
	if m.authExpired {
		return errorStyle.Render("Session expired. Run `neurochat login` to re-authenticate.") + "\n"
	}
	if !m.ready {
		return "loading..."
	}

	header := m.headerView()
	main := m.viewport.View()
	if m.showSidebar {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), main)
	}

	statusLine := m.status
	if m.loading && statusLine == "" {
		statusLine = statusStyle.Render(m.spinner.View() + " sending...")
	}

	return header + "\n" + main + "\n" + statusLine + "\n" + m.input.View()
}

func (m *Model) headerView() string {
	title := headerStyle.Render("NeuroChat")
	who := ""
	if m.identity.Username != "" {
		who = statusStyle.Render("  " + m.identity.Username + " <" + m.identity.Email + ">")
	}
	active := ""
	if id := m.coord.ActiveSession(); id != "" {
		active = statusStyle.Render("  session:" + truncate(m.sessionTitle(id), 24))
	}
	return title + who + active
}

func (m *Model) sessionTitle(id string) string {
	for _, s := range m.sessions {
		if s.ID == id && s.Title != "" {
			return s.Title
		}
	}
	return id
}

func (m *Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sessions") + "\n")
	b.WriteString(statusStyle.Render("ctrl+n new  ctrl+d delete") + "\n\n")
	if len(m.sessions) == 0 {
		b.WriteString(statusStyle.Render("no sessions yet"))
	}
	for i, sess := range m.sessions {
		label := truncate(sess.Title, sidebarWidth-6)
		if label == "" {
			label = truncate(sess.ID, sidebarWidth-6)
		}
		if i == m.selected {
			b.WriteString(selectedSessionStyle.Render("> "+label) + "\n")
		} else {
			b.WriteString(sessionStyle.Render("  "+label) + "\n")
		}
	}
	return sidebarStyle.Width(sidebarWidth).Height(m.viewport.Height).Render(b.String())
}

// refreshViewport re-renders the timeline into the viewport and pins the
// scroll position to the bottom, like the original chat window.
func (m *Model) refreshViewport() {
	var b strings.Builder
	for i, msg := range m.msgs {
		b.WriteString(m.renderMessage(i, msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderMessage(index int, msg chat.Message) string {
	name := userNameStyle.Render(m.displayName())
	if msg.Role == chat.RoleAssistant {
		name = botNameStyle.Render("NeuroChat")
	}
	ts := ""
	if !msg.Timestamp.IsZero() {
		ts = timestampStyle.Render("  " + msg.Timestamp.Format("15:04"))
	}
	head := name + ts

	if msg.IsTyping {
		return head + "\n" + m.spinner.View() + statusStyle.Render(" thinking...") + "\n"
	}

	if m.reveal.active && m.reveal.index == index {
		body := m.reveal.prefix
		if m.reveal.cursor {
			body += cursorStyle.Render("▌")
		}
		return head + "\n" + body + "\n"
	}

	body := msg.Content
	if msg.Status == chat.StatusError {
		return head + "\n" + errorStyle.Render(body) + "\n"
	}
	if msg.Role == chat.RoleAssistant && m.renderer != nil {
		if rendered, err := m.renderer.Render(body); err == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}
	return head + "\n" + body + "\n"
}

func (m *Model) displayName() string {
	if m.identity.Username != "" {
		return m.identity.Username
	}
	return "You"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return fmt.Sprintf("%s...", string(runes[:n-3]))
}
