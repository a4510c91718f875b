// Package ui is the terminal presentation layer. It never mutates
// conversation state directly: every action goes through the coordinator, and
// every render follows from a coordinator event delivered over the in-process
// pub/sub.
package ui

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/neurochat/pkg/chat"
)

// chatEventMsg wraps a coordinator event for the bubbletea loop.
type chatEventMsg struct {
	event chat.Event
}

// opErrMsg carries the failure of a coordinator operation.
type opErrMsg struct {
	err error
}

// identityMsg carries the fetched user identity.
type identityMsg struct {
	identity chat.Identity
}

// copiedMsg flashes a confirmation after a clipboard copy.
type copiedMsg struct{}

// revealState tracks the in-progress reveal of one message.
type revealState struct {
	active bool
	index  int
	prefix string
	cursor bool
}

// Model drives the chat screen: session sidebar, message viewport, input.
type Model struct {
	ctx   context.Context
	coord *chat.Coordinator

	events <-chan *message.Message

	spinner  bspinner.Model
	viewport viewport.Model
	input    textarea.Model
	renderer *glamour.TermRenderer

	identity chat.Identity
	sessions []chat.Session
	msgs     []chat.Message
	loading  bool
	reveal   revealState

	showSidebar bool
	selected    int

	status      string
	authExpired bool

	width  int
	height int
	ready  bool
}

func NewModel(ctx context.Context, coord *chat.Coordinator) (*Model, error) {
	events, err := coord.Events(ctx)
	if err != nil {
		return nil, err
	}

	sp := bspinner.New()
	sp.Spinner = bspinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	input := textarea.New()
	input.Placeholder = "Send a message..."
	input.SetHeight(2)
	input.ShowLineNumbers = false
	input.Focus()

	return &Model{
		ctx:      ctx,
		coord:    coord,
		events:   events,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		input:    input,
	}, nil
}

// waitForEvent bridges the coordinator's event channel into the tea loop.
func waitForEvent(ch <-chan *message.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		ev, err := chat.EventFromMessage(msg)
		msg.Ack()
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable chat event")
			return waitForEvent(ch)()
		}
		return chatEventMsg{event: ev}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
		waitForEvent(m.events),
		m.fetchIdentityCmd(),
		m.refreshSessionsCmd(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = ev.Width
		m.height = ev.Height
		m.layout()
		m.ready = true
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(ev)

	case chatEventMsg:
		return m.handleEvent(ev.event)

	case identityMsg:
		m.identity = ev.identity
		return m, nil

	case opErrMsg:
		if chat.IsAuthError(ev.err) {
			// The auth.expired event also fires; keep the message visible
			// either way.
			m.authExpired = true
			return m, tea.Quit
		}
		m.status = errorStyle.Render(ev.err.Error())
		return m, nil

	case copiedMsg:
		m.status = statusStyle.Render("copied to clipboard")
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev chat.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.events)}

	switch ev.Kind {
	case chat.EventTimeline:
		// A replaced timeline invalidates any reveal frame; the coordinator
		// cancels the animator on a switch, so no reveal.done will arrive to
		// clear it. Ticks for a still-running reveal re-establish it.
		m.reveal = revealState{}
		m.msgs = m.coord.Messages()
		if cmd := m.maybeStartReveal(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		m.refreshViewport()
	case chat.EventSessions:
		m.sessions = m.coord.Sessions()
		if m.selected >= len(m.sessions) {
			m.selected = 0
		}
	case chat.EventLoading:
		m.loading = ev.Loading
	case chat.EventRevealTick:
		m.reveal = revealState{active: true, index: ev.Index, prefix: ev.Prefix, cursor: ev.Cursor}
		m.refreshViewport()
	case chat.EventRevealDone:
		m.reveal = revealState{}
		m.msgs = m.coord.Messages()
		m.refreshViewport()
	case chat.EventAuthExpired:
		m.authExpired = true
		return m, tea.Quit
	}
	return m, tea.Batch(cmds...)
}

// maybeStartReveal kicks off the reveal for a freshly reconciled assistant
// message. The coordinator settles it on completion, so history and repeat
// timeline events never animate twice.
func (m *Model) maybeStartReveal() tea.Cmd {
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].IsTyping {
			continue
		}
		if m.msgs[i].IsNew && m.msgs[i].Role == chat.RoleAssistant {
			if m.reveal.active && m.reveal.index == i {
				return nil
			}
			index := i
			return func() tea.Msg {
				if err := m.coord.StartReveal(index); err != nil {
					return opErrMsg{err: err}
				}
				return nil
			}
		}
		break
	}
	return nil
}

func (m *Model) layout() {
	inputHeight := m.input.Height() + 1
	m.viewport.Width = m.chatWidth()
	m.viewport.Height = m.height - inputHeight - 3
	m.input.SetWidth(m.chatWidth())

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.chatWidth()-2),
	)
	if err != nil {
		log.Warn().Err(err).Msg("markdown renderer unavailable, rendering plain")
		m.renderer = nil
	} else {
		m.renderer = renderer
	}
}

func (m *Model) chatWidth() int {
	if m.showSidebar {
		w := m.width - sidebarWidth - 2
		if w < 20 {
			w = 20
		}
		return w
	}
	if m.width == 0 {
		return 80
	}
	return m.width
}
