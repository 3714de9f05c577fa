// Package chat is a terminal client for the agent: each line the user
// enters is sent as a click on the current page and the rendered page is
// shown as text.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/keys"
	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/theme"
)

// InitialInteraction is sent when the chat opens and on ctrl+o.
const InitialInteraction = "Initial inbox request"

// Runner processes one interaction.
type Runner interface {
	Run(ctx context.Context, conv *agent.ConversationContext, mbox mailbox.Client, interaction string) (string, error)
}

// pageMsg carries the outcome of one interaction.
type pageMsg struct {
	interaction string
	html        string
	err         error
	elapsed     time.Duration
}

// Model is the Bubble Tea model of the chat.
type Model struct {
	ctx     context.Context
	runner  Runner
	conv    *agent.ConversationContext
	mailbox mailbox.Client

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     *keys.KeyMap

	page    string
	status  string
	pending string
	busy    bool
	width   int
	height  int
}

// New creates the chat model. Interactions run with ctx.
func New(ctx context.Context, runner Runner, conv *agent.ConversationContext, mbox mailbox.Client) Model {
	ta := textarea.New()
	ta.Placeholder = "Type what to click, e.g. Inbox or the subject of a message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(1)
	ta.CharLimit = 500
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	vp := viewport.New(76, 16)
	vp.Style = lipgloss.NewStyle()

	return Model{
		ctx:      ctx,
		runner:   runner,
		conv:     conv,
		mailbox:  mbox,
		input:    ta,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
		keys:     keys.DefaultKeyMap(),
		pending:  InitialInteraction,
		busy:     true,
		width:    80,
		height:   24,
	}
}

// Init loads the inbox page.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.run(InitialInteraction), m.spinner.Tick)
}

// Update handles messages for the chat.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case pageMsg:
		return m.handlePage(msg), nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.setSize(m.width, m.height)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		if m.busy {
			return m, nil
		}
		m.conv.Reset()
		m.status = "Conversation forgotten."
		return m, nil

	case key.Matches(msg, m.keys.Home):
		if m.busy {
			return m, nil
		}
		return m, m.start(InitialInteraction)

	case key.Matches(msg, m.keys.Send):
		if m.busy {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.start("User clicked: " + text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start marks the model busy and returns the command running the
// interaction.
func (m *Model) start(interaction string) tea.Cmd {
	m.busy = true
	m.pending = interaction
	m.status = ""
	return tea.Batch(m.run(interaction), m.spinner.Tick)
}

func (m Model) run(interaction string) tea.Cmd {
	ctx, runner, conv, mbox := m.ctx, m.runner, m.conv, m.mailbox
	return func() tea.Msg {
		began := time.Now()
		html, err := runner.Run(ctx, conv, mbox, interaction)
		return pageMsg{interaction: interaction, html: html, err: err, elapsed: time.Since(began)}
	}
}

func (m Model) handlePage(msg pageMsg) Model {
	m.busy = false
	m.pending = ""

	if msg.err != nil {
		m.status = theme.ErrorStyle.Render("Error: ") + msg.err.Error()
		return m
	}

	m.page = pageText(msg.html)
	m.status = fmt.Sprintf("%s (%s)", theme.PageStyle.Render(msg.interaction), msg.elapsed.Round(100*time.Millisecond))
	m.viewport.SetContent(m.page)
	m.viewport.GotoTop()
	return m
}

func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 4)
	m.help.Width = width

	vpHeight := height - 9 - lipgloss.Height(m.help.View(m.keys))
	if vpHeight < 4 {
		vpHeight = 4
	}
	m.viewport.Width = width - 6
	m.viewport.Height = vpHeight
}

// View renders the chat.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("mailagent")

	body := m.viewport.View()
	if m.page == "" && !m.busy {
		body = theme.HelpStyle.Render("No page yet.")
	}
	panel := theme.PanelStyle.Width(m.width - 2).Render(body)

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + theme.UserStyle.Render(m.pending)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		panel,
		theme.StatusBarStyle.Render(status),
		m.input.View(),
		m.help.View(m.keys),
	)
}
