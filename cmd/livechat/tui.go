package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/omochice/livechat/internal/client"
	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/internal/transcript"
	"github.com/omochice/livechat/pkg/protocol"
)

type stateMsg session.State

type transcriptMsg []protocol.Message

type replyPendingMsg bool

type submitResultMsg struct{ err error }

// programObserver forwards client notifications into the program.
type programObserver struct {
	program *tea.Program
}

func (o *programObserver) StateChange(s session.State) { o.program.Send(stateMsg(s)) }

func (o *programObserver) TranscriptChange(m []protocol.Message) { o.program.Send(transcriptMsg(m)) }

func (o *programObserver) ReplyPending(p bool) { o.program.Send(replyPendingMsg(p)) }

var _ client.Observer = (*programObserver)(nil)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	ownStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Bold(true)
	otherStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Bold(true)
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
)

type model struct {
	identity string
	submit   func(string) error
	now      func() time.Time

	state        session.State
	messages     []protocol.Message
	replyPending bool
	lastActivity time.Time
	status       string

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

func newModel(identity string, submit func(string) error) model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = dimStyle

	return model{
		identity: identity,
		submit:   submit,
		now:      time.Now,
		input:    input,
		timeline: viewport.New(0, 0),
		spinner:  sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case stateMsg:
		m.state = session.State(msg)
		m.renderTimeline()
	case transcriptMsg:
		m.messages = msg
		m.lastActivity = m.now()
		m.renderTimeline()
	case replyPendingMsg:
		m.replyPending = bool(msg)
	case submitResultMsg:
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.Is(msg.err, client.ErrNotConnected):
			m.status = "not connected, message not sent"
		case errors.Is(msg.err, transcript.ErrEmptyContent):
		default:
			m.status = msg.err.Error()
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if cmd := m.send(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// send hands the input to the client. Input is inert while the session
// is not connected.
func (m *model) send() tea.Cmd {
	text := m.input.Value()
	if m.state != session.Connected || strings.TrimSpace(text) == "" {
		return nil
	}
	m.input.Reset()
	submit := m.submit
	return func() tea.Msg {
		return submitResultMsg{err: submit(text)}
	}
}

func (m *model) resize() {
	// title, status, separator, input, footer
	chrome := 5
	m.timeline.Width = m.width
	m.timeline.Height = max(m.height-chrome, 1)
	m.input.Width = max(m.width-len(m.input.Prompt)-1, 10)
	m.renderTimeline()
}

func (m *model) renderTimeline() {
	m.timeline.SetContent(renderTranscript(m.messages, m.identity, m.state))
	m.timeline.GotoBottom()
}

// renderTranscript renders the transcript, or a hint when it is empty.
func renderTranscript(messages []protocol.Message, identity string, state session.State) string {
	if len(messages) == 0 {
		if state == session.Connected {
			return dimStyle.Render("No messages yet. Say hello!")
		}
		return dimStyle.Render("Connecting to chat...")
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		style := otherStyle
		if msg.IsOwn(identity) {
			style = ownStyle
		}
		fmt.Fprintf(&b, "%s %s %s",
			dimStyle.Render("["+msg.DisplayTime()+"]"),
			style.Render(msg.DisplaySender(identity)+":"),
			msg.Content)
	}
	return b.String()
}

func (m model) statusLine() string {
	if m.state == session.Connected {
		return connectedStyle.Render("Connected")
	}
	return disconnectedStyle.Render("Disconnected")
}

func (m model) footer() string {
	parts := []string{humanize.Comma(int64(len(m.messages))) + " messages"}
	if !m.lastActivity.IsZero() {
		parts = append(parts, "last activity "+humanize.RelTime(m.lastActivity, m.now(), "ago", "from now"))
	}
	if m.replyPending {
		parts = append(parts, m.spinner.View()+" waiting for reply")
	}
	if m.status != "" {
		parts = append(parts, errorStyle.Render(m.status))
	}
	return dimStyle.Render(strings.Join(parts, " · "))
}

func (m model) View() string {
	title := titleStyle.Render("Chat - " + m.identity)
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", m.statusLine())
	separator := dimStyle.Render(strings.Repeat("─", max(m.width, 1)))
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		separator,
		m.timeline.View(),
		separator,
		m.input.View(),
		m.footer(),
	)
}
