package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const helpText = "/join <room|link>  /leave  /peers  /link  /theme  /quit"

// ChatSession is the part of *session.Session the chat screen drives.
type ChatSession interface {
	Join(ctx context.Context, roomID string) error
	Send(ctx context.Context, text string) error
	Reset(ctx context.Context) error
	Peers(ctx context.Context) ([]session.PeerInfo, error)
	Events() <-chan session.Event
}

type ChatOptions struct {
	Session     ChatSession
	DisplayName string
	Room        string

	// RoomLink builds the shareable link for a room.
	RoomLink func(room string) string

	// Themes persists theme toggles. Nil disables persistence.
	Themes *ThemeStore
}

type lineKind int

const (
	lineMessage lineKind = iota
	lineSystem
	lineError
	lineBlock
)

type chatLine struct {
	kind   lineKind
	at     time.Time
	sender string
	text   string
	own    bool
}

// Messages fed back into Update by commands.
type (
	eventMsg        session.Event
	eventsClosedMsg struct{}
	joinResultMsg   struct {
		room string
		err  error
	}
	sendResultMsg  struct{ err error }
	resetResultMsg struct{ err error }
	peersMsg       struct {
		peers []session.PeerInfo
		err   error
	}
)

// ChatModel is the bubbletea model for the chat screen.
type ChatModel struct {
	opts ChatOptions

	input   textinput.Model
	view    viewport.Model
	spinner spinner.Model

	lines  []chatLine
	room   string
	status session.Status
	peers  map[string]struct{}

	width, height int
	ready         bool
}

func NewChatModel(opts ChatOptions) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message, or /help"
	ti.CharLimit = 4096
	ti.Prompt = "› "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return &ChatModel{
		opts:    opts,
		input:   ti,
		spinner: sp,
		room:    opts.Room,
		status:  session.StatusIdle,
		peers:   make(map[string]struct{}),
	}
}

func (m *ChatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, m.waitForEvent()}
	if m.room != "" {
		cmds = append(cmds, m.joinCmd(m.room))
	}
	return tea.Batch(cmds...)
}

func (m *ChatModel) waitForEvent() tea.Cmd {
	events := m.opts.Session.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *ChatModel) joinCmd(room string) tea.Cmd {
	sess := m.opts.Session
	return func() tea.Msg {
		return joinResultMsg{room: room, err: sess.Join(context.Background(), room)}
	}
}

func (m *ChatModel) sendCmd(text string) tea.Cmd {
	sess := m.opts.Session
	return func() tea.Msg {
		return sendResultMsg{err: sess.Send(context.Background(), text)}
	}
}

func (m *ChatModel) resetCmd() tea.Cmd {
	sess := m.opts.Session
	return func() tea.Msg {
		return resetResultMsg{err: sess.Reset(context.Background())}
	}
}

func (m *ChatModel) peersCmd() tea.Cmd {
	sess := m.opts.Session
	return func() tea.Msg {
		peers, err := sess.Peers(context.Background())
		return peersMsg{peers: peers, err: err}
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+t":
			m.toggleTheme()
			return m, nil
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			return m, m.handleInput(text)
		}

	case eventMsg:
		m.handleEvent(session.Event(msg))
		cmds = append(cmds, m.waitForEvent())

	case eventsClosedMsg:
		return m, tea.Quit

	case joinResultMsg:
		if msg.err != nil {
			m.addLine(chatLine{kind: lineError, text: joinErrorText(msg.err)})
		} else {
			m.room = msg.room
			m.addLine(chatLine{kind: lineSystem, text: fmt.Sprintf("joined %s as %s", msg.room, m.opts.DisplayName)})
			if m.opts.RoomLink != nil {
				m.addLine(chatLine{kind: lineSystem, text: "share: " + m.opts.RoomLink(msg.room)})
			}
		}

	case sendResultMsg:
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, errs.ErrNotJoined):
			m.addLine(chatLine{kind: lineError, text: "join a room first, /join <room>"})
		default:
			// Per-peer delivery failures are informational.
			m.addLine(chatLine{kind: lineSystem, text: "not delivered to every peer: " + msg.err.Error()})
		}

	case resetResultMsg:
		if msg.err != nil {
			m.addLine(chatLine{kind: lineError, text: msg.err.Error()})
		} else {
			m.room = ""
			m.peers = make(map[string]struct{})
			m.addLine(chatLine{kind: lineSystem, text: "left the room"})
		}

	case peersMsg:
		if msg.err != nil {
			m.addLine(chatLine{kind: lineError, text: msg.err.Error()})
		} else {
			m.addLine(chatLine{kind: lineBlock, text: PeersView(msg.peers)})
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if scrollsView(msg) {
		m.view, cmd = m.view.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// scrollsView filters out keys the viewport would otherwise steal from the
// input, such as space and j/k.
func scrollsView(msg tea.Msg) bool {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return true
	}
	switch k.Type {
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		return true
	}
	return false
}

func (m *ChatModel) handleInput(raw string) tea.Cmd {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if !strings.HasPrefix(text, "/") {
		return m.sendCmd(text)
	}

	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return tea.Quit
	case "/theme":
		m.toggleTheme()
	case "/leave":
		return m.resetCmd()
	case "/peers":
		return m.peersCmd()
	case "/help":
		m.addLine(chatLine{kind: lineSystem, text: helpText})
	case "/link":
		if m.room == "" || m.opts.RoomLink == nil {
			m.addLine(chatLine{kind: lineSystem, text: "not in a room"})
		} else {
			m.addLine(chatLine{kind: lineSystem, text: m.opts.RoomLink(m.room)})
		}
	case "/join":
		room, err := config.ParseRoomInput(arg)
		if err != nil {
			m.addLine(chatLine{kind: lineError, text: err.Error()})
			return nil
		}
		return m.joinCmd(room)
	default:
		m.addLine(chatLine{kind: lineError, text: fmt.Sprintf("unknown command %s, try /help", cmd)})
	}
	return nil
}

func (m *ChatModel) handleEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventStatus:
		m.status = ev.Status
		if ev.Err != nil && ev.Status != session.StatusIdle {
			m.addLine(chatLine{kind: lineError, text: ev.Err.Error()})
		}
	case session.EventMessage:
		m.addLine(chatLine{
			kind:   lineMessage,
			at:     ev.Message.Timestamp,
			sender: ev.Message.Sender,
			text:   ev.Message.Text,
			own:    ev.Own,
		})
	case session.EventPeerJoined:
		m.peers[ev.PeerID] = struct{}{}
		m.addLine(chatLine{kind: lineSystem, text: fmt.Sprintf("%s connected", ev.PeerID)})
	case session.EventPeerLeft:
		delete(m.peers, ev.PeerID)
		m.addLine(chatLine{kind: lineSystem, text: fmt.Sprintf("%s left", ev.PeerID)})
	case session.EventPeerFailed:
		delete(m.peers, ev.PeerID)
		m.addLine(chatLine{kind: lineError, text: fmt.Sprintf("could not connect to %s", ev.PeerID)})
	}
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, errs.ErrSubscribeTimeout):
		return "the relay did not confirm the room in time"
	case errors.Is(err, errs.ErrAlreadyJoined):
		return "already in a room, /leave first"
	}
	return err.Error()
}

func (m *ChatModel) toggleTheme() {
	next := CurrentTheme().Toggled()
	ApplyTheme(next)
	m.spinner.Style = SpinnerStyle

	if m.opts.Themes != nil {
		if err := m.opts.Themes.Save(next); err != nil {
			m.addLine(chatLine{kind: lineError, text: err.Error()})
			return
		}
	}
	m.addLine(chatLine{kind: lineSystem, text: fmt.Sprintf("%s theme", next)})
}

func (m *ChatModel) addLine(l chatLine) {
	if l.at.IsZero() {
		l.at = time.Now()
	}
	m.lines = append(m.lines, l)
	m.refresh()
}

// refresh re-renders every line so a theme change applies to history too.
func (m *ChatModel) refresh() {
	if !m.ready {
		return
	}
	rendered := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		rendered = append(rendered, renderLine(l, m.view.Width))
	}
	m.view.SetContent(strings.Join(rendered, "\n"))
	m.view.GotoBottom()
}

func renderLine(l chatLine, width int) string {
	ts := TimeStyle.Render(l.at.Format("15:04"))
	switch l.kind {
	case lineSystem:
		return fmt.Sprintf("%s %s", ts, SystemStyle.Render(l.text))
	case lineError:
		return fmt.Sprintf("%s %s", ts, ErrorStyle.Render(l.text))
	case lineBlock:
		return l.text
	}

	name := SenderStyle.Render(l.sender)
	if l.own {
		name = OwnStyle.Render(l.sender + " (you)")
	}
	body := l.text
	if width > 0 {
		body = lipgloss.NewStyle().Width(max(width-lipgloss.Width(ts)-lipgloss.Width(name)-3, 10)).Render(body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, ts, " ", name, ": ", body)
}

func (m *ChatModel) resize(width, height int) {
	m.width, m.height = width, height

	// header + input box (3 with border) + footer
	vpHeight := max(height-5, 3)
	if !m.ready {
		m.view = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.view.Width = width
		m.view.Height = vpHeight
	}
	m.input.Width = max(width-6, 10)
	m.refresh()
}

func (m *ChatModel) statusView() string {
	switch m.status {
	case session.StatusConnecting:
		return m.spinner.View() + " connecting"
	case session.StatusConnected:
		return SuccessStyle.Render("● connected")
	case session.StatusFailed:
		return ErrorStyle.Render("● failed")
	case session.StatusTimeout:
		return WarningStyle.Render("● timeout")
	}
	return MutedStyle.Render("○ idle")
}

func (m *ChatModel) View() string {
	if !m.ready {
		return "\n  " + m.spinner.View() + " starting…"
	}

	room := m.room
	if room == "" {
		room = "no room"
	}
	header := HeaderStyle.Width(m.width).Render(fmt.Sprintf("%s %s  %s %s  %s %d  %s",
		IconRoom, room,
		IconPeer, m.opts.DisplayName,
		IconConnect, len(m.peers),
		m.statusView(),
	))
	footer := FooterStyle.Render("enter send • ctrl+t theme • esc quit • /help")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.view.View(),
		InputBoxStyle.Width(max(m.width-2, 10)).Render(m.input.View()),
		footer,
	)
}
