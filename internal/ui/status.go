package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type Mode int

const (
	ModeSend Mode = iota
	ModeReceive
)

type stateMsg session.State

type trackMsg struct {
	kind string
	id   string
}

type tickMsg time.Time

// StatusUI shows a live session's state and tracks. Pressing q or ctrl+c
// calls the quit callback.
type StatusUI struct {
	program *tea.Program
	model   *statusModel
	done    chan struct{}
	once    sync.Once
}

type statusModel struct {
	mode     Mode
	server   string
	state    session.State
	tracks   []trackMsg
	spinner  spinner.Model
	start    time.Time
	updates  chan tea.Msg
	onQuit   func()
	quitting bool
}

func newStatusModel(mode Mode, server string, onQuit func()) *statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &statusModel{
		mode:    mode,
		server:  server,
		state:   session.StateNegotiating,
		spinner: s,
		start:   time.Now(),
		updates: make(chan tea.Msg, 32),
		onQuit:  onQuit,
	}
}

func NewStatusUI(mode Mode, server string, onQuit func()) *StatusUI {
	model := newStatusModel(mode, server, onQuit)
	return &StatusUI{
		model:   model,
		program: tea.NewProgram(model),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (u *StatusUI) Start() {
	go func() {
		defer close(u.done)
		if _, err := u.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// SetState never blocks, so it is safe to call from a state-change callback.
func (u *StatusUI) SetState(st session.State) {
	u.model.push(stateMsg(st))
}

func (u *StatusUI) AddTrack(kind, id string) {
	u.model.push(trackMsg{kind: kind, id: id})
}

// Stop quits the program and waits for it to restore the terminal.
func (u *StatusUI) Stop() {
	u.once.Do(func() {
		u.program.Quit()
		<-u.done
	})
}

func (m *statusModel) push(msg tea.Msg) {
	select {
	case m.updates <- msg:
	default:
	}
}

func (m *statusModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *statusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func (m *statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case stateMsg:
		m.state = session.State(msg)
		if m.state == session.StateClosed {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.listen()

	case trackMsg:
		m.tracks = append(m.tracks, msg)
		return m, m.listen()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if !m.quitting {
			return m, tick()
		}
	}
	return m, nil
}

func (m *statusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	icon, title := IconSend, "Streaming"
	if m.mode == ModeReceive {
		icon, title = IconReceive, "Receiving"
	}
	fmt.Fprintf(&b, "\n%s %s %s\n\n", icon, TitleStyle.Render(title), MutedStyle.Render(m.server))
	fmt.Fprintf(&b, "%s %s  %s\n", m.spinner.View(), StatusStyle.Render(m.state.String()),
		MutedStyle.Render(time.Since(m.start).Truncate(time.Second).String()))

	for _, t := range m.tracks {
		fmt.Fprintf(&b, "  %s %s %s\n", kindIcon(t.kind), t.kind, MutedStyle.Render(t.id))
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to close"))
	return b.String()
}
