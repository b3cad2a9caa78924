package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// CallControls are invoked from the key bindings of the call view. Toggles
// return the new enabled state.
type CallControls struct {
	ToggleAudio func() bool
	ToggleVideo func() bool
	HangUp      func()
}

// CallUpdate carries a session change into the view.
type CallUpdate struct {
	State  string
	Status string
	Err    error
}

type tickMsg time.Time

// CallView is the live view shown for the length of a call.
type CallView struct {
	program *tea.Program
	model   *callModel
	wg      sync.WaitGroup
}

type callModel struct {
	role     string
	room     string
	controls CallControls
	updates  chan CallUpdate
	spinner  spinner.Model

	state       string
	status      string
	err         error
	audioOn     bool
	videoOn     bool
	connectedAt time.Time
	now         time.Time
	quitting    bool
}

// NewCallView creates the view. Options are passed to the bubbletea program.
func NewCallView(role, room string, controls CallControls, opts ...tea.ProgramOption) *CallView {
	m := newCallModel(role, room, controls)
	return &CallView{
		program: tea.NewProgram(m, opts...),
		model:   m,
	}
}

func newCallModel(role, room string, controls CallControls) *callModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &callModel{
		role:     role,
		room:     room,
		controls: controls,
		updates:  make(chan CallUpdate, 16),
		spinner:  s,
		state:    "idle",
		status:   "disconnected",
		audioOn:  true,
		videoOn:  true,
		now:      time.Now(),
	}
}

// Start runs the view in a goroutine
func (v *CallView) Start() {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		// Inline mode keeps the room box visible above the view.
		if _, err := v.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Update queues a session change. It never blocks; a full queue drops the
// update because the next one supersedes it.
func (v *CallView) Update(u CallUpdate) {
	select {
	case v.model.updates <- u:
	default:
	}
}

// Stop quits the view and waits for the terminal to be restored.
func (v *CallView) Stop() {
	v.program.Quit()
	v.wg.Wait()
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *callModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			if m.controls.ToggleAudio != nil {
				m.audioOn = m.controls.ToggleAudio()
			}
		case "v":
			if m.controls.ToggleVideo != nil {
				m.videoOn = m.controls.ToggleVideo()
			}
		case "q", "ctrl+c":
			m.quitting = true
			if m.controls.HangUp != nil {
				m.controls.HangUp()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.now = time.Time(msg)
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case CallUpdate:
		m.state = msg.State
		m.status = msg.Status
		if msg.Err != nil {
			m.err = msg.Err
		}
		if msg.Status == "connected" && m.connectedAt.IsZero() {
			m.connectedAt = time.Now()
			m.now = m.connectedAt
		}
		return m, m.listen()
	}

	return m, nil
}

func (m *callModel) elapsed() string {
	if m.connectedAt.IsZero() {
		return "--:--"
	}
	return FormatDuration(m.now.Sub(m.connectedAt))
}

func (m *callModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	indicator := m.spinner.View()
	if m.status == "connected" {
		indicator = IconCall
	}
	fmt.Fprintf(&b, "%s %s  %s\n", indicator, TitleStyle.Render("Call "+m.room), MutedStyle.Render("as "+m.role))
	fmt.Fprintf(&b, "State:  %s\n", StatusStyle.Render(m.state))
	fmt.Fprintf(&b, "Link:   %s\n", m.status)
	fmt.Fprintf(&b, "%s  %s\n", IconTime, m.elapsed())

	mic := IconMic + " mic on"
	if !m.audioOn {
		mic = IconMuted + " muted"
	}
	cam := IconCamera + " camera on"
	if !m.videoOn {
		cam = IconCameraOff + " camera off"
	}
	fmt.Fprintf(&b, "%s   %s", mic, cam)

	if m.err != nil {
		fmt.Fprintf(&b, "\n%s", ErrorStyle.Render(m.err.Error()))
	}

	return CallBoxStyle.Render(b.String()) + "\n" +
		MutedStyle.Render("m mute · v camera · q hang up") + "\n"
}

// FormatDuration renders d as mm:ss, or h:mm:ss past the hour.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
