package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/state"
)

const defaultRefresh = time.Second

// Options configure the status panel.
type Options struct {
	Store     *state.Store
	ThemeName string
	// SaveTheme persists the theme chosen with the cycle key. Optional.
	SaveTheme func(name string) error
	// OnQuit runs when the quit key is pressed. Optional.
	OnQuit  func()
	Refresh time.Duration
	// NoKeys keeps the panel off the keyboard. Set it when tags arrive on
	// stdin; the process is then stopped with a signal.
	NoKeys bool
}

// busyCues animate the spinner next to the badge.
var busyCues = map[feedback.Cue]bool{
	feedback.CueStartup:       true,
	feedback.CueConnecting:    true,
	feedback.CueAPIConnecting: true,
	feedback.CueTagReading:    true,
	feedback.CueTagProcessing: true,
	feedback.CueRestarting:    true,
}

// Model is the Bubble Tea model of the status panel.
type Model struct {
	store     *state.Store
	saveTheme func(string) error
	onQuit    func()
	refresh   time.Duration
	noKeys    bool

	theme   Theme
	keys    keyMap
	spinner spinner.Model
	width   int

	cue      feedback.Cue
	snapshot state.Snapshot
	notice   string
}

// New creates the model.
func New(opts Options) Model {
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	theme := GetTheme(opts.ThemeName)
	return Model{
		store:     opts.Store,
		saveTheme: opts.SaveTheme,
		onQuit:    opts.OnQuit,
		refresh:   refresh,
		noKeys:    opts.NoKeys,
		theme:     theme,
		keys:      defaultKeyMap(),
		spinner:   newSpinner(theme),
	}
}

func newSpinner(t Theme) spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Info))),
	)
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type cueMsg feedback.Cue

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tickCmd(m.refresh)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.refresh)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		if m.cue == "" && m.snapshot.LastCue != "" {
			m.cue = feedback.Cue(m.snapshot.LastCue)
		}
		return m, nil

	case cueMsg:
		m.cue = feedback.Cue(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.noKeys {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Info))
		m.notice = ""
		if m.saveTheme != nil {
			if err := m.saveTheme(m.theme.Name); err != nil {
				m.notice = "theme not saved: " + err.Error()
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	styles := m.theme.Styles()

	header := styles.Header.Render("tagplayer") + " " + styles.MutedText.Render(m.theme.Name)

	cue := m.cue
	if cue == "" {
		cue = feedback.CueStartup
	}
	badge := styles.CueStyle(cue).Render(strings.ToUpper(string(cue)))
	if busyCues[cue] {
		badge = m.spinner.View() + " " + badge
	}

	snap := m.snapshot
	rows := []string{
		badge,
		"",
		m.row(styles, "State", m.stateText(snap)),
		m.row(styles, "Device", deviceText(snap)),
		m.row(styles, "Session", sessionText(snap)),
		m.row(styles, "Last tap", valueOr(snap.LastURI, "none")),
		m.row(styles, "Result", m.resultText(styles, snap)),
		m.row(styles, "Played", fmt.Sprintf("%d", snap.Playbacks)),
	}
	panel := styles.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	footer := styles.Footer.Render(m.keys.CycleTheme.Help().Key + " " + m.keys.CycleTheme.Help().Desc +
		" · " + m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc)
	if m.noKeys {
		footer = styles.Footer.Render("keys off, stdin reads tags · ctrl+c stop")
	}
	parts := []string{header, panel, footer}
	if m.notice != "" {
		parts = append(parts, styles.DangerText.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) row(styles Styles, label, value string) string {
	return styles.Label.Render(label) + " " + styles.Text.Render(value)
}

func (m Model) stateText(s state.Snapshot) string {
	if s.State == "" {
		return "starting"
	}
	if s.StateSince.IsZero() {
		return s.State
	}
	return fmt.Sprintf("%s (%s)", s.State, time.Since(s.StateSince).Truncate(time.Second))
}

func (m Model) resultText(styles Styles, s state.Snapshot) string {
	switch {
	case s.LastPlayback.IsZero():
		return "-"
	case s.LastError != nil:
		text := s.LastError.Error()
		if s.IsFailing() {
			text = fmt.Sprintf("%s (%d in a row)", text, s.ConsecutiveFailures)
		}
		return styles.DangerText.Render(text)
	default:
		return styles.SuccessText.Render("playing")
	}
}

func deviceText(s state.Snapshot) string {
	switch {
	case s.DeviceAvailable && s.DeviceName != "":
		return fmt.Sprintf("%s (%s)", s.DeviceName, s.DeviceID)
	case s.DeviceName != "":
		return s.DeviceName + " (not found)"
	default:
		return "none"
	}
}

func sessionText(s state.Snapshot) string {
	if s.Authenticated {
		return "authenticated"
	}
	return "no token"
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
