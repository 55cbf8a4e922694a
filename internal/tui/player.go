// Package tui renders the player view: episode navigation, quality
// switching and playback status for one title.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aniview/aniview/internal/playback"
	"github.com/aniview/aniview/internal/quality"
	"github.com/aniview/aniview/internal/tui/styles"
)

// opTimeout bounds each user-triggered playback operation
const opTimeout = 30 * time.Second

// statusTTL is how long a transient status line stays visible
const statusTTL = 4 * time.Second

// Controller is the playback surface the player view drives
type Controller interface {
	NextEpisode(ctx context.Context) error
	PreviousEpisode(ctx context.Context) error
	ChangeQuality(ctx context.Context, label string) error
	Close()
	StreamURL() string
	Title() string
	Description() string
	Qualities() []string
	Episode() int
	TotalEpisodes() int
	AtFirst() bool
	AtLast() bool
	Position() time.Duration
	Snapshot() playback.State
}

// Flusher issues the final progress write on exit
type Flusher interface {
	Flush()
}

// Clipboard copies text for the copy-URL action
type Clipboard interface {
	Write(text string) error
}

type opDoneMsg struct {
	err error
}

type clearStatusMsg struct {
	id int
}

type tickMsg time.Time

// PlayerModel is the bubbletea model for the player view
type PlayerModel struct {
	ctrl   Controller
	sync   Flusher
	clip   Clipboard
	logger *slog.Logger

	width     int
	height    int
	showDesc  bool
	busy      bool
	quitting  bool
	startedAt time.Time
	spin      spinner.Model

	status    string
	statusErr bool
	statusID  int
}

// NewPlayer builds the player view over an already initialized controller
func NewPlayer(ctrl Controller, sync Flusher, clip Clipboard, logger *slog.Logger) PlayerModel {
	if logger == nil {
		logger = slog.Default()
	}
	spin := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.OxocarbonPurple)),
	)
	return PlayerModel{
		ctrl:      ctrl,
		sync:      sync,
		clip:      clip,
		logger:    logger,
		width:     80,
		height:    24,
		startedAt: time.Now(),
		spin:      spin,
	}
}

func (m PlayerModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tickCmd()

	case opDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Warn("playback operation failed", "error", msg.err)
			return m.withStatus(msg.err.Error(), true)
		}
		return m, nil

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m PlayerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		m.sync.Flush()
		m.ctrl.Close()
		return m, tea.Quit

	case "n", "right", "l":
		if m.busy || m.ctrl.AtLast() {
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.runOp(m.ctrl.NextEpisode), m.spin.Tick)

	case "p", "left", "h":
		if m.busy || m.ctrl.AtFirst() {
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.runOp(m.ctrl.PreviousEpisode), m.spin.Tick)

	case "s":
		if m.busy {
			return m, nil
		}
		next := m.nextQualityChoice()
		if next == "" {
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.spin.Tick, m.runOp(func(ctx context.Context) error {
			return m.ctrl.ChangeQuality(ctx, next)
		}))

	case "d":
		m.showDesc = !m.showDesc
		return m, nil

	case "c":
		if err := m.clip.Write(m.ctrl.StreamURL()); err != nil {
			return m.withStatus("copy failed: "+err.Error(), true)
		}
		return m.withStatus("stream URL copied", false)
	}

	return m, nil
}

func (m PlayerModel) runOp(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{err: op(ctx)}
	}
}

// nextQualityChoice cycles auto and every available label in order
func (m PlayerModel) nextQualityChoice() string {
	choices := append([]string{quality.Auto}, m.ctrl.Qualities()...)
	if len(choices) < 2 {
		return ""
	}
	current := m.ctrl.Snapshot().RequestedQuality
	for i, label := range choices {
		if label == current {
			return choices[(i+1)%len(choices)]
		}
	}
	return choices[0]
}

func (m PlayerModel) withStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.status = text
	m.statusErr = isErr
	m.statusID++
	id := m.statusID
	return m, tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

func (m PlayerModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	st := m.ctrl.Snapshot()
	inner := m.width - 6
	if inner < 20 {
		inner = 20
	}

	title := runewidth.Truncate(m.ctrl.Title(), inner-12, "…")
	counter := fmt.Sprintf("Episode %d/%d", m.ctrl.Episode(), m.ctrl.TotalEpisodes())
	s.WriteString(styles.TitleStyle.Render(title) + "  " + styles.CounterStyle.Render(counter) + "\n\n")

	s.WriteString(m.qualityLine(st) + "\n")
	s.WriteString(m.statusLine(st) + "\n")

	url := runewidth.Truncate(m.ctrl.StreamURL(), inner, "…")
	s.WriteString(styles.URLStyle.Render(url) + "\n")

	if m.showDesc {
		s.WriteString("\n" + m.description(inner) + "\n")
	}

	if m.status != "" {
		style := styles.StatusStyle
		if m.statusErr {
			style = styles.ErrorStyle
		}
		s.WriteString("\n" + style.Render(m.status) + "\n")
	}

	s.WriteString("\n" + m.helpLine())
	return styles.AppStyle.Render(s.String())
}

func (m PlayerModel) qualityLine(st playback.State) string {
	var parts []string
	for _, label := range m.ctrl.Qualities() {
		if label == st.ResolvedQuality {
			parts = append(parts, styles.QualityActiveStyle.Render(label))
		} else {
			parts = append(parts, styles.QualityStyle.Render(label))
		}
	}
	line := strings.Join(parts, " ")
	if st.RequestedQuality == quality.Auto {
		line = styles.MetadataStyle.Render("auto → ") + line
	}
	return line
}

func (m PlayerModel) statusLine(st playback.State) string {
	var parts []string
	parts = append(parts, styles.TextStyle.Render(formatClock(st.ResumeOffset)))
	parts = append(parts, styles.MetadataStyle.Render("started "+humanize.Time(m.startedAt)))
	if st.UsesNativePlayback {
		parts = append(parts, styles.MetadataStyle.Render("direct playback"))
	}
	if st.ViewedSignalSent {
		parts = append(parts, styles.ViewedStyle.Render("✓ viewed"))
	}
	if m.busy {
		parts = append(parts, m.spin.View()+styles.MetadataStyle.Render("loading…"))
	}
	return strings.Join(parts, styles.QualityStyle.Render(" • "))
}

func (m PlayerModel) description(width int) string {
	desc := m.ctrl.Description()
	if desc == "" {
		return styles.MetadataStyle.Render("No description available.")
	}
	return styles.MetadataStyle.Render(wrapText(desc, width))
}

func (m PlayerModel) helpLine() string {
	prev := styles.HelpStyle
	if m.ctrl.AtFirst() {
		prev = styles.HelpDisabledStyle
	}
	next := styles.HelpStyle
	if m.ctrl.AtLast() {
		next = styles.HelpDisabledStyle
	}
	sep := styles.HelpStyle.Render(" • ")
	return prev.Render("p: prev") + sep +
		next.Render("n: next") + sep +
		styles.HelpStyle.Render("s: quality") + sep +
		styles.HelpStyle.Render("d: description") + sep +
		styles.HelpStyle.Render("c: copy url") + sep +
		styles.HelpStyle.Render("q: quit")
}

// formatClock renders a playback position as mm:ss or h:mm:ss
func formatClock(d time.Duration) string {
	total := int(d / time.Second)
	h := total / 3600
	mi := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mi, sec)
	}
	return fmt.Sprintf("%02d:%02d", mi, sec)
}

// wrapText breaks text into lines of at most width display cells
func wrapText(text string, width int) string {
	if width < 1 {
		return text
	}
	var lines []string
	var line string
	for _, word := range strings.Fields(text) {
		if line == "" {
			line = word
			continue
		}
		if runewidth.StringWidth(line)+1+runewidth.StringWidth(word) > width {
			lines = append(lines, line)
			line = word
		} else {
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

var _ tea.Model = PlayerModel{}

// Run starts the player view and blocks until the user quits
func Run(ctrl Controller, sync Flusher, clip Clipboard, logger *slog.Logger) error {
	program := tea.NewProgram(NewPlayer(ctrl, sync, clip, logger), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
