package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniview/aniview/internal/playback"
)

type fakeController struct {
	state     playback.State
	qualities []string
	nextCalls int
	prevCalls int
	changed   []string
	closed    int
	url       string
}

func (c *fakeController) NextEpisode(_ context.Context) error {
	c.nextCalls++
	return nil
}

func (c *fakeController) PreviousEpisode(_ context.Context) error {
	c.prevCalls++
	return nil
}

func (c *fakeController) ChangeQuality(_ context.Context, label string) error {
	c.changed = append(c.changed, label)
	return nil
}

func (c *fakeController) Close() { c.closed++ }

func (c *fakeController) StreamURL() string { return c.url }

func (c *fakeController) Title() string { return "Cosmic Drift" }

func (c *fakeController) Description() string { return "A show about drifting through space." }

func (c *fakeController) Qualities() []string { return c.qualities }

func (c *fakeController) Episode() int { return c.state.Episode }

func (c *fakeController) TotalEpisodes() int { return c.state.TotalEpisodes }

func (c *fakeController) AtFirst() bool { return c.state.Episode <= 1 }

func (c *fakeController) AtLast() bool { return c.state.Episode >= c.state.TotalEpisodes }

func (c *fakeController) Position() time.Duration { return c.state.ResumeOffset }
func (c *fakeController) Snapshot() playback.State {
	return c.state
}

type fakeFlusher struct {
	flushes int
}

func (f *fakeFlusher) Flush() { f.flushes++ }

type fakeClipboard struct {
	copied []string
	err    error
}

func (c *fakeClipboard) Write(text string) error {
	if c.err != nil {
		return c.err
	}
	c.copied = append(c.copied, text)
	return nil
}

func newTestPlayer() (PlayerModel, *fakeController, *fakeFlusher, *fakeClipboard) {
	ctrl := &fakeController{
		state: playback.State{
			Episode:          3,
			TotalEpisodes:    12,
			RequestedQuality: "auto",
			ResolvedQuality:  "1080p",
		},
		qualities: []string{"480p", "720p", "1080p"},
		url:       "https://cdn.example.com/video/x/1080p/3/playlist.m3u8",
	}
	flusher := &fakeFlusher{}
	clip := &fakeClipboard{}
	return NewPlayer(ctrl, flusher, clip, nil), ctrl, flusher, clip
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runCmd executes a command the way the bubbletea runtime would, feeding
// operation results back into the model and ignoring spinner frames
func runCmd(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, sub := range batch {
			if sub == nil {
				continue
			}
			if done, ok := sub().(opDoneMsg); ok {
				m, _ = m.Update(done)
			}
		}
		return m
	}
	next, _ := m.Update(msg)
	return next
}

func TestQuitFlushesAndCloses(t *testing.T) {
	m, ctrl, flusher, _ := newTestPlayer()

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, 1, flusher.flushes)
	assert.Equal(t, 1, ctrl.closed)
}

func TestNextEpisodeKey(t *testing.T) {
	m, ctrl, _, _ := newTestPlayer()

	next, cmd := m.Update(key("n"))
	runCmd(t, next, cmd)
	assert.Equal(t, 1, ctrl.nextCalls)
}

func TestNextDimmedAtLastEpisode(t *testing.T) {
	m, ctrl, _, _ := newTestPlayer()
	ctrl.state.Episode = 12

	_, cmd := m.Update(key("n"))
	assert.Nil(t, cmd)
	assert.Zero(t, ctrl.nextCalls)
}

func TestPreviousDimmedAtFirstEpisode(t *testing.T) {
	m, ctrl, _, _ := newTestPlayer()
	ctrl.state.Episode = 1

	_, cmd := m.Update(key("p"))
	assert.Nil(t, cmd)
	assert.Zero(t, ctrl.prevCalls)
}

func TestBusyBlocksNavigation(t *testing.T) {
	m, ctrl, _, _ := newTestPlayer()

	// First keypress starts an operation, second is ignored until it lands
	next, cmd := m.Update(key("n"))
	require.NotNil(t, cmd)
	next, cmd2 := next.Update(key("n"))
	assert.Nil(t, cmd2)

	runCmd(t, next, cmd)
	assert.Equal(t, 1, ctrl.nextCalls)
}

func TestQualityCycleFromAuto(t *testing.T) {
	m, ctrl, _, _ := newTestPlayer()

	next, cmd := m.Update(key("s"))
	runCmd(t, next, cmd)
	require.Equal(t, []string{"480p"}, ctrl.changed)
}

func TestQualityCycleWrapsToAuto(t *testing.T) {
	m, ctrl, _, _ := newTestPlayer()
	ctrl.state.RequestedQuality = "1080p"

	next, cmd := m.Update(key("s"))
	runCmd(t, next, cmd)
	require.Equal(t, []string{"auto"}, ctrl.changed)
}

func TestCopyStreamURL(t *testing.T) {
	m, ctrl, _, clip := newTestPlayer()

	next, _ := m.Update(key("c"))
	assert.Equal(t, []string{ctrl.url}, clip.copied)

	view := next.View()
	assert.Contains(t, view, "stream URL copied")
}

func TestCopyFailureShowsError(t *testing.T) {
	m, _, _, clip := newTestPlayer()
	clip.err = errors.New("no clipboard tool")

	next, _ := m.Update(key("c"))
	assert.Contains(t, next.View(), "copy failed")
}

func TestDescriptionToggle(t *testing.T) {
	m, _, _, _ := newTestPlayer()

	assert.NotContains(t, m.View(), "drifting through space")

	next, _ := m.Update(key("d"))
	assert.Contains(t, next.View(), "drifting through space")

	next, _ = next.Update(key("d"))
	assert.NotContains(t, next.View(), "drifting through space")
}

func TestViewShowsEpisodeCounter(t *testing.T) {
	m, _, _, _ := newTestPlayer()
	assert.Contains(t, m.View(), "Episode 3/12")
}

func TestOperationErrorSurfaces(t *testing.T) {
	m, _, _, _ := newTestPlayer()

	next, _ := m.Update(opDoneMsg{err: errors.New("stream unavailable")})
	assert.Contains(t, next.View(), "stream unavailable")
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{61 * time.Second, "01:01"},
		{3600 * time.Second, "1:00:00"},
		{3725 * time.Second, "1:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatClock(tt.d))
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	assert.Equal(t, "one two\nthree\nfour", got)
}
