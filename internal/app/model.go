// Package app implements the review TUI: a bubbletea model that plays a
// session's media through the playback coordinator and keeps the
// transcript, theme timeline, insights and notes panels in step with it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwulff/vibeo/internal/citation"
	"github.com/jwulff/vibeo/internal/db"
	"github.com/jwulff/vibeo/internal/media"
	"github.com/jwulff/vibeo/internal/notes"
	"github.com/jwulff/vibeo/internal/playback"
	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timeline"
	"github.com/jwulff/vibeo/internal/timesource"
	"github.com/jwulff/vibeo/internal/ui"
	"github.com/jwulff/vibeo/internal/views"
)

// SourceKeyboard is the seek source reported for arrow-key seeks.
const SourceKeyboard = "keyboard"

const (
	defaultSeekStep = 5 * time.Second
	volumeStep      = 0.1
	storeTimeout    = 5 * time.Second
	flashTimeout    = 3 * time.Second

	// Screen rows above the panels: header, player bar, theme bar, tooltip
	// and divider. The theme bar is the only row that takes mouse input.
	barRow     = 2
	headerRows = 5
)

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusTranscript PanelFocus = iota
	FocusThemes
	FocusInsights
	FocusNotes
)

var focusOrder = []PanelFocus{FocusTranscript, FocusThemes, FocusInsights, FocusNotes}

// Options wires a session into the model.
type Options struct {
	Coordinator *playback.Coordinator
	Bus         *seekbus.Bus
	Session     db.Session
	Ref         media.Ref
	Notes       notes.Store
	Citations   citation.Table
	Insights    []db.Insight

	// SeekStep is the arrow-key seek distance. Zero means 5s.
	SeekStep time.Duration

	// Copy writes to the system clipboard. Nil means clipboard.WriteAll.
	Copy func(string) error
}

// insightView is an insight with its citations rendered.
type insightView struct {
	theme   string
	text    string
	summary string
	links   []citation.Link
}

// Model is the root bubbletea model for the review TUI.
type Model struct {
	coord    *playback.Coordinator
	bus      *seekbus.Bus
	session  db.Session
	ref      media.Ref
	seekStep float64
	copyFn   func(string) error

	// Panels
	transcript *views.TranscriptFollower
	themes     *views.ThemeTimeline
	notes      *views.NotesBinder
	insights   []insightView

	// Widgets
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	// UI state
	focusedPanel PanelFocus
	side         PanelFocus
	themeCursor  int
	linkCursor   int
	noteCursor   int
	noting       bool
	attaching    bool
	hover        views.Preview
	hovering     bool
	width        int
	height       int
	quitting     bool

	// Status line
	flash    string
	flashErr bool
}

// New creates a Model for one session. The coordinator's index supplies
// the transcript and theme data.
func New(opts Options) Model {
	idx := opts.Coordinator.Index()

	step := opts.SeekStep
	if step <= 0 {
		step = defaultSeekStep
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	store := opts.Notes
	if store == nil {
		store = notes.NewMemory()
	}

	input := textinput.New()
	input.Prompt = "note> "
	input.Placeholder = "what happened here? trailing #tags become tags"
	input.CharLimit = 500
	input.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = ui.SpinnerStyle

	h := help.New()
	h.Styles.ShortKey = ui.FooterKeyStyle
	h.Styles.ShortDesc = ui.FooterDescStyle
	h.Styles.ShortSeparator = ui.DividerStyle
	h.Styles.FullKey = ui.FooterKeyStyle
	h.Styles.FullDesc = ui.FooterDescStyle
	h.Styles.FullSeparator = ui.DividerStyle

	binder := views.NewNotesBinder(opts.Bus, store, opts.Session.ID, opts.Citations)
	m := Model{
		coord:        opts.Coordinator,
		bus:          opts.Bus,
		session:      opts.Session,
		ref:          opts.Ref,
		seekStep:     step.Seconds(),
		copyFn:       copyFn,
		transcript:   views.NewTranscriptFollower(opts.Bus, idx.Entries(), 10),
		themes:       views.NewThemeTimeline(opts.Bus, idx),
		notes:        binder,
		keys:         defaultKeyMap(),
		help:         h,
		spinner:      spin,
		input:        input,
		focusedPanel: FocusTranscript,
		side:         FocusThemes,
		attaching:    opts.Ref.URL != "",
	}
	if opts.Session.Duration > 0 {
		m.themes.SetDuration(opts.Session.Duration)
	}
	for _, in := range opts.Insights {
		text, links := binder.RenderInsight(in.Analysis)
		m.insights = append(m.insights, insightView{
			theme:   in.Theme,
			text:    text,
			summary: in.Summary,
			links:   links,
		})
	}
	return m
}

// Init loads the notes and attaches the session media.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{loadNotesCmd(m.notes)}
	if m.ref.URL != "" {
		cmds = append(cmds, attachCmd(m.coord, m.ref), m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// attachCmd loads ref. Opening may block on the player, so it runs off the
// update loop.
func attachCmd(c *playback.Coordinator, ref media.Ref) tea.Cmd {
	return func() tea.Msg {
		gen, err := c.Attach(ref)
		return AttachedMsg{Gen: gen, Err: err}
	}
}

// pumpCmd reads one native event of gen. Update applies it and schedules
// the next read, so events are handled on the update loop in order.
func pumpCmd(c *playback.Coordinator, gen timesource.Generation) tea.Cmd {
	return func() tea.Msg {
		ev, err := c.Next(gen)
		if err != nil {
			return MediaEventErrorMsg{Gen: gen, Err: err}
		}
		return MediaEventMsg{Gen: gen, Event: ev}
	}
}

func loadNotesCmd(b *views.NotesBinder) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return NotesLoadedMsg{Err: b.Load(ctx)}
	}
}

func addNoteCmd(b *views.NotesBinder, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		n, err := b.Add(ctx, text)
		return NoteSavedMsg{Note: n, Err: err}
	}
}

func deleteNoteCmd(b *views.NotesBinder, i int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return NoteDeletedMsg{Err: b.Delete(ctx, i)}
	}
}

func copyCmd(fn func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return ClipboardMsg{Text: text, Err: fn(text)}
	}
}

// clearFlashCmd fires after a delay to clear the status line.
func clearFlashCmd() tea.Cmd {
	return tea.Tick(flashTimeout, func(time.Time) tea.Msg {
		return ClearFlashMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, msg.Width-len(m.input.Prompt)-2)
		m.resize()
		return m, nil

	case AttachedMsg:
		if msg.Err != nil {
			m.attaching = false
			return m, nil
		}
		return m, pumpCmd(m.coord, msg.Gen)

	case MediaEventMsg:
		m.coord.HandleMedia(msg.Gen, msg.Event)
		if msg.Event.Kind == media.LoadedMetadata {
			m.themes.SetDuration(m.coord.Playback().Duration)
		}
		if msg.Gen != m.coord.Generation() || m.coord.State() == playback.Detached {
			return m, nil
		}
		return m, pumpCmd(m.coord, msg.Gen)

	case MediaEventErrorMsg:
		if errors.Is(msg.Err, timesource.ErrStale) || errors.Is(msg.Err, media.ErrClosed) ||
			msg.Gen != m.coord.Generation() {
			return m, nil
		}
		slog.Error("player event stream failed", "generation", msg.Gen, "err", msg.Err)
		return m, m.setFlash("player disconnected: "+msg.Err.Error(), true)

	case spinner.TickMsg:
		if !m.attaching {
			return m, nil
		}
		if s := m.coord.State(); s != playback.Loading && s != playback.Unattached {
			m.attaching = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case NotesLoadedMsg:
		if msg.Err != nil {
			slog.Warn("notes load failed", "session", m.session.ID, "err", msg.Err)
			return m, m.setFlash("notes unavailable: "+msg.Err.Error(), true)
		}
		m.noteCursor = clampIndex(m.noteCursor, len(m.notes.Notes()))
		return m, nil

	case NoteSavedMsg:
		if msg.Err != nil {
			return m, m.setFlash("note not saved: "+msg.Err.Error(), true)
		}
		label := "untimed"
		if msg.Note.Timestamp != nil {
			label = timeline.FormatTime(*msg.Note.Timestamp)
		}
		return m, m.setFlash("note added at "+label, false)

	case NoteDeletedMsg:
		if msg.Err != nil {
			return m, m.setFlash("note not deleted: "+msg.Err.Error(), true)
		}
		m.noteCursor = clampIndex(m.noteCursor, len(m.notes.Notes()))
		return m, m.setFlash("note deleted", false)

	case ClipboardMsg:
		if msg.Err != nil {
			return m, m.setFlash("copy failed: "+msg.Err.Error(), true)
		}
		return m, m.setFlash("copied "+truncate.StringWithTail(msg.Text, 40, "…"), false)

	case ClearFlashMsg:
		m.flash = ""
		m.flashErr = false
		return m, nil
	}

	return m, nil
}

func (m *Model) setFlash(text string, isErr bool) tea.Cmd {
	m.flash = text
	m.flashErr = isErr
	return clearFlashCmd()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.noting {
		return m.handleNoteInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Play):
		m.coord.TogglePlay()

	case key.Matches(msg, m.keys.SeekBack):
		m.seekBy(-m.seekStep)

	case key.Matches(msg, m.keys.SeekForward):
		m.seekBy(m.seekStep)

	case key.Matches(msg, m.keys.NextTheme):
		m.coord.SkipToNextTheme()

	case key.Matches(msg, m.keys.Mute):
		m.coord.ToggleMute()

	case key.Matches(msg, m.keys.VolumeUp):
		m.coord.SetVolume(m.coord.Playback().Volume + volumeStep)

	case key.Matches(msg, m.keys.VolumeDown):
		m.coord.SetVolume(m.coord.Playback().Volume - volumeStep)

	case key.Matches(msg, m.keys.Focus):
		m.cycleFocus(1)

	case key.Matches(msg, m.keys.FocusBack):
		m.cycleFocus(-1)

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.PageUp):
		m.transcript.ScrollBy(-m.transcriptRows())

	case key.Matches(msg, m.keys.PageDown):
		m.transcript.ScrollBy(m.transcriptRows())

	case key.Matches(msg, m.keys.Seek):
		m.seekSelected()

	case key.Matches(msg, m.keys.Follow):
		m.transcript.Resume()

	case key.Matches(msg, m.keys.AddNote):
		m.noting = true
		m.input.Reset()
		m.resize()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.DeleteNote):
		if m.focusedPanel == FocusNotes && len(m.notes.Notes()) > 0 {
			return m, deleteNoteCmd(m.notes, m.noteCursor)
		}

	case key.Matches(msg, m.keys.Copy):
		if text := m.selectedText(); text != "" {
			return m, copyCmd(m.copyFn, text)
		}

	case key.Matches(msg, m.keys.Retry):
		if m.coord.State() == playback.Error && m.ref.URL != "" {
			m.attaching = true
			return m, tea.Batch(attachCmd(m.coord, m.ref), m.spinner.Tick)
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	}

	return m, nil
}

func (m Model) handleNoteInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.shutdown()
		return m, tea.Quit

	case tea.KeyEsc:
		m.noting = false
		m.input.Blur()
		m.resize()
		return m, nil

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.noting = false
		m.input.Blur()
		m.input.Reset()
		m.resize()
		if text == "" {
			return m, nil
		}
		return m, addNoteCmd(m.notes, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleMouse routes pointer input on the theme bar: motion previews the
// time and theme under the pointer, a left click seeks there. The wheel
// scrolls the transcript anywhere on screen.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	onBar := msg.Y == barRow && msg.X >= 0 && msg.X < m.width

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.transcript.ScrollBy(-3)

	case msg.Button == tea.MouseButtonWheelDown:
		m.transcript.ScrollBy(3)

	case !onBar:
		if m.hovering {
			m.themes.ClearHover()
			m.hovering = false
		}

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.themes.Click(msg.X, m.width)

	case msg.Action == tea.MouseActionMotion:
		m.hover = m.themes.Hover(msg.X, m.width)
		m.hovering = true
	}

	return m, nil
}

func (m Model) seekBy(delta float64) {
	m.bus.PublishSeek(m.coord.Playback().Position+delta, SourceKeyboard)
}

func (m *Model) cycleFocus(dir int) {
	i := 0
	for j, p := range focusOrder {
		if p == m.focusedPanel {
			i = j
		}
	}
	i = (i + dir + len(focusOrder)) % len(focusOrder)
	m.focusedPanel = focusOrder[i]
	if m.focusedPanel == FocusTranscript {
		return
	}
	m.side = m.focusedPanel
	if m.focusedPanel == FocusThemes {
		if active := m.themes.Active(); active != nil {
			for j, s := range m.themes.Segments() {
				if s.ID == active.ID {
					m.themeCursor = j
				}
			}
		}
	}
}

func (m *Model) moveCursor(delta int) {
	switch m.focusedPanel {
	case FocusTranscript:
		m.transcript.MoveSelection(delta)
	case FocusThemes:
		m.themeCursor = clampIndex(m.themeCursor+delta, len(m.themes.Segments()))
	case FocusInsights:
		m.linkCursor = clampIndex(m.linkCursor+delta, len(m.links()))
	case FocusNotes:
		m.noteCursor = clampIndex(m.noteCursor+delta, len(m.notes.Notes()))
	}
}

// seekSelected jumps to whatever the focused panel's cursor points at.
func (m Model) seekSelected() {
	switch m.focusedPanel {
	case FocusTranscript:
		m.transcript.SeekSelected()
	case FocusThemes:
		m.themes.SelectTheme(m.themeCursor)
	case FocusInsights:
		if links := m.links(); m.linkCursor < len(links) {
			m.notes.SeekCitation(links[m.linkCursor].ID)
		}
	case FocusNotes:
		m.notes.SeekNote(m.noteCursor)
	}
}

// selectedText is what the copy key puts on the clipboard.
func (m Model) selectedText() string {
	switch m.focusedPanel {
	case FocusTranscript:
		entries := m.transcript.Entries()
		i := m.transcript.Selected()
		if i < 0 || i >= len(entries) {
			return ""
		}
		e := entries[i]
		if e.Speaker != "" {
			return fmt.Sprintf("[%s] %s: %s", timeline.FormatTime(e.Start), e.Speaker, e.Text)
		}
		return fmt.Sprintf("[%s] %s", timeline.FormatTime(e.Start), e.Text)
	case FocusThemes:
		segs := m.themes.Segments()
		if m.themeCursor >= len(segs) {
			return ""
		}
		s := segs[m.themeCursor]
		return fmt.Sprintf("[%s] %s", timeline.FormatTime(s.Start), s.Name)
	case FocusInsights:
		i := m.insightOfLink(m.linkCursor)
		if i < 0 {
			return ""
		}
		return m.insights[i].theme + ": " + m.insights[i].text
	case FocusNotes:
		ns := m.notes.Notes()
		if m.noteCursor >= len(ns) {
			return ""
		}
		n := ns[m.noteCursor]
		if n.Timestamp == nil {
			return n.Text
		}
		return fmt.Sprintf("[%s] %s", timeline.FormatTime(*n.Timestamp), n.Text)
	}
	return ""
}

// links flattens the citations of every insight in display order.
func (m Model) links() []citation.Link {
	var out []citation.Link
	for _, in := range m.insights {
		out = append(out, in.links...)
	}
	return out
}

// insightOfLink returns the insight holding flattened link i, or -1.
func (m Model) insightOfLink(i int) int {
	for j, in := range m.insights {
		if i < len(in.links) {
			return j
		}
		i -= len(in.links)
	}
	return -1
}

// shutdown releases the panels, the player and the bus.
func (m *Model) shutdown() {
	m.quitting = true
	m.transcript.Close()
	m.themes.Close()
	m.notes.Close()
	m.coord.Detach()
	m.bus.Dispose()
}

// resize recomputes the transcript viewport after a layout change.
func (m *Model) resize() {
	m.transcript.SetHeight(m.transcriptRows())
}

// contentHeight is the number of rows left for the panels.
func (m Model) contentHeight() int {
	if m.height == 0 {
		return 10
	}
	// header rows, the lower divider, the status line and the footer
	used := headerRows + 2 + lipgloss.Height(m.renderFooter())
	return max(4, m.height-used)
}

// transcriptRows is the number of visible transcript entries.
func (m Model) transcriptRows() int {
	return m.contentHeight() - 1
}

func (m Model) sidePanelWidth() int {
	if m.width == 0 {
		return 40
	}
	return max(24, min(56, m.width*2/5))
}

func (m Model) transcriptPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(20, m.width-m.sidePanelWidth()-1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderPlayerBar(),
		m.renderThemeBar(),
		m.renderTooltip(),
		divider,
		m.renderMainContent(),
		divider,
		m.renderStatusLine(),
		m.renderFooter(),
	}
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("VIBEO")
	name := m.session.Title
	if name == "" {
		name = m.session.ID
	}
	var info string
	if name != "" {
		info = ui.DimStyle.Render(" — " + name)
	}
	return truncateToWidth(title+info, m.width)
}

func (m Model) renderPlayerBar() string {
	var state string
	switch m.coord.State() {
	case playback.Unattached:
		if m.attaching {
			state = m.spinner.View() + ui.DimStyle.Render(" LOADING")
		} else {
			state = ui.DimStyle.Render("○ NO MEDIA")
		}
	case playback.Loading:
		state = m.spinner.View() + ui.DimStyle.Render(" LOADING")
	case playback.Playing:
		state = ui.PlayingStyle.Render("▶ PLAYING")
	case playback.Ready, playback.Paused:
		state = ui.PausedStyle.Render("⏸ PAUSED")
	case playback.Error:
		state = ui.ErrorStyle.Render("✖ ERROR")
	case playback.Detached:
		state = ui.DimStyle.Render("■ CLOSED")
	}

	pb := m.coord.Playback()
	clock := ui.TimestampStyle.Render(fmt.Sprintf("  %s / %s",
		timeline.FormatTime(pb.Position), timeline.FormatTime(pb.Duration)))

	var vol string
	if pb.Muted {
		vol = ui.DimStyle.Render("  muted")
	} else {
		vol = ui.DimStyle.Render(fmt.Sprintf("  vol %d%%", int(pb.Volume*100+0.5)))
	}

	var theme string
	if seg := m.themes.Active(); seg != nil {
		theme = "  " + ui.ThemeStyle(seg.Color).Render("● "+seg.Name)
	}

	return truncateToWidth(state+clock+vol+theme, m.width)
}

// renderThemeBar draws one cell per column: the theme color where a theme
// covers the column, a thin rule in gaps, a tick at theme boundaries and
// the playhead on top of everything.
func (m Model) renderThemeBar() string {
	var b strings.Builder
	for _, c := range m.themes.Cells(m.width) {
		switch {
		case c.Playhead:
			b.WriteString(ui.PlayheadStyle.Render("┃"))
		case c.Boundary:
			b.WriteString(ui.BoundaryStyle.Render("│"))
		case c.Segment != nil:
			b.WriteString(ui.ThemeCell(c.Segment.Color, c.Hovered).Render("█"))
		case c.Hovered:
			b.WriteString(ui.TooltipStyle.Render("─"))
		default:
			b.WriteString(ui.GapCellStyle.Render("─"))
		}
	}
	return b.String()
}

func (m Model) renderTooltip() string {
	if m.hovering {
		label := " " + m.hover.Label + " "
		col := max(0, min(m.hover.Column, m.width-lipgloss.Width(label)))
		return strings.Repeat(" ", col) + ui.TooltipStyle.Render(label)
	}
	if sel := m.themes.Selected(); sel.Valid {
		return ui.DimStyle.Render("selected: ") + sel.Name
	}
	return ""
}

func (m Model) renderMainContent() string {
	sideW := m.sidePanelWidth()
	transcriptW := m.transcriptPanelWidth()
	contentH := m.contentHeight()

	sideLines := strings.Split(m.renderSidePanel(sideW, contentH), "\n")
	transcriptLines := strings.Split(m.renderTranscriptPanel(transcriptW, contentH), "\n")

	divider := ui.DividerStyle.Render("│")
	rows := make([]string, contentH)
	for i := range rows {
		left := strings.Repeat(" ", sideW)
		if i < len(sideLines) {
			left = padRight(sideLines[i], sideW)
		}
		right := ""
		if i < len(transcriptLines) {
			right = transcriptLines[i]
		}
		rows[i] = left + divider + right
	}
	return strings.Join(rows, "\n")
}

func (m Model) panelTitle(p PanelFocus, title string) string {
	switch {
	case m.focusedPanel == p:
		return ui.PanelTitleActiveStyle.Render(title)
	case m.side == p || p == FocusTranscript:
		return ui.PanelTitleStyle.Render(title)
	}
	return ui.DimStyle.Render(title)
}

func (m Model) renderSidePanel(width, height int) string {
	tabs := strings.Join([]string{
		m.panelTitle(FocusThemes, fmt.Sprintf("THEMES (%d)", len(m.themes.Segments()))),
		m.panelTitle(FocusInsights, fmt.Sprintf("INSIGHTS (%d)", len(m.insights))),
		m.panelTitle(FocusNotes, fmt.Sprintf("NOTES (%d)", len(m.notes.Notes()))),
	}, " ")

	var body []string
	switch m.side {
	case FocusThemes:
		body = m.themeLines(width, height-1)
	case FocusInsights:
		body = m.insightLines(width, height-1)
	case FocusNotes:
		body = m.noteLines(width, height-1)
	}

	lines := append([]string{truncateToWidth(tabs, width)}, body...)
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) themeLines(width, height int) []string {
	segs := m.themes.Segments()
	if len(segs) == 0 {
		return []string{ui.DimStyle.Render("  No themes for this session")}
	}
	active := m.themes.Active()
	start, end := window(len(segs), m.themeCursor, height)

	var lines []string
	for i := start; i < end; i++ {
		s := segs[i]
		marker := "  "
		if i == m.themeCursor && m.focusedPanel == FocusThemes {
			marker = ui.SelectedStyle.Render("> ")
		}
		name := s.Name
		if active != nil && active.ID == s.ID {
			name = ui.ActiveEntryStyle.Render(name)
		}
		span := ui.TimestampStyle.Render(fmt.Sprintf(" %s–%s",
			timeline.FormatTime(s.Start), timeline.FormatTime(s.End)))
		line := marker + ui.ThemeStyle(s.Color).Render("■") + " " + name + span
		lines = append(lines, truncateToWidth(line, width))
	}
	return lines
}

func (m Model) insightLines(width, height int) []string {
	if len(m.insights) == 0 {
		return []string{ui.DimStyle.Render("  No insights for this session")}
	}

	var lines []string
	selectedLine := 0
	g := 0
	for _, in := range m.insights {
		title := ui.ThemeStyle(timeline.ColorForTheme(in.theme)).Bold(true).Render("▸ " + in.theme)
		lines = append(lines, truncateToWidth(title, width))
		if in.summary != "" {
			for _, wl := range strings.Split(wordwrap.String(in.summary, max(10, width-4)), "\n") {
				lines = append(lines, ui.DimStyle.Render("    "+wl))
			}
		}
		for _, wl := range strings.Split(wordwrap.String(in.text, max(10, width-4)), "\n") {
			lines = append(lines, truncateToWidth("    "+wl, width))
		}
		for _, l := range in.links {
			marker := "    "
			if g == m.linkCursor && m.focusedPanel == FocusInsights {
				marker = ui.SelectedStyle.Render("  > ")
				selectedLine = len(lines)
			}
			link := ui.LinkStyle.Render(l.Label) + ui.DimStyle.Render(" #id="+l.ID)
			if !l.Known {
				link += ui.DimStyle.Render(" (unknown)")
			}
			lines = append(lines, truncateToWidth(marker+"→ "+link, width))
			g++
		}
	}

	start, end := window(len(lines), selectedLine, height)
	return lines[start:end]
}

func (m Model) noteLines(width, height int) []string {
	ns := m.notes.Notes()
	if len(ns) == 0 {
		return []string{
			ui.DimStyle.Render("  No notes yet"),
			ui.DimStyle.Render("  Press a to add one at the playhead"),
		}
	}
	start, end := window(len(ns), m.noteCursor, height)

	var lines []string
	for i := start; i < end; i++ {
		n := ns[i]
		marker := "  "
		if i == m.noteCursor && m.focusedPanel == FocusNotes {
			marker = ui.SelectedStyle.Render("> ")
		}
		ts := "[--:--]"
		if n.Timestamp != nil {
			ts = "[" + timeline.FormatTime(*n.Timestamp) + "]"
		}
		line := marker + ui.TimestampStyle.Render(ts) + " "
		if n.AI {
			line += ui.AIBadgeStyle.Render("AI ")
		}
		line += n.Text
		if len(n.Tags) > 0 {
			line += ui.DimStyle.Render(" #" + strings.Join(n.Tags, " #"))
		}
		lines = append(lines, truncateToWidth(line, width))
	}
	return lines
}

func (m Model) renderTranscriptPanel(width, height int) string {
	var badge string
	if m.transcript.Following() {
		badge = ui.FollowBadgeStyle.Render(" FOLLOW")
	} else {
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}
	lines := []string{m.panelTitle(FocusTranscript, "TRANSCRIPT") + badge}

	entries := m.transcript.Entries()
	if len(entries) == 0 {
		lines = append(lines, "", ui.DimStyle.Render("  No transcript for this session"))
		return strings.Join(lines, "\n")
	}

	active := m.transcript.Active()
	selected := m.transcript.Selected()
	offset := m.transcript.Offset()
	end := min(offset+height-1, len(entries))
	for i := offset; i < end; i++ {
		e := entries[i]
		marker := "  "
		switch {
		case i == selected && m.focusedPanel == FocusTranscript:
			marker = ui.SelectedStyle.Render("> ")
		case i == active:
			marker = ui.ActiveEntryStyle.Render("▸ ")
		}
		text := e.Text
		if i == active {
			text = ui.ActiveEntryStyle.Render(text)
		}
		line := marker + ui.TimestampStyle.Render("["+timeline.FormatTime(e.Start)+"]") + " "
		if e.Speaker != "" {
			line += ui.SpeakerStyle.Render(e.Speaker+":") + " "
		}
		lines = append(lines, truncateToWidth(line+text, width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusLine() string {
	if m.noting {
		return m.input.View()
	}
	if m.coord.State() == playback.Error {
		msg := "media failed"
		if err := m.coord.LastError(); err != nil {
			msg = err.Error()
		}
		line := ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(msg)
		if m.ref.URL != "" {
			line += ui.DimStyle.Render("  r to retry")
		}
		return truncateToWidth(line, m.width)
	}
	if m.flash == "" {
		return ""
	}
	if m.flashErr {
		return truncateToWidth(ui.ErrorTextStyle.Render(m.flash), m.width)
	}
	return truncateToWidth(ui.FlashStyle.Render(m.flash), m.width)
}

func (m Model) renderFooter() string {
	return m.help.View(m.keys)
}

// Helpers

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// truncateToWidth cuts s to width visible cells, keeping ANSI styling.
func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

// window returns the [start, end) range of n rows that keeps cursor
// visible in height rows.
func window(n, cursor, height int) (int, int) {
	height = max(height, 1)
	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	return start, min(start+height, n)
}

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	return max(0, min(i, n-1))
}
