package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-flux/audio"
	"go-flux/debug"
	"go-flux/lockfree"
	"go-flux/pattern"
	"go-flux/sequencer"
	"go-flux/theme"
	"go-flux/widgets"
)

const (
	tempoStep  = 5
	pointStep  = 0.25
	lfoPreview = 32 // columns of the LFO preview
)

var shapeCycle = []pattern.ShapeKind{
	pattern.ShapeSine,
	pattern.ShapeTriangle,
	pattern.ShapeSquare,
	pattern.ShapeRandom,
	pattern.ShapeDesigner,
}

type Model struct {
	Manager *sequencer.Manager
	Store   *pattern.Store
	Project string
	Theme   *theme.Theme

	poll     time.Duration
	pat      pattern.Pattern // refreshed after every edit
	snap     audio.Snapshot
	track    int
	step     int
	showHelp bool
	status   string
	quitting bool
}

type tickMsg time.Time

// NewModel returns the control surface. pollRate is snapshot polls per
// second; store may be nil to disable saving.
func NewModel(manager *sequencer.Manager, store *pattern.Store, project string, th *theme.Theme, pollRate int) Model {
	if pollRate <= 0 {
		pollRate = 60
	}
	return Model{
		Manager: manager,
		Store:   store,
		Project: project,
		Theme:   th,
		poll:    time.Second / time.Duration(pollRate),
		pat:     manager.Pattern(),
	}
}

func (m Model) pollCmd() tea.Cmd {
	return tea.Tick(m.poll, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.pollCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tickMsg:
		m.snap = m.Manager.State()
		if err := m.Manager.Sync(); err != nil {
			debug.LogEvery(60, "tui", "sync pending: %v", err)
		}
		return m, m.pollCmd()
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	var err error
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if err := m.Manager.Stop(); err != nil {
			debug.Log("tui", "stop on quit: %v", err)
		}
		return m, tea.Quit

	case " ", "p":
		err = m.Manager.TogglePlay()

	case "+", "=":
		err = m.Manager.SetTempo(m.Manager.Tempo() + tempoStep)

	case "-", "_":
		err = m.Manager.SetTempo(m.Manager.Tempo() - tempoStep)

	case "h", "left":
		m.step--
	case "l", "right":
		m.step++
	case "k", "up":
		m.track--
	case "j", "down":
		m.track++

	case "enter", "x":
		err = m.Manager.ToggleStep(m.track, m.step)

	case "]", "[":
		err = m.nudgePitch(key == "]")

	case "backspace":
		err = m.Manager.SetParamLock(m.track, m.step, pattern.ParamPitch, pattern.None)

	case "a":
		var id int
		if id, err = m.Manager.AddTrack(); err == nil {
			m.track = id
		}

	case "D":
		err = m.Manager.RemoveTrack(m.track)

	case "L":
		err = m.cycleShape()

	case "}", "{":
		err = m.nudgePoint(key == "}")

	case "s":
		err = m.save()

	case "o":
		err = m.load()

	case "?":
		m.showHelp = !m.showHelp
	}

	m.pat = m.Manager.Pattern()
	m.clampCursor()
	if err != nil {
		m.status = describe(err)
		debug.Log("tui", "%s: %v", key, err)
	}
	return m, nil
}

func describe(err error) string {
	if errors.Is(err, lockfree.ErrFull) {
		return "engine busy, edit will be resent"
	}
	return err.Error()
}

func (m *Model) clampCursor() {
	n := len(m.pat.Tracks)
	if m.track >= n {
		m.track = n - 1
	}
	if m.track < 0 {
		m.track = 0
	}
	steps := len(m.pat.Tracks[m.track].Subtracks[0].Steps)
	if m.step >= steps {
		m.step = steps - 1
	}
	if m.step < 0 {
		m.step = 0
	}
}

func (m Model) nudgePitch(up bool) error {
	s := m.pat.Step(m.track, m.step)
	if s == nil {
		return nil
	}
	note := float32(s.Note)
	if v, ok := s.Locks[pattern.ParamPitch].Get(); ok {
		note = v
	}
	if up {
		note++
	} else {
		note--
	}
	if note < 0 || note > 127 {
		return nil
	}
	return m.Manager.SetParamLock(m.track, m.step, pattern.ParamPitch, pattern.Some(note))
}

func (m Model) cycleShape() error {
	lfo := m.pat.LFO(m.track, 0)
	if lfo == nil {
		return nil
	}
	next := shapeCycle[0]
	for i, k := range shapeCycle {
		if k == lfo.Shape.Kind {
			next = shapeCycle[(i+1)%len(shapeCycle)]
		}
	}
	shape := pattern.Shape{Kind: next}
	if next == pattern.ShapeDesigner {
		shape.Points = lfo.Shape.Points
	}
	return m.Manager.SetLFOShape(m.track, 0, shape)
}

func (m Model) nudgePoint(up bool) error {
	lfo := m.pat.LFO(m.track, 0)
	if lfo == nil || lfo.Shape.Kind != pattern.ShapeDesigner {
		return fmt.Errorf("lfo 1 is not a designer shape (L to cycle)")
	}
	i := m.step % pattern.DesignerPoints
	v := lfo.Shape.Points[i]
	if up {
		v += pointStep
	} else {
		v -= pointStep
	}
	v = min(max(v, -1), 1)
	return m.Manager.SetLFODesignerValue(m.track, 0, i, v)
}

func (m *Model) save() error {
	if m.Store == nil {
		return fmt.Errorf("no project store")
	}
	name, err := m.Store.Save(m.Project, "", &m.pat)
	if err != nil {
		return err
	}
	m.status = "saved " + name
	debug.Log("tui", "saved %s/%s", m.Project, name)
	return nil
}

// load replaces the running pattern with the newest save of the project.
func (m *Model) load() error {
	if m.Store == nil {
		return fmt.Errorf("no project store")
	}
	p, err := m.Store.Load(m.Project, "")
	if err != nil {
		return err
	}
	if err := m.Manager.LoadPattern(p); err != nil {
		return err
	}
	m.status = "loaded " + m.Project
	debug.Log("tui", "loaded %s", m.Project)
	return nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())

	playState := "STOP"
	if m.snap.Playing {
		playState = "PLAY"
	}
	header := headerStyle.Render(fmt.Sprintf("go-flux  %s  %3.0fbpm  step:%02d  %s",
		playState, m.pat.BPM, m.snap.CurrentStep+1, m.Project))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	for ti := range m.pat.Tracks {
		tr := &m.pat.Tracks[ti]
		out.WriteString(dimStyle.Render(fmt.Sprintf("T%-2d %-11s ", ti+1, tr.Machine)))
		length := tr.StepCount()
		for si := range tr.Subtracks[0].Steps {
			st := &tr.Subtracks[0].Steps[si]
			cursor := ti == m.track && si == m.step
			playhead := m.snap.Playing && ti == 0 && si == m.snap.CurrentStep
			r := string(m.Theme.StepRune(st.Trig, playhead, cursor, si >= length))
			switch {
			case cursor:
				r = cursorStyle.Render(r)
			case playhead:
				r = playStyle.Render(r)
			default:
				r = fgStyle.Render(r)
			}
			out.WriteString(r)
			if si%4 == 3 {
				out.WriteString(" ")
			}
		}
		out.WriteString("\n")
	}

	n := min(m.snap.NumTracks, audio.MaxTracks)
	out.WriteString("\n")
	out.WriteString(widgets.RenderTriggers(m.snap.Triggered[:n], m.Theme.Active(), m.Theme.Muted()))
	out.WriteString("\n\n")
	out.WriteString(m.stepInfo(fgStyle))
	out.WriteString("\n")
	out.WriteString(m.lfoView(fgStyle, dimStyle))
	out.WriteString("\n\n")

	if m.showHelp {
		out.WriteString(fgStyle.Render(widgets.RenderKeyHelp(keyHelp)))
		out.WriteString("\n")
	} else {
		out.WriteString(dimStyle.Render("space:play  hjkl:nav  enter:toggle  [/]:pitch  L:lfo  s/o:save/load  ?:help  q:quit"))
	}
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render(m.status))
	}
	return out.String()
}

func (m Model) stepInfo(style lipgloss.Style) string {
	s := m.pat.Step(m.track, m.step)
	if s == nil {
		return ""
	}
	note := float32(s.Note)
	lock := ""
	if v, ok := s.Locks[pattern.ParamPitch].Get(); ok {
		note, lock = v, "*"
	}
	return style.Render(fmt.Sprintf("T%d S%02d  %-6s note %3.0f%s  vel %3d",
		m.track+1, m.step+1, s.Trig, note, lock, s.Velocity))
}

func (m Model) lfoView(fg, dim lipgloss.Style) string {
	lfo := m.pat.LFO(m.track, 0)
	if lfo == nil {
		return ""
	}
	var bars strings.Builder
	for i := 0; i < lfoPreview; i++ {
		l := *lfo
		l.Amount = 1
		bars.WriteRune(m.Theme.Bar(sequencer.EvaluateLFO(&l, float32(i)/lfoPreview)))
	}
	label := fmt.Sprintf("LFO1 %-8s cc%-3d amt %+.2f ", lfo.Shape.Kind, lfo.Destination, lfo.Amount)
	return dim.Render(label) + fg.Render(bars.String())
}

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space/p", Desc: "play / stop"},
		{Key: "+ / -", Desc: "tempo"},
	}},
	{Title: "Pattern", Keys: []widgets.KeyBinding{
		{Key: "hjkl", Desc: "move cursor"},
		{Key: "enter/x", Desc: "toggle step"},
		{Key: "[ / ]", Desc: "pitch lock down / up"},
		{Key: "backspace", Desc: "clear pitch lock"},
		{Key: "a / D", Desc: "add / remove track"},
	}},
	{Title: "LFO", Keys: []widgets.KeyBinding{
		{Key: "L", Desc: "cycle shape"},
		{Key: "{ / }", Desc: "designer point under cursor"},
	}},
	{Title: "Project", Keys: []widgets.KeyBinding{
		{Key: "s", Desc: "save"},
		{Key: "o", Desc: "reload newest save"},
		{Key: "q", Desc: "quit"},
	}},
}
