package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/config"
	"github.com/wippyai/ilrewrite/eventlog"
	"github.com/wippyai/ilrewrite/instrument"
	"github.com/wippyai/ilrewrite/metadata"
	"github.com/wippyai/ilrewrite/sig"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	rewrittenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const listHeight = 10

type methodInfo struct {
	name string
	tok  sig.Token
}

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
)

type interactiveModel struct {
	err      error
	img      *metadata.Image
	coord    *instrument.Coordinator
	results  map[sig.Token]*instrument.Result
	status   string
	methods  []methodInfo
	visible  []int
	filter   textinput.Model
	view     viewport.Model
	selected int
	state    modelState
}

type rewriteMsg struct {
	err error
	res *instrument.Result
}

func newInteractiveModel(img *metadata.Image, toks []sig.Token, coord *instrument.Coordinator) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "Type::Name"
	ti.Prompt = "filter: "
	ti.Width = 40

	m := &interactiveModel{
		img:     img,
		coord:   coord,
		results: map[sig.Token]*instrument.Result{},
		filter:  ti,
		view:    viewport.New(80, 20),
		state:   stateBrowse,
	}
	for _, tok := range toks {
		m.methods = append(m.methods, methodInfo{name: metadata.MethodName(img, tok), tok: tok})
	}
	m.applyFilter()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) current() (methodInfo, bool) {
	if m.selected < 0 || m.selected >= len(m.visible) {
		return methodInfo{}, false
	}
	return m.methods[m.visible[m.selected]], true
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, mi := range m.methods {
		if q == "" || strings.Contains(strings.ToLower(mi.name), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.refresh()
}

// refresh shows the selected method's current body.
func (m *interactiveModel) refresh() {
	mi, ok := m.current()
	if !ok {
		m.view.SetContent("")
		return
	}
	text, err := disassemble(m.img, mi.tok)
	if err != nil {
		m.view.SetContent(errorStyle.Render(err.Error()))
		return
	}
	if res, ok := m.results[mi.tok]; ok {
		var b strings.Builder
		for _, p := range res.Points {
			fmt.Fprintf(&b, "#%d IL_%04x %s\n", p.ID, p.Offset, p.Name)
		}
		text = rewrittenStyle.Render(b.String()) + "\n" + text
	}
	m.view.SetContent(text)
	m.view.GotoTop()
}

func (m *interactiveModel) rewrite(tok sig.Token) tea.Cmd {
	return func() tea.Msg {
		res, err := m.coord.Rewrite(context.Background(), m.img, tok)
		return rewriteMsg{res: res, err: err}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-listHeight-6, 5)

	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "/":
			m.state = stateFilter
			return m, m.filter.Focus()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
				m.refresh()
			}
			return m, nil
		case "r":
			mi, ok := m.current()
			if !ok {
				return m, nil
			}
			m.status = ""
			m.err = nil
			return m, m.rewrite(mi.tok)
		}

	case rewriteMsg:
		m.err = msg.err
		if msg.res != nil {
			m.results[msg.res.Method] = msg.res
			m.status = fmt.Sprintf("%s: %d points, %d skipped", msg.res.Name, len(msg.res.Points), len(msg.res.Skipped))
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("IL Rewriter"))
	b.WriteString(" ")
	b.WriteString(m.img.Path())
	b.WriteString("\n\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	start := 0
	if m.selected >= listHeight {
		start = m.selected - listHeight + 1
	}
	for i := start; i < len(m.visible) && i < start+listHeight; i++ {
		mi := m.methods[m.visible[i]]
		line := mi.name
		if res, ok := m.results[mi.tok]; ok && res.Changed() {
			line += fmt.Sprintf(" [%d]", len(res.Points))
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + methodStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("  no methods"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.status != "":
		b.WriteString(rewrittenStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • / filter • r rewrite • pgup/pgdn scroll • q quit"))
	return b.String()
}

func runInteractive(img *metadata.Image, toks []sig.Token, conf *config.Config) error {
	icfg, err := conf.InstrumentConfig()
	if err != nil {
		return err
	}
	events, closer, err := conf.OpenEventLog()
	if err != nil {
		return err
	}
	defer closer.Close()
	icfg.Events = events

	// the TUI owns the terminal
	quiet := zap.NewNop()
	icfg.Logger = quiet
	instrument.SetLogger(quiet)
	eventlog.SetLogger(quiet)

	p := tea.NewProgram(newInteractiveModel(img, toks, instrument.NewCoordinator(icfg)), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
