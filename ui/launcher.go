package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/bindkit/bindkit/model"
)

// Runner is the subset of collection.ExecutionModel the launcher needs,
// kept as an interface so this package doesn't import collection directly
// and tests can supply a fake.
type Runner interface {
	Run(name string, args map[string]string) (model.ExecutionResult, error)
}

// Catalog supplies the filtered, sorted script list the launcher searches
// over, matching collection.Collection.Visible.
type Catalog interface {
	Visible() []model.ScriptInfo
}

type resultMsg struct {
	name   string
	result model.ExecutionResult
	err    error
	at     time.Time
}

// Launcher is BindKit's popup launcher (spec.md §1's "searchable launcher
// popup" adapter, wired per SPEC_FULL.md's DOMAIN STACK to bubbletea): a
// filterable list of discovered scripts where Enter dispatches through the
// Executor via the Collection's ExecutionModel.
type Launcher struct {
	catalog Catalog
	runner  Runner

	filter   string
	cursor   int
	running  bool
	lastName string
	lastMsg  string
	lastOK   bool
	lastAt   time.Time
	quitting bool

	width, height int
}

// NewLauncher builds a launcher popup over catalog, dispatching selections
// through runner.
func NewLauncher(catalog Catalog, runner Runner) *Launcher {
	return &Launcher{catalog: catalog, runner: runner}
}

func (l *Launcher) Init() tea.Cmd { return nil }

func (l *Launcher) visible() []model.ScriptInfo {
	all := l.catalog.Visible()
	if l.filter == "" {
		return all
	}
	needle := strings.ToLower(l.filter)
	out := make([]model.ScriptInfo, 0, len(all))
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.DisplayName), needle) {
			out = append(out, s)
		}
	}
	return out
}

func (l *Launcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		l.width, l.height = m.Width, m.Height
		return l, nil

	case resultMsg:
		l.running = false
		l.lastName = m.name
		l.lastAt = m.at
		if m.err != nil {
			l.lastOK = false
			l.lastMsg = m.err.Error()
		} else {
			l.lastOK = m.result.Success
			l.lastMsg = m.result.Message
		}
		return l, nil

	case tea.KeyMsg:
		if l.running {
			return l, nil
		}
		switch m.String() {
		case "ctrl+c", "esc":
			l.quitting = true
			return l, tea.Quit
		case "up", "ctrl+p":
			if l.cursor > 0 {
				l.cursor--
			}
			return l, nil
		case "down", "ctrl+n":
			if l.cursor < len(l.visible())-1 {
				l.cursor++
			}
			return l, nil
		case "enter":
			scripts := l.visible()
			if l.cursor >= len(scripts) {
				return l, nil
			}
			selected := scripts[l.cursor]
			l.running = true
			return l, l.run(selected)
		case "backspace":
			if len(l.filter) > 0 {
				l.filter = l.filter[:len(l.filter)-1]
				l.cursor = 0
			}
			return l, nil
		default:
			if len(m.String()) == 1 {
				l.filter += m.String()
				l.cursor = 0
			}
			return l, nil
		}
	}
	return l, nil
}

func (l *Launcher) run(script model.ScriptInfo) tea.Cmd {
	return func() tea.Msg {
		result, err := l.runner.Run(script.CanonicalIdentifier, map[string]string{})
		return resultMsg{name: script.DisplayName, result: result, err: err, at: time.Now()}
	}
}

func (l *Launcher) View() string {
	if l.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("BindKit") + dimStyle.Render("  — type to filter, enter to run, esc to quit"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("filter: ") + valueStyle.Render(l.filter))
	b.WriteString("\n\n")

	scripts := l.visible()
	if len(scripts) == 0 {
		b.WriteString(dimStyle.Render("no scripts match"))
	}
	for i, s := range scripts {
		badge := strategyBadgeStyle(s.IsExecutable, s.NeedsConfiguration).Render(s.Kind.String())
		row := fmt.Sprintf("%-28s %s", s.DisplayName, badge)
		if i == l.cursor {
			row = selectedStyle.Render("› " + row)
		} else {
			row = "  " + row
		}
		b.WriteString(row + "\n")
	}

	b.WriteString("\n")
	if l.running {
		b.WriteString(warnStyle.Render("running " + l.lastNameOrCursor(scripts) + "..."))
	} else if l.lastName != "" {
		b.WriteString(resultStyle(l.lastOK).Render(fmt.Sprintf("%s: %s", l.lastName, l.lastMsg)))
		b.WriteString(dimStyle.Render("  " + humanize.Time(l.lastAt)))
	}
	return panelStyle.Render(b.String())
}

func (l *Launcher) lastNameOrCursor(scripts []model.ScriptInfo) string {
	if l.cursor < len(scripts) {
		return scripts[l.cursor].DisplayName
	}
	return ""
}
