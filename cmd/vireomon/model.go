// The vireomon bubbletea Model, architected the way jdiag's
// internal/monitor.Model drives its watch TUI: a fixed KeyMap, a
// tea.Tick-driven polling loop feeding a snapshotMsg, and a tab switcher
// choosing which render function produces View()'s body. jdiag attaches
// to a JMX endpoint exposed by a separate JVM process; vireo has no
// out-of-process management agent, so vireomon instead runs the target
// program's VM in-process on a background goroutine and polls its own
// vm.VM/classloader.Loader directly — the same dashboard shape, a
// simpler transport.
package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/vm"
)

type tabType int

const (
	tabThreads tabType = iota
	tabLoaders
	tabChart
	tabCount
)

func (t tabType) String() string {
	switch t {
	case tabThreads:
		return "Threads"
	case tabLoaders:
		return "Class Loaders"
	case tabChart:
		return "Thread Count"
	default:
		return "?"
	}
}

// keyMap mirrors jdiag's KeyMap shape: Tab/Left/Right switch views, q
// quits, and everything else is read straight off the polling tick
// rather than a manual refresh key, since vireomon has no JMX
// round-trip cost to economize on.
type keyMap struct {
	Tab   key.Binding
	Left  key.Binding
	Right key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Left, k.Right, k.Tab, k.Quit}}
}

var keys = keyMap{
	Tab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
	Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev tab")),
	Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next tab")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// tickMsg drives the periodic re-poll of the VM's live thread set and
// loader caches, the same role jdiag's tickMsg plays for its JMX pull.
type tickMsg time.Time

const pollInterval = 500 * time.Millisecond

// doneMsg is sent by main's goroutine, via program.Send, the moment the
// monitored program's RunMain returns — bubbletea's documented way to
// deliver an externally-produced event without the Model reaching back
// into a raw channel from inside View().
type doneMsg struct{ err error }

// model is vireomon's single bubbletea.Model, polling the target VM
// directly rather than holding a remote collector.
type model struct {
	machine *vm.VM
	runErr  error

	width, height int
	activeTab     tabType

	threadsTable table.Model
	loaderView   viewport.Model
	chart        *threadCountChart

	startedAt time.Time
	done      bool
}

func newModel(machine *vm.VM) *model {
	cols := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Name", Width: 20},
		{Title: "State", Width: 8},
		{Title: "Daemon", Width: 7},
		{Title: "Pri", Width: 4},
		{Title: "Depth", Width: 6},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(false), table.WithHeight(12))

	return &model{
		machine:      machine,
		threadsTable: t,
		loaderView:   viewport.New(0, 0),
		chart:        newThreadCountChart(40, 10),
		startedAt:    time.Now(),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.threadsTable.SetWidth(msg.Width - 4)
		m.loaderView.Width = msg.Width - 4
		m.loaderView.Height = msg.Height - 8
		m.chart.resize(msg.Width-8, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Tab), key.Matches(msg, keys.Right):
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case key.Matches(msg, keys.Left):
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		}

	case doneMsg:
		m.done = true
		m.runErr = msg.err
		return m, nil

	case tickMsg:
		if !m.done {
			m.refresh()
		}
		return m, tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
	}

	var cmd tea.Cmd
	m.threadsTable, cmd = m.threadsTable.Update(msg)
	return m, cmd
}

// refresh pulls a fresh snapshot of live threads and loader caches from
// the VM and feeds the chart's rolling window, the in-process
// equivalent of jdiag's metricsMsg handling.
func (m *model) refresh() {
	threads := m.machine.Threads()
	rows := make([]table.Row, 0, len(threads))
	for _, t := range threads {
		state := "RUNNABLE"
		if !t.IsAlive() {
			state = "DEAD"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", t.ID),
			t.Name,
			state,
			fmt.Sprintf("%v", t.IsDaemon()),
			fmt.Sprintf("%d", t.Priority()),
			fmt.Sprintf("%d", t.Depth()),
		})
	}
	m.threadsTable.SetRows(rows)
	m.chart.push(time.Now(), float64(len(threads)))

	m.loaderView.SetContent(renderLoaderTree(m.machine.Boot, m.machine.App))
}

func renderLoaderTree(loaders ...*classloader.Loader) string {
	var out string
	for _, l := range loaders {
		if l == nil {
			continue
		}
		out += titleStyle.Render(l.Name) + "\n"
		names := l.Loaded()
		if len(names) == 0 {
			out += mutedStyle.Render("  (no classes cached)") + "\n\n"
			continue
		}
		for _, n := range names {
			out += "  " + n + "\n"
		}
		out += "\n"
	}
	return out
}

func (m *model) View() string {
	if m.width == 0 {
		return ""
	}

	header := m.renderHeader()
	tabBar := m.renderTabBar()
	var body string
	switch m.activeTab {
	case tabThreads:
		body = m.threadsTable.View()
	case tabLoaders:
		body = m.loaderView.View()
	case tabChart:
		body = m.chart.view()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, boxStyle.Width(m.width-4).Render(body))
}

func (m *model) renderHeader() string {
	status := goodStyle.Render("● running")
	if m.done {
		status = mutedStyle.Render("● exited")
		if m.runErr != nil {
			status = criticalStyle.Render("● exited: " + m.runErr.Error())
		}
	}
	uptime := time.Since(m.startedAt).Round(time.Second)
	return titleStyle.Render("vireomon") + "  " + status + "  " + mutedStyle.Render("uptime "+uptime.String())
}

func (m *model) renderTabBar() string {
	var tabs []string
	for i := tabType(0); i < tabCount; i++ {
		style := tabInactiveStyle
		if i == m.activeTab {
			style = tabActiveStyle
		}
		tabs = append(tabs, style.Render(i.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
