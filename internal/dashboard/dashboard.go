// Package dashboard renders a live terminal view of the update state and
// binds keys to the update actions.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/reactive"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Store is the subset of *reactive.Store the dashboard drives.
type Store interface {
	Snapshot() reactive.State
	CheckUpdate(ctx context.Context)
	StartUpdate(ctx context.Context, t update.UpdateType)
	CompleteUpdate(ctx context.Context)
	OpenStore(ctx context.Context)
}

// Options configures the dashboard.
type Options struct {
	Platform    update.Platform
	PackageName string
	UpdateType  update.UpdateType
	NoEmoji     bool
	// ActionTimeout bounds each action started from a key press.
	ActionTimeout time.Duration
}

// stateMsg carries a committed store state into the event loop.
type stateMsg reactive.State

// actionDoneMsg is sent when an action started from a key returns.
type actionDoneMsg struct {
	name string
}

// Dashboard is the Bubble Tea model.
type Dashboard struct {
	ctx      context.Context
	store    Store
	opts     Options
	state    reactive.State
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	running  string
	width    int
	showHelp bool
}

// New creates a dashboard over store. Actions started from keys inherit ctx.
func New(ctx context.Context, store Store, opts Options) *Dashboard {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &Dashboard{
		ctx:   ctx,
		store: store,
		opts:  opts,
		state: store.Snapshot(),
		keys:  newKeyMap(opts.Platform == update.PlatformAndroid),
		help:  help.New(),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		spinner: s,
	}
}

// Init starts the spinner (Bubble Tea lifecycle)
func (m *Dashboard) Init() tea.Cmd {
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return m.spinner.Tick
}

// Update handles messages (Bubble Tea lifecycle)
func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case stateMsg:
		m.state = reactive.State(msg)
		return m, nil

	case actionDoneMsg:
		if m.running == msg.name {
			m.running = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Check):
		return m, m.action("check", m.store.CheckUpdate)
	case key.Matches(msg, m.keys.Start):
		t := m.opts.UpdateType
		return m, m.action("start", func(ctx context.Context) { m.store.StartUpdate(ctx, t) })
	case key.Matches(msg, m.keys.Complete):
		return m, m.action("complete", m.store.CompleteUpdate)
	case key.Matches(msg, m.keys.Open):
		return m, m.action("open", m.store.OpenStore)
	}
	return m, nil
}

// action runs fn off the UI thread. State changes reach the model through
// stateMsg, so the command only reports completion.
func (m *Dashboard) action(name string, fn func(context.Context)) tea.Cmd {
	m.running = name
	parent, timeout := m.ctx, m.opts.ActionTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		fn(ctx)
		return actionDoneMsg{name: name}
	}
}

// View renders the dashboard (Bubble Tea lifecycle)
func (m *Dashboard) View() string {
	if m.showHelp {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Render(m.help.FullHelpView(m.keys.FullHelp()))
	}

	body := m.render(m.state, true)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("39")).
		Padding(0, 1)
	return lipgloss.JoinVertical(lipgloss.Left, box.Render(body), m.help.ShortHelpView(m.keys.ShortHelp()))
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m *Dashboard) render(s reactive.State, live bool) string {
	var b strings.Builder
	title := fmt.Sprintf("%s update status", m.opts.Platform)
	if m.opts.PackageName != "" {
		title += " · " + m.opts.PackageName
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + " " + value + "\n")
	}
	row("Current", valueOr(s.CurrentVersion, "unknown"))
	row("Latest", valueOr(s.LatestVersion, "-"))
	row("Status", m.status(s, live))
	if s.StoreURL != "" {
		row("Store", dimStyle.Render(s.StoreURL))
	}
	if p := s.PlayStoreInfo; p != nil {
		row("Flows", allowed(p))
		if p.ClientVersionStalenessDays != nil {
			row("Stale", fmt.Sprintf("%d days", *p.ClientVersionStalenessDays))
		}
		if p.TotalBytesToDownload > 0 {
			row("Size", ui.FormatBytes(p.TotalBytesToDownload))
		}
	}
	if s.IsDownloading || s.IsReadyToInstall {
		b.WriteString("\n" + m.progress.ViewAs(float64(s.DownloadProgress)/100) + "\n")
	}
	if s.Error != nil {
		b.WriteString("\n" + errStyle.Render(fmt.Sprintf("%s: %s", s.Error.Kind, s.Error.Message)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Dashboard) status(s reactive.State, live bool) string {
	prefix := ""
	if live && (s.IsChecking || s.IsDownloading) {
		prefix = m.spinner.View() + " "
	}
	switch {
	case s.IsChecking:
		return prefix + "checking…"
	case s.IsReadyToInstall:
		return okStyle.Render(m.icon("✓ ") + "downloaded, ready to install")
	case s.IsDownloading:
		return prefix + fmt.Sprintf("downloading %d%%", s.DownloadProgress)
	case s.IsUpdateAvailable:
		return warnStyle.Render(m.icon("⬆ ") + "update available")
	case s.LatestVersion != "":
		return okStyle.Render(m.icon("✓ ") + "up to date")
	default:
		return dimStyle.Render("not checked")
	}
}

func (m *Dashboard) icon(s string) string {
	if m.opts.NoEmoji {
		return ""
	}
	return s
}

// RenderStatic renders one snapshot without animation, for non-TTY output.
func (m *Dashboard) RenderStatic(s reactive.State) string {
	return m.render(s, false) + "\n"
}

// Run shows the dashboard until the user quits. Store changes are pushed
// into the program as they are committed.
func Run(ctx context.Context, store *reactive.Store, opts Options, progOpts ...tea.ProgramOption) error {
	m := New(ctx, store, opts)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, progOpts...)...)

	remove := store.OnChange(func(s reactive.State) { p.Send(stateMsg(s)) })
	defer remove()

	store.Mount(ctx)
	defer store.Unmount()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func allowed(p *update.PlayStoreUpdateInfo) string {
	var flows []string
	if p.IsFlexibleUpdateAllowed {
		flows = append(flows, "flexible")
	}
	if p.IsImmediateUpdateAllowed {
		flows = append(flows, "immediate")
	}
	if len(flows) == 0 {
		return "none"
	}
	return strings.Join(flows, ", ")
}
