package tui

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mt4110/rec-split/internal/config"
	"github.com/mt4110/rec-split/internal/watcher"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))
)

const (
	maxHistory = 20
	barWidth   = 30
)

type tickMsg time.Time

type Model struct {
	cfg      *config.Config
	watching []string

	queue   []string
	paths   []string // Parallel to queue to store full paths
	current string
	history []string

	progress *watcher.ProgressEvent

	cursor int // Cursor position in queue

	sub chan interface{} // Subscription to watcher events
}

func NewModel(cfg *config.Config, sub chan interface{}) Model {
	return Model{
		cfg:     cfg,
		queue:   []string{},
		paths:   []string{},
		history: []string{},
		sub:     sub,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForActivity(m.sub),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.queue)-1 {
				m.cursor++
			}
		case " ":
			// QuickLook
			if runtime.GOOS == "darwin" && m.cursor < len(m.paths) {
				path := m.paths[m.cursor]
				return m, tea.ExecProcess(exec.Command("qlmanage", "-p", path), func(err error) tea.Msg {
					return nil
				})
			}
		}
	case tickMsg:
		return m, tickCmd()

	// Watcher Events
	case watcher.WatchingEvent:
		m.watching = msg.Dirs
		return m, waitForActivity(m.sub)

	case watcher.FileFoundEvent:
		m.queue = append(m.queue, msg.Name)
		m.paths = append(m.paths, msg.Path)
		return m, waitForActivity(m.sub)

	case watcher.StartSplitEvent:
		m.dequeue(msg.Path)
		m.current = msg.Path
		m.progress = nil
		m.pushHistory("🚀 Splitting: " + filepath.Base(msg.Path))
		return m, waitForActivity(m.sub)

	case watcher.ProgressEvent:
		p := msg
		m.progress = &p
		return m, waitForActivity(m.sub)

	case watcher.SuccessEvent:
		n := 0
		if msg.Outcome != nil {
			n = len(msg.Outcome.OutputFiles)
		}
		m.finish(msg.Path)
		m.pushHistory(fmt.Sprintf("✅ Done: %s (%d segments)", filepath.Base(msg.Path), n))
		return m, waitForActivity(m.sub)

	case watcher.FailureEvent:
		m.dequeue(msg.Path)
		m.finish(msg.Path)
		m.pushHistory(fmt.Sprintf("❌ Failed: %s: %v", filepath.Base(msg.Path), msg.Err))
		return m, waitForActivity(m.sub)
	}
	return m, nil
}

func (m *Model) dequeue(path string) {
	for i, p := range m.paths {
		if p == path {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.paths = append(m.paths[:i], m.paths[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.queue) && m.cursor > 0 {
		m.cursor--
	}
}

func (m *Model) finish(path string) {
	if m.current == path {
		m.current = ""
		m.progress = nil
	}
}

func (m *Model) pushHistory(line string) {
	m.history = append([]string{line}, m.history...)
	if len(m.history) > maxHistory {
		m.history = m.history[:maxHistory]
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("✂️ RecSplit TUI") + "\n\n")

	dirs := m.watching
	if len(dirs) == 0 {
		dirs = m.cfg.WatchDirs
	}
	strategy := m.cfg.Split.Mode
	if st, err := m.cfg.Split.Strategy(); err == nil {
		strategy = st.String()
	}
	fmt.Fprintf(&b, "監視中: %v\n", dirs)
	fmt.Fprintf(&b, "分割方法: %s\n\n", strategy)

	b.WriteString("処理中:\n")
	if m.current == "" {
		b.WriteString(statusStyle.Render("  (なし)") + "\n")
	} else {
		fmt.Fprintf(&b, "  %s\n", filepath.Base(m.current))
		if m.progress != nil {
			fmt.Fprintf(&b, "  %s %s\n", progressStyle.Render(bar(m.progress.Percentage)), m.progress.Message)
		}
	}

	b.WriteString("\n処理待ちキュー:\n")
	if len(m.queue) == 0 {
		b.WriteString(statusStyle.Render("  (空)") + "\n")
	}
	for i, q := range m.queue {
		cursor := "  "
		if m.cursor == i {
			cursor = "> "
		}
		fmt.Fprintf(&b, "%s%s\n", cursor, q)
	}

	b.WriteString("\n最近の履歴:\n")
	if len(m.history) == 0 {
		b.WriteString(statusStyle.Render("  (履歴なし)") + "\n")
	}
	for _, h := range m.history {
		fmt.Fprintf(&b, "  %s\n", h)
	}

	b.WriteString("\n操作: [q] 終了  [↑/↓] 選択  [Space] プレビュー(QuickLook)\n")
	return b.String()
}

// bar renders pct (0-100) as a fixed width text bar.
func bar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * barWidth)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + fmt.Sprintf("] %3.0f%%", pct)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForActivity(sub chan interface{}) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}
