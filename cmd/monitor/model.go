package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sketchroom/internal/rules"
	"sketchroom/internal/status"
)

const pollInterval = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))
)

// -- messages --

type statsLoadedMsg struct {
	snap status.Snapshot
	err  error
}

type pollMsg time.Time

type copiedMsg struct {
	code string
	err  error
}

type statsFetcher interface {
	Stats(ctx context.Context) (status.Snapshot, error)
}

// -- model --

type model struct {
	client  statsFetcher
	snap    status.Snapshot
	loaded  bool
	cursor  int
	err     string
	notice  string
	loading bool
	width   int
}

func newModel(c statsFetcher) model {
	return model{client: c, loading: true}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.load(), poll())
}

func (m model) load() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := c.Stats(ctx)
		return statsLoadedMsg{snap: snap, err: err}
	}
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case pollMsg:
		return m, tea.Batch(m.load(), poll())

	case statsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err.Error()
			break
		}
		m.snap = msg.snap
		m.loaded = true
		m.err = ""
		if m.cursor >= len(m.snap.Lobbies) {
			m.cursor = max(len(m.snap.Lobbies)-1, 0)
		}

	case copiedMsg:
		if msg.err != nil {
			m.notice = "copy failed: " + msg.err.Error()
		} else {
			m.notice = "copied " + msg.code
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.snap.Lobbies)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		m.loading = true
		return m, m.load()
	case "c":
		if m.cursor >= len(m.snap.Lobbies) {
			return m, nil
		}
		code := m.snap.Lobbies[m.cursor].Code
		if code == "" {
			m.notice = "private lobby, no code to copy"
			return m, nil
		}
		return m, func() tea.Msg {
			return copiedMsg{code: code, err: clipboard.WriteAll(code)}
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(" " + titleStyle.Render("sketchroom") + "\n\n")

	if !m.loaded {
		if m.err != "" {
			b.WriteString(" " + errStyle.Render("error: "+m.err) + "\n")
		} else {
			b.WriteString(" " + dimStyle.Render("loading...") + "\n")
		}
		return b.String()
	}

	s := m.snap
	fmt.Fprintf(&b, " %s %d   %s %d   %s %d   %s %d\n",
		dimStyle.Render("online"), s.Online,
		dimStyle.Render("games"), s.Games.ActiveGames,
		dimStyle.Render("playing"), s.Games.PlayersInGame,
		dimStyle.Render("started"), s.Games.GamesStarted)

	b.WriteString("\n " + dimStyle.Render("queues") + "\n")
	for _, mode := range rules.Modes {
		line := fmt.Sprintf("   %-8s %d waiting", mode, s.Queues[mode])
		if code := s.Open[mode]; code != "" {
			line += "  open " + accentStyle.Render(code)
		}
		b.WriteString(normalStyle.Render(line) + "\n")
	}

	b.WriteString("\n " + dimStyle.Render("lobbies") + "\n")
	if len(s.Lobbies) == 0 {
		b.WriteString("   " + dimStyle.Render("no lobbies") + "\n")
	}
	for i, l := range s.Lobbies {
		code := l.Code
		if code == "" {
			code = "------"
		}
		line := fmt.Sprintf("%-6s  %-6s  %d/%d  %s", code, l.Mode, l.Players, l.MaxPlayers, l.Status)
		if i == m.cursor {
			b.WriteString(" " + accentStyle.Render(">") + " " + selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString("   " + normalStyle.Render(line) + "\n")
		}
	}

	if len(s.Leaders) > 0 {
		b.WriteString("\n " + dimStyle.Render("leaders") + "\n")
		for _, p := range s.Leaders {
			rank := "-"
			if p.WorldRank != nil {
				rank = fmt.Sprint(*p.WorldRank)
			}
			b.WriteString(normalStyle.Render(fmt.Sprintf("   %3s  %-16s %d", rank, p.Username, p.TotalPoints)) + "\n")
		}
	}

	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(" " + errStyle.Render("error: "+m.err) + "\n")
	}
	if m.notice != "" {
		b.WriteString(" " + accentStyle.Render(m.notice) + "\n")
	}
	b.WriteString(" " + dimStyle.Render("j/k move · c copy code · r refresh · q quit") + "\n")
	return b.String()
}
