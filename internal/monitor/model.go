// Package monitor 终端监控台，定期从 Redis 读取会话记录并展示。
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/magic-table/internal/storage"
)

// SessionSource 会话记录来源
type SessionSource interface {
	CurrentSession(ctx context.Context) (*storage.SessionData, error)
}

// sessionMsg 一次读取的结果
type sessionMsg struct {
	session *storage.SessionData
	err     error
}

// Model 监控台
type Model struct {
	source   SessionSource
	interval time.Duration
	refresh  timer.Model

	session *storage.SessionData
	err     error
	width   int
}

// New 创建监控台，每隔 interval 刷新一次
func New(source SessionSource, interval time.Duration) *Model {
	return &Model{
		source:   source,
		interval: interval,
		refresh:  timer.NewWithInterval(interval, time.Second),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.refresh.Init())
}

func (m *Model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s, err := m.source.CurrentSession(ctx)
		return sessionMsg{session: s, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionMsg:
		m.session, m.err = msg.session, msg.err
		return m, nil

	case timer.TickMsg:
		var cmd tea.Cmd
		m.refresh, cmd = m.refresh.Update(msg)
		return m, cmd

	case timer.TimeoutMsg:
		if msg.ID != m.refresh.ID() {
			return m, nil
		}
		m.refresh = timer.NewWithInterval(m.interval, time.Second)
		return m, tea.Batch(m.fetch(), m.refresh.Init())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}
	}
	return m, nil
}

func (m *Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle("🃏 magic-table 会话监控"))
	sb.WriteString("\n\n")

	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render(fmt.Sprintf("读取会话失败: %v", m.err)))
	case m.session == nil:
		sb.WriteString(helpStyle.Render("暂无会话记录"))
	default:
		sb.WriteString(boxStyle.Render(m.renderSession()))
	}

	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(fmt.Sprintf("%s 后刷新 · r 立即刷新 · q 退出", m.refresh.View())))
	return docStyle.Render(sb.String())
}

func (m *Model) renderSession() string {
	s := m.session
	style, ok := statusStyles[s.Status]
	if !ok {
		style = lipgloss.NewStyle()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "会话 %s  状态 %s\n", s.ID, style.Render(s.Status))
	fmt.Fprintf(&sb, "端口 %d  玩家 %d/%d  开始于 %s\n\n",
		s.Port, len(s.Slots), s.Players, time.Unix(s.StartedAt, 0).Format(time.DateTime))

	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-4s %-16s %-20s %5s %5s %5s %5s %5s %s",
		"座位", "玩家", "牌组", "张数", "生命", "中毒", "手牌", "牌库", "状态")))
	sb.WriteString("\n")
	for _, slot := range s.Slots {
		state := deadIcon
		if slot.Alive {
			state = aliveIcon
		}
		if slot.Ready {
			state += " " + readyIcon
		}
		fmt.Fprintf(&sb, "%-4d %-16s %-20s %5d %5d %5d %5d %5d %s\n",
			slot.Index, slot.Name, slot.DeckName, slot.Cards,
			slot.Health, slot.Poison, slot.Hand, slot.Library, state)
	}
	return strings.TrimRight(sb.String(), "\n")
}
