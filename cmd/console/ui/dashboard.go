package ui

import (
	"fmt"
	"strings"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type agentsMsg []dto.AgentSummary
type relaySentMsg dto.RelayStateResponse
type commandsMsg []dto.CommandEntry

type DashboardModel struct {
	Client   *Client
	Table    table.Model
	Agents   []dto.AgentSummary
	RelayNum int
	Status   string
	Err      error
}

func NewDashboardModel(client *Client, height int) DashboardModel {
	columns := []table.Column{
		{Title: "Agent ID", Width: 24},
		{Title: "Online", Width: 8},
		{Title: "Last Heartbeat", Width: 20},
		{Title: "Schedule", Width: 14},
		{Title: "Version", Width: 10},
	}
	if height < 12 {
		height = 12
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height-10),
	)
	sStyle := table.DefaultStyles()
	sStyle.Header = sStyle.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	sStyle.Selected = sStyle.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(sStyle)

	return DashboardModel{Client: client, Table: t, RelayNum: 1}
}

func (m DashboardModel) refresh() tea.Cmd {
	return func() tea.Msg {
		agents, err := m.Client.ListAgents()
		if err != nil {
			return errMsg(err)
		}
		return agentsMsg(agents)
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return m.refresh()
}

func (m DashboardModel) selectedAgent() (dto.AgentSummary, bool) {
	row := m.Table.SelectedRow()
	if len(row) == 0 {
		return dto.AgentSummary{}, false
	}
	for _, a := range m.Agents {
		if a.AgentID == row[0] {
			return a, true
		}
	}
	return dto.AgentSummary{}, false
}

func (m DashboardModel) sendRelay(state string) tea.Cmd {
	agent, ok := m.selectedAgent()
	if !ok {
		return nil
	}
	relayID := m.RelayNum
	return func() tea.Msg {
		resp, err := m.Client.SetRelay(agent.AgentID, relayID, state)
		if err != nil {
			return errMsg(err)
		}
		return relaySentMsg(resp)
	}
}

func (m DashboardModel) loadCommands() tea.Cmd {
	agent, ok := m.selectedAgent()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		entries, err := m.Client.ListCommands(agent.AgentID)
		if err != nil {
			return errMsg(err)
		}
		return commandsMsg(entries)
	}
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := msg.String()
		switch {
		case s == "r":
			return m, m.refresh()
		case s == "o":
			return m, m.sendRelay("on")
		case s == "f":
			return m, m.sendRelay("off")
		case s == "c":
			return m, m.loadCommands()
		case s == "q":
			return m, tea.Quit
		case len(s) == 1 && s[0] >= '1' && s[0] <= '9':
			m.RelayNum = int(s[0] - '0')
			return m, nil
		}

	case agentsMsg:
		m.Agents = msg
		m.Err = nil
		rows := make([]table.Row, 0, len(msg))
		for _, a := range msg {
			online := "no"
			if a.Online {
				online = "yes"
			}
			hb := "-"
			if a.LastHeartbeat != nil {
				hb = a.LastHeartbeat.Format("01-02 15:04:05")
			}
			sched := a.ScheduleVersion
			if len(sched) > 12 {
				sched = sched[:12]
			}
			rows = append(rows, table.Row{a.AgentID, online, hb, sched, a.Version})
		}
		m.Table.SetRows(rows)

	case relaySentMsg:
		if msg.Sent {
			m.Status = fmt.Sprintf("relay %d command delivered", m.RelayNum)
		} else {
			m.Status = fmt.Sprintf("relay %d command queued (agent offline)", m.RelayNum)
		}
		return m, m.refresh()

	case commandsMsg:
		if len(msg) == 0 {
			m.Status = "no commands in journal"
			return m, nil
		}
		counts := map[string]int{}
		for _, e := range msg {
			counts[e.Status]++
		}
		last := msg[0]
		m.Status = fmt.Sprintf("journal: %d pending, %d sent, %d acked, %d failed  |  last: relay %d -> %s (%s)",
			counts["pending"], counts["sent"], counts["acked"], counts["failed"],
			last.RelayID, last.DesiredState, last.Status)
		return m, nil

	case errMsg:
		m.Err = msg
		return m, nil
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Laundropi Fleet") + "\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n\n")
	b.WriteString(blurredStyle.Render(fmt.Sprintf(
		"relay %d selected  |  1-9 pick relay, o/f switch it, c journal, r refresh, q quit", m.RelayNum)))
	if m.Status != "" {
		b.WriteString("\n" + focusedStyle.Render(m.Status))
	}
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
