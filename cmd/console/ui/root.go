package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

type state int

const (
	stateLogin state = iota
	stateDashboard
)

type RootModel struct {
	State     state
	Client    *Client
	Login     LoginModel
	Dashboard DashboardModel
	height    int
}

func NewRootModel(baseURL string) RootModel {
	client := NewClient(baseURL)
	return RootModel{
		State:  stateLogin,
		Client: client,
		Login:  NewLoginModel(client),
	}
}

func (m RootModel) Init() tea.Cmd {
	return m.Login.Init()
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		if m.State == stateDashboard {
			m.Dashboard.Table.SetHeight(msg.Height - 10)
		}
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case loginDoneMsg:
		m.State = stateDashboard
		m.Dashboard = NewDashboardModel(m.Client, m.height)
		return m, m.Dashboard.Init()
	}

	var cmd tea.Cmd
	switch m.State {
	case stateLogin:
		m.Login, cmd = m.Login.Update(msg)
	case stateDashboard:
		m.Dashboard, cmd = m.Dashboard.Update(msg)
	}
	return m, cmd
}

func (m RootModel) View() string {
	if m.State == stateLogin {
		return m.Login.View()
	}
	return m.Dashboard.View()
}
