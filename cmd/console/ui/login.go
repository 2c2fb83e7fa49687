package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type loginDoneMsg struct{}
type errMsg error

type LoginModel struct {
	Client   *Client
	Inputs   []textinput.Model
	FocusIdx int
	Err      error
}

const (
	inputUsername = iota
	inputPassword
)

func NewLoginModel(client *Client) LoginModel {
	inputs := make([]textinput.Model, 2)

	inputs[inputUsername] = textinput.New()
	inputs[inputUsername].Placeholder = "admin"
	inputs[inputUsername].Prompt = "Username: "
	inputs[inputUsername].Focus()

	inputs[inputPassword] = textinput.New()
	inputs[inputPassword].Placeholder = "password"
	inputs[inputPassword].EchoMode = textinput.EchoPassword
	inputs[inputPassword].Prompt = "Password: "

	return LoginModel{Client: client, Inputs: inputs}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) submit() tea.Cmd {
	username := m.Inputs[inputUsername].Value()
	password := m.Inputs[inputPassword].Value()
	return func() tea.Msg {
		if err := m.Client.Login(username, password); err != nil {
			return errMsg(err)
		}
		return loginDoneMsg{}
	}
}

func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if m.FocusIdx == len(m.Inputs)-1 {
				return m, m.submit()
			}
			fallthrough
		case "tab", "down":
			m.FocusIdx = (m.FocusIdx + 1) % len(m.Inputs)
			for i := range m.Inputs {
				if i == m.FocusIdx {
					m.Inputs[i].Focus()
				} else {
					m.Inputs[i].Blur()
				}
			}
			return m, nil
		}
	case errMsg:
		m.Err = msg
		return m, nil
	}

	cmds := make([]tea.Cmd, len(m.Inputs))
	for i := range m.Inputs {
		m.Inputs[i], cmds[i] = m.Inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m LoginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Laundropi Hub Login") + "\n\n")
	for i := range m.Inputs {
		b.WriteString(m.Inputs[i].View() + "\n")
	}
	b.WriteString("\n" + blurredStyle.Render("tab to switch fields, enter to log in, ctrl+c to quit"))
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
