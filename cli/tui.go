package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type viewState int

const (
	stateTable viewState = iota
	stateShowEntry
	stateAddEntry
)

const (
	inputSite = iota
	inputUsername
	inputPassword
)

type model struct {
	s          *Session
	sites      []string
	cursor     int
	state      viewState
	textInputs []textinput.Model
	selected   string
	reveal     bool
	msg        string
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
	dirtyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func newModel(s *Session) model {
	inputs := make([]textinput.Model, 3)
	for i, label := range []string{"Website", "Username", "Password"} {
		ti := textinput.New()
		ti.Placeholder = label
		ti.Prompt = ""
		inputs[i] = ti
	}
	inputs[inputPassword].EchoMode = textinput.EchoPassword
	inputs[inputPassword].EchoCharacter = '*'

	return model{
		s:          s,
		sites:      s.Vault.Sites(),
		state:      stateTable,
		textInputs: inputs,
	}
}

// RunTUI browses the session's vault until the user quits. Changes stay in
// memory; the command loop asks to save them on exit.
func RunTUI(s *Session) error {
	p := tea.NewProgram(newModel(s))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case stateTable:
		return updateTable(m, msg)
	case stateShowEntry:
		return updateShowEntry(m, msg)
	case stateAddEntry:
		return updateAddEntry(m, msg)
	default:
		return m, nil
	}
}

func (m model) View() string {
	switch m.state {
	case stateTable:
		return viewTable(m)
	case stateShowEntry:
		return viewShowEntry(m)
	case stateAddEntry:
		return viewAddEntry(m)
	default:
		return "Unknown state"
	}
}

func (m *model) refresh() {
	m.sites = m.s.Vault.Sites()
	if m.cursor >= len(m.sites) {
		m.cursor = len(m.sites) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) current() (string, bool) {
	if len(m.sites) == 0 {
		return "", false
	}
	return m.sites[m.cursor], true
}

// --- Table ---
func updateTable(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.msg = ""
	switch key.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.sites)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if site, ok := m.current(); ok {
			m.selected = site
			m.reveal = false
			m.state = stateShowEntry
		}
	case "a":
		m.state = stateAddEntry
		for i := range m.textInputs {
			m.textInputs[i].SetValue("")
			m.textInputs[i].Blur()
		}
		cmd := m.textInputs[inputSite].Focus()
		return m, cmd
	case "d":
		if site, ok := m.current(); ok {
			if err := m.s.Vault.Delete(site); err != nil {
				m.msg = errStyle.Render(err.Error())
				break
			}
			m.refresh()
			m.msg = msgStyle.Render("Deleted " + site)
		}
	case "c":
		if site, ok := m.current(); ok {
			m.msg = m.copy(site)
		}
	case "s":
		if err := m.s.Vault.Save(); err != nil {
			m.msg = errStyle.Render(err.Error())
			break
		}
		m.msg = msgStyle.Render("Vault saved.")
	}
	return m, nil
}

func (m model) copy(site string) string {
	c, ok := m.s.Vault.Get(site)
	if !ok {
		return errStyle.Render("Entry not found")
	}
	if m.s.clipboard == nil {
		return errStyle.Render("No clipboard available")
	}
	if err := m.s.clipboard.Set(c.Password, m.s.clipTTL); err != nil {
		return errStyle.Render(err.Error())
	}
	if m.s.clipTTL > 0 {
		return msgStyle.Render(fmt.Sprintf("Password copied! (clears in %s)", m.s.clipTTL))
	}
	return msgStyle.Render("Password copied!")
}

func viewTable(m model) string {
	title := fmt.Sprintf("Vault %s (%d entries)", m.s.Name, len(m.sites))
	s := titleStyle.Render(title)
	if m.s.Vault.Dirty() {
		s += " " + dirtyStyle.Render("[unsaved]")
	}
	s += "\n\n"
	if len(m.sites) == 0 {
		s += "  (empty)\n"
	}
	for i, site := range m.sites {
		c, _ := m.s.Vault.Get(site)
		line := fmt.Sprintf("%-32s  %-24s", site, c.Username)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		s += line + "\n"
	}
	if m.msg != "" {
		s += "\n" + m.msg
	}
	s += "\nCommands: j/k=move, enter=show, a=add, d=delete, c=copy, s=save, q=back"
	return s
}

// --- Show Entry ---
func updateShowEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "esc", "q":
		m.state = stateTable
		m.selected = ""
		m.reveal = false
		m.msg = ""
	case "v":
		m.reveal = !m.reveal
	case "c":
		m.msg = m.copy(m.selected)
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func viewShowEntry(m model) string {
	c, _ := m.s.Vault.Get(m.selected)
	secret := "********"
	if m.reveal {
		secret = c.Password
	}
	s := titleStyle.Render(m.selected) + "\n\n"
	s += fmt.Sprintf("Username: %s\nPassword: %s\n", c.Username, secret)
	if m.msg != "" {
		s += "\n" + m.msg
	}
	s += "\nPress 'v' to reveal, 'c' to copy, Esc to return"
	return s
}

// --- Add Entry ---
func updateAddEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	var cmds []tea.Cmd
	for i := range m.textInputs {
		if m.textInputs[i].Focused() {
			var cmd tea.Cmd
			m.textInputs[i], cmd = m.textInputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			cmds = append(cmds, m.focusNext(false))
		case "shift+tab", "up":
			cmds = append(cmds, m.focusNext(true))
		case "esc":
			m.state = stateTable
			m.msg = ""
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if !m.textInputs[inputPassword].Focused() {
				cmds = append(cmds, m.focusNext(false))
				break
			}
			if m.textInputs[inputSite].Value() == "" {
				m.msg = errStyle.Render("Website must not be empty")
				break
			}
			m = saveAddEntry(m)
		}
	}
	return m, tea.Batch(cmds...)
}

// focusNext moves focus to the next or previous input.
func (m *model) focusNext(backward bool) tea.Cmd {
	n := len(m.textInputs)
	for i := 0; i < n; i++ {
		if m.textInputs[i].Focused() {
			m.textInputs[i].Blur()
			if backward {
				return m.textInputs[(i-1+n)%n].Focus()
			}
			return m.textInputs[(i+1)%n].Focus()
		}
	}
	return nil
}

func saveAddEntry(m model) model {
	site := m.textInputs[inputSite].Value()
	err := m.s.Vault.Add(site, m.textInputs[inputUsername].Value(), m.textInputs[inputPassword].Value())
	for i := range m.textInputs {
		m.textInputs[i].SetValue("")
		m.textInputs[i].Blur()
	}
	m.state = stateTable
	if err != nil {
		m.msg = errStyle.Render(err.Error())
		return m
	}
	m.refresh()
	for i, s := range m.sites {
		if s == site {
			m.cursor = i
		}
	}
	m.msg = msgStyle.Render("Added " + site)
	return m
}

func viewAddEntry(m model) string {
	s := titleStyle.Render("Add New Entry") + "\n\n"
	for _, ti := range m.textInputs {
		s += fmt.Sprintf("%-9s %s\n", ti.Placeholder+":", ti.View())
	}
	if m.msg != "" {
		s += "\n" + m.msg
	}
	s += "\nTab to move, Enter on the password to add, Esc to cancel"
	return s
}

var _ tea.Model = model{}
