// Package tui implements the pipeline dashboard: a bubbletea program that
// polls the HTTP Surface's job list and shows the most recent jobs,
// grounded on the teacher's internal/tui/model.go (Model/State/Styles shape,
// bubbles table.Model, lipgloss style set), wired to live API data instead
// of the teacher's mock Download entries.
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// State represents the dashboard's current screen.
type State int

const (
	Dashboard State = iota
	Help
)

const refreshInterval = 3 * time.Second

// jobRow is the projection of one job used to populate the table.
type jobRow struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	VideoURL string `json:"videoUrl"`
	Progress int    `json:"progress"`
}

// Model is the dashboard's bubbletea model.
type Model struct {
	state      State
	apiBaseURL string
	table      table.Model
	jobs       []jobRow
	statusLine string
	width      int
	height     int
	styles     Styles
}

// Styles holds the dashboard's lipgloss styles.
type Styles struct {
	title     lipgloss.Style
	subtitle  lipgloss.Style
	statusBar lipgloss.Style
	table     lipgloss.Style
	errorText lipgloss.Style
}

// refreshedMsg carries a poll's results back into Update.
type refreshedMsg struct {
	jobs []jobRow
	err  error
}

// InitialModel creates the dashboard's initial state, polling apiBaseURL.
func InitialModel(apiBaseURL string) Model {
	columns := []table.Column{
		{Title: "Job ID", Width: 36},
		{Title: "Status", Width: 18},
		{Title: "Video URL", Width: 50},
		{Title: "Progress", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Background(lipgloss.Color("#F8F8F8")).
			Padding(0, 1),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")),
	}

	return Model{
		state:      Dashboard,
		apiBaseURL: apiBaseURL,
		table:      t,
		styles:     styles,
	}
}

// Init starts the first poll; Update schedules the refresh tick once that
// poll's result arrives.
func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	apiBaseURL := m.apiBaseURL
	return func() tea.Msg {
		jobs, err := fetchJobs(apiBaseURL)
		return refreshedMsg{jobs: jobs, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return t })
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			m.state = Dashboard
			return m, nil
		case "h":
			m.state = Help
			return m, nil
		}

	case time.Time:
		return m, m.poll()

	case refreshedMsg:
		if msg.err != nil {
			m.statusLine = m.styles.errorText.Render("refresh failed: " + msg.err.Error())
		} else {
			m.jobs = msg.jobs
			m.updateTable()
			m.statusLine = fmt.Sprintf("last refreshed %s · %d jobs", time.Now().Format("15:04:05"), len(m.jobs))
		}
		return m, tick()
	}

	var cmd tea.Cmd
	if m.state == Dashboard {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// View renders the current screen.
func (m Model) View() string {
	switch m.state {
	case Help:
		return m.renderHelp()
	default:
		return m.renderDashboard()
	}
}

func (m Model) renderDashboard() string {
	title := m.styles.title.Render("Video Pipeline Dashboard")
	subtitle := m.styles.subtitle.Render("Live queue view · " + m.apiBaseURL)
	tableView := m.styles.table.Render(m.table.View())
	status := m.styles.statusBar.Render(m.statusLine + " · ↑/↓ navigate · h help · q quit")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, tableView, "", status)
}

func (m Model) renderHelp() string {
	title := m.styles.title.Render("Help")
	helpText := []string{
		"Video Pipeline Dashboard",
		"",
		"Polls the pipeline's API server every few seconds for the most",
		"recent jobs and their status.",
		"",
		"Keys:",
		"• ↑/↓  navigate the job table",
		"• h     this help screen",
		"• esc   back to the dashboard",
		"• q     quit",
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, "", strings.Join(helpText, "\n"), "", "esc to go back")
	return content
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.jobs))
	for _, job := range m.jobs {
		rows = append(rows, table.Row{job.JobID, job.Status, job.VideoURL, fmt.Sprintf("%d%%", job.Progress)})
	}
	m.table.SetRows(rows)
}

func fetchJobs(apiBaseURL string) ([]jobRow, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(apiBaseURL + "/api/videoconverter/jobs?skip=0&take=20")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status, body)
	}

	var jobs []jobRow
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
