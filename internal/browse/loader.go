package browse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/hirewire/internal/model"
)

// errCancelled is returned when the user aborts a fetch with ctrl+c.
var errCancelled = errors.New("cancelled")

type fetchDoneMsg struct {
	jobs []model.Job
	err  error
}

type loaderModel struct {
	sourceName string
	fetcher    model.JobFetcher
	timeout    time.Duration
	spinner    spinner.Model
	result     []model.Job
	err        error
	done       bool
}

func newLoaderModel(sourceName string, fetcher model.JobFetcher, timeout time.Duration) loaderModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return loaderModel{sourceName: sourceName, fetcher: fetcher, timeout: timeout, spinner: s}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doFetch(), m.spinner.Tick)
}

func (m loaderModel) doFetch() tea.Cmd {
	fetcher, timeout := m.fetcher, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		jobs, err := fetcher.FetchJobs(ctx)
		return fetchDoneMsg{jobs: jobs, err: err}
	}
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchDoneMsg:
		m.result = msg.jobs
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = errCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Fetching jobs from %s...\n", m.spinner.View(), m.sourceName)
}

// RunLoader shows a spinner while fetching jobs. It renders inline (no alt screen).
func RunLoader(sourceName string, fetcher model.JobFetcher, timeout time.Duration) ([]model.Job, error) {
	p := tea.NewProgram(newLoaderModel(sourceName, fetcher, timeout))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
