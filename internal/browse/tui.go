package browse

import (
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/hirewire/internal/ledger"
	"github.com/amishk599/hirewire/internal/model"
)

// Match pairs a job with the recipients whose criteria accepted it.
type Match struct {
	Job        model.Job
	Recipients []string
}

// listing is one fetched job annotated the way a cycle would see it.
type listing struct {
	job         model.Job
	fingerprint string
	recipients  []string
}

func (l listing) row() table.Row {
	posted := "-"
	if l.job.PostedAt != nil {
		posted = l.job.PostedAt.Format(time.DateOnly)
	}
	contract := l.job.Contract()
	if contract == "" {
		contract = "-"
	}
	return table.Row{posted, l.job.Title, l.job.Location, contract, strings.Join(l.recipients, ",")}
}

var (
	accent      = lipgloss.Color("205")
	muted       = lipgloss.Color("244")
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	helpStyle   = lipgloss.NewStyle().Foreground(muted)
	fieldStyle  = lipgloss.NewStyle().Foreground(muted).Width(13)
	detailFrame = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(muted).Padding(0, 1)
)

const (
	listHelp   = "↑/↓ move  enter details  m matched only  esc back  q quit"
	detailHelp = "o open in browser  r description  esc back  q quit"
)

type browseModel struct {
	listings    []listing
	shown       []int // indexes into listings, in table order
	matchedOnly bool
	table       table.Model
	detail      viewport.Model
	open        int // listing in the detail view, -1 while on the table
	showDesc    bool
	width       int
	height      int
	openURL     func(string)
	wantQuit    bool
}

func newBrowseModel(all []model.Job, matches []Match) browseModel {
	recipients := make(map[string][]string, len(matches))
	for _, mt := range matches {
		recipients[mt.Job.ID] = mt.Recipients
	}
	ls := make([]listing, len(all))
	for i, j := range all {
		ls[i] = listing{job: j, fingerprint: ledger.Fingerprint(j), recipients: recipients[j.ID]}
	}
	newestFirst(ls)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(accent)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))

	m := browseModel{
		listings: ls,
		table:    table.New(table.WithFocused(true), table.WithStyles(styles)),
		detail:   viewport.New(0, 0),
		open:     -1,
		openURL:  openURL,
	}
	m.resize(80, 24)
	return m
}

func (m *browseModel) resize(width, height int) {
	m.width, m.height = width, height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(max(height-2, 4))
	m.refresh()

	m.detail.Width = max(width-4, 20)
	m.detail.Height = max(height-4, 3)
	if m.open >= 0 {
		m.detail.SetContent(m.renderDetail())
	}
}

// columns splits whatever the fixed columns leave between title, location
// and recipients. Each cell carries one column of padding per side.
func columns(width int) []table.Column {
	const posted, contract = 10, 8
	flex := max(width-posted-contract-10, 30)
	title, location := flex*2/5, flex/4
	return []table.Column{
		{Title: "Posted", Width: posted},
		{Title: "Title", Width: title},
		{Title: "Location", Width: location},
		{Title: "Contract", Width: contract},
		{Title: "For", Width: flex - title - location},
	}
}

func (m *browseModel) refresh() {
	m.shown = make([]int, 0, len(m.listings))
	rows := make([]table.Row, 0, len(m.listings))
	for i, l := range m.listings {
		if m.matchedOnly && len(l.recipients) == 0 {
			continue
		}
		m.shown = append(m.shown, i)
		rows = append(rows, l.row())
	}
	m.table.SetRows(rows)
	if m.table.Cursor() < 0 && len(rows) > 0 {
		m.table.SetCursor(0)
	}
}

// selected returns the listing under the table cursor.
func (m browseModel) selected() (int, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.shown) {
		return 0, false
	}
	return m.shown[c], true
}

func (m browseModel) matchedCount() int {
	n := 0
	for _, l := range m.listings {
		if len(l.recipients) > 0 {
			n++
		}
	}
	return n
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if k := msg.String(); k == "q" || k == "ctrl+c" {
			m.wantQuit = true
			return m, tea.Quit
		}
		if m.open >= 0 {
			return m.updateDetail(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m browseModel) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "m":
		m.matchedOnly = !m.matchedOnly
		m.refresh()
		return m, nil
	case "enter":
		i, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.open, m.showDesc = i, false
		m.detail.SetContent(m.renderDetail())
		m.detail.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m browseModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	j := m.listings[m.open].job
	switch msg.String() {
	case "esc", "backspace":
		m.open = -1
		return m, nil
	case "o":
		if j.URL != "" {
			m.openURL(j.URL)
		}
		return m, nil
	case "r":
		if j.Description != "" {
			m.showDesc = !m.showDesc
			m.detail.SetContent(m.renderDetail())
			m.detail.GotoTop()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	if m.open >= 0 {
		title := headStyle.Render(m.listings[m.open].job.Title)
		body := detailFrame.Width(max(m.width-2, 20)).Render(m.detail.View())
		return title + "\n" + body + "\n" + helpStyle.Render(detailHelp)
	}

	scope := "all jobs"
	if m.matchedOnly {
		scope = "matched only"
	}
	head := headStyle.Render(fmt.Sprintf("%d fetched, %d matched", len(m.listings), m.matchedCount())) +
		helpStyle.Render("  ("+scope+")")
	return head + "\n" + m.table.View() + "\n" + helpStyle.Render(listHelp)
}

func (m browseModel) renderDetail() string {
	l := m.listings[m.open]
	j := l.job

	var b strings.Builder
	field := func(name, value string) {
		if value == "" {
			value = "-"
		}
		b.WriteString(fieldStyle.Render(name) + value + "\n")
	}

	field("Title", j.Title)
	field("Company", j.Company)
	field("Location", j.Location)
	field("Contract", j.Contract())
	if j.PostedAt != nil {
		field("Posted", j.PostedAt.Local().Format("2006-01-02 15:04 MST"))
	} else {
		field("Posted", "")
	}
	field("ID", j.ID)
	field("Fingerprint", l.fingerprint)
	if len(l.recipients) > 0 {
		field("Matched for", strings.Join(l.recipients, ", "))
	} else {
		field("Matched for", "(none)")
	}
	field("URL", j.URL)

	if j.Description == "" {
		return b.String()
	}
	b.WriteByte('\n')
	if !m.showDesc {
		b.WriteString(helpStyle.Render("press r to read the description"))
		return b.String()
	}
	b.WriteString(lipgloss.NewStyle().Width(m.detail.Width).Render(j.Description))
	return b.String()
}

// newestFirst orders listings by posting time; undated jobs sink to the end.
func newestFirst(ls []listing) {
	slices.SortStableFunc(ls, func(a, b listing) int {
		pa, pb := a.job.PostedAt, b.job.PostedAt
		switch {
		case pa == nil && pb == nil:
			return 0
		case pa == nil:
			return 1
		case pb == nil:
			return -1
		}
		return pb.Compare(*pa)
	})
}

func openURL(url string) {
	name, args := "xdg-open", []string{url}
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	}
	_ = exec.Command(name, args...).Start()
}

// RunBrowseTUI shows one source's fetch as a table. It reports wantQuit=true
// when the user quit outright and false when they went back to the picker.
func RunBrowseTUI(all []model.Job, matches []Match) (bool, error) {
	result, err := tea.NewProgram(newBrowseModel(all, matches), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	final, ok := result.(browseModel)
	if !ok {
		return false, fmt.Errorf("unexpected model %T", result)
	}
	return final.wantQuit, nil
}
