package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"courserec/internal/domain"
)

// Model is the Bubble Tea model for the course search UI. It drives the
// query engine through the domain.Recommender contract only.
type Model struct {
	engine   domain.Recommender
	input    textinput.Model
	viewport viewport.Model
	results  []domain.Match
	filter   domain.Filter
	status   string
	cursor   int
	ready    bool
}

var (
	semesterCycle = []domain.Semester{"", domain.SemesterAutumn, domain.SemesterSpring}
	languageCycle = []domain.Language{"", domain.LangET, domain.LangEN, domain.LangRU, domain.LangDE}
	levelCycle    = []domain.Level{"", domain.LevelBachelor, domain.LevelMaster, domain.LevelDoctoral}
)

// New creates a new TUI model instance.
func New(engine domain.Recommender) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe what you want to study (eesti või inglise keeles) and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{engine: engine, input: ti, viewport: vp, status: "Ready. Type to search. F2/F3/F4 cycle filters."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + filter line, status, query box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.runQuery(q)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		case "f2":
			m.filter.Semester = cycle(semesterCycle, m.filter.Semester)
			m.status = "Filter changed. Press Enter to search again."
			return m, nil
		case "f3":
			m.filter.Language = cycle(languageCycle, m.filter.Language)
			m.status = "Filter changed. Press Enter to search again."
			return m, nil
		case "f4":
			m.filter.Level = cycle(levelCycle, m.filter.Level)
			m.status = "Filter changed. Press Enter to search again."
			return m, nil
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) runQuery(q string) {
	req := domain.QueryRequest{Text: q}
	if !m.filter.IsZero() {
		f := m.filter
		req.Filter = &f
	}
	res, err := m.engine.Recommend(context.Background(), req)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
		return
	}
	m.results = res.Matches
	m.cursor = 0
	switch {
	case res.FiltersExhausted:
		m.status = "Current filters eliminated every course. Try relaxing them."
	case len(res.Matches) == 0:
		m.status = "No courses indexed yet."
	default:
		m.status = fmt.Sprintf("Found %d courses for %q", len(res.Matches), q)
	}
}

// View renders the TUI layout and current results.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Course Recommender")
	filters := filterStyle.Render(m.filterLine())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + filters + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) filterLine() string {
	return fmt.Sprintf("F2 semester: %s   F3 language: %s   F4 level: %s",
		orAll(string(m.filter.Semester)), orAll(string(m.filter.Language)), orAll(string(m.filter.Level)))
}

func (m Model) renderResults() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	var sb strings.Builder
	for i, r := range m.results {
		line := fmt.Sprintf("%d. %s  %s  %.0f%%", i+1, r.Code, displayTitle(r.Metadata, r.Code), r.Score*100)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(renderDetail(m.results[m.cursor]))
	return sb.String()
}

func renderDetail(r domain.Match) string {
	meta := r.Metadata
	var lines []string
	lines = append(lines, detailHeaderStyle.Render(fmt.Sprintf("%s  similarity %.1f%%", r.Code, r.Score*100)))
	if meta.TitleEN != "" {
		lines = append(lines, "Title (EN): "+meta.TitleEN)
	}
	if meta.TitleET != "" {
		lines = append(lines, "Title (ET): "+meta.TitleET)
	}
	if meta.Semester != "" {
		lines = append(lines, "Semester:   "+string(meta.Semester))
	}
	if meta.Location != "" {
		lines = append(lines, "Location:   "+meta.Location)
	}
	if len(meta.Languages) > 0 {
		lines = append(lines, "Languages:  "+joinLanguages(meta.Languages))
	}
	if len(meta.Levels) > 0 {
		lines = append(lines, "Levels:     "+joinLevels(meta.Levels))
	}
	if meta.Credits > 0 {
		lines = append(lines, fmt.Sprintf("EAP:        %g", meta.Credits))
	}
	if meta.Assessment != "" {
		lines = append(lines, "Assessment: "+meta.Assessment)
	}
	return strings.Join(lines, "\n")
}

func displayTitle(meta domain.Metadata, code string) string {
	if meta.TitleEN != "" {
		return meta.TitleEN
	}
	if meta.TitleET != "" {
		return meta.TitleET
	}
	return code
}

func joinLanguages(list []domain.Language) string {
	parts := make([]string, len(list))
	for i, l := range list {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

func joinLevels(list []domain.Level) string {
	parts := make([]string, len(list))
	for i, l := range list {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func cycle[T comparable](values []T, current T) T {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

var (
	resultBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	filterStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	detailHeaderStyle = lipgloss.NewStyle().Bold(true)
)
