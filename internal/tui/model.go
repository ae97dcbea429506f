package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragtutor/internal/assemble"
	"ragtutor/internal/chunker"
	"ragtutor/internal/domain"
	"ragtutor/internal/retrieval"
	"ragtutor/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Retrieve(ctx context.Context, sess *retrieval.Session, question string, mode service.Mode) (retrieval.Results, assemble.Context, error)
	Ask(ctx context.Context, sess *retrieval.Session, question string, mode service.Mode) (service.Answer, error)
	Upload(ctx context.Context, sess *retrieval.Session, path string) (service.UploadResult, error)
}

var modes = []service.Mode{service.ModeBoth, service.ModeKnowledge, service.ModeUser}

// hit is one result in display order, tagged with its corpus.
type hit struct {
	corpus domain.Corpus
	result domain.SearchResult
}

type retrievedMsg struct {
	query   string
	results retrieval.Results
	err     error
}

type answeredMsg struct {
	query  string
	answer service.Answer
	err    error
}

type uploadedMsg struct {
	result service.UploadResult
	err    error
}

// Model is the Bubble Tea model for the retrieval console.
type Model struct {
	service   RAGPort
	session   *retrieval.Session
	input     textinput.Model
	viewport  viewport.Model
	mode      int
	hits      []hit
	answer    string
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a console bound to one session.
func New(svc RAGPort, sess *retrieval.Session, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Query, /ask <question> or /upload <path>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  svc,
		session:  sess,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready. Tab switches corpora.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Mode returns the corpus selection used for the next query.
func (m Model) Mode() service.Mode { return modes[m.mode] }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case retrievedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.hits = nil
		} else {
			m.hits = flatten(msg.results)
			m.cursor = 0
			m.answer = ""
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("%d results for %q (%s)", len(m.hits), msg.query, m.Mode())
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.hits = flatten(msg.answer.Results)
			m.cursor = 0
			m.answer = msg.answer.Text
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("Answered %q from %d sources (%s)", msg.query, len(msg.answer.Context.Sources), m.Mode())
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case uploadedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Upload failed: " + msg.err.Error()
		} else {
			m.summary = msg.result.Summary
			m.status = fmt.Sprintf("Indexed %s: %d chunks", msg.result.Document, msg.result.Chunks)
		}
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if cmd := m.submit(); cmd != nil {
				m.busy = true
				m.input.SetValue("")
				return m, cmd
			}
		case "tab":
			m.mode = (m.mode + 1) % len(modes)
			m.status = fmt.Sprintf("Searching %s", m.Mode())
			return m, nil
		case "down":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.hits)) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit turns the input line into a background command.
func (m Model) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.busy {
		return nil
	}
	svc, sess, mode := m.service, m.session, m.Mode()
	switch {
	case strings.HasPrefix(line, "/upload "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
		return func() tea.Msg {
			res, err := svc.Upload(context.Background(), sess, path)
			return uploadedMsg{result: res, err: err}
		}
	case strings.HasPrefix(line, "/ask "):
		q := strings.TrimSpace(strings.TrimPrefix(line, "/ask "))
		return func() tea.Msg {
			ans, err := svc.Ask(context.Background(), sess, q, mode)
			return answeredMsg{query: q, answer: ans, err: err}
		}
	}
	return func() tea.Msg {
		res, _, err := svc.Retrieve(context.Background(), sess, line, mode)
		return retrievedMsg{query: line, results: res, err: err}
	}
}

// flatten lists knowledge hits before user hits, each in rank order.
func flatten(results retrieval.Results) []hit {
	var out []hit
	for _, c := range domain.Corpora {
		for _, r := range results[c] {
			out = append(out, hit{corpus: c, result: r})
		}
	}
	return out
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "RAG Tutor"
	if m.session != nil && m.session.Document() != "" {
		title += "  [" + m.session.Document() + "]"
	}
	header := lipgloss.NewStyle().Bold(true).Render(title)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	var b strings.Builder
	if m.answer != "" {
		b.WriteString(answerStyle.Render(m.answer))
		b.WriteString("\n\n")
	}
	if len(m.hits) == 0 {
		if m.answer == "" {
			b.WriteString("No results yet.")
		}
		return b.String()
	}
	h := m.hits[m.cursor]
	fmt.Fprintf(&b, "Result %d/%d  %s #%d  distance=%.3f\n\n", m.cursor+1, len(m.hits), h.corpus, h.result.Chunk.Index, h.result.Score)
	b.WriteString(highlightBestSentence(h.result.Chunk.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := chunker.Sentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 || len(sentences) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
