package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/assemble"
	"ragtutor/internal/domain"
	"ragtutor/internal/retrieval"
	"ragtutor/internal/service"
)

type fakePort struct {
	results  retrieval.Results
	err      error
	modes    []service.Mode
	uploaded string
}

func (f *fakePort) Retrieve(_ context.Context, _ *retrieval.Session, _ string, mode service.Mode) (retrieval.Results, assemble.Context, error) {
	f.modes = append(f.modes, mode)
	return f.results, assemble.Context{}, f.err
}

func (f *fakePort) Ask(_ context.Context, _ *retrieval.Session, _ string, mode service.Mode) (service.Answer, error) {
	f.modes = append(f.modes, mode)
	return service.Answer{Text: "an answer", Results: f.results}, f.err
}

func (f *fakePort) Upload(_ context.Context, _ *retrieval.Session, path string) (service.UploadResult, error) {
	f.uploaded = path
	return service.UploadResult{Document: "doc.txt", Chunks: 4, Summary: "short summary"}, f.err
}

func sampleResults() retrieval.Results {
	return retrieval.Results{
		domain.CorpusUser:      {{Chunk: domain.Chunk{Text: "user text", Index: 2}, Score: 0.4}},
		domain.CorpusKnowledge: {{Chunk: domain.Chunk{Text: "Light feeds plants. Cats nap.", Index: 0}, Score: 0.1}},
	}
}

// submit types line, presses enter, runs the returned command and feeds its
// message back.
func submit(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.True(t, m.busy)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func ready(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestModel_Retrieve(t *testing.T) {
	port := &fakePort{results: sampleResults()}
	m := ready(New(port, nil, ""))
	m = submit(t, m, "light")

	assert.False(t, m.busy)
	require.Len(t, m.hits, 2)
	assert.Equal(t, domain.CorpusKnowledge, m.hits[0].corpus)
	assert.Equal(t, domain.CorpusUser, m.hits[1].corpus)
	assert.Contains(t, m.status, `2 results for "light"`)
	assert.Contains(t, m.renderCurrent(), "knowledge #0")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrent(), "user #2")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestModel_ModeCycling(t *testing.T) {
	port := &fakePort{results: retrieval.Results{}}
	m := ready(New(port, nil, ""))
	assert.Equal(t, service.ModeBoth, m.Mode())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, service.ModeKnowledge, m.Mode())
	m = submit(t, m, "q")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, service.ModeBoth, next.(Model).Mode())
	assert.Equal(t, []service.Mode{service.ModeKnowledge}, port.modes)
}

func TestModel_AskAndUpload(t *testing.T) {
	port := &fakePort{results: sampleResults()}
	m := ready(New(port, nil, ""))

	m = submit(t, m, "/ask why plants?")
	assert.Equal(t, "an answer", m.answer)
	assert.Contains(t, m.renderCurrent(), "an answer")

	m = submit(t, m, "/upload /tmp/doc.txt")
	assert.Equal(t, "/tmp/doc.txt", port.uploaded)
	assert.Equal(t, "short summary", m.summary)
	assert.Equal(t, "Indexed doc.txt: 4 chunks", m.status)
}

func TestModel_Errors(t *testing.T) {
	port := &fakePort{err: errors.New("backend down")}
	m := ready(New(port, nil, ""))
	m = submit(t, m, "q")
	assert.Equal(t, "Error: backend down", m.status)
	assert.Empty(t, m.hits)
	assert.Equal(t, "No results yet.", m.renderCurrent())
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	m := ready(New(&fakePort{}, nil, ""))
	m.input.SetValue("   ")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, next.(Model).busy)
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Cats nap. Light feeds plants.", "light")
	assert.Contains(t, out, "Cats nap.")
	assert.Contains(t, out, "Light feeds plants.")
	assert.Equal(t, "A. B.", highlightBestSentence("A. B.", ""))
}
