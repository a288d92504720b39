// Package tui is the interactive chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Asker is the TUI-facing subset of the answer pipeline.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

type exchange struct {
	question string
	answer   domain.Answer
	err      error
}

// answerMsg carries the finished pipeline call back into Update.
type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  Asker
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	status   string
	thinking bool
	ready    bool
}

// New creates a new chat model.
func New(service Asker) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your docs and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, status: "Ready. Type a question."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.thinking {
				return m, nil
			}
			if q == "clear" {
				m.input.SetValue("")
				m.history = nil
				m.status = "History cleared."
				m.viewport.SetContent(m.renderTranscript())
				return m, nil
			}
			m.input.SetValue("")
			m.thinking = true
			m.status = "Thinking..."
			return m, askCmd(m.service, q)
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}

	case answerMsg:
		m.thinking = false
		m.history = append(m.history, exchange{
			question: msg.question,
			answer:   msg.answer,
			err:      msg.err,
		})
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered with %d context chunks.", len(msg.answer.Chunks))
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("CodeBridge AI")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	var sb strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("You: " + ex.question))
		sb.WriteString("\n")
		if ex.err != nil {
			sb.WriteString(errorStyle.Render(ex.err.Error()))
			continue
		}
		sb.WriteString(ex.answer.Text)
		if len(ex.answer.Chunks) > 0 {
			sb.WriteString("\n")
			sb.WriteString(sourceStyle.Render("sources: " + sourceList(ex.answer.Chunks)))
		}
	}
	return sb.String()
}

func sourceList(chunks []domain.Chunk) string {
	seen := make(map[string]struct{}, len(chunks))
	var docs []string
	for _, c := range chunks {
		if _, ok := seen[c.SourceDocID]; ok {
			continue
		}
		seen[c.SourceDocID] = struct{}{}
		docs = append(docs, c.SourceDocID)
	}
	return strings.Join(docs, ", ")
}

func askCmd(service Asker, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := service.Ask(context.Background(), question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
