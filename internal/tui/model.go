package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docuchat/internal/service"
	"docuchat/internal/session"
)

// ChatPort is the TUI-facing subset of a chat session.
type ChatPort interface {
	Ask(ctx context.Context, query string) (service.Result, error)
	Upload(ctx context.Context, path string) (service.IngestReport, error)
	History() []session.Turn
	ClearHistory()
	ToggleEscalation() bool
	Escalation() bool
	SearchAvailable() bool
}

type answerMsg struct {
	res service.Result
	err error
}

type uploadMsg struct {
	report service.IngestReport
	err    error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	chat     ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	digest   string
	status   string
	busy     bool
	ready    bool

	// escalation mirrors the session flag so View never calls into chat.
	escalation bool
}

// New creates a chat model. digest is shown under the header.
func New(ctx context.Context, chat ChatPort, digest string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or /upload file.pdf"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:        ctx,
		chat:       chat,
		input:      ti,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		digest:     digest,
		escalation: chat.Escalation(),
		status:     "Ready. ctrl+e toggles web search, ctrl+l clears history.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+digest, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.res.State == service.StateFailed:
			m.status = "Answer failed"
		case msg.res.Escalated:
			m.status = "Answered with web search"
		default:
			m.status = "Answered from documents"
		}
		m.refresh()
		return m, nil

	case uploadMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = "Upload failed: " + msg.err.Error()
		case msg.report.Skipped:
			m.status = fmt.Sprintf("%s is already indexed", msg.report.Filename)
		default:
			m.status = fmt.Sprintf("Indexed %s: %d pages, %d chunks", msg.report.Filename, msg.report.Pages, msg.report.Chunks)
			if msg.report.Digest != "" {
				m.digest = msg.report.Digest
			}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+e":
			on := m.chat.ToggleEscalation()
			m.escalation = on
			m.status = "Web search " + onOff(on)
			if on && !m.chat.SearchAvailable() {
				m.status += " (no search key configured)"
			}
			return m, nil
		case "ctrl+l":
			m.chat.ClearHistory()
			m.status = "History cleared"
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			if path, ok := strings.CutPrefix(line, "/upload "); ok {
				m.status = "Indexing " + strings.TrimSpace(path)
				return m, tea.Batch(m.spinner.Tick, m.upload(strings.TrimSpace(path)))
			}
			m.status = "Thinking"
			return m, tea.Batch(m.spinner.Tick, m.ask(line))
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.chat.Ask(m.ctx, q)
		return answerMsg{res: res, err: err}
	}
}

func (m Model) upload(path string) tea.Cmd {
	return func() tea.Msg {
		r, err := m.chat.Upload(m.ctx, path)
		return uploadMsg{report: r, err: err}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Chat") +
		dimStyle.Render("  web search: "+onOff(m.escalation))
	digest := dimStyle.Render(m.digest)
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + digest + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.chat.History()))
	m.viewport.GotoBottom()
}

func renderHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	lastQuestion := ""
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.Role == session.RoleUser {
			lastQuestion = t.Content
			b.WriteString(userStyle.Render("You: ") + t.Content)
			continue
		}
		b.WriteString(assistantStyle.Render("Assistant: ") + highlightBestSentence(t.Content, lastQuestion))
		for _, w := range t.Warnings {
			b.WriteString("\n" + warningStyle.Render("! "+w))
		}
		for _, c := range t.Citations {
			b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  %s (%s, %d chunks)", c.Filename, c.PageRange, c.ChunkCount)))
		}
	}
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	unicodeWordRe   = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe      = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence of text sharing the most
// words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		sentences = append(sentences, tail)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
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
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
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
