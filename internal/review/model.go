// Package review is the interactive terminal screen for confirming or
// correcting ledger rows that no person has looked at yet.
package review

import (
	"context"
	"errors"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCategoryRequired is shown when a correction is submitted without a category.
var ErrCategoryRequired = errors.New("category is required")

// Reviewer applies review decisions to the ledger.
type Reviewer interface {
	VerifyTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error)
	CorrectTransaction(ctx context.Context, id string, correction service.TransactionCorrection) (*model.LedgerTransaction, error)
}

// State is the screen the review is on.
type State int

const (
	StateList State = iota
	StateCorrecting
	StateHelp
)

// Summary counts what happened during a session.
type Summary struct {
	Verified  int `json:"verified"`
	Corrected int `json:"corrected"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

type actionKind int

const (
	actionVerify actionKind = iota
	actionCorrect
)

// reviewedMsg carries the outcome of a verify or correct call.
type reviewedMsg struct {
	err  error
	txn  *model.LedgerTransaction
	id   string
	kind actionKind
}

// Model holds the review state.
type Model struct {
	ctx      context.Context
	reviewer Reviewer
	err      error
	scope    *model.Scope
	keymap   KeyMap
	help     help.Model
	input    textinput.Model
	rows     []model.LedgerTransaction
	summary  Summary
	width    int
	height   int
	cursor   int
	state    State
	busy     bool
	quitting bool
}

// NewModel builds a review over rows.
func NewModel(ctx context.Context, reviewer Reviewer, rows []model.LedgerTransaction) Model {
	input := textinput.New()
	input.Placeholder = "Category / Subcategory"
	input.CharLimit = 120
	input.Prompt = "> "

	return Model{
		ctx:      ctx,
		reviewer: reviewer,
		rows:     rows,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		input:    input,
		width:    80,
		height:   24,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Summary reports the session counts so far.
func (m Model) Summary() Summary {
	s := m.summary
	s.Remaining = len(m.rows)
	return s
}

// Rows returns the rows still awaiting review.
func (m Model) Rows() []model.LedgerTransaction {
	return m.rows
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case reviewedMsg:
		return m.handleReviewed(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.state {
		case StateCorrecting:
			return m.updateCorrecting(msg)
		case StateHelp:
			if key.Matches(msg, m.keymap.Help, m.keymap.Cancel) {
				m.state = StateList
			}
			return m, nil
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.state = StateHelp
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.Skip):
		if len(m.rows) > 0 {
			m.summary.Skipped++
			m.cursor = (m.cursor + 1) % len(m.rows)
		}
	case key.Matches(msg, m.keymap.Verify):
		if txn, ok := m.selected(); ok && !m.busy {
			m.busy = true
			m.err = nil
			return m, m.verify(txn.ID)
		}
	case key.Matches(msg, m.keymap.Correct):
		if txn, ok := m.selected(); ok && !m.busy {
			m.state = StateCorrecting
			m.err = nil
			scope := txn.Scope
			m.scope = &scope
			m.input.SetValue(txn.Category)
			if txn.Subcategory != "" {
				m.input.SetValue(txn.Category + " / " + txn.Subcategory)
			}
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m Model) updateCorrecting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.state = StateList
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keymap.Scope):
		m.scope = nextScope(m.scope)
		return m, nil
	case key.Matches(msg, m.keymap.Submit):
		correction, err := parseCorrection(m.input.Value(), m.scope)
		if err != nil {
			m.err = err
			return m, nil
		}
		txn, ok := m.selected()
		if !ok || m.busy {
			return m, nil
		}
		m.busy = true
		m.state = StateList
		m.input.Blur()
		return m, m.correct(txn.ID, correction)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleReviewed(msg reviewedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.err = msg.err
		return m, nil
	}

	switch msg.kind {
	case actionVerify:
		m.summary.Verified++
	case actionCorrect:
		m.summary.Corrected++
	}
	m.remove(msg.id)

	if len(m.rows) == 0 {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) remove(id string) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.rows) && m.cursor > 0 {
		m.cursor = len(m.rows) - 1
	}
}

func (m Model) selected() (model.LedgerTransaction, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return model.LedgerTransaction{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) verify(id string) tea.Cmd {
	return func() tea.Msg {
		txn, err := m.reviewer.VerifyTransaction(m.ctx, id)
		return reviewedMsg{id: id, txn: txn, kind: actionVerify, err: err}
	}
}

func (m Model) correct(id string, correction service.TransactionCorrection) tea.Cmd {
	return func() tea.Msg {
		txn, err := m.reviewer.CorrectTransaction(m.ctx, id, correction)
		return reviewedMsg{id: id, txn: txn, kind: actionCorrect, err: err}
	}
}

// parseCorrection reads "Category" or "Category / Subcategory".
func parseCorrection(value string, scope *model.Scope) (service.TransactionCorrection, error) {
	category, subcategory, hasSub := strings.Cut(value, "/")
	category = strings.TrimSpace(category)
	if category == "" {
		return service.TransactionCorrection{}, ErrCategoryRequired
	}

	correction := service.TransactionCorrection{Category: category, Scope: scope}
	if hasSub {
		sub := strings.TrimSpace(subcategory)
		correction.Subcategory = &sub
	}
	return correction, nil
}

func nextScope(current *model.Scope) *model.Scope {
	next := model.Scope1
	if current != nil {
		next = *current + 1
		if !next.Valid() {
			next = model.Scope1
		}
	}
	return &next
}
