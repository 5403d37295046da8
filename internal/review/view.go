package review

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/charmbracelet/lipgloss"
)

var (
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := cli.FormatTitle(fmt.Sprintf("Review (%d unverified)", len(m.rows)))
	if m.state == StateHelp {
		m.help.ShowAll = true
		return lipgloss.JoinVertical(lipgloss.Left, title, m.help.View(m.keymap))
	}
	if len(m.rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, cli.FormatSuccess("Nothing left to review"))
	}

	parts := []string{title, m.renderList(), "", m.renderDetail()}
	if m.state == StateCorrecting {
		parts = append(parts, "", m.renderCorrection())
	}
	if m.err != nil {
		parts = append(parts, "", cli.FormatError(m.err.Error()))
	}
	if m.busy {
		parts = append(parts, "", cli.SubtleStyle.Render("Saving..."))
	}
	parts = append(parts, "", m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// visibleRange keeps the cursor inside a window that fits the terminal.
func (m Model) visibleRange() (int, int) {
	size := max(m.height-14, 3)
	if len(m.rows) <= size {
		return 0, len(m.rows)
	}
	start := max(m.cursor-size/2, 0)
	end := start + size
	if end > len(m.rows) {
		end = len(m.rows)
		start = end - size
	}
	return start, end
}

func (m Model) renderList() string {
	start, end := m.visibleRange()
	lines := make([]string, 0, end-start)
	descWidth := max(m.width-48, 16)

	for i := start; i < end; i++ {
		txn := m.rows[i]
		line := fmt.Sprintf("%s  %-*s %10.2f  %-20s %s",
			txn.Date.Format("2006-01-02"),
			descWidth, truncate(txn.Description, descWidth),
			txn.Amount,
			truncate(txn.Category, 20),
			txn.Scope)
		if i == m.cursor {
			lines = append(lines, cursorStyle.Render("▸ ")+selectedStyle.Render(line))
			continue
		}
		lines = append(lines, "  "+line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail() string {
	txn, ok := m.selected()
	if !ok {
		return ""
	}

	var b strings.Builder
	category := txn.Category
	if txn.Subcategory != "" {
		category += " / " + txn.Subcategory
	}
	fmt.Fprintf(&b, "%s  %s\n", category, cli.FormatScope(txn.Scope))
	fmt.Fprintf(&b, "%s at %.4f %s (%s, %s)\n",
		cli.FormatKg(txn.CO2Emissions), txn.EmissionsFactor, txn.FactorUnit,
		txn.FactorSource, txn.FactorConfidence)
	fmt.Fprintf(&b, "Confidence %.0f%%", txn.Confidence*100)
	if txn.Reasoning != "" {
		fmt.Fprintf(&b, "\n%s", cli.SubtleStyle.Render(txn.Reasoning))
	}
	return cli.BoxStyle.Render(b.String())
}

func (m Model) renderCorrection() string {
	scope := "unchanged"
	if m.scope != nil {
		scope = cli.FormatScope(*m.scope)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		cli.SubtitleStyle.Render("Correct category (Tab cycles scope)"),
		m.input.View(),
		"Scope: "+scope)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// formatSummary is printed after the screen closes.
func formatSummary(s Summary) string {
	line := fmt.Sprintf("Verified %d, corrected %d, skipped %d", s.Verified, s.Corrected, s.Skipped)
	if s.Remaining > 0 {
		return cli.FormatInfo(fmt.Sprintf("%s; %d still unverified", line, s.Remaining))
	}
	return cli.FormatSuccess(line + "; ledger fully reviewed")
}

