package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/branch-usage-checker/internal/domain"
	"github.com/naka-gawa/branch-usage-checker/internal/gateway"
)

// Describer annotates a branch with extra information for the suggestions table.
type Describer interface {
	Describe(branch string) string
}

// SuggestionInput is everything the suggestions table needs besides the statistics.
type SuggestionInput struct {
	RegistryURL   string
	Identity      domain.PackageIdentity
	Cutoff        string
	TotalBranches int
	// Upstream adds an "Upstream" column when set.
	Upstream Describer
}

// Statistics renders the branch × month table.
// It returns false, after saying so, when there is nothing to show.
func (p *Printer) Statistics(all []domain.BranchStats) bool {
	if len(all) == 0 {
		p.Info("No statistics found... Stopping.")
		return false
	}

	headers, rows := statisticsRows(all)
	p.Newline()
	p.table(headers, rows, func(col int) lipgloss.Style {
		if col == 0 {
			return p.styles.cell
		}
		return p.styles.number
	})
	p.summary(all)
	return true
}

// Suggestions renders the branches without downloads as deletion candidates.
// It returns false, after saying so, when every branch had downloads.
func (p *Printer) Suggestions(all []domain.BranchStats, in SuggestionInput) bool {
	var unused []domain.BranchStats
	for _, s := range all {
		if s.Unused() {
			unused = append(unused, s)
		}
	}

	if len(unused) == 0 {
		p.Success("No suggestions available. Good job!")
		return false
	}

	headers := []string{"Branch", "URL"}
	if in.Upstream != nil {
		headers = append(headers, "Upstream")
	}
	rows := make([][]string, 0, len(unused))
	for _, s := range unused {
		row := []string{s.Branch, gateway.PackageURL(in.RegistryURL, in.Identity, s.Branch)}
		if in.Upstream != nil {
			row = append(row, in.Upstream.Describe(s.Branch))
		}
		rows = append(rows, row)
	}

	p.Newline()
	p.Info("Found %d branches (out of %d total) with no downloads since %s", len(unused), in.TotalBranches, in.Cutoff)
	p.table(headers, rows, func(col int) lipgloss.Style {
		if col == 1 {
			return p.styles.link
		}
		return p.styles.cell
	})
	return true
}

// statisticsRows builds the table contents. Columns appear in the order
// labels are first seen; a branch without a column gets an empty cell.
func statisticsRows(all []domain.BranchStats) ([]string, [][]string) {
	headers := []string{"Branch"}
	column := map[string]int{}
	for _, s := range all {
		for _, label := range s.Labels {
			if _, ok := column[label]; !ok {
				column[label] = len(headers)
				headers = append(headers, label)
			}
		}
	}

	rows := make([][]string, 0, len(all))
	for _, s := range all {
		row := make([]string, len(headers))
		row[0] = s.Branch
		for label, v := range s.Downloads() {
			row[column[label]] = formatCount(v)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func (p *Printer) summary(all []domain.BranchStats) {
	totals := make([]float64, 0, len(all))
	for _, s := range all {
		totals = append(totals, s.Total)
	}
	median, err := stats.Median(totals)
	if err != nil {
		return
	}
	mean, err := stats.Mean(totals)
	if err != nil {
		return
	}
	p.Info("Median branch total: %s, mean: %s", formatCount(median), strconv.FormatFloat(mean, 'f', 2, 64))
}

func (p *Printer) table(headers []string, rows [][]string, colStyle func(col int) lipgloss.Style) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.styles.border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.header
			}
			return colStyle(col)
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.w, t.Render())
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
