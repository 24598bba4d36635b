package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
)

// BranchPrefix marks a version key as a development branch.
const BranchPrefix = "dev-"

// TotalLabel is the label appended to every branch's monthly series.
const TotalLabel = "Total"

// CutoffLayout is the date format the registry expects in the "from" filter.
const CutoffLayout = "2006-01-02"

// PackageMetadata is the subset of the registry's package document the checker uses.
// Missing fields are left at their zero values.
type PackageMetadata struct {
	Name        string
	Description string
	Time        string
	Type        string
	Repository  string
	Language    string
	// Versions holds the keys of the registry's versions mapping.
	Versions []string
}

// Branches returns the development branches among the versions,
// deduplicated and sorted ascending.
func (m PackageMetadata) Branches() []string {
	seen := make(map[string]struct{}, len(m.Versions))
	branches := make([]string, 0, len(m.Versions))
	for _, v := range m.Versions {
		if !strings.HasPrefix(v, BranchPrefix) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		branches = append(branches, v)
	}
	sort.Strings(branches)
	return branches
}

// BranchStats holds the monthly download series of a single branch.
// Labels and Values are aligned and both end with the Total entry.
type BranchStats struct {
	Branch string
	Labels []string
	Values []float64
	Total  float64
}

// Downloads returns the series as a label → value map.
// When labels repeat, the later value wins.
func (b BranchStats) Downloads() map[string]float64 {
	m := make(map[string]float64, len(b.Labels))
	for i, label := range b.Labels {
		m[label] = b.Values[i]
	}
	return m
}

// Unused reports whether the branch had no downloads in the window.
func (b BranchStats) Unused() bool {
	return b.Total == 0
}

// MismatchError reports a stats payload whose labels and values do not line up.
type MismatchError struct {
	Labels int
	Values int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%d labels but %d values", e.Labels, e.Values)
}

// Aggregate builds the BranchStats for one branch and appends the Total entry.
// The input slices are not modified.
func Aggregate(branch string, labels []string, values []float64) (BranchStats, error) {
	if len(labels) != len(values) {
		return BranchStats{}, &MismatchError{Labels: len(labels), Values: len(values)}
	}

	total, err := stats.Sum(values)
	if err != nil {
		// Sum only fails on an empty series.
		total = 0
	}

	l := make([]string, 0, len(labels)+1)
	l = append(l, labels...)
	v := make([]float64, 0, len(values)+1)
	v = append(v, values...)

	return BranchStats{
		Branch: branch,
		Labels: append(l, TotalLabel),
		Values: append(v, total),
		Total:  total,
	}, nil
}

// Cutoff returns the first day of the month that lies months before now,
// formatted for the registry's "from" filter.
func Cutoff(now time.Time, months int) string {
	return time.Date(now.Year(), now.Month()-time.Month(months), 1, 0, 0, 0, 0, now.Location()).Format(CutoffLayout)
}
