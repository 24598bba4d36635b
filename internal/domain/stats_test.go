package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageMetadata_Branches(t *testing.T) {
	meta := PackageMetadata{
		Versions: []string{"dev-main", "1.0.0", "dev-feature", "2.x-dev", "dev-main", "v1.1.0"},
	}
	assert.Equal(t, []string{"dev-feature", "dev-main"}, meta.Branches())

	assert.Empty(t, PackageMetadata{}.Branches())
}

func TestAggregate(t *testing.T) {
	testCases := []struct {
		name           string
		labels         []string
		values         []float64
		expectedTotal  float64
		expectedLabels []string
		expectError    bool
	}{
		{
			name:           "sums monthly values",
			labels:         []string{"2024-01", "2024-02", "2024-03"},
			values:         []float64{10, 20, 30},
			expectedTotal:  60,
			expectedLabels: []string{"2024-01", "2024-02", "2024-03", "Total"},
		},
		{
			name:           "all zero",
			labels:         []string{"2024-01", "2024-02", "2024-03"},
			values:         []float64{0, 0, 0},
			expectedTotal:  0,
			expectedLabels: []string{"2024-01", "2024-02", "2024-03", "Total"},
		},
		{
			name:           "empty series",
			labels:         []string{},
			values:         []float64{},
			expectedTotal:  0,
			expectedLabels: []string{"Total"},
		},
		{
			name:        "misaligned series",
			labels:      []string{"2024-01", "2024-02"},
			values:      []float64{1},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Aggregate("dev-main", tc.labels, tc.values)
			if tc.expectError {
				var mismatch *MismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, len(tc.labels), mismatch.Labels)
				assert.Equal(t, len(tc.values), mismatch.Values)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "dev-main", got.Branch)
			assert.Equal(t, tc.expectedTotal, got.Total)
			assert.Equal(t, tc.expectedLabels, got.Labels)
			assert.Len(t, got.Downloads(), len(tc.labels)+1)
			assert.Equal(t, tc.expectedTotal, got.Downloads()[TotalLabel])
			assert.Equal(t, tc.expectedTotal == 0, got.Unused())
		})
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	labels := []string{"2024-01", "2024-02"}
	values := []float64{3, 4}

	first, err := Aggregate("dev-x", labels, values)
	require.NoError(t, err)
	second, err := Aggregate("dev-x", labels, values)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"2024-01", "2024-02"}, labels, "input labels must not be modified")
	assert.Equal(t, []float64{3, 4}, values, "input values must not be modified")
}

func TestBranchStats_DownloadsLastWriteWins(t *testing.T) {
	got, err := Aggregate("dev-x", []string{"2024-01", "2024-01"}, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, float64(2), got.Downloads()["2024-01"])
	assert.Equal(t, float64(3), got.Total)
}

func TestCutoff(t *testing.T) {
	testCases := []struct {
		name     string
		now      time.Time
		months   int
		expected string
	}{
		{"default window", time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC), 9, "2026-01-01"},
		{"crosses year", time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC), 3, "2025-11-01"},
		{"end of month", time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), 1, "2026-02-01"},
		{"zero months", time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), 0, "2026-03-01"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Cutoff(tc.now, tc.months))
		})
	}
}
