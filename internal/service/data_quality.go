package service

import (
	"fmt"
	"math"
	"time"

	"github.com/Pland4r/project-ai/internal/analysis"
	"github.com/Pland4r/project-ai/internal/table"
)

// DataQualityProfile holds quality metrics for a raw column
type DataQualityProfile struct {
	ColumnName      string  `json:"column_name"`
	TotalRows       int     `json:"total_rows"`
	NonNullRows     int     `json:"non_null_rows"`
	NullRate        float64 `json:"null_rate"`
	DistinctCount   int     `json:"distinct_count"`
	UniquenessRatio float64 `json:"uniqueness_ratio"`
	Entropy         float64 `json:"entropy"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	QualityScore    float64 `json:"quality_score"` // 0-1
}

// QualityProfiler measures how usable each raw column is before cleaning
type QualityProfiler struct{}

// NewQualityProfiler creates a new profiler
func NewQualityProfiler() *QualityProfiler {
	return &QualityProfiler{}
}

// ProfileColumn analyzes quality metrics for a single column. Cells that
// the cleaner treats as missing (blank, NaN, placeholder tokens) count as null.
func (qp *QualityProfiler) ProfileColumn(t *table.RawTable, column string) DataQualityProfile {
	profile := DataQualityProfile{
		ColumnName: column,
		TotalRows:  t.Len(),
	}

	uniqueValues := make(map[string]int)
	nonNullCount := 0

	for _, value := range t.Column(column) {
		if analysis.IsMissingCell(value) {
			continue
		}
		nonNullCount++
		uniqueValues[cellKey(value)]++
	}

	profile.NonNullRows = nonNullCount
	profile.DistinctCount = len(uniqueValues)

	if profile.TotalRows > 0 {
		profile.NullRate = float64(profile.TotalRows-nonNullCount) / float64(profile.TotalRows)
	}

	if nonNullCount > 0 {
		profile.UniquenessRatio = float64(profile.DistinctCount) / float64(nonNullCount)
	}

	profile.Entropy = qp.calculateEntropy(uniqueValues, nonNullCount)

	// High uniqueness (>95%) and low null rate (<5%)
	profile.IsPrimaryKey = profile.UniquenessRatio > 0.95 && profile.NullRate < 0.05

	profile.QualityScore = qp.calculateQualityScore(profile)

	return profile
}

// ProfileAllColumns profiles every column in header order
func (qp *QualityProfiler) ProfileAllColumns(t *table.RawTable) []DataQualityProfile {
	if t == nil {
		return []DataQualityProfile{}
	}
	profiles := make([]DataQualityProfile, len(t.Columns))
	for i, col := range t.Columns {
		profiles[i] = qp.ProfileColumn(t, col)
	}
	return profiles
}

// calculateEntropy computes Shannon entropy
func (qp *QualityProfiler) calculateEntropy(valueCounts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}

	entropy := 0.0
	for _, count := range valueCounts {
		if count > 0 {
			p := float64(count) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}

	return entropy
}

// calculateQualityScore computes overall quality (0-1). Nulls dominate;
// entropy far from a typical categorical/numeric spread costs up to half.
func (qp *QualityProfiler) calculateQualityScore(profile DataQualityProfile) float64 {
	if profile.TotalRows == 0 {
		return 0
	}

	score := 1.0 - profile.NullRate

	idealEntropy := 4.0
	entropyPenalty := math.Abs(profile.Entropy-idealEntropy) / 10.0
	score *= math.Max(0.5, 1.0-entropyPenalty)

	return math.Max(0, math.Min(1, score))
}

func cellKey(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
