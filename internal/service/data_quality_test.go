package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pland4r/project-ai/internal/table"
)

func TestQualityProfilerProfileColumn(t *testing.T) {
	tbl := table.New("user_id", "status")
	tbl.Append("1", "active")
	tbl.Append("2", "n/a")
	tbl.Append("3", "active")
	tbl.Append("4", nil)

	qp := NewQualityProfiler()

	id := qp.ProfileColumn(tbl, "user_id")
	assert.Equal(t, 4, id.TotalRows)
	assert.Equal(t, 4, id.NonNullRows)
	assert.Equal(t, 1.0, id.UniquenessRatio)
	assert.Equal(t, 2.0, id.Entropy)
	assert.True(t, id.IsPrimaryKey)

	status := qp.ProfileColumn(tbl, "status")
	assert.Equal(t, 2, status.NonNullRows, "placeholder tokens count as null")
	assert.Equal(t, 0.5, status.NullRate)
	assert.Equal(t, 1, status.DistinctCount)
	assert.Equal(t, 0.0, status.Entropy)
	assert.False(t, status.IsPrimaryKey)
	assert.Less(t, status.QualityScore, id.QualityScore)
}

func TestQualityProfilerAllColumns(t *testing.T) {
	tbl := table.New("a", "b")
	tbl.Append(1.5, "x")

	profiles := NewQualityProfiler().ProfileAllColumns(tbl)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].ColumnName)
	assert.Equal(t, "b", profiles[1].ColumnName)

	assert.Empty(t, NewQualityProfiler().ProfileAllColumns(nil))
}

func TestQualityProfilerEmptyTable(t *testing.T) {
	p := NewQualityProfiler().ProfileColumn(table.New("a"), "a")
	assert.Zero(t, p.TotalRows)
	assert.Zero(t, p.NullRate)
	assert.Zero(t, p.QualityScore)
}
