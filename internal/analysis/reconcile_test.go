package analysis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileIdentity(t *testing.T) {
	tests := []struct {
		name        string
		total       float64
		active      Number
		churned     Number
		wantActive  float64
		wantChurned float64
	}{
		{"active derived from churn", 100, Missing, Some(40), 60, 40},
		{"churn derived from active", 100, Some(70), Missing, 70, 30},
		{"over-allocation trims churn", 50, Some(45), Some(20), 45, 5},
		{"under-allocation favours churn", 100, Some(50), Some(30), 70, 30},
		{"consistent pair kept", 100, Some(60), Some(40), 60, 40},
		{"neither present", 100, Missing, Missing, 0, 0},
		{"churn above total", 100, Missing, Some(150), 0, 100},
		{"active above total", 10, Some(20), Some(0), 10, 0},
		{"zero total", 0, Some(5), Some(3), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, c := ReconcileIdentity(tt.total, tt.active, tt.churned)
			assert.Equal(t, tt.wantActive, a)
			assert.Equal(t, tt.wantChurned, c)
		})
	}
}

func TestReconcileIdentityInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	maybe := func() Number {
		if rng.Intn(4) == 0 {
			return Missing
		}
		return Some(float64(rng.Intn(300)))
	}

	for i := 0; i < 2000; i++ {
		total := float64(rng.Intn(200))
		a, c := ReconcileIdentity(total, maybe(), maybe())
		require.GreaterOrEqual(t, a, 0.0)
		require.GreaterOrEqual(t, c, 0.0)
		require.LessOrEqual(t, a+c, total)
	}
}

func TestDeriveNewUsers(t *testing.T) {
	totals := []float64{100, 120, 110, 150}
	provided := []Number{Some(30), Some(100), Missing, Some(50)}

	got, replaced := DeriveNewUsers(totals, provided)

	// row 0 keeps its value (no growth estimate), row 1 is a spike,
	// row 2 has no growth, row 3 is within three times the growth
	assert.Equal(t, []float64{30, 20, 0, 50}, got)
	assert.Equal(t, 1, replaced)
}

func TestDeriveNewUsersAllMissing(t *testing.T) {
	got, replaced := DeriveNewUsers([]float64{10, 15, 15, 30}, nil)
	assert.Equal(t, []float64{0, 5, 0, 15}, got)
	assert.Zero(t, replaced)
}

func TestReconcile(t *testing.T) {
	ds := &PeriodDataset{
		Records: []PeriodRecord{
			{Date: day(2023, 1, 1), Total: 100, Churned: Some(40)},
			{Date: day(2023, 1, 2), Total: 50, Active: Some(45), Churned: Some(20)},
			{Date: day(2023, 1, 3), Total: 10.5, Active: Some(5.5), Churned: Some(5.5), New: Some(2)},
			{Date: day(2023, 1, 4), Total: 30, Active: Some(20), Churned: Some(10)},
		},
	}

	s := Reconcile(ds)
	require.Len(t, s.Rows, 4)

	assert.Equal(t, PeriodRow{Date: day(2023, 1, 1), Total: 100, Active: 60, Churned: 40}, s.Rows[0])
	assert.Equal(t, 45, s.Rows[1].Active)
	assert.Equal(t, 5, s.Rows[1].Churned)

	// fractional input still satisfies the identity after rounding
	assert.Equal(t, 10, s.Rows[2].Total)
	assert.Equal(t, 6, s.Rows[2].Active)
	assert.Equal(t, 4, s.Rows[2].Churned)

	// missing new_users takes the growth of 19.5, rounded half to even
	assert.Equal(t, 20, s.Rows[3].New)

	for _, r := range s.Rows {
		assert.LessOrEqual(t, r.Active+r.Churned, r.Total)
		assert.GreaterOrEqual(t, r.Active, 0)
		assert.GreaterOrEqual(t, r.Churned, 0)
	}
	assert.Equal(t, 3, s.Reconciled)
	assert.Zero(t, s.NewUsersReplaced)
}

func TestReconcileEmpty(t *testing.T) {
	s := Reconcile(&PeriodDataset{HasRevenue: true})
	assert.Empty(t, s.Rows)
	assert.True(t, s.HasRevenue)
}

func TestPeriodSeriesExport(t *testing.T) {
	s := &PeriodSeries{
		HasRevenue: true,
		Rows: []PeriodRow{
			{Date: day(2023, 1, 1), Total: 10, Active: 6, Churned: 4, New: 0, Revenue: Some(12.5)},
			{Date: day(2023, 1, 2), Total: 12, Active: 8, Churned: 4, New: 2},
		},
	}

	cols, recs := s.Export()

	assert.Equal(t, []string{"date", "total_users", "active_users", "churned_users", "new_users", "revenue"}, cols)
	assert.Equal(t, [][]string{
		{"2023-01-01", "10", "6", "4", "0", "12.5"},
		{"2023-01-02", "12", "8", "4", "2", ""},
	}, recs)
}
