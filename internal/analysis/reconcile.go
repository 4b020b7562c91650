package analysis

import (
	"math"
	"strconv"
	"time"
)

// newUsersSpikeFactor is how far a reported new_users value may exceed the
// growth in total_users before it is treated as a spurious spike.
const newUsersSpikeFactor = 3

// PeriodRow is a reconciled per-period row. Active+Churned never exceeds Total.
type PeriodRow struct {
	Date    time.Time
	Total   int
	Active  int
	Churned int
	New     int
	Revenue Number
}

// PeriodSeries is the reconciled per-period dataset in chronological order
type PeriodSeries struct {
	Rows       []PeriodRow
	HasRevenue bool

	// Reconciled counts rows whose active/churned pair was derived or corrected.
	Reconciled int
	// NewUsersReplaced counts provided new_users values replaced by the diff estimate.
	NewUsersReplaced int
}

// ReconcileIdentity makes (total, active, churned) consistent. Churn is
// trusted over active when deriving, and absorbs an over-allocation first:
//
//   - churned known, active missing: active = total - churned
//   - active known, churned missing: churned = total - active
//   - both known and active+churned < total: active = total - churned
//   - neither known: both zero
//
// Results are floored at zero, then any overflow above total is taken from
// churned and only the remainder from active.
func ReconcileIdentity(total float64, active, churned Number) (float64, float64) {
	var a, c float64
	switch {
	case churned.Valid && !active.Valid:
		a, c = total-churned.Value, churned.Value
	case active.Valid && !churned.Valid:
		a, c = active.Value, total-active.Value
	case active.Valid && churned.Valid:
		a, c = active.Value, churned.Value
		if a+c < total {
			a = total - c
		}
	}
	a = math.Max(a, 0)
	c = math.Max(c, 0)
	return absorbOverflow(total, a, c)
}

func absorbOverflow(total, active, churned float64) (float64, float64) {
	over := active + churned - total
	if over <= 0 {
		return active, churned
	}
	churned = math.Max(churned-over, 0)
	if rest := active + churned - total; rest > 0 {
		active = math.Max(active-rest, 0)
	}
	return active, churned
}

// DeriveNewUsers fills new-user inflow from the positive growth of totals.
// A provided value is kept unless it exceeds three times a positive growth
// estimate. It returns the values and how many provided ones were replaced.
func DeriveNewUsers(totals []float64, provided []Number) ([]float64, int) {
	out := make([]float64, len(totals))
	replaced := 0
	for i := range totals {
		diff := 0.0
		if i > 0 {
			diff = math.Max(totals[i]-totals[i-1], 0)
		}

		p := Missing
		if i < len(provided) {
			p = provided[i]
		}

		switch {
		case !p.Valid:
			out[i] = diff
		case diff > 0 && p.Value > newUsersSpikeFactor*diff:
			out[i] = diff
			replaced++
		default:
			out[i] = p.Value
		}
	}
	return out, replaced
}

// Reconcile applies the identity rules to every row, derives new users and
// rounds all counts to integers. The identity is checked again after
// rounding so it also holds for fractional input.
func Reconcile(ds *PeriodDataset) *PeriodSeries {
	series := &PeriodSeries{HasRevenue: ds.HasRevenue}
	if len(ds.Records) == 0 {
		return series
	}

	totals := make([]float64, len(ds.Records))
	provided := make([]Number, len(ds.Records))
	for i, r := range ds.Records {
		totals[i] = r.Total
		provided[i] = r.New
	}
	newUsers, replaced := DeriveNewUsers(totals, provided)
	series.NewUsersReplaced = replaced

	series.Rows = make([]PeriodRow, len(ds.Records))
	for i, r := range ds.Records {
		a, c := ReconcileIdentity(r.Total, r.Active, r.Churned)

		total := math.RoundToEven(r.Total)
		ra, rc := absorbOverflow(total, math.RoundToEven(a), math.RoundToEven(c))

		if !r.Active.Valid || !r.Churned.Valid || ra != r.Active.Value || rc != r.Churned.Value {
			series.Reconciled++
		}

		series.Rows[i] = PeriodRow{
			Date:    r.Date,
			Total:   int(total),
			Active:  int(ra),
			Churned: int(rc),
			New:     int(math.RoundToEven(newUsers[i])),
			Revenue: r.Revenue,
		}
	}
	return series
}

// Export renders the reconciled series with canonical headers
func (s *PeriodSeries) Export() ([]string, [][]string) {
	cols := []string{ColDate, ColTotalUsers, ColActiveUsers, ColChurnedUsers, ColNewUsers}
	if s.HasRevenue {
		cols = append(cols, ColRevenue)
	}
	out := make([][]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		rec := []string{
			r.Date.Format(dayLayout),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Active),
			strconv.Itoa(r.Churned),
			strconv.Itoa(r.New),
		}
		if s.HasRevenue {
			rec = append(rec, formatNumber(r.Revenue))
		}
		out = append(out, rec)
	}
	return cols, out
}
