package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

// CohortEntry is one period bucket of inflow
type CohortEntry struct {
	Period string
	Count  int
}

// Cohort maps period labels to inflow counts in chronological order. It
// marshals as a JSON object whose key order is the slice order.
type Cohort []CohortEntry

// Keys returns the period labels in order
func (c Cohort) Keys() []string {
	keys := make([]string, len(c))
	for i, e := range c {
		keys[i] = e.Period
	}
	return keys
}

// Total sums every bucket
func (c Cohort) Total() int {
	n := 0
	for _, e := range c {
		n += e.Count
	}
	return n
}

func (c Cohort) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Period)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(formatFloat(float64(e.Count)))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rollups are the day-bucketed statistics of an aggregate series
type Rollups struct {
	TotalNewUsers    int     `json:"total_new_users"`
	AvgActiveUsers   float64 `json:"avg_active_users"`
	PeakActiveUsers  int     `json:"peak_active_users"`
	AvgTotalUsers    float64 `json:"avg_total_users"`
	PeakTotalUsers   int     `json:"peak_total_users"`
	AvgChurnedUsers  float64 `json:"avg_churned_users"`
	PeakChurnedUsers int     `json:"peak_churned_users"`
}

// Snapshot is the metrics record returned to callers
type Snapshot struct {
	TotalUsers         int      `json:"total_users"`
	ActiveUsers        int      `json:"active_users"`
	ChurnedUsers       int      `json:"churned_users"`
	ConversionRate     float64  `json:"conversion_rate"`
	AvgSessionDuration float64  `json:"avg_session_duration"`
	AvgSessionsPerUser float64  `json:"avg_sessions_per_user"`
	AvgRevenuePerUser  *float64 `json:"avg_revenue_per_user,omitempty"`
	TotalRevenue       *float64 `json:"total_revenue,omitempty"`
	CohortAnalysis     Cohort   `json:"cohort_analysis"`

	*Rollups
}

// DailyPoint is one calendar day of a reconciled aggregate series
type DailyPoint struct {
	Day     time.Time
	Total   int
	Active  int
	Churned int
	New     int
}

// AggregateUsers reduces per-user rows to a snapshot
func AggregateUsers(ds *UserDataset) Snapshot {
	snap := Snapshot{CohortAnalysis: Cohort{}}
	if ds == nil || len(ds.Records) == 0 {
		return snap
	}

	n := float64(len(ds.Records))
	var converted, duration, sessions float64
	revenue := decimal.Zero
	revenueRows := 0
	cohortUsers := map[string]map[string]bool{}
	var order []string

	for _, r := range ds.Records {
		switch r.Status {
		case StatusActive:
			snap.ActiveUsers++
		case StatusChurned:
			snap.ChurnedUsers++
		}
		converted += r.Converted
		duration += r.SessionDuration
		sessions += float64(r.SessionsCount)
		if r.Revenue.Valid {
			revenue = revenue.Add(decimal.NewFromFloat(r.Revenue.Value))
			revenueRows++
		}

		month := r.SignupDate.Format(monthLayout)
		if cohortUsers[month] == nil {
			cohortUsers[month] = map[string]bool{}
			order = append(order, month)
		}
		cohortUsers[month][r.identity()] = true
	}

	snap.TotalUsers = len(ds.Records)
	snap.ConversionRate = clamp(converted/n, 0, 1)
	snap.AvgSessionDuration = duration / n
	snap.AvgSessionsPerUser = sessions / n
	if ds.HasRevenue {
		snap.AvgRevenuePerUser, snap.TotalRevenue = revenueFigures(revenue, revenueRows)
	}

	// YYYY-MM sorts lexically in chronological order
	sort.Strings(order)
	for _, month := range order {
		snap.CohortAnalysis = append(snap.CohortAnalysis, CohortEntry{Period: month, Count: len(cohortUsers[month])})
	}
	return snap
}

// AggregatePeriods reduces a reconciled series to a snapshot and the
// per-day series used for charting.
func AggregatePeriods(s *PeriodSeries) (Snapshot, []DailyPoint) {
	snap := Snapshot{CohortAnalysis: Cohort{}, Rollups: &Rollups{}}
	if s == nil || len(s.Rows) == 0 {
		return snap, nil
	}

	pick := s.Rows[len(s.Rows)-1]
	for i := len(s.Rows) - 1; i >= 0; i-- {
		if s.Rows[i].Total > 0 {
			pick = s.Rows[i]
			break
		}
	}
	snap.TotalUsers = pick.Total
	snap.ActiveUsers = int(clamp(float64(pick.Active), 0, float64(pick.Total)))
	snap.ChurnedUsers = int(clamp(float64(pick.Churned), 0, float64(pick.Total)))
	if pick.Total > 0 {
		snap.ConversionRate = clamp(float64(snap.ActiveUsers)/float64(pick.Total), 0, 1)
	}

	daily := dailySeries(s.Rows)
	snap.Rollups = rollup(daily)
	for _, d := range daily {
		snap.CohortAnalysis = append(snap.CohortAnalysis, CohortEntry{Period: d.Day.Format(dayLayout), Count: d.New})
	}

	if s.HasRevenue {
		revenue := decimal.Zero
		rows := 0
		for _, r := range s.Rows {
			if r.Revenue.Valid {
				revenue = revenue.Add(decimal.NewFromFloat(r.Revenue.Value))
				rows++
			}
		}
		snap.AvgRevenuePerUser, snap.TotalRevenue = revenueFigures(revenue, rows)
	}
	return snap, daily
}

// dailySeries buckets rows by calendar day. Rows are already sorted; the
// last row of a day supplies its levels and new users are summed.
func dailySeries(rows []PeriodRow) []DailyPoint {
	var out []DailyPoint
	for _, r := range rows {
		day := dayOf(r.Date)
		if n := len(out); n > 0 && out[n-1].Day.Equal(day) {
			last := &out[n-1]
			last.Total, last.Active, last.Churned = r.Total, r.Active, r.Churned
			last.New += r.New
			continue
		}
		out = append(out, DailyPoint{Day: day, Total: r.Total, Active: r.Active, Churned: r.Churned, New: r.New})
	}
	return out
}

func rollup(daily []DailyPoint) *Rollups {
	r := &Rollups{}
	if len(daily) == 0 {
		return r
	}
	var active, total, churned float64
	for _, d := range daily {
		r.TotalNewUsers += d.New
		active += float64(d.Active)
		total += float64(d.Total)
		churned += float64(d.Churned)
		r.PeakActiveUsers = max(r.PeakActiveUsers, d.Active)
		r.PeakTotalUsers = max(r.PeakTotalUsers, d.Total)
		r.PeakChurnedUsers = max(r.PeakChurnedUsers, d.Churned)
	}
	n := float64(len(daily))
	r.AvgActiveUsers = active / n
	r.AvgTotalUsers = total / n
	r.AvgChurnedUsers = churned / n
	return r
}

func revenueFigures(sum decimal.Decimal, rows int) (*float64, *float64) {
	total := sum.Round(2).InexactFloat64()
	avg := 0.0
	if rows > 0 {
		avg = sum.Div(decimal.NewFromInt(int64(rows))).Round(2).InexactFloat64()
	}
	return &avg, &total
}

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
