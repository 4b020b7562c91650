package analysis

import "math"

// ChartPoint is one time-series point of the dashboard chart
type ChartPoint struct {
	Period string `json:"period"`
	Users  int    `json:"users"`
	Active int    `json:"active"`
	Churn  int    `json:"churn"`
}

// PieSlice is one share of the active/inactive breakdown, in percent
type PieSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Visualization is the chart-ready projection of a snapshot
type Visualization struct {
	ChartData []ChartPoint `json:"chartData"`
	PieData   []PieSlice   `json:"pieData"`
}

// Project builds chart series from a snapshot. When daily is non-empty its
// per-day levels are used directly; otherwise active and churn per cohort
// bucket are estimated from the overall conversion and churn ratios.
func Project(s Snapshot, daily []DailyPoint) Visualization {
	v := Visualization{ChartData: []ChartPoint{}}

	if len(daily) > 0 {
		for _, d := range daily {
			users := max(d.Total, 0)
			v.ChartData = append(v.ChartData, ChartPoint{
				Period: d.Day.Format(dayLayout),
				Users:  users,
				Active: int(clamp(float64(d.Active), 0, float64(users))),
				Churn:  int(clamp(float64(d.Churned), 0, float64(users))),
			})
		}
	} else {
		churnRatio := 0.0
		if s.TotalUsers > 0 {
			churnRatio = float64(s.ChurnedUsers) / float64(s.TotalUsers)
		}
		for _, e := range s.CohortAnalysis {
			users := float64(e.Count)
			v.ChartData = append(v.ChartData, ChartPoint{
				Period: e.Period,
				Users:  e.Count,
				Active: int(math.RoundToEven(users * s.ConversionRate)),
				Churn:  int(math.RoundToEven(users * churnRatio)),
			})
		}
	}

	active, inactive := 0.0, 0.0
	if s.TotalUsers > 0 {
		active = roundTo(float64(s.ActiveUsers)/float64(s.TotalUsers)*100, 2)
		inactive = roundTo(float64(s.TotalUsers-s.ActiveUsers)/float64(s.TotalUsers)*100, 2)
	}
	v.PieData = []PieSlice{
		{Name: "Active", Value: active},
		{Name: "Inactive", Value: inactive},
	}
	return v
}
