package service

import (
	"math"

	"github.com/Pland4r/project-ai/internal/analysis"
)

const (
	minTrendPoints       = 3
	minSeasonalityPoints = 14
	minLagPoints         = 10
	maxChurnLag          = 7
)

// Trend describes the linear drift of one daily metric
type Trend struct {
	Metric      string  `json:"metric"`
	Slope       float64 `json:"slope"` // users per day
	RSquared    float64 `json:"r_squared"`
	Seasonality float64 `json:"seasonality"`
}

// TrendReport is attached to aggregate results
type TrendReport struct {
	Trends []Trend `json:"trends"`
	// ChurnLag maps a lag in days to the correlation between new users on
	// day d and churned users on day d+lag.
	ChurnLag map[int]float64 `json:"churn_lag,omitempty"`
}

// TrendAnalyzer provides time-series statistics over a daily series
type TrendAnalyzer struct{}

// NewTrendAnalyzer creates a new analyzer
func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{}
}

// Analyze returns nil when the series is too short for a regression
func (ta *TrendAnalyzer) Analyze(daily []analysis.DailyPoint) *TrendReport {
	if len(daily) < minTrendPoints {
		return nil
	}

	days := make([]float64, len(daily))
	series := map[string][]float64{}
	for i, p := range daily {
		days[i] = p.Day.Sub(daily[0].Day).Hours() / 24
		series[analysis.ColTotalUsers] = append(series[analysis.ColTotalUsers], float64(p.Total))
		series[analysis.ColActiveUsers] = append(series[analysis.ColActiveUsers], float64(p.Active))
		series[analysis.ColChurnedUsers] = append(series[analysis.ColChurnedUsers], float64(p.Churned))
		series[analysis.ColNewUsers] = append(series[analysis.ColNewUsers], float64(p.New))
	}

	report := &TrendReport{}
	for _, metric := range []string{analysis.ColTotalUsers, analysis.ColActiveUsers, analysis.ColChurnedUsers, analysis.ColNewUsers} {
		vals := series[metric]
		slope, r2 := ta.TrendAnalysis(days, vals)
		report.Trends = append(report.Trends, Trend{
			Metric:      metric,
			Slope:       slope,
			RSquared:    r2,
			Seasonality: ta.SeasonalityDetection(vals),
		})
	}
	report.ChurnLag = ta.LagCorrelation(series[analysis.ColNewUsers], series[analysis.ColChurnedUsers], maxChurnLag)
	return report
}

// LagCorrelation calculates the correlation of y against x shifted forward
// by 0..maxLag points
func (ta *TrendAnalyzer) LagCorrelation(x, y []float64, maxLag int) map[int]float64 {
	if len(x) < minLagPoints || len(y) < minLagPoints {
		return nil
	}

	lagCorrelations := make(map[int]float64)
	for lag := 0; lag <= maxLag; lag++ {
		lagCorrelations[lag] = correlationAtLag(x, y, lag)
	}
	return lagCorrelations
}

func correlationAtLag(x, y []float64, lag int) float64 {
	if lag >= len(x) || lag >= len(y) {
		return 0
	}
	x1 := x[:len(x)-lag]
	y1 := y[lag:]

	n := min(len(x1), len(y1))
	if n < 3 {
		return 0
	}
	return pearsonCorrelation(x1[:n], y1[:n])
}

// SeasonalityDetection returns the strongest autocorrelation over lags up to
// half the series (capped at 30), or 0 for short series
func (ta *TrendAnalyzer) SeasonalityDetection(vals []float64) float64 {
	if len(vals) < minSeasonalityPoints {
		return 0
	}

	maxLag := min(len(vals)/2, 30)
	best := 0.0
	for lag := 1; lag <= maxLag; lag++ {
		if ac := autocorrelation(vals, lag); ac > best {
			best = ac
		}
	}
	return best
}

func autocorrelation(vals []float64, lag int) float64 {
	if lag >= len(vals) {
		return 0
	}
	return pearsonCorrelation(vals[:len(vals)-lag], vals[lag:])
}

// TrendAnalysis fits y = m*x + b where x is the day offset of each point,
// so the slope is in users per day even when days are missing
func (ta *TrendAnalyzer) TrendAnalysis(days, vals []float64) (slope float64, rsquared float64) {
	if len(vals) < minTrendPoints || len(days) != len(vals) {
		return 0, 0
	}

	n := float64(len(vals))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range vals {
		x := days[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denominator

	meanY := sumY / n
	intercept := meanY - slope*(sumX/n)
	var ssTotal, ssResidual float64
	for i, y := range vals {
		predicted := slope*days[i] + intercept
		ssTotal += (y - meanY) * (y - meanY)
		ssResidual += (y - predicted) * (y - predicted)
	}

	if ssTotal == 0 {
		return slope, 0
	}
	return slope, 1 - ssResidual/ssTotal
}

func pearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denominator
}
