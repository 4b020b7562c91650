package analysis

import (
	"time"

	"go.uber.org/zap"

	"github.com/Pland4r/project-ai/internal/table"
)

// Warning messages attached to results built from unusable input
const (
	WarnEmptyTable      = "input table has no data rows"
	WarnAllDefaults     = "no recognised user columns; metrics are built entirely from defaults"
	WarnAllTotalsZero   = "every total_users value is zero or missing"
	WarnRowsReconciled  = "active/churned counts were derived or corrected to satisfy total = active + churned"
	WarnNewUsersReplace = "reported new_users spikes were replaced by the growth in total_users"
)

// Options configures a pipeline run
type Options struct {
	// Ceiling is the largest trusted count; zero selects DefaultCeiling.
	Ceiling float64
	// Now supplies today's date for defaults. Defaults to time.Now.
	Now func() time.Time
}

// Result is everything one pipeline run produces
type Result struct {
	Variant       Variant
	Snapshot      Snapshot
	Visualization Visualization
	Report        CleaningReport
	Warnings      []string

	// Cleaned is the normalized (and, for aggregates, reconciled) dataset
	Cleaned Tabular
	// Daily is the per-day series of an aggregate table; nil for per-user input
	Daily []DailyPoint
}

// Pipeline runs coercion, normalization, reconciliation, aggregation and
// projection over a raw table. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewPipeline creates a pipeline. A nil logger disables logging.
func NewPipeline(opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		normalizer: NewNormalizer(NewCoercer(opts.Ceiling), opts.Now),
		logger:     logger,
	}
}

// Ceiling returns the effective ceiling
func (p *Pipeline) Ceiling() float64 { return p.normalizer.coercer.Ceiling() }

// Run never fails; anomalies are repaired and reported
func (p *Pipeline) Run(raw *table.RawTable) *Result {
	ds, report := p.normalizer.Normalize(raw)
	res := &Result{Variant: ds.Variant()}

	var daily []DailyPoint
	switch d := ds.(type) {
	case *UserDataset:
		res.Snapshot = AggregateUsers(d)
		res.Cleaned = d
		if len(report.DefaultedColumns) == len(userColumnDefaults) {
			res.Warnings = append(res.Warnings, WarnAllDefaults)
		}
	case *PeriodDataset:
		series := Reconcile(d)
		report.RowsReconciled = series.Reconciled
		report.NewUsersReplaced = series.NewUsersReplaced
		res.Snapshot, daily = AggregatePeriods(series)
		res.Cleaned = series
		if d.Len() > 0 && allTotalsZero(series) {
			res.Warnings = append(res.Warnings, WarnAllTotalsZero)
		}
		if series.Reconciled > 0 {
			res.Warnings = append(res.Warnings, WarnRowsReconciled)
		}
		if series.NewUsersReplaced > 0 {
			res.Warnings = append(res.Warnings, WarnNewUsersReplace)
		}
	}
	if ds.Len() == 0 {
		res.Warnings = append([]string{WarnEmptyTable}, res.Warnings...)
	}

	res.Daily = daily
	res.Visualization = Project(res.Snapshot, daily)
	res.Report = report

	p.logger.Debug("pipeline finished",
		zap.String("variant", string(res.Variant)),
		zap.Int("rows_in", report.RowsIn),
		zap.Int("rows_out", report.RowsOut),
		zap.Strings("defaulted", report.DefaultedColumns),
		zap.Strings("dropped", report.DroppedColumns),
		zap.Int("dates_filled", report.DatesFilled),
		zap.Int("duplicates_removed", report.DuplicatesRemoved),
		zap.Int("rows_reconciled", report.RowsReconciled),
		zap.Int("new_users_replaced", report.NewUsersReplaced),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

func allTotalsZero(s *PeriodSeries) bool {
	for _, r := range s.Rows {
		if r.Total > 0 {
			return false
		}
	}
	return true
}
