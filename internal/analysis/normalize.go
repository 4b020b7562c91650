package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Pland4r/project-ai/internal/table"
)

// columnDefault produces the value of a required column that the input
// table does not have. pos is the zero-based row position.
type columnDefault struct {
	Column string
	Fill   func(pos int, today time.Time) interface{}
}

func constant(v interface{}) func(int, time.Time) interface{} {
	return func(int, time.Time) interface{} { return v }
}

var userColumnDefaults = []columnDefault{
	{Column: ColUserID, Fill: func(pos int, _ time.Time) interface{} { return pos + 1 }},
	{Column: ColStatus, Fill: constant(string(StatusActive))},
	{Column: ColConverted, Fill: constant(0)},
	{Column: ColSessionDuration, Fill: constant(0.0)},
	{Column: ColSessionsCount, Fill: constant(0)},
	{Column: ColSignupDate, Fill: func(_ int, today time.Time) interface{} { return today }},
}

var statusAliases = map[string]Status{
	"active":    StatusActive,
	"activated": StatusActive,
	"current":   StatusActive,
	"churned":   StatusChurned,
	"cancelled": StatusChurned,
	"canceled":  StatusChurned,
	"lost":      StatusChurned,
}

// CanonicalStatus maps a raw status cell onto active, churned or inactive
func CanonicalStatus(v interface{}) Status {
	s, ok := v.(string)
	if !ok {
		return StatusInactive
	}
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusInactive
}

// Normalizer decides the schema variant of a raw table and produces a
// typed dataset with every required field filled.
type Normalizer struct {
	coercer *Coercer
	now     func() time.Time
}

// NewNormalizer creates a normalizer. now supplies "today" for default dates.
func NewNormalizer(c *Coercer, now func() time.Time) *Normalizer {
	if c == nil {
		c = NewCoercer(DefaultCeiling)
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{coercer: c, now: now}
}

// Normalize never fails: malformed cells and missing columns are repaired
// and recorded in the report.
func (n *Normalizer) Normalize(raw *table.RawTable) (Dataset, CleaningReport) {
	resolved, res := ResolveColumns(raw)

	report := CleaningReport{
		RowsIn:         resolved.Len(),
		DroppedColumns: res.Dropped,
	}
	if len(res.Renamed) > 0 {
		report.RenamedColumns = res.Renamed
	}

	var ds Dataset
	switch DetectVariant(resolved) {
	case VariantPerPeriod:
		ds = n.normalizePeriods(resolved, &report)
	default:
		ds = n.normalizeUsers(resolved, &report)
	}
	report.RowsOut = ds.Len()
	return ds, report
}

func (n *Normalizer) normalizeUsers(t *table.RawTable, report *CleaningReport) *UserDataset {
	today := dayOf(n.now())

	fills := map[string]func(int, time.Time) interface{}{}
	for _, d := range userColumnDefaults {
		if !t.HasColumn(d.Column) {
			fills[d.Column] = d.Fill
			report.DefaultedColumns = append(report.DefaultedColumns, d.Column)
		}
	}
	cell := func(pos int, col string) interface{} {
		if fill, ok := fills[col]; ok {
			return fill(pos, today)
		}
		return t.Rows[pos][col]
	}

	hasRevenue := t.HasColumn(ColRevenue)
	records := make([]UserRecord, len(t.Rows))
	dates := make([]time.Time, len(t.Rows))
	valid := make([]bool, len(t.Rows))

	for i := range t.Rows {
		rec := UserRecord{}

		if id, ok := userIDString(cell(i, ColUserID)); ok {
			rec.UserID = id
		} else {
			rec.UserID = strconv.Itoa(i + 1)
			rec.SyntheticID = true
			report.missing(ColUserID)
		}

		rec.Status = CanonicalStatus(cell(i, ColStatus))

		conv := n.flag(cell(i, ColConverted))
		if !conv.Valid {
			report.missing(ColConverted)
		}
		rec.Converted = clamp(conv.Or(0), 0, 1)

		dur := n.coercer.Number(cell(i, ColSessionDuration))
		if !dur.Valid {
			report.missing(ColSessionDuration)
		}
		rec.SessionDuration = math.Max(dur.Or(0), 0)

		cnt := n.coercer.Number(cell(i, ColSessionsCount))
		if !cnt.Valid {
			report.missing(ColSessionsCount)
		}
		rec.SessionsCount = int(math.Max(math.RoundToEven(cnt.Or(0)), 0))

		if hasRevenue {
			rev := n.coercer.Number(t.Rows[i][ColRevenue])
			if !rev.Valid {
				report.missing(ColRevenue)
			}
			rec.Revenue = rev
		}

		dates[i], valid[i] = n.coercer.Date(cell(i, ColSignupDate), MonthFirst)
		if !valid[i] {
			report.missing(ColSignupDate)
		}
		records[i] = rec
	}

	report.DatesFilled += fillDates(dates, valid, today)
	for i := range records {
		records[i].SignupDate = dates[i]
	}

	deduped := make([]UserRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		key := rec.identity() + "|" + rec.SignupDate.Format(dayLayout)
		if seen[key] {
			report.DuplicatesRemoved++
			continue
		}
		seen[key] = true
		deduped = append(deduped, rec)
	}

	return &UserDataset{Records: deduped, HasRevenue: hasRevenue}
}

func (n *Normalizer) normalizePeriods(t *table.RawTable, report *CleaningReport) *PeriodDataset {
	today := dayOf(n.now())

	number := func(row table.Row, col string) Number {
		if !t.HasColumn(col) {
			return Missing
		}
		v := n.coercer.Number(row[col])
		if !v.Valid {
			report.missing(col)
		}
		return v
	}

	records := make([]PeriodRecord, len(t.Rows))
	dates := make([]time.Time, len(t.Rows))
	valid := make([]bool, len(t.Rows))

	for i, row := range t.Rows {
		dates[i], valid[i] = n.coercer.Date(row[ColDate], DayFirst, MonthFirst)
		if !valid[i] {
			report.missing(ColDate)
		}
		records[i] = PeriodRecord{
			Total:   number(row, ColTotalUsers).Or(0),
			Active:  number(row, ColActiveUsers),
			Churned: number(row, ColChurnedUsers),
			New:     number(row, ColNewUsers),
			Revenue: number(row, ColRevenue),
		}
	}

	report.DatesFilled += fillDates(dates, valid, today)
	for i := range records {
		records[i].Date = dates[i]
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Date.Before(records[b].Date)
	})

	return &PeriodDataset{Records: records, HasRevenue: t.HasColumn(ColRevenue)}
}

// flag reads boolean-ish cells ("yes", "true") before numeric coercion
func (n *Normalizer) flag(v interface{}) Number {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "t":
			return Some(1)
		case "false", "no", "n", "f":
			return Some(0)
		}
	}
	return n.coercer.Number(v)
}

func userIDString(v interface{}) (string, bool) {
	if IsMissingCell(v) {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case []byte:
		return strings.TrimSpace(string(x)), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return formatFloat(x), true
	case float32:
		return userIDString(float64(x))
	default:
		return fmt.Sprint(x), true
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
