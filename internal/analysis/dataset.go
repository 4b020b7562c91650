package analysis

import (
	"strconv"
	"time"

	"github.com/Pland4r/project-ai/internal/table"
)

// Variant is the schema shape of an input table
type Variant string

const (
	VariantPerUser   Variant = "per_user"
	VariantPerPeriod Variant = "per_period_aggregate"
)

// DetectVariant applies the schema rule: a table without user_id that has
// both date and total_users is a per-period aggregate. Everything else,
// including tables with none of the expected columns, is per-user.
func DetectVariant(t *table.RawTable) Variant {
	if t == nil {
		return VariantPerUser
	}
	if !t.HasColumn(ColUserID) && t.HasColumn(ColDate) && t.HasColumn(ColTotalUsers) {
		return VariantPerPeriod
	}
	return VariantPerUser
}

// Status is the canonical user lifecycle state
type Status string

const (
	StatusActive   Status = "active"
	StatusChurned  Status = "churned"
	StatusInactive Status = "inactive"
)

// Dataset is a normalized table. The concrete type (*UserDataset or
// *PeriodDataset) is the schema variant.
type Dataset interface {
	Variant() Variant
	Len() int
	isDataset()
}

// Tabular is implemented by cleaned datasets that can be exported
type Tabular interface {
	Export() ([]string, [][]string)
}

// UserRecord is one cleaned per-user row
type UserRecord struct {
	UserID string
	// SyntheticID is set when UserID was made up from the row position
	// because the cell was blank.
	SyntheticID     bool
	Status          Status
	Converted       float64
	SessionDuration float64
	SessionsCount   int
	SignupDate      time.Time
	Revenue         Number
}

// identity keys a record for dedupe and distinct counts. A synthesized ID
// never equals a real one with the same text.
func (r UserRecord) identity() string {
	if r.SyntheticID {
		return "#row:" + r.UserID
	}
	return r.UserID
}

// UserDataset holds per-user rows in original order
type UserDataset struct {
	Records    []UserRecord
	HasRevenue bool
}

func (d *UserDataset) Variant() Variant { return VariantPerUser }
func (d *UserDataset) Len() int         { return len(d.Records) }
func (d *UserDataset) isDataset()       {}

// PeriodRecord is one per-period row before reconciliation
type PeriodRecord struct {
	Date    time.Time
	Total   float64
	Active  Number
	Churned Number
	New     Number
	Revenue Number
}

// PeriodDataset holds per-period rows sorted by date
type PeriodDataset struct {
	Records    []PeriodRecord
	HasRevenue bool
}

func (d *PeriodDataset) Variant() Variant { return VariantPerPeriod }
func (d *PeriodDataset) Len() int         { return len(d.Records) }
func (d *PeriodDataset) isDataset()       {}

// CleaningReport counts what the cleaner had to repair. A report full of
// defaults and fills means the metrics are plausible but weakly grounded.
type CleaningReport struct {
	RowsIn            int               `json:"rows_in"`
	RowsOut           int               `json:"rows_out"`
	DroppedColumns    []string          `json:"dropped_columns,omitempty"`
	RenamedColumns    map[string]string `json:"renamed_columns,omitempty"`
	DefaultedColumns  []string          `json:"defaulted_columns,omitempty"`
	MissingCells      map[string]int    `json:"missing_cells,omitempty"`
	DatesFilled       int               `json:"dates_filled"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	RowsReconciled    int               `json:"rows_reconciled"`
	NewUsersReplaced  int               `json:"new_users_replaced"`
}

func (r *CleaningReport) missing(col string) {
	if r.MissingCells == nil {
		r.MissingCells = map[string]int{}
	}
	r.MissingCells[col]++
}

const dayLayout = "2006-01-02"

// Export renders the dataset with canonical headers
func (d *UserDataset) Export() ([]string, [][]string) {
	cols := []string{ColUserID, ColStatus, ColConverted, ColSessionDuration, ColSessionsCount, ColSignupDate}
	if d.HasRevenue {
		cols = append(cols, ColRevenue)
	}
	out := make([][]string, 0, len(d.Records))
	for _, r := range d.Records {
		rec := []string{
			r.UserID,
			string(r.Status),
			formatFloat(r.Converted),
			formatFloat(r.SessionDuration),
			strconv.Itoa(r.SessionsCount),
			r.SignupDate.Format(dayLayout),
		}
		if d.HasRevenue {
			rec = append(rec, formatNumber(r.Revenue))
		}
		out = append(out, rec)
	}
	return cols, out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatNumber(n Number) string {
	if !n.Valid {
		return ""
	}
	return formatFloat(n.Value)
}
