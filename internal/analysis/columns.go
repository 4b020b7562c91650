package analysis

import (
	"fmt"
	"strings"

	"github.com/Pland4r/project-ai/internal/table"
)

// Canonical column names
const (
	ColUserID          = "user_id"
	ColStatus          = "status"
	ColConverted       = "converted"
	ColSessionDuration = "session_duration"
	ColSessionsCount   = "sessions_count"
	ColSignupDate      = "signup_date"
	ColRevenue         = "revenue"

	ColDate         = "date"
	ColTotalUsers   = "total_users"
	ColActiveUsers  = "active_users"
	ColChurnedUsers = "churned_users"
	ColNewUsers     = "new_users"
)

var canonicalColumns = []string{
	ColUserID, ColStatus, ColConverted, ColSessionDuration, ColSessionsCount, ColSignupDate, ColRevenue,
	ColDate, ColTotalUsers, ColActiveUsers, ColChurnedUsers, ColNewUsers,
}

// export debris that never carries data
var noiseColumns = map[string]bool{
	"debug_info": true,
	"extra_col":  true,
	"??note":     true,
}

// squash lowercases a header and drops separators so that "Total Users",
// "total-users" and "TotalUsers" compare equal.
func squash(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, " ", "")
	return name
}

var canonicalBySquash = func() map[string]string {
	m := make(map[string]string, len(canonicalColumns))
	for _, c := range canonicalColumns {
		m[squash(c)] = c
	}
	return m
}()

// ColumnResolution records what ResolveColumns did to the header
type ColumnResolution struct {
	Dropped []string
	Renamed map[string]string
}

// ResolveColumns returns a copy of raw whose headers use canonical names.
// Noise columns are dropped. When two headers map to the same canonical
// name the first one wins and the other keeps its trimmed raw name.
func ResolveColumns(raw *table.RawTable) (*table.RawTable, ColumnResolution) {
	res := ColumnResolution{Renamed: map[string]string{}}
	if raw == nil {
		return table.New(), res
	}

	claimed := map[string]bool{}
	used := map[string]bool{}
	mapping := make(map[string]string, len(raw.Columns))
	var columns []string

	for _, col := range raw.Columns {
		trimmed := strings.TrimSpace(col)
		if noiseColumns[strings.ToLower(trimmed)] {
			res.Dropped = append(res.Dropped, col)
			continue
		}

		name := trimmed
		if canonical, ok := canonicalBySquash[squash(trimmed)]; ok && !claimed[canonical] {
			name = canonical
			claimed[canonical] = true
		}
		for i := 1; used[name]; i++ {
			name = fmt.Sprintf("%s.%d", trimmed, i)
		}
		used[name] = true
		if name != col {
			res.Renamed[col] = name
		}
		mapping[col] = name
		columns = append(columns, name)
	}

	out := table.New(columns...)
	out.Source = raw.Source
	out.Rows = make([]table.Row, len(raw.Rows))
	for i, row := range raw.Rows {
		r := make(table.Row, len(columns))
		for from, to := range mapping {
			r[to] = row[from]
		}
		out.Rows[i] = r
	}
	return out, res
}
