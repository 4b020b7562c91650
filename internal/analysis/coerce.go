package analysis

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

const (
	// DefaultCeiling is the largest count accepted by the strict cleaner
	DefaultCeiling = 1_000_000
	// MaxCeiling is the upper bound a caller may configure
	MaxCeiling = 10_000_000
)

// Number is a coerced numeric cell. Valid is false for anything that could
// not be trusted as a value.
type Number struct {
	Value float64
	Valid bool
}

// Some wraps a known value
func Some(v float64) Number { return Number{Value: v, Valid: true} }

// Missing is the explicit missing marker
var Missing = Number{}

// Or returns the value, or def when missing
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

var dirtyTokens = map[string]struct{}{
	"":      {},
	"nan":   {},
	"na":    {},
	"none":  {},
	"n/a":   {},
	"?":     {},
	"??":    {},
	"-":     {},
	"###":   {},
	"ok":    {},
	"fail":  {},
	"error": {},
	"check": {},
}

var (
	numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+`)
	numberCleaner = strings.NewReplacer(",", "", `"`, "", "'", "")
)

// explicit layouts in priority order; day and month accept one or two digits
var dateLayouts = []string{
	"2/1/2006",   // %d/%m/%Y
	"1/2/2006",   // %m/%d/%Y
	"2006/1/2",   // %Y/%m/%d
	"2006-1-2",   // %Y-%m-%d
	"2-Jan-2006", // %d-%b-%Y
	"Jan-2-2006", // %b-%d-%Y
	"2-1-06",     // %d-%m-%y
	"06-1-2",     // %y-%m-%d
}

// DateOrder selects the free-form fallback tried after the explicit layouts
type DateOrder int

const (
	DayFirst DateOrder = iota
	MonthFirst
)

// IsDirtyToken reports whether s is one of the placeholder tokens that
// spreadsheets use for "no value".
func IsDirtyToken(s string) bool {
	_, ok := dirtyTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// IsMissingCell reports whether a raw cell carries no usable value
func IsMissingCell(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return IsDirtyToken(x)
	case []byte:
		return IsDirtyToken(string(x))
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// Coercer scrubs dirty cells into typed values. It never fails; anything it
// cannot read becomes Missing.
type Coercer struct {
	ceiling float64
}

// NewCoercer creates a coercer with the given ceiling. Non-positive values
// select DefaultCeiling and anything above MaxCeiling is capped.
func NewCoercer(ceiling float64) *Coercer {
	if ceiling <= 0 || math.IsNaN(ceiling) {
		ceiling = DefaultCeiling
	}
	if ceiling > MaxCeiling {
		ceiling = MaxCeiling
	}
	return &Coercer{ceiling: ceiling}
}

// Ceiling returns the configured upper bound
func (c *Coercer) Ceiling() float64 { return c.ceiling }

// Number coerces a cell into a value within [0, ceiling]
func (c *Coercer) Number(v interface{}) Number {
	switch x := v.(type) {
	case nil:
		return Missing
	case string:
		return c.parseText(x)
	case []byte:
		return c.parseText(string(x))
	case float64:
		return c.bound(x)
	case float32:
		return c.bound(float64(x))
	case int:
		return c.bound(float64(x))
	case int8:
		return c.bound(float64(x))
	case int16:
		return c.bound(float64(x))
	case int32:
		return c.bound(float64(x))
	case int64:
		return c.bound(float64(x))
	case uint:
		return c.bound(float64(x))
	case uint8:
		return c.bound(float64(x))
	case uint16:
		return c.bound(float64(x))
	case uint32:
		return c.bound(float64(x))
	case uint64:
		return c.bound(float64(x))
	case bool:
		if x {
			return Some(1)
		}
		return Some(0)
	case time.Time:
		return Missing
	default:
		return c.parseText(fmt.Sprint(x))
	}
}

func (c *Coercer) parseText(s string) Number {
	if IsDirtyToken(s) {
		return Missing
	}
	match := numberPattern.FindString(numberCleaner.Replace(s))
	if match == "" {
		return Missing
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return Missing
	}
	return c.bound(f)
}

// bound treats negatives and values above the ceiling as corrupted input
func (c *Coercer) bound(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > c.ceiling {
		return Missing
	}
	return Some(f)
}

// Date coerces a cell into a calendar day using the explicit layouts first
// and then each requested free-form order. The result is midnight UTC.
func (c *Coercer) Date(v interface{}, fallbacks ...DateOrder) (time.Time, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return dayOf(x), true
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}

	s = strings.TrimSpace(s)
	if IsDirtyToken(s) {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dayOf(t), true
		}
	}

	for _, order := range fallbacks {
		if t, ok := parseFreeForm(s, order == MonthFirst); ok {
			return dayOf(t), true
		}
	}
	return time.Time{}, false
}

// Free-form results outside this range are numeric noise, not dates
const (
	minFreeFormYear = 1900
	maxFreeFormYear = 2100
)

func parseFreeForm(s string, monthFirst bool) (t time.Time, ok bool) {
	if !hasDateShape(s) {
		return time.Time{}, false
	}
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	parsed, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(monthFirst))
	if err != nil {
		return time.Time{}, false
	}
	if y := parsed.Year(); y < minFreeFormYear || y > maxFreeFormYear {
		return time.Time{}, false
	}
	return parsed, true
}

// hasDateShape requires a slash or dash, two dots, or a letter (month
// names, weekday names, RFC timestamps).
func hasDateShape(s string) bool {
	if strings.ContainsAny(s, "/-") || strings.Count(s, ".") >= 2 {
		return true
	}
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fillDates propagates the nearest valid preceding date forward, then the
// nearest following date backward. If no row has a date, fallback is used.
// It returns how many cells were filled.
func fillDates(dates []time.Time, valid []bool, fallback time.Time) int {
	filled := 0
	var last time.Time
	seen := false
	for i := range dates {
		if valid[i] {
			last, seen = dates[i], true
			continue
		}
		if seen {
			dates[i] = last
			valid[i] = true
			filled++
		}
	}

	var next time.Time
	seen = false
	for i := len(dates) - 1; i >= 0; i-- {
		if valid[i] {
			next, seen = dates[i], true
			continue
		}
		if seen {
			dates[i] = next
			valid[i] = true
			filled++
		}
	}

	for i := range dates {
		if !valid[i] {
			dates[i] = fallback
			valid[i] = true
			filled++
		}
	}
	return filled
}
