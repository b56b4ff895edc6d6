// Package schedule computes the next occurrence of a recurring due date.
//
// A bill's recurrence is persisted as a (frequency kind, schedule mode,
// config) triple; Parse turns that triple into a Rule exactly once, at the
// storage boundary. Parse and every Rule are total: corrupt or unknown
// persisted data degrades to a +30-day rule so a schedule can never stall.
package schedule

import (
	"encoding/json"
	"sort"
	"time"
)

// Frequency kinds as persisted on a bill.
const (
	KindWeekly    = "weekly"
	KindBiweekly  = "biweekly"
	KindMonthly   = "monthly"
	KindQuarterly = "quarterly"
	KindYearly    = "yearly"
	KindCustom    = "custom"
)

// Schedule modes as persisted on a bill.
const (
	ModeSimple         = "simple"
	ModeSpecificDates  = "specific-dates"
	ModeMultipleWeekly = "multiple-weekly"
)

// Kinds lists every frequency kind accepted at the validation boundary.
var Kinds = []string{KindWeekly, KindBiweekly, KindMonthly, KindQuarterly, KindYearly, KindCustom}

// Rule yields the next due date after a given date. Implementations never
// fail and always return a date strictly after the input.
type Rule interface {
	Next(from time.Time) time.Time
	isRule()
}

// Weekly advances by 7 days.
type Weekly struct{}

// Biweekly advances by 14 days.
type Biweekly struct{}

// Monthly advances to the same day next month, clamped to the month's length
// (Jan 31 -> Feb 28/29).
type Monthly struct{}

// Quarterly advances by three months with the same clamping as Monthly.
type Quarterly struct{}

// Yearly advances to the same month and day next year; Feb 29 falls back to
// Feb 28 in non-leap years.
type Yearly struct{}

// MonthlyOnDays advances to the next configured day of month. Days is sorted
// ascending; days beyond the target month's length clamp to its last day.
type MonthlyOnDays struct {
	Days []int
}

// WeeklyOnWeekdays advances to the next configured weekday, 0=Monday through
// 6=Sunday, wrapping to the following week when none remain. An empty set
// behaves as Weekly.
type WeeklyOnWeekdays struct {
	Weekdays []int
}

// Every30Days is the defensive fallback for unrecognized kind/mode/config
// combinations.
type Every30Days struct{}

func (Weekly) isRule()           {}
func (Biweekly) isRule()         {}
func (Monthly) isRule()          {}
func (Quarterly) isRule()        {}
func (Yearly) isRule()           {}
func (MonthlyOnDays) isRule()    {}
func (WeeklyOnWeekdays) isRule() {}
func (Every30Days) isRule()      {}

func (Weekly) Next(from time.Time) time.Time {
	return addDays(from, 7)
}

func (Biweekly) Next(from time.Time) time.Time {
	return addDays(from, 14)
}

func (Monthly) Next(from time.Time) time.Time {
	return addMonthsClamped(from, 1)
}

func (Quarterly) Next(from time.Time) time.Time {
	return addMonthsClamped(from, 3)
}

func (Yearly) Next(from time.Time) time.Time {
	y, m, d := from.Date()
	if m == time.February && d == 29 && !isLeap(y+1) {
		d = 28
	}

	return date(y+1, m, d)
}

func (r MonthlyOnDays) Next(from time.Time) time.Time {
	if len(r.Days) == 0 {
		return Monthly{}.Next(from)
	}

	y, m, d := from.Date()

	last := daysIn(y, m)
	for _, day := range r.Days {
		candidate := min(day, last)
		if candidate > d {
			return date(y, m, candidate)
		}
	}

	// Nothing left this month: smallest configured day next month.
	ny, nm := nextMonth(y, m)

	return date(ny, nm, min(r.Days[0], daysIn(ny, nm)))
}

func (r WeeklyOnWeekdays) Next(from time.Time) time.Time {
	if len(r.Weekdays) == 0 {
		return Weekly{}.Next(from)
	}

	cur := mondayIndex(from.Weekday())
	for _, wd := range r.Weekdays {
		if wd > cur {
			return addDays(from, wd-cur)
		}
	}

	// Wrap to the smallest configured weekday next week.
	return addDays(from, 7-cur+r.Weekdays[0])
}

func (Every30Days) Next(from time.Time) time.Time {
	return addDays(from, 30)
}

// specificDatesConfig is the persisted payload for specific-dates mode.
type specificDatesConfig struct {
	Dates []int `json:"dates"`
}

// multipleWeeklyConfig is the persisted payload for multiple-weekly mode.
type multipleWeeklyConfig struct {
	Days []int `json:"days"`
}

// Parse resolves a persisted (kind, mode, config) triple into a Rule.
// It never fails: malformed config and unknown combinations yield Every30Days.
func Parse(kind, mode string, config []byte) Rule {
	switch {
	case kind == KindWeekly:
		return Weekly{}
	case kind == KindBiweekly || kind == "bi-weekly":
		return Biweekly{}
	case kind == KindMonthly && mode == ModeSpecificDates:
		var cfg specificDatesConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return Every30Days{}
		}

		days := normalize(cfg.Dates, 1, 31)
		if len(days) == 0 {
			return Monthly{}
		}

		return MonthlyOnDays{Days: days}
	case kind == KindMonthly:
		return Monthly{}
	case kind == KindQuarterly:
		return Quarterly{}
	case kind == KindYearly:
		return Yearly{}
	case kind == KindCustom && mode == ModeMultipleWeekly:
		var cfg multipleWeeklyConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return Every30Days{}
		}

		return WeeklyOnWeekdays{Weekdays: normalize(cfg.Days, 0, 6)}
	default:
		return Every30Days{}
	}
}

// normalize sorts, dedupes, and drops values outside [lo, hi].
func normalize(vals []int, lo, hi int) []int {
	out := make([]int, 0, len(vals))

	seen := make(map[int]bool, len(vals))
	for _, v := range vals {
		if v < lo || v > hi || seen[v] {
			continue
		}

		seen[v] = true

		out = append(out, v)
	}

	sort.Ints(out)

	return out
}

// mondayIndex maps time.Weekday (Sunday=0) to the 0=Monday..6=Sunday indexing
// used by multiple-weekly configs.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return date(y, m, d+n)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()

	// Normalize via the first of the target month so a short month never
	// spills into the one after it.
	first := date(y, m+time.Month(months), 1)

	return date(first.Year(), first.Month(), min(d, daysIn(first.Year(), first.Month())))
}

// daysIn returns the number of days in the given month; day 0 of the next
// month normalizes to its last day.
func daysIn(y int, m time.Month) int {
	return date(y, m+1, 0).Day()
}

func nextMonth(y int, m time.Month) (int, time.Month) {
	t := date(y, m+1, 1)
	return t.Year(), t.Month()
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
