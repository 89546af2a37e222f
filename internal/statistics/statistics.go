// Package statistics keeps the daily activity log and summarizes it.
package statistics

import (
	"sort"
	"time"
)

// PeriodStatistics holds the totals of one month.
type PeriodStatistics struct {
	Period      string `json:"period" yaml:"period"` // "2025-03"
	AddCount    int    `json:"add_count" yaml:"add_count"`
	ReviewCount int    `json:"review_count" yaml:"review_count"`
	ActiveDays  int    `json:"active_days" yaml:"active_days"`
}

// AggregateStatistics holds totals across the selected periods.
type AggregateStatistics struct {
	AddCount    int `json:"add_count" yaml:"add_count"`
	ReviewCount int `json:"review_count" yaml:"review_count"`
	ActiveDays  int `json:"active_days" yaml:"active_days"`
	// CurrentStreak counts consecutive active days ending today, or yesterday when today has no activity yet.
	CurrentStreak int `json:"current_streak" yaml:"current_streak"`
}

// StatisticsResult holds both per-period and aggregate statistics
type StatisticsResult struct {
	Periods   []PeriodStatistics  `json:"periods" yaml:"periods"`
	Aggregate AggregateStatistics `json:"aggregate" yaml:"aggregate"`
}

// Summarize groups entries by month. year and month filter the periods (0 means no filter).
// The streak is computed over all entries regardless of the filter.
func Summarize(entries []ActivityEntry, year, month int, today string) StatisticsResult {
	periods := make(map[string]*PeriodStatistics)
	var aggregate AggregateStatistics
	active := make(map[string]struct{})

	for _, entry := range entries {
		day, err := time.Parse(DateLayout, entry.Date)
		if err != nil {
			continue
		}
		if entry.AddCount+entry.ReviewCount > 0 {
			active[entry.Date] = struct{}{}
		}
		if !matchesFilter(day.Year(), int(day.Month()), year, month) {
			continue
		}

		key := day.Format("2006-01")
		period, ok := periods[key]
		if !ok {
			period = &PeriodStatistics{Period: key}
			periods[key] = period
		}
		period.AddCount += entry.AddCount
		period.ReviewCount += entry.ReviewCount
		aggregate.AddCount += entry.AddCount
		aggregate.ReviewCount += entry.ReviewCount
		if entry.AddCount+entry.ReviewCount > 0 {
			period.ActiveDays++
			aggregate.ActiveDays++
		}
	}
	aggregate.CurrentStreak = currentStreak(active, today)

	result := StatisticsResult{
		Periods:   make([]PeriodStatistics, 0, len(periods)),
		Aggregate: aggregate,
	}
	for _, period := range periods {
		result.Periods = append(result.Periods, *period)
	}
	// newest first
	sort.Slice(result.Periods, func(i, j int) bool {
		return result.Periods[i].Period > result.Periods[j].Period
	})
	return result
}

func matchesFilter(entryYear, entryMonth, filterYear, filterMonth int) bool {
	if filterYear != 0 && entryYear != filterYear {
		return false
	}
	if filterMonth != 0 && entryMonth != filterMonth {
		return false
	}
	return true
}

func currentStreak(active map[string]struct{}, today string) int {
	day, err := time.Parse(DateLayout, today)
	if err != nil {
		return 0
	}
	if _, ok := active[today]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := active[day.Format(DateLayout)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}
