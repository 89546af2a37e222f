package scheduler

import (
	"sort"
	"time"
)

// Schedulable is anything DueQueue can order.
type Schedulable interface {
	SchedulingKey() string
	NextReview() (time.Time, bool)
}

type DueOptions struct {
	// IncludeUnscheduled appends entities without a next review time after the due ones.
	IncludeUnscheduled bool
	// Limit caps the result; zero means no limit.
	Limit int
}

// DueQueue returns the entities due at now, earliest first, ties broken by key.
func DueQueue[T Schedulable](entities []T, now time.Time, opts DueOptions) []T {
	due := make([]T, 0, len(entities))
	var unscheduled []T
	for _, e := range entities {
		at, ok := e.NextReview()
		if !ok {
			if opts.IncludeUnscheduled {
				unscheduled = append(unscheduled, e)
			}
			continue
		}
		if !at.After(now) {
			due = append(due, e)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		ai, _ := due[i].NextReview()
		aj, _ := due[j].NextReview()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return due[i].SchedulingKey() < due[j].SchedulingKey()
	})
	sort.SliceStable(unscheduled, func(i, j int) bool {
		return unscheduled[i].SchedulingKey() < unscheduled[j].SchedulingKey()
	})

	result := append(due, unscheduled...)
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}
