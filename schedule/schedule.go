// Package schedule computes cron occurrences and compliance windows.
//
// Two dialects are supported: standard 5-field cron expressions (minute
// granularity, delegated to robfig/cron), and a 6-field seconds extension
// whose first token is "*/N" with N below 60. The seconds dialect has no
// absolute timeline: occurrences are anchored on the last observed start
// (or a fixed anchor such as the job's creation time while it has never
// run), so its math lives in IntervalOccurrence rather than Prev/Next.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// maxLookback bounds the backward search in Prev. robfig caps its own
// forward search at roughly five years, so anything sparser is unreachable
// either way.
const maxLookback = 5 * 366 * 24 * time.Hour

// SecondsInterval reports whether expr is a seconds-dialect schedule and
// returns its interval. The dialect is six fields with a "*/N" first token,
// 1 <= N < 60, e.g. "*/30 * * * * *".
func SecondsInterval(expr string) (time.Duration, bool) {
	fields := strings.Fields(expr)
	if len(fields) != 6 || !strings.HasPrefix(fields[0], "*/") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(fields[0], "*/"))
	if err != nil || n < 1 || n >= 60 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// Validate rejects expressions neither dialect can parse. Called at
// configure time; evaluation assumes schedules reaching it are valid.
func Validate(expr string) error {
	if _, ok := SecondsInterval(expr); ok {
		return nil
	}
	if len(strings.Fields(expr)) == 6 {
		return fmt.Errorf("invalid seconds schedule %q: first field must be */N with N between 1 and 59", expr)
	}
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Next returns the nearest occurrence of a standard cron expression
// strictly after t, in UTC.
func Next(expr string, t time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	n := sched.Next(t.UTC())
	if n.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q has no occurrence after %s", expr, t.UTC().Format(time.RFC3339))
	}
	return n.UTC(), nil
}

// Prev returns the most recent occurrence of a standard cron expression at
// or before t, in UTC. The cron library only walks forward, so the start of
// the walk is found by doubling a lookback until an occurrence lands in
// (start, t].
func Prev(expr string, t time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	t = t.UTC()

	step := time.Minute
	var first time.Time
	for {
		first = sched.Next(t.Add(-step - time.Second))
		if first.IsZero() {
			return time.Time{}, fmt.Errorf("schedule %q has no reachable occurrence", expr)
		}
		if !first.After(t) {
			break
		}
		step *= 2
		if step > maxLookback {
			return time.Time{}, fmt.Errorf("schedule %q has no occurrence within %s before %s", expr, maxLookback, t.Format(time.RFC3339))
		}
	}

	prev := first
	for {
		n := sched.Next(prev)
		if n.IsZero() || n.After(t) {
			return prev.UTC(), nil
		}
		prev = n
	}
}

// IntervalOccurrence computes the previous occurrence for the seconds
// dialect: the interval added to the later of the last observed start and
// the anchor. Jobs that have never run fall back to the anchor, which is
// fixed, so repeated sweeps resolve the same occurrence.
func IntervalOccurrence(interval time.Duration, lastStart *time.Time, anchor time.Time) time.Time {
	base := anchor.UTC()
	if lastStart != nil && lastStart.After(base) {
		base = lastStart.UTC()
	}
	return base.Add(interval)
}

// Window returns the compliance window [occurrence-tolerance, occurrence+tolerance].
func Window(occurrence time.Time, tolerance time.Duration) (time.Time, time.Time) {
	return occurrence.Add(-tolerance), occurrence.Add(tolerance)
}

// InWindow reports whether t falls inside the compliance window around occurrence.
func InWindow(occurrence time.Time, tolerance time.Duration, t time.Time) bool {
	lo, hi := Window(occurrence, tolerance)
	return !t.Before(lo) && !t.After(hi)
}
