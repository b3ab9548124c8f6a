package timeframe

import (
	"fmt"
	"strings"
	"time"
)

// Period is a named display window over the dashboard report.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Periods lists the accepted period names in display order.
var Periods = []Period{PeriodAll, PeriodToday, PeriodWeek, PeriodMonth}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TimeFrame is a closed interval. A zero From means unbounded.
type TimeFrame struct {
	From   time.Time
	To     time.Time
	Period Period
}

// ParsePeriod validates a period name. An empty name means PeriodAll.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PeriodAll, nil
	}
	for _, known := range Periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// For returns the window of period p ending at now. Today starts at
// midnight in now's location; week and month are rolling 7 and 30 days.
func For(p Period, now time.Time) TimeFrame {
	tf := TimeFrame{To: now, Period: p}
	switch p {
	case PeriodToday:
		y, m, d := now.Date()
		tf.From = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		tf.From = now.AddDate(0, 0, -7)
	case PeriodMonth:
		tf.From = now.AddDate(0, 0, -30)
	}
	return tf
}

// Lookback returns the window covering the last days days.
func Lookback(days int, now time.Time) TimeFrame {
	if days <= 0 {
		return TimeFrame{To: now, Period: PeriodAll}
	}
	return TimeFrame{From: now.AddDate(0, 0, -days), To: now}
}

// Contains reports whether t falls inside the frame.
func (tf TimeFrame) Contains(t time.Time) bool {
	if tf.From.IsZero() {
		return tf.To.IsZero() || !t.After(tf.To)
	}
	if t.Before(tf.From) {
		return false
	}
	return tf.To.IsZero() || !t.After(tf.To)
}

// Duration returns the width of a bounded frame, or zero.
func (tf TimeFrame) Duration() time.Duration {
	if tf.From.IsZero() {
		return 0
	}
	return tf.To.Sub(tf.From)
}
