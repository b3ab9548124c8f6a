package timeframe

import (
	"fmt"
	"time"
)

// Parser resolves period names into time frames against a clock.
type Parser struct {
	timeProvider TimeProvider
}

func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &Parser{
		timeProvider: provider,
	}
}

// Parse resolves period in the given IANA timezone. An empty tz means UTC.
func (p *Parser) Parse(period, tz string) (TimeFrame, error) {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return TimeFrame{}, fmt.Errorf("error loading timezone: %w", err)
		}
		loc = l
	}

	pd, err := ParsePeriod(period)
	if err != nil {
		return TimeFrame{}, err
	}

	return For(pd, p.timeProvider.Now(loc)), nil
}
