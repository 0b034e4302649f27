// Package weather supplies the periodic weather condition consumed by
// scenario requirements.
package weather

import (
	"fmt"
	"strings"
	"time"
)

type Condition string

const (
	Sunny        Condition = "sunny"
	Cloudy       Condition = "cloudy"
	Rain         Condition = "rain"
	Thunderstorm Condition = "thunderstorm"
	Snow         Condition = "snow"
)

// Conditions lists every weather value in table order.
var Conditions = []Condition{Sunny, Cloudy, Rain, Thunderstorm, Snow}

// ParseCondition resolves a case-insensitive weather name.
func ParseCondition(s string) (Condition, error) {
	for _, c := range Conditions {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown weather %q", s)
}

type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
)

// SeasonOf maps a calendar month to its northern-hemisphere season.
func SeasonOf(m time.Month) Season {
	switch {
	case m >= time.March && m <= time.May:
		return Spring
	case m >= time.June && m <= time.August:
		return Summer
	case m >= time.September && m <= time.November:
		return Autumn
	default:
		return Winter
	}
}

type weight struct {
	condition Condition
	p         float64
}

// Ordered slices so the cumulative draw is reproducible.
var seasonTable = map[Season][]weight{
	Winter: {{Sunny, 0.2}, {Cloudy, 0.4}, {Rain, 0.1}, {Thunderstorm, 0.0}, {Snow, 0.3}},
	Spring: {{Sunny, 0.4}, {Cloudy, 0.3}, {Rain, 0.2}, {Thunderstorm, 0.1}, {Snow, 0.0}},
	Summer: {{Sunny, 0.6}, {Cloudy, 0.2}, {Rain, 0.1}, {Thunderstorm, 0.1}, {Snow, 0.0}},
	Autumn: {{Sunny, 0.3}, {Cloudy, 0.4}, {Rain, 0.2}, {Thunderstorm, 0.1}, {Snow, 0.0}},
}

// Source is the random stream the provider draws from.
type Source interface {
	Float64() float64
}

const DefaultInterval = 60

// Provider redraws the weather every Interval simulated minutes.
type Provider struct {
	current  Condition
	interval int
	last     int
	rng      Source
	month    func() time.Month
}

// New creates a provider and draws the initial condition. month reports
// the calendar month used to pick the seasonal table.
func New(rng Source, interval int, month func() time.Month) *Provider {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if month == nil {
		month = func() time.Month { return time.Now().Month() }
	}
	p := &Provider{current: Sunny, interval: interval, rng: rng, month: month}
	p.redraw()
	return p
}

// Update advances the internal timer to now (absolute simulated minutes).
func (p *Provider) Update(now int) {
	if now-p.last >= p.interval {
		p.redraw()
		p.last = now
	}
}

func (p *Provider) Current() Condition { return p.current }

func (p *Provider) redraw() {
	r := p.rng.Float64()
	cum := 0.0
	for _, w := range seasonTable[SeasonOf(p.month())] {
		cum += w.p
		if r <= cum {
			p.current = w.condition
			return
		}
	}
}

// Static is a provider pinned to a single condition.
type Static Condition

func (s Static) Update(int)         {}
func (s Static) Current() Condition { return Condition(s) }
