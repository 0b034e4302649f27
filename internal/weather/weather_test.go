package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqSource struct {
	vals []float64
	i    int
}

func (s *seqSource) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func july() time.Month    { return time.July }
func january() time.Month { return time.January }

func TestSeasonOf(t *testing.T) {
	cases := map[time.Month]Season{
		time.January:   Winter,
		time.March:     Spring,
		time.May:       Spring,
		time.June:      Summer,
		time.August:    Summer,
		time.September: Autumn,
		time.November:  Autumn,
		time.December:  Winter,
	}
	for m, want := range cases {
		assert.Equal(t, want, SeasonOf(m), m.String())
	}
}

func TestProviderDrawsFromSeasonTable(t *testing.T) {
	// summer: sunny up to 0.6, cloudy to 0.8, rain to 0.9
	src := &seqSource{vals: []float64{0.1, 0.7, 0.85}}
	p := New(src, 60, july)
	assert.Equal(t, Sunny, p.Current())

	p.Update(30)
	assert.Equal(t, Sunny, p.Current(), "interval not yet elapsed")

	p.Update(60)
	assert.Equal(t, Cloudy, p.Current())

	p.Update(119)
	assert.Equal(t, Cloudy, p.Current())

	p.Update(120)
	assert.Equal(t, Rain, p.Current())
}

func TestProviderWinterSnow(t *testing.T) {
	p := New(&seqSource{vals: []float64{0.95}}, 60, january)
	assert.Equal(t, Snow, p.Current())
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition(" Rain ")
	require.NoError(t, err)
	assert.Equal(t, Rain, c)

	_, err = ParseCondition("hail")
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := Static(Thunderstorm)
	s.Update(1000)
	assert.Equal(t, Thunderstorm, s.Current())
}
