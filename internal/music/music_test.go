package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpellingMiddleC(t *testing.T) {
	p, err := ParseSpelling('C', "", 4)
	require.NoError(t, err)
	assert.Equal(t, Pitch(60), p)
}

func TestParseSpellingA4(t *testing.T) {
	p, err := ParseSpelling('A', "", 4)
	require.NoError(t, err)
	assert.Equal(t, Pitch(69), p)
}

func TestParseSpellingOutOfRange(t *testing.T) {
	_, err := ParseSpelling('B', "", 9)
	assert.Error(t, err)
}

func TestTransposeClamped(t *testing.T) {
	p := Pitch(125)
	assert.Equal(t, Pitch(127), p.TransposeClamped(10))
}

func TestDurationToTicksQuarter(t *testing.T) {
	d, err := NewFractional(1, 4, 0)
	require.NoError(t, err)
	ticks, err := d.ToTicks(480, nil)
	require.NoError(t, err)
	assert.Equal(t, 480, ticks)
}

func TestDurationToTicksDottedQuarter(t *testing.T) {
	d, err := NewFractional(1, 4, 1)
	require.NoError(t, err)
	ticks, err := d.ToTicks(480, nil)
	require.NoError(t, err)
	assert.Equal(t, 720, ticks)
}

func TestDurationToTicksTriplet(t *testing.T) {
	d, err := NewFractional(1, 4, 0)
	require.NoError(t, err)
	ticks, err := d.ToTicks(480, []TupletLevel{{Actual: 3, Normal: 2}})
	require.NoError(t, err)
	assert.Equal(t, 320, ticks)
	assert.Equal(t, 960, ticks*3) // three quarters in a triplet(3,2) total two quarters
}

func TestDurationToTicksTooSmallErrors(t *testing.T) {
	d, err := NewFractional(1, 64, 0)
	require.NoError(t, err)
	_, err = d.ToTicks(1, []TupletLevel{{Actual: 100, Normal: 1}})
	assert.Error(t, err)
}

func TestMeterMapToTick(t *testing.T) {
	mm, err := NewMeterMap([]MeterChange{{Bar: 1, Numerator: 4, Denominator: 4}})
	require.NoError(t, err)

	cases := []struct {
		pos  Position
		want int
	}{
		{Position{1, 1, 0}, 0},
		{Position{2, 1, 0}, 1920},
		{Position{1, 3, 240}, 1200},
	}
	for _, c := range cases {
		got, err := mm.ToTick(c.pos, 480)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestMeterMapChangeAtBarBoundary(t *testing.T) {
	mm, err := NewMeterMap([]MeterChange{
		{Bar: 1, Numerator: 4, Denominator: 4},
		{Bar: 3, Numerator: 3, Denominator: 4},
	})
	require.NoError(t, err)

	// bars 1 and 2 are 4/4 (1920 ticks each at ppq 480), bar 3 starts at 3840
	got, err := mm.ToTick(Position{3, 1, 0}, 480)
	require.NoError(t, err)
	assert.Equal(t, 3840, got)
}

func TestMeterMapBeatOutOfRange(t *testing.T) {
	mm, err := NewMeterMap([]MeterChange{{Bar: 1, Numerator: 3, Denominator: 4}})
	require.NoError(t, err)
	_, err = mm.ToTick(Position{1, 4, 0}, 480)
	assert.Error(t, err)
}

func TestMeterMapSubOutOfRange(t *testing.T) {
	mm, err := NewMeterMap([]MeterChange{{Bar: 1, Numerator: 4, Denominator: 4}})
	require.NoError(t, err)
	_, err = mm.ToTick(Position{1, 1, 480}, 480)
	assert.Error(t, err)
}

func TestMeterMapRejectsBadDenominator(t *testing.T) {
	_, err := NewMeterMap([]MeterChange{{Bar: 1, Numerator: 4, Denominator: 3}})
	assert.Error(t, err)
}
