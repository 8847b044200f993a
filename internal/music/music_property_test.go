package music

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based tests for duration resolution and meter mapping.

func TestPropertyDurationToTicksIsPositiveAndScalesWithPPQ(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	denominators := []int{1, 2, 4, 8, 16, 32, 64}

	properties.Property("a fractional duration resolves to ticks that grow monotonically with ppq", prop.ForAll(
		func(numerator int, denIdx int, dots int, ppq int) bool {
			den := denominators[denIdx%len(denominators)]
			d, err := NewFractional(numerator, den, dots)
			if err != nil {
				return true // invalid inputs are out of scope for this property
			}
			ticksA, errA := d.ToTicks(ppq, nil)
			ticksB, errB := d.ToTicks(ppq*2, nil)
			if errA != nil || errB != nil {
				return false
			}
			// rounding means doubling ppq need not exactly double ticks: ticks
			// are monotonic in ppq, and half-up rounding on each side can only
			// push the doubled value at most one tick past twice the original.
			return ticksB >= ticksA && ticksB <= ticksA*2+1
		},
		gen.IntRange(1, 16),
		gen.IntRange(0, 6),
		gen.IntRange(0, 3),
		gen.IntRange(24, 960),
	))

	properties.Property("resolved ticks are always >= 1", prop.ForAll(
		func(numerator int, denIdx int, dots int, ppq int) bool {
			den := denominators[denIdx%len(denominators)]
			d, err := NewFractional(numerator, den, dots)
			if err != nil {
				return true
			}
			ticks, err := d.ToTicks(ppq, nil)
			if err != nil {
				return true // legitimately too small to represent
			}
			return ticks >= 1
		},
		gen.IntRange(1, 16),
		gen.IntRange(0, 6),
		gen.IntRange(0, 3),
		gen.IntRange(1, 960),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPropertyTupletShrinksExactlyByRatio(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("actual tuplet notes exactly fill the normal note count's duration", prop.ForAll(
		func(actual, normal int, ppq int) bool {
			if actual <= 0 || normal <= 0 {
				return true
			}
			quarter, err := NewFractional(1, 4, 0)
			if err != nil {
				return false
			}
			oneTuplet, err := quarter.ToTicks(ppq, []TupletLevel{{Actual: actual, Normal: normal}})
			if err != nil {
				return true // too small to represent, out of scope
			}
			plain, err := quarter.ToTicks(ppq, nil)
			if err != nil {
				return false
			}
			total := oneTuplet * actual
			want := plain * normal
			// integer rounding can drift by at most `actual` ticks total
			diff := total - want
			if diff < 0 {
				diff = -diff
			}
			return diff <= actual
		},
		gen.IntRange(2, 9),
		gen.IntRange(1, 8),
		gen.IntRange(24, 960),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPropertyMeterMapTickIsMonotonicInBar(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ToTick strictly increases as bar increases under a fixed meter", prop.ForAll(
		func(num, den int, ppq, barA, barB int) bool {
			denominators := map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true}
			if !denominators[den] || num < 1 {
				return true
			}
			mm, err := NewMeterMap([]MeterChange{{Bar: 1, Numerator: num, Denominator: den}})
			if err != nil {
				return true
			}
			lo, hi := barA, barB
			if lo > hi {
				lo, hi = hi, lo
			}
			if lo == hi {
				return true
			}
			tickLo, err := mm.ToTick(Position{Bar: lo, Beat: 1, Sub: 0}, ppq)
			if err != nil {
				return false
			}
			tickHi, err := mm.ToTick(Position{Bar: hi, Beat: 1, Sub: 0}, ppq)
			if err != nil {
				return false
			}
			return tickHi > tickLo
		},
		gen.IntRange(1, 12),
		gen.OneConstOf(1, 2, 4, 8, 16),
		gen.IntRange(24, 960),
		gen.IntRange(1, 50),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
