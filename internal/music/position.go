package music

import (
	"fmt"
	"sort"
)

// Position is a (bar, beat, sub) musical time reference.
// bar >= 1, beat >= 1, sub >= 0.
type Position struct {
	Bar  int
	Beat int
	Sub  int
}

// MeterChange is one entry of a meter map: the meter active from Bar onward.
type MeterChange struct {
	Bar         int
	Numerator   int
	Denominator int
}

// MeterMap is a bar-indexed, ascending-bar sequence of meter changes. Meter
// changes apply only at bar boundaries.
type MeterMap struct {
	changes []MeterChange
}

// NewMeterMap builds a MeterMap from possibly-unsorted changes, keeping the
// last declaration for any repeated bar (the same last-write-wins rule
// applied to tempo/meter at tick 0, generalized here to any bar).
func NewMeterMap(changes []MeterChange) (*MeterMap, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("meter map must contain at least one change")
	}
	byBar := map[int]MeterChange{}
	order := []int{}
	for _, c := range changes {
		if !validDenominators[c.Denominator] {
			return nil, fmt.Errorf("time signature denominator must be a power of 2 in {1,2,4,8,16,32,64}, got %d", c.Denominator)
		}
		if c.Numerator < 1 {
			return nil, fmt.Errorf("time signature numerator must be >= 1, got %d", c.Numerator)
		}
		if _, seen := byBar[c.Bar]; !seen {
			order = append(order, c.Bar)
		}
		byBar[c.Bar] = c // last wins
	}
	sort.Ints(order)
	if order[0] != 1 {
		return nil, fmt.Errorf("meter map must define bar 1")
	}
	mm := &MeterMap{}
	for _, bar := range order {
		mm.changes = append(mm.changes, byBar[bar])
	}
	return mm, nil
}

// At returns the meter active at bar.
func (m *MeterMap) At(bar int) MeterChange {
	active := m.changes[0]
	for _, c := range m.changes {
		if c.Bar > bar {
			break
		}
		active = c
	}
	return active
}

// TicksPerBeat returns PPQ*4/denominator for the given meter.
func TicksPerBeat(ppq int, denominator int) int {
	return ppq * 4 / denominator
}

// TicksPerBar returns numerator * TicksPerBeat for the given meter.
func TicksPerBar(ppq int, m MeterChange) int {
	return m.Numerator * TicksPerBeat(ppq, m.Denominator)
}

// ToTick resolves a Position to an absolute tick count by walking the
// meter map bar by bar. Validates beat <= numerator and sub < ticks_per_beat
// for the meter active at pos.Bar.
func (m *MeterMap) ToTick(pos Position, ppq int) (int, error) {
	if pos.Bar < 1 {
		return 0, fmt.Errorf("bar must be >= 1, got %d", pos.Bar)
	}
	if pos.Beat < 1 {
		return 0, fmt.Errorf("beat must be >= 1, got %d", pos.Beat)
	}
	if pos.Sub < 0 {
		return 0, fmt.Errorf("sub must be >= 0, got %d", pos.Sub)
	}

	tick := 0
	current := m.changes[0]
	nextIdx := 1

	for bar := 1; bar < pos.Bar; bar++ {
		for nextIdx < len(m.changes) && m.changes[nextIdx].Bar == bar {
			current = m.changes[nextIdx]
			nextIdx++
		}
		tick += TicksPerBar(ppq, current)
	}
	for nextIdx < len(m.changes) && m.changes[nextIdx].Bar == pos.Bar {
		current = m.changes[nextIdx]
		nextIdx++
	}

	tpb := TicksPerBeat(ppq, current.Denominator)
	if pos.Beat > current.Numerator {
		return 0, fmt.Errorf("beat %d exceeds meter numerator %d at bar %d", pos.Beat, current.Numerator, pos.Bar)
	}
	if pos.Sub >= tpb {
		return 0, fmt.Errorf("sub %d must be less than ticks-per-beat %d at bar %d", pos.Sub, tpb, pos.Bar)
	}

	tick += (pos.Beat - 1) * tpb
	tick += pos.Sub
	return tick, nil
}
