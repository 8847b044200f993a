// Package music implements the musical primitives: pitch spelling, duration
// arithmetic (fractional and tick), and position→tick resolution against a
// meter map. These are pure value types with no dependency on the lexer,
// parser, or evaluator.
package music

import "fmt"

// Pitch is a MIDI key number, 0..127. Middle C (C4) is 60, A4 is 69.
type Pitch int

const MinPitch Pitch = 0
const MaxPitch Pitch = 127

var letterSemitone = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// ParseSpelling builds a Pitch from a letter (A-G), an optional accidental
// (#, b, ##, bb) and an octave, using the MIDI convention that C4 == 60.
func ParseSpelling(letter byte, accidental string, octave int) (Pitch, error) {
	base, ok := letterSemitone[letter]
	if !ok {
		return 0, fmt.Errorf("invalid pitch letter %q", letter)
	}

	accOffset := 0
	switch accidental {
	case "", "natural":
		accOffset = 0
	case "#":
		accOffset = 1
	case "##":
		accOffset = 2
	case "b":
		accOffset = -1
	case "bb":
		accOffset = -2
	default:
		return 0, fmt.Errorf("invalid accidental %q", accidental)
	}

	midi := base + accOffset + (octave+1)*12
	if midi < int(MinPitch) || midi > int(MaxPitch) {
		return 0, fmt.Errorf("pitch out of range 0..127: %d", midi)
	}
	return Pitch(midi), nil
}

// InRange reports whether p is a valid MIDI key number.
func (p Pitch) InRange() bool {
	return p >= MinPitch && p <= MaxPitch
}

// Transpose shifts p by semitones, returning an error if the result falls
// outside 0..127. A value-level `+` clamps instead of erroring; the
// primitive reports the error so callers may choose either policy.
func (p Pitch) Transpose(semitones int) (Pitch, error) {
	result := int(p) + semitones
	if result < int(MinPitch) || result > int(MaxPitch) {
		return 0, fmt.Errorf("pitch out of range 0..127: %d", result)
	}
	return Pitch(result), nil
}

// TransposeClamped shifts p by semitones, clamping into 0..127.
func (p Pitch) TransposeClamped(semitones int) Pitch {
	result := int(p) + semitones
	if result < int(MinPitch) {
		return MinPitch
	}
	if result > int(MaxPitch) {
		return MaxPitch
	}
	return Pitch(result)
}

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// String renders a Pitch in scientific pitch notation, e.g. "C4", "F#3".
func (p Pitch) String() string {
	class := int(p) % 12
	octave := int(p)/12 - 1
	return fmt.Sprintf("%s%d", pitchClassNames[class], octave)
}
