// Package ir defines the Song Intermediate Representation (Song-IR): a
// passive, versioned data model produced by internal/eval and consumed by
// internal/smfwriter (and, outside this repository's scope, any other
// exporter).
package ir

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const SchemaVersion = "2.0"

type TempoEvent struct {
	Tick int
	BPM  float64
}

type TimeSigEvent struct {
	Tick        int
	Numerator   int
	Denominator int
}

// SongIR is the sole boundary type between the evaluator and any exporter.
type SongIR struct {
	SchemaVersion string
	Title         string
	PPQ           int
	Tempos        []TempoEvent
	TimeSigs      []TimeSigEvent
	Tracks        []Track
}

// NewSongIR creates an empty Song-IR with the given PPQ.
func NewSongIR(ppq int) *SongIR {
	return &SongIR{SchemaVersion: SchemaVersion, PPQ: ppq}
}

// Track is implemented by MidiTrack and VocalTrack.
type Track interface {
	TrackID() string
	TrackName() string
	AllEvents() []TrackEvent
}

type MidiTrack struct {
	ID         string
	Name       string
	Channel    int // 0..15
	Program    int // 0..127
	DefaultVel int // 1..127
	Events     []TrackEvent
}

func (t *MidiTrack) TrackID() string          { return t.ID }
func (t *MidiTrack) TrackName() string        { return t.Name }
func (t *MidiTrack) AllEvents() []TrackEvent  { return t.Events }

type VocalPhrase struct {
	Notes []PhraseNote
}

type PhraseNote struct {
	Tick         int
	Dur          int
	Key          int
	Lyric        string
	Continuation bool // tied continuation, no new lyric
}

type VocalTrack struct {
	ID              string
	Name            string
	Phrases         []VocalPhrase
	Events          []TrackEvent
	VocaloidParams  map[string]string // populated by an external exporter; this repo only carries it through
}

func (t *VocalTrack) TrackID() string         { return t.ID }
func (t *VocalTrack) TrackName() string       { return t.Name }
func (t *VocalTrack) AllEvents() []TrackEvent { return t.Events }

// NewTrackID generates a collision-free track id; the evaluator assigns
// one to every track it creates.
func NewTrackID() string { return uuid.New().String() }

// EventKind discriminates TrackEvent's variant.
type EventKind int

const (
	EventNote EventKind = iota
	EventRest
	EventCC
	EventPitchBend
	EventNotation // slurs, crescendos, ornaments markers, etc: preserved but SMF-inert
	EventMarker
)

// TrackEvent is a tagged union of every Song-IR track event variant. Only
// Note, CC, and PitchBend affect SMF output (EventRest advances the cursor
// but emits nothing; EventNotation/EventMarker are preserved for
// downstream non-MIDI consumers only).
type TrackEvent struct {
	Kind EventKind
	Tick int

	// Note / Rest
	Dur          int
	Key          int // 0..127, Note only
	Vel          int // 1..127, Note only
	Lyric        string
	Articulation string // "" | staccato | legato | accent | tenuto | marcato

	// CC
	Controller int
	Value      int

	// PitchBend
	BendValue int // -8192..8191

	// Notation / Marker
	NotationKind string // e.g. "slur_start", "slur_end", "crescendo_start", "trill", "mordent"
	Label        string
}

// Validate checks the core Song-IR invariants: ppq>0, tempo@0 and
// timesig@0 present, both arrays sorted ascending. It does NOT sort or
// dedup — that is the evaluator's job before calling Validate.
func (s *SongIR) Validate() error {
	if s.PPQ <= 0 {
		return fmt.Errorf("E001: ppq must be > 0, got %d", s.PPQ)
	}
	if len(s.Tempos) == 0 || s.Tempos[0].Tick != 0 {
		return fmt.Errorf("E010: missing tempo event at tick 0")
	}
	if len(s.TimeSigs) == 0 || s.TimeSigs[0].Tick != 0 {
		return fmt.Errorf("E011: missing time signature event at tick 0")
	}
	if !sort.SliceIsSorted(s.Tempos, func(i, j int) bool { return s.Tempos[i].Tick < s.Tempos[j].Tick }) {
		return fmt.Errorf("internal error: tempo events not sorted by tick")
	}
	if !sort.SliceIsSorted(s.TimeSigs, func(i, j int) bool { return s.TimeSigs[i].Tick < s.TimeSigs[j].Tick }) {
		return fmt.Errorf("internal error: time signature events not sorted by tick")
	}
	for _, tr := range s.Tracks {
		events := tr.AllEvents()
		if !sort.SliceIsSorted(events, func(i, j int) bool { return events[i].Tick < events[j].Tick }) {
			return fmt.Errorf("internal error: track %q events not sorted by tick", tr.TrackName())
		}
		for _, ev := range events {
			if err := validateEvent(ev); err != nil {
				return fmt.Errorf("track %q: %w", tr.TrackName(), err)
			}
		}
	}
	return nil
}

func validateEvent(ev TrackEvent) error {
	switch ev.Kind {
	case EventNote:
		if ev.Key < 0 || ev.Key > 127 {
			return fmt.Errorf("E110: note key %d out of range 0..127", ev.Key)
		}
		if ev.Vel < 1 || ev.Vel > 127 {
			return fmt.Errorf("E110: note velocity %d out of range 1..127", ev.Vel)
		}
		if ev.Dur < 1 {
			return fmt.Errorf("E101: note duration %d must be >= 1 tick", ev.Dur)
		}
	case EventCC:
		if ev.Controller < 0 || ev.Controller > 127 {
			return fmt.Errorf("E121: CC controller %d out of range 0..127", ev.Controller)
		}
		if ev.Value < 0 || ev.Value > 127 {
			return fmt.Errorf("E121: CC value %d out of range 0..127", ev.Value)
		}
	case EventPitchBend:
		if ev.BendValue < -8192 || ev.BendValue > 8191 {
			return fmt.Errorf("E123: pitch bend value %d out of range -8192..8191", ev.BendValue)
		}
	}
	return nil
}

// SortEvents stably sorts tempos, time signatures, and each track's events
// by tick, keeping the within-tick ordering rule (noteOff < cc < pitchBend
// < noteOn) as the tiebreaker for track events.
func (s *SongIR) SortEvents() {
	sort.SliceStable(s.Tempos, func(i, j int) bool { return s.Tempos[i].Tick < s.Tempos[j].Tick })
	sort.SliceStable(s.TimeSigs, func(i, j int) bool { return s.TimeSigs[i].Tick < s.TimeSigs[j].Tick })
	for _, tr := range s.Tracks {
		switch t := tr.(type) {
		case *MidiTrack:
			sortTrackEvents(t.Events)
		case *VocalTrack:
			sortTrackEvents(t.Events)
		}
	}
}

func sortTrackEvents(events []TrackEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Tick != events[j].Tick {
			return events[i].Tick < events[j].Tick
		}
		return eventOrderRank(events[i]) < eventOrderRank(events[j])
	})
}

// eventOrderRank implements same-tick ordering: noteOff < cc < pitchBend <
// noteOn. This repository represents a note as
// a single EventNote carrying its own duration (not separate on/off
// events), so the rank is assigned as if EventNote always contributes its
// note-on; any explicit note-off-equivalent would be an EventNotation with
// NotationKind "note_off" used only by writers that split note on/off
// (see internal/smfwriter).
func eventOrderRank(ev TrackEvent) int {
	switch ev.Kind {
	case EventNotation:
		if ev.NotationKind == "note_off" {
			return 0
		}
		return 4
	case EventCC:
		return 1
	case EventPitchBend:
		return 2
	case EventNote:
		return 3
	default:
		return 4
	}
}

// DedupAtZero keeps only the last-declared tempo/time-sig at tick 0 when the
// evaluator encounters more than one declaration there, matching a
// last-write-wins resolution for redeclared tick-0 values.
func DedupAtZero(events []TempoEvent) []TempoEvent {
	return dedupAtZeroGeneric(events, func(e TempoEvent) int { return e.Tick })
}

func DedupTimeSigsAtZero(events []TimeSigEvent) []TimeSigEvent {
	return dedupAtZeroGeneric(events, func(e TimeSigEvent) int { return e.Tick })
}

func dedupAtZeroGeneric[T any](events []T, tickOf func(T) int) []T {
	var zeroIdx = -1
	var out []T
	for _, e := range events {
		if tickOf(e) == 0 {
			if zeroIdx == -1 {
				out = append(out, e)
				zeroIdx = len(out) - 1
			} else {
				out[zeroIdx] = e // last wins
			}
			continue
		}
		out = append(out, e)
	}
	return out
}
