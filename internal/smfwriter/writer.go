// Package smfwriter serializes a validated Song-IR into byte-exact
// Standard MIDI File Format 1 bytes. Low-level VLQ encoding and chunk
// framing are delegated to gitlab.com/gomidi/midi/v2/smf; this writer
// only computes delta-times and same-tick event ordering.
package smfwriter

import (
	"bytes"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/leafo/songc/internal/ir"
)

// timedEvent pairs an absolute tick with a message and the rank used to
// break same-tick ties: noteOff < cc < pitchBend < noteOn.
type timedEvent struct {
	tick uint32
	rank int
	msg  smf.Message
}

const (
	rankNoteOff = 0
	rankCC      = 1
	rankBend    = 2
	rankNoteOn  = 3
)

// Write serializes song to a byte-exact SMF Format 1 buffer. song must
// already satisfy ir.SongIR.Validate.
func Write(song *ir.SongIR) ([]byte, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("invalid song: %w", err)
	}

	out := smf.NewSMF1()
	out.TimeFormat = smf.MetricTicks(song.PPQ)

	conductor, err := buildConductorTrack(song)
	if err != nil {
		return nil, err
	}
	out.Add(conductor)

	for _, tr := range song.Tracks {
		track, err := buildTrack(tr)
		if err != nil {
			return nil, err
		}
		out.Add(track)
	}

	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing SMF: %w", err)
	}
	return buf.Bytes(), nil
}

// buildConductorTrack writes track 0: the merged, tick-sorted tempo and
// time-signature meta events.
func buildConductorTrack(song *ir.SongIR) (smf.Track, error) {
	var events []timedEvent
	for _, t := range song.Tempos {
		msg, err := tempoMessage(t.BPM)
		if err != nil {
			return nil, err
		}
		events = append(events, timedEvent{tick: uint32(t.Tick), rank: 0, msg: msg})
	}
	for _, ts := range song.TimeSigs {
		msg, err := timeSigMessage(ts.Numerator, ts.Denominator)
		if err != nil {
			return nil, err
		}
		events = append(events, timedEvent{tick: uint32(ts.Tick), rank: 1, msg: msg})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].rank < events[j].rank
	})
	return renderTrack(events), nil
}

// tempoMessage computes the microseconds-per-quarter-note tempo meta event.
// The encoded value must fit 24 bits; smf.MetaTempo already performs the
// round(60_000_000/bpm) conversion internally.
func tempoMessage(bpm float64) (smf.Message, error) {
	uspq := int64(60_000_000.0/bpm + 0.5)
	if uspq <= 0 || uspq > 0xFFFFFF {
		return nil, fmt.Errorf("E500: tempo %g bpm does not fit a 24-bit microseconds-per-quarter value", bpm)
	}
	return smf.Message(smf.MetaTempo(bpm)), nil
}

var validDenominators = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true}

func timeSigMessage(num, den int) (smf.Message, error) {
	if !validDenominators[den] {
		return nil, fmt.Errorf("E122: time signature denominator %d is not a power of 2 in {1,2,4,8,16,32,64}", den)
	}
	return smf.Message(smf.MetaTimeSig(uint8(num), uint8(den), 24, 8)), nil
}

// buildTrack renders one Song-IR track (MIDI or vocal) into an SMF track
// chunk: leading program change, then notes/cc/pitch-bend in tick+rank
// order, then end-of-track.
func buildTrack(tr ir.Track) (smf.Track, error) {
	var events []timedEvent
	var leading smf.Track

	switch t := tr.(type) {
	case *ir.MidiTrack:
		leading = append(leading, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTrackSequenceName(t.Name))})
		leading = append(leading, smf.Event{Delta: 0, Message: smf.Message(midi.ProgramChange(uint8(t.Channel), uint8(t.Program)))})
		for _, ev := range t.Events {
			evs, err := trackEventMessages(ev, uint8(t.Channel))
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
		}
	case *ir.VocalTrack:
		leading = append(leading, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTrackSequenceName(t.Name))})
		for _, ev := range t.Events {
			evs, err := trackEventMessages(ev, 0)
			if err != nil {
				return nil, err
			}
			if ev.Kind == ir.EventNote && ev.Lyric != "" {
				evs = append(evs, timedEvent{tick: uint32(ev.Tick), rank: rankNoteOff - 1, msg: smf.Message(smf.MetaLyric(ev.Lyric))})
			}
			events = append(events, evs...)
		}
	default:
		return nil, fmt.Errorf("unknown track variant %T", tr)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].rank < events[j].rank
	})

	track := renderTrack(events)
	full := append(smf.Track{}, leading...)
	full = append(full, track...)
	return full, nil
}

// trackEventMessages expands one Song-IR TrackEvent into the timed SMF
// messages it contributes. A Note contributes both a note-on (at its tick)
// and a note-off (at tick+dur); CC and PitchBend contribute one message
// each; Rest/Notation/Marker contribute none.
func trackEventMessages(ev ir.TrackEvent, channel uint8) ([]timedEvent, error) {
	switch ev.Kind {
	case ir.EventNote:
		if ev.Key < 0 || ev.Key > 127 {
			return nil, fmt.Errorf("E110: note key %d out of range 0..127", ev.Key)
		}
		if ev.Vel < 1 || ev.Vel > 127 {
			return nil, fmt.Errorf("E110: note velocity %d out of range 1..127", ev.Vel)
		}
		on := timedEvent{tick: uint32(ev.Tick), rank: rankNoteOn, msg: smf.Message(midi.NoteOn(channel, uint8(ev.Key), uint8(ev.Vel)))}
		off := timedEvent{tick: uint32(ev.Tick + ev.Dur), rank: rankNoteOff, msg: smf.Message(midi.NoteOff(channel, uint8(ev.Key)))}
		return []timedEvent{on, off}, nil
	case ir.EventCC:
		return []timedEvent{{tick: uint32(ev.Tick), rank: rankCC, msg: smf.Message(midi.ControlChange(channel, uint8(ev.Controller), uint8(ev.Value)))}}, nil
	case ir.EventPitchBend:
		return []timedEvent{{tick: uint32(ev.Tick), rank: rankBend, msg: smf.Message(midi.Pitchbend(channel, int16(ev.BendValue)))}}, nil
	default:
		return nil, nil
	}
}

// renderTrack converts absolute-tick, pre-sorted timed events into an
// smf.Track with correctly computed deltas, terminated by end-of-track.
func renderTrack(events []timedEvent) smf.Track {
	var track smf.Track
	var lastTick uint32
	for _, ev := range events {
		delta := uint32(0)
		if ev.tick > lastTick {
			delta = ev.tick - lastTick
		}
		track = append(track, smf.Event{Delta: delta, Message: ev.msg})
		lastTick = ev.tick
	}
	track = append(track, smf.Event{Delta: 0, Message: smf.EOT})
	return track
}
