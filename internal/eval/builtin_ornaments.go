package eval

import (
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/value"
)

func init() {
	register("trill", 2, builtinTrill)
	register("mordent", 1, builtinMordent)
	register("arp", 2, builtinArp)
	register("glissando", 3, builtinGlissando)
	register("tremolo", 2, builtinTremolo)
}

// builtinTrill alternates main and main+interval notes, each a 32nd note
// (PPQ/8 ticks), across the base duration; the last note is clipped to the
// boundary: trill(main, dur, interval?, vel?).
func builtinTrill(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'trill'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'trill'")
	if err != nil {
		return value.Value{}, err
	}
	main, ok := pitchArg(argAt(args, 0))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'trill' expects a main pitch, got %s", argAt(args, 0).Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'trill' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	interval := namedOpt(ctx, args, 2, 2)
	vel := clampVel(namedOpt(ctx, args, 3, mt.DefaultVel))

	step := ctx.Song.PPQ / 8
	if step < 1 {
		step = 1
	}
	ts := ctx.CurrentTrack
	cursor := ts.Cursor
	i := 0
	for remaining := base; remaining > 0; i++ {
		noteDur := step
		if noteDur > remaining {
			noteDur = remaining
		}
		key := main
		if i%2 == 1 {
			key = clampPitch(main + interval)
		}
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: noteDur, Key: key, Vel: vel})
		cursor += noteDur
		remaining -= noteDur
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

func clampPitch(p int) int {
	if p < 0 {
		return 0
	}
	if p > 127 {
		return 127
	}
	return p
}

// builtinMordent emits [main, aux, main] where the first two notes are each
// a 32nd note and the third fills the remainder; aux is main+2 (upper,
// default) or main-2 (lower).
func builtinMordent(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'mordent'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'mordent'")
	if err != nil {
		return value.Value{}, err
	}
	main, ok := pitchArg(argAt(args, 0))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'mordent' expects a main pitch, got %s", argAt(args, 0).Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'mordent' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	lower := false
	if v := argAt(args, 2); v.Kind() == value.KindString && v.AsString() == "lower" {
		lower = true
	}
	vel := clampVel(namedOpt(ctx, args, 3, mt.DefaultVel))

	step := ctx.Song.PPQ / 8
	if step > base {
		step = base
	}
	if step < 1 {
		step = 1
	}
	auxDelta := 2
	if lower {
		auxDelta = -2
	}
	aux := clampPitch(main + auxDelta)
	remainder := base - 2*step
	if remainder < 1 {
		remainder = 1
	}

	ts := ctx.CurrentTrack
	cursor := ts.Cursor
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: step, Key: main, Vel: vel})
	cursor += step
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: step, Key: aux, Vel: vel})
	cursor += step
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: remainder, Key: main, Vel: vel})

	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinArp emits chord tones sequentially offset by a spread (default
// PPQ/8); remaining duration decreases per note.
func builtinArp(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'arp'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'arp'")
	if err != nil {
		return value.Value{}, err
	}
	chordV := argAt(args, 0)
	if chordV.Kind() != value.KindArray {
		return value.Value{}, ctx.errf(pos, "E200", "'arp' expects an array of pitches, got %s", chordV.Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'arp' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	spread := namedOpt(ctx, args, 2, ctx.Song.PPQ/8)
	if spread < 1 {
		spread = 1
	}
	vel := clampVel(namedOpt(ctx, args, 3, mt.DefaultVel))

	ts := ctx.CurrentTrack
	cursor := ts.Cursor
	remaining := base
	items := chordV.AsArray().Items
	for i, pv := range items {
		key, ok := pitchArg(pv)
		if !ok {
			return value.Value{}, ctx.errf(pos, "E200", "'arp' pitch list contains a %s", pv.Kind())
		}
		noteDur := remaining
		if i < len(items)-1 {
			noteDur = spread
			if noteDur > remaining {
				noteDur = remaining
			}
		}
		if noteDur < 1 {
			noteDur = 1
		}
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: noteDur, Key: key, Vel: vel})
		cursor += spread
		remaining -= spread
		if remaining < 1 {
			remaining = 1
		}
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinGlissando emits one note per chromatic semitone from start to end,
// each of duration floor(base/N).
func builtinGlissando(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'glissando'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'glissando'")
	if err != nil {
		return value.Value{}, err
	}
	start, ok := pitchArg(argAt(args, 0))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'glissando' expects a start pitch, got %s", argAt(args, 0).Kind())
	}
	end, ok := pitchArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'glissando' expects an end pitch, got %s", argAt(args, 1).Kind())
	}
	dur, ok := durationArg(argAt(args, 2))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'glissando' expects a duration, got %s", argAt(args, 2).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	vel := clampVel(namedOpt(ctx, args, 3, mt.DefaultVel))

	step := 1
	if end < start {
		step = -1
	}
	n := end - start
	if n < 0 {
		n = -n
	}
	n++
	noteDur := base / n
	if noteDur < 1 {
		noteDur = 1
	}

	ts := ctx.CurrentTrack
	cursor := ts.Cursor
	key := start
	for i := 0; i < n; i++ {
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: noteDur, Key: clampPitch(key), Vel: vel})
		cursor += noteDur
		key += step
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinTremolo repeats the main note at PPQ*4/speed tick intervals across
// the base duration.
func builtinTremolo(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'tremolo'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'tremolo'")
	if err != nil {
		return value.Value{}, err
	}
	main, ok := pitchArg(argAt(args, 0))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'tremolo' expects a pitch, got %s", argAt(args, 0).Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'tremolo' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	speed := namedOpt(ctx, args, 2, 8)
	if speed < 1 {
		speed = 1
	}
	vel := clampVel(namedOpt(ctx, args, 3, mt.DefaultVel))

	interval := ctx.Song.PPQ * 4 / speed
	if interval < 1 {
		interval = 1
	}

	ts := ctx.CurrentTrack
	cursor := ts.Cursor
	for remaining := base; remaining > 0; {
		noteDur := interval
		if noteDur > remaining {
			noteDur = remaining
		}
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: cursor, Dur: noteDur, Key: main, Vel: vel})
		cursor += noteDur
		remaining -= noteDur
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}
