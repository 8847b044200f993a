package eval

import (
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/music"
	"github.com/leafo/songc/internal/value"
)

func init() {
	register("note", 2, builtinNote)
	register("chord", 2, builtinChord)
	register("hit", 2, builtinHit)
	register("rest", 1, builtinRest)
	register("cc", 2, builtinCC)
	register("pitchBend", 1, builtinPitchBend)
	register("at", 1, builtinAt)
	register("atTick", 1, builtinAtTick)
	register("noteAt", 3, builtinNoteAt)
	register("transpose", 2, builtinTranspose)
	register("drum", 2, builtinDrum)
}

// articulationAdjust implements the articulation table: given the base
// tick duration and velocity, it returns the sounding duration and
// adjusted, clamped velocity. The cursor always advances by base, not
// sounding, so callers must track base separately.
func articulationAdjust(art string, base, vel int) (sounding, adjVel int) {
	switch art {
	case "staccato":
		sounding = base / 2
		if sounding < 1 {
			sounding = 1
		}
		adjVel = vel
	case "legato":
		sounding = base + base/10
		adjVel = vel
	case "accent":
		sounding = base
		adjVel = vel + 20
	case "tenuto":
		sounding = base
		adjVel = vel
	case "marcato":
		sounding = (base * 75) / 100
		adjVel = vel + 25
	default:
		sounding = base
		adjVel = vel
	}
	return sounding, clampVel(adjVel)
}

// resolveArticulation reads an optional trailing "art" named/positional
// string argument used by note/chord/hit.
func resolveArticulation(args []value.Value, idx int) string {
	v := argAt(args, idx)
	if v.Kind() == value.KindString {
		return v.AsString()
	}
	return ""
}

func durationArg(v value.Value) (music.Duration, bool) {
	if v.Kind() != value.KindDur {
		return music.Duration{}, false
	}
	return v.AsDuration(), true
}

func pitchArg(v value.Value) (int, bool) {
	switch v.Kind() {
	case value.KindPitch:
		return int(v.AsPitch()), true
	case value.KindInt:
		return int(v.AsInt()), true
	default:
		return 0, false
	}
}

func midiTrackOrErr(ctx *EvalContext, pos diag.Position, what string) (*ir.MidiTrack, *diag.Diagnostic) {
	mt, ok := ctx.CurrentTrack.IR.(*ir.MidiTrack)
	if !ok {
		return nil, ctx.errf(pos, "E200", "%s is only valid inside a midi track", what)
	}
	return mt, nil
}

// builtinNote emits a single note at the track cursor: note(pitch, dur, vel?,
// art?). Cursor advances by the base (unarticulated) duration.
func builtinNote(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'note'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'note'")
	if err != nil {
		return value.Value{}, err
	}
	key, ok := pitchArg(argAt(args, 0))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'note' expects a pitch, got %s", argAt(args, 0).Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'note' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	vel := clampVel(namedOpt(ctx, args, 2, mt.DefaultVel))
	art := resolveArticulation(args, 3)
	sounding, adjVel := articulationAdjust(art, base, vel)
	ts := ctx.CurrentTrack
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: ts.Cursor, Dur: sounding, Key: key, Vel: adjVel})
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinChord emits several notes starting at the same tick: chord([pitches], dur, vel?, art?).
func builtinChord(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'chord'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'chord'")
	if err != nil {
		return value.Value{}, err
	}
	pitchesV := argAt(args, 0)
	if pitchesV.Kind() != value.KindArray {
		return value.Value{}, ctx.errf(pos, "E200", "'chord' expects an array of pitches, got %s", pitchesV.Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'chord' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	vel := clampVel(namedOpt(ctx, args, 2, mt.DefaultVel))
	art := resolveArticulation(args, 3)
	sounding, adjVel := articulationAdjust(art, base, vel)
	ts := ctx.CurrentTrack
	for _, pv := range pitchesV.AsArray().Items {
		key, ok := pitchArg(pv)
		if !ok {
			return value.Value{}, ctx.errf(pos, "E200", "'chord' pitch list contains a %s", pv.Kind())
		}
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: ts.Cursor, Dur: sounding, Key: key, Vel: adjVel})
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinHit emits a percussion note by name or key: hit(name, dur, vel?).
func builtinHit(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'hit'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'hit'")
	if err != nil {
		return value.Value{}, err
	}
	nameV := argAt(args, 0)
	var key int
	if nameV.Kind() == value.KindString {
		k, ok := resolveDrumName(nameV.AsString())
		if !ok {
			ctx.Warnings.Add(diag.Warn("W002", "unknown drum name \""+nameV.AsString()+"\"", pos).WithFile(ctx.Path))
			k = AcousticSnare
		}
		key = k
	} else if k, ok := pitchArg(nameV); ok {
		key = k
	} else {
		return value.Value{}, ctx.errf(pos, "E200", "'hit' expects a drum name or key, got %s", nameV.Kind())
	}
	dur, ok := durationArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'hit' expects a duration, got %s", argAt(args, 1).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	vel := clampVel(namedOpt(ctx, args, 2, mt.DefaultVel))
	ts := ctx.CurrentTrack
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: ts.Cursor, Dur: base, Key: key, Vel: vel})
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinDrum is an alias for hit: `drum(name, dur)` behaves identically
// to `hit`.
func builtinDrum(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	return builtinHit(ctx, args, pos)
}

// builtinRest advances the cursor without emitting an event: rest(dur).
func builtinRest(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'rest'"); err != nil {
		return value.Value{}, err
	}
	dur, ok := durationArg(argAt(args, 0))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'rest' expects a duration, got %s", argAt(args, 0).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	ts := ctx.CurrentTrack
	if mt, ok := ts.IR.(*ir.MidiTrack); ok {
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventRest, Tick: ts.Cursor, Dur: base})
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinCC emits a control-change event at the cursor without advancing
// it: cc(controller, value).
func builtinCC(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'cc'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'cc'")
	if err != nil {
		return value.Value{}, err
	}
	controller := int(argAt(args, 0).AsInt())
	val := int(argAt(args, 1).AsInt())
	if controller < 0 || controller > 127 || val < 0 || val > 127 {
		return value.Value{}, ctx.errf(pos, "E121", "cc controller/value must be 0..127, got %d/%d", controller, val)
	}
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventCC, Tick: ctx.CurrentTrack.Cursor, Controller: controller, Value: val})
	return value.Null(), nil
}

// builtinPitchBend emits a pitch-bend event at the cursor: pitchBend(value).
func builtinPitchBend(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'pitchBend'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'pitchBend'")
	if err != nil {
		return value.Value{}, err
	}
	bend := int(argAt(args, 0).AsInt())
	if bend < -8192 || bend > 8191 {
		return value.Value{}, ctx.errf(pos, "E123", "pitch bend value must be -8192..8191, got %d", bend)
	}
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventPitchBend, Tick: ctx.CurrentTrack.Cursor, BendValue: bend})
	return value.Null(), nil
}

// builtinAt jumps the track cursor to a resolved position: at(pos).
func builtinAt(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'at'"); err != nil {
		return value.Value{}, err
	}
	tick, terr := ctx.resolveTick(argAt(args, 0), pos)
	if terr != nil {
		return value.Value{}, terr
	}
	ctx.CurrentTrack.Cursor = tick
	return value.Null(), nil
}

// builtinAtTick sets the track cursor to an absolute tick: atTick(n).
func builtinAtTick(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'atTick'"); err != nil {
		return value.Value{}, err
	}
	v := argAt(args, 0)
	if v.Kind() != value.KindInt {
		return value.Value{}, ctx.errf(pos, "E200", "'atTick' expects an int, got %s", v.Kind())
	}
	ctx.CurrentTrack.Cursor = int(v.AsInt())
	return value.Null(), nil
}

// builtinNoteAt emits a note at an explicit tick without moving the cursor:
// noteAt(tick, pitch, dur, vel?).
func builtinNoteAt(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'noteAt'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'noteAt'")
	if err != nil {
		return value.Value{}, err
	}
	tickV := argAt(args, 0)
	if tickV.Kind() != value.KindInt {
		return value.Value{}, ctx.errf(pos, "E200", "'noteAt' expects an int tick, got %s", tickV.Kind())
	}
	key, ok := pitchArg(argAt(args, 1))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'noteAt' expects a pitch, got %s", argAt(args, 1).Kind())
	}
	dur, ok := durationArg(argAt(args, 2))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'noteAt' expects a duration, got %s", argAt(args, 2).Kind())
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}
	vel := clampVel(namedOpt(ctx, args, 3, mt.DefaultVel))
	mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: int(tickV.AsInt()), Dur: base, Key: key, Vel: vel})
	return value.Null(), nil
}

// builtinTranspose shifts a pitch (or every pitch in an array) by semitones,
// erroring if the result falls outside 0..127: transpose(pitchOrArray, semitones).
func builtinTranspose(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	semis := int(argAt(args, 1).AsInt())
	v := argAt(args, 0)
	switch v.Kind() {
	case value.KindPitch:
		result, err := v.AsPitch().Transpose(semis)
		if err != nil {
			return value.Value{}, ctx.errf(pos, "E110", "%s", err.Error())
		}
		return value.PitchVal(result), nil
	case value.KindInt:
		result, err := music.Pitch(v.AsInt()).Transpose(semis)
		if err != nil {
			return value.Value{}, ctx.errf(pos, "E110", "%s", err.Error())
		}
		return value.PitchVal(result), nil
	case value.KindArray:
		out := make([]value.Value, len(v.AsArray().Items))
		for i, item := range v.AsArray().Items {
			key, ok := pitchArg(item)
			if !ok {
				return value.Value{}, ctx.errf(pos, "E200", "'transpose' array contains a %s", item.Kind())
			}
			result, err := music.Pitch(key).Transpose(semis)
			if err != nil {
				return value.Value{}, ctx.errf(pos, "E110", "%s", err.Error())
			}
			out[i] = value.PitchVal(result)
		}
		return value.ArrayVal(value.NewArray(out)), nil
	default:
		return value.Value{}, ctx.errf(pos, "E200", "'transpose' expects a pitch or array of pitches, got %s", v.Kind())
	}
}
