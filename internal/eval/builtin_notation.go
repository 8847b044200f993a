package eval

import (
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/value"
)

func init() {
	register("marker", 1, builtinMarker)
	register("slurStart", 0, builtinSlurStart)
	register("slurEnd", 0, builtinSlurEnd)
	register("crescendoStart", 0, builtinCrescendoStart)
	register("crescendoEnd", 0, builtinCrescendoEnd)
	register("automation", 4, builtinAutomation)
}

// notationEvent appends an SMF-inert marker/notation event to the current
// track at the cursor without advancing it.
func notationEvent(ctx *EvalContext, kind string, label string) {
	ts := ctx.CurrentTrack
	ev := ir.TrackEvent{Kind: ir.EventNotation, Tick: ts.Cursor, NotationKind: kind, Label: label}
	switch t := ts.IR.(type) {
	case *ir.MidiTrack:
		t.Events = append(t.Events, ev)
	case *ir.VocalTrack:
		t.Events = append(t.Events, ev)
	}
}

// builtinMarker emits a labeled marker event: marker(kind) or marker(kind, label).
func builtinMarker(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'marker'"); err != nil {
		return value.Value{}, err
	}
	kind := argAt(args, 0).String()
	label := argAt(args, 1).String()
	notationEvent(ctx, "marker:"+kind, label)
	return value.Null(), nil
}

func builtinSlurStart(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'slurStart'"); err != nil {
		return value.Value{}, err
	}
	ctx.CurrentTrack.OpenSlurs++
	notationEvent(ctx, "slur_start", "")
	return value.Null(), nil
}

func builtinSlurEnd(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'slurEnd'"); err != nil {
		return value.Value{}, err
	}
	if ctx.CurrentTrack.OpenSlurs <= 0 {
		return value.Value{}, ctx.errf(pos, "E203", "'slurEnd' with no matching 'slurStart'")
	}
	ctx.CurrentTrack.OpenSlurs--
	notationEvent(ctx, "slur_end", "")
	return value.Null(), nil
}

func builtinCrescendoStart(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'crescendoStart'"); err != nil {
		return value.Value{}, err
	}
	notationEvent(ctx, "crescendo_start", "")
	return value.Null(), nil
}

func builtinCrescendoEnd(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'crescendoEnd'"); err != nil {
		return value.Value{}, err
	}
	notationEvent(ctx, "crescendo_end", "")
	return value.Null(), nil
}

// builtinAutomation linearly interpolates a CC value from start to end over
// dur, emitting one cc event every 32nd note (PPQ/8 ticks): automation(controller, start, end, dur).
func builtinAutomation(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'automation'"); err != nil {
		return value.Value{}, err
	}
	mt, err := midiTrackOrErr(ctx, pos, "'automation'")
	if err != nil {
		return value.Value{}, err
	}
	controller := int(argAt(args, 0).AsInt())
	start := int(argAt(args, 1).AsInt())
	end := int(argAt(args, 2).AsInt())
	dur, ok := durationArg(argAt(args, 3))
	if !ok {
		return value.Value{}, ctx.errf(pos, "E200", "'automation' expects a duration, got %s", argAt(args, 3).Kind())
	}
	if controller < 0 || controller > 127 || start < 0 || start > 127 || end < 0 || end > 127 {
		return value.Value{}, ctx.errf(pos, "E121", "automation controller/value must be 0..127")
	}
	base, derr := ctx.durationTicks(dur, pos)
	if derr != nil {
		return value.Value{}, derr
	}

	step := ctx.Song.PPQ / 8
	if step < 1 {
		step = 1
	}
	steps := base / step
	if steps < 1 {
		steps = 1
	}
	ts := ctx.CurrentTrack
	cursor := ts.Cursor
	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		val := start + int(float64(end-start)*frac)
		mt.Events = append(mt.Events, ir.TrackEvent{Kind: ir.EventCC, Tick: cursor, Controller: controller, Value: val})
		cursor += step
	}
	ts.Cursor += base
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}
