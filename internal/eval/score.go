package eval

import (
	"github.com/leafo/songc/internal/ast"
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/music"
	"github.com/leafo/songc/internal/value"
)

// requireGlobalPhase and requireTrackPhase enforce the phase invariant:
// song-global builtins are legal only before any track is opened,
// track-mutating builtins only inside one. Violations are E050.
func (ctx *EvalContext) requireGlobalPhase(pos diag.Position, what string) *diag.Diagnostic {
	if ctx.Phase != PhaseGlobal {
		return ctx.errf(pos, "E050", "%s is only valid before any track is opened", what)
	}
	return nil
}

func (ctx *EvalContext) requireTrackPhase(pos diag.Position, what string) *diag.Diagnostic {
	if ctx.Phase != PhaseTrack || ctx.CurrentTrack == nil {
		return ctx.errf(pos, "E050", "%s is only valid inside a track body", what)
	}
	return nil
}

func (ctx *EvalContext) evalScoreBlock(x *ast.ScoreBlock) (value.Value, Signal, *diag.Diagnostic) {
	if err := ctx.requireGlobalPhase(x.Pos, "a 'score' block"); err != nil {
		return value.Value{}, normal, err
	}
	sig, err := ctx.execBlock(x.Body, ctx.Scope)
	if err != nil {
		return value.Value{}, normal, err
	}
	_ = sig
	return value.Null(), normal, nil
}

// evalClipBlock captures a clip body as a deferred, argument-less closure.
// Its statements only make sense once placed inside a track; `place` is
// what actually executes them.
func (ctx *EvalContext) evalClipBlock(x *ast.ClipBlock) (value.Value, Signal, *diag.Diagnostic) {
	fn := &value.Function{Body: x.Body, Closure: ctx.Scope, Name: "<clip>"}
	return value.FunctionVal(fn), normal, nil
}

func (ctx *EvalContext) execMeta(st *ast.MetaStmt) *diag.Diagnostic {
	if err := ctx.requireGlobalPhase(st.Pos, "'meta'"); err != nil {
		return err
	}
	for _, kv := range st.Fields {
		v, _, err := ctx.evalExpr(kv.Value)
		if err != nil {
			return err
		}
		if kv.Key == "title" {
			ctx.Song.Title = v.String()
		}
	}
	return nil
}

// resolveTick converts a position-or-tick value to an absolute tick using
// the current meter map, defaulting to a single 4/4 meter at bar 1 if none
// has been declared yet.
func (ctx *EvalContext) resolveTick(v value.Value, pos diag.Position) (int, *diag.Diagnostic) {
	switch v.Kind() {
	case value.KindInt:
		return int(v.AsInt()), nil
	case value.KindTime:
		mm := ctx.MeterMap
		if mm == nil {
			var err error
			mm, err = music.NewMeterMap([]music.MeterChange{{Bar: 1, Numerator: 4, Denominator: 4}})
			if err != nil {
				return 0, ctx.errf(pos, "E011", "%s", err.Error())
			}
		}
		tick, err := mm.ToTick(v.AsTime(), ctx.Song.PPQ)
		if err != nil {
			return 0, ctx.errf(pos, "E102", "%s", err.Error())
		}
		return tick, nil
	default:
		return 0, ctx.errf(pos, "E200", "expected a position or tick, got %s", v.Kind())
	}
}

func (ctx *EvalContext) execTempo(st *ast.TempoStmt) *diag.Diagnostic {
	if err := ctx.requireGlobalPhase(st.Pos, "'tempo'"); err != nil {
		return err
	}
	for _, entry := range st.Entries {
		atV, _, err := ctx.evalExpr(entry.At)
		if err != nil {
			return err
		}
		tick, terr := ctx.resolveTick(atV, st.Pos)
		if terr != nil {
			return terr
		}
		bpmV, _, err2 := ctx.evalExpr(entry.BPM)
		if err2 != nil {
			return err2
		}
		if entry.EndAt == nil {
			ctx.Song.Tempos = append(ctx.Song.Tempos, ir.TempoEvent{Tick: tick, BPM: bpmV.Numeric()})
		} else {
			endAtV, _, err3 := ctx.evalExpr(entry.EndAt)
			if err3 != nil {
				return err3
			}
			endTick, terr2 := ctx.resolveTick(endAtV, st.Pos)
			if terr2 != nil {
				return terr2
			}
			// Gradational tempo changes (ramp/ease) are modeled as a dense
			// series of intermediate tempo events; a step every quarter
			// note approximates a continuous ramp within Song-IR's
			// discrete event model.
			ctx.emitTempoRamp(tick, endTick, bpmV.Numeric())
		}
	}
	ctx.Song.Tempos = ir.DedupAtZero(ctx.Song.Tempos)
	return nil
}

func (ctx *EvalContext) emitTempoRamp(startTick, endTick int, targetBPM float64) {
	if endTick <= startTick || len(ctx.Song.Tempos) == 0 {
		ctx.Song.Tempos = append(ctx.Song.Tempos, ir.TempoEvent{Tick: startTick, BPM: targetBPM})
		return
	}
	startBPM := ctx.Song.Tempos[len(ctx.Song.Tempos)-1].BPM
	steps := (endTick - startTick) / ctx.Song.PPQ
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		tick := startTick + int(float64(endTick-startTick)*frac)
		bpm := startBPM + (targetBPM-startBPM)*frac
		ctx.Song.Tempos = append(ctx.Song.Tempos, ir.TempoEvent{Tick: tick, BPM: bpm})
	}
}

func (ctx *EvalContext) execMeter(st *ast.MeterStmt) *diag.Diagnostic {
	if err := ctx.requireGlobalPhase(st.Pos, "'meter'"); err != nil {
		return err
	}
	for _, entry := range st.Entries {
		atV, _, err := ctx.evalExpr(entry.At)
		if err != nil {
			return err
		}
		var bar int
		if atV.Kind() == value.KindTime {
			bar = atV.AsTime().Bar
		} else {
			bar = int(atV.AsInt())
		}
		tick, terr := ctx.resolveTick(atV, st.Pos)
		if terr != nil {
			return terr
		}
		ctx.Song.TimeSigs = append(ctx.Song.TimeSigs, ir.TimeSigEvent{Tick: tick, Numerator: entry.Numerator, Denominator: entry.Denominator})
		if err := ctx.rebuildMeterMap(bar, entry.Numerator, entry.Denominator); err != nil {
			return ctx.errf(st.Pos, "E102", "%s", err.Error())
		}
	}
	ctx.Song.TimeSigs = ir.DedupTimeSigsAtZero(ctx.Song.TimeSigs)
	return nil
}

// rebuildMeterMap re-derives the meter map from every change declared so
// far. MeterMap itself only exposes bar-indexed lookups, not enumeration,
// so the evaluator keeps its own running list to rebuild from.
func (ctx *EvalContext) rebuildMeterMap(bar, num, den int) error {
	ctx.meterChanges = append(ctx.meterChanges, music.MeterChange{Bar: bar, Numerator: num, Denominator: den})
	mm, err := music.NewMeterMap(ctx.meterChanges)
	if err != nil {
		return err
	}
	ctx.MeterMap = mm
	return nil
}

func (ctx *EvalContext) execSound(st *ast.SoundStmt) *diag.Diagnostic {
	if err := ctx.requireGlobalPhase(st.Pos, "'sound'"); err != nil {
		return err
	}
	ctx.SoundKinds[st.ID] = st.Kind
	fields := value.NewObject()
	for _, kv := range st.Fields {
		v, _, err := ctx.evalExpr(kv.Value)
		if err != nil {
			return err
		}
		fields.Set(kv.Key, v)
	}
	ctx.Scope.Declare(soundBindingName(st.ID), value.ObjectVal(fields), false)
	return nil
}

func soundBindingName(id string) string { return "$sound:" + id }

func (ctx *EvalContext) execTrack(st *ast.TrackStmt) *diag.Diagnostic {
	if err := ctx.requireGlobalPhase(st.Pos, "'track'"); err != nil {
		return err
	}

	kind := ctx.SoundKinds[st.SoundID]
	var fields *value.Object
	if v, ok := ctx.Scope.Lookup(soundBindingName(st.SoundID)); ok {
		fields = v.AsObject()
	} else {
		fields = value.NewObject()
	}

	var track ir.Track
	if kind == "vocal" || st.Role == "vocal" {
		track = &ir.VocalTrack{ID: ir.NewTrackID(), Name: st.Name}
	} else {
		defaultChannel := 0
		if kind == "drums" || kind == "percussion" {
			defaultChannel = gmDrumChannel
		}
		channel := fieldInt(fields, "channel", defaultChannel)
		program := fieldInt(fields, "program", 0)
		vel := fieldInt(fields, "velocity", 100)
		track = &ir.MidiTrack{ID: ir.NewTrackID(), Name: st.Name, Channel: channel, Program: program, DefaultVel: vel}
	}

	ctx.Phase = PhaseTrack
	ctx.CurrentTrack = &TrackState{IR: track}
	sig, err := ctx.execBlock(st.Body, ctx.Scope)
	ctx.Phase = PhaseGlobal
	finishedTrack := ctx.CurrentTrack
	ctx.CurrentTrack = nil
	if err != nil {
		return err
	}
	_ = sig
	ctx.Song.Tracks = append(ctx.Song.Tracks, finishedTrack.IR)
	return nil
}

func fieldInt(obj *value.Object, key string, def int) int {
	v, ok := obj.Get(key)
	if !ok {
		return def
	}
	if v.Kind() == value.KindInt {
		return int(v.AsInt())
	}
	if v.Kind() == value.KindFloat {
		return int(v.AsFloat())
	}
	return def
}

func (ctx *EvalContext) execPlace(st *ast.PlaceStmt) *diag.Diagnostic {
	if err := ctx.requireTrackPhase(st.Pos, "'place'"); err != nil {
		return err
	}
	atV, _, err := ctx.evalExpr(st.At)
	if err != nil {
		return err
	}
	tick, terr := ctx.resolveTick(atV, st.Pos)
	if terr != nil {
		return terr
	}
	clipV, _, err2 := ctx.evalExpr(st.Clip)
	if err2 != nil {
		return err2
	}
	if clipV.Kind() != value.KindFunction {
		return ctx.errf(st.Pos, "E200", "'place' target must be a clip, got %s", clipV.Kind())
	}
	ctx.CurrentTrack.Cursor = tick
	fn := clipV.AsFunction()
	clipScope := value.NewScope(fn.Closure)
	saved := ctx.Scope
	ctx.Scope = clipScope
	_, cerr := ctx.execBlock(fn.Body, clipScope)
	ctx.Scope = saved
	return cerr
}

func (ctx *EvalContext) execTriplet(st *ast.TripletStmt) (Signal, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(st.Pos, "'triplet'"); err != nil {
		return normal, err
	}
	normalCount := 2
	if st.InTime != nil {
		v, _, err := ctx.evalExpr(st.InTime)
		if err != nil {
			return normal, err
		}
		normalCount = int(v.AsInt())
	}
	return ctx.withTuplet(TuplingLevel{Actual: st.N, Normal: normalCount}, st.Body)
}

func (ctx *EvalContext) execTuplet(st *ast.TupletStmt) (Signal, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(st.Pos, "'tuplet'"); err != nil {
		return normal, err
	}
	var normalCount int
	if st.Normal != nil {
		v, _, err := ctx.evalExpr(st.Normal)
		if err != nil {
			return normal, err
		}
		normalCount = int(v.AsInt())
	}
	return ctx.withTuplet(TuplingLevel{Actual: st.Actual, Normal: normalCount}, st.Body)
}

func (ctx *EvalContext) withTuplet(level TuplingLevel, body []ast.Statement) (Signal, *diag.Diagnostic) {
	ts := ctx.CurrentTrack
	ts.Tuplets = append(ts.Tuplets, level)
	sig, err := ctx.execBlock(body, ctx.Scope)
	ts.Tuplets = ts.Tuplets[:len(ts.Tuplets)-1]
	return sig, err
}

// durationTicks resolves a Duration value to ticks under the track's
// current tuplet stack.
func (ctx *EvalContext) durationTicks(d music.Duration, pos diag.Position) (int, *diag.Diagnostic) {
	ts := ctx.CurrentTrack
	var levels []music.TupletLevel
	for _, l := range ts.Tuplets {
		levels = append(levels, music.TupletLevel{Actual: l.Actual, Normal: l.Normal})
	}
	ticks, err := d.ToTicks(ctx.Song.PPQ, levels)
	if err != nil {
		return 0, ctx.errf(pos, "E101", "%s", err.Error())
	}
	return ticks, nil
}
