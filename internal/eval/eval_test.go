package eval

import (
	"testing"

	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/music"
	"github.com/leafo/songc/internal/parser"
	"github.com/leafo/songc/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTrackCtx builds a context already inside a midi track body, for tests
// that exercise one builtin directly without going through a full score.
func newTrackCtx(ppq int) (*EvalContext, *ir.MidiTrack) {
	ctx := NewContext("test.sg", ppq)
	ctx.Song.Tempos = append(ctx.Song.Tempos, ir.TempoEvent{Tick: 0, BPM: 120})
	ctx.Song.TimeSigs = append(ctx.Song.TimeSigs, ir.TimeSigEvent{Tick: 0, Numerator: 4, Denominator: 4})
	mt := &ir.MidiTrack{ID: "t1", Name: "lead", DefaultVel: 100}
	ctx.Phase = PhaseTrack
	ctx.CurrentTrack = &TrackState{IR: mt}
	return ctx, mt
}

func newVocalTrackCtx(ppq int) (*EvalContext, *ir.VocalTrack) {
	ctx := NewContext("test.sg", ppq)
	vt := &ir.VocalTrack{ID: "v1", Name: "vox"}
	ctx.Phase = PhaseTrack
	ctx.CurrentTrack = &TrackState{IR: vt}
	return ctx, vt
}

func quarter(t *testing.T) value.Value {
	t.Helper()
	d, err := music.NewFractional(1, 4, 0)
	require.NoError(t, err)
	return value.DurVal(d)
}

func TestEvalNoteAdvancesCursorByBase(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinNote(ctx, []value.Value{value.PitchVal(60), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 1)
	assert.Equal(t, 480, mt.Events[0].Dur)
	assert.Equal(t, 480, ctx.CurrentTrack.Cursor)
}

func TestEvalArticulationStaccatoHalvesSoundingNotCursor(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinNote(ctx, []value.Value{
		value.PitchVal(60), quarter(t), value.Int(100), value.Str("staccato"),
	}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 1)
	assert.Equal(t, 240, mt.Events[0].Dur, "staccato sounding duration should be half the base")
	assert.Equal(t, 100, mt.Events[0].Vel, "staccato does not adjust velocity")
	assert.Equal(t, 480, ctx.CurrentTrack.Cursor, "cursor always advances by the base duration")
}

func TestEvalArticulationAccentBoostsVelocityClamped(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinNote(ctx, []value.Value{
		value.PitchVal(60), quarter(t), value.Int(120), value.Str("accent"),
	}, diag.Position{})
	require.Nil(t, derr)
	assert.Equal(t, 127, mt.Events[0].Vel, "velocity must clamp at 127")
	assert.Equal(t, 480, mt.Events[0].Dur)
}

func TestEvalArticulationMarcato(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinNote(ctx, []value.Value{
		value.PitchVal(60), quarter(t), value.Int(80), value.Str("marcato"),
	}, diag.Position{})
	require.Nil(t, derr)
	assert.Equal(t, 360, mt.Events[0].Dur) // 480*75/100
	assert.Equal(t, 105, mt.Events[0].Vel)
}

func TestEvalTupletShrinksDuration(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	ts := ctx.CurrentTrack
	ts.Tuplets = append(ts.Tuplets, TuplingLevel{Actual: 3, Normal: 2})
	_, derr := builtinNote(ctx, []value.Value{value.PitchVal(60), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	// a quarter note (480 ticks) under a 3:2 tuplet resolves to 320 ticks
	assert.Equal(t, 320, mt.Events[0].Dur)
	assert.Equal(t, 320, ts.Cursor)
}

func TestEvalChordEmitsOneEventPerPitchAtSameTick(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	pitches := value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(60), value.PitchVal(64), value.PitchVal(67)}))
	_, derr := builtinChord(ctx, []value.Value{pitches, quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 3)
	for _, ev := range mt.Events {
		assert.Equal(t, 0, ev.Tick)
	}
	assert.Equal(t, 480, ctx.CurrentTrack.Cursor)
}

func TestEvalRestAdvancesCursorWithoutNoteEvent(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinRest(ctx, []value.Value{quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 1)
	assert.Equal(t, ir.EventRest, mt.Events[0].Kind)
	assert.Equal(t, 480, ctx.CurrentTrack.Cursor)
}

func TestEvalHitResolvesDrumAliasToGMKey(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinHit(ctx, []value.Value{value.Str("kick"), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 1)
	assert.Equal(t, BassDrum1, mt.Events[0].Key)
}

func TestEvalHitUnknownDrumNameWarnsAndFallsBackToSnare(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinHit(ctx, []value.Value{value.Str("not_a_drum"), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 1)
	assert.Equal(t, AcousticSnare, mt.Events[0].Key)
	warnings := ctx.Warnings.Items()
	require.Len(t, warnings, 1)
	assert.Equal(t, "W002", warnings[0].Code)
}

func TestEvalCCRangeError(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	_, derr := builtinCC(ctx, []value.Value{value.Int(10), value.Int(200)}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E121", derr.Code)
}

func TestEvalPitchBendRangeError(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	_, derr := builtinPitchBend(ctx, []value.Value{value.Int(9000)}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E123", derr.Code)
}

func TestEvalSlurEndWithoutStartErrors(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	_, derr := builtinSlurEnd(ctx, nil, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E203", derr.Code)
}

func TestEvalSlurStartThenEndSucceeds(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	_, derr := builtinSlurStart(ctx, nil, diag.Position{})
	require.Nil(t, derr)
	_, derr = builtinSlurEnd(ctx, nil, diag.Position{})
	require.Nil(t, derr)
	assert.Equal(t, 0, ctx.CurrentTrack.OpenSlurs)
}

func TestEvalPhaseViolationNoteOutsideTrack(t *testing.T) {
	ctx := NewContext("test.sg", 480)
	_, derr := builtinNote(ctx, []value.Value{value.PitchVal(60), quarter(t)}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E050", derr.Code)
}

func TestEvalVocalNotesAndLyricsAlignOneToOne(t *testing.T) {
	ctx, vt := newVocalTrackCtx(480)
	specs := value.ArrayVal(value.NewArray([]value.Value{
		value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(60), quarter(t)})),
		value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(62), quarter(t)})),
	}))
	_, derr := builtinNotes(ctx, []value.Value{specs}, diag.Position{})
	require.Nil(t, derr)

	tokens := value.ArrayVal(value.NewArray([]value.Value{value.Str("hel"), value.Str("lo")}))
	_, derr = builtinLyrics(ctx, []value.Value{tokens}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, vt.Phrases, 1)
	require.Len(t, vt.Phrases[0].Notes, 2)
	assert.Equal(t, "hel", vt.Phrases[0].Notes[0].Lyric)
	assert.Equal(t, "lo", vt.Phrases[0].Notes[1].Lyric)
	assert.Empty(t, ctx.Warnings.Items())
}

func TestEvalVocalMelismaHyphenExtendsPreviousLyric(t *testing.T) {
	ctx, vt := newVocalTrackCtx(480)
	specs := value.ArrayVal(value.NewArray([]value.Value{
		value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(60), quarter(t)})),
		value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(62), quarter(t)})),
	}))
	_, derr := builtinNotes(ctx, []value.Value{specs}, diag.Position{})
	require.Nil(t, derr)

	tokens := value.ArrayVal(value.NewArray([]value.Value{value.Str("ah"), value.Str("-")}))
	_, derr = builtinLyrics(ctx, []value.Value{tokens}, diag.Position{})
	require.Nil(t, derr)
	notes := vt.Phrases[0].Notes
	assert.Equal(t, "ah", notes[0].Lyric)
	assert.True(t, notes[1].Continuation)
	assert.Equal(t, "ah", notes[1].Lyric)
}

func TestEvalVocalCountMismatchWarnsButCommits(t *testing.T) {
	ctx, vt := newVocalTrackCtx(480)
	specs := value.ArrayVal(value.NewArray([]value.Value{
		value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(60), quarter(t)})),
	}))
	_, derr := builtinNotes(ctx, []value.Value{specs}, diag.Position{})
	require.Nil(t, derr)

	tokens := value.ArrayVal(value.NewArray([]value.Value{value.Str("a"), value.Str("b")}))
	_, derr = builtinLyrics(ctx, []value.Value{tokens}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, vt.Phrases, 1)
	warnings := ctx.Warnings.Items()
	require.Len(t, warnings, 1)
	assert.Equal(t, "W001", warnings[0].Code)
}

func TestEvalVocalOverlapErrors(t *testing.T) {
	ctx, _ := newVocalTrackCtx(480)
	mkPhrase := func(pitch int) {
		specs := value.ArrayVal(value.NewArray([]value.Value{
			value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(pitch), quarter(t)})),
		}))
		_, derr := builtinNotes(ctx, []value.Value{specs}, diag.Position{})
		require.Nil(t, derr)
	}
	mkPhrase(60)
	_, derr := builtinLyrics(ctx, []value.Value{value.ArrayVal(value.NewArray([]value.Value{value.Str("a")}))}, diag.Position{})
	require.Nil(t, derr)

	// rewind the cursor so the next phrase overlaps the first
	ctx.CurrentTrack.Cursor = 0
	mkPhrase(62)
	_, derr = builtinLyrics(ctx, []value.Value{value.ArrayVal(value.NewArray([]value.Value{value.Str("b")}))}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E200", derr.Code)
}

func TestEvalTrillAlternatesPitchesAcrossBase(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinTrill(ctx, []value.Value{value.PitchVal(60), quarter(t), value.Int(2)}, diag.Position{})
	require.Nil(t, derr)
	require.NotEmpty(t, mt.Events)
	total := 0
	for i, ev := range mt.Events {
		total += ev.Dur
		if i%2 == 1 {
			assert.Equal(t, 62, ev.Key)
		} else {
			assert.Equal(t, 60, ev.Key)
		}
	}
	assert.Equal(t, 480, total, "trill notes must sum to the base duration")
}

func TestEvalTrillMinimalTwoArgCallSucceeds(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinTrill(ctx, []value.Value{value.PitchVal(60), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.NotEmpty(t, mt.Events)
}

func TestEvalMordentEmitsMainAuxMain(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinMordent(ctx, []value.Value{value.PitchVal(60), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 3)
	assert.Equal(t, 60, mt.Events[0].Key)
	assert.Equal(t, 62, mt.Events[1].Key)
	assert.Equal(t, 60, mt.Events[2].Key)
	total := mt.Events[0].Dur + mt.Events[1].Dur + mt.Events[2].Dur
	assert.Equal(t, 480, total)
}

func TestEvalGlissandoStepsOneSemitonePerNote(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	_, derr := builtinGlissando(ctx, []value.Value{value.PitchVal(60), value.PitchVal(64), quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 5) // 60..64 inclusive
	for i, ev := range mt.Events {
		assert.Equal(t, 60+i, ev.Key)
	}
}

func TestEvalArpLastNoteTakesRemainingDuration(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	pitches := value.ArrayVal(value.NewArray([]value.Value{value.PitchVal(60), value.PitchVal(64), value.PitchVal(67)}))
	_, derr := builtinArp(ctx, []value.Value{pitches, quarter(t)}, diag.Position{})
	require.Nil(t, derr)
	require.Len(t, mt.Events, 3)
	total := 0
	for _, ev := range mt.Events {
		total += ev.Dur
	}
	assert.Equal(t, 480, total)
}

func TestEvalCoreBuiltinsRepeatAndRangeCaps(t *testing.T) {
	ctx := NewContext("test.sg", 480)
	v, derr := builtinRepeat(ctx, []value.Value{value.Int(5), value.Int(3)}, diag.Position{})
	require.Nil(t, derr)
	require.Equal(t, value.KindArray, v.Kind())
	assert.Len(t, v.AsArray().Items, 3)

	_, derr = builtinRepeat(ctx, []value.Value{value.Int(0), value.Int(2_000_000)}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E402", derr.Code)
}

func TestEvalCoreFillClonesValueIntoEverySlotIndependently(t *testing.T) {
	ctx := NewContext("test.sg", 480)
	inner := value.ArrayVal(value.NewArray([]value.Value{value.Int(1)}))

	v, derr := builtinFill(ctx, []value.Value{inner, value.Int(3)}, diag.Position{})
	require.Nil(t, derr)
	items := v.AsArray().Items
	require.Len(t, items, 3)

	items[0].AsArray().Items[0] = value.Int(99)
	assert.Equal(t, int64(1), items[1].AsArray().Items[0].AsInt())
	assert.Equal(t, int64(1), items[2].AsArray().Items[0].AsInt())

	_, derr = builtinFill(ctx, []value.Value{value.Int(0), value.Int(2_000_000)}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E402", derr.Code)
}

func TestEvalCorePushMutatesSharedArray(t *testing.T) {
	ctx := NewContext("test.sg", 480)
	arr := value.ArrayVal(value.NewArray([]value.Value{value.Int(1), value.Int(2)}))
	_, derr := builtinPush(ctx, []value.Value{arr, value.Int(3)}, diag.Position{})
	require.Nil(t, derr)
	assert.Len(t, arr.AsArray().Items, 3)
}

func TestEvalCopyIsShallow(t *testing.T) {
	ctx := NewContext("test.sg", 480)
	inner := value.ArrayVal(value.NewArray([]value.Value{value.Int(1)}))
	outer := value.ArrayVal(value.NewArray([]value.Value{inner}))
	v, derr := builtinCopy(ctx, []value.Value{outer}, diag.Position{})
	require.Nil(t, derr)
	cp := v.AsArray()
	require.NotSame(t, outer.AsArray(), cp)
	// shallow: the inner array value is the same backing array
	assert.Same(t, inner.AsArray(), cp.Items[0].AsArray())
}

func TestEvalEndToEndScoreProducesValidSongIR(t *testing.T) {
	src := `
const melody = clip {
	note(C4, q)
	note(D4, q)
	note(E4, q, 90, "staccato")
}

const song = score {
	meta {
		title: "Smoke Test"
	}
	tempo {
		1:1 -> 120
	}
	meter {
		1:1 -> 4/4
	}
	sound "piano" kind instrument {
		channel: 0
	}
	track "lead" role melody sound "piano" {
		place 1:1 melody
	}
}
`
	prog, perr := parser.Parse(src, "smoke.sg")
	require.Nil(t, perr)
	song, warnings, eerr := Run(prog, "smoke.sg", 480)
	require.Nil(t, eerr)
	require.NotNil(t, song)
	assert.Empty(t, warnings.Items())
	assert.Equal(t, "Smoke Test", song.Title)
	require.Len(t, song.Tracks, 1)
	require.NoError(t, song.Validate())
	events := song.Tracks[0].AllEvents()
	require.Len(t, events, 3)
	assert.Equal(t, 0, events[0].Tick)
	assert.Equal(t, 480, events[1].Tick)
	assert.Equal(t, 960, events[2].Tick)
	assert.Equal(t, 240, events[2].Dur, "third note is staccato, half duration")
}

func TestEvalMissingTempoAtZeroFails(t *testing.T) {
	src := `
const song = score {
	meta { title: "No Tempo" }
	meter { 1:1 -> 4/4 }
}
`
	prog, perr := parser.Parse(src, "bad.sg")
	require.Nil(t, perr)
	_, _, eerr := Run(prog, "bad.sg", 480)
	require.NotNil(t, eerr)
}
