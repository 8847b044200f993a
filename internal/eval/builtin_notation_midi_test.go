package eval

import (
	"testing"

	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/music"
	"github.com/leafo/songc/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalMarkerEmitsNotationEventWithoutAdvancingCursor(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	ctx.CurrentTrack.Cursor = 240

	_, err := builtinMarker(ctx, []value.Value{value.Str("verse"), value.Str("hook")}, diag.Position{})
	require.Nil(t, err)

	require.Len(t, mt.Events, 1)
	ev := mt.Events[0]
	assert.Equal(t, ir.EventNotation, ev.Kind)
	assert.Equal(t, 240, ev.Tick)
	assert.Equal(t, "marker:verse", ev.NotationKind)
	assert.Equal(t, "hook", ev.Label)
	assert.Equal(t, 240, ctx.CurrentTrack.Cursor)
}

func TestEvalCrescendoStartAndEndEmitPairedNotationEvents(t *testing.T) {
	ctx, mt := newTrackCtx(480)

	_, err := builtinCrescendoStart(ctx, nil, diag.Position{})
	require.Nil(t, err)
	_, err = builtinCrescendoEnd(ctx, nil, diag.Position{})
	require.Nil(t, err)

	require.Len(t, mt.Events, 2)
	assert.Equal(t, "crescendo_start", mt.Events[0].NotationKind)
	assert.Equal(t, "crescendo_end", mt.Events[1].NotationKind)
}

func TestEvalAutomationInterpolatesLinearlyFromStartToEnd(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	d, err := music.NewFractional(1, 4, 0)
	require.NoError(t, err)

	_, derr := builtinAutomation(ctx, []value.Value{value.Int(7), value.Int(0), value.Int(100), value.DurVal(d)}, diag.Position{})
	require.Nil(t, derr)

	require.NotEmpty(t, mt.Events)
	for _, ev := range mt.Events {
		assert.Equal(t, ir.EventCC, ev.Kind)
		assert.Equal(t, 7, ev.Controller)
		assert.GreaterOrEqual(t, ev.Value, 0)
		assert.LessOrEqual(t, ev.Value, 100)
	}
	assert.Equal(t, 0, mt.Events[0].Value)
	assert.Equal(t, 100, mt.Events[len(mt.Events)-1].Value)

	base, berr := ctx.durationTicks(d, diag.Position{})
	require.Nil(t, berr)
	assert.Equal(t, base, ctx.CurrentTrack.Cursor)
}

func TestEvalAutomationRejectsOutOfRangeController(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	d, err := music.NewFractional(1, 4, 0)
	require.NoError(t, err)

	_, derr := builtinAutomation(ctx, []value.Value{value.Int(200), value.Int(0), value.Int(10), value.DurVal(d)}, diag.Position{})
	require.NotNil(t, derr)
	assert.Equal(t, "E121", derr.Code)
}

func TestEvalAtTickSetsCursorToAbsoluteTick(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	_, err := builtinAtTick(ctx, []value.Value{value.Int(960)}, diag.Position{})
	require.Nil(t, err)
	assert.Equal(t, 960, ctx.CurrentTrack.Cursor)
}

func TestEvalAtResolvesPositionThroughMeterMap(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	// bar 2 beat 1 of 4/4 at ppq 480 is one bar (4 beats * 480) past bar 1.
	_, err := builtinAt(ctx, []value.Value{value.TimeVal(music.Position{Bar: 2, Beat: 1, Sub: 0})}, diag.Position{})
	require.Nil(t, err)
	assert.Equal(t, 480*4, ctx.CurrentTrack.Cursor)
}

func TestEvalNoteAtDoesNotMoveCursorAndWritesExplicitTick(t *testing.T) {
	ctx, mt := newTrackCtx(480)
	ctx.CurrentTrack.Cursor = 100
	d, err := music.NewFractional(1, 4, 0)
	require.NoError(t, err)

	_, derr := builtinNoteAt(ctx, []value.Value{value.Int(5000), value.PitchVal(music.Pitch(60)), value.DurVal(d)}, diag.Position{})
	require.Nil(t, derr)

	require.Len(t, mt.Events, 1)
	assert.Equal(t, 5000, mt.Events[0].Tick)
	assert.Equal(t, 60, mt.Events[0].Key)
	assert.Equal(t, 100, ctx.CurrentTrack.Cursor)
}

func TestEvalTransposeShiftsSinglePitch(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	out, err := builtinTranspose(ctx, []value.Value{value.PitchVal(music.Pitch(60)), value.Int(12)}, diag.Position{})
	require.Nil(t, err)
	assert.Equal(t, music.Pitch(72), out.AsPitch())
}

func TestEvalTransposeOutOfRangeErrors(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	_, err := builtinTranspose(ctx, []value.Value{value.PitchVal(music.Pitch(120)), value.Int(24)}, diag.Position{})
	require.NotNil(t, err)
	assert.Equal(t, "E110", err.Code)
}

func TestEvalTransposeAppliesToEveryPitchInArray(t *testing.T) {
	ctx, _ := newTrackCtx(480)
	arr := value.ArrayVal(value.NewArray([]value.Value{
		value.PitchVal(music.Pitch(60)),
		value.PitchVal(music.Pitch(64)),
		value.PitchVal(music.Pitch(67)),
	}))
	out, err := builtinTranspose(ctx, []value.Value{arr, value.Int(2)}, diag.Position{})
	require.Nil(t, err)
	items := out.AsArray().Items
	require.Len(t, items, 3)
	assert.Equal(t, music.Pitch(62), items[0].AsPitch())
	assert.Equal(t, music.Pitch(66), items[1].AsPitch())
	assert.Equal(t, music.Pitch(69), items[2].AsPitch())
}
