package eval

import (
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/value"
)

func init() {
	register("notes", 1, builtinNotes)
	register("lyrics", 1, builtinLyrics)
}

func vocalTrackOrErr(ctx *EvalContext, pos diag.Position, what string) (*ir.VocalTrack, *diag.Diagnostic) {
	vt, ok := ctx.CurrentTrack.IR.(*ir.VocalTrack)
	if !ok {
		return nil, ctx.errf(pos, "E200", "%s is only valid inside a vocal track", what)
	}
	return vt, nil
}

// noteSpecTie reports whether a note spec (a 2-element array [pitch, dur]
// or an object {pitch, dur, tie}) carries a tied continuation.
func noteSpecTie(v value.Value) bool {
	if v.Kind() != value.KindObject {
		return false
	}
	tie, ok := v.AsObject().Get("tie")
	return ok && tie.IsTruthy()
}

func noteSpecParts(v value.Value) (pitchV, durV value.Value, ok bool) {
	switch v.Kind() {
	case value.KindArray:
		items := v.AsArray().Items
		if len(items) < 2 {
			return value.Value{}, value.Value{}, false
		}
		return items[0], items[1], true
	case value.KindObject:
		obj := v.AsObject()
		p, pok := obj.Get("pitch")
		d, dok := obj.Get("dur")
		return p, d, pok && dok
	default:
		return value.Value{}, value.Value{}, false
	}
}

// builtinNotes parses the `notes` section of a vocal phrase into a sequence
// of pitched durations; tied continuations are marked continuation=true.
// The notes are staged on the track's pending list until a following
// `lyrics` call aligns and commits them.
func builtinNotes(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'notes'"); err != nil {
		return value.Value{}, err
	}
	if _, err := vocalTrackOrErr(ctx, pos, "'notes'"); err != nil {
		return value.Value{}, err
	}
	specsV := argAt(args, 0)
	if specsV.Kind() != value.KindArray {
		return value.Value{}, ctx.errf(pos, "E200", "'notes' expects an array of note specs, got %s", specsV.Kind())
	}
	ts := ctx.CurrentTrack
	for _, spec := range specsV.AsArray().Items {
		pitchV, durV, ok := noteSpecParts(spec)
		if !ok {
			return value.Value{}, ctx.errf(pos, "E200", "'notes' entry must be [pitch, dur] or {pitch, dur}")
		}
		key, pok := pitchArg(pitchV)
		if !pok {
			return value.Value{}, ctx.errf(pos, "E200", "'notes' pitch must be a pitch, got %s", pitchV.Kind())
		}
		dur, dok := durationArg(durV)
		if !dok {
			return value.Value{}, ctx.errf(pos, "E200", "'notes' duration must be a duration, got %s", durV.Kind())
		}
		base, derr := ctx.durationTicks(dur, pos)
		if derr != nil {
			return value.Value{}, derr
		}
		pn := ir.PhraseNote{Tick: ts.Cursor, Dur: base, Key: key, Continuation: noteSpecTie(spec)}
		ts.PendingNotes = append(ts.PendingNotes, pn)
		ts.Cursor += base
	}
	ts.LastTick = ts.Cursor
	return value.Null(), nil
}

// builtinLyrics aligns a lyric token list to the pending note list staged
// by 'notes': a melisma token ("-") extends the previous note rather than
// starting a new lyric; a count mismatch against the number of
// non-continuation notes emits W001 but does not fail. It then commits the
// phrase and its events to the vocal track, checking for overlap (E200).
func builtinLyrics(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	if err := ctx.requireTrackPhase(pos, "'lyrics'"); err != nil {
		return value.Value{}, err
	}
	vt, err := vocalTrackOrErr(ctx, pos, "'lyrics'")
	if err != nil {
		return value.Value{}, err
	}
	tokensV := argAt(args, 0)
	if tokensV.Kind() != value.KindArray {
		return value.Value{}, ctx.errf(pos, "E200", "'lyrics' expects an array of tokens, got %s", tokensV.Kind())
	}

	ts := ctx.CurrentTrack
	notes := ts.PendingNotes
	ts.PendingNotes = nil

	nonContinuation := 0
	for _, n := range notes {
		if !n.Continuation {
			nonContinuation++
		}
	}
	if len(tokensV.AsArray().Items) != nonContinuation {
		ctx.Warnings.Add(diag.Warn("W001", "phrase/lyric count mismatch", pos).WithFile(ctx.Path))
	}

	tokIdx := 0
	lastLyric := ""
	for i := range notes {
		n := &notes[i]
		if n.Continuation {
			n.Lyric = lastLyric
			continue
		}
		tok := ""
		if tokIdx < len(tokensV.AsArray().Items) {
			tok = tokensV.AsArray().Items[tokIdx].String()
			tokIdx++
		}
		if tok == "-" {
			n.Lyric = lastLyric
			n.Continuation = true
		} else {
			n.Lyric = tok
			lastLyric = tok
		}
	}

	for _, n := range notes {
		for _, existing := range vt.Phrases {
			for _, other := range existing.Notes {
				if n.Tick < other.Tick+other.Dur && other.Tick < n.Tick+n.Dur {
					return value.Value{}, ctx.errf(pos, "E200", "vocal overlap at tick %d", n.Tick)
				}
			}
		}
	}

	vt.Phrases = append(vt.Phrases, ir.VocalPhrase{Notes: notes})
	for _, n := range notes {
		vt.Events = append(vt.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: n.Tick, Dur: n.Dur, Key: n.Key, Vel: 100, Lyric: n.Lyric})
	}
	return value.Null(), nil
}
