package parser

import (
	"testing"

	"github.com/leafo/songc/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFnAndConst(t *testing.T) {
	src := `
fn add(a, b) {
	return a + b
}
const x = add(1, 2)
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	require.Len(t, prog.Body, 2)
	fn, ok := prog.Body[0].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Len(t, fn.Params, 2)
	c, ok := prog.Body[1].(*ast.ConstDecl)
	require.True(t, ok)
	call, ok := c.Value.(*ast.CallExpr)
	require.True(t, ok)
	assert.Len(t, call.Args, 2)
}

func TestParseTupleDestructure(t *testing.T) {
	src := `const (a, b, ...rest) = pair()`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	assert.True(t, c.Target.IsTuple)
	assert.Equal(t, []string{"a", "b"}, c.Target.Names)
	assert.Equal(t, "rest", c.Target.Rest)
}

func TestParseIfElseChain(t *testing.T) {
	src := `
fn f(x) {
	if x > 0 {
		return 1
	} else if x < 0 {
		return -1
	} else {
		return 0
	}
}
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	fn := prog.Body[0].(*ast.FnDecl)
	ifs := fn.Body[0].(*ast.IfElseStmt)
	require.Len(t, ifs.Else, 1)
	_, ok := ifs.Else[0].(*ast.IfElseStmt)
	assert.True(t, ok)
}

func TestParseForRangeAndForIn(t *testing.T) {
	src := `
fn f() {
	for i in 0..10 {
		continue
	}
	for item in items {
		break
	}
}
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	fn := prog.Body[0].(*ast.FnDecl)
	rng, ok := fn.Body[0].(*ast.ForRangeStmt)
	require.True(t, ok)
	assert.Equal(t, "i", rng.Var)
	in, ok := fn.Body[1].(*ast.ForInStmt)
	require.True(t, ok)
	assert.Equal(t, "item", in.Var)
}

func TestParseMatchExpr(t *testing.T) {
	src := `
const y = match(x) {
	1 -> "one";
	n if n > 10 -> "big";
	else -> "other";
}
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	m, ok := c.Value.(*ast.MatchExpr)
	require.True(t, ok)
	require.Len(t, m.Arms, 3)
	assert.True(t, m.Arms[2].IsElse)
	assert.NotNil(t, m.Arms[1].Guard)
}

func TestParseScoreBlockWithMetaTempoMeter(t *testing.T) {
	src := `
const song = score {
	meta {
		title: "Test Song"
	}
	tempo {
		1:1 -> 120
	}
	meter {
		1:1 -> 4/4
	}
}
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	sb, ok := c.Value.(*ast.ScoreBlock)
	require.True(t, ok)
	require.Len(t, sb.Body, 3)
	_, ok = sb.Body[0].(*ast.MetaStmt)
	assert.True(t, ok)
	tempo, ok := sb.Body[1].(*ast.TempoStmt)
	require.True(t, ok)
	require.Len(t, tempo.Entries, 1)
	_, ok = sb.Body[2].(*ast.MeterStmt)
	assert.True(t, ok)
}

func TestParseTrackAndPlace(t *testing.T) {
	src := `
const song = score {
	track "lead" role melody sound "piano" {
		place 1:1 myClip
	}
}
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	sb := c.Value.(*ast.ScoreBlock)
	tr, ok := sb.Body[0].(*ast.TrackStmt)
	require.True(t, ok)
	assert.Equal(t, "lead", tr.Name)
	assert.Equal(t, "melody", tr.Role)
	assert.Equal(t, "piano", tr.SoundID)
	place, ok := tr.Body[0].(*ast.PlaceStmt)
	require.True(t, ok)
	assert.NotNil(t, place.At)
}

func TestParseClipWithNotesAndTriplet(t *testing.T) {
	src := `
const c = clip {
	note(C4, q)
	triplet(3, 2) {
		note(C4, q)
		note(D4, q)
		note(E4, q)
	}
}
`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	cb := c.Value.(*ast.ClipBlock)
	require.Len(t, cb.Body, 2)
	exprStmt, ok := cb.Body[0].(*ast.ExprStmt)
	require.True(t, ok)
	call := exprStmt.X.(*ast.CallExpr)
	ident := call.Callee.(*ast.Ident)
	assert.Equal(t, "note", ident.Name)
	trip, ok := cb.Body[1].(*ast.TripletStmt)
	require.True(t, ok)
	assert.Equal(t, 3, trip.N)
	require.Len(t, trip.Body, 3)
}

func TestParseTemplateLiteral(t *testing.T) {
	src := "const s = `hello ${name}!`"
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	tmpl, ok := c.Value.(*ast.TemplateLit)
	require.True(t, ok)
	require.Len(t, tmpl.Exprs, 1)
	assert.Equal(t, []string{"hello ", "!"}, tmpl.Parts)
}

func TestParseNamedArgsInCall(t *testing.T) {
	src := `const x = note(C4, q, velocity: 90)`
	prog, err := Parse(src, "test.sg")
	require.Nil(t, err)
	c := prog.Body[0].(*ast.ConstDecl)
	call := c.Value.(*ast.CallExpr)
	require.Len(t, call.Args, 3)
	named, ok := call.Args[2].(*ast.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "velocity", named.Name)
}

func TestParseErrorReportsExpectedToken(t *testing.T) {
	src := `fn f( {`
	_, err := Parse(src, "test.sg")
	require.NotNil(t, err)
}
