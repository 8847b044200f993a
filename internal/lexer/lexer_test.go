package lexer

import (
	"testing"

	"github.com/leafo/songc/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeIdentifiersAndKeywords(t *testing.T) {
	toks, d := New(`fn const let x`, "").Tokenize()
	require.Nil(t, d)
	assert.Equal(t, []token.Kind{token.FN, token.CONST, token.LET, token.IDENT, token.EOF}, kinds(toks))
}

func TestTokenizePitchVsIdentifier(t *testing.T) {
	toks, d := New(`C4 Cmajor C##3 Bb2`, "").Tokenize()
	require.Nil(t, d)
	require.Len(t, toks, 5)
	assert.Equal(t, token.PITCH, toks[0].Kind)
	assert.Equal(t, int64(60), toks[0].Int)
	assert.Equal(t, token.IDENT, toks[1].Kind, "Cmajor must lex as an identifier, not a pitch")
	assert.Equal(t, token.PITCH, toks[2].Kind)
	assert.Equal(t, token.PITCH, toks[3].Kind)
}

func TestTokenizeDuration(t *testing.T) {
	toks, d := New(`q e. w`, "").Tokenize()
	require.Nil(t, d)
	require.Len(t, toks, 4)
	assert.Equal(t, token.DURATION, toks[0].Kind)
	assert.Equal(t, int64(4), toks[0].Int)
	assert.Equal(t, token.DURATION, toks[1].Kind)
	assert.Equal(t, float64(1), toks[1].Float)
}

func TestTokenizeBpm(t *testing.T) {
	toks, d := New(`120bpm`, "").Tokenize()
	require.Nil(t, d)
	require.Len(t, toks, 2)
	assert.Equal(t, token.BPM, toks[0].Kind)
	assert.Equal(t, float64(120), toks[0].Float)
}

func TestTokenizePosRef(t *testing.T) {
	toks, d := New(`4:1`, "").Tokenize()
	require.Nil(t, d)
	assert.Equal(t, token.POSREF, toks[0].Kind)
	assert.Equal(t, "4:1", toks[0].Text)
}

func TestTokenizeString(t *testing.T) {
	toks, d := New(`"hel\nlo"`, "").Tokenize()
	require.Nil(t, d)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hel\nlo", toks[0].Text)
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, d := New(`"hello`, "").Tokenize()
	require.NotNil(t, d)
	assert.Equal(t, "E101", d.Code)
}

func TestTokenizeUnknownEscapeErrors(t *testing.T) {
	_, d := New(`"\q"`, "").Tokenize()
	require.NotNil(t, d)
	assert.Equal(t, "E101", d.Code)
}

func TestTokenizeTemplateWithInterpolation(t *testing.T) {
	toks, d := New("`hello ${name}!`", "").Tokenize()
	require.Nil(t, d)
	var ks []token.Kind
	for _, tok := range toks {
		ks = append(ks, tok.Kind)
	}
	assert.Equal(t, []token.Kind{token.TEMPLATE_HEAD, token.IDENT, token.TEMPLATE_TAIL, token.EOF}, ks)
	assert.Equal(t, "hello ", toks[0].Text)
	assert.Equal(t, "!", toks[2].Text)
}

func TestTokenizeTemplateNoInterpolation(t *testing.T) {
	toks, d := New("`plain`", "").Tokenize()
	require.Nil(t, d)
	assert.Equal(t, token.TEMPLATE_FULL, toks[0].Kind)
	assert.Equal(t, "plain", toks[0].Text)
}

func TestTokenizeTemplateWithBraceInsideInterpolation(t *testing.T) {
	toks, d := New("`x ${ {a: 1}.a } y`", "").Tokenize()
	require.Nil(t, d)
	ks := kinds(toks)
	assert.Contains(t, ks, token.LBRACE)
	assert.Contains(t, ks, token.RBRACE)
	assert.Equal(t, token.TEMPLATE_TAIL, toks[len(toks)-2].Kind)
}

func TestTokenizeOperatorsByLength(t *testing.T) {
	toks, d := New(`|> || && ?? == != <= >= -> => .. ?. ...`, "").Tokenize()
	require.Nil(t, d)
	want := []token.Kind{
		token.PIPE_GT, token.OR, token.AND, token.COALESCE, token.EQ, token.NEQ,
		token.LE, token.GE, token.ARROW, token.FATARROW, token.DOTDOT, token.QDOT,
		token.ELLIPSIS, token.EOF,
	}
	assert.Equal(t, want, kinds(toks))
}

func TestTokenizeComments(t *testing.T) {
	toks, d := New("x // comment\n/* block */ y", "").Tokenize()
	require.Nil(t, d)
	assert.Equal(t, []token.Kind{token.IDENT, token.IDENT, token.EOF}, kinds(toks))
}

func TestLineColumnTracking(t *testing.T) {
	toks, d := New("x\ny", "").Tokenize()
	require.Nil(t, d)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
}
