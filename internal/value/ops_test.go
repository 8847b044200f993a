package value

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafo/songc/internal/music"
)

func TestAddConcatenatesStrings(t *testing.T) {
	out, err := Add(Str("hel"), Str("lo"))
	require.NoError(t, err)
	assert.Equal(t, "hello", out.AsString())
}

func TestAddCoercesNonStringOperandToString(t *testing.T) {
	out, err := Add(Str("n="), Int(5))
	require.NoError(t, err)
	assert.Equal(t, "n=5", out.AsString())
}

func TestAddRejectsStringConcatenationBeyondCap(t *testing.T) {
	big := Str(strings.Repeat("x", maxStringBytes))
	_, err := Add(big, Str("y"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStringCapExceeded))
}

func TestAddIntAndFloatWidensToFloat(t *testing.T) {
	out, err := Add(Int(2), Float(1.5))
	require.NoError(t, err)
	assert.Equal(t, 3.5, out.AsFloat())
}

func TestAddPitchAndIntTransposesClamped(t *testing.T) {
	out, err := Add(PitchVal(music.Pitch(125)), Int(10))
	require.NoError(t, err)
	assert.Equal(t, music.Pitch(127), out.AsPitch())
}
