package smfwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafo/songc/internal/ir"
)

func minimalSong() *ir.SongIR {
	song := ir.NewSongIR(480)
	song.Tempos = []ir.TempoEvent{{Tick: 0, BPM: 120}}
	song.TimeSigs = []ir.TimeSigEvent{{Tick: 0, Numerator: 4, Denominator: 4}}
	track := &ir.MidiTrack{ID: "t1", Name: "lead", Channel: 0, Program: 0, DefaultVel: 100}
	keys := []int{60, 62, 64, 65}
	tick := 0
	for _, k := range keys {
		track.Events = append(track.Events, ir.TrackEvent{Kind: ir.EventNote, Tick: tick, Dur: 480, Key: k, Vel: 100})
		tick += 480
	}
	song.Tracks = []ir.Track{track}
	return song
}

func TestWriteMinimalSongHeader(t *testing.T) {
	bytes, err := Write(minimalSong())
	require.NoError(t, err)
	require.True(t, len(bytes) > 14)
	assert.Equal(t, "MThd", string(bytes[0:4]))
	// format = 1
	assert.Equal(t, []byte{0, 1}, bytes[8:10])
	// ntracks = 2 (conductor + one midi track)
	assert.Equal(t, []byte{0, 2}, bytes[10:12])
	// division = 480
	assert.Equal(t, []byte{0x01, 0xE0}, bytes[12:14])
}

func TestWriteIsByteExact(t *testing.T) {
	a, err := Write(minimalSong())
	require.NoError(t, err)
	b, err := Write(minimalSong())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteRejectsInvalidSong(t *testing.T) {
	song := ir.NewSongIR(0)
	_, err := Write(song)
	assert.Error(t, err)
}

func TestWriteRejectsOutOfRangeTempo(t *testing.T) {
	song := minimalSong()
	song.Tempos[0].BPM = 0.00001
	_, err := Write(song)
	assert.Error(t, err)
}

func TestTrackEventMessagesNoteProducesOnAndOff(t *testing.T) {
	evs, err := trackEventMessages(ir.TrackEvent{Kind: ir.EventNote, Tick: 100, Dur: 50, Key: 60, Vel: 90}, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, uint32(100), evs[0].tick)
	assert.Equal(t, uint32(150), evs[1].tick)
	assert.Equal(t, rankNoteOn, evs[0].rank)
	assert.Equal(t, rankNoteOff, evs[1].rank)
}

func TestRenderTrackComputesDeltas(t *testing.T) {
	events := []timedEvent{{tick: 0}, {tick: 100}, {tick: 100}, {tick: 250}}
	track := renderTrack(events)
	require.Len(t, track, 5) // 4 events + EOT
	assert.Equal(t, uint32(0), track[0].Delta)
	assert.Equal(t, uint32(100), track[1].Delta)
	assert.Equal(t, uint32(0), track[2].Delta)
	assert.Equal(t, uint32(150), track[3].Delta)
}
