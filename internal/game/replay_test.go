package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func recordTurns(t *testing.T, n int) []*GameRecord {
	t.Helper()
	engine, rec := newTestGame(t, []Unit{squire}, []Unit{wisp})
	states := []*GameRecord{rec}
	for i := 0; i < n-1; i++ {
		rec = mustApply(t, engine, rec, rec.ActivePlayer(), EndTurn{})
		states = append(states, rec)
	}
	return states
}

func TestReplayRecordStateCopies(t *testing.T) {
	replay := NewReplay("game-1")
	rec := recordTurns(t, 1)[0]

	replay.RecordState(rec)
	rec.Turn = 99

	require.Equal(t, 1, replay.Size())
	assert.Equal(t, 1, replay.StateAt(0).Turn)
	assert.Nil(t, replay.StateAt(1))
	assert.Nil(t, replay.StateAt(-1))
}

func TestReplayNavigation(t *testing.T) {
	replay := NewReplay("game-1")
	for _, rec := range recordTurns(t, 5) {
		replay.RecordState(rec)
	}
	assert.Equal(t, 5, replay.Size())
	assert.Equal(t, 5, replay.Final().Turn)

	replay.Start()
	assert.Equal(t, 1, replay.Next().Turn)
	assert.Equal(t, 2, replay.Next().Turn)
	assert.Equal(t, 2, replay.CurrentIndex)

	copied := replay.Copy()
	assert.Equal(t, 0, copied.CurrentIndex)
	assert.Equal(t, 1, copied.Next().Turn)
	assert.Equal(t, 2, replay.CurrentIndex, "copies keep their own cursor")
	copied.RecordState(replay.Final())
	assert.Equal(t, 5, replay.Size())

	replay.Start()
	assert.Equal(t, 4, replay.Skip(3).Turn)
	assert.Equal(t, 5, replay.Skip(10).Turn)
	assert.Equal(t, 1, replay.Skip(-10).Turn)

	replay.Skip(4)
	assert.Equal(t, 5, replay.Next().Turn)
	assert.Nil(t, replay.Next())

	assert.Nil(t, NewReplay("empty").Final())
}

func TestReplaySaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	replay := NewReplay("game-1")
	states := recordTurns(t, 4)
	for _, rec := range states {
		replay.RecordState(rec)
	}

	require.NoError(t, replay.SaveToFile(dir))
	_, err := os.Stat(filepath.Join(dir, "game-1.replay"))
	require.NoError(t, err)

	loaded, err := LoadReplayFromFile(dir, "game-1")
	require.NoError(t, err)
	assert.Equal(t, "game-1", loaded.GameID)
	require.Equal(t, len(states), loaded.Size())
	for i, rec := range states {
		assert.Equal(t, checksum(t, rec), checksum(t, loaded.StateAt(i)), "state %d", i)
	}

	_, err = LoadReplayFromFile(dir, "missing")
	assert.Error(t, err)
}

func TestReplayRecorder(t *testing.T) {
	dir := t.TempDir()
	recorder := NewReplayRecorder(zaptest.NewLogger(t), dir)
	states := recordTurns(t, 3)

	recorder.RecordState(states[0])
	assert.False(t, recorder.IsRecording("game-1"))

	recorder.StartRecording(states[0])
	assert.True(t, recorder.IsRecording("game-1"))
	for _, rec := range states[1:] {
		recorder.RecordState(rec)
	}

	replay, ok := recorder.Replay("game-1")
	require.True(t, ok)
	assert.Equal(t, 3, replay.Size())

	require.NoError(t, recorder.SaveReplay("game-1"))
	assert.False(t, recorder.IsRecording("game-1"))
	assert.Error(t, recorder.SaveReplay("game-1"))

	loaded, err := recorder.LoadReplay("game-1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Final().Turn)

	recorder.StartRecording(states[0])
	recorder.ClearReplay("game-1")
	assert.False(t, recorder.IsRecording("game-1"))
}
