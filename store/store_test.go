package store

import (
	"testing"
	"time"

	"github.com/aquariusluo/creditscore/state"
	"github.com/aquariusluo/creditscore/store/providers"
	"github.com/aquariusluo/creditscore/store/providers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitFromEmpty(t *testing.T) {
	s := InitStore(memory.InitMemoryProvider())

	ok, err := s.HasSubmittedData("0xabc")
	require.NoError(t, err)
	assert.False(t, ok)

	submittedAt, err := s.GetSubmissionTime("0xabc")
	require.NoError(t, err)
	assert.Nil(t, submittedAt)

	now := time.Unix(1700000000, 0)
	record, err := s.Submit("0xabc", []byte{1}, []byte{2}, []byte{3}, now)
	require.NoError(t, err)
	assert.Equal(t, state.DataSubmitted, record.State)
	assert.Equal(t, uint64(1), record.Generation)

	ok, _ = s.HasSubmittedData("0xabc")
	assert.True(t, ok)
	ok, _ = s.HasComputedScore("0xabc")
	assert.False(t, ok)

	submittedAt, _ = s.GetSubmissionTime("0xabc")
	require.NotNil(t, submittedAt)
	assert.True(t, now.Equal(*submittedAt))
}

func TestResubmitDiscardsScore(t *testing.T) {
	s := InitStore(memory.InitMemoryProvider())

	record, err := s.Submit("0xabc", []byte{1}, []byte{2}, []byte{3}, time.Now())
	require.NoError(t, err)

	now := time.Now()
	score := uint64(242)
	record.State = state.ScoreRevealed
	record.ScoreCiphertext = []byte{4}
	record.ComputedAt = &now
	record.RevealedScore = &score
	record.RevealedAt = &now
	require.NoError(t, s.Save(record))

	ok, _ := s.HasComputedScore("0xabc")
	assert.True(t, ok)

	record, err = s.Submit("0xabc", []byte{5}, []byte{6}, []byte{7}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, state.DataSubmitted, record.State)
	assert.Equal(t, uint64(2), record.Generation)

	loaded, err := s.Get("0xabc")
	require.NoError(t, err)
	assert.Nil(t, loaded.ScoreCiphertext)
	assert.Nil(t, loaded.RevealedScore)
	assert.Nil(t, loaded.ComputedAt)
	assert.Nil(t, loaded.RevealedAt)
	assert.Equal(t, []byte{5}, loaded.IncomeCiphertext)
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	s := InitStore(memory.InitMemoryProvider())

	record, err := s.Submit("0xabc", []byte{1}, []byte{2}, []byte{3}, time.Now())
	require.NoError(t, err)

	record.State = state.ScoreComputed
	assert.Error(t, s.Save(record))

	loaded, _ := s.Get("0xabc")
	assert.Equal(t, state.DataSubmitted, loaded.State)
}

func TestStoreProviderFactory(t *testing.T) {
	p, err := StoreProviderFactory("memory")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = StoreProviderFactory("redis")
	assert.Error(t, err)
}

func TestLoadRejectsInconsistentRecord(t *testing.T) {
	m := memory.InitMemoryProvider()
	s := InitStore(m)

	// revealed without a revealed score or reveal time, as a hand-edited row would be
	record := providers.NewRecord("0xabc")
	record.State = state.ScoreRevealed
	require.NoError(t, m.Save(record))

	_, err := s.Get("0xabc")
	assert.ErrorContains(t, err, "inconsistent account record for 0xabc")

	_, err = s.Require("0xabc")
	assert.Error(t, err)

	_, err = s.HasComputedScore("0xabc")
	assert.Error(t, err)
}
