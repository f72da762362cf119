package ledger

import (
	"testing"

	"github.com/aquariusluo/creditscore/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleComputeScoreMessage(t *testing.T) {
	f := requireFixture(t)
	l := f.ledger

	assert.True(t, l.handleComputeScoreMessage([]byte("not json")))
	assert.True(t, l.handleComputeScoreMessage([]byte(`{"account": 42}`)))

	// not submitted; redelivery cannot help
	assert.True(t, l.handleComputeScoreMessage([]byte(`{"account": "0xalice"}`)))
	requireState(t, l, "0xalice", state.Empty)

	_, err := l.Submit("0xalice", 150, 500, 85)
	require.NoError(t, err)

	f.provider.failScale = true
	assert.False(t, l.handleComputeScoreMessage([]byte(`{"account": "0xalice"}`)))
	requireState(t, l, "0xalice", state.DataSubmitted)
	f.provider.failScale = false

	assert.True(t, l.handleComputeScoreMessage([]byte(`{"account": "0xalice"}`)))
	requireState(t, l, "0xalice", state.ScoreComputed)

	receipt, err := l.RevealMyScore("0xalice", ownerKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(242), *receipt.RevealedScore)
}
