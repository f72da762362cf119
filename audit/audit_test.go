package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(op string, generation uint64) *Entry {
	return &Entry{
		Operation:  op,
		Account:    "0xalice",
		State:      "data_submitted",
		Generation: generation,
		Digest:     CiphertextDigest([]byte{0x01, 0x02}),
		Timestamp:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestEmptyTrail(t *testing.T) {
	trail := InitTrail()
	assert.Nil(t, trail.Root())
	assert.Equal(t, 0, trail.Len())

	ok, err := trail.Contains(entry("submit", 1))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = trail.Verify()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppendAdvancesRoot(t *testing.T) {
	trail := InitTrail()

	first := entry("submit", 1)
	root0, err := trail.Append(first)
	require.NoError(t, err)
	assert.NotEmpty(t, root0)

	second := entry("compute", 1)
	root1, err := trail.Append(second)
	require.NoError(t, err)
	assert.NotEqual(t, root0, root1)
	assert.Equal(t, root1, trail.Root())
	assert.Equal(t, 2, trail.Len())

	for _, e := range []*Entry{first, second} {
		ok, err := trail.Contains(e)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := trail.Contains(entry("reveal", 1))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = trail.Verify()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCiphertextDigest(t *testing.T) {
	assert.Equal(t, "", CiphertextDigest(nil))
	assert.Len(t, CiphertextDigest([]byte{0x01}), 64)
}

type entryStore struct {
	entries [][]byte
	down    bool
}

func (s *entryStore) ListAuditEntries() ([][]byte, error) {
	return s.entries, nil
}

func (s *entryStore) InsertAuditEntry(raw []byte) error {
	if s.down {
		return errors.New("connection refused")
	}
	s.entries = append(s.entries, raw)
	return nil
}

func TestLoadTrail(t *testing.T) {
	store := &entryStore{}

	trail, err := LoadTrail(store)
	require.NoError(t, err)
	assert.Nil(t, trail.Root())

	first := entry("submit", 1)
	second := entry("compute", 1)
	_, err = trail.Append(first)
	require.NoError(t, err)
	root, err := trail.Append(second)
	require.NoError(t, err)
	assert.Len(t, store.entries, 2)

	reloaded, err := LoadTrail(store)
	require.NoError(t, err)
	assert.Equal(t, root, reloaded.Root())
	assert.Equal(t, 2, reloaded.Len())

	ok, err := reloaded.Contains(second)
	require.NoError(t, err)
	assert.True(t, ok)

	third := entry("reveal", 1)
	_, err = reloaded.Append(third)
	require.NoError(t, err)
	assert.Len(t, store.entries, 3)
}

func TestAppendPersistFailureLeavesTrailUnchanged(t *testing.T) {
	store := &entryStore{}
	trail, err := LoadTrail(store)
	require.NoError(t, err)

	root, err := trail.Append(entry("submit", 1))
	require.NoError(t, err)

	store.down = true
	_, err = trail.Append(entry("compute", 1))
	assert.Error(t, err)
	assert.Equal(t, root, trail.Root())
	assert.Equal(t, 1, trail.Len())

	ok, err := trail.Contains(entry("compute", 1))
	require.NoError(t, err)
	assert.False(t, ok)

	store.down = false
	_, err = trail.Append(entry("compute", 1))
	require.NoError(t, err)
	assert.Equal(t, 2, trail.Len())
	assert.Len(t, store.entries, 2)

	reloaded, err := LoadTrail(store)
	require.NoError(t, err)
	assert.Equal(t, trail.Root(), reloaded.Root())
}
