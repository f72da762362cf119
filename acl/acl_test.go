package acl

import (
	"errors"
	"testing"

	"github.com/aquariusluo/creditscore/store/providers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*memory.Memory
	failDelete bool
}

func (s *failingStore) InsertGrant(owner, validator string) error {
	return errors.New("connection refused")
}

func (s *failingStore) DeleteGrant(owner, validator string) error {
	if s.failDelete {
		return errors.New("connection refused")
	}
	return s.Memory.DeleteGrant(owner, validator)
}

func TestOwnerOnlyGrants(t *testing.T) {
	r, err := InitRegistry(nil)
	require.NoError(t, err)

	_, err = r.Grant("0xmallory", "0xalice", "0xmallory")
	assert.True(t, errors.Is(err, ErrNotOwner))
	assert.False(t, r.IsAuthorized("0xalice", "0xmallory"))

	_, err = r.Revoke("0xmallory", "0xalice", "0xbob")
	assert.True(t, errors.Is(err, ErrNotOwner))
}

func TestGrantRevokeSymmetry(t *testing.T) {
	r, err := InitRegistry(nil)
	require.NoError(t, err)

	empty := r.Root()
	assert.True(t, r.IsAuthorized("0xalice", "0xalice"))
	assert.False(t, r.IsAuthorized("0xalice", "0xbob"))

	changed, err := r.Grant("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, r.IsAuthorized("0xalice", "0xbob"))
	assert.False(t, r.IsAuthorized("0xbob", "0xalice"))
	assert.True(t, r.Verify("0xalice", "0xbob"))
	assert.NotEqual(t, empty, r.Root())

	changed, err = r.Grant("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = r.Revoke("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, r.IsAuthorized("0xalice", "0xbob"))
	assert.False(t, r.Verify("0xalice", "0xbob"))
	assert.Equal(t, empty, r.Root())

	changed, err = r.Revoke("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSelfGrantIsNoop(t *testing.T) {
	r, _ := InitRegistry(nil)

	changed, err := r.Grant("0xalice", "0xalice", "0xalice")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, r.Validators("0xalice"))
}

func TestValidatorsSorted(t *testing.T) {
	r, _ := InitRegistry(nil)

	for _, v := range []string{"0xcarol", "0xbob", "0xdave"} {
		_, err := r.Grant("0xalice", "0xalice", v)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"0xbob", "0xcarol", "0xdave"}, r.Validators("0xalice"))
	assert.Empty(t, r.Validators("0xbob"))
}

func TestRegistryLoadsFromStore(t *testing.T) {
	store := memory.InitMemoryProvider()
	r, err := InitRegistry(store)
	require.NoError(t, err)

	_, err = r.Grant("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)

	reloaded, err := InitRegistry(store)
	require.NoError(t, err)
	assert.True(t, reloaded.IsAuthorized("0xalice", "0xbob"))
	assert.Equal(t, r.Root(), reloaded.Root())

	_, err = r.Revoke("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)

	reloaded, err = InitRegistry(store)
	require.NoError(t, err)
	assert.False(t, reloaded.IsAuthorized("0xalice", "0xbob"))
}

func TestGrantStoreFailureLeavesRegistryUnchanged(t *testing.T) {
	r, err := InitRegistry(&failingStore{Memory: memory.InitMemoryProvider()})
	require.NoError(t, err)

	root := r.Root()
	_, err = r.Grant("0xalice", "0xalice", "0xbob")
	assert.Error(t, err)
	assert.False(t, r.IsAuthorized("0xalice", "0xbob"))
	assert.Equal(t, root, r.Root())
}

func TestRevokeStoreFailureRestoresGrant(t *testing.T) {
	m := memory.InitMemoryProvider()
	require.NoError(t, m.InsertGrant("0xalice", "0xbob"))

	store := &failingStore{Memory: m, failDelete: true}
	r, err := InitRegistry(store)
	require.NoError(t, err)
	require.True(t, r.IsAuthorized("0xalice", "0xbob"))

	root := r.Root()
	changed, err := r.Revoke("0xalice", "0xalice", "0xbob")
	assert.Error(t, err)
	assert.False(t, changed)
	assert.True(t, r.IsAuthorized("0xalice", "0xbob"))
	assert.True(t, r.Verify("0xalice", "0xbob"))
	assert.Equal(t, root, r.Root())

	store.failDelete = false
	changed, err = r.Revoke("0xalice", "0xalice", "0xbob")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, r.IsAuthorized("0xalice", "0xbob"))
}
