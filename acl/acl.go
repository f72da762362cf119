package acl

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"sync"

	"github.com/aquariusluo/creditscore/common"
	"github.com/providenetwork/smt"
)

// ErrNotOwner is returned when a grant or revocation is attempted by anyone
// other than the owner
var ErrNotOwner = errors.New("only the owner may manage validator grants")

// GrantStore persists grants; implemented by the record store providers
type GrantStore interface {
	ListGrants() (map[string][]string, error)
	InsertGrant(owner, validator string) error
	DeleteGrant(owner, validator string) error
}

// Registry exclusively owns validator grants and commits to the active grant
// set with a sparse merkle tree
type Registry struct {
	grants map[string]map[string]struct{}
	hash   hash.Hash
	mutex  sync.RWMutex
	store  GrantStore
	tree   *smt.SparseMerkleTree
}

// InitRegistry returns a registry seeded from the given store; store may be nil
func InitRegistry(store GrantStore) (*Registry, error) {
	h := sha256.New()
	r := &Registry{
		grants: map[string]map[string]struct{}{},
		hash:   h,
		store:  store,
		tree:   smt.NewSparseMerkleTree(smt.NewSimpleMap(), smt.NewSimpleMap(), h),
	}

	if store == nil {
		return r, nil
	}

	grants, err := store.ListGrants()
	if err != nil {
		return nil, fmt.Errorf("failed to load validator grants; %s", err.Error())
	}

	for owner, validators := range grants {
		for _, validator := range validators {
			if err := r.insert(owner, validator); err != nil {
				return nil, err
			}
		}
	}

	common.Log.Debugf("loaded validator grants for %d owner(s)", len(grants))
	return r, nil
}

func grantLeaf(owner, validator string) (key, val []byte) {
	val = []byte(fmt.Sprintf("%s/%s", owner, validator))
	digest := sha256.Sum256(val)
	return digest[:], val
}

func (r *Registry) insert(owner, validator string) error {
	if r.grants[owner] == nil {
		r.grants[owner] = map[string]struct{}{}
	}
	if _, ok := r.grants[owner][validator]; ok {
		return nil
	}

	key, val := grantLeaf(owner, validator)
	if _, err := r.tree.Update(key, val); err != nil {
		return fmt.Errorf("failed to commit grant of %s to %s; %s", owner, validator, err.Error())
	}
	r.grants[owner][validator] = struct{}{}
	return nil
}

func (r *Registry) remove(owner, validator string) error {
	if _, ok := r.grants[owner][validator]; !ok {
		return nil
	}

	key, _ := grantLeaf(owner, validator)
	if _, err := r.tree.Update(key, []byte{}); err != nil {
		return fmt.Errorf("failed to commit revocation of %s from %s; %s", validator, owner, err.Error())
	}
	delete(r.grants[owner], validator)
	if len(r.grants[owner]) == 0 {
		delete(r.grants, owner)
	}
	return nil
}

// Grant authorizes validator to view the owner's score; it returns false
// without error when the grant already exists or validator is the owner
func (r *Registry) Grant(caller, owner, validator string) (bool, error) {
	if caller != owner {
		return false, ErrNotOwner
	}
	if validator == "" {
		return false, errors.New("validator required")
	}
	if validator == owner {
		return false, nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.grants[owner][validator]; ok {
		return false, nil
	}

	if err := r.insert(owner, validator); err != nil {
		return false, err
	}

	if r.store != nil {
		if err := r.store.InsertGrant(owner, validator); err != nil {
			if rerr := r.remove(owner, validator); rerr != nil {
				common.Log.Warningf("failed to roll back unpersisted grant of %s to %s; registry diverges from store until restart; %s", owner, validator, rerr.Error())
			}
			return false, err
		}
	}

	common.Log.Debugf("granted %s access to score of %s; grant root: %s", validator, owner, hex.EncodeToString(r.tree.Root()))
	return true, nil
}

// Revoke removes a grant; it returns false without error when no grant exists
func (r *Registry) Revoke(caller, owner, validator string) (bool, error) {
	if caller != owner {
		return false, ErrNotOwner
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.grants[owner][validator]; !ok {
		return false, nil
	}

	if err := r.remove(owner, validator); err != nil {
		return false, err
	}

	if r.store != nil {
		if err := r.store.DeleteGrant(owner, validator); err != nil {
			if rerr := r.insert(owner, validator); rerr != nil {
				common.Log.Warningf("failed to roll back unpersisted revocation of %s from %s; registry diverges from store until restart; %s", validator, owner, rerr.Error())
			}
			return false, err
		}
	}

	common.Log.Debugf("revoked %s access to score of %s; grant root: %s", validator, owner, hex.EncodeToString(r.tree.Root()))
	return true, nil
}

// IsAuthorized returns true if requester is the owner or holds an active grant
func (r *Registry) IsAuthorized(owner, requester string) bool {
	if requester == owner {
		return true
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.grants[owner][requester]
	return ok
}

// Validators returns the sorted validators holding grants from owner
func (r *Registry) Validators(owner string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	validators := make([]string, 0, len(r.grants[owner]))
	for validator := range r.grants[owner] {
		validators = append(validators, validator)
	}
	sort.Strings(validators)
	return validators
}

// Root returns the current commitment over all active grants
func (r *Registry) Root() []byte {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]byte{}, r.tree.Root()...)
}

// Verify returns true if the grant is provably included under the current root
func (r *Registry) Verify(owner, validator string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key, val := grantLeaf(owner, validator)
	proof, err := r.tree.Prove(key)
	if err != nil {
		common.Log.Warningf("failed to generate grant inclusion proof; %s", err.Error())
		return false
	}
	return smt.VerifyProof(proof, r.tree.Root(), key, val, r.hash)
}
