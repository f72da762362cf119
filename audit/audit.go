/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aquariusluo/creditscore/common"
	"github.com/providenetwork/merkletree"
)

// Entry is a single committed ledger transition; it never carries plaintext
// attributes or scores
type Entry struct {
	Operation  string    `json:"operation"`
	Account    string    `json:"account"`
	Requester  string    `json:"requester,omitempty"`
	State      string    `json:"state"`
	Generation uint64    `json:"generation"`
	Digest     string    `json:"digest,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CiphertextDigest returns the hex sha256 digest recorded for a ciphertext
func CiphertextDigest(ct []byte) string {
	if len(ct) == 0 {
		return ""
	}
	return common.SHA256Bytes(ct)
}

// entryContent is the merkle tree content for an entry
type entryContent struct {
	value []byte
}

// CalculateHash returns the sha256 digest of the encoded entry
func (ec *entryContent) CalculateHash() ([]byte, error) {
	digest := sha256.Sum256(ec.value)
	return digest[:], nil
}

// Equals returns true if the given content hashes to the same digest
func (ec *entryContent) Equals(other merkletree.Content) (bool, error) {
	h0, err := ec.CalculateHash()
	if err != nil {
		return false, err
	}

	h1, err := other.CalculateHash()
	if err != nil {
		return false, err
	}

	return bytes.Equal(h0, h1), nil
}

func contentFactory(entry *Entry) (*entryContent, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit entry; %s", err.Error())
	}
	return &entryContent{value: raw}, nil
}

// Store persists encoded audit entries in append order
type Store interface {
	ListAuditEntries() ([][]byte, error)
	InsertAuditEntry(raw []byte) error
}

// Trail is an append-only merkle tree of ledger transitions
type Trail struct {
	mutex  sync.RWMutex
	store  Store
	tree   *merkletree.MerkleTree
	values []merkletree.Content
}

// InitTrail returns an empty, process-local audit trail
func InitTrail() *Trail {
	return &Trail{
		values: make([]merkletree.Content, 0),
	}
}

// LoadTrail rebuilds the trail from the given store and verifies it; entries
// appended afterwards are persisted to the store
func LoadTrail(store Store) (*Trail, error) {
	raw, err := store.ListAuditEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries; %s", err.Error())
	}

	t := &Trail{
		store:  store,
		values: make([]merkletree.Content, 0, len(raw)),
	}
	if len(raw) == 0 {
		return t, nil
	}

	for _, val := range raw {
		t.values = append(t.values, &entryContent{value: val})
	}

	t.tree, err = merkletree.NewTreeWithHashStrategy(t.values, sha256.New)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild audit trail; %s", err.Error())
	}

	valid, err := t.tree.VerifyTree()
	if err != nil {
		return nil, fmt.Errorf("failed to verify audit trail; %s", err.Error())
	}
	if !valid {
		return nil, fmt.Errorf("failed to verify audit trail of %d entries", len(raw))
	}

	common.Log.Debugf("imported audit trail of %d entries; root: %s", len(raw), hex.EncodeToString(t.tree.MerkleRoot()))
	return t, nil
}

// Append commits the entry and returns the new root
func (t *Trail) Append(entry *Entry) ([]byte, error) {
	content, err := contentFactory(entry)
	if err != nil {
		return nil, err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	values := make([]merkletree.Content, 0, len(t.values)+1)
	values = append(values, t.values...)
	values = append(values, content)

	tree, err := merkletree.NewTreeWithHashStrategy(values, sha256.New)
	if err != nil {
		return nil, fmt.Errorf("failed to append audit entry; %s", err.Error())
	}

	// the committed tree only advances once the entry is durable
	if t.store != nil {
		if err := t.store.InsertAuditEntry(content.value); err != nil {
			return nil, fmt.Errorf("failed to persist audit entry; %s", err.Error())
		}
	}

	t.tree = tree
	t.values = values

	root := t.tree.MerkleRoot()
	common.Log.Tracef("appended %s audit entry for %s; root: %s", entry.Operation, entry.Account, hex.EncodeToString(root))
	return root, nil
}

// Root returns the current root, or nil for an empty trail
func (t *Trail) Root() []byte {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.tree == nil {
		return nil
	}
	return t.tree.MerkleRoot()
}

// Len returns the number of committed entries
func (t *Trail) Len() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.values)
}

// Contains returns true if the entry has been committed to the trail
func (t *Trail) Contains(entry *Entry) (bool, error) {
	content, err := contentFactory(entry)
	if err != nil {
		return false, err
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.tree == nil {
		return false, nil
	}
	return t.tree.VerifyContent(content)
}

// Verify recomputes the tree and checks it against the stored root
func (t *Trail) Verify() (bool, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.tree == nil {
		return true, nil
	}
	return t.tree.VerifyTree()
}
