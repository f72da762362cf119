package memory

import (
	"sort"
	"sync"

	"github.com/aquariusluo/creditscore/store/providers"
)

// Memory is a process-local record, grant and audit entry store
type Memory struct {
	mutex   sync.RWMutex
	records map[string]*providers.Record
	grants  map[string]map[string]struct{}
	audit   [][]byte
}

// InitMemoryProvider returns an empty in-memory provider
func InitMemoryProvider() *Memory {
	return &Memory{
		records: map[string]*providers.Record{},
		grants:  map[string]map[string]struct{}{},
	}
}

// Load returns a copy of the record for the given account, or nil
func (m *Memory) Load(account string) (*providers.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.records[account].Clone(), nil
}

// Save stores a copy of the given record
func (m *Memory) Save(record *providers.Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records[record.Account] = record.Clone()
	return nil
}

// ListGrants returns the validators of each owner, sorted
func (m *Memory) ListGrants() (map[string][]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	grants := make(map[string][]string, len(m.grants))
	for owner, validators := range m.grants {
		for validator := range validators {
			grants[owner] = append(grants[owner], validator)
		}
		sort.Strings(grants[owner])
	}
	return grants, nil
}

// InsertGrant records an active grant
func (m *Memory) InsertGrant(owner, validator string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.grants[owner] == nil {
		m.grants[owner] = map[string]struct{}{}
	}
	m.grants[owner][validator] = struct{}{}
	return nil
}

// DeleteGrant removes a grant if present
func (m *Memory) DeleteGrant(owner, validator string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.grants[owner], validator)
	if len(m.grants[owner]) == 0 {
		delete(m.grants, owner)
	}
	return nil
}

// ListAuditEntries returns copies of the audit entries in append order
func (m *Memory) ListAuditEntries() ([][]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entries := make([][]byte, len(m.audit))
	for i, raw := range m.audit {
		entries[i] = append([]byte(nil), raw...)
	}
	return entries, nil
}

// InsertAuditEntry appends a copy of the encoded entry
func (m *Memory) InsertAuditEntry(raw []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.audit = append(m.audit, append([]byte(nil), raw...))
	return nil
}
