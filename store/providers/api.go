package providers

// StoreProviderMemory in-memory record storage provider
const StoreProviderMemory = "memory"

// StoreProviderPostgres durable record storage provider
const StoreProviderPostgres = "postgres"

// RecordProvider provides a common interface to interact with account record storage;
// records are copied in and out so callers never share mutable state with the provider
type RecordProvider interface {
	// Load returns the record for the given account, or nil if none exists
	Load(account string) (*Record, error)

	// Save atomically persists the full record
	Save(record *Record) error
}

// GrantProvider provides durable storage for validator grants
type GrantProvider interface {
	ListGrants() (map[string][]string, error)
	InsertGrant(owner, validator string) error
	DeleteGrant(owner, validator string) error
}

// AuditProvider persists encoded audit entries in append order
type AuditProvider interface {
	ListAuditEntries() ([][]byte, error)
	InsertAuditEntry(raw []byte) error
}
