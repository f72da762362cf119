package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/state"
	"github.com/aquariusluo/creditscore/store/providers"
	"github.com/aquariusluo/creditscore/store/providers/memory"
	"github.com/aquariusluo/creditscore/store/providers/postgres"
	dbconf "github.com/kthomas/go-db-config"
)

// Record is an account record
type Record = providers.Record

// Provider persists account records, validator grants and audit entries
type Provider interface {
	providers.RecordProvider
	providers.GrantProvider
	providers.AuditProvider
}

// StoreProviderFactory initializes the named storage provider
func StoreProviderFactory(provider string) (Provider, error) {
	switch strings.ToLower(provider) {
	case providers.StoreProviderMemory:
		return memory.InitMemoryProvider(), nil
	case providers.StoreProviderPostgres:
		return postgres.InitPostgresProvider(dbconf.DatabaseConnection()), nil
	default:
		return nil, fmt.Errorf("failed to initialize store provider; unknown provider: %s", provider)
	}
}

// Store exclusively owns account records; callers are expected to serialize
// access per account
type Store struct {
	provider providers.RecordProvider
}

// InitStore returns a store backed by the given provider
func InitStore(provider providers.RecordProvider) *Store {
	return &Store{
		provider: provider,
	}
}

// Get returns the record for the given account, or nil if none exists; a
// stored record violating the lifecycle invariants is an error
func (s *Store) Get(account string) (*Record, error) {
	record, err := s.provider.Load(account)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent account record for %s; %s", account, err.Error())
	}
	return record, nil
}

// Require returns the record for the given account, or a new empty record
func (s *Store) Require(account string) (*Record, error) {
	record, err := s.Get(account)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = providers.NewRecord(account)
	}
	return record, nil
}

// Save validates and persists the record
func (s *Store) Save(record *Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid account record for %s; %s", record.Account, err.Error())
	}
	return s.provider.Save(record)
}

// Submit overwrites the attribute ciphertexts of the given account and moves
// it to DataSubmitted, discarding any computed or revealed score
func (s *Store) Submit(account string, income, assets, history []byte, timestamp time.Time) (*Record, error) {
	record, err := s.Require(account)
	if err != nil {
		return nil, err
	}

	next, _ := record.State.Next(state.TriggerSubmit)
	submittedAt := timestamp

	updated := &Record{
		Account:           account,
		IncomeCiphertext:  income,
		AssetsCiphertext:  assets,
		HistoryCiphertext: history,
		State:             next,
		Generation:        record.Generation + 1,
		SubmittedAt:       &submittedAt,
	}

	if err := s.Save(updated); err != nil {
		return nil, err
	}

	if record.State.HasScore() {
		common.Log.Debugf("discarded %s score for %s at generation %d", record.State, account, record.Generation)
	}
	return updated, nil
}

// HasSubmittedData returns true if the account has attribute ciphertexts on record
func (s *Store) HasSubmittedData(account string) (bool, error) {
	record, err := s.Require(account)
	if err != nil {
		return false, err
	}
	return record.State.HasSubmission(), nil
}

// HasComputedScore returns true if the account has a score ciphertext on record
func (s *Store) HasComputedScore(account string) (bool, error) {
	record, err := s.Require(account)
	if err != nil {
		return false, err
	}
	return record.State.HasScore(), nil
}

// GetSubmissionTime returns the time of the latest accepted submission, or nil
func (s *Store) GetSubmissionTime(account string) (*time.Time, error) {
	record, err := s.Require(account)
	if err != nil {
		return nil, err
	}
	return record.SubmittedAt, nil
}
