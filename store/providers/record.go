package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/state"
)

// Record is the per-account ledger entry; it only ever holds ciphertexts of
// the submitted attributes and computed score
type Record struct {
	Account           string      `json:"account"`
	IncomeCiphertext  []byte      `json:"-"`
	AssetsCiphertext  []byte      `json:"-"`
	HistoryCiphertext []byte      `json:"-"`
	ScoreCiphertext   []byte      `json:"-"`
	RevealedScore     *uint64     `json:"revealed_score,omitempty"`
	State             state.State `json:"state"`
	Generation        uint64      `json:"generation"`
	SubmittedAt       *time.Time  `json:"submitted_at,omitempty"`
	ComputedAt        *time.Time  `json:"computed_at,omitempty"`
	RevealedAt        *time.Time  `json:"revealed_at,omitempty"`
}

// NewRecord returns an empty record for the given account
func NewRecord(account string) *Record {
	return &Record{
		Account: account,
		State:   state.Empty,
	}
}

// Validate returns an error if the record violates the lifecycle invariants
func (r *Record) Validate() error {
	if r.Account == "" {
		return errors.New("account required")
	}

	attrs := r.IncomeCiphertext != nil && r.AssetsCiphertext != nil && r.HistoryCiphertext != nil
	if r.State.HasSubmission() != attrs {
		return fmt.Errorf("attribute ciphertexts inconsistent with %s state", r.State)
	}
	if r.State.HasSubmission() != (r.SubmittedAt != nil) {
		return fmt.Errorf("submission time inconsistent with %s state", r.State)
	}
	if r.State.HasScore() != (r.ScoreCiphertext != nil) {
		return fmt.Errorf("score ciphertext inconsistent with %s state", r.State)
	}
	if r.State.HasScore() != (r.ComputedAt != nil) {
		return fmt.Errorf("computation time inconsistent with %s state", r.State)
	}
	if r.State.IsRevealed() != (r.RevealedScore != nil) || r.State.IsRevealed() != (r.RevealedAt != nil) {
		return fmt.Errorf("revealed score inconsistent with %s state", r.State)
	}
	if r.State.HasSubmission() && r.Generation == 0 {
		return errors.New("generation must be positive once data has been submitted")
	}

	return nil
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	return &Record{
		Account:           r.Account,
		IncomeCiphertext:  cloneBytes(r.IncomeCiphertext),
		AssetsCiphertext:  cloneBytes(r.AssetsCiphertext),
		HistoryCiphertext: cloneBytes(r.HistoryCiphertext),
		ScoreCiphertext:   cloneBytes(r.ScoreCiphertext),
		RevealedScore:     common.Uint64OrNil(r.RevealedScore),
		State:             r.State,
		Generation:        r.Generation,
		SubmittedAt:       cloneTime(r.SubmittedAt),
		ComputedAt:        cloneTime(r.ComputedAt),
		RevealedAt:        cloneTime(r.RevealedAt),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
