package ledger

import (
	"encoding/hex"
	"time"

	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/state"
	uuid "github.com/kthomas/go.uuid"
)

const (
	OperationSubmit  = "submit"
	OperationCompute = "compute"
	OperationReveal  = "reveal"
	OperationView    = "view"
	OperationGrant   = "grant"
	OperationRevoke  = "revoke"
)

// Receipt is returned for every ledger operation
type Receipt struct {
	ID            uuid.UUID   `json:"id"`
	Operation     string      `json:"operation"`
	Account       string      `json:"account"`
	Requester     string      `json:"requester,omitempty"`
	Validator     string      `json:"validator,omitempty"`
	State         state.State `json:"state"`
	Generation    uint64      `json:"generation"`
	Timestamp     time.Time   `json:"timestamp"`
	RevealedScore *uint64     `json:"revealed_score,omitempty"`
	Rating        *string     `json:"rating,omitempty"`
	AuditRoot     *string     `json:"audit_root,omitempty"`
}

// Status is the public view of an account's lifecycle
type Status struct {
	Account          string      `json:"account"`
	State            state.State `json:"state"`
	Generation       uint64      `json:"generation"`
	HasSubmittedData bool        `json:"has_submitted_data"`
	HasComputedScore bool        `json:"has_computed_score"`
	SubmissionTime   *time.Time  `json:"submission_time,omitempty"`
}

func newReceipt(operation, account string, st state.State, generation uint64, timestamp time.Time) *Receipt {
	id, err := uuid.NewV4()
	if err != nil {
		common.Log.Warningf("failed to generate receipt id; %s", err.Error())
	}

	return &Receipt{
		ID:         id,
		Operation:  operation,
		Account:    account,
		State:      st,
		Generation: generation,
		Timestamp:  timestamp,
	}
}

func (r *Receipt) withAuditRoot(root []byte) *Receipt {
	if len(root) > 0 {
		r.AuditRoot = common.StringOrNil(hex.EncodeToString(root))
	}
	return r
}
