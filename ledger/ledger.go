package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aquariusluo/creditscore/acl"
	"github.com/aquariusluo/creditscore/audit"
	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/fhe/providers"
	"github.com/aquariusluo/creditscore/scoring"
	"github.com/aquariusluo/creditscore/state"
	"github.com/aquariusluo/creditscore/store"
)

var accountPattern = regexp.MustCompile(`^[a-z0-9_:\-]{1,128}$`)

// Ledger is the confidential per-account credit score ledger; every mutation
// of an account record is serialized per account
type Ledger struct {
	custodyKey []byte
	locks      *accountLocks
	notifier   Notifier
	now        func() time.Time
	provider   providers.CiphertextProvider
	registry   *acl.Registry
	store      *store.Store
	trail      *audit.Trail
}

// Option configures optional ledger collaborators
type Option func(*Ledger)

// WithNotifier publishes ledger events with the given notifier
func WithNotifier(notifier Notifier) Option {
	return func(l *Ledger) {
		l.notifier = notifier
	}
}

// WithAuditTrail commits every transition to the given trail
func WithAuditTrail(trail *audit.Trail) Option {
	return func(l *Ledger) {
		l.trail = trail
	}
}

// WithCustodyKey sets the key used to serve authorized score views
func WithCustodyKey(key []byte) Option {
	return func(l *Ledger) {
		l.custodyKey = key
	}
}

// WithClock overrides the ledger time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// InitLedger returns a ledger using the given ciphertext provider, record store and grant registry
func InitLedger(provider providers.CiphertextProvider, s *store.Store, registry *acl.Registry, opts ...Option) *Ledger {
	l := &Ledger{
		locks:    newAccountLocks(),
		now:      time.Now,
		provider: provider,
		registry: registry,
		store:    s,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func requireAccount(account string) (string, error) {
	normalized := common.NormalizeAccount(account)
	if !accountPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	return normalized, nil
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC()
}

// appendAudit commits the entry; failures are logged and never undo the transition
func (l *Ledger) appendAudit(receipt *Receipt, ct []byte) {
	if l.trail == nil {
		return
	}

	root, err := l.trail.Append(&audit.Entry{
		Operation:  receipt.Operation,
		Account:    receipt.Account,
		Requester:  receipt.Requester,
		State:      receipt.State.String(),
		Generation: receipt.Generation,
		Digest:     audit.CiphertextDigest(ct),
		Timestamp:  receipt.Timestamp,
	})
	if err != nil {
		common.Log.Warningf("failed to append %s audit entry for %s; %s", receipt.Operation, receipt.Account, err.Error())
		return
	}

	receipt.withAuditRoot(root)
}

// Submit validates and encrypts the given attributes and stores them for the
// account, discarding any previously computed score
func (l *Ledger) Submit(account string, income, assets, history int64) (*Receipt, error) {
	account, err := requireAccount(account)
	if err != nil {
		return nil, err
	}

	if err := scoring.Validate(income, assets, history); err != nil {
		return nil, err
	}

	cts := make([][]byte, 0, 3)
	for _, val := range []int64{income, assets, history} {
		ct, err := l.provider.Encrypt(uint64(val))
		if err != nil {
			return nil, capabilityFailure("encrypt credit data", err)
		}
		cts = append(cts, ct)
	}

	return l.submit(account, cts[0], cts[1], cts[2])
}

// SubmitCreditData stores already-encrypted attributes for the account; each
// handle must be well-formed for the configured provider
func (l *Ledger) SubmitCreditData(account string, incomeCt, assetsCt, historyCt []byte) (*Receipt, error) {
	account, err := requireAccount(account)
	if err != nil {
		return nil, err
	}

	for _, attr := range []struct {
		field string
		ct    []byte
	}{
		{scoring.FieldIncome, incomeCt},
		{scoring.FieldAssets, assetsCt},
		{scoring.FieldHistory, historyCt},
	} {
		if len(attr.ct) == 0 {
			return nil, scoring.Missing(attr.field)
		}
		if err := l.provider.Validate(attr.ct); err != nil {
			common.Log.Debugf("rejected %s ciphertext submitted by %s; %s", attr.field, account, err.Error())
			return nil, scoring.Malformed(attr.field)
		}
	}

	return l.submit(account, incomeCt, assetsCt, historyCt)
}

func (l *Ledger) submit(account string, income, assets, history []byte) (*Receipt, error) {
	release := l.locks.acquire(account)

	now := l.timestamp()
	record, err := l.store.Submit(account, income, assets, history, now)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to submit credit data for %s; %w", account, err)
	}

	receipt := newReceipt(OperationSubmit, account, record.State, record.Generation, now)
	receipt.Requester = account
	l.appendAudit(receipt, income)
	release()

	common.Log.Debugf("accepted credit data submission for %s at generation %d", account, record.Generation)
	l.dispatchNotification(account, EventDataSubmitted, map[string]interface{}{
		"generation":      record.Generation,
		"submission_time": now,
	})

	return receipt, nil
}

// ComputeScore computes the weighted score over the account's attribute
// ciphertexts; it is only permitted once per submission
func (l *Ledger) ComputeScore(account string) (*Receipt, error) {
	account, err := requireAccount(account)
	if err != nil {
		return nil, err
	}

	release := l.locks.acquire(account)
	defer func() {
		if release != nil {
			release()
		}
	}()

	record, err := l.store.Require(account)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account record for %s; %w", account, err)
	}

	next, ok := record.State.Next(state.TriggerCompute)
	if !ok {
		return nil, fmt.Errorf("%w; account %s is %s", ErrNotSubmitted, account, record.State)
	}

	scoreCt, err := scoring.WeightedScore(l.provider, record.IncomeCiphertext, record.AssetsCiphertext, record.HistoryCiphertext)
	if err != nil {
		return nil, capabilityFailure("compute weighted score", err)
	}

	now := l.timestamp()
	updated := record.Clone()
	updated.ScoreCiphertext = scoreCt
	updated.State = next
	updated.ComputedAt = &now

	if err := l.store.Save(updated); err != nil {
		return nil, fmt.Errorf("failed to persist computed score for %s; %w", account, err)
	}

	receipt := newReceipt(OperationCompute, account, updated.State, updated.Generation, now)
	receipt.Requester = account
	l.appendAudit(receipt, scoreCt)
	release()
	release = nil

	common.Log.Debugf("computed encrypted score for %s at generation %d", account, updated.Generation)
	l.dispatchNotification(account, EventScoreComputed, map[string]interface{}{
		"generation": updated.Generation,
	})

	return receipt, nil
}

// ComputeMyScore computes the caller's own score
func (l *Ledger) ComputeMyScore(account string) (*Receipt, error) {
	return l.ComputeScore(account)
}

// Reveal decrypts the owner's score with the requester-supplied key; only the
// owner's reveal is recorded on the owner's record
func (l *Ledger) Reveal(owner, requester string, key []byte) (*Receipt, error) {
	owner, err := requireAccount(owner)
	if err != nil {
		return nil, err
	}
	requester, err = requireAccount(requester)
	if err != nil {
		return nil, err
	}

	if !l.registry.IsAuthorized(owner, requester) {
		return nil, fmt.Errorf("%w; %s may not reveal the score of %s", ErrUnauthorized, requester, owner)
	}

	release := l.locks.acquire(owner)
	defer func() {
		if release != nil {
			release()
		}
	}()

	record, err := l.store.Require(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account record for %s; %w", owner, err)
	}

	next, ok := record.State.Next(state.TriggerReveal)
	if !ok {
		return nil, fmt.Errorf("%w; account %s is %s", ErrNotComputed, owner, record.State)
	}

	weighted, err := l.provider.Decrypt(record.ScoreCiphertext, key)
	if err != nil {
		return nil, capabilityFailure("decrypt score", err)
	}
	score := scoring.Unscale(weighted)

	now := l.timestamp()
	st := record.State
	if requester == owner && !record.State.IsRevealed() {
		updated := record.Clone()
		updated.State = next
		updated.RevealedScore = &score
		updated.RevealedAt = &now

		if err := l.store.Save(updated); err != nil {
			return nil, fmt.Errorf("failed to persist revealed score for %s; %w", owner, err)
		}
		st = updated.State
	}

	receipt := newReceipt(OperationReveal, owner, st, record.Generation, now)
	receipt.Requester = requester
	receipt.RevealedScore = &score
	receipt.Rating = common.StringOrNil(scoring.Rating(score))
	if st != record.State {
		l.appendAudit(receipt, record.ScoreCiphertext)
	}
	release()
	release = nil

	common.Log.Debugf("revealed score of %s to %s at generation %d", owner, requester, record.Generation)
	l.dispatchNotification(requester, EventScoreRevealed, map[string]interface{}{
		"owner":          owner,
		"generation":     record.Generation,
		"revealed_score": score,
	})

	return receipt, nil
}

// RevealMyScore decrypts the caller's own score and records it on the caller's record
func (l *Ledger) RevealMyScore(account string, key []byte) (*Receipt, error) {
	return l.Reveal(account, account, key)
}

// ViewAuthorizedScore decrypts the owner's current score for an authorized
// requester using the ledger's custody key; it never mutates the record
func (l *Ledger) ViewAuthorizedScore(requester, owner string) (*Receipt, error) {
	owner, err := requireAccount(owner)
	if err != nil {
		return nil, err
	}
	requester, err = requireAccount(requester)
	if err != nil {
		return nil, err
	}

	if !l.registry.IsAuthorized(owner, requester) {
		return nil, fmt.Errorf("%w; %s may not view the score of %s", ErrUnauthorized, requester, owner)
	}

	record, err := l.store.Require(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account record for %s; %w", owner, err)
	}
	if !record.State.HasScore() {
		return nil, fmt.Errorf("%w; account %s is %s", ErrNotComputed, owner, record.State)
	}

	if len(l.custodyKey) == 0 {
		return nil, capabilityFailure("decrypt score", errors.New("no custody decryption key configured"))
	}

	weighted, err := l.provider.Decrypt(record.ScoreCiphertext, l.custodyKey)
	if err != nil {
		return nil, capabilityFailure("decrypt score", err)
	}
	score := scoring.Unscale(weighted)

	receipt := newReceipt(OperationView, owner, record.State, record.Generation, l.timestamp())
	receipt.Requester = requester
	receipt.RevealedScore = &score
	receipt.Rating = common.StringOrNil(scoring.Rating(score))

	common.Log.Debugf("served authorized view of score of %s to %s", owner, requester)
	return receipt, nil
}

// GetMyScore returns the owner's stored revealed score
func (l *Ledger) GetMyScore(account string) (*Receipt, error) {
	account, err := requireAccount(account)
	if err != nil {
		return nil, err
	}

	record, err := l.store.Require(account)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account record for %s; %w", account, err)
	}
	if !record.State.IsRevealed() {
		return nil, fmt.Errorf("%w; account %s is %s", ErrNotRevealed, account, record.State)
	}

	receipt := newReceipt(OperationReveal, account, record.State, record.Generation, *record.RevealedAt)
	receipt.Requester = account
	receipt.RevealedScore = common.Uint64OrNil(record.RevealedScore)
	receipt.Rating = common.StringOrNil(scoring.Rating(*record.RevealedScore))
	return receipt, nil
}

// Grant authorizes validator to reveal and view the owner's score; only the
// owner may grant
func (l *Ledger) Grant(caller, owner, validator string) (*Receipt, error) {
	return l.updateGrant(OperationGrant, caller, owner, validator)
}

// Revoke withdraws a validator grant; only the owner may revoke
func (l *Ledger) Revoke(caller, owner, validator string) (*Receipt, error) {
	return l.updateGrant(OperationRevoke, caller, owner, validator)
}

// GrantValidatorAccess grants validator access to the caller's score
func (l *Ledger) GrantValidatorAccess(account, validator string) (*Receipt, error) {
	return l.Grant(account, account, validator)
}

// RevokeValidatorAccess revokes validator access to the caller's score
func (l *Ledger) RevokeValidatorAccess(account, validator string) (*Receipt, error) {
	return l.Revoke(account, account, validator)
}

func (l *Ledger) updateGrant(operation, caller, owner, validator string) (*Receipt, error) {
	caller, err := requireAccount(caller)
	if err != nil {
		return nil, err
	}
	owner, err = requireAccount(owner)
	if err != nil {
		return nil, err
	}
	validator, err = requireAccount(validator)
	if err != nil {
		return nil, err
	}

	// resolved before the registry is mutated; a failed load leaves grants untouched
	record, err := l.store.Require(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account record for %s; %w", owner, err)
	}

	var changed bool
	event := EventAccessGranted
	if operation == OperationGrant {
		changed, err = l.registry.Grant(caller, owner, validator)
	} else {
		event = EventAccessRevoked
		changed, err = l.registry.Revoke(caller, owner, validator)
	}
	if errors.Is(err, acl.ErrNotOwner) {
		return nil, fmt.Errorf("%w; %s may not %s access to the score of %s", ErrUnauthorized, caller, operation, owner)
	} else if err != nil {
		return nil, fmt.Errorf("failed to %s validator access; %w", operation, err)
	}

	receipt := newReceipt(operation, owner, record.State, record.Generation, l.timestamp())
	receipt.Requester = caller
	receipt.Validator = validator

	if changed {
		l.appendAudit(receipt, l.registry.Root())
		common.Log.Debugf("%s of validator access to %s by %s committed", operation, validator, owner)
		l.dispatchNotification(owner, event, map[string]interface{}{
			"validator": validator,
		})
		l.dispatchNotification(validator, event, map[string]interface{}{
			"owner": owner,
		})
	}

	return receipt, nil
}

// Validators returns the validators currently authorized by owner
func (l *Ledger) Validators(owner string) ([]string, error) {
	owner, err := requireAccount(owner)
	if err != nil {
		return nil, err
	}
	return l.registry.Validators(owner), nil
}

// GrantsRoot returns the commitment over all active validator grants
func (l *Ledger) GrantsRoot() []byte {
	return l.registry.Root()
}

// HasSubmittedData returns true if the account has attribute ciphertexts on record
func (l *Ledger) HasSubmittedData(account string) (bool, error) {
	account, err := requireAccount(account)
	if err != nil {
		return false, err
	}
	return l.store.HasSubmittedData(account)
}

// HasComputedScore returns true if the account has a score ciphertext on record
func (l *Ledger) HasComputedScore(account string) (bool, error) {
	account, err := requireAccount(account)
	if err != nil {
		return false, err
	}
	return l.store.HasComputedScore(account)
}

// GetSubmissionTime returns the time of the account's latest submission, or nil
func (l *Ledger) GetSubmissionTime(account string) (*time.Time, error) {
	account, err := requireAccount(account)
	if err != nil {
		return nil, err
	}
	return l.store.GetSubmissionTime(account)
}

// State returns the lifecycle state of the account
func (l *Ledger) State(account string) (state.State, error) {
	status, err := l.Status(account)
	if err != nil {
		return state.Empty, err
	}
	return status.State, nil
}

// Status returns the public lifecycle view of the account
func (l *Ledger) Status(account string) (*Status, error) {
	account, err := requireAccount(account)
	if err != nil {
		return nil, err
	}

	record, err := l.store.Require(account)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account record for %s; %w", account, err)
	}

	return &Status{
		Account:          account,
		State:            record.State,
		Generation:       record.Generation,
		HasSubmittedData: record.State.HasSubmission(),
		HasComputedScore: record.State.HasScore(),
		SubmissionTime:   record.SubmittedAt,
	}, nil
}
