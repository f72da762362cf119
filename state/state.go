package state

import "fmt"

// State is the lifecycle state of an account record; it can only be changed
// as a result of a valid transition
type State string

// Trigger is an operation which may cause a state transition
type Trigger string

const (
	// Empty is the initial state of every account
	Empty State = "empty"

	// DataSubmitted means encrypted attributes are present and no score has been computed
	DataSubmitted State = "data_submitted"

	// ScoreComputed means the encrypted score is present but has not been revealed to the owner
	ScoreComputed State = "score_computed"

	// ScoreRevealed means the owner has decrypted the current score
	ScoreRevealed State = "score_revealed"
)

const (
	TriggerSubmit  Trigger = "submit"
	TriggerCompute Trigger = "compute"
	TriggerReveal  Trigger = "reveal"
)

// Parse returns the state for the given string; the zero value maps to Empty
func Parse(s string) (State, error) {
	switch State(s) {
	case "", Empty:
		return Empty, nil
	case DataSubmitted, ScoreComputed, ScoreRevealed:
		return State(s), nil
	}
	return Empty, fmt.Errorf("unknown account state: %s", s)
}

// Next returns the state reached by applying the trigger to s, and false if
// the transition is not permitted
func (s State) Next(trigger Trigger) (State, bool) {
	switch trigger {
	case TriggerSubmit:
		return DataSubmitted, true
	case TriggerCompute:
		if s == DataSubmitted {
			return ScoreComputed, true
		}
	case TriggerReveal:
		if s.HasScore() {
			return ScoreRevealed, true
		}
	}
	return s, false
}

// HasSubmission returns true if attribute ciphertexts are present in this state
func (s State) HasSubmission() bool {
	return s == DataSubmitted || s.HasScore()
}

// HasScore returns true if a score ciphertext is present in this state
func (s State) HasScore() bool {
	return s == ScoreComputed || s == ScoreRevealed
}

// IsRevealed returns true if the owner's revealed score is present in this state
func (s State) IsRevealed() bool {
	return s == ScoreRevealed
}

func (s State) String() string {
	if s == "" {
		return string(Empty)
	}
	return string(s)
}
