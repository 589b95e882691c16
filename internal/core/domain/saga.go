package domain

import (
	"encoding/json"
	"time"
)

// PostingStep is a stage of the posting state machine. Steps are ordered.
type PostingStep int

const (
	StepReceived PostingStep = iota
	StepValidated
	StepAccountsChecked
	StepPersisted
	StepBalancesUpdated
	StepNotified
	StepComplete
)

var postingStepNames = [...]string{
	"RECEIVED",
	"VALIDATED",
	"ACCOUNTS_CHECKED",
	"PERSISTED",
	"BALANCES_UPDATED",
	"NOTIFIED",
	"COMPLETE",
}

func (s PostingStep) String() string {
	if s < 0 || int(s) >= len(postingStepNames) {
		return "UNKNOWN"
	}
	return postingStepNames[s]
}

// ParsePostingStep converts a stored step name back to a PostingStep.
func ParsePostingStep(name string) (PostingStep, bool) {
	for i, n := range postingStepNames {
		if n == name {
			return PostingStep(i), true
		}
	}
	return StepReceived, false
}

// SagaStatus is the overall state of a posting saga.
type SagaStatus string

const (
	SagaInProgress  SagaStatus = "IN_PROGRESS"
	SagaCompleted   SagaStatus = "COMPLETED"
	SagaCompensated SagaStatus = "COMPENSATED"
)

// PostingSaga records how far a single posting got, so an interrupted posting can be recovered.
type PostingSaga struct {
	SagaID    string          `json:"sagaID"`
	EntryID   string          `json:"entryID"`
	Step      PostingStep     `json:"step"`
	Status    SagaStatus      `json:"status"`
	Context   json.RawMessage `json:"context,omitempty"`
	LastError *string         `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SagaContext is the data persisted with a saga to support compensation.
type SagaContext struct {
	EntryNumber string   `json:"entryNumber,omitempty"`
	AccountIDs  []string `json:"accountIDs,omitempty"`
	UpdateID    string   `json:"updateID,omitempty"`
	BatchItemID string   `json:"batchItemID,omitempty"`
}
