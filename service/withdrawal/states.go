package withdrawal

// State is a step of the withdrawal pipeline. A withdrawal moves forward
// through the states in order and ends in completed or failed.
type State string

const (
	StateValidating      State = "validating"
	StateBalanceChecking State = "balance-checking"
	StateBuilding        State = "building"
	StateSigning         State = "signing"
	StateSubmitting      State = "submitting"
	StateConfirming      State = "confirming"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"

	// StateReconciled marks a later status check of an unconfirmed
	// withdrawal. It is reported, not a pipeline step.
	StateReconciled State = "reconciled"
)

// Terminal reports whether s ends the pipeline.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Outcome is how a processed withdrawal ended, as reported to the caller.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeUnconfirmed means the transaction was submitted but did not
	// confirm in time. Its final status is unknown; check the explorer.
	OutcomeUnconfirmed Outcome = "unconfirmed"
	OutcomeFailed      Outcome = "failed"
)

// Status is the ledger status of a withdrawal record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Settled reports whether s is one of the terminal ledger statuses.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ConfirmationUnknown is recorded when a withdrawal is completed without
// a confirmation from the node.
const ConfirmationUnknown = "unknown"

// Reconciliation results.
const (
	ReconcileConfirmed = "confirmed"
	ReconcileFailed    = "failed"
	ReconcileUnknown   = "unknown"
)
