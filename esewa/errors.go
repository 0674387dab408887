package esewa

import "fmt"

// InitiationError means the payment could not be started. It is surfaced
// to the caller immediately and is retryable by re-invoking Initiate.
type InitiationError struct {
	Reason string
	Err    error
}

func (e *InitiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment initiation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("payment initiation failed: %s", e.Reason)
}

func (e *InitiationError) Unwrap() error { return e.Err }

// VerificationError is a transport or server failure while confirming a
// payment. It means "unknown", never "rejected"; a rejection is a normal
// confirmed=false return.
type VerificationError struct {
	Op  string
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment %s failed: %v", e.Op, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
