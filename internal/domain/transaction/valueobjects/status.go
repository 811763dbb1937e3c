package valueobjects

// TransactionStatus is the lifecycle state of one payment attempt. The
// machine only moves forward: INITIATED -> PROCESSING -> terminal, with
// TIMEOUT and CANCELLED reachable from any non-terminal state.
type TransactionStatus string

const (
	StatusInitiated  TransactionStatus = "INITIATED"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusTimeout    TransactionStatus = "TIMEOUT"
	StatusCancelled  TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusInitiated, StatusProcessing, StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the transaction still awaits a terminal signal.
func (s TransactionStatus) IsActive() bool {
	return s == StatusInitiated || s == StatusProcessing
}

// IsTerminal reports whether no further transition (other than late-arriving
// audit metadata) is possible.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a new attempt may be created for the same order.
func (s TransactionStatus) IsRetryable() bool {
	switch s {
	case StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) String() string {
	return string(s)
}

// ActiveStatuses is the expected-state set for the conditional transition
// primitive: a terminal write only applies while the row is still in one of
// these.
func ActiveStatuses() []TransactionStatus {
	return []TransactionStatus{StatusInitiated, StatusProcessing}
}
