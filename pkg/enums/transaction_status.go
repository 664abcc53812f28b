package enums

// TransactionStatus tracks a payment through the gateway lifecycle.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusCancelled,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	return member(validTransactionStatuses, s)
}

// Rank orders statuses so transitions only ever move forward.
// Terminal statuses share the highest rank.
func (s TransactionStatus) Rank() int {
	switch s {
	case TransactionStatusPending:
		return 0
	case TransactionStatusProcessing:
		return 1
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return 2
	default:
		return -1
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s.Rank() == 2
}

// CanTransitionTo reports whether moving from s to next strictly advances the status.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.Rank() > s.Rank()
}

// Predecessors lists every status that may legally transition into s.
func (s TransactionStatus) Predecessors() []TransactionStatus {
	out := make([]TransactionStatus, 0, len(validTransactionStatuses))
	for _, candidate := range validTransactionStatuses {
		if candidate.CanTransitionTo(s) {
			out = append(out, candidate)
		}
	}
	return out
}

// IsReplaceable reports whether a new payment attempt may replace this one.
func (s TransactionStatus) IsReplaceable() bool {
	return s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	return parse(validTransactionStatuses, "transaction status", value)
}
