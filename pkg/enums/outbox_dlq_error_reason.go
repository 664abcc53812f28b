package enums

// OutboxDLQErrorReason records why the publisher gave up on an outbox row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: publishing kept failing until the attempt budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the broker or topic rejected the message outright.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUndecodable: the row has an unknown event type or a payload that does not parse.
	OutboxDLQReasonUndecodable OutboxDLQErrorReason = "undecodable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUndecodable,
}

func (r OutboxDLQErrorReason) String() string { return string(r) }

func (r OutboxDLQErrorReason) IsValid() bool { return member(validOutboxDLQErrorReasons, r) }

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parse(validOutboxDLQErrorReasons, "outbox dlq error reason", value)
}
