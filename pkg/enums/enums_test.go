package enums

import "testing"

func TestTransactionStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusPending, TransactionStatusCompleted, true},
		{TransactionStatusProcessing, TransactionStatusFailed, true},
		{TransactionStatusProcessing, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
		{TransactionStatusCompleted, TransactionStatusCompleted, false},
		{TransactionStatus("bogus"), TransactionStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestTransactionStatusPredecessors(t *testing.T) {
	preds := TransactionStatusCompleted.Predecessors()
	if len(preds) != 2 || preds[0] != TransactionStatusPending || preds[1] != TransactionStatusProcessing {
		t.Fatalf("unexpected predecessors %v", preds)
	}
	if got := TransactionStatusPending.Predecessors(); len(got) != 0 {
		t.Fatalf("pending should have no predecessors, got %v", got)
	}
}

func TestTransactionStatusTerminal(t *testing.T) {
	for _, s := range []TransactionStatus{TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	if TransactionStatusProcessing.IsTerminal() {
		t.Fatal("processing is not terminal")
	}
	if TransactionStatusCompleted.IsReplaceable() || !TransactionStatusFailed.IsReplaceable() {
		t.Fatal("only failed/cancelled payments are replaceable")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("dealer"); err != nil || r != RoleDealer {
		t.Fatalf("expected dealer, got %v %v", r, err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventPaymentCompleted.IsValid() || !AggregatePayment.IsValid() {
		t.Fatal("expected payment enums to be valid")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if r, err := ParseOutboxDLQErrorReason("undecodable"); err != nil || r != OutboxDLQReasonUndecodable {
		t.Fatalf("expected undecodable reason, got %q err=%v", r, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected unknown dlq reason to fail")
	}
}
