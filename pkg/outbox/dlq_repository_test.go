package outbox

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

func dlqEntry(eventID uuid.UUID, reason enums.OutboxDLQErrorReason, msg string) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventPurchaseConfirmed,
		AggregateType: enums.AggregatePurchaseRequest,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		ErrorReason:   reason,
		ErrorMessage:  &msg,
	}
}

func TestDLQInsertIgnoresDuplicateEvent(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewDLQRepository(conn)
	eventID := uuid.New()

	if err := repo.InsertTx(conn, dlqEntry(eventID, enums.OutboxDLQReasonMaxAttempts, "first")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.InsertTx(conn, dlqEntry(eventID, enums.OutboxDLQReasonMaxAttempts, "second")); err != nil {
		t.Fatalf("duplicate insert should be ignored, got %v", err)
	}

	var rows []models.OutboxDLQ
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || *rows[0].ErrorMessage != "first" {
		t.Fatalf("expected the first entry only, got %+v", rows)
	}
}

func TestDLQInsertValidatesAndTruncates(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewDLQRepository(conn)

	if err := repo.InsertTx(conn, dlqEntry(uuid.New(), "bogus", "x")); err == nil {
		t.Fatal("expected unknown reason to be rejected")
	}
	if err := repo.InsertTx(nil, dlqEntry(uuid.New(), enums.OutboxDLQReasonMaxAttempts, "x")); err == nil {
		t.Fatal("expected nil transaction to be rejected")
	}

	long := strings.Repeat("é", maxDLQErrorLen)
	if err := repo.InsertTx(conn, dlqEntry(uuid.New(), enums.OutboxDLQReasonNonRetryable, long)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var row models.OutboxDLQ
	if err := conn.First(&row).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(*row.ErrorMessage) > maxDLQErrorLen || !utf8.ValidString(*row.ErrorMessage) {
		t.Fatalf("expected valid message within %d bytes, got %d bytes", maxDLQErrorLen, len(*row.ErrorMessage))
	}
}

func TestDLQCountByReason(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewDLQRepository(conn)
	for _, reason := range []enums.OutboxDLQErrorReason{
		enums.OutboxDLQReasonMaxAttempts,
		enums.OutboxDLQReasonMaxAttempts,
		enums.OutboxDLQReasonUndecodable,
	} {
		if err := repo.InsertTx(conn, dlqEntry(uuid.New(), reason, "failed")); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	counts, err := repo.CountByReason(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[enums.OutboxDLQReasonMaxAttempts] != 2 || counts[enums.OutboxDLQReasonUndecodable] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if _, ok := counts[enums.OutboxDLQReasonNonRetryable]; ok {
		t.Fatalf("absent reasons should not appear: %v", counts)
	}
}
