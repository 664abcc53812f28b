package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("unexpected message %s", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorRendersReasonThroughWrapping(t *testing.T) {
	sentinel := pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonInsufficientStock, "not enough stock remaining")
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, fmt.Errorf("confirm: %w", sentinel))

	if got := w.Code; got != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Reason != pkgerrors.ReasonInsufficientStock {
		t.Fatalf("expected reason %s got %q", pkgerrors.ReasonInsufficientStock, body.Error.Reason)
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
	if body.Error.Message == "boom" {
		t.Fatalf("internal error text must not leak")
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-Id", "req-7")
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "crop not found"))

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.RequestID != "req-7" {
		t.Fatalf("expected request id req-7, got %q", body.Error.RequestID)
	}
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestWriteErrorMapsLockContentionToConflict(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, fmt.Errorf("reserve stock: %w", &pgconn.PgError{Code: "40P01"}))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for deadlock, got %d", w.Code)
	}
}

func TestWriteErrorHidesDependencyMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp 10.0.0.3:6379"), "redis unreachable at 10.0.0.3")
	WriteError(context.Background(), nil, w, err)

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if body.Error.Message != "dependency unavailable" {
		t.Fatalf("expected public message, got %q", body.Error.Message)
	}
}

func TestErrorLogFieldsOnlyCarryPostgresDiagnosticsWhenPresent(t *testing.T) {
	plain := pkgerrors.New(pkgerrors.CodeNotFound, "crop not found")
	fields := errorLogFields(plain, plain)
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("expected no pg fields, got %v", fields)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "reviews_purchase_id_key"})
	fields = errorLogFields(pgErr, classify(pgErr))
	if fields["pg_constraint"] != "reviews_purchase_id_key" || fields["error_code"] != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", w.Code, w.Body.String())
	}
}
