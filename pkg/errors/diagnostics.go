package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Lock contention on purchase or stock rows. The same statement can succeed
// on a retry.
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// PGDiagnostics holds the server-side fields of a Postgres error.
type PGDiagnostics struct {
	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// ErrorDump is the log-only view of an error. It is never sent to clients.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	Retryable  bool     `json:"retryable,omitempty"`
	PGDiagnostics
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code, d.Reason = typed.Code(), typed.Reason()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if diag, ok := postgresDiagnostics(err); ok {
		d.PGDiagnostics = diag
		d.Retryable = retryableSQLStates[diag.PGCode]
	}
	return d
}

// LogFields flattens the dump for a structured log line. Postgres fields are
// only present when the chain carries a Postgres error.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.PGCode == "" {
		return fields
	}
	for key, value := range map[string]string{
		"pg_code":       d.PGCode,
		"pg_constraint": d.PGConstraint,
		"pg_table":      d.PGTable,
		"pg_column":     d.PGColumn,
		"pg_detail":     d.PGDetail,
		"pg_message":    d.PGMessage,
	} {
		fields[key] = value
	}
	fields["pg_retryable"] = d.Retryable
	return fields
}

// postgresDiagnostics understands both drivers: pgx backs gorm, lib/pq backs
// the goose migrations.
func postgresDiagnostics(err error) (PGDiagnostics, bool) {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return PGDiagnostics{
			PGCode:       pgxErr.Code,
			PGConstraint: pgxErr.ConstraintName,
			PGTable:      pgxErr.TableName,
			PGColumn:     pgxErr.ColumnName,
			PGDetail:     pgxErr.Detail,
			PGMessage:    pgxErr.Message,
		}, true
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return PGDiagnostics{
			PGCode:       string(pqErr.Code),
			PGConstraint: pqErr.Constraint,
			PGTable:      pqErr.Table,
			PGColumn:     pqErr.Column,
			PGDetail:     pqErr.Detail,
			PGMessage:    pqErr.Message,
		}, true
	}
	return PGDiagnostics{}, false
}

// IsRetryable reports whether err wraps a Postgres lock-contention failure.
func IsRetryable(err error) bool {
	diag, ok := postgresDiagnostics(err)
	return ok && retryableSQLStates[diag.PGCode]
}
