package responses

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/types"
)

const requestIDHeader = "X-Request-Id"

// WriteSuccess renders data inside the standard success envelope with a 200.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteNoContent answers 204 with no body.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps err onto the public error envelope. Untyped errors become
// internal errors whose text is never exposed. Server faults are logged at
// error level with the full chain; client faults at warn.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Reason:    typed.Reason(),
		Message:   meta.PublicMessage,
		RequestID: w.Header().Get(requestIDHeader),
	}
	if meta.ExposeMessage && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, errorLogFields(err, typed))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(logCtx, "request.error", err)
		} else {
			logg.Warn(logCtx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

// classify maps any error onto a typed one. Lock contention that escaped the
// services is reported as a retryable conflict.
func classify(err error) *pkgerrors.Error {
	if err == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown error")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if pkgerrors.IsRetryable(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "the resource is busy, retry the request")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

func errorLogFields(err error, typed *pkgerrors.Error) map[string]any {
	if err == nil {
		err = typed
	}
	fields := pkgerrors.Dump(err).LogFields()
	fields["error_code"] = string(typed.Code())
	fields["error_reason"] = typed.Reason()
	if details, ok := typed.Details().(map[string]any); ok {
		if step, ok := details["step"]; ok {
			fields["step"] = step
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}
