// Provides helper functions for writing error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tracklab/trove/internal/index"
	"github.com/tracklab/trove/internal/ndarray"
	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/server/dto"
)

// TranslateError maps domain sentinel errors to API errors. Errors already
// carrying a status pass through unchanged. Returns nil for errors with no
// specific mapping.
func TranslateError(err error) dto.ErrorWithStatus {
	var ewsErr dto.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		return ewsErr
	}
	switch {
	case errors.Is(err, object.ErrNotFound):
		return dto.NotFound("record").Wrap(err)
	case errors.Is(err, index.ErrOutOfRange):
		return dto.NewAPIError(http.StatusBadRequest, dto.ErrorCodeOutOfRange, err.Error())
	case errors.Is(err, index.ErrBadPosition):
		return dto.BadRequest(err.Error())
	case errors.Is(err, ndarray.ErrBadColormap):
		return dto.InvalidFormat("colormap", "must be family/name").Wrap(err)
	case errors.Is(err, ndarray.ErrUnsupportedRank):
		return dto.BadRequest(err.Error())
	case errors.Is(err, ndarray.ErrBadFormat):
		return dto.Storage("decode array payload").Wrap(err)
	}
	return nil
}

// writeErrorResponse writes an error as a JSON response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := dto.ErrorCodeInternal
	message := err.Error()
	var details map[string]any

	if ewsErr := TranslateError(err); ewsErr != nil {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := dto.ErrorResponse{
		Error: dto.ErrorDetails{
			Code:    errorCode,
			Message: message,
		},
		Details: details,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
