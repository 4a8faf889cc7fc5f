package errors

import (
	stderrors "errors"
	"net/http"
)

// MapToHTTPStatus translates the domain error taxonomy to HTTP status codes
// for the REST boundary. Unknown errors map to 500.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidIdentifier):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrEmptyMessage):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, ErrStoreUnavailable), stderrors.Is(err, ErrChannelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
