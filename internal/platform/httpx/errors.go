// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/billtrack/billtrack/internal/shared"
)

// ErrMalformedBody indicates the request payload could not be decoded.
var ErrMalformedBody = errors.New("malformed request body")

type problemKind struct {
	err    error
	status int
	title  string
	code   string
}

var problemKinds = []problemKind{
	{shared.ErrUnauthenticated, http.StatusUnauthorized, "Unauthenticated", "unauthenticated"},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid Credentials", "invalid_credentials"},
	{shared.ErrUnauthorized, http.StatusForbidden, "Unauthorized", "unauthorized"},
	{shared.ErrCSRFTokenMissing, http.StatusForbidden, "CSRF Token Missing", "csrf_missing"},
	{shared.ErrCSRFTokenMismatch, http.StatusForbidden, "CSRF Token Mismatch", "csrf_mismatch"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found", "not_found"},
	{shared.ErrInvalidInput, http.StatusBadRequest, "Invalid Input", "invalid_input"},
	{ErrMalformedBody, http.StatusBadRequest, "Invalid Input", "invalid_input"},
	{shared.ErrInvalidTarget, http.StatusUnprocessableEntity, "Invalid Target", "invalid_target"},
	{shared.ErrDuplicateProposal, http.StatusConflict, "Duplicate Proposal", "duplicate_proposal"},
	{shared.ErrAlreadyResolved, http.StatusConflict, "Already Resolved", "already_resolved"},
	{shared.ErrStaleProposal, http.StatusConflict, "Stale Proposal", "stale_proposal"},
	{shared.ErrAlreadyAdopted, http.StatusConflict, "Already Adopted", "already_adopted"},
	{shared.ErrAlreadyGranted, http.StatusConflict, "Already Granted", "already_granted"},
	{shared.ErrConflict, http.StatusConflict, "Conflict", "conflict"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. Unknown
// errors are reported without detail.
func RespondError(w http.ResponseWriter, err error) {
	for _, kind := range problemKinds {
		if errors.Is(err, kind.err) {
			writeProblem(w, ProblemDetail{
				Type:   "urn:billtrack:error:" + kind.code,
				Title:  kind.title,
				Status: kind.status,
				Detail: err.Error(),
			})
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// StatusFor returns the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	for _, kind := range problemKinds {
		if errors.Is(err, kind.err) {
			return kind.status
		}
	}
	return http.StatusInternalServerError
}
