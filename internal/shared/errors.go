package shared

import "errors"

// Workflow error taxonomy. Callers match with errors.Is; packages wrap these
// with their own prefix.
var (
	// ErrUnauthenticated indicates no actor could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates a role or account-status gate failed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates malformed stage, ids or note.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateProposal indicates a pending proposal already exists for bill, actor and stage.
	ErrDuplicateProposal = errors.New("duplicate proposal")
	// ErrAlreadyResolved indicates the proposal is no longer pending.
	ErrAlreadyResolved = errors.New("proposal already resolved")
	// ErrStaleProposal indicates the bill moved since the proposal was filed.
	ErrStaleProposal = errors.New("stale proposal")
	// ErrAlreadyAdopted indicates the user already has a supervisor.
	ErrAlreadyAdopted = errors.New("user already adopted")
	// ErrInvalidTarget indicates the adoption or account target is not eligible.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrAlreadyGranted indicates the actor already holds the requested role.
	ErrAlreadyGranted = errors.New("role already granted")
	// ErrConflict indicates a compare-and-set or serialization failure in storage.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

var workflowErrors = []error{
	ErrUnauthenticated,
	ErrUnauthorized,
	ErrNotFound,
	ErrInvalidInput,
	ErrDuplicateProposal,
	ErrAlreadyResolved,
	ErrStaleProposal,
	ErrAlreadyAdopted,
	ErrInvalidTarget,
	ErrAlreadyGranted,
	ErrConflict,
	ErrInvalidCredentials,
}

// Kind returns the taxonomy sentinel wrapped by err, or nil for unexpected failures.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range workflowErrors {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// UserSafeMessage returns a message that can be shown to callers without
// leaking storage details.
func UserSafeMessage(err error) string {
	if kind := Kind(err); kind != nil {
		return err.Error()
	}
	return "internal error"
}
