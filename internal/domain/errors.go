package domain

import "errors"

// Sentinel errors forming the failure taxonomy for the service layer.
// Handlers map these to HTTP statuses; anything not listed here is an
// infrastructure fault and surfaces as a generic "try again" failure.
var (
	// ErrValidation covers caller input problems: malformed email,
	// disallowed domain, duplicate user, short password.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is the uniform authentication failure. Wrong
	// password, unknown user, disabled account and failed 2FA all collapse
	// into it so the caller cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited indicates too many recent attempts for the key.
	ErrRateLimited = errors.New("too many attempts")

	// ErrPermissionDenied means the identity is established but lacks the
	// required permission.
	ErrPermissionDenied = errors.New("access denied")

	// ErrLastAdmin protects the system-wide invariant that at least one
	// active admin account exists.
	ErrLastAdmin = errors.New("cannot remove the last admin")

	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps infrastructure faults (database or redis down).
	ErrUnavailable = errors.New("service unavailable")
)
