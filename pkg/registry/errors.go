package registry

import "errors"

// Sentinel errors returned by repository lookups. Grounded on the teacher's
// pkg/database/errors.go "F.4 remediation" pattern: callers get an explicit
// error instead of a (nil, nil) that is easy to mistake for "found, empty."
var (
	ErrPublicDirectoryNotFound = errors.New("registry: public directory not found")
	ErrPdMemberNotFound        = errors.New("registry: pd member not found")
	ErrDidNotFound             = errors.New("registry: did not found")
	ErrPdDidMemberNotFound     = errors.New("registry: pd did member not found")
	ErrPublicKeyNotFound       = errors.New("registry: public key not found")
	ErrInvalidPage             = errors.New("registry: page must be >= 1")
)
