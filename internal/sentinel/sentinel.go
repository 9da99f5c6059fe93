// Package sentinel declares the error kinds shared by stores, services and
// handlers. Callers wrap them with fmt.Errorf("%w: ...") and test with
// errors.Is.
package sentinel

import "errors"

var (
	// ErrValidation marks missing or malformed input. Nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a uniqueness or state clash, such as a duplicate
	// household number or a submission that was already reviewed.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a referenced row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermission marks a caller without the required role.
	ErrPermission = errors.New("not permitted")
	// ErrIntegrity marks a storage failure inside an atomic unit. The unit
	// was rolled back.
	ErrIntegrity = errors.New("integrity failure")
)
