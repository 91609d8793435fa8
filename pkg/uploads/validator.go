package uploads

import "errors"

// ValidationError marks input errors that are reported to the caller
// synchronously, before any asynchronous work is scheduled.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
