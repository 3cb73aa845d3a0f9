package apps

import "github.com/pkg/errors"

// ArgumentError reports bad user input to an app (flags, config values).
type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}

// IsArgumentError checks if an error is an *ArgumentError.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}
