package profiles

import "errors"

// hydrationError means profiles could not be found or staged.
type hydrationError struct {
	msg string
	err error
}

func (e hydrationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e hydrationError) Unwrap() error { return e.err }

// IsHydration reports whether err came from profile hydration.
func IsHydration(err error) bool {
	var e hydrationError
	return errors.As(err, &e)
}
