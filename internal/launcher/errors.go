package launcher

import "errors"

// launchError means a worker could not be started for a profile.
type launchError struct {
	profile string
	err     error
}

func (e launchError) Error() string { return "launch " + e.profile + ": " + e.err.Error() }

func (e launchError) Unwrap() error { return e.err }

func launchFailure(profile string, err error) error { return launchError{profile: profile, err: err} }

// IsLaunchFailure reports whether err came from a failed launch.
func IsLaunchFailure(err error) bool {
	var le launchError
	return errors.As(err, &le)
}
