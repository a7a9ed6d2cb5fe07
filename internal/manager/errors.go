package manager

import "errors"

// noProfilesError means Seed was given nothing to run.
type noProfilesError struct{}

func (noProfilesError) Error() string { return "no profiles to seed" }

// IsNoProfiles reports whether err came from seeding an empty profile list.
func IsNoProfiles(err error) bool {
	var e noProfilesError
	return errors.As(err, &e)
}

// shutdownError signals that the manager is shutting down and refuses work.
type shutdownError struct{}

func (shutdownError) Error() string { return "shutting down" }

// ErrShutdownInProgress is returned by operations started after Shutdown.
var ErrShutdownInProgress error = shutdownError{}

// IsShutdown reports whether err indicates shutdown is in progress.
func IsShutdown(err error) bool {
	var e shutdownError
	return errors.As(err, &e)
}

// portConflictError means two slots were assigned overlapping ports.
type portConflictError struct{ msg string }

func (e portConflictError) Error() string { return e.msg }

// IsPortConflict reports whether err came from an invalid port assignment.
func IsPortConflict(err error) bool {
	var e portConflictError
	return errors.As(err, &e)
}
