package photons

import "errors"

// Error classes for a single import run. Per-file failures wrap one of
// ErrIO, ErrVerification or ErrPersist and never stop the traversal.
// ErrStoreUnavailable is the only class that aborts a run.
var (
	// ErrIO covers unreadable sources, uncreatable target directories and copy errors.
	ErrIO = errors.New("i/o failure")

	// ErrVerification means the copied file does not match its source descriptor.
	ErrVerification = errors.New("verification failure")

	// ErrStoreUnavailable means the target's record store cannot be opened.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrPersist means a record could not be written, or was written but is not visible.
	ErrPersist = errors.New("persist failure")

	// ErrDuplicateRecord is returned by RecordStore.Insert when the record
	// collides with an existing key. It is distinct from ErrPersist so callers
	// can tell a store malfunction from a logic error.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrCollisionExhausted means no free alternate name was found within the retry bound.
	ErrCollisionExhausted = errors.New("no free target name")
)
