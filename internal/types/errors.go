package types

import (
	"errors"
	"fmt"
)

// Recoverable per-book conditions. These are logged as diagnostics and the
// affected book or format is skipped; the run continues.
var (
	// ErrBookNotFound indicates the repository has no book with the id
	ErrBookNotFound = errors.New("book not found")

	// ErrFormatUnavailable indicates a format file could not be opened
	ErrFormatUnavailable = errors.New("format unavailable")
)

// ExemptionLoadError is fatal: the exemption store could not be read from
// the repository. The in-memory store is left untouched and the run that
// needed it is aborted.
type ExemptionLoadError struct {
	Key string
	Err error
}

func (e *ExemptionLoadError) Error() string {
	return fmt.Sprintf("loading exemptions (%s): %v", e.Key, e.Err)
}

func (e *ExemptionLoadError) Unwrap() error { return e.Err }

// ExemptionPersistError is fatal: the exemption store image could not be
// written. The in-memory store keeps its previous committed state.
type ExemptionPersistError struct {
	Key string
	Err error
}

func (e *ExemptionPersistError) Error() string {
	return fmt.Sprintf("persisting exemptions (%s): %v", e.Key, e.Err)
}

func (e *ExemptionPersistError) Unwrap() error { return e.Err }

// CrossLibraryError is raised at configuration time when a cross-library
// comparison is set up incorrectly, e.g. local and remote resolve to the
// same location, or the remote index exceeded its cap.
type CrossLibraryError struct {
	Local  string
	Remote string
	Reason string
}

func (e *CrossLibraryError) Error() string {
	if e.Local != "" || e.Remote != "" {
		return fmt.Sprintf("cross-library comparison (%s vs %s): %s", e.Local, e.Remote, e.Reason)
	}
	return fmt.Sprintf("cross-library comparison: %s", e.Reason)
}
