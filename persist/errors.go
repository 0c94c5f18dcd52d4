package persist

import (
	"errors"
	"fmt"
)

// ErrNotBooted is returned by every operation issued before Boot succeeded
var ErrNotBooted = errors.New("filesystem not booted")

// PersistError reports that a mutation was applied in memory but its
// snapshot could not be written to the store. It is a warning: the
// operation itself succeeded and the tree keeps the change.
type PersistError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("persist after %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persist after %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsWarning reports whether err only signals a failed snapshot write
func IsWarning(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
