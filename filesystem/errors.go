package filesystem

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine and codec can report.
// A Kind is itself an error so callers can match with errors.Is.
type Kind uint8

const (
	NotFound Kind = iota + 1
	NotADirectory
	IsADirectory
	AlreadyExists
	DirectoryNotEmpty
	InvalidOperation
	CorruptState
)

var kindNames = map[Kind]string{
	NotFound:          "not_found",
	NotADirectory:     "not_a_directory",
	IsADirectory:      "is_a_directory",
	AlreadyExists:     "already_exists",
	DirectoryNotEmpty: "directory_not_empty",
	InvalidOperation:  "invalid_operation",
	CorruptState:      "corrupt_state",
}

var kindMessages = map[Kind]string{
	NotFound:          "no such file or directory",
	NotADirectory:     "not a directory",
	IsADirectory:      "is a directory",
	AlreadyExists:     "already exists",
	DirectoryNotEmpty: "directory not empty",
	InvalidOperation:  "invalid operation",
	CorruptState:      "corrupt snapshot",
}

// String returns the machine-readable token for k, e.g. "not_found"
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) Error() string {
	if s, ok := kindMessages[k]; ok {
		return s
	}
	return k.String()
}

// ParseKind is the inverse of [Kind.String]
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Common operation names for error reporting
const (
	OpMkdir     = "mkdir"
	OpReadDir   = "readdir"
	OpReadFile  = "read_file"
	OpWriteFile = "write_file"
	OpStat      = "stat"
	OpRemove    = "rm"
	OpRemoveDir = "rmdir"
	OpMove      = "mv"
	OpCopy      = "cp"
	OpLoad      = "load"
)

// Error wraps a [Kind] with the operation and path that produced it.
// Err optionally carries a lower-level cause such as a decode failure.
type Error struct {
	Op   string
	Path string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
}

// Unwrap exposes both the Kind and the cause to errors.Is/As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, path string, kind Kind) *Error {
	return &Error{Op: op, Path: path, Kind: kind}
}

// KindOf returns the Kind carried by err, if any
func KindOf(err error) (Kind, bool) {
	var k Kind
	if errors.As(err, &k) {
		return k, true
	}
	return 0, false
}
