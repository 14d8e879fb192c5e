package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned when a session is started while another runs.
	ErrAlreadyRunning = errors.New("a session is already running")

	// ErrNotRunning is returned by pause/resume/stop while idle.
	ErrNotRunning = errors.New("no session is running")

	// ErrInvalidSequenceEntry marks a sequence entry with an unknown kind.
	ErrInvalidSequenceEntry = errors.New("invalid sequence entry")

	// ErrInvalidDuration marks a duration outside its allowed range.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidDomain is returned when input cannot be normalised to a host.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrDomainNotListed is returned when removing a domain that is not in the block list.
	ErrDomainNotListed = errors.New("domain is not in the block list")

	// ErrEmptyBlockList is returned when focus starts with nothing to block
	// and the caller did not confirm.
	ErrEmptyBlockList = errors.New("block list is empty")

	// ErrEmptySequence is returned when a sequence with no entries is started.
	ErrEmptySequence = errors.New("sequence is empty")

	// ErrInstanceRunning is returned when another sitemon holds the state lock.
	ErrInstanceRunning = errors.New("another sitemon instance is running")

	// ErrInsufficientPrivileges is returned when the hosts file cannot be written.
	ErrInsufficientPrivileges = errors.New("insufficient privileges to modify hosts file")

	// ErrFileNotFound classifies FileAccessError values of kind NotFound.
	ErrFileNotFound = errors.New("file not found")

	// ErrPermissionDenied classifies FileAccessError values of kind PermissionDenied.
	ErrPermissionDenied = errors.New("permission denied")
)

// FileErrorKind classifies a file access failure.
type FileErrorKind int

const (
	FileErrorOther FileErrorKind = iota
	FileErrorNotFound
	FileErrorPermissionDenied
)

func (k FileErrorKind) String() string {
	switch k {
	case FileErrorNotFound:
		return "not found"
	case FileErrorPermissionDenied:
		return "permission denied"
	default:
		return "io error"
	}
}

// FileAccessError is returned by hosts file and block list I/O.
type FileAccessError struct {
	Op   string
	Path string
	Kind FileErrorKind
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the classification sentinels.
func (e *FileAccessError) Is(target error) bool {
	switch target {
	case ErrFileNotFound:
		return e.Kind == FileErrorNotFound
	case ErrPermissionDenied:
		return e.Kind == FileErrorPermissionDenied
	}
	return false
}
