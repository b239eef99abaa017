package chroot

import (
	"errors"
	"syscall"
)

// Kind classifies a failure by the stage that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput covers identity and store path resolution.
	KindInput
	// KindTemplate covers building the temporary root.
	KindTemplate
	// KindNamespace covers unshare and the id maps.
	KindNamespace
	// KindMirror covers mirroring the host root. Only a failure to
	// enumerate the source is reported; entry failures are logged.
	KindMirror
	// KindStoreBind covers binding the store at <root>/nix.
	KindStoreBind
	// KindExec covers getwd, chroot and exec.
	KindExec
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindTemplate:
		return "template"
	case KindNamespace:
		return "namespace"
	case KindMirror:
		return "mirror"
	case KindStoreBind:
		return "store bind"
	case KindExec:
		return "exec"
	default:
		return "unknown"
	}
}

var (
	ErrPathTooLong  = errors.New("path exceeds PATH_MAX")
	ErrNoHome       = errors.New("no home directory")
	ErrNotDirectory = errors.New("not a directory")
	// ErrExecReturned means exec came back without reporting an error.
	ErrExecReturned = errors.New("exec returned")
)

// Error is a fatal stage failure.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Path != "" {
		s += " " + e.Path
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MountError is a failed recursive bind mount.
type MountError struct {
	Source, Target string
	syscall.Errno
}

func (e *MountError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return e.Errno
}

func (e *MountError) Error() string {
	return "bind " + e.Source + " on " + e.Target + ": " + e.Errno.Error()
}
