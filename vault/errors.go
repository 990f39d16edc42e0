package vault

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrCorrupt                = errors.New("vault: corrupt file")
	ErrDecrypt                = errors.New("vault: decryption failed")
	ErrParse                  = errors.New("vault: malformed record")
	ErrClosed                 = errors.New("vault: closed")
	ErrNotFound               = errors.New("vault: entry not found")
	ErrWrongPasswordOrCorrupt = errors.New("vault: wrong password or corrupt file")
)

// Reason classifies why a vault could not be opened.
type Reason int

const (
	WrongPasswordOrCorrupt Reason = iota + 1
)

func (r Reason) String() string {
	if r == WrongPasswordOrCorrupt {
		return "wrong password or corrupt file"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// OpenError is returned by Open when the file was read but could not be
// decrypted or parsed. A wrong password and a damaged file are
// indistinguishable for the legacy format, so both map to the same reason.
type OpenError struct {
	Path   string
	Reason Reason
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("vault: open %s: %s", e.Path, e.Reason)
}

func (e *OpenError) Unwrap() error { return e.Err }

func (e *OpenError) Is(target error) bool {
	return target == ErrWrongPasswordOrCorrupt && e.Reason == WrongPasswordOrCorrupt
}

// IOError wraps a filesystem failure. It is never used for decryption or
// parse failures.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("vault: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
