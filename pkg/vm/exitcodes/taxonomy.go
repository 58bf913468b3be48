// Package exitcodes classifies exit codes. The partition of the numeric space is read from
// configuration so no layer hard codes where syscall errors end and actor errors begin.
package exitcodes

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/hashicorp/go-multierror"
)

// Class is the failure class of an exit code.
type Class int

const (
	Success Class = iota
	Syscall
	Application
	Fatal
	Unknown
)

func (c Class) String() string {
	switch c {
	case Success:
		return "success"
	case Syscall:
		return "syscall"
	case Application:
		return "application"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Taxonomy partitions exit codes. Codes in [SyscallMin, SyscallMax] are raised by the system,
// codes from ActorMin up are raised by actors, and codes listed in Fatal abort every open frame
// of a message regardless of their range.
type Taxonomy struct {
	SyscallMin int64   `toml:"syscallMin"`
	SyscallMax int64   `toml:"syscallMax"`
	ActorMin   int64   `toml:"actorMin"`
	Fatal      []int64 `toml:"fatal"`
}

// NewDefaultTaxonomy returns the partition of go-state-types.
func NewDefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		SyscallMin: int64(exitcode.SysErrSenderInvalid),
		SyscallMax: int64(exitcode.FirstActorErrorCode) - 1,
		ActorMin:   int64(exitcode.FirstActorErrorCode),
		Fatal:      []int64{int64(exitcode.SysErrOutOfGas)},
	}
}

// Validate checks the ranges are ordered and disjoint.
func (t *Taxonomy) Validate() error {
	var result *multierror.Error
	if t.SyscallMin < 1 {
		result = multierror.Append(result, fmt.Errorf("syscallMin must be positive, got %d", t.SyscallMin))
	}
	if t.SyscallMax < t.SyscallMin {
		result = multierror.Append(result, fmt.Errorf("syscallMax %d below syscallMin %d", t.SyscallMax, t.SyscallMin))
	}
	if t.ActorMin <= t.SyscallMax {
		result = multierror.Append(result, fmt.Errorf("actorMin %d overlaps the syscall range ending at %d", t.ActorMin, t.SyscallMax))
	}
	for _, c := range t.Fatal {
		if c == 0 {
			result = multierror.Append(result, fmt.Errorf("success cannot be fatal"))
		}
	}
	return result.ErrorOrNil()
}

// Classify returns the class of code.
func (t *Taxonomy) Classify(code exitcode.ExitCode) Class {
	if code == exitcode.Ok {
		return Success
	}
	if t.IsFatal(code) {
		return Fatal
	}
	c := int64(code)
	switch {
	case c >= t.SyscallMin && c <= t.SyscallMax:
		return Syscall
	case c >= t.ActorMin:
		return Application
	default:
		return Unknown
	}
}

// IsFatal reports whether code aborts the whole message.
func (t *Taxonomy) IsFatal(code exitcode.ExitCode) bool {
	for _, c := range t.Fatal {
		if c == int64(code) {
			return true
		}
	}
	return false
}

// IsSyscall reports whether code lies in the system range.
func (t *Taxonomy) IsSyscall(code exitcode.ExitCode) bool {
	return t.Classify(code) == Syscall || (t.IsFatal(code) && int64(code) <= t.SyscallMax)
}
