package runtime

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
)

// SystemSource marks an abort raised by the machine or the call manager instead of actor code.
const SystemSource = abi.ActorID(0)

// ExecutionPanic is used to abort vm execution with an exit code.
type ExecutionPanic struct {
	code   exitcode.ExitCode
	msg    string
	source abi.ActorID
	actor  bool
}

func (p ExecutionPanic) String() string {
	if p.msg != "" {
		return p.msg
	}
	return fmt.Sprintf("exit code %d", p.code)
}

func (p ExecutionPanic) Error() string {
	return p.String()
}

// Code is the code used to abort the execution.
func (p ExecutionPanic) Code() exitcode.ExitCode {
	return p.code
}

// Source returns the actor that raised the abort, or SystemSource for syscall errors.
func (p ExecutionPanic) Source() abi.ActorID {
	if !p.actor {
		return SystemSource
	}
	return p.source
}

// Abortf will stop the current execution with a syscall error and the given message.
func Abortf(code exitcode.ExitCode, msg string, args ...interface{}) {
	panic(ExecutionPanic{code: code, msg: fmt.Sprintf(msg, args...)})
}

// ActorAbortf stops the current execution with an error raised by the code of actor `source`.
func ActorAbortf(source abi.ActorID, code exitcode.ExitCode, msg string, args ...interface{}) {
	panic(ExecutionPanic{code: code, msg: fmt.Sprintf(msg, args...), source: source, actor: true})
}

// FatalError aborts the whole message. It is raised for broken invariants of the machine itself
// (unreadable store, misconfigured pricelist) and surfaces as an error from message execution.
type FatalError struct {
	Err error
}

func (f FatalError) Error() string {
	return fmt.Sprintf("fatal vm error: %s", f.Err)
}

func (f FatalError) Unwrap() error {
	return f.Err
}

// Fatalf panics with a FatalError.
func Fatalf(msg string, args ...interface{}) {
	panic(FatalError{Err: fmt.Errorf(msg, args...)})
}

// Assert panics with a FatalError if cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		panic(FatalError{Err: fmt.Errorf("assertion failed: %s", msg)})
	}
}
