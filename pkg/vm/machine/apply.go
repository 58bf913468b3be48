package machine

import (
	"fmt"
	"strings"
	"time"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
)

// ApplyKind distinguishes user messages from messages the system sends to itself.
type ApplyKind int

const (
	// Explicit messages are signed by a user and validated against the sender's chain state.
	Explicit ApplyKind = iota
	// Implicit messages are sent by the protocol (cron, rewards) and skip validation and fees.
	Implicit
)

func (k ApplyKind) String() string {
	switch k {
	case Explicit:
		return "explicit"
	case Implicit:
		return "implicit"
	default:
		return fmt.Sprintf("ApplyKind(%d)", int(k))
	}
}

func (k ApplyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses "explicit" or "implicit". An empty kind is explicit.
func (k *ApplyKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "explicit":
		*k = Explicit
	case "implicit":
		*k = Implicit
	default:
		return xerrors.Errorf("unknown apply kind %q", text)
	}
	return nil
}

// CallError is one entry of a failed message's backtrace.
type CallError struct {
	// Source is the actor that raised the error, or 0 for a syscall error.
	Source  abi.ActorID
	Code    exitcode.ExitCode
	Message string
}

func (e CallError) String() string {
	return fmt.Sprintf("[%d] exit %d: %s", e.Source, e.Code, e.Message)
}

// Backtrace lists the failures of a message from the faulting frame outward.
type Backtrace []CallError

func (bt Backtrace) String() string {
	lines := make([]string, len(bt))
	for i, e := range bt {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// ApplyRet is the outcome of executing one message.
type ApplyRet struct {
	// Receipt is the part of the result stored on chain.
	Receipt types.MessageReceipt
	// Backtrace is empty when the message succeeded.
	Backtrace Backtrace
	// Penalty is charged to the block producer for including the message.
	Penalty abi.TokenAmount
	// MinerTip is paid to the block producer.
	MinerTip abi.TokenAmount

	GasOutputs gas.GasOutputs
	GasTrace   []gas.GasTrace
	Duration   time.Duration
}

// PrevalidationFail is the result of a message rejected before execution: no gas used, no state
// change, and a single syscall entry in the backtrace.
func PrevalidationFail(code exitcode.ExitCode, msg string, penalty abi.TokenAmount) *ApplyRet {
	outputs := gas.ZeroGasOutputs()
	outputs.MinerPenalty = penalty
	return &ApplyRet{
		Receipt:   types.Failure(code, 0),
		Backtrace: Backtrace{{
			Source:  0,
			Code:    code,
			Message: msg,
		}},
		Penalty:    penalty,
		MinerTip:   big.Zero(),
		GasOutputs: outputs,
	}
}
