// Package scenario replays a JSON list of messages against a state root.
package scenario

import (
	"context"
	"encoding/json"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/executor"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
)

var log = logging.Logger("scenario")

// Step is one message and the way it is applied.
type Step struct {
	Kind    machine.ApplyKind `json:"kind"`
	Message *types.Message    `json:"message"`
}

// Scenario is a sequence of messages executed at one epoch.
type Scenario struct {
	Epoch   abi.ChainEpoch  `json:"epoch"`
	BaseFee abi.TokenAmount `json:"baseFee"`
	Steps   []Step          `json:"messages"`
}

// Parse decodes a JSON scenario. A missing base fee is zero.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	if s.BaseFee.Int == nil {
		s.BaseFee = big.Zero()
	}
	for i, step := range s.Steps {
		if step.Message == nil {
			return nil, errors.Errorf("step %d has no message", i)
		}
		fillDefaults(step.Message)
	}
	return &s, nil
}

func fillDefaults(msg *types.Message) {
	if msg.Value.Int == nil {
		msg.Value = big.Zero()
	}
	if msg.GasFeeCap.Int == nil {
		msg.GasFeeCap = big.Zero()
	}
	if msg.GasPremium.Int == nil {
		msg.GasPremium = big.Zero()
	}
}

// Result is the printable outcome of one step.
type Result struct {
	Message   cid.Cid           `json:"message"`
	Kind      machine.ApplyKind `json:"kind"`
	ExitCode  exitcode.ExitCode `json:"exitCode"`
	Return    []byte            `json:"return,omitempty"`
	GasUsed   int64             `json:"gasUsed"`
	Penalty   abi.TokenAmount   `json:"penalty"`
	MinerTip  abi.TokenAmount   `json:"minerTip"`
	Backtrace []string          `json:"backtrace,omitempty"`
}

func newResult(step Step, ret *machine.ApplyRet) Result {
	res := Result{
		Message:  step.Message.Cid(),
		Kind:     step.Kind,
		ExitCode: ret.Receipt.ExitCode,
		Return:   ret.Receipt.Return,
		GasUsed:  ret.Receipt.GasUsed,
		Penalty:  ret.Penalty,
		MinerTip: ret.MinerTip,
	}
	for _, e := range ret.Backtrace {
		res.Backtrace = append(res.Backtrace, e.String())
	}
	return res
}

// Run applies every step in order and flushes the state. It stops at the first step the executor
// cannot apply; failed messages are results, not errors.
func Run(ctx context.Context, e *executor.Executor, s *Scenario) ([]Result, cid.Cid, error) {
	results := make([]Result, 0, len(s.Steps))
	for i, step := range s.Steps {
		ret, err := e.ExecuteMessage(ctx, step.Message, step.Kind)
		if err != nil {
			return results, cid.Undef, errors.Wrapf(err, "apply step %d", i)
		}
		log.Debugw("applied message", "step", i, "kind", step.Kind, "exit", ret.Receipt.ExitCode, "gas", ret.Receipt.GasUsed)
		results = append(results, newResult(step, ret))
	}

	root, err := e.Flush(ctx)
	if err != nil {
		return results, cid.Undef, errors.Wrap(err, "flush state")
	}
	return results, root, nil
}
