// Package executor applies messages to a machine.
package executor

import (
	"context"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/tag"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/metrics"
	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/state/tree"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/callmanager"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
)

var log = logging.Logger("vm.executor")

var (
	applyTimer      = metrics.NewTimerMs("vm/apply_message_ms", "Duration of message application in milliseconds")
	appliedCt       = metrics.NewInt64Counter("vm/messages_applied", "Number of messages applied")
	failedCt        = metrics.NewInt64Counter("vm/messages_failed", "Number of applied messages with a non-zero exit code", metrics.ExitCodeKey, metrics.ApplyKindKey)
	prevalidationCt = metrics.NewInt64Counter("vm/messages_prevalidation_failed", "Number of messages rejected before execution", metrics.ExitCodeKey)
)

// Executor applies messages to the state of a machine, one at a time.
type Executor struct {
	machine machine.Machine
}

// NewExecutor returns an executor over m.
func NewExecutor(m machine.Machine) *Executor {
	return &Executor{machine: m}
}

// Machine returns the machine messages are applied to.
func (e *Executor) Machine() machine.Machine {
	return e.machine
}

// ExecuteMessage applies msg. Every failure of the message itself is reported through the
// returned ApplyRet; the error is only set when the machine cannot go on.
func (e *Executor) ExecuteMessage(ctx context.Context, msg *types.Message, kind machine.ApplyKind) (*machine.ApplyRet, error) {
	ctx, span := trace.StartSpan(ctx, "executor.ExecuteMessage")
	defer span.End()
	span.AddAttributes(
		trace.StringAttribute("kind", kind.String()),
		trace.StringAttribute("from", msg.From.String()),
		trace.StringAttribute("to", msg.To.String()),
		trace.Int64Attribute("method", int64(msg.Method)),
	)

	sw := applyTimer.Start(ctx)
	var (
		ret *machine.ApplyRet
		err error
	)
	switch kind {
	case machine.Explicit:
		ret, err = e.applyExplicit(ctx, msg)
	case machine.Implicit:
		ret, err = e.applyImplicit(ctx, msg)
	default:
		return nil, errors.Errorf("unknown apply kind %d", kind)
	}
	if err != nil {
		log.Errorw("message application failed", "msg", msg.String(), "kind", kind, "error", err)
		return nil, err
	}
	ret.Duration = sw.Stop(ctx)

	appliedCt.Inc(ctx, 1)
	if ret.Receipt.ExitCode != exitcode.Ok {
		failedCt.IncWith(ctx, 1, tag.Upsert(metrics.ExitCodeKey, ret.Receipt.ExitCode.String()), tag.Upsert(metrics.ApplyKindKey, kind.String()))
		log.Debugw("message failed", "msg", msg.String(), "code", ret.Receipt.ExitCode, "backtrace", ret.Backtrace.String())
	}
	return ret, nil
}

// Flush commits the state of the machine and returns the new root.
func (e *Executor) Flush(ctx context.Context) (cid.Cid, error) {
	return e.machine.Flush(ctx)
}

func (e *Executor) prevalidationFail(ctx context.Context, code exitcode.ExitCode, penalty abi.TokenAmount, msg string, args ...interface{}) *machine.ApplyRet {
	prevalidationCt.IncWith(ctx, 1, tag.Upsert(metrics.ExitCodeKey, code.String()))
	reason := errors.Errorf(msg, args...).Error()
	log.Debugw("message rejected", "code", code, "reason", reason)
	return machine.PrevalidationFail(code, reason, penalty)
}

func (e *Executor) applyExplicit(ctx context.Context, msg *types.Message) (_ *machine.ApplyRet, err error) {
	// This method does not actually execute the message itself, but rather deals with the pre/post
	// processing of a message. (see: `callmanager.Send` for the dispatch and execution)
	//
	// pre-send
	// 1. check the message fields and the price of its inclusion
	// 2. load sender actor
	// 3. check message seq number
	// 4. check sender balance covers the gas limit and the value
	// 5. withhold maximum gas from sender
	// 6. increment message seq number
	// 7. snapshot state
	mctx := e.machine.Context()
	baseFee := mctx.BaseFee()
	pricelist := mctx.Pricelist()
	st := e.machine.StateTree()

	penaltyForLimit := big.Zero()
	if msg.GasLimit > 0 {
		penaltyForLimit = big.Mul(baseFee, big.NewInt(msg.GasLimit))
	}

	// 1. message fields and inclusion
	if err := msg.ValidForExecution(); err != nil {
		return e.prevalidationFail(ctx, exitcode.SysErrForbidden, penaltyForLimit, "invalid message: %s", err), nil
	}
	msgGasCost := pricelist.OnChainMessage(msg.ChainLength())
	if msgGasCost.Total() > msg.GasLimit {
		penalty := big.Mul(baseFee, big.NewInt(msgGasCost.Total()))
		return e.prevalidationFail(ctx, exitcode.SysErrOutOfGas, penalty, "gas limit %d cannot cover inclusion cost %d", msg.GasLimit, msgGasCost.Total()), nil
	}
	if msg.GasLimit > constants.BlockGasLimit {
		return e.prevalidationFail(ctx, exitcode.SysErrForbidden, penaltyForLimit, "gas limit %d exceeds block gas limit %d", msg.GasLimit, int64(constants.BlockGasLimit)), nil
	}

	// 2. sender
	fromActor, fromID, found, err := st.GetActorByAddress(ctx, msg.From)
	if err != nil {
		if xerrors.Is(err, machine.ErrInvalidAddress) {
			return e.prevalidationFail(ctx, exitcode.SysErrSenderInvalid, penaltyForLimit, "sender %s: %s", msg.From, err), nil
		}
		return nil, errors.Wrapf(err, "loading sender %s", msg.From)
	}
	if !found {
		return e.prevalidationFail(ctx, exitcode.SysErrSenderInvalid, penaltyForLimit, "sender %s does not exist", msg.From), nil
	}
	if !fromActor.Code.Equals(constants.AccountActorCodeID) {
		return e.prevalidationFail(ctx, exitcode.SysErrSenderInvalid, penaltyForLimit, "sender %s is not an account", msg.From), nil
	}

	// 3. seq number
	if msg.Nonce != fromActor.Nonce {
		return e.prevalidationFail(ctx, exitcode.SysErrSenderStateInvalid, penaltyForLimit, "nonce %d does not match sender nonce %d", msg.Nonce, fromActor.Nonce), nil
	}

	// 4. funds
	if fromActor.Balance.LessThan(msg.RequiredFunds()) {
		return e.prevalidationFail(ctx, exitcode.SysErrSenderStateInvalid, penaltyForLimit, "sender balance %s cannot cover %s", fromActor.Balance, msg.RequiredFunds()), nil
	}

	cm := callmanager.New(ctx, e.machine, msg.GasLimit, fromID, msg.Nonce)
	if !cm.TryCharge(msgGasCost) {
		return nil, errors.New("inclusion cost exceeds the gas limit after validation")
	}

	// a fatal error from here on leaves the tree as it was before the message
	msgSnap := st.Snapshot(ctx)
	defer func() {
		if err != nil {
			e.discardSnapshot(msgSnap)
		}
	}()

	// 5. withhold gas funds, 6. bump the nonce
	gasHolder := &types.Actor{Balance: big.Zero()}
	gasLimitCost := big.Mul(big.NewInt(msg.GasLimit), msg.GasFeeCap)
	err = st.MutateActor(ctx, fromID, func(act *types.Actor) error {
		if err := deductFunds(act, gasLimitCost); err != nil {
			return err
		}
		depositFunds(gasHolder, gasLimitCost)
		act.IncrementSeqNum()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "withholding gas funds")
	}

	// 7. snapshot; everything above survives a failure of the call
	snap := st.Snapshot(ctx)

	res, err := cm.Send(fromID, msg.To, msg.Method, msg.Params, msg.Value)
	if err != nil {
		return nil, errors.Wrap(err, "executing message")
	}
	code, ret := res.ExitCode, res.Return

	// post-send
	// 1. charge gas for putting the return value on the chain
	// 2. roll back on failure
	// 3. settle gas money around (unused_gas -> sender)
	var extra *machine.CallError
	if !cm.TryCharge(pricelist.OnChainReturnValue(len(ret))) {
		code = exitcode.SysErrOutOfGas
		ret = nil
		extra = &machine.CallError{Code: code, Message: "gas limit exceeded by the return value"}
	}
	if ret == nil {
		ret = []byte{}
	}

	if code != exitcode.Ok {
		if err := st.Revert(snap); err != nil {
			return nil, errors.Wrap(err, "reverting failed message")
		}
	}
	if err := st.ClearSnapshot(snap); err != nil {
		return nil, errors.Wrap(err, "clearing call snapshot")
	}

	gasUsed, backtrace := cm.Finish()
	if extra != nil {
		backtrace = append(backtrace, *extra)
	}

	// base fee is always burnt on current network versions
	gasOutputs := gas.ComputeGasOutputs(gasUsed, msg.GasLimit, baseFee, msg.GasFeeCap, msg.GasPremium, true)
	transfers := []struct {
		to  abi.ActorID
		amt abi.TokenAmount
	}{
		{constants.BurntFundsActorID, gasOutputs.BaseFeeBurn},
		{constants.RewardActorID, gasOutputs.MinerTip},
		{constants.BurntFundsActorID, gasOutputs.OverEstimationBurn},
		{fromID, gasOutputs.Refund},
	}
	for _, tr := range transfers {
		if err := e.transferFromGasHolder(ctx, tr.to, gasHolder, tr.amt); err != nil {
			return nil, errors.Wrapf(err, "settling gas with actor %d", tr.to)
		}
	}
	if !gasHolder.Balance.IsZero() {
		return nil, errors.Errorf("gas handling math is wrong: %s left in holder", gasHolder.Balance)
	}
	if err := st.ClearSnapshot(msgSnap); err != nil {
		return nil, errors.Wrap(err, "clearing message snapshot")
	}

	return &machine.ApplyRet{
		Receipt: types.MessageReceipt{
			ExitCode: code,
			Return:   ret,
			GasUsed:  gasUsed,
		},
		Backtrace:  backtrace,
		Penalty:    gasOutputs.MinerPenalty,
		MinerTip:   gasOutputs.MinerTip,
		GasOutputs: gasOutputs,
		GasTrace:   cm.GasTracker().Trace,
	}, nil
}

func (e *Executor) applyImplicit(ctx context.Context, msg *types.Message) (_ *machine.ApplyRet, err error) {
	// implicit messages gas is tracked separately and not paid by anybody
	st := e.machine.StateTree()

	fromActor, fromID, found, err := st.GetActorByAddress(ctx, msg.From)
	if err != nil {
		return nil, errors.Wrapf(err, "loading implicit sender %s", msg.From)
	}
	if !found {
		return nil, errors.Errorf("implicit message sender %s not found", msg.From)
	}

	value := msg.Value
	if value.Int == nil {
		value = big.Zero()
	}

	// implied nonce is that of the actor, which is not incremented
	cm := callmanager.New(ctx, e.machine, constants.ImplicitMessageGasLimit, fromID, fromActor.Nonce)
	snap := st.Snapshot(ctx)
	defer func() {
		if err != nil {
			e.discardSnapshot(snap)
		}
	}()
	res, err := cm.Send(fromID, msg.To, msg.Method, msg.Params, value)
	if err != nil {
		return nil, errors.Wrap(err, "executing implicit message")
	}
	if res.ExitCode != exitcode.Ok {
		if err := st.Revert(snap); err != nil {
			return nil, errors.Wrap(err, "reverting failed implicit message")
		}
	}
	if err := st.ClearSnapshot(snap); err != nil {
		return nil, errors.Wrap(err, "clearing implicit message snapshot")
	}

	gasUsed, backtrace := cm.Finish()
	ret := res.Return
	if ret == nil {
		ret = []byte{}
	}
	return &machine.ApplyRet{
		Receipt: types.MessageReceipt{
			ExitCode: res.ExitCode,
			Return:   ret,
			GasUsed:  gasUsed,
		},
		Backtrace:  backtrace,
		Penalty:    big.Zero(),
		MinerTip:   big.Zero(),
		GasOutputs: gas.ZeroGasOutputs(),
		GasTrace:   cm.GasTracker().Trace,
	}, nil
}

// discardSnapshot drops every change made since id and closes it, along with any snapshot left
// open above it.
func (e *Executor) discardSnapshot(id tree.SnapshotID) {
	st := e.machine.StateTree()
	if err := st.Revert(id); err != nil {
		log.Errorw("reverting after fatal error", "snapshot", id, "error", err)
		return
	}
	if err := st.ClearSnapshot(id); err != nil {
		log.Errorw("closing snapshot after fatal error", "snapshot", id, "error", err)
	}
}

func (e *Executor) transferFromGasHolder(ctx context.Context, to abi.ActorID, gasHolder *types.Actor, amt abi.TokenAmount) error {
	if amt.LessThan(big.Zero()) {
		return errors.New("attempted to transfer negative value from gas holder")
	}
	if amt.IsZero() {
		return nil
	}
	return e.machine.StateTree().MutateActor(ctx, to, func(a *types.Actor) error {
		if err := deductFunds(gasHolder, amt); err != nil {
			return err
		}
		depositFunds(a, amt)
		return nil
	})
}

func deductFunds(act *types.Actor, amt abi.TokenAmount) error {
	if act.Balance.LessThan(amt) {
		return errors.Errorf("not enough funds: %s < %s", act.Balance, amt)
	}
	act.Balance = big.Sub(act.Balance, amt)
	return nil
}

func depositFunds(act *types.Actor, amt abi.TokenAmount) {
	act.Balance = big.Add(act.Balance, amt)
}
