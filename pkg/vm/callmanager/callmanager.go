package callmanager

import (
	"bytes"
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"go.opencensus.io/tag"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/metrics"
	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/state/tree"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/engine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/exitcodes"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/runtime"
)

var log = logging.Logger("vm.callmanager")

var (
	sendCt        = metrics.NewInt64Counter("vm/sends", "Number of calls dispatched by call managers")
	callFailureCt = metrics.NewInt64Counter("vm/call_failures", "Number of calls that failed and were reverted", metrics.ExitCodeKey)
)

// FrameState is the lifecycle state of a call frame.
type FrameState int

const (
	Pending FrameState = iota
	Running
	Succeeded
	Failed
)

func (s FrameState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

type frame struct {
	from   abi.ActorID
	to     abi.ActorID
	method abi.MethodNum
	value  abi.TokenAmount

	snapshot tree.SnapshotID
	state    FrameState
}

// InvocationResult is the outcome of a top level call.
type InvocationResult struct {
	Return   []byte
	ExitCode exitcode.ExitCode
}

// CallManager runs the call stack of one top level message. All frames draw gas from the same
// tracker and write to the machine's state tree, which is snapshotted per frame.
//
// Not safe for concurrent use.
type CallManager struct {
	ctx       context.Context
	machine   machine.Machine
	state     *tree.State
	gasTank   *gas.GasTracker
	pricelist *gas.Pricelist
	taxonomy  *exitcodes.Taxonomy
	maxDepth  int

	// store charges every block access of actor code
	store cbor.IpldStore

	origin        abi.ActorID
	originNonce   uint64
	actorsCreated uint64

	stack     []*frame
	backtrace machine.Backtrace
}

// New returns a call manager for a message sent by origin with the given nonce.
func New(ctx context.Context, m machine.Machine, gasLimit int64, origin abi.ActorID, nonce uint64) *CallManager {
	gasTank := gas.NewGasTracker(gasLimit)
	cfg := m.Config()
	if cfg.VM.Tracing {
		gasTank.EnableTracing()
	}
	pricelist := m.Context().Pricelist()

	return &CallManager{
		ctx:         ctx,
		machine:     m,
		state:       m.StateTree(),
		gasTank:     gasTank,
		pricelist:   pricelist,
		taxonomy:    cfg.ExitCodes,
		maxDepth:    cfg.VM.MaxCallDepth,
		store:       cbor.NewCborStore(NewGasChargeBlockStore(gasTank, pricelist, m.Blockstore())),
		origin:      origin,
		originNonce: nonce,
	}
}

// GasTracker returns the tracker shared by every frame.
func (cm *CallManager) GasTracker() *gas.GasTracker {
	return cm.gasTank
}

// Machine returns the machine the calls run on.
func (cm *CallManager) Machine() machine.Machine {
	return cm.machine
}

// Depth is the number of frames on the stack.
func (cm *CallManager) Depth() int {
	return len(cm.stack)
}

// Charge prices op and draws it from the gas tracker. It aborts with SysErrOutOfGas when the
// tracker runs dry and panics with a runtime.FatalError if the pricelist cannot price op.
func (cm *CallManager) Charge(op gas.Operation) {
	charge, err := cm.pricelist.Cost(op)
	if err != nil {
		runtime.Fatalf("pricing reported operation: %s", err)
	}
	cm.gasTank.Charge(charge, "%s", op.Kind)
}

// TryCharge draws charge from the tracker and reports whether there was enough gas.
func (cm *CallManager) TryCharge(charge gas.GasCharge) bool {
	return cm.gasTank.TryCharge(charge)
}

// Send runs a top level call from `from`. The error is only set for fatal conditions of the
// machine itself, every failure of the call is reported through the exit code.
func (cm *CallManager) Send(from abi.ActorID, to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount) (res InvocationResult, err error) {
	if len(cm.stack) != 0 {
		return InvocationResult{}, xerrors.Errorf("top level send while %d frames are open", len(cm.stack))
	}
	ctx, span := trace.StartSpan(cm.ctx, "callmanager.Send")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("to", to.String()), trace.Int64Attribute("method", int64(method)))

	defer func() {
		if r := recover(); r != nil {
			fatal, ok := r.(runtime.FatalError)
			if !ok {
				panic(r)
			}
			log.Errorw("fatal error during message execution", "from", from, "to", to, "method", method, "error", fatal)
			err = fatal
		}
	}()

	prev := cm.ctx
	cm.ctx = ctx
	defer func() { cm.ctx = prev }()

	ret, code := cm.send(from, to, method, params, value)
	return InvocationResult{Return: ret, ExitCode: code}, nil
}

// Finish returns the gas used by the message and the backtrace of its failure.
func (cm *CallManager) Finish() (int64, machine.Backtrace) {
	gasUsed := cm.gasTank.GasUsed
	if gasUsed < 0 {
		gasUsed = 0
	}
	bt := cm.backtrace
	cm.backtrace = nil
	return gasUsed, bt
}

// send pushes a frame, runs it to completion and pops it. The state changes of a failed frame
// and its children are reverted and the failure is appended to the backtrace.
func (cm *CallManager) send(from abi.ActorID, to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount) (ret []byte, code exitcode.ExitCode) {
	// a new call starts a new failure chain
	cm.backtrace = nil

	f := &frame{
		from:     from,
		method:   method,
		value:    value,
		snapshot: cm.state.Snapshot(cm.ctx),
		state:    Pending,
	}
	cm.stack = append(cm.stack, f)
	sendCt.Inc(cm.ctx, 1)

	defer func() {
		runtime.Assert(cm.stack[len(cm.stack)-1] == f, "popped frame is not the innermost one")
		cm.stack[len(cm.stack)-1] = nil
		cm.stack = cm.stack[:len(cm.stack)-1]
	}()

	defer func() {
		r := recover()
		if r == nil {
			if err := cm.state.ClearSnapshot(f.snapshot); err != nil {
				panic(runtime.FatalError{Err: err})
			}
			f.state = Succeeded
			cm.backtrace = nil
			return
		}

		f.state = Failed
		if err := cm.state.Revert(f.snapshot); err != nil {
			panic(runtime.FatalError{Err: err})
		}
		if err := cm.state.ClearSnapshot(f.snapshot); err != nil {
			panic(runtime.FatalError{Err: err})
		}

		p, ok := r.(runtime.ExecutionPanic)
		if !ok {
			panic(r)
		}
		callFailureCt.IncWith(cm.ctx, 1, tag.Upsert(metrics.ExitCodeKey, p.Code().String()))
		cm.backtrace = append(cm.backtrace, machine.CallError{
			Source:  p.Source(),
			Code:    p.Code(),
			Message: p.Error(),
		})
		log.Debugw("call failed", "depth", len(cm.stack), "from", f.from, "to", f.to, "method", f.method, "code", p.Code(), "source", p.Source(), "msg", p.Error())
		ret, code = nil, p.Code()
	}()

	if len(cm.stack) > cm.maxDepth {
		runtime.Abortf(exitcode.SysErrForbidden, "message execution exceeds call depth %d", cm.maxDepth)
	}

	// 1. charge for the call itself
	cm.Charge(gas.Operation{Kind: gas.OpSend, Value: value, Method: method})

	// 2. resolve the receiver, creating an account for unknown key addresses
	f.to = cm.resolveReceiver(to)

	// 3. transfer funds carried by the call
	if err := cm.machine.Transfer(cm.ctx, from, f.to, value); err != nil {
		switch {
		case xerrors.Is(err, machine.ErrInsufficientFunds):
			runtime.Abortf(exitcode.SysErrInsufficientFunds, "%s", err)
		case xerrors.Is(err, machine.ErrNegativeValue):
			runtime.Abortf(exitcode.SysErrForbidden, "%s", err)
		case xerrors.Is(err, machine.ErrActorNotFound):
			runtime.Abortf(exitcode.SysErrSenderInvalid, "%s", err)
		default:
			panic(runtime.FatalError{Err: err})
		}
	}
	f.state = Running

	// 4. if we are just sending funds, there is nothing else to do.
	if method == types.MethodSend {
		return nil, exitcode.Ok
	}

	// 5. load the receiver's code
	toActor := cm.mustGetActor(f.to)
	module, err := cm.machine.LoadModule(cm.ctx, toActor.Code)
	if err != nil {
		if xerrors.Is(err, machine.ErrCodeNotFound) || xerrors.Is(err, machine.ErrInvalidCode) {
			runtime.Abortf(exitcode.SysErrInvalidReceiver, "cannot load code of actor %d: %s", f.to, err)
		}
		panic(runtime.FatalError{Err: err})
	}

	// 6. dispatch
	ic := newInvocationContext(cm, f)
	return cm.dispatch(module, ic, method, params), exitcode.Ok
}

func (cm *CallManager) dispatch(module *engine.Module, ic *invocationContext, method abi.MethodNum, params []byte) []byte {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case runtime.ExecutionPanic, runtime.FatalError:
				panic(r)
			default:
				log.Warnf("actor %d (%s) panicked in method %d: %v", ic.frame.to, module.Name, method, r)
				runtime.Abortf(exitcode.SysErrorIllegalActor, "actor %d panicked: %v", ic.frame.to, r)
			}
		}
	}()

	ret, err := module.Dispatcher().Dispatch(method, ic, params)
	if err != nil {
		runtime.Abortf(err.ExitCode(), "dispatch to actor %d: %s", ic.frame.to, err)
	}
	return ret
}

func (cm *CallManager) resolveReceiver(to address.Address) abi.ActorID {
	id, err := cm.state.LookupID(cm.ctx, to)
	if err == nil {
		if _, found := cm.getActor(id); !found {
			runtime.Abortf(exitcode.SysErrInvalidReceiver, "actor %s not found", to)
		}
		return id
	}
	if !xerrors.Is(err, types.ErrActorNotFound) {
		panic(runtime.FatalError{Err: err})
	}

	switch to.Protocol() {
	case address.SECP256K1, address.BLS:
		return cm.createAccount(to)
	default:
		runtime.Abortf(exitcode.SysErrInvalidReceiver, "actor %s not found", to)
		return 0
	}
}

// createAccount installs an account actor for a key address and runs its constructor.
func (cm *CallManager) createAccount(addr address.Address) abi.ActorID {
	cm.Charge(gas.Operation{Kind: gas.OpCreateActor})

	id, err := cm.machine.CreateActor(cm.ctx, addr, types.NewActor(constants.AccountActorCodeID, constants.EmptyObjectCid))
	if err != nil {
		panic(runtime.FatalError{Err: xerrors.Errorf("create account for %s: %w", addr, err)})
	}
	log.Debugw("created account", "address", addr, "id", id)

	idAddr, err := address.NewIDAddress(uint64(id))
	if err != nil {
		panic(runtime.FatalError{Err: err})
	}
	buf := new(bytes.Buffer)
	if err := addr.MarshalCBOR(buf); err != nil {
		panic(runtime.FatalError{Err: err})
	}
	if _, code := cm.send(constants.SystemActorID, idAddr, types.MethodConstructor, buf.Bytes(), big.Zero()); code != exitcode.Ok {
		runtime.Abortf(code, "constructing account for %s failed", addr)
	}
	return id
}

func (cm *CallManager) getActor(id abi.ActorID) (*types.Actor, bool) {
	act, found, err := cm.state.GetActor(cm.ctx, id)
	if err != nil {
		panic(runtime.FatalError{Err: err})
	}
	return act, found
}

func (cm *CallManager) mustGetActor(id abi.ActorID) *types.Actor {
	act, found := cm.getActor(id)
	if !found {
		runtime.Abortf(exitcode.SysErrInvalidReceiver, "actor %d not found", id)
	}
	return act
}

// newActorAddress derives a unique actor address from the origin of the message, its nonce and
// the number of actors created so far.
func (cm *CallManager) newActorAddress() address.Address {
	origin, err := address.NewIDAddress(uint64(cm.origin))
	if err != nil {
		panic(runtime.FatalError{Err: err})
	}
	buf := new(bytes.Buffer)
	buf.Write(origin.Bytes())
	scratch := make([]byte, 9)
	for _, n := range []uint64{cm.originNonce, cm.actorsCreated} {
		if err := cbg.WriteMajorTypeHeaderBuf(scratch, buf, cbg.MajUnsignedInt, n); err != nil {
			panic(runtime.FatalError{Err: err})
		}
	}
	cm.actorsCreated++

	addr, err := address.NewActorAddress(buf.Bytes())
	if err != nil {
		panic(runtime.FatalError{Err: err})
	}
	return addr
}
