package callmanager

import (
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/runtime"
)

var actorLog = logging.Logger("vm.actor")

// invocationContext is the runtime handed to the code of one frame.
type invocationContext struct {
	cm    *CallManager
	frame *frame

	callerValidated bool
}

var _ runtime.Runtime = (*invocationContext)(nil)

func newInvocationContext(cm *CallManager, f *frame) *invocationContext {
	return &invocationContext{cm: cm, frame: f}
}

func idAddress(id abi.ActorID) address.Address {
	addr, err := address.NewIDAddress(uint64(id))
	if err != nil {
		panic(runtime.FatalError{Err: err})
	}
	return addr
}

func (ic *invocationContext) Caller() address.Address {
	return idAddress(ic.frame.from)
}

func (ic *invocationContext) Receiver() address.Address {
	return idAddress(ic.frame.to)
}

func (ic *invocationContext) ValueReceived() abi.TokenAmount {
	return ic.frame.value
}

func (ic *invocationContext) CurrEpoch() abi.ChainEpoch {
	return ic.cm.machine.Context().Epoch()
}

func (ic *invocationContext) NetworkVersion() network.Version {
	return ic.cm.machine.Context().NetworkVersion()
}

func (ic *invocationContext) BaseFee() abi.TokenAmount {
	return ic.cm.machine.Context().BaseFee()
}

func (ic *invocationContext) CurrentBalance() abi.TokenAmount {
	return ic.cm.mustGetActor(ic.frame.to).Balance
}

func (ic *invocationContext) BalanceOf(id abi.ActorID) (abi.TokenAmount, bool) {
	ic.chargeSyscall(gas.SyscallLookupActorBalance, 0)
	act, found := ic.cm.getActor(id)
	if !found {
		return big.Zero(), false
	}
	return act.Balance, true
}

func (ic *invocationContext) StateRoot() cid.Cid {
	return ic.cm.mustGetActor(ic.frame.to).Head
}

func (ic *invocationContext) SetStateRoot(c cid.Cid) {
	err := ic.cm.state.MutateActor(ic.cm.ctx, ic.frame.to, func(act *types.Actor) error {
		act.Head = c
		return nil
	})
	if err != nil {
		panic(runtime.FatalError{Err: xerrors.Errorf("set state root of %d: %w", ic.frame.to, err)})
	}
}

func (ic *invocationContext) StoreGet(c cid.Cid, o cbor.Unmarshaler) bool {
	if err := ic.cm.store.Get(ic.cm.ctx, c, o); err != nil {
		if xerrors.Is(err, blockstore.ErrNotFound) {
			return false
		}
		ic.Abortf(exitcode.ErrSerialization, "failed to load %s: %s", c, err)
	}
	return true
}

func (ic *invocationContext) StorePut(x cbor.Marshaler) cid.Cid {
	c, err := ic.cm.store.Put(ic.cm.ctx, x)
	if err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to store object: %s", err)
	}
	return c
}

// Send runs a nested call. A callee failure with a fatal exit code also fails this frame.
func (ic *invocationContext) Send(to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount) ([]byte, exitcode.ExitCode) {
	ret, code := ic.cm.send(ic.frame.to, to, method, params, value)
	if code != exitcode.Ok && (ic.cm.taxonomy.IsFatal(code) || ic.cm.gasTank.Exhausted()) {
		runtime.Abortf(code, "nested call to %s failed fatally", to)
	}
	return ret, code
}

func (ic *invocationContext) NewActorAddress() address.Address {
	return ic.cm.newActorAddress()
}

func (ic *invocationContext) CreateActor(code cid.Cid, addr address.Address) abi.ActorID {
	ic.cm.Charge(gas.Operation{Kind: gas.OpCreateActor})

	if _, err := ic.cm.machine.LoadModule(ic.cm.ctx, code); err != nil {
		if xerrors.Is(err, machine.ErrCodeNotFound) || xerrors.Is(err, machine.ErrInvalidCode) {
			runtime.Abortf(exitcode.SysErrorIllegalArgument, "cannot create actor with code %s: %s", code, err)
		}
		panic(runtime.FatalError{Err: err})
	}

	id, err := ic.cm.machine.CreateActor(ic.cm.ctx, addr, types.NewActor(code, constants.EmptyObjectCid))
	if err != nil {
		switch {
		case xerrors.Is(err, machine.ErrActorExists):
			runtime.Abortf(exitcode.SysErrForbidden, "actor at %s already exists", addr)
		case xerrors.Is(err, machine.ErrInvalidAddress):
			runtime.Abortf(exitcode.SysErrorIllegalArgument, "cannot create actor at %s: %s", addr, err)
		default:
			panic(runtime.FatalError{Err: err})
		}
	}
	return id
}

func (ic *invocationContext) ResolveAddress(addr address.Address) (abi.ActorID, bool) {
	ic.chargeSyscall(gas.SyscallResolveAddress, len(addr.Bytes()))
	id, err := ic.cm.state.LookupID(ic.cm.ctx, addr)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) || xerrors.Is(err, machine.ErrInvalidAddress) {
			return 0, false
		}
		panic(runtime.FatalError{Err: err})
	}
	return id, true
}

func (ic *invocationContext) ChargeCompute(steps int64) {
	if steps < 0 {
		ic.Abortf(exitcode.SysErrorIllegalArgument, "negative compute steps %d", steps)
	}
	ic.cm.Charge(gas.Operation{Kind: gas.OpCompute, Steps: steps})
}

func (ic *invocationContext) ChargeMemory(size int) {
	if size < 0 {
		ic.Abortf(exitcode.SysErrorIllegalArgument, "negative memory size %d", size)
	}
	ic.cm.Charge(gas.Operation{Kind: gas.OpMemory, Size: size})
}

func (ic *invocationContext) Remaining() int64 {
	return ic.cm.gasTank.Remaining()
}

func (ic *invocationContext) GetChainRandomness(tag crypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness {
	ic.chargeSyscall(gas.SyscallChainRandomness, len(entropy))
	ext := ic.externs()
	r, err := ext.GetChainRandomness(ic.cm.ctx, tag, epoch, entropy)
	if err != nil {
		panic(runtime.FatalError{Err: xerrors.Errorf("chain randomness at %d: %w", epoch, err)})
	}
	return r
}

func (ic *invocationContext) GetBeaconRandomness(tag crypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness {
	ic.chargeSyscall(gas.SyscallBeaconRandomness, len(entropy))
	ext := ic.externs()
	r, err := ext.GetBeaconRandomness(ic.cm.ctx, tag, epoch, entropy)
	if err != nil {
		panic(runtime.FatalError{Err: xerrors.Errorf("beacon randomness at %d: %w", epoch, err)})
	}
	return r
}

func (ic *invocationContext) HashBlake2b(data []byte) [32]byte {
	ic.chargeSyscall(gas.SyscallHashBlake2b, len(data))
	return blake2b.Sum256(data)
}

func (ic *invocationContext) ValidateImmediateCallerAcceptAny() {
	ic.assertCallerNotValidated()
	ic.callerValidated = true
}

func (ic *invocationContext) ValidateImmediateCallerIs(addrs ...address.Address) {
	ic.assertCallerNotValidated()
	ic.callerValidated = true
	for _, addr := range addrs {
		id, err := ic.cm.state.LookupID(ic.cm.ctx, addr)
		if err == nil && id == ic.frame.from {
			return
		}
	}
	ic.Abortf(exitcode.SysErrForbidden, "caller %d is not one of %v", ic.frame.from, addrs)
}

// Abortf aborts the frame with an error raised by the receiver. Actors may not exit with Ok or
// with a code reserved for fatal conditions.
func (ic *invocationContext) Abortf(code exitcode.ExitCode, msg string, args ...interface{}) {
	if code == exitcode.Ok || ic.cm.taxonomy.IsFatal(code) {
		runtime.ActorAbortf(ic.frame.to, exitcode.SysErrorIllegalActor, "actor aborted with reserved code %d: %s", code, fmt.Sprintf(msg, args...))
	}
	runtime.ActorAbortf(ic.frame.to, code, msg, args...)
}

func (ic *invocationContext) Log(level runtime.LogLevel, msg string, args ...interface{}) {
	l := actorLog.With("actor", ic.frame.to, "method", ic.frame.method)
	switch level {
	case runtime.DEBUG:
		l.Debugf(msg, args...)
	case runtime.INFO:
		l.Infof(msg, args...)
	case runtime.WARN:
		l.Warnf(msg, args...)
	case runtime.ERROR:
		l.Errorf(msg, args...)
	}
}

func (ic *invocationContext) chargeSyscall(name string, size int) {
	ic.cm.Charge(gas.Operation{Kind: gas.OpSyscall, Name: name, Size: size})
}

func (ic *invocationContext) externs() machine.Externs {
	ext := ic.cm.machine.Externs()
	if ext == nil {
		runtime.Fatalf("machine has no externs")
	}
	return ext
}

func (ic *invocationContext) assertCallerNotValidated() {
	if ic.callerValidated {
		ic.Abortf(exitcode.SysErrorIllegalActor, "caller validated twice")
	}
}
