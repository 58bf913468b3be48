package builtin

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/runtime"
)

// ChaosActor exercises the machine from inside actor code: nested sends, aborts, gas burning,
// state mutation and actor creation. It is installed in test and tool networks only.
type ChaosActor struct{}

// Method numbers of the chaos actor.
const (
	MethodChaosSend         = abi.MethodNum(2)
	MethodChaosForward      = abi.MethodNum(3)
	MethodChaosAbort        = abi.MethodNum(4)
	MethodChaosBurnGas      = abi.MethodNum(5)
	MethodChaosMutateState  = abi.MethodNum(6)
	MethodChaosCreateActor  = abi.MethodNum(7)
	MethodChaosResolve      = abi.MethodNum(8)
	MethodChaosInspect      = abi.MethodNum(9)
	MethodChaosHash         = abi.MethodNum(10)
	MethodChaosNewActorAddr = abi.MethodNum(11)
	MethodChaosInspectState = abi.MethodNum(12)
	MethodChaosUncontrolled = abi.MethodNum(13)
	MethodChaosChargeMemory = abi.MethodNum(14)
)

func (ChaosActor) Name() string { return constants.ChaosActorName }

func (a ChaosActor) Exports() []interface{} {
	return []interface{}{
		1:                       a.Constructor,
		MethodChaosSend:         a.Send,
		MethodChaosForward:      a.Forward,
		MethodChaosAbort:        a.Abort,
		MethodChaosBurnGas:      a.BurnGas,
		MethodChaosMutateState:  a.MutateState,
		MethodChaosCreateActor:  a.CreateActor,
		MethodChaosResolve:      a.ResolveAddress,
		MethodChaosInspect:      a.InspectRuntime,
		MethodChaosHash:         a.Hash,
		MethodChaosNewActorAddr: a.NewActorAddress,
		MethodChaosInspectState: a.InspectState,
		MethodChaosUncontrolled: a.Uncontrolled,
		MethodChaosChargeMemory: a.ChargeMemory,
	}
}

// ChaosState is the state written by MutateState.
type ChaosState struct {
	Value string
}

// SendArgs describes a nested call. To is the byte form of the receiver address and Value a
// decimal attoFIL amount.
type SendArgs struct {
	_      struct{} `cbor:",toarray"`
	To     []byte
	Value  string
	Method uint64
	Params []byte
}

// SendReturn is the outcome of a nested call.
type SendReturn struct {
	_      struct{} `cbor:",toarray"`
	Return []byte
	Code   int64
}

// AbortArgs is the code and message the actor aborts with.
type AbortArgs struct {
	_       struct{} `cbor:",toarray"`
	Code    int64
	Message string
}

// BurnGasArgs reports Steps of compute.
type BurnGasArgs struct {
	_     struct{} `cbor:",toarray"`
	Steps int64
}

// Mutation branches of MutateState.
const (
	MutateAndReturn int64 = iota
	MutateAndAbort
)

// MutateStateArgs writes Value as the actor's state and then follows Branch.
type MutateStateArgs struct {
	_      struct{} `cbor:",toarray"`
	Value  string
	Branch int64
}

// CreateActorArgs installs an actor with code Code at Address. Empty fields use the chaos code
// and a fresh actor address.
type CreateActorArgs struct {
	_       struct{} `cbor:",toarray"`
	Code    []byte
	Address []byte
}

// ResolveAddressResponse reports the ID an address resolves to.
type ResolveAddressResponse struct {
	_       struct{} `cbor:",toarray"`
	ID      uint64
	Success bool
}

// InspectRuntimeReturn exposes what the runtime tells the actor about the call.
type InspectRuntimeReturn struct {
	_              struct{} `cbor:",toarray"`
	Caller         uint64
	Receiver       uint64
	ValueReceived  string
	CurrEpoch      int64
	CurrentBalance string
	NetworkVersion uint64
}

func (ChaosActor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	return nil
}

// Send calls another actor and returns its outcome without failing itself.
func (a ChaosActor) Send(rt runtime.Runtime, args *SendArgs) *SendReturn {
	rt.ValidateImmediateCallerAcceptAny()
	ret, code := a.send(rt, args)
	return &SendReturn{Return: ret, Code: int64(code)}
}

// Forward calls another actor and fails with the callee's exit code if the callee fails.
func (a ChaosActor) Forward(rt runtime.Runtime, args *SendArgs) []byte {
	rt.ValidateImmediateCallerAcceptAny()
	ret, code := a.send(rt, args)
	if code != exitcode.Ok {
		rt.Abortf(code, "forwarded call failed")
	}
	return ret
}

func (ChaosActor) send(rt runtime.Runtime, args *SendArgs) ([]byte, exitcode.ExitCode) {
	to, err := address.NewFromBytes(args.To)
	if err != nil {
		rt.Abortf(exitcode.ErrIllegalArgument, "bad receiver address: %s", err)
	}
	value := big.Zero()
	if args.Value != "" {
		value, err = big.FromString(args.Value)
		if err != nil {
			rt.Abortf(exitcode.ErrIllegalArgument, "bad value %q: %s", args.Value, err)
		}
	}
	return rt.Send(to, abi.MethodNum(args.Method), args.Params, value)
}

// Abort fails the call with the given code.
func (ChaosActor) Abort(rt runtime.Runtime, args *AbortArgs) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	rt.Abortf(exitcode.ExitCode(args.Code), "%s", args.Message)
	return nil
}

// Uncontrolled panics with a value the runtime does not know about.
func (ChaosActor) Uncontrolled(rt runtime.Runtime, args *AbortArgs) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	panic(args.Message)
}

// BurnGas reports compute steps to the runtime.
func (ChaosActor) BurnGas(rt runtime.Runtime, args *BurnGasArgs) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	rt.ChargeCompute(args.Steps)
	return nil
}

// ChargeMemory reports an allocation of Steps bytes.
func (ChaosActor) ChargeMemory(rt runtime.Runtime, args *BurnGasArgs) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	rt.ChargeMemory(int(args.Steps))
	return nil
}

// MutateState replaces the actor's state.
func (ChaosActor) MutateState(rt runtime.Runtime, args *MutateStateArgs) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	rt.SetStateRoot(rt.StorePut(&ChaosState{Value: args.Value}))
	switch args.Branch {
	case MutateAndReturn:
	case MutateAndAbort:
		rt.Abortf(exitcode.FirstActorErrorCode, "aborting after state mutation")
	default:
		rt.Abortf(exitcode.ErrIllegalArgument, "unknown branch %d", args.Branch)
	}
	return nil
}

// InspectState returns the value stored by MutateState.
func (ChaosActor) InspectState(rt runtime.Runtime, _ *abi.EmptyValue) *ChaosState {
	rt.ValidateImmediateCallerAcceptAny()
	var st ChaosState
	head := rt.StateRoot()
	if head.Equals(constants.EmptyObjectCid) {
		return &st
	}
	if !rt.StoreGet(head, &st) {
		rt.Abortf(exitcode.ErrIllegalState, "state %s not found", head)
	}
	return &st
}

// CreateActor installs a new actor and returns its ID.
func (ChaosActor) CreateActor(rt runtime.Runtime, args *CreateActorArgs) *cbg.CborInt {
	rt.ValidateImmediateCallerAcceptAny()

	code := constants.ChaosActorCodeID
	if len(args.Code) > 0 {
		c, err := cid.Cast(args.Code)
		if err != nil {
			rt.Abortf(exitcode.ErrIllegalArgument, "bad code cid: %s", err)
		}
		code = c
	}

	var addr address.Address
	if len(args.Address) > 0 {
		a, err := address.NewFromBytes(args.Address)
		if err != nil {
			rt.Abortf(exitcode.ErrIllegalArgument, "bad address: %s", err)
		}
		addr = a
	} else {
		addr = rt.NewActorAddress()
	}

	id := cbg.CborInt(rt.CreateActor(code, addr))
	return &id
}

// ResolveAddress resolves the address given as raw bytes.
func (ChaosActor) ResolveAddress(rt runtime.Runtime, raw []byte) *ResolveAddressResponse {
	rt.ValidateImmediateCallerAcceptAny()
	addr, err := address.NewFromBytes(raw)
	if err != nil {
		rt.Abortf(exitcode.ErrIllegalArgument, "bad address: %s", err)
	}
	id, ok := rt.ResolveAddress(addr)
	return &ResolveAddressResponse{ID: uint64(id), Success: ok}
}

// InspectRuntime returns the call information of the runtime.
func (ChaosActor) InspectRuntime(rt runtime.Runtime, _ *abi.EmptyValue) *InspectRuntimeReturn {
	rt.ValidateImmediateCallerAcceptAny()
	caller, _ := address.IDFromAddress(rt.Caller())
	receiver, _ := address.IDFromAddress(rt.Receiver())
	return &InspectRuntimeReturn{
		Caller:         caller,
		Receiver:       receiver,
		ValueReceived:  rt.ValueReceived().String(),
		CurrEpoch:      int64(rt.CurrEpoch()),
		CurrentBalance: rt.CurrentBalance().String(),
		NetworkVersion: uint64(rt.NetworkVersion()),
	}
}

// Hash returns the blake2b-256 digest of the input.
func (ChaosActor) Hash(rt runtime.Runtime, data []byte) []byte {
	rt.ValidateImmediateCallerAcceptAny()
	h := rt.HashBlake2b(data)
	return h[:]
}

// NewActorAddress returns the byte form of a fresh actor address.
func (ChaosActor) NewActorAddress(rt runtime.Runtime, _ *abi.EmptyValue) []byte {
	rt.ValidateImmediateCallerAcceptAny()
	return rt.NewActorAddress().Bytes()
}
