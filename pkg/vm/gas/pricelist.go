package gas

import (
	"errors"
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
)

// ErrUnknownOperation is returned for an operation category the pricelist has no price for.
var ErrUnknownOperation = errors.New("unknown operation kind")

// OperationKind is a category of work the execution engine reports.
type OperationKind string

const (
	OpSyscall      OperationKind = "syscall"
	OpMemory       OperationKind = "memory"
	OpCompute      OperationKind = "compute"
	OpIpldGet      OperationKind = "ipld_get"
	OpIpldPut      OperationKind = "ipld_put"
	OpSend         OperationKind = "send"
	OpChainMessage OperationKind = "on_chain_message"
	OpChainReturn  OperationKind = "on_chain_return"
	OpCreateActor  OperationKind = "create_actor"
)

// OperationKinds lists every category Cost prices.
var OperationKinds = []OperationKind{
	OpSyscall, OpMemory, OpCompute, OpIpldGet, OpIpldPut, OpSend, OpChainMessage, OpChainReturn, OpCreateActor,
}

// Operation describes one unit of reported work. Only the fields relevant to Kind are read.
type Operation struct {
	Kind OperationKind

	// Name of the syscall.
	Name string
	// Size in bytes of the data the operation touches.
	Size int
	// Steps executed, for compute.
	Steps int64

	// Value and Method of a send.
	Value  abi.TokenAmount
	Method abi.MethodNum
}

// Pricelist assigns a deterministic gas cost to every operation category.
//
// Costs are a function of the operation parameters only. Storage gas is scaled by
// StorageGasMulti, compute gas by ComputeGasMulti.
type Pricelist struct {
	ComputeGasMulti int64 `toml:"computeGasMulti"`
	StorageGasMulti int64 `toml:"storageGasMulti"`

	OnChainMessageComputeBase    int64 `toml:"onChainMessageComputeBase"`
	OnChainMessageStorageBase    int64 `toml:"onChainMessageStorageBase"`
	OnChainMessageStoragePerByte int64 `toml:"onChainMessageStoragePerByte"`
	OnChainReturnValuePerByte    int64 `toml:"onChainReturnValuePerByte"`

	SendBase                int64 `toml:"sendBase"`
	SendTransferFunds       int64 `toml:"sendTransferFunds"`
	SendTransferOnlyPremium int64 `toml:"sendTransferOnlyPremium"`
	// SendInvokeMethod may be negative: invoking code is cheaper than a plain transfer.
	SendInvokeMethod int64 `toml:"sendInvokeMethod"`

	IpldGetBase    int64 `toml:"ipldGetBase"`
	IpldGetPerByte int64 `toml:"ipldGetPerByte"`
	IpldPutBase    int64 `toml:"ipldPutBase"`
	IpldPutPerByte int64 `toml:"ipldPutPerByte"`

	CreateActorCompute int64 `toml:"createActorCompute"`
	CreateActorStorage int64 `toml:"createActorStorage"`

	ComputePerStep int64 `toml:"computePerStep"`
	MemoryPerByte  int64 `toml:"memoryPerByte"`

	SyscallBase    int64 `toml:"syscallBase"`
	SyscallPerByte int64 `toml:"syscallPerByte"`
	// Syscalls overrides SyscallBase for individual syscalls.
	Syscalls map[string]int64 `toml:"syscalls"`
}

// Syscall names priced by the runtime.
const (
	SyscallHashBlake2b        = "hash_blake2b"
	SyscallChainRandomness    = "get_chain_randomness"
	SyscallBeaconRandomness   = "get_beacon_randomness"
	SyscallResolveAddress     = "resolve_address"
	SyscallLookupActorBalance = "balance_of"
)

// NewDefaultPricelist returns the calico-era prices.
func NewDefaultPricelist() *Pricelist {
	return &Pricelist{
		ComputeGasMulti: 1,
		StorageGasMulti: 1300,

		OnChainMessageComputeBase:    38863,
		OnChainMessageStorageBase:    36,
		OnChainMessageStoragePerByte: 1,
		OnChainReturnValuePerByte:    1,

		SendBase:                29233,
		SendTransferFunds:       27500,
		SendTransferOnlyPremium: 159672,
		SendInvokeMethod:        -5377,

		IpldGetBase:    114617,
		IpldGetPerByte: 1,
		IpldPutBase:    353640,
		IpldPutPerByte: 1,

		CreateActorCompute: 1108454,
		CreateActorStorage: 36 + 40,

		ComputePerStep: 4,
		MemoryPerByte:  1,

		SyscallBase:    14000,
		SyscallPerByte: 1,
		Syscalls: map[string]int64{
			SyscallHashBlake2b:        31355,
			SyscallChainRandomness:    21000,
			SyscallBeaconRandomness:   21000,
			SyscallResolveAddress:     14000,
			SyscallLookupActorBalance: 14000,
		},
	}
}

// Validate reports every price that would make costs negative or meaningless.
func (pl *Pricelist) Validate() error {
	var result *multierror.Error
	positive := map[string]int64{
		"computeGasMulti": pl.ComputeGasMulti,
		"storageGasMulti": pl.StorageGasMulti,
	}
	for name, v := range positive {
		if v < 1 {
			result = multierror.Append(result, fmt.Errorf("%s must be at least 1, got %d", name, v))
		}
	}
	nonNegative := map[string]int64{
		"onChainMessageComputeBase":    pl.OnChainMessageComputeBase,
		"onChainMessageStorageBase":    pl.OnChainMessageStorageBase,
		"onChainMessageStoragePerByte": pl.OnChainMessageStoragePerByte,
		"onChainReturnValuePerByte":    pl.OnChainReturnValuePerByte,
		"sendBase":                     pl.SendBase,
		"sendTransferFunds":            pl.SendTransferFunds,
		"sendTransferOnlyPremium":      pl.SendTransferOnlyPremium,
		"ipldGetBase":                  pl.IpldGetBase,
		"ipldGetPerByte":               pl.IpldGetPerByte,
		"ipldPutBase":                  pl.IpldPutBase,
		"ipldPutPerByte":               pl.IpldPutPerByte,
		"createActorCompute":           pl.CreateActorCompute,
		"createActorStorage":           pl.CreateActorStorage,
		"computePerStep":               pl.ComputePerStep,
		"memoryPerByte":                pl.MemoryPerByte,
		"syscallBase":                  pl.SyscallBase,
		"syscallPerByte":               pl.SyscallPerByte,
	}
	for name, v := range nonNegative {
		if v < 0 {
			result = multierror.Append(result, fmt.Errorf("%s cannot be negative, got %d", name, v))
		}
	}
	for name, v := range pl.Syscalls {
		if v < 0 {
			result = multierror.Append(result, fmt.Errorf("syscall %s cannot be negative, got %d", name, v))
		}
	}
	if pl.SendBase+pl.SendInvokeMethod < 0 {
		result = multierror.Append(result, fmt.Errorf("sendBase + sendInvokeMethod cannot be negative"))
	}
	return result.ErrorOrNil()
}

// Cost prices a reported operation. It is total over OperationKinds; any other kind is a
// configuration error.
func (pl *Pricelist) Cost(op Operation) (GasCharge, error) {
	switch op.Kind {
	case OpSyscall:
		return pl.OnSyscall(op.Name, op.Size), nil
	case OpMemory:
		return pl.OnMemory(op.Size), nil
	case OpCompute:
		return pl.OnCompute(op.Steps), nil
	case OpIpldGet:
		return pl.OnIpldGet(op.Size), nil
	case OpIpldPut:
		return pl.OnIpldPut(op.Size), nil
	case OpSend:
		return pl.OnMethodInvocation(op.Value, op.Method), nil
	case OpChainMessage:
		return pl.OnChainMessage(op.Size), nil
	case OpChainReturn:
		return pl.OnChainReturnValue(op.Size), nil
	case OpCreateActor:
		return pl.OnCreateActor(), nil
	default:
		return GasCharge{}, xerrors.Errorf("pricing %q: %w", op.Kind, ErrUnknownOperation)
	}
}

func (pl *Pricelist) compute(gas int64) int64 {
	return mulSat(gas, pl.ComputeGasMulti)
}

func (pl *Pricelist) storage(gas int64) int64 {
	return mulSat(gas, pl.StorageGasMulti)
}

// OnChainMessage returns the gas used for storing a message of a given size in the chain.
func (pl *Pricelist) OnChainMessage(msgSize int) GasCharge {
	return NewGasCharge("OnChainMessage", pl.compute(pl.OnChainMessageComputeBase),
		pl.storage(addSat(pl.OnChainMessageStorageBase, mulSat(pl.OnChainMessageStoragePerByte, int64(msgSize)))))
}

// OnChainReturnValue returns the gas used for storing the response of a message in the chain.
func (pl *Pricelist) OnChainReturnValue(dataSize int) GasCharge {
	return NewGasCharge("OnChainReturnValue", 0, pl.storage(mulSat(int64(dataSize), pl.OnChainReturnValuePerByte)))
}

// OnMethodInvocation returns the gas used when invoking a method.
func (pl *Pricelist) OnMethodInvocation(value abi.TokenAmount, methodNum abi.MethodNum) GasCharge {
	ret := pl.SendBase
	extra := ""

	if value.Int != nil && big.Cmp(value, big.Zero()) != 0 {
		ret += pl.SendTransferFunds
		if methodNum == 0 {
			// transfer only
			ret += pl.SendTransferOnlyPremium
		}
		extra += "t"
	}

	if methodNum != 0 {
		extra += "i"
		ret += pl.SendInvokeMethod
	}
	return NewGasCharge("OnMethodInvocation", pl.compute(ret), 0).WithExtra(extra)
}

// OnIpldGet returns the gas used for reading a block of dataSize bytes.
func (pl *Pricelist) OnIpldGet(dataSize int) GasCharge {
	return NewGasCharge("OnIpldGet", pl.compute(addSat(pl.IpldGetBase, mulSat(pl.IpldGetPerByte, int64(dataSize)))), 0).
		WithExtra(dataSize)
}

// OnIpldPut returns the gas used for storing a block of dataSize bytes.
func (pl *Pricelist) OnIpldPut(dataSize int) GasCharge {
	return NewGasCharge("OnIpldPut", pl.compute(pl.IpldPutBase), pl.storage(mulSat(int64(dataSize), pl.IpldPutPerByte))).
		WithExtra(dataSize)
}

// OnCreateActor returns the gas used for creating an actor.
func (pl *Pricelist) OnCreateActor() GasCharge {
	return NewGasCharge("OnCreateActor", pl.compute(pl.CreateActorCompute), pl.storage(pl.CreateActorStorage))
}

// OnCompute returns the gas used for steps of execution reported by the engine.
func (pl *Pricelist) OnCompute(steps int64) GasCharge {
	return NewGasCharge("OnCompute", pl.compute(mulSat(steps, pl.ComputePerStep)), 0)
}

// OnMemory returns the gas used for allocating size bytes.
func (pl *Pricelist) OnMemory(size int) GasCharge {
	return NewGasCharge("OnMemory", pl.compute(mulSat(int64(size), pl.MemoryPerByte)), 0)
}

// OnSyscall returns the gas used for a syscall with paramSize bytes of input.
func (pl *Pricelist) OnSyscall(name string, paramSize int) GasCharge {
	base, ok := pl.Syscalls[name]
	if !ok {
		base = pl.SyscallBase
	}
	return NewGasCharge("OnSyscall", pl.compute(addSat(base, mulSat(int64(paramSize), pl.SyscallPerByte))), 0).WithExtra(name)
}
