package runtime

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
)

// LogLevel is the level of a message logged by actor code.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Message contains information available to the actor about the executing message.
type Message interface {
	// Caller is the ID address of the immediate caller.
	Caller() address.Address
	// Receiver is the ID address of the actor being invoked.
	Receiver() address.Address
	// ValueReceived is the amount of FIL transferred to the receiver with this call.
	ValueReceived() abi.TokenAmount
}

// Store gives actor code access to the IPLD store. Every access is charged.
type Store interface {
	// StoreGet loads the object at c into o, returning false if there is no such block.
	StoreGet(c cid.Cid, o cbor.Unmarshaler) bool
	// StorePut writes x and returns its cid.
	StorePut(x cbor.Marshaler) cid.Cid
}

// Runtime is the syscall surface handed to actor code for the duration of one call.
//
// Every method either returns or aborts the current call with `Abortf` semantics. Only Send
// reports the failure of a nested call as a value.
type Runtime interface {
	Message
	Store

	CurrEpoch() abi.ChainEpoch
	NetworkVersion() network.Version
	BaseFee() abi.TokenAmount

	// CurrentBalance is the balance of the receiver.
	CurrentBalance() abi.TokenAmount
	// BalanceOf returns the balance of the given actor.
	BalanceOf(id abi.ActorID) (abi.TokenAmount, bool)

	// StateRoot is the head of the receiver's own state.
	StateRoot() cid.Cid
	// SetStateRoot replaces the head of the receiver's state. The block must already be stored.
	SetStateRoot(c cid.Cid)

	// Send invokes method on the actor at to. A failure of the callee is returned as its exit code;
	// the callee's state changes are discarded in that case.
	Send(to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount) ([]byte, exitcode.ExitCode)
	// CreateActor installs a new actor with the given code at addr.
	CreateActor(code cid.Cid, addr address.Address) abi.ActorID
	// NewActorAddress returns an address that is unique to this call of CreateActor.
	NewActorAddress() address.Address
	// ResolveAddress returns the ID of the actor at addr.
	ResolveAddress(addr address.Address) (abi.ActorID, bool)

	// ChargeCompute reports steps of execution.
	ChargeCompute(steps int64)
	// ChargeMemory reports an allocation of size bytes.
	ChargeMemory(size int)
	// Remaining is the gas left for the whole message.
	Remaining() int64

	GetChainRandomness(tag crypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness
	GetBeaconRandomness(tag crypto.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness
	HashBlake2b(data []byte) [32]byte

	// ValidateImmediateCallerAcceptAny accepts any caller.
	ValidateImmediateCallerAcceptAny()
	// ValidateImmediateCallerIs aborts unless the caller is one of addrs.
	ValidateImmediateCallerIs(addrs ...address.Address)

	// Abortf aborts the call with an error raised by the receiver.
	Abortf(code exitcode.ExitCode, msg string, args ...interface{})
	Log(level LogLevel, msg string, args ...interface{})
}
