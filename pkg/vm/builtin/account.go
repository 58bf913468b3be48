package builtin

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/runtime"
)

// AccountState records the key address an account was created for.
type AccountState struct {
	Address address.Address
}

// AccountActor is the actor behind every key address.
type AccountActor struct{}

func (AccountActor) Name() string { return constants.AccountActorName }

func (a AccountActor) Exports() []interface{} {
	return []interface{}{
		1: a.Constructor,
		2: a.PubkeyAddress,
	}
}

// Constructor is only called by the system actor, right after the account's ID is assigned.
func (AccountActor) Constructor(rt runtime.Runtime, addr *address.Address) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(constants.SystemActorAddr)
	switch addr.Protocol() {
	case address.SECP256K1, address.BLS:
	default:
		rt.Abortf(exitcode.ErrIllegalArgument, "address must use BLS or SECP protocol, got %v", addr.Protocol())
	}
	rt.SetStateRoot(rt.StorePut(&AccountState{Address: *addr}))
	return nil
}

// PubkeyAddress returns the key address of the account.
func (AccountActor) PubkeyAddress(rt runtime.Runtime, _ *abi.EmptyValue) *address.Address {
	rt.ValidateImmediateCallerAcceptAny()
	var st AccountState
	if !rt.StoreGet(rt.StateRoot(), &st) {
		rt.Abortf(exitcode.ErrIllegalState, "account %s has no state", rt.Receiver())
	}
	return &st.Address
}
