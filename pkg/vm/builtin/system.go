package builtin

import (
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/runtime"
)

// SystemActor is the actor at ID 0. It has no methods besides its constructor.
type SystemActor struct{}

func (SystemActor) Name() string { return constants.SystemActorName }

func (a SystemActor) Exports() []interface{} {
	return []interface{}{
		1: a.Constructor,
	}
}

func (SystemActor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(constants.SystemActorAddr)
	return nil
}
