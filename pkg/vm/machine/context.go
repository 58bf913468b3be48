package machine

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"

	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
)

// MachineContext is the execution context a machine is created with. It never changes for the
// lifetime of the machine: epoch and base fee are fixed per block.
type MachineContext struct { //nolint
	epoch            abi.ChainEpoch
	baseFee          abi.TokenAmount
	initialStateRoot cid.Cid
	pricelist        gas.Pricelist
	networkVersion   network.Version
}

// NewMachineContext returns a context for machines running at epoch on top of stateRoot.
func NewMachineContext(epoch abi.ChainEpoch, baseFee abi.TokenAmount, stateRoot cid.Cid, pricelist *gas.Pricelist, nv network.Version) *MachineContext {
	pl := *pricelist
	pl.Syscalls = make(map[string]int64, len(pricelist.Syscalls))
	for k, v := range pricelist.Syscalls {
		pl.Syscalls[k] = v
	}
	return &MachineContext{
		epoch:            epoch,
		baseFee:          big.Add(baseFee, big.Zero()),
		initialStateRoot: stateRoot,
		pricelist:        pl,
		networkVersion:   nv,
	}
}

func (mc *MachineContext) Epoch() abi.ChainEpoch {
	return mc.epoch
}

// BaseFee returns a copy of the base fee.
func (mc *MachineContext) BaseFee() abi.TokenAmount {
	return big.Add(mc.baseFee, big.Zero())
}

// StateRoot is the root the machine was created on.
func (mc *MachineContext) StateRoot() cid.Cid {
	return mc.initialStateRoot
}

func (mc *MachineContext) NetworkVersion() network.Version {
	return mc.networkVersion
}

// Pricelist returns the prices in effect. The pricelist must not be modified.
func (mc *MachineContext) Pricelist() *gas.Pricelist {
	return &mc.pricelist
}
