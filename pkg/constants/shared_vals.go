package constants

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"
)

// Singleton actor IDs. IDs below FirstNonSingletonActorID are never handed out by actor creation.
const (
	SystemActorID     = abi.ActorID(0)
	RewardActorID     = abi.ActorID(2)
	BurntFundsActorID = abi.ActorID(99)

	FirstNonSingletonActorID = abi.ActorID(100)
)

var (
	SystemActorAddr = mustIDAddr(SystemActorID)
	// RewardActorAddr receives the miner tip of every explicit message.
	RewardActorAddr = mustIDAddr(RewardActorID)
	// BurntFundsActorAddr is the distinguished account that is the destination of all burnt funds.
	BurntFundsActorAddr = mustIDAddr(BurntFundsActorID)
)

// ReservedActorIDs lists the actors every state tree carries from creation.
var ReservedActorIDs = []abi.ActorID{SystemActorID, RewardActorID, BurntFundsActorID}

// BlockGasLimit is the maximum amount of gas all messages of a block may use together.
const BlockGasLimit = 10_000_000_000

// ImplicitMessageGasLimit is the gas available to a system triggered message.
const ImplicitMessageGasLimit = BlockGasLimit * 10000

// MaxCallDepth bounds the nesting of sends within one message.
const MaxCallDepth = 4096

// TestNetworkVersion is the network version used when none is configured.
const TestNetworkVersion = network.Version14

func mustIDAddr(id abi.ActorID) address.Address {
	addr, err := address.NewIDAddress(uint64(id))
	if err != nil {
		panic(err)
	}
	return addr
}
