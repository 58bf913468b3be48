package types

import (
	"errors"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
)

var ErrActorNotFound = errors.New("actor not found")

// Actor is the state the tree keeps for every actor.
//
// Code names the implementation the machine loads when the actor is invoked, Head is the root of
// the actor's own state, Nonce is the sequence number expected on the next message sent by the
// actor and Balance is the amount of attoFIL it holds.
//
// Not safe for concurrent access.
type Actor struct {
	Code    cid.Cid
	Head    cid.Cid
	Nonce   uint64
	Balance abi.TokenAmount
}

// NewActor returns an actor with no balance running code and holding the given state.
func NewActor(code, head cid.Cid) *Actor {
	return &Actor{
		Code:    code,
		Head:    head,
		Balance: big.Zero(),
	}
}

// Empty tests whether the actor's code is defined.
func (t *Actor) Empty() bool {
	return !t.Code.Defined()
}

// IncrementSeqNum increments the seq number.
func (t *Actor) IncrementSeqNum() {
	t.Nonce = t.Nonce + 1
}

// Copy returns a deep copy of the actor.
func (t *Actor) Copy() *Actor {
	cpy := *t
	if t.Balance.Int != nil {
		cpy.Balance = big.Add(t.Balance, big.Zero())
	}
	return &cpy
}
