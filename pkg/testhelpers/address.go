package testhelpers

import (
	"fmt"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
)

// RequireIDAddress returns the ID address of id.
func RequireIDAddress(t *testing.T, id abi.ActorID) address.Address {
	a, err := address.NewIDAddress(uint64(id))
	if err != nil {
		t.Fatalf("failed to make address: %v", err)
	}
	return a
}

// NewForTestGetter returns a closure that returns a key address unique to that invocation.
// The address is unique wrt the closure returned, not globally.
func NewForTestGetter() func() address.Address {
	i := 0
	return func() address.Address {
		s := fmt.Sprintf("address%d", i)
		i++
		newAddr, err := address.NewSecp256k1Address([]byte(s))
		if err != nil {
			panic(err)
		}
		return newAddr
	}
}

// NewActorAddr returns an actor (protocol 2) address derived from seed.
func NewActorAddr(t *testing.T, seed string) address.Address {
	addr, err := address.NewActorAddress([]byte(seed))
	if err != nil {
		t.Fatalf("failed to make actor address: %v", err)
	}
	return addr
}
