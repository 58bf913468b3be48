package tree

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/ipfs-force-community/venus-fvm/pkg/types"
)

// SnapshotID identifies a snapshot of the tree. IDs increase monotonically over the life of a
// State and are never reused.
type SnapshotID uint64

// stateSnaps is a stack of copy-on-write overlays on top of the flushed HAMTs. Reads walk the
// stack top down, writes always land in the top layer.
type stateSnaps struct {
	layers    []*stateSnapLayer
	nextToken SnapshotID
}

type stateSnapLayer struct {
	token     SnapshotID
	actors    map[abi.ActorID]types.Actor
	addresses map[address.Address]abi.ActorID

	nextID    abi.ActorID
	hasNextID bool
}

func newStateSnapLayer(token SnapshotID) *stateSnapLayer {
	return &stateSnapLayer{
		token:     token,
		actors:    make(map[abi.ActorID]types.Actor),
		addresses: make(map[address.Address]abi.ActorID),
	}
}

func newStateSnaps() *stateSnaps {
	ss := &stateSnaps{}
	ss.addLayer()
	return ss
}

func (ss *stateSnaps) addLayer() SnapshotID {
	token := ss.nextToken
	ss.nextToken++
	ss.layers = append(ss.layers, newStateSnapLayer(token))
	return token
}

func (ss *stateSnaps) find(token SnapshotID) int {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		if ss.layers[i].token == token {
			return i
		}
	}
	return -1
}

// revertTo empties layer idx and drops everything above it.
func (ss *stateSnaps) revertTo(idx int) {
	for i := idx + 1; i < len(ss.layers); i++ {
		ss.layers[i] = nil // allow it to be GCed
	}
	ss.layers = ss.layers[:idx+1]
	ss.layers[idx] = newStateSnapLayer(ss.layers[idx].token)
}

func (ss *stateSnaps) mergeLastLayer() {
	last := ss.layers[len(ss.layers)-1]
	nextLast := ss.layers[len(ss.layers)-2]

	for k, v := range last.actors {
		nextLast.actors[k] = v
	}

	for k, v := range last.addresses {
		nextLast.addresses[k] = v
	}

	if last.hasNextID {
		nextLast.nextID = last.nextID
		nextLast.hasNextID = true
	}

	ss.layers[len(ss.layers)-1] = nil
	ss.layers = ss.layers[:len(ss.layers)-1]
}

func (ss *stateSnaps) top() *stateSnapLayer {
	return ss.layers[len(ss.layers)-1]
}

func (ss *stateSnaps) getActor(id abi.ActorID) (*types.Actor, bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		act, ok := ss.layers[i].actors[id]
		if ok {
			return act.Copy(), true
		}
	}
	return nil, false
}

func (ss *stateSnaps) setActor(id abi.ActorID, act *types.Actor) {
	ss.top().actors[id] = *act.Copy()
}

func (ss *stateSnaps) resolveAddress(addr address.Address) (abi.ActorID, bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		id, ok := ss.layers[i].addresses[addr]
		if ok {
			return id, true
		}
	}
	return 0, false
}

func (ss *stateSnaps) mapAddress(addr address.Address, id abi.ActorID) {
	ss.top().addresses[addr] = id
}

func (ss *stateSnaps) nextID() (abi.ActorID, bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		if ss.layers[i].hasNextID {
			return ss.layers[i].nextID, true
		}
	}
	return 0, false
}

func (ss *stateSnaps) setNextID(id abi.ActorID) {
	top := ss.top()
	top.nextID = id
	top.hasNextID = true
}
