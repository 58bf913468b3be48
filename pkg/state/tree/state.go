package tree

import (
	"context"
	"errors"
	"sort"

	"github.com/filecoin-project/go-address"
	hamt "github.com/filecoin-project/go-hamt-ipld/v3"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
)

var log = logging.Logger("statetree")

var (
	ErrActorExists     = errors.New("actor already exists")
	ErrUnknownSnapshot = errors.New("unknown snapshot")
	ErrSnapshotsOpen   = errors.New("tried to flush state tree with snapshots on the stack")
	ErrInvalidAddress  = errors.New("invalid address")
)

// hamtBitwidth is the bit width of both HAMTs of the tree.
const hamtBitwidth = 5

// Tree is the set of operations the machine needs from the state tree.
type Tree interface {
	GetActor(ctx context.Context, id abi.ActorID) (*types.Actor, bool, error)
	SetActor(ctx context.Context, id abi.ActorID, act *types.Actor) error
	CreateActor(ctx context.Context, addr address.Address) (abi.ActorID, error)
	LookupID(ctx context.Context, addr address.Address) (abi.ActorID, error)

	Snapshot(ctx context.Context) SnapshotID
	Revert(id SnapshotID) error
	ClearSnapshot(id SnapshotID) error
	Flush(ctx context.Context) (cid.Cid, error)
}

// State stores actors state by their ID, and maps non-ID addresses to IDs.
type State struct {
	Store cbor.IpldStore

	actors    *hamt.Node
	addresses *hamt.Node
	nextID    abi.ActorID
	version   StateTreeVersion

	snaps *stateSnaps
}

var _ Tree = (*State)(nil)

// NewState returns a tree holding only the reserved singleton actors. The tree is flushed once so
// the singletons survive any revert.
func NewState(ctx context.Context, cst cbor.IpldStore) (*State, error) {
	actors, err := hamt.NewNode(cst, hamt.UseTreeBitWidth(hamtBitwidth))
	if err != nil {
		return nil, err
	}
	addresses, err := hamt.NewNode(cst, hamt.UseTreeBitWidth(hamtBitwidth))
	if err != nil {
		return nil, err
	}
	st := &State{
		Store:     cst,
		actors:    actors,
		addresses: addresses,
		nextID:    constants.FirstNonSingletonActorID,
		version:   StateTreeVersion0,
		snaps:     newStateSnaps(),
	}

	for _, id := range constants.ReservedActorIDs {
		code := constants.AccountActorCodeID
		if id == constants.SystemActorID {
			code = constants.SystemActorCodeID
		}
		st.snaps.setActor(id, types.NewActor(code, constants.EmptyObjectCid))
	}
	if _, err := st.Flush(ctx); err != nil {
		return nil, xerrors.Errorf("flush reserved actors: %w", err)
	}
	return st, nil
}

// LoadState loads the tree flushed at root c.
func LoadState(ctx context.Context, cst cbor.IpldStore, c cid.Cid) (*State, error) {
	var root StateRoot
	if err := cst.Get(ctx, c, &root); err != nil {
		log.Errorf("loading state root %s failed: %s", c, err)
		return nil, xerrors.Errorf("failed to load state root %s: %w", c, err)
	}
	if root.Version != uint64(StateTreeVersion0) {
		return nil, xerrors.Errorf("unsupported state tree version: %d", root.Version)
	}

	actors, err := hamt.LoadNode(ctx, cst, root.Actors, hamt.UseTreeBitWidth(hamtBitwidth))
	if err != nil {
		return nil, xerrors.Errorf("loading actors hamt %s: %w", root.Actors, err)
	}
	addresses, err := hamt.LoadNode(ctx, cst, root.Addresses, hamt.UseTreeBitWidth(hamtBitwidth))
	if err != nil {
		return nil, xerrors.Errorf("loading address hamt %s: %w", root.Addresses, err)
	}

	return &State{
		Store:     cst,
		actors:    actors,
		addresses: addresses,
		nextID:    abi.ActorID(root.NextID),
		version:   StateTreeVersion(root.Version),
		snaps:     newStateSnaps(),
	}, nil
}

func idKey(id abi.ActorID) abi.AddrKey {
	addr, _ := address.NewIDAddress(uint64(id))
	return abi.AddrKey(addr)
}

// GetActor returns a copy of the actor with the given ID.
func (st *State) GetActor(ctx context.Context, id abi.ActorID) (*types.Actor, bool, error) {
	if act, ok := st.snaps.getActor(id); ok {
		return act, true, nil
	}

	var act types.Actor
	found, err := st.actors.Find(ctx, idKey(id).Key(), &act)
	if err != nil {
		return nil, false, xerrors.Errorf("hamt find failed: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &act, true, nil
}

// GetActorByAddress resolves addr and returns a copy of its actor.
func (st *State) GetActorByAddress(ctx context.Context, addr address.Address) (*types.Actor, abi.ActorID, bool, error) {
	id, err := st.LookupID(ctx, addr)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	act, found, err := st.GetActor(ctx, id)
	return act, id, found, err
}

// SetActor stores a copy of act under id.
func (st *State) SetActor(ctx context.Context, id abi.ActorID, act *types.Actor) error {
	if act == nil {
		return xerrors.Errorf("SetActor called with nil actor for %d", id)
	}
	if act.Balance.Int == nil || act.Balance.LessThan(big.Zero()) {
		return xerrors.Errorf("actor %d balance cannot be nil or negative: %v", id, act.Balance)
	}
	st.snaps.setActor(id, act)
	return nil
}

// MutateActor applies f to the actor with the given ID and stores the result.
func (st *State) MutateActor(ctx context.Context, id abi.ActorID, f func(*types.Actor) error) error {
	act, found, err := st.GetActor(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("actor %d: %w", id, types.ErrActorNotFound)
	}
	if err := f(act); err != nil {
		return err
	}
	return st.SetActor(ctx, id, act)
}

// LookupID resolves addr to an actor ID. ID addresses resolve to themselves.
func (st *State) LookupID(ctx context.Context, addr address.Address) (abi.ActorID, error) {
	if addr == address.Undef {
		return 0, xerrors.Errorf("lookup of undefined address: %w", ErrInvalidAddress)
	}
	if addr.Protocol() == address.ID {
		id, err := address.IDFromAddress(addr)
		if err != nil {
			return 0, err
		}
		return abi.ActorID(id), nil
	}

	if id, ok := st.snaps.resolveAddress(addr); ok {
		return id, nil
	}

	var out cbg.CborInt
	found, err := st.addresses.Find(ctx, abi.AddrKey(addr).Key(), &out)
	if err != nil {
		return 0, xerrors.Errorf("resolve address %s: %w", addr, err)
	}
	if !found {
		return 0, xerrors.Errorf("resolve address %s: %w", addr, types.ErrActorNotFound)
	}
	return abi.ActorID(out), nil
}

// CreateActor assigns the next unused actor ID to addr. It fails if addr already resolves.
// The actor state itself is stored by a following SetActor.
func (st *State) CreateActor(ctx context.Context, addr address.Address) (abi.ActorID, error) {
	if addr == address.Undef || addr.Protocol() == address.ID {
		return 0, xerrors.Errorf("cannot create actor for %s: %w", addr, ErrInvalidAddress)
	}
	_, err := st.LookupID(ctx, addr)
	if err == nil {
		return 0, xerrors.Errorf("address %s: %w", addr, ErrActorExists)
	}
	if !xerrors.Is(err, types.ErrActorNotFound) {
		return 0, err
	}

	id, ok := st.snaps.nextID()
	if !ok {
		id = st.nextID
	}
	st.snaps.mapAddress(addr, id)
	st.snaps.setNextID(id + 1)
	return id, nil
}

// Snapshot pushes a new overlay and returns its id. Mutations made until the matching Revert or
// ClearSnapshot land in the overlay.
func (st *State) Snapshot(ctx context.Context) SnapshotID {
	_, span := trace.StartSpan(ctx, "stateTree.Snapshot") //nolint:staticcheck
	defer span.End()

	return st.snaps.addLayer()
}

// Revert discards every mutation made since snapshot id was taken, including those in snapshots
// taken after it. Snapshot id stays open, so reverting to it again has no further effect.
func (st *State) Revert(id SnapshotID) error {
	idx := st.snaps.find(id)
	if idx < 0 {
		return xerrors.Errorf("revert to %d: %w", id, ErrUnknownSnapshot)
	}
	st.snaps.revertTo(idx)
	return nil
}

// ClearSnapshot closes snapshot id, keeping its mutations. It must be the innermost snapshot.
func (st *State) ClearSnapshot(id SnapshotID) error {
	idx := st.snaps.find(id)
	if idx <= 0 {
		return xerrors.Errorf("clear snapshot %d: %w", id, ErrUnknownSnapshot)
	}
	if idx != len(st.snaps.layers)-1 {
		return xerrors.Errorf("clear snapshot %d: %d snapshots taken after it are still open", id, len(st.snaps.layers)-1-idx)
	}
	st.snaps.mergeLastLayer()
	return nil
}

// Depth is the number of open snapshots.
func (st *State) Depth() int {
	return len(st.snaps.layers) - 1
}

// Flush writes pending mutations into the HAMTs and returns the new state root.
func (st *State) Flush(ctx context.Context) (cid.Cid, error) {
	ctx, span := trace.StartSpan(ctx, "stateTree.Flush") //nolint:staticcheck
	defer span.End()
	if len(st.snaps.layers) != 1 {
		return cid.Undef, ErrSnapshotsOpen
	}

	base := st.snaps.layers[0]
	for id, act := range base.actors {
		act := act
		if err := st.actors.Set(ctx, idKey(id).Key(), &act); err != nil {
			return cid.Undef, xerrors.Errorf("set actor %d: %w", id, err)
		}
	}
	for addr, id := range base.addresses {
		v := cbg.CborInt(id)
		if err := st.addresses.Set(ctx, abi.AddrKey(addr).Key(), &v); err != nil {
			return cid.Undef, xerrors.Errorf("map address %s: %w", addr, err)
		}
	}
	if base.hasNextID {
		st.nextID = base.nextID
	}

	if err := st.actors.Flush(ctx); err != nil {
		return cid.Undef, err
	}
	actorsRoot, err := st.Store.Put(ctx, st.actors)
	if err != nil {
		return cid.Undef, err
	}
	if err := st.addresses.Flush(ctx); err != nil {
		return cid.Undef, err
	}
	addressesRoot, err := st.Store.Put(ctx, st.addresses)
	if err != nil {
		return cid.Undef, err
	}

	root, err := st.Store.Put(ctx, &StateRoot{
		Version:   uint64(st.version),
		Actors:    actorsRoot,
		Addresses: addressesRoot,
		NextID:    uint64(st.nextID),
	})
	if err != nil {
		return cid.Undef, err
	}

	st.snaps.layers[0] = newStateSnapLayer(base.token)
	log.Debugw("flushed state tree", "root", root, "actors", len(base.actors), "addresses", len(base.addresses))
	return root, nil
}

// ForEach calls f for every actor in ascending ID order, pending mutations included.
func (st *State) ForEach(ctx context.Context, f func(abi.ActorID, *types.Actor) error) error {
	ids := make(map[abi.ActorID]struct{})
	err := st.actors.ForEach(ctx, func(k string, _ *cbg.Deferred) error {
		addr, err := address.NewFromBytes([]byte(k))
		if err != nil {
			return xerrors.Errorf("invalid address (%x) found in state tree key: %w", []byte(k), err)
		}
		id, err := address.IDFromAddress(addr)
		if err != nil {
			return err
		}
		ids[abi.ActorID(id)] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}
	for _, layer := range st.snaps.layers {
		for id := range layer.actors {
			ids[id] = struct{}{}
		}
	}

	sorted := make([]abi.ActorID, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		act, found, err := st.GetActor(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := f(id, act); err != nil {
			return err
		}
	}
	return nil
}

// TotalBalance sums the balance of every actor.
func (st *State) TotalBalance(ctx context.Context) (abi.TokenAmount, error) {
	total := big.Zero()
	err := st.ForEach(ctx, func(_ abi.ActorID, act *types.Actor) error {
		total = big.Add(total, act.Balance)
		return nil
	})
	return total, err
}

