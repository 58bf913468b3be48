package genesis

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/state/tree"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	bstore "github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/builtin"
)

var log = logging.Logger("genesis")

/*
From a template, create the initial state

The process:
- Install the code of every native actor
- Create empty state (system, reward and burnt funds are seeded by the tree)
- Fund the reward actor
- Create accounts / chaos actors with their balances, IDs assigned in template order
- Flush
*/

// MakeInitialStateTree builds the genesis state without flushing it. The returned map holds the
// ID assigned to every template actor.
func MakeInitialStateTree(ctx context.Context, bs bstore.Blockstore, template Template) (*tree.State, map[address.Address]abi.ActorID, error) {
	if err := builtin.InstallCode(ctx, bs); err != nil {
		return nil, nil, xerrors.Errorf("installing actor code: %w", err)
	}

	cst := cbor.NewCborStore(bs)
	state, err := tree.NewState(ctx, cst)
	if err != nil {
		return nil, nil, xerrors.Errorf("making new state tree: %w", err)
	}

	if template.RewardBalance.Int != nil && !template.RewardBalance.IsZero() {
		err = state.MutateActor(ctx, constants.RewardActorID, func(act *types.Actor) error {
			act.Balance = template.RewardBalance
			return nil
		})
		if err != nil {
			return nil, nil, xerrors.Errorf("funding reward actor: %w", err)
		}
	}

	keyIDs := make(map[address.Address]abi.ActorID, len(template.Accounts))
	for i, info := range template.Accounts {
		addr, act, err := makeActor(ctx, cst, i, info)
		if err != nil {
			return nil, nil, xerrors.Errorf("genesis actor %d: %w", i, err)
		}
		id, err := state.CreateActor(ctx, addr)
		if err != nil {
			return nil, nil, xerrors.Errorf("creating genesis actor %s: %w", addr, err)
		}
		if err := state.SetActor(ctx, id, act); err != nil {
			return nil, nil, xerrors.Errorf("setting genesis actor %s: %w", addr, err)
		}
		keyIDs[addr] = id
		log.Debugw("genesis actor", "type", info.Type, "address", addr, "id", id, "balance", act.Balance)
	}

	return state, keyIDs, nil
}

// MakeGenesis builds and flushes the genesis state, returning its root.
func MakeGenesis(ctx context.Context, bs bstore.Blockstore, template Template) (cid.Cid, map[address.Address]abi.ActorID, error) {
	state, keyIDs, err := MakeInitialStateTree(ctx, bs, template)
	if err != nil {
		return cid.Undef, nil, err
	}
	root, err := state.Flush(ctx)
	if err != nil {
		return cid.Undef, nil, xerrors.Errorf("flushing genesis state: %w", err)
	}
	log.Infow("created genesis state", "root", root, "actors", len(keyIDs))
	return root, keyIDs, nil
}

func makeActor(ctx context.Context, cst cbor.IpldStore, idx int, info Actor) (address.Address, *types.Actor, error) {
	balance := info.Balance
	if balance.Int == nil {
		balance = big.Zero()
	}
	if balance.LessThan(big.Zero()) {
		return address.Undef, nil, xerrors.Errorf("negative balance %s", balance)
	}

	switch info.Type {
	case TAccount, "":
		switch info.Owner.Protocol() {
		case address.SECP256K1, address.BLS:
		default:
			return address.Undef, nil, xerrors.Errorf("account owner %s is not a key address", info.Owner)
		}
		head, err := cst.Put(ctx, &builtin.AccountState{Address: info.Owner})
		if err != nil {
			return address.Undef, nil, xerrors.Errorf("putting account state: %w", err)
		}
		act := types.NewActor(constants.AccountActorCodeID, head)
		act.Balance = balance
		return info.Owner, act, nil
	case TChaos:
		addr := info.Owner
		if addr == address.Undef {
			var err error
			addr, err = address.NewActorAddress([]byte(fmt.Sprintf("genesis/chaos/%d", idx)))
			if err != nil {
				return address.Undef, nil, err
			}
		}
		act := types.NewActor(constants.ChaosActorCodeID, constants.EmptyObjectCid)
		act.Balance = balance
		return addr, act, nil
	default:
		return address.Undef, nil, xerrors.Errorf("unknown actor type %q", info.Type)
	}
}
