package machine

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/config"
	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/state/tree"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/engine"
)

var log = logging.Logger("vm.machine")

// Machine owns the state tree and the code loading capability of a block's execution. It does
// no gas accounting.
type Machine interface {
	Context() *MachineContext
	Config() *config.Config
	Blockstore() blockstoreutil.Blockstore
	Externs() Externs
	StateTree() *tree.State

	// CreateActor assigns an ID to addr and stores act under it.
	CreateActor(ctx context.Context, addr address.Address, act *types.Actor) (abi.ActorID, error)
	// LoadModule resolves code to a loadable module.
	LoadModule(ctx context.Context, code cid.Cid) (*engine.Module, error)
	// Transfer moves value from one actor to another. It is the only way balances change.
	Transfer(ctx context.Context, from, to abi.ActorID, value abi.TokenAmount) error
	// Flush commits the state tree and returns its root.
	Flush(ctx context.Context) (cid.Cid, error)
}

// DefaultMachine is a Machine over a blockstore and an engine of native actors.
type DefaultMachine struct {
	cfg     *config.Config
	mctx    *MachineContext
	bs      blockstoreutil.Blockstore
	externs Externs
	engine  *engine.Engine

	state *tree.State
}

var _ Machine = (*DefaultMachine)(nil)

// NewDefaultMachine loads the state tree at the root of mctx.
func NewDefaultMachine(ctx context.Context, cfg *config.Config, mctx *MachineContext, bs blockstoreutil.Blockstore, externs Externs, eng *engine.Engine) (*DefaultMachine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}
	st, err := tree.LoadState(ctx, blockstoreutil.CborStore(bs), mctx.StateRoot())
	if err != nil {
		return nil, err
	}

	for _, id := range []abi.ActorID{constants.RewardActorID, constants.BurntFundsActorID} {
		_, found, err := st.GetActor(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, xerrors.Errorf("state %s lacks reserved actor %d", mctx.StateRoot(), id)
		}
	}

	log.Debugw("created machine", "root", mctx.StateRoot(), "epoch", mctx.Epoch(), "nv", mctx.NetworkVersion())
	return &DefaultMachine{
		cfg:     cfg,
		mctx:    mctx,
		bs:      bs,
		externs: externs,
		engine:  eng,
		state:   st,
	}, nil
}

func (m *DefaultMachine) Context() *MachineContext {
	return m.mctx
}

func (m *DefaultMachine) Config() *config.Config {
	return m.cfg
}

func (m *DefaultMachine) Blockstore() blockstoreutil.Blockstore {
	return m.bs
}

func (m *DefaultMachine) Externs() Externs {
	return m.externs
}

func (m *DefaultMachine) StateTree() *tree.State {
	return m.state
}

func (m *DefaultMachine) CreateActor(ctx context.Context, addr address.Address, act *types.Actor) (abi.ActorID, error) {
	id, err := m.state.CreateActor(ctx, addr)
	if err != nil {
		return 0, err
	}
	if err := m.state.SetActor(ctx, id, act); err != nil {
		return 0, xerrors.Errorf("store new actor %d: %w", id, err)
	}
	return id, nil
}

func (m *DefaultMachine) LoadModule(ctx context.Context, code cid.Cid) (*engine.Module, error) {
	return m.engine.Load(ctx, m.bs, code)
}

func (m *DefaultMachine) Transfer(ctx context.Context, from, to abi.ActorID, value abi.TokenAmount) error {
	if value.Int == nil || value.LessThan(big.Zero()) {
		return xerrors.Errorf("transfer %s from %d to %d: %w", value, from, to, ErrNegativeValue)
	}

	fromActor, found, err := m.state.GetActor(ctx, from)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("transfer sender %d: %w", from, ErrActorNotFound)
	}
	toActor, found, err := m.state.GetActor(ctx, to)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("transfer receiver %d: %w", to, ErrActorNotFound)
	}

	// sending more than the balance to self still fails
	if fromActor.Balance.LessThan(value) {
		return xerrors.Errorf("sender %d balance %s cannot cover %s: %w", from, fromActor.Balance, value, ErrInsufficientFunds)
	}
	if from == to || value.IsZero() {
		return nil
	}

	fromActor.Balance = big.Sub(fromActor.Balance, value)
	toActor.Balance = big.Add(toActor.Balance, value)
	if err := m.state.SetActor(ctx, from, fromActor); err != nil {
		return err
	}
	return m.state.SetActor(ctx, to, toActor)
}

func (m *DefaultMachine) Flush(ctx context.Context) (cid.Cid, error) {
	root, err := m.state.Flush(ctx)
	if err != nil {
		return cid.Undef, xerrors.Errorf("flush state tree: %w", err)
	}
	return root, nil
}
