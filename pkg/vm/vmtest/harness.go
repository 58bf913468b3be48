// Package vmtest builds machines over a genesis state for tests.
package vmtest

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	fxcbor "github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/venus-fvm/config"
	"github.com/ipfs-force-community/venus-fvm/pkg/gen/genesis"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/builtin"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/engine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
)

// Epoch and BaseFee of every machine built by a Harness.
const (
	Epoch   = abi.ChainEpoch(10)
	BaseFee = 100
)

// Harness holds a genesis state and builds machines over it.
type Harness struct {
	Ctx    context.Context
	Config *config.Config
	BS     blockstoreutil.Blockstore
	Engine *engine.Engine
	Root   cid.Cid
	IDs    map[address.Address]abi.ActorID
}

// NewHarness creates the genesis state of template in a memory blockstore. A nil cfg uses the
// default config.
func NewHarness(t *testing.T, cfg *config.Config, template genesis.Template) *Harness {
	ctx := context.Background()
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	bs := blockstoreutil.NewTemporary()
	root, ids, err := genesis.MakeGenesis(ctx, bs, template)
	require.NoError(t, err)

	cache, err := engine.NewModuleCache(cfg.VM.ModuleCacheSize)
	require.NoError(t, err)

	return &Harness{
		Ctx:    ctx,
		Config: cfg,
		BS:     bs,
		Engine: engine.NewEngine(builtin.DefaultLoader(), cache),
		Root:   root,
		IDs:    ids,
	}
}

// Machine returns a machine over the harness root.
func (h *Harness) Machine(t *testing.T) *machine.DefaultMachine {
	return h.MachineAt(t, h.Root)
}

// MachineAt returns a machine over root.
func (h *Harness) MachineAt(t *testing.T, root cid.Cid) *machine.DefaultMachine {
	mctx := machine.NewMachineContext(Epoch, abi.NewTokenAmount(BaseFee), root, h.Config.Pricing, h.Config.VM.Version())
	m, err := machine.NewDefaultMachine(h.Ctx, h.Config, mctx, h.BS, machine.SeedExterns{}, h.Engine)
	require.NoError(t, err)
	return m
}

// Actor returns the actor with the given ID in m, failing the test if it does not exist.
func Actor(t *testing.T, m machine.Machine, id abi.ActorID) *types.Actor {
	act, found, err := m.StateTree().GetActor(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found, "actor %d", id)
	return act
}

// MustEncode encodes v for a chaos actor method.
func MustEncode(t *testing.T, v interface{}) []byte {
	raw, err := fxcbor.Marshal(v)
	require.NoError(t, err)
	return raw
}
