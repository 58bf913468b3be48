package machine

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/venus-fvm/config"
	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/state/tree"
	"github.com/ipfs-force-community/venus-fvm/pkg/testhelpers"
	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/dispatch"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/engine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
)

type accountStub struct{}

func (accountStub) Name() string { return constants.AccountActorName }

func (accountStub) Exports() []interface{} { return nil }

func newTestMachine(t *testing.T) *DefaultMachine {
	ctx := context.Background()
	bs := blockstoreutil.NewTemporary()
	require.NoError(t, bs.Put(ctx, constants.CodeBlock(constants.AccountActorName)))

	st, err := tree.NewState(ctx, blockstoreutil.CborStore(bs))
	require.NoError(t, err)
	root, err := st.Flush(ctx)
	require.NoError(t, err)

	cfg := config.NewDefaultConfig()
	cache, err := engine.NewModuleCache(8)
	require.NoError(t, err)
	eng := engine.NewEngine(dispatch.NewBuilder().Add(accountStub{}).Build(), cache)

	mctx := NewMachineContext(10, abi.NewTokenAmount(100), root, cfg.Pricing, constants.TestNetworkVersion)
	m, err := NewDefaultMachine(ctx, cfg, mctx, bs, nil, eng)
	require.NoError(t, err)
	return m
}

func createFunded(t *testing.T, m *DefaultMachine, seed string, balance int64) abi.ActorID {
	act := types.NewActor(constants.AccountActorCodeID, constants.EmptyObjectCid)
	act.Balance = abi.NewTokenAmount(balance)
	id, err := m.CreateActor(context.Background(), testhelpers.NewActorAddr(t, seed), act)
	require.NoError(t, err)
	return id
}

func balanceOf(t *testing.T, m *DefaultMachine, id abi.ActorID) abi.TokenAmount {
	act, found, err := m.StateTree().GetActor(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	return act.Balance
}

func TestMachineContextIsACopy(t *testing.T) {
	tf.UnitTest(t)

	pl := gas.NewDefaultPricelist()
	baseFee := abi.NewTokenAmount(7)
	mctx := NewMachineContext(5, baseFee, constants.EmptyObjectCid, pl, constants.TestNetworkVersion)

	pl.SendBase = 1
	pl.Syscalls[gas.SyscallHashBlake2b] = 1
	baseFee.Int.SetInt64(9)

	assert.Equal(t, abi.ChainEpoch(5), mctx.Epoch())
	assert.True(t, mctx.BaseFee().Equals(abi.NewTokenAmount(7)))
	assert.Equal(t, gas.NewDefaultPricelist().SendBase, mctx.Pricelist().SendBase)
	assert.Equal(t, gas.NewDefaultPricelist().Syscalls[gas.SyscallHashBlake2b], mctx.Pricelist().Syscalls[gas.SyscallHashBlake2b])
	assert.Equal(t, constants.EmptyObjectCid, mctx.StateRoot())
}

func TestMachineCreateActor(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()
	m := newTestMachine(t)

	id := createFunded(t, m, "a", 10)
	assert.Equal(t, constants.FirstNonSingletonActorID, id)

	_, err := m.CreateActor(ctx, testhelpers.NewActorAddr(t, "a"), types.NewActor(constants.AccountActorCodeID, constants.EmptyObjectCid))
	assert.ErrorIs(t, err, ErrActorExists)
}

func TestMachineLoadModule(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()
	m := newTestMachine(t)

	mod, err := m.LoadModule(ctx, constants.AccountActorCodeID)
	require.NoError(t, err)
	assert.Equal(t, constants.AccountActorName, mod.Name)

	_, err = m.LoadModule(ctx, constants.ChaosActorCodeID)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	require.NoError(t, m.Blockstore().Put(ctx, constants.CodeBlock(constants.ChaosActorName)))
	_, err = m.LoadModule(ctx, constants.ChaosActorCodeID)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestMachineTransfer(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()
	m := newTestMachine(t)

	a := createFunded(t, m, "a", 100)
	b := createFunded(t, m, "b", 0)

	require.NoError(t, m.Transfer(ctx, a, b, abi.NewTokenAmount(40)))
	assert.True(t, balanceOf(t, m, a).Equals(big.NewInt(60)))
	assert.True(t, balanceOf(t, m, b).Equals(big.NewInt(40)))

	// zero and self transfers are no-ops
	require.NoError(t, m.Transfer(ctx, a, b, big.Zero()))
	require.NoError(t, m.Transfer(ctx, a, a, abi.NewTokenAmount(60)))
	assert.True(t, balanceOf(t, m, a).Equals(big.NewInt(60)))

	assert.ErrorIs(t, m.Transfer(ctx, a, b, abi.NewTokenAmount(61)), ErrInsufficientFunds)
	assert.ErrorIs(t, m.Transfer(ctx, a, a, abi.NewTokenAmount(61)), ErrInsufficientFunds)
	assert.ErrorIs(t, m.Transfer(ctx, a, b, abi.NewTokenAmount(-1)), ErrNegativeValue)
	assert.ErrorIs(t, m.Transfer(ctx, a, 4242, big.Zero()), ErrActorNotFound)
	assert.ErrorIs(t, m.Transfer(ctx, 4242, a, big.Zero()), ErrActorNotFound)

	// balances unchanged by the failures
	assert.True(t, balanceOf(t, m, a).Equals(big.NewInt(60)))
	assert.True(t, balanceOf(t, m, b).Equals(big.NewInt(40)))
}

func TestMachineTransferToReservedActors(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()
	m := newTestMachine(t)

	a := createFunded(t, m, "a", 100)
	require.NoError(t, m.Transfer(ctx, a, constants.BurntFundsActorID, abi.NewTokenAmount(30)))
	require.NoError(t, m.Transfer(ctx, a, constants.RewardActorID, abi.NewTokenAmount(20)))
	require.NoError(t, m.Transfer(ctx, constants.RewardActorID, a, abi.NewTokenAmount(5)))

	assert.True(t, balanceOf(t, m, constants.BurntFundsActorID).Equals(big.NewInt(30)))
	assert.True(t, balanceOf(t, m, constants.RewardActorID).Equals(big.NewInt(15)))
	assert.ErrorIs(t, m.Transfer(ctx, constants.BurntFundsActorID, a, abi.NewTokenAmount(31)), ErrInsufficientFunds)
}

func TestMachineFlushAndReload(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()
	m := newTestMachine(t)

	a := createFunded(t, m, "a", 100)
	root, err := m.Flush(ctx)
	require.NoError(t, err)

	mctx := NewMachineContext(11, abi.NewTokenAmount(100), root, m.Config().Pricing, constants.TestNetworkVersion)
	cache, err := engine.NewModuleCache(8)
	require.NoError(t, err)
	reloaded, err := NewDefaultMachine(ctx, m.Config(), mctx, m.Blockstore(), nil, engine.NewEngine(dispatch.NewBuilder().Build(), cache))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, reloaded, a).Equals(big.NewInt(100)))
}

func TestPrevalidationFail(t *testing.T) {
	tf.UnitTest(t)

	ret := PrevalidationFail(3, "bad nonce", abi.NewTokenAmount(50))
	assert.Equal(t, int64(0), ret.Receipt.GasUsed)
	assert.Empty(t, ret.Receipt.Return)
	require.Len(t, ret.Backtrace, 1)
	assert.Equal(t, abi.ActorID(0), ret.Backtrace[0].Source)
	assert.Equal(t, "bad nonce", ret.Backtrace[0].Message)
	assert.True(t, ret.MinerTip.IsZero())
	assert.True(t, ret.Penalty.Equals(big.NewInt(50)))
}
