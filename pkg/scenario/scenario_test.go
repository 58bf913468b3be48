package scenario

import (
	"context"
	"fmt"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/gen/genesis"
	"github.com/ipfs-force-community/venus-fvm/pkg/testhelpers"
	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/executor"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/vmtest"
)

func TestParse(t *testing.T) {
	tf.UnitTest(t)

	s, err := Parse([]byte(`{
		"epoch": 7,
		"baseFee": "100",
		"messages": [
			{"message": {"From": "t01", "To": "t099", "Value": "3", "GasLimit": 1000, "GasFeeCap": "200"}},
			{"kind": "implicit", "message": {"From": "t02", "To": "t099"}}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, abi.ChainEpoch(7), s.Epoch)
	assert.Equal(t, abi.NewTokenAmount(100), s.BaseFee)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, machine.Explicit, s.Steps[0].Kind)
	assert.Equal(t, abi.NewTokenAmount(3), s.Steps[0].Message.Value)
	assert.True(t, s.Steps[0].Message.GasPremium.IsZero())
	assert.Equal(t, machine.Implicit, s.Steps[1].Kind)
	assert.Equal(t, constants.RewardActorAddr, s.Steps[1].Message.From)
	assert.True(t, s.Steps[1].Message.Value.IsZero())

	_, err = Parse([]byte(`{"messages": [{"kind": "sideways", "message": {}}]}`))
	assert.Error(t, err)
	_, err = Parse([]byte(`{"messages": [{"kind": "explicit"}]}`))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	tf.UnitTest(t)

	alice := testhelpers.NewForTestGetter()()
	h := vmtest.NewHarness(t, nil, genesis.Template{
		Accounts: []genesis.Actor{
			{Type: genesis.TAccount, Owner: alice, Balance: abi.NewTokenAmount(1_000_000_000_000_000)},
		},
		RewardBalance: abi.NewTokenAmount(500),
	})

	s, err := Parse([]byte(fmt.Sprintf(`{
		"messages": [
			{"message": {"From": %q, "To": "t099", "Value": "3", "GasLimit": 100000000, "GasFeeCap": "200", "GasPremium": "10"}},
			{"message": {"From": %q, "To": "t099", "Nonce": 7, "GasLimit": 100000000, "GasFeeCap": "200"}},
			{"kind": "implicit", "message": {"From": "t02", "To": %q, "Value": "20"}}
		]
	}`, alice, alice, alice)))
	require.NoError(t, err)

	e := executor.NewExecutor(h.Machine(t))
	results, root, err := Run(context.Background(), e, s)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, exitcode.Ok, results[0].ExitCode)
	assert.Greater(t, results[0].GasUsed, int64(0))
	assert.Empty(t, results[0].Backtrace)

	assert.Equal(t, exitcode.SysErrSenderStateInvalid, results[1].ExitCode)
	assert.Len(t, results[1].Backtrace, 1)

	assert.Equal(t, exitcode.Ok, results[2].ExitCode)
	assert.Equal(t, machine.Implicit, results[2].Kind)
	assert.Equal(t, s.Steps[2].Message.Cid(), results[2].Message)

	reward := vmtest.Actor(t, h.MachineAt(t, root), constants.RewardActorID)
	assert.Equal(t, big.Add(abi.NewTokenAmount(480), results[0].MinerTip), reward.Balance)
}
