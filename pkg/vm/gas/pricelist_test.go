package gas

import (
	"math"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func TestPricelistIsTotalOverKnownKinds(t *testing.T) {
	tf.UnitTest(t)

	pl := NewDefaultPricelist()
	require.NoError(t, pl.Validate())

	for _, kind := range OperationKinds {
		charge, err := pl.Cost(Operation{Kind: kind, Size: 10, Steps: 10, Value: big.Zero(), Name: SyscallHashBlake2b})
		require.NoError(t, err, kind)
		assert.True(t, charge.Total() >= 0, kind)
	}
}

func TestPricelistUnknownKind(t *testing.T) {
	tf.UnitTest(t)

	_, err := NewDefaultPricelist().Cost(Operation{Kind: "gpu"})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrUnknownOperation))
}

func TestPricelistDeterministic(t *testing.T) {
	tf.UnitTest(t)

	a := NewDefaultPricelist()
	b := NewDefaultPricelist()
	op := Operation{Kind: OpIpldPut, Size: 1024}
	ca, err := a.Cost(op)
	require.NoError(t, err)
	cb, err := b.Cost(op)
	require.NoError(t, err)
	assert.Equal(t, ca.Total(), cb.Total())
}

func TestPricelistScalesWithParameters(t *testing.T) {
	tf.UnitTest(t)

	pl := NewDefaultPricelist()

	assert.Greater(t, pl.OnIpldPut(100).Total(), pl.OnIpldPut(10).Total())
	assert.Greater(t, pl.OnIpldGet(100).Total(), pl.OnIpldGet(10).Total())
	assert.Greater(t, pl.OnCompute(100).Total(), pl.OnCompute(10).Total())
	assert.Greater(t, pl.OnMemory(100).Total(), pl.OnMemory(10).Total())
	assert.Greater(t, pl.OnSyscall("x", 100).Total(), pl.OnSyscall("x", 10).Total())
	assert.Greater(t, pl.OnChainMessage(100).Total(), pl.OnChainMessage(10).Total())

	// storage parts carry the storage multiplier
	assert.Equal(t, int64(10)*pl.IpldPutPerByte*pl.StorageGasMulti, pl.OnIpldPut(10).StorageGas)
}

func TestPricelistMethodInvocation(t *testing.T) {
	tf.UnitTest(t)

	pl := NewDefaultPricelist()

	transferOnly := pl.OnMethodInvocation(big.NewInt(1), 0)
	assert.Equal(t, pl.SendBase+pl.SendTransferFunds+pl.SendTransferOnlyPremium, transferOnly.Total())
	assert.Equal(t, "t", transferOnly.Extra)

	invoke := pl.OnMethodInvocation(big.Zero(), 2)
	assert.Equal(t, pl.SendBase+pl.SendInvokeMethod, invoke.Total())
	assert.Equal(t, "i", invoke.Extra)

	both := pl.OnMethodInvocation(big.NewInt(1), 2)
	assert.Equal(t, pl.SendBase+pl.SendTransferFunds+pl.SendInvokeMethod, both.Total())
}

func TestPricelistSyscallOverrides(t *testing.T) {
	tf.UnitTest(t)

	pl := NewDefaultPricelist()
	assert.Equal(t, pl.Syscalls[SyscallHashBlake2b]+32*pl.SyscallPerByte, pl.OnSyscall(SyscallHashBlake2b, 32).Total())
	assert.Equal(t, pl.SyscallBase, pl.OnSyscall("unpriced", 0).Total())
}

func TestPricelistValidate(t *testing.T) {
	tf.UnitTest(t)

	pl := NewDefaultPricelist()
	pl.StorageGasMulti = 0
	pl.IpldGetBase = -1
	pl.SendInvokeMethod = -pl.SendBase - 1

	err := pl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storageGasMulti")
	assert.Contains(t, err.Error(), "ipldGetBase")
	assert.Contains(t, err.Error(), "sendInvokeMethod")
}

func TestPricelistSaturatesAtMaxGas(t *testing.T) {
	tf.UnitTest(t)

	pl := NewDefaultPricelist()
	maxInt := int(^uint(0) >> 1)

	assert.Equal(t, int64(math.MaxInt64), pl.OnCompute(1<<62-1).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnCompute((1<<61)+(1<<59)).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnCompute(math.MaxInt64).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnMemory(maxInt).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnSyscall(SyscallHashBlake2b, maxInt).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnIpldGet(maxInt).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnIpldPut(maxInt).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnChainReturnValue(maxInt).Total())
	assert.Equal(t, int64(math.MaxInt64), pl.OnChainMessage(maxInt).Total())

	for _, kind := range OperationKinds {
		charge, err := pl.Cost(Operation{Kind: kind, Size: maxInt, Steps: math.MaxInt64, Value: big.Zero(), Name: SyscallHashBlake2b})
		require.NoError(t, err, kind)
		assert.True(t, charge.Total() >= 0, kind)
	}
}

func TestSaturatingArithmetic(t *testing.T) {
	tf.UnitTest(t)

	assert.Equal(t, int64(12), mulSat(3, 4))
	assert.Equal(t, int64(0), mulSat(0, math.MaxInt64))
	assert.Equal(t, int64(math.MaxInt64), mulSat(math.MaxInt64/2+1, 2))
	assert.Equal(t, int64(math.MaxInt64), mulSat(-1, 2))
	assert.Equal(t, int64(7), addSat(3, 4))
	assert.Equal(t, int64(math.MaxInt64), addSat(math.MaxInt64, 1))
	assert.Equal(t, int64(math.MaxInt64), addSat(-1, 1))
}
