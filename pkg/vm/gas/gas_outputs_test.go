package gas

import (
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"

	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func sumOutputs(out GasOutputs) abi.TokenAmount {
	return big.Sum(out.BaseFeeBurn, out.OverEstimationBurn, out.MinerTip, out.Refund)
}

func TestComputeGasOverestimationBurn(t *testing.T) {
	tf.UnitTest(t)

	refund, burn := ComputeGasOverestimationBurn(0, 1000)
	assert.Equal(t, int64(0), refund)
	assert.Equal(t, int64(1000), burn)

	// within the 10% allowance nothing is burnt
	refund, burn = ComputeGasOverestimationBurn(1000, 1100)
	assert.Equal(t, int64(100), refund)
	assert.Equal(t, int64(0), burn)

	refund, burn = ComputeGasOverestimationBurn(1000, 5000)
	assert.Equal(t, int64(4000), refund+burn)
	assert.Equal(t, int64(4000), burn)
}

func TestComputeGasOutputsAddsUp(t *testing.T) {
	tf.UnitTest(t)

	cases := []struct {
		name                     string
		used, limit              int64
		baseFee, feeCap, premium int64
	}{
		{"exact", 1000, 1000, 100, 200, 10},
		{"overestimated", 1000, 5000, 100, 200, 10},
		{"premium capped", 1000, 1100, 100, 105, 10},
		{"fee cap under base fee", 1000, 1200, 300, 200, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := ComputeGasOutputs(c.used, c.limit, big.NewInt(c.baseFee), big.NewInt(c.feeCap), big.NewInt(c.premium), true)
			required := big.Mul(big.NewInt(c.limit), big.NewInt(c.feeCap))
			assert.True(t, required.Equals(sumOutputs(out)), "parts must add up to gasLimit*feeCap")
			assert.True(t, out.Refund.GreaterThanEqual(big.Zero()))
		})
	}
}

func TestComputeGasOutputsPenaltyWhenFeeCapBelowBaseFee(t *testing.T) {
	tf.UnitTest(t)

	out := ComputeGasOutputs(1000, 1000, big.NewInt(300), big.NewInt(200), big.NewInt(10), true)
	assert.True(t, big.NewInt(100*1000).Equals(out.MinerPenalty))
	assert.True(t, big.Zero().Equals(out.MinerTip))
	assert.True(t, big.NewInt(200*1000).Equals(out.BaseFeeBurn))
}

func TestComputeGasOutputsNoNetworkFee(t *testing.T) {
	tf.UnitTest(t)

	out := ComputeGasOutputs(1000, 1000, big.NewInt(100), big.NewInt(200), big.NewInt(10), false)
	assert.True(t, big.Zero().Equals(out.BaseFeeBurn))
	assert.True(t, big.NewInt(10*1000).Equals(out.MinerTip))
}
