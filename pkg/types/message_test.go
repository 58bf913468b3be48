package types

import (
	"bytes"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func newTestMessage(t *testing.T) *Message {
	from, err := address.NewIDAddress(100)
	require.NoError(t, err)
	to, err := address.NewIDAddress(101)
	require.NoError(t, err)
	return &Message{
		To:         to,
		From:       from,
		Nonce:      4,
		Value:      big.NewInt(10),
		GasLimit:   1_000_000,
		GasFeeCap:  big.NewInt(100),
		GasPremium: big.NewInt(10),
		Method:     2,
		Params:     []byte{1, 2, 3},
	}
}

func TestMessageSerializationIsStable(t *testing.T) {
	tf.UnitTest(t)

	msg := newTestMessage(t)
	ser, err := msg.Serialize()
	require.NoError(t, err)
	assert.Equal(t, len(ser), msg.ChainLength())

	var out Message
	require.NoError(t, out.UnmarshalCBOR(bytes.NewReader(ser)))
	assert.Equal(t, msg.Cid(), out.Cid())
	assert.Equal(t, msg.Params, out.Params)
	assert.Equal(t, msg.GasLimit, out.GasLimit)
}

func TestMessageRequiredFunds(t *testing.T) {
	tf.UnitTest(t)

	msg := newTestMessage(t)
	// 1_000_000 * 100 + 10
	assert.True(t, big.NewInt(100_000_010).Equals(msg.RequiredFunds()))
}

func TestMessageValidForExecution(t *testing.T) {
	tf.UnitTest(t)

	assert.NoError(t, newTestMessage(t).ValidForExecution())

	msg := newTestMessage(t)
	msg.GasLimit = 0
	assert.Error(t, msg.ValidForExecution())

	msg = newTestMessage(t)
	msg.Value = big.NewInt(-1)
	assert.Error(t, msg.ValidForExecution())

	msg = newTestMessage(t)
	msg.GasPremium = big.NewInt(101)
	assert.Error(t, msg.ValidForExecution())

	msg = newTestMessage(t)
	msg.To = address.Undef
	assert.Error(t, msg.ValidForExecution())
}

func TestReceiptFailure(t *testing.T) {
	tf.UnitTest(t)

	r := Failure(exitcode.SysErrOutOfGas, 12)
	assert.Equal(t, exitcode.SysErrOutOfGas, r.ExitCode)
	assert.Equal(t, int64(12), r.GasUsed)
	assert.Empty(t, r.Return)

	buf := new(bytes.Buffer)
	require.NoError(t, r.MarshalCBOR(buf))
	var out MessageReceipt
	require.NoError(t, out.UnmarshalCBOR(buf))
	assert.Equal(t, r.ExitCode, out.ExitCode)
	assert.Equal(t, r.GasUsed, out.GasUsed)
}
