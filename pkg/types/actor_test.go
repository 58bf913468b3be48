package types

import (
	"bytes"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func TestActor_Empty(t *testing.T) {
	tf.UnitTest(t)

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{
			"empty",
			Actor{Code: cid.Undef, Head: cid.Undef, Balance: abi.TokenAmount{}},
			true,
		},
		{
			"not empty",
			Actor{Code: constants.AccountActorCodeID, Head: constants.EmptyObjectCid, Balance: abi.TokenAmount{}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.Empty())
		})
	}
}

func TestActor_IncrementSeqNum(t *testing.T) {
	tf.UnitTest(t)

	actor := NewActor(constants.AccountActorCodeID, constants.EmptyObjectCid)
	for i := 0; i < 10; i++ {
		actor.IncrementSeqNum()
	}
	require.Equal(t, uint64(10), actor.Nonce)
}

func TestActor_CopyDoesNotAlias(t *testing.T) {
	tf.UnitTest(t)

	actor := NewActor(constants.AccountActorCodeID, constants.EmptyObjectCid)
	actor.Balance = big.NewInt(100)

	cpy := actor.Copy()
	cpy.Balance.Int.SetInt64(5)
	cpy.Nonce = 3

	assert.True(t, big.NewInt(100).Equals(actor.Balance))
	assert.Equal(t, uint64(0), actor.Nonce)
}

func TestActor_CBOR(t *testing.T) {
	tf.UnitTest(t)

	actor := &Actor{
		Code:    constants.ChaosActorCodeID,
		Head:    constants.EmptyObjectCid,
		Nonce:   7,
		Balance: big.NewInt(123456789),
	}
	buf := new(bytes.Buffer)
	require.NoError(t, actor.MarshalCBOR(buf))

	var out Actor
	require.NoError(t, out.UnmarshalCBOR(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, actor.Code, out.Code)
	assert.Equal(t, actor.Head, out.Head)
	assert.Equal(t, actor.Nonce, out.Nonce)
	assert.True(t, actor.Balance.Equals(out.Balance))

	undefined := &Actor{Code: cid.Undef, Head: constants.EmptyObjectCid, Balance: big.Zero()}
	assert.Error(t, undefined.MarshalCBOR(new(bytes.Buffer)))
}
