package constants

import (
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DefaultHashFunction is the hash used for every block this module creates.
const DefaultHashFunction = multihash.BLAKE2B_MIN + 31

// DefaultCidBuilder builds dag-cbor CIDs.
var DefaultCidBuilder = cid.V1Builder{Codec: cid.DagCBOR, MhType: DefaultHashFunction}

// CodeCidBuilder builds the CIDs of raw code blocks.
var CodeCidBuilder = cid.V1Builder{Codec: cid.Raw, MhType: DefaultHashFunction}

// EmptyObjectCid is the CID of the CBOR empty array, the head of actors without state.
var EmptyObjectCid cid.Cid

// EmptyObjectBlock holds the bytes behind EmptyObjectCid.
var EmptyObjectBlock blocks.Block

// Code identifiers of the native actors. The code block of each actor holds its name.
var (
	SystemActorCodeID  cid.Cid
	AccountActorCodeID cid.Cid
	ChaosActorCodeID   cid.Cid
)

const (
	SystemActorName  = "fil/system"
	AccountActorName = "fil/account"
	ChaosActorName   = "fil/chaos"
)

// CodeBlock returns the raw code block of an actor name.
func CodeBlock(name string) blocks.Block {
	data := []byte(name)
	c, err := CodeCidBuilder.Sum(data)
	if err != nil {
		panic(err)
	}
	blk, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		panic(err)
	}
	return blk
}

func init() {
	data := []byte{0x80}
	c, err := DefaultCidBuilder.Sum(data)
	if err != nil {
		panic(err)
	}
	EmptyObjectCid = c
	EmptyObjectBlock, err = blocks.NewBlockWithCid(data, c)
	if err != nil {
		panic(err)
	}

	SystemActorCodeID = CodeBlock(SystemActorName).Cid()
	AccountActorCodeID = CodeBlock(AccountActorName).Cid()
	ChaosActorCodeID = CodeBlock(ChaosActorName).Cid()
}
