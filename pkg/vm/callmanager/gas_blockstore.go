package callmanager

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
)

// GasChargeBlockStore in addition to basic blockstore read and write capabilities, a certain amount of gas consumption will be deducted for each operation
type GasChargeBlockStore struct {
	gasTank   *gas.GasTracker
	pricelist *gas.Pricelist
	inner     blockstoreutil.Blockstore
}

var _ cbor.IpldBlockstore = (*GasChargeBlockStore)(nil)

// NewGasChargeBlockStore wraps inner so every access draws from gasTank.
func NewGasChargeBlockStore(gasTank *gas.GasTracker, pricelist *gas.Pricelist, inner blockstoreutil.Blockstore) *GasChargeBlockStore {
	return &GasChargeBlockStore{
		gasTank:   gasTank,
		pricelist: pricelist,
		inner:     inner,
	}
}

// Get charge gas and than get the value of cid
func (bs *GasChargeBlockStore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	blk, err := bs.inner.Get(ctx, c)
	if err != nil {
		return nil, xerrors.Errorf("get block %s: %w", c, err)
	}
	bs.gasTank.Charge(bs.pricelist.OnIpldGet(len(blk.RawData())), "storage get %s", c)
	return blk, nil
}

// Put first charge gas and than save block
func (bs *GasChargeBlockStore) Put(ctx context.Context, blk blocks.Block) error {
	bs.gasTank.Charge(bs.pricelist.OnIpldPut(len(blk.RawData())), "%s storage put %d bytes", blk.Cid(), len(blk.RawData()))

	if err := bs.inner.Put(ctx, blk); err != nil {
		return xerrors.Errorf("put block %s: %w", blk.Cid(), err)
	}
	return nil
}
