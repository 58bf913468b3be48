package blockstoreutil

import (
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	badgerds "github.com/ipfs/go-ds-badger2"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("blockstore")

// Blockstore is the content addressed block storage the machine consumes.
type Blockstore = blockstore.Blockstore

// NewTemporary returns a thread safe in memory blockstore.
func NewTemporary() Blockstore {
	return blockstore.NewBlockstore(dssync.MutexWrap(datastore.NewMapDatastore()))
}

// NewBadger opens (or creates) a badger backed blockstore at path. The returned closer releases
// the datastore.
func NewBadger(path string) (Blockstore, func() error, error) {
	opts := badgerds.DefaultOptions
	ds, err := badgerds.NewDatastore(path, &opts)
	if err != nil {
		return nil, nil, xerrors.Errorf("open badger datastore at %s: %w", path, err)
	}
	log.Infow("opened badger blockstore", "path", path)
	return blockstore.NewBlockstore(ds), ds.Close, nil
}

// Open returns the blockstore named by kind: "memory" or "badger".
func Open(kind, path string) (Blockstore, func() error, error) {
	switch kind {
	case "", "memory":
		return NewTemporary(), func() error { return nil }, nil
	case "badger", "badgerds":
		return NewBadger(path)
	default:
		return nil, nil, xerrors.Errorf("unknown datastore type %q", kind)
	}
}

// CborStore wraps bs in an IPLD CBOR store.
func CborStore(bs Blockstore) cbor.IpldStore {
	return cbor.NewCborStore(bs)
}

