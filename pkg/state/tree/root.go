package tree

import (
	"fmt"
	"io"

	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	xerrors "golang.org/x/xerrors"
)

// StateTreeVersion is the version of the state tree layout.
type StateTreeVersion uint64

const (
	// StateTreeVersion0 keeps actors and the address index in two HAMTs with bit width 5.
	StateTreeVersion0 StateTreeVersion = iota
)

// StateRoot is the block a flushed tree is addressed by.
type StateRoot struct {
	Version   uint64
	Actors    cid.Cid
	Addresses cid.Cid
	NextID    uint64
}

var lengthBufStateRoot = []byte{132}

func (t *StateRoot) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufStateRoot); err != nil {
		return err
	}

	scratch := make([]byte, 9)

	// t.Version (uint64) (uint64)

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajUnsignedInt, t.Version); err != nil {
		return err
	}

	// t.Actors (cid.Cid) (struct)

	if err := cbg.WriteCidBuf(scratch, w, t.Actors); err != nil {
		return xerrors.Errorf("failed to write cid field t.Actors: %w", err)
	}

	// t.Addresses (cid.Cid) (struct)

	if err := cbg.WriteCidBuf(scratch, w, t.Addresses); err != nil {
		return xerrors.Errorf("failed to write cid field t.Addresses: %w", err)
	}

	// t.NextID (uint64) (uint64)

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajUnsignedInt, t.NextID); err != nil {
		return err
	}
	return nil
}

func (t *StateRoot) UnmarshalCBOR(r io.Reader) error {
	*t = StateRoot{}

	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}

	if extra != 4 {
		return fmt.Errorf("cbor input had wrong number of fields")
	}

	// t.Version (uint64) (uint64)

	{
		maj, extra, err = cbg.CborReadHeaderBuf(br, scratch)
		if err != nil {
			return err
		}
		if maj != cbg.MajUnsignedInt {
			return fmt.Errorf("wrong type for uint64 field")
		}
		t.Version = extra
	}

	// t.Actors (cid.Cid) (struct)

	{
		c, err := cbg.ReadCid(br)
		if err != nil {
			return xerrors.Errorf("failed to read cid field t.Actors: %w", err)
		}
		t.Actors = c
	}

	// t.Addresses (cid.Cid) (struct)

	{
		c, err := cbg.ReadCid(br)
		if err != nil {
			return xerrors.Errorf("failed to read cid field t.Addresses: %w", err)
		}
		t.Addresses = c
	}

	// t.NextID (uint64) (uint64)

	{
		maj, extra, err = cbg.CborReadHeaderBuf(br, scratch)
		if err != nil {
			return err
		}
		if maj != cbg.MajUnsignedInt {
			return fmt.Errorf("wrong type for uint64 field")
		}
		t.NextID = extra
	}
	return nil
}
