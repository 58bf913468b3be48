package machine

import (
	"context"
	"encoding/binary"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"
)

// Externs supplies chain data the machine cannot compute itself.
type Externs interface {
	GetChainRandomness(ctx context.Context, pers crypto.DomainSeparationTag, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error)
	GetBeaconRandomness(ctx context.Context, pers crypto.DomainSeparationTag, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error)
}

// SeedExterns draws randomness from a fixed seed instead of a chain. Chain and beacon randomness
// use distinct bases.
type SeedExterns struct {
	Seed []byte
}

var _ Externs = SeedExterns{}

func (e SeedExterns) GetChainRandomness(_ context.Context, pers crypto.DomainSeparationTag, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return DrawRandomness(append([]byte("chain"), e.Seed...), pers, round, entropy)
}

func (e SeedExterns) GetBeaconRandomness(_ context.Context, pers crypto.DomainSeparationTag, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return DrawRandomness(append([]byte("beacon"), e.Seed...), pers, round, entropy)
}

// DrawRandomness mixes a randomness base with a domain separation tag, a round and entropy.
func DrawRandomness(rbase []byte, pers crypto.DomainSeparationTag, round abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	h := blake2b.New256()
	if err := binary.Write(h, binary.BigEndian, int64(pers)); err != nil {
		return nil, xerrors.Errorf("deriving randomness: %w", err)
	}
	digest := blake2b.Sum256(rbase)
	if _, err := h.Write(digest[:]); err != nil {
		return nil, xerrors.Errorf("hashing randomness base: %w", err)
	}
	if err := binary.Write(h, binary.BigEndian, round); err != nil {
		return nil, xerrors.Errorf("deriving randomness: %w", err)
	}
	if _, err := h.Write(entropy); err != nil {
		return nil, xerrors.Errorf("hashing entropy: %w", err)
	}
	return h.Sum(nil), nil
}
