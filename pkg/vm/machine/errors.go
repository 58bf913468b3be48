package machine

import (
	"errors"

	"github.com/ipfs-force-community/venus-fvm/pkg/state/tree"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/engine"
)

var (
	ErrActorExists       = tree.ErrActorExists
	ErrActorNotFound     = types.ErrActorNotFound
	ErrInvalidAddress    = tree.ErrInvalidAddress
	ErrCodeNotFound      = engine.ErrCodeNotFound
	ErrInvalidCode       = engine.ErrInvalidCode
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeValue     = errors.New("negative value")
)
