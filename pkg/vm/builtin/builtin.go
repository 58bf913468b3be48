// Package builtin holds the native actors the machine ships with.
package builtin

import (
	"context"
	"sync"

	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/dispatch"
)

// Actors returns every native actor.
func Actors() []dispatch.Actor {
	return []dispatch.Actor{
		SystemActor{},
		AccountActor{},
		ChaosActor{},
	}
}

// DefaultBuilder returns a code loader builder with every native actor registered.
func DefaultBuilder() *dispatch.CodeLoaderBuilder {
	return dispatch.NewBuilder().AddMany(Actors()...)
}

var (
	loadOnce      sync.Once
	defaultLoader dispatch.CodeLoader
)

// DefaultLoader returns the shared code loader of the native actors.
func DefaultLoader() dispatch.CodeLoader {
	loadOnce.Do(func() {
		defaultLoader = DefaultBuilder().Build()
	})
	return defaultLoader
}

// InstallCode writes the code blocks of every native actor and the empty object into bs, so
// that actors created from them can be loaded.
func InstallCode(ctx context.Context, bs blockstoreutil.Blockstore) error {
	if err := bs.Put(ctx, constants.EmptyObjectBlock); err != nil {
		return xerrors.Errorf("put empty object: %w", err)
	}
	for _, a := range Actors() {
		if err := bs.Put(ctx, constants.CodeBlock(a.Name())); err != nil {
			return xerrors.Errorf("install code of %s: %w", a.Name(), err)
		}
	}
	return nil
}
