package engine

import (
	"context"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/dispatch"
)

type stubActor struct{}

func (stubActor) Name() string { return "test/stub" }

func (stubActor) Exports() []interface{} { return nil }

func newTestEngine(t *testing.T) (*Engine, *ModuleCache) {
	cache, err := NewModuleCache(4)
	require.NoError(t, err)
	return NewEngine(dispatch.NewBuilder().Add(stubActor{}).Build(), cache), cache
}

func TestEngineLoad(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	e, cache := newTestEngine(t)
	bs := blockstoreutil.NewTemporary()
	blk := constants.CodeBlock("test/stub")
	require.NoError(t, bs.Put(ctx, blk))

	m, err := e.Load(ctx, bs, blk.Cid())
	require.NoError(t, err)
	assert.Equal(t, "test/stub", m.Name)
	assert.NotNil(t, m.Dispatcher())
	assert.Equal(t, 1, cache.Len())

	again, err := e.Load(ctx, bs, blk.Cid())
	require.NoError(t, err)
	assert.Same(t, m, again)
}

func TestEngineCodeNotFound(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	e, _ := newTestEngine(t)
	_, err := e.Load(ctx, blockstoreutil.NewTemporary(), constants.CodeBlock("test/stub").Cid())
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestEngineCacheDoesNotBypassStore(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	e, _ := newTestEngine(t)
	blk := constants.CodeBlock("test/stub")
	withCode := blockstoreutil.NewTemporary()
	require.NoError(t, withCode.Put(ctx, blk))
	_, err := e.Load(ctx, withCode, blk.Cid())
	require.NoError(t, err)

	_, err = e.Load(ctx, blockstoreutil.NewTemporary(), blk.Cid())
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestEngineInvalidCode(t *testing.T) {
	tf.UnitTest(t)
	ctx := context.Background()

	e, _ := newTestEngine(t)
	bs := blockstoreutil.NewTemporary()

	unknown := constants.CodeBlock("test/unknown")
	require.NoError(t, bs.Put(ctx, unknown))
	_, err := e.Load(ctx, bs, unknown.Cid())
	assert.ErrorIs(t, err, ErrInvalidCode)

	// content that does not hash to the claimed code
	forged, err := blocks.NewBlockWithCid([]byte("test/stub"), constants.CodeBlock("test/other").Cid())
	require.NoError(t, err)
	_, err = e.Compile(ctx, forged.Cid(), forged.RawData())
	assert.ErrorIs(t, err, ErrInvalidCode)
}
