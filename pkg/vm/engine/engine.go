package engine

import (
	"context"
	"errors"

	blockstore "github.com/ipfs/go-ipfs-blockstore"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/metrics"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/dispatch"
)

var log = logging.Logger("vm.engine")

var (
	ErrCodeNotFound = errors.New("code not found")
	ErrInvalidCode  = errors.New("invalid code")
)

var (
	compiledCt = metrics.NewInt64Counter("vm/modules_compiled", "Number of code blocks compiled into modules")
	rejectedCt = metrics.NewInt64Counter("vm/modules_rejected", "Number of code blocks rejected by the engine")
)

// Module is a validated, loadable unit of actor code.
type Module struct {
	Code cid.Cid
	Name string

	dispatcher dispatch.Dispatcher
}

// Dispatcher returns the method table of the module.
func (m *Module) Dispatcher() dispatch.Dispatcher {
	return m.dispatcher
}

// Engine turns code blocks into modules. Native actors are code blocks whose content is the
// name the actor is registered under.
type Engine struct {
	loader dispatch.CodeLoader
	cache  *ModuleCache
}

// NewEngine returns an engine over the actors registered in loader. Modules are cached in cache,
// which may be shared by several engines.
func NewEngine(loader dispatch.CodeLoader, cache *ModuleCache) *Engine {
	return &Engine{loader: loader, cache: cache}
}

// Compile validates raw as the content of code.
func (e *Engine) Compile(ctx context.Context, code cid.Cid, raw []byte) (*Module, error) {
	sum, err := code.Prefix().Sum(raw)
	if err != nil {
		return nil, xerrors.Errorf("hash code %s: %w", code, err)
	}
	if !sum.Equals(code) {
		rejectedCt.Inc(ctx, 1)
		return nil, xerrors.Errorf("code %s does not match its content: %w", code, ErrInvalidCode)
	}

	name := string(raw)
	d, ok := e.loader.GetActorImpl(name)
	if !ok {
		rejectedCt.Inc(ctx, 1)
		return nil, xerrors.Errorf("no actor implements %q (%s): %w", name, code, ErrInvalidCode)
	}
	compiledCt.Inc(ctx, 1)
	return &Module{Code: code, Name: name, dispatcher: d}, nil
}

// Load returns the module for code, compiling it from bs on a cache miss. A code block absent
// from bs is ErrCodeNotFound even if another store put the module in the cache.
func (e *Engine) Load(ctx context.Context, bs blockstore.Blockstore, code cid.Cid) (*Module, error) {
	has, err := bs.Has(ctx, code)
	if err != nil {
		return nil, xerrors.Errorf("lookup code %s: %w", code, err)
	}
	if !has {
		return nil, xerrors.Errorf("code %s: %w", code, ErrCodeNotFound)
	}

	if m, ok := e.cache.Get(ctx, code); ok {
		return m, nil
	}

	blk, err := bs.Get(ctx, code)
	if err != nil {
		return nil, xerrors.Errorf("read code %s: %w", code, err)
	}
	m, err := e.Compile(ctx, code, blk.RawData())
	if err != nil {
		log.Warnf("rejected code %s: %s", code, err)
		return nil, err
	}
	e.cache.Add(code, m)
	return m, nil
}
