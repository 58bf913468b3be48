package main

import (
	"context"
	"io/ioutil"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/config"
	"github.com/ipfs-force-community/venus-fvm/metrics"
	"github.com/ipfs-force-community/venus-fvm/pkg/gen/genesis"
	"github.com/ipfs-force-community/venus-fvm/pkg/scenario"
	"github.com/ipfs-force-community/venus-fvm/pkg/types"
	"github.com/ipfs-force-community/venus-fvm/pkg/util/blockstoreutil"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/builtin"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/engine"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/executor"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/machine"
)

const (
	templateFlag = "template"
	scenarioFlag = "scenario"
	rootFlag     = "root"
	seedFlag     = "seed"
)

var (
	templatePathFlag = &cli.PathFlag{
		Name:     templateFlag,
		Usage:    "JSON genesis template",
		Required: true,
	}
	scenarioPathFlag = &cli.PathFlag{
		Name:     scenarioFlag,
		Usage:    "JSON list of messages to apply",
		Required: true,
	}
	randSeedFlag = &cli.StringFlag{
		Name:  seedFlag,
		Usage: "seed of the chain and beacon randomness",
		Value: "fvm-tool",
	}
)

var genesisCmd = &cli.Command{
	Name:  "genesis",
	Usage: "Create a genesis state in the configured datastore",
	Flags: []cli.Flag{templatePathFlag},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		bs, closer, err := openBlockstore(cfg)
		if err != nil {
			return err
		}
		defer closer() // nolint: errcheck

		root, ids, err := makeGenesis(cctx.Context, bs, cctx.Path(templateFlag))
		if err != nil {
			return err
		}
		return printJSON(cctx, genesisOutput(root, ids))
	},
}

var applyCmd = &cli.Command{
	Name:  "apply",
	Usage: "Apply a scenario to a state root in the configured datastore",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     rootFlag,
			Usage:    "CID of the state root to start from",
			Required: true,
		},
		scenarioPathFlag,
		randSeedFlag,
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		root, err := cid.Decode(cctx.String(rootFlag))
		if err != nil {
			return xerrors.Errorf("invalid root: %w", err)
		}
		bs, closer, err := openBlockstore(cfg)
		if err != nil {
			return err
		}
		defer closer() // nolint: errcheck

		return applyScenario(cctx, cfg, bs, root)
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Create a genesis state and apply a scenario to it",
	Flags: []cli.Flag{templatePathFlag, scenarioPathFlag, randSeedFlag},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		bs, closer, err := openBlockstore(cfg)
		if err != nil {
			return err
		}
		defer closer() // nolint: errcheck

		root, ids, err := makeGenesis(cctx.Context, bs, cctx.Path(templateFlag))
		if err != nil {
			return err
		}
		if err := printJSON(cctx, genesisOutput(root, ids)); err != nil {
			return err
		}
		return applyScenario(cctx, cfg, bs, root)
	},
}

var actorsCmd = &cli.Command{
	Name:  "actors",
	Usage: "List the actors of a state root",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     rootFlag,
			Usage:    "CID of the state root",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		root, err := cid.Decode(cctx.String(rootFlag))
		if err != nil {
			return xerrors.Errorf("invalid root: %w", err)
		}
		bs, closer, err := openBlockstore(cfg)
		if err != nil {
			return err
		}
		defer closer() // nolint: errcheck

		m, err := newMachine(cctx.Context, cfg, bs, root, 0, abi.NewTokenAmount(0), nil)
		if err != nil {
			return err
		}
		type actorOutput struct {
			ID      abi.ActorID
			Code    cid.Cid
			Head    cid.Cid
			Nonce   uint64
			Balance abi.TokenAmount
		}
		var out []actorOutput
		err = m.StateTree().ForEach(cctx.Context, func(id abi.ActorID, act *types.Actor) error {
			out = append(out, actorOutput{ID: id, Code: act.Code, Head: act.Head, Nonce: act.Nonce, Balance: act.Balance})
			return nil
		})
		if err != nil {
			return err
		}
		return printJSON(cctx, out)
	},
}

func makeGenesis(ctx context.Context, bs blockstoreutil.Blockstore, templatePath string) (cid.Cid, map[address.Address]abi.ActorID, error) {
	raw, err := ioutil.ReadFile(templatePath)
	if err != nil {
		return cid.Undef, nil, err
	}
	template, err := genesis.ParseTemplate(raw)
	if err != nil {
		return cid.Undef, nil, xerrors.Errorf("parse template %s: %w", templatePath, err)
	}
	return genesis.MakeGenesis(ctx, bs, *template)
}

func genesisOutput(root cid.Cid, ids map[address.Address]abi.ActorID) interface{} {
	actors := make(map[string]abi.ActorID, len(ids))
	for addr, id := range ids {
		actors[addr.String()] = id
	}
	return struct {
		Root   cid.Cid
		Actors map[string]abi.ActorID
	}{root, actors}
}

func newMachine(ctx context.Context, cfg *config.Config, bs blockstoreutil.Blockstore, root cid.Cid, epoch abi.ChainEpoch, baseFee abi.TokenAmount, seed []byte) (*machine.DefaultMachine, error) {
	cache, err := engine.NewModuleCache(cfg.VM.ModuleCacheSize)
	if err != nil {
		return nil, err
	}
	eng := engine.NewEngine(builtin.DefaultLoader(), cache)
	mctx := machine.NewMachineContext(epoch, baseFee, root, cfg.Pricing, cfg.VM.Version())
	return machine.NewDefaultMachine(ctx, cfg, mctx, bs, machine.SeedExterns{Seed: seed}, eng)
}

func openBlockstore(cfg *config.Config) (blockstoreutil.Blockstore, func() error, error) {
	path, err := homedir.Expand(cfg.Datastore.Path)
	if err != nil {
		return nil, nil, err
	}
	return blockstoreutil.Open(cfg.Datastore.Type, path)
}

type scenarioOutput struct {
	Results []scenario.Result
	Root    cid.Cid
}

// applyScenario runs the scenario file against root while the metrics endpoint, if enabled,
// serves alongside it. Execution spans go to jaeger when tracing is enabled.
func applyScenario(cctx *cli.Context, cfg *config.Config, bs blockstoreutil.Blockstore, root cid.Cid) error {
	raw, err := ioutil.ReadFile(cctx.Path(scenarioFlag))
	if err != nil {
		return err
	}
	s, err := scenario.Parse(raw)
	if err != nil {
		return err
	}

	je, err := metrics.RegisterJaeger(cctx.App.Name, cfg.Tracing)
	if err != nil {
		return xerrors.Errorf("setup tracing: %w", err)
	}
	defer metrics.UnregisterJaeger(je)

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()
	grp, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		grp.Go(func() error {
			return metrics.ServePrometheus(ctx, cfg.Metrics.Address, cfg.Metrics.Namespace)
		})
	}

	var out scenarioOutput
	grp.Go(func() error {
		defer cancel()
		m, err := newMachine(ctx, cfg, bs, root, s.Epoch, s.BaseFee, []byte(cctx.String(seedFlag)))
		if err != nil {
			return err
		}
		out.Results, out.Root, err = scenario.Run(ctx, executor.NewExecutor(m), s)
		if err != nil {
			return err
		}
		log.Infow("applied scenario", "messages", len(out.Results), "root", out.Root)
		return nil
	})

	if err := grp.Wait(); err != nil {
		return err
	}
	return printJSON(cctx, out)
}
