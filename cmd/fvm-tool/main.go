package main

import (
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/config"
)

var log = logging.Logger("fvm-tool")

const configFlag = "config"

func main() {
	app := newApp()
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err) // nolint: errcheck
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fvm-tool",
		Usage: "build genesis states and apply messages to them",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    configFlag,
				Usage:   "path of the TOML config file",
				Value:   "fvm.toml",
				EnvVars: []string{"FVM_CONFIG"},
			},
		},
		Before: func(cctx *cli.Context) error {
			cfg, err := loadConfig(cctx)
			if err != nil {
				return err
			}
			return cfg.Log.Apply()
		},
		Commands: []*cli.Command{
			configCmd,
			genesisCmd,
			applyCmd,
			runCmd,
			actorsCmd,
		},
	}
}

func configPath(cctx *cli.Context) (string, error) {
	return homedir.Expand(cctx.Path(configFlag))
}

// loadConfig reads the config file, falling back to the defaults when it does not exist.
func loadConfig(cctx *cli.Context) (*config.Config, error) {
	path, err := configPath(cctx)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.NewDefaultConfig(), nil
	}
	cfg, err := config.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
