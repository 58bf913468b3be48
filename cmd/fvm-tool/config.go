package main

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/venus-fvm/config"
)

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Manage the config file",
	Subcommands: []*cli.Command{
		{
			Name:  "init",
			Usage: "Write the default config",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
			},
			Action: func(cctx *cli.Context) error {
				path, err := configPath(cctx)
				if err != nil {
					return err
				}
				if _, err := os.Stat(path); err == nil && !cctx.Bool("force") {
					return xerrors.Errorf("%s already exists", path)
				}
				if err := config.NewDefaultConfig().WriteFile(path); err != nil {
					return err
				}
				log.Infow("wrote default config", "path", path)
				return nil
			},
		},
		{
			Name:      "get",
			Usage:     "Print a config value",
			ArgsUsage: "<key>",
			Action: func(cctx *cli.Context) error {
				if cctx.NArg() != 1 {
					return xerrors.Errorf("expected a key")
				}
				cfg, err := loadConfig(cctx)
				if err != nil {
					return err
				}
				v, err := cfg.Get(cctx.Args().First())
				if err != nil {
					return err
				}
				return printJSON(cctx, v)
			},
		},
		{
			Name:      "set",
			Usage:     "Set a config value from its TOML form",
			ArgsUsage: "<key> <value>",
			Action: func(cctx *cli.Context) error {
				if cctx.NArg() != 2 {
					return xerrors.Errorf("expected a key and a value")
				}
				cfg, err := loadConfig(cctx)
				if err != nil {
					return err
				}
				if _, err := cfg.Set(cctx.Args().Get(0), cctx.Args().Get(1)); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				path, err := configPath(cctx)
				if err != nil {
					return err
				}
				return cfg.WriteFile(path)
			},
		},
	},
}

func printJSON(cctx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(cctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
