package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/config"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/exitcodes"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or create the config file",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{configFlag, specFlag, baseURLFlag, apiURLFlag, headedFlag, reportFlag, logLevelFlag},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return exitcodes.NewRuntimeError(err)
					}
					fmt.Fprint(c.App.Writer, cfg.Describe())
					return nil
				},
			},
			{
				Name:      "init",
				Usage:     "Write a default config file",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = config.DefaultConfigFile
					}
					if err := config.WriteDefault(path, c.Bool("force")); err != nil {
						return exitcodes.NewRuntimeError(err)
					}
					fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
					return nil
				},
			},
		},
	}
}
