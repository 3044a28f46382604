package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/exitcodes"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/scenario"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Validate the suites and print their scenarios without running them",
		Flags: []cli.Flag{configFlag, specFlag, logLevelFlag},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return exitcodes.NewRuntimeError(err)
			}
			suites, err := scenario.LoadAll(cfg.SpecPattern, scenario.NewFixtureStore(cfg.FixturesFolder))
			if err != nil {
				return exitcodes.NewRuntimeError(err)
			}
			total := 0
			for _, s := range suites {
				fmt.Fprintf(c.App.Writer, "%s (%s)\n", s.Name, s.File)
				for _, sc := range s.Scenarios {
					mark := " "
					if sc.Skip {
						mark = "-"
					}
					fmt.Fprintf(c.App.Writer, "  %s %s\n", mark, sc.Name)
				}
				total += s.Count()
			}
			fmt.Fprintf(c.App.Writer, "%d suites, %d scenarios\n", len(suites), total)
			return nil
		},
	}
}
