package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/bridge"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/config"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/exitcodes"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/report"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/scenario"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the config file (default: $CALC_E2E_CONFIG or ./calce2e.yaml)",
	}
	specFlag = &cli.StringFlag{
		Name:  "spec",
		Usage: "Glob of suite files to run, overrides specPattern",
	}
	baseURLFlag = &cli.StringFlag{
		Name:  "base-url",
		Usage: "Calculator URL, overrides baseUrl",
	}
	apiURLFlag = &cli.StringFlag{
		Name:  "api-url",
		Usage: "Backend URL for api steps, overrides apiUrl",
	}
	grepFlag = &cli.StringFlag{
		Name:  "grep",
		Usage: `Only run scenarios whose "<suite> <scenario>" title contains this`,
	}
	headedFlag = &cli.BoolFlag{
		Name:  "headed",
		Usage: "Show the browser window",
	}
	reportFlag = &cli.StringFlag{
		Name:  "report",
		Usage: "JUnit XML output path, overrides reporterOptions.mochaFile",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "Log level: debug, info, warn or error",
	}
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the scenario suites and write the JUnit report",
		Flags:  []cli.Flag{configFlag, specFlag, baseURLFlag, apiURLFlag, grepFlag, headedFlag, reportFlag, logLevelFlag},
		Action: runAction,
	}
}

// loadConfig reads the config and applies command-line overrides on top.
func loadConfig(c *cli.Context) (*config.RuntimeConfig, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if c.IsSet(specFlag.Name) {
		cfg.SpecPattern = c.String(specFlag.Name)
	}
	if c.IsSet(baseURLFlag.Name) {
		cfg.BaseURL = c.String(baseURLFlag.Name)
	}
	if c.IsSet(apiURLFlag.Name) {
		cfg.APIURL = c.String(apiURLFlag.Name)
	}
	if c.IsSet(headedFlag.Name) {
		cfg.Headless = !c.Bool(headedFlag.Name)
	}
	if c.IsSet(reportFlag.Name) {
		cfg.ReportFile = c.String(reportFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = c.String(logLevelFlag.Name)
	}
	if err := setupLogging(c.App.ErrWriter, cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exitcodes.NewRuntimeError(err)
	}
	if err := cfg.Validate(); err != nil {
		return exitcodes.NewRuntimeError(fmt.Errorf("invalid config: %w", err))
	}
	slog.Debug("config", "source", cfg.Source, "baseUrl", cfg.BaseURL, "spec", cfg.SpecPattern)

	fixtures := scenario.NewFixtureStore(cfg.FixturesFolder)
	suites, err := scenario.LoadAll(cfg.SpecPattern, fixtures)
	if err != nil {
		return exitcodes.NewRuntimeError(err)
	}

	var browser bridge.BrowserAPI
	if needsBrowser(suites) {
		// The browser outlives an interrupt so open tabs can still be closed.
		b, err := bridge.InitChrome(context.Background(), cfg)
		if err != nil {
			return exitcodes.NewRuntimeError(err)
		}
		defer b.Close()
		browser = b
	} else {
		slog.Debug("only api suites selected, not starting chrome")
	}

	r := scenario.NewRunner(browser, cfg, fixtures)
	r.Grep = c.String(grepFlag.Name)
	run, runErr := r.Run(c.Context, suites)
	return finish(c.App.Writer, cfg, run, runErr)
}

func needsBrowser(suites []*scenario.Suite) bool {
	for _, s := range suites {
		if s.NeedsBrowser() {
			return true
		}
	}
	return false
}

// finish writes the report and turns the outcome into an exit error.
func finish(w io.Writer, cfg *config.RuntimeConfig, run *report.RunResult, runErr error) error {
	if run != nil {
		if err := report.WriteJUnitFile(cfg.ReportFile, run); err != nil {
			return exitcodes.NewRuntimeError(err)
		}
		slog.Info("report written", "path", cfg.ReportFile)
		if cfg.ReportToConsole {
			if err := report.WriteJUnit(w, run); err != nil {
				return exitcodes.NewRuntimeError(err)
			}
		}
		report.WriteTable(w, run, report.TableOptions{
			Title:   "calce2e " + cfg.BaseURL,
			Colored: w == os.Stdout && isTerminal(os.Stdout),
		})
	}

	if runErr != nil {
		return exitcodes.NewRuntimeError(runErr)
	}
	if !run.Passed() {
		t := run.Totals()
		return exitcodes.NewTestFailureError(fmt.Sprintf("%d of %d scenarios failed", t.Failures+t.Errors, t.Tests))
	}
	return nil
}
