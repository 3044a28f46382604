package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "calce2e.yaml"
	ReporterJUnit     = "junit"
)

type RuntimeConfig struct {
	BaseURL             string
	APIURL              string
	SpecPattern         string
	FixturesFolder      string
	ScreenshotsFolder   string
	ScreenshotOnFailure bool
	DisableAnimations   bool
	Reporter            string
	ReportFile          string
	ReportToConsole     bool
	CommandTimeout      time.Duration
	PageLoadTimeout     time.Duration
	Headless            bool
	ChromeBinary        string
	ChromeExtraFlags    string
	CdpURL              string
	LogLevel            string

	// Source is the config file that was read, empty when none was found.
	Source string
}

type ReporterOptions struct {
	MochaFile string `yaml:"mochaFile,omitempty"`
	ToConsole bool   `yaml:"toConsole"`
}

type FileConfig struct {
	BaseURL               string          `yaml:"baseUrl"`
	APIURL                string          `yaml:"apiUrl,omitempty"`
	SpecPattern           string          `yaml:"specPattern,omitempty"`
	FixturesFolder        string          `yaml:"fixturesFolder,omitempty"`
	ScreenshotsFolder     string          `yaml:"screenshotsFolder,omitempty"`
	ScreenshotOnFailure   *bool           `yaml:"screenshotOnRunFailure,omitempty"`
	DisableAnimations     *bool           `yaml:"disableAnimations,omitempty"`
	Reporter              string          `yaml:"reporter,omitempty"`
	ReporterOptions       ReporterOptions `yaml:"reporterOptions"`
	DefaultCommandTimeout int             `yaml:"defaultCommandTimeout,omitempty"`
	PageLoadTimeout       int             `yaml:"pageLoadTimeout,omitempty"`
	Headless              *bool           `yaml:"headless,omitempty"`
	ChromeBinary          string          `yaml:"chromeBinary,omitempty"`
	ChromeFlags           string          `yaml:"chromeFlags,omitempty"`
	CdpURL                string          `yaml:"cdpUrl,omitempty"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func Defaults() *RuntimeConfig {
	return &RuntimeConfig{
		SpecPattern:         "scenarios/**/*.yaml",
		FixturesFolder:      "fixtures",
		ScreenshotsFolder:   "screenshots",
		ScreenshotOnFailure: true,
		DisableAnimations:   true,
		Reporter:            ReporterJUnit,
		ReportFile:          filepath.Join("results", "calce2e_result.xml"),
		CommandTimeout:      1000 * time.Millisecond,
		PageLoadTimeout:     30 * time.Second,
		Headless:            true,
		LogLevel:            "info",
	}
}

// Load builds the runtime config from defaults, the YAML file at path and
// CALC_E2E_* environment variables, in that order of precedence. An empty
// path falls back to CALC_E2E_CONFIG and then calce2e.yaml; only an
// explicitly named file is required to exist.
func Load(path string) (*RuntimeConfig, error) {
	cfg := Defaults()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CALC_E2E_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fc FileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.applyFile(fc)
		cfg.Source = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *RuntimeConfig) applyFile(fc FileConfig) {
	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.SpecPattern != "" {
		c.SpecPattern = fc.SpecPattern
	}
	if fc.FixturesFolder != "" {
		c.FixturesFolder = fc.FixturesFolder
	}
	if fc.ScreenshotsFolder != "" {
		c.ScreenshotsFolder = fc.ScreenshotsFolder
	}
	if fc.ScreenshotOnFailure != nil {
		c.ScreenshotOnFailure = *fc.ScreenshotOnFailure
	}
	if fc.DisableAnimations != nil {
		c.DisableAnimations = *fc.DisableAnimations
	}
	if fc.Reporter != "" {
		c.Reporter = fc.Reporter
	}
	if fc.ReporterOptions.MochaFile != "" {
		c.ReportFile = fc.ReporterOptions.MochaFile
	}
	c.ReportToConsole = fc.ReporterOptions.ToConsole
	if fc.DefaultCommandTimeout > 0 {
		c.CommandTimeout = time.Duration(fc.DefaultCommandTimeout) * time.Millisecond
	}
	if fc.PageLoadTimeout > 0 {
		c.PageLoadTimeout = time.Duration(fc.PageLoadTimeout) * time.Millisecond
	}
	if fc.Headless != nil {
		c.Headless = *fc.Headless
	}
	if fc.ChromeBinary != "" {
		c.ChromeBinary = fc.ChromeBinary
	}
	if fc.ChromeFlags != "" {
		c.ChromeExtraFlags = fc.ChromeFlags
	}
	if fc.CdpURL != "" {
		c.CdpURL = fc.CdpURL
	}
}

func (c *RuntimeConfig) applyEnv() {
	c.BaseURL = envOr("CALC_E2E_BASE_URL", c.BaseURL)
	c.APIURL = envOr("CALC_E2E_API_URL", c.APIURL)
	c.SpecPattern = envOr("CALC_E2E_SPEC_PATTERN", c.SpecPattern)
	c.FixturesFolder = envOr("CALC_E2E_FIXTURES", c.FixturesFolder)
	c.ScreenshotsFolder = envOr("CALC_E2E_SCREENSHOTS", c.ScreenshotsFolder)
	c.ScreenshotOnFailure = envBoolOr("CALC_E2E_SCREENSHOT_ON_FAILURE", c.ScreenshotOnFailure)
	c.DisableAnimations = envBoolOr("CALC_E2E_DISABLE_ANIMATIONS", c.DisableAnimations)
	c.Reporter = envOr("CALC_E2E_REPORTER", c.Reporter)
	c.ReportFile = envOr("CALC_E2E_REPORT_FILE", c.ReportFile)
	c.ReportToConsole = envBoolOr("CALC_E2E_REPORT_TO_CONSOLE", c.ReportToConsole)
	if ms := envIntOr("CALC_E2E_TIMEOUT_MS", 0); ms > 0 {
		c.CommandTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := envIntOr("CALC_E2E_PAGE_LOAD_MS", 0); ms > 0 {
		c.PageLoadTimeout = time.Duration(ms) * time.Millisecond
	}
	c.Headless = envBoolOr("CALC_E2E_HEADLESS", c.Headless)
	c.ChromeBinary = envOr("CHROME_BINARY", c.ChromeBinary)
	c.ChromeExtraFlags = envOr("CHROME_FLAGS", c.ChromeExtraFlags)
	c.CdpURL = envOr("CDP_URL", c.CdpURL)
	c.LogLevel = envOr("CALC_E2E_LOG_LEVEL", c.LogLevel)
}

// Validate reports the first problem that makes the config unusable. It
// also creates the report directory and checks that it is writable.
func (c *RuntimeConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	if err := checkAbsolute("baseUrl", c.BaseURL); err != nil {
		return err
	}
	if c.APIURL != "" {
		if err := checkAbsolute("apiUrl", c.APIURL); err != nil {
			return err
		}
	}
	if c.SpecPattern == "" {
		return fmt.Errorf("specPattern is required")
	}
	if c.Reporter != ReporterJUnit {
		return fmt.Errorf("unsupported reporter %q (supported: %s)", c.Reporter, ReporterJUnit)
	}
	if c.ReportFile == "" {
		return fmt.Errorf("reporterOptions.mochaFile is required")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("defaultCommandTimeout must be positive")
	}
	if c.PageLoadTimeout <= 0 {
		return fmt.Errorf("pageLoadTimeout must be positive")
	}
	return checkWritable(filepath.Dir(c.ReportFile))
}

func checkAbsolute(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", key, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", key, raw)
	}
	return nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("report dir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".calce2e-probe-*")
	if err != nil {
		return fmt.Errorf("report dir %s not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// ResolveURL resolves ref against the base URL. Absolute refs are returned
// unchanged and an empty ref yields the base URL itself.
func (c *RuntimeConfig) ResolveURL(ref string) (string, error) {
	return resolve(c.BaseURL, ref)
}

// ResolveAPIURL resolves ref against the backend URL, which defaults to the
// base URL when apiUrl is not set.
func (c *RuntimeConfig) ResolveAPIURL(ref string) (string, error) {
	if c.APIURL == "" {
		return resolve(c.BaseURL, ref)
	}
	return resolve(c.APIURL, ref)
}

func resolve(rawBase, ref string) (string, error) {
	base, err := url.Parse(rawBase)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	if ref == "" {
		return base.String(), nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("url %q: %w", ref, err)
	}
	if base.Path == "" {
		base.Path = "/"
	}
	return base.ResolveReference(r).String(), nil
}

func DefaultFileConfig() FileConfig {
	d := Defaults()
	h := d.Headless
	s := d.ScreenshotOnFailure
	a := d.DisableAnimations
	return FileConfig{
		BaseURL:             "http://calc-web",
		APIURL:              "http://calc-web",
		SpecPattern:         d.SpecPattern,
		FixturesFolder:      d.FixturesFolder,
		ScreenshotsFolder:   d.ScreenshotsFolder,
		ScreenshotOnFailure: &s,
		DisableAnimations:   &a,
		Reporter:            d.Reporter,
		ReporterOptions: ReporterOptions{
			MochaFile: d.ReportFile,
		},
		DefaultCommandTimeout: int(d.CommandTimeout / time.Millisecond),
		PageLoadTimeout:       int(d.PageLoadTimeout / time.Millisecond),
		Headless:              &h,
	}
}

// WriteDefault writes the default config file to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(DefaultFileConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Describe renders the effective configuration for `config show`.
func (c *RuntimeConfig) Describe() string {
	src := c.Source
	if src == "" {
		src = "(defaults)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  Source:       %s\n", src)
	fmt.Fprintf(&b, "  Base URL:     %s\n", c.BaseURL)
	if c.APIURL != "" {
		fmt.Fprintf(&b, "  API URL:      %s\n", c.APIURL)
	}
	fmt.Fprintf(&b, "  Specs:        %s\n", c.SpecPattern)
	fmt.Fprintf(&b, "  Fixtures:     %s\n", c.FixturesFolder)
	fmt.Fprintf(&b, "  Screenshots:  %s (on failure=%v)\n", c.ScreenshotsFolder, c.ScreenshotOnFailure)
	fmt.Fprintf(&b, "  Reporter:     %s -> %s (console=%v)\n", c.Reporter, c.ReportFile, c.ReportToConsole)
	fmt.Fprintf(&b, "  Timeouts:     command=%v pageLoad=%v\n", c.CommandTimeout, c.PageLoadTimeout)
	fmt.Fprintf(&b, "  Headless:     %v (animations disabled=%v)\n", c.Headless, c.DisableAnimations)
	if c.ChromeBinary != "" {
		fmt.Fprintf(&b, "  Chrome:       %s\n", c.ChromeBinary)
	}
	if c.CdpURL != "" {
		fmt.Fprintf(&b, "  CDP URL:      %s\n", c.CdpURL)
	}
	return b.String()
}
