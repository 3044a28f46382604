//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/report"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/scenario"
)

func TestBundledSuitePasses(t *testing.T) {
	srv, backendHits := calcServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.SpecPattern = filepath.Join(findRepoRoot(), "scenarios", "calc.yaml")
	r := newRunner(t, cfg)

	suites, err := scenario.LoadAll(cfg.SpecPattern, r.Fixtures)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	run, err := r.Run(context.Background(), suites)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range run.Suites[0].Cases {
		if c.Status != report.StatusPass {
			t.Errorf("%s: %s %+v", c.Name, c.Status, c.Failure)
		}
	}
	if tot := run.Totals(); tot.Tests != 18 {
		t.Errorf("tests = %d, want 18", tot.Tests)
	}
	if n := backendHits.Load(); n != 0 {
		t.Errorf("stubbed subtraction reached the backend %d times", n)
	}

	shot := filepath.Join(cfg.ScreenshotsFolder, "calc.yaml", "Calc -- can click add.png")
	data, err := os.ReadFile(shot)
	if err != nil {
		t.Fatalf("screenshot: %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("screenshot is not a PNG")
	}

	if err := report.WriteJUnitFile(cfg.ReportFile, run); err != nil {
		t.Fatal(err)
	}
}

func TestAssertionFailureReportsActual(t *testing.T) {
	srv, _ := calcServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.CommandTimeout = 500 * time.Millisecond
	r := newRunner(t, cfg)

	suite, err := scenario.Parse([]byte(`
name: Calc
scenarios:
  - name: wrong sum
    steps:
      - action: type
        selector: "#in-op1"
        text: "2"
      - action: type
        selector: "#in-op2"
        text: "3"
      - action: click
        selector: "#button-add"
      - action: assertText
        selector: "#result-area"
        expect: "Result: 6"
  - name: still runs
    steps:
      - action: assertTitle
        expect: Calculator
`))
	if err != nil {
		t.Fatal(err)
	}
	suite.File = "inline.yaml"

	run, err := r.Run(context.Background(), []*scenario.Suite{suite})
	if err != nil {
		t.Fatal(err)
	}
	cases := run.Suites[0].Cases
	f := cases[0].Failure
	if f == nil || f.Type != report.FailureAssertion || f.Actual != "Result: 5" {
		t.Fatalf("failure = %+v", f)
	}
	if !strings.HasSuffix(cases[0].Screenshots[len(cases[0].Screenshots)-1], "(failed).png") {
		t.Errorf("screenshots = %v", cases[0].Screenshots)
	}
	if cases[1].Status != report.StatusPass {
		t.Errorf("second scenario = %s", cases[1].Status)
	}
}

func TestUnstubbedRequestReachesBackend(t *testing.T) {
	srv, backendHits := calcServer(t)
	cfg := testConfig(t, srv.URL)
	r := newRunner(t, cfg)

	suite, err := scenario.Parse([]byte(`
name: Calc
scenarios:
  - name: other route stubbed
    steps:
      - action: stub
        url: calc/substract/1/1
        fixture: result8.txt
        alias: other
      - action: type
        selector: "#in-op1"
        text: "4"
      - action: type
        selector: "#in-op2"
        text: "-4"
      - action: click
        selector: "#button-substract"
      - action: assertContains
        selector: "#result-area"
        expect: Error
`))
	if err != nil {
		t.Fatal(err)
	}
	suite.File = "inline.yaml"

	run, err := r.Run(context.Background(), []*scenario.Suite{suite})
	if err != nil {
		t.Fatal(err)
	}
	if c := run.Suites[0].Cases[0]; c.Status != report.StatusPass {
		t.Fatalf("%s %+v", c.Status, c.Failure)
	}
	if backendHits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", backendHits.Load())
	}
}

func TestVisitCommitsNewDocument(t *testing.T) {
	srv, _ := calcServer(t)
	cfg := testConfig(t, srv.URL)
	b := startBrowser(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := b.NewPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Close() }()

	for i := 0; i < 3; i++ {
		if err := p.Navigate(ctx, srv.URL); err != nil {
			t.Fatalf("Navigate: %v", err)
		}
		title, err := p.Title(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if title != "Calculator" {
			t.Fatalf("title right after navigate = %q, want the new document's", title)
		}
		if err := p.Navigate(ctx, "about:blank"); err != nil {
			t.Fatalf("Navigate blank: %v", err)
		}
	}
}
