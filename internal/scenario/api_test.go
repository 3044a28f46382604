package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/report"
)

// calcBackend answers /calc/<op>/<a>[/<b>] like the calculator API: the
// plain result on success and 400 for bad operands.
func calcBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Hello from The Calculator!\n"))
	})
	mux.HandleFunc("GET /calc/{op}/{a}/{b}", func(w http.ResponseWriter, r *http.Request) {
		a, errA := strconv.ParseFloat(r.PathValue("a"), 64)
		b, errB := strconv.ParseFloat(r.PathValue("b"), 64)
		if errA != nil || errB != nil {
			http.Error(w, "Operator cannot be converted to number", http.StatusBadRequest)
			return
		}
		switch r.PathValue("op") {
		case "add":
			fmt.Fprint(w, a+b)
		case "divide":
			if b == 0 {
				http.Error(w, "Division by zero is not possible", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, strconv.FormatFloat(a/b, 'f', 1, 64))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /calc/sqrt/{a}", func(w http.ResponseWriter, r *http.Request) {
		a, err := strconv.ParseFloat(r.PathValue("a"), 64)
		if err != nil || a < 0 {
			http.Error(w, "Invalid operand", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, strconv.FormatFloat(math.Sqrt(a), 'f', 1, 64))
	})
	mux.HandleFunc("GET /slow", func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func apiSuite(scenarios ...Scenario) *Suite {
	return &Suite{Name: "Calc API", Type: SuiteAPI, File: "scenarios/api.yaml", Scenarios: scenarios}
}

func call(url string, status int, body ...string) []Step {
	steps := []Step{
		{Action: ActionRequest, URL: url},
		{Action: ActionAssertStatus, Status: status},
	}
	for _, b := range body {
		steps = append(steps, Step{Action: ActionAssertBody, Expect: strp(b)})
	}
	return steps
}

func TestRunAPISuite(t *testing.T) {
	b := &fakeBrowser{err: errors.New("no browser for api suites")}
	r := testRunner(t, b)
	r.Config.APIURL = calcBackend(t).URL

	suite := apiSuite(
		Scenario{Name: "hello", Steps: call("/", 200)},
		Scenario{Name: "add", Steps: call("calc/add/2/2", 200, "4")},
		Scenario{Name: "add invalid parameter", Steps: call("calc/add/abc/2", 400)},
		Scenario{Name: "divide", Steps: call("calc/divide/6/2", 200, "3.0")},
		Scenario{Name: "divide by zero", Steps: call("calc/divide/1/0", 400)},
		Scenario{Name: "sqrt negative number", Steps: call("calc/sqrt/-1", 400)},
	)
	if err := suite.Validate(nil); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	run, err := r.Run(context.Background(), []*Suite{suite})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, c := range run.Suites[0].Cases {
		if c.Status != report.StatusPass {
			t.Errorf("%s: status = %s, failure %+v", c.Name, c.Status, c.Failure)
		}
	}
	if len(b.pages) != 0 {
		t.Errorf("api suite opened %d tabs", len(b.pages))
	}
}

func TestRunAPIFailures(t *testing.T) {
	r := testRunner(t, &fakeBrowser{})
	srv := calcBackend(t)
	r.Config.APIURL = srv.URL

	run, err := r.Run(context.Background(), []*Suite{apiSuite(
		Scenario{Name: "wrong body", Steps: call("calc/add/2/2", 200, "5")},
		Scenario{Name: "wrong status", Steps: call("calc/divide/1/0", 200)},
		Scenario{Name: "slow backend", Steps: call("slow", 200)},
	)})
	if err != nil {
		t.Fatal(err)
	}
	cases := run.Suites[0].Cases

	body := cases[0]
	if body.Status != report.StatusFail || body.Failure.Type != report.FailureAssertion {
		t.Fatalf("wrong body: %+v", body)
	}
	if body.Failure.Expected != "5" || body.Failure.Actual != "4" || body.Failure.TimedOut {
		t.Errorf("wrong body failure = %+v", body.Failure)
	}
	if body.Failure.Step != "step 3" {
		t.Errorf("wrong body step = %q", body.Failure.Step)
	}

	status := cases[1]
	if status.Failure == nil || status.Failure.Expected != "200" || status.Failure.Actual != "400" {
		t.Errorf("wrong status failure = %+v", status.Failure)
	}
	if !strings.Contains(status.Failure.Message, "calc/divide/1/0") {
		t.Errorf("message = %q", status.Failure.Message)
	}

	slow := cases[2]
	if slow.Status != report.StatusFail || slow.Failure.Type != report.FailureTimeout {
		t.Errorf("slow backend: %+v", slow.Failure)
	}
	if !strings.Contains(slow.Failure.Message, "never responded") {
		t.Errorf("slow message = %q", slow.Failure.Message)
	}
}

func TestRunAPIUnreachableBackendIsError(t *testing.T) {
	r := testRunner(t, &fakeBrowser{})
	srv := httptest.NewServer(http.NotFoundHandler())
	r.Config.APIURL = srv.URL
	srv.Close()

	run, err := r.Run(context.Background(), []*Suite{apiSuite(
		Scenario{Name: "add", Steps: call("calc/add/2/2", 200, "4")},
	)})
	if err != nil {
		t.Fatal(err)
	}
	c := run.Suites[0].Cases[0]
	if c.Status != report.StatusError || c.Failure.Type != report.FailureError {
		t.Errorf("case = %+v", c.Failure)
	}
}

func TestRunRequestFromBrowserSuite(t *testing.T) {
	b := &fakeBrowser{}
	r := testRunner(t, b)
	r.Config.APIURL = calcBackend(t).URL

	run, err := r.Run(context.Background(), []*Suite{calcSuite(
		Scenario{Name: "backend adds", Steps: call("calc/add/2/2", 200, "4")},
	)})
	if err != nil {
		t.Fatal(err)
	}
	if !run.Passed() {
		t.Fatalf("failure = %+v", run.Suites[0].Cases[0].Failure)
	}
	if len(b.pages) != 1 || b.pages[0].url != "http://calc-web" {
		t.Errorf("browser suite should still visit the base URL in a tab")
	}
}
