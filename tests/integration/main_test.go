//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcribas95/actividad3-jenkinsfile/internal/bridge"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/config"
	"github.com/marcribas95/actividad3-jenkinsfile/internal/scenario"
)

func findRepoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// calcServer serves the test calculator page. Subtraction goes over the
// network and always fails here, so only a stub can make it pass.
func calcServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var backendHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/calc/", func(w http.ResponseWriter, r *http.Request) {
		backendHits.Add(1)
		http.Error(w, "backend down", http.StatusBadGateway)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join("testdata", "calc.html"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &backendHits
}

func testConfig(t *testing.T, baseURL string) *config.RuntimeConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.BaseURL = baseURL
	cfg.ScreenshotsFolder = filepath.Join(t.TempDir(), "screenshots")
	cfg.ReportFile = filepath.Join(t.TempDir(), "result.xml")
	cfg.CommandTimeout = 3 * time.Second
	cfg.ChromeBinary = os.Getenv("CHROME_BINARY")
	cfg.CdpURL = os.Getenv("CDP_URL")
	return cfg
}

func startBrowser(t *testing.T, cfg *config.RuntimeConfig) *bridge.Bridge {
	t.Helper()
	b, err := bridge.InitChrome(context.Background(), cfg)
	if err != nil {
		t.Skipf("chrome unavailable: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func newRunner(t *testing.T, cfg *config.RuntimeConfig) *scenario.Runner {
	t.Helper()
	return scenario.NewRunner(startBrowser(t, cfg), cfg, scenario.NewFixtureStore(filepath.Join(findRepoRoot(), "fixtures")))
}
