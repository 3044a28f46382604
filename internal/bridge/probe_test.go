package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

func newDevToolsServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /json/version", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/browser/test"
		_ = json.NewEncoder(w).Encode(versionInfo{Browser: "Chrome/144", WebSocketDebuggerURL: wsURL})
	})
	mux.HandleFunc("/devtools/browser/test", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeDevToolsHTTP(t *testing.T) {
	srv := newDevToolsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL, err := ProbeDevTools(ctx, srv.URL)
	if err != nil {
		t.Fatalf("ProbeDevTools() error: %v", err)
	}
	if !strings.HasSuffix(wsURL, "/devtools/browser/test") {
		t.Errorf("unexpected ws url %q", wsURL)
	}
}

func TestProbeDevToolsWS(t *testing.T) {
	srv := newDevToolsServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	direct := "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/browser/test"
	if _, err := ProbeDevTools(ctx, direct); err != nil {
		t.Fatalf("ProbeDevTools() error: %v", err)
	}
}

func TestProbeDevToolsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := ProbeDevTools(ctx, srv.URL); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestProbeDevToolsBadScheme(t *testing.T) {
	if _, err := ProbeDevTools(context.Background(), "ftp://localhost:9222"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
