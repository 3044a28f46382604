package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
)

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// ProbeDevTools checks that a remote DevTools endpoint accepts websocket
// connections. An http(s) URL is resolved through /json/version first.
// It returns the websocket URL that answered.
func ProbeDevTools(ctx context.Context, endpoint string) (string, error) {
	wsURL := endpoint
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		resolved, err := resolveDebuggerURL(ctx, endpoint)
		if err != nil {
			return "", err
		}
		wsURL = resolved
	}
	if !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://") {
		return "", fmt.Errorf("unsupported devtools url %q", endpoint)
	}

	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return "", fmt.Errorf("dial devtools %s: %w", wsURL, err)
	}
	_ = ws.WriteFrame(conn, ws.MaskFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))))
	_ = conn.Close()
	return wsURL, nil
}

func resolveDebuggerURL(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(endpoint, "/")+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("devtools version: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("devtools version: status %d", resp.StatusCode)
	}
	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("devtools version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("devtools version: no webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}
