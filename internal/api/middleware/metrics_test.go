package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// hijackableRecorder mimics the http.Hijacker surface a real HTTP/1
// connection's response writer carries.
type hijackableRecorder struct {
	*httptest.ResponseRecorder
}

func (hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, nil
}

func TestMetricsPreservesHijacker(t *testing.T) {
	var sawHijacker bool
	h := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHijacker = w.(http.Hijacker)
	}))

	h.ServeHTTP(hijackableRecorder{httptest.NewRecorder()},
		httptest.NewRequest(http.MethodGet, "/ws", nil))

	if !sawHijacker {
		t.Fatal("wrapped response writer must keep http.Hijacker for websocket upgrades")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/health":                "/health",
		"/ws":                    "/ws",
		"/chats/abc":           "/chats/:id",
		"/chats/abc/messages":  "/chats/:id/messages",
		"/presence/abc":        "/presence/:id",
		"/chats/create-or-get": "/chats/create-or-get",
		"/chats/":              "/chats/",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
