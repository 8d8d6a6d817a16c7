package app

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/hello-server/internal/http/hello"
)

func TestGetRootReturnsGreeting(t *testing.T) {
	a := New("test")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "Hello, World!" {
		t.Fatalf("expected 'Hello, World!', got %q", body)
	}
	if ct := resp.Header().Get("Content-Type"); ct != hello.ContentType {
		t.Fatalf("expected %s, got %q", hello.ContentType, ct)
	}
}

func TestGetRootSetsPlatformHeaders(t *testing.T) {
	a := New("test")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "app-root-req")
	req.Header.Set("Origin", "http://example.com")
	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, req)

	if got := resp.Header().Get(chimiddleware.RequestIDHeader); got != "app-root-req" {
		t.Fatalf("expected request ID echoed, got %q", got)
	}
	if got := resp.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected security headers, got X-Content-Type-Options=%q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}

func TestMissingRouteReturnsNotFound(t *testing.T) {
	a := New("test")

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected application/problem+json, got %q", ct)
	}

	var problem huma.ErrorModel
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to unmarshal 404 response: %v", err)
	}
	if problem.Status != http.StatusNotFound || problem.Detail != "resource not found" {
		t.Fatalf("unexpected problem: %+v", problem)
	}
}

func TestMissingRouteNegotiatesCBOR(t *testing.T) {
	a := New("test")

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, req)

	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+cbor" {
		t.Fatalf("expected application/problem+cbor, got %q", ct)
	}
	var problem huma.ErrorModel
	if err := cbor.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to unmarshal CBOR problem: %v", err)
	}
	if problem.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", problem.Status)
	}
}

func TestPostRootReturnsMethodNotAllowed(t *testing.T) {
	a := New("test")

	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Fatalf("expected Allow 'GET, HEAD', got %q", allow)
	}
}

func TestHeadRootReturnsOK(t *testing.T) {
	a := New("test")

	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, httptest.NewRequest(http.MethodHead, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestOpenAPIInfo(t *testing.T) {
	a := New("1.2.3")

	info := a.API().OpenAPI().Info
	if info.Title != Title || info.Version != "1.2.3" {
		t.Fatalf("unexpected OpenAPI info: %+v", info)
	}
	if a.API().OpenAPI().Paths["/"] == nil {
		t.Fatal("expected root path in OpenAPI document")
	}
}

func TestDocsSkipSecurityHeaders(t *testing.T) {
	a := New("test")

	resp := httptest.NewRecorder()
	a.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, DocsPath, nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected docs page, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Security-Policy"); got != "" {
		t.Fatalf("expected no CSP on docs, got %q", got)
	}
}

func TestNewDoesNotOpenSocket(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("socket inspection relies on /proc")
	}

	before := ownListeningSockets(t)
	a := New("test")
	_ = a.API()
	after := ownListeningSockets(t)

	for inode := range after {
		if _, ok := before[inode]; !ok {
			t.Fatalf("New opened a listening socket (inode %s)", inode)
		}
	}

	// Control: a real listener is detected by the same probe.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	if len(ownListeningSockets(t)) <= len(after) {
		t.Fatal("expected probe to detect an explicit listener")
	}
}

// ownListeningSockets returns the inodes of TCP sockets in LISTEN state held by this process.
func ownListeningSockets(t *testing.T) map[string]struct{} {
	t.Helper()

	owned := make(map[string]struct{})
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot read /proc/self/fd: %v", err)
	}
	for _, e := range entries {
		link, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err != nil || !strings.HasPrefix(link, "socket:[") {
			continue
		}
		owned[strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")] = struct{}{}
	}

	listening := make(map[string]struct{})
	for _, table := range []string{"/proc/self/net/tcp", "/proc/self/net/tcp6"} {
		data, err := os.ReadFile(table)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n")[1:] {
			fields := strings.Fields(line)
			// st == 0A is TCP_LISTEN; field 9 is the socket inode.
			if len(fields) < 10 || fields[3] != "0A" {
				continue
			}
			if _, ok := owned[fields[9]]; ok {
				listening[fields[9]] = struct{}{}
			}
		}
	}
	return listening
}
