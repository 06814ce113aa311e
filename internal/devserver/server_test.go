package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/assetpack/internal/bundle"
	"github.com/conneroisu/assetpack/internal/errors"
	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/parts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devFragment(t *testing.T) fragment.Fragment {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"),
		[]byte("<html><head></head><body><p>home</p></body></html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog", "post.html"),
		[]byte("<p>post</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	return fragment.Merge(
		fragment.Fragment{Output: fragment.Output{Path: dir}},
		parts.DevServer(parts.DevServerOptions{Port: 0}),
	)
}

func startServer(t *testing.T, f fragment.Fragment) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(f, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func dial(t *testing.T, s *Server, ts *httptest.Server, want int) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	require.Eventually(t, func() bool { return s.hub.count() == want },
		2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) UpdateMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestNewRequiresDevServer(t *testing.T) {
	_, err := New(fragment.Fragment{Output: fragment.Output{Path: "/tmp"}}, nil)
	assert.Error(t, err)

	_, err = New(parts.DevServer(parts.DevServerOptions{}), nil)
	assert.Error(t, err)
}

func TestAddr(t *testing.T) {
	f := fragment.Merge(
		fragment.Fragment{Output: fragment.Output{Path: "/tmp"}},
		parts.DevServer(parts.DevServerOptions{Port: 3100}),
	)
	s, err := New(f, nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3100", s.Addr())
}

func TestStaticInjectsClient(t *testing.T) {
	_, ts := startServer(t, devFragment(t))

	status, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `<script src="`+ClientPath+`"></script></body>`)

	status, body = get(t, ts.URL+"/blog/post.html")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `<p>post</p><script src="`+ClientPath+`"></script>`, body)

	status, body = get(t, ts.URL+"/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log(1)", body)

	status, _ = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = get(t, ts.URL+ClientPath)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "full_reload")
	assert.Contains(t, body, errors.OverlayID)
}

func TestStaticWithoutHotReload(t *testing.T) {
	f := devFragment(t)
	f.Plugins = nil
	_, ts := startServer(t, f)

	_, body := get(t, ts.URL+"/blog/post.html")
	assert.Equal(t, "<p>post</p>", body)
}

func TestLiveReloadNeedsHotAndPlugin(t *testing.T) {
	tests := []struct {
		name   string
		hot    bool
		plugin bool
	}{
		{name: "hot without plugin", hot: true},
		{name: "plugin without hot", plugin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := devFragment(t)
			f.DevServer.Hot = tt.hot
			if !tt.plugin {
				f.Plugins = nil
			}
			_, ts := startServer(t, f)

			_, body := get(t, ts.URL+"/blog/post.html")
			assert.Equal(t, "<p>post</p>", body)

			status, _ := get(t, ts.URL+"/ws")
			assert.Equal(t, http.StatusNotFound, status)
		})
	}
}

func TestStaticStaysInsideDir(t *testing.T) {
	_, ts := startServer(t, devFragment(t))

	status, _ := get(t, ts.URL+"/../../etc/passwd")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealth(t *testing.T) {
	_, ts := startServer(t, devFragment(t))

	status, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 0, health["clients"])
}

func TestNotifyReload(t *testing.T) {
	s, ts := startServer(t, devFragment(t))
	conn := dial(t, s, ts, 1)

	s.Notify(&bundle.Result{}, nil)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageReload, msg.Type)
	assert.Empty(t, msg.Content)
}

func TestNotifyBuildErrors(t *testing.T) {
	s, ts := startServer(t, devFragment(t))
	conn := dial(t, s, ts, 1)

	s.Notify(&bundle.Result{Errors: []errors.BuildError{{
		File:     "js/main.js",
		Line:     2,
		Message:  "Unexpected end of file",
		Severity: errors.ErrorSeverityError,
	}}}, nil)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageBuildError, msg.Type)
	assert.Contains(t, msg.Content, "Unexpected end of file")

	// A late browser gets the overlay on connect.
	late := dial(t, s, ts, 2)
	msg = readMessage(t, late)
	assert.Equal(t, MessageBuildError, msg.Type)

	// A clean build clears the overlay.
	s.Notify(&bundle.Result{}, nil)
	assert.Equal(t, MessageReload, readMessage(t, conn).Type)
	assert.False(t, s.errors.HasErrors())
}

func TestNotifyBuildFailure(t *testing.T) {
	s, ts := startServer(t, devFragment(t))
	conn := dial(t, s, ts, 1)

	s.Notify(nil, &errors.BuildFailure{Errors: []errors.BuildError{{Message: "boom"}}})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageBuildError, msg.Type)
	assert.Contains(t, msg.Content, "boom")
}

func TestNotifyHonoursOverlayFlags(t *testing.T) {
	f := devFragment(t)
	f.DevServer.Overlay = fragment.Overlay{Errors: false, Warnings: true}
	s, ts := startServer(t, f)
	conn := dial(t, s, ts, 1)

	s.Notify(&bundle.Result{Errors: []errors.BuildError{{Message: "hidden"}}}, nil)
	assert.Equal(t, MessageReload, readMessage(t, conn).Type)

	s.Notify(&bundle.Result{Warnings: []errors.BuildError{{
		Message:  "shown",
		Severity: errors.ErrorSeverityWarning,
	}}}, nil)
	msg := readMessage(t, conn)
	assert.Equal(t, MessageBuildError, msg.Type)
	assert.Contains(t, msg.Content, "shown")
	assert.NotContains(t, msg.Content, "hidden")
}

func TestInjectClient(t *testing.T) {
	tag := `<script src="` + ClientPath + `"></script>`
	assert.Equal(t, "<BODY>x"+tag+"</BODY>", injectClient("<BODY>x</BODY>"))
	assert.Equal(t, "x"+tag, injectClient("x"))
}

func TestStartAndShutdown(t *testing.T) {
	f := devFragment(t)
	f.DevServer.Host = "127.0.0.1"
	s, err := New(f, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestCrossOriginPreflight(t *testing.T) {
	_, ts := startServer(t, devFragment(t))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/app.js", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
