package devserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/parts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProxyWithoutBrowserSync(t *testing.T) {
	p, err := NewProxy(fragment.Fragment{}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNewProxyRejectsBadTargets(t *testing.T) {
	for _, target := range []string{"localhost:3100", "ftp://localhost:3100/", "http://"} {
		t.Run(target, func(t *testing.T) {
			_, err := NewProxy(parts.BrowserSync(fragment.BrowserSyncOptions{Port: 3000, Proxy: target}), nil)
			assert.Error(t, err)
		})
	}
}

func TestProxyForwards(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "upstream %s", r.URL.Path)
	}))
	defer upstream.Close()

	p, err := NewProxy(parts.BrowserSync(fragment.BrowserSyncOptions{
		Host:  "localhost",
		Port:  3000,
		Proxy: upstream.URL + "/",
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", p.Addr())

	front := httptest.NewServer(p.Handler())
	defer front.Close()

	status, body := get(t, front.URL+"/blog/post.html")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "upstream /blog/post.html", body)
}

func TestProxyReportsUnavailableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	p, err := NewProxy(parts.BrowserSync(fragment.BrowserSyncOptions{Port: 3000, Proxy: target}), nil)
	require.NoError(t, err)

	front := httptest.NewServer(p.Handler())
	defer front.Close()

	status, _ := get(t, front.URL+"/")
	assert.Equal(t, http.StatusBadGateway, status)
}
