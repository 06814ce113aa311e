package devserver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/logging"
)

// Proxy listens on the BrowserSync address and forwards every request,
// websocket upgrades included, to the dev server.
type Proxy struct {
	addr   string
	target *url.URL
	logger logging.Logger

	httpServer   *http.Server
	serverMutex  sync.Mutex
	shutdownOnce sync.Once
}

// NewProxy creates a proxy for the first BrowserSync plugin of f. It returns
// nil without error when f has none.
func NewProxy(f fragment.Fragment, logger logging.Logger) (*Proxy, error) {
	syncs := fragment.PluginsOf[*fragment.BrowserSync](f)
	if len(syncs) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("proxy")

	bs := syncs[0]
	target, err := url.Parse(bs.Options.Proxy)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy target %q: %w", bs.Options.Proxy, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("proxy target %q: scheme must be http or https", bs.Options.Proxy)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("proxy target %q has no host", bs.Options.Proxy)
	}
	if bs.Reload {
		logger.Warn(context.Background(), nil, "Ignoring proxy reload, the dev server reloads browsers")
	}

	return &Proxy{
		addr:   fmt.Sprintf("%s:%d", bs.Options.Host, bs.Options.Port),
		target: target,
		logger: logger,
	}, nil
}

// Addr is the listen address.
func (p *Proxy) Addr() string {
	return p.addr
}

// Handler returns the forwarding handler.
func (p *Proxy) Handler() http.Handler {
	rp := httputil.NewSingleHostReverseProxy(p.target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Warn(r.Context(), err, "Proxy request failed", "path", r.URL.Path)
		http.Error(w, "dev server unavailable", http.StatusBadGateway)
	}
	return rp
}

// Start serves until ctx is cancelled or the listener fails.
func (p *Proxy) Start(ctx context.Context) error {
	p.serverMutex.Lock()
	p.httpServer = &http.Server{
		Addr:              p.addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := p.httpServer
	p.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(context.Background(), err, "Proxy shutdown failed")
		}
	}()

	p.logger.Info(ctx, "Proxy listening", "addr", p.addr, "target", p.target.String())
	if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("proxy error: %w", err)
	}
	return nil
}

// Shutdown stops the proxy. Calls after the first are no-ops.
func (p *Proxy) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		p.serverMutex.Lock()
		server := p.httpServer
		p.serverMutex.Unlock()
		if server != nil {
			err = server.Shutdown(ctx)
		}
	})
	return err
}
