// Package proxy forwards browser GETs under /api/ to the analytics backend.
package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/web3-frozen/citrea-watch/internal/metrics"
)

const defaultContentType = "application/json"

// Proxy relays GET /api/<path>?<query> to <base>/api/<path>?<query>. It
// preserves the upstream status and body and answers 502 when the upstream
// cannot be reached or read.
type Proxy struct {
	base    string
	client  *http.Client
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

// New paces upstream requests to rps per second; rps <= 0 disables pacing.
func New(base string, client *http.Client, rps int, logger *zap.Logger) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps, ratelimit.WithoutSlack)
	}
	return &Proxy{
		base:    strings.TrimRight(base, "/"),
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// Mount registers the catch-all route.
func (p *Proxy) Mount(r chi.Router) {
	r.Get("/api/*", p.ServeHTTP)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, err := p.forward(w, r)
	if err != nil {
		p.logger.Warn("proxy request failed", zap.String("path", r.URL.Path), zap.Error(err))
		status = http.StatusBadGateway
		w.Header().Set("Content-Type", defaultContentType)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	}
	metrics.ProxyRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// forward writes nothing to w when it returns an error.
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request) (int, error) {
	target := p.target(r)

	p.limiter.Take()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read upstream body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
	return resp.StatusCode, nil
}

func (p *Proxy) target(r *http.Request) string {
	path := chi.URLParam(r, "*")
	if path == "" {
		path = strings.TrimPrefix(r.URL.Path, "/api/")
	}
	target := p.base + "/api/" + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}
