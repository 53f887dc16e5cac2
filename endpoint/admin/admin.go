/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package admin provides an HTTP endpoint to inspect and reconfigure the
// proxies kept in an engine.Pool at runtime.
// Package admin 提供查看和修改运行时代理的 HTTP 接口
//
// Routes:
//
//	GET    /api/v1/proxies
//	GET    /api/v1/proxies/:id
//	PUT    /api/v1/proxies/:id/exposeProxy
//	DELETE /api/v1/proxies/:id/advisors/:index
//	GET    /metrics
//
// :id is an object name or a configuration id.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
	"github.com/rulego/aop/utils/json"
)

const (
	ContentTypeKey  = "Content-Type"
	JsonContextType = "application/json"

	ProxiesPath     = "/api/v1/proxies"
	ProxyPath       = ProxiesPath + "/:id"
	ExposeProxyPath = ProxyPath + "/exposeProxy"
	AdvisorPath     = ProxyPath + "/advisors/:index"
	MetricsPath     = "/metrics"
)

// Config admin 服务配置
type Config struct {
	// Addr is the listen address, for example ":9090".
	Addr string
}

// Option configures an Admin.
type Option func(*Admin)

// WithPool sets the pool served by the endpoint. Defaults to engine.DefaultPool.
func WithPool(pool *engine.Pool) Option {
	return func(a *Admin) {
		a.pool = pool
	}
}

// WithGatherer sets the metrics source of /metrics. Defaults to prometheus.DefaultGatherer.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(a *Admin) {
		a.gatherer = gatherer
	}
}

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(a *Admin) {
		a.logger = logger
	}
}

// Admin 管理端点
type Admin struct {
	Config   Config
	pool     *engine.Pool
	gatherer prometheus.Gatherer
	logger   types.Logger
	router   *httprouter.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates the endpoint and registers its routes.
func New(config Config, opts ...Option) *Admin {
	a := &Admin{
		Config:   config,
		pool:     engine.DefaultPool,
		gatherer: prometheus.DefaultGatherer,
		logger:   types.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = httprouter.New()
	a.router.GET(ProxiesPath, a.listProxies)
	a.router.GET(ProxyPath, a.getProxy)
	a.router.PUT(ExposeProxyPath, a.setExposeProxy)
	a.router.DELETE(AdvisorPath, a.removeAdvisor)
	a.router.Handler(http.MethodGet, MetricsPath, promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	a.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, e interface{}) {
		a.logger.Printf("admin handler err :%v", e)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%v", e))
	}
	return a
}

// Router returns the underlying router.
func (a *Admin) Router() *httprouter.Router {
	return a.router
}

func (a *Admin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Start listens on Config.Addr and serves in the background.
func (a *Admin) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return types.ConfigurationErrorf("admin endpoint already started on %s", a.listener.Addr())
	}
	ln, err := net.Listen("tcp", a.Config.Addr)
	if err != nil {
		return err
	}
	a.listener = ln
	a.server = &http.Server{Handler: a.router}
	a.logger.Printf("starting admin server on %s", ln.Addr())
	go func(server *http.Server) {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Printf("admin server err :%v", err)
		}
	}(a.server)
	return nil
}

// Addr returns the listen address once started.
func (a *Admin) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (a *Admin) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.server, a.listener = nil, nil
	a.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// AdvisorView describes one advisor of a proxy.
type AdvisorView struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Advice string `json:"advice"`
	Order  int    `json:"order"`
}

// ProxyView describes a proxy and, unless it is opaque, its configuration.
type ProxyView struct {
	Name             string        `json:"name"`
	ID               string        `json:"id"`
	Strategy         string        `json:"strategy"`
	Class            string        `json:"class,omitempty"`
	Interfaces       []string      `json:"interfaces,omitempty"`
	Methods          []string      `json:"methods,omitempty"`
	Opaque           bool          `json:"opaque"`
	Frozen           bool          `json:"frozen"`
	ExposeProxy      bool          `json:"exposeProxy"`
	ProxyTargetClass bool          `json:"proxyTargetClass"`
	Advisors         []AdvisorView `json:"advisors,omitempty"`
}

// NewProxyView builds the view of the proxy stored under name.
func NewProxyView(name string, p *engine.Proxy) ProxyView {
	pt := p.ProxyType()
	view := ProxyView{
		Name:     name,
		ID:       p.ID(),
		Strategy: pt.Strategy.String(),
	}
	if pt.Class != nil {
		view.Class = pt.Class.String()
	}
	for _, iface := range pt.Interfaces {
		view.Interfaces = append(view.Interfaces, iface.String())
	}
	for _, m := range p.Methods() {
		view.Methods = append(view.Methods, m.Name)
	}
	advised, ok := p.Advised()
	if !ok {
		view.Opaque = true
		return view
	}
	view.Frozen = advised.IsFrozen()
	view.ExposeProxy = advised.IsExposeProxy()
	view.ProxyTargetClass = advised.IsProxyTargetClass()
	for i, adv := range advised.Advisors() {
		view.Advisors = append(view.Advisors, AdvisorView{
			Index:  i,
			Type:   fmt.Sprintf("%T", adv),
			Advice: fmt.Sprintf("%T", adv.Advice()),
			Order:  types.OrderOf(adv),
		})
	}
	return view
}

// ExposeProxyRequest is the body of PUT /api/v1/proxies/:id/exposeProxy.
type ExposeProxyRequest struct {
	ExposeProxy bool `json:"exposeProxy"`
}

func (a *Admin) listProxies(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	views := make([]ProxyView, 0, a.pool.Len())
	for _, name := range a.pool.Names() {
		if p, ok := a.pool.Get(name); ok {
			views = append(views, NewProxyView(name, p))
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *Admin) getProxy(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name, p, ok := a.find(w, params)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NewProxyView(name, p))
}

func (a *Admin) setExposeProxy(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name, p, ok := a.find(w, params)
	if !ok {
		return
	}
	advised, ok := p.Advised()
	if !ok {
		writeError(w, http.StatusForbidden, fmt.Errorf("proxy %q is opaque", name))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req ExposeProxyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	advised.SetExposeProxy(req.ExposeProxy)
	a.logger.Printf("proxy %q exposeProxy set to %t", name, req.ExposeProxy)
	writeJSON(w, http.StatusOK, NewProxyView(name, p))
}

func (a *Admin) removeAdvisor(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name, p, ok := a.find(w, params)
	if !ok {
		return
	}
	advised, ok := p.Advised()
	if !ok {
		writeError(w, http.StatusForbidden, fmt.Errorf("proxy %q is opaque", name))
		return
	}
	index, err := strconv.Atoi(params.ByName("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid advisor index %q", params.ByName("index")))
		return
	}
	if advised.IsFrozen() {
		writeError(w, http.StatusConflict, fmt.Errorf("proxy %q is frozen", name))
		return
	}
	if index < 0 || index >= advised.AdvisorCount() {
		writeError(w, http.StatusNotFound, fmt.Errorf("proxy %q has no advisor %d", name, index))
		return
	}
	if err := advised.RemoveAdvisorAt(index); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	a.logger.Printf("advisor %d removed from proxy %q", index, name)
	writeJSON(w, http.StatusOK, NewProxyView(name, p))
}

func (a *Admin) find(w http.ResponseWriter, params httprouter.Params) (string, *engine.Proxy, bool) {
	id := params.ByName("id")
	name, p, ok := a.pool.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no proxy %q", id))
	}
	return name, p, ok
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"marshal response"}`)
	}
	w.Header().Set(ContentTypeKey, JsonContextType)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}
