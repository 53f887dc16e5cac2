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

// Package autoproxy decides, once per object, whether an object built by a
// container is replaced by a proxy, and builds that proxy.
//
// A container calls the Creator hooks at fixed points of an object's life:
//
//   - BeforeInstantiation, before the object is built. A TargetSourceCreator
//     may supply a custom target source, and the proxy built around it
//     replaces normal construction.
//   - EarlyReference, when another object under construction needs this one
//     before it is complete (circular references).
//   - AfterInitialization, once the object is complete.
//
// Package autoproxy 在容器构建对象的生命周期中决定是否以及如何为对象创建代理。
package autoproxy

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rulego/aop/advisor"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/aspect"
	builtin "github.com/rulego/aop/builtin/aspect"
	"github.com/rulego/aop/engine"
	"github.com/rulego/aop/pointcut"
	"golang.org/x/sync/singleflight"
)

// OriginalSuffix marks identifiers of raw instances, which are never proxied.
const OriginalSuffix = ".ORIGINAL"

var (
	adviceType         = reflect.TypeOf((*types.Advice)(nil)).Elem()
	pointcutType       = reflect.TypeOf((*types.Pointcut)(nil)).Elem()
	infrastructureType = reflect.TypeOf((*types.AopInfrastructure)(nil)).Elem()
	targetSourceType   = reflect.TypeOf((*types.TargetSource)(nil)).Elem()
)

// RawProvider is implemented by resolvers that can also resolve objects
// without running the creator hooks. Target source creators use the raw form.
type RawProvider interface {
	Raw() types.ObjectResolver
}

// Option configures a Creator.
type Option func(*Creator) error

// WithResolver sets the resolver of common interceptors and target objects.
func WithResolver(resolver types.ObjectResolver) Option {
	return func(c *Creator) error {
		c.resolver = resolver
		return nil
	}
}

// WithAdvisors adds a fixed list of candidate advisors.
func WithAdvisors(advisors ...types.Advisor) Option {
	return func(c *Creator) error {
		c.sources = append(c.sources, StaticAdvisors(advisors))
		return nil
	}
}

// WithAdvisorSource adds a source of candidate advisors.
func WithAdvisorSource(source AdvisorSource) Option {
	return func(c *Creator) error {
		c.sources = append(c.sources, source)
		return nil
	}
}

// WithAspects adds the advisors reflected from aspect instance factories.
func WithAspects(factories ...aspect.InstanceFactory) Option {
	return func(c *Creator) error {
		c.sources = append(c.sources, NewAspectAdvisors(nil, factories...))
		return nil
	}
}

// WithTargetSourceCreators adds creators consulted before objects are built.
func WithTargetSourceCreators(creators ...TargetSourceCreator) Option {
	return func(c *Creator) error {
		c.tsCreators = append(c.tsCreators, creators...)
		return nil
	}
}

// WithInterceptorNames sets the names of the interceptors applied to every proxy.
func WithInterceptorNames(names ...string) Option {
	return func(c *Creator) error {
		c.interceptorNames = names
		return nil
	}
}

// WithApplyCommonInterceptorsFirst places common interceptors before (default)
// or after the object specific advisors.
func WithApplyCommonInterceptorsFirst(first bool) Option {
	return func(c *Creator) error {
		c.applyCommonFirst = first
		return nil
	}
}

// WithExclusions adds glob patterns of identifiers never proxied.
func WithExclusions(patterns ...string) Option {
	return func(c *Creator) error {
		globs, err := compileGlobs(patterns)
		c.exclusions = append(c.exclusions, globs...)
		return err
	}
}

// WithIncludes restricts proxying to identifiers matching one of the glob patterns.
func WithIncludes(patterns ...string) Option {
	return func(c *Creator) error {
		globs, err := compileGlobs(patterns)
		c.includes = append(c.includes, globs...)
		return err
	}
}

// WithPool sets the pool proxies are registered in, engine.DefaultPool by default.
func WithPool(pool *engine.Pool) Option {
	return func(c *Creator) error {
		c.pool = pool
		return nil
	}
}

// WithEngineOptions sets the configuration options of created proxies.
func WithEngineOptions(opts ...types.Option) Option {
	return func(c *Creator) error {
		c.engineOpts = append(c.engineOpts, opts...)
		return nil
	}
}

// WithSettings applies file settings once all other options are set.
func WithSettings(settings Settings) Option {
	return func(c *Creator) error {
		c.settings = &settings
		return nil
	}
}

// Creator replaces objects by proxies when candidate advisors apply to them.
// Decisions are memoized per identifier, "no" included, until ClearCaches.
// Proxy creation happens at most once per identifier and raw object, even
// under concurrent first use.
// Creator 自动代理创建器
type Creator struct {
	engineOpts       []types.Option
	logger           types.Logger
	resolver         types.ObjectResolver
	sources          []AdvisorSource
	tsCreators       []TargetSourceCreator
	interceptorNames []string
	applyCommonFirst bool
	exclusions       []glob.Glob
	includes         []glob.Glob
	settings         *Settings
	pool             *engine.Pool
	state            *DecisionState
	group            singleflight.Group
}

// NewCreator creates a creator.
func NewCreator(opts ...Option) (*Creator, error) {
	c := &Creator{
		applyCommonFirst: true,
		pool:             engine.DefaultPool,
		state:            NewDecisionState(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.settings != nil {
		if err := c.applySettings(*c.settings); err != nil {
			return nil, err
		}
	}
	config, err := types.NewConfig().Apply(c.engineOpts...)
	if err != nil {
		return nil, err
	}
	c.logger = types.NewLogger(config.Logger)
	if len(c.interceptorNames) > 0 && c.resolver == nil {
		return nil, types.ConfigurationErrorf("common interceptors %v require an object resolver", c.interceptorNames)
	}
	return c, nil
}

func (c *Creator) applySettings(s Settings) error {
	c.interceptorNames = append(c.interceptorNames, s.InterceptorNames...)
	c.applyCommonFirst = s.ApplyCommonInterceptorsFirst
	if err := WithExclusions(s.Exclusions...)(c); err != nil {
		return err
	}
	if err := WithIncludes(s.Includes...)(c); err != nil {
		return err
	}
	c.engineOpts = append(c.engineOpts, s.EngineOptions()...)
	if c.resolver == nil {
		if s.DiscoverAdvisors && (s.Prototype != nil || s.Pooling != nil) {
			return types.ConfigurationErrorf("target source settings require an object resolver")
		}
		return nil
	}
	if s.DiscoverAdvisors {
		c.sources = append(c.sources,
			&ResolverAdvisors{Resolver: c.resolver, Prefix: s.AdvisorPrefix},
			&ResolverAspects{Resolver: c.resolver, Reflector: aspect.NewReflector(c.engineOpts...)})
	}
	raw := c.rawResolver()
	if s.Prototype != nil {
		tc, err := NewPrototypeTargetSourceCreator(raw, s.Prototype.Pattern)
		if err != nil {
			return err
		}
		c.tsCreators = append(c.tsCreators, tc)
	}
	if s.Pooling != nil {
		config, err := types.NewConfig().Apply(c.engineOpts...)
		if err != nil {
			return err
		}
		tc, err := NewPoolingTargetSourceCreator(raw, s.Pooling.Pattern, s.Pooling.PoolingConfig(), config.Logger)
		if err != nil {
			return err
		}
		c.tsCreators = append(c.tsCreators, tc)
	}
	return nil
}

func (c *Creator) rawResolver() types.ObjectResolver {
	if p, ok := c.resolver.(RawProvider); ok {
		return p.Raw()
	}
	return c.resolver
}

// State returns the decision state.
func (c *Creator) State() *DecisionState {
	return c.state
}

// Pool returns the pool created proxies are registered in.
func (c *Creator) Pool() *engine.Pool {
	return c.pool
}

// BeforeInstantiation is called before the object id of class is built. A
// non-nil result is a proxy around a custom target source, used instead of
// building the object.
func (c *Creator) BeforeInstantiation(class reflect.Type, id string) (any, error) {
	if id != "" && c.state.IsExcluded(id) {
		return nil, nil
	}
	if c.isInfrastructure(class) || c.shouldSkip(id) {
		c.recordDecision(id, false)
		return nil, nil
	}
	for _, tc := range c.tsCreators {
		ts, err := tc.TargetSource(class, id)
		if err != nil {
			return nil, err
		}
		if ts == nil {
			continue
		}
		advisors, err := c.eligibleAdvisors(class)
		if err != nil {
			return nil, err
		}
		p, _, err := c.CreateProxy(class, id, advisorsAsAny(advisors), ts)
		if err != nil {
			return nil, err
		}
		c.state.MarkTargetSourced(id)
		c.recordDecision(id, true)
		return p, nil
	}
	return nil, nil
}

// EarlyReference returns the reference handed to objects needing obj before
// it is complete. It is the final proxy when obj is proxied.
func (c *Creator) EarlyReference(obj any, id string) (any, error) {
	c.state.MarkEarlyExposed(id, obj)
	return c.wrapIfNecessary(obj, id)
}

// AfterInitialization is called once obj is complete and returns the proxy
// replacing it, or obj. If an early reference was already handed out for obj,
// obj is returned unchanged and the container keeps the early reference.
func (c *Creator) AfterInitialization(obj any, id string) (any, error) {
	if obj == nil {
		return nil, nil
	}
	if early, ok := c.state.TakeEarlyExposed(id); ok && sameInstance(early, obj) {
		return obj, nil
	}
	return c.wrapIfNecessary(obj, id)
}

// PredictProxyType returns the type of the proxy created for id, if any.
func (c *Creator) PredictProxyType(class reflect.Type, id string) (engine.ProxyType, bool) {
	if pt, ok := c.state.ProxyType(id); ok {
		return pt, true
	}
	return engine.ProxyType{}, false
}

// ClearCaches forgets every memoized decision.
func (c *Creator) ClearCaches() {
	c.state.Clear()
}

func (c *Creator) wrapIfNecessary(obj any, id string) (any, error) {
	if id != "" && (c.state.IsTargetSourced(id) || c.state.IsExcluded(id)) {
		return obj, nil
	}
	class := reflect.TypeOf(obj)
	if c.isInfrastructure(class) || c.shouldSkip(id) {
		c.recordDecision(id, false)
		return obj, nil
	}
	if id == "" {
		p, err := c.wrap(obj, id, class)
		if err != nil || p == nil {
			return obj, err
		}
		return p, nil
	}
	if p, ok := c.state.Proxy(id, obj); ok {
		return p, nil
	}
	v, err, _ := c.group.Do(flightKey(id, obj), func() (any, error) {
		if p, ok := c.state.Proxy(id, obj); ok {
			return flight{raw: obj, proxy: p}, nil
		}
		p, err := c.wrap(obj, id, class)
		return flight{raw: obj, proxy: p}, err
	})
	if err != nil {
		return nil, err
	}
	f := v.(flight)
	if !sameInstance(f.raw, obj) {
		// equal non-pointer raws share a key but not an instance
		p, err := c.wrap(obj, id, class)
		if err != nil || p == nil {
			return obj, err
		}
		return p, nil
	}
	if f.proxy != nil {
		return f.proxy, nil
	}
	return obj, nil
}

// flight is the result of one proxy creation shared by concurrent callers.
type flight struct {
	raw   any
	proxy *engine.Proxy
}

// flightKey identifies the creation of a proxy for the raw object obj of id.
func flightKey(id string, obj any) string {
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%x", id, v.Pointer())
	}
	return fmt.Sprintf("%s@%T", id, obj)
}

// wrap returns nil when no advisor applies to class.
func (c *Creator) wrap(obj any, id string, class reflect.Type) (*engine.Proxy, error) {
	advisors, err := c.eligibleAdvisors(class)
	if err != nil {
		return nil, err
	}
	if len(advisors) == 0 {
		c.recordDecision(id, false)
		return nil, nil
	}
	p, _, err := c.CreateProxy(class, id, advisorsAsAny(advisors), engine.NewSingletonTargetSource(obj))
	if err != nil {
		return nil, err
	}
	c.recordDecision(id, true)
	if id != "" {
		c.state.RecordProxy(id, obj, p)
	}
	return p, nil
}

// CreateProxy builds the proxy of object id around ts. specific holds the
// object's own advisors or advice, merged with the common interceptors.
func (c *Creator) CreateProxy(class reflect.Type, id string, specific []any, ts types.TargetSource) (*engine.Proxy, engine.ProxyType, error) {
	if ts == nil {
		return nil, engine.ProxyType{}, types.ConfigurationErrorf("no target source for %q", id)
	}
	factory, err := engine.NewProxyFactory(c.engineOpts...)
	if err != nil {
		return nil, engine.ProxyType{}, err
	}
	// the configured freeze applies once the advisors are in place
	frozen := factory.IsFrozen()
	factory.SetFrozen(false)
	factory.SetTargetSource(ts)
	if class == nil {
		class = ts.TargetClass()
	}
	if !factory.IsProxyTargetClass() {
		if ifaces := engine.DetectInterfaces(class); len(ifaces) > 0 {
			if err := factory.SetInterfaces(ifaces...); err != nil {
				return nil, engine.ProxyType{}, err
			}
		}
	}
	advisors, err := c.buildAdvisors(factory.AdapterRegistry(), specific)
	if err != nil {
		return nil, engine.ProxyType{}, err
	}
	if err := factory.AddAdvisors(advisors...); err != nil {
		return nil, engine.ProxyType{}, err
	}
	factory.SetPreFiltered(true)
	factory.SetFrozen(frozen)
	p, err := factory.Proxy()
	if err != nil {
		return nil, engine.ProxyType{}, err
	}
	proxyType := p.ProxyType()
	if id != "" {
		c.state.RecordProxyType(id, proxyType)
		c.pool.Put(id, p)
	}
	c.logger.Printf("created %s proxy for %q with %d advisors", proxyType, id, len(advisors))
	return p, proxyType, nil
}

func (c *Creator) buildAdvisors(registry types.AdapterRegistry, specific []any) ([]types.Advisor, error) {
	var common []types.Advisor
	for _, name := range c.interceptorNames {
		obj, err := c.resolver.GetObject(name)
		if err != nil {
			return nil, err
		}
		a, err := registry.Wrap(obj)
		if err != nil {
			return nil, err
		}
		common = append(common, a)
	}
	all := make([]types.Advisor, 0, len(common)+len(specific))
	if c.applyCommonFirst {
		all = append(all, common...)
	}
	for _, v := range specific {
		a, err := registry.Wrap(v)
		if err != nil {
			return nil, err
		}
		all = append(all, a)
	}
	if !c.applyCommonFirst {
		all = append(all, common...)
	}
	return all, nil
}

// eligibleAdvisors returns the candidates applying to class, extended and sorted.
func (c *Creator) eligibleAdvisors(class reflect.Type) ([]types.Advisor, error) {
	var candidates []types.Advisor
	for _, source := range c.sources {
		advisors, err := source.Advisors()
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, advisors...)
	}
	eligible := extendAdvisors(pointcut.EligibleAdvisors(candidates, class))
	advisor.Sort(eligible)
	return eligible, nil
}

// extendAdvisors adds the ExposeInvocation advisor when aspect advice is present.
func extendAdvisors(advisors []types.Advisor) []types.Advisor {
	hasAspectAdvice := false
	for _, a := range advisors {
		if builtin.IsExposeInvocationAdvisor(a) {
			return advisors
		}
		if _, ok := a.Advice().(*aspect.Advice); ok {
			hasAspectAdvice = true
		}
	}
	if !hasAspectAdvice {
		return advisors
	}
	return append([]types.Advisor{builtin.ExposeInvocationAdvisor}, advisors...)
}

func (c *Creator) isInfrastructure(class reflect.Type) bool {
	if class == nil {
		return false
	}
	for _, t := range []reflect.Type{adviceType, advisorType, pointcutType, infrastructureType, targetSourceType} {
		if class.Implements(t) {
			return true
		}
	}
	return aspect.IsAspect(class)
}

func (c *Creator) shouldSkip(id string) bool {
	if strings.HasSuffix(id, OriginalSuffix) {
		return true
	}
	for _, g := range c.exclusions {
		if g.Match(id) {
			return true
		}
	}
	if len(c.includes) == 0 {
		return false
	}
	for _, g := range c.includes {
		if g.Match(id) {
			return false
		}
	}
	return true
}

func (c *Creator) recordDecision(id string, proxy bool) {
	if id != "" {
		c.state.RecordDecision(id, proxy)
	}
}

func advisorsAsAny(advisors []types.Advisor) []any {
	out := make([]any, len(advisors))
	for i, a := range advisors {
		out[i] = a
	}
	return out
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, types.ConfigurationErrorf("invalid pattern %q: %v", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
