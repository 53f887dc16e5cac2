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

package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rulego/aop/api/types"
	reflect2 "github.com/rulego/aop/utils/reflect"
)

var (
	_ types.AopProxy        = (*Proxy)(nil)
	_ types.DecoratingProxy = (*Proxy)(nil)
	_ types.Equaler         = (*Proxy)(nil)
	_ types.Hasher          = (*Proxy)(nil)
)

const (
	// EqualMethod is the name of the equality method answered by the proxy.
	EqualMethod = "Equal"
	// HashCodeMethod is the name of the hash method answered by the proxy.
	HashCodeMethod = "HashCode"
	// IsAopProxyMethod is the identity marker method.
	IsAopProxyMethod = "IsAopProxy"
	// DecoratedClassMethod returns the decorated class.
	DecoratedClassMethod = "DecoratedClass"
)

var (
	proxyPtrType  = reflect.TypeOf((*Proxy)(nil))
	advisedType   = reflect.TypeOf((*types.Advised)(nil)).Elem()
	advisedMethod = func() map[string]bool {
		names := make(map[string]bool, advisedType.NumMethod())
		for i := 0; i < advisedType.NumMethod(); i++ {
			names[advisedType.Method(i).Name] = true
		}
		return names
	}()
)

// Strategy is the way a proxy stands in for its target.
type Strategy int

const (
	// InterfaceProxy exposes the methods of the proxied interfaces.
	InterfaceProxy Strategy = iota
	// ClassProxy exposes the method set of the concrete target class.
	ClassProxy
)

func (s Strategy) String() string {
	if s == ClassProxy {
		return "class"
	}
	return "interface"
}

// ProxyType describes the runtime type of a proxy.
type ProxyType struct {
	Strategy Strategy
	// Class is the decorated target class, may be nil for interface proxies without target.
	Class reflect.Type
	// Interfaces are the proxied interfaces.
	Interfaces []reflect.Type
}

func (t ProxyType) String() string {
	names := make([]string, len(t.Interfaces))
	for i, iface := range t.Interfaces {
		names[i] = iface.String()
	}
	return fmt.Sprintf("%s proxy of %v [%s]", t.Strategy, t.Class, strings.Join(names, ", "))
}

// Implements reports whether a proxy of this type exposes every method of iface.
func (t ProxyType) Implements(iface reflect.Type) bool {
	if iface == nil || iface.Kind() != reflect.Interface {
		return false
	}
	for _, i := range t.Interfaces {
		if i == iface || i.Implements(iface) {
			return true
		}
	}
	return t.Strategy == ClassProxy && t.Class != nil && t.Class.Implements(iface)
}

type facadeBox struct {
	v any
}

// proxyHolder is implemented by *Proxy and by every facade embedding it.
type proxyHolder interface {
	aopProxy() *Proxy
}

// Proxy dispatches method calls by name through the interceptor chain of its
// configuration. Bind turns a user stub into a typed facade over the proxy.
// Proxy 代理对象，按照方法名通过拦截器链分发调用
type Proxy struct {
	config        *AdvisedSupport
	proxyType     ProxyType
	methods       map[string]*types.Method
	equalDeclared bool
	hashDeclared  bool
	facade        atomic.Value
}

func newProxy(config *AdvisedSupport, proxyType ProxyType, methods []*types.Method) *Proxy {
	p := &Proxy{
		config:    config,
		proxyType: proxyType,
		methods:   make(map[string]*types.Method, len(methods)),
	}
	for _, m := range methods {
		if _, ok := p.methods[m.Name]; ok {
			continue
		}
		p.methods[m.Name] = m
		if proxyType.Strategy == InterfaceProxy {
			switch m.Name {
			case EqualMethod:
				p.equalDeclared = true
			case HashCodeMethod:
				p.hashDeclared = true
			}
		}
	}
	return p
}

// ProxyOf returns the proxy behind v, which may be a *Proxy or a bound facade.
func ProxyOf(v any) (*Proxy, bool) {
	h, ok := v.(proxyHolder)
	if !ok {
		return nil, false
	}
	p := h.aopProxy()
	return p, p != nil
}

func (p *Proxy) aopProxy() *Proxy {
	return p
}

// ID returns the identifier of the proxy configuration.
func (p *Proxy) ID() string {
	return p.config.ID()
}

// ProxyType returns the runtime type descriptor.
func (p *Proxy) ProxyType() ProxyType {
	return p.proxyType
}

// Methods returns the proxied methods sorted by name.
func (p *Proxy) Methods() []*types.Method {
	methods := make([]*types.Method, 0, len(p.methods))
	for _, m := range p.methods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}

// Method looks a proxied method up by name.
func (p *Proxy) Method(name string) (*types.Method, bool) {
	m, ok := p.methods[name]
	return m, ok
}

// Advised returns the live configuration, unless the proxy is opaque.
func (p *Proxy) Advised() (types.Advised, bool) {
	if p.config.IsOpaque() {
		return nil, false
	}
	return p.config, true
}

func (p *Proxy) IsAopProxy() bool {
	return true
}

// DecoratedClass returns the class of the target behind the proxy.
func (p *Proxy) DecoratedClass() reflect.Type {
	if c := p.config.TargetClass(); c != nil {
		return c
	}
	return p.proxyType.Class
}

// Facade returns the bound facade, or nil.
func (p *Proxy) Facade() any {
	if box, ok := p.facade.Load().(facadeBox); ok {
		return box.v
	}
	return nil
}

// self returns what callers see as the proxy: the facade when bound.
func (p *Proxy) self() any {
	if f := p.Facade(); f != nil {
		return f
	}
	return p
}

// Equal reports whether other is a proxy, or a facade of one, over an equal configuration.
func (p *Proxy) Equal(other any) bool {
	o, ok := ProxyOf(other)
	if !ok {
		return false
	}
	return p == o || p.config.Equal(o.config)
}

func (p *Proxy) HashCode() uint64 {
	return 31*hashString("aop.Proxy") + hashObject(p.config.TargetSource())
}

func (p *Proxy) String() string {
	return fmt.Sprintf("Proxy[%s] %v", p.ID(), p.proxyType)
}

// Invoke calls the named method with args. When the method accepts a
// context.Context as first parameter, args[0] is the call context.
// Invoke 按方法名调用，方法第一个参数为 context.Context 时 args[0] 即为调用上下文
func (p *Proxy) Invoke(name string, args ...any) (any, error) {
	switch name {
	case EqualMethod:
		if !p.equalDeclared && len(args) == 1 {
			return p.Equal(args[0]), nil
		}
	case HashCodeMethod:
		if !p.hashDeclared && len(args) == 0 {
			return p.HashCode(), nil
		}
	case IsAopProxyMethod:
		return p.IsAopProxy(), nil
	case DecoratedClassMethod:
		return p.DecoratedClass(), nil
	}
	m, ok := p.methods[name]
	if !ok {
		if advisedMethod[name] && !p.config.IsOpaque() {
			return reflect2.Call(reflect.ValueOf(p.config).MethodByName(name), args)
		}
		return nil, fmt.Errorf("%w: %s on %v", types.ErrMethodNotFound, name, p.proxyType)
	}
	return p.dispatch(m, append([]any(nil), args...))
}

func (p *Proxy) dispatch(m *types.Method, args []any) (result any, err error) {
	config := p.config
	ctx := context.Background()
	takesContext := m.AcceptsContext() && len(args) > 0
	if takesContext {
		if c, ok := args[0].(context.Context); ok && c != nil {
			ctx = c
		}
	}
	if config.IsExposeProxy() {
		ctx = WithCurrentProxy(ctx, p.self())
		if takesContext {
			args[0] = ctx
		}
	}

	ts := config.TargetSource()
	target, err := ts.GetTarget(ctx)
	if err != nil {
		return nil, err
	}
	if !ts.IsStatic() {
		defer func() {
			if releaseErr := ts.ReleaseTarget(target); releaseErr != nil {
				config.Logger().Printf("release target %T of proxy %s error: %s", target, p.ID(), releaseErr.Error())
			}
		}()
	}
	var targetClass reflect.Type
	if target != nil {
		targetClass = reflect.TypeOf(target)
	}

	chain, err := config.AdvisorChain(m, targetClass)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		result, err = invokeTarget(target, m, args)
	} else {
		result, err = NewInvocation(ctx, p.self(), target, m, args, targetClass, chain).Proceed()
	}
	if err != nil {
		return result, err
	}
	return p.postProcess(m, target, result)
}

// postProcess substitutes the proxy for a returned target and rejects nil
// results of methods whose result type cannot hold nil.
func (p *Proxy) postProcess(m *types.Method, target, result any) (any, error) {
	rt := m.ResultType()
	if rt == nil {
		return result, nil
	}
	if result == nil {
		if !types.IsNilable(rt) {
			return nil, fmt.Errorf("%w: nil result for %s with result type %v", types.ErrInvocationInconsistency, m, rt)
		}
		return nil, nil
	}
	if target != nil && !types.IsAnyType(rt) && isSameInstance(result, target) {
		self := p.self()
		if reflect.TypeOf(self).AssignableTo(rt) {
			return self, nil
		}
	}
	return result, nil
}

// isSameInstance reports whether a and b are the same pointer-like instance.
func isSameInstance(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// Bind makes stub a typed facade of the proxy. stub must be a pointer to a
// struct; its exported func fields named <Method>Func, or tagged aop:"<Method>",
// are set to functions calling the proxy, and an embedded *Proxy field is set
// to p. A method whose signature has no trailing error panics with the error
// the chain returned.
//
//	type greeterProxy struct {
//		*engine.Proxy
//		GreetFunc func(ctx context.Context, name string) (string, error)
//	}
//
//	func (g *greeterProxy) Greet(ctx context.Context, name string) (string, error) {
//		return g.GreetFunc(ctx, name)
//	}
func (p *Proxy) Bind(stub any) error {
	v := reflect.ValueOf(stub)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return types.ConfigurationErrorf("facade must be a non-nil pointer to struct, got %T", stub)
	}
	sv := v.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.Anonymous && f.Type == proxyPtrType {
			sv.Field(i).Set(reflect.ValueOf(p))
			continue
		}
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		name := f.Tag.Get("aop")
		if name == "-" {
			continue
		}
		if name == "" {
			if !strings.HasSuffix(f.Name, "Func") || f.Name == "Func" {
				continue
			}
			name = strings.TrimSuffix(f.Name, "Func")
		}
		m, ok := p.methods[name]
		if !ok {
			return types.ConfigurationErrorf("facade %T field %s: proxy has no method %s", stub, f.Name, name)
		}
		if f.Type != m.Type {
			return types.ConfigurationErrorf("facade %T field %s: type %v does not match %v", stub, f.Name, f.Type, m.Type)
		}
		sv.Field(i).Set(reflect.MakeFunc(f.Type, p.facadeFunc(m)))
	}
	p.facade.Store(facadeBox{v: stub})
	return nil
}

func (p *Proxy) facadeFunc(m *types.Method) func([]reflect.Value) []reflect.Value {
	return func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		result, err := p.Invoke(m.Name, args...)
		out, convErr := reflect2.ToResults(m.Type, result, err)
		if convErr != nil {
			panic(fmt.Errorf("%w: %s: %v", types.ErrInvocationInconsistency, m, convErr))
		}
		if err != nil && !m.ReturnsError() {
			panic(err)
		}
		return out
	}
}
