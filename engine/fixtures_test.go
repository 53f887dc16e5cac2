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
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rulego/aop/api/types"
)

var errTransient = errors.New("transient")

type Greeter interface {
	Greet(ctx context.Context, name string) (string, error)
	Self() Greeter
	Count() int
}

var greeterType = reflect.TypeOf((*Greeter)(nil)).Elem()

// greeterImpl fails the first call made with the name "retry".
type greeterImpl struct {
	mu        sync.Mutex
	attempts  map[string]int
	calls     int32
	lastProxy any
}

func newGreeter() *greeterImpl {
	return &greeterImpl{attempts: make(map[string]int)}
}

func (g *greeterImpl) Greet(ctx context.Context, name string) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := CurrentProxy(ctx); ok {
		g.lastProxy = p
	}
	g.attempts[name]++
	if name == "retry" && g.attempts[name] == 1 {
		return "", errTransient
	}
	if name == "boom" {
		panic("boom")
	}
	return "hello " + name, nil
}

func (g *greeterImpl) Self() Greeter {
	return g
}

func (g *greeterImpl) Count() int {
	return int(atomic.LoadInt32(&g.calls))
}

func (g *greeterImpl) ProxiedInterfaces() []reflect.Type {
	return []reflect.Type{greeterType}
}

// greeterFacade is a typed stub bound to a proxy.
type greeterFacade struct {
	*Proxy
	GreetFunc func(ctx context.Context, name string) (string, error)
	SelfFunc  func() Greeter
	CountFunc func() int
}

func (g *greeterFacade) Greet(ctx context.Context, name string) (string, error) {
	return g.GreetFunc(ctx, name)
}

func (g *greeterFacade) Self() Greeter {
	return g.SelfFunc()
}

func (g *greeterFacade) Count() int {
	return g.CountFunc()
}

type finalService struct{}

func (f *finalService) FinalClass() {}

func (f *finalService) Run() string { return "run" }

type plainService struct {
	name string
}

func (s *plainService) Name() string { return s.name }

func (s *plainService) Rename(name string) *plainService {
	s.name = name
	return s
}

// recorder collects events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type beforeAdvice struct {
	rec  *recorder
	name string
	err  error
}

func (a *beforeAdvice) Kind() types.AdviceKind { return types.AdviceBefore }

func (a *beforeAdvice) Before(ctx context.Context, method *types.Method, args []any, target any) error {
	a.rec.add("before %s %s", a.name, method.Name)
	return a.err
}

type afterAdvice struct {
	rec *recorder
}

func (a *afterAdvice) Kind() types.AdviceKind { return types.AdviceAfter }

func (a *afterAdvice) After(ctx context.Context, method *types.Method, args []any, target any) {
	a.rec.add("after %s", method.Name)
}

type afterReturningAdvice struct {
	rec *recorder
	err error
}

func (a *afterReturningAdvice) Kind() types.AdviceKind { return types.AdviceAfterReturning }

func (a *afterReturningAdvice) AfterReturning(ctx context.Context, result any, method *types.Method, args []any, target any) error {
	a.rec.add("returned %v", result)
	return a.err
}

type throwsAdvice struct {
	rec     *recorder
	replace error
}

func (a *throwsAdvice) Kind() types.AdviceKind { return types.AdviceAfterThrowing }

func (a *throwsAdvice) AfterThrowing(ctx context.Context, err error, method *types.Method, args []any, target any) error {
	a.rec.add("threw %v", err)
	return a.replace
}

type unsupportedAdvice struct{}

func (unsupportedAdvice) Kind() types.AdviceKind { return types.AdviceAround }

// countingTargetSource hands out fresh greeters and counts acquire and release.
type countingTargetSource struct {
	gets     int32
	releases int32
}

func (s *countingTargetSource) TargetClass() reflect.Type {
	return reflect.TypeOf(&greeterImpl{})
}

func (s *countingTargetSource) IsStatic() bool {
	return false
}

func (s *countingTargetSource) GetTarget(ctx context.Context) (any, error) {
	atomic.AddInt32(&s.gets, 1)
	return newGreeter(), nil
}

func (s *countingTargetSource) ReleaseTarget(target any) error {
	atomic.AddInt32(&s.releases, 1)
	return nil
}

// closableTarget records Close calls.
type closableTarget struct {
	closed int32
}

func (c *closableTarget) Close() error {
	atomic.AddInt32(&c.closed, 1)
	return nil
}

func (c *closableTarget) Ping() string { return "pong" }

// mapResolver is a minimal ObjectResolver.
type mapResolver struct {
	names      []string
	factories  map[string]func() any
	singletons map[string]any
	prototype  map[string]bool
	created    map[string]int
}

func newMapResolver() *mapResolver {
	return &mapResolver{
		factories:  make(map[string]func() any),
		singletons: make(map[string]any),
		prototype:  make(map[string]bool),
		created:    make(map[string]int),
	}
}

func (r *mapResolver) singleton(name string, obj any) *mapResolver {
	r.names = append(r.names, name)
	r.singletons[name] = obj
	return r
}

func (r *mapResolver) prototypeOf(name string, f func() any) *mapResolver {
	r.names = append(r.names, name)
	r.factories[name] = f
	r.prototype[name] = true
	return r
}

func (r *mapResolver) GetObject(name string) (any, error) {
	if obj, ok := r.singletons[name]; ok {
		return obj, nil
	}
	if f, ok := r.factories[name]; ok {
		r.created[name]++
		return f(), nil
	}
	return nil, fmt.Errorf("no object named %s", name)
}

func (r *mapResolver) IsSingleton(name string) bool {
	return !r.prototype[name]
}

func (r *mapResolver) Type(name string) reflect.Type {
	if obj, ok := r.singletons[name]; ok {
		return reflect.TypeOf(obj)
	}
	if f, ok := r.factories[name]; ok {
		return reflect.TypeOf(f())
	}
	return nil
}

func (r *mapResolver) NamesForType(t reflect.Type) []string {
	var names []string
	for _, name := range r.names {
		if typ := r.Type(name); typ != nil && typ.AssignableTo(t) {
			names = append(names, name)
		}
	}
	return names
}

// racingChainFactory changes the advice of its configuration while the first
// chain is being built.
type racingChainFactory struct {
	late  types.Advice
	calls int
}

func (f *racingChainFactory) Chain(config *AdvisedSupport, method *types.Method, targetClass reflect.Type) ([]any, error) {
	chain, err := DefaultChainFactory{}.Chain(config, method, targetClass)
	f.calls++
	if f.calls == 1 {
		if err := config.AddAdvice(f.late); err != nil {
			return nil, err
		}
	}
	return chain, err
}
