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

package autoproxy

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rulego/aop/aspect"
	"github.com/rulego/aop/api/types"
)

type greeter struct {
	calls int32
}

func (g *greeter) Greet(ctx context.Context, name string) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	return "hello " + name, nil
}

type repository struct{}

func (r *repository) Find(id int) string {
	return fmt.Sprintf("item-%d", id)
}

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

type namedInterceptor struct {
	rec  *recorder
	name string
}

func (i *namedInterceptor) Kind() types.AdviceKind { return types.AdviceAround }

func (i *namedInterceptor) Invoke(inv types.MethodInvocation) (any, error) {
	i.rec.add("%s %s", i.name, inv.Method().Name)
	return inv.Proceed()
}

// mutableSource lets a test change the candidate advisors.
type mutableSource struct {
	mu       sync.Mutex
	advisors []types.Advisor
}

func (s *mutableSource) set(advisors ...types.Advisor) {
	s.mu.Lock()
	s.advisors = advisors
	s.mu.Unlock()
}

func (s *mutableSource) Advisors() ([]types.Advisor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advisors, nil
}

type auditAspect struct {
	rec *recorder
}

var _ aspect.Declaration = (*auditAspect)(nil)

func (a *auditAspect) AdviceBindings() map[string]string {
	return map[string]string{"audit": "@Before(execution(* Greet(..)))"}
}

func (a *auditAspect) Audit(jp aspect.JoinPoint) error {
	a.rec.add("audit %s", jp.Method().Name)
	return nil
}

// mapResolver is a minimal ObjectResolver.
type mapResolver struct {
	mu         sync.Mutex
	names      []string
	factories  map[string]func() any
	singletons map[string]any
	created    map[string]int
}

func newMapResolver() *mapResolver {
	return &mapResolver{
		factories:  make(map[string]func() any),
		singletons: make(map[string]any),
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
	return r
}

func (r *mapResolver) createdCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[name]
}

func (r *mapResolver) GetObject(name string) (any, error) {
	if obj, ok := r.singletons[name]; ok {
		return obj, nil
	}
	if f, ok := r.factories[name]; ok {
		r.mu.Lock()
		r.created[name]++
		r.mu.Unlock()
		return f(), nil
	}
	return nil, fmt.Errorf("no object named %s", name)
}

func (r *mapResolver) IsSingleton(name string) bool {
	_, ok := r.factories[name]
	return !ok
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

// gateSource holds its first caller until release is closed.
type gateSource struct {
	advisors []types.Advisor
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func newGateSource(advisors ...types.Advisor) *gateSource {
	return &gateSource{advisors: advisors, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gateSource) Advisors() ([]types.Advisor, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.advisors, nil
}
