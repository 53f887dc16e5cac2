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

// Package container is a small object registry that builds named objects and
// runs the auto-proxy hooks at the documented points of their life.
//
// Package container 对象注册表，构建命名对象并在生命周期中调用自动代理钩子
package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
)

var (
	// ErrNoSuchObject is returned when no definition has the requested name.
	ErrNoSuchObject = errors.New("no such object")
	// ErrCircularReference is returned for a circular reference that cannot
	// be broken by an early reference.
	ErrCircularReference = errors.New("circular reference")
)

// Scope of a definition.
type Scope int

const (
	// Singleton objects are built once and shared.
	Singleton Scope = iota
	// Prototype objects are built for every lookup.
	Prototype
)

// Hooks are the lifecycle callbacks of an auto-proxy creator.
type Hooks interface {
	BeforeInstantiation(class reflect.Type, id string) (any, error)
	EarlyReference(obj any, id string) (any, error)
	AfterInitialization(obj any, id string) (any, error)
}

// Definition describes how to build a named object.
type Definition struct {
	Name  string
	Type  reflect.Type
	Scope Scope
	// New creates the raw object.
	New func() (any, error)
	// Init, if set, wires the dependencies of the raw object. Dependencies
	// that are still under construction resolve to their early reference.
	Init func(obj any, deps types.ObjectResolver) error
	// Facade, if set, returns a fresh stub bound to the proxy replacing the object.
	Facade func() any
}

// Instance defines a singleton holding obj.
func Instance(name string, obj any) Definition {
	return Definition{Name: name, Type: reflect.TypeOf(obj), New: func() (any, error) { return obj, nil }}
}

// SingletonOf defines a singleton built by newFunc.
func SingletonOf[T any](name string, newFunc func() T) Definition {
	return Definition{Name: name, Type: typeOf[T](), New: func() (any, error) { return newFunc(), nil }}
}

// PrototypeOf defines a prototype built by newFunc.
func PrototypeOf[T any](name string, newFunc func() T) Definition {
	return Definition{Name: name, Type: typeOf[T](), Scope: Prototype, New: func() (any, error) { return newFunc(), nil }}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Registry builds and caches named objects. It implements types.ObjectResolver.
// A singleton built concurrently for the first time may be constructed more
// than once, but only the first stored instance is ever returned.
// Registry 对象注册表
type Registry struct {
	logger types.Logger

	mu         sync.RWMutex
	names      []string
	defs       map[string]*Definition
	singletons map[string]any
	inCreation map[string]any
	earlyRefs  map[string]any
	hooks      Hooks
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...types.Option) (*Registry, error) {
	config, err := types.NewConfig().Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &Registry{
		logger:     types.NewLogger(config.Logger),
		defs:       make(map[string]*Definition),
		singletons: make(map[string]any),
		inCreation: make(map[string]any),
		earlyRefs:  make(map[string]any),
	}, nil
}

// SetHooks installs the lifecycle hooks, typically an *autoproxy.Creator
// created over this registry.
func (r *Registry) SetHooks(hooks Hooks) {
	r.mu.Lock()
	r.hooks = hooks
	r.mu.Unlock()
}

// Register adds definitions. Names must be unique.
func (r *Registry) Register(defs ...Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range defs {
		def := defs[i]
		if def.Name == "" || def.New == nil || def.Type == nil {
			return types.ConfigurationErrorf("definition %q requires a name, a type and a constructor", def.Name)
		}
		if _, ok := r.defs[def.Name]; ok {
			return types.ConfigurationErrorf("duplicate definition %q", def.Name)
		}
		r.defs[def.Name] = &def
		r.names = append(r.names, def.Name)
	}
	return nil
}

// Names returns the defined names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

func (r *Registry) definition(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchObject, name)
	}
	return def, nil
}

func (r *Registry) currentHooks() Hooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks
}

func (r *Registry) singleton(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.singletons[name]
	return obj, ok
}

// GetObject returns the object name, building it when needed.
func (r *Registry) GetObject(name string) (any, error) {
	return r.getObject(newCreation(r), name)
}

func (r *Registry) IsSingleton(name string) bool {
	def, err := r.definition(name)
	return err == nil && def.Scope == Singleton
}

func (r *Registry) Type(name string) reflect.Type {
	def, err := r.definition(name)
	if err != nil {
		return nil
	}
	return def.Type
}

// NamesForType returns, in registration order, the names whose declared type
// is assignable to t.
func (r *Registry) NamesForType(t reflect.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.names {
		if r.defs[name].Type.AssignableTo(t) {
			names = append(names, name)
		}
	}
	return names
}

// Raw returns a resolver building prototypes without running the hooks on
// them. Singletons resolve as through the registry.
func (r *Registry) Raw() types.ObjectResolver {
	return rawResolver{r}
}

func (r *Registry) getObject(c *creation, name string) (any, error) {
	def, err := r.definition(name)
	if err != nil {
		return nil, err
	}
	if def.Scope == Prototype {
		if c.inProgress[name] {
			return nil, fmt.Errorf("%w: prototype %q", ErrCircularReference, name)
		}
		return r.create(c, def, true)
	}
	if obj, ok := r.singleton(name); ok {
		return obj, nil
	}
	if c.inProgress[name] {
		return r.earlyReference(def)
	}
	return r.create(c, def, true)
}

// earlyReference hands out the reference of a singleton still under construction.
func (r *Registry) earlyReference(def *Definition) (any, error) {
	r.mu.RLock()
	ref, ok := r.earlyRefs[def.Name]
	raw, building := r.inCreation[def.Name]
	r.mu.RUnlock()
	if ok {
		return ref, nil
	}
	if !building {
		return nil, fmt.Errorf("%w: singleton %q is referenced before it was created", ErrCircularReference, def.Name)
	}
	ref = raw
	if hooks := r.currentHooks(); hooks != nil {
		hooked, err := hooks.EarlyReference(raw, def.Name)
		if err != nil {
			return nil, err
		}
		ref = hooked
	}
	ref, err := r.expose(def, ref)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.earlyRefs[def.Name] = ref
	r.mu.Unlock()
	r.logger.Printf("early reference to %q handed out", def.Name)
	return ref, nil
}

// create builds def, running the hooks when withHooks is set.
func (r *Registry) create(c *creation, def *Definition, withHooks bool) (any, error) {
	name := def.Name
	singleton := def.Scope == Singleton
	c.inProgress[name] = true
	defer delete(c.inProgress, name)

	var hooks Hooks
	if withHooks {
		hooks = r.currentHooks()
	}
	if hooks != nil {
		obj, err := hooks.BeforeInstantiation(def.Type, name)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			if obj, err = r.expose(def, obj); err != nil {
				return nil, err
			}
			if singleton {
				return r.store(name, obj), nil
			}
			return obj, nil
		}
	}

	raw, err := def.New()
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	if singleton {
		r.mu.Lock()
		r.inCreation[name] = raw
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			delete(r.inCreation, name)
			delete(r.earlyRefs, name)
			r.mu.Unlock()
		}()
	}
	if def.Init != nil {
		if err := def.Init(raw, c); err != nil {
			return nil, fmt.Errorf("init %q: %w", name, err)
		}
	}
	exposed := raw
	if hooks != nil {
		if exposed, err = hooks.AfterInitialization(raw, name); err != nil {
			return nil, err
		}
	}
	if singleton {
		r.mu.RLock()
		early, ok := r.earlyRefs[name]
		r.mu.RUnlock()
		if ok && isSame(exposed, raw) {
			// dependents already hold the early reference
			exposed = early
		}
	}
	if exposed, err = r.expose(def, exposed); err != nil {
		return nil, err
	}
	if singleton {
		return r.store(name, exposed), nil
	}
	return exposed, nil
}

// store caches a singleton unless another one was stored first, and returns
// the cached instance.
func (r *Registry) store(name string, obj any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.singletons[name]; ok {
		return existing
	}
	r.singletons[name] = obj
	r.logger.Printf("singleton %q created as %T", name, obj)
	return obj
}

// expose binds a proxy to the definition facade once.
func (r *Registry) expose(def *Definition, obj any) (any, error) {
	p, ok := obj.(*engine.Proxy)
	if !ok || def.Facade == nil {
		return obj, nil
	}
	if f := p.Facade(); f != nil {
		return f, nil
	}
	stub := def.Facade()
	if err := p.Bind(stub); err != nil {
		return nil, err
	}
	return stub, nil
}

func isSame(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Ptr && vb.Kind() == reflect.Ptr {
		return va.Pointer() == vb.Pointer() && va.Type() == vb.Type()
	}
	return false
}

// creation tracks the objects under construction in one resolution chain.
type creation struct {
	r          *Registry
	inProgress map[string]bool
}

func newCreation(r *Registry) *creation {
	return &creation{r: r, inProgress: make(map[string]bool)}
}

func (c *creation) GetObject(name string) (any, error) {
	return c.r.getObject(c, name)
}

func (c *creation) IsSingleton(name string) bool {
	return c.r.IsSingleton(name)
}

func (c *creation) Type(name string) reflect.Type {
	return c.r.Type(name)
}

func (c *creation) NamesForType(t reflect.Type) []string {
	return c.r.NamesForType(t)
}

type rawResolver struct {
	r *Registry
}

func (rr rawResolver) GetObject(name string) (any, error) {
	def, err := rr.r.definition(name)
	if err != nil {
		return nil, err
	}
	if def.Scope == Singleton {
		return rr.r.GetObject(name)
	}
	return rr.r.create(newCreation(rr.r), def, false)
}

func (rr rawResolver) IsSingleton(name string) bool {
	return rr.r.IsSingleton(name)
}

func (rr rawResolver) Type(name string) reflect.Type {
	return rr.r.Type(name)
}

func (rr rawResolver) NamesForType(t reflect.Type) []string {
	return rr.r.NamesForType(t)
}
