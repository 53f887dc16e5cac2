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
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/rulego/aop/api/types"
)

// GlobalSuffix marks an interceptor name as a prefix matching every advisor
// and interceptor object whose name starts with it.
const GlobalSuffix = "*"

var (
	advisorType     = reflect.TypeOf((*types.Advisor)(nil)).Elem()
	interceptorType = reflect.TypeOf((*types.Interceptor)(nil)).Elem()
)

// prototypePlaceholder stands for a prototype-scoped advisor resolved again
// for every prototype proxy.
type prototypePlaceholder struct {
	name string
}

func (p *prototypePlaceholder) Advice() types.Advice {
	return nil
}

func (p *prototypePlaceholder) IsPerInstance() bool {
	return true
}

func (p *prototypePlaceholder) String() string {
	return "PrototypePlaceholder for " + p.name
}

// FactoryBean creates proxies from named objects of an ObjectResolver.
//
// In singleton mode every call returns the same proxy, which shares the
// factory configuration. In prototype mode every call returns an independent
// proxy over a configuration copy, with a fresh target and fresh instances of
// prototype-scoped advisors.
// FactoryBean 从对象容器按名称装配代理，支持单例和原型两种模式
type FactoryBean struct {
	*AdvisedSupport
	resolver         types.ObjectResolver
	interceptorNames []string
	targetName       string
	singleton        bool

	mu          sync.Mutex
	initialized bool
	instance    *Proxy
}

// FactoryBeanOption configures a FactoryBean.
type FactoryBeanOption func(*FactoryBean)

// WithInterceptorNames sets the advisor, interceptor and advice object names in
// chain order. A name ending with GlobalSuffix expands to every Advisor and
// Interceptor object whose name has that prefix, sorted by order.
func WithInterceptorNames(names ...string) FactoryBeanOption {
	return func(f *FactoryBean) {
		f.interceptorNames = names
	}
}

// WithTargetName sets the name of the target object, which may be a TargetSource.
func WithTargetName(name string) FactoryBeanOption {
	return func(f *FactoryBean) {
		f.targetName = name
	}
}

// WithSingleton selects singleton (default) or prototype mode.
func WithSingleton(singleton bool) FactoryBeanOption {
	return func(f *FactoryBean) {
		f.singleton = singleton
	}
}

// NewFactoryBean creates a FactoryBean over resolver.
func NewFactoryBean(resolver types.ObjectResolver, config *AdvisedSupport, opts ...FactoryBeanOption) (*FactoryBean, error) {
	if resolver == nil {
		return nil, types.ConfigurationErrorf("factory bean requires an object resolver")
	}
	if config == nil {
		var err error
		if config, err = NewAdvisedSupport(); err != nil {
			return nil, err
		}
	}
	f := &FactoryBean{AdvisedSupport: config, resolver: resolver, singleton: true}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// IsSingleton reports whether the factory returns a shared proxy.
func (f *FactoryBean) IsSingleton() bool {
	return f.singleton
}

// Object returns the proxy: the shared one in singleton mode, a new one in prototype mode.
func (f *FactoryBean) Object() (*Proxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.initializeAdvisorChain(); err != nil {
		return nil, err
	}
	if f.singleton {
		return f.singletonInstance()
	}
	return f.newPrototypeInstance()
}

// ObjectType predicts the proxy type.
func (f *FactoryBean) ObjectType() (ProxyType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.instance != nil {
		return f.instance.ProxyType(), nil
	}
	proxyType, _, err := resolveProxyType(f.AdvisedSupport)
	return proxyType, err
}

func (f *FactoryBean) singletonInstance() (*Proxy, error) {
	if f.instance != nil {
		return f.instance, nil
	}
	ts, err := f.freshTargetSource()
	if err != nil {
		return nil, err
	}
	f.SetTargetSource(ts)
	p, err := CreateProxy(f.AdvisedSupport)
	if err != nil {
		return nil, err
	}
	f.instance = p
	return p, nil
}

func (f *FactoryBean) newPrototypeInstance() (*Proxy, error) {
	ts, err := f.freshTargetSource()
	if err != nil {
		return nil, err
	}
	advisors, err := f.freshAdvisors()
	if err != nil {
		return nil, err
	}
	return CreateProxy(f.CopyWith(ts, advisors))
}

func (f *FactoryBean) freshTargetSource() (types.TargetSource, error) {
	if f.targetName == "" {
		return f.TargetSource(), nil
	}
	target, err := f.resolver.GetObject(f.targetName)
	if err != nil {
		return nil, err
	}
	if ts, ok := target.(types.TargetSource); ok {
		return ts, nil
	}
	return NewSingletonTargetSource(target), nil
}

// freshAdvisors resolves prototype placeholders to new advisor instances.
func (f *FactoryBean) freshAdvisors() ([]types.Advisor, error) {
	advisors := f.Advisors()
	fresh := make([]types.Advisor, 0, len(advisors))
	for _, a := range advisors {
		if p, ok := a.(*prototypePlaceholder); ok {
			resolved, err := f.resolveAdvisor(p.name)
			if err != nil {
				return nil, err
			}
			a = resolved
		}
		fresh = append(fresh, a)
	}
	return fresh, nil
}

func (f *FactoryBean) initializeAdvisorChain() error {
	if f.initialized {
		return nil
	}
	for _, name := range f.interceptorNames {
		if strings.HasSuffix(name, GlobalSuffix) {
			if err := f.addGlobalAdvisors(strings.TrimSuffix(name, GlobalSuffix)); err != nil {
				return err
			}
			continue
		}
		if !f.singleton && !f.resolver.IsSingleton(name) {
			if err := f.AddAdvisor(&prototypePlaceholder{name: name}); err != nil {
				return err
			}
			continue
		}
		a, err := f.resolveAdvisor(name)
		if err != nil {
			return err
		}
		if err := f.AddAdvisor(a); err != nil {
			return err
		}
	}
	f.initialized = true
	return nil
}

// addGlobalAdvisors adds every Advisor and Interceptor object, sorted by order,
// whose name starts with prefix.
func (f *FactoryBean) addGlobalAdvisors(prefix string) error {
	type named struct {
		name string
		obj  any
	}
	var candidates []named
	seen := make(map[string]bool)
	for _, t := range []reflect.Type{advisorType, interceptorType} {
		for _, name := range f.resolver.NamesForType(t) {
			if seen[name] {
				continue
			}
			seen[name] = true
			obj, err := f.resolver.GetObject(name)
			if err != nil {
				return err
			}
			candidates = append(candidates, named{name: name, obj: obj})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return types.OrderOf(candidates[i].obj) < types.OrderOf(candidates[j].obj)
	})
	for _, c := range candidates {
		if !strings.HasPrefix(c.name, prefix) {
			continue
		}
		a, err := f.AdapterRegistry().Wrap(c.obj)
		if err != nil {
			return err
		}
		if err := f.AddAdvisor(a); err != nil {
			return err
		}
	}
	return nil
}

func (f *FactoryBean) resolveAdvisor(name string) (types.Advisor, error) {
	obj, err := f.resolver.GetObject(name)
	if err != nil {
		return nil, err
	}
	return f.AdapterRegistry().Wrap(obj)
}
