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
	"reflect"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/aspect"
	"github.com/rulego/aop/engine"
)

var (
	advisorType     = reflect.TypeOf((*types.Advisor)(nil)).Elem()
	declarationType = reflect.TypeOf((*aspect.Declaration)(nil)).Elem()
)

// AdvisorSource provides candidate advisors.
// AdvisorSource 候选 Advisor 来源
type AdvisorSource interface {
	Advisors() ([]types.Advisor, error)
}

// StaticAdvisors is a fixed advisor list.
type StaticAdvisors []types.Advisor

func (s StaticAdvisors) Advisors() ([]types.Advisor, error) {
	return s, nil
}

// ResolverAdvisors discovers the Advisor objects of a resolver whose names
// start with Prefix.
type ResolverAdvisors struct {
	Resolver types.ObjectResolver
	Prefix   string
}

func (s *ResolverAdvisors) Advisors() ([]types.Advisor, error) {
	var advisors []types.Advisor
	for _, name := range s.Resolver.NamesForType(advisorType) {
		if !strings.HasPrefix(name, s.Prefix) {
			continue
		}
		obj, err := s.Resolver.GetObject(name)
		if err != nil {
			return nil, err
		}
		if a, ok := obj.(types.Advisor); ok {
			advisors = append(advisors, a)
		}
	}
	return advisors, nil
}

// AspectAdvisors reflects aspect instance factories into advisors once.
type AspectAdvisors struct {
	reflector *aspect.Reflector
	factories []aspect.InstanceFactory

	once     sync.Once
	advisors []types.Advisor
	err      error
}

// NewAspectAdvisors creates a source over factories.
func NewAspectAdvisors(reflector *aspect.Reflector, factories ...aspect.InstanceFactory) *AspectAdvisors {
	if reflector == nil {
		reflector = aspect.NewReflector()
	}
	return &AspectAdvisors{reflector: reflector, factories: factories}
}

func (s *AspectAdvisors) Advisors() ([]types.Advisor, error) {
	s.once.Do(func() {
		for _, f := range s.factories {
			advisors, err := s.reflector.Advisors(f)
			if err != nil {
				s.err = err
				return
			}
			s.advisors = append(s.advisors, advisors...)
		}
	})
	return s.advisors, s.err
}

// ResolverAspects discovers aspect objects of a resolver. Singleton aspects
// are used as they are, other aspects are created lazily on first advice.
// Reflected advisors are cached per aspect name.
type ResolverAspects struct {
	Resolver  types.ObjectResolver
	Reflector *aspect.Reflector

	// cache name -> []types.Advisor
	cache sync.Map
}

func (s *ResolverAspects) Advisors() ([]types.Advisor, error) {
	reflector := s.Reflector
	if reflector == nil {
		reflector = aspect.NewReflector()
	}
	var advisors []types.Advisor
	for _, name := range s.Resolver.NamesForType(declarationType) {
		if cached, ok := s.cache.Load(name); ok {
			advisors = append(advisors, cached.([]types.Advisor)...)
			continue
		}
		// resolving may construct other objects, which ask for advisors again
		factory, err := s.factory(name)
		if err != nil {
			return nil, err
		}
		reflected, err := reflector.Advisors(factory)
		if err != nil {
			return nil, err
		}
		actual, _ := s.cache.LoadOrStore(name, reflected)
		advisors = append(advisors, actual.([]types.Advisor)...)
	}
	return advisors, nil
}

// factory returns the instance factory of aspect name.
func (s *ResolverAspects) factory(name string) (aspect.InstanceFactory, error) {
	if s.Resolver.IsSingleton(name) {
		obj, err := s.Resolver.GetObject(name)
		if err != nil {
			return nil, err
		}
		return aspect.NewSingletonInstanceFactory(obj), nil
	}
	return aspect.NewLazyInstanceFactory(s.Resolver.Type(name), func() (any, error) {
		return s.Resolver.GetObject(name)
	})
}

// TargetSourceCreator supplies a custom target source for an object before it
// is constructed. A nil source means none.
// TargetSourceCreator 为对象提供自定义 TargetSource
type TargetSourceCreator interface {
	TargetSource(class reflect.Type, id string) (types.TargetSource, error)
}

// prototypeMatcher selects prototype-scoped identifiers matching a glob pattern.
type prototypeMatcher struct {
	resolver types.ObjectResolver
	pattern  glob.Glob
}

func newPrototypeMatcher(resolver types.ObjectResolver, pattern string) (prototypeMatcher, error) {
	if resolver == nil {
		return prototypeMatcher{}, types.ConfigurationErrorf("target source creator requires an object resolver")
	}
	m := prototypeMatcher{resolver: resolver}
	if pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			return m, types.ConfigurationErrorf("invalid target source pattern %q: %v", pattern, err)
		}
		m.pattern = g
	}
	return m, nil
}

func (m prototypeMatcher) matches(id string) bool {
	if m.resolver.IsSingleton(id) {
		return false
	}
	return m.pattern == nil || m.pattern.Match(id)
}

// PrototypeTargetSourceCreator gives matching prototype-scoped objects a
// target source resolving a fresh target for every call.
type PrototypeTargetSourceCreator struct {
	matcher prototypeMatcher
}

// NewPrototypeTargetSourceCreator creates the creator. resolver must resolve
// raw objects, without running the creator hooks. An empty pattern matches
// every prototype-scoped identifier.
func NewPrototypeTargetSourceCreator(resolver types.ObjectResolver, pattern string) (*PrototypeTargetSourceCreator, error) {
	m, err := newPrototypeMatcher(resolver, pattern)
	if err != nil {
		return nil, err
	}
	return &PrototypeTargetSourceCreator{matcher: m}, nil
}

func (c *PrototypeTargetSourceCreator) TargetSource(class reflect.Type, id string) (types.TargetSource, error) {
	if !c.matcher.matches(id) {
		return nil, nil
	}
	return engine.NewPrototypeTargetSource(c.matcher.resolver, id)
}

// PoolingTargetSourceCreator gives matching prototype-scoped objects a pool of targets.
type PoolingTargetSourceCreator struct {
	matcher prototypeMatcher
	config  engine.PoolingConfig
	logger  types.Logger

	mu    sync.Mutex
	pools []*engine.PoolingTargetSource
}

// NewPoolingTargetSourceCreator creates the creator. resolver must resolve raw
// objects, without running the creator hooks.
func NewPoolingTargetSourceCreator(resolver types.ObjectResolver, pattern string, config engine.PoolingConfig, logger types.Logger) (*PoolingTargetSourceCreator, error) {
	m, err := newPrototypeMatcher(resolver, pattern)
	if err != nil {
		return nil, err
	}
	return &PoolingTargetSourceCreator{matcher: m, config: config, logger: types.NewLogger(logger)}, nil
}

func (c *PoolingTargetSourceCreator) TargetSource(class reflect.Type, id string) (types.TargetSource, error) {
	if !c.matcher.matches(id) {
		return nil, nil
	}
	pool, err := engine.NewResolverPoolingTargetSource(c.matcher.resolver, id, c.config, c.logger)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pools = append(c.pools, pool)
	c.mu.Unlock()
	return pool, nil
}

// Close closes every pool the creator made.
func (c *PoolingTargetSourceCreator) Close() error {
	c.mu.Lock()
	pools := c.pools
	c.pools = nil
	c.mu.Unlock()
	var firstErr error
	for _, p := range pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
