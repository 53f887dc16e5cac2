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
	"sync"

	"github.com/rulego/aop/engine"
)

type proxied struct {
	raw   any
	proxy *engine.Proxy
}

// DecisionState holds the per-creator memory of proxy decisions, keyed by
// object identifier. It is safe for concurrent use.
// DecisionState 代理决策状态，按对象标识缓存，并发安全
type DecisionState struct {
	// decisions id -> bool, true means proxied
	decisions sync.Map
	// proxyTypes id -> engine.ProxyType
	proxyTypes sync.Map
	// targetSourced id -> struct{}
	targetSourced sync.Map
	// earlyExposed id -> raw object
	earlyExposed sync.Map
	// proxies id -> proxied
	proxies sync.Map
}

// NewDecisionState creates an empty state.
func NewDecisionState() *DecisionState {
	return &DecisionState{}
}

// Decision returns the memoized decision for id.
func (s *DecisionState) Decision(id string) (proxy bool, ok bool) {
	v, ok := s.decisions.Load(id)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// RecordDecision memoizes whether id is proxied.
func (s *DecisionState) RecordDecision(id string, proxy bool) {
	s.decisions.Store(id, proxy)
}

// IsExcluded reports whether a "no" decision is memoized for id.
func (s *DecisionState) IsExcluded(id string) bool {
	proxy, ok := s.Decision(id)
	return ok && !proxy
}

func (s *DecisionState) RecordProxyType(id string, proxyType engine.ProxyType) {
	s.proxyTypes.Store(id, proxyType)
}

func (s *DecisionState) ProxyType(id string) (engine.ProxyType, bool) {
	v, ok := s.proxyTypes.Load(id)
	if !ok {
		return engine.ProxyType{}, false
	}
	return v.(engine.ProxyType), true
}

// MarkTargetSourced records that id was proxied around a custom target source
// before its construction.
func (s *DecisionState) MarkTargetSourced(id string) {
	s.targetSourced.Store(id, struct{}{})
}

func (s *DecisionState) IsTargetSourced(id string) bool {
	_, ok := s.targetSourced.Load(id)
	return ok
}

// MarkEarlyExposed records that raw was handed out early for id.
func (s *DecisionState) MarkEarlyExposed(id string, raw any) {
	s.earlyExposed.Store(id, raw)
}

// TakeEarlyExposed removes and returns the object exposed early for id.
func (s *DecisionState) TakeEarlyExposed(id string) (any, bool) {
	return s.earlyExposed.LoadAndDelete(id)
}

// RecordProxy memoizes the proxy created for raw under id.
func (s *DecisionState) RecordProxy(id string, raw any, proxy *engine.Proxy) {
	s.proxies.Store(id, proxied{raw: raw, proxy: proxy})
}

// Proxy returns the proxy created for raw under id.
func (s *DecisionState) Proxy(id string, raw any) (*engine.Proxy, bool) {
	v, ok := s.proxies.Load(id)
	if !ok {
		return nil, false
	}
	p := v.(proxied)
	if !sameInstance(p.raw, raw) {
		return nil, false
	}
	return p.proxy, true
}

// Clear drops every memoized decision.
func (s *DecisionState) Clear() {
	for _, m := range []*sync.Map{&s.decisions, &s.proxyTypes, &s.targetSourced, &s.earlyExposed, &s.proxies} {
		m.Range(func(k, v any) bool {
			m.Delete(k)
			return true
		})
	}
}

// sameInstance compares pointer-like values by address and others with ==.
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return va.Type().Comparable() && a == b
}
