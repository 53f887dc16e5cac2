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
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/rulego/aop/api/types"
)

var _ types.Advised = (*AdvisedSupport)(nil)

type chainKey struct {
	method types.MethodKey
	class  reflect.Type
}

// AdvisedSupport is the proxy configuration: the ordered advisors, the target
// source, the proxied interfaces and the proxy flags. It is shared by every
// proxy created from it, so changes are visible to live proxies.
// AdvisedSupport 代理配置，由该配置创建的所有代理共享
type AdvisedSupport struct {
	id     string
	config types.Config

	mu           sync.RWMutex
	targetSource types.TargetSource
	interfaces   []reflect.Type
	advisors     []types.Advisor

	chainFactory ChainFactory
	chainMu      sync.RWMutex
	chainCache   map[chainKey][]any
	// chainGen counts advice changes, guarded by chainMu
	chainGen uint64
}

// NewAdvisedSupport creates an empty configuration.
func NewAdvisedSupport(opts ...types.Option) (*AdvisedSupport, error) {
	config, err := types.NewConfig().Apply(opts...)
	if err != nil {
		return nil, err
	}
	return newAdvisedSupport(config), nil
}

func newAdvisedSupport(config types.Config) *AdvisedSupport {
	config.Logger = types.NewLogger(config.Logger)
	return &AdvisedSupport{
		id:           uuid.Must(uuid.NewV4()).String(),
		config:       config,
		targetSource: EmptyTarget,
		chainFactory: DefaultChainFactory{},
		chainCache:   make(map[chainKey][]any),
	}
}

// ID returns the unique identifier of this configuration.
func (a *AdvisedSupport) ID() string {
	return a.id
}

// Config returns a copy of the engine configuration.
func (a *AdvisedSupport) Config() types.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Logger returns the configured logger.
func (a *AdvisedSupport) Logger() types.Logger {
	return a.config.Logger
}

// AdapterRegistry returns the configured registry or DefaultAdapterRegistry.
func (a *AdvisedSupport) AdapterRegistry() types.AdapterRegistry {
	if a.config.AdapterRegistry != nil {
		return a.config.AdapterRegistry
	}
	return DefaultAdapterRegistry
}

// SetChainFactory replaces the chain factory and drops cached chains.
func (a *AdvisedSupport) SetChainFactory(f ChainFactory) {
	if f == nil {
		f = DefaultChainFactory{}
	}
	a.mu.Lock()
	a.chainFactory = f
	a.mu.Unlock()
	a.adviceChanged()
}

func (a *AdvisedSupport) IsFrozen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Frozen
}

// SetFrozen freezes or unfreezes the advisor list.
func (a *AdvisedSupport) SetFrozen(frozen bool) {
	a.mu.Lock()
	a.config.Frozen = frozen
	a.mu.Unlock()
}

func (a *AdvisedSupport) IsOpaque() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Opaque
}

func (a *AdvisedSupport) SetOpaque(opaque bool) {
	a.mu.Lock()
	a.config.Opaque = opaque
	a.mu.Unlock()
}

func (a *AdvisedSupport) IsProxyTargetClass() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.ProxyTargetClass
}

func (a *AdvisedSupport) SetProxyTargetClass(proxyTargetClass bool) {
	a.mu.Lock()
	a.config.ProxyTargetClass = proxyTargetClass
	a.mu.Unlock()
}

func (a *AdvisedSupport) IsPreFiltered() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.PreFiltered
}

func (a *AdvisedSupport) SetPreFiltered(preFiltered bool) {
	a.mu.Lock()
	a.config.PreFiltered = preFiltered
	a.mu.Unlock()
	a.adviceChanged()
}

func (a *AdvisedSupport) IsExposeProxy() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.ExposeProxy
}

func (a *AdvisedSupport) SetExposeProxy(exposeProxy bool) {
	a.mu.Lock()
	a.config.ExposeProxy = exposeProxy
	a.mu.Unlock()
}

func (a *AdvisedSupport) TargetClass() reflect.Type {
	return a.TargetSource().TargetClass()
}

func (a *AdvisedSupport) TargetSource() types.TargetSource {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.targetSource
}

// SetTargetSource sets the target source, nil means EmptyTarget.
func (a *AdvisedSupport) SetTargetSource(ts types.TargetSource) {
	if ts == nil {
		ts = EmptyTarget
	}
	a.mu.Lock()
	a.targetSource = ts
	a.mu.Unlock()
	a.adviceChanged()
}

// SetTarget uses target as a singleton target.
func (a *AdvisedSupport) SetTarget(target any) {
	a.SetTargetSource(NewSingletonTargetSource(target))
}

// SetTargetClass sets an empty target source reporting class.
func (a *AdvisedSupport) SetTargetClass(class reflect.Type) {
	a.SetTargetSource(NewEmptyTargetSource(class))
}

func (a *AdvisedSupport) ProxiedInterfaces() []reflect.Type {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]reflect.Type(nil), a.interfaces...)
}

// SetInterfaces replaces the proxied interfaces.
func (a *AdvisedSupport) SetInterfaces(ifaces ...reflect.Type) error {
	for _, iface := range ifaces {
		if err := checkInterface(iface); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.interfaces = nil
	for _, iface := range ifaces {
		a.interfaces = appendInterface(a.interfaces, iface)
	}
	a.mu.Unlock()
	a.adviceChanged()
	return nil
}

// AddInterface adds a proxied interface, ignoring duplicates.
func (a *AdvisedSupport) AddInterface(iface reflect.Type) error {
	if err := checkInterface(iface); err != nil {
		return err
	}
	a.mu.Lock()
	a.interfaces = appendInterface(a.interfaces, iface)
	a.mu.Unlock()
	a.adviceChanged()
	return nil
}

// RemoveInterface removes a proxied interface and reports whether it was present.
func (a *AdvisedSupport) RemoveInterface(iface reflect.Type) bool {
	a.mu.Lock()
	removed := false
	for i, t := range a.interfaces {
		if t == iface {
			a.interfaces = append(a.interfaces[:i:i], a.interfaces[i+1:]...)
			removed = true
			break
		}
	}
	a.mu.Unlock()
	if removed {
		a.adviceChanged()
	}
	return removed
}

func (a *AdvisedSupport) IsInterfaceProxied(iface reflect.Type) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, t := range a.interfaces {
		if t == iface || (iface != nil && iface.Kind() == reflect.Interface && t.Implements(iface)) {
			return true
		}
	}
	return false
}

func checkInterface(iface reflect.Type) error {
	if iface == nil || iface.Kind() != reflect.Interface {
		return types.ConfigurationErrorf("%v is not an interface", iface)
	}
	return nil
}

func appendInterface(ifaces []reflect.Type, iface reflect.Type) []reflect.Type {
	for _, t := range ifaces {
		if t == iface {
			return ifaces
		}
	}
	return append(ifaces, iface)
}

func (a *AdvisedSupport) Advisors() []types.Advisor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]types.Advisor(nil), a.advisors...)
}

func (a *AdvisedSupport) AdvisorCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.advisors)
}

func (a *AdvisedSupport) AddAdvisor(advisor types.Advisor) error {
	return a.AddAdvisorAt(a.AdvisorCount(), advisor)
}

// AddAdvisorAt inserts advisor at pos. Introduction advisors are validated and
// their interfaces become proxied interfaces.
func (a *AdvisedSupport) AddAdvisorAt(pos int, advisor types.Advisor) error {
	if advisor == nil {
		return types.ConfigurationErrorf("advisor must not be nil")
	}
	ia, isIntroduction := advisor.(types.IntroductionAdvisor)
	if isIntroduction {
		if err := ia.ValidateInterfaces(); err != nil {
			return err
		}
	}
	a.mu.Lock()
	if a.config.Frozen {
		a.mu.Unlock()
		return types.ConfigurationErrorf("cannot add advisor: configuration is frozen")
	}
	if pos < 0 || pos > len(a.advisors) {
		size := len(a.advisors)
		a.mu.Unlock()
		return types.ConfigurationErrorf("illegal position %d in advisor list with size %d", pos, size)
	}
	a.advisors = append(a.advisors, nil)
	copy(a.advisors[pos+1:], a.advisors[pos:])
	a.advisors[pos] = advisor
	if isIntroduction {
		for _, iface := range ia.Interfaces() {
			a.interfaces = appendInterface(a.interfaces, iface)
		}
	}
	a.mu.Unlock()
	a.adviceChanged()
	return nil
}

// AddAdvisors appends advisors in order.
func (a *AdvisedSupport) AddAdvisors(advisors ...types.Advisor) error {
	for _, advisor := range advisors {
		if err := a.AddAdvisor(advisor); err != nil {
			return err
		}
	}
	return nil
}

func (a *AdvisedSupport) RemoveAdvisor(advisor types.Advisor) (bool, error) {
	index := a.IndexOf(advisor)
	if index < 0 {
		return false, nil
	}
	if err := a.RemoveAdvisorAt(index); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveAdvisorAt removes the advisor at index. Interfaces introduced by a
// removed introduction advisor stop being proxied.
func (a *AdvisedSupport) RemoveAdvisorAt(index int) error {
	a.mu.Lock()
	if a.config.Frozen {
		a.mu.Unlock()
		return types.ConfigurationErrorf("cannot remove advisor: configuration is frozen")
	}
	if index < 0 || index >= len(a.advisors) {
		size := len(a.advisors)
		a.mu.Unlock()
		return types.ConfigurationErrorf("advisor index %d is out of bounds: only have %d advisors", index, size)
	}
	removed := a.advisors[index]
	a.advisors = append(a.advisors[:index:index], a.advisors[index+1:]...)
	if ia, ok := removed.(types.IntroductionAdvisor); ok {
		for _, iface := range ia.Interfaces() {
			for i, t := range a.interfaces {
				if t == iface {
					a.interfaces = append(a.interfaces[:i:i], a.interfaces[i+1:]...)
					break
				}
			}
		}
	}
	a.mu.Unlock()
	a.adviceChanged()
	return nil
}

func (a *AdvisedSupport) IndexOf(advisor types.Advisor) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i, adv := range a.advisors {
		if sameObject(adv, advisor) {
			return i
		}
	}
	return -1
}

// ReplaceAdvisor replaces a with b and reports whether a was found.
func (a *AdvisedSupport) ReplaceAdvisor(old, replacement types.Advisor) (bool, error) {
	index := a.IndexOf(old)
	if index < 0 {
		return false, nil
	}
	if err := a.RemoveAdvisorAt(index); err != nil {
		return false, err
	}
	if err := a.AddAdvisorAt(index, replacement); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AdvisedSupport) AddAdvice(advice types.Advice) error {
	return a.AddAdviceAt(a.AdvisorCount(), advice)
}

// AddAdviceAt wraps advice through the adapter registry and inserts it at pos.
func (a *AdvisedSupport) AddAdviceAt(pos int, advice types.Advice) error {
	advisor, err := a.AdapterRegistry().Wrap(advice)
	if err != nil {
		return err
	}
	return a.AddAdvisorAt(pos, advisor)
}

func (a *AdvisedSupport) RemoveAdvice(advice types.Advice) (bool, error) {
	index := a.IndexOfAdvice(advice)
	if index < 0 {
		return false, nil
	}
	if err := a.RemoveAdvisorAt(index); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AdvisedSupport) IndexOfAdvice(advice types.Advice) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i, adv := range a.advisors {
		if sameObject(adv.Advice(), advice) {
			return i
		}
	}
	return -1
}

// AdvisorChain returns the interceptor chain for method on targetClass,
// computing and caching it on first use.
func (a *AdvisedSupport) AdvisorChain(method *types.Method, targetClass reflect.Type) ([]any, error) {
	key := chainKey{method: method.Key(), class: targetClass}
	a.chainMu.RLock()
	chain, ok := a.chainCache[key]
	gen := a.chainGen
	a.chainMu.RUnlock()
	if ok {
		return chain, nil
	}
	a.mu.RLock()
	factory := a.chainFactory
	a.mu.RUnlock()
	chain, err := factory.Chain(a, method, targetClass)
	if err != nil {
		return nil, err
	}
	a.chainMu.Lock()
	// a chain computed before an advice change is returned but not cached
	if a.chainGen == gen {
		a.chainCache[key] = chain
	}
	a.chainMu.Unlock()
	return chain, nil
}

func (a *AdvisedSupport) adviceChanged() {
	a.chainMu.Lock()
	a.chainCache = make(map[chainKey][]any)
	a.chainGen++
	a.chainMu.Unlock()
}

// CopyWith returns an independent configuration with the same flags and
// interfaces, ts as target source and advisors as advisor list. The copy has
// its own identifier and chain cache and is never frozen.
func (a *AdvisedSupport) CopyWith(ts types.TargetSource, advisors []types.Advisor) *AdvisedSupport {
	a.mu.RLock()
	config := a.config
	config.Frozen = false
	c := newAdvisedSupport(config)
	c.interfaces = append([]reflect.Type(nil), a.interfaces...)
	c.chainFactory = a.chainFactory
	a.mu.RUnlock()
	if ts == nil {
		ts = EmptyTarget
	}
	c.targetSource = ts
	c.advisors = append([]types.Advisor(nil), advisors...)
	return c
}

// Equal reports whether other has the same interfaces and advisors, in order,
// and an equal target source.
func (a *AdvisedSupport) Equal(other any) bool {
	o, ok := other.(*AdvisedSupport)
	if !ok {
		return false
	}
	if a == o {
		return true
	}
	ifaces, otherIfaces := a.ProxiedInterfaces(), o.ProxiedInterfaces()
	if len(ifaces) != len(otherIfaces) {
		return false
	}
	for i := range ifaces {
		if ifaces[i] != otherIfaces[i] {
			return false
		}
	}
	advisors, otherAdvisors := a.Advisors(), o.Advisors()
	if len(advisors) != len(otherAdvisors) {
		return false
	}
	for i := range advisors {
		if !equalObjects(advisors[i], otherAdvisors[i]) {
			return false
		}
	}
	return equalObjects(a.TargetSource(), o.TargetSource())
}

// ToProxyConfigString describes the configuration.
func (a *AdvisedSupport) ToProxyConfigString() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %d interfaces [", a.id, len(a.interfaces)))
	for i, iface := range a.interfaces {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(iface.String())
	}
	sb.WriteString(fmt.Sprintf("]; %d advisors [", len(a.advisors)))
	for i, adv := range a.advisors {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%v", adv))
	}
	sb.WriteString(fmt.Sprintf("]; targetSource [%v]; proxyTargetClass=%t; exposeProxy=%t; frozen=%t; opaque=%t; preFiltered=%t",
		a.targetSource, a.config.ProxyTargetClass, a.config.ExposeProxy, a.config.Frozen, a.config.Opaque, a.config.PreFiltered))
	return sb.String()
}

func (a *AdvisedSupport) String() string {
	return a.ToProxyConfigString()
}

// sameObject compares by identity, falling back to == for comparable values.
func sameObject(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Func, reflect.Map, reflect.Slice:
		return va.Pointer() == vb.Pointer()
	}
	return false
}
