/*
 * Copyright 2023 The RuleGo Authors.
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
	"sort"
	"sync"
)

// Callbacks are invoked when proxies enter or leave a Pool.
type Callbacks struct {
	// OnNew is called after a proxy was stored.
	OnNew func(name string, proxy *Proxy)
	// OnDeleted is called after a proxy was removed.
	OnDeleted func(name string)
}

// DefaultPool is the default global pool of named proxies.
// DefaultPool 默认的全局代理池
var DefaultPool = NewPool()

// Pool keeps the proxies created for named objects, so they can be inspected
// and reconfigured at runtime, for example by the admin endpoint.
// Pool 按名称保存已创建的代理，可在运行时查看和修改
//
// Key Features:
// 主要特性：
//   - Concurrent-safe proxy storage using sync.Map  使用 sync.Map 的并发安全存储
//   - Callback-based lifecycle events  基于回调的生命周期事件
//   - Lookup by object name or by configuration id  按对象名称或配置 ID 查找
type Pool struct {
	// entries maps object names to *Proxy values.
	entries sync.Map

	// Callbacks provides hooks for proxy lifecycle events.
	Callbacks Callbacks
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Put stores proxy under name, replacing any previous entry.
func (g *Pool) Put(name string, proxy *Proxy) {
	if name == "" || proxy == nil {
		return
	}
	g.entries.Store(name, proxy)
	if g.Callbacks.OnNew != nil {
		g.Callbacks.OnNew(name, proxy)
	}
}

// Get retrieves a proxy by object name.
func (g *Pool) Get(name string) (*Proxy, bool) {
	v, ok := g.entries.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Proxy), true
}

// Find retrieves a proxy by object name or configuration id.
func (g *Pool) Find(key string) (string, *Proxy, bool) {
	if p, ok := g.Get(key); ok {
		return key, p, true
	}
	var (
		foundName  string
		foundProxy *Proxy
	)
	g.entries.Range(func(k, v any) bool {
		if p := v.(*Proxy); p.ID() == key {
			foundName, foundProxy = k.(string), p
			return false
		}
		return true
	})
	return foundName, foundProxy, foundProxy != nil
}

// Del removes a proxy by object name.
func (g *Pool) Del(name string) {
	if _, ok := g.entries.LoadAndDelete(name); ok && g.Callbacks.OnDeleted != nil {
		g.Callbacks.OnDeleted(name)
	}
}

// Names returns the stored object names, sorted.
func (g *Pool) Names() []string {
	var names []string
	g.entries.Range(func(k, v any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Range calls f for every stored proxy until f returns false.
func (g *Pool) Range(f func(name string, proxy *Proxy) bool) {
	g.entries.Range(func(k, v any) bool {
		return f(k.(string), v.(*Proxy))
	})
}

// Len returns the number of stored proxies.
func (g *Pool) Len() int {
	n := 0
	g.entries.Range(func(k, v any) bool {
		n++
		return true
	})
	return n
}
