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

// Package aop provides a runtime, proxy-based method interception engine.
// Cross-cutting behavior such as logging, limits and metrics is attached to
// existing objects without modifying them.
//
// # Usage
//
// Proxy a single object with advice:
//
//	p, err := aop.ProxyFor(service, &aspect.Debug{})
//	result, err := p.Invoke("Greet", ctx, "bob")
//
// Bind a typed facade to the proxy:
//
//	type GreeterFacade struct {
//		*engine.Proxy
//		GreetFunc func(ctx context.Context, name string) (string, error)
//	}
//	facade, err := aop.Bind(p, &GreeterFacade{})
//	result, err := facade.GreetFunc(ctx, "bob")
//
// Auto-proxy the objects of a container from a settings file:
//
//	registry, _ := container.NewRegistry()
//	creator, err := aop.NewCreator("./autoproxy.yaml", autoproxy.WithResolver(registry))
//	registry.SetHooks(creator)
//
// Get a proxy created by a creator:
//
//	p, ok := aop.Get("greeter")
package aop

import (
	"context"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/autoproxy"
	"github.com/rulego/aop/engine"
)

// NewProxyFactory creates a proxy factory with an empty configuration.
func NewProxyFactory(opts ...types.Option) (*engine.ProxyFactory, error) {
	return engine.NewProxyFactory(opts...)
}

// ProxyFor creates a proxy over target with the given advisors or advice,
// applied in order.
// ProxyFor 为目标对象创建代理
func ProxyFor(target any, advice ...any) (*engine.Proxy, error) {
	return ProxyWithOptions(target, advice, nil)
}

// ProxyWithOptions is ProxyFor with engine options.
func ProxyWithOptions(target any, advice []any, opts []types.Option) (*engine.Proxy, error) {
	f, err := engine.NewProxyFactoryFor(target, opts...)
	if err != nil {
		return nil, err
	}
	for _, a := range advice {
		adv, err := f.AdapterRegistry().Wrap(a)
		if err != nil {
			return nil, err
		}
		if err := f.AddAdvisor(adv); err != nil {
			return nil, err
		}
	}
	return f.Proxy()
}

// Bind binds stub as the facade of p and returns it.
func Bind[T any](p *engine.Proxy, stub T) (T, error) {
	if err := p.Bind(stub); err != nil {
		var zero T
		return zero, err
	}
	return stub, nil
}

// As returns v as T. A proxy is converted to its bound facade when it has one.
func As[T any](v any) (T, bool) {
	if t, ok := v.(T); ok {
		return t, true
	}
	if p, ok := engine.ProxyOf(v); ok {
		if t, ok := p.Facade().(T); ok {
			return t, true
		}
		if t, ok := any(p).(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// CurrentProxy returns the proxy executing the current call, when the proxy
// exposes itself.
func CurrentProxy(ctx context.Context) (any, bool) {
	return engine.CurrentProxy(ctx)
}

// CurrentInvocation returns the current method invocation, when the
// ExposeInvocation interceptor is installed.
func CurrentInvocation(ctx context.Context) (types.MethodInvocation, bool) {
	return engine.CurrentInvocation(ctx)
}

// LoadSettings loads creator settings from a yaml, toml or json file.
func LoadSettings(path string) (autoproxy.Settings, error) {
	return autoproxy.LoadSettings(path)
}

// NewCreator creates an auto-proxy creator. When settingsPath is not empty
// the settings file is applied after opts.
// NewCreator 创建自动代理创建器
func NewCreator(settingsPath string, opts ...autoproxy.Option) (*autoproxy.Creator, error) {
	if settingsPath != "" {
		settings, err := autoproxy.LoadSettings(settingsPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, autoproxy.WithSettings(settings))
	}
	return autoproxy.NewCreator(opts...)
}

// Get returns a proxy of the default pool by object name or configuration id.
func Get(id string) (*engine.Proxy, bool) {
	_, p, ok := engine.DefaultPool.Find(id)
	return p, ok
}

// Del removes a proxy from the default pool.
func Del(name string) {
	engine.DefaultPool.Del(name)
}
