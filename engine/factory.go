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

	"github.com/rulego/aop/api/types"
	reflect2 "github.com/rulego/aop/utils/reflect"
)

var (
	interfaceProviderType = reflect.TypeOf((*types.InterfaceProvider)(nil)).Elem()
	finalType             = reflect.TypeOf((*types.Final)(nil)).Elem()
)

// ProxyFactory builds proxies from its embedded configuration. Proxies share
// the configuration, so advisors added later apply to proxies already created.
// ProxyFactory 代理工厂
//
// Usage:
//
//	factory := engine.NewProxyFactoryFor(&greeterImpl{})
//	_ = factory.AddAdvice(logAdvice)
//	proxy, err := factory.Proxy()
type ProxyFactory struct {
	*AdvisedSupport
}

// NewProxyFactory creates a factory with an empty configuration.
func NewProxyFactory(opts ...types.Option) (*ProxyFactory, error) {
	config, err := NewAdvisedSupport(opts...)
	if err != nil {
		return nil, err
	}
	return &ProxyFactory{AdvisedSupport: config}, nil
}

// NewProxyFactoryFor creates a factory over a singleton target, proxying the
// interfaces the target declares through types.InterfaceProvider.
func NewProxyFactoryFor(target any, opts ...types.Option) (*ProxyFactory, error) {
	f, err := NewProxyFactory(opts...)
	if err != nil {
		return nil, err
	}
	f.SetTarget(target)
	if p, ok := target.(types.InterfaceProvider); ok {
		if err := f.SetInterfaces(p.ProxiedInterfaces()...); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Proxy creates a proxy over the factory configuration.
func (f *ProxyFactory) Proxy() (*Proxy, error) {
	return CreateProxy(f.AdvisedSupport)
}

// ProxyClass predicts the proxy type without creating a proxy.
func (f *ProxyFactory) ProxyClass() (ProxyType, error) {
	proxyType, _, err := resolveProxyType(f.AdvisedSupport)
	return proxyType, err
}

// CreateProxy selects the proxy strategy for config and creates the proxy.
// Interfaces that are configured, or declared by the target class through
// types.InterfaceProvider, give an interface proxy unless ProxyTargetClass is
// set. A target class that is itself an interface always gives an interface
// proxy. Otherwise the proxy covers the method set of the concrete class.
func CreateProxy(config *AdvisedSupport) (*Proxy, error) {
	proxyType, methods, err := resolveProxyType(config)
	if err != nil {
		return nil, err
	}
	return newProxy(config, proxyType, methods), nil
}

func resolveProxyType(config *AdvisedSupport) (ProxyType, []*types.Method, error) {
	ts := config.TargetSource()
	if config.AdvisorCount() == 0 && isEmptyTargetSource(ts) {
		return ProxyType{}, nil, types.ConfigurationErrorf("no advisors and no target source specified")
	}
	targetClass := ts.TargetClass()
	ifaces := config.ProxiedInterfaces()
	if !config.IsProxyTargetClass() {
		if len(ifaces) == 0 {
			ifaces = DetectInterfaces(targetClass)
		}
		if len(ifaces) > 0 {
			return interfaceProxyType(targetClass, ifaces)
		}
	}
	if targetClass != nil && targetClass.Kind() == reflect.Interface {
		return interfaceProxyType(targetClass, appendInterface(ifaces, targetClass))
	}
	return classProxyType(targetClass, ifaces)
}

func interfaceProxyType(targetClass reflect.Type, ifaces []reflect.Type) (ProxyType, []*types.Method, error) {
	var methods []*types.Method
	for _, iface := range ifaces {
		methods = append(methods, types.MethodsOf(iface)...)
	}
	return ProxyType{Strategy: InterfaceProxy, Class: targetClass, Interfaces: ifaces}, methods, nil
}

func classProxyType(class reflect.Type, ifaces []reflect.Type) (ProxyType, []*types.Method, error) {
	if class == nil {
		return ProxyType{}, nil, types.ConfigurationErrorf("target class is required for a class proxy: set an interface or a target")
	}
	if reflect2.Indirect(class).Kind() != reflect.Struct {
		return ProxyType{}, nil, types.ConfigurationErrorf("cannot create a class proxy for %v: not a struct type", class)
	}
	if class.Implements(finalType) || (class.Kind() == reflect.Struct && reflect.PtrTo(class).Implements(finalType)) {
		return ProxyType{}, nil, types.ConfigurationErrorf("cannot create a class proxy for final class %v", class)
	}
	methodSet := class
	if class.Kind() == reflect.Struct {
		methodSet = reflect.PtrTo(class)
	}
	methods := types.MethodsOf(methodSet)
	for _, iface := range ifaces {
		methods = append(methods, types.MethodsOf(iface)...)
	}
	return ProxyType{Strategy: ClassProxy, Class: class, Interfaces: ifaces}, methods, nil
}

// DetectInterfaces asks a zero instance of class for the interfaces it
// declares through types.InterfaceProvider.
func DetectInterfaces(class reflect.Type) []reflect.Type {
	if class == nil || class.Kind() == reflect.Interface {
		return nil
	}
	base := reflect2.Indirect(class)
	if base.Kind() != reflect.Struct {
		if class.Implements(interfaceProviderType) {
			return reflect.Zero(class).Interface().(types.InterfaceProvider).ProxiedInterfaces()
		}
		return nil
	}
	instance := reflect.New(base)
	if !instance.Type().Implements(interfaceProviderType) {
		return nil
	}
	var ifaces []reflect.Type
	for _, iface := range instance.Interface().(types.InterfaceProvider).ProxiedInterfaces() {
		if iface != nil && iface.Kind() == reflect.Interface {
			ifaces = appendInterface(ifaces, iface)
		}
	}
	return ifaces
}
