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

package test

import (
	"fmt"
	"reflect"
	"sync"
)

// MapResolver is an in-memory types.ObjectResolver. It is safe for concurrent use.
type MapResolver struct {
	mu         sync.Mutex
	names      []string
	singletons map[string]any
	factories  map[string]func() any
	types      map[string]reflect.Type
	created    map[string]int
}

// NewMapResolver creates an empty resolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{
		singletons: make(map[string]any),
		factories:  make(map[string]func() any),
		types:      make(map[string]reflect.Type),
		created:    make(map[string]int),
	}
}

// Singleton registers a shared object.
func (r *MapResolver) Singleton(name string, obj any) *MapResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.singletons[name] = obj
	r.types[name] = reflect.TypeOf(obj)
	return r
}

// Prototype registers a factory called on every lookup. class is the declared type.
func (r *MapResolver) Prototype(name string, class reflect.Type, newFunc func() any) *MapResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.factories[name] = newFunc
	r.types[name] = class
	return r
}

// Created returns how many prototypes named name were built.
func (r *MapResolver) Created(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[name]
}

func (r *MapResolver) GetObject(name string) (any, error) {
	r.mu.Lock()
	if obj, ok := r.singletons[name]; ok {
		r.mu.Unlock()
		return obj, nil
	}
	newFunc, ok := r.factories[name]
	if ok {
		r.created[name]++
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no object named %s", name)
	}
	return newFunc(), nil
}

func (r *MapResolver) IsSingleton(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, prototype := r.factories[name]
	return !prototype
}

func (r *MapResolver) Type(name string) reflect.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.types[name]
}

func (r *MapResolver) NamesForType(t reflect.Type) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, name := range r.names {
		if typ := r.types[name]; typ != nil && typ.AssignableTo(t) {
			names = append(names, name)
		}
	}
	return names
}
