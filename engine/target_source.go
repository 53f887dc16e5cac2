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
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"reflect"

	"github.com/rulego/aop/api/types"
)

var (
	_ types.TargetSource = (*SingletonTargetSource)(nil)
	_ types.TargetSource = (*EmptyTargetSource)(nil)
	_ types.TargetSource = (*PrototypeTargetSource)(nil)
)

// SingletonTargetSource always returns the same target.
// SingletonTargetSource 总是返回同一个目标对象
type SingletonTargetSource struct {
	target any
}

// NewSingletonTargetSource wraps target.
func NewSingletonTargetSource(target any) *SingletonTargetSource {
	return &SingletonTargetSource{target: target}
}

func (s *SingletonTargetSource) TargetClass() reflect.Type {
	return reflect.TypeOf(s.target)
}

func (s *SingletonTargetSource) IsStatic() bool {
	return true
}

func (s *SingletonTargetSource) GetTarget(ctx context.Context) (any, error) {
	return s.target, nil
}

func (s *SingletonTargetSource) ReleaseTarget(target any) error {
	return nil
}

// Equal reports whether other is a SingletonTargetSource over an equal target.
func (s *SingletonTargetSource) Equal(other any) bool {
	o, ok := other.(*SingletonTargetSource)
	return ok && (s == o || equalObjects(s.target, o.target))
}

func (s *SingletonTargetSource) HashCode() uint64 {
	return hashObject(s.target)
}

func (s *SingletonTargetSource) String() string {
	return fmt.Sprintf("SingletonTargetSource for target object [%T]", s.target)
}

// EmptyTargetSource has no target. Calls reaching the end of the chain fail,
// so every method must be answered by an interceptor or an introduction.
type EmptyTargetSource struct {
	class reflect.Type
}

// EmptyTarget is the canonical EmptyTargetSource without a class.
var EmptyTarget = &EmptyTargetSource{}

// NewEmptyTargetSource returns an empty source reporting class as its target class.
func NewEmptyTargetSource(class reflect.Type) *EmptyTargetSource {
	if class == nil {
		return EmptyTarget
	}
	return &EmptyTargetSource{class: class}
}

func (s *EmptyTargetSource) TargetClass() reflect.Type {
	return s.class
}

func (s *EmptyTargetSource) IsStatic() bool {
	return true
}

func (s *EmptyTargetSource) GetTarget(ctx context.Context) (any, error) {
	return nil, nil
}

func (s *EmptyTargetSource) ReleaseTarget(target any) error {
	return nil
}

func (s *EmptyTargetSource) Equal(other any) bool {
	o, ok := other.(*EmptyTargetSource)
	return ok && s.class == o.class
}

func (s *EmptyTargetSource) HashCode() uint64 {
	if s.class == nil {
		return 0
	}
	return hashString(s.class.String())
}

func (s *EmptyTargetSource) String() string {
	return fmt.Sprintf("EmptyTargetSource: class [%v]", s.class)
}

// isEmptyTargetSource reports whether ts can never produce a target.
func isEmptyTargetSource(ts types.TargetSource) bool {
	if ts == nil {
		return true
	}
	_, ok := ts.(*EmptyTargetSource)
	return ok
}

// PrototypeTargetSource resolves a fresh target from the object resolver on
// every call. Released targets implementing io.Closer are closed.
// PrototypeTargetSource 每次调用都从对象容器获取一个新的目标对象
type PrototypeTargetSource struct {
	resolver   types.ObjectResolver
	targetName string
}

// NewPrototypeTargetSource creates a source for the prototype-scoped object targetName.
func NewPrototypeTargetSource(resolver types.ObjectResolver, targetName string) (*PrototypeTargetSource, error) {
	if resolver == nil || targetName == "" {
		return nil, types.ConfigurationErrorf("prototype target source requires a resolver and a target name")
	}
	if resolver.IsSingleton(targetName) {
		return nil, types.ConfigurationErrorf("target %q must be prototype scoped", targetName)
	}
	return &PrototypeTargetSource{resolver: resolver, targetName: targetName}, nil
}

func (s *PrototypeTargetSource) TargetName() string {
	return s.targetName
}

func (s *PrototypeTargetSource) TargetClass() reflect.Type {
	return s.resolver.Type(s.targetName)
}

func (s *PrototypeTargetSource) IsStatic() bool {
	return false
}

func (s *PrototypeTargetSource) GetTarget(ctx context.Context) (any, error) {
	return s.resolver.GetObject(s.targetName)
}

func (s *PrototypeTargetSource) ReleaseTarget(target any) error {
	if c, ok := target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *PrototypeTargetSource) Equal(other any) bool {
	o, ok := other.(*PrototypeTargetSource)
	return ok && s.targetName == o.targetName && equalObjects(s.resolver, o.resolver)
}

func (s *PrototypeTargetSource) HashCode() uint64 {
	return hashString(s.targetName)
}

func (s *PrototypeTargetSource) String() string {
	return "PrototypeTargetSource for target object [" + s.targetName + "]"
}

// equalObjects compares by Equal when available, by identity for pointers,
// and by == for other comparable values.
func equalObjects(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if e, ok := a.(types.Equaler); ok {
		return e.Equal(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func hashObject(v any) uint64 {
	if v == nil {
		return 0
	}
	if h, ok := v.(types.Hasher); ok {
		return h.HashCode()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		return uint64(rv.Pointer())
	default:
		return hashString(fmt.Sprintf("%T:%v", v, v))
	}
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
