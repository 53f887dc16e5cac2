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

// Package test provides advice and resolver fixtures for testing proxies.
// Package test 测试用的通知和对象解析器
package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/rulego/aop/api/types"
)

// Recorder collects events in order. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add records a formatted event.
func (r *Recorder) Add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Around records "around <Name> <method>" and proceeds.
type Around struct {
	Recorder *Recorder
	Name     string
	// OrderValue is returned by Order.
	OrderValue int
}

func (a *Around) Kind() types.AdviceKind { return types.AdviceAround }

func (a *Around) Order() int { return a.OrderValue }

func (a *Around) Invoke(inv types.MethodInvocation) (any, error) {
	a.Recorder.Add("around %s %s", a.Name, inv.Method().Name)
	return inv.Proceed()
}

// Before records "before <Name> <method>" and returns Err.
type Before struct {
	Recorder *Recorder
	Name     string
	Err      error
}

func (a *Before) Kind() types.AdviceKind { return types.AdviceBefore }

func (a *Before) Before(ctx context.Context, method *types.Method, args []any, target any) error {
	a.Recorder.Add("before %s %s", a.Name, method.Name)
	return a.Err
}

// Throws records "threw <err>" and returns Replace.
type Throws struct {
	Recorder *Recorder
	Replace  error
}

func (a *Throws) Kind() types.AdviceKind { return types.AdviceAfterThrowing }

func (a *Throws) AfterThrowing(ctx context.Context, err error, method *types.Method, args []any, target any) error {
	a.Recorder.Add("threw %v", err)
	return a.Replace
}
