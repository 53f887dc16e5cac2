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
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rulego/aop/api/types"
)

var _ types.TargetSource = (*PoolingTargetSource)(nil)

const (
	// DefaultPoolMaxSize is the pool size used when none is configured.
	DefaultPoolMaxSize = 8
	// DefaultEvictionSpec is the cron spec of the idle eviction job.
	DefaultEvictionSpec = "@every 30s"
)

// PoolingConfig configures a PoolingTargetSource.
type PoolingConfig struct {
	// MaxSize is the maximum number of targets in use or idle at the same time.
	MaxSize int `json:"maxSize" yaml:"maxSize" toml:"maxSize"`
	// MaxIdleTime is how long a target may stay idle before eviction, 0 disables eviction.
	MaxIdleTime time.Duration `json:"maxIdleTime" yaml:"maxIdleTime" toml:"maxIdleTime"`
	// EvictionSpec is the cron spec of the eviction job, DefaultEvictionSpec when empty.
	EvictionSpec string `json:"evictionSpec" yaml:"evictionSpec" toml:"evictionSpec"`
}

type pooledTarget struct {
	target   any
	lastUsed time.Time
}

// PoolingTargetSource keeps a bounded pool of prototype targets. GetTarget
// blocks while MaxSize targets are in use, until one is released or ctx is done.
// Idle targets are evicted by a cron job.
// PoolingTargetSource 目标对象池，超过最大数量时阻塞等待
type PoolingTargetSource struct {
	config     PoolingConfig
	class      reflect.Type
	newTarget  func(ctx context.Context) (any, error)
	targetName string
	logger     types.Logger

	permits chan struct{}
	// shutdownCtx is cancelled by Close and wakes blocked GetTarget calls.
	shutdownCtx    context.Context
	cancelShutdown context.CancelFunc

	mu      sync.Mutex
	idle    []pooledTarget
	active  int
	cron    *cron.Cron
	closed  bool
}

// NewPoolingTargetSource creates a pool producing targets of class with newTarget.
func NewPoolingTargetSource(class reflect.Type, newTarget func(ctx context.Context) (any, error), config PoolingConfig, logger types.Logger) (*PoolingTargetSource, error) {
	if newTarget == nil {
		return nil, types.ConfigurationErrorf("pooling target source requires a target factory")
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultPoolMaxSize
	}
	if config.EvictionSpec == "" {
		config.EvictionSpec = DefaultEvictionSpec
	}
	p := &PoolingTargetSource{
		config:    config,
		class:     class,
		newTarget: newTarget,
		logger:    types.NewLogger(logger),
		permits:   make(chan struct{}, config.MaxSize),
	}
	p.shutdownCtx, p.cancelShutdown = context.WithCancel(context.Background())
	if config.MaxIdleTime > 0 {
		p.cron = cron.New()
		if _, err := p.cron.AddFunc(config.EvictionSpec, p.Evict); err != nil {
			p.cancelShutdown()
			return nil, types.ConfigurationErrorf("invalid eviction spec %q: %v", config.EvictionSpec, err)
		}
		p.cron.Start()
	}
	return p, nil
}

// NewResolverPoolingTargetSource creates a pool of the prototype-scoped object targetName.
func NewResolverPoolingTargetSource(resolver types.ObjectResolver, targetName string, config PoolingConfig, logger types.Logger) (*PoolingTargetSource, error) {
	if resolver == nil || targetName == "" {
		return nil, types.ConfigurationErrorf("pooling target source requires a resolver and a target name")
	}
	if resolver.IsSingleton(targetName) {
		return nil, types.ConfigurationErrorf("target %q must be prototype scoped", targetName)
	}
	p, err := NewPoolingTargetSource(resolver.Type(targetName), func(ctx context.Context) (any, error) {
		return resolver.GetObject(targetName)
	}, config, logger)
	if err != nil {
		return nil, err
	}
	p.targetName = targetName
	return p, nil
}

func (p *PoolingTargetSource) TargetClass() reflect.Type {
	return p.class
}

func (p *PoolingTargetSource) IsStatic() bool {
	return false
}

// GetTarget borrows a target, creating one when no idle target exists.
func (p *PoolingTargetSource) GetTarget(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx, cancel := combineContexts(ctx, p.shutdownCtx)
	defer cancel()
	select {
	case p.permits <- struct{}{}:
	case <-waitCtx.Done():
		if waitCtx.shutdown() {
			return nil, p.closedError()
		}
		return nil, waitCtx.Err()
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.permits
		return nil, p.closedError()
	}
	p.active++
	if n := len(p.idle); n > 0 {
		t := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return t.target, nil
	}
	p.mu.Unlock()

	target, err := p.newTarget(ctx)
	if err != nil {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		<-p.permits
		return nil, err
	}
	return target, nil
}

// ReleaseTarget returns target to the pool.
func (p *PoolingTargetSource) ReleaseTarget(target any) error {
	p.mu.Lock()
	p.active--
	closed := p.closed
	if !closed {
		p.idle = append(p.idle, pooledTarget{target: target, lastUsed: time.Now()})
	}
	p.mu.Unlock()
	<-p.permits
	if closed {
		return closeTarget(target)
	}
	return nil
}

// Evict closes targets idle for longer than MaxIdleTime.
func (p *PoolingTargetSource) Evict() {
	if p.config.MaxIdleTime <= 0 {
		return
	}
	deadline := time.Now().Add(-p.config.MaxIdleTime)
	var evicted []pooledTarget
	p.mu.Lock()
	kept := p.idle[:0]
	for _, t := range p.idle {
		if t.lastUsed.Before(deadline) {
			evicted = append(evicted, t)
		} else {
			kept = append(kept, t)
		}
	}
	p.idle = kept
	p.mu.Unlock()
	for _, t := range evicted {
		if err := closeTarget(t.target); err != nil {
			p.logger.Printf("evict pooled target %T error: %s", t.target, err.Error())
		}
	}
	if len(evicted) > 0 {
		p.logger.Printf("evicted %d idle targets of %v", len(evicted), p.class)
	}
}

// Active returns the number of borrowed targets.
func (p *PoolingTargetSource) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Idle returns the number of idle targets.
func (p *PoolingTargetSource) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// MaxSize returns the pool capacity.
func (p *PoolingTargetSource) MaxSize() int {
	return p.config.MaxSize
}

// Close stops eviction, wakes blocked GetTarget calls and closes idle
// targets. Targets released afterwards are closed.
func (p *PoolingTargetSource) Close() error {
	if p.cron != nil {
		p.cron.Stop()
	}
	p.cancelShutdown()
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()
	var firstErr error
	for _, t := range idle {
		if err := closeTarget(t.target); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *PoolingTargetSource) String() string {
	return fmt.Sprintf("PoolingTargetSource for %v, maxSize=%d", p.class, p.config.MaxSize)
}

func (p *PoolingTargetSource) closedError() error {
	return fmt.Errorf("pooling target source for %v is closed", p.class)
}

func closeTarget(target any) error {
	if c, ok := target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
