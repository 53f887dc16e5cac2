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
	"sync"
	"time"
)

// combinedCancelContext is done when either the caller context or the
// shutdown context is done. Values come from the caller context.
// combinedCancelContext 调用方上下文或关闭上下文任一结束即结束
type combinedCancelContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	userCtx     context.Context
	shutdownCtx context.Context
	doneOnce    sync.Once

	mu  sync.RWMutex
	err error
}

// combineContexts returns the combined context and a func releasing it.
func combineContexts(userCtx, shutdownCtx context.Context) (*combinedCancelContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &combinedCancelContext{
		ctx:         ctx,
		cancel:      cancel,
		userCtx:     userCtx,
		shutdownCtx: shutdownCtx,
	}
	c.startMonitoring()
	return c, cancel
}

// startMonitoring registers AfterFunc callbacks on both parents, so no
// goroutine waits for them.
// startMonitoring 使用 AfterFunc 监控父上下文
func (c *combinedCancelContext) startMonitoring() {
	c.doneOnce.Do(func() {
		if c.userCtx.Err() != nil {
			c.setErr(c.userCtx.Err())
			c.cancel()
			return
		}
		if c.shutdownCtx.Err() != nil {
			c.setErr(c.shutdownCtx.Err())
			c.cancel()
			return
		}
		stopUser := context.AfterFunc(c.userCtx, func() {
			c.setErr(c.userCtx.Err())
			c.cancel()
		})
		stopShutdown := context.AfterFunc(c.shutdownCtx, func() {
			c.setErr(c.shutdownCtx.Err())
			c.cancel()
		})
		context.AfterFunc(c.ctx, func() {
			stopUser()
			stopShutdown()
		})
	})
}

// setErr keeps the first cause.
func (c *combinedCancelContext) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// shutdown reports whether the shutdown context ended the combined context.
func (c *combinedCancelContext) shutdown() bool {
	return c.shutdownCtx.Err() != nil && c.userCtx.Err() == nil
}

func (c *combinedCancelContext) Deadline() (time.Time, bool) {
	return c.userCtx.Deadline()
}

func (c *combinedCancelContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *combinedCancelContext) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return c.err
	}
	return c.ctx.Err()
}

func (c *combinedCancelContext) Value(key any) any {
	return c.userCtx.Value(key)
}
