/*
 * Copyright 2024 The RuleGo Authors.
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

package aspect

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/runtime"
)

var _ types.Interceptor = (*Debug)(nil)

// Debug logs every call entering and exiting the proxies it advises.
// Each call gets an invocation id, so interleaved calls can be told apart.
// A panic is logged with its stack and then propagated.
// Debug 调试日志拦截器，记录调用的进入和退出
type Debug struct {
	// Logger receives the records, types.DefaultLogger() when nil.
	Logger types.Logger
}

func (aspect *Debug) Order() int {
	return 900
}

func (aspect *Debug) Kind() types.AdviceKind {
	return types.AdviceAround
}

func (aspect *Debug) Invoke(inv types.MethodInvocation) (any, error) {
	logger := types.NewLogger(aspect.Logger)
	id := uuid.Must(uuid.NewV4()).String()
	method := inv.Method()
	logger.Printf("[%s] In %s args=%v", id, method, inv.Arguments())
	start := time.Now()
	defer func() {
		if e := recover(); e != nil {
			logger.Printf("[%s] Panic %s: %v\n%s", id, method, e, runtime.Stack())
			panic(e)
		}
	}()
	result, err := inv.Proceed()
	if err != nil {
		logger.Printf("[%s] Out %s err=%v cost=%s", id, method, err, time.Since(start))
	} else {
		logger.Printf("[%s] Out %s result=%v cost=%s", id, method, result, time.Since(start))
	}
	return result, err
}
