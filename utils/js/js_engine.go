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

// Package js runs the JavaScript predicates of script pointcuts on goja.
//
// The script is compiled once. Runtimes are pooled, each one has the script
// loaded, and every call is bounded by Config.ScriptMaxExecutionTime.
// Global properties of the config are visible to scripts as `global`.
package js

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rulego/aop/api/types"
)

const (
	//GlobalKey  global properties key,call them through the global.xx method
	GlobalKey = "global"
)

// Engine goja js engine
type Engine struct {
	vmPool  sync.Pool
	config  types.Config
	program *goja.Program
	vars    map[string]any
}

// New compiles script and checks that it defines every function in required.
// Compile errors and missing functions wrap types.ErrConfiguration.
func New(config types.Config, script string, vars map[string]any, required ...string) (*Engine, error) {
	program, err := goja.Compile("", script, true)
	if err != nil {
		return nil, types.ConfigurationErrorf("compile script: %v", err)
	}
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	e := &Engine{config: config, program: program, vars: vars}
	vm, err := e.newVm()
	if err != nil {
		return nil, types.ConfigurationErrorf("run script: %v", err)
	}
	for _, name := range required {
		if _, ok := goja.AssertFunction(vm.Get(name)); !ok {
			return nil, types.ConfigurationErrorf("script does not define function %s", name)
		}
	}
	e.vmPool.Put(vm)
	e.vmPool.New = func() any {
		vm, err := e.newVm()
		if err != nil {
			e.config.Logger.Printf("js vm error: %s", err.Error())
		}
		return vm
	}
	return e, nil
}

func (e *Engine) newVm() (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	for k, v := range e.vars {
		if err := vm.Set(k, v); err != nil {
			return vm, fmt.Errorf("set var %s: %w", k, err)
		}
	}
	if len(e.config.Properties) != 0 {
		if err := vm.Set(GlobalKey, e.config.Properties); err != nil {
			return vm, fmt.Errorf("set global properties: %w", err)
		}
	}
	timer := e.startTimeout(vm)
	_, err := vm.RunProgram(e.program)
	e.stopTimeout(timer)
	if err != nil {
		vm.ClearInterrupt()
	}
	return vm, err
}

// Execute calls the script function name with args and exports its result.
func (e *Engine) Execute(name string, args ...any) (out any, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("%s", caught)
		}
	}()

	vm := e.vmPool.Get().(*goja.Runtime)
	defer e.vmPool.Put(vm)

	f, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	params := make([]goja.Value, len(args))
	for i, v := range args {
		params[i] = vm.ToValue(v)
	}

	timer := e.startTimeout(vm)
	res, err := f(goja.Undefined(), params...)
	e.stopTimeout(timer)
	if err != nil {
		// an interrupted runtime must be cleared before it is reused
		vm.ClearInterrupt()
		return nil, err
	}
	return res.Export(), nil
}

// Predicate calls the script function name and requires a boolean result.
func (e *Engine) Predicate(name string, args ...any) (bool, error) {
	out, err := e.Execute(name, args...)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%s returned %T, want bool", name, out)
	}
	return result, nil
}

// startTimeout interrupts vm once ScriptMaxExecutionTime elapsed, nil when unbounded.
func (e *Engine) startTimeout(vm *goja.Runtime) *time.Timer {
	if e.config.ScriptMaxExecutionTime <= 0 {
		return nil
	}
	return time.AfterFunc(e.config.ScriptMaxExecutionTime, func() {
		vm.Interrupt("execution timeout")
	})
}

func (e *Engine) stopTimeout(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
