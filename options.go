/*
 * Copyright 2022 CloudWeGo Authors
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


package dbc

import (
    `fmt`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/sirupsen/logrus`
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithTarget selects the target to generate code for, either "dbc64" or
// "dbc32".
//
// The default value of this option is "dbc64".
func WithTarget(name string) Option {
    if _, err := arch.BytecodeTarget(name); err != nil {
        panic(fmt.Sprintf("dbc: invalid target: %q", name))
    } else {
        return func(o *opts.Options) { o.Target = name }
    }
}

// WithOptimizationThreshold sets the invocation count after which unoptimized
// code asks for optimization. The threshold of a function grows with its size,
// see SetOptimizationCounterScale.
//
// The default value of this option is "30000".
func WithOptimizationThreshold(n int) Option {
    if n < 0 {
        panic(fmt.Sprintf("dbc: invalid optimization threshold: %d", n))
    } else {
        return func(o *opts.Options) { o.OptimizationCounterThreshold = n }
    }
}

// WithReoptimizationThreshold sets the invocation count after which optimized
// code that may be reoptimized asks for it again.
//
// The default value of this option is "4000".
func WithReoptimizationThreshold(n int) Option {
    if n < 0 {
        panic(fmt.Sprintf("dbc: invalid reoptimization threshold: %d", n))
    } else {
        return func(o *opts.Options) { o.ReoptimizationCounterThreshold = n }
    }
}

// WithOptimizingCompiler enables or disables the optimizing compiler. When
// disabled, unoptimized code never counts invocations.
func WithOptimizingCompiler(enabled bool) Option {
    return func(o *opts.Options) { o.UseOptimizingCompiler = enabled }
}

// WithIntrinsics enables or disables the intrinsic code of recognized methods
// and implicit accessors.
func WithIntrinsics(enabled bool) Option {
    return func(o *opts.Options) { o.Intrinsify = enabled }
}

// WithTrapOnDeoptimization makes every deoptimization point trap
// unconditionally, which is useful to test the deoptimization paths.
func WithTrapOnDeoptimization(enabled bool) Option {
    return func(o *opts.Options) { o.TrapOnDeoptimization = enabled }
}

// WithUnboxedDoubles controls whether optimized code may keep doubles
// unboxed on targets that support it.
func WithUnboxedDoubles(enabled bool) Option {
    return func(o *opts.Options) { o.UnboxDoubles = enabled }
}

// WithArgumentTypeChecks makes implicit accessors check their argument types,
// which disables their inlined intrinsic bodies.
func WithArgumentTypeChecks(enabled bool) Option {
    return func(o *opts.Options) { o.ArgumentTypeChecks = enabled }
}

// WithTraceCompilation logs the disassembly of every compiled function.
func WithTraceCompilation(enabled bool) Option {
    return func(o *opts.Options) { o.TraceCompilation = enabled }
}

// WithLogger sets the logger of the compiler and the batch driver.
func WithLogger(log *logrus.Entry) Option {
    return func(o *opts.Options) { o.Logger = log }
}

// WithConcurrency sets how many functions CompileAll compiles at the same
// time.
//
// The default value of this option is "4".
func WithConcurrency(n int) Option {
    if n <= 0 {
        panic(fmt.Sprintf("dbc: invalid concurrency: %d", n))
    } else {
        return func(o *opts.Options) { o.Concurrency = n }
    }
}

// LoadConfig reads options from a TOML file. The returned option replaces
// every setting except the logger, options after it still apply.
func LoadConfig(path string) (Option, error) {
    cfg := opts.GetDefaultOptions()
    if err := cfg.LoadFile(path); err != nil {
        return nil, err
    }

    /* keep the logger of the caller */
    return func(o *opts.Options) {
        log := o.Logger
        *o = cfg
        o.Logger = log
    }, nil
}

// SetOptimizationCounterThreshold sets the default optimization threshold
// for all compilations from now on.
//
// This value can also be configured with the `DBC_OPTIMIZATION_COUNTER_THRESHOLD`
// environment variable.
//
// Returns the old opts.OptimizationCounterThreshold value.
func SetOptimizationCounterThreshold(n int) int {
    n, opts.OptimizationCounterThreshold = opts.OptimizationCounterThreshold, n
    return n
}

// SetOptimizationCounterScale sets how many invocations each basic block adds
// to the optimization threshold of a function.
//
// This value can also be configured with the `DBC_OPTIMIZATION_COUNTER_SCALE`
// environment variable.
//
// Returns the old opts.OptimizationCounterScale value.
func SetOptimizationCounterScale(n int) int {
    n, opts.OptimizationCounterScale = opts.OptimizationCounterScale, n
    return n
}

// SetConcurrency sets the default batch concurrency.
//
// This value can also be configured with the `DBC_CONCURRENCY` environment
// variable.
//
// Returns the old opts.Concurrency value.
func SetConcurrency(n int) int {
    n, opts.Concurrency = opts.Concurrency, n
    return n
}
