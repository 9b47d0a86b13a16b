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


package opts

import (
    `os`
    `strconv`
)

const (
    _DefaultOptimizationCounterThreshold    = 30000
    _DefaultReoptimizationCounterThreshold  = 4000
    _DefaultOptimizationCounterScale        = 2000
    _DefaultMinOptimizationCounterThreshold = 5000
    _DefaultConcurrency                     = 4
)

var (
    OptimizationCounterThreshold    = parseOrDefault("DBC_OPTIMIZATION_COUNTER_THRESHOLD", _DefaultOptimizationCounterThreshold, 0)
    ReoptimizationCounterThreshold  = parseOrDefault("DBC_REOPTIMIZATION_COUNTER_THRESHOLD", _DefaultReoptimizationCounterThreshold, 0)
    OptimizationCounterScale        = parseOrDefault("DBC_OPTIMIZATION_COUNTER_SCALE", _DefaultOptimizationCounterScale, 0)
    MinOptimizationCounterThreshold = parseOrDefault("DBC_MIN_OPTIMIZATION_COUNTER_THRESHOLD", _DefaultMinOptimizationCounterThreshold, 0)
    Concurrency                     = parseOrDefault("DBC_CONCURRENCY", _DefaultConcurrency, 0)
)

var (
    UseOptimizingCompiler = parseBoolOrDefault("DBC_USE_OPTIMIZING_COMPILER", true)
    Intrinsify            = parseBoolOrDefault("DBC_INTRINSIFY", true)
    TrapOnDeoptimization  = parseBoolOrDefault("DBC_TRAP_ON_DEOPTIMIZATION", false)
    UnboxDoubles          = parseBoolOrDefault("DBC_UNBOX_DOUBLES", true)
    UnboxMints            = parseBoolOrDefault("DBC_UNBOX_MINTS", true)
    TraceCompilation      = parseBoolOrDefault("DBC_TRACE_COMPILATION", false)
)

func parseOrDefault(key string, def int, min int) int {
    if env := os.Getenv(key); env == "" {
        return def
    } else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
        panic("dbc: invalid value for " + key)
    } else if ret := int(val); ret <= min {
        panic("dbc: value too small for " + key)
    } else {
        return ret
    }
}

func parseBoolOrDefault(key string, def bool) bool {
    if env := os.Getenv(key); env == "" {
        return def
    } else if val, err := strconv.ParseBool(env); err != nil {
        panic("dbc: invalid value for " + key)
    } else {
        return val
    }
}
