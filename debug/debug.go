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


package debug

import (
    `sync/atomic`

    `github.com/cloudwego/dbc/internal/driver`
)

// A Stats records statistics about the compiler since the process started.
type Stats struct {
    Functions FunctionStats
    Code      CodeStats
}

// A FunctionStats counts compiled functions.
type FunctionStats struct {
    Compiled  int
    Optimized int
    Bailouts  int
    Fallbacks int
}

// A CodeStats records the size of the generated code and its metadata.
type CodeStats struct {
    Bytes      int
    DeoptInfos int
}

// GetStats returns statistics of the compiler.
func GetStats() Stats {
    return Stats {
        Functions: FunctionStats {
            Compiled  : int(atomic.LoadUint64(&driver.CompiledCount)),
            Optimized : int(atomic.LoadUint64(&driver.OptimizedCount)),
            Bailouts  : int(atomic.LoadUint64(&driver.BailoutCount)),
            Fallbacks : int(atomic.LoadUint64(&driver.FallbackCount)),
        },
        Code: CodeStats {
            Bytes      : int(atomic.LoadUint64(&driver.CodeSize)),
            DeoptInfos : int(atomic.LoadUint64(&driver.DeoptInfoCount)),
        },
    }
}
