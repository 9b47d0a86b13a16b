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


package compiler

import (
    `fmt`

    `github.com/cloudwego/dbc/internal/asm`
)

// BailoutError aborts the compilation of a function. The caller may retry
// with the unoptimized compiler.
type BailoutError struct {
    Function string
    Reason   string
}

func (self *BailoutError) Error() string {
    return fmt.Sprintf("bailout from %s: %s", self.Function, self.Reason)
}

func (self *FlowGraphCompiler) rescue(ep *error) {
    if val := recover(); val != nil {
        switch err := val.(type) {
            case *BailoutError    : *ep = err
            case asm.OperandError : *ep = &BailoutError { Function: self.name(), Reason: err.Error() }
            default               : panic(val)
        }
    }
}

// Bailout abandons the compilation, it never returns.
func (self *FlowGraphCompiler) Bailout(reason string) {
    panic(&BailoutError {
        Function : self.name(),
        Reason   : reason,
    })
}

func (self *FlowGraphCompiler) unreachable(ins fmt.Stringer) {
    panic(fmt.Sprintf("unreachable: %s", ins))
}
