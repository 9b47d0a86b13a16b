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


package x64

import (
    `fmt`

    `github.com/chenzhuoyu/iasm/x86_64`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/resolver`
    `golang.org/x/arch/x86/x86asm`
)

func rescue(ep *error) {
    if val := recover(); val != nil {
        if err, ok := val.(error); ok {
            *ep = err
        } else {
            panic(val)
        }
    }
}

// Assemble resolves the parallel move and returns the machine code.
func Assemble(pm *locs.ParallelMove, pool *asm.ObjectPool) (code []byte, err error) {
    p := x86_64.DefaultArch.CreateProgram()
    defer p.Free()
    defer rescue(&err)

    /* resolve and assemble */
    resolver.New(NewMoveEmitter(p, pool)).EmitNativeCode(pm)
    return p.Assemble(0), nil
}

// Disassemble decodes the machine code in AT&T syntax, one instruction per
// line.
func Disassemble(code []byte) ([]string, error) {
    var pc int
    var ret []string

    /* decode every instruction */
    for pc < len(code) {
        ins, err := x86asm.Decode(code[pc:], 64)
        if err != nil {
            return nil, fmt.Errorf("x64: invalid instruction at %#x: %w", pc, err)
        }
        ret = append(ret, fmt.Sprintf("%04x  %s", pc, x86asm.GNUSyntax(ins, uint64(pc), nil)))
        pc += ins.Len
    }
    return ret, nil
}
