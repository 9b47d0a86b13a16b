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

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/cloudwego/dbc/internal/opts`
)

// dbcMoveEmitter lowers resolved moves to bytecode. Every register of the
// interpreter is a frame slot, so there is no scratch register: cycles are
// always broken with Swap.
type dbcMoveEmitter struct {
    c *FlowGraphCompiler
}

func (self *dbcMoveEmitter) EmitMove(dst locs.Location, src locs.Location) {
    a := self.c.asm
    if !dst.IsRegisterClass() {
        self.unsupported(dst, src)
    }

    /* pick by the source */
    switch src.Kind() {
        default: {
            self.unsupported(dst, src)
        }

        /* only incoming arguments are addressed as stack slots */
        case locs.K_stack_slot: {
            if src.StackIndex() <= self.c.target.Layout.ParamEndFromFp {
                self.unsupported(dst, src)
            }
            a.Move(dst.Reg(), -src.StackIndex())
        }

        /* plain register moves */
        case locs.K_register, locs.K_fpu_register: {
            a.Move(dst.Reg(), src.Reg())
        }

        /* pseudo registers */
        case locs.K_args_desc   : a.LoadArgDescriptorOpt(dst.Reg())
        case locs.K_exception   : a.MoveSpecial(dst.Reg(), asm.ExceptionSpecialIndex)
        case locs.K_stack_trace : a.MoveSpecial(dst.Reg(), asm.StackTraceSpecialIndex)

        /* constants, unboxed doubles are unboxed after loading */
        case locs.K_constant: {
            c := src.Constant()
            r := dst.Reg()

            /* tagged constants */
            if c.Rep != locs.R_unboxed_double {
                a.LoadConstant(r, c.Value)
                break
            }

            /* +0.0 has all bits clear */
            if v, ok := c.Value.(object.Double); ok && v.IsPositiveZero() {
                a.BitXor(r, r, r)
            } else {
                a.LoadConstant(r, c.Value)
                a.UnboxDouble(r, r)
            }
        }
    }
}

func (self *dbcMoveEmitter) EmitSwap(dst locs.Location, src locs.Location) {
    switch {
        case dst.IsRegisterClass() && src.IsRegisterClass() : self.c.asm.Swap(dst.Reg(), src.Reg())
        case dst.IsRegisterClass()                          : self.exchange(dst, src)
        case src.IsRegisterClass()                          : self.exchange(src, dst)
        default                                             : self.exchangeMemory(dst, src)
    }
}

/* frames are register files on DBC, there is no memory operand to exchange with */

func (self *dbcMoveEmitter) exchange(reg locs.Location, mem locs.Location) {
    panic(fmt.Sprintf("unreachable: exchange %s with %s", reg, mem))
}

func (self *dbcMoveEmitter) exchangeMemory(a locs.Location, b locs.Location) {
    panic(fmt.Sprintf("unreachable: exchange %s with %s", a, b))
}

func (self *dbcMoveEmitter) CanSwap(dst locs.Location, src locs.Location) bool {
    return dst.IsRegisterClass() && src.IsRegisterClass()
}

func (self *dbcMoveEmitter) AcquireScratch(_ func(locs.Location) bool) (locs.Location, bool) {
    return locs.NoLocation(), false
}

func (self *dbcMoveEmitter) ReleaseScratch(loc locs.Location) {
    panic("unreachable: release of scratch " + loc.String())
}

func (self *dbcMoveEmitter) Bailout(reason string) {
    self.c.Bailout(reason)
}

func (self *dbcMoveEmitter) unsupported(dst locs.Location, src locs.Location) {
    self.c.Bailout(fmt.Sprintf("unsupported move %s <- %s", dst, src))
}

// ResolveMoves lowers a single parallel move to bytecode, as if it appeared
// in optimized code. Unsupported moves are reported as a *BailoutError.
func ResolveMoves(pm *locs.ParallelMove, target *arch.Target, options *opts.Options) (code []asm.Instr, pool *asm.ObjectPool, err error) {
    fg := &il.FlowGraph {
        Parsed    : &il.ParsedFunction { Function: &object.Function { Name: "<moves>" } },
        Envs      : il.NewEnvArena(),
        Optimized : true,
    }

    /* a throwaway compiler owns the assembler */
    c := New(fg, target, options)
    defer c.rescue(&err)
    c.moves.EmitNativeCode(pm)
    return c.asm.Code(), c.asm.Pool, nil
}
