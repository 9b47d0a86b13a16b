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
    `github.com/cloudwego/dbc/internal/object`
)

// Fixed registers of the native calling convention.
const (
    ArgsDescReg = 10
    ScratchReg  = 11
    ThreadReg   = 14
    PoolReg     = 15
)

// Offsets of the pending exception and stack trace in the thread structure.
const (
    ThreadExceptionOffset  = 0x40
    ThreadStackTraceOffset = 0x48
)

var gprTab = [16]x86_64.Register64 {
    x86_64.RAX, x86_64.RCX, x86_64.RDX, x86_64.RBX,
    x86_64.RSP, x86_64.RBP, x86_64.RSI, x86_64.RDI,
    x86_64.R8,  x86_64.R9,  x86_64.R10, x86_64.R11,
    x86_64.R12, x86_64.R13, x86_64.R14, x86_64.R15,
}

var reservedTab = [16]bool {
    4           : true,
    5           : true,
    ArgsDescReg : true,
    ThreadReg   : true,
    PoolReg     : true,
}

// Unsupported is raised when a move cannot be expressed.
type Unsupported struct {
    Reason string
}

func (self Unsupported) Error() string {
    return "x64: " + self.Reason
}

// MoveEmitter lowers resolved parallel moves to x86-64 instructions. Stack
// slots are addressed relative to RBP, pool objects relative to R15.
type MoveEmitter struct {
    Prog *x86_64.Program
    Pool *asm.ObjectPool
    busy bool
}

func NewMoveEmitter(p *x86_64.Program, pool *asm.ObjectPool) *MoveEmitter {
    return &MoveEmitter {
        Prog : p,
        Pool : pool,
    }
}

func isMemory(loc locs.Location) bool {
    return loc.IsMemory() || loc.IsExceptionRegister() || loc.IsStackTraceRegister()
}

func (self *MoveEmitter) operand(loc locs.Location) interface{} {
    switch loc.Kind() {
        case locs.K_register          : return self.gpr(loc.Reg())
        case locs.K_fpu_register      : return self.xmm(loc.Reg())
        case locs.K_stack_slot        : return x86_64.Ptr(x86_64.RBP, int32(loc.StackIndex() * 8))
        case locs.K_double_stack_slot : return x86_64.Ptr(x86_64.RBP, int32(loc.StackIndex() * 8))
        case locs.K_args_desc         : return gprTab[ArgsDescReg]
        case locs.K_exception         : return x86_64.Ptr(gprTab[ThreadReg], ThreadExceptionOffset)
        case locs.K_stack_trace       : return x86_64.Ptr(gprTab[ThreadReg], ThreadStackTraceOffset)
        default                       : panic("x64: invalid operand: " + loc.String())
    }
}

func (self *MoveEmitter) gpr(r int) x86_64.Register64 {
    if r < 0 || r >= len(gprTab) || reservedTab[r] {
        panic(fmt.Sprintf("x64: invalid register r%d", r))
    } else {
        return gprTab[r]
    }
}

func (self *MoveEmitter) xmm(r int) x86_64.XMMRegister {
    if r < 0 || r >= 16 {
        panic(fmt.Sprintf("x64: invalid register f%d", r))
    } else {
        return x86_64.XMMRegister(r)
    }
}

func (self *MoveEmitter) EmitMove(dst locs.Location, src locs.Location) {
    if src.IsConstant() {
        self.loadConstant(dst, src.Constant())
        return
    }

    /* memory to memory goes through the stack */
    s, d := self.operand(src), self.operand(dst)
    if isMemory(src) && isMemory(dst) {
        self.Prog.PUSHQ(s)
        self.Prog.POPQ(d)
    } else {
        self.Prog.MOVQ(s, d)
    }
}

func (self *MoveEmitter) loadConstant(dst locs.Location, c *locs.Constant) {
    d := self.operand(dst)

    /* unboxed doubles, only zero can be materialized without a temporary */
    if c.Rep == locs.R_unboxed_double {
        if v, ok := c.Value.(object.Double); ok && v.IsPositiveZero() && dst.IsFpuRegister() {
            self.Prog.XORPS(d, d)
            return
        } else {
            self.Bailout("Unsupported move")
        }
    }

    /* small integers are immediates */
    if v, ok := c.Value.(object.Smi); ok && int64(v) >= -(1 << 30) && int64(v) < (1 << 30) {
        self.Prog.MOVQ(int64(v) << 1, d)
        return
    }

    /* everything else comes from the object pool */
    mem := x86_64.Ptr(gprTab[PoolReg], int32(self.Pool.Add(c.Value) * 8))
    if isMemory(dst) {
        self.Prog.PUSHQ(mem)
        self.Prog.POPQ(d)
    } else {
        self.Prog.MOVQ(mem, d)
    }
}

func (self *MoveEmitter) EmitSwap(dst locs.Location, src locs.Location) {
    if !self.CanSwap(dst, src) {
        panic("x64: invalid swap: " + dst.String() + " <-> " + src.String())
    } else {
        self.Prog.XCHGQ(self.operand(src), self.operand(dst))
    }
}

// CanSwap accepts any pair of general purpose registers and stack slots with
// at least one register.
func (self *MoveEmitter) CanSwap(dst locs.Location, src locs.Location) bool {
    if !(dst.IsRegister() || dst.IsStackSlot()) || !(src.IsRegister() || src.IsStackSlot()) {
        return false
    } else {
        return dst.IsRegister() || src.IsRegister()
    }
}

func (self *MoveEmitter) AcquireScratch(blocked func(loc locs.Location) bool) (locs.Location, bool) {
    if loc := locs.RegisterLocation(ScratchReg); self.busy || blocked(loc) {
        return locs.NoLocation(), false
    } else {
        self.busy = true
        return loc, true
    }
}

func (self *MoveEmitter) ReleaseScratch(loc locs.Location) {
    if !loc.Equals(locs.RegisterLocation(ScratchReg)) || !self.busy {
        panic("x64: releasing a scratch register not acquired")
    } else {
        self.busy = false
    }
}

func (self *MoveEmitter) Bailout(reason string) {
    panic(Unsupported { Reason: reason })
}
