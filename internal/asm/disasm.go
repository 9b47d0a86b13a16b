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


package asm

import (
    `fmt`
    `strings`
)

func (self Instr) String() string {
    op := self.Op()
    if op >= N_OpCodes {
        return fmt.Sprintf(".word %#08x", uint32(self))
    }

    /* format the operands */
    switch op.Format() {
        case F_0   : return op.String()
        case F_A   : return fmt.Sprintf("%s %d", op, self.A())
        case F_D   : return fmt.Sprintf("%s %d", op, self.D())
        case F_X   : return fmt.Sprintf("%s %d", op, self.X())
        case F_T   : return fmt.Sprintf("%s %+d", op, self.T())
        case F_AD  : return fmt.Sprintf("%s %d, %d", op, self.A(), self.D())
        case F_AX  : return fmt.Sprintf("%s %d, %d", op, self.A(), self.X())
        case F_ABC : return fmt.Sprintf("%s %d, %d, %d", op, self.A(), self.B(), self.C())
        case F_ABY : return fmt.Sprintf("%s %d, %d, %d", op, self.A(), self.B(), self.Y())
        default    : panic("unreachable")
    }
}

// Line is one disassembled instruction.
type Line struct {
    Pc      int
    Instr   Instr
    Comment string
}

func (self Line) String() string {
    if self.Comment == "" {
        return fmt.Sprintf("%04x  %s", self.Pc, self.Instr)
    } else {
        return fmt.Sprintf("%04x  %-32s ; %s", self.Pc, self.Instr, self.Comment)
    }
}

func comment(ins Instr, pc int, pool *ObjectPool) string {
    switch ins.Op() {
        case OP_PushConstant, OP_StoreStaticTOS   : return poolEntry(pool, ins.D())
        case OP_LoadConstant, OP_AssertAssignable : return poolEntry(pool, ins.D())
        case OP_StoreStatic, OP_StaticCall        : return poolEntry(pool, ins.D())
        case OP_InstanceCall                      : return poolEntry(pool, ins.D())
        case OP_Jump                              : return fmt.Sprintf("-> %04x", pc + ins.T() * InstrSize)
        default                                   : return ""
    }
}

func poolEntry(pool *ObjectPool, i int) string {
    if pool == nil || i >= pool.Len() {
        return fmt.Sprintf("pool[%d]", i)
    } else {
        return pool.At(i).String()
    }
}

// Disassemble decodes the code, annotating pool references when a pool is
// given.
func Disassemble(code []Instr, pool *ObjectPool) []Line {
    ret := make([]Line, len(code))
    for i, ins := range code {
        ret[i] = Line {
            Pc      : i * InstrSize,
            Instr   : ins,
            Comment : comment(ins, i * InstrSize, pool),
        }
    }
    return ret
}

func DisassembleString(code []Instr, pool *ObjectPool) string {
    var sb strings.Builder
    for _, v := range Disassemble(code, pool) {
        sb.WriteString(v.String())
        sb.WriteByte('\n')
    }
    return sb.String()
}
