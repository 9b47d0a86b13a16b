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
    `math`

    `github.com/cloudwego/dbc/internal/object`
)

// Value is the content of a frame slot or an expression stack entry. Unboxed
// values keep their raw bits.
type Value struct {
    Obj     object.Object
    Raw     uint64
    Unboxed bool
}

func Boxed(v object.Object) Value {
    return Value { Obj: v }
}

func UnboxedDouble(v float64) Value {
    return Value { Raw: math.Float64bits(v), Unboxed: true }
}

func (self Value) String() string {
    if self.Unboxed {
        return fmt.Sprintf("raw(%#x)", self.Raw)
    } else if self.Obj == nil {
        return "<empty>"
    } else {
        return self.Obj.String()
    }
}

// Emulator interprets the data movement subset of the bytecode. Frame slots
// are addressed relative to FP, arguments live at negative indices.
type Emulator struct {
    PC      int
    Code    []Instr
    Pool    *ObjectPool
    Fp      map[int]Value
    Sp      []Value
    Special [2]Value
    ArgDesc *object.ArgsDesc
    Result  Value
    Halted  bool
    DeoptPc int
}

func LoadProgram(code []Instr, pool *ObjectPool) *Emulator {
    return &Emulator {
        Code : code,
        Pool : pool,
        Fp   : make(map[int]Value),
    }
}

var dispatchTab = [N_OpCodes]func(e *Emulator, p Instr) {
    OP_Nop                  : (*Emulator).emu_OP_Nop,
    OP_Entry                : (*Emulator).emu_OP_Nop,
    OP_EntryOptimized       : (*Emulator).emu_OP_Nop,
    OP_HotCheck             : (*Emulator).emu_OP_Nop,
    OP_Drop1                : (*Emulator).emu_OP_Drop1,
    OP_Drop                 : (*Emulator).emu_OP_Drop,
    OP_DropR                : (*Emulator).emu_OP_DropR,
    OP_Jump                 : (*Emulator).emu_OP_Jump,
    OP_Return               : (*Emulator).emu_OP_Return,
    OP_ReturnTOS            : (*Emulator).emu_OP_ReturnTOS,
    OP_Move                 : (*Emulator).emu_OP_Move,
    OP_Swap                 : (*Emulator).emu_OP_Swap,
    OP_Push                 : (*Emulator).emu_OP_Push,
    OP_PushConstant         : (*Emulator).emu_OP_PushConstant,
    OP_LoadConstant         : (*Emulator).emu_OP_LoadConstant,
    OP_StoreLocal           : (*Emulator).emu_OP_StoreLocal,
    OP_PopLocal             : (*Emulator).emu_OP_PopLocal,
    OP_LoadArgDescriptor    : (*Emulator).emu_OP_LoadArgDescriptor,
    OP_LoadArgDescriptorOpt : (*Emulator).emu_OP_LoadArgDescriptorOpt,
    OP_MoveSpecial          : (*Emulator).emu_OP_MoveSpecial,
    OP_UnboxDouble          : (*Emulator).emu_OP_UnboxDouble,
    OP_BitXor               : (*Emulator).emu_OP_BitXor,
    OP_Add                  : (*Emulator).emu_OP_Add,
    OP_Sub                  : (*Emulator).emu_OP_Sub,
    OP_IfTrue               : (*Emulator).emu_OP_IfTrue,
    OP_IfTrueTOS            : (*Emulator).emu_OP_IfTrueTOS,
    OP_CheckCids            : (*Emulator).emu_OP_CheckCids,
    OP_Deopt                : (*Emulator).emu_OP_Deopt,
}

func (self *Emulator) Step() {
    if self.PC >= len(self.Code) {
        panic("emu: pc out of range")
    }

    /* fetch the next instruction */
    ins := self.Code[self.PC]
    self.PC++

    /* dispatch */
    if fn := dispatchTab[ins.Op()]; fn == nil {
        panic("emu: unsupported instruction: " + ins.String())
    } else {
        fn(self, ins)
    }
}

// Run executes until a return, a deoptimization or the end of the code.
func (self *Emulator) Run() {
    for !self.Halted && self.PC < len(self.Code) {
        self.Step()
    }
}

func (self *Emulator) push(v Value) {
    self.Sp = append(self.Sp, v)
}

func (self *Emulator) pop() (v Value) {
    if len(self.Sp) == 0 {
        panic("emu: stack underflow")
    }
    v = self.Sp[len(self.Sp) - 1]
    self.Sp = self.Sp[:len(self.Sp) - 1]
    return
}

func (self *Emulator) top() Value {
    if len(self.Sp) == 0 {
        panic("emu: stack underflow")
    } else {
        return self.Sp[len(self.Sp) - 1]
    }
}

func (self *Emulator) smi(reg int) int64 {
    if v, ok := self.Fp[reg].Obj.(object.Smi); !ok {
        panic(fmt.Sprintf("emu: FP[%d] is not a Smi: %s", reg, self.Fp[reg]))
    } else {
        return int64(v)
    }
}

func (self *Emulator) emu_OP_Nop(_ Instr) {
    /* no operation */
}

func (self *Emulator) emu_OP_Drop1(_ Instr) {
    self.pop()
}

func (self *Emulator) emu_OP_Drop(p Instr) {
    self.Drop(p.A())
}

func (self *Emulator) emu_OP_DropR(p Instr) {
    v := self.pop()
    self.Drop(p.A())
    self.push(v)
}

func (self *Emulator) Drop(n int) {
    for i := 0; i < n; i++ {
        self.pop()
    }
}

func (self *Emulator) emu_OP_Jump(p Instr) {
    self.PC += p.T() - 1
}

func (self *Emulator) emu_OP_Return(p Instr) {
    self.Result = self.Fp[p.A()]
    self.Halted = true
}

func (self *Emulator) emu_OP_ReturnTOS(_ Instr) {
    self.Result = self.pop()
    self.Halted = true
}

func (self *Emulator) emu_OP_Move(p Instr) {
    self.Fp[p.A()] = self.Fp[p.X()]
}

func (self *Emulator) emu_OP_Swap(p Instr) {
    a, x := p.A(), p.X()
    self.Fp[a], self.Fp[x] = self.Fp[x], self.Fp[a]
}

func (self *Emulator) emu_OP_Push(p Instr) {
    self.push(self.Fp[p.X()])
}

func (self *Emulator) emu_OP_PushConstant(p Instr) {
    self.push(Boxed(self.Pool.At(p.D())))
}

func (self *Emulator) emu_OP_LoadConstant(p Instr) {
    self.Fp[p.A()] = Boxed(self.Pool.At(p.D()))
}

func (self *Emulator) emu_OP_StoreLocal(p Instr) {
    self.Fp[p.X()] = self.top()
}

func (self *Emulator) emu_OP_PopLocal(p Instr) {
    self.Fp[p.X()] = self.pop()
}

func (self *Emulator) emu_OP_LoadArgDescriptor(_ Instr) {
    self.push(Boxed(self.ArgDesc))
}

func (self *Emulator) emu_OP_LoadArgDescriptorOpt(p Instr) {
    self.Fp[p.A()] = Boxed(self.ArgDesc)
}

func (self *Emulator) emu_OP_MoveSpecial(p Instr) {
    self.Fp[p.A()] = self.Special[p.D()]
}

func (self *Emulator) emu_OP_UnboxDouble(p Instr) {
    if v, ok := self.Fp[p.D()].Obj.(object.Double); !ok {
        panic(fmt.Sprintf("emu: FP[%d] is not a double", p.D()))
    } else {
        self.Fp[p.A()] = UnboxedDouble(float64(v))
    }
}

func (self *Emulator) emu_OP_BitXor(p Instr) {
    self.Fp[p.A()] = Value {
        Raw     : self.Fp[p.B()].Raw ^ self.Fp[p.C()].Raw,
        Unboxed : true,
    }
}

func (self *Emulator) arith(p Instr, v int64, ok bool) {
    if ok && object.Smi(v).FitsWord(8) {
        self.Fp[p.A()] = Boxed(object.Smi(v))
        self.PC++
    }
}

func (self *Emulator) emu_OP_Add(p Instr) {
    x, y := self.smi(p.B()), self.smi(p.C())
    r := x + y
    self.arith(p, r, (r > x) == (y > 0))
}

func (self *Emulator) emu_OP_Sub(p Instr) {
    x, y := self.smi(p.B()), self.smi(p.C())
    r := x - y
    self.arith(p, r, (r < x) == (y > 0))
}

func (self *Emulator) emu_OP_IfTrue(p Instr) {
    if self.Fp[p.A()].Obj != object.Bool(true) {
        self.PC++
    }
}

func (self *Emulator) emu_OP_IfTrueTOS(_ Instr) {
    if self.pop().Obj != object.Bool(true) {
        self.PC++
    }
}

// emu_OP_CheckCids skips the deoptimization following the class ids when the
// class of FP[rA] is one of them.
func (self *Emulator) emu_OP_CheckCids(p Instr) {
    cid := object.IllegalCid
    if v := self.Fp[p.A()]; !v.Unboxed && v.Obj != nil {
        cid = object.ClassIdOf(v.Obj)
    }

    /* the class ids are the operands of the next rC instructions */
    for i := 0; i < p.C(); i++ {
        if self.Code[self.PC + i].D() == cid {
            self.PC += p.C() + 1
            return
        }
    }

    /* fall into the deoptimization */
    self.PC += p.C()
}

// emu_OP_Deopt stops the emulation, the runtime would rebuild the frames
// described by the deopt info registered at DeoptPc.
func (self *Emulator) emu_OP_Deopt(_ Instr) {
    self.DeoptPc = self.PC * InstrSize
    self.Halted = true
}
