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

    `fortio.org/safecast`
    `github.com/cloudwego/dbc/internal/object`
)

const (
    InstrSize = 4
)

// OperandError is raised when an operand does not fit its field.
type OperandError struct {
    Op    OpCode
    Field string
    Value int
}

func (self OperandError) Error() string {
    return fmt.Sprintf("operand %s of %s out of range: %d", self.Field, self.Op, self.Value)
}

// ObjectPool holds the objects referenced by the code, equal immediates and
// identical references share one entry.
type ObjectPool struct {
    objs []object.Object
}

func (self *ObjectPool) Add(v object.Object) int {
    for i, p := range self.objs {
        if object.IsSameObject(p, v) {
            return i
        }
    }
    return self.AddUnique(v)
}

func (self *ObjectPool) AddUnique(v object.Object) int {
    self.objs = append(self.objs, v)
    return len(self.objs) - 1
}

func (self *ObjectPool) At(i int) object.Object   { return self.objs[i] }
func (self *ObjectPool) Len() int                 { return len(self.objs) }
func (self *ObjectPool) Objects() []object.Object { return self.objs }

// Label is a jump target. References made before the label is bound are
// patched when it is bound.
type Label struct {
    pos   int
    bound bool
    refs  []int
}

func (self *Label) IsBound() bool  { return self.bound }
func (self *Label) IsLinked() bool { return len(self.refs) != 0 }

func (self *Label) Position() int {
    if !self.bound {
        panic("asm: label is not bound")
    } else {
        return self.pos
    }
}

// Assembler emits bytecode into a growable buffer.
type Assembler struct {
    code []Instr
    Pool *ObjectPool
}

func NewAssembler() *Assembler {
    return &Assembler { Pool: new(ObjectPool) }
}

func (self *Assembler) Code() []Instr {
    return self.code
}

// CodeSize returns the size of the code emitted so far, in bytes.
func (self *Assembler) CodeSize() int {
    return len(self.code) * InstrSize
}

func (self *Assembler) Emit(ins Instr) {
    self.code = append(self.code, ins)
}

func (self *Assembler) AddConstant(v object.Object) int {
    return self.Pool.Add(v)
}

func (self *Assembler) Bind(l *Label) {
    if l.bound {
        panic("asm: label is already bound")
    }

    /* bind the label to the current pc */
    l.pos = len(self.code)
    l.bound = true

    /* patch all the pending references */
    for _, pc := range l.refs {
        self.code[pc] = encodeT(self.code[pc].Op(), self.i24(self.code[pc].Op(), l.pos - pc))
    }

    /* clear the references */
    l.refs = nil
}

/** Operand Checking **/

func (self *Assembler) u8(op OpCode, field string, v int) uint8 {
    if r, err := safecast.Conv[uint8](v); err != nil {
        panic(OperandError { Op: op, Field: field, Value: v })
    } else {
        return r
    }
}

func (self *Assembler) i8(op OpCode, field string, v int) uint8 {
    if r, err := safecast.Conv[int8](v); err != nil {
        panic(OperandError { Op: op, Field: field, Value: v })
    } else {
        return uint8(r)
    }
}

func (self *Assembler) u16(op OpCode, field string, v int) uint16 {
    if r, err := safecast.Conv[uint16](v); err != nil {
        panic(OperandError { Op: op, Field: field, Value: v })
    } else {
        return r
    }
}

func (self *Assembler) i16(op OpCode, field string, v int) uint16 {
    if r, err := safecast.Conv[int16](v); err != nil {
        panic(OperandError { Op: op, Field: field, Value: v })
    } else {
        return uint16(r)
    }
}

func (self *Assembler) i24(op OpCode, v int) int32 {
    if v < -(1 << 23) || v >= 1 << 23 {
        panic(OperandError { Op: op, Field: "T", Value: v })
    } else {
        return int32(v)
    }
}

/** Encoding Helpers **/

func (self *Assembler) op0(op OpCode) {
    self.Emit(Instr(op))
}

func (self *Assembler) opA(op OpCode, a int) {
    self.Emit(encodeAD(op, self.u8(op, "A", a), 0))
}

func (self *Assembler) opD(op OpCode, d int) {
    self.Emit(encodeAD(op, 0, self.u16(op, "D", d)))
}

func (self *Assembler) opX(op OpCode, x int) {
    self.Emit(encodeAD(op, 0, self.i16(op, "X", x)))
}

func (self *Assembler) opAD(op OpCode, a int, d int) {
    self.Emit(encodeAD(op, self.u8(op, "A", a), self.u16(op, "D", d)))
}

func (self *Assembler) opAX(op OpCode, a int, x int) {
    self.Emit(encodeAD(op, self.u8(op, "A", a), self.i16(op, "X", x)))
}

func (self *Assembler) opABC(op OpCode, a int, b int, c int) {
    self.Emit(encodeABC(op, self.u8(op, "A", a), self.u8(op, "B", b), self.u8(op, "C", c)))
}

func (self *Assembler) opABY(op OpCode, a int, b int, y int) {
    self.Emit(encodeABC(op, self.u8(op, "A", a), self.u8(op, "B", b), self.i8(op, "Y", y)))
}

/** Instructions **/

func (self *Assembler) Trap()                       { self.op0(OP_Trap) }
func (self *Assembler) Nop(d int)                   { self.opD(OP_Nop, d) }
func (self *Assembler) Intrinsic(id int)            { self.opA(OP_Intrinsic, id) }
func (self *Assembler) Drop1()                      { self.op0(OP_Drop1) }
func (self *Assembler) Drop(n int)                  { self.opA(OP_Drop, n) }
func (self *Assembler) DropR(n int)                 { self.opA(OP_DropR, n) }
func (self *Assembler) Return(a int)                { self.opA(OP_Return, a) }
func (self *Assembler) ReturnTOS()                  { self.op0(OP_ReturnTOS) }
func (self *Assembler) Move(a int, x int)           { self.opAX(OP_Move, a, x) }
func (self *Assembler) Swap(a int, x int)           { self.opAX(OP_Swap, a, x) }
func (self *Assembler) Push(x int)                  { self.opX(OP_Push, x) }
func (self *Assembler) StoreLocal(x int)            { self.opX(OP_StoreLocal, x) }
func (self *Assembler) PopLocal(x int)              { self.opX(OP_PopLocal, x) }
func (self *Assembler) LoadArgDescriptor()          { self.op0(OP_LoadArgDescriptor) }
func (self *Assembler) LoadArgDescriptorOpt(a int)  { self.opA(OP_LoadArgDescriptorOpt, a) }
func (self *Assembler) MoveSpecial(a int, d int)    { self.opAD(OP_MoveSpecial, a, d) }
func (self *Assembler) Entry(n int)                 { self.opD(OP_Entry, n) }
func (self *Assembler) EntryOptimized(a int, d int) { self.opAD(OP_EntryOptimized, a, d) }
func (self *Assembler) HotCheck(a int, d int)       { self.opAD(OP_HotCheck, a, d) }
func (self *Assembler) StaticCall(a int, d int)     { self.opAD(OP_StaticCall, a, d) }
func (self *Assembler) InstanceCall(a int, d int)   { self.opAD(OP_InstanceCall, a, d) }
func (self *Assembler) LoadField(a, b, y int)       { self.opABY(OP_LoadField, a, b, y) }
func (self *Assembler) LoadFieldExt(a int, d int)   { self.opAD(OP_LoadFieldExt, a, d) }
func (self *Assembler) LoadFieldTOS(d int)          { self.opD(OP_LoadFieldTOS, d) }
func (self *Assembler) StoreField(a, b, c int)      { self.opABC(OP_StoreField, a, b, c) }
func (self *Assembler) StoreFieldExt(a int, d int)  { self.opAD(OP_StoreFieldExt, a, d) }
func (self *Assembler) StoreFieldTOS(d int)         { self.opD(OP_StoreFieldTOS, d) }
func (self *Assembler) StoreStatic(a int, d int)    { self.opAD(OP_StoreStatic, a, d) }
func (self *Assembler) StoreStaticTOS(d int)        { self.opD(OP_StoreStaticTOS, d) }
func (self *Assembler) StoreIndexed(a, b, c int)    { self.opABC(OP_StoreIndexed, a, b, c) }
func (self *Assembler) StoreIndexedTOS()            { self.op0(OP_StoreIndexedTOS) }
func (self *Assembler) Add(a, b, c int)             { self.opABC(OP_Add, a, b, c) }
func (self *Assembler) Sub(a, b, c int)             { self.opABC(OP_Sub, a, b, c) }
func (self *Assembler) Mul(a, b, c int)             { self.opABC(OP_Mul, a, b, c) }
func (self *Assembler) BitAnd(a, b, c int)          { self.opABC(OP_BitAnd, a, b, c) }
func (self *Assembler) BitOr(a, b, c int)           { self.opABC(OP_BitOr, a, b, c) }
func (self *Assembler) BitXor(a, b, c int)          { self.opABC(OP_BitXor, a, b, c) }
func (self *Assembler) UnboxDouble(a int, d int)    { self.opAD(OP_UnboxDouble, a, d) }
func (self *Assembler) CheckCids(a, b, c int)       { self.opABC(OP_CheckCids, a, b, c) }
func (self *Assembler) IfTrue(a int)                { self.opA(OP_IfTrue, a) }
func (self *Assembler) IfTrueTOS()                  { self.op0(OP_IfTrueTOS) }
func (self *Assembler) AssertAssignable(a, d int)   { self.opAD(OP_AssertAssignable, a, d) }
func (self *Assembler) BadTypeError()               { self.op0(OP_BadTypeError) }
func (self *Assembler) Deopt(a int, d int)          { self.opAD(OP_Deopt, a, d) }

func (self *Assembler) PushConstant(v object.Object) {
    self.opD(OP_PushConstant, self.AddConstant(v))
}

func (self *Assembler) LoadConstant(a int, v object.Object) {
    self.opAD(OP_LoadConstant, a, self.AddConstant(v))
}

func (self *Assembler) Jump(l *Label) {
    if l.bound {
        self.Emit(encodeT(OP_Jump, self.i24(OP_Jump, l.pos - len(self.code))))
    } else {
        l.refs = append(l.refs, len(self.code))
        self.Emit(encodeT(OP_Jump, 0))
    }
}
