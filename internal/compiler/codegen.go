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

    `github.com/cloudwego/dbc/internal/codeinfo`
    `github.com/cloudwego/dbc/internal/deopt`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
)

type _CodeGen func(self *FlowGraphCompiler, ins *il.Instr)

var codegenTab = [il.NumTags]_CodeGen {
    il.GraphEntry         : (*FlowGraphCompiler).emitUnreachable,
    il.TargetEntry        : (*FlowGraphCompiler).emitUnreachable,
    il.JoinEntry          : (*FlowGraphCompiler).emitUnreachable,
    il.Goto               : (*FlowGraphCompiler).emitGoto,
    il.Branch             : (*FlowGraphCompiler).emitBranch,
    il.Return             : (*FlowGraphCompiler).emitReturn,
    il.Constant           : (*FlowGraphCompiler).emitConstant,
    il.Parameter          : (*FlowGraphCompiler).emitUnreachable,
    il.PushArgument       : (*FlowGraphCompiler).emitPushArgument,
    il.LoadLocal          : (*FlowGraphCompiler).emitLoadLocal,
    il.StoreLocal         : (*FlowGraphCompiler).emitStoreLocal,
    il.DropTemps          : (*FlowGraphCompiler).emitDropTemps,
    il.LoadField          : (*FlowGraphCompiler).emitLoadField,
    il.StoreInstanceField : (*FlowGraphCompiler).emitStoreInstanceField,
    il.StoreStaticField   : (*FlowGraphCompiler).emitStoreStaticField,
    il.StoreIndexed       : (*FlowGraphCompiler).emitStoreIndexed,
    il.BinarySmiOp        : (*FlowGraphCompiler).emitBinarySmiOp,
    il.CheckClass         : (*FlowGraphCompiler).emitCheckClass,
    il.UnboxDouble        : (*FlowGraphCompiler).emitUnboxDouble,
    il.StaticCall         : (*FlowGraphCompiler).emitStaticCall,
    il.InstanceCall       : (*FlowGraphCompiler).emitInstanceCall,
    il.AssertAssignable   : (*FlowGraphCompiler).emitAssertAssignable,
    il.MaterializeObject  : (*FlowGraphCompiler).emitUnreachable,
    il.ParallelMove       : (*FlowGraphCompiler).emitParallelMove,
}

func init() {
    for i, fn := range codegenTab {
        if fn == nil {
            panic("compiler: no code generator for " + il.Tag(i).String())
        }
    }
}

// EmitNativeCode emits the code of a single instruction.
func (self *FlowGraphCompiler) EmitNativeCode(ins *il.Instr) {
    if ins.Tag >= il.NumTags {
        panic(fmt.Sprintf("compiler: invalid instruction tag %d", ins.Tag))
    } else {
        codegenTab[ins.Tag](self, ins)
    }
}

func (self *FlowGraphCompiler) emitUnreachable(ins *il.Instr) {
    self.unreachable(ins)
}

func (self *FlowGraphCompiler) unoptimizedOnly(ins *il.Instr) {
    if self.IsOptimizing() {
        self.Bailout("unsupported in optimized code: " + ins.Tag.String())
    }
}

func (self *FlowGraphCompiler) optimizedOnly(ins *il.Instr) {
    if !self.IsOptimizing() {
        self.Bailout("unsupported in unoptimized code: " + ins.Tag.String())
    }
}

// inReg returns the register of the i-th input of ins.
func (self *FlowGraphCompiler) inReg(ins *il.Instr, i int) int {
    return ins.Locs.In(i).Reg()
}

func (self *FlowGraphCompiler) outReg(ins *il.Instr) int {
    return ins.Locs.Out().Reg()
}

/** Control Flow **/

func (self *FlowGraphCompiler) emitGoto(ins *il.Instr) {
    if ins.Moves != nil {
        self.moves.EmitNativeCode(ins.Moves)
    }

    /* deoptimizing instructions may be inserted before this one */
    if !self.IsOptimizing() && ins.DeoptId != il.NoDeoptId {
        self.AddCurrentDescriptor(codeinfo.K_deopt, ins.DeoptId, ins.TokenPos)
    }

    /* fall through if possible */
    if !self.CanFallThroughTo(ins.Target) {
        self.asm.Jump(self.labelOf(ins.Target))
    }
}

// emitBranch relies on IfTrue skipping the next instruction when the
// condition does not hold.
func (self *FlowGraphCompiler) emitBranch(ins *il.Instr) {
    if self.IsOptimizing() {
        self.asm.IfTrue(self.inReg(ins, 0))
    } else {
        self.asm.IfTrueTOS()
    }

    /* jump to the true successor, then to the false one */
    self.asm.Jump(self.labelOf(ins.TrueSucc))
    if !self.CanFallThroughTo(ins.FalseSucc) {
        self.asm.Jump(self.labelOf(ins.FalseSucc))
    }
}

func (self *FlowGraphCompiler) emitReturn(ins *il.Instr) {
    if self.IsOptimizing() {
        self.asm.Return(self.inReg(ins, 0))
    } else {
        self.asm.ReturnTOS()
    }
}

func (self *FlowGraphCompiler) emitParallelMove(ins *il.Instr) {
    self.moves.EmitNativeCode(ins.Moves)
}

/** Values **/

func (self *FlowGraphCompiler) emitConstant(ins *il.Instr) {
    if !self.IsOptimizing() {
        self.asm.PushConstant(ins.Value.Value)
        return
    }

    /* constants without a register are materialized by their users */
    if out := ins.Locs.Out(); out.IsRegisterClass() {
        (&dbcMoveEmitter { c: self }).EmitMove(out, locs.ConstantLocation(ins.Value))
    }
}

func (self *FlowGraphCompiler) emitPushArgument(ins *il.Instr) {
    if !self.IsOptimizing() {
        return
    }

    /* the argument is either a constant or in a register */
    if in := ins.Locs.In(0); in.IsConstant() {
        self.asm.PushConstant(in.Constant().Value)
    } else {
        self.asm.Push(in.Reg())
    }
}

func (self *FlowGraphCompiler) emitLoadLocal(ins *il.Instr) {
    self.unoptimizedOnly(ins)
    self.asm.Push(self.LocalIndex(ins.Index))
}

func (self *FlowGraphCompiler) emitStoreLocal(ins *il.Instr) {
    self.unoptimizedOnly(ins)
    if ins.Used {
        self.asm.StoreLocal(self.LocalIndex(ins.Index))
    } else {
        self.asm.PopLocal(self.LocalIndex(ins.Index))
    }
}

// emitDropTemps drops the temporaries below the value on the top of the
// stack, or the value as well when it is unused.
func (self *FlowGraphCompiler) emitDropTemps(ins *il.Instr) {
    self.unoptimizedOnly(ins)
    if ins.Used {
        self.asm.DropR(ins.Index)
    } else {
        self.asm.Drop(ins.Index + 1)
    }
}

/** Fields **/

func (self *FlowGraphCompiler) emitLoadField(ins *il.Instr) {
    off := self.fieldWords(ins.Field)
    if !self.IsOptimizing() {
        self.asm.LoadFieldTOS(off)
        return
    }

    /* wide offsets are stored in the next instruction */
    if fitsInt8(off) {
        self.asm.LoadField(self.outReg(ins), self.inReg(ins, 0), off)
    } else {
        self.asm.LoadFieldExt(self.outReg(ins), self.inReg(ins, 0))
        self.asm.Nop(off)
    }
}

func (self *FlowGraphCompiler) emitStoreInstanceField(ins *il.Instr) {
    off := self.fieldWords(ins.Field)
    if !self.IsOptimizing() {
        self.asm.StoreFieldTOS(off)
        return
    }

    /* wide offsets are stored in the next instruction */
    if fitsInt8(off) {
        self.asm.StoreField(self.inReg(ins, 0), off, self.inReg(ins, 1))
    } else {
        self.asm.StoreFieldExt(self.inReg(ins, 0), self.inReg(ins, 1))
        self.asm.Nop(off)
    }
}

func (self *FlowGraphCompiler) emitStoreStaticField(ins *il.Instr) {
    if idx := self.asm.AddConstant(ins.Field); self.IsOptimizing() {
        self.asm.StoreStatic(self.inReg(ins, 0), idx)
    } else {
        self.asm.StoreStaticTOS(idx)
    }
}

func (self *FlowGraphCompiler) emitStoreIndexed(ins *il.Instr) {
    if self.IsOptimizing() {
        self.asm.StoreIndexed(self.inReg(ins, 0), self.inReg(ins, 1), self.inReg(ins, 2))
    } else {
        self.asm.StoreIndexedTOS()
    }
}

/** Arithmetic and Checks **/

// emitBinarySmiOp relies on the overflowing operations skipping the next
// instruction when they succeed.
func (self *FlowGraphCompiler) emitBinarySmiOp(ins *il.Instr) {
    self.optimizedOnly(ins)
    out, lhs, rhs := self.outReg(ins), self.inReg(ins, 0), self.inReg(ins, 1)

    /* the operation itself */
    switch ins.Op {
        case il.SmiAdd    : self.asm.Add(out, lhs, rhs)
        case il.SmiSub    : self.asm.Sub(out, lhs, rhs)
        case il.SmiMul    : self.asm.Mul(out, lhs, rhs)
        case il.SmiBitAnd : self.asm.BitAnd(out, lhs, rhs)
        case il.SmiBitOr  : self.asm.BitOr(out, lhs, rhs)
        case il.SmiBitXor : self.asm.BitXor(out, lhs, rhs)
        default           : self.unreachable(ins)
    }

    /* deoptimize on overflow */
    if ins.Op.CanOverflow() {
        self.EmitDeopt(ins.DeoptId, deopt.DeoptBinarySmiOp, 0)
    }
}

// emitCheckClass emits the class ids right after the check, the check skips
// them and the deoptimization when the class matches.
func (self *FlowGraphCompiler) emitCheckClass(ins *il.Instr) {
    self.optimizedOnly(ins)
    self.asm.CheckCids(self.inReg(ins, 0), 0, len(ins.Cids))

    /* the class ids */
    for _, cid := range ins.Cids {
        self.asm.Nop(int(self.ToEmbeddableCid(cid, ins)))
    }

    /* hoisted checks are not retried after deoptimizing */
    if ins.Hoisted {
        self.EmitDeopt(ins.DeoptId, deopt.DeoptCheckClass, deopt.FlagHoistedCheck)
    } else {
        self.EmitDeopt(ins.DeoptId, deopt.DeoptCheckClass, 0)
    }
}

func (self *FlowGraphCompiler) emitUnboxDouble(ins *il.Instr) {
    self.optimizedOnly(ins)
    if !self.SupportsUnboxedDoubles() {
        self.Bailout("unboxed doubles are not supported by " + self.target.Name)
    }
    self.asm.UnboxDouble(self.outReg(ins), self.inReg(ins, 0))
}

/** Calls **/

func (self *FlowGraphCompiler) argsDescOf(ins *il.Instr) *object.ArgsDesc {
    if ins.ArgsDesc != nil {
        return ins.ArgsDesc
    } else {
        return &object.ArgsDesc { Count: ins.ArgumentCount() }
    }
}

func (self *FlowGraphCompiler) emitStaticCall(ins *il.Instr) {
    argc := ins.ArgumentCount()
    self.asm.PushConstant(ins.Function)
    self.asm.StaticCall(argc, self.asm.AddConstant(self.argsDescOf(ins)))

    /* unoptimized static calls may be patched */
    if self.IsOptimizing() {
        self.AddCurrentDescriptor(codeinfo.K_other, ins.DeoptId, ins.TokenPos)
    } else {
        self.AddCurrentDescriptor(codeinfo.K_unopt_static_call, ins.DeoptId, ins.TokenPos)
    }

    /* the result is on the stack */
    self.RecordAfterCall(ins, true)
    if self.IsOptimizing() {
        self.asm.PopLocal(self.outReg(ins))
    }
}

func (self *FlowGraphCompiler) emitInstanceCall(ins *il.Instr) {
    self.asm.InstanceCall(ins.ArgumentCount(), self.asm.AddConstant(ins.ICData))
    self.AddCurrentDescriptor(codeinfo.K_ic_call, ins.DeoptId, ins.TokenPos)

    /* the result is on the stack */
    self.RecordAfterCall(ins, true)
    if self.IsOptimizing() {
        self.asm.PopLocal(self.outReg(ins))
    }
}

func (self *FlowGraphCompiler) emitAssertAssignable(ins *il.Instr) {
    self.GenerateAssertAssignable(ins.TokenPos, ins.DeoptId, ins.Type, ins.DstName, ins.Locs)
}
