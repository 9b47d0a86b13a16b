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

// stackBitmap is the compiler's own copy of the tagged spill slots of ls, so
// the summaries of the graph are never written to.
func (self *FlowGraphCompiler) stackBitmap(ls *locs.LocationSummary) *locs.BitmapBuilder {
    if ret, ok := self.bitmaps[ls]; ok {
        return ret
    }

    /* start from the slots marked by the register allocator */
    ret := new(locs.BitmapBuilder)
    if ls.HasStackBitmap() {
        ret = ls.StackBitmap().Clone()
    }

    /* keep it for the other safepoints of the instruction */
    self.bitmaps[ls] = ret
    return ret
}

// RecordSafepoint records the tagged frame slots at the current pc. Live
// registers of slow paths are appended after the spill area. Every safepoint
// of an instruction describes the same spill area.
func (self *FlowGraphCompiler) RecordSafepoint(ls *locs.LocationSummary, slowPathArgs int) {
    if ls == nil || !(self.IsOptimizing() || ls.LiveRegisters.HasUntaggedValues()) {
        return
    }

    /* spill area of optimized frames */
    spill := 0
    regs := &ls.LiveRegisters

    /* explicitly marked slots lie in the spill area */
    if self.IsOptimizing() {
        spill = self.graph.SpillSlotCount
    }

    /* the live registers are appended to a copy */
    if base := self.stackBitmap(ls); base.Length() > spill {
        panic(fmt.Sprintf("compiler: stack bitmap of %d bits exceeds the spill area of %d slots", base.Length(), spill))
    }

    /* cover the whole spill area */
    bitmap := self.stackBitmap(ls).Clone()
    bitmap.SetLength(spill)

    /* slow paths save the live registers, highest first */
    if !ls.AlwaysCalls() {
        for i := 0; i < regs.FpuRegisterCount(); i++ {
            bitmap.Append(false)
        }
        for cpu, i := regs.CpuRegisters(), len(regs.CpuRegisters()) - 1; i >= 0; i-- {
            bitmap.Append(regs.IsTagged(cpu[i]))
        }
    }

    /* arguments pushed by slow paths are tagged */
    for i := 0; i < slowPathArgs; i++ {
        bitmap.Append(true)
    }

    /* add the entry */
    self.stackmaps.AddEntry(self.asm.CodeSize(), bitmap, bitmap.Length() - spill)
}

// RecordAfterCall marks the point right after a call: the continuation in
// unoptimized code, a lazy deoptimization point in optimized code.
func (self *FlowGraphCompiler) RecordAfterCall(ins *il.Instr, hasResult bool) {
    self.RecordAfterCallHelper(ins.TokenPos, ins.DeoptId, ins.ArgumentCount(), hasResult, ins.Locs)
}

func (self *FlowGraphCompiler) RecordAfterCallHelper(tokenPos int, deoptId int, argc int, hasResult bool, ls *locs.LocationSummary) {
    self.RecordSafepoint(ls, 0)
    after := il.ToDeoptAfter(deoptId)

    /* unoptimized code resumes after the call */
    if !self.IsOptimizing() {
        self.AddCurrentDescriptor(codeinfo.K_deopt, after, tokenPos)
        return
    }

    /* the callee pops its arguments when the target requires it, so they
     * are no longer part of the innermost frame */
    if self.target.CalleeDropsArguments && self.pendingEnv != il.NoEnv {
        self.graph.Envs.At(self.pendingEnv).LengthWithoutArguments(self.pendingDrop + argc)
        self.pendingDrop += argc
    }

    /* lazy deoptimization point */
    info := self.AddDeoptIndexAtCall(after)
    if hasResult {
        info.MarkLazyDeoptWithResult()
    }

    /* needed for exception handling */
    self.AddCurrentDescriptor(codeinfo.K_other, after, tokenPos)
}

func (self *FlowGraphCompiler) AddDeoptIndexAtCall(deoptId int) *CompilerDeoptInfo {
    if !self.IsOptimizing() {
        panic("compiler: deopt index at call in unoptimized code")
    } else if self.intrinsic {
        panic("compiler: deopt index at call in intrinsic mode")
    }

    /* register the info */
    info := newCompilerDeoptInfo(deoptId, deopt.DeoptAtCall, 0, self.pendingEnv)
    info.pcOffset = self.asm.CodeSize()
    info.dropped = self.pendingDrop
    self.deoptInfos = append(self.deoptInfos, info)
    return info
}

// EmitDeopt emits an eager deoptimization, executed when the preceding
// check fails.
func (self *FlowGraphCompiler) EmitDeopt(deoptId int, reason deopt.Reason, flags deopt.Flags) *CompilerDeoptInfo {
    if !self.IsOptimizing() {
        panic("compiler: eager deoptimization in unoptimized code")
    } else if self.intrinsic {
        panic("compiler: eager deoptimization in intrinsic mode")
    }

    /* environments are immutable, sharing the pending one is a copy */
    info := newCompilerDeoptInfo(deoptId, reason, flags, self.pendingEnv)
    info.dropped = self.pendingDrop
    self.deoptInfos = append(self.deoptInfos, info)

    /* trap before deoptimizing if requested */
    if self.opts.TrapOnDeoptimization {
        self.asm.Trap()
    }

    /* the runtime finds the info by the pc after the instruction */
    self.asm.Deopt(0, 1)
    info.pcOffset = self.asm.CodeSize()
    return info
}

// mayBeSmi reports whether a tagged small integer is always assignable to
// the type, letting the runtime skip the full check for them.
func (self *FlowGraphCompiler) mayBeSmi(dst *object.AbstractType) bool {
    if dst.IsVoidType() || !dst.IsInstantiated() {
        return false
    } else if dst.IsDynamicType() {
        return true
    } else if cls := dst.TypeClass(); cls == nil || cls.NumTypeArguments != 0 {
        return false
    } else {
        return self.graph.Classes.Smi().IsSubtypeOf(cls)
    }
}

func (self *FlowGraphCompiler) cacheIndex(cache *object.SubtypeTestCache) int {
    if cache == nil {
        return self.asm.AddConstant(object.Null{})
    } else {
        return self.asm.AddConstant(cache)
    }
}

// GenerateAssertAssignable checks that the instance is assignable to dst at
// runtime. The instance stays on the stack as the result.
func (self *FlowGraphCompiler) GenerateAssertAssignable(tokenPos int, deoptId int, dst *object.AbstractType, name string, ls *locs.LocationSummary) *object.SubtypeTestCache {
    var cache *object.SubtypeTestCache

    /* instantiated types and uninstantiated types or type parameters get a
     * cache, malformed types fail without consulting one */
    if dst.IsMalformedOrMalbounded() {
        cache = nil
    } else if !dst.IsVoidType() && dst.IsInstantiated() {
        cache = object.NewSubtypeTestCache()
    } else if !dst.IsInstantiated() && (dst.IsTypeParameter() || dst.IsType()) {
        cache = object.NewSubtypeTestCache()
    }

    /* instance and the type arguments */
    if self.IsOptimizing() {
        self.asm.Push(ls.In(0).Reg())
        self.asm.Push(ls.In(1).Reg())
        self.asm.Push(ls.In(2).Reg())
    }

    /* type and name for the error message */
    self.asm.PushConstant(dst)
    self.asm.PushConstant(object.Str(name))

    /* malformed types always fail */
    if dst.IsMalformedOrMalbounded() {
        self.asm.BadTypeError()
    } else if self.mayBeSmi(dst) {
        self.asm.AssertAssignable(1, self.cacheIndex(cache))
    } else {
        self.asm.AssertAssignable(0, self.cacheIndex(cache))
    }

    /* the instance is both input and output, so the allocator does not keep
     * it alive across the call */
    if self.IsOptimizing() {
        self.stackBitmap(ls).Set(ls.Out().Reg(), true)
    }

    /* record the call */
    self.AddCurrentDescriptor(codeinfo.K_other, deoptId, tokenPos)
    self.RecordAfterCallHelper(tokenPos, deoptId, 0, true, ls)

    /* everything but the instance is popped */
    if self.IsOptimizing() {
        if !ls.Out().Equals(ls.In(0)) {
            panic("compiler: assert assignable must produce its instance")
        }
        self.asm.Drop1()
    }
    return cache
}
