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

    `github.com/cloudwego/dbc/internal/deopt`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
)

// CompilerDeoptInfo is a deoptimization point of the function being
// compiled, turned into a deopt info once the code is complete.
type CompilerDeoptInfo struct {
    DeoptId    int
    Reason     deopt.Reason
    Flags      deopt.Flags
    Env        il.EnvId
    pcOffset   int
    dropped    int
    lazyResult bool
}

func newCompilerDeoptInfo(deoptId int, reason deopt.Reason, flags deopt.Flags, env il.EnvId) *CompilerDeoptInfo {
    return &CompilerDeoptInfo {
        DeoptId  : deoptId,
        Reason   : reason,
        Flags    : flags,
        Env      : env,
        pcOffset : -1,
    }
}

func (self *CompilerDeoptInfo) PcOffset() int            { return self.pcOffset }
func (self *CompilerDeoptInfo) LazyDeoptWithResult() bool { return self.lazyResult }

// MarkLazyDeoptWithResult records that the call result is on the stack when
// the frame deoptimizes lazily, so it gets a slot of its own.
func (self *CompilerDeoptInfo) MarkLazyDeoptWithResult() {
    self.lazyResult = true
}

// CompilerDeoptInfoWithStub is a deoptimization point reached through an
// out-of-line stub. DBC deoptimizes in line with a Deopt instruction, so no
// stub is ever generated.
type CompilerDeoptInfoWithStub struct {
    CompilerDeoptInfo
}

func (self *CompilerDeoptInfoWithStub) GenerateCode(_ *FlowGraphCompiler, index int) {
    panic(fmt.Sprintf("unreachable: deoptimization stub #%d", index))
}

type _EnvSlot struct {
    env il.EnvId
    idx int
}

// _Frames resolves environment locations. Arguments pushed for inlined calls
// have no location of their own and are assigned a slot in the outgoing
// argument area. The last dropped values of the innermost environment were
// popped by a callee and are not part of the frame.
type _Frames struct {
    envs    *il.EnvArena
    args    map[_EnvSlot]locs.Location
    inner   il.EnvId
    dropped int
}

func (self *_Frames) length(env il.EnvId) int {
    if env == self.inner {
        return self.envs.At(env).LengthWithoutArguments(self.dropped)
    } else {
        return self.envs.At(env).Length()
    }
}

func (self *_Frames) loc(env il.EnvId, i int) locs.Location {
    if loc, ok := self.args[_EnvSlot { env, i }]; ok {
        return loc
    } else {
        return self.envs.At(env).LocationAt(i)
    }
}

func (self *_Frames) allocateIncomingParameters(c *FlowGraphCompiler, env il.EnvId, height *int) {
    chain := self.envs.Chain(env)

    /* outermost environment first */
    for i := len(chain) - 1; i >= 0; i-- {
        e := self.envs.At(chain[i])
        for j := 0; j < self.length(chain[i]); j++ {
            if self.loc(chain[i], j).IsInvalid() && e.ValueAt(j).Tag == il.PushArgument {
                self.args[_EnvSlot { chain[i], j }] = locs.StackSlot(c.target.Layout.FrameSlotForVariableIndex(-*height))
                *height++
            }
        }
    }
}

func (self *_Frames) emitMaterializations(env il.EnvId, b *deopt.Builder) {
    for _, id := range self.envs.Chain(env) {
        e := self.envs.At(id)
        for i := 0; i < self.length(id); i++ {
            if self.loc(id, i).IsInvalid() && e.ValueAt(i).Tag == il.MaterializeObject {
                b.AddMaterialization(e.ValueAt(i))
            }
        }
    }
}

// CreateDeoptInfo describes the frames to rebuild, innermost first. Infos
// without an environment only consume an info number.
func (self *CompilerDeoptInfo) CreateDeoptInfo(c *FlowGraphCompiler, b *deopt.Builder) deopt.Info {
    if self.Env == il.NoEnv {
        b.SkipInfo()
        return nil
    }

    /* outgoing arguments of every inlined call */
    fr := &_Frames {
        envs    : c.graph.Envs,
        args    : make(map[_EnvSlot]locs.Location),
        inner   : self.Env,
        dropped : self.dropped,
    }
    height := c.StackSize()
    fr.allocateIncomingParameters(c, self.Env, &height)

    /* materializations come before the frames */
    fr.emitMaterializations(self.Env, b)
    b.MarkFrameStart()

    /* fixed part of the innermost frame */
    slot := 0
    cur := self.Env
    env := c.graph.Envs.At(cur)
    b.AddCallerFp(slot)
    b.AddReturnAddress(env.Function, self.DeoptId, slot + 1)
    b.AddPcMarker(nil, slot + 2)
    b.AddConstant(nil, slot + 3)

    /* objects to materialize must be visible to the GC */
    slot = b.EmitMaterializationArguments(slot + 4)

    /* the pending call result */
    if self.lazyResult {
        if self.Reason != deopt.DeoptAtCall {
            panic("compiler: lazy deoptimization with result outside of a call")
        }
        b.AddCopy(nil, locs.StackSlot(c.target.Layout.FrameSlotForVariableIndex(-height)), slot)
        slot++
    }

    /* locals and outgoing arguments of the innermost frame */
    for i := fr.length(cur) - 1; i >= env.FixedParameterCount; i-- {
        b.AddCopy(env.ValueAt(i), fr.loc(cur, i), slot)
        slot++
    }

    /* walk outwards */
    b.AddCallerFp(slot)
    slot++
    prev, cur := cur, env.Outer

    /* inlining callers resume after the inlined call */
    for cur != il.NoEnv {
        env = c.graph.Envs.At(cur)
        penv := c.graph.Envs.At(prev)
        b.AddReturnAddress(env.Function, il.ToDeoptAfter(env.DeoptId), slot)
        b.AddPcMarker(penv.Function, slot + 1)
        b.AddConstant(penv.Function, slot + 2)
        slot += 3

        /* the inlined call may have changed the arguments */
        for i := penv.FixedParameterCount - 1; i >= 0; i-- {
            b.AddCopy(penv.ValueAt(i), fr.loc(prev, i), slot)
            slot++
        }

        /* locals of this frame, its outgoing arguments are not included */
        for i := env.Length() - 1; i >= env.FixedParameterCount; i-- {
            b.AddCopy(env.ValueAt(i), fr.loc(cur, i), slot)
            slot++
        }

        /* next frame */
        b.AddCallerFp(slot)
        slot++
        prev, cur = cur, env.Outer
    }

    /* the outermost frame returns to the caller of the function */
    penv := c.graph.Envs.At(prev)
    b.AddCallerPc(slot)
    b.AddPcMarker(penv.Function, slot + 1)
    b.AddConstant(penv.Function, slot + 2)
    slot += 3

    /* incoming arguments */
    for i := penv.FixedParameterCount - 1; i >= 0; i-- {
        b.AddCopy(penv.ValueAt(i), fr.loc(prev, i), slot)
        slot++
    }
    return b.CreateDeoptInfo()
}

// FinalizeDeoptInfo builds the dense deoptimization table, one entry per
// deoptimization point in emission order.
func (self *FlowGraphCompiler) FinalizeDeoptInfo() *deopt.Table {
    if !self.IsOptimizing() && len(self.deoptInfos) != 0 {
        panic("compiler: unoptimized code has deoptimization points")
    }

    /* one builder for all the infos */
    objs := new(deopt.ObjectTable)
    tab := deopt.NewTable(objs)
    b := deopt.NewBuilder(self.target, deopt.IncomingArgs(self.Function()), objs)

    /* the info number is the table index */
    for _, v := range self.deoptInfos {
        tab.Add(deopt.Entry {
            PcOffset : v.pcOffset,
            Info     : v.CreateDeoptInfo(self, b),
            Reason   : v.Reason,
            Flags    : v.Flags,
        })
    }
    return tab
}
