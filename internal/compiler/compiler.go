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

    `fortio.org/safecast`
    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/codeinfo`
    `github.com/cloudwego/dbc/internal/deopt`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/cloudwego/dbc/internal/resolver`
    `github.com/oleiade/lane`
    `github.com/sirupsen/logrus`
)

type State uint8

const (
    S_init State = iota
    S_intrinsic
    S_entry
    S_blocks
    S_done
    S_bailout
)

var stateNames = [...]string {
    S_init      : "init",
    S_intrinsic : "intrinsic",
    S_entry     : "entry",
    S_blocks    : "blocks",
    S_done      : "done",
    S_bailout   : "bailout",
}

func (self State) String() string {
    return stateNames[self]
}

// Result is everything the runtime needs to run a compiled function.
type Result struct {
    Function      *object.Function
    Optimized     bool
    Intrinsified  bool
    Code          []asm.Instr
    Pool          *asm.ObjectPool
    PcDescriptors *codeinfo.PcDescriptors
    StackMaps     *codeinfo.StackMaps
    DeoptTable    *deopt.Table
}

// FlowGraphCompiler generates the code of one function. It must not be
// reused, every compilation owns a fresh instance.
type FlowGraphCompiler struct {
    graph       *il.FlowGraph
    target      *arch.Target
    opts        *opts.Options
    log         *logrus.Entry
    asm         *asm.Assembler
    moves       *resolver.ParallelMoveResolver
    state       State
    intrinsic   bool
    order       []*il.Block
    labels      map[int]*asm.Label
    block       *il.Block
    next        *il.Block
    pendingEnv  il.EnvId
    pendingDrop int
    bitmaps     map[*locs.LocationSummary]*locs.BitmapBuilder
    deoptInfos  []*CompilerDeoptInfo
    pcdesc      codeinfo.PcDescriptorsBuilder
    stackmaps   codeinfo.StackMapsBuilder
}

func New(graph *il.FlowGraph, target *arch.Target, options *opts.Options) *FlowGraphCompiler {
    if !target.IsDBC() {
        panic(fmt.Sprintf("compiler: target %s does not run bytecode", target.Name))
    }

    /* create the compiler */
    ret := &FlowGraphCompiler {
        graph      : graph,
        target     : target,
        opts       : options,
        asm        : asm.NewAssembler(),
        labels     : make(map[int]*asm.Label),
        bitmaps    : make(map[*locs.LocationSummary]*locs.BitmapBuilder),
        pendingEnv : il.NoEnv,
    }

    /* per-function log entry */
    ret.moves = resolver.New(&dbcMoveEmitter { c: ret })
    ret.log = options.Log().WithField("function", ret.name())
    return ret
}

func (self *FlowGraphCompiler) name() string {
    if self.graph.Parsed == nil || self.graph.Parsed.Function == nil {
        return "<anonymous>"
    } else {
        return self.graph.Function().QualifiedName()
    }
}

func (self *FlowGraphCompiler) State() State                { return self.state }
func (self *FlowGraphCompiler) IsOptimizing() bool          { return self.graph.Optimized }
func (self *FlowGraphCompiler) Assembler() *asm.Assembler   { return self.asm }
func (self *FlowGraphCompiler) Target() *arch.Target        { return self.target }
func (self *FlowGraphCompiler) Function() *object.Function  { return self.graph.Function() }
func (self *FlowGraphCompiler) DeoptInfos() []*CompilerDeoptInfo { return self.deoptInfos }

/** Target Capabilities **/

func (self *FlowGraphCompiler) SupportsUnboxedDoubles() bool { return self.target.UnboxedDoubles && self.opts.UnboxDoubles }
func (self *FlowGraphCompiler) SupportsUnboxedInt64() bool   { return self.target.UnboxedInt64 && self.opts.UnboxMints }
func (self *FlowGraphCompiler) SupportsUnboxedSimd128() bool { return self.target.UnboxedSimd128 }
func (self *FlowGraphCompiler) SupportsHardwareDivision() bool { return self.target.HardwareDivision }
func (self *FlowGraphCompiler) CanConvertInt64ToDouble() bool  { return self.target.Int64ToDouble }

/** Intrinsic Mode **/

func (self *FlowGraphCompiler) IntrinsicMode() bool {
    return self.intrinsic
}

func (self *FlowGraphCompiler) EnterIntrinsicMode() {
    if self.intrinsic {
        panic("compiler: already in intrinsic mode")
    } else {
        self.intrinsic = true
    }
}

func (self *FlowGraphCompiler) ExitIntrinsicMode() {
    if !self.intrinsic {
        panic("compiler: not in intrinsic mode")
    } else {
        self.intrinsic = false
    }
}

/** Frame Layout **/

// StackSize is the number of frame slots below the fixed part of the frame.
func (self *FlowGraphCompiler) StackSize() int {
    if self.IsOptimizing() {
        return self.graph.SpillSlotCount
    } else {
        return self.graph.Parsed.NumStackLocals
    }
}

// LocalIndex converts a variable index into the operand addressing it. The
// interpreter frame grows upwards: locals are above the frame pointer and
// arguments below the fixed part of the frame.
func (self *FlowGraphCompiler) LocalIndex(varIndex int) int {
    if slot := self.target.Layout.FrameSlotForVariableIndex(varIndex); slot > self.target.Layout.ParamEndFromFp {
        return -slot
    } else {
        return self.target.Layout.FirstLocalFromFp - slot
    }
}

func (self *FlowGraphCompiler) CanOptimizeFunction() bool {
    return self.opts.CanOptimize()
}

func (self *FlowGraphCompiler) GetOptimizationThreshold() int {
    if self.IsOptimizing() {
        return self.opts.ReoptimizationCounterThreshold
    }

    /* scale with the size of the function */
    nb := len(self.order)
    thr := self.opts.OptimizationCounterScale * nb + self.opts.MinOptimizationCounterThreshold

    /* but never beyond the threshold */
    if thr > self.opts.OptimizationCounterThreshold {
        thr = self.opts.OptimizationCounterThreshold
    }
    return thr
}

// ToEmbeddableCid checks that a class id fits the 16-bit operands.
func (self *FlowGraphCompiler) ToEmbeddableCid(cid int, ins *il.Instr) uint16 {
    ret, err := safecast.Conv[uint16](cid)
    if err != nil {
        self.Bailout(fmt.Sprintf("class id %d of %s does not fit 16 bits", cid, ins))
    }
    return ret
}

/** Compilation **/

func (self *FlowGraphCompiler) transition(from State, to State) {
    if self.state != from {
        panic(fmt.Sprintf("compiler: invalid transition %s -> %s in state %s", from, to, self.state))
    } else {
        self.state = to
    }
}

// CompileGraph compiles the flow graph. A bailout is returned as a
// *BailoutError, invariant violations panic.
func (self *FlowGraphCompiler) CompileGraph() (ret *Result, err error) {
    if self.state != S_init {
        panic("compiler: CompileGraph called more than once")
    }

    /* catch bailouts */
    defer func() {
        if err != nil {
            self.state = S_bailout
            self.log.WithError(err).Debug("bailout")
        }
    }()

    /* convert bailouts into errors */
    defer self.rescue(&err)
    self.order = self.blockOrder()

    /* try the intrinsic first */
    self.transition(S_init, S_intrinsic)
    done := self.TryIntrinsify()

    /* a complete intrinsic replaces the body */
    if done {
        self.transition(S_intrinsic, S_done)
        return self.finalize(true), nil
    }

    /* frame entry */
    self.transition(S_intrinsic, S_entry)
    self.EmitFrameEntry()

    /* then all the blocks */
    self.transition(S_entry, S_blocks)
    self.VisitBlocks()
    self.transition(S_blocks, S_done)
    return self.finalize(false), nil
}

func (self *FlowGraphCompiler) EmitFrameEntry() {
    fn := self.Function()
    fixed := fn.NumFixedParameters

    /* invocation counter check */
    if self.CanOptimizeFunction() && fn.Optimizable && (!self.IsOptimizing() || self.graph.MayReoptimize) {
        if self.IsOptimizing() {
            self.asm.HotCheck(0, self.GetOptimizationThreshold())
        } else {
            self.asm.HotCheck(1, self.GetOptimizationThreshold())
        }
    }

    /* reserve the frame */
    if self.IsOptimizing() {
        self.asm.EntryOptimized(fixed, self.graph.SpillSlotCount)
        return
    }

    /* unoptimized code keeps the argument descriptor in a local */
    self.asm.Entry(self.graph.Parsed.NumStackLocals)
    if self.graph.Parsed.HasArgDescVar {
        self.asm.LoadArgDescriptor()
        self.asm.StoreLocal(self.LocalIndex(self.graph.Parsed.ArgDescVarIndex))
        self.asm.Drop(1)
    }
}

// blockOrder returns the blocks reachable from the graph entry in reverse
// postorder. The last successor of a block is laid out right after it.
func (self *FlowGraphCompiler) blockOrder() []*il.Block {
    type _Frame struct {
        bb   *il.Block
        next int
    }

    /* depth-first search */
    st := lane.NewStack()
    vis := map[int]bool { self.graph.GraphEntry().Id: true }
    post := make([]*il.Block, 0, self.graph.NumBlocks())

    /* visit the successors in order */
    for st.Push(&_Frame { bb: self.graph.GraphEntry() }); !st.Empty(); {
        fp := st.Head().(*_Frame)
        succ := fp.bb.Successors()

        /* all successors visited */
        if fp.next >= len(succ) {
            post = append(post, st.Pop().(*_Frame).bb)
            continue
        }

        /* next successor */
        bb := succ[fp.next]
        fp.next++

        /* descend if not visited */
        if !vis[bb.Id] {
            vis[bb.Id] = true
            st.Push(&_Frame { bb: bb })
        }
    }

    /* reverse the postorder */
    for i, j := 0, len(post) - 1; i < j; i, j = i + 1, j - 1 {
        post[i], post[j] = post[j], post[i]
    }
    return post
}

func (self *FlowGraphCompiler) labelOf(bb *il.Block) *asm.Label {
    if p, ok := self.labels[bb.Id]; ok {
        return p
    } else {
        p = new(asm.Label)
        self.labels[bb.Id] = p
        return p
    }
}

// CanFallThroughTo reports whether bb is laid out right after the block
// being compiled.
func (self *FlowGraphCompiler) CanFallThroughTo(bb *il.Block) bool {
    return self.next == bb
}

func (self *FlowGraphCompiler) VisitBlocks() {
    for i, bb := range self.order {
        self.block, self.next = bb, nil
        self.asm.Bind(self.labelOf(bb))

        /* remember the next block for fall-through */
        if i + 1 < len(self.order) {
            self.next = self.order[i + 1]
        }

        /* block entries emit no code */
        if !bb.Entry.Tag.IsBlockEntry() {
            panic(fmt.Sprintf("compiler: block B%d starts with %s", bb.Id, bb.Entry.Tag))
        }

        /* compile every instruction */
        for _, ins := range bb.Instrs {
            self.EmitInstructionPrologue(ins)
            self.EmitNativeCode(ins)
            self.EmitInstructionEpilogue(ins)
        }
    }

    /* every label must be resolved */
    self.block, self.next = nil, nil
    for id, l := range self.labels {
        if !l.IsBound() {
            panic(fmt.Sprintf("compiler: jump to unreachable block B%d", id))
        }
    }
}

func (self *FlowGraphCompiler) EmitInstructionPrologue(ins *il.Instr) {
    if self.IsOptimizing() {
        self.pendingEnv = ins.Env
        self.pendingDrop = 0
        return
    }

    /* unoptimized code marks where deoptimized frames resume */
    if ins.Tag != il.Goto && ins.CanDeoptimize() && ins.DeoptId != il.NoDeoptId {
        self.AddCurrentDescriptor(codeinfo.K_deopt, ins.DeoptId, ins.TokenPos)
    }
}

// EmitInstructionEpilogue pops unused values in unoptimized code, except for
// instructions managing the expression stack themselves.
func (self *FlowGraphCompiler) EmitInstructionEpilogue(ins *il.Instr) {
    if self.IsOptimizing() || !ins.Tag.IsDefinition() || ins.Used {
        return
    }

    /* these leave nothing on the stack */
    switch ins.Tag {
        case il.PushArgument       : return
        case il.StoreIndexed       : return
        case il.StoreStaticField   : return
        case il.StoreLocal         : return
        case il.StoreInstanceField : return
        case il.DropTemps          : return
    }

    /* drop the unused value */
    self.asm.Drop1()
}

func (self *FlowGraphCompiler) AddCurrentDescriptor(kind codeinfo.Kind, deoptId int, tokenPos int) {
    self.pcdesc.AddDescriptor(kind, self.asm.CodeSize(), deoptId, tokenPos, self.tryIndex())
}

func (self *FlowGraphCompiler) tryIndex() int {
    if self.block == nil {
        return -1
    } else {
        return self.block.TryIndex
    }
}

func (self *FlowGraphCompiler) FinalizePcDescriptors() *codeinfo.PcDescriptors {
    return self.pcdesc.Finalize()
}

func (self *FlowGraphCompiler) FinalizeStackMaps() *codeinfo.StackMaps {
    return self.stackmaps.Finalize()
}

func (self *FlowGraphCompiler) finalize(intrinsified bool) *Result {
    if self.intrinsic {
        panic("compiler: still in intrinsic mode")
    }

    /* build the tables */
    ret := &Result {
        Function      : self.Function(),
        Optimized     : self.IsOptimizing(),
        Intrinsified  : intrinsified,
        Code          : self.asm.Code(),
        Pool          : self.asm.Pool,
        PcDescriptors : self.FinalizePcDescriptors(),
        StackMaps     : self.FinalizeStackMaps(),
        DeoptTable    : self.FinalizeDeoptInfo(),
    }

    /* dump the code if requested */
    if self.opts.TraceCompilation {
        self.log.WithFields(logrus.Fields {
            "optimizing"  : ret.Optimized,
            "code_size"   : self.asm.CodeSize(),
            "deopt_infos" : ret.DeoptTable.Len(),
        }).Info("compiled\n" + asm.DisassembleString(ret.Code, ret.Pool))
    }
    return ret
}
