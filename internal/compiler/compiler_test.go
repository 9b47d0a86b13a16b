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
    `io`
    `testing`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/codeinfo`
    `github.com/cloudwego/dbc/internal/deopt`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/google/go-cmp/cmp`
    `github.com/sirupsen/logrus`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
    `golang.org/x/sync/errgroup`
)

var nextId int

func mk(tag il.Tag, ins ...*il.Instr) *il.Instr {
    nextId++
    return &il.Instr {
        Tag      : tag,
        Id       : nextId,
        DeoptId  : il.NoDeoptId,
        TokenPos : il.NoTokenPos,
        Env      : il.NoEnv,
        Used     : true,
        Inputs   : ins,
    }
}

func kval(v object.Object) *il.Instr {
    ret := mk(il.Constant)
    ret.Value = &locs.Constant { Value: v }
    return ret
}

func gotoB(bb *il.Block) *il.Instr {
    ret := mk(il.Goto)
    ret.Target = bb
    return ret
}

func summary(kind locs.CallKind, out locs.Location, ins ...locs.Location) *locs.LocationSummary {
    ls := locs.NewLocationSummary(len(ins), 0, kind)
    ls.Output = out
    copy(ls.Inputs, ins)
    return ls
}

func reg(r int) locs.Location {
    return locs.RegisterLocation(r)
}

func block(id int, ins ...*il.Instr) *il.Block {
    entry := mk(il.TargetEntry)
    if id == 0 {
        entry.Tag = il.GraphEntry
    }
    return &il.Block { Id: id, Entry: entry, Instrs: ins, TryIndex: -1 }
}

// linear creates a graph entry falling through to a single body block.
func linear(fn *object.Function, optimized bool, envs *il.EnvArena, body ...*il.Instr) *il.FlowGraph {
    b1 := block(1, body...)
    if envs == nil {
        envs = il.NewEnvArena()
    }
    return &il.FlowGraph {
        Parsed    : &il.ParsedFunction { Function: fn },
        Blocks    : []*il.Block { block(0, gotoB(b1)), b1 },
        Envs      : envs,
        Classes   : object.NewClassTable(),
        Optimized : optimized,
    }
}

func testOptions() *opts.Options {
    log := logrus.New()
    log.SetOutput(io.Discard)
    ret := opts.GetDefaultOptions()
    ret.Logger = logrus.NewEntry(log)
    return &ret
}

func compileWith(t *testing.T, g *il.FlowGraph, target arch.Target, o *opts.Options) *Result {
    ret, err := New(g, &target, o).CompileGraph()
    require.NoError(t, err)
    return ret
}

func compile(t *testing.T, g *il.FlowGraph) *Result {
    return compileWith(t, g, arch.DBC64(), testOptions())
}

func opsOf(code []asm.Instr) []asm.OpCode {
    ret := make([]asm.OpCode, len(code))
    for i, v := range code { ret[i] = v.Op() }
    return ret
}

func TestCompiler_UnoptimizedBranch(t *testing.T) {
    for _, tc := range []struct {
        cond object.Bool
        want object.Smi
    } {
        { true, 1 },
        { false, 2 },
    } {
        fn := &object.Function { Name: "pick" }
        b2 := block(2, kval(object.Smi(1)), mk(il.Return))
        b3 := block(3, kval(object.Smi(2)), mk(il.Return))
        br := mk(il.Branch)
        br.TrueSucc, br.FalseSucc = b2, b3
        b1 := block(1, kval(tc.cond), br)

        /* the false successor follows the branch */
        g := linear(fn, false, nil)
        g.Blocks = []*il.Block { block(0, gotoB(b1)), b1, b2, b3 }
        res := compile(t, g)
        assert.Equal(t, []asm.OpCode {
            asm.OP_Entry,
            asm.OP_PushConstant,
            asm.OP_IfTrueTOS,
            asm.OP_Jump,
            asm.OP_PushConstant,
            asm.OP_ReturnTOS,
            asm.OP_PushConstant,
            asm.OP_ReturnTOS,
        }, opsOf(res.Code))

        /* run it */
        emu := asm.LoadProgram(res.Code, res.Pool)
        emu.Run()
        require.True(t, emu.Halted)
        assert.Equal(t, asm.Boxed(tc.want), emu.Result)
        assert.Zero(t, res.DeoptTable.Len())
        assert.False(t, res.Optimized)
    }
}

func TestCompiler_UnoptimizedLocals(t *testing.T) {
    fn := &object.Function { Name: "locals", NumFixedParameters: 1 }
    ld := mk(il.LoadLocal)
    ld.Index = 1
    st := mk(il.StoreLocal, ld)
    st.Index = -1
    st.Used = false
    tmp := mk(il.LoadLocal)
    tmp.Index = -1
    dt := mk(il.DropTemps, tmp)
    dt.Index = 2
    k := kval(object.Null{})
    k.Used = false

    /* the argument descriptor is saved in a local */
    g := linear(fn, false, nil, ld, st, tmp, kval(object.Smi(0)), dt, k, kval(object.Smi(7)), mk(il.Return))
    g.Parsed.NumStackLocals = 2
    g.Parsed.HasArgDescVar = true
    g.Parsed.ArgDescVarIndex = 0
    res := compile(t, g)

    /* check the operands */
    code := res.Code
    require.Equal(t, []asm.OpCode {
        asm.OP_Entry,
        asm.OP_LoadArgDescriptor,
        asm.OP_StoreLocal,
        asm.OP_Drop,
        asm.OP_Push,
        asm.OP_PopLocal,
        asm.OP_Push,
        asm.OP_PushConstant,
        asm.OP_DropR,
        asm.OP_PushConstant,
        asm.OP_Drop1,
        asm.OP_PushConstant,
        asm.OP_ReturnTOS,
    }, opsOf(code))
    assert.Equal(t, 2, code[0].D())
    assert.Equal(t, 0, code[2].X())
    assert.Equal(t, -5, code[4].X())
    assert.Equal(t, 1, code[5].X())
    assert.Equal(t, 1, code[6].X())
    assert.Equal(t, 2, code[8].A())
}

func TestCompiler_UnoptimizedStaticCall(t *testing.T) {
    fn := &object.Function { Name: "caller" }
    callee := &object.Function { Name: "callee", NumFixedParameters: 1 }
    arg := kval(object.Smi(5))
    call := mk(il.StaticCall, mk(il.PushArgument, arg))
    call.Function = callee
    call.DeoptId = 2
    call.TokenPos = 10
    call.Used = false

    /* compile */
    res := compile(t, linear(fn, false, nil, arg, call.Inputs[0], call, kval(object.Null{}), mk(il.Return)))
    require.Equal(t, []asm.OpCode {
        asm.OP_Entry,
        asm.OP_PushConstant,
        asm.OP_PushConstant,
        asm.OP_StaticCall,
        asm.OP_Drop1,
        asm.OP_PushConstant,
        asm.OP_ReturnTOS,
    }, opsOf(res.Code))

    /* the call and its argument descriptor */
    sc := res.Code[3]
    assert.Equal(t, 1, sc.A())
    assert.Equal(t, &object.ArgsDesc { Count: 1 }, res.Pool.At(sc.D()))
    assert.Same(t, callee, res.Pool.At(res.Code[2].D()))

    /* before the call, at the call, after the call */
    want := []codeinfo.Descriptor {
        { Kind: codeinfo.K_deopt, PcOffset: 8, DeoptId: 2, TokenPos: 10, TryIndex: -1 },
        { Kind: codeinfo.K_unopt_static_call, PcOffset: 16, DeoptId: 2, TokenPos: 10, TryIndex: -1 },
        { Kind: codeinfo.K_deopt, PcOffset: 16, DeoptId: 3, TokenPos: 10, TryIndex: -1 },
    }
    assert.Empty(t, cmp.Diff(want, res.PcDescriptors.Decode()))
    assert.Zero(t, res.StackMaps.Len())
}

func TestCompiler_OptimizedSmiAdd(t *testing.T) {
    fn := &object.Function { Name: "add", NumFixedParameters: 2 }
    envs := il.NewEnvArena()
    a, b := mk(il.Parameter), mk(il.Parameter)
    env := envs.New(fn, 0, 2, il.NoEnv, []il.EnvValue {
        { Value: a, Loc: reg(0) },
        { Value: b, Loc: reg(1) },
    })

    /* the arguments are moved into registers first */
    pm := mk(il.ParallelMove)
    pm.Moves = new(locs.ParallelMove)
    pm.Moves.AddMove(reg(0), locs.StackSlot(6))
    pm.Moves.AddMove(reg(1), locs.StackSlot(5))
    add := mk(il.BinarySmiOp, a, b)
    add.Op = il.SmiAdd
    add.DeoptId = 4
    add.Env = env
    add.Locs = summary(locs.NoCall, reg(2), reg(0), reg(1))
    ret := mk(il.Return, add)
    ret.Locs = summary(locs.NoCall, locs.NoLocation(), reg(2))

    /* compile */
    g := linear(fn, true, envs, pm, add, ret)
    g.SpillSlotCount = 3
    res := compile(t, g)
    require.Equal(t, []asm.OpCode {
        asm.OP_EntryOptimized,
        asm.OP_Move,
        asm.OP_Move,
        asm.OP_Add,
        asm.OP_Deopt,
        asm.OP_Return,
    }, opsOf(res.Code))
    assert.Equal(t, 2, res.Code[0].A())
    assert.Equal(t, 3, res.Code[0].D())

    /* the add skips the deoptimization */
    emu := asm.LoadProgram(res.Code, res.Pool)
    emu.Fp[-6] = asm.Boxed(object.Smi(3))
    emu.Fp[-5] = asm.Boxed(object.Smi(4))
    emu.Run()
    assert.Equal(t, asm.Boxed(object.Smi(7)), emu.Result)

    /* one eager deoptimization */
    require.Equal(t, 1, res.DeoptTable.Len())
    e := res.DeoptTable.At(0)
    assert.Equal(t, 20, e.PcOffset)
    assert.Equal(t, deopt.DeoptBinarySmiOp, e.Reason)
    assert.Equal(t, deopt.Info {
        deopt.CallerFp(),
        deopt.RetAddress(0, 4),
        deopt.PcMarker(1),
        deopt.Constant(1),
        deopt.CallerFp(),
        deopt.CallerPc(),
        deopt.PcMarker(0),
        deopt.Constant(0),
        deopt.Word(deopt.Source { Kind: deopt.S_register, Index: 1 }),
        deopt.Word(deopt.Source { Kind: deopt.S_register, Index: 0 }),
    }, res.DeoptTable.Unpack(0))
    assert.Same(t, fn, res.DeoptTable.Objects.At(0))
}

func TestCompiler_CheckClass(t *testing.T) {
    fn := &object.Function { Name: "check", NumFixedParameters: 1 }
    envs := il.NewEnvArena()
    v := mk(il.Parameter)
    env := envs.New(fn, 0, 1, il.NoEnv, []il.EnvValue { { Value: v, Loc: reg(0) } })
    cc := mk(il.CheckClass, v)
    cc.Cids = []int { object.SmiCid, object.MintCid }
    cc.Hoisted = true
    cc.DeoptId = 6
    cc.Env = env
    cc.Locs = summary(locs.NoCall, locs.NoLocation(), reg(0))
    ret := mk(il.Return, v)
    ret.Locs = summary(locs.NoCall, locs.NoLocation(), reg(0))

    /* trap before deoptimizing */
    o := testOptions()
    o.TrapOnDeoptimization = true
    res := compileWith(t, linear(fn, true, envs, cc, ret), arch.DBC64(), o)
    require.Equal(t, []asm.OpCode {
        asm.OP_EntryOptimized,
        asm.OP_CheckCids,
        asm.OP_Nop,
        asm.OP_Nop,
        asm.OP_Trap,
        asm.OP_Deopt,
        asm.OP_Return,
    }, opsOf(res.Code))
    assert.Equal(t, 2, res.Code[1].C())
    assert.Equal(t, object.SmiCid, res.Code[2].D())
    assert.Equal(t, object.MintCid, res.Code[3].D())

    /* hoisted checks are flagged */
    e := res.DeoptTable.At(0)
    assert.Equal(t, deopt.DeoptCheckClass, e.Reason)
    assert.Equal(t, deopt.FlagHoistedCheck, e.Flags)
    assert.Equal(t, 24, e.PcOffset)
}

func TestCompiler_Bailouts(t *testing.T) {
    fn := &object.Function { Name: "bad" }

    /* class ids must fit 16 bits */
    v := mk(il.Parameter)
    cc := mk(il.CheckClass, v)
    cc.Cids = []int { 70000 }
    cc.Locs = summary(locs.NoCall, locs.NoLocation(), reg(0))
    c := New(linear(fn, true, nil, cc), ptr(arch.DBC64()), testOptions())
    _, err := c.CompileGraph()
    require.IsType(t, (*BailoutError)(nil), err)
    assert.Contains(t, err.Error(), "does not fit 16 bits")
    assert.Equal(t, S_bailout, c.State())

    /* the compiler cannot be reused */
    assert.PanicsWithValue(t, "compiler: CompileGraph called more than once", func() { _, _ = c.CompileGraph() })

    /* locals do not exist in optimized code */
    _, err = New(linear(fn, true, nil, mk(il.LoadLocal)), ptr(arch.DBC64()), testOptions()).CompileGraph()
    require.Error(t, err)
    assert.Equal(t, "bailout from bad: unsupported in optimized code: LoadLocal", err.Error())

    /* a cycle between stack slots needs a scratch register */
    pm := mk(il.ParallelMove)
    pm.Moves = new(locs.ParallelMove)
    pm.Moves.AddMove(locs.StackSlot(-2), locs.StackSlot(-3))
    pm.Moves.AddMove(locs.StackSlot(-3), locs.StackSlot(-2))
    _, err = New(linear(fn, true, nil, pm), ptr(arch.DBC64()), testOptions()).CompileGraph()
    require.Error(t, err)
    assert.Equal(t, "Unsupported move", err.(*BailoutError).Reason)

    /* operands out of range */
    st := mk(il.StoreStaticField, v)
    st.Field = &object.Field { Name: "f", Static: true }
    st.Locs = summary(locs.NoCall, locs.NoLocation(), reg(300))
    _, err = New(linear(fn, true, nil, st), ptr(arch.DBC64()), testOptions()).CompileGraph()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "out of range")

    /* no unboxed doubles on 32-bit hosts */
    ub := mk(il.UnboxDouble, v)
    ub.Locs = summary(locs.NoCall, reg(1), reg(0))
    _, err = New(linear(fn, true, nil, ub), ptr(arch.DBC32()), testOptions()).CompileGraph()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "unboxed doubles")
}

func ptr(t arch.Target) *arch.Target {
    return &t
}

func TestCompiler_Unreachable(t *testing.T) {
    fn := &object.Function { Name: "param" }
    c := New(linear(fn, true, nil, mk(il.Parameter)), ptr(arch.DBC64()), testOptions())
    assert.Panics(t, func() { _, _ = c.CompileGraph() })
}

func TestCompiler_ConstantMoves(t *testing.T) {
    fn := &object.Function { Name: "consts" }
    k0 := kval(object.Double(0))
    k0.Value.Rep = locs.R_unboxed_double
    k0.Locs = summary(locs.NoCall, locs.FpuRegisterLocation(1))
    k1 := kval(object.Double(1.5))
    k1.Value.Rep = locs.R_unboxed_double
    k1.Locs = summary(locs.NoCall, locs.FpuRegisterLocation(2))
    k2 := kval(object.Smi(9))
    k2.Locs = summary(locs.NoCall, reg(3))
    k3 := kval(object.Smi(10))
    k3.Locs = summary(locs.NoCall, locs.ConstantLocation(k3.Value))
    ret := mk(il.Return, k2)
    ret.Locs = summary(locs.NoCall, locs.NoLocation(), reg(3))

    /* compile */
    res := compile(t, linear(fn, true, nil, k0, k1, k2, k3, ret))
    require.Equal(t, []asm.OpCode {
        asm.OP_EntryOptimized,
        asm.OP_BitXor,
        asm.OP_LoadConstant,
        asm.OP_UnboxDouble,
        asm.OP_LoadConstant,
        asm.OP_Return,
    }, opsOf(res.Code))

    /* run it */
    emu := asm.LoadProgram(res.Code, res.Pool)
    emu.Fp[1] = asm.UnboxedDouble(2.5)
    emu.Run()
    assert.Equal(t, asm.UnboxedDouble(0), emu.Fp[1])
    assert.Equal(t, asm.UnboxedDouble(1.5), emu.Fp[2])
    assert.Equal(t, asm.Boxed(object.Smi(9)), emu.Result)
}

func TestCompiler_Intrinsics(t *testing.T) {
    cls := &object.Class { Id: object.NumPredefinedCids, Name: "Point" }
    near := &object.Field { Name: "x", Owner: cls, Offset: 16 }
    far := &object.Field { Name: "y", Owner: cls, Offset: 8 * 200 }

    /* getters load the field of the receiver */
    getter := &object.Function { Name: "get:x", Owner: cls, Kind: object.F_implicit_getter, NumFixedParameters: 1, Field: near }
    res := compile(t, linear(getter, false, nil, kval(object.Null{}), mk(il.Return)))
    assert.True(t, res.Intrinsified)
    require.Equal(t, []asm.OpCode { asm.OP_Move, asm.OP_LoadField, asm.OP_Return }, opsOf(res.Code))
    assert.Equal(t, -5, res.Code[0].X())
    assert.Equal(t, 2, res.Code[1].Y())

    /* setters with a wide offset */
    setter := &object.Function { Name: "set:y", Owner: cls, Kind: object.F_implicit_setter, NumFixedParameters: 2, Field: far }
    res = compile(t, linear(setter, false, nil, kval(object.Null{}), mk(il.Return)))
    require.Equal(t, []asm.OpCode {
        asm.OP_Move,
        asm.OP_Move,
        asm.OP_StoreFieldExt,
        asm.OP_Nop,
        asm.OP_LoadConstant,
        asm.OP_Return,
    }, opsOf(res.Code))
    assert.Equal(t, -6, res.Code[0].X())
    assert.Equal(t, 200, res.Code[3].D())

    /* argument type checks disable accessor intrinsics */
    o := testOptions()
    o.ArgumentTypeChecks = true
    res = compileWith(t, linear(getter, false, nil, kval(object.Null{}), mk(il.Return)), arch.DBC64(), o)
    assert.False(t, res.Intrinsified)
    assert.Equal(t, asm.OP_Entry, res.Code[0].Op())

    /* recognized methods get a fast path before the body */
    eq := &object.Function { Name: "==", Kind: object.F_regular, NumFixedParameters: 2, Recognized: object.M_object_equals }
    res = compile(t, linear(eq, false, nil, kval(object.Bool(false)), mk(il.Return)))
    assert.False(t, res.Intrinsified)
    require.Equal(t, asm.OP_Intrinsic, res.Code[0].Op())
    assert.Equal(t, int(object.M_object_equals), res.Code[0].A())
    assert.Equal(t, asm.OP_Entry, res.Code[1].Op())

    /* unless intrinsics are disabled */
    o = testOptions()
    o.Intrinsify = false
    res = compileWith(t, linear(eq, false, nil, kval(object.Bool(false)), mk(il.Return)), arch.DBC64(), o)
    assert.Equal(t, asm.OP_Entry, res.Code[0].Op())
}

func TestCompiler_HotCheck(t *testing.T) {
    fn := &object.Function { Name: "hot", Optimizable: true }
    o := testOptions()
    o.OptimizationCounterScale = 2000
    o.MinOptimizationCounterThreshold = 5000
    o.OptimizationCounterThreshold = 30000
    o.ReoptimizationCounterThreshold = 4000

    /* unoptimized code counts invocations */
    res := compileWith(t, linear(fn, false, nil, kval(object.Null{}), mk(il.Return)), arch.DBC64(), o)
    require.Equal(t, asm.OP_HotCheck, res.Code[0].Op())
    assert.Equal(t, 1, res.Code[0].A())
    assert.Equal(t, 2000 * 2 + 5000, res.Code[0].D())

    /* optimized code only if it may be reoptimized */
    k := kval(object.Null{})
    k.Locs = summary(locs.NoCall, reg(0))
    ret := mk(il.Return, k)
    ret.Locs = summary(locs.NoCall, locs.NoLocation(), reg(0))
    g := linear(fn, true, nil, k, ret)
    g.MayReoptimize = true
    res = compileWith(t, g, arch.DBC64(), o)
    require.Equal(t, asm.OP_HotCheck, res.Code[0].Op())
    assert.Equal(t, 0, res.Code[0].A())
    assert.Equal(t, 4000, res.Code[0].D())

    /* the threshold is capped */
    c := New(linear(fn, false, nil), ptr(arch.DBC64()), o)
    c.order = make([]*il.Block, 20)
    assert.Equal(t, 30000, c.GetOptimizationThreshold())

    /* no check without the optimizing compiler */
    o.UseOptimizingCompiler = false
    res = compileWith(t, linear(fn, false, nil, kval(object.Null{}), mk(il.Return)), arch.DBC64(), o)
    assert.Equal(t, asm.OP_Entry, res.Code[0].Op())
}

func TestCompiler_MayBeSmi(t *testing.T) {
    g := linear(&object.Function { Name: "f" }, false, nil)
    c := New(g, ptr(arch.DBC64()), testOptions())
    list := g.Classes.Register("List", nil)
    list.NumTypeArguments = 1

    /* types a Smi may be assigned to */
    assert.True(t, c.mayBeSmi(object.DynamicType()))
    assert.True(t, c.mayBeSmi(object.NewType(g.Classes.Object())))
    assert.True(t, c.mayBeSmi(object.NewType(g.Classes.Lookup("num"))))
    assert.True(t, c.mayBeSmi(object.NewType(g.Classes.Lookup("Comparable"))))

    /* and those it may not */
    assert.False(t, c.mayBeSmi(object.VoidType()))
    assert.False(t, c.mayBeSmi(object.NewTypeParameter("T", 0)))
    assert.False(t, c.mayBeSmi(object.NewType(g.Classes.Lookup("String"))))
    assert.False(t, c.mayBeSmi(object.NewType(g.Classes.Lookup("double"))))
    assert.False(t, c.mayBeSmi(object.NewType(list, object.DynamicType())))
}

func TestCompiler_AssertAssignable(t *testing.T) {
    fn := &object.Function { Name: "check" }
    g := linear(fn, false, nil)
    num := object.NewType(g.Classes.Lookup("num"))

    /* a Smi passes without a full check */
    v := kval(object.Smi(1))
    aa := mk(il.AssertAssignable, v)
    aa.Type = num
    aa.DstName = "x"
    aa.DeoptId = 4
    g.Blocks[1].Instrs = []*il.Instr { v, aa, mk(il.Return) }
    res := compile(t, g)
    require.Equal(t, []asm.OpCode {
        asm.OP_Entry,
        asm.OP_PushConstant,
        asm.OP_PushConstant,
        asm.OP_PushConstant,
        asm.OP_AssertAssignable,
        asm.OP_ReturnTOS,
    }, opsOf(res.Code))
    assert.Equal(t, 1, res.Code[4].A())
    assert.IsType(t, (*object.SubtypeTestCache)(nil), res.Pool.At(res.Code[4].D()))
    assert.Equal(t, object.Str("x"), res.Pool.At(res.Code[3].D()))

    /* descriptors around the call */
    d, ok := res.PcDescriptors.Find(codeinfo.K_deopt, il.ToDeoptAfter(4))
    require.True(t, ok)
    assert.Equal(t, 20, d.PcOffset)
    _, ok = res.PcDescriptors.Find(codeinfo.K_other, 4)
    assert.True(t, ok)

    /* malformed types always fail */
    c := New(linear(fn, false, nil), ptr(arch.DBC64()), testOptions())
    cache := c.GenerateAssertAssignable(0, 8, object.NewMalformedType("Missing"), "y", nil)
    assert.Nil(t, cache)
    assert.Equal(t, asm.OP_BadTypeError, c.asm.Code()[2].Op())
    for _, v := range c.asm.Pool.Objects() {
        _, ok := v.(*object.SubtypeTestCache)
        assert.False(t, ok, "unused cache in the pool")
    }
}

func TestCompiler_OptimizedAssertAssignable(t *testing.T) {
    fn := &object.Function { Name: "check" }
    envs := il.NewEnvArena()
    v := mk(il.Parameter)
    env := envs.New(fn, 0, 0, il.NoEnv, []il.EnvValue { { Value: v, Loc: reg(0) } })
    aa := mk(il.AssertAssignable, v, mk(il.Parameter), mk(il.Parameter))
    aa.Type = object.DynamicType()
    aa.DeoptId = 2
    aa.Env = env
    aa.Locs = summary(locs.Call, reg(0), reg(0), reg(1), reg(2))
    ret := mk(il.Return, aa)
    ret.Locs = summary(locs.NoCall, locs.NoLocation(), reg(0))

    /* compile */
    g := linear(fn, true, envs, aa, ret)
    g.SpillSlotCount = 3
    res := compile(t, g)
    require.Equal(t, []asm.OpCode {
        asm.OP_EntryOptimized,
        asm.OP_Push,
        asm.OP_Push,
        asm.OP_Push,
        asm.OP_PushConstant,
        asm.OP_PushConstant,
        asm.OP_AssertAssignable,
        asm.OP_Drop1,
        asm.OP_Return,
    }, opsOf(res.Code))

    /* the instance slot is tagged across the call */
    sm, ok := res.StackMaps.Lookup(28)
    require.True(t, ok)
    assert.Equal(t, 3, sm.Bitmap.Length())
    assert.True(t, sm.Bitmap.Get(0))
    assert.False(t, sm.Bitmap.Get(1))

    /* lazy deoptimization with the result */
    require.Equal(t, 1, res.DeoptTable.Len())
    assert.Equal(t, deopt.DeoptAtCall, res.DeoptTable.At(0).Reason)
    assert.Equal(t, 28, res.DeoptTable.At(0).PcOffset)
}

func TestCompiler_Safepoint(t *testing.T) {
    fn := &object.Function { Name: "slow" }
    g := linear(fn, true, nil)
    g.SpillSlotCount = 3
    c := New(g, ptr(arch.DBC64()), testOptions())

    /* live registers are appended highest first */
    ls := locs.NewLocationSummary(0, 0, locs.CallOnSlowPath)
    ls.LiveRegisters.Add(reg(1), locs.R_tagged)
    ls.LiveRegisters.Add(reg(2), locs.R_untagged)
    ls.SetStackBit(1)
    c.RecordSafepoint(ls, 1)

    /* check the stack map */
    maps := c.stackmaps.Finalize()
    require.Equal(t, 1, maps.Len())
    sm := maps.Entries[0]
    assert.Equal(t, "010011", sm.Bitmap.String())
    assert.Equal(t, 3, sm.SlowPathBitCount)

    /* the summary keeps the slots marked by the allocator */
    assert.Equal(t, "01", ls.StackBitmap().String())
}

func TestCompiler_SafepointTwice(t *testing.T) {
    fn := &object.Function { Name: "slow" }
    g := linear(fn, true, nil)
    g.SpillSlotCount = 3
    c := New(g, ptr(arch.DBC64()), testOptions())

    /* two safepoints in the slow path of one instruction */
    ls := locs.NewLocationSummary(0, 0, locs.CallOnSlowPath)
    ls.LiveRegisters.Add(reg(1), locs.R_tagged)
    ls.LiveRegisters.Add(reg(2), locs.R_untagged)
    c.RecordSafepoint(ls, 0)
    c.asm.Trap()
    c.RecordSafepoint(ls, 0)
    c.asm.Trap()
    c.RecordSafepoint(ls, 2)

    /* both describe the same frame */
    maps := c.stackmaps.Finalize()
    require.Equal(t, 3, maps.Len())
    assert.Equal(t, "00001", maps.Entries[0].Bitmap.String())
    assert.Equal(t, "00001", maps.Entries[1].Bitmap.String())
    assert.Equal(t, "0000111", maps.Entries[2].Bitmap.String())
    assert.Equal(t, 2, maps.Entries[0].SlowPathBitCount)
    assert.Equal(t, 2, maps.Entries[1].SlowPathBitCount)
    assert.Equal(t, 4, maps.Entries[2].SlowPathBitCount)
    assert.Same(t, maps.Entries[0].Bitmap, maps.Entries[1].Bitmap)
    assert.False(t, ls.HasStackBitmap())

    /* marked slots must lie in the spill area */
    bad := locs.NewLocationSummary(0, 0, locs.CallOnSlowPath)
    bad.SetStackBit(5)
    assert.PanicsWithValue(t, "compiler: stack bitmap of 6 bits exceeds the spill area of 3 slots", func() { c.RecordSafepoint(bad, 0) })
}

// sharedGraph has a parallel move, a call dropping an argument of an inlined
// body and an assertion marking a spill slot.
func sharedGraph() (*il.FlowGraph, []*locs.MoveOperands) {
    fnO := &object.Function { Name: "outer", NumFixedParameters: 2 }
    fnI := &object.Function { Name: "inlined", NumFixedParameters: 1 }
    callee := &object.Function { Name: "callee", NumFixedParameters: 1 }
    envs := il.NewEnvArena()

    /* incoming arguments */
    pm := mk(il.ParallelMove)
    pm.Moves = new(locs.ParallelMove)
    mvs := []*locs.MoveOperands {
        pm.Moves.AddMove(reg(0), locs.StackSlot(6)),
        pm.Moves.AddMove(reg(1), locs.StackSlot(5)),
    }

    /* the call argument is part of the environment of the inlined body */
    v := mk(il.Parameter)
    push := mk(il.PushArgument, v)
    push.Locs = summary(locs.NoCall, locs.NoLocation(), reg(0))
    eo := envs.New(fnO, 20, 2, il.NoEnv, []il.EnvValue {
        { Value: v, Loc: reg(0) },
        { Value: mk(il.Parameter), Loc: reg(1) },
    })
    ei := envs.New(fnI, 0, 1, eo, []il.EnvValue {
        { Value: mk(il.Parameter), Loc: reg(5) },
        { Value: push, Loc: locs.NoLocation() },
    })

    /* a call inside the inlined body */
    call := mk(il.StaticCall, push)
    call.Function = callee
    call.DeoptId = 30
    call.Env = ei
    call.Locs = summary(locs.Call, reg(1))

    /* the result is checked in the outer body */
    aa := mk(il.AssertAssignable, call, mk(il.Parameter), mk(il.Parameter))
    aa.Type = object.DynamicType()
    aa.DeoptId = 34
    aa.Env = eo
    aa.Locs = summary(locs.Call, reg(1), reg(1), reg(2), reg(3))
    ret := mk(il.Return, aa)
    ret.Locs = summary(locs.NoCall, locs.NoLocation(), reg(1))

    /* build the graph */
    g := linear(fnO, true, envs, pm, push, call, aa, ret)
    g.SpillSlotCount = 4
    return g, mvs
}

func TestCompiler_SharedGraph(t *testing.T) {
    g, mvs := sharedGraph()
    nenv := g.Envs.Len()
    want := compile(t, g)
    require.Equal(t, 2, want.DeoptTable.Len())

    /* compile the same graph concurrently */
    var grp errgroup.Group
    rets := make([]*Result, 8)
    for i := range rets {
        i := i
        grp.Go(func() (err error) {
            rets[i], err = New(g, ptr(arch.DBC64()), testOptions()).CompileGraph()
            return
        })
    }

    /* every compilation produces the same code */
    require.NoError(t, grp.Wait())
    for _, ret := range rets {
        assert.Equal(t, want.Code, ret.Code)
        assert.Equal(t, want.Pool.Objects(), ret.Pool.Objects())
        assert.Equal(t, want.StackMaps.String(), ret.StackMaps.String())
        assert.Equal(t, want.PcDescriptors.String(), ret.PcDescriptors.String())
        assert.Equal(t, want.DeoptTable.String(), ret.DeoptTable.String())
        for i := 0; i < want.DeoptTable.Len(); i++ {
            assert.Equal(t, want.DeoptTable.Unpack(i), ret.DeoptTable.Unpack(i))
        }
    }

    /* the graph is left as it was */
    assert.Equal(t, nenv, g.Envs.Len())
    for _, mv := range mvs {
        assert.False(t, mv.IsEliminated(), "move %s was eliminated", mv)
    }
    for _, bb := range g.Blocks {
        for _, ins := range bb.Instrs {
            if ins.Locs != nil {
                assert.False(t, ins.Locs.HasStackBitmap(), "%s has a stack bitmap", ins.Tag)
            }
        }
    }
}

func TestCompiler_NotBytecode(t *testing.T) {
    g := linear(&object.Function { Name: "native" }, false, nil, mk(il.Return))
    assert.PanicsWithValue(t, "compiler: target x64 does not run bytecode", func() {
        New(g, ptr(arch.X64()), testOptions())
    })
}

func TestCompiler_StateMachine(t *testing.T) {
    fn := &object.Function { Name: "states" }
    c := New(linear(fn, false, nil, kval(object.Null{}), mk(il.Return)), ptr(arch.DBC64()), testOptions())
    assert.Equal(t, S_init, c.State())
    _, err := c.CompileGraph()
    require.NoError(t, err)
    assert.Equal(t, S_done, c.State())
    assert.Equal(t, "done", c.State().String())
    assert.Panics(t, func() { _, _ = c.CompileGraph() })

    /* intrinsic mode must be balanced */
    c.EnterIntrinsicMode()
    assert.Panics(t, c.EnterIntrinsicMode)
    c.ExitIntrinsicMode()
    assert.Panics(t, c.ExitIntrinsicMode)
}
