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


package resolver

import (
    `fmt`
    `testing`

    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
    `pgregory.net/rapid`
)

type bailout string

// simEmitter records the operations and replays them on a simulated machine
// state.
type simEmitter struct {
    ops       []string
    state     map[locs.Location]string
    scratch   []locs.Location
    inuse     map[locs.Location]bool
    swapStack bool
}

func newSimEmitter(state map[locs.Location]string, scratch ...locs.Location) *simEmitter {
    return &simEmitter {
        state   : state,
        scratch : scratch,
        inuse   : make(map[locs.Location]bool),
    }
}

func (self *simEmitter) value(loc locs.Location) string {
    switch {
        case loc.IsConstant()           : return "const:" + loc.Constant().String()
        case loc.IsArgsDescRegister()   : return "argdesc"
        case loc.IsExceptionRegister()  : return "exception"
        case loc.IsStackTraceRegister() : return "stacktrace"
        default                         : return self.state[loc]
    }
}

func (self *simEmitter) EmitMove(dst locs.Location, src locs.Location) {
    self.ops = append(self.ops, fmt.Sprintf("mov %s, %s", dst, src))
    self.state[dst] = self.value(src)
}

func (self *simEmitter) EmitSwap(dst locs.Location, src locs.Location) {
    if !self.CanSwap(dst, src) {
        panic("invalid swap")
    }
    self.ops = append(self.ops, fmt.Sprintf("xchg %s, %s", dst, src))
    self.state[dst], self.state[src] = self.state[src], self.state[dst]
}

func (self *simEmitter) CanSwap(dst locs.Location, src locs.Location) bool {
    return (dst.IsRegister() && src.IsRegister()) || self.swapStack
}

func (self *simEmitter) AcquireScratch(blocked func(loc locs.Location) bool) (locs.Location, bool) {
    for _, v := range self.scratch {
        if !self.inuse[v] && !blocked(v) {
            self.inuse[v] = true
            return v, true
        }
    }
    return locs.NoLocation(), false
}

func (self *simEmitter) ReleaseScratch(loc locs.Location) {
    delete(self.inuse, loc)
}

func (self *simEmitter) Bailout(reason string) {
    panic(bailout(reason))
}

func initialState(pm *locs.ParallelMove) map[locs.Location]string {
    ret := make(map[locs.Location]string)
    for _, mv := range pm.Moves {
        for _, v := range []locs.Location { mv.Src, mv.Dst } {
            if !v.IsSpecialSource() {
                ret[v] = "old:" + v.String()
            }
        }
    }
    return ret
}

func simultaneous(pm *locs.ParallelMove, init map[locs.Location]string) map[locs.Location]string {
    sim := newSimEmitter(nil)
    sim.state = init
    ret := make(map[locs.Location]string, len(init))
    for k, v := range init {
        ret[k] = v
    }
    for _, mv := range pm.Moves {
        ret[mv.Dst] = sim.value(mv.Src)
    }
    return ret
}

func resolve(t *testing.T, pm *locs.ParallelMove, em *simEmitter) {
    init := initialState(pm)
    want := simultaneous(pm, init)
    for k, v := range init {
        em.state[k] = v
    }

    /* the moves are left as they were */
    orig := make([]locs.MoveOperands, len(pm.Moves))
    for i, mv := range pm.Moves {
        orig[i] = *mv
    }

    /* resolve them */
    New(em).EmitNativeCode(pm)
    for k, v := range want {
        require.Equal(t, v, em.state[k], "location %s, ops:\n%s", k, spew.Sdump(em.ops))
    }
    for i, mv := range pm.Moves {
        require.Equal(t, orig[i], *mv)
    }
}

func r(i int) locs.Location { return locs.RegisterLocation(i) }
func s(i int) locs.Location { return locs.StackSlot(i) }

func TestResolver_Empty(t *testing.T) {
    em := newSimEmitter(map[locs.Location]string{})
    New(em).EmitNativeCode(new(locs.ParallelMove))
    assert.Empty(t, em.ops)
    pm := new(locs.ParallelMove)
    pm.AddMove(r(1), r(1))
    New(em).EmitNativeCode(pm)
    assert.Empty(t, em.ops)
}

func TestResolver_Chain(t *testing.T) {
    pm := new(locs.ParallelMove)
    pm.AddMove(r(1), r(0))
    pm.AddMove(r(2), r(1))
    pm.AddMove(r(3), r(2))
    em := newSimEmitter(map[locs.Location]string{})
    resolve(t, pm, em)
    assert.Equal(t, []string { "mov r3, r2", "mov r2, r1", "mov r1, r0" }, em.ops)
}

func TestResolver_TwoCycle(t *testing.T) {
    pm := new(locs.ParallelMove)
    pm.AddMove(r(0), r(1))
    pm.AddMove(r(1), r(0))
    pm.AddMove(r(2), r(0))
    em := newSimEmitter(map[locs.Location]string{})
    resolve(t, pm, em)
    assert.Equal(t, []string { "mov r2, r0", "xchg r0, r1" }, em.ops)
}

func TestResolver_SwapPropagation(t *testing.T) {
    em := newSimEmitter(map[locs.Location]string{})
    rs := New(em)
    rs.moves = []_Move {
        { dst: r(1), src: r(2) },
        { dst: r(2), src: r(3) },
        { dst: r(3), src: r(1) },
        { dst: r(4), src: r(2) },
    }
    rs.emitSwap(0)
    assert.True(t, rs.moves[0].done)
    assert.Equal(t, r(3), rs.moves[1].src)
    assert.Equal(t, r(2), rs.moves[2].src)
    assert.Equal(t, r(1), rs.moves[3].src)
    assert.Equal(t, []string { "xchg r1, r2" }, em.ops)
}

func TestResolver_ThreeCycle(t *testing.T) {
    pm := new(locs.ParallelMove)
    pm.AddMove(r(1), r(2))
    pm.AddMove(r(2), r(3))
    pm.AddMove(r(3), r(1))
    em := newSimEmitter(map[locs.Location]string{})
    resolve(t, pm, em)
    assert.Equal(t, []string { "xchg r1, r2", "xchg r2, r3" }, em.ops)
}

func TestResolver_SpecialSourcesLast(t *testing.T) {
    c := &locs.Constant { Value: object.Smi(7) }
    pm := new(locs.ParallelMove)
    pm.AddMove(r(0), locs.ConstantLocation(c))
    pm.AddMove(r(1), r(0))
    pm.AddMove(r(2), locs.ArgsDescriptorLocation())
    pm.AddMove(r(3), locs.ExceptionLocation())
    em := newSimEmitter(map[locs.Location]string{})
    resolve(t, pm, em)
    assert.Equal(t, "mov r1, r0", em.ops[0])
    assert.Equal(t, "const:7", em.state[r(0)])
}

func TestResolver_StackCycleUsesScratch(t *testing.T) {
    pm := new(locs.ParallelMove)
    pm.AddMove(s(-1), s(-2))
    pm.AddMove(s(-2), s(-1))
    em := newSimEmitter(map[locs.Location]string{}, r(0), r(9))
    pm.AddMove(r(0), r(5))
    resolve(t, pm, em)
    assert.Contains(t, em.ops, "mov r9, s-1")
    assert.Empty(t, em.inuse)
}

func TestResolver_UnsupportedMove(t *testing.T) {
    pm := new(locs.ParallelMove)
    pm.AddMove(s(-1), r(2))
    pm.AddMove(r(2), s(-1))
    em := newSimEmitter(map[locs.Location]string{})
    assert.PanicsWithValue(t, bailout("Unsupported move"), func() {
        New(em).EmitNativeCode(pm)
    })
}

func genLocation(t *rapid.T, label string) locs.Location {
    if rapid.Bool().Draw(t, label + "_kind") {
        return r(rapid.IntRange(0, 5).Draw(t, label + "_reg"))
    } else {
        return s(rapid.IntRange(-4, -1).Draw(t, label + "_slot"))
    }
}

func TestResolver_Property(t *testing.T) {
    rapid.Check(t, func(t *rapid.T) {
        pm := new(locs.ParallelMove)
        seen := make(map[locs.Location]bool)
        consts := []*locs.Constant {
            { Value: object.Smi(1) },
            { Value: object.Str("k") },
        }
        n := rapid.IntRange(0, 10).Draw(t, "n")
        for i := 0; i < n; i++ {
            dst := genLocation(t, "dst")
            if seen[dst] {
                continue
            }
            seen[dst] = true
            switch rapid.IntRange(0, 5).Draw(t, "src_kind") {
                case 0  : pm.AddMove(dst, locs.ConstantLocation(consts[rapid.IntRange(0, 1).Draw(t, "c")]))
                case 1  : pm.AddMove(dst, locs.StackTraceLocation())
                default : pm.AddMove(dst, genLocation(t, "src"))
            }
        }
        em := newSimEmitter(map[locs.Location]string{}, r(10), r(11))
        em.swapStack = rapid.Bool().Draw(t, "swap_stack")
        init := initialState(pm)
        want := simultaneous(pm, init)
        for k, v := range init {
            em.state[k] = v
        }
        New(em).EmitNativeCode(pm)
        for k, v := range want {
            if em.state[k] != v {
                t.Fatalf("location %s: want %s got %s, moves %s, ops %v", k, v, em.state[k], pm, em.ops)
            }
        }
        if n == 0 && len(em.ops) != 0 {
            t.Fatalf("empty move set emitted code: %v", em.ops)
        }
    })
}
