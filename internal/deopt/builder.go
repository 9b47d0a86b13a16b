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


package deopt

import (
    `fmt`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/oleiade/lane`
)

type _TrieNode struct {
    info     int
    children map[Instr]*_TrieNode
}

func newTrieNode(info int) *_TrieNode {
    return &_TrieNode {
        info     : info,
        children : make(map[Instr]*_TrieNode),
    }
}

// Builder constructs the deopt infos of one function. Infos are numbered
// densely in the order they are created or skipped.
type Builder struct {
    target     *arch.Target
    numArgs    int
    objects    *ObjectTable
    instrs     []Instr
    mats       []*il.Instr
    frameStart int
    infoNumber int
    trie       *_TrieNode
}

// IncomingArgs returns the number of arguments the deoptimized frame of fn
// finds above its fixed part. Functions with optional parameters copy their
// arguments into locals, so none are counted.
func IncomingArgs(fn *object.Function) int {
    if fn.HasOptionalParameters() {
        return 0
    } else {
        return fn.NumFixedParameters
    }
}

func NewBuilder(target *arch.Target, numArgs int, objects *ObjectTable) *Builder {
    return &Builder {
        target     : target,
        numArgs    : numArgs,
        objects    : objects,
        frameStart : -1,
        trie       : newTrieNode(-1),
    }
}

func (self *Builder) Objects() *ObjectTable {
    return self.objects
}

func (self *Builder) CurrentInfoNumber() int {
    return self.infoNumber
}

// SkipInfo consumes an info number without producing an info.
func (self *Builder) SkipInfo() {
    if len(self.instrs) != 0 {
        panic("deopt: skipping an info that is being built")
    } else {
        self.infoNumber++
    }
}

func (self *Builder) MarkFrameStart() {
    self.frameStart = len(self.instrs)
}

func (self *Builder) FrameSize() int {
    if self.frameStart < 0 {
        panic("deopt: frame start is not marked")
    } else {
        return len(self.instrs) - self.frameStart
    }
}

func (self *Builder) add(slot int, ins Instr) {
    if n := self.FrameSize(); slot != n {
        panic(fmt.Sprintf("deopt: slot %d emitted out of order, frame size is %d", slot, n))
    } else {
        self.instrs = append(self.instrs, ins)
    }
}

func (self *Builder) objectOf(obj object.Object) int {
    if obj == nil {
        return self.objects.Add(object.Null{})
    } else {
        return self.objects.Add(obj)
    }
}

func (self *Builder) function(fn *object.Function) object.Object {
    if fn == nil {
        return object.Null{}
    } else {
        return fn
    }
}

func (self *Builder) AddReturnAddress(fn *object.Function, deoptId int, slot int) {
    self.add(slot, RetAddress(self.objectOf(self.function(fn)), deoptId))
}

func (self *Builder) AddPcMarker(fn *object.Function, slot int) {
    self.add(slot, PcMarker(self.objectOf(self.function(fn))))
}

func (self *Builder) AddConstant(obj object.Object, slot int) {
    self.add(slot, Constant(self.objectOf(obj)))
}

func (self *Builder) AddCallerFp(slot int) { self.add(slot, CallerFp()) }
func (self *Builder) AddCallerPp(slot int) { self.add(slot, CallerPp()) }
func (self *Builder) AddCallerPc(slot int) { self.add(slot, CallerPc()) }

// AddCopy describes how to rebuild the slot from value living at loc. A nil
// value stands for a tagged word with no definition.
func (self *Builder) AddCopy(value *il.Instr, loc locs.Location, slot int) {
    switch {
        case loc.IsConstant() : self.add(slot, Constant(self.objectOf(loc.Constant().Value)))
        case loc.IsInvalid()  : self.add(slot, MaterializedObjectRef(self.mustFindMaterialization(value)))
        default               : self.add(slot, self.copyOf(value, loc))
    }
}

func (self *Builder) copyOf(value *il.Instr, loc locs.Location) Instr {
    rep := locs.R_tagged
    src := self.sourceOf(loc)

    /* values without a definition are tagged */
    if value != nil {
        rep = value.Rep
    }

    /* pick by representation */
    switch rep {
        case locs.R_tagged         : return Word(src)
        case locs.R_untagged       : return Word(src)
        case locs.R_unboxed_double : return Double(src)
        case locs.R_unboxed_int64  : return Mint(src)
        default                    : panic("unreachable: representation " + rep.String())
    }
}

func (self *Builder) sourceOf(loc locs.Location) Source {
    switch loc.Kind() {
        case locs.K_register          : return Source { Kind: S_register, Index: loc.Reg() }
        case locs.K_fpu_register      : return Source { Kind: S_register, Index: loc.Reg() }
        case locs.K_stack_slot        : return Source { Kind: S_stack_slot, Index: self.CalculateStackIndex(loc.StackIndex()) }
        case locs.K_double_stack_slot : return Source { Kind: S_stack_slot, Index: self.CalculateStackIndex(loc.StackIndex()) }
        default                       : panic("deopt: cannot copy from " + loc.String())
    }
}

// CalculateStackIndex converts a frame slot of the optimized frame into an
// index of the deoptimization frame. Arguments come first, then the fixed
// part of the frame, then the locals.
func (self *Builder) CalculateStackIndex(slot int) int {
    if idx := -self.target.Layout.VariableIndexForFrameSlot(slot); idx < 0 {
        return idx + self.numArgs
    } else {
        return idx + self.numArgs + self.target.Layout.FixedFrameSize
    }
}

func (self *Builder) FindMaterialization(mat *il.Instr) int {
    for i, v := range self.mats {
        if v == mat {
            return i
        }
    }
    return -1
}

func (self *Builder) mustFindMaterialization(value *il.Instr) int {
    if value == nil || value.Tag != il.MaterializeObject {
        panic("deopt: value without a location is not a materialization")
    } else if idx := self.FindMaterialization(value); idx < 0 {
        panic("deopt: materialization " + value.ValueName() + " is not registered")
    } else {
        return idx
    }
}

// AddMaterialization registers mat and every materialization nested in its
// inputs, in pre-order. Null fields are not counted since new objects start
// out null-initialized.
func (self *Builder) AddMaterialization(mat *il.Instr) {
    st := lane.NewStack()
    for st.Push(mat); !st.Empty(); {
        v := st.Pop().(*il.Instr)
        if self.FindMaterialization(v) >= 0 {
            continue
        }

        /* count the non-null fields */
        n := 0
        for _, in := range v.Inputs {
            if !in.IsConstantNull() {
                n++
            }
        }

        /* register it */
        self.mats = append(self.mats, v)
        self.instrs = append(self.instrs, MaterializeObject(n))

        /* nested materializations, keep the input order */
        for i := len(v.Inputs) - 1; i >= 0; i-- {
            if v.Inputs[i].Tag == il.MaterializeObject {
                st.Push(v.Inputs[i])
            }
        }
    }
}

// EmitMaterializationArguments describes the fields of every registered
// materialization right above the fixed part of the innermost frame. It
// returns the next free slot.
func (self *Builder) EmitMaterializationArguments(slot int) int {
    if slot != self.target.Layout.FixedFrameSize {
        panic(fmt.Sprintf("deopt: materialization arguments must start at slot %d", self.target.Layout.FixedFrameSize))
    }

    /* class, field count, then offset-value pairs */
    for _, mat := range self.mats {
        self.AddConstant(mat.Class, slot)
        self.AddConstant(object.Smi(len(mat.Slots)), slot + 1)
        slot += 2

        /* null fields are skipped */
        for i, in := range mat.Inputs {
            if !in.IsConstantNull() {
                self.AddConstant(object.Smi(mat.FieldOffsetAt(i)), slot)
                self.AddCopy(in, mat.InputLocs[i], slot + 1)
                slot += 2
            }
        }
    }
    return slot
}

// CreateDeoptInfo packs the pending instructions into a new info. A frame
// tail shared with an earlier info is replaced by a single Suffix
// instruction when it is longer than one instruction.
func (self *Builder) CreateDeoptInfo() Info {
    var ret Info
    var node = self.trie
    var nsfx = 0

    /* infos always describe a frame */
    if self.frameStart < 0 {
        panic("deopt: frame start is not marked")
    }

    /* find the longest shared frame tail */
    for i := len(self.instrs) - 1; i >= self.frameStart; i-- {
        if p, ok := node.children[self.instrs[i]]; !ok {
            break
        } else {
            node, nsfx = p, nsfx + 1
        }
    }

    /* short suffixes are written out */
    n := len(self.instrs)
    useSuffix := nsfx > 1

    /* replace the shared tail */
    if !useSuffix {
        node = self.trie
        ret = append(make(Info, 0, n), self.instrs...)
    } else {
        n -= nsfx
        ret = append(make(Info, 0, n + 1), self.instrs[:n]...)
        ret = append(ret, Suffix(node.info, nsfx))
    }

    /* add the written frame tail to the trie, existing paths are kept */
    for i := n - 1; i >= self.frameStart; i-- {
        p, ok := node.children[self.instrs[i]]
        if !ok {
            p = newTrieNode(self.infoNumber)
            node.children[self.instrs[i]] = p
        }
        node = p
    }

    /* reset for the next info */
    self.instrs = self.instrs[:0]
    self.mats = self.mats[:0]
    self.frameStart = -1
    self.infoNumber++
    return ret
}
