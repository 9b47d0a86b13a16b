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


package il

import (
    `fmt`
    `strings`

    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
)

const (
    NoDeoptId  = -1
    NoTokenPos = -1
)

const (
    deoptStep = 2
)

// ToDeoptAfter returns the id of the point right after the instruction with
// the given deopt id.
func ToDeoptAfter(id int) int {
    return id + 1
}

func IsDeoptAfter(id int) bool {
    return id % deoptStep == 1
}

// DeoptIds hands out deopt ids for a compilation.
type DeoptIds struct {
    next int
}

func (self *DeoptIds) Next() (id int) {
    id = self.next
    self.next += deoptStep
    return
}

func (self *DeoptIds) Max() int {
    return self.next
}

// Instr is a single instruction. The meaning of the payload fields depends on
// the tag.
type Instr struct {
    Tag      Tag
    Id       int
    Name     string
    DeoptId  int
    TokenPos int
    Inputs   []*Instr
    Locs     *locs.LocationSummary
    Env      EnvId
    Rep      locs.Representation
    Used     bool

    /* constants */
    Value *locs.Constant

    /* locals, parameters, temps */
    Index int

    /* fields, calls and type checks */
    Field    *object.Field
    Function *object.Function
    ArgsDesc *object.ArgsDesc
    ICData   *object.ICData
    Type     *object.AbstractType
    DstName  string
    Cids     []int
    Op       SmiOp
    Hoisted  bool

    /* materializations */
    Class     *object.Class
    Slots     []*object.Field
    InputLocs []locs.Location

    /* control flow */
    Target    *Block
    TrueSucc  *Block
    FalseSucc *Block
    Moves     *locs.ParallelMove
}

func (self *Instr) InputCount() int {
    return len(self.Inputs)
}

func (self *Instr) InputAt(i int) *Instr {
    return self.Inputs[i]
}

func (self *Instr) ArgumentCount() int {
    if self.ArgsDesc != nil {
        return self.ArgsDesc.Count
    } else {
        return len(self.Inputs)
    }
}

// IsConstantNull reports whether the instruction is the `null` constant.
func (self *Instr) IsConstantNull() bool {
    if self.Tag != Constant || self.Value == nil {
        return false
    } else {
        _, ok := self.Value.Value.(object.Null)
        return ok
    }
}

func (self *Instr) CanDeoptimize() bool {
    switch self.Tag {
        case CheckClass  : return true
        case BinarySmiOp : return self.Op.CanOverflow()
        default          : return self.Tag.IsCall()
    }
}

// FieldOffsetAt returns the byte offset of the i-th materialized field.
func (self *Instr) FieldOffsetAt(i int) int {
    return self.Slots[i].Offset
}

func (self *Instr) ValueName() string {
    if self.Name != "" {
        return self.Name
    } else {
        return fmt.Sprintf("v%d", self.Id)
    }
}

func (self *Instr) String() string {
    var sb strings.Builder
    if self.Tag.IsDefinition() {
        sb.WriteString(self.ValueName())
        sb.WriteString(" <- ")
    }

    /* instruction name and payload */
    sb.WriteString(self.Tag.String())
    switch self.Tag {
        case Constant         : fmt.Fprintf(&sb, "(%s)", self.Value)
        case Parameter        : fmt.Fprintf(&sb, "(%d)", self.Index)
        case LoadLocal        : fmt.Fprintf(&sb, "(%d)", self.Index)
        case StoreLocal       : fmt.Fprintf(&sb, "(%d)", self.Index)
        case DropTemps        : fmt.Fprintf(&sb, "(%d)", self.Index)
        case BinarySmiOp      : fmt.Fprintf(&sb, ":%s", self.Op)
        case StaticCall       : fmt.Fprintf(&sb, ":%s", self.Function.QualifiedName())
        case InstanceCall     : fmt.Fprintf(&sb, ":%s", self.ICData.Selector)
        case AssertAssignable : fmt.Fprintf(&sb, ":%s", self.Type)
        case CheckClass       : fmt.Fprintf(&sb, "%v", self.Cids)
        case ParallelMove     : sb.WriteString(self.Moves.String())
    }

    /* inputs */
    if len(self.Inputs) != 0 {
        args := make([]string, len(self.Inputs))
        for i, v := range self.Inputs { args[i] = v.ValueName() }
        sb.WriteString(" " + strings.Join(args, ", "))
    }

    /* successors */
    switch self.Tag {
        case Goto   : fmt.Fprintf(&sb, " -> B%d", self.Target.Id)
        case Branch : fmt.Fprintf(&sb, " -> B%d, B%d", self.TrueSucc.Id, self.FalseSucc.Id)
    }
    return sb.String()
}

// Block is a basic block. The entry describes the block kind, the body never
// contains block entries.
type Block struct {
    Id       int
    Entry    *Instr
    Defs     []*Instr
    Instrs   []*Instr
    TryIndex int
}

func (self *Block) Last() *Instr {
    if len(self.Instrs) == 0 {
        return nil
    } else {
        return self.Instrs[len(self.Instrs) - 1]
    }
}

func (self *Block) Successors() []*Block {
    if p := self.Last(); p == nil {
        return nil
    } else if p.Tag == Goto {
        return []*Block { p.Target }
    } else if p.Tag == Branch {
        return []*Block { p.TrueSucc, p.FalseSucc }
    } else {
        return nil
    }
}

func (self *Block) String() string {
    return fmt.Sprintf("B%d[%s]", self.Id, self.Entry.Tag)
}

// ParsedFunction carries what the front end knows about the frame of the
// function being compiled.
type ParsedFunction struct {
    Function        *object.Function
    NumStackLocals  int
    HasArgDescVar   bool
    ArgDescVarIndex int
}

// FlowGraph is a function ready for code generation: every instruction has
// its locations assigned when the graph is optimized.
type FlowGraph struct {
    Parsed         *ParsedFunction
    Blocks         []*Block
    Envs           *EnvArena
    Classes        *object.ClassTable
    Optimized      bool
    MayReoptimize  bool
    SpillSlotCount int
}

func (self *FlowGraph) Function() *object.Function {
    return self.Parsed.Function
}

func (self *FlowGraph) GraphEntry() *Block {
    return self.Blocks[0]
}

func (self *FlowGraph) NumBlocks() int {
    return len(self.Blocks)
}
