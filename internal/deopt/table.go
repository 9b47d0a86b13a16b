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
    `strings`

    `github.com/cloudwego/dbc/internal/object`
)

type Reason uint8

const (
    DeoptUnknown Reason = iota
    DeoptAtCall
    DeoptCheckClass
    DeoptBinarySmiOp
)

var reasonNames = [...]string {
    DeoptUnknown     : "Unknown",
    DeoptAtCall      : "AtCall",
    DeoptCheckClass  : "CheckClass",
    DeoptBinarySmiOp : "BinarySmiOp",
}

func (self Reason) String() string {
    if int(self) >= len(reasonNames) {
        return fmt.Sprintf("Reason(%d)", self)
    } else {
        return reasonNames[self]
    }
}

type Flags uint8

const (
    FlagHoistedCheck Flags = 1 << iota
    FlagGeneralized
)

func (self Flags) String() string {
    var ret []string
    if self & FlagHoistedCheck != 0 { ret = append(ret, "hoisted") }
    if self & FlagGeneralized  != 0 { ret = append(ret, "generalized") }
    return strings.Join(ret, "|")
}

// Entry is one row of the deoptimization table. Entries of calls without an
// environment have no instructions.
type Entry struct {
    PcOffset int
    Info     Info
    Reason   Reason
    Flags    Flags
}

func (self *Entry) IsEmpty() bool {
    return self.Info == nil
}

// ObjectTable holds the objects referenced by deopt instructions. Equal
// objects share one index.
type ObjectTable struct {
    objs []object.Object
}

func (self *ObjectTable) Add(obj object.Object) int {
    for i, v := range self.objs {
        if object.IsSameObject(v, obj) {
            return i
        }
    }
    self.objs = append(self.objs, obj)
    return len(self.objs) - 1
}

func (self *ObjectTable) At(i int) object.Object {
    return self.objs[i]
}

func (self *ObjectTable) Len() int {
    return len(self.objs)
}

func (self *ObjectTable) Objects() []object.Object {
    return self.objs
}

// Table is the dense deoptimization table of a function, indexed by info
// number.
type Table struct {
    Entries []Entry
    Objects *ObjectTable
}

func NewTable(objs *ObjectTable) *Table {
    return &Table { Objects: objs }
}

func (self *Table) Len() int {
    return len(self.Entries)
}

func (self *Table) Add(e Entry) int {
    self.Entries = append(self.Entries, e)
    return len(self.Entries) - 1
}

func (self *Table) At(i int) *Entry {
    return &self.Entries[i]
}

// Unpack returns the instructions of the i-th info with every suffix
// reference expanded.
func (self *Table) Unpack(i int) Info {
    return self.unpack(i, 0)
}

func (self *Table) unpack(i int, depth int) Info {
    var ret Info
    var info Info

    /* suffixes only point backwards */
    if depth > len(self.Entries) {
        panic("deopt: cyclic suffix reference")
    } else {
        info = self.Entries[i].Info
    }

    /* expand the suffix, if any */
    for _, v := range info {
        if v.Kind != K_suffix {
            ret = append(ret, v)
        } else {
            sub := self.unpack(v.InfoNumber(), depth + 1)
            ret = append(ret, sub[len(sub) - v.SuffixLength():]...)
        }
    }
    return ret
}

// FrameSize returns the number of frame slots described by the i-th info.
func (self *Table) FrameSize(i int) int {
    info := self.Unpack(i)
    return len(info) - info.NumMaterializations()
}

func (self *Table) describe(v Instr) string {
    switch v.Kind {
        case K_ret_address : return fmt.Sprintf("ret %s(%d)", self.Objects.At(v.ObjectIndex()), v.DeoptId())
        case K_pc_marker   : return fmt.Sprintf("pcmark %s", self.Objects.At(v.ObjectIndex()))
        case K_constant    : return fmt.Sprintf("const %s", self.Objects.At(v.ObjectIndex()))
        default            : return v.String()
    }
}

// String dumps every entry unpacked, one slot per line.
func (self *Table) String() string {
    var sb strings.Builder
    for i := range self.Entries {
        e := &self.Entries[i]
        fmt.Fprintf(&sb, "#%d pc=%04x reason=%s", i, e.PcOffset, e.Reason)
        if e.Flags != 0 {
            fmt.Fprintf(&sb, " flags=%s", e.Flags)
        }

        /* empty entries have no slots */
        if e.IsEmpty() {
            sb.WriteString(" (empty)\n")
            continue
        }

        /* print the unpacked slots */
        sb.WriteByte('\n')
        for j, v := range self.Unpack(i) {
            fmt.Fprintf(&sb, "    %3d: %s\n", j, self.describe(v))
        }
    }
    return sb.String()
}
