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
)

type Kind uint8

const (
    K_ret_address Kind = iota
    K_pc_marker
    K_constant
    K_word
    K_double
    K_mint
    K_materialized_object_ref
    K_materialize_object
    K_caller_fp
    K_caller_pp
    K_caller_pc
    K_suffix
)

var kindNames = [...]string {
    K_ret_address             : "ret",
    K_pc_marker               : "pcmark",
    K_constant                : "const",
    K_word                    : "word",
    K_double                  : "double",
    K_mint                    : "mint",
    K_materialized_object_ref : "mat.ref",
    K_materialize_object      : "mat.obj",
    K_caller_fp               : "callerfp",
    K_caller_pp               : "callerpp",
    K_caller_pc               : "callerpc",
    K_suffix                  : "suffix",
}

func (self Kind) String() string {
    if int(self) >= len(kindNames) {
        return fmt.Sprintf("kind(%d)", self)
    } else {
        return kindNames[self]
    }
}

type SourceKind uint8

const (
    S_register SourceKind = iota
    S_stack_slot
)

// Source is where a value lives in the optimized frame. Stack indices are
// relative to the deoptimization frame, not to the frame pointer.
type Source struct {
    Kind  SourceKind
    Index int
}

func (self Source) String() string {
    if self.Kind == S_register {
        return fmt.Sprintf("r%d", self.Index)
    } else {
        return fmt.Sprintf("s%d", self.Index)
    }
}

// Instr is a single frame reconstruction step. Instructions are comparable so
// they can key the suffix trie.
type Instr struct {
    Kind Kind
    x    int
    y    int
}

func RetAddress(obj int, deoptId int) Instr  { return Instr { Kind: K_ret_address, x: obj, y: deoptId } }
func PcMarker(obj int) Instr                 { return Instr { Kind: K_pc_marker, x: obj } }
func Constant(obj int) Instr                 { return Instr { Kind: K_constant, x: obj } }
func Word(src Source) Instr                  { return Instr { Kind: K_word, x: src.Index, y: int(src.Kind) } }
func Double(src Source) Instr                { return Instr { Kind: K_double, x: src.Index, y: int(src.Kind) } }
func Mint(src Source) Instr                  { return Instr { Kind: K_mint, x: src.Index, y: int(src.Kind) } }
func MaterializedObjectRef(index int) Instr  { return Instr { Kind: K_materialized_object_ref, x: index } }
func MaterializeObject(fieldCount int) Instr { return Instr { Kind: K_materialize_object, x: fieldCount } }
func CallerFp() Instr                        { return Instr { Kind: K_caller_fp } }
func CallerPp() Instr                        { return Instr { Kind: K_caller_pp } }
func CallerPc() Instr                        { return Instr { Kind: K_caller_pc } }
func Suffix(info int, length int) Instr      { return Instr { Kind: K_suffix, x: info, y: length } }

func (self Instr) must(kinds ...Kind) {
    for _, k := range kinds {
        if self.Kind == k {
            return
        }
    }
    panic(fmt.Sprintf("deopt: invalid accessor for %s", self.Kind))
}

// ObjectIndex returns the object table index of return addresses, pc markers
// and constants.
func (self Instr) ObjectIndex() int {
    self.must(K_ret_address, K_pc_marker, K_constant)
    return self.x
}

func (self Instr) DeoptId() int {
    self.must(K_ret_address)
    return self.y
}

func (self Instr) Source() Source {
    self.must(K_word, K_double, K_mint)
    return Source { Kind: SourceKind(self.y), Index: self.x }
}

func (self Instr) MaterializationIndex() int {
    self.must(K_materialized_object_ref)
    return self.x
}

func (self Instr) FieldCount() int {
    self.must(K_materialize_object)
    return self.x
}

func (self Instr) InfoNumber() int {
    self.must(K_suffix)
    return self.x
}

func (self Instr) SuffixLength() int {
    self.must(K_suffix)
    return self.y
}

func (self Instr) String() string {
    switch self.Kind {
        case K_ret_address             : return fmt.Sprintf("ret oti:%d(%d)", self.x, self.y)
        case K_pc_marker               : return fmt.Sprintf("pcmark oti:%d", self.x)
        case K_constant                : return fmt.Sprintf("const oti:%d", self.x)
        case K_word                    : return self.Source().String()
        case K_double                  : return "double " + self.Source().String()
        case K_mint                    : return "mint " + self.Source().String()
        case K_materialized_object_ref : return fmt.Sprintf("mat ref #%d", self.x)
        case K_materialize_object      : return fmt.Sprintf("mat obj len:%d", self.x)
        case K_suffix                  : return fmt.Sprintf("suffix %d:%d", self.x, self.y)
        default                        : return self.Kind.String()
    }
}

// Info is the instruction sequence of one deoptimization point. A packed info
// may end with a Suffix instruction.
type Info []Instr

func (self Info) NumMaterializations() int {
    n := 0
    for n < len(self) && self[n].Kind == K_materialize_object {
        n++
    }
    return n
}

func (self Info) String() string {
    buf := make([]string, len(self))
    for i, v := range self { buf[i] = v.String() }
    return "[" + strings.Join(buf, ", ") + "]"
}
