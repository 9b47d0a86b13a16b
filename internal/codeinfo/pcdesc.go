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


package codeinfo

import (
    `fmt`
    `strings`
)

type Kind uint8

const (
    K_deopt Kind = iota
    K_ic_call
    K_unopt_static_call
    K_runtime_call
    K_osr_entry
    K_other
    N_kinds
)

const (
    kindBits = 3
    kindMask = 1 << kindBits - 1
)

var kindNames = [...]string {
    K_deopt             : "deopt",
    K_ic_call           : "ic-call",
    K_unopt_static_call : "unopt-call",
    K_runtime_call      : "runtime-call",
    K_osr_entry         : "osr-entry",
    K_other             : "other",
}

func (self Kind) String() string {
    if self >= N_kinds {
        return fmt.Sprintf("kind(%d)", self)
    } else {
        return kindNames[self]
    }
}

// Descriptor ties a code offset to the deopt id and source position of the
// instruction that produced it.
type Descriptor struct {
    Kind     Kind
    PcOffset int
    DeoptId  int
    TokenPos int
    TryIndex int
}

func (self Descriptor) String() string {
    return fmt.Sprintf("%04x %-12s deopt=%d pos=%d try=%d", self.PcOffset, self.Kind, self.DeoptId, self.TokenPos, self.TryIndex)
}

// PcDescriptorsBuilder encodes descriptors as deltas from the previous one.
// Code offsets must not decrease.
type PcDescriptorsBuilder struct {
    buf   []byte
    count int
    pc    int
    deopt int
    token int
}

func (self *PcDescriptorsBuilder) AddDescriptor(kind Kind, pc int, deoptId int, tokenPos int, tryIndex int) {
    if kind >= N_kinds {
        panic("codeinfo: invalid descriptor kind")
    } else if pc < self.pc {
        panic(fmt.Sprintf("codeinfo: descriptor at %#x added after %#x", pc, self.pc))
    }

    /* kind and try index share the first value */
    self.buf = encodeValue(self.buf, tryIndex << kindBits | int(kind))
    self.buf = encodeValue(self.buf, pc - self.pc)
    self.buf = encodeValue(self.buf, deoptId - self.deopt)
    self.buf = encodeValue(self.buf, tokenPos - self.token)

    /* remember the values */
    self.count++
    self.pc, self.deopt, self.token = pc, deoptId, tokenPos
}

func (self *PcDescriptorsBuilder) Finalize() *PcDescriptors {
    return &PcDescriptors {
        Data  : append([]byte(nil), self.buf...),
        Count : self.count,
    }
}

// PcDescriptors is the encoded descriptor table of a function.
type PcDescriptors struct {
    Data  []byte
    Count int
}

func (self *PcDescriptors) Decode() []Descriptor {
    var pc, deopt, token int
    var rd = decoder { buf: self.Data }
    var ret = make([]Descriptor, 0, self.Count)

    /* decode every descriptor */
    for rd.more() {
        kt := rd.value()
        pc += rd.value()
        deopt += rd.value()
        token += rd.value()

        /* unpack the kind and try index */
        ret = append(ret, Descriptor {
            Kind     : Kind(kt & kindMask),
            PcOffset : pc,
            DeoptId  : deopt,
            TokenPos : token,
            TryIndex : kt >> kindBits,
        })
    }

    /* the count is stored separately */
    if len(ret) != self.Count {
        panic(fmt.Sprintf("codeinfo: expected %d descriptors, got %d", self.Count, len(ret)))
    }
    return ret
}

// Find returns the first descriptor of the given kind and deopt id.
func (self *PcDescriptors) Find(kind Kind, deoptId int) (Descriptor, bool) {
    for _, v := range self.Decode() {
        if v.Kind == kind && v.DeoptId == deoptId {
            return v, true
        }
    }
    return Descriptor{}, false
}

func (self *PcDescriptors) String() string {
    var sb strings.Builder
    for _, v := range self.Decode() {
        sb.WriteString(v.String())
        sb.WriteByte('\n')
    }
    return sb.String()
}
