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


package locs

import (
    `math/bits`
)

const (
    MaxRegisters = 256
)

// RegisterSet is a set of live registers, remembering which of them hold
// tagged values.
type RegisterSet struct {
    cpu    [MaxRegisters / 64]uint64
    fpu    [MaxRegisters / 64]uint64
    tagged [MaxRegisters / 64]uint64
}

func (self *RegisterSet) Add(loc Location, rep Representation) {
    r := loc.Reg()
    w, b := r / 64, uint64(1) << (r % 64)

    /* FPU registers never hold tagged values */
    if loc.IsFpuRegister() {
        self.fpu[w] |= b
        return
    }

    /* CPU registers */
    self.cpu[w] |= b
    if rep == R_tagged {
        self.tagged[w] |= b
    } else {
        self.tagged[w] &^= b
    }
}

func (self *RegisterSet) Remove(loc Location) {
    r := loc.Reg()
    w, b := r / 64, uint64(1) << (r % 64)

    /* clear all the bits */
    if loc.IsFpuRegister() {
        self.fpu[w] &^= b
    } else {
        self.cpu[w] &^= b
        self.tagged[w] &^= b
    }
}

func (self *RegisterSet) Contains(loc Location) bool {
    r := loc.Reg()
    if loc.IsFpuRegister() {
        return self.fpu[r / 64] & (1 << (r % 64)) != 0
    } else {
        return self.cpu[r / 64] & (1 << (r % 64)) != 0
    }
}

func (self *RegisterSet) IsTagged(reg int) bool {
    return self.tagged[reg / 64] & (1 << (reg % 64)) != 0
}

// HasUntaggedValues reports whether any live register holds a raw value.
func (self *RegisterSet) HasUntaggedValues() bool {
    for i := range self.cpu {
        if self.cpu[i] &^ self.tagged[i] != 0 || self.fpu[i] != 0 {
            return true
        }
    }
    return false
}

func (self *RegisterSet) CpuRegisterCount() (n int) {
    for _, v := range self.cpu { n += bits.OnesCount64(v) }
    return
}

func (self *RegisterSet) FpuRegisterCount() (n int) {
    for _, v := range self.fpu { n += bits.OnesCount64(v) }
    return
}

// CpuRegisters returns the live CPU registers in ascending order.
func (self *RegisterSet) CpuRegisters() []int {
    var ret []int
    for w, v := range self.cpu {
        for ; v != 0; v &= v - 1 {
            ret = append(ret, w * 64 + bits.TrailingZeros64(v))
        }
    }
    return ret
}

type CallKind uint8

const (
    NoCall CallKind = iota
    CallOnSlowPath
    Call
)

// LocationSummary is the register allocation result of one instruction.
type LocationSummary struct {
    Inputs        []Location
    Temps         []Location
    Output        Location
    Kind          CallKind
    LiveRegisters RegisterSet
    stackBitmap   *BitmapBuilder
}

func NewLocationSummary(nin int, ntmp int, kind CallKind) *LocationSummary {
    return &LocationSummary {
        Kind   : kind,
        Inputs : make([]Location, nin),
        Temps  : make([]Location, ntmp),
    }
}

func (self *LocationSummary) In(i int) Location   { return self.Inputs[i] }
func (self *LocationSummary) Temp(i int) Location { return self.Temps[i] }
func (self *LocationSummary) Out() Location       { return self.Output }
func (self *LocationSummary) AlwaysCalls() bool   { return self.Kind == Call }
func (self *LocationSummary) CanCall() bool       { return self.Kind != NoCall }

func (self *LocationSummary) HasStackBitmap() bool {
    return self.stackBitmap != nil
}

func (self *LocationSummary) StackBitmap() *BitmapBuilder {
    if self.stackBitmap == nil {
        self.stackBitmap = new(BitmapBuilder)
    }
    return self.stackBitmap
}

// SetStackBit marks the frame slot as holding a tagged value at this
// instruction's safepoint.
func (self *LocationSummary) SetStackBit(index int) {
    self.StackBitmap().Set(index, true)
}
