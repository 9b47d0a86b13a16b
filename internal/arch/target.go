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


package arch

import (
    `fmt`

    `github.com/klauspost/cpuid/v2`
)

// FrameLayout describes where the fixed part of a frame lives relative to the
// frame pointer, in words.
type FrameLayout struct {
    FirstObjectFromFp     int
    LastFixedObjectFromFp int
    ParamEndFromFp        int
    FirstLocalFromFp      int
    SavedCallerFpFromFp   int
    SavedCallerPcFromFp   int
    PcMarkerFromFp        int
    FixedFrameSize        int
}

// FrameSlotForVariableIndex converts a variable index (parameters are
// positive, locals zero or negative) into a frame slot.
func (self FrameLayout) FrameSlotForVariableIndex(index int) int {
    if index <= 0 {
        return index + self.FirstLocalFromFp
    } else {
        return index + self.ParamEndFromFp
    }
}

func (self FrameLayout) VariableIndexForFrameSlot(slot int) int {
    if slot <= self.FirstLocalFromFp {
        return slot - self.FirstLocalFromFp
    } else {
        return slot - self.ParamEndFromFp
    }
}

// Target is the immutable description of a code generation target.
type Target struct {
    Name                 string
    WordSize             int
    Layout               FrameLayout
    NumRegisters         int
    HasRegisterSwap      bool
    CalleeDropsArguments bool
    UnboxedDoubles       bool
    UnboxedInt64         bool
    UnboxedSimd128       bool
    HardwareDivision     bool
    Int64ToDouble        bool
}

// The interpreter frame grows upwards, locals are addressed with positive
// register numbers. The constants below pretend the stack grows downwards
// like every other target, code generation flips the indices.
var dbcLayout = FrameLayout {
    FirstObjectFromFp     : -4,
    LastFixedObjectFromFp : -4,
    ParamEndFromFp        : 4,
    FirstLocalFromFp      : -1,
    SavedCallerFpFromFp   : -1,
    SavedCallerPcFromFp   : -2,
    PcMarkerFromFp        : -3,
    FixedFrameSize        : 4,
}

var x64Layout = FrameLayout {
    FirstObjectFromFp     : -1,
    LastFixedObjectFromFp : -2,
    ParamEndFromFp        : 1,
    FirstLocalFromFp      : -3,
    SavedCallerFpFromFp   : 0,
    SavedCallerPcFromFp   : 1,
    PcMarkerFromFp        : -1,
    FixedFrameSize        : 4,
}

// DBC64 is the bytecode interpreter on a 64-bit host.
func DBC64() Target {
    return Target {
        Name                 : "dbc64",
        WordSize             : 8,
        Layout               : dbcLayout,
        NumRegisters         : 256,
        HasRegisterSwap      : true,
        CalleeDropsArguments : true,
        UnboxedDoubles       : true,
        HardwareDivision     : true,
    }
}

// DBC32 is the bytecode interpreter on a 32-bit host. Doubles do not fit a
// register there.
func DBC32() Target {
    ret := DBC64()
    ret.Name = "dbc32"
    ret.WordSize = 4
    ret.UnboxedDoubles = false
    return ret
}

// X64 is the native target, only used to lower parallel moves.
func X64() Target {
    return Target {
        Name                 : "x64",
        WordSize             : 8,
        Layout               : x64Layout,
        NumRegisters         : 16,
        HasRegisterSwap      : true,
        CalleeDropsArguments : false,
        UnboxedDoubles       : cpuid.CPU.Supports(cpuid.SSE2),
        UnboxedInt64         : true,
        UnboxedSimd128       : cpuid.CPU.Supports(cpuid.SSE2, cpuid.SSE4),
        HardwareDivision     : true,
        Int64ToDouble        : true,
    }
}

func ByName(name string) (Target, error) {
    switch name {
        case "", "dbc", "dbc64" : return DBC64(), nil
        case "dbc32"            : return DBC32(), nil
        case "x64"              : return X64(), nil
        default                 : return Target{}, fmt.Errorf("arch: unknown target %q", name)
    }
}

// BytecodeTarget is ByName restricted to the targets that run bytecode.
func BytecodeTarget(name string) (Target, error) {
    if ret, err := ByName(name); err != nil {
        return Target{}, err
    } else if !ret.IsDBC() {
        return Target{}, fmt.Errorf("arch: target %q does not run bytecode", name)
    } else {
        return ret, nil
    }
}

func (self Target) IsDBC() bool {
    return self.Name == "dbc64" || self.Name == "dbc32"
}

func (self Target) String() string {
    return self.Name
}
