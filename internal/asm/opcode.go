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


package asm

import (
    `fmt`
)

// Format is the operand layout of an instruction word.
//
//   op    : bits 0-7
//   A     : bits 8-15
//   B, C  : bits 16-23 and 24-31
//   D, X  : bits 16-31 (unsigned / signed)
//   T     : bits 8-31 (signed)
type Format uint8

const (
    F_0 Format = iota
    F_A
    F_D
    F_X
    F_T
    F_AD
    F_AX
    F_ABC
    F_ABY
)

type OpCode uint8

const (
    OP_Trap OpCode = iota
    OP_Nop
    OP_Intrinsic
    OP_Drop1
    OP_Drop
    OP_DropR
    OP_Jump
    OP_Return
    OP_ReturnTOS
    OP_Move
    OP_Swap
    OP_Push
    OP_PushConstant
    OP_LoadConstant
    OP_StoreLocal
    OP_PopLocal
    OP_LoadArgDescriptor
    OP_LoadArgDescriptorOpt
    OP_MoveSpecial
    OP_Entry
    OP_EntryOptimized
    OP_HotCheck
    OP_StaticCall
    OP_InstanceCall
    OP_LoadField
    OP_LoadFieldExt
    OP_LoadFieldTOS
    OP_StoreField
    OP_StoreFieldExt
    OP_StoreFieldTOS
    OP_StoreStatic
    OP_StoreStaticTOS
    OP_StoreIndexed
    OP_StoreIndexedTOS
    OP_Add
    OP_Sub
    OP_Mul
    OP_BitAnd
    OP_BitOr
    OP_BitXor
    OP_UnboxDouble
    OP_CheckCids
    OP_IfTrue
    OP_IfTrueTOS
    OP_AssertAssignable
    OP_BadTypeError
    OP_Deopt
    N_OpCodes
)

type _OpInfo struct {
    name string
    form Format
}

var opTab = [...]_OpInfo {
    OP_Trap                 : { "Trap"                 , F_0   },
    OP_Nop                  : { "Nop"                  , F_D   },
    OP_Intrinsic            : { "Intrinsic"            , F_A   },
    OP_Drop1                : { "Drop1"                , F_0   },
    OP_Drop                 : { "Drop"                 , F_A   },
    OP_DropR                : { "DropR"                , F_A   },
    OP_Jump                 : { "Jump"                 , F_T   },
    OP_Return               : { "Return"               , F_A   },
    OP_ReturnTOS            : { "ReturnTOS"            , F_0   },
    OP_Move                 : { "Move"                 , F_AX  },
    OP_Swap                 : { "Swap"                 , F_AX  },
    OP_Push                 : { "Push"                 , F_X   },
    OP_PushConstant         : { "PushConstant"         , F_D   },
    OP_LoadConstant         : { "LoadConstant"         , F_AD  },
    OP_StoreLocal           : { "StoreLocal"           , F_X   },
    OP_PopLocal             : { "PopLocal"             , F_X   },
    OP_LoadArgDescriptor    : { "LoadArgDescriptor"    , F_0   },
    OP_LoadArgDescriptorOpt : { "LoadArgDescriptorOpt" , F_A   },
    OP_MoveSpecial          : { "MoveSpecial"          , F_AD  },
    OP_Entry                : { "Entry"                , F_D   },
    OP_EntryOptimized       : { "EntryOptimized"       , F_AD  },
    OP_HotCheck             : { "HotCheck"             , F_AD  },
    OP_StaticCall           : { "StaticCall"           , F_AD  },
    OP_InstanceCall         : { "InstanceCall"         , F_AD  },
    OP_LoadField            : { "LoadField"            , F_ABY },
    OP_LoadFieldExt         : { "LoadFieldExt"         , F_AD  },
    OP_LoadFieldTOS         : { "LoadFieldTOS"         , F_D   },
    OP_StoreField           : { "StoreField"           , F_ABC },
    OP_StoreFieldExt        : { "StoreFieldExt"        , F_AD  },
    OP_StoreFieldTOS        : { "StoreFieldTOS"        , F_D   },
    OP_StoreStatic          : { "StoreStatic"          , F_AD  },
    OP_StoreStaticTOS       : { "StoreStaticTOS"       , F_D   },
    OP_StoreIndexed         : { "StoreIndexed"         , F_ABC },
    OP_StoreIndexedTOS      : { "StoreIndexedTOS"      , F_0   },
    OP_Add                  : { "Add"                  , F_ABC },
    OP_Sub                  : { "Sub"                  , F_ABC },
    OP_Mul                  : { "Mul"                  , F_ABC },
    OP_BitAnd               : { "BitAnd"               , F_ABC },
    OP_BitOr                : { "BitOr"                , F_ABC },
    OP_BitXor               : { "BitXor"               , F_ABC },
    OP_UnboxDouble          : { "UnboxDouble"          , F_AD  },
    OP_CheckCids            : { "CheckCids"            , F_ABC },
    OP_IfTrue               : { "IfTrue"               , F_A   },
    OP_IfTrueTOS            : { "IfTrueTOS"            , F_0   },
    OP_AssertAssignable     : { "AssertAssignable"     , F_AD  },
    OP_BadTypeError         : { "BadTypeError"         , F_0   },
    OP_Deopt                : { "Deopt"                , F_AD  },
}

func (self OpCode) String() string {
    if self < N_OpCodes {
        return opTab[self].name
    } else {
        return fmt.Sprintf("OpCode(%d)", uint8(self))
    }
}

func (self OpCode) Format() Format {
    if self < N_OpCodes {
        return opTab[self].form
    } else {
        panic(fmt.Sprintf("asm: invalid opcode %d", uint8(self)))
    }
}

// Special registers addressed by MoveSpecial.
const (
    ExceptionSpecialIndex  = 0
    StackTraceSpecialIndex = 1
)

// Instr is a decoded instruction word.
type Instr uint32

func (self Instr) Op() OpCode { return OpCode(self & 0xff) }
func (self Instr) A() int     { return int(uint8(self >> 8)) }
func (self Instr) B() int     { return int(uint8(self >> 16)) }
func (self Instr) C() int     { return int(uint8(self >> 24)) }
func (self Instr) Y() int     { return int(int8(self >> 24)) }
func (self Instr) D() int     { return int(uint16(self >> 16)) }
func (self Instr) X() int     { return int(int16(self >> 16)) }
func (self Instr) T() int     { return int(int32(self) >> 8) }

func encodeABC(op OpCode, a uint8, b uint8, c uint8) Instr {
    return Instr(op) | Instr(a) << 8 | Instr(b) << 16 | Instr(c) << 24
}

func encodeAD(op OpCode, a uint8, d uint16) Instr {
    return Instr(op) | Instr(a) << 8 | Instr(d) << 16
}

func encodeT(op OpCode, t int32) Instr {
    return Instr(op) | Instr(uint32(t) << 8)
}
