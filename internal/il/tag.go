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
)

// Tag is the kind of an instruction. The set is closed, code generation
// switches over it exhaustively.
type Tag uint8

const (
    GraphEntry Tag = iota
    TargetEntry
    JoinEntry
    Goto
    Branch
    Return
    Constant
    Parameter
    PushArgument
    LoadLocal
    StoreLocal
    DropTemps
    LoadField
    StoreInstanceField
    StoreStaticField
    StoreIndexed
    BinarySmiOp
    CheckClass
    UnboxDouble
    StaticCall
    InstanceCall
    AssertAssignable
    MaterializeObject
    ParallelMove
    NumTags
)

var tagNames = [...]string {
    GraphEntry         : "GraphEntry",
    TargetEntry        : "TargetEntry",
    JoinEntry          : "JoinEntry",
    Goto               : "Goto",
    Branch             : "Branch",
    Return             : "Return",
    Constant           : "Constant",
    Parameter          : "Parameter",
    PushArgument       : "PushArgument",
    LoadLocal          : "LoadLocal",
    StoreLocal         : "StoreLocal",
    DropTemps          : "DropTemps",
    LoadField          : "LoadField",
    StoreInstanceField : "StoreInstanceField",
    StoreStaticField   : "StoreStaticField",
    StoreIndexed       : "StoreIndexed",
    BinarySmiOp        : "BinarySmiOp",
    CheckClass         : "CheckClass",
    UnboxDouble        : "UnboxDouble",
    StaticCall         : "StaticCall",
    InstanceCall       : "InstanceCall",
    AssertAssignable   : "AssertAssignable",
    MaterializeObject  : "MaterializeObject",
    ParallelMove       : "ParallelMove",
}

func (self Tag) String() string {
    if self < NumTags {
        return tagNames[self]
    } else {
        return fmt.Sprintf("Tag(%d)", uint8(self))
    }
}

func ParseTag(name string) (Tag, bool) {
    for i, v := range tagNames {
        if v == name {
            return Tag(i), true
        }
    }
    return NumTags, false
}

func (self Tag) IsBlockEntry() bool {
    return self == GraphEntry || self == TargetEntry || self == JoinEntry
}

// IsDefinition reports whether instructions of this kind produce a value.
func (self Tag) IsDefinition() bool {
    switch self {
        case GraphEntry         : return false
        case TargetEntry        : return false
        case JoinEntry          : return false
        case Goto               : return false
        case Branch             : return false
        case Return             : return false
        case CheckClass         : return false
        case ParallelMove       : return false
        case Constant           : return true
        case Parameter          : return true
        case PushArgument       : return true
        case LoadLocal          : return true
        case StoreLocal         : return true
        case DropTemps          : return true
        case LoadField          : return true
        case StoreInstanceField : return true
        case StoreStaticField   : return true
        case StoreIndexed       : return true
        case BinarySmiOp        : return true
        case UnboxDouble        : return true
        case StaticCall         : return true
        case InstanceCall       : return true
        case AssertAssignable   : return true
        case MaterializeObject  : return true
        default                 : panic("unreachable")
    }
}

// IsCall reports whether instructions of this kind always call out and need
// a safepoint.
func (self Tag) IsCall() bool {
    return self == StaticCall || self == InstanceCall || self == AssertAssignable
}

type SmiOp uint8

const (
    SmiAdd SmiOp = iota
    SmiSub
    SmiMul
    SmiBitAnd
    SmiBitOr
    SmiBitXor
)

var smiOpNames = [...]string {
    SmiAdd    : "+",
    SmiSub    : "-",
    SmiMul    : "*",
    SmiBitAnd : "&",
    SmiBitOr  : "|",
    SmiBitXor : "^",
}

func (self SmiOp) String() string {
    return smiOpNames[self]
}

func ParseSmiOp(name string) (SmiOp, bool) {
    for i, v := range smiOpNames {
        if v == name {
            return SmiOp(i), true
        }
    }
    return 0, false
}

// CanOverflow reports whether the result may not fit a Smi.
func (self SmiOp) CanOverflow() bool {
    return self == SmiAdd || self == SmiSub || self == SmiMul
}
