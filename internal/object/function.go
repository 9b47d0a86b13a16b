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


package object

import (
    `fmt`
)

type FunctionKind uint8

const (
    F_regular FunctionKind = iota
    F_closure
    F_constructor
    F_implicit_getter
    F_implicit_setter
)

func (self FunctionKind) String() string {
    switch self {
        case F_regular         : return "regular"
        case F_closure         : return "closure"
        case F_constructor     : return "constructor"
        case F_implicit_getter : return "getter"
        case F_implicit_setter : return "setter"
        default                : return fmt.Sprintf("FunctionKind(%d)", uint8(self))
    }
}

// MethodKind identifies methods that have an intrinsic implementation.
type MethodKind uint8

const (
    M_unknown MethodKind = iota
    M_object_equals
    M_integer_add
    M_integer_sub
    M_integer_equal
    M_string_length
    M_double_add
    M_list_length
)

var methodKindNames = [...]string {
    M_unknown       : "unknown",
    M_object_equals : "Object.==",
    M_integer_add   : "_IntegerImplementation.+",
    M_integer_sub   : "_IntegerImplementation.-",
    M_integer_equal : "_IntegerImplementation.==",
    M_string_length : "_StringBase.length",
    M_double_add    : "_Double.+",
    M_list_length   : "_List.length",
}

func (self MethodKind) String() string {
    if int(self) < len(methodKindNames) {
        return methodKindNames[self]
    } else {
        return fmt.Sprintf("MethodKind(%d)", uint8(self))
    }
}

func ParseMethodKind(name string) (MethodKind, bool) {
    for i, v := range methodKindNames {
        if v == name {
            return MethodKind(i), true
        }
    }
    return M_unknown, false
}

// Function is the unit of compilation.
type Function struct {
    Name                  string
    Owner                 *Class
    Kind                  FunctionKind
    NumFixedParameters    int
    NumOptionalParameters int
    Optimizable           bool
    Recognized            MethodKind
    Field                 *Field
}

func (self *Function) NumParameters() int {
    return self.NumFixedParameters + self.NumOptionalParameters
}

func (self *Function) HasOptionalParameters() bool {
    return self.NumOptionalParameters != 0
}

func (self *Function) IsImplicitAccessor() bool {
    return self.Kind == F_implicit_getter || self.Kind == F_implicit_setter
}

func (self *Function) QualifiedName() string {
    if self.Owner == nil {
        return self.Name
    } else {
        return self.Owner.Name + "." + self.Name
    }
}

func (self *Function) String() string {
    return "Function(" + self.QualifiedName() + ")"
}
