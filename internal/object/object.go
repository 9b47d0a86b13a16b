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
    `math`
    `strconv`
)

// Object is anything that can be referenced from an object pool or a deopt
// object table.
type Object interface {
    String() string
}

type (
    Null   struct{}
    Bool   bool
    Smi    int64
    Double float64
    Str    string
)

func (Null)         String() string { return "null" }
func (self Bool)    String() string { return strconv.FormatBool(bool(self)) }
func (self Smi)     String() string { return strconv.FormatInt(int64(self), 10) }
func (self Str)     String() string { return strconv.Quote(string(self)) }

func (self Double) String() string {
    return strconv.FormatFloat(float64(self), 'g', -1, 64)
}

// IsPositiveZero reports whether the value is bit-identical to +0.0.
func (self Double) IsPositiveZero() bool {
    return math.Float64bits(float64(self)) == 0
}

// Smi values are stored in a tagged word, so the payload must fit the word
// size minus the tag bit.
func (self Smi) FitsWord(wordSize int) bool {
    bits := uint(wordSize * 8 - 2)
    return int64(self) >= -(1 << bits) && int64(self) < (1 << bits)
}

// ArgsDesc describes the shape of the arguments passed to a call.
type ArgsDesc struct {
    Count int
    Names []string
}

func (self *ArgsDesc) PositionalCount() int {
    return self.Count - len(self.Names)
}

func (self *ArgsDesc) String() string {
    if len(self.Names) == 0 {
        return fmt.Sprintf("ArgsDesc(%d)", self.Count)
    } else {
        return fmt.Sprintf("ArgsDesc(%d, %v)", self.Count, self.Names)
    }
}

// ICData holds the call-site information of an instance call.
type ICData struct {
    Selector string
    ArgCount int
    DeoptId  int
}

func (self *ICData) String() string {
    return fmt.Sprintf("ICData(%s/%d, deopt_id=%d)", self.Selector, self.ArgCount, self.DeoptId)
}

// Field is a named instance or static field.
type Field struct {
    Name   string
    Owner  *Class
    Offset int
    Static bool
}

func (self *Field) String() string {
    if self.Owner == nil {
        return "Field(" + self.Name + ")"
    } else {
        return "Field(" + self.Owner.Name + "." + self.Name + ")"
    }
}

// IsSameObject compares two pool objects by identity for reference types and
// by value for immediates.
func IsSameObject(a Object, b Object) bool {
    switch va := a.(type) {
        case Double : vb, ok := b.(Double); return ok && math.Float64bits(float64(va)) == math.Float64bits(float64(vb))
        default     : return a == b
    }
}

// ClassIdOf returns the class id of the immediates and functions, the only
// objects the class checks are ever run against without a heap.
func ClassIdOf(obj Object) int {
    switch obj.(type) {
        case Null      : return NullCid
        case Bool      : return BoolCid
        case Smi       : return SmiCid
        case Double    : return DoubleCid
        case Str       : return StringCid
        case *Function : return FunctionCid
        default        : return IllegalCid
    }
}
