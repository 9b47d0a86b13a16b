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
    `fmt`
    `strconv`
    `strings`

    `github.com/cloudwego/dbc/internal/object`
)

type Kind uint8

const (
    K_invalid Kind = iota
    K_register
    K_fpu_register
    K_stack_slot
    K_double_stack_slot
    K_constant
    K_args_desc
    K_exception
    K_stack_trace
)

// Representation is how a value is stored in its location.
type Representation uint8

const (
    R_tagged Representation = iota
    R_untagged
    R_unboxed_double
    R_unboxed_int64
)

func (self Representation) String() string {
    switch self {
        case R_tagged         : return "tagged"
        case R_untagged       : return "untagged"
        case R_unboxed_double : return "double"
        case R_unboxed_int64  : return "int64"
        default               : return "rep(" + strconv.Itoa(int(self)) + ")"
    }
}

// Constant is the definition of a constant value. Constant locations compare
// by the identity of their definitions.
type Constant struct {
    Value object.Object
    Rep   Representation
}

func (self *Constant) String() string {
    if self.Rep == R_tagged {
        return self.Value.String()
    } else {
        return self.Value.String() + ":" + self.Rep.String()
    }
}

// Location is where a value lives. It is a plain value, two locations are
// equal if they are `==`.
type Location struct {
    kind Kind
    v    int
    c    *Constant
}

var (
    invalidLocation = Location{}
)

func NoLocation() Location                    { return invalidLocation }
func RegisterLocation(reg int) Location       { return Location { kind: K_register, v: reg } }
func FpuRegisterLocation(reg int) Location    { return Location { kind: K_fpu_register, v: reg } }
func StackSlot(index int) Location            { return Location { kind: K_stack_slot, v: index } }
func DoubleStackSlot(index int) Location      { return Location { kind: K_double_stack_slot, v: index } }
func ConstantLocation(c *Constant) Location   { return Location { kind: K_constant, c: c } }
func ArgsDescriptorLocation() Location        { return Location { kind: K_args_desc } }
func ExceptionLocation() Location             { return Location { kind: K_exception } }
func StackTraceLocation() Location            { return Location { kind: K_stack_trace } }

func (self Location) Kind() Kind                 { return self.kind }
func (self Location) IsInvalid() bool            { return self.kind == K_invalid }
func (self Location) IsRegister() bool           { return self.kind == K_register }
func (self Location) IsFpuRegister() bool        { return self.kind == K_fpu_register }
func (self Location) IsStackSlot() bool          { return self.kind == K_stack_slot }
func (self Location) IsDoubleStackSlot() bool    { return self.kind == K_double_stack_slot }
func (self Location) IsConstant() bool           { return self.kind == K_constant }
func (self Location) IsArgsDescRegister() bool   { return self.kind == K_args_desc }
func (self Location) IsExceptionRegister() bool  { return self.kind == K_exception }
func (self Location) IsStackTraceRegister() bool { return self.kind == K_stack_trace }
func (self Location) Equals(other Location) bool { return self == other }

func (self Location) IsRegisterClass() bool {
    return self.kind == K_register || self.kind == K_fpu_register
}

func (self Location) IsMemory() bool {
    return self.kind == K_stack_slot || self.kind == K_double_stack_slot
}

// IsSpecialSource reports locations that hold no prior value of their own, they
// are loaded with a dedicated instruction and never take part in a cycle.
func (self Location) IsSpecialSource() bool {
    switch self.kind {
        case K_constant, K_args_desc, K_exception, K_stack_trace : return true
        default                                                  : return false
    }
}

func (self Location) Reg() int {
    if !self.IsRegisterClass() {
        panic("locs: not a register: " + self.String())
    } else {
        return self.v
    }
}

func (self Location) StackIndex() int {
    if !self.IsMemory() {
        panic("locs: not a stack slot: " + self.String())
    } else {
        return self.v
    }
}

func (self Location) Constant() *Constant {
    if self.kind != K_constant {
        panic("locs: not a constant: " + self.String())
    } else {
        return self.c
    }
}

func (self Location) String() string {
    switch self.kind {
        case K_invalid           : return "-"
        case K_register          : return "r" + strconv.Itoa(self.v)
        case K_fpu_register      : return "f" + strconv.Itoa(self.v)
        case K_stack_slot        : return "s" + strconv.Itoa(self.v)
        case K_double_stack_slot : return "ds" + strconv.Itoa(self.v)
        case K_constant          : return "=" + self.c.String()
        case K_args_desc         : return "#argdesc"
        case K_exception         : return "#exception"
        case K_stack_trace       : return "#stacktrace"
        default                  : panic("unreachable")
    }
}

// ParseLocation parses the textual form produced by Location.String. Constant
// locations are written as `=name` and resolved through consts.
func ParseLocation(src string, consts map[string]*Constant) (Location, error) {
    switch src = strings.TrimSpace(src); src {
        case "-", ""       : return NoLocation(), nil
        case "#argdesc"    : return ArgsDescriptorLocation(), nil
        case "#exception"  : return ExceptionLocation(), nil
        case "#stacktrace" : return StackTraceLocation(), nil
    }

    /* constant references */
    if src[0] == '=' {
        if c, ok := consts[src[1:]]; ok {
            return ConstantLocation(c), nil
        } else {
            return NoLocation(), fmt.Errorf("locs: undefined constant %q", src[1:])
        }
    }

    /* the longest prefix first */
    for _, p := range [...]struct { pfx string; mk func(int) Location } {
        { "ds" , DoubleStackSlot     },
        { "r"  , RegisterLocation    },
        { "f"  , FpuRegisterLocation },
        { "s"  , StackSlot           },
    } {
        if strings.HasPrefix(src, p.pfx) {
            if v, err := strconv.Atoi(src[len(p.pfx):]); err != nil {
                return NoLocation(), fmt.Errorf("locs: invalid location %q", src)
            } else if p.mk(0).IsRegisterClass() && v < 0 {
                return NoLocation(), fmt.Errorf("locs: negative register %q", src)
            } else {
                return p.mk(v), nil
            }
        }
    }

    /* nothing matches */
    return NoLocation(), fmt.Errorf("locs: invalid location %q", src)
}
