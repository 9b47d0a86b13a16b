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
    `strings`
)

type TypeKind uint8

const (
    T_type TypeKind = iota
    T_param
    T_dynamic
    T_void
)

// AbstractType is the static type of a value: an interface type with its type
// arguments, a type parameter, `dynamic` or `void`.
type AbstractType struct {
    Kind       TypeKind
    Class      *Class
    Args       []*AbstractType
    Name       string
    Index      int
    Malformed  bool
    Malbounded bool
}

var (
    dynamicType = &AbstractType { Kind: T_dynamic }
    voidType    = &AbstractType { Kind: T_void }
)

func DynamicType() *AbstractType { return dynamicType }
func VoidType() *AbstractType    { return voidType }

func NewType(cls *Class, args ...*AbstractType) *AbstractType {
    return &AbstractType {
        Kind  : T_type,
        Class : cls,
        Args  : args,
    }
}

func NewTypeParameter(name string, index int) *AbstractType {
    return &AbstractType {
        Kind  : T_param,
        Name  : name,
        Index : index,
    }
}

// NewMalformedType creates a type that failed to resolve. Checks against it
// always throw a type error.
func NewMalformedType(name string) *AbstractType {
    return &AbstractType {
        Kind      : T_type,
        Name      : name,
        Malformed : true,
    }
}

func (self *AbstractType) IsType() bool          { return self.Kind == T_type }
func (self *AbstractType) IsTypeParameter() bool { return self.Kind == T_param }
func (self *AbstractType) IsVoidType() bool      { return self.Kind == T_void }
func (self *AbstractType) IsDynamicType() bool   { return self.Kind == T_dynamic }

func (self *AbstractType) IsMalformedOrMalbounded() bool {
    return self.Malformed || self.Malbounded
}

// IsInstantiated reports whether the type mentions no type parameter.
func (self *AbstractType) IsInstantiated() bool {
    switch self.Kind {
        case T_param : return false
        case T_type  : break
        default      : return true
    }

    /* all type arguments must be instantiated as well */
    for _, v := range self.Args {
        if !v.IsInstantiated() {
            return false
        }
    }
    return true
}

func (self *AbstractType) TypeClass() *Class {
    if self.Kind == T_type {
        return self.Class
    } else {
        return nil
    }
}

func (self *AbstractType) String() string {
    switch self.Kind {
        case T_dynamic : return "dynamic"
        case T_void    : return "void"
        case T_param   : return self.Name
    }

    /* malformed types have no class */
    if self.Class == nil {
        return "<malformed " + self.Name + ">"
    }

    /* plain types */
    if len(self.Args) == 0 {
        return self.Class.Name
    }

    /* generic types */
    args := make([]string, len(self.Args))
    for i, v := range self.Args { args[i] = v.String() }
    return fmt.Sprintf("%s<%s>", self.Class.Name, strings.Join(args, ", "))
}

// SubtypeTestKey identifies a cached subtype verdict.
type SubtypeTestKey struct {
    Cid                  int
    InstanceTypeArgs     string
    InstantiatorTypeArgs string
    FunctionTypeArgs     string
}

// SubtypeTestCache memoizes the result of runtime subtype checks for a single
// check site.
type SubtypeTestCache struct {
    keys []SubtypeTestKey
    vals map[SubtypeTestKey]bool
}

func NewSubtypeTestCache() *SubtypeTestCache {
    return &SubtypeTestCache { vals: make(map[SubtypeTestKey]bool) }
}

func (self *SubtypeTestCache) Len() int {
    return len(self.keys)
}

func (self *SubtypeTestCache) Add(key SubtypeTestKey, result bool) {
    if _, ok := self.vals[key]; !ok {
        self.keys = append(self.keys, key)
    }
    self.vals[key] = result
}

func (self *SubtypeTestCache) Lookup(key SubtypeTestKey) (result bool, ok bool) {
    result, ok = self.vals[key]
    return
}

func (self *SubtypeTestCache) String() string {
    return fmt.Sprintf("SubtypeTestCache(%d)", len(self.keys))
}
