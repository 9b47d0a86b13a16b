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

const (
    IllegalCid = iota
    DynamicCid
    VoidCid
    ObjectCid
    NullCid
    BoolCid
    NumCid
    IntCid
    SmiCid
    MintCid
    DoubleCid
    StringCid
    ComparableCid
    FunctionCid
    NumPredefinedCids
)

// Class is a class in the class hierarchy. Subtyping is nominal: a class is
// a subtype of its superclass chain and of every interface they implement.
type Class struct {
    Id               int
    Name             string
    Super            *Class
    Interfaces       []*Class
    NumTypeArguments int
    Fields           []*Field
}

func (self *Class) String() string {
    return fmt.Sprintf("Class(%s#%d)", self.Name, self.Id)
}

func (self *Class) IsSubtypeOf(other *Class) bool {
    if self == nil || other == nil {
        return false
    }

    /* everything is a subtype of Object */
    if other.Id == ObjectCid || self == other {
        return true
    }

    /* check interfaces and then the super class */
    for _, v := range self.Interfaces {
        if v.IsSubtypeOf(other) {
            return true
        }
    }

    /* walk up the inheritance chain */
    return self.Super.IsSubtypeOf(other)
}

func (self *Class) FieldByName(name string) *Field {
    for _, f := range self.Fields {
        if f.Name == name {
            return f
        }
    }
    return nil
}

// ClassTable maps class ids to classes. Each compilation job owns its own
// table, the predefined classes are created on construction.
type ClassTable struct {
    list []*Class
    name map[string]*Class
}

func NewClassTable() *ClassTable {
    ret := &ClassTable {
        list: make([]*Class, NumPredefinedCids),
        name: make(map[string]*Class, NumPredefinedCids),
    }

    /* the root of the hierarchy */
    obj := ret.predefine(ObjectCid, "Object", nil)
    cmp := ret.predefine(ComparableCid, "Comparable", obj)
    num := ret.predefine(NumCid, "num", obj)
    num.Interfaces = []*Class { cmp }

    /* numbers */
    ret.predefine(IntCid, "int", num)
    ret.predefine(SmiCid, "_Smi", ret.list[IntCid])
    ret.predefine(MintCid, "_Mint", ret.list[IntCid])
    ret.predefine(DoubleCid, "double", num)

    /* everything else */
    ret.predefine(DynamicCid, "dynamic", nil)
    ret.predefine(VoidCid, "void", nil)
    ret.predefine(NullCid, "Null", obj)
    ret.predefine(BoolCid, "bool", obj)
    ret.predefine(StringCid, "String", obj).Interfaces = []*Class { cmp }
    ret.predefine(FunctionCid, "Function", obj)
    return ret
}

func (self *ClassTable) predefine(id int, name string, super *Class) *Class {
    cls := &Class { Id: id, Name: name, Super: super }
    self.list[id] = cls
    self.name[name] = cls
    return cls
}

// Register creates a new class with the next free class id.
func (self *ClassTable) Register(name string, super *Class, ifaces ...*Class) *Class {
    if _, ok := self.name[name]; ok {
        panic("object: duplicated class " + name)
    }

    /* inherit from Object by default */
    if super == nil {
        super = self.list[ObjectCid]
    }

    /* allocate a new class id */
    cls := &Class {
        Id         : len(self.list),
        Name       : name,
        Super      : super,
        Interfaces : ifaces,
    }

    /* add to the table */
    self.list = append(self.list, cls)
    self.name[name] = cls
    return cls
}

func (self *ClassTable) At(id int) *Class {
    if id <= 0 || id >= len(self.list) {
        return nil
    } else {
        return self.list[id]
    }
}

func (self *ClassTable) Lookup(name string) *Class {
    return self.name[name]
}

func (self *ClassTable) Len() int {
    return len(self.list)
}

func (self *ClassTable) Smi() *Class    { return self.list[SmiCid] }
func (self *ClassTable) Object() *Class { return self.list[ObjectCid] }
