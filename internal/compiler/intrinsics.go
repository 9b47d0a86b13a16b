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


package compiler

import (
    `github.com/cloudwego/dbc/internal/object`
)

// fieldWords converts a byte offset of a field into words.
func (self *FlowGraphCompiler) fieldWords(field *object.Field) int {
    if field.Offset % self.target.WordSize != 0 {
        panic("compiler: misaligned field " + field.String())
    } else {
        return field.Offset / self.target.WordSize
    }
}

func fitsInt8(v int) bool {
    return v >= -128 && v <= 127
}

// TryIntrinsify emits the intrinsic of the function if it has one. It returns
// true if the intrinsic replaces the whole body. Recognized methods only get
// a fast path, the interpreter continues with the body when it fails.
func (self *FlowGraphCompiler) TryIntrinsify() bool {
    fn := self.Function()
    if !self.opts.Intrinsify {
        return false
    }

    /* implicit accessors of instance fields */
    if !self.opts.ArgumentTypeChecks && fn.IsImplicitAccessor() && fn.Field != nil && !fn.Field.Static {
        switch fn.Kind {
            case object.F_implicit_getter : self.GenerateInlinedGetter(self.fieldWords(fn.Field)) ; return true
            case object.F_implicit_setter : self.GenerateInlinedSetter(self.fieldWords(fn.Field)) ; return true
        }
    }

    /* nothing to do */
    if fn.Recognized == object.M_unknown {
        return false
    }

    /* fast path of recognized methods */
    self.EnterIntrinsicMode()
    self.asm.Intrinsic(int(fn.Recognized))
    self.ExitIntrinsicMode()
    return false
}

// GenerateInlinedGetter loads the field of the receiver and returns it.
func (self *FlowGraphCompiler) GenerateInlinedGetter(offset int) {
    self.asm.Move(0, -(1 + self.target.Layout.ParamEndFromFp))

    /* wide offsets are stored in the next instruction */
    if fitsInt8(offset) {
        self.asm.LoadField(0, 0, offset)
    } else {
        self.asm.LoadFieldExt(0, 0)
        self.asm.Nop(offset)
    }

    /* return the field */
    self.asm.Return(0)
}

// GenerateInlinedSetter stores the value into the field of the receiver and
// returns null.
func (self *FlowGraphCompiler) GenerateInlinedSetter(offset int) {
    self.asm.Move(0, -(2 + self.target.Layout.ParamEndFromFp))
    self.asm.Move(1, -(1 + self.target.Layout.ParamEndFromFp))

    /* wide offsets are stored in the next instruction */
    if fitsInt8(offset) {
        self.asm.StoreField(0, offset, 1)
    } else {
        self.asm.StoreFieldExt(0, 1)
        self.asm.Nop(offset)
    }

    /* setters return null */
    self.asm.LoadConstant(0, object.Null{})
    self.asm.Return(0)
}
