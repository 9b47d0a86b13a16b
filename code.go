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


package dbc

import (
    `fmt`
    `strings`

    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/codeinfo`
    `github.com/cloudwego/dbc/internal/compiler`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/fxamacker/cbor/v2`
    `github.com/pkg/errors`
    `github.com/vmihailenco/msgpack/v5`
)

var cborEncMode cbor.EncMode

func init() {
    var err error
    if cborEncMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
        panic(fmt.Sprintf("dbc: cannot create CBOR encoder: %v", err))
    }
}

// PoolEntry is an object referenced by the code, kept as its kind and its
// printed form.
type PoolEntry struct {
    Kind  string `cbor:"1,keyasint" msgpack:"kind"`
    Value string `cbor:"2,keyasint" msgpack:"value"`
}

func (self PoolEntry) String() string {
    return self.Value
}

// StackMap marks the tagged frame slots at one safepoint, one character per
// slot. The last SlowPathBits slots belong to registers spilled by a slow
// path.
type StackMap struct {
    PcOffset     int    `cbor:"1,keyasint" msgpack:"pc"`
    Bits         string `cbor:"2,keyasint" msgpack:"bits"`
    SlowPathBits int    `cbor:"3,keyasint" msgpack:"slow_path_bits"`
}

// DeoptEntry is one deoptimization point. Info is packed: a trailing suffix
// instruction refers to the tail of an earlier entry.
type DeoptEntry struct {
    PcOffset int      `cbor:"1,keyasint" msgpack:"pc"`
    Reason   string   `cbor:"2,keyasint" msgpack:"reason"`
    Flags    string   `cbor:"3,keyasint" msgpack:"flags,omitempty"`
    Info     []string `cbor:"4,keyasint" msgpack:"info"`
}

// Code is a compiled function.
type Code struct {
    Function       string       `cbor:"1,keyasint" msgpack:"function"`
    Target         string       `cbor:"2,keyasint" msgpack:"target"`
    Optimized      bool         `cbor:"3,keyasint" msgpack:"optimized"`
    Intrinsified   bool         `cbor:"4,keyasint" msgpack:"intrinsified"`
    Instructions   []uint32     `cbor:"5,keyasint" msgpack:"instructions"`
    Pool           []PoolEntry  `cbor:"6,keyasint" msgpack:"pool"`
    PcDescriptors  []byte       `cbor:"7,keyasint" msgpack:"pc_descriptors"`
    NumDescriptors int          `cbor:"8,keyasint" msgpack:"num_descriptors"`
    StackMaps      []StackMap   `cbor:"9,keyasint" msgpack:"stack_maps"`
    Deopt          []DeoptEntry `cbor:"10,keyasint" msgpack:"deopt"`
    DeoptObjects   []PoolEntry  `cbor:"11,keyasint" msgpack:"deopt_objects"`
    result         *compiler.Result
}

func newCode(res *compiler.Result, target string) *Code {
    ret := &Code {
        Function       : res.Function.QualifiedName(),
        Target         : target,
        Optimized      : res.Optimized,
        Intrinsified   : res.Intrinsified,
        Instructions   : make([]uint32, len(res.Code)),
        Pool           : poolEntries(res.Pool.Objects()),
        PcDescriptors  : res.PcDescriptors.Data,
        NumDescriptors : res.PcDescriptors.Count,
        DeoptObjects   : poolEntries(res.DeoptTable.Objects.Objects()),
        result         : res,
    }

    /* raw instruction words */
    for i, v := range res.Code {
        ret.Instructions[i] = uint32(v)
    }

    /* stack maps */
    for _, v := range res.StackMaps.Entries {
        ret.StackMaps = append(ret.StackMaps, StackMap {
            PcOffset     : v.PcOffset,
            Bits         : v.Bitmap.String(),
            SlowPathBits : v.SlowPathBitCount,
        })
    }

    /* deoptimization table, packed */
    for _, v := range res.DeoptTable.Entries {
        info := make([]string, len(v.Info))
        for i, p := range v.Info { info[i] = p.String() }
        ret.Deopt = append(ret.Deopt, DeoptEntry {
            PcOffset : v.PcOffset,
            Reason   : v.Reason.String(),
            Flags    : v.Flags.String(),
            Info     : info,
        })
    }
    return ret
}

func poolEntries(objs []object.Object) []PoolEntry {
    ret := make([]PoolEntry, len(objs))
    for i, v := range objs {
        ret[i] = PoolEntry { Kind: kindOf(v), Value: v.String() }
    }
    return ret
}

func kindOf(v object.Object) string {
    switch v.(type) {
        case object.Null               : return "null"
        case object.Bool               : return "bool"
        case object.Smi                : return "smi"
        case object.Double             : return "double"
        case object.Str                : return "string"
        case *object.Function          : return "function"
        case *object.Class             : return "class"
        case *object.Field             : return "field"
        case *object.ArgsDesc          : return "args_desc"
        case *object.ICData            : return "ic_data"
        case *object.AbstractType      : return "type"
        case *object.SubtypeTestCache  : return "subtype_cache"
        default                        : return "object"
    }
}

// Result returns the compiler output the code was created from, or nil for
// decoded code.
func (self *Code) Result() *compiler.Result {
    return self.result
}

// CodeSize returns the size of the code in bytes.
func (self *Code) CodeSize() int {
    return len(self.Instructions) * asm.InstrSize
}

// Descriptors decodes the PC descriptor table.
func (self *Code) Descriptors() []codeinfo.Descriptor {
    pd := codeinfo.PcDescriptors { Data: self.PcDescriptors, Count: self.NumDescriptors }
    return pd.Decode()
}

func (self *Code) instrs() ([]asm.Instr, *asm.ObjectPool) {
    if self.result != nil {
        return self.result.Code, self.result.Pool
    }

    /* decoded code only has the printed pool */
    pool := new(asm.ObjectPool)
    code := make([]asm.Instr, len(self.Instructions))
    for _, v := range self.Pool { pool.AddUnique(v) }
    for i, v := range self.Instructions { code[i] = asm.Instr(v) }
    return code, pool
}

// Disassemble decodes the code, one line per instruction.
func (self *Code) Disassemble() []asm.Line {
    return asm.Disassemble(self.instrs())
}

// String returns the disassembly with a header line.
func (self *Code) String() string {
    kind := "unoptimized"
    if self.Intrinsified {
        kind = "intrinsic"
    } else if self.Optimized {
        kind = "optimized"
    }

    /* the header, then the code */
    var sb strings.Builder
    fmt.Fprintf(&sb, "%s (%s, %s, %d bytes)\n", self.Function, kind, self.Target, self.CodeSize())
    sb.WriteString(asm.DisassembleString(self.instrs()))
    return sb.String()
}

// DumpDeopt prints the deoptimization table. Code that was compiled in this
// process prints every entry unpacked.
func (self *Code) DumpDeopt() string {
    if self.result != nil {
        return self.result.DeoptTable.String()
    }

    /* decoded code prints the packed entries */
    var sb strings.Builder
    for i, v := range self.Deopt {
        fmt.Fprintf(&sb, "#%d pc=%04x reason=%s", i, v.PcOffset, v.Reason)
        if v.Flags != "" {
            fmt.Fprintf(&sb, " flags=%s", v.Flags)
        }
        if len(v.Info) == 0 {
            sb.WriteString(" (empty)")
        }
        sb.WriteByte('\n')
        for j, p := range v.Info {
            fmt.Fprintf(&sb, "    %3d: %s\n", j, p)
        }
    }
    return sb.String()
}

type _Code Code

// MarshalCBOR encodes the code in canonical CBOR, equal code always encodes
// to the same bytes.
func (self *Code) MarshalCBOR() ([]byte, error) {
    return cborEncMode.Marshal((*_Code)(self))
}

func (self *Code) UnmarshalCBOR(data []byte) error {
    return errors.Wrap(cbor.Unmarshal(data, (*_Code)(self)), "dbc: malformed CBOR code")
}

func (self *Code) MarshalMsgpack() ([]byte, error) {
    return msgpack.Marshal((*_Code)(self))
}

func (self *Code) UnmarshalMsgpack(data []byte) error {
    return errors.Wrap(msgpack.Unmarshal(data, (*_Code)(self)), "dbc: malformed msgpack code")
}

// Encode converts the code into one of the "text", "cbor" or "msgpack"
// formats.
func (self *Code) Encode(format string) ([]byte, error) {
    switch format {
        case "text"    : return []byte(self.String()), nil
        case "cbor"    : return self.MarshalCBOR()
        case "msgpack" : return self.MarshalMsgpack()
        default        : return nil, FormatError { Format: format }
    }
}

// DecodeCode is the reverse of Code.Encode for the binary formats.
func DecodeCode(format string, data []byte) (*Code, error) {
    var err error
    var ret Code

    /* select the decoder */
    switch format {
        case "cbor"    : err = ret.UnmarshalCBOR(data)
        case "msgpack" : err = ret.UnmarshalMsgpack(data)
        default        : err = FormatError { Format: format }
    }

    /* check for errors */
    if err != nil {
        return nil, err
    }
    return &ret, nil
}
