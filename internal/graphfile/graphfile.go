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


package graphfile

import (
    `os`
    `strconv`
    `strings`

    `github.com/BurntSushi/toml`
    `github.com/pkg/errors`

    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
)

// Load reads a flow graph from a TOML file.
func Load(path string) (*il.FlowGraph, error) {
    buf, err := os.ReadFile(path)
    if err != nil {
        return nil, err
    }

    /* parse the graph */
    ret, err := Parse(buf)
    if err != nil {
        return nil, errors.Wrap(err, path)
    }
    return ret, nil
}

// Parse decodes and resolves a flow graph.
func Parse(src []byte) (*il.FlowGraph, error) {
    var fp File
    meta, err := toml.Decode(string(src), &fp)

    /* check for decoding errors */
    if err != nil {
        return nil, errors.Wrap(err, "graphfile: malformed graph")
    }

    /* unknown keys are most likely typos */
    if keys := meta.Undecoded(); len(keys) != 0 {
        return nil, errors.Errorf("graphfile: unknown key %q", keys[0].String())
    }

    /* resolve all references */
    rs := newResolver()
    return rs.resolve(&fp)
}

type _Resolver struct {
    nextId int
    cls    *object.ClassTable
    funcs  map[string]*object.Function
    envs   map[string]il.EnvId
    values map[string]*il.Instr
    consts map[string]*locs.Constant
    blocks map[int]*il.Block
    arena  *il.EnvArena
}

func newResolver() *_Resolver {
    return &_Resolver {
        cls    : object.NewClassTable(),
        funcs  : make(map[string]*object.Function),
        envs   : make(map[string]il.EnvId),
        values : make(map[string]*il.Instr),
        consts : make(map[string]*locs.Constant),
        blocks : make(map[int]*il.Block),
        arena  : il.NewEnvArena(),
    }
}

type _Pending struct {
    ins *il.Instr
    def *InstrDef
}

func (self *_Resolver) resolve(fp *File) (*il.FlowGraph, error) {
    var err error
    var fn *object.Function
    var pending []_Pending

    /* classes go first, everything else refers to them */
    for i := range fp.Classes {
        if err = self.defineClass(&fp.Classes[i]); err != nil {
            return nil, err
        }
    }

    /* the function being compiled */
    if fn, err = self.defineFunction(&fp.Function); err != nil {
        return nil, err
    }

    /* callees */
    for i := range fp.Callees {
        if _, err = self.defineCallee(&fp.Callees[i]); err != nil {
            return nil, err
        }
    }

    /* materializations live outside of blocks */
    for i := range fp.Materializations {
        if p, err := self.declare(&fp.Materializations[i]); err != nil {
            return nil, err
        } else if p.ins.Tag != il.MaterializeObject {
            return nil, errors.Errorf("graphfile: %s is not a materialization", p.ins.ValueName())
        } else {
            pending = append(pending, p)
        }
    }

    /* declare the blocks and every instruction in them */
    if len(fp.Blocks) == 0 {
        return nil, errors.New("graphfile: graph has no blocks")
    }

    /* blocks are kept in file order */
    bbs := make([]*il.Block, 0, len(fp.Blocks))
    for i := range fp.Blocks {
        if bb, pp, err := self.declareBlock(&fp.Blocks[i]); err != nil {
            return nil, err
        } else {
            bbs = append(bbs, bb)
            pending = append(pending, pp...)
        }
    }

    /* the first block must be the graph entry */
    if bbs[0].Entry.Tag != il.GraphEntry {
        return nil, errors.Errorf("graphfile: first block B%d is not a graph entry", bbs[0].Id)
    }

    /* environments may only refer to declared values */
    for i := range fp.Envs {
        if err = self.defineEnv(&fp.Envs[i]); err != nil {
            return nil, err
        }
    }

    /* now fill in every instruction */
    for _, p := range pending {
        if err = self.fill(p.ins, p.def); err != nil {
            return nil, errors.Wrap(err, p.ins.ValueName())
        }
    }

    /* assemble the graph */
    return &il.FlowGraph {
        Blocks         : bbs,
        Envs           : self.arena,
        Classes        : self.cls,
        Optimized      : fp.Function.Optimized,
        MayReoptimize  : fp.Function.MayReoptimize,
        SpillSlotCount : fp.Function.SpillSlots,
        Parsed         : &il.ParsedFunction {
            Function        : fn,
            NumStackLocals  : fp.Function.StackLocals,
            HasArgDescVar   : fp.Function.ArgDescVar != nil,
            ArgDescVarIndex : intOr(fp.Function.ArgDescVar, 0),
        },
    }, nil
}

func (self *_Resolver) defineClass(def *ClassDef) error {
    var super *object.Class
    var ifaces []*object.Class

    /* resolve the superclass */
    if def.Super != "" {
        if super = self.cls.Lookup(def.Super); super == nil {
            return errors.Errorf("graphfile: undefined superclass %q of %s", def.Super, def.Name)
        }
    }

    /* resolve the interfaces */
    for _, v := range def.Implements {
        if p := self.cls.Lookup(v); p == nil {
            return errors.Errorf("graphfile: undefined interface %q of %s", v, def.Name)
        } else {
            ifaces = append(ifaces, p)
        }
    }

    /* class names are unique */
    if def.Name == "" {
        return errors.New("graphfile: class without a name")
    } else if self.cls.Lookup(def.Name) != nil {
        return errors.Errorf("graphfile: duplicated class %s", def.Name)
    }

    /* register the class with its fields */
    cls := self.cls.Register(def.Name, super, ifaces...)
    cls.NumTypeArguments = def.TypeArgs

    /* add the fields */
    for _, f := range def.Fields {
        cls.Fields = append(cls.Fields, &object.Field {
            Name   : f.Name,
            Owner  : cls,
            Offset : f.Offset,
            Static : f.Static,
        })
    }
    return nil
}

func (self *_Resolver) defineFunction(def *FunctionDef) (*object.Function, error) {
    fn, err := self.defineCallee(&CalleeDef {
        Name           : def.Name,
        Owner          : def.Owner,
        Kind           : def.Kind,
        FixedParams    : def.FixedParams,
        OptionalParams : def.OptionalParams,
        Recognized     : def.Recognized,
    })

    /* check for errors */
    if err != nil {
        return nil, err
    }

    /* accessors know the field they access */
    fn.Optimizable = def.Optimizable
    if def.Field == "" {
        return fn, nil
    } else if fn.Owner == nil {
        return nil, errors.Errorf("graphfile: accessor %s has no owner", fn.Name)
    } else if fn.Field = fn.Owner.FieldByName(def.Field); fn.Field == nil {
        return nil, errors.Errorf("graphfile: undefined field %s.%s", fn.Owner.Name, def.Field)
    } else {
        return fn, nil
    }
}

func (self *_Resolver) defineCallee(def *CalleeDef) (*object.Function, error) {
    var ok bool
    var fk object.FunctionKind
    var mk object.MethodKind

    /* function names are unique */
    if def.Name == "" {
        return nil, errors.New("graphfile: function without a name")
    } else if _, ok = self.funcs[def.Name]; ok {
        return nil, errors.Errorf("graphfile: duplicated function %s", def.Name)
    }

    /* function kinds */
    if fk, ok = parseFunctionKind(def.Kind); !ok {
        return nil, errors.Errorf("graphfile: invalid function kind %q", def.Kind)
    }

    /* recognized methods */
    if def.Recognized != "" {
        if mk, ok = object.ParseMethodKind(def.Recognized); !ok {
            return nil, errors.Errorf("graphfile: unknown recognized method %q", def.Recognized)
        }
    }

    /* create the function */
    fn := &object.Function {
        Name                  : def.Name,
        Kind                  : fk,
        NumFixedParameters    : def.FixedParams,
        NumOptionalParameters : def.OptionalParams,
        Recognized            : mk,
    }

    /* resolve the owner */
    if def.Owner != "" {
        if fn.Owner = self.cls.Lookup(def.Owner); fn.Owner == nil {
            return nil, errors.Errorf("graphfile: undefined class %q", def.Owner)
        }
    }

    /* add to the function table */
    self.funcs[def.Name] = fn
    return fn, nil
}

func (self *_Resolver) defineEnv(def *EnvDef) error {
    var fn *object.Function
    var outer = il.NoEnv

    /* environment names are unique */
    if _, ok := self.envs[def.Name]; ok || def.Name == "" {
        return errors.Errorf("graphfile: invalid or duplicated environment name %q", def.Name)
    }

    /* resolve the function */
    if fn = self.funcs[def.Function]; fn == nil {
        return errors.Errorf("graphfile: undefined function %q in environment %s", def.Function, def.Name)
    }

    /* outer environments must be declared before */
    if def.Outer != "" {
        if id, ok := self.envs[def.Outer]; !ok {
            return errors.Errorf("graphfile: undefined outer environment %q of %s", def.Outer, def.Name)
        } else {
            outer = id
        }
    }

    /* the values with their locations */
    vals := make([]il.EnvValue, 0, len(def.Values))
    for _, v := range def.Values {
        if ev, err := self.envValue(v); err != nil {
            return errors.Wrap(err, "environment " + def.Name)
        } else {
            vals = append(vals, ev)
        }
    }

    /* the arena rejects too few values with a panic */
    if def.FixedParams > len(vals) {
        return errors.Errorf("graphfile: environment %s has fewer values than fixed parameters", def.Name)
    }

    /* add to the arena */
    self.envs[def.Name] = self.arena.New(fn, def.DeoptId, def.FixedParams, outer, vals)
    return nil
}

func (self *_Resolver) envValue(src string) (il.EnvValue, error) {
    var err error
    var ret il.EnvValue
    var name, loc string

    /* split the location */
    if i := strings.IndexByte(src, '@'); i < 0 {
        name = src
    } else {
        name, loc = src[:i], src[i + 1:]
    }

    /* resolve the value */
    if ret.Value, err = self.value(name); err != nil {
        return ret, err
    }

    /* parse the location */
    ret.Loc, err = locs.ParseLocation(loc, self.consts)
    return ret, err
}

func (self *_Resolver) declareBlock(def *BlockDef) (*il.Block, []_Pending, error) {
    var ok bool
    var tag il.Tag
    var ret []_Pending

    /* block ids are unique */
    if _, ok = self.blocks[def.Id]; ok {
        return nil, nil, errors.Errorf("graphfile: duplicated block B%d", def.Id)
    }

    /* block kinds */
    if tag, ok = il.ParseTag(def.Kind); !ok || !tag.IsBlockEntry() {
        return nil, nil, errors.Errorf("graphfile: invalid block kind %q of B%d", def.Kind, def.Id)
    }

    /* create the block */
    bb := &il.Block {
        Id       : def.Id,
        Entry    : self.newInstr(tag, ""),
        TryIndex : intOr(def.TryIndex, -1),
    }

    /* initial definitions */
    for i := range def.Defs {
        if p, err := self.declare(&def.Defs[i]); err != nil {
            return nil, nil, err
        } else {
            ret = append(ret, p)
            bb.Defs = append(bb.Defs, p.ins)
        }
    }

    /* the body */
    for i := range def.Instrs {
        if p, err := self.declare(&def.Instrs[i]); err != nil {
            return nil, nil, err
        } else if p.ins.Tag.IsBlockEntry() {
            return nil, nil, errors.Errorf("graphfile: block entry %s inside B%d", p.ins.ValueName(), def.Id)
        } else {
            ret = append(ret, p)
            bb.Instrs = append(bb.Instrs, p.ins)
        }
    }

    /* add to the block table */
    self.blocks[def.Id] = bb
    return bb, ret, nil
}

func (self *_Resolver) newInstr(tag il.Tag, name string) *il.Instr {
    self.nextId++
    return &il.Instr {
        Tag      : tag,
        Id       : self.nextId,
        Name     : name,
        DeoptId  : il.NoDeoptId,
        TokenPos : il.NoTokenPos,
        Env      : il.NoEnv,
        Used     : true,
    }
}

func (self *_Resolver) declare(def *InstrDef) (_Pending, error) {
    tag, ok := il.ParseTag(def.Op)
    if !ok {
        return _Pending{}, errors.Errorf("graphfile: unknown instruction %q", def.Op)
    }

    /* value names are unique */
    ins := self.newInstr(tag, def.Name)
    if def.Name != "" {
        if _, ok = self.values[def.Name]; ok {
            return _Pending{}, errors.Errorf("graphfile: duplicated value %s", def.Name)
        } else {
            self.values[def.Name] = ins
        }
    }

    /* constants must be known before any location refers to them */
    if tag == il.Constant {
        if err := self.defineConstant(ins, def); err != nil {
            return _Pending{}, err
        }
    }
    return _Pending { ins, def }, nil
}

func (self *_Resolver) defineConstant(ins *il.Instr, def *InstrDef) error {
    var err error
    var val object.Object

    /* parse the representation and the value */
    if ins.Rep, err = parseRep(def.Rep); err != nil {
        return err
    } else if val, err = ParseValue(def.Value); err != nil {
        return err
    }

    /* named constants can be used as locations */
    ins.Value = &locs.Constant { Value: val, Rep: ins.Rep }
    if def.Name != "" {
        self.consts[def.Name] = ins.Value
    }
    return nil
}

func (self *_Resolver) value(name string) (*il.Instr, error) {
    if ins, ok := self.values[name]; !ok {
        return nil, errors.Errorf("graphfile: undefined value %q", name)
    } else {
        return ins, nil
    }
}

func (self *_Resolver) block(id *int) (*il.Block, error) {
    if id == nil {
        return nil, errors.New("graphfile: missing successor")
    } else if bb, ok := self.blocks[*id]; !ok {
        return nil, errors.Errorf("graphfile: undefined block B%d", *id)
    } else {
        return bb, nil
    }
}

func (self *_Resolver) field(ref string) (*object.Field, error) {
    i := strings.LastIndexByte(ref, '.')
    if i < 0 {
        return nil, errors.Errorf("graphfile: field reference %q is not Class.field", ref)
    }

    /* resolve the owner */
    cls := self.cls.Lookup(ref[:i])
    if cls == nil {
        return nil, errors.Errorf("graphfile: undefined class %q", ref[:i])
    }

    /* then the field */
    if f := cls.FieldByName(ref[i + 1:]); f == nil {
        return nil, errors.Errorf("graphfile: undefined field %q", ref)
    } else {
        return f, nil
    }
}

func (self *_Resolver) fill(ins *il.Instr, def *InstrDef) (err error) {
    ins.Used = !def.Unused
    ins.DeoptId = intOr(def.DeoptId, il.NoDeoptId)
    ins.TokenPos = intOr(def.TokenPos, il.NoTokenPos)

    /* representation, constants have it already */
    if ins.Tag != il.Constant {
        if ins.Rep, err = parseRep(def.Rep); err != nil {
            return err
        }
    }

    /* inputs */
    for _, v := range def.Inputs {
        if p, err := self.value(v); err != nil {
            return err
        } else {
            ins.Inputs = append(ins.Inputs, p)
        }
    }

    /* environment */
    if def.Env != "" {
        if id, ok := self.envs[def.Env]; !ok {
            return errors.Errorf("graphfile: undefined environment %q", def.Env)
        } else {
            ins.Env = id
        }
    }

    /* location summary */
    if def.Locs != nil {
        if ins.Locs, err = self.summary(def.Locs); err != nil {
            return err
        }
    }

    /* instruction specific payload */
    switch ins.Tag {
        case il.Parameter, il.LoadLocal, il.StoreLocal, il.DropTemps: {
            ins.Index = def.Index
        }

        /* field accesses */
        case il.LoadField, il.StoreInstanceField, il.StoreStaticField: {
            if ins.Field, err = self.field(def.Field); err != nil {
                return err
            }
        }

        /* Smi arithmetic */
        case il.BinarySmiOp: {
            if op, ok := il.ParseSmiOp(def.SmiOp); !ok {
                return errors.Errorf("graphfile: invalid Smi operation %q", def.SmiOp)
            } else {
                ins.Op = op
            }
        }

        /* class checks */
        case il.CheckClass: {
            ins.Cids = def.Cids
            ins.Hoisted = def.Hoisted
        }

        /* calls */
        case il.StaticCall: {
            if ins.Function = self.funcs[def.Function]; ins.Function == nil {
                return errors.Errorf("graphfile: undefined function %q", def.Function)
            } else if def.Argc != nil || len(def.ArgNames) != 0 {
                ins.ArgsDesc = &object.ArgsDesc { Count: intOr(def.Argc, len(ins.Inputs)), Names: def.ArgNames }
            }
        }

        /* dynamic calls */
        case il.InstanceCall: {
            ins.ICData = &object.ICData {
                Selector : def.Selector,
                ArgCount : intOr(def.Argc, len(ins.Inputs)),
                DeoptId  : ins.DeoptId,
            }
        }

        /* type checks */
        case il.AssertAssignable: {
            ins.DstName = def.DstName
            if ins.Type, err = ParseType(def.Type, self.cls); err != nil {
                return err
            }
        }

        /* object materializations */
        case il.MaterializeObject: {
            if err = self.materialization(ins, def); err != nil {
                return err
            }
        }

        /* control flow */
        case il.Goto: {
            if ins.Target, err = self.block(def.Target); err != nil {
                return err
            }
        }

        /* conditional branches */
        case il.Branch: {
            if ins.TrueSucc, err = self.block(def.IfTrue); err != nil {
                return err
            } else if ins.FalseSucc, err = self.block(def.IfFalse); err != nil {
                return err
            }
        }

        /* parallel moves */
        case il.ParallelMove: {
            if ins.Moves, err = ParseMoves(def.Moves, self.consts); err != nil {
                return err
            }
        }
    }

    /* moves on gotos are optional */
    if ins.Tag == il.Goto && len(def.Moves) != 0 {
        if ins.Moves, err = ParseMoves(def.Moves, self.consts); err != nil {
            return err
        }
    }
    return nil
}

func (self *_Resolver) materialization(ins *il.Instr, def *InstrDef) (err error) {
    if ins.Class = self.cls.Lookup(def.Class); ins.Class == nil {
        return errors.Errorf("graphfile: undefined class %q", def.Class)
    }

    /* one slot per input */
    if len(def.Slots) != len(ins.Inputs) {
        return errors.Errorf("graphfile: %d slots for %d inputs", len(def.Slots), len(ins.Inputs))
    }

    /* resolve the slots */
    for _, v := range def.Slots {
        if f := ins.Class.FieldByName(v); f == nil {
            return errors.Errorf("graphfile: undefined field %s.%s", ins.Class.Name, v)
        } else {
            ins.Slots = append(ins.Slots, f)
        }
    }

    /* input locations, missing ones are invalid */
    ins.InputLocs = make([]locs.Location, len(ins.Inputs))
    for i, v := range def.InputLocs {
        if i >= len(ins.InputLocs) {
            return errors.New("graphfile: more input locations than inputs")
        } else if ins.InputLocs[i], err = locs.ParseLocation(v, self.consts); err != nil {
            return err
        }
    }
    return nil
}

func (self *_Resolver) summary(def *LocsDef) (*locs.LocationSummary, error) {
    var err error
    var kind locs.CallKind

    /* call kinds */
    switch def.Kind {
        case "", "none" : kind = locs.NoCall
        case "slow"     : kind = locs.CallOnSlowPath
        case "call"     : kind = locs.Call
        default         : return nil, errors.Errorf("graphfile: invalid call kind %q", def.Kind)
    }

    /* inputs and temporaries */
    ret := locs.NewLocationSummary(len(def.In), len(def.Temps), kind)
    for i, v := range def.In {
        if ret.Inputs[i], err = locs.ParseLocation(v, self.consts); err != nil {
            return nil, err
        }
    }

    /* temporaries */
    for i, v := range def.Temps {
        if ret.Temps[i], err = locs.ParseLocation(v, self.consts); err != nil {
            return nil, err
        }
    }

    /* the output */
    if ret.Output, err = locs.ParseLocation(def.Out, self.consts); err != nil {
        return nil, err
    }

    /* live registers are tagged unless marked `:untagged` */
    for _, v := range def.Live {
        rep := locs.R_tagged
        if i := strings.IndexByte(v, ':'); i >= 0 {
            if rep, err = parseRep(v[i + 1:]); err != nil {
                return nil, err
            }
            v = v[:i]
        }

        /* only registers can be live across a call */
        if loc, err := locs.ParseLocation(v, self.consts); err != nil {
            return nil, err
        } else if !loc.IsRegisterClass() {
            return nil, errors.Errorf("graphfile: live location %s is not a register", loc)
        } else {
            ret.LiveRegisters.Add(loc, rep)
        }
    }

    /* tagged stack slots */
    for _, v := range def.StackBits {
        ret.SetStackBit(v)
    }
    return ret, nil
}

// ParseMoves parses moves written as `dst<-src`.
func ParseMoves(src []string, consts map[string]*locs.Constant) (*locs.ParallelMove, error) {
    ret := new(locs.ParallelMove)
    for _, v := range src {
        if dst, src, err := ParseMove(v, consts); err != nil {
            return nil, err
        } else {
            ret.AddMove(dst, src)
        }
    }
    return ret, nil
}

func ParseMove(src string, consts map[string]*locs.Constant) (dst locs.Location, val locs.Location, err error) {
    i := strings.Index(src, "<-")
    if i < 0 {
        err = errors.Errorf("graphfile: move %q is not dst<-src", src)
        return
    }

    /* both sides must be valid */
    if dst, err = locs.ParseLocation(src[:i], consts); err != nil {
        return
    } else if val, err = locs.ParseLocation(src[i + 2:], consts); err != nil {
        return
    } else if dst.IsInvalid() || val.IsInvalid() {
        err = errors.Errorf("graphfile: move %q has an empty side", src)
    }
    return
}

// ParseValue parses a constant: null, true, false, an integer, a float or a
// quoted string.
func ParseValue(src string) (object.Object, error) {
    switch src = strings.TrimSpace(src); src {
        case "null"  : return object.Null{}, nil
        case "true"  : return object.Bool(true), nil
        case "false" : return object.Bool(false), nil
        case ""      : return nil, errors.New("graphfile: empty constant")
    }

    /* strings */
    if src[0] == '"' {
        if v, err := strconv.Unquote(src); err != nil {
            return nil, errors.Errorf("graphfile: invalid string constant %s", src)
        } else {
            return object.Str(v), nil
        }
    }

    /* integers, then floats */
    if v, err := strconv.ParseInt(src, 0, 64); err == nil {
        return object.Smi(v), nil
    } else if f, err := strconv.ParseFloat(src, 64); err == nil {
        return object.Double(f), nil
    } else {
        return nil, errors.Errorf("graphfile: invalid constant %q", src)
    }
}

// ParseType parses `dynamic`, `void`, a type parameter `$T`, a malformed type
// `!Name` or a class type with optional arguments `Map<String, $V>`.
func ParseType(src string, cls *object.ClassTable) (*object.AbstractType, error) {
    switch src = strings.TrimSpace(src); {
        case src == ""                   : return nil, errors.New("graphfile: empty type")
        case src == "dynamic"            : return object.DynamicType(), nil
        case src == "void"               : return object.VoidType(), nil
        case strings.HasPrefix(src, "$") : return object.NewTypeParameter(src[1:], 0), nil
        case strings.HasPrefix(src, "!") : return object.NewMalformedType(src[1:]), nil
    }

    /* split the type arguments */
    name, args := src, ""
    if i := strings.IndexByte(src, '<'); i >= 0 {
        if !strings.HasSuffix(src, ">") {
            return nil, errors.Errorf("graphfile: unbalanced type %q", src)
        }
        name, args = src[:i], src[i + 1:len(src) - 1]
    }

    /* resolve the class */
    p := cls.Lookup(strings.TrimSpace(name))
    if p == nil {
        return nil, errors.Errorf("graphfile: undefined class %q", name)
    }

    /* no arguments */
    if args == "" {
        return object.NewType(p), nil
    }

    /* parse each argument */
    var tv []*object.AbstractType
    for _, v := range splitTypeArgs(args) {
        if t, err := ParseType(v, cls); err != nil {
            return nil, err
        } else {
            tv = append(tv, t)
        }
    }
    return object.NewType(p, tv...), nil
}

func splitTypeArgs(src string) (ret []string) {
    n, p := 0, 0
    for i, c := range src {
        switch c {
            case '<' : n++
            case '>' : n--
            case ',' : if n == 0 { ret, p = append(ret, src[p:i]), i + 1 }
        }
    }
    return append(ret, src[p:])
}

func parseRep(src string) (locs.Representation, error) {
    switch src {
        case "", "tagged" : return locs.R_tagged, nil
        case "untagged"   : return locs.R_untagged, nil
        case "double"     : return locs.R_unboxed_double, nil
        case "int64"      : return locs.R_unboxed_int64, nil
        default           : return 0, errors.Errorf("graphfile: invalid representation %q", src)
    }
}

func parseFunctionKind(src string) (object.FunctionKind, bool) {
    switch src {
        case "", "regular" : return object.F_regular, true
        case "closure"     : return object.F_closure, true
        case "constructor" : return object.F_constructor, true
        case "getter"      : return object.F_implicit_getter, true
        case "setter"      : return object.F_implicit_setter, true
        default            : return 0, false
    }
}

func intOr(v *int, def int) int {
    if v == nil {
        return def
    } else {
        return *v
    }
}
