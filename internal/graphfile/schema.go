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

// File is the TOML form of a flow graph ready for code generation.
type File struct {
    Function         FunctionDef `toml:"function"`
    Callees          []CalleeDef `toml:"callee"`
    Classes          []ClassDef  `toml:"class"`
    Materializations []InstrDef  `toml:"materialization"`
    Envs             []EnvDef    `toml:"env"`
    Blocks           []BlockDef  `toml:"block"`
}

type FunctionDef struct {
    Name           string `toml:"name"`
    Owner          string `toml:"owner"`
    Kind           string `toml:"kind"`
    FixedParams    int    `toml:"fixed_params"`
    OptionalParams int    `toml:"optional_params"`
    Optimizable    bool   `toml:"optimizable"`
    Recognized     string `toml:"recognized"`
    Field          string `toml:"field"`
    Optimized      bool   `toml:"optimized"`
    MayReoptimize  bool   `toml:"may_reoptimize"`
    SpillSlots     int    `toml:"spill_slots"`
    StackLocals    int    `toml:"stack_locals"`
    ArgDescVar     *int   `toml:"arg_desc_var"`
}

// CalleeDef declares a function referenced by calls or inlined environments.
type CalleeDef struct {
    Name           string `toml:"name"`
    Owner          string `toml:"owner"`
    Kind           string `toml:"kind"`
    FixedParams    int    `toml:"fixed_params"`
    OptionalParams int    `toml:"optional_params"`
    Recognized     string `toml:"recognized"`
}

type FieldDef struct {
    Name   string `toml:"name"`
    Offset int    `toml:"offset"`
    Static bool   `toml:"static"`
}

type ClassDef struct {
    Name       string     `toml:"name"`
    Super      string     `toml:"super"`
    Implements []string   `toml:"implements"`
    TypeArgs   int        `toml:"type_args"`
    Fields     []FieldDef `toml:"field"`
}

// EnvDef is an environment. Values are written as `name@location`, a missing
// location means the value has none.
type EnvDef struct {
    Name        string   `toml:"name"`
    Function    string   `toml:"function"`
    DeoptId     int      `toml:"deopt_id"`
    FixedParams int      `toml:"fixed_params"`
    Outer       string   `toml:"outer"`
    Values      []string `toml:"values"`
}

type BlockDef struct {
    Id       int        `toml:"id"`
    Kind     string     `toml:"kind"`
    TryIndex *int       `toml:"try_index"`
    Defs     []InstrDef `toml:"def"`
    Instrs   []InstrDef `toml:"instr"`
}

type LocsDef struct {
    Kind      string   `toml:"kind"`
    In        []string `toml:"in"`
    Out       string   `toml:"out"`
    Temps     []string `toml:"temps"`
    Live      []string `toml:"live"`
    StackBits []int    `toml:"stack_bits"`
}

// InstrDef is a single instruction. Only the fields meaningful for the
// opcode are read.
type InstrDef struct {
    Name      string   `toml:"name"`
    Op        string   `toml:"op"`
    Inputs    []string `toml:"inputs"`
    DeoptId   *int     `toml:"deopt_id"`
    TokenPos  *int     `toml:"token_pos"`
    Env       string   `toml:"env"`
    Rep       string   `toml:"rep"`
    Unused    bool     `toml:"unused"`
    Value     string   `toml:"value"`
    Index     int      `toml:"index"`
    Field     string   `toml:"field"`
    Function  string   `toml:"function"`
    Argc      *int     `toml:"argc"`
    ArgNames  []string `toml:"arg_names"`
    Selector  string   `toml:"selector"`
    Type      string   `toml:"type"`
    DstName   string   `toml:"dst_name"`
    Cids      []int    `toml:"cids"`
    SmiOp     string   `toml:"smi_op"`
    Hoisted   bool     `toml:"hoisted"`
    Class     string   `toml:"class"`
    Slots     []string `toml:"slots"`
    InputLocs []string `toml:"input_locs"`
    Target    *int     `toml:"target"`
    IfTrue    *int     `toml:"if_true"`
    IfFalse   *int     `toml:"if_false"`
    Moves     []string `toml:"moves"`
    Locs      *LocsDef `toml:"locs"`
}
