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
    `context`
    `io`
    `os`
    `path/filepath`
    `testing`

    `github.com/cloudwego/dbc/internal/codeinfo`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/google/go-cmp/cmp`
    `github.com/google/go-cmp/cmp/cmpopts`
    `github.com/pkg/errors`
    `github.com/sirupsen/logrus`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

const addGraph = `
[function]
name = "add"
fixed_params = 2
optimized = true
spill_slots = 3

[[env]]
name = "e0"
function = "add"
fixed_params = 2
values = ["a@r0", "b@r1"]

[[block]]
id = 0
kind = "GraphEntry"

  [[block.def]]
  name = "a"
  op = "Parameter"

  [[block.def]]
  name = "b"
  op = "Parameter"
  index = 1

  [[block.instr]]
  op = "Goto"
  target = 1

[[block]]
id = 1
kind = "TargetEntry"

  [[block.instr]]
  op = "ParallelMove"
  moves = ["r0<-s6", "r1<-s5"]

  [[block.instr]]
  name = "sum"
  op = "BinarySmiOp"
  smi_op = "+"
  inputs = ["a", "b"]
  deopt_id = 4
  env = "e0"
  locs = { in = ["r0", "r1"], out = "r2" }

  [[block.instr]]
  op = "Return"
  inputs = ["sum"]
  locs = { in = ["r2"] }
`

const callGraph = `
[function]
name = "caller"

[[callee]]
name = "callee"
fixed_params = 1

[[block]]
id = 0
kind = "GraphEntry"

  [[block.instr]]
  op = "Goto"
  target = 1

[[block]]
id = 1
kind = "TargetEntry"

  [[block.instr]]
  name = "k"
  op = "Constant"
  value = "5"

  [[block.instr]]
  name = "arg"
  op = "PushArgument"
  inputs = ["k"]

  [[block.instr]]
  name = "res"
  op = "StaticCall"
  function = "callee"
  inputs = ["arg"]
  deopt_id = 2
  token_pos = 10

  [[block.instr]]
  op = "Return"
  inputs = ["res"]
`

// LoadLocal only exists in unoptimized code.
const bailoutGraph = `
[function]
name = "broken"
optimized = true

[[block]]
id = 0
kind = "GraphEntry"

  [[block.instr]]
  op = "Goto"
  target = 1

[[block]]
id = 1
kind = "TargetEntry"

  [[block.instr]]
  name = "x"
  op = "LoadLocal"
  locs = { out = "r0" }

  [[block.instr]]
  op = "Return"
  inputs = ["x"]
  locs = { in = ["r0"] }
`

func quiet() Option {
    log := logrus.New()
    log.SetOutput(io.Discard)
    return WithLogger(logrus.NewEntry(log))
}

func mustParse(t *testing.T, src string) *Graph {
    g, err := ParseGraph([]byte(src))
    require.NoError(t, err)
    return g
}

func mustCompile(t *testing.T, src string, options ...Option) *Code {
    code, err := Compile(mustParse(t, src), append(options, quiet())...)
    require.NoError(t, err)
    return code
}

func TestCompile_Optimized(t *testing.T) {
    code := mustCompile(t, addGraph)
    assert.Equal(t, "add", code.Function)
    assert.Equal(t, "dbc64", code.Target)
    assert.True(t, code.Optimized)
    assert.False(t, code.Intrinsified)
    assert.NotNil(t, code.Result())
    assert.Equal(t, len(code.Instructions) * 4, code.CodeSize())
    assert.Len(t, code.Disassemble(), len(code.Instructions))
    assert.Contains(t, code.String(), "add (optimized, dbc64, ")

    /* one eager deoptimization on overflow */
    require.Len(t, code.Deopt, 1)
    assert.Equal(t, "BinarySmiOp", code.Deopt[0].Reason)
    assert.Equal(t, "", code.Deopt[0].Flags)
    assert.Equal(t, "function", code.DeoptObjects[0].Kind)
    assert.Contains(t, code.DumpDeopt(), "reason=BinarySmiOp")
}

func TestCompile_Descriptors(t *testing.T) {
    code := mustCompile(t, callGraph)
    assert.False(t, code.Optimized)
    assert.Empty(t, code.Deopt)

    /* before the call, at the call, after the call */
    var kinds []codeinfo.Kind
    for _, v := range code.Descriptors() { kinds = append(kinds, v.Kind) }
    assert.Equal(t, []codeinfo.Kind {
        codeinfo.K_deopt,
        codeinfo.K_unopt_static_call,
        codeinfo.K_deopt,
    }, kinds)

    /* the callee and its argument descriptor are in the pool */
    var pool []string
    for _, v := range code.Pool { pool = append(pool, v.Kind) }
    assert.Contains(t, pool, "function")
    assert.Contains(t, pool, "args_desc")
    assert.Contains(t, pool, "smi")
}

func TestCompile_Bailout(t *testing.T) {
    _, err := Compile(mustParse(t, bailoutGraph), quiet())
    require.Error(t, err)
    assert.True(t, IsBailout(err))
    assert.True(t, IsBailout(errors.Wrap(err, "wrapped")))
    assert.False(t, IsBailout(io.EOF))

    /* the reason names the offending instruction */
    var be *BailoutError
    require.True(t, errors.As(err, &be))
    assert.Equal(t, "broken", be.Function)
    assert.Contains(t, be.Reason, "LoadLocal")
}

func TestCompile_InvalidOptions(t *testing.T) {
    _, err := Compile(mustParse(t, addGraph), quiet(), func(o *opts.Options) { o.Concurrency = 0 })
    assert.Error(t, err)
    assert.Panics(t, func() { WithTarget("arm") })
    assert.Panics(t, func() { WithTarget("x64") })

    /* a config file may still name the native target */
    _, err = Compile(mustParse(t, addGraph), quiet(), func(o *opts.Options) { o.Target = "x64" })
    assert.ErrorContains(t, err, "does not run bytecode")
    _, err = CompileAll(context.Background(), []Job { { Graph: mustParse(t, addGraph) } }, func(o *opts.Options) { o.Target = "x64" })
    assert.ErrorContains(t, err, "does not run bytecode")
    assert.Panics(t, func() { WithOptimizationThreshold(-1) })
    assert.Panics(t, func() { WithReoptimizationThreshold(-1) })
    assert.Panics(t, func() { WithConcurrency(0) })
}

func TestCompileAll(t *testing.T) {
    jobs := []Job {
        { Graph: mustParse(t, addGraph) },
        { Graph: mustParse(t, bailoutGraph), Fallback: mustParse(t, callGraph) },
        { Graph: mustParse(t, bailoutGraph) },
    }

    /* every job gets an output */
    out, err := CompileAll(context.Background(), jobs, quiet(), WithConcurrency(2))
    require.NoError(t, err)
    require.Len(t, out, 3)
    require.NoError(t, out[0].Err)
    assert.True(t, out[0].Code.Optimized)
    require.NoError(t, out[1].Err)
    assert.True(t, out[1].FellBack)
    assert.Equal(t, "caller", out[1].Code.Function)
    assert.True(t, IsBailout(out[2].Err))
    assert.Nil(t, out[2].Code)
}

func TestCode_Encoding(t *testing.T) {
    code := mustCompile(t, addGraph)
    for _, format := range []string { "cbor", "msgpack" } {
        buf, err := code.Encode(format)
        require.NoError(t, err, format)

        /* decoding gives the same code without the compiler output */
        dec, err := DecodeCode(format, buf)
        require.NoError(t, err, format)
        assert.Nil(t, dec.Result())
        assert.Empty(t, cmp.Diff(code, dec, cmpopts.IgnoreUnexported(Code{}), cmpopts.EquateEmpty()), format)

        /* and prints the same */
        assert.Equal(t, code.String(), dec.String(), format)
        assert.Contains(t, dec.DumpDeopt(), "reason=BinarySmiOp", format)
    }

    /* canonical CBOR is deterministic */
    b1, err := code.MarshalCBOR()
    require.NoError(t, err)
    b2, err := mustCompile(t, addGraph).MarshalCBOR()
    require.NoError(t, err)
    assert.Equal(t, b1, b2)

    /* text is the disassembly */
    txt, err := code.Encode("text")
    require.NoError(t, err)
    assert.Equal(t, code.String(), string(txt))
}

func TestCode_BadFormat(t *testing.T) {
    code := mustCompile(t, addGraph)
    _, err := code.Encode("xml")
    assert.Equal(t, FormatError { Format: "xml" }, err)
    _, err = DecodeCode("text", nil)
    assert.Equal(t, FormatError { Format: "text" }, err)
    _, err = DecodeCode("cbor", []byte { 0xff })
    assert.ErrorContains(t, err, "malformed CBOR")
}

func TestOptions_LoadConfig(t *testing.T) {
    dir := t.TempDir()
    good := filepath.Join(dir, "good.toml")
    require.NoError(t, os.WriteFile(good, []byte("target = \"dbc32\"\nintrinsify = false\nconcurrency = 3\n"), 0644))

    /* the file replaces the settings, later options still apply */
    opt, err := LoadConfig(good)
    require.NoError(t, err)
    code := mustCompile(t, callGraph, opt)
    assert.Equal(t, "dbc32", code.Target)
    code = mustCompile(t, callGraph, opt, WithTarget("dbc64"))
    assert.Equal(t, "dbc64", code.Target)

    /* unknown keys are rejected */
    bad := filepath.Join(dir, "bad.toml")
    require.NoError(t, os.WriteFile(bad, []byte("colour = 1\n"), 0644))
    _, err = LoadConfig(bad)
    assert.ErrorContains(t, err, "unknown options")
}

func TestOptions_Defaults(t *testing.T) {
    old := SetOptimizationCounterThreshold(1234)
    defer SetOptimizationCounterThreshold(old)
    assert.Equal(t, 1234, SetOptimizationCounterThreshold(1234))

    /* the scale and the concurrency */
    scale := SetOptimizationCounterScale(10)
    assert.Equal(t, 10, SetOptimizationCounterScale(scale))
    conc := SetConcurrency(7)
    assert.Equal(t, 7, SetConcurrency(conc))
}
