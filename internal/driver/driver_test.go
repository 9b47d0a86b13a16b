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


package driver

import (
    `context`
    `io`
    `testing`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/compiler`
    `github.com/cloudwego/dbc/internal/graphfile`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/object`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/sirupsen/logrus`
    `github.com/sirupsen/logrus/hooks/test`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

const unoptimizedGraph = `
[function]
name = "answer"

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
  value = "42"

  [[block.instr]]
  op = "Return"
  inputs = ["k"]
`

// LoadLocal only exists in unoptimized code.
const optimizedGraph = `
[function]
name = "answer"
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

func parse(t *testing.T, src string) *il.FlowGraph {
    g, err := graphfile.Parse([]byte(src))
    require.NoError(t, err)
    return g
}

func testOptions() *opts.Options {
    log := logrus.New()
    log.SetOutput(io.Discard)
    ret := opts.GetDefaultOptions()
    ret.Logger = logrus.NewEntry(log)
    ret.Concurrency = 2
    return &ret
}

func TestDriver_Logging(t *testing.T) {
    log, hook := test.NewNullLogger()
    log.SetLevel(logrus.DebugLevel)
    o := testOptions()
    o.Logger = logrus.NewEntry(log)

    /* one bailout, then the fallback */
    out := compileJob(Job { Graph: parse(t, optimizedGraph), Fallback: parse(t, unoptimizedGraph) }, ptr(arch.DBC64()), o)
    require.NoError(t, out.Err)
    require.Len(t, hook.AllEntries(), 2)

    /* the bailout is a warning */
    warn := hook.AllEntries()[0]
    assert.Equal(t, logrus.WarnLevel, warn.Level)
    assert.Equal(t, "answer", warn.Data["function"])
    assert.Equal(t, true, warn.Data["fallback"])

    /* the compiled function */
    done := hook.LastEntry()
    assert.Equal(t, logrus.DebugLevel, done.Level)
    assert.Equal(t, false, done.Data["optimizing"])
    assert.Equal(t, true, done.Data["fell_back"])
    assert.Equal(t, 12, done.Data["code_size"])
}

func ptr[T any](v T) *T {
    return &v
}

func TestDriver_CompileAll(t *testing.T) {
    jobs := []Job {
        { Graph: parse(t, unoptimizedGraph) },
        { Graph: parse(t, optimizedGraph), Fallback: parse(t, unoptimizedGraph) },
        { Graph: parse(t, optimizedGraph) },
    }

    /* per-job failures do not fail the batch */
    out, err := CompileAll(context.Background(), jobs, testOptions())
    require.NoError(t, err)
    require.Len(t, out, 3)

    /* a plain unoptimized compilation */
    require.NoError(t, out[0].Err)
    assert.False(t, out[0].FellBack)
    assert.False(t, out[0].Result.Optimized)

    /* the fallback replaces the bailout */
    require.NoError(t, out[1].Err)
    assert.True(t, out[1].FellBack)
    assert.False(t, out[1].Result.Optimized)
    emu := asm.LoadProgram(out[1].Result.Code, out[1].Result.Pool)
    emu.Run()
    assert.Equal(t, asm.Boxed(object.Smi(42)), emu.Result)

    /* no fallback, the bailout is reported */
    var be *compiler.BailoutError
    require.ErrorAs(t, out[2].Err, &be)
    assert.Equal(t, "answer", be.Function)
    assert.Contains(t, be.Reason, "LoadLocal")
    assert.Nil(t, out[2].Result)
    assert.False(t, out[2].FellBack)
}

func TestDriver_Cancelled(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := CompileAll(ctx, []Job { { Graph: parse(t, unoptimizedGraph) } }, testOptions())
    assert.ErrorIs(t, err, context.Canceled)
}

func TestDriver_InvalidOptions(t *testing.T) {
    o := testOptions()
    o.Target = "arm"
    _, err := CompileAll(context.Background(), nil, o)
    assert.ErrorContains(t, err, "unknown target")

    /* the native target has no bytecode frame layout */
    o = testOptions()
    o.Target = "x64"
    _, err = CompileAll(context.Background(), []Job { { Graph: parse(t, unoptimizedGraph) } }, o)
    assert.ErrorContains(t, err, "does not run bytecode")

    /* concurrency must be positive */
    o = testOptions()
    o.Concurrency = 0
    _, err = CompileAll(context.Background(), nil, o)
    assert.ErrorContains(t, err, "concurrency")
}
