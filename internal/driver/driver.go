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
    `sync/atomic`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/compiler`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/pkg/errors`
    `github.com/sirupsen/logrus`
    `golang.org/x/sync/errgroup`
)

// Job is one function to compile. Fallback is the unoptimized graph of the
// same function, compiled when the optimizing compiler bails out.
type Job struct {
    Graph    *il.FlowGraph
    Fallback *il.FlowGraph
}

// Output is the outcome of one job. Err is a *compiler.BailoutError when
// neither graph could be compiled.
type Output struct {
    Result   *compiler.Result
    Err      error
    FellBack bool
}

var (
    CompiledCount  uint64
    OptimizedCount uint64
    BailoutCount   uint64
    FallbackCount  uint64
    CodeSize       uint64
    DeoptInfoCount uint64
)

// Compile compiles a single graph with a fresh compiler.
func Compile(graph *il.FlowGraph, target *arch.Target, options *opts.Options) (*compiler.Result, error) {
    ret, err := compiler.New(graph, target, options).CompileGraph()
    if err != nil {
        if errors.As(err, new(*compiler.BailoutError)) {
            atomic.AddUint64(&BailoutCount, 1)
        }
        return nil, err
    }

    /* update the statistics */
    atomic.AddUint64(&CompiledCount, 1)
    atomic.AddUint64(&CodeSize, uint64(len(ret.Code) * asm.InstrSize))
    atomic.AddUint64(&DeoptInfoCount, uint64(ret.DeoptTable.Len()))

    /* optimized code */
    if ret.Optimized {
        atomic.AddUint64(&OptimizedCount, 1)
    }
    return ret, nil
}

func compileJob(job Job, target *arch.Target, options *opts.Options) (out Output) {
    defer logJob(&out, options)
    out.Result, out.Err = Compile(job.Graph, target, options)

    /* only bailouts are reported here */
    var be *compiler.BailoutError
    if out.Err == nil || !errors.As(out.Err, &be) {
        return
    }

    /* bailouts are expected, but worth knowing about */
    options.Log().WithFields(logrus.Fields {
        "function"   : be.Function,
        "reason"     : be.Reason,
        "optimizing" : job.Graph.Optimized,
        "fallback"   : job.Fallback != nil,
    }).Warn("compiler bailed out")

    /* retry with the unoptimized graph */
    if job.Graph.Optimized && job.Fallback != nil {
        atomic.AddUint64(&FallbackCount, 1)
        out.FellBack = true
        out.Result, out.Err = Compile(job.Fallback, target, options)
    }
    return
}

func logJob(out *Output, options *opts.Options) {
    if out.Err != nil {
        return
    }

    /* one entry per compiled function */
    options.Log().WithFields(logrus.Fields {
        "function"    : out.Result.Function.QualifiedName(),
        "optimizing"  : out.Result.Optimized,
        "code_size"   : len(out.Result.Code) * asm.InstrSize,
        "deopt_infos" : out.Result.DeoptTable.Len(),
        "fell_back"   : out.FellBack,
    }).Debug("compiled")
}

// CompileAll compiles every job concurrently, at most options.Concurrency at
// a time. Per-job failures are reported in the outputs, the returned error is
// only set when the context is done before all jobs ran.
func CompileAll(ctx context.Context, jobs []Job, options *opts.Options) ([]Output, error) {
    target, err := arch.BytecodeTarget(options.Target)
    if err != nil {
        return nil, err
    }

    /* validate the options before starting anything */
    if err = options.Validate(); err != nil {
        return nil, err
    }

    /* one slot per job, so no locking is needed */
    ret := make([]Output, len(jobs))
    grp, gctx := errgroup.WithContext(ctx)
    grp.SetLimit(options.Concurrency)

    /* start the jobs */
    for i, job := range jobs {
        i, job := i, job
        grp.Go(func() error {
            if err := gctx.Err(); err != nil {
                return err
            }
            ret[i] = compileJob(job, &target, options)
            return nil
        })
    }

    /* wait for all of them */
    if err = grp.Wait(); err != nil {
        return nil, err
    }

    /* summary */
    options.Log().WithField("jobs", len(jobs)).Debug("compilation finished")
    return ret, nil
}
