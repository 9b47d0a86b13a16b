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


// Package dbc compiles flow graphs into bytecode for a register-based
// virtual machine, together with the metadata the runtime needs to
// deoptimize optimized frames.
package dbc

import (
    `context`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/driver`
    `github.com/cloudwego/dbc/internal/graphfile`
    `github.com/cloudwego/dbc/internal/il`
    `github.com/cloudwego/dbc/internal/opts`
)

// Graph is a function ready for code generation.
type Graph = il.FlowGraph

// LoadGraph reads a graph from its TOML description.
func LoadGraph(path string) (*Graph, error) {
    return graphfile.Load(path)
}

// ParseGraph parses the TOML description of a graph.
func ParseGraph(src []byte) (*Graph, error) {
    return graphfile.Parse(src)
}

// Compile compiles a single graph. A bailout is reported as a *BailoutError.
func Compile(graph *Graph, options ...Option) (*Code, error) {
    o, target, err := resolveOptions(options)
    if err != nil {
        return nil, err
    }

    /* compile with a fresh compiler */
    res, err := driver.Compile(graph, &target, &o)
    if err != nil {
        return nil, err
    }
    return newCode(res, target.Name), nil
}

// Job is one function of a batch. Fallback is the unoptimized graph of the
// same function, compiled when the optimizing compiler bails out.
type Job struct {
    Graph    *Graph
    Fallback *Graph
}

// Output is the outcome of one job of a batch.
type Output struct {
    Code     *Code
    Err      error
    FellBack bool
}

// CompileAll compiles a batch of graphs concurrently. Failures of single
// jobs are reported in their outputs, the returned error is only set when
// the batch itself could not run.
func CompileAll(ctx context.Context, jobs []Job, options ...Option) ([]Output, error) {
    o, target, err := resolveOptions(options)
    if err != nil {
        return nil, err
    }

    /* convert the jobs */
    in := make([]driver.Job, len(jobs))
    for i, v := range jobs {
        in[i] = driver.Job { Graph: v.Graph, Fallback: v.Fallback }
    }

    /* run the batch */
    out, err := driver.CompileAll(ctx, in, &o)
    if err != nil {
        return nil, err
    }

    /* wrap the results */
    ret := make([]Output, len(out))
    for i, v := range out {
        ret[i] = Output { Err: v.Err, FellBack: v.FellBack }
        if v.Result != nil {
            ret[i].Code = newCode(v.Result, target.Name)
        }
    }
    return ret, nil
}

func resolveOptions(options []Option) (opts.Options, arch.Target, error) {
    o := opts.GetDefaultOptions()
    for _, fn := range options {
        fn(&o)
    }

    /* validate the options */
    if err := o.Validate(); err != nil {
        return o, arch.Target{}, err
    }

    /* then the target, the config file may name any of them */
    target, err := arch.BytecodeTarget(o.Target)
    return o, target, err
}
