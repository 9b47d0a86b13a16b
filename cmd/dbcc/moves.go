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


package main

import (
    `fmt`
    `strings`

    `github.com/cloudwego/dbc/internal/arch`
    `github.com/cloudwego/dbc/internal/asm`
    `github.com/cloudwego/dbc/internal/asm/x64`
    `github.com/cloudwego/dbc/internal/compiler`
    `github.com/cloudwego/dbc/internal/graphfile`
    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/opts`
    `github.com/pkg/errors`
    `github.com/spf13/cobra`
)

func newMovesCommand() *cobra.Command {
    return &cobra.Command {
        Use     : "moves [flags] MOVE...",
        Short   : "Resolve a parallel move and print the emitted code",
        Long    : `Resolve a parallel move given as dst<-src pairs, constants are written as =VALUE`,
        Example : `  dbcc moves 'r0<-r1' 'r1<-r0' 'r2<-=42'`,
        Args    : cobra.MinimumNArgs(1),
        RunE    : runMoves,
    }
}

func isTarget(name string) bool {
    _, err := arch.ByName(name)
    return err == nil
}

func errUnknownTarget(name string) error {
    return errors.Errorf("unknown target %q", name)
}

// parseMoves parses the moves, creating a constant for every `=VALUE` side.
func parseMoves(args []string) (*locs.ParallelMove, error) {
    consts := make(map[string]*locs.Constant)
    for _, v := range args {
        for _, side := range strings.SplitN(v, "<-", 2) {
            if side = strings.TrimSpace(side); !strings.HasPrefix(side, "=") {
                continue
            }

            /* the literal names the constant */
            if val, err := graphfile.ParseValue(side[1:]); err != nil {
                return nil, err
            } else {
                consts[side[1:]] = &locs.Constant { Value: val }
            }
        }
    }

    /* then parse the moves */
    return graphfile.ParseMoves(args, consts)
}

func runMoves(cmd *cobra.Command, args []string) error {
    name, _ := cmd.Root().PersistentFlags().GetString("target")
    out := cmd.OutOrStdout()

    /* parse the moves */
    pm, err := parseMoves(args)
    if err != nil {
        return err
    }

    /* the target must exist */
    target, err := arch.ByName(name)
    if err != nil {
        return errUnknownTarget(name)
    }

    /* native code */
    if !target.IsDBC() {
        return printNativeMoves(cmd, pm)
    }

    /* bytecode */
    o := opts.GetDefaultOptions()
    code, pool, err := compiler.ResolveMoves(pm, &target, &o)
    if err != nil {
        return err
    }
    fmt.Fprint(out, asm.DisassembleString(code, pool))
    return nil
}

func printNativeMoves(cmd *cobra.Command, pm *locs.ParallelMove) error {
    code, err := x64.Assemble(pm, new(asm.ObjectPool))
    if err != nil {
        return err
    }

    /* decode what was emitted */
    lines, err := x64.Disassemble(code)
    if err != nil {
        return err
    }
    for _, v := range lines {
        fmt.Fprintln(cmd.OutOrStdout(), v)
    }
    return nil
}
