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

    `github.com/spf13/cobra`
)

func newDeoptCommand() *cobra.Command {
    return &cobra.Command {
        Use   : "deopt [flags] FILE",
        Short : "Compile a flow graph and dump its deoptimization metadata",
        Long  : `Dump the unpacked deoptimization table, the PC descriptors and the stack maps of a compiled graph`,
        Args  : cobra.ExactArgs(1),
        RunE  : runDeopt,
    }
}

func runDeopt(cmd *cobra.Command, args []string) error {
    out := cmd.OutOrStdout()
    code, err := compileFile(cmd, args[0])

    /* check for errors */
    if err != nil {
        return err
    }

    /* deoptimization table */
    fmt.Fprintf(out, "deoptimization table (%d entries):\n", len(code.Deopt))
    fmt.Fprint(out, code.DumpDeopt())

    /* PC descriptors */
    fmt.Fprintf(out, "pc descriptors (%d entries):\n", code.NumDescriptors)
    for _, v := range code.Descriptors() {
        fmt.Fprintf(out, "    %s\n", v)
    }

    /* stack maps */
    fmt.Fprintf(out, "stack maps (%d entries):\n", len(code.StackMaps))
    for _, v := range code.StackMaps {
        fmt.Fprintf(out, "    %04x %s (slow path %d)\n", v.PcOffset, v.Bits, v.SlowPathBits)
    }
    return nil
}
